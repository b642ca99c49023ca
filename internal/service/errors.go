package service

import "errors"

// Service-level sentinel errors. Handlers map these onto response codes.
var (
	ErrEmailTaken         = errors.New("email already registered")
	ErrCredentialsInvalid = errors.New("email or password incorrect")
	ErrUserNotFound       = errors.New("user not found")

	ErrCartEmpty           = errors.New("cart is empty")
	ErrCartItemNotFound    = errors.New("cart item not found")
	ErrQuantityInvalid     = errors.New("quantity must be at least 1")
	ErrProductKindInvalid  = errors.New("product kind invalid")
	ErrProductUnavailable  = errors.New("product unavailable")
	ErrInsufficientStock   = errors.New("insufficient stock")
	ErrStockUnderflow      = errors.New("stock underflow")

	ErrPaymentNotFound         = errors.New("payment not found")
	ErrPaymentInvalid          = errors.New("payment request invalid")
	ErrPaymentMethodInvalid    = errors.New("payment method invalid")
	ErrPaymentAlreadyFinalized = errors.New("payment already finalized")
	ErrPaymentNotSettled       = errors.New("payment not settled yet")
	ErrPaymentMismatch         = errors.New("payment details mismatch")
	ErrGatewayUnavailable      = errors.New("payment gateway unavailable")
	ErrGatewayRejected         = errors.New("payment gateway rejected")

	ErrOrderNotFound      = errors.New("order not found")
	ErrOrderStatusInvalid = errors.New("order status transition invalid")
)
