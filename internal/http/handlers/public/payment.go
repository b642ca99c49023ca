package public

import (
	"errors"
	"strconv"

	"github.com/treadline/internal/cache"
	"github.com/treadline/internal/http/response"
	"github.com/treadline/internal/models"
	"github.com/treadline/internal/service"

	"github.com/gin-gonic/gin"
)

// CreatePaymentIntentRequest starts checkout for the caller's cart.
type CreatePaymentIntentRequest struct {
	Method          string         `json:"payment_method" binding:"required"`
	BillingAddress  models.Address `json:"billing_address"`
	ShippingAddress models.Address `json:"shipping_address"`
}

// VerifyStripePaymentRequest confirms a hosted-checkout session.
type VerifyStripePaymentRequest struct {
	PaymentID uint   `json:"payment_id" binding:"required"`
	SessionID string `json:"session_id"`
}

// VerifyPaypalPaymentRequest confirms a redirect-flow provider order.
type VerifyPaypalPaymentRequest struct {
	PaymentID       uint   `json:"payment_id" binding:"required"`
	ProviderOrderID string `json:"provider_order_id"`
}

// CreatePaymentIntent opens a provider session and records the pending
// payment.
func (h *Handler) CreatePaymentIntent(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	var req CreatePaymentIntentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "bad request", err)
		return
	}

	result, err := h.PaymentService.CreatePaymentIntent(c.Request.Context(), service.CreatePaymentIntentInput{
		UserID:          uid,
		Method:          req.Method,
		BillingAddress:  req.BillingAddress,
		ShippingAddress: req.ShippingAddress,
	})
	if err != nil {
		respondPaymentIntentError(c, err)
		return
	}

	response.Success(c, gin.H{
		"payment_id":     result.PaymentID,
		"payment_no":     result.PaymentNo,
		"transaction_id": result.TransactionID,
		"redirect_url":   result.RedirectURL,
		"amount":         result.Payment.Amount,
		"currency":       result.Payment.Currency,
		"status":         result.Payment.Status,
		"expires_at":     result.Payment.ExpiresAt,
	})
}

// VerifyStripePayment settles a payment after the hosted checkout returns.
func (h *Handler) VerifyStripePayment(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	var req VerifyStripePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "bad request", err)
		return
	}
	h.verifyPayment(c, uid, req.PaymentID, req.SessionID)
}

// VerifyPaypalPayment settles a payment after the buyer approves at the
// provider.
func (h *Handler) VerifyPaypalPayment(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	var req VerifyPaypalPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "bad request", err)
		return
	}
	h.verifyPayment(c, uid, req.PaymentID, req.ProviderOrderID)
}

func (h *Handler) verifyPayment(c *gin.Context, uid, paymentID uint, providerRef string) {
	result, err := h.PaymentService.VerifyPayment(c.Request.Context(), service.VerifyPaymentInput{
		UserID:      uid,
		PaymentID:   paymentID,
		ProviderRef: providerRef,
	})
	if err != nil {
		respondPaymentVerifyError(c, err)
		return
	}

	// successful settlement clears the cart
	_ = cache.DelCart(c.Request.Context(), uid)

	resp := gin.H{
		"payment_id": result.Payment.ID,
		"status":     result.Payment.Status,
		"paid_at":    result.Payment.PaidAt,
	}
	if result.Order != nil {
		resp["order"] = result.Order
	}
	response.Success(c, resp)
}

// GetPayment returns one of the caller's payments.
func (h *Handler) GetPayment(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	paymentID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || paymentID == 0 {
		respondError(c, response.CodeBadRequest, "payment id invalid", nil)
		return
	}

	payment, err := h.PaymentService.GetPaymentForUser(uint(paymentID), uid)
	if err != nil {
		if errors.Is(err, service.ErrPaymentNotFound) {
			respondError(c, response.CodeNotFound, "payment not found", nil)
			return
		}
		respondError(c, response.CodeInternal, "payment fetch failed", err)
		return
	}
	response.Success(c, payment)
}
