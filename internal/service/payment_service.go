package service

import (
	"context"
	"strings"
	"time"

	"github.com/treadline/internal/config"
	"github.com/treadline/internal/constants"
	"github.com/treadline/internal/logger"
	"github.com/treadline/internal/models"
	"github.com/treadline/internal/queue"
	"github.com/treadline/internal/repository"
)

// CreatePaymentIntentInput starts one checkout attempt.
type CreatePaymentIntentInput struct {
	UserID          uint
	Method          string
	BillingAddress  models.Address
	ShippingAddress models.Address
}

// CreatePaymentIntentResult is what the client needs to continue at the
// provider.
type CreatePaymentIntentResult struct {
	Payment       *models.Payment `json:"payment"`
	PaymentID     uint            `json:"payment_id"`
	PaymentNo     string          `json:"payment_no"`
	TransactionID string          `json:"transaction_id"`
	RedirectURL   string          `json:"redirect_url"`
}

// PaymentService drives the checkout flow: cart snapshot, gateway session,
// guarded status transitions and order materialization.
type PaymentService struct {
	paymentRepo  repository.PaymentRepository
	cartService  *CartService
	orderService *OrderService
	gateways     GatewayRegistry
	queueClient  *queue.Client
	checkout     config.CheckoutConfig
}

// NewPaymentService creates a payment service.
func NewPaymentService(paymentRepo repository.PaymentRepository, cartService *CartService, orderService *OrderService, gateways GatewayRegistry, queueClient *queue.Client, checkout config.CheckoutConfig) *PaymentService {
	return &PaymentService{
		paymentRepo:  paymentRepo,
		cartService:  cartService,
		orderService: orderService,
		gateways:     gateways,
		queueClient:  queueClient,
		checkout:     checkout,
	}
}

// CreatePaymentIntent resolves the cart, opens a provider session and
// records the pending payment. The recorded amount is the resolved total;
// later confirmation checks the provider charged exactly this.
func (s *PaymentService) CreatePaymentIntent(ctx context.Context, input CreatePaymentIntentInput) (*CreatePaymentIntentResult, error) {
	if input.UserID == 0 {
		return nil, ErrUserNotFound
	}
	gateway, err := s.gateways.Resolve(input.Method)
	if err != nil {
		return nil, err
	}

	snapshot, err := s.cartService.ResolveSnapshot(input.UserID)
	if err != nil {
		return nil, err
	}
	if err := s.cartService.SyncSnapshotPrices(snapshot); err != nil {
		return nil, err
	}

	currency := strings.ToUpper(strings.TrimSpace(s.checkout.Currency))
	if currency == "" {
		currency = constants.DefaultCurrency
	}

	now := time.Now()
	expiresAt := now.Add(s.pendingTTL())
	payment := &models.Payment{
		PaymentNo:       generatePaymentNo(),
		UserID:          input.UserID,
		CartID:          snapshot.CartID,
		Method:          gateway.Name(),
		Amount:          snapshot.TotalPrice,
		Currency:        currency,
		Status:          constants.PaymentStatusPending,
		BillingAddress:  input.BillingAddress,
		ShippingAddress: input.ShippingAddress,
		ExpiresAt:       &expiresAt,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.paymentRepo.Create(payment); err != nil {
		return nil, err
	}

	session, err := gateway.CreateSession(ctx, s.buildSessionInput(payment, snapshot))
	if err != nil {
		if _, terr := s.paymentRepo.TransitionStatus(payment.ID, constants.PaymentStatusPending, constants.PaymentStatusFailed, nil); terr != nil {
			logger.Errorw("payment_fail_mark_failed", "payment_id", payment.ID, "error", terr)
		}
		logger.Warnw("payment_session_create_failed",
			"payment_id", payment.ID,
			"method", payment.Method,
			"error", err,
		)
		return nil, err
	}

	payment.TransactionID = session.TransactionID
	payment.RedirectURL = session.RedirectURL
	payment.GatewayPayload = session.Raw
	payment.UpdatedAt = time.Now()
	if err := s.paymentRepo.Update(payment); err != nil {
		return nil, err
	}

	if err := s.queueClient.EnqueuePaymentExpire(queue.PaymentExpirePayload{PaymentID: payment.ID}, s.pendingTTL()); err != nil {
		logger.Warnw("payment_expire_enqueue_failed", "payment_id", payment.ID, "error", err)
	}

	logger.Infow("payment_intent_created",
		"payment_id", payment.ID,
		"payment_no", payment.PaymentNo,
		"user_id", payment.UserID,
		"method", payment.Method,
		"amount", payment.Amount.String(),
		"transaction_id", payment.TransactionID,
	)
	return &CreatePaymentIntentResult{
		Payment:       payment,
		PaymentID:     payment.ID,
		PaymentNo:     payment.PaymentNo,
		TransactionID: payment.TransactionID,
		RedirectURL:   payment.RedirectURL,
	}, nil
}

// GetPaymentForUser fetches one payment scoped to its owner.
func (s *PaymentService) GetPaymentForUser(paymentID, userID uint) (*models.Payment, error) {
	payment, err := s.paymentRepo.GetByID(paymentID)
	if err != nil {
		return nil, err
	}
	if payment == nil || payment.UserID != userID {
		return nil, ErrPaymentNotFound
	}
	return payment, nil
}

// ListAdmin lists payments for the admin console.
func (s *PaymentService) ListAdmin(filter repository.PaymentListFilter) ([]models.Payment, int64, error) {
	return s.paymentRepo.ListAdmin(filter)
}

// Refund marks a completed payment refunded. Only completed payments can
// move here; the guarded UPDATE makes concurrent refunds settle on one
// winner and the rest observe the already-refunded row.
func (s *PaymentService) Refund(paymentID uint) (*models.Payment, error) {
	payment, err := s.paymentRepo.GetByID(paymentID)
	if err != nil {
		return nil, err
	}
	if payment == nil {
		return nil, ErrPaymentNotFound
	}
	if payment.Status == constants.PaymentStatusRefunded {
		return payment, nil
	}
	if payment.Status != constants.PaymentStatusCompleted {
		return nil, ErrPaymentAlreadyFinalized
	}

	rows, err := s.paymentRepo.TransitionStatus(payment.ID, constants.PaymentStatusCompleted, constants.PaymentStatusRefunded, map[string]interface{}{
		"updated_at": time.Now(),
	})
	if err != nil {
		return nil, err
	}
	if rows == 0 {
		return nil, ErrPaymentAlreadyFinalized
	}

	logger.Infow("payment_refunded",
		"payment_id", payment.ID,
		"payment_no", payment.PaymentNo,
		"amount", payment.Amount.String(),
	)
	return s.paymentRepo.GetByID(payment.ID)
}

// ExpirePayment moves a still-pending payment past its deadline to expired.
// A payment that completed in the meantime is left alone.
func (s *PaymentService) ExpirePayment(paymentID uint, now time.Time) (bool, error) {
	rows, err := s.paymentRepo.ExpirePending(paymentID, now)
	if err != nil {
		return false, err
	}
	if rows == 0 {
		return false, nil
	}
	logger.Infow("payment_expired", "payment_id", paymentID)
	return true, nil
}

// buildSessionInput maps the priced snapshot to provider line items.
func (s *PaymentService) buildSessionInput(payment *models.Payment, snapshot *CartSnapshot) GatewaySessionInput {
	lines := make([]GatewayLineItem, 0, len(snapshot.Lines))
	for _, line := range snapshot.Lines {
		lines = append(lines, GatewayLineItem{
			Name:      line.Name,
			UnitPrice: line.UnitPrice,
			Quantity:  line.Quantity,
		})
	}
	// Tax and shipping ride as their own lines so the provider total equals
	// the recorded amount.
	if snapshot.TaxPrice.IsPositive() {
		lines = append(lines, GatewayLineItem{Name: "Sales tax", UnitPrice: snapshot.TaxPrice, Quantity: 1})
	}
	if snapshot.ShippingPrice.IsPositive() {
		lines = append(lines, GatewayLineItem{Name: "Shipping", UnitPrice: snapshot.ShippingPrice, Quantity: 1})
	}
	return GatewaySessionInput{
		PaymentNo:   payment.PaymentNo,
		PaymentID:   payment.ID,
		Amount:      payment.Amount,
		Currency:    payment.Currency,
		Description: "Treadline order " + payment.PaymentNo,
		LineItems:   lines,
		ExpiresAt:   payment.ExpiresAt,
	}
}

func (s *PaymentService) pendingTTL() time.Duration {
	minutes := s.checkout.PendingExpireMinutes
	if minutes <= 0 {
		minutes = 30
	}
	return time.Duration(minutes) * time.Minute
}
