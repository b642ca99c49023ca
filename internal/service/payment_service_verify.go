package service

import (
	"context"
	"strings"
	"time"

	"github.com/treadline/internal/constants"
	"github.com/treadline/internal/logger"
	"github.com/treadline/internal/models"
	"github.com/treadline/internal/payment/stripe"
	"github.com/treadline/internal/queue"

	"github.com/shopspring/decimal"
)

// VerifyPaymentInput identifies one payment attempt to settle. ProviderRef
// is the client-reported session or provider order id; it is checked
// against the recorded handle, never trusted on its own.
type VerifyPaymentInput struct {
	UserID      uint
	PaymentID   uint
	ProviderRef string
}

// VerifyPaymentResult is the settled payment plus the materialized order.
// Order is nil when materialization failed after the charge; the payment is
// still completed and flagged for reconciliation.
type VerifyPaymentResult struct {
	Payment *models.Payment `json:"payment"`
	Order   *models.Order   `json:"order"`
}

// VerifyPayment confirms one payment against its provider and, on success,
// completes it and materializes the order. Safe to call repeatedly: an
// already completed payment short-circuits to the canonical result.
func (s *PaymentService) VerifyPayment(ctx context.Context, input VerifyPaymentInput) (*VerifyPaymentResult, error) {
	payment, err := s.paymentRepo.GetByID(input.PaymentID)
	if err != nil {
		return nil, err
	}
	if payment == nil || (input.UserID != 0 && payment.UserID != input.UserID) {
		return nil, ErrPaymentNotFound
	}

	switch payment.Status {
	case constants.PaymentStatusCompleted:
		order, err := s.orderService.orderRepo.GetByPaymentID(payment.ID)
		if err != nil {
			return nil, err
		}
		logger.Infow("payment_verify_duplicate", "payment_id", payment.ID, "status", payment.Status)
		return &VerifyPaymentResult{Payment: payment, Order: order}, nil
	case constants.PaymentStatusPending:
		// fall through to provider confirmation
	case constants.PaymentStatusExpired:
		// The provider session may outlive the local deadline, so a buyer
		// can still be charged after expiry. Confirm with the provider
		// before rejecting; a confirmed charge must never read as failure.
	default:
		return nil, ErrPaymentAlreadyFinalized
	}

	providerRef := strings.TrimSpace(input.ProviderRef)
	if providerRef == "" {
		providerRef = payment.TransactionID
	}
	if providerRef == "" {
		return nil, ErrPaymentInvalid
	}
	if payment.TransactionID != "" && providerRef != payment.TransactionID {
		logger.Warnw("payment_verify_ref_mismatch",
			"payment_id", payment.ID,
			"recorded", payment.TransactionID,
			"claimed", providerRef,
		)
		return nil, ErrPaymentMismatch
	}

	gateway, err := s.gateways.Resolve(payment.Method)
	if err != nil {
		return nil, err
	}

	logger.Infow("payment_verify_received",
		"payment_id", payment.ID,
		"method", payment.Method,
		"transaction_id", providerRef,
	)

	confirmation, err := gateway.ConfirmPayment(ctx, providerRef)
	if err != nil {
		return nil, err
	}
	return s.settleConfirmation(payment, confirmation)
}

// HandleStripeWebhook settles payments from verified webhook deliveries.
// Unhandled event types are acknowledged without effect.
func (s *PaymentService) HandleStripeWebhook(headers map[string]string, body []byte, now time.Time) error {
	gateway, err := s.gateways.Resolve(constants.PaymentMethodStripe)
	if err != nil {
		return err
	}
	verifier, ok := gateway.(interface{ WebhookConfig() *stripe.Config })
	if !ok {
		return ErrGatewayUnavailable
	}

	event, err := stripe.VerifyAndParseWebhook(verifier.WebhookConfig(), headers, body, now)
	if err != nil {
		return err
	}

	payment, err := s.findWebhookPayment(event)
	if err != nil {
		return err
	}
	if payment == nil {
		logger.Warnw("webhook_payment_unmatched",
			"event_id", event.EventID,
			"event_type", event.EventType,
			"session_id", event.SessionID,
		)
		return nil
	}
	switch payment.Status {
	case constants.PaymentStatusPending:
	case constants.PaymentStatusExpired:
		// a paid event may still arrive after the local deadline; let the
		// settlement path recover the charge
	default:
		logger.Infow("webhook_payment_already_settled",
			"event_id", event.EventID,
			"payment_id", payment.ID,
			"status", payment.Status,
		)
		return nil
	}

	logger.Infow("webhook_received",
		"event_id", event.EventID,
		"event_type", event.EventType,
		"payment_id", payment.ID,
		"status", event.Status,
	)

	confirmation := &GatewayConfirmation{
		Succeeded: event.Status == constants.PaymentStatusCompleted,
		Status:    event.Status,
		Amount:    event.Amount,
		Currency:  event.Currency,
		PaidAt:    event.PaidAt,
		Raw:       models.JSON(event.Raw),
	}
	_, err = s.settleConfirmation(payment, confirmation)
	switch err {
	case nil, ErrPaymentNotSettled, ErrPaymentAlreadyFinalized:
		// webhook retries only on transport failures; settled or not-yet
		// states both acknowledge
		return nil
	default:
		return err
	}
}

// settleConfirmation applies the provider verdict to a pending or expired
// payment. An expired payment with a confirmed charge is recovered to
// completed: the money moved, so the record must say so.
func (s *PaymentService) settleConfirmation(payment *models.Payment, confirmation *GatewayConfirmation) (*VerifyPaymentResult, error) {
	fromStatus := payment.Status
	if !confirmation.Succeeded {
		if fromStatus == constants.PaymentStatusExpired {
			// no charge at the provider; expired stands
			return nil, ErrPaymentAlreadyFinalized
		}
		switch confirmation.Status {
		case constants.PaymentStatusFailed, constants.PaymentStatusExpired:
			if _, err := s.paymentRepo.TransitionStatus(payment.ID, constants.PaymentStatusPending, confirmation.Status, map[string]interface{}{
				"gateway_payload": confirmation.Raw,
				"updated_at":      time.Now(),
			}); err != nil {
				return nil, err
			}
			logger.Warnw("payment_verify_rejected",
				"payment_id", payment.ID,
				"provider_status", confirmation.Status,
			)
			return nil, ErrGatewayRejected
		default:
			return nil, ErrPaymentNotSettled
		}
	}

	if err := s.checkConfirmedAmount(payment, confirmation); err != nil {
		return nil, err
	}

	paidAt := confirmation.PaidAt
	if paidAt == nil {
		now := time.Now()
		paidAt = &now
	}
	rows, err := s.paymentRepo.TransitionStatus(payment.ID, fromStatus, constants.PaymentStatusCompleted, map[string]interface{}{
		"paid_at":         paidAt,
		"gateway_payload": confirmation.Raw,
		"updated_at":      time.Now(),
	})
	if err != nil {
		return nil, err
	}
	if rows > 0 && fromStatus == constants.PaymentStatusExpired {
		logger.Warnw("payment_recovered_after_expiry",
			"payment_id", payment.ID,
			"payment_no", payment.PaymentNo,
		)
	}
	if rows == 0 {
		// Lost the race. Re-read and treat a completed row as the duplicate
		// confirmation it is.
		current, err := s.paymentRepo.GetByID(payment.ID)
		if err != nil {
			return nil, err
		}
		if current != nil && current.Status == constants.PaymentStatusCompleted {
			order, err := s.orderService.orderRepo.GetByPaymentID(current.ID)
			if err != nil {
				return nil, err
			}
			return &VerifyPaymentResult{Payment: current, Order: order}, nil
		}
		return nil, ErrPaymentAlreadyFinalized
	}

	payment, err = s.paymentRepo.GetByID(payment.ID)
	if err != nil {
		return nil, err
	}
	logger.Infow("payment_completed",
		"payment_id", payment.ID,
		"payment_no", payment.PaymentNo,
		"amount", payment.Amount.String(),
		"method", payment.Method,
	)

	order, err := s.orderService.MaterializeFromPayment(payment)
	if err != nil {
		// The charge stands. Keep the payment completed, flag the gap for
		// operators and ack the client.
		logger.Errorw("payment_reconcile_required",
			"payment_id", payment.ID,
			"payment_no", payment.PaymentNo,
			"error", err,
		)
		if qerr := s.queueClient.EnqueuePaymentReconcileAlert(queue.PaymentReconcileAlertPayload{
			PaymentID: payment.ID,
			Reason:    err.Error(),
		}); qerr != nil {
			logger.Errorw("payment_reconcile_enqueue_failed", "payment_id", payment.ID, "error", qerr)
		}
		return &VerifyPaymentResult{Payment: payment, Order: nil}, nil
	}

	return &VerifyPaymentResult{Payment: payment, Order: order}, nil
}

// checkConfirmedAmount rejects settlements whose charged amount or currency
// differs from the recorded payment.
func (s *PaymentService) checkConfirmedAmount(payment *models.Payment, confirmation *GatewayConfirmation) error {
	if strings.TrimSpace(confirmation.Amount) == "" {
		return nil
	}
	charged, err := decimal.NewFromString(confirmation.Amount)
	if err != nil {
		return ErrPaymentMismatch
	}
	if !charged.Round(2).Equal(payment.Amount.Round(2)) {
		logger.Warnw("payment_amount_mismatch",
			"payment_id", payment.ID,
			"recorded", payment.Amount.String(),
			"charged", charged.StringFixed(2),
		)
		return ErrPaymentMismatch
	}
	if confirmation.Currency != "" && !strings.EqualFold(confirmation.Currency, payment.Currency) {
		logger.Warnw("payment_currency_mismatch",
			"payment_id", payment.ID,
			"recorded", payment.Currency,
			"charged", confirmation.Currency,
		)
		return ErrPaymentMismatch
	}
	return nil
}

// findWebhookPayment locates the payment a webhook event refers to, by
// metadata id first, then by the recorded gateway handle.
func (s *PaymentService) findWebhookPayment(event *stripe.WebhookResult) (*models.Payment, error) {
	if event.PaymentID != 0 {
		payment, err := s.paymentRepo.GetByID(event.PaymentID)
		if err != nil {
			return nil, err
		}
		if payment != nil {
			return payment, nil
		}
	}
	if event.SessionID != "" {
		payment, err := s.paymentRepo.GetByTransactionID(event.SessionID)
		if err != nil {
			return nil, err
		}
		if payment != nil {
			return payment, nil
		}
	}
	if event.PaymentIntentID != "" {
		return s.paymentRepo.GetByTransactionID(event.PaymentIntentID)
	}
	return nil, nil
}
