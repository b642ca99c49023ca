package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/treadline/internal/logger"
	"github.com/treadline/internal/provider"
	"github.com/treadline/internal/queue"
	"github.com/treadline/internal/service"

	"github.com/hibiken/asynq"
)

// Consumer handles the queued background tasks.
type Consumer struct {
	*provider.Container
}

// NewConsumer creates the consumer.
func NewConsumer(c *provider.Container) *Consumer {
	return &Consumer{
		Container: c,
	}
}

// Register wires the task handlers.
func (c *Consumer) Register(mux *asynq.ServeMux) {
	if c == nil || mux == nil {
		logger.Debugw("worker_register_skip_nil", "consumer_nil", c == nil, "mux_nil", mux == nil)
		return
	}
	mux.HandleFunc(queue.TaskPaymentExpire, c.handlePaymentExpire)
	mux.HandleFunc(queue.TaskPaymentReconcileAlert, c.handlePaymentReconcileAlert)
}

func (c *Consumer) handlePaymentExpire(_ context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		logger.Debugw("worker_payment_expire_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	var payload queue.PaymentExpirePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_payment_expire_unmarshal_failed", "error", err)
		return err
	}
	if payload.PaymentID == 0 {
		logger.Debugw("worker_payment_expire_skip_invalid_payload", "payment_id", payload.PaymentID)
		return nil
	}
	if c.PaymentService == nil {
		logger.Warnw("worker_payment_expire_skip_payment_service_nil", "payment_id", payload.PaymentID)
		return nil
	}
	expired, err := c.PaymentService.ExpirePayment(payload.PaymentID, time.Now())
	if err != nil {
		switch {
		case errors.Is(err, service.ErrPaymentNotFound):
			logger.Debugw("worker_payment_expire_skip_not_found", "payment_id", payload.PaymentID)
			return nil
		default:
			logger.Warnw("worker_payment_expire_failed", "payment_id", payload.PaymentID, "error", err)
			return err
		}
	}
	if expired {
		logger.Infow("worker_payment_expired", "payment_id", payload.PaymentID)
	} else {
		logger.Debugw("worker_payment_expire_skip_not_pending", "payment_id", payload.PaymentID)
	}
	return nil
}

func (c *Consumer) handlePaymentReconcileAlert(_ context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		logger.Debugw("worker_payment_reconcile_alert_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	var payload queue.PaymentReconcileAlertPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_payment_reconcile_alert_unmarshal_failed", "error", err)
		return err
	}
	if payload.PaymentID == 0 {
		logger.Debugw("worker_payment_reconcile_alert_skip_invalid_payload", "payment_id", payload.PaymentID)
		return nil
	}
	if c.PaymentRepo == nil {
		logger.Errorw("worker_payment_reconcile_alert",
			"payment_id", payload.PaymentID,
			"reason", payload.Reason,
		)
		return nil
	}
	payment, err := c.PaymentRepo.GetByID(payload.PaymentID)
	if err != nil {
		logger.Warnw("worker_payment_reconcile_alert_fetch_failed", "payment_id", payload.PaymentID, "error", err)
		return err
	}
	if payment == nil {
		logger.Warnw("worker_payment_reconcile_alert_payment_missing",
			"payment_id", payload.PaymentID,
			"reason", payload.Reason,
		)
		return nil
	}
	// The payment is charged but no order exists for it. An operator has to
	// resolve this by hand, so the alert stays at error level.
	logger.Errorw("worker_payment_reconcile_alert",
		"payment_id", payment.ID,
		"payment_no", payment.PaymentNo,
		"status", payment.Status,
		"amount", payment.Amount.String(),
		"currency", payment.Currency,
		"reason", payload.Reason,
	)
	return nil
}
