package queue

import (
	"encoding/json"

	"github.com/treadline/internal/constants"

	"github.com/hibiken/asynq"
)

const (
	// TaskPaymentExpire marks an abandoned pending payment expired.
	TaskPaymentExpire = constants.TaskPaymentExpire
	// TaskPaymentReconcileAlert flags a charged payment whose order failed
	// to materialize.
	TaskPaymentReconcileAlert = constants.TaskPaymentReconcileAlert
)

// PaymentExpirePayload carries the payment a delayed expiry task targets.
type PaymentExpirePayload struct {
	PaymentID uint `json:"payment_id"`
}

// PaymentReconcileAlertPayload carries a payment needing manual
// reconciliation and the failure that triggered it.
type PaymentReconcileAlertPayload struct {
	PaymentID uint   `json:"payment_id"`
	Reason    string `json:"reason"`
}

// NewPaymentExpireTask builds the delayed expiry task.
func NewPaymentExpireTask(payload PaymentExpirePayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskPaymentExpire, body), nil
}

// NewPaymentReconcileAlertTask builds the reconciliation alert task.
func NewPaymentReconcileAlertTask(payload PaymentReconcileAlertPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskPaymentReconcileAlert, body), nil
}
