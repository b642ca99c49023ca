package public

import (
	"errors"
	"io"
	"net/http"
	"time"

	handlershared "github.com/treadline/internal/http/handlers/shared"
	"github.com/treadline/internal/payment/stripe"

	"github.com/gin-gonic/gin"
)

const webhookBodyLimit = 1 << 20

// StripeWebhook handles signed provider notifications. It answers plain
// HTTP statuses, not the API envelope: the provider retries on non-2xx.
func (h *Handler) StripeWebhook(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, webhookBodyLimit))
	if err != nil {
		c.String(http.StatusBadRequest, "read body failed")
		return
	}

	headers := map[string]string{
		"Stripe-Signature": c.GetHeader("Stripe-Signature"),
	}

	if err := h.PaymentService.HandleStripeWebhook(headers, body, time.Now()); err != nil {
		if errors.Is(err, stripe.ErrSignatureInvalid) || errors.Is(err, stripe.ErrResponseInvalid) {
			// bad signature or malformed payload; retrying will not help
			handlershared.RequestLog(c).Warnw("webhook_rejected", "error", err)
			c.String(http.StatusBadRequest, "invalid webhook")
			return
		}
		handlershared.RequestLog(c).Errorw("webhook_handle_failed", "error", err)
		c.String(http.StatusInternalServerError, "webhook failed")
		return
	}
	c.String(http.StatusOK, "ok")
}
