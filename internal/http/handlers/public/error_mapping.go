package public

import (
	"errors"

	handlershared "github.com/treadline/internal/http/handlers/shared"
	"github.com/treadline/internal/http/response"
	"github.com/treadline/internal/service"

	"github.com/gin-gonic/gin"
)

// mappedHandlerError pairs one service sentinel with its API response.
type mappedHandlerError struct {
	target error
	code   int
	msg    string
}

func respondError(c *gin.Context, code int, msg string, err error) {
	handlershared.RespondError(c, code, msg, err)
}

func respondWithMappedError(c *gin.Context, err error, rules []mappedHandlerError, fallbackCode int, fallbackMsg string) {
	for _, rule := range rules {
		if errors.Is(err, rule.target) {
			respondError(c, rule.code, rule.msg, nil)
			return
		}
	}
	respondError(c, fallbackCode, fallbackMsg, err)
}

var cartMutationErrorRules = []mappedHandlerError{
	{target: service.ErrProductKindInvalid, code: response.CodeBadRequest, msg: "product kind invalid"},
	{target: service.ErrProductUnavailable, code: response.CodeBadRequest, msg: "product not available"},
	{target: service.ErrQuantityInvalid, code: response.CodeBadRequest, msg: "quantity invalid"},
	{target: service.ErrInsufficientStock, code: response.CodeConflict, msg: "insufficient stock"},
	{target: service.ErrCartItemNotFound, code: response.CodeNotFound, msg: "cart item not found"},
}

var paymentIntentErrorRules = []mappedHandlerError{
	{target: service.ErrPaymentMethodInvalid, code: response.CodeBadRequest, msg: "payment method invalid"},
	{target: service.ErrCartEmpty, code: response.CodeBadRequest, msg: "cart is empty"},
	{target: service.ErrProductUnavailable, code: response.CodeBadRequest, msg: "product not available"},
	{target: service.ErrInsufficientStock, code: response.CodeConflict, msg: "insufficient stock"},
	{target: service.ErrGatewayRejected, code: response.CodeBadRequest, msg: "payment gateway rejected the request"},
	{target: service.ErrGatewayUnavailable, code: response.CodeInternal, msg: "payment gateway unavailable"},
}

var paymentVerifyErrorRules = []mappedHandlerError{
	{target: service.ErrPaymentNotFound, code: response.CodeNotFound, msg: "payment not found"},
	{target: service.ErrPaymentMismatch, code: response.CodeBadRequest, msg: "payment details mismatch"},
	{target: service.ErrPaymentNotSettled, code: response.CodeConflict, msg: "payment not settled yet"},
	{target: service.ErrPaymentAlreadyFinalized, code: response.CodeConflict, msg: "payment already finalized"},
	{target: service.ErrGatewayRejected, code: response.CodeBadRequest, msg: "payment was declined"},
	{target: service.ErrGatewayUnavailable, code: response.CodeInternal, msg: "payment gateway unavailable"},
}

func respondCartError(c *gin.Context, err error) {
	respondWithMappedError(c, err, cartMutationErrorRules, response.CodeInternal, "cart update failed")
}

func respondPaymentIntentError(c *gin.Context, err error) {
	respondWithMappedError(c, err, paymentIntentErrorRules, response.CodeInternal, "payment intent failed")
}

func respondPaymentVerifyError(c *gin.Context, err error) {
	respondWithMappedError(c, err, paymentVerifyErrorRules, response.CodeInternal, "payment verification failed")
}
