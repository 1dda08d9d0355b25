package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	checkoutdomain "github.com/lumeven/funnel/internal/checkout/domain"
	ledgerdomain "github.com/lumeven/funnel/internal/ledger/domain"
	paymentdomain "github.com/lumeven/funnel/internal/payment/domain"
	"github.com/lumeven/funnel/internal/slots"
)

type errorPayload struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type errorResponse struct {
	Success bool         `json:"success"`
	Error   errorPayload `json:"error"`
}

var (
	ErrInvalidRequest = errors.New("invalid_request")
	ErrRateLimited    = errors.New("rate_limited")
	ErrNotFound       = errors.New("not_found")
)

// ErrorHandlingMiddleware catches every error raised by a handler, maps it
// to a status code and returns a structured payload. Nothing propagates far
// enough to crash the process.
func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Success: false, Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	var provErr *checkoutdomain.ProviderError
	if errors.As(err, &provErr) {
		return http.StatusBadGateway, errorPayload{
			Type:    "provider_error",
			Message: provErr.Error(),
		}
	}

	switch {
	case isValidationError(err):
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: validationCode(err),
		}
	case errors.Is(err, checkoutdomain.ErrInvalidConfig),
		errors.Is(err, paymentdomain.ErrInvalidConfig):
		return http.StatusBadRequest, errorPayload{
			Type:    "configuration_error",
			Message: "provider not configured",
		}
	case errors.Is(err, paymentdomain.ErrInvalidSignature):
		return http.StatusUnauthorized, errorPayload{
			Type:    "signature_error",
			Message: "invalid webhook signature",
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case errors.Is(err, ledgerdomain.ErrAlreadyCompleted):
		return http.StatusConflict, errorPayload{
			Type:    "already_completed",
			Message: "registration already completed",
		}
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests, errorPayload{
			Type:    "rate_limited",
			Message: "too many requests",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

func isValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, checkoutdomain.ErrInvalidAmount),
		errors.Is(err, checkoutdomain.ErrInvalidEmail),
		errors.Is(err, checkoutdomain.ErrInvalidMethod),
		errors.Is(err, checkoutdomain.ErrMissingToken),
		errors.Is(err, checkoutdomain.ErrMissingPayer),
		errors.Is(err, checkoutdomain.ErrNoActiveBatch),
		errors.Is(err, checkoutdomain.ErrUnknownProvider),
		errors.Is(err, ledgerdomain.ErrInvalidBirthdate),
		errors.Is(err, ledgerdomain.ErrAgeOutOfRange),
		errors.Is(err, paymentdomain.ErrInvalidProvider),
		errors.Is(err, paymentdomain.ErrInvalidPayload),
		errors.Is(err, paymentdomain.ErrInvalidEvent):
		return true
	default:
		return false
	}
}

func validationCode(err error) string {
	for _, candidate := range []error{
		checkoutdomain.ErrInvalidAmount,
		checkoutdomain.ErrInvalidEmail,
		checkoutdomain.ErrInvalidMethod,
		checkoutdomain.ErrMissingToken,
		checkoutdomain.ErrMissingPayer,
		checkoutdomain.ErrNoActiveBatch,
		checkoutdomain.ErrUnknownProvider,
		ledgerdomain.ErrInvalidBirthdate,
		ledgerdomain.ErrAgeOutOfRange,
		paymentdomain.ErrInvalidProvider,
		paymentdomain.ErrInvalidPayload,
		paymentdomain.ErrInvalidEvent,
	} {
		if errors.Is(err, candidate) {
			return candidate.Error()
		}
	}
	return "invalid_request"
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, ledgerdomain.ErrNotFound),
		errors.Is(err, checkoutdomain.ErrPaymentNotFound),
		errors.Is(err, paymentdomain.ErrProviderNotFound),
		errors.Is(err, slots.ErrUnknownBatch),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}
