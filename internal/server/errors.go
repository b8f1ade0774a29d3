package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/solacehealth/solace/internal/chain"
	entdomain "github.com/solacehealth/solace/internal/entitlement/domain"
	paymentdomain "github.com/solacehealth/solace/internal/payment/domain"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type    string            `json:"type"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrInternal       = errors.New("internal_error")
	ErrNotFound       = errors.New("not_found")
	ErrInvalidRequest = errors.New("invalid_request")
	ErrRateLimited    = errors.New("rate_limited")
)

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
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	if code, ok := validationCode(err); ok {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{
				{
					Field:   validationField(code),
					Code:    code,
					Message: "invalid value",
				},
			},
		}
	}

	switch {
	case errors.Is(err, paymentdomain.ErrInsufficientBalance):
		return http.StatusPaymentRequired, errorPayload{
			Type:    "insufficient_balance",
			Message: "insufficient balance on source chain",
		}
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests, errorPayload{
			Type:    "rate_limited",
			Message: "too many payment submissions",
		}
	case errors.Is(err, paymentdomain.ErrDuplicatePayment):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: "payment already processed",
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case errors.Is(err, paymentdomain.ErrVerificationTimeout):
		return http.StatusGatewayTimeout, errorPayload{
			Type:    "verification_timeout",
			Message: "transaction not confirmed within the verification window",
		}
	case errors.Is(err, paymentdomain.ErrSubmissionFailed),
		errors.Is(err, paymentdomain.ErrTransactionReverted):
		return http.StatusBadGateway, errorPayload{
			Type:    "payment_failed",
			Message: err.Error(),
		}
	case errors.Is(err, ErrInternal):
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

func validationCode(err error) (string, bool) {
	switch {
	case errors.Is(err, ErrInvalidRequest):
		return "invalid_request", true
	case errors.Is(err, chain.ErrUnsupportedChain):
		return "unsupported_chain", true
	case errors.Is(err, chain.ErrNoStableAsset):
		return "no_stable_asset", true
	case errors.Is(err, paymentdomain.ErrInvalidAddress):
		return "invalid_address", true
	case errors.Is(err, paymentdomain.ErrInvalidAmount):
		return "invalid_amount", true
	case errors.Is(err, paymentdomain.ErrInvalidPageToken):
		return "invalid_page_token", true
	case errors.Is(err, paymentdomain.ErrUnknownPaymentType):
		return "unknown_payment_type", true
	case errors.Is(err, entdomain.ErrUnknownTier):
		return "unknown_tier", true
	case errors.Is(err, entdomain.ErrUnknownBillingCycle):
		return "unknown_billing_cycle", true
	case errors.Is(err, entdomain.ErrInvalidMinutes):
		return "invalid_minutes", true
	default:
		return "", false
	}
}

func validationField(code string) string {
	switch code {
	case "unsupported_chain", "no_stable_asset":
		return "source_chain_id"
	case "invalid_address":
		return "address"
	case "invalid_amount":
		return "amount_usd"
	case "invalid_page_token":
		return "page_token"
	case "unknown_payment_type":
		return "payment_type"
	case "unknown_tier":
		return "tier_id"
	case "unknown_billing_cycle":
		return "billing_cycle"
	case "invalid_minutes":
		return "minutes"
	default:
		return "request"
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, paymentdomain.ErrPaymentNotFound),
		errors.Is(err, entdomain.ErrNoActiveSubscription),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

// classifyErrorForLog labels request errors for structured logs without
// leaking payload contents.
func classifyErrorForLog(err error) (string, string) {
	if err == nil {
		return "", ""
	}
	if asValidationErrors(err) != nil {
		return "validation_error", "invalid_request"
	}
	if code, ok := validationCode(err); ok {
		return "validation_error", code
	}
	status, payload := mapError(err)
	if status >= http.StatusInternalServerError {
		return "internal_error", payload.Type
	}
	return "domain_error", payload.Type
}
