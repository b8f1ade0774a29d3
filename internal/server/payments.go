package server

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	paymentdomain "github.com/solacehealth/solace/internal/payment/domain"
)

// CreateQuote prices a payment request without executing it.
func (s *Server) CreateQuote(c *gin.Context) {
	var req paymentdomain.PaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	quote, err := s.payments.GetQuote(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, quote)
}

// CheckAffordability reports whether the sender could cover the quoted total
// from the requested chain and currency.
func (s *Server) CheckAffordability(c *gin.Context) {
	var req paymentdomain.PaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if req.SenderAddress == "" {
		AbortWithError(c, newValidationError("sender_address", "required", "sender address is required"))
		return
	}

	canPay, err := s.payments.CanMakePayment(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"can_pay": canPay})
}

type createPaymentRequest struct {
	paymentdomain.PaymentRequest
	Quote *paymentdomain.PaymentQuote `json:"quote,omitempty"`
}

// CreatePayment executes a payment end to end: quote, transfer, confirmation
// depth, settlement relay and entitlement grant. A stale attached quote is
// re-priced, not rejected.
func (s *Server) CreatePayment(c *gin.Context) {
	var req createPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	if allowed, _ := s.limiter.AllowUser(c.Request.Context(), req.Metadata.UserID); !allowed {
		AbortWithError(c, ErrRateLimited)
		return
	}

	result, err := s.payments.ProcessPayment(c.Request.Context(), req.PaymentRequest, req.Quote)
	if err != nil {
		// Execution failures carry a result with the failure code and any
		// transaction reference already broadcast. Return it alongside the
		// mapped status so the caller can reconcile.
		if result != nil && result.ErrorCode != "" {
			status, _ := mapError(err)
			c.JSON(status, result)
			return
		}
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetBalances reports native and stable holdings for an address on a chain,
// valued in USD at current oracle rates.
func (s *Server) GetBalances(c *gin.Context) {
	chainID := c.Param("chain_id")
	address := c.Param("address")

	balances, err := s.payments.GetUserBalances(c.Request.Context(), chainID, address)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"balances": balances})
}

// GetPaymentByReference looks a payment up by its transaction reference.
func (s *Server) GetPaymentByReference(c *gin.Context) {
	record, err := s.payments.GetPayment(c.Request.Context(), c.Param("reference"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, record)
}

// ListUserPayments returns a cursor page of the user's payment history,
// newest first.
func (s *Server) ListUserPayments(c *gin.Context) {
	userID := c.Param("user_id")
	pageSize := parseLimit(c.Query("page_size"), 50)
	pageToken := c.Query("page_token")

	records, info, err := s.payments.PaymentHistory(c.Request.Context(), userID, pageToken, pageSize)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"payments": records, "page_info": info})
}

func parseLimit(raw string, def int) int {
	if raw == "" {
		return def
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 || limit > 500 {
		return def
	}
	return limit
}
