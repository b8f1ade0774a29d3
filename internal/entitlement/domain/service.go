package domain

import (
	"context"

	"github.com/shopspring/decimal"
)

// ApplyPaymentRequest applies a confirmed payment to a user's entitlements.
// The transaction reference is the idempotency key. Top-up minutes are
// derived from AmountUSD at the tier's per-minute rate, never supplied.
type ApplyPaymentRequest struct {
	UserID               string
	PaymentType          string
	TierID               string
	BillingCycle         BillingCycle
	AmountUSD            decimal.Decimal
	TransactionReference string
}

// ApplyPaymentResult reports what the payment granted. Replayed references
// return AlreadyApplied with no state change.
type ApplyPaymentResult struct {
	AlreadyApplied   bool
	SubscriptionID   int64
	RemainingMinutes int
}

// ConsumeMinutesRequest draws session minutes down from the active
// subscription.
type ConsumeMinutesRequest struct {
	UserID      string
	SessionID   string
	SessionType string
	Minutes     int
}

// ConsumeMinutesResult reports the post-consumption balance. The balance
// floors at zero; overdrawn minutes are recorded but not carried negative.
type ConsumeMinutesResult struct {
	MinutesApplied   int
	RemainingMinutes int
}

type Service interface {
	ApplyPayment(ctx context.Context, req ApplyPaymentRequest) (*ApplyPaymentResult, error)
	ConsumeMinutes(ctx context.Context, req ConsumeMinutesRequest) (*ConsumeMinutesResult, error)
	ActiveSubscription(ctx context.Context, userID string) (*Subscription, error)
	ActiveEmergencyAccess(ctx context.Context, userID string) (*EmergencyAccess, error)
	UsageHistory(ctx context.Context, userID string, limit int) ([]UsageLedgerEntry, error)
}
