// Package domain contains the payment types shared by quoting, execution,
// verification, and settlement.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Currency selects which asset on the source chain pays the invoice.
type Currency string

const (
	CurrencyNative Currency = "native"
	CurrencyStable Currency = "stable"
)

// PaymentType describes what the payment buys.
type PaymentType string

const (
	PaymentTypeSubscription     PaymentType = "subscription"
	PaymentTypeSessionTopUp     PaymentType = "session_topup"
	PaymentTypeEmergencySession PaymentType = "emergency_session"
)

// Valid reports whether the type is in the catalog.
func (t PaymentType) Valid() bool {
	switch t {
	case PaymentTypeSubscription, PaymentTypeSessionTopUp, PaymentTypeEmergencySession:
		return true
	default:
		return false
	}
}

// PaymentStatus is the lifecycle of a payment record.
type PaymentStatus string

const (
	PaymentStatusQuoted    PaymentStatus = "QUOTED"
	PaymentStatusSubmitted PaymentStatus = "SUBMITTED"
	PaymentStatusConfirmed PaymentStatus = "CONFIRMED"
	PaymentStatusSettled   PaymentStatus = "SETTLED"
	PaymentStatusFailed    PaymentStatus = "FAILED"
)

// Metadata rides along with a payment and drives entitlement application.
// Top-up minutes are priced from the paid amount, so the caller never
// supplies a minute count.
type Metadata struct {
	UserID       string      `json:"user_id" binding:"required"`
	PaymentType  PaymentType `json:"payment_type" binding:"required,payment_type"`
	TierID       string      `json:"tier_id,omitempty"`
	BillingCycle string      `json:"billing_cycle,omitempty"`
	SessionID    string      `json:"session_id,omitempty"`
}

// PaymentRequest is the caller's intent to pay a USD amount from a chain.
// SenderAddress is optional; when present the balance is checked before any
// transfer is attempted.
type PaymentRequest struct {
	AmountUSD          decimal.Decimal `json:"amount_usd"`
	Currency           Currency        `json:"currency"`
	SourceChainID      string          `json:"source_chain_id"`
	SenderAddress      string          `json:"sender_address,omitempty"`
	DestinationAddress string          `json:"destination_address,omitempty"`
	Metadata           Metadata        `json:"metadata"`
}

// PaymentQuote prices a request against current oracle rates. A quote is a
// display artifact; execution re-quotes when the quote has gone stale.
type PaymentQuote struct {
	SourceChainID        string          `json:"source_chain_id"`
	AmountUSD            decimal.Decimal `json:"amount_usd"`
	ProcessingFeeUSD     decimal.Decimal `json:"processing_fee_usd"`
	TotalCostUSD         decimal.Decimal `json:"total_cost_usd"`
	NativeAmountRequired decimal.Decimal `json:"native_amount_required"`
	NativeSymbol         string          `json:"native_symbol"`
	StableAmountRequired decimal.Decimal `json:"stable_amount_required,omitempty"`
	StableSymbol         string          `json:"stable_symbol,omitempty"`
	EstimatedGasUSD      decimal.Decimal `json:"estimated_gas_usd"`
	PriceSource          string          `json:"price_source"`
	GeneratedAt          time.Time       `json:"generated_at"`
}

// Stale reports whether the quote is older than freshness at the given time.
func (q PaymentQuote) Stale(now time.Time, freshness time.Duration) bool {
	return now.Sub(q.GeneratedAt) > freshness
}

// PaymentResult is the terminal outcome of ProcessPayment.
type PaymentResult struct {
	Success              bool            `json:"success"`
	TransactionReference string          `json:"transaction_reference,omitempty"`
	SettlementReference  string          `json:"settlement_reference,omitempty"`
	Unreconciled         bool            `json:"unreconciled,omitempty"`
	Confirmations        uint64          `json:"confirmations,omitempty"`
	BlockHeight          uint64          `json:"block_height,omitempty"`
	GasUsed              decimal.Decimal `json:"gas_used,omitempty"`
	ErrorCode            string          `json:"error_code,omitempty"`
	ErrorMessage         string          `json:"error_message,omitempty"`
}

// PaymentRecord is the audit row persisted for every payment attempt.
type PaymentRecord struct {
	ID                   snowflake.ID      `gorm:"primaryKey"`
	UserID               string            `gorm:"type:text;not null;index"`
	SourceChainID        string            `gorm:"type:text;not null;index"`
	Currency             Currency          `gorm:"type:text;not null"`
	AmountUSD            decimal.Decimal   `gorm:"type:numeric(18,2);not null"`
	ProcessingFeeUSD     decimal.Decimal   `gorm:"type:numeric(18,2);not null"`
	TotalCostUSD         decimal.Decimal   `gorm:"type:numeric(18,2);not null"`
	Status               PaymentStatus     `gorm:"type:text;not null;index"`
	PaymentType          PaymentType       `gorm:"type:text;not null"`
	TransactionReference *string           `gorm:"type:text;uniqueIndex"`
	SettlementReference  *string           `gorm:"type:text"`
	Unreconciled         bool              `gorm:"not null;default:false"`
	FailureCode          *string           `gorm:"type:text"`
	Metadata             datatypes.JSONMap `gorm:"type:jsonb"`
	CreatedAt            time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt            time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (PaymentRecord) TableName() string { return "payments" }

// Balance reports a user's holdings for one asset on one chain.
type Balance struct {
	ChainID  string          `json:"chain_id"`
	Symbol   string          `json:"symbol"`
	Amount   decimal.Decimal `json:"amount"`
	USDValue decimal.Decimal `json:"usd_value"`
}

// TransferReceipt is what an adapter returns after broadcasting a transfer.
type TransferReceipt struct {
	TransactionReference string
	GasUsed              decimal.Decimal
}

// TransactionState is an adapter's view of an on-chain transaction.
type TransactionState struct {
	Found         bool
	Failed        bool
	Confirmations uint64
	BlockHeight   uint64
}
