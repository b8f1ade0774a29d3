// Package domain contains persistence models for subscriptions, usage, and
// emergency access grants.
package domain

import (
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// SubscriptionStatus represents lifecycle states for a subscription.
type SubscriptionStatus string

const (
	SubscriptionStatusActive     SubscriptionStatus = "ACTIVE"
	SubscriptionStatusSuperseded SubscriptionStatus = "SUPERSEDED"
	SubscriptionStatusExpired    SubscriptionStatus = "EXPIRED"
	SubscriptionStatusCanceled   SubscriptionStatus = "CANCELED"
)

// BillingCycle is the paid period length.
type BillingCycle string

const (
	BillingCycleMonthly   BillingCycle = "monthly"
	BillingCycleQuarterly BillingCycle = "quarterly"
	BillingCycleYearly    BillingCycle = "yearly"
	BillingCycleAnnual    BillingCycle = "annual"
)

// Normalize maps the empty cycle to monthly and rejects values outside the
// catalog. Annual is an accepted alias of yearly.
func (c BillingCycle) Normalize() (BillingCycle, error) {
	switch c {
	case "":
		return BillingCycleMonthly, nil
	case BillingCycleMonthly, BillingCycleQuarterly, BillingCycleYearly, BillingCycleAnnual:
		return c, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownBillingCycle, c)
	}
}

// ExpiresFrom returns the calendar end of one cycle starting at start.
func (c BillingCycle) ExpiresFrom(start time.Time) time.Time {
	switch c {
	case BillingCycleQuarterly:
		return start.AddDate(0, 3, 0)
	case BillingCycleYearly, BillingCycleAnnual:
		return start.AddDate(1, 0, 0)
	default:
		return start.AddDate(0, 1, 0)
	}
}

// Subscription grants a user session minutes for one billing cycle. The
// transaction reference is unique so replayed payment confirmations cannot
// double-grant.
type Subscription struct {
	ID                   snowflake.ID       `gorm:"primaryKey"`
	UserID               string             `gorm:"type:text;not null;index"`
	TierID               string             `gorm:"type:text;not null"`
	Status               SubscriptionStatus `gorm:"type:text;not null;index"`
	BillingCycle         BillingCycle       `gorm:"type:text;not null"`
	RemainingMinutes     int                `gorm:"not null"`
	TransactionReference string             `gorm:"type:text;not null;uniqueIndex"`
	StartsAt             time.Time          `gorm:"not null"`
	ExpiresAt            time.Time          `gorm:"not null;index"`
	CreatedAt            time.Time          `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt            time.Time          `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Subscription) TableName() string { return "subscriptions" }

// LedgerEntryType classifies a usage ledger entry.
type LedgerEntryType string

const (
	LedgerEntryGrant   LedgerEntryType = "grant"
	LedgerEntryTopUp   LedgerEntryType = "topup"
	LedgerEntryConsume LedgerEntryType = "consume"
)

// UsageLedgerEntry is the append-only record of every minute movement. The
// ledger is never updated or deleted; balances are snapshots at write time.
type UsageLedgerEntry struct {
	ID               snowflake.ID    `gorm:"primaryKey"`
	UserID           string          `gorm:"type:text;not null;index"`
	SubscriptionID   snowflake.ID    `gorm:"not null;index"`
	EntryType        LedgerEntryType `gorm:"type:text;not null"`
	SessionID        *string         `gorm:"type:text"`
	SessionType      *string         `gorm:"type:text"`
	MinutesRequested int             `gorm:"not null"`
	MinutesApplied   int             `gorm:"not null"`
	BalanceAfter     int             `gorm:"not null"`
	Reference        *string         `gorm:"type:text;uniqueIndex:uix_usage_ledger_topup_ref,where:entry_type = 'topup'"`
	CreatedAt        time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (UsageLedgerEntry) TableName() string { return "usage_ledger_entries" }

// EmergencyAccess is a 24 hour crisis access grant, independent of any
// subscription.
type EmergencyAccess struct {
	ID                   snowflake.ID `gorm:"primaryKey"`
	UserID               string       `gorm:"type:text;not null;index"`
	TransactionReference string       `gorm:"type:text;not null;uniqueIndex"`
	GrantedAt            time.Time    `gorm:"not null"`
	ExpiresAt            time.Time    `gorm:"not null;index"`
	CreatedAt            time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (EmergencyAccess) TableName() string { return "emergency_access_grants" }

// Tier is a subscription plan.
type Tier struct {
	ID                 string          `json:"id"`
	Name               string          `json:"name"`
	MonthlyPriceUSD    decimal.Decimal `json:"monthly_price_usd"`
	MinutesPerCycle    int             `json:"minutes_per_cycle"`
	TopUpRatePerMinute decimal.Decimal `json:"topup_rate_per_minute"`
	GroupSessions      bool            `json:"group_sessions"`
	EmergencySessions  bool            `json:"emergency_sessions"`
}
