// Package access answers "can this user do this right now" questions by
// projecting entitlement state. It owns no minute accounting of its own.
package access

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// SessionType mirrors the bookable session kinds.
type SessionType string

const (
	SessionIndividual SessionType = "individual"
	SessionGroup      SessionType = "group"
	SessionEmergency  SessionType = "emergency"
)

// Therapist is the minimal provider record access control needs.
type Therapist struct {
	ID          string    `gorm:"type:text;primaryKey"`
	DisplayName string    `gorm:"type:text;not null"`
	Verified    bool      `gorm:"not null;default:false"`
	CreatedAt   time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt   time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Therapist) TableName() string { return "therapists" }

// Snapshot is a user's current access state.
type Snapshot struct {
	UserID              string     `json:"user_id"`
	HasActiveSub        bool       `json:"has_active_subscription"`
	TierID              string     `json:"tier_id,omitempty"`
	RemainingMinutes    int        `json:"remaining_minutes"`
	SubscriptionExpires *time.Time `json:"subscription_expires,omitempty"`
	EmergencyAccess     bool       `json:"emergency_access"`
	EmergencyExpires    *time.Time `json:"emergency_expires,omitempty"`
}

// BookingDecision is the outcome of a booking eligibility check.
type BookingDecision struct {
	Allowed          bool            `json:"allowed"`
	Reason           string          `json:"reason,omitempty"`
	RemainingMinutes int             `json:"remaining_minutes"`
	RequiredTopUpUSD decimal.Decimal `json:"required_topup_usd,omitempty"`
	SubscriptionID   snowflake.ID    `json:"-"`
}
