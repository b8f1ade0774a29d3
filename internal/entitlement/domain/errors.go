package domain

import "errors"

var (
	ErrUnknownTier          = errors.New("unknown_tier")
	ErrUnknownBillingCycle  = errors.New("unknown_billing_cycle")
	ErrNoActiveSubscription = errors.New("no_active_subscription")
	ErrInvalidMinutes       = errors.New("invalid_minutes")
)
