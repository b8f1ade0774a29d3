package domain

import (
	"context"
	"time"

	"gorm.io/gorm"
)

type Repository interface {
	// InsertSubscription inserts with ON CONFLICT DO NOTHING on the
	// transaction reference. Returns false when the reference was already
	// applied.
	InsertSubscription(ctx context.Context, db *gorm.DB, sub *Subscription) (bool, error)
	SupersedeActive(ctx context.Context, db *gorm.DB, userID string, exceptID int64, at time.Time) error
	FindActiveByUserID(ctx context.Context, db *gorm.DB, userID string) (*Subscription, error)
	UpdateStatus(ctx context.Context, db *gorm.DB, id int64, status SubscriptionStatus, at time.Time) error
	AddMinutes(ctx context.Context, db *gorm.DB, id int64, minutes int, at time.Time) error
	SetRemainingMinutes(ctx context.Context, db *gorm.DB, id int64, minutes int, at time.Time) error
	ListExpiredActive(ctx context.Context, db *gorm.DB, at time.Time, limit int) ([]Subscription, error)

	AppendLedger(ctx context.Context, db *gorm.DB, entry *UsageLedgerEntry) error
	ListLedger(ctx context.Context, db *gorm.DB, userID string, limit int) ([]UsageLedgerEntry, error)

	// InsertEmergencyAccess is idempotent on the transaction reference.
	InsertEmergencyAccess(ctx context.Context, db *gorm.DB, grant *EmergencyAccess) (bool, error)
	FindActiveEmergencyAccess(ctx context.Context, db *gorm.DB, userID string, at time.Time) (*EmergencyAccess, error)
}
