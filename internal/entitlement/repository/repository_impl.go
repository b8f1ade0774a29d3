package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/solacehealth/solace/internal/entitlement/domain"
)

type repository struct{}

func New() domain.Repository { return &repository{} }

func (r *repository) InsertSubscription(ctx context.Context, db *gorm.DB, sub *domain.Subscription) (bool, error) {
	result := db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "transaction_reference"}},
			DoNothing: true,
		}).
		Create(sub)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repository) SupersedeActive(ctx context.Context, db *gorm.DB, userID string, exceptID int64, at time.Time) error {
	return db.WithContext(ctx).
		Model(&domain.Subscription{}).
		Where("user_id = ? AND status = ? AND id <> ?", userID, domain.SubscriptionStatusActive, exceptID).
		Updates(map[string]any{
			"status":     domain.SubscriptionStatusSuperseded,
			"updated_at": at,
		}).Error
}

func (r *repository) FindActiveByUserID(ctx context.Context, db *gorm.DB, userID string) (*domain.Subscription, error) {
	var sub domain.Subscription
	err := db.WithContext(ctx).
		Where("user_id = ? AND status = ?", userID, domain.SubscriptionStatusActive).
		Order("created_at DESC").
		First(&sub).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNoActiveSubscription
		}
		return nil, err
	}
	return &sub, nil
}

func (r *repository) UpdateStatus(ctx context.Context, db *gorm.DB, id int64, status domain.SubscriptionStatus, at time.Time) error {
	return db.WithContext(ctx).
		Model(&domain.Subscription{}).
		Where("id = ?", id).
		Updates(map[string]any{"status": status, "updated_at": at}).Error
}

func (r *repository) AddMinutes(ctx context.Context, db *gorm.DB, id int64, minutes int, at time.Time) error {
	return db.WithContext(ctx).
		Model(&domain.Subscription{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"remaining_minutes": gorm.Expr("remaining_minutes + ?", minutes),
			"updated_at":        at,
		}).Error
}

func (r *repository) SetRemainingMinutes(ctx context.Context, db *gorm.DB, id int64, minutes int, at time.Time) error {
	return db.WithContext(ctx).
		Model(&domain.Subscription{}).
		Where("id = ?", id).
		Updates(map[string]any{"remaining_minutes": minutes, "updated_at": at}).Error
}

func (r *repository) ListExpiredActive(ctx context.Context, db *gorm.DB, at time.Time, limit int) ([]domain.Subscription, error) {
	var subs []domain.Subscription
	err := db.WithContext(ctx).
		Where("status = ? AND expires_at < ?", domain.SubscriptionStatusActive, at).
		Limit(limit).
		Find(&subs).Error
	return subs, err
}

func (r *repository) AppendLedger(ctx context.Context, db *gorm.DB, entry *domain.UsageLedgerEntry) error {
	return db.WithContext(ctx).Create(entry).Error
}

func (r *repository) ListLedger(ctx context.Context, db *gorm.DB, userID string, limit int) ([]domain.UsageLedgerEntry, error) {
	var entries []domain.UsageLedgerEntry
	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&entries).Error
	return entries, err
}

func (r *repository) InsertEmergencyAccess(ctx context.Context, db *gorm.DB, grant *domain.EmergencyAccess) (bool, error) {
	result := db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "transaction_reference"}},
			DoNothing: true,
		}).
		Create(grant)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repository) FindActiveEmergencyAccess(ctx context.Context, db *gorm.DB, userID string, at time.Time) (*domain.EmergencyAccess, error) {
	var grant domain.EmergencyAccess
	err := db.WithContext(ctx).
		Where("user_id = ? AND expires_at > ?", userID, at).
		Order("expires_at DESC").
		First(&grant).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &grant, nil
}
