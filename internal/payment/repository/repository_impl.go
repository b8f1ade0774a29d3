package repository

import (
	"context"
	"errors"
	"strconv"
	"time"

	"gorm.io/gorm"

	"github.com/solacehealth/solace/internal/payment/domain"
	pkgdb "github.com/solacehealth/solace/pkg/db"
	"github.com/solacehealth/solace/pkg/db/pagination"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, record *domain.PaymentRecord) error
	UpdateStatus(ctx context.Context, db *gorm.DB, id int64, status domain.PaymentStatus, at time.Time) error
	SetCurrency(ctx context.Context, db *gorm.DB, id int64, currency domain.Currency, at time.Time) error
	SetTransactionReference(ctx context.Context, db *gorm.DB, id int64, reference string, at time.Time) error
	SetSettlement(ctx context.Context, db *gorm.DB, id int64, reference string, unreconciled bool, at time.Time) error
	SetFailure(ctx context.Context, db *gorm.DB, id int64, code string, at time.Time) error
	FindByReference(ctx context.Context, db *gorm.DB, reference string) (*domain.PaymentRecord, error)
	ListByUser(ctx context.Context, db *gorm.DB, userID string, cursor *pagination.Cursor, limit int) ([]domain.PaymentRecord, error)
}

type repository struct{}

func New() Repository { return &repository{} }

func (r *repository) Insert(ctx context.Context, db *gorm.DB, record *domain.PaymentRecord) error {
	return db.WithContext(ctx).Create(record).Error
}

func (r *repository) UpdateStatus(ctx context.Context, db *gorm.DB, id int64, status domain.PaymentStatus, at time.Time) error {
	return db.WithContext(ctx).
		Model(&domain.PaymentRecord{}).
		Where("id = ?", id).
		Updates(map[string]any{"status": status, "updated_at": at}).Error
}

// SetCurrency records the asset that actually moved when execution fell
// back from the stable path to native.
func (r *repository) SetCurrency(ctx context.Context, db *gorm.DB, id int64, currency domain.Currency, at time.Time) error {
	return db.WithContext(ctx).
		Model(&domain.PaymentRecord{}).
		Where("id = ?", id).
		Updates(map[string]any{"currency": currency, "updated_at": at}).Error
}

func (r *repository) SetTransactionReference(ctx context.Context, db *gorm.DB, id int64, reference string, at time.Time) error {
	err := db.WithContext(ctx).
		Model(&domain.PaymentRecord{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"transaction_reference": reference,
			"status":                domain.PaymentStatusSubmitted,
			"updated_at":            at,
		}).Error
	if pkgdb.IsDuplicateKeyErr(err) {
		// Another record already owns this on-chain reference.
		return domain.ErrDuplicatePayment
	}
	return err
}

func (r *repository) SetSettlement(ctx context.Context, db *gorm.DB, id int64, reference string, unreconciled bool, at time.Time) error {
	return db.WithContext(ctx).
		Model(&domain.PaymentRecord{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"settlement_reference": reference,
			"unreconciled":         unreconciled,
			"status":               domain.PaymentStatusSettled,
			"updated_at":           at,
		}).Error
}

func (r *repository) SetFailure(ctx context.Context, db *gorm.DB, id int64, code string, at time.Time) error {
	return db.WithContext(ctx).
		Model(&domain.PaymentRecord{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"failure_code": code,
			"status":       domain.PaymentStatusFailed,
			"updated_at":   at,
		}).Error
}

func (r *repository) FindByReference(ctx context.Context, db *gorm.DB, reference string) (*domain.PaymentRecord, error) {
	var record domain.PaymentRecord
	err := db.WithContext(ctx).
		Where("transaction_reference = ?", reference).
		First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrPaymentNotFound
		}
		return nil, err
	}
	return &record, nil
}

// ListByUser pages through a user's payments newest first. Snowflake ids
// are time-ordered, so the cursor is the last seen id.
func (r *repository) ListByUser(ctx context.Context, db *gorm.DB, userID string, cursor *pagination.Cursor, limit int) ([]domain.PaymentRecord, error) {
	q := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("id DESC").
		Limit(limit)
	if cursor != nil && cursor.ID != "" {
		if lastID, err := strconv.ParseInt(cursor.ID, 10, 64); err == nil {
			q = q.Where("id < ?", lastID)
		}
	}

	var records []domain.PaymentRecord
	err := q.Find(&records).Error
	return records, err
}
