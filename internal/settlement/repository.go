package settlement

import (
	"context"
	"time"

	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, row *FallbackSettlement) error
	ListUnrelayed(ctx context.Context, db *gorm.DB, limit int) ([]FallbackSettlement, error)
	MarkRelayed(ctx context.Context, db *gorm.DB, id int64, bridgeRef string, at time.Time) error
	RecordAttempt(ctx context.Context, db *gorm.DB, id int64, lastError string) error
}

type repository struct{}

func NewRepository() Repository { return &repository{} }

func (r *repository) Insert(ctx context.Context, db *gorm.DB, row *FallbackSettlement) error {
	return db.WithContext(ctx).Create(row).Error
}

func (r *repository) ListUnrelayed(ctx context.Context, db *gorm.DB, limit int) ([]FallbackSettlement, error) {
	var rows []FallbackSettlement
	err := db.WithContext(ctx).
		Where("relayed = ?", false).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

func (r *repository) MarkRelayed(ctx context.Context, db *gorm.DB, id int64, bridgeRef string, at time.Time) error {
	return db.WithContext(ctx).
		Model(&FallbackSettlement{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"relayed":    true,
			"bridge_ref": bridgeRef,
			"relayed_at": at,
			"updated_at": at,
		}).Error
}

func (r *repository) RecordAttempt(ctx context.Context, db *gorm.DB, id int64, lastError string) error {
	return db.WithContext(ctx).
		Model(&FallbackSettlement{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"attempt_count": gorm.Expr("attempt_count + 1"),
			"last_error":    lastError,
		}).Error
}
