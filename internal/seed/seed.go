// Package seed bootstraps development data so a fresh checkout is usable
// without manual database edits. Never runs in production.
package seed

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/solacehealth/solace/internal/access"
)

var demoTherapists = []access.Therapist{
	{ID: "th-demo-1", DisplayName: "Dr. Amara Osei", Verified: true},
	{ID: "th-demo-2", DisplayName: "Dr. Lena Fischer", Verified: true},
	{ID: "th-demo-3", DisplayName: "Jordan Blake", Verified: false},
}

// EnsureDemoTherapists inserts the demo provider roster. Existing rows are
// left untouched so local edits survive restarts.
func EnsureDemoTherapists(db *gorm.DB) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}

	ctx := context.Background()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, therapist := range demoTherapists {
			err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "id"}},
				DoNothing: true,
			}).Create(&therapist).Error
			if err != nil {
				return err
			}
		}
		return nil
	})
}
