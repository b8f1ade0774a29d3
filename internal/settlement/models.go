package settlement

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// FallbackSettlement is a settlement the bridge could not relay at payment
// time. Rows stay until the reconciler delivers them.
type FallbackSettlement struct {
	ID           snowflake.ID      `gorm:"primaryKey"`
	Reference    string            `gorm:"type:text;not null;uniqueIndex"`
	Route        Route             `gorm:"type:text;not null"`
	Message      datatypes.JSON    `gorm:"type:jsonb;not null"`
	Relayed      bool              `gorm:"not null;default:false;index"`
	BridgeRef    *string           `gorm:"type:text"`
	AttemptCount int               `gorm:"not null;default:0"`
	LastError    *string           `gorm:"type:text"`
	RelayedAt    *time.Time        `gorm:""`
	CreatedAt    time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt    time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (FallbackSettlement) TableName() string { return "fallback_settlements" }
