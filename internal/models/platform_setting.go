package models

import (
	"time"

	"gorm.io/datatypes"
)

// PlatformSetting stores admin-configurable platform parameters in DB
// (marketplace fee basis points, fee recipient).
type PlatformSetting struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"`

	Key string `gorm:"type:varchar(120);not null;uniqueIndex"`

	// JSON value, e.g. a number for the fee bps or a string for an address.
	Value datatypes.JSON `gorm:"type:jsonb;not null"`

	Description string    `gorm:"type:text"`
	CreatedAt   time.Time `gorm:"type:timestamptz;autoCreateTime"`
	UpdatedAt   time.Time `gorm:"type:timestamptz;autoUpdateTime;index"`
}

func (PlatformSetting) TableName() string {
	return "platform_settings"
}
