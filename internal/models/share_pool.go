package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// SharePool is the fungible share supply for one tokenized property.
// TotalShares and PricePerShare are fixed at creation. AvailableShares only
// decreases (direct pool purchases); the conservation invariant is
// sum(share_balances.amount) == TotalShares at all times.
type SharePool struct {
	ID         uint64 `gorm:"primaryKey;autoIncrement"`
	PropertyID uint64 `gorm:"not null;uniqueIndex"`

	TotalShares     int64           `gorm:"not null"`
	AvailableShares int64           `gorm:"not null"`
	PricePerShare   decimal.Decimal `gorm:"type:numeric(78,0);not null"`

	Tokenizer string `gorm:"type:varchar(64);not null;index"`
	Active    bool   `gorm:"not null;default:true"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime"`
}

func (SharePool) TableName() string {
	return "share_pools"
}
