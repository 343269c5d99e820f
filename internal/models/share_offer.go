package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ShareOffer is the ledger-level peer listing: one row per (pool, seller).
// Listing again overwrites the row. The seller's balance is checked at list
// time only; settlement refuses to drive a balance negative but does not
// shrink stale offers.
type ShareOffer struct {
	ID      uint64 `gorm:"primaryKey;autoIncrement"`
	ShareID uint64 `gorm:"not null;uniqueIndex:idx_offer_share_seller;index"`
	Seller  string `gorm:"type:varchar(64);not null;uniqueIndex:idx_offer_share_seller;index"`

	Amount   int64           `gorm:"not null;default:0"`
	Price    decimal.Decimal `gorm:"type:numeric(78,0);not null"`
	IsListed bool            `gorm:"not null;default:false"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime"`
}

func (ShareOffer) TableName() string {
	return "share_offers"
}
