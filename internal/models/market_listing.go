package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	ListingKindProperty = "property"
	ListingKindShares   = "shares"
)

// MarketListing is a secondary-market listing, generic over whole properties
// (Amount is always 1, Price is the total) and share lots (Price is per unit).
// State machine: active -> fully sold | cancelled; both terminal states are
// absorbing.
type MarketListing struct {
	ID     uint64 `gorm:"primaryKey;autoIncrement"`
	Kind   string `gorm:"type:varchar(16);not null;index"`
	Seller string `gorm:"type:varchar(64);not null;index"`

	// TokenID is the property id for property listings and the share pool id
	// for share listings.
	TokenID uint64 `gorm:"not null;index"`

	Amount   int64           `gorm:"not null;default:1"`
	Price    decimal.Decimal `gorm:"type:numeric(78,0);not null"`
	IsActive bool            `gorm:"not null;default:true;index"`

	CancelledAt *time.Time `gorm:"type:timestamptz"`
	SoldOutAt   *time.Time `gorm:"type:timestamptz"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime"`
}

func (MarketListing) TableName() string {
	return "market_listings"
}
