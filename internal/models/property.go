package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Property is the registry record for one physical property. Exactly one row
// per minted property; rows are never deleted. Once IsTokenized flips to true
// it never flips back, and custody of the record sits with the share-ledger
// operator rather than the original owner.
type Property struct {
	ID    uint64 `gorm:"primaryKey;autoIncrement"`
	Owner string `gorm:"type:varchar(64);not null;index"`

	// Approved is the single operator slot the owner can authorize to take
	// custody (tokenization) or to settle a marketplace sale.
	Approved *string `gorm:"type:varchar(64)"`

	Address        string          `gorm:"type:text;not null"`
	AreaSqM        decimal.Decimal `gorm:"type:numeric(20,2);not null;default:0"`
	PropertyType   string          `gorm:"type:varchar(50);not null"`
	AppraisedValue decimal.Decimal `gorm:"type:numeric(78,0);not null;default:0"`
	DocumentURI    string          `gorm:"type:text"`
	Latitude       decimal.Decimal `gorm:"type:numeric(10,7);not null;default:0"`
	Longitude      decimal.Decimal `gorm:"type:numeric(10,7);not null;default:0"`

	IsTokenized bool `gorm:"not null;default:false;index"`

	MintedBy  string    `gorm:"type:varchar(64);not null"`
	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime"`
}

func (Property) TableName() string {
	return "properties"
}
