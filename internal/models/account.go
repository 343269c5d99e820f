package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Account is the ledger-internal payment account for a wallet address.
// Balances are wei-denominated integers. A frozen account rejects credits,
// which makes any settlement paying it roll back entirely.
type Account struct {
	Address string          `gorm:"primaryKey;type:varchar(64)"`
	Balance decimal.Decimal `gorm:"type:numeric(78,0);not null;default:0"`
	Frozen  bool            `gorm:"not null;default:false"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime"`
}

func (Account) TableName() string {
	return "accounts"
}
