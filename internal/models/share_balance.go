package models

import "time"

// ShareBalance is the per-(pool, holder) share count. Amounts never go
// negative; rows with zero amount are kept so indexers see the full history
// of holders.
type ShareBalance struct {
	ID      uint64 `gorm:"primaryKey;autoIncrement"`
	ShareID uint64 `gorm:"not null;uniqueIndex:idx_share_holder;index"`
	Holder  string `gorm:"type:varchar(64);not null;uniqueIndex:idx_share_holder;index"`
	Amount  int64  `gorm:"not null;default:0"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime"`
}

func (ShareBalance) TableName() string {
	return "share_balances"
}
