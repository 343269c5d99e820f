package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PoolSnapshot is a periodic stats row per share pool, written by the
// snapshot cron job for dashboards and indexer reconciliation.
type PoolSnapshot struct {
	ID         uint64    `gorm:"primaryKey;autoIncrement"`
	ShareID    uint64    `gorm:"not null;uniqueIndex:idx_pool_snapshot_at"`
	SnapshotAt time.Time `gorm:"type:timestamptz;not null;uniqueIndex:idx_pool_snapshot_at"`

	TotalShares     int64 `gorm:"not null"`
	AvailableShares int64 `gorm:"not null"`
	HolderCount     int64 `gorm:"not null"`
	OpenOffers      int64 `gorm:"not null"`

	PricePerShare decimal.Decimal `gorm:"type:numeric(78,0);not null"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
}

func (PoolSnapshot) TableName() string {
	return "pool_snapshots"
}
