package models

import "time"

// OperatorApproval is the share-side approval row: a holder authorizes an
// operator (in practice the marketplace) to move any of their share balances.
// Property-side approval lives on the Property row itself.
type OperatorApproval struct {
	ID       uint64 `gorm:"primaryKey;autoIncrement"`
	Holder   string `gorm:"type:varchar(64);not null;uniqueIndex:idx_holder_operator"`
	Operator string `gorm:"type:varchar(64);not null;uniqueIndex:idx_holder_operator"`
	Approved bool   `gorm:"not null;default:false"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime"`
}

func (OperatorApproval) TableName() string {
	return "operator_approvals"
}
