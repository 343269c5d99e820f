package models

import "time"

// TokenizerGrant is one entry of the mint allow-list. Only granted addresses
// may mint property records; the admin manages the list.
type TokenizerGrant struct {
	Address   string    `gorm:"primaryKey;type:varchar(64)"`
	GrantedBy string    `gorm:"type:varchar(64);not null"`
	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
}

func (TokenizerGrant) TableName() string {
	return "tokenizer_grants"
}
