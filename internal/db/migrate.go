package db

import (
	"propmarket/internal/models"
)

func AutoMigrate(db *DB) error {
	if db == nil || db.Gorm == nil || db.SQL == nil {
		return nil
	}

	return db.Gorm.AutoMigrate(
		&models.Property{},
		&models.TokenizerGrant{},
		&models.SharePool{},
		&models.ShareBalance{},
		&models.ShareOffer{},
		&models.OperatorApproval{},
		&models.MarketListing{},
		&models.Account{},
		&models.PlatformSetting{},
		&models.LedgerEvent{},
		&models.PoolSnapshot{},
	)
}
