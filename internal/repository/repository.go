package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"propmarket/internal/models"
)

// Repository is the persistence surface of the ledger. State-changing
// operations run inside InTx and use the ...Tx writers and readers so each
// ledger operation commits or rolls back as one unit and sees its own
// uncommitted writes; plain readers serve the REST mirror.
type Repository interface {
	InTx(ctx context.Context, fn func(tx *gorm.DB) error) error

	// Properties
	CreatePropertyTx(ctx context.Context, tx *gorm.DB, item *models.Property) error
	SavePropertyTx(ctx context.Context, tx *gorm.DB, item *models.Property) error
	GetPropertyByID(ctx context.Context, id uint64) (*models.Property, error)
	GetPropertyByIDTx(ctx context.Context, tx *gorm.DB, id uint64) (*models.Property, error)
	ListProperties(ctx context.Context, params ListPropertiesParams) ([]models.Property, error)
	CountProperties(ctx context.Context, params ListPropertiesParams) (int64, error)

	// Tokenizer allow-list
	UpsertTokenizerGrantTx(ctx context.Context, tx *gorm.DB, item *models.TokenizerGrant) error
	DeleteTokenizerGrantTx(ctx context.Context, tx *gorm.DB, address string) error
	GetTokenizerGrant(ctx context.Context, address string) (*models.TokenizerGrant, error)
	GetTokenizerGrantTx(ctx context.Context, tx *gorm.DB, address string) (*models.TokenizerGrant, error)
	ListTokenizerGrants(ctx context.Context) ([]models.TokenizerGrant, error)

	// Share pools
	CreateSharePoolTx(ctx context.Context, tx *gorm.DB, item *models.SharePool) error
	SaveSharePoolTx(ctx context.Context, tx *gorm.DB, item *models.SharePool) error
	GetSharePoolByID(ctx context.Context, id uint64) (*models.SharePool, error)
	GetSharePoolByIDTx(ctx context.Context, tx *gorm.DB, id uint64) (*models.SharePool, error)
	GetSharePoolByPropertyID(ctx context.Context, propertyID uint64) (*models.SharePool, error)
	ListSharePools(ctx context.Context, params ListSharePoolsParams) ([]models.SharePool, error)
	CountSharePools(ctx context.Context, params ListSharePoolsParams) (int64, error)

	// Share balances
	SaveShareBalanceTx(ctx context.Context, tx *gorm.DB, item *models.ShareBalance) error
	GetShareBalance(ctx context.Context, shareID uint64, holder string) (*models.ShareBalance, error)
	GetShareBalanceTx(ctx context.Context, tx *gorm.DB, shareID uint64, holder string) (*models.ShareBalance, error)
	ListShareBalancesByShareID(ctx context.Context, shareID uint64) ([]models.ShareBalance, error)
	ListShareBalancesByHolder(ctx context.Context, holder string) ([]models.ShareBalance, error)
	CountHoldersByShareID(ctx context.Context, shareID uint64) (int64, error)
	SumShareBalances(ctx context.Context, shareID uint64) (int64, error)

	// Share offers
	SaveShareOfferTx(ctx context.Context, tx *gorm.DB, item *models.ShareOffer) error
	GetShareOffer(ctx context.Context, shareID uint64, seller string) (*models.ShareOffer, error)
	GetShareOfferTx(ctx context.Context, tx *gorm.DB, shareID uint64, seller string) (*models.ShareOffer, error)
	ListShareOffersByShareID(ctx context.Context, shareID uint64) ([]models.ShareOffer, error)
	CountOpenOffersByShareID(ctx context.Context, shareID uint64) (int64, error)

	// Operator approvals
	UpsertOperatorApprovalTx(ctx context.Context, tx *gorm.DB, item *models.OperatorApproval) error
	GetOperatorApproval(ctx context.Context, holder, operator string) (*models.OperatorApproval, error)
	GetOperatorApprovalTx(ctx context.Context, tx *gorm.DB, holder, operator string) (*models.OperatorApproval, error)

	// Marketplace listings
	CreateListingTx(ctx context.Context, tx *gorm.DB, item *models.MarketListing) error
	SaveListingTx(ctx context.Context, tx *gorm.DB, item *models.MarketListing) error
	GetListingByID(ctx context.Context, id uint64) (*models.MarketListing, error)
	GetListingByIDTx(ctx context.Context, tx *gorm.DB, id uint64) (*models.MarketListing, error)
	ListListings(ctx context.Context, params ListListingsParams) ([]models.MarketListing, error)
	CountListings(ctx context.Context, params ListListingsParams) (int64, error)

	// Accounts
	SaveAccountTx(ctx context.Context, tx *gorm.DB, item *models.Account) error
	GetAccount(ctx context.Context, address string) (*models.Account, error)
	GetAccountTx(ctx context.Context, tx *gorm.DB, address string) (*models.Account, error)

	// Platform settings
	UpsertPlatformSettingTx(ctx context.Context, tx *gorm.DB, item *models.PlatformSetting) error
	GetPlatformSettingByKey(ctx context.Context, key string) (*models.PlatformSetting, error)
	GetPlatformSettingByKeyTx(ctx context.Context, tx *gorm.DB, key string) (*models.PlatformSetting, error)
	ListPlatformSettings(ctx context.Context) ([]models.PlatformSetting, error)

	// Event log
	AppendEventTx(ctx context.Context, tx *gorm.DB, item *models.LedgerEvent) error
	ListEvents(ctx context.Context, params ListEventsParams) ([]models.LedgerEvent, error)
	CountEvents(ctx context.Context, params ListEventsParams) (int64, error)

	// Pool snapshots
	InsertPoolSnapshot(ctx context.Context, item *models.PoolSnapshot) error
	ListPoolSnapshots(ctx context.Context, params ListPoolSnapshotsParams) ([]models.PoolSnapshot, error)
}

type ListPropertiesParams struct {
	Limit     int
	Offset    int
	Owner     *string
	Tokenized *bool
	OrderBy   string
	Asc       *bool
}

type ListSharePoolsParams struct {
	Limit     int
	Offset    int
	Tokenizer *string
	Active    *bool
	OrderBy   string
	Asc       *bool
}

type ListListingsParams struct {
	Limit   int
	Offset  int
	Kind    *string
	Seller  *string
	TokenID *uint64
	Active  *bool
	OrderBy string
	Asc     *bool
}

type ListEventsParams struct {
	Limit      int
	Offset     int
	Kind       *string
	Actor      *string
	PropertyID *uint64
	ShareID    *uint64
	ListingID  *uint64
	SinceSeq   *uint64
	Since      *time.Time
	OrderBy    string
	Asc        *bool
}

type ListPoolSnapshotsParams struct {
	Limit   int
	Offset  int
	ShareID *uint64
	Since   *time.Time
	Until   *time.Time
}
