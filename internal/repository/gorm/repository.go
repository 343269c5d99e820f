package gormrepository

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"propmarket/internal/models"
	"propmarket/internal/repository"
)

type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) InTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.WithContext(ctx).Transaction(fn)
}

// conn routes a read through the open transaction when there is one, so
// closures under InTx see their own uncommitted writes.
func (s *Store) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return s.db
}

// --- Properties -------------------------------------------------------------

func (s *Store) CreatePropertyTx(ctx context.Context, tx *gorm.DB, item *models.Property) error {
	if tx == nil || item == nil {
		return nil
	}
	return tx.WithContext(ctx).Create(item).Error
}

func (s *Store) SavePropertyTx(ctx context.Context, tx *gorm.DB, item *models.Property) error {
	if tx == nil || item == nil {
		return nil
	}
	return tx.WithContext(ctx).Save(item).Error
}

func (s *Store) GetPropertyByID(ctx context.Context, id uint64) (*models.Property, error) {
	return s.GetPropertyByIDTx(ctx, nil, id)
}

func (s *Store) GetPropertyByIDTx(ctx context.Context, tx *gorm.DB, id uint64) (*models.Property, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var item models.Property
	err := s.conn(tx).WithContext(ctx).First(&item, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) ListProperties(ctx context.Context, params repository.ListPropertiesParams) ([]models.Property, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := s.applyPropertyFilters(ctx, params)
	query = applyOrder(query, params.OrderBy, params.Asc, "id")
	var items []models.Property
	if err := query.Limit(normalizeLimit(params.Limit, 100)).Offset(normalizeOffset(params.Offset)).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) CountProperties(ctx context.Context, params repository.ListPropertiesParams) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	var total int64
	if err := s.applyPropertyFilters(ctx, params).Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

func (s *Store) applyPropertyFilters(ctx context.Context, params repository.ListPropertiesParams) *gorm.DB {
	query := s.db.WithContext(ctx).Model(&models.Property{})
	if params.Owner != nil && strings.TrimSpace(*params.Owner) != "" {
		query = query.Where("owner = ?", strings.TrimSpace(*params.Owner))
	}
	if params.Tokenized != nil {
		query = query.Where("is_tokenized = ?", *params.Tokenized)
	}
	return query
}

// --- Tokenizer allow-list ---------------------------------------------------

func (s *Store) UpsertTokenizerGrantTx(ctx context.Context, tx *gorm.DB, item *models.TokenizerGrant) error {
	if tx == nil || item == nil {
		return nil
	}
	if strings.TrimSpace(item.Address) == "" {
		return nil
	}
	return tx.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "address"}},
		DoUpdates: clause.AssignmentColumns([]string{"granted_by"}),
	}).Create(item).Error
}

func (s *Store) DeleteTokenizerGrantTx(ctx context.Context, tx *gorm.DB, address string) error {
	if tx == nil {
		return nil
	}
	return tx.WithContext(ctx).Where("address = ?", address).Delete(&models.TokenizerGrant{}).Error
}

func (s *Store) GetTokenizerGrant(ctx context.Context, address string) (*models.TokenizerGrant, error) {
	return s.GetTokenizerGrantTx(ctx, nil, address)
}

func (s *Store) GetTokenizerGrantTx(ctx context.Context, tx *gorm.DB, address string) (*models.TokenizerGrant, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var item models.TokenizerGrant
	err := s.conn(tx).WithContext(ctx).First(&item, "address = ?", address).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) ListTokenizerGrants(ctx context.Context) ([]models.TokenizerGrant, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var items []models.TokenizerGrant
	if err := s.db.WithContext(ctx).Order("address asc").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// --- Share pools ------------------------------------------------------------

func (s *Store) CreateSharePoolTx(ctx context.Context, tx *gorm.DB, item *models.SharePool) error {
	if tx == nil || item == nil {
		return nil
	}
	return tx.WithContext(ctx).Create(item).Error
}

func (s *Store) SaveSharePoolTx(ctx context.Context, tx *gorm.DB, item *models.SharePool) error {
	if tx == nil || item == nil {
		return nil
	}
	return tx.WithContext(ctx).Save(item).Error
}

func (s *Store) GetSharePoolByID(ctx context.Context, id uint64) (*models.SharePool, error) {
	return s.GetSharePoolByIDTx(ctx, nil, id)
}

func (s *Store) GetSharePoolByIDTx(ctx context.Context, tx *gorm.DB, id uint64) (*models.SharePool, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var item models.SharePool
	err := s.conn(tx).WithContext(ctx).First(&item, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) GetSharePoolByPropertyID(ctx context.Context, propertyID uint64) (*models.SharePool, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var item models.SharePool
	err := s.db.WithContext(ctx).First(&item, "property_id = ?", propertyID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) ListSharePools(ctx context.Context, params repository.ListSharePoolsParams) ([]models.SharePool, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := s.applySharePoolFilters(ctx, params)
	query = applyOrder(query, params.OrderBy, params.Asc, "id")
	var items []models.SharePool
	if err := query.Limit(normalizeLimit(params.Limit, 100)).Offset(normalizeOffset(params.Offset)).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) CountSharePools(ctx context.Context, params repository.ListSharePoolsParams) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	var total int64
	if err := s.applySharePoolFilters(ctx, params).Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

func (s *Store) applySharePoolFilters(ctx context.Context, params repository.ListSharePoolsParams) *gorm.DB {
	query := s.db.WithContext(ctx).Model(&models.SharePool{})
	if params.Tokenizer != nil && strings.TrimSpace(*params.Tokenizer) != "" {
		query = query.Where("tokenizer = ?", strings.TrimSpace(*params.Tokenizer))
	}
	if params.Active != nil {
		query = query.Where("active = ?", *params.Active)
	}
	return query
}

// --- Share balances ---------------------------------------------------------

func (s *Store) SaveShareBalanceTx(ctx context.Context, tx *gorm.DB, item *models.ShareBalance) error {
	if tx == nil || item == nil {
		return nil
	}
	if item.ID != 0 {
		return tx.WithContext(ctx).Save(item).Error
	}
	return tx.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "share_id"}, {Name: "holder"}},
		DoUpdates: clause.AssignmentColumns([]string{"amount", "updated_at"}),
	}).Create(item).Error
}

func (s *Store) GetShareBalance(ctx context.Context, shareID uint64, holder string) (*models.ShareBalance, error) {
	return s.GetShareBalanceTx(ctx, nil, shareID, holder)
}

func (s *Store) GetShareBalanceTx(ctx context.Context, tx *gorm.DB, shareID uint64, holder string) (*models.ShareBalance, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var item models.ShareBalance
	err := s.conn(tx).WithContext(ctx).First(&item, "share_id = ? AND holder = ?", shareID, holder).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) ListShareBalancesByShareID(ctx context.Context, shareID uint64) ([]models.ShareBalance, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var items []models.ShareBalance
	err := s.db.WithContext(ctx).
		Where("share_id = ?", shareID).
		Order("holder asc").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) ListShareBalancesByHolder(ctx context.Context, holder string) ([]models.ShareBalance, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var items []models.ShareBalance
	err := s.db.WithContext(ctx).
		Where("holder = ?", holder).
		Order("share_id asc").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) CountHoldersByShareID(ctx context.Context, shareID uint64) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	var total int64
	err := s.db.WithContext(ctx).
		Model(&models.ShareBalance{}).
		Where("share_id = ? AND amount > 0", shareID).
		Count(&total).Error
	return total, err
}

func (s *Store) SumShareBalances(ctx context.Context, shareID uint64) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	var sum int64
	err := s.db.WithContext(ctx).
		Model(&models.ShareBalance{}).
		Where("share_id = ?", shareID).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&sum).Error
	return sum, err
}

// --- Share offers -----------------------------------------------------------

func (s *Store) SaveShareOfferTx(ctx context.Context, tx *gorm.DB, item *models.ShareOffer) error {
	if tx == nil || item == nil {
		return nil
	}
	if item.ID != 0 {
		return tx.WithContext(ctx).Save(item).Error
	}
	return tx.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "share_id"}, {Name: "seller"}},
		DoUpdates: clause.AssignmentColumns([]string{"amount", "price", "is_listed", "updated_at"}),
	}).Create(item).Error
}

func (s *Store) GetShareOffer(ctx context.Context, shareID uint64, seller string) (*models.ShareOffer, error) {
	return s.GetShareOfferTx(ctx, nil, shareID, seller)
}

func (s *Store) GetShareOfferTx(ctx context.Context, tx *gorm.DB, shareID uint64, seller string) (*models.ShareOffer, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var item models.ShareOffer
	err := s.conn(tx).WithContext(ctx).First(&item, "share_id = ? AND seller = ?", shareID, seller).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) ListShareOffersByShareID(ctx context.Context, shareID uint64) ([]models.ShareOffer, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var items []models.ShareOffer
	err := s.db.WithContext(ctx).
		Where("share_id = ? AND is_listed = true", shareID).
		Order("seller asc").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) CountOpenOffersByShareID(ctx context.Context, shareID uint64) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	var total int64
	err := s.db.WithContext(ctx).
		Model(&models.ShareOffer{}).
		Where("share_id = ? AND is_listed = true", shareID).
		Count(&total).Error
	return total, err
}

// --- Operator approvals -----------------------------------------------------

func (s *Store) UpsertOperatorApprovalTx(ctx context.Context, tx *gorm.DB, item *models.OperatorApproval) error {
	if tx == nil || item == nil {
		return nil
	}
	return tx.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "holder"}, {Name: "operator"}},
		DoUpdates: clause.AssignmentColumns([]string{"approved", "updated_at"}),
	}).Create(item).Error
}

func (s *Store) GetOperatorApproval(ctx context.Context, holder, operator string) (*models.OperatorApproval, error) {
	return s.GetOperatorApprovalTx(ctx, nil, holder, operator)
}

func (s *Store) GetOperatorApprovalTx(ctx context.Context, tx *gorm.DB, holder, operator string) (*models.OperatorApproval, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var item models.OperatorApproval
	err := s.conn(tx).WithContext(ctx).First(&item, "holder = ? AND operator = ?", holder, operator).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// --- Marketplace listings ---------------------------------------------------

func (s *Store) CreateListingTx(ctx context.Context, tx *gorm.DB, item *models.MarketListing) error {
	if tx == nil || item == nil {
		return nil
	}
	return tx.WithContext(ctx).Create(item).Error
}

func (s *Store) SaveListingTx(ctx context.Context, tx *gorm.DB, item *models.MarketListing) error {
	if tx == nil || item == nil {
		return nil
	}
	return tx.WithContext(ctx).Save(item).Error
}

func (s *Store) GetListingByID(ctx context.Context, id uint64) (*models.MarketListing, error) {
	return s.GetListingByIDTx(ctx, nil, id)
}

func (s *Store) GetListingByIDTx(ctx context.Context, tx *gorm.DB, id uint64) (*models.MarketListing, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var item models.MarketListing
	err := s.conn(tx).WithContext(ctx).First(&item, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) ListListings(ctx context.Context, params repository.ListListingsParams) ([]models.MarketListing, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := s.applyListingFilters(ctx, params)
	query = applyOrder(query, params.OrderBy, params.Asc, "id")
	var items []models.MarketListing
	if err := query.Limit(normalizeLimit(params.Limit, 100)).Offset(normalizeOffset(params.Offset)).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) CountListings(ctx context.Context, params repository.ListListingsParams) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	var total int64
	if err := s.applyListingFilters(ctx, params).Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

func (s *Store) applyListingFilters(ctx context.Context, params repository.ListListingsParams) *gorm.DB {
	query := s.db.WithContext(ctx).Model(&models.MarketListing{})
	if params.Kind != nil && strings.TrimSpace(*params.Kind) != "" {
		query = query.Where("kind = ?", strings.TrimSpace(*params.Kind))
	}
	if params.Seller != nil && strings.TrimSpace(*params.Seller) != "" {
		query = query.Where("seller = ?", strings.TrimSpace(*params.Seller))
	}
	if params.TokenID != nil {
		query = query.Where("token_id = ?", *params.TokenID)
	}
	if params.Active != nil {
		query = query.Where("is_active = ?", *params.Active)
	}
	return query
}

// --- Accounts ---------------------------------------------------------------

func (s *Store) SaveAccountTx(ctx context.Context, tx *gorm.DB, item *models.Account) error {
	if tx == nil || item == nil {
		return nil
	}
	if strings.TrimSpace(item.Address) == "" {
		return nil
	}
	return tx.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "address"}},
		DoUpdates: clause.AssignmentColumns([]string{"balance", "frozen", "updated_at"}),
	}).Create(item).Error
}

func (s *Store) GetAccount(ctx context.Context, address string) (*models.Account, error) {
	return s.GetAccountTx(ctx, nil, address)
}

func (s *Store) GetAccountTx(ctx context.Context, tx *gorm.DB, address string) (*models.Account, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var item models.Account
	err := s.conn(tx).WithContext(ctx).First(&item, "address = ?", address).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// --- Platform settings ------------------------------------------------------

func (s *Store) UpsertPlatformSettingTx(ctx context.Context, tx *gorm.DB, item *models.PlatformSetting) error {
	if tx == nil || item == nil {
		return nil
	}
	if strings.TrimSpace(item.Key) == "" {
		return nil
	}
	return tx.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "description", "updated_at"}),
	}).Create(item).Error
}

func (s *Store) GetPlatformSettingByKey(ctx context.Context, key string) (*models.PlatformSetting, error) {
	return s.GetPlatformSettingByKeyTx(ctx, nil, key)
}

func (s *Store) GetPlatformSettingByKeyTx(ctx context.Context, tx *gorm.DB, key string) (*models.PlatformSetting, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var item models.PlatformSetting
	err := s.conn(tx).WithContext(ctx).First(&item, "key = ?", key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) ListPlatformSettings(ctx context.Context) ([]models.PlatformSetting, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var items []models.PlatformSetting
	if err := s.db.WithContext(ctx).Order("key asc").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// --- Event log --------------------------------------------------------------

func (s *Store) AppendEventTx(ctx context.Context, tx *gorm.DB, item *models.LedgerEvent) error {
	if tx == nil || item == nil {
		return nil
	}
	return tx.WithContext(ctx).Create(item).Error
}

func (s *Store) ListEvents(ctx context.Context, params repository.ListEventsParams) ([]models.LedgerEvent, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := s.applyEventFilters(ctx, params)
	query = applyOrder(query, params.OrderBy, params.Asc, "seq")
	var items []models.LedgerEvent
	if err := query.Limit(normalizeLimit(params.Limit, 200)).Offset(normalizeOffset(params.Offset)).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) CountEvents(ctx context.Context, params repository.ListEventsParams) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	var total int64
	if err := s.applyEventFilters(ctx, params).Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

func (s *Store) applyEventFilters(ctx context.Context, params repository.ListEventsParams) *gorm.DB {
	query := s.db.WithContext(ctx).Model(&models.LedgerEvent{})
	if params.Kind != nil && strings.TrimSpace(*params.Kind) != "" {
		query = query.Where("kind = ?", strings.TrimSpace(*params.Kind))
	}
	if params.Actor != nil && strings.TrimSpace(*params.Actor) != "" {
		query = query.Where("actor = ?", strings.TrimSpace(*params.Actor))
	}
	if params.PropertyID != nil {
		query = query.Where("property_id = ?", *params.PropertyID)
	}
	if params.ShareID != nil {
		query = query.Where("share_id = ?", *params.ShareID)
	}
	if params.ListingID != nil {
		query = query.Where("listing_id = ?", *params.ListingID)
	}
	if params.SinceSeq != nil {
		query = query.Where("seq > ?", *params.SinceSeq)
	}
	if params.Since != nil && !params.Since.IsZero() {
		query = query.Where("created_at >= ?", *params.Since)
	}
	return query
}

// --- Pool snapshots ---------------------------------------------------------

func (s *Store) InsertPoolSnapshot(ctx context.Context, item *models.PoolSnapshot) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return s.db.WithContext(ctx).Create(item).Error
}

func (s *Store) ListPoolSnapshots(ctx context.Context, params repository.ListPoolSnapshotsParams) ([]models.PoolSnapshot, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := s.db.WithContext(ctx).Model(&models.PoolSnapshot{})
	if params.ShareID != nil {
		query = query.Where("share_id = ?", *params.ShareID)
	}
	if params.Since != nil && !params.Since.IsZero() {
		query = query.Where("snapshot_at >= ?", *params.Since)
	}
	if params.Until != nil && !params.Until.IsZero() {
		query = query.Where("snapshot_at <= ?", *params.Until)
	}
	var items []models.PoolSnapshot
	err := query.Order("snapshot_at desc").
		Limit(normalizeLimit(params.Limit, 200)).
		Offset(normalizeOffset(params.Offset)).
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

// --- helpers ----------------------------------------------------------------

func applyOrder(query *gorm.DB, orderBy string, asc *bool, fallback string) *gorm.DB {
	column := strings.TrimSpace(orderBy)
	if column == "" {
		column = fallback
	}
	direction := "desc"
	if asc != nil && *asc {
		direction = "asc"
	}
	return query.Order(column + " " + direction)
}

func normalizeLimit(limit, fallback int) int {
	if limit <= 0 {
		return fallback
	}
	if limit > 500 {
		return 500
	}
	return limit
}

func normalizeOffset(offset int) int {
	if offset < 0 {
		return 0
	}
	return offset
}
