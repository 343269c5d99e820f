package service

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"propmarket/internal/models"
	"propmarket/internal/repository"
)

// stubRepo is a test-only in-memory implementation of repository.Repository.
// Services run their validations before writes, so executing InTx callbacks
// against plain maps still exercises the same success and failure paths the
// real store would take.
//
// Against a real store, only the ...Tx readers see uncommitted writes; the
// bare getters read a pre-transaction snapshot. The maps cannot model that
// isolation, so instead every bare getter called while an InTx callback is
// running is counted in staleReads, and scenario tests assert it stays zero.
type stubRepo struct {
	properties map[uint64]models.Property
	grants     map[string]models.TokenizerGrant
	pools      map[uint64]models.SharePool
	balances   map[string]models.ShareBalance
	offers     map[string]models.ShareOffer
	approvals  map[string]models.OperatorApproval
	listings   map[uint64]models.MarketListing
	accounts   map[string]models.Account
	settings   map[string]models.PlatformSetting
	events     []models.LedgerEvent
	snapshots  []models.PoolSnapshot

	nextPropertyID uint64
	nextPoolID     uint64
	nextListingID  uint64

	txDepth    int
	staleReads int
}

func newStubRepo() *stubRepo {
	return &stubRepo{
		properties: map[uint64]models.Property{},
		grants:     map[string]models.TokenizerGrant{},
		pools:      map[uint64]models.SharePool{},
		balances:   map[string]models.ShareBalance{},
		offers:     map[string]models.ShareOffer{},
		approvals:  map[string]models.OperatorApproval{},
		listings:   map[uint64]models.MarketListing{},
		accounts:   map[string]models.Account{},
		settings:   map[string]models.PlatformSetting{},
	}
}

func balanceKey(shareID uint64, holder string) string {
	return fmt.Sprintf("%d|%s", shareID, holder)
}

func (s *stubRepo) InTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	s.txDepth++
	defer func() { s.txDepth-- }()
	return fn(nil)
}

// markBareRead flags a snapshot read issued from inside a transaction.
func (s *stubRepo) markBareRead() {
	if s.txDepth > 0 {
		s.staleReads++
	}
}

func (s *stubRepo) CreatePropertyTx(ctx context.Context, tx *gorm.DB, item *models.Property) error {
	s.nextPropertyID++
	item.ID = s.nextPropertyID
	s.properties[item.ID] = *item
	return nil
}
func (s *stubRepo) SavePropertyTx(ctx context.Context, tx *gorm.DB, item *models.Property) error {
	s.properties[item.ID] = *item
	return nil
}
func (s *stubRepo) GetPropertyByID(ctx context.Context, id uint64) (*models.Property, error) {
	s.markBareRead()
	return s.GetPropertyByIDTx(ctx, nil, id)
}
func (s *stubRepo) GetPropertyByIDTx(ctx context.Context, tx *gorm.DB, id uint64) (*models.Property, error) {
	if item, ok := s.properties[id]; ok {
		out := item
		return &out, nil
	}
	return nil, nil
}
func (s *stubRepo) ListProperties(ctx context.Context, params repository.ListPropertiesParams) ([]models.Property, error) {
	var out []models.Property
	for _, item := range s.properties {
		out = append(out, item)
	}
	return out, nil
}
func (s *stubRepo) CountProperties(ctx context.Context, params repository.ListPropertiesParams) (int64, error) {
	return int64(len(s.properties)), nil
}

func (s *stubRepo) UpsertTokenizerGrantTx(ctx context.Context, tx *gorm.DB, item *models.TokenizerGrant) error {
	s.grants[item.Address] = *item
	return nil
}
func (s *stubRepo) DeleteTokenizerGrantTx(ctx context.Context, tx *gorm.DB, address string) error {
	delete(s.grants, address)
	return nil
}
func (s *stubRepo) GetTokenizerGrant(ctx context.Context, address string) (*models.TokenizerGrant, error) {
	s.markBareRead()
	return s.GetTokenizerGrantTx(ctx, nil, address)
}
func (s *stubRepo) GetTokenizerGrantTx(ctx context.Context, tx *gorm.DB, address string) (*models.TokenizerGrant, error) {
	if item, ok := s.grants[address]; ok {
		out := item
		return &out, nil
	}
	return nil, nil
}
func (s *stubRepo) ListTokenizerGrants(ctx context.Context) ([]models.TokenizerGrant, error) {
	var out []models.TokenizerGrant
	for _, item := range s.grants {
		out = append(out, item)
	}
	return out, nil
}

func (s *stubRepo) CreateSharePoolTx(ctx context.Context, tx *gorm.DB, item *models.SharePool) error {
	s.nextPoolID++
	item.ID = s.nextPoolID
	s.pools[item.ID] = *item
	return nil
}
func (s *stubRepo) SaveSharePoolTx(ctx context.Context, tx *gorm.DB, item *models.SharePool) error {
	s.pools[item.ID] = *item
	return nil
}
func (s *stubRepo) GetSharePoolByID(ctx context.Context, id uint64) (*models.SharePool, error) {
	s.markBareRead()
	return s.GetSharePoolByIDTx(ctx, nil, id)
}
func (s *stubRepo) GetSharePoolByIDTx(ctx context.Context, tx *gorm.DB, id uint64) (*models.SharePool, error) {
	if item, ok := s.pools[id]; ok {
		out := item
		return &out, nil
	}
	return nil, nil
}
func (s *stubRepo) GetSharePoolByPropertyID(ctx context.Context, propertyID uint64) (*models.SharePool, error) {
	for _, item := range s.pools {
		if item.PropertyID == propertyID {
			out := item
			return &out, nil
		}
	}
	return nil, nil
}
func (s *stubRepo) ListSharePools(ctx context.Context, params repository.ListSharePoolsParams) ([]models.SharePool, error) {
	var out []models.SharePool
	for _, item := range s.pools {
		out = append(out, item)
	}
	return out, nil
}
func (s *stubRepo) CountSharePools(ctx context.Context, params repository.ListSharePoolsParams) (int64, error) {
	return int64(len(s.pools)), nil
}

func (s *stubRepo) SaveShareBalanceTx(ctx context.Context, tx *gorm.DB, item *models.ShareBalance) error {
	s.balances[balanceKey(item.ShareID, item.Holder)] = *item
	return nil
}
func (s *stubRepo) GetShareBalance(ctx context.Context, shareID uint64, holder string) (*models.ShareBalance, error) {
	s.markBareRead()
	return s.GetShareBalanceTx(ctx, nil, shareID, holder)
}
func (s *stubRepo) GetShareBalanceTx(ctx context.Context, tx *gorm.DB, shareID uint64, holder string) (*models.ShareBalance, error) {
	if item, ok := s.balances[balanceKey(shareID, holder)]; ok {
		out := item
		return &out, nil
	}
	return nil, nil
}
func (s *stubRepo) ListShareBalancesByShareID(ctx context.Context, shareID uint64) ([]models.ShareBalance, error) {
	var out []models.ShareBalance
	for _, item := range s.balances {
		if item.ShareID == shareID {
			out = append(out, item)
		}
	}
	return out, nil
}
func (s *stubRepo) ListShareBalancesByHolder(ctx context.Context, holder string) ([]models.ShareBalance, error) {
	var out []models.ShareBalance
	for _, item := range s.balances {
		if item.Holder == holder {
			out = append(out, item)
		}
	}
	return out, nil
}
func (s *stubRepo) CountHoldersByShareID(ctx context.Context, shareID uint64) (int64, error) {
	var n int64
	for _, item := range s.balances {
		if item.ShareID == shareID && item.Amount > 0 {
			n++
		}
	}
	return n, nil
}
func (s *stubRepo) SumShareBalances(ctx context.Context, shareID uint64) (int64, error) {
	var sum int64
	for _, item := range s.balances {
		if item.ShareID == shareID {
			sum += item.Amount
		}
	}
	return sum, nil
}

func (s *stubRepo) SaveShareOfferTx(ctx context.Context, tx *gorm.DB, item *models.ShareOffer) error {
	s.offers[balanceKey(item.ShareID, item.Seller)] = *item
	return nil
}
func (s *stubRepo) GetShareOffer(ctx context.Context, shareID uint64, seller string) (*models.ShareOffer, error) {
	s.markBareRead()
	return s.GetShareOfferTx(ctx, nil, shareID, seller)
}
func (s *stubRepo) GetShareOfferTx(ctx context.Context, tx *gorm.DB, shareID uint64, seller string) (*models.ShareOffer, error) {
	if item, ok := s.offers[balanceKey(shareID, seller)]; ok {
		out := item
		return &out, nil
	}
	return nil, nil
}
func (s *stubRepo) ListShareOffersByShareID(ctx context.Context, shareID uint64) ([]models.ShareOffer, error) {
	var out []models.ShareOffer
	for _, item := range s.offers {
		if item.ShareID == shareID {
			out = append(out, item)
		}
	}
	return out, nil
}
func (s *stubRepo) CountOpenOffersByShareID(ctx context.Context, shareID uint64) (int64, error) {
	var n int64
	for _, item := range s.offers {
		if item.ShareID == shareID && item.IsListed {
			n++
		}
	}
	return n, nil
}

func (s *stubRepo) UpsertOperatorApprovalTx(ctx context.Context, tx *gorm.DB, item *models.OperatorApproval) error {
	s.approvals[item.Holder+"|"+item.Operator] = *item
	return nil
}
func (s *stubRepo) GetOperatorApproval(ctx context.Context, holder, operator string) (*models.OperatorApproval, error) {
	s.markBareRead()
	return s.GetOperatorApprovalTx(ctx, nil, holder, operator)
}
func (s *stubRepo) GetOperatorApprovalTx(ctx context.Context, tx *gorm.DB, holder, operator string) (*models.OperatorApproval, error) {
	if item, ok := s.approvals[holder+"|"+operator]; ok {
		out := item
		return &out, nil
	}
	return nil, nil
}

func (s *stubRepo) CreateListingTx(ctx context.Context, tx *gorm.DB, item *models.MarketListing) error {
	s.nextListingID++
	item.ID = s.nextListingID
	s.listings[item.ID] = *item
	return nil
}
func (s *stubRepo) SaveListingTx(ctx context.Context, tx *gorm.DB, item *models.MarketListing) error {
	s.listings[item.ID] = *item
	return nil
}
func (s *stubRepo) GetListingByID(ctx context.Context, id uint64) (*models.MarketListing, error) {
	s.markBareRead()
	return s.GetListingByIDTx(ctx, nil, id)
}
func (s *stubRepo) GetListingByIDTx(ctx context.Context, tx *gorm.DB, id uint64) (*models.MarketListing, error) {
	if item, ok := s.listings[id]; ok {
		out := item
		return &out, nil
	}
	return nil, nil
}
func (s *stubRepo) ListListings(ctx context.Context, params repository.ListListingsParams) ([]models.MarketListing, error) {
	var out []models.MarketListing
	for _, item := range s.listings {
		out = append(out, item)
	}
	return out, nil
}
func (s *stubRepo) CountListings(ctx context.Context, params repository.ListListingsParams) (int64, error) {
	return int64(len(s.listings)), nil
}

func (s *stubRepo) SaveAccountTx(ctx context.Context, tx *gorm.DB, item *models.Account) error {
	s.accounts[item.Address] = *item
	return nil
}
func (s *stubRepo) GetAccount(ctx context.Context, address string) (*models.Account, error) {
	s.markBareRead()
	return s.GetAccountTx(ctx, nil, address)
}
func (s *stubRepo) GetAccountTx(ctx context.Context, tx *gorm.DB, address string) (*models.Account, error) {
	if item, ok := s.accounts[address]; ok {
		out := item
		return &out, nil
	}
	return nil, nil
}

func (s *stubRepo) UpsertPlatformSettingTx(ctx context.Context, tx *gorm.DB, item *models.PlatformSetting) error {
	s.settings[item.Key] = *item
	return nil
}
func (s *stubRepo) GetPlatformSettingByKey(ctx context.Context, key string) (*models.PlatformSetting, error) {
	s.markBareRead()
	return s.GetPlatformSettingByKeyTx(ctx, nil, key)
}
func (s *stubRepo) GetPlatformSettingByKeyTx(ctx context.Context, tx *gorm.DB, key string) (*models.PlatformSetting, error) {
	if item, ok := s.settings[key]; ok {
		out := item
		return &out, nil
	}
	return nil, nil
}
func (s *stubRepo) ListPlatformSettings(ctx context.Context) ([]models.PlatformSetting, error) {
	var out []models.PlatformSetting
	for _, item := range s.settings {
		out = append(out, item)
	}
	return out, nil
}

func (s *stubRepo) AppendEventTx(ctx context.Context, tx *gorm.DB, item *models.LedgerEvent) error {
	item.Seq = uint64(len(s.events) + 1)
	s.events = append(s.events, *item)
	return nil
}
func (s *stubRepo) ListEvents(ctx context.Context, params repository.ListEventsParams) ([]models.LedgerEvent, error) {
	out := make([]models.LedgerEvent, len(s.events))
	copy(out, s.events)
	return out, nil
}
func (s *stubRepo) CountEvents(ctx context.Context, params repository.ListEventsParams) (int64, error) {
	return int64(len(s.events)), nil
}

func (s *stubRepo) InsertPoolSnapshot(ctx context.Context, item *models.PoolSnapshot) error {
	s.snapshots = append(s.snapshots, *item)
	return nil
}
func (s *stubRepo) ListPoolSnapshots(ctx context.Context, params repository.ListPoolSnapshotsParams) ([]models.PoolSnapshot, error) {
	out := make([]models.PoolSnapshot, len(s.snapshots))
	copy(out, s.snapshots)
	return out, nil
}

var _ repository.Repository = (*stubRepo)(nil)
