package service

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"

	"propmarket/internal/models"
	"propmarket/internal/repository"
)

const testAdmin = "admin"

type fixture struct {
	repo     *stubRepo
	accounts *AccountService
	registry *PropertyRegistryService
	ledger   *ShareLedgerService
	settings *SettingsService
	market   *MarketplaceService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	repo := newStubRepo()
	seq := NewSequencer()
	accounts := &AccountService{Repo: repo, Seq: seq, Admin: testAdmin}
	settings := &SettingsService{Repo: repo, Seq: seq, Admin: testAdmin}
	if err := settings.EnsureDefaults(context.Background(), 250, "treasury"); err != nil {
		t.Fatalf("ensure defaults: %v", err)
	}
	return &fixture{
		repo:     repo,
		accounts: accounts,
		registry: &PropertyRegistryService{Repo: repo, Seq: seq, Admin: testAdmin},
		ledger:   &ShareLedgerService{Repo: repo, Accounts: accounts, Seq: seq},
		settings: settings,
		market:   &MarketplaceService{Repo: repo, Accounts: accounts, Settings: settings, Seq: seq},
	}
}

func (f *fixture) mintTokenized(t *testing.T, owner string, totalShares int64, price int64) *models.SharePool {
	t.Helper()
	ctx := context.Background()
	admin := Call{Caller: testAdmin}
	if err := f.registry.GrantTokenizer(ctx, admin, owner); err != nil {
		t.Fatalf("grant tokenizer: %v", err)
	}
	property, err := f.registry.Mint(ctx, Call{Caller: owner}, MintPropertyParams{
		Address:        "12 Harbor Rd",
		AreaSqM:        decimal.NewFromInt(120),
		PropertyType:   "residential",
		AppraisedValue: decimal.NewFromInt(1_000_000),
	})
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if _, err := f.registry.Approve(ctx, Call{Caller: owner}, property.ID, OperatorShareLedger); err != nil {
		t.Fatalf("approve: %v", err)
	}
	pool, err := f.ledger.TokenizeProperty(ctx, Call{Caller: owner}, TokenizeParams{
		PropertyID:    property.ID,
		TotalShares:   totalShares,
		PricePerShare: decimal.NewFromInt(price),
	})
	if err != nil {
		t.Fatalf("tokenize: %v", err)
	}
	return pool
}

func (f *fixture) deposit(t *testing.T, address string, amount int64) {
	t.Helper()
	if _, err := f.accounts.Deposit(context.Background(), Call{Caller: testAdmin}, address, decimal.NewFromInt(amount)); err != nil {
		t.Fatalf("deposit %s: %v", address, err)
	}
}

func (f *fixture) balanceOf(t *testing.T, shareID uint64, holder string) int64 {
	t.Helper()
	amount, err := f.ledger.BalanceOf(context.Background(), shareID, holder)
	if err != nil {
		t.Fatalf("balance of %s: %v", holder, err)
	}
	return amount
}

func (f *fixture) accountBalance(t *testing.T, address string) decimal.Decimal {
	t.Helper()
	account, err := f.repo.GetAccount(context.Background(), address)
	if err != nil {
		t.Fatalf("get account %s: %v", address, err)
	}
	if account == nil {
		return decimal.Zero
	}
	return account.Balance
}

func TestTokenizeProperty(t *testing.T) {
	f := newFixture(t)
	pool := f.mintTokenized(t, "alice", 100, 5)

	if pool.TotalShares != 100 || pool.AvailableShares != 100 {
		t.Fatalf("pool shares=%d/%d want 100/100", pool.AvailableShares, pool.TotalShares)
	}
	if pool.Tokenizer != "alice" {
		t.Fatalf("tokenizer=%s want alice", pool.Tokenizer)
	}
	if got := f.balanceOf(t, pool.ID, "alice"); got != 100 {
		t.Fatalf("alice balance=%d want 100", got)
	}
	property, err := f.registry.GetInfo(context.Background(), pool.PropertyID)
	if err != nil {
		t.Fatalf("get property: %v", err)
	}
	if property.Owner != OperatorShareLedger || !property.IsTokenized || property.Approved != nil {
		t.Fatalf("property not in custody: owner=%s tokenized=%v approved=%v",
			property.Owner, property.IsTokenized, property.Approved)
	}
}

func TestTokenizeProperty_Twice(t *testing.T) {
	f := newFixture(t)
	pool := f.mintTokenized(t, "alice", 100, 5)

	_, err := f.ledger.TokenizeProperty(context.Background(), Call{Caller: "alice"}, TokenizeParams{
		PropertyID:    pool.PropertyID,
		TotalShares:   50,
		PricePerShare: decimal.NewFromInt(3),
	})
	if KindOf(err) != KindInvalidState {
		t.Fatalf("second tokenize err=%v want invalid_state", err)
	}
}

func TestTokenizeProperty_WithoutApproval(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if err := f.registry.GrantTokenizer(ctx, Call{Caller: testAdmin}, "alice"); err != nil {
		t.Fatalf("grant: %v", err)
	}
	property, err := f.registry.Mint(ctx, Call{Caller: "alice"}, MintPropertyParams{Address: "1 Side St"})
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	_, err = f.ledger.TokenizeProperty(ctx, Call{Caller: "alice"}, TokenizeParams{
		PropertyID:    property.ID,
		TotalShares:   10,
		PricePerShare: decimal.NewFromInt(1),
	})
	if KindOf(err) != KindUnauthorized {
		t.Fatalf("tokenize without approval err=%v want unauthorized", err)
	}
}

func TestBuyShares_FromPool(t *testing.T) {
	f := newFixture(t)
	pool := f.mintTokenized(t, "alice", 100, 5)
	f.deposit(t, "bob", 50)

	_, err := f.ledger.BuyShares(context.Background(), Call{Caller: "bob", Value: decimal.NewFromInt(50)}, pool.ID, 10)
	if err != nil {
		t.Fatalf("buy shares: %v", err)
	}

	got, err := f.ledger.GetShareInfo(context.Background(), pool.ID)
	if err != nil {
		t.Fatalf("get share info: %v", err)
	}
	if got.AvailableShares != 90 {
		t.Fatalf("available=%d want 90", got.AvailableShares)
	}
	if a := f.balanceOf(t, pool.ID, "alice"); a != 90 {
		t.Fatalf("alice=%d want 90", a)
	}
	if b := f.balanceOf(t, pool.ID, "bob"); b != 10 {
		t.Fatalf("bob=%d want 10", b)
	}
	if bal := f.accountBalance(t, "alice"); !bal.Equal(decimal.NewFromInt(50)) {
		t.Fatalf("alice account=%s want 50", bal)
	}
	if bal := f.accountBalance(t, "bob"); !bal.IsZero() {
		t.Fatalf("bob account=%s want 0", bal)
	}
}

func TestBuyShares_ExactPaymentRequired(t *testing.T) {
	f := newFixture(t)
	pool := f.mintTokenized(t, "alice", 100, 5)
	f.deposit(t, "bob", 100)

	for _, value := range []int64{49, 51, 0} {
		_, err := f.ledger.BuyShares(context.Background(), Call{Caller: "bob", Value: decimal.NewFromInt(value)}, pool.ID, 10)
		if KindOf(err) != KindInsufficientFunds {
			t.Fatalf("value=%d err=%v want insufficient_funds", value, err)
		}
	}
	if got := f.balanceOf(t, pool.ID, "bob"); got != 0 {
		t.Fatalf("bob=%d want 0 after failed buys", got)
	}
	if bal := f.accountBalance(t, "bob"); !bal.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("bob account=%s want untouched 100", bal)
	}
}

func TestBuyShares_TokenizerCannotBuyOwnPool(t *testing.T) {
	f := newFixture(t)
	pool := f.mintTokenized(t, "alice", 100, 5)
	f.deposit(t, "alice", 50)

	_, err := f.ledger.BuyShares(context.Background(), Call{Caller: "alice", Value: decimal.NewFromInt(50)}, pool.ID, 10)
	if KindOf(err) != KindInvalidInput {
		t.Fatalf("self pool buy err=%v want invalid_input", err)
	}
	sum, err := f.repo.SumShareBalances(context.Background(), pool.ID)
	if err != nil {
		t.Fatalf("sum: %v", err)
	}
	if sum != 100 {
		t.Fatalf("total shares=%d want 100", sum)
	}
	if got := f.balanceOf(t, pool.ID, "alice"); got != 100 {
		t.Fatalf("alice=%d want 100", got)
	}
	if bal := f.accountBalance(t, "alice"); !bal.Equal(decimal.NewFromInt(50)) {
		t.Fatalf("alice account=%s want untouched 50", bal)
	}
}

func TestBuyShares_Oversubscribed(t *testing.T) {
	f := newFixture(t)
	pool := f.mintTokenized(t, "alice", 100, 5)
	f.deposit(t, "bob", 1000)

	_, err := f.ledger.BuyShares(context.Background(), Call{Caller: "bob", Value: decimal.NewFromInt(505)}, pool.ID, 101)
	if KindOf(err) != KindInsufficientSupply {
		t.Fatalf("err=%v want insufficient_supply", err)
	}
}

func TestBuyListedShares_Flow(t *testing.T) {
	f := newFixture(t)
	pool := f.mintTokenized(t, "alice", 100, 5)
	ctx := context.Background()

	_, err := f.ledger.ListShares(ctx, Call{Caller: "alice"}, pool.ID, 10, decimal.NewFromInt(6))
	if err != nil {
		t.Fatalf("list shares: %v", err)
	}

	f.deposit(t, "carol", 30)
	_, err = f.ledger.BuyListedShares(ctx, Call{Caller: "carol", Value: decimal.NewFromInt(30)}, pool.ID, "alice", 5)
	if err != nil {
		t.Fatalf("buy listed: %v", err)
	}

	if a := f.balanceOf(t, pool.ID, "alice"); a != 95 {
		t.Fatalf("alice=%d want 95", a)
	}
	if c := f.balanceOf(t, pool.ID, "carol"); c != 5 {
		t.Fatalf("carol=%d want 5", c)
	}
	offer, err := f.ledger.GetListedShareInfo(ctx, pool.ID, "alice")
	if err != nil {
		t.Fatalf("get offer: %v", err)
	}
	if offer.Amount != 5 || !offer.IsListed {
		t.Fatalf("offer amount=%d listed=%v want 5/true", offer.Amount, offer.IsListed)
	}
	// No fee on ledger peer sales: the full 30 reaches the seller.
	if bal := f.accountBalance(t, "alice"); !bal.Equal(decimal.NewFromInt(30)) {
		t.Fatalf("alice account=%s want 30", bal)
	}
}

func TestBuyListedShares_DelistsAtZero(t *testing.T) {
	f := newFixture(t)
	pool := f.mintTokenized(t, "alice", 100, 5)
	ctx := context.Background()

	if _, err := f.ledger.ListShares(ctx, Call{Caller: "alice"}, pool.ID, 4, decimal.NewFromInt(2)); err != nil {
		t.Fatalf("list: %v", err)
	}
	f.deposit(t, "carol", 8)
	if _, err := f.ledger.BuyListedShares(ctx, Call{Caller: "carol", Value: decimal.NewFromInt(8)}, pool.ID, "alice", 4); err != nil {
		t.Fatalf("buy all: %v", err)
	}

	offer, err := f.repo.GetShareOffer(ctx, pool.ID, "alice")
	if err != nil {
		t.Fatalf("get offer: %v", err)
	}
	if offer.IsListed || offer.Amount != 0 {
		t.Fatalf("offer listed=%v amount=%d want delisted/0", offer.IsListed, offer.Amount)
	}

	f.deposit(t, "dave", 100)
	_, err = f.ledger.BuyListedShares(ctx, Call{Caller: "dave", Value: decimal.NewFromInt(2)}, pool.ID, "alice", 1)
	if KindOf(err) != KindNotFound {
		t.Fatalf("buy from drained offer err=%v want not_found", err)
	}
}

func TestBuyListedShares_SellerCannotBuyOwnOffer(t *testing.T) {
	f := newFixture(t)
	pool := f.mintTokenized(t, "alice", 100, 5)
	ctx := context.Background()

	if _, err := f.ledger.ListShares(ctx, Call{Caller: "alice"}, pool.ID, 10, decimal.NewFromInt(6)); err != nil {
		t.Fatalf("list: %v", err)
	}
	f.deposit(t, "alice", 60)
	_, err := f.ledger.BuyListedShares(ctx, Call{Caller: "alice", Value: decimal.NewFromInt(60)}, pool.ID, "alice", 10)
	if KindOf(err) != KindInvalidInput {
		t.Fatalf("self offer buy err=%v want invalid_input", err)
	}
	sum, err := f.repo.SumShareBalances(ctx, pool.ID)
	if err != nil {
		t.Fatalf("sum: %v", err)
	}
	if sum != 100 {
		t.Fatalf("total shares=%d want 100", sum)
	}
	offer, err := f.ledger.GetListedShareInfo(ctx, pool.ID, "alice")
	if err != nil {
		t.Fatalf("get offer: %v", err)
	}
	if offer.Amount != 10 || !offer.IsListed {
		t.Fatalf("offer amount=%d listed=%v want untouched 10/true", offer.Amount, offer.IsListed)
	}
}

func TestCancelShareOffer(t *testing.T) {
	f := newFixture(t)
	pool := f.mintTokenized(t, "alice", 100, 5)
	ctx := context.Background()

	if _, err := f.ledger.ListShares(ctx, Call{Caller: "alice"}, pool.ID, 10, decimal.NewFromInt(6)); err != nil {
		t.Fatalf("list: %v", err)
	}
	if err := f.ledger.CancelShareOffer(ctx, Call{Caller: "alice"}, pool.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	f.deposit(t, "carol", 30)
	_, err := f.ledger.BuyListedShares(ctx, Call{Caller: "carol", Value: decimal.NewFromInt(6)}, pool.ID, "alice", 1)
	if KindOf(err) != KindNotFound {
		t.Fatalf("buy cancelled offer err=%v want not_found", err)
	}
}

func TestBuyShares_FrozenTokenizerRejects(t *testing.T) {
	f := newFixture(t)
	pool := f.mintTokenized(t, "alice", 100, 5)
	ctx := context.Background()

	if _, err := f.accounts.SetFrozen(ctx, Call{Caller: testAdmin}, "alice", true); err != nil {
		t.Fatalf("freeze: %v", err)
	}
	f.deposit(t, "bob", 50)
	_, err := f.ledger.BuyShares(ctx, Call{Caller: "bob", Value: decimal.NewFromInt(50)}, pool.ID, 10)
	if KindOf(err) != KindInvalidState {
		t.Fatalf("err=%v want invalid_state", err)
	}
	if got := f.balanceOf(t, pool.ID, "bob"); got != 0 {
		t.Fatalf("bob=%d want 0", got)
	}
	if bal := f.accountBalance(t, "bob"); !bal.Equal(decimal.NewFromInt(50)) {
		t.Fatalf("bob account=%s want untouched 50", bal)
	}
}

// Pool buys and peer trades move shares around without ever changing the
// total supply.
func TestShareConservation(t *testing.T) {
	f := newFixture(t)
	pool := f.mintTokenized(t, "alice", 100, 5)
	ctx := context.Background()

	f.deposit(t, "bob", 1000)
	f.deposit(t, "carol", 1000)

	if _, err := f.ledger.BuyShares(ctx, Call{Caller: "bob", Value: decimal.NewFromInt(50)}, pool.ID, 10); err != nil {
		t.Fatalf("bob buy: %v", err)
	}
	if _, err := f.ledger.ListShares(ctx, Call{Caller: "alice"}, pool.ID, 10, decimal.NewFromInt(6)); err != nil {
		t.Fatalf("alice list: %v", err)
	}
	if _, err := f.ledger.BuyListedShares(ctx, Call{Caller: "carol", Value: decimal.NewFromInt(30)}, pool.ID, "alice", 5); err != nil {
		t.Fatalf("carol buy: %v", err)
	}

	sum, err := f.repo.SumShareBalances(ctx, pool.ID)
	if err != nil {
		t.Fatalf("sum: %v", err)
	}
	if sum != 100 {
		t.Fatalf("total shares=%d want 100", sum)
	}
	if a, b, c := f.balanceOf(t, pool.ID, "alice"), f.balanceOf(t, pool.ID, "bob"), f.balanceOf(t, pool.ID, "carol"); a != 85 || b != 10 || c != 5 {
		t.Fatalf("balances alice=%d bob=%d carol=%d want 85/10/5", a, b, c)
	}
}

func TestOperationsAppendEvents(t *testing.T) {
	f := newFixture(t)
	pool := f.mintTokenized(t, "alice", 100, 5)
	ctx := context.Background()

	f.deposit(t, "bob", 50)
	if _, err := f.ledger.BuyShares(ctx, Call{Caller: "bob", Value: decimal.NewFromInt(50)}, pool.ID, 10); err != nil {
		t.Fatalf("buy: %v", err)
	}

	events, err := f.repo.ListEvents(ctx, repository.ListEventsParams{})
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	var kinds []string
	for _, e := range events {
		kinds = append(kinds, e.Kind)
	}
	want := []string{
		models.EventTokenizerGranted,
		models.EventPropertyMinted,
		models.EventPropertyApproved,
		models.EventPropertyTokenized,
		models.EventAccountDeposit,
		models.EventSharesPurchased,
	}
	if len(kinds) != len(want) {
		t.Fatalf("event kinds=%v want=%v", kinds, want)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Fatalf("event[%d]=%s want %s (all=%v)", i, kinds[i], want[i], kinds)
		}
	}
	for i, e := range events {
		if e.Seq != uint64(i+1) {
			t.Fatalf("event %d seq=%d want %d", i, e.Seq, i+1)
		}
	}
}

func TestValidatePoolPurchase(t *testing.T) {
	pool := &models.SharePool{ID: 1, Active: true, AvailableShares: 90, PricePerShare: decimal.NewFromInt(5)}

	if err := validatePoolPurchase(pool, 90, 10, decimal.NewFromInt(50)); err != nil {
		t.Fatalf("valid purchase rejected: %v", err)
	}
	if err := validatePoolPurchase(pool, 90, 0, decimal.Zero); KindOf(err) != KindInvalidInput {
		t.Fatalf("zero amount err=%v", err)
	}
	if err := validatePoolPurchase(pool, 90, 91, decimal.NewFromInt(455)); KindOf(err) != KindInsufficientSupply {
		t.Fatalf("oversupply err=%v", err)
	}
	if err := validatePoolPurchase(pool, 5, 10, decimal.NewFromInt(50)); KindOf(err) != KindInsufficientBalance {
		t.Fatalf("tokenizer short err=%v", err)
	}
	inactive := &models.SharePool{ID: 2, Active: false, AvailableShares: 90, PricePerShare: decimal.NewFromInt(5)}
	if err := validatePoolPurchase(inactive, 90, 10, decimal.NewFromInt(50)); KindOf(err) != KindInvalidState {
		t.Fatalf("inactive pool err=%v", err)
	}
}

func TestRequiredPayment(t *testing.T) {
	got := requiredPayment(7, decimal.RequireFromString("2.5"))
	if !got.Equal(decimal.RequireFromString("17.5")) {
		t.Fatalf("payment=%s want 17.5", got)
	}
}
