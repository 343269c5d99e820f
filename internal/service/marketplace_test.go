package service

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"

	"propmarket/internal/models"
)

func (f *fixture) mintApprovedForMarket(t *testing.T, owner string) *models.Property {
	t.Helper()
	ctx := context.Background()
	if err := f.registry.GrantTokenizer(ctx, Call{Caller: testAdmin}, owner); err != nil {
		t.Fatalf("grant: %v", err)
	}
	property, err := f.registry.Mint(ctx, Call{Caller: owner}, MintPropertyParams{
		Address:        "3 Elm Ave",
		AppraisedValue: decimal.NewFromInt(500_000),
	})
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if _, err := f.registry.Approve(ctx, Call{Caller: owner}, property.ID, OperatorMarketplace); err != nil {
		t.Fatalf("approve: %v", err)
	}
	return property
}

func TestBuyProperty_FeeAndTransfer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	property := f.mintApprovedForMarket(t, "alice")

	listing, err := f.market.CreatePropertyListing(ctx, Call{Caller: "alice"}, property.ID, decimal.NewFromInt(1000))
	if err != nil {
		t.Fatalf("create listing: %v", err)
	}

	f.deposit(t, "bob", 1000)
	bought, err := f.market.BuyProperty(ctx, Call{Caller: "bob", Value: decimal.NewFromInt(1000)}, listing.ID)
	if err != nil {
		t.Fatalf("buy property: %v", err)
	}
	if bought.Owner != "bob" || bought.Approved != nil {
		t.Fatalf("owner=%s approved=%v want bob/nil", bought.Owner, bought.Approved)
	}

	// 250 bp of 1000 is 25 to the fee recipient, 975 to the seller.
	if bal := f.accountBalance(t, "treasury"); !bal.Equal(decimal.NewFromInt(25)) {
		t.Fatalf("treasury=%s want 25", bal)
	}
	if bal := f.accountBalance(t, "alice"); !bal.Equal(decimal.NewFromInt(975)) {
		t.Fatalf("alice=%s want 975", bal)
	}
	if bal := f.accountBalance(t, "bob"); !bal.IsZero() {
		t.Fatalf("bob=%s want 0", bal)
	}

	got, err := f.market.GetListing(ctx, listing.ID)
	if err != nil {
		t.Fatalf("get listing: %v", err)
	}
	if got.IsActive || got.SoldOutAt == nil {
		t.Fatalf("listing active=%v soldOutAt=%v want settled", got.IsActive, got.SoldOutAt)
	}
}

func TestBuyProperty_StaleAfterResale(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	property := f.mintApprovedForMarket(t, "alice")

	listing, err := f.market.CreatePropertyListing(ctx, Call{Caller: "alice"}, property.ID, decimal.NewFromInt(1000))
	if err != nil {
		t.Fatalf("create listing: %v", err)
	}

	// Ownership moves away out of band; the stale listing must not settle.
	stored, _ := f.repo.GetPropertyByID(ctx, property.ID)
	stored.Owner = "mallory"
	_ = f.repo.SavePropertyTx(ctx, nil, stored)

	f.deposit(t, "bob", 1000)
	_, err = f.market.BuyProperty(ctx, Call{Caller: "bob", Value: decimal.NewFromInt(1000)}, listing.ID)
	if KindOf(err) != KindInvalidState {
		t.Fatalf("err=%v want invalid_state", err)
	}
	if bal := f.accountBalance(t, "bob"); !bal.Equal(decimal.NewFromInt(1000)) {
		t.Fatalf("bob=%s want untouched 1000", bal)
	}
}

func TestCreatePropertyListing_RequiresApprovalAndOwnership(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if err := f.registry.GrantTokenizer(ctx, Call{Caller: testAdmin}, "alice"); err != nil {
		t.Fatalf("grant: %v", err)
	}
	property, err := f.registry.Mint(ctx, Call{Caller: "alice"}, MintPropertyParams{Address: "9 Oak Ln"})
	if err != nil {
		t.Fatalf("mint: %v", err)
	}

	_, err = f.market.CreatePropertyListing(ctx, Call{Caller: "alice"}, property.ID, decimal.NewFromInt(100))
	if KindOf(err) != KindUnauthorized {
		t.Fatalf("no approval err=%v want unauthorized", err)
	}
	if _, err := f.registry.Approve(ctx, Call{Caller: "alice"}, property.ID, OperatorMarketplace); err != nil {
		t.Fatalf("approve: %v", err)
	}
	_, err = f.market.CreatePropertyListing(ctx, Call{Caller: "bob"}, property.ID, decimal.NewFromInt(100))
	if KindOf(err) != KindUnauthorized {
		t.Fatalf("non-owner err=%v want unauthorized", err)
	}
}

func TestBuySharesListing_PartialFills(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pool := f.mintTokenized(t, "alice", 100, 5)

	if err := f.ledger.SetOperatorApproval(ctx, Call{Caller: "alice"}, OperatorMarketplace, true); err != nil {
		t.Fatalf("set approval: %v", err)
	}
	listing, err := f.market.CreateSharesListing(ctx, Call{Caller: "alice"}, pool.ID, 20, decimal.NewFromInt(10))
	if err != nil {
		t.Fatalf("create shares listing: %v", err)
	}

	f.deposit(t, "bob", 200)
	after, err := f.market.BuySharesListing(ctx, Call{Caller: "bob", Value: decimal.NewFromInt(120)}, listing.ID, 12)
	if err != nil {
		t.Fatalf("first fill: %v", err)
	}
	if after.Amount != 8 || !after.IsActive {
		t.Fatalf("listing amount=%d active=%v want 8/true", after.Amount, after.IsActive)
	}
	if b := f.balanceOf(t, pool.ID, "bob"); b != 12 {
		t.Fatalf("bob shares=%d want 12", b)
	}

	after, err = f.market.BuySharesListing(ctx, Call{Caller: "bob", Value: decimal.NewFromInt(80)}, listing.ID, 8)
	if err != nil {
		t.Fatalf("second fill: %v", err)
	}
	if after.Amount != 0 || after.IsActive || after.SoldOutAt == nil {
		t.Fatalf("listing amount=%d active=%v want drained", after.Amount, after.IsActive)
	}

	// 250 bp of 120 floors to 3, of 80 to 2.
	if bal := f.accountBalance(t, "treasury"); !bal.Equal(decimal.NewFromInt(5)) {
		t.Fatalf("treasury=%s want 5", bal)
	}
	if bal := f.accountBalance(t, "alice"); !bal.Equal(decimal.NewFromInt(195)) {
		t.Fatalf("alice=%s want 195", bal)
	}
}

func TestBuySharesListing_SellerSpentHoldings(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pool := f.mintTokenized(t, "alice", 100, 5)

	if err := f.ledger.SetOperatorApproval(ctx, Call{Caller: "alice"}, OperatorMarketplace, true); err != nil {
		t.Fatalf("set approval: %v", err)
	}
	listing, err := f.market.CreateSharesListing(ctx, Call{Caller: "alice"}, pool.ID, 100, decimal.NewFromInt(10))
	if err != nil {
		t.Fatalf("create listing: %v", err)
	}

	// Alice sells 95 through the pool path; the listing now overcommits.
	f.deposit(t, "carol", 475)
	if _, err := f.ledger.BuyShares(ctx, Call{Caller: "carol", Value: decimal.NewFromInt(475)}, pool.ID, 95); err != nil {
		t.Fatalf("pool buy: %v", err)
	}

	f.deposit(t, "bob", 1000)
	_, err = f.market.BuySharesListing(ctx, Call{Caller: "bob", Value: decimal.NewFromInt(100)}, listing.ID, 10)
	if KindOf(err) != KindInsufficientBalance {
		t.Fatalf("err=%v want insufficient_balance", err)
	}
	// 5 shares remain deliverable.
	if _, err := f.market.BuySharesListing(ctx, Call{Caller: "bob", Value: decimal.NewFromInt(50)}, listing.ID, 5); err != nil {
		t.Fatalf("deliverable fill: %v", err)
	}
}

// When the seller is also the fee recipient, both credits land on the same
// account row; the second must build on the first or the fee evaporates.
func TestBuySharesListing_SellerIsFeeRecipient(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pool := f.mintTokenized(t, "alice", 100, 5)

	if err := f.settings.SetFeeRecipient(ctx, Call{Caller: testAdmin}, "alice"); err != nil {
		t.Fatalf("set fee recipient: %v", err)
	}
	if err := f.ledger.SetOperatorApproval(ctx, Call{Caller: "alice"}, OperatorMarketplace, true); err != nil {
		t.Fatalf("set approval: %v", err)
	}
	listing, err := f.market.CreateSharesListing(ctx, Call{Caller: "alice"}, pool.ID, 20, decimal.NewFromInt(10))
	if err != nil {
		t.Fatalf("create listing: %v", err)
	}

	f.deposit(t, "bob", 120)
	if _, err := f.market.BuySharesListing(ctx, Call{Caller: "bob", Value: decimal.NewFromInt(120)}, listing.ID, 12); err != nil {
		t.Fatalf("fill: %v", err)
	}

	// Fee 3 plus proceeds 117: nothing may be lost to a stale re-read.
	if bal := f.accountBalance(t, "alice"); !bal.Equal(decimal.NewFromInt(120)) {
		t.Fatalf("alice=%s want 120", bal)
	}
	if bal := f.accountBalance(t, "bob"); !bal.IsZero() {
		t.Fatalf("bob=%s want 0", bal)
	}
	if bal := f.accountBalance(t, "treasury"); !bal.IsZero() {
		t.Fatalf("treasury=%s want 0", bal)
	}
}

// Every read issued during a settlement must go through the transaction
// handle; a snapshot read inside InTx would miss the operation's own writes.
func TestSettlementReadsUseTransaction(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pool := f.mintTokenized(t, "alice", 100, 5)

	f.deposit(t, "bob", 1000)
	if _, err := f.ledger.BuyShares(ctx, Call{Caller: "bob", Value: decimal.NewFromInt(50)}, pool.ID, 10); err != nil {
		t.Fatalf("pool buy: %v", err)
	}
	if _, err := f.ledger.ListShares(ctx, Call{Caller: "alice"}, pool.ID, 10, decimal.NewFromInt(6)); err != nil {
		t.Fatalf("list: %v", err)
	}
	if _, err := f.ledger.BuyListedShares(ctx, Call{Caller: "bob", Value: decimal.NewFromInt(30)}, pool.ID, "alice", 5); err != nil {
		t.Fatalf("offer buy: %v", err)
	}
	if err := f.ledger.SetOperatorApproval(ctx, Call{Caller: "alice"}, OperatorMarketplace, true); err != nil {
		t.Fatalf("set approval: %v", err)
	}
	listing, err := f.market.CreateSharesListing(ctx, Call{Caller: "alice"}, pool.ID, 10, decimal.NewFromInt(10))
	if err != nil {
		t.Fatalf("create listing: %v", err)
	}
	if _, err := f.market.BuySharesListing(ctx, Call{Caller: "bob", Value: decimal.NewFromInt(100)}, listing.ID, 10); err != nil {
		t.Fatalf("market fill: %v", err)
	}
	if err := f.settings.SetFeePercentage(ctx, Call{Caller: testAdmin}, 300); err != nil {
		t.Fatalf("set fee: %v", err)
	}

	if f.repo.staleReads != 0 {
		t.Fatalf("%d snapshot reads issued inside transactions, want 0", f.repo.staleReads)
	}
}

func TestCancelListing_Finality(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	property := f.mintApprovedForMarket(t, "alice")

	listing, err := f.market.CreatePropertyListing(ctx, Call{Caller: "alice"}, property.ID, decimal.NewFromInt(1000))
	if err != nil {
		t.Fatalf("create listing: %v", err)
	}

	_, err = f.market.CancelListing(ctx, Call{Caller: "bob"}, listing.ID)
	if KindOf(err) != KindUnauthorized {
		t.Fatalf("foreign cancel err=%v want unauthorized", err)
	}

	cancelled, err := f.market.CancelListing(ctx, Call{Caller: "alice"}, listing.ID)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cancelled.IsActive || cancelled.CancelledAt == nil {
		t.Fatalf("cancelled listing active=%v", cancelled.IsActive)
	}

	f.deposit(t, "bob", 1000)
	_, err = f.market.BuyProperty(ctx, Call{Caller: "bob", Value: decimal.NewFromInt(1000)}, listing.ID)
	if KindOf(err) != KindInvalidState {
		t.Fatalf("buy cancelled err=%v want invalid_state", err)
	}
	_, err = f.market.CancelListing(ctx, Call{Caller: "alice"}, listing.ID)
	if KindOf(err) != KindInvalidState {
		t.Fatalf("double cancel err=%v want invalid_state", err)
	}
}

func TestSplitFee(t *testing.T) {
	cases := []struct {
		price    int64
		feeBP    int64
		fee      int64
		proceeds int64
	}{
		{1000, 250, 25, 975},
		{1000, 0, 0, 1000},
		{999, 250, 24, 975},
		{1, 250, 0, 1},
		{1000, 10000, 1000, 0},
	}
	for _, tc := range cases {
		fee, proceeds := splitFee(decimal.NewFromInt(tc.price), tc.feeBP)
		if !fee.Equal(decimal.NewFromInt(tc.fee)) || !proceeds.Equal(decimal.NewFromInt(tc.proceeds)) {
			t.Fatalf("splitFee(%d, %d)=(%s,%s) want (%d,%d)",
				tc.price, tc.feeBP, fee, proceeds, tc.fee, tc.proceeds)
		}
		if !fee.Add(proceeds).Equal(decimal.NewFromInt(tc.price)) {
			t.Fatalf("fee+proceeds != price for %+v", tc)
		}
	}
}

func TestValidateListingPurchase(t *testing.T) {
	listing := &models.MarketListing{
		ID:       1,
		Kind:     models.ListingKindShares,
		Amount:   10,
		Price:    decimal.NewFromInt(10),
		IsActive: true,
	}
	required := requiredListingPayment(listing, 4)
	if !required.Equal(decimal.NewFromInt(40)) {
		t.Fatalf("required=%s want 40", required)
	}
	if err := validateListingPurchase(listing, models.ListingKindShares, 4, required, required); err != nil {
		t.Fatalf("valid purchase rejected: %v", err)
	}
	if err := validateListingPurchase(listing, models.ListingKindProperty, 1, required, required); KindOf(err) != KindInvalidInput {
		t.Fatalf("kind mismatch err=%v", err)
	}
	if err := validateListingPurchase(listing, models.ListingKindShares, 11, decimal.NewFromInt(110), decimal.NewFromInt(110)); KindOf(err) != KindInsufficientSupply {
		t.Fatalf("over amount err=%v", err)
	}
	if err := validateListingPurchase(nil, models.ListingKindShares, 1, decimal.Zero, decimal.Zero); KindOf(err) != KindNotFound {
		t.Fatalf("nil listing err=%v", err)
	}
}

func TestCreateSharesListing_RequiresOperatorApproval(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pool := f.mintTokenized(t, "alice", 100, 5)

	_, err := f.market.CreateSharesListing(ctx, Call{Caller: "alice"}, pool.ID, 10, decimal.NewFromInt(10))
	if KindOf(err) != KindUnauthorized {
		t.Fatalf("err=%v want unauthorized", err)
	}
	if err := f.ledger.SetOperatorApproval(ctx, Call{Caller: "alice"}, OperatorMarketplace, true); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if err := f.ledger.SetOperatorApproval(ctx, Call{Caller: "alice"}, OperatorMarketplace, false); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	_, err = f.market.CreateSharesListing(ctx, Call{Caller: "alice"}, pool.ID, 10, decimal.NewFromInt(10))
	if KindOf(err) != KindUnauthorized {
		t.Fatalf("after revoke err=%v want unauthorized", err)
	}
}
