package service

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"propmarket/internal/models"
	"propmarket/internal/repository"
)

// MarketplaceService runs the fee-charging venue layered on top of the
// registry and the share ledger. Sellers escrow nothing: listings are
// declarations, and every settlement re-checks the seller still has the
// goods before money moves.
type MarketplaceService struct {
	Repo     repository.Repository
	Accounts *AccountService
	Settings *SettingsService
	Seq      *Sequencer
	Events   EventSink
	Logger   *zap.Logger
}

// CreatePropertyListing puts a whole, non-tokenized property up for sale.
// The caller must own it and must have approved the marketplace operator on
// the registry side first.
func (s *MarketplaceService) CreatePropertyListing(ctx context.Context, call Call, propertyID uint64, price decimal.Decimal) (*models.MarketListing, error) {
	const op = "market.create_property_listing"
	call = call.normalized()
	if !call.valid() {
		return nil, errf(KindInvalidInput, op, "caller is empty")
	}
	if !price.IsPositive() {
		return nil, errf(KindInvalidInput, op, "price must be positive")
	}

	var listing *models.MarketListing
	event := newEvent(models.EventListingCreated, call.Caller)
	err := s.Seq.Do(func() error {
		return s.Repo.InTx(ctx, func(tx *gorm.DB) error {
			property, err := s.Repo.GetPropertyByIDTx(ctx, tx, propertyID)
			if err != nil {
				return err
			}
			if property == nil {
				return errf(KindNotFound, op, "property %d not found", propertyID)
			}
			if property.IsTokenized {
				return errf(KindInvalidState, op, "property %d is tokenized and cannot be listed whole", propertyID)
			}
			if property.Owner != call.Caller {
				return errf(KindUnauthorized, op, "caller %s does not own property %d", call.Caller, propertyID)
			}
			if property.Approved == nil || *property.Approved != OperatorMarketplace {
				return errf(KindUnauthorized, op, "property %d is not approved to the marketplace", propertyID)
			}

			listing = &models.MarketListing{
				Kind:     models.ListingKindProperty,
				Seller:   call.Caller,
				TokenID:  propertyID,
				Amount:   1,
				Price:    price,
				IsActive: true,
			}
			if err := s.Repo.CreateListingTx(ctx, tx, listing); err != nil {
				return err
			}

			event.ListingID = u64p(listing.ID)
			event.PropertyID = u64p(propertyID)
			event.Seller = strp(call.Caller)
			event.Value = decp(price)
			event.Payload = eventPayload(map[string]any{"kind": models.ListingKindProperty})
			return s.Repo.AppendEventTx(ctx, tx, event)
		})
	})
	if err != nil {
		return nil, err
	}
	publish(s.Events, event)
	return listing, nil
}

// CreateSharesListing lists part of the caller's holdings in a share pool.
// The seller must have flipped the marketplace operator approval on the
// ledger and must hold at least the listed amount at listing time.
func (s *MarketplaceService) CreateSharesListing(ctx context.Context, call Call, shareID uint64, amount int64, price decimal.Decimal) (*models.MarketListing, error) {
	const op = "market.create_shares_listing"
	call = call.normalized()
	if !call.valid() {
		return nil, errf(KindInvalidInput, op, "caller is empty")
	}
	if amount <= 0 {
		return nil, errf(KindInvalidInput, op, "amount must be positive")
	}
	if !price.IsPositive() {
		return nil, errf(KindInvalidInput, op, "price must be positive")
	}

	var listing *models.MarketListing
	event := newEvent(models.EventListingCreated, call.Caller)
	err := s.Seq.Do(func() error {
		return s.Repo.InTx(ctx, func(tx *gorm.DB) error {
			pool, err := s.Repo.GetSharePoolByIDTx(ctx, tx, shareID)
			if err != nil {
				return err
			}
			if pool == nil {
				return errf(KindNotFound, op, "share pool %d not found", shareID)
			}
			approval, err := s.Repo.GetOperatorApprovalTx(ctx, tx, call.Caller, OperatorMarketplace)
			if err != nil {
				return err
			}
			if approval == nil || !approval.Approved {
				return errf(KindUnauthorized, op, "caller %s has not approved the marketplace operator", call.Caller)
			}
			balance, err := s.Repo.GetShareBalanceTx(ctx, tx, shareID, call.Caller)
			if err != nil {
				return err
			}
			if balance == nil || balance.Amount < amount {
				return errf(KindInsufficientBalance, op, "caller %s holds fewer than %d shares of pool %d", call.Caller, amount, shareID)
			}

			listing = &models.MarketListing{
				Kind:     models.ListingKindShares,
				Seller:   call.Caller,
				TokenID:  shareID,
				Amount:   amount,
				Price:    price,
				IsActive: true,
			}
			if err := s.Repo.CreateListingTx(ctx, tx, listing); err != nil {
				return err
			}

			event.ListingID = u64p(listing.ID)
			event.ShareID = u64p(shareID)
			event.Seller = strp(call.Caller)
			event.Amount = i64p(amount)
			event.Value = decp(price)
			event.Payload = eventPayload(map[string]any{"kind": models.ListingKindShares})
			return s.Repo.AppendEventTx(ctx, tx, event)
		})
	})
	if err != nil {
		return nil, err
	}
	publish(s.Events, event)
	return listing, nil
}

// BuyProperty settles a whole-property listing: the platform fee is skimmed
// to the fee recipient, the remainder goes to the seller, ownership moves to
// the buyer, and the listing deactivates.
func (s *MarketplaceService) BuyProperty(ctx context.Context, call Call, listingID uint64) (*models.Property, error) {
	const op = "market.buy_property"
	call = call.normalized()
	if !call.valid() {
		return nil, errf(KindInvalidInput, op, "caller is empty")
	}

	var property *models.Property
	event := newEvent(models.EventListingSold, call.Caller)
	err := s.Seq.Do(func() error {
		return s.Repo.InTx(ctx, func(tx *gorm.DB) error {
			listing, err := s.Repo.GetListingByIDTx(ctx, tx, listingID)
			if err != nil {
				return err
			}
			if err := validateListingPurchase(listing, models.ListingKindProperty, 1, call.Value, requiredListingPayment(listing, 1)); err != nil {
				return err
			}
			if listing.Seller == call.Caller {
				return errf(KindInvalidInput, op, "seller cannot buy their own listing")
			}
			property, err = s.Repo.GetPropertyByIDTx(ctx, tx, listing.TokenID)
			if err != nil {
				return err
			}
			if property == nil {
				return errf(KindNotFound, op, "property %d not found", listing.TokenID)
			}
			if property.Owner != listing.Seller {
				return errf(KindInvalidState, op, "seller %s no longer owns property %d", listing.Seller, property.ID)
			}

			feeBP, err := s.Settings.feeBPTx(ctx, tx)
			if err != nil {
				return err
			}
			recipient, err := s.Settings.feeRecipientTx(ctx, tx)
			if err != nil {
				return err
			}
			fee, proceeds := splitFee(call.Value, feeBP)
			if err := s.rejectFrozenRecipient(ctx, tx, op, listing.Seller); err != nil {
				return err
			}

			if err := s.Accounts.debitTx(ctx, tx, op, call.Caller, call.Value); err != nil {
				return err
			}
			if fee.IsPositive() && recipient != "" {
				if _, err := s.Accounts.creditTx(ctx, tx, op, recipient, fee); err != nil {
					return err
				}
			} else {
				proceeds = call.Value
			}
			if _, err := s.Accounts.creditTx(ctx, tx, op, listing.Seller, proceeds); err != nil {
				return err
			}

			// Ownership transfer consumes any outstanding approval.
			property.Owner = call.Caller
			property.Approved = nil
			if err := s.Repo.SavePropertyTx(ctx, tx, property); err != nil {
				return err
			}
			now := time.Now()
			listing.IsActive = false
			listing.SoldOutAt = &now
			if err := s.Repo.SaveListingTx(ctx, tx, listing); err != nil {
				return err
			}

			event.ListingID = u64p(listing.ID)
			event.PropertyID = u64p(property.ID)
			event.Seller = strp(listing.Seller)
			event.Buyer = strp(call.Caller)
			event.Value = decp(call.Value)
			event.Payload = eventPayload(map[string]any{
				"kind":     models.ListingKindProperty,
				"fee":      fee.String(),
				"proceeds": proceeds.String(),
			})
			return s.Repo.AppendEventTx(ctx, tx, event)
		})
	})
	if err != nil {
		return nil, err
	}
	publish(s.Events, event)
	return property, nil
}

// BuySharesListing settles part or all of a shares listing. The seller's
// live balance is re-checked at settlement; a listing can exceed what the
// seller still holds, in which case the purchase fails without touching
// state.
func (s *MarketplaceService) BuySharesListing(ctx context.Context, call Call, listingID uint64, amount int64) (*models.MarketListing, error) {
	const op = "market.buy_shares_listing"
	call = call.normalized()
	if !call.valid() {
		return nil, errf(KindInvalidInput, op, "caller is empty")
	}

	var listing *models.MarketListing
	event := newEvent(models.EventListingSold, call.Caller)
	err := s.Seq.Do(func() error {
		return s.Repo.InTx(ctx, func(tx *gorm.DB) error {
			var err error
			listing, err = s.Repo.GetListingByIDTx(ctx, tx, listingID)
			if err != nil {
				return err
			}
			if err := validateListingPurchase(listing, models.ListingKindShares, amount, call.Value, requiredListingPayment(listing, amount)); err != nil {
				return err
			}
			if listing.Seller == call.Caller {
				return errf(KindInvalidInput, op, "seller cannot buy their own listing")
			}
			sellerBal, err := s.Repo.GetShareBalanceTx(ctx, tx, listing.TokenID, listing.Seller)
			if err != nil {
				return err
			}
			if sellerBal == nil || sellerBal.Amount < amount {
				return errf(KindInsufficientBalance, op, "seller %s no longer holds %d shares of pool %d", listing.Seller, amount, listing.TokenID)
			}

			feeBP, err := s.Settings.feeBPTx(ctx, tx)
			if err != nil {
				return err
			}
			recipient, err := s.Settings.feeRecipientTx(ctx, tx)
			if err != nil {
				return err
			}
			fee, proceeds := splitFee(call.Value, feeBP)
			if err := s.rejectFrozenRecipient(ctx, tx, op, listing.Seller); err != nil {
				return err
			}

			buyerBal, err := s.Repo.GetShareBalanceTx(ctx, tx, listing.TokenID, call.Caller)
			if err != nil {
				return err
			}
			if buyerBal == nil {
				buyerBal = &models.ShareBalance{ShareID: listing.TokenID, Holder: call.Caller}
			}

			if err := s.Accounts.debitTx(ctx, tx, op, call.Caller, call.Value); err != nil {
				return err
			}
			if fee.IsPositive() && recipient != "" {
				if _, err := s.Accounts.creditTx(ctx, tx, op, recipient, fee); err != nil {
					return err
				}
			} else {
				proceeds = call.Value
			}
			if _, err := s.Accounts.creditTx(ctx, tx, op, listing.Seller, proceeds); err != nil {
				return err
			}

			sellerBal.Amount -= amount
			buyerBal.Amount += amount
			if err := s.Repo.SaveShareBalanceTx(ctx, tx, sellerBal); err != nil {
				return err
			}
			if err := s.Repo.SaveShareBalanceTx(ctx, tx, buyerBal); err != nil {
				return err
			}
			listing.Amount -= amount
			if listing.Amount == 0 {
				now := time.Now()
				listing.IsActive = false
				listing.SoldOutAt = &now
			}
			if err := s.Repo.SaveListingTx(ctx, tx, listing); err != nil {
				return err
			}

			event.ListingID = u64p(listing.ID)
			event.ShareID = u64p(listing.TokenID)
			event.Seller = strp(listing.Seller)
			event.Buyer = strp(call.Caller)
			event.Amount = i64p(amount)
			event.Value = decp(call.Value)
			event.Payload = eventPayload(map[string]any{
				"kind":     models.ListingKindShares,
				"fee":      fee.String(),
				"proceeds": proceeds.String(),
			})
			return s.Repo.AppendEventTx(ctx, tx, event)
		})
	})
	if err != nil {
		return nil, err
	}
	publish(s.Events, event)
	return listing, nil
}

// CancelListing deactivates the caller's own listing. Cancellation is final:
// a cancelled listing can never settle again.
func (s *MarketplaceService) CancelListing(ctx context.Context, call Call, listingID uint64) (*models.MarketListing, error) {
	const op = "market.cancel_listing"
	call = call.normalized()
	if !call.valid() {
		return nil, errf(KindInvalidInput, op, "caller is empty")
	}

	var listing *models.MarketListing
	event := newEvent(models.EventListingCancelled, call.Caller)
	err := s.Seq.Do(func() error {
		return s.Repo.InTx(ctx, func(tx *gorm.DB) error {
			var err error
			listing, err = s.Repo.GetListingByIDTx(ctx, tx, listingID)
			if err != nil {
				return err
			}
			if listing == nil {
				return errf(KindNotFound, op, "listing %d not found", listingID)
			}
			if listing.Seller != call.Caller {
				return errf(KindUnauthorized, op, "caller %s did not create listing %d", call.Caller, listingID)
			}
			if !listing.IsActive {
				return errf(KindInvalidState, op, "listing %d is not active", listingID)
			}
			now := time.Now()
			listing.IsActive = false
			listing.CancelledAt = &now
			if err := s.Repo.SaveListingTx(ctx, tx, listing); err != nil {
				return err
			}

			event.ListingID = u64p(listing.ID)
			event.Seller = strp(call.Caller)
			event.Payload = eventPayload(map[string]any{"kind": listing.Kind})
			return s.Repo.AppendEventTx(ctx, tx, event)
		})
	})
	if err != nil {
		return nil, err
	}
	publish(s.Events, event)
	return listing, nil
}

func (s *MarketplaceService) GetListing(ctx context.Context, listingID uint64) (*models.MarketListing, error) {
	const op = "market.get_listing"
	listing, err := s.Repo.GetListingByID(ctx, listingID)
	if err != nil {
		return nil, err
	}
	if listing == nil {
		return nil, errf(KindNotFound, op, "listing %d not found", listingID)
	}
	return listing, nil
}

func (s *MarketplaceService) ListListings(ctx context.Context, params repository.ListListingsParams) ([]models.MarketListing, int64, error) {
	items, err := s.Repo.ListListings(ctx, params)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.Repo.CountListings(ctx, params)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (s *MarketplaceService) rejectFrozenRecipient(ctx context.Context, tx *gorm.DB, op, address string) error {
	account, err := s.Repo.GetAccountTx(ctx, tx, strings.TrimSpace(address))
	if err != nil {
		return err
	}
	if account != nil && account.Frozen {
		return errf(KindInvalidState, op, "account %s rejects transfers", address)
	}
	return nil
}

// --- fee math and listing validation (pure) ---------------------------------

// splitFee cuts the platform fee out of a sale price. Basis-point fee,
// floored division, remainder to the seller; fee + proceeds always equals
// the price.
func splitFee(price decimal.Decimal, feeBP int64) (fee, proceeds decimal.Decimal) {
	if feeBP <= 0 {
		return decimal.Zero, price
	}
	fee = price.Mul(decimal.NewFromInt(feeBP)).Div(decimal.NewFromInt(10000)).Floor()
	return fee, price.Sub(fee)
}

func requiredListingPayment(listing *models.MarketListing, amount int64) decimal.Decimal {
	if listing == nil {
		return decimal.Zero
	}
	if listing.Kind == models.ListingKindProperty {
		return listing.Price
	}
	return listing.Price.Mul(decimal.NewFromInt(amount))
}

func validateListingPurchase(listing *models.MarketListing, kind string, amount int64, value, required decimal.Decimal) error {
	const op = "market.buy_listing"
	if listing == nil {
		return errf(KindNotFound, op, "listing not found")
	}
	if listing.Kind != kind {
		return errf(KindInvalidInput, op, "listing %d is not a %s listing", listing.ID, kind)
	}
	if !listing.IsActive {
		return errf(KindInvalidState, op, "listing %d is not active", listing.ID)
	}
	if amount <= 0 {
		return errf(KindInvalidInput, op, "amount must be positive")
	}
	if kind == models.ListingKindShares && amount > listing.Amount {
		return errf(KindInsufficientSupply, op, "listing %d has %d shares, want %d", listing.ID, listing.Amount, amount)
	}
	if !value.Equal(required) {
		return errf(KindInsufficientFunds, op, "payment %s does not match required %s", value, required)
	}
	return nil
}
