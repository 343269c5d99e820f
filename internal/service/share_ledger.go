package service

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"propmarket/internal/models"
	"propmarket/internal/repository"
)

// ShareLedgerService fractionalizes registered properties into fungible share
// pools and settles pool purchases and peer-listed sales. Conservation holds
// throughout: the full supply is minted to the tokenizer once and only moves
// between holder balances afterwards.
type ShareLedgerService struct {
	Repo     repository.Repository
	Accounts *AccountService
	Seq      *Sequencer
	Events   EventSink
	Logger   *zap.Logger
}

type TokenizeParams struct {
	PropertyID    uint64
	TotalShares   int64
	PricePerShare decimal.Decimal
}

func (s *ShareLedgerService) TokenizeProperty(ctx context.Context, call Call, params TokenizeParams) (*models.SharePool, error) {
	const op = "ledger.tokenize_property"
	call = call.normalized()
	if !call.valid() {
		return nil, errf(KindInvalidInput, op, "caller is empty")
	}
	if params.TotalShares <= 0 {
		return nil, errf(KindInvalidInput, op, "total shares must be positive")
	}
	if !params.PricePerShare.IsPositive() {
		return nil, errf(KindInvalidInput, op, "price per share must be positive")
	}

	var pool *models.SharePool
	event := newEvent(models.EventPropertyTokenized, call.Caller)
	err := s.Seq.Do(func() error {
		return s.Repo.InTx(ctx, func(tx *gorm.DB) error {
			property, err := s.Repo.GetPropertyByIDTx(ctx, tx, params.PropertyID)
			if err != nil {
				return err
			}
			if property == nil {
				return errf(KindNotFound, op, "property %d not found", params.PropertyID)
			}
			if property.IsTokenized {
				return errf(KindInvalidState, op, "property %d is already tokenized", params.PropertyID)
			}
			if property.Owner != call.Caller {
				return errf(KindUnauthorized, op, "caller %s does not own property %d", call.Caller, params.PropertyID)
			}
			if property.Approved == nil || *property.Approved != OperatorShareLedger {
				return errf(KindUnauthorized, op, "property %d is not approved to the share ledger", params.PropertyID)
			}

			// Custody of the whole-property record moves to the ledger;
			// the approval slot is consumed by the transfer.
			property.Owner = OperatorShareLedger
			property.Approved = nil
			property.IsTokenized = true
			if err := s.Repo.SavePropertyTx(ctx, tx, property); err != nil {
				return err
			}

			pool = &models.SharePool{
				PropertyID:      params.PropertyID,
				TotalShares:     params.TotalShares,
				AvailableShares: params.TotalShares,
				PricePerShare:   params.PricePerShare,
				Tokenizer:       call.Caller,
				Active:          true,
			}
			if err := s.Repo.CreateSharePoolTx(ctx, tx, pool); err != nil {
				return err
			}
			balance := &models.ShareBalance{
				ShareID: pool.ID,
				Holder:  call.Caller,
				Amount:  params.TotalShares,
			}
			if err := s.Repo.SaveShareBalanceTx(ctx, tx, balance); err != nil {
				return err
			}

			event.PropertyID = u64p(params.PropertyID)
			event.ShareID = u64p(pool.ID)
			event.Amount = i64p(params.TotalShares)
			event.Value = decp(params.PricePerShare)
			return s.Repo.AppendEventTx(ctx, tx, event)
		})
	})
	if err != nil {
		return nil, err
	}
	publish(s.Events, event)
	return pool, nil
}

// BuyShares settles a direct purchase from the pool at the fixed pool price.
// Shares move out of the tokenizer's balance; the payment goes to the
// tokenizer in full.
func (s *ShareLedgerService) BuyShares(ctx context.Context, call Call, shareID uint64, amount int64) (*models.ShareBalance, error) {
	const op = "ledger.buy_shares"
	call = call.normalized()
	if !call.valid() {
		return nil, errf(KindInvalidInput, op, "caller is empty")
	}

	var out *models.ShareBalance
	event := newEvent(models.EventSharesPurchased, call.Caller)
	err := s.Seq.Do(func() error {
		return s.Repo.InTx(ctx, func(tx *gorm.DB) error {
			pool, err := s.Repo.GetSharePoolByIDTx(ctx, tx, shareID)
			if err != nil {
				return err
			}
			if pool == nil {
				return errf(KindNotFound, op, "share pool %d not found", shareID)
			}
			// A self-purchase would load the tokenizer's balance twice and
			// let the second save mint shares; reject it outright.
			if pool.Tokenizer == call.Caller {
				return errf(KindInvalidInput, op, "tokenizer cannot buy from their own pool")
			}
			sellerBal, err := s.Repo.GetShareBalanceTx(ctx, tx, shareID, pool.Tokenizer)
			if err != nil {
				return err
			}
			sellerAmount := int64(0)
			if sellerBal != nil {
				sellerAmount = sellerBal.Amount
			}
			if err := validatePoolPurchase(pool, sellerAmount, amount, call.Value); err != nil {
				return err
			}
			if err := s.rejectFrozenRecipient(ctx, tx, op, pool.Tokenizer); err != nil {
				return err
			}

			buyerBal, err := s.Repo.GetShareBalanceTx(ctx, tx, shareID, call.Caller)
			if err != nil {
				return err
			}
			if buyerBal == nil {
				buyerBal = &models.ShareBalance{ShareID: shareID, Holder: call.Caller}
			}

			if err := s.Accounts.debitTx(ctx, tx, op, call.Caller, call.Value); err != nil {
				return err
			}
			if _, err := s.Accounts.creditTx(ctx, tx, op, pool.Tokenizer, call.Value); err != nil {
				return err
			}

			pool.AvailableShares -= amount
			sellerBal.Amount -= amount
			buyerBal.Amount += amount
			if err := s.Repo.SaveSharePoolTx(ctx, tx, pool); err != nil {
				return err
			}
			if err := s.Repo.SaveShareBalanceTx(ctx, tx, sellerBal); err != nil {
				return err
			}
			if err := s.Repo.SaveShareBalanceTx(ctx, tx, buyerBal); err != nil {
				return err
			}
			out = buyerBal

			event.ShareID = u64p(shareID)
			event.Buyer = strp(call.Caller)
			event.Seller = strp(pool.Tokenizer)
			event.Amount = i64p(amount)
			event.Value = decp(call.Value)
			return s.Repo.AppendEventTx(ctx, tx, event)
		})
	})
	if err != nil {
		return nil, err
	}
	publish(s.Events, event)
	return out, nil
}

// ListShares records (or overwrites) the caller's peer offer for a pool.
// The balance check happens at list time only.
func (s *ShareLedgerService) ListShares(ctx context.Context, call Call, shareID uint64, amount int64, price decimal.Decimal) (*models.ShareOffer, error) {
	const op = "ledger.list_shares"
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

	var out *models.ShareOffer
	event := newEvent(models.EventSharesListed, call.Caller)
	err := s.Seq.Do(func() error {
		return s.Repo.InTx(ctx, func(tx *gorm.DB) error {
			pool, err := s.Repo.GetSharePoolByIDTx(ctx, tx, shareID)
			if err != nil {
				return err
			}
			if pool == nil {
				return errf(KindNotFound, op, "share pool %d not found", shareID)
			}
			if !pool.Active {
				return errf(KindInvalidState, op, "share pool %d is inactive", shareID)
			}
			balance, err := s.Repo.GetShareBalanceTx(ctx, tx, shareID, call.Caller)
			if err != nil {
				return err
			}
			if balance == nil || balance.Amount < amount {
				return errf(KindInsufficientBalance, op, "caller %s holds fewer than %d shares of pool %d", call.Caller, amount, shareID)
			}

			offer, err := s.Repo.GetShareOfferTx(ctx, tx, shareID, call.Caller)
			if err != nil {
				return err
			}
			if offer == nil {
				offer = &models.ShareOffer{ShareID: shareID, Seller: call.Caller}
			}
			offer.Amount = amount
			offer.Price = price
			offer.IsListed = true
			if err := s.Repo.SaveShareOfferTx(ctx, tx, offer); err != nil {
				return err
			}
			out = offer

			event.ShareID = u64p(shareID)
			event.Seller = strp(call.Caller)
			event.Amount = i64p(amount)
			event.Value = decp(price)
			return s.Repo.AppendEventTx(ctx, tx, event)
		})
	})
	if err != nil {
		return nil, err
	}
	publish(s.Events, event)
	return out, nil
}

// CancelShareOffer clears the caller's own offer without a trade.
func (s *ShareLedgerService) CancelShareOffer(ctx context.Context, call Call, shareID uint64) error {
	const op = "ledger.cancel_share_offer"
	call = call.normalized()
	if !call.valid() {
		return errf(KindInvalidInput, op, "caller is empty")
	}

	event := newEvent(models.EventShareOfferCleared, call.Caller)
	err := s.Seq.Do(func() error {
		return s.Repo.InTx(ctx, func(tx *gorm.DB) error {
			offer, err := s.Repo.GetShareOfferTx(ctx, tx, shareID, call.Caller)
			if err != nil {
				return err
			}
			if offer == nil || !offer.IsListed {
				return errf(KindNotFound, op, "no active offer by %s on pool %d", call.Caller, shareID)
			}
			offer.Amount = 0
			offer.IsListed = false
			if err := s.Repo.SaveShareOfferTx(ctx, tx, offer); err != nil {
				return err
			}
			event.ShareID = u64p(shareID)
			event.Seller = strp(call.Caller)
			return s.Repo.AppendEventTx(ctx, tx, event)
		})
	})
	if err != nil {
		return err
	}
	publish(s.Events, event)
	return nil
}

// BuyListedShares settles against a peer offer at the seller's price. The
// full payment is forwarded to the seller; no platform fee applies at this
// layer (only Marketplace settlements skim a fee).
func (s *ShareLedgerService) BuyListedShares(ctx context.Context, call Call, shareID uint64, seller string, amount int64) (*models.ShareBalance, error) {
	const op = "ledger.buy_listed_shares"
	call = call.normalized()
	seller = strings.TrimSpace(seller)
	if !call.valid() {
		return nil, errf(KindInvalidInput, op, "caller is empty")
	}
	if seller == call.Caller {
		return nil, errf(KindInvalidInput, op, "seller cannot buy their own offer")
	}

	var out *models.ShareBalance
	event := newEvent(models.EventListedSharesBought, call.Caller)
	err := s.Seq.Do(func() error {
		return s.Repo.InTx(ctx, func(tx *gorm.DB) error {
			offer, err := s.Repo.GetShareOfferTx(ctx, tx, shareID, seller)
			if err != nil {
				return err
			}
			sellerBal, err := s.Repo.GetShareBalanceTx(ctx, tx, shareID, seller)
			if err != nil {
				return err
			}
			sellerAmount := int64(0)
			if sellerBal != nil {
				sellerAmount = sellerBal.Amount
			}
			if err := validateOfferPurchase(offer, sellerAmount, amount, call.Value); err != nil {
				return err
			}
			if err := s.rejectFrozenRecipient(ctx, tx, op, seller); err != nil {
				return err
			}

			buyerBal, err := s.Repo.GetShareBalanceTx(ctx, tx, shareID, call.Caller)
			if err != nil {
				return err
			}
			if buyerBal == nil {
				buyerBal = &models.ShareBalance{ShareID: shareID, Holder: call.Caller}
			}

			if err := s.Accounts.debitTx(ctx, tx, op, call.Caller, call.Value); err != nil {
				return err
			}
			if _, err := s.Accounts.creditTx(ctx, tx, op, seller, call.Value); err != nil {
				return err
			}

			offer.Amount -= amount
			if offer.Amount == 0 {
				offer.IsListed = false
			}
			sellerBal.Amount -= amount
			buyerBal.Amount += amount
			if err := s.Repo.SaveShareOfferTx(ctx, tx, offer); err != nil {
				return err
			}
			if err := s.Repo.SaveShareBalanceTx(ctx, tx, sellerBal); err != nil {
				return err
			}
			if err := s.Repo.SaveShareBalanceTx(ctx, tx, buyerBal); err != nil {
				return err
			}
			out = buyerBal

			event.ShareID = u64p(shareID)
			event.Seller = strp(seller)
			event.Buyer = strp(call.Caller)
			event.Amount = i64p(amount)
			event.Value = decp(call.Value)
			return s.Repo.AppendEventTx(ctx, tx, event)
		})
	})
	if err != nil {
		return nil, err
	}
	publish(s.Events, event)
	return out, nil
}

// SetOperatorApproval is the share-side approval switch a holder flips before
// creating marketplace share listings.
func (s *ShareLedgerService) SetOperatorApproval(ctx context.Context, call Call, operator string, approved bool) error {
	const op = "ledger.set_operator_approval"
	call = call.normalized()
	operator = strings.TrimSpace(operator)
	if !call.valid() {
		return errf(KindInvalidInput, op, "caller is empty")
	}
	if operator != OperatorMarketplace {
		return errf(KindInvalidInput, op, "unknown operator %q", operator)
	}

	event := newEvent(models.EventOperatorApproval, call.Caller)
	err := s.Seq.Do(func() error {
		return s.Repo.InTx(ctx, func(tx *gorm.DB) error {
			item := &models.OperatorApproval{
				Holder:   call.Caller,
				Operator: operator,
				Approved: approved,
			}
			if err := s.Repo.UpsertOperatorApprovalTx(ctx, tx, item); err != nil {
				return err
			}
			event.Payload = eventPayload(map[string]any{"operator": operator, "approved": approved})
			return s.Repo.AppendEventTx(ctx, tx, event)
		})
	})
	if err != nil {
		return err
	}
	publish(s.Events, event)
	return nil
}

func (s *ShareLedgerService) GetShareInfo(ctx context.Context, shareID uint64) (*models.SharePool, error) {
	const op = "ledger.get_share_info"
	pool, err := s.Repo.GetSharePoolByID(ctx, shareID)
	if err != nil {
		return nil, err
	}
	if pool == nil {
		return nil, errf(KindNotFound, op, "share pool %d not found", shareID)
	}
	return pool, nil
}

func (s *ShareLedgerService) GetListedShareInfo(ctx context.Context, shareID uint64, seller string) (*models.ShareOffer, error) {
	const op = "ledger.get_listed_share_info"
	offer, err := s.Repo.GetShareOffer(ctx, shareID, strings.TrimSpace(seller))
	if err != nil {
		return nil, err
	}
	if offer == nil {
		return nil, errf(KindNotFound, op, "no offer by %s on pool %d", seller, shareID)
	}
	return offer, nil
}

// BalanceOf reports the holder's share count; holders without a balance row
// simply hold zero.
func (s *ShareLedgerService) BalanceOf(ctx context.Context, shareID uint64, holder string) (int64, error) {
	balance, err := s.Repo.GetShareBalance(ctx, shareID, strings.TrimSpace(holder))
	if err != nil {
		return 0, err
	}
	if balance == nil {
		return 0, nil
	}
	return balance.Amount, nil
}

func (s *ShareLedgerService) HolderBalances(ctx context.Context, holder string) ([]models.ShareBalance, error) {
	return s.Repo.ListShareBalancesByHolder(ctx, strings.TrimSpace(holder))
}

func (s *ShareLedgerService) ListOffers(ctx context.Context, shareID uint64) ([]models.ShareOffer, error) {
	return s.Repo.ListShareOffersByShareID(ctx, shareID)
}

func (s *ShareLedgerService) rejectFrozenRecipient(ctx context.Context, tx *gorm.DB, op, address string) error {
	account, err := s.Repo.GetAccountTx(ctx, tx, address)
	if err != nil {
		return err
	}
	if account != nil && account.Frozen {
		return errf(KindInvalidState, op, "account %s rejects transfers", address)
	}
	return nil
}

// --- settlement validation (pure) -------------------------------------------

func requiredPayment(amount int64, price decimal.Decimal) decimal.Decimal {
	return price.Mul(decimal.NewFromInt(amount))
}

func validatePoolPurchase(pool *models.SharePool, sellerAmount, amount int64, value decimal.Decimal) error {
	const op = "ledger.buy_shares"
	if !pool.Active {
		return errf(KindInvalidState, op, "share pool %d is inactive", pool.ID)
	}
	if amount <= 0 {
		return errf(KindInvalidInput, op, "amount must be positive")
	}
	if amount > pool.AvailableShares {
		return errf(KindInsufficientSupply, op, "pool %d has %d shares available, want %d", pool.ID, pool.AvailableShares, amount)
	}
	if sellerAmount < amount {
		return errf(KindInsufficientBalance, op, "tokenizer holds %d shares of pool %d, want %d", sellerAmount, pool.ID, amount)
	}
	if required := requiredPayment(amount, pool.PricePerShare); !value.Equal(required) {
		return errf(KindInsufficientFunds, op, "payment %s does not match required %s", value, required)
	}
	return nil
}

func validateOfferPurchase(offer *models.ShareOffer, sellerAmount, amount int64, value decimal.Decimal) error {
	const op = "ledger.buy_listed_shares"
	if offer == nil || !offer.IsListed {
		return errf(KindNotFound, op, "offer not found or not listed")
	}
	if amount <= 0 {
		return errf(KindInvalidInput, op, "amount must be positive")
	}
	if amount > offer.Amount {
		return errf(KindInsufficientSupply, op, "offer has %d shares, want %d", offer.Amount, amount)
	}
	if sellerAmount < amount {
		return errf(KindInsufficientBalance, op, "seller holds %d shares, want %d", sellerAmount, amount)
	}
	if required := requiredPayment(amount, offer.Price); !value.Equal(required) {
		return errf(KindInsufficientFunds, op, "payment %s does not match required %s", value, required)
	}
	return nil
}
