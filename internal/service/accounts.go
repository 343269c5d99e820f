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

// AccountService manages the ledger-internal payment accounts. Deposits are
// an admin operation (the deterministic stand-in for funding a wallet);
// debit/credit helpers run inside the settlement transactions of the other
// services, so a failed payment leg rolls the whole operation back.
type AccountService struct {
	Repo   repository.Repository
	Seq    *Sequencer
	Events EventSink
	Logger *zap.Logger

	Admin string
}

func (a *AccountService) Deposit(ctx context.Context, call Call, address string, amount decimal.Decimal) (*models.Account, error) {
	const op = "accounts.deposit"
	call = call.normalized()
	address = strings.TrimSpace(address)
	if address == "" {
		return nil, errf(KindInvalidInput, op, "address is empty")
	}
	if !amount.IsPositive() {
		return nil, errf(KindInvalidInput, op, "amount must be positive")
	}
	if call.Caller != a.Admin {
		return nil, errf(KindUnauthorized, op, "caller %s is not the platform admin", call.Caller)
	}

	var out *models.Account
	event := newEvent(models.EventAccountDeposit, call.Caller)
	err := a.Seq.Do(func() error {
		return a.Repo.InTx(ctx, func(tx *gorm.DB) error {
			account, err := a.creditTx(ctx, tx, op, address, amount)
			if err != nil {
				return err
			}
			out = account
			event.Buyer = strp(address)
			event.Value = decp(amount)
			return a.Repo.AppendEventTx(ctx, tx, event)
		})
	})
	if err != nil {
		return nil, err
	}
	publish(a.Events, event)
	return out, nil
}

func (a *AccountService) SetFrozen(ctx context.Context, call Call, address string, frozen bool) (*models.Account, error) {
	const op = "accounts.set_frozen"
	call = call.normalized()
	address = strings.TrimSpace(address)
	if address == "" {
		return nil, errf(KindInvalidInput, op, "address is empty")
	}
	if call.Caller != a.Admin {
		return nil, errf(KindUnauthorized, op, "caller %s is not the platform admin", call.Caller)
	}

	kind := models.EventAccountFrozen
	if !frozen {
		kind = models.EventAccountUnfrozen
	}
	var out *models.Account
	event := newEvent(kind, call.Caller)
	err := a.Seq.Do(func() error {
		return a.Repo.InTx(ctx, func(tx *gorm.DB) error {
			account, err := a.Repo.GetAccountTx(ctx, tx, address)
			if err != nil {
				return err
			}
			if account == nil {
				account = &models.Account{Address: address, Balance: decimal.Zero}
			}
			account.Frozen = frozen
			if err := a.Repo.SaveAccountTx(ctx, tx, account); err != nil {
				return err
			}
			out = account
			event.Buyer = strp(address)
			return a.Repo.AppendEventTx(ctx, tx, event)
		})
	})
	if err != nil {
		return nil, err
	}
	publish(a.Events, event)
	return out, nil
}

func (a *AccountService) Get(ctx context.Context, address string) (*models.Account, error) {
	const op = "accounts.get"
	account, err := a.Repo.GetAccount(ctx, strings.TrimSpace(address))
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, errf(KindNotFound, op, "account %s not found", address)
	}
	return account, nil
}

// debitTx takes amount out of the caller's account. Fails with
// InsufficientFunds when the account is missing or underfunded; the enclosing
// transaction rolls back, which is the refund path for failed payable calls.
func (a *AccountService) debitTx(ctx context.Context, tx *gorm.DB, op, address string, amount decimal.Decimal) error {
	if amount.IsZero() {
		return nil
	}
	account, err := a.Repo.GetAccountTx(ctx, tx, address)
	if err != nil {
		return err
	}
	if account == nil || account.Balance.LessThan(amount) {
		return errf(KindInsufficientFunds, op, "account %s cannot cover %s", address, amount)
	}
	account.Balance = account.Balance.Sub(amount)
	return a.Repo.SaveAccountTx(ctx, tx, account)
}

// creditTx pays amount into an account, creating it on first use. A frozen
// recipient rejects the transfer, failing the whole enclosing operation.
func (a *AccountService) creditTx(ctx context.Context, tx *gorm.DB, op, address string, amount decimal.Decimal) (*models.Account, error) {
	account, err := a.Repo.GetAccountTx(ctx, tx, address)
	if err != nil {
		return nil, err
	}
	if account == nil {
		account = &models.Account{Address: address, Balance: decimal.Zero}
	}
	if account.Frozen {
		return nil, errf(KindInvalidState, op, "account %s rejects transfers", address)
	}
	account.Balance = account.Balance.Add(amount)
	if err := a.Repo.SaveAccountTx(ctx, tx, account); err != nil {
		return nil, err
	}
	return account, nil
}
