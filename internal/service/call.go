package service

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Well-known custodial operators. A property must be approved to
// OperatorShareLedger before tokenization and to OperatorMarketplace before a
// whole-property listing; share holders approve OperatorMarketplace before
// share listings.
const (
	OperatorShareLedger = "share-ledger"
	OperatorMarketplace = "marketplace"
)

// Call is the caller context the wallet collaborator supplies: the signing
// address plus the wei value attached to a payable operation.
type Call struct {
	Caller string
	Value  decimal.Decimal
}

func (c Call) normalized() Call {
	return Call{Caller: strings.TrimSpace(c.Caller), Value: c.Value}
}

func (c Call) valid() bool {
	return c.Caller != "" && !c.Value.IsNegative()
}
