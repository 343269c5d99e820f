package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Event kinds emitted by the ledger. One event per committed state change.
const (
	EventPropertyMinted     = "property_minted"
	EventPropertyUpdated    = "property_updated"
	EventPropertyApproved   = "property_approved"
	EventPropertyTokenized  = "property_tokenized"
	EventSharesPurchased    = "shares_purchased"
	EventSharesListed       = "shares_listed"
	EventShareOfferCleared  = "share_offer_cleared"
	EventListedSharesBought = "listed_shares_bought"
	EventOperatorApproval   = "operator_approval_set"
	EventListingCreated     = "listing_created"
	EventListingSold        = "listing_sold"
	EventListingCancelled   = "listing_cancelled"
	EventFeePercentageSet   = "fee_percentage_set"
	EventFeeRecipientSet    = "fee_recipient_set"
	EventTokenizerGranted   = "tokenizer_granted"
	EventTokenizerRevoked   = "tokenizer_revoked"
	EventAccountDeposit     = "account_deposit"
	EventAccountFrozen      = "account_frozen"
	EventAccountUnfrozen    = "account_unfrozen"
)

// LedgerEvent is the append-only event log row. Seq is the global total order
// of committed operations; the row is inserted in the same transaction as the
// state change it describes, so a failed operation leaves no event behind.
type LedgerEvent struct {
	Seq uint64 `gorm:"primaryKey;autoIncrement"`
	UID string `gorm:"type:varchar(36);not null;uniqueIndex"`

	Kind  string `gorm:"type:varchar(40);not null;index"`
	Actor string `gorm:"type:varchar(64);not null;index"`

	PropertyID *uint64 `gorm:"index"`
	ShareID    *uint64 `gorm:"index"`
	ListingID  *uint64 `gorm:"index"`

	Seller *string `gorm:"type:varchar(64)"`
	Buyer  *string `gorm:"type:varchar(64)"`

	Amount *int64           `gorm:""`
	Value  *decimal.Decimal `gorm:"type:numeric(78,0)"`

	Payload datatypes.JSON `gorm:"type:jsonb"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime;index"`
}

func (LedgerEvent) TableName() string {
	return "ledger_events"
}
