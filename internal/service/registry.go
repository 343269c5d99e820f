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

// PropertyRegistryService mints and maintains the non-fungible property
// records. Minting is restricted to the tokenizer allow-list; metadata
// updates and operator approvals are owner-only.
type PropertyRegistryService struct {
	Repo   repository.Repository
	Seq    *Sequencer
	Events EventSink
	Logger *zap.Logger

	Admin string
}

type MintPropertyParams struct {
	Owner          string
	Address        string
	AreaSqM        decimal.Decimal
	PropertyType   string
	AppraisedValue decimal.Decimal
	DocumentURI    string
	Latitude       decimal.Decimal
	Longitude      decimal.Decimal
}

type UpdatePropertyParams struct {
	AreaSqM        decimal.Decimal
	PropertyType   string
	AppraisedValue decimal.Decimal
	DocumentURI    string
}

func (s *PropertyRegistryService) Mint(ctx context.Context, call Call, params MintPropertyParams) (*models.Property, error) {
	const op = "registry.mint"
	call = call.normalized()
	owner := strings.TrimSpace(params.Owner)
	if owner == "" {
		owner = call.Caller
	}
	if !call.valid() {
		return nil, errf(KindInvalidInput, op, "caller is empty")
	}
	if strings.TrimSpace(params.Address) == "" {
		return nil, errf(KindInvalidInput, op, "property address is empty")
	}
	grant, err := s.Repo.GetTokenizerGrant(ctx, call.Caller)
	if err != nil {
		return nil, err
	}
	if grant == nil {
		return nil, errf(KindUnauthorized, op, "caller %s is not an authorized tokenizer", call.Caller)
	}

	property := &models.Property{
		Owner:          owner,
		Address:        strings.TrimSpace(params.Address),
		AreaSqM:        params.AreaSqM,
		PropertyType:   strings.TrimSpace(params.PropertyType),
		AppraisedValue: params.AppraisedValue,
		DocumentURI:    strings.TrimSpace(params.DocumentURI),
		Latitude:       params.Latitude,
		Longitude:      params.Longitude,
		MintedBy:       call.Caller,
	}
	event := newEvent(models.EventPropertyMinted, call.Caller)
	err = s.Seq.Do(func() error {
		return s.Repo.InTx(ctx, func(tx *gorm.DB) error {
			if err := s.Repo.CreatePropertyTx(ctx, tx, property); err != nil {
				return err
			}
			event.PropertyID = u64p(property.ID)
			event.Payload = eventPayload(map[string]any{
				"owner":   owner,
				"address": property.Address,
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

func (s *PropertyRegistryService) UpdateInfo(ctx context.Context, call Call, propertyID uint64, params UpdatePropertyParams) (*models.Property, error) {
	const op = "registry.update_info"
	call = call.normalized()
	if !call.valid() {
		return nil, errf(KindInvalidInput, op, "caller is empty")
	}

	var out *models.Property
	event := newEvent(models.EventPropertyUpdated, call.Caller)
	err := s.Seq.Do(func() error {
		return s.Repo.InTx(ctx, func(tx *gorm.DB) error {
			property, err := s.Repo.GetPropertyByIDTx(ctx, tx, propertyID)
			if err != nil {
				return err
			}
			if property == nil {
				return errf(KindNotFound, op, "property %d not found", propertyID)
			}
			if property.Owner != call.Caller {
				return errf(KindUnauthorized, op, "caller %s does not own property %d", call.Caller, propertyID)
			}
			property.AreaSqM = params.AreaSqM
			property.PropertyType = strings.TrimSpace(params.PropertyType)
			property.AppraisedValue = params.AppraisedValue
			property.DocumentURI = strings.TrimSpace(params.DocumentURI)
			if err := s.Repo.SavePropertyTx(ctx, tx, property); err != nil {
				return err
			}
			out = property
			event.PropertyID = u64p(propertyID)
			return s.Repo.AppendEventTx(ctx, tx, event)
		})
	})
	if err != nil {
		return nil, err
	}
	publish(s.Events, event)
	return out, nil
}

// Approve authorizes a custodial operator for the property: the share ledger
// for tokenization, or the marketplace for a whole-property listing. One
// approval slot, matching single-approval NFT semantics.
func (s *PropertyRegistryService) Approve(ctx context.Context, call Call, propertyID uint64, operator string) (*models.Property, error) {
	const op = "registry.approve"
	call = call.normalized()
	operator = strings.TrimSpace(operator)
	if !call.valid() {
		return nil, errf(KindInvalidInput, op, "caller is empty")
	}
	if operator != OperatorShareLedger && operator != OperatorMarketplace {
		return nil, errf(KindInvalidInput, op, "unknown operator %q", operator)
	}

	var out *models.Property
	event := newEvent(models.EventPropertyApproved, call.Caller)
	err := s.Seq.Do(func() error {
		return s.Repo.InTx(ctx, func(tx *gorm.DB) error {
			property, err := s.Repo.GetPropertyByIDTx(ctx, tx, propertyID)
			if err != nil {
				return err
			}
			if property == nil {
				return errf(KindNotFound, op, "property %d not found", propertyID)
			}
			if property.Owner != call.Caller {
				return errf(KindUnauthorized, op, "caller %s does not own property %d", call.Caller, propertyID)
			}
			property.Approved = strp(operator)
			if err := s.Repo.SavePropertyTx(ctx, tx, property); err != nil {
				return err
			}
			out = property
			event.PropertyID = u64p(propertyID)
			event.Payload = eventPayload(map[string]any{"operator": operator})
			return s.Repo.AppendEventTx(ctx, tx, event)
		})
	})
	if err != nil {
		return nil, err
	}
	publish(s.Events, event)
	return out, nil
}

func (s *PropertyRegistryService) GetInfo(ctx context.Context, propertyID uint64) (*models.Property, error) {
	const op = "registry.get_info"
	property, err := s.Repo.GetPropertyByID(ctx, propertyID)
	if err != nil {
		return nil, err
	}
	if property == nil {
		return nil, errf(KindNotFound, op, "property %d not found", propertyID)
	}
	return property, nil
}

func (s *PropertyRegistryService) List(ctx context.Context, params repository.ListPropertiesParams) ([]models.Property, int64, error) {
	items, err := s.Repo.ListProperties(ctx, params)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.Repo.CountProperties(ctx, params)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// --- tokenizer allow-list (admin) -------------------------------------------

func (s *PropertyRegistryService) GrantTokenizer(ctx context.Context, call Call, address string) error {
	const op = "registry.grant_tokenizer"
	call = call.normalized()
	address = strings.TrimSpace(address)
	if call.Caller != s.Admin {
		return errf(KindUnauthorized, op, "caller %s is not the platform admin", call.Caller)
	}
	if address == "" {
		return errf(KindInvalidInput, op, "address is empty")
	}

	event := newEvent(models.EventTokenizerGranted, call.Caller)
	err := s.Seq.Do(func() error {
		return s.Repo.InTx(ctx, func(tx *gorm.DB) error {
			item := &models.TokenizerGrant{Address: address, GrantedBy: call.Caller}
			if err := s.Repo.UpsertTokenizerGrantTx(ctx, tx, item); err != nil {
				return err
			}
			event.Payload = eventPayload(map[string]any{"address": address})
			return s.Repo.AppendEventTx(ctx, tx, event)
		})
	})
	if err != nil {
		return err
	}
	publish(s.Events, event)
	return nil
}

func (s *PropertyRegistryService) RevokeTokenizer(ctx context.Context, call Call, address string) error {
	const op = "registry.revoke_tokenizer"
	call = call.normalized()
	address = strings.TrimSpace(address)
	if call.Caller != s.Admin {
		return errf(KindUnauthorized, op, "caller %s is not the platform admin", call.Caller)
	}
	grant, err := s.Repo.GetTokenizerGrant(ctx, address)
	if err != nil {
		return err
	}
	if grant == nil {
		return errf(KindNotFound, op, "tokenizer %s not found", address)
	}

	event := newEvent(models.EventTokenizerRevoked, call.Caller)
	err = s.Seq.Do(func() error {
		return s.Repo.InTx(ctx, func(tx *gorm.DB) error {
			if err := s.Repo.DeleteTokenizerGrantTx(ctx, tx, address); err != nil {
				return err
			}
			event.Payload = eventPayload(map[string]any{"address": address})
			return s.Repo.AppendEventTx(ctx, tx, event)
		})
	})
	if err != nil {
		return err
	}
	publish(s.Events, event)
	return nil
}

func (s *PropertyRegistryService) ListTokenizers(ctx context.Context) ([]models.TokenizerGrant, error) {
	return s.Repo.ListTokenizerGrants(ctx)
}
