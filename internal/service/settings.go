package service

import (
	"context"
	"encoding/json"
	"strings"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"propmarket/internal/models"
	"propmarket/internal/repository"
)

const (
	SettingFeeBP        = "market.fee_bp"
	SettingFeeRecipient = "market.fee_recipient"

	maxFeeBP = int64(10000)
)

// SettingsService owns the admin-managed platform parameters: the
// marketplace fee in basis points and the fee recipient address.
type SettingsService struct {
	Repo   repository.Repository
	Seq    *Sequencer
	Events EventSink
	Logger *zap.Logger

	Admin string
}

// EnsureDefaults seeds the fee settings on first boot without overwriting
// values an admin already changed.
func (s *SettingsService) EnsureDefaults(ctx context.Context, feeBP int64, feeRecipient string) error {
	if s == nil || s.Repo == nil {
		return nil
	}
	defaults := map[string]any{
		SettingFeeBP:        feeBP,
		SettingFeeRecipient: strings.TrimSpace(feeRecipient),
	}
	for key, value := range defaults {
		existing, err := s.Repo.GetPlatformSettingByKey(ctx, key)
		if err != nil {
			return err
		}
		if existing != nil {
			continue
		}
		raw, _ := json.Marshal(value)
		item := &models.PlatformSetting{
			Key:         key,
			Value:       datatypes.JSON(raw),
			Description: "marketplace fee setting",
		}
		if err := s.Repo.InTx(ctx, func(tx *gorm.DB) error {
			return s.Repo.UpsertPlatformSettingTx(ctx, tx, item)
		}); err != nil {
			return err
		}
	}
	return nil
}

func (s *SettingsService) SetFeePercentage(ctx context.Context, call Call, feeBP int64) error {
	const op = "settings.set_fee_percentage"
	call = call.normalized()
	if call.Caller != s.Admin {
		return errf(KindUnauthorized, op, "caller %s is not the platform admin", call.Caller)
	}
	if feeBP < 0 || feeBP > maxFeeBP {
		return errf(KindInvalidInput, op, "fee %d out of range 0..%d basis points", feeBP, maxFeeBP)
	}

	event := newEvent(models.EventFeePercentageSet, call.Caller)
	err := s.Seq.Do(func() error {
		return s.Repo.InTx(ctx, func(tx *gorm.DB) error {
			old, err := s.feeBPTx(ctx, tx)
			if err != nil {
				return err
			}
			raw, _ := json.Marshal(feeBP)
			item := &models.PlatformSetting{
				Key:         SettingFeeBP,
				Value:       datatypes.JSON(raw),
				Description: "marketplace fee setting",
			}
			if err := s.Repo.UpsertPlatformSettingTx(ctx, tx, item); err != nil {
				return err
			}
			event.Payload = eventPayload(map[string]any{"old_fee_bp": old, "new_fee_bp": feeBP})
			return s.Repo.AppendEventTx(ctx, tx, event)
		})
	})
	if err != nil {
		return err
	}
	publish(s.Events, event)
	return nil
}

func (s *SettingsService) SetFeeRecipient(ctx context.Context, call Call, recipient string) error {
	const op = "settings.set_fee_recipient"
	call = call.normalized()
	recipient = strings.TrimSpace(recipient)
	if call.Caller != s.Admin {
		return errf(KindUnauthorized, op, "caller %s is not the platform admin", call.Caller)
	}
	if recipient == "" {
		return errf(KindInvalidInput, op, "recipient is empty")
	}

	event := newEvent(models.EventFeeRecipientSet, call.Caller)
	err := s.Seq.Do(func() error {
		return s.Repo.InTx(ctx, func(tx *gorm.DB) error {
			old, err := s.feeRecipientTx(ctx, tx)
			if err != nil {
				return err
			}
			raw, _ := json.Marshal(recipient)
			item := &models.PlatformSetting{
				Key:         SettingFeeRecipient,
				Value:       datatypes.JSON(raw),
				Description: "marketplace fee setting",
			}
			if err := s.Repo.UpsertPlatformSettingTx(ctx, tx, item); err != nil {
				return err
			}
			event.Payload = eventPayload(map[string]any{"old_recipient": old, "new_recipient": recipient})
			return s.Repo.AppendEventTx(ctx, tx, event)
		})
	})
	if err != nil {
		return err
	}
	publish(s.Events, event)
	return nil
}

func (s *SettingsService) FeeBP(ctx context.Context) (int64, error) {
	return s.feeBPTx(ctx, nil)
}

// feeBPTx reads the fee setting through the open transaction so settlements
// see a fee change made earlier in the same unit of work.
func (s *SettingsService) feeBPTx(ctx context.Context, tx *gorm.DB) (int64, error) {
	item, err := s.Repo.GetPlatformSettingByKeyTx(ctx, tx, SettingFeeBP)
	if err != nil {
		return 0, err
	}
	if item == nil || len(item.Value) == 0 {
		return 0, nil
	}
	var feeBP int64
	if err := json.Unmarshal(item.Value, &feeBP); err != nil {
		return 0, err
	}
	return feeBP, nil
}

func (s *SettingsService) FeeRecipient(ctx context.Context) (string, error) {
	return s.feeRecipientTx(ctx, nil)
}

func (s *SettingsService) feeRecipientTx(ctx context.Context, tx *gorm.DB) (string, error) {
	item, err := s.Repo.GetPlatformSettingByKeyTx(ctx, tx, SettingFeeRecipient)
	if err != nil {
		return "", err
	}
	if item == nil || len(item.Value) == 0 {
		return "", nil
	}
	var recipient string
	if err := json.Unmarshal(item.Value, &recipient); err != nil {
		return "", err
	}
	return recipient, nil
}

func (s *SettingsService) List(ctx context.Context) ([]models.PlatformSetting, error) {
	return s.Repo.ListPlatformSettings(ctx)
}
