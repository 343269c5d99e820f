package service

import (
	"encoding/json"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"

	"propmarket/internal/models"
)

// EventSink receives committed ledger events. Publishing happens strictly
// after the transaction that wrote the event commits, so subscribers never
// see an event for a rolled-back operation.
type EventSink interface {
	Publish(event models.LedgerEvent)
}

func newEvent(kind, actor string) *models.LedgerEvent {
	return &models.LedgerEvent{
		UID:   uuid.NewString(),
		Kind:  kind,
		Actor: actor,
	}
}

func eventPayload(fields map[string]any) datatypes.JSON {
	if len(fields) == 0 {
		return nil
	}
	raw, err := json.Marshal(fields)
	if err != nil {
		return nil
	}
	return datatypes.JSON(raw)
}

func publish(sink EventSink, event *models.LedgerEvent) {
	if sink == nil || event == nil {
		return
	}
	sink.Publish(*event)
}

func u64p(v uint64) *uint64 { return &v }

func i64p(v int64) *int64 { return &v }

func strp(v string) *string { return &v }

func decp(v decimal.Decimal) *decimal.Decimal { return &v }
