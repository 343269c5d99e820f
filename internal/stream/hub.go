package stream

import (
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"propmarket/internal/models"
)

// Hub fans committed ledger events out to live subscribers. Publishers never
// block: a slow subscriber loses events rather than stalling settlement, and
// catch-up goes through the persisted event log instead.
type Hub struct {
	mu   sync.RWMutex
	subs map[uint64]chan models.LedgerEvent

	nextID  uint64
	dropped uint64

	logger *zap.Logger
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		subs:   map[uint64]chan models.LedgerEvent{},
		logger: logger,
	}
}

// Publish hands an already-committed event to every subscriber.
func (h *Hub) Publish(event models.LedgerEvent) {
	if h == nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, ch := range h.subs {
		select {
		case ch <- event:
		default:
			// Drop when subscriber is slow; hub must not block.
			atomic.AddUint64(&h.dropped, 1)
		}
	}
}

// Subscribe registers a buffered channel of committed events. The returned
// cancel func must be called when the subscriber goes away.
func (h *Hub) Subscribe(buf int) (<-chan models.LedgerEvent, func()) {
	if buf <= 0 {
		buf = 32
	}
	ch := make(chan models.LedgerEvent, buf)

	h.mu.Lock()
	h.nextID++
	id := h.nextID
	h.subs[id] = ch
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		if _, ok := h.subs[id]; ok {
			delete(h.subs, id)
			close(ch)
		}
		h.mu.Unlock()
	}
	return ch, cancel
}

func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

func (h *Hub) Dropped() uint64 {
	return atomic.LoadUint64(&h.dropped)
}
