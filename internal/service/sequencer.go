package service

import "sync"

// Sequencer serializes all state-changing ledger operations so they execute
// in one global total order, mirroring transaction ordering on the original
// chain. Each operation holds the lock only for its own atomic commit; reads
// bypass the sequencer.
type Sequencer struct {
	mu sync.Mutex
}

func NewSequencer() *Sequencer {
	return &Sequencer{}
}

func (s *Sequencer) Do(fn func() error) error {
	if s == nil {
		return fn()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn()
}
