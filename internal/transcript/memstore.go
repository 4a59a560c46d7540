package transcript

import (
	"context"
	"sync"
)

// MemStore is an in-memory Store. It is the default transcript backend and
// holds the full conversation for the lifetime of the process.
type MemStore struct {
	mu    sync.RWMutex
	turns []Turn
}

var _ Store = (*MemStore)(nil)

// NewMemStore returns an empty in-memory transcript store.
func NewMemStore() *MemStore {
	return &MemStore{}
}

// Append commits the given turns in order.
func (s *MemStore) Append(_ context.Context, turns ...Turn) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns = append(s.turns, turns...)
	return nil
}

// Snapshot returns a copy of the transcript in commit order.
func (s *MemStore) Snapshot(_ context.Context) ([]Turn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Turn, len(s.turns))
	copy(out, s.turns)
	return out, nil
}

// Clear removes all turns.
func (s *MemStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns = nil
	return nil
}
