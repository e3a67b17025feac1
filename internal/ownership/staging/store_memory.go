package staging

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"titleledger/internal/ownership/models"
	id "titleledger/pkg/domain"
	"titleledger/pkg/platform/sentinel"
)

type memoryEntry struct {
	payload   []byte
	expiresAt time.Time
}

// MemoryStore is an in-memory staging store for tests and single-node
// development. Expired entries are dropped lazily on read.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[id.UnitID]memoryEntry
	now     func() time.Time
}

// NewMemory constructs an empty in-memory staging store.
func NewMemory() *MemoryStore {
	return &MemoryStore{
		entries: make(map[id.UnitID]memoryEntry),
		now:     time.Now,
	}
}

// SetClock overrides the store's clock. Test helper for expiry behavior.
func (s *MemoryStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *MemoryStore) Put(_ context.Context, dist *models.StagedDistribution, ttl time.Duration) error {
	// Round-trip through JSON so callers cannot mutate staged state in place,
	// matching Redis semantics.
	payload, err := json.Marshal(dist)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[dist.UnitID] = memoryEntry{
		payload:   payload,
		expiresAt: s.now().Add(ttl),
	}
	return nil
}

func (s *MemoryStore) Get(_ context.Context, unitID id.UnitID) (*models.StagedDistribution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[unitID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if s.now().After(entry.expiresAt) {
		delete(s.entries, unitID)
		return nil, sentinel.ErrNotFound
	}

	var dist models.StagedDistribution
	if err := json.Unmarshal(entry.payload, &dist); err != nil {
		return nil, err
	}
	return &dist, nil
}

func (s *MemoryStore) Delete(_ context.Context, unitID id.UnitID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, unitID)
	return nil
}
