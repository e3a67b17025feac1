package unit

import (
	"context"
	"sync"

	"titleledger/internal/ownership/models"
	id "titleledger/pkg/domain"
	"titleledger/pkg/platform/sentinel"
)

// MemoryStore is an in-memory unit store for tests.
type MemoryStore struct {
	mu    sync.RWMutex
	units map[id.UnitID]models.Unit
	keys  map[string]struct{}
}

func NewMemory() *MemoryStore {
	return &MemoryStore{
		units: make(map[id.UnitID]models.Unit),
		keys:  make(map[string]struct{}),
	}
}

func (s *MemoryStore) FindByID(_ context.Context, unitID id.UnitID) (*models.Unit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.units[unitID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &u, nil
}

// FindByIDForUpdate matches the Postgres locking variant; the memory store
// relies on the transactional wrapper's mutex for serialization.
func (s *MemoryStore) FindByIDForUpdate(ctx context.Context, unitID id.UnitID) (*models.Unit, error) {
	return s.FindByID(ctx, unitID)
}

func (s *MemoryStore) Create(_ context.Context, u *models.Unit) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.keys[u.UniqueKey]; exists {
		return sentinel.ErrConflict
	}
	s.units[u.ID] = *u
	s.keys[u.UniqueKey] = struct{}{}
	return nil
}
