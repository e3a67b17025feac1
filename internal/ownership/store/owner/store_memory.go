package owner

import (
	"context"
	"sync"

	"titleledger/internal/ownership/models"
	id "titleledger/pkg/domain"
	"titleledger/pkg/platform/sentinel"
)

// MemoryStore is an in-memory owner store for tests.
type MemoryStore struct {
	mu         sync.RWMutex
	owners     map[id.OwnerID]models.Owner
	byNational map[string]id.OwnerID
}

func NewMemory() *MemoryStore {
	return &MemoryStore{
		owners:     make(map[id.OwnerID]models.Owner),
		byNational: make(map[string]id.OwnerID),
	}
}

func (s *MemoryStore) FindByID(_ context.Context, ownerID id.OwnerID) (*models.Owner, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.owners[ownerID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &o, nil
}

func (s *MemoryStore) FindByNationalID(_ context.Context, nationalID string) (*models.Owner, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ownerID, ok := s.byNational[nationalID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	o := s.owners[ownerID]
	return &o, nil
}

func (s *MemoryStore) Create(_ context.Context, o *models.Owner) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if o.NationalID != "" {
		if _, exists := s.byNational[o.NationalID]; exists {
			return sentinel.ErrConflict
		}
		s.byNational[o.NationalID] = o.ID
	}
	s.owners[o.ID] = *o
	return nil
}
