package document

import (
	"context"
	"sort"
	"sync"

	"titleledger/internal/ownership/models"
	id "titleledger/pkg/domain"
	"titleledger/pkg/platform/sentinel"
)

// MemoryStore is an in-memory document store for tests.
type MemoryStore struct {
	mu     sync.RWMutex
	nextID int64
	docs   map[int64]*models.TransferDocument
}

func NewMemory() *MemoryStore {
	return &MemoryStore{
		nextID: 1,
		docs:   make(map[int64]*models.TransferDocument),
	}
}

func (s *MemoryStore) Create(_ context.Context, d *models.TransferDocument) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d.ID = s.nextID
	s.nextID++
	cp := *d
	s.docs[d.ID] = &cp
	return nil
}

func (s *MemoryStore) ListByTransfer(_ context.Context, transferID id.TransferID) ([]models.TransferDocument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.TransferDocument
	for _, d := range s.docs {
		if d.TransferID == transferID {
			out = append(out, *d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) UpdateVerification(_ context.Context, documentID int64, status models.VerificationStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.docs[documentID]
	if !ok {
		return sentinel.ErrNotFound
	}
	d.VerificationStatus = status
	return nil
}
