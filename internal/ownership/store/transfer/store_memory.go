package transfer

import (
	"context"
	"sort"
	"sync"
	"time"

	"titleledger/internal/ownership/models"
	id "titleledger/pkg/domain"
	"titleledger/pkg/platform/sentinel"
)

// MemoryStore is an in-memory transfer store for tests.
type MemoryStore struct {
	mu        sync.RWMutex
	nextID    int64
	transfers map[id.TransferID]*models.Transfer
}

func NewMemory() *MemoryStore {
	return &MemoryStore{
		nextID:    1,
		transfers: make(map[id.TransferID]*models.Transfer),
	}
}

func (s *MemoryStore) FindInFlightByUnit(_ context.Context, unitID id.UnitID) (*models.Transfer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var found *models.Transfer
	for _, t := range s.transfers {
		if t.UnitID == unitID && t.InFlight() {
			if found == nil || t.ID < found.ID {
				found = t
			}
		}
	}
	if found == nil {
		return nil, sentinel.ErrNotFound
	}
	cp := *found
	return &cp, nil
}

func (s *MemoryStore) FindInFlightByUnitForUpdate(ctx context.Context, unitID id.UnitID) (*models.Transfer, error) {
	return s.FindInFlightByUnit(ctx, unitID)
}

func (s *MemoryStore) Create(_ context.Context, t *models.Transfer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t.ID = id.TransferID(s.nextID)
	s.nextID++
	cp := *t
	s.transfers[t.ID] = &cp
	return nil
}

func (s *MemoryStore) UpdateStatus(_ context.Context, transferID id.TransferID, status models.TransferStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.transfers[transferID]
	if !ok {
		return sentinel.ErrNotFound
	}
	t.Status = status
	return nil
}

func (s *MemoryStore) ListByUnits(_ context.Context, unitIDs []id.UnitID, from, to *time.Time) ([]models.Transfer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	wanted := make(map[id.UnitID]struct{}, len(unitIDs))
	for _, u := range unitIDs {
		wanted[u] = struct{}{}
	}
	var out []models.Transfer
	for _, t := range s.transfers {
		if _, ok := wanted[t.UnitID]; !ok {
			continue
		}
		if from != nil && to != nil {
			if t.Date.Before(*from) || t.Date.After(*to) {
				continue
			}
		}
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
