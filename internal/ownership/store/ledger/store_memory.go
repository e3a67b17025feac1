package ledger

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"titleledger/internal/ownership/models"
	id "titleledger/pkg/domain"
)

// MemoryStore is an in-memory ledger for tests. Unit metadata for holdings
// joins is registered through RegisterUnit.
type MemoryStore struct {
	mu        sync.RWMutex
	nextID    int64
	intervals map[int64]*models.OwnershipInterval
	units     map[id.UnitID]unitMeta
}

type unitMeta struct {
	buildingName string
	unitNumber   string
}

func NewMemory() *MemoryStore {
	return &MemoryStore{
		nextID:    1,
		intervals: make(map[int64]*models.OwnershipInterval),
		units:     make(map[id.UnitID]unitMeta),
	}
}

// RegisterUnit records unit reference data used by HoldingsByOwner.
func (s *MemoryStore) RegisterUnit(unitID id.UnitID, buildingName, unitNumber string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.units[unitID] = unitMeta{buildingName: buildingName, unitNumber: unitNumber}
}

func (s *MemoryStore) CurrentByUnit(_ context.Context, unitID id.UnitID) ([]models.OwnershipInterval, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.OwnershipInterval
	for _, iv := range s.intervals {
		if iv.UnitID == unitID && iv.EndDate == nil {
			out = append(out, *iv)
		}
	}
	sortIntervals(out)
	return out, nil
}

// CurrentByUnitForUpdate has no locking semantics in memory; serialization is
// exercised only in the Postgres integration tests.
func (s *MemoryStore) CurrentByUnitForUpdate(ctx context.Context, unitID id.UnitID) ([]models.OwnershipInterval, error) {
	return s.CurrentByUnit(ctx, unitID)
}

func (s *MemoryStore) UpdatePercentage(_ context.Context, historyID int64, percentage float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	iv, ok := s.intervals[historyID]
	if !ok || iv.EndDate != nil {
		return fmt.Errorf("update interval percentage: no current interval matched")
	}
	iv.Percentage = percentage
	return nil
}

func (s *MemoryStore) Close(_ context.Context, historyID int64, endDate time.Time, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	iv, ok := s.intervals[historyID]
	if !ok || iv.EndDate != nil {
		return fmt.Errorf("close interval: no current interval matched")
	}
	end := endDate
	iv.EndDate = &end
	iv.IsCurrent = false
	iv.TransferReason = reason
	return nil
}

func (s *MemoryStore) Insert(_ context.Context, iv *models.OwnershipInterval) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	iv.HistoryID = s.nextID
	s.nextID++
	cp := *iv
	s.intervals[iv.HistoryID] = &cp
	return nil
}

func (s *MemoryStore) HoldingsByOwner(_ context.Context, ownerID id.OwnerID, q HoldingsQuery) ([]Holding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Holding
	for _, iv := range s.intervals {
		if iv.OwnerID != ownerID {
			continue
		}
		switch q.Status {
		case StatusCurrent:
			if !iv.IsCurrent {
				continue
			}
		case StatusHistorical:
			if iv.IsCurrent {
				continue
			}
		}
		if q.From != nil && q.To != nil {
			startsInRange := !iv.StartDate.Before(*q.From) && !iv.StartDate.After(*q.To)
			endsInRange := iv.EndDate != nil && !iv.EndDate.Before(*q.From) && !iv.EndDate.After(*q.To)
			if !startsInRange && !endsInRange {
				continue
			}
		}
		meta := s.units[iv.UnitID]
		out = append(out, Holding{
			Interval:     *iv,
			BuildingName: meta.buildingName,
			UnitNumber:   meta.unitNumber,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Interval.HistoryID < out[j].Interval.HistoryID })
	return out, nil
}

func (s *MemoryStore) CurrentCoOwners(_ context.Context, unitID id.UnitID, exclude id.OwnerID) ([]id.OwnerID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[id.OwnerID]struct{})
	var out []id.OwnerID
	for _, iv := range s.intervals {
		if iv.UnitID != unitID || iv.OwnerID == exclude || !iv.IsCurrent {
			continue
		}
		if _, dup := seen[iv.OwnerID]; dup {
			continue
		}
		seen[iv.OwnerID] = struct{}{}
		out = append(out, iv.OwnerID)
	}
	return out, nil
}

func sortIntervals(ivs []models.OwnershipInterval) {
	sort.Slice(ivs, func(i, j int) bool { return ivs[i].HistoryID < ivs[j].HistoryID })
}
