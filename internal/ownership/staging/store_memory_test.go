package staging

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"titleledger/internal/ownership/models"
	id "titleledger/pkg/domain"
	"titleledger/pkg/platform/sentinel"
)

type StagingStoreSuite struct {
	suite.Suite
	store *MemoryStore
}

func (s *StagingStoreSuite) SetupTest() {
	s.store = NewMemory()
}

func TestStagingStoreSuite(t *testing.T) {
	suite.Run(t, new(StagingStoreSuite))
}

func (s *StagingStoreSuite) newDistribution() *models.StagedDistribution {
	seller := id.OwnerID(uuid.New())
	buyer := id.OwnerID(uuid.New())
	return &models.StagedDistribution{
		TransferID:  id.TransferID(42),
		UnitID:      id.UnitID(uuid.New()),
		Type:        models.TransferTypePurchase,
		Date:        time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC),
		Amount:      1_500_000,
		Currency:    models.DefaultCurrency,
		LegalReason: "sale and purchase agreement",
		Sellers:     map[id.OwnerID]float64{seller: 60},
		Buyers:      map[id.OwnerID]float64{buyer: 40},
	}
}

func (s *StagingStoreSuite) TestPutAndGet() {
	s.Run("round-trips a staged distribution", func() {
		dist := s.newDistribution()

		err := s.store.Put(context.Background(), dist, time.Hour)
		s.Require().NoError(err)

		got, err := s.store.Get(context.Background(), dist.UnitID)
		s.Require().NoError(err)
		s.Equal(dist, got)
	})

	s.Run("returns an independent copy on each read", func() {
		dist := s.newDistribution()
		s.Require().NoError(s.store.Put(context.Background(), dist, time.Hour))

		first, err := s.store.Get(context.Background(), dist.UnitID)
		s.Require().NoError(err)
		for owner := range first.Buyers {
			first.Buyers[owner] = 99
		}

		second, err := s.store.Get(context.Background(), dist.UnitID)
		s.Require().NoError(err)
		s.NotEqual(first.Buyers, second.Buyers)
	})

	s.Run("put replaces an existing entry for the unit", func() {
		dist := s.newDistribution()
		s.Require().NoError(s.store.Put(context.Background(), dist, time.Hour))

		updated := *dist
		updated.Amount = 2_000_000
		s.Require().NoError(s.store.Put(context.Background(), &updated, time.Hour))

		got, err := s.store.Get(context.Background(), dist.UnitID)
		s.Require().NoError(err)
		s.Equal(float64(2_000_000), got.Amount)
	})

	s.Run("returns ErrNotFound when nothing is staged", func() {
		_, err := s.store.Get(context.Background(), id.UnitID(uuid.New()))
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *StagingStoreSuite) TestExpiry() {
	s.Run("entry expires after its TTL", func() {
		dist := s.newDistribution()
		now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
		s.store.SetClock(func() time.Time { return now })

		s.Require().NoError(s.store.Put(context.Background(), dist, time.Hour))

		now = now.Add(59 * time.Minute)
		_, err := s.store.Get(context.Background(), dist.UnitID)
		s.Require().NoError(err)

		now = now.Add(2 * time.Minute)
		_, err = s.store.Get(context.Background(), dist.UnitID)
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *StagingStoreSuite) TestDelete() {
	s.Run("removes a staged entry", func() {
		dist := s.newDistribution()
		s.Require().NoError(s.store.Put(context.Background(), dist, time.Hour))

		s.Require().NoError(s.store.Delete(context.Background(), dist.UnitID))

		_, err := s.store.Get(context.Background(), dist.UnitID)
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("deleting an absent entry is a no-op", func() {
		s.Require().NoError(s.store.Delete(context.Background(), id.UnitID(uuid.New())))
	})
}
