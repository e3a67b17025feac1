//go:build integration

package owner_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"titleledger/internal/ownership/models"
	"titleledger/internal/ownership/store/owner"
	id "titleledger/pkg/domain"
	"titleledger/pkg/platform/sentinel"
	"titleledger/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *owner.PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
	s.store = owner.NewPostgres(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	ctx := context.Background()
	err := s.postgres.TruncateTables(ctx, "ownership_history", "owners")
	s.Require().NoError(err)
}

func newTestOwner(nationalID string) *models.Owner {
	return &models.Owner{
		ID:         id.NewOwnerID(),
		Type:       models.OwnerTypeIndividual,
		FullName:   "Fatima Al Mansouri",
		NationalID: nationalID,
		Phone:      "+971501234567",
		Email:      "fatima@example.com",
		IsActive:   true,
		CreatedAt:  time.Now().UTC().Truncate(time.Microsecond),
	}
}

func (s *PostgresStoreSuite) TestCreateAndFindByNationalID() {
	ctx := context.Background()
	o := newTestOwner("784-1985-1234567-1")

	s.Require().NoError(s.store.Create(ctx, o))

	got, err := s.store.FindByNationalID(ctx, "784-1985-1234567-1")
	s.Require().NoError(err)
	s.Equal(o.ID, got.ID)
	s.Equal(o.FullName, got.FullName)
	s.Equal(o.Phone, got.Phone)
	s.Equal(o.Email, got.Email)
	s.True(got.IsActive)

	byID, err := s.store.FindByID(ctx, o.ID)
	s.Require().NoError(err)
	s.Equal(o.NationalID, byID.NationalID)
}

func (s *PostgresStoreSuite) TestFindMissingReturnsNotFound() {
	ctx := context.Background()

	_, err := s.store.FindByID(ctx, id.NewOwnerID())
	s.Require().ErrorIs(err, sentinel.ErrNotFound)

	_, err = s.store.FindByNationalID(ctx, "784-2000-0000000-0")
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestDuplicateNationalIDConflicts() {
	ctx := context.Background()

	s.Require().NoError(s.store.Create(ctx, newTestOwner("784-1985-7654321-2")))

	dup := newTestOwner("784-1985-7654321-2")
	err := s.store.Create(ctx, dup)
	s.Require().ErrorIs(err, sentinel.ErrConflict)
}

func (s *PostgresStoreSuite) TestCorporateOwnersWithoutNationalID() {
	ctx := context.Background()

	// Empty national IDs land as NULL, so two corporates never collide.
	for _, name := range []string{"Gulf Holdings LLC", "Desert Rose Properties"} {
		o := &models.Owner{
			ID:        id.NewOwnerID(),
			Type:      models.OwnerTypeCorporate,
			FullName:  name,
			IsActive:  true,
			CreatedAt: time.Now().UTC(),
		}
		s.Require().NoError(s.store.Create(ctx, o))

		got, err := s.store.FindByID(ctx, o.ID)
		s.Require().NoError(err)
		s.Equal(name, got.FullName)
		s.Empty(got.NationalID)
	}
}

// TestConcurrentCreateSameNationalID verifies that concurrent registrations of
// one person produce exactly one owner row.
func (s *PostgresStoreSuite) TestConcurrentCreateSameNationalID() {
	ctx := context.Background()
	const goroutines = 20

	var wg sync.WaitGroup
	var successCount, conflictCount atomic.Int32

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			err := s.store.Create(ctx, newTestOwner("784-1992-9999999-9"))
			switch {
			case err == nil:
				successCount.Add(1)
			case errors.Is(err, sentinel.ErrConflict):
				conflictCount.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(1), successCount.Load())
	s.Equal(int32(goroutines-1), conflictCount.Load())
}
