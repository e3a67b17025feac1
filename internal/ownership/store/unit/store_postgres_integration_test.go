//go:build integration

package unit_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"titleledger/internal/ownership/models"
	"titleledger/internal/ownership/store/unit"
	id "titleledger/pkg/domain"
	"titleledger/pkg/platform/sentinel"
	"titleledger/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *unit.PostgresStore
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
	s.store = unit.NewPostgres(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	ctx := context.Background()
	err := s.postgres.TruncateTables(ctx, "transfer_documents", "ownership_transfers", "ownership_history", "units")
	s.Require().NoError(err)
}

func newTestUnit(uniqueKey string) *models.Unit {
	return &models.Unit{
		ID:           id.NewUnitID(),
		UniqueKey:    uniqueKey,
		BuildingName: "Marina Heights",
		UnitNumber:   "1204",
		CreatedAt:    time.Now().UTC().Truncate(time.Microsecond),
	}
}

func (s *PostgresStoreSuite) TestCreateAndFind() {
	ctx := context.Background()
	u := newTestUnit("MH-1204")

	s.Require().NoError(s.store.Create(ctx, u))

	got, err := s.store.FindByID(ctx, u.ID)
	s.Require().NoError(err)
	s.Equal(u.ID, got.ID)
	s.Equal("MH-1204", got.UniqueKey)
	s.Equal("Marina Heights", got.BuildingName)
	s.Equal("1204", got.UnitNumber)
}

func (s *PostgresStoreSuite) TestFindMissingReturnsNotFound() {
	ctx := context.Background()

	_, err := s.store.FindByID(ctx, id.NewUnitID())
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestDuplicateUniqueKeyConflicts() {
	ctx := context.Background()

	s.Require().NoError(s.store.Create(ctx, newTestUnit("MH-0101")))

	err := s.store.Create(ctx, newTestUnit("MH-0101"))
	s.Require().ErrorIs(err, sentinel.ErrConflict)
}

func (s *PostgresStoreSuite) TestFindByIDForUpdate() {
	ctx := context.Background()
	u := newTestUnit("MH-0707")
	s.Require().NoError(s.store.Create(ctx, u))

	// Outside a transaction the lock is released immediately; the read
	// itself must still return the full row.
	got, err := s.store.FindByIDForUpdate(ctx, u.ID)
	s.Require().NoError(err)
	s.Equal(u.UniqueKey, got.UniqueKey)

	_, err = s.store.FindByIDForUpdate(ctx, id.NewUnitID())
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}
