//go:build integration

package postgres_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"titleledger/internal/audit"
	"titleledger/internal/audit/store/postgres"
	"titleledger/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *postgres.Store
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
	s.store = postgres.New(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	ctx := context.Background()
	err := s.postgres.TruncateTables(ctx, "audit_logs", "outbox")
	s.Require().NoError(err)
}

func newTestEntry(recordID string, recordedAt time.Time) audit.Entry {
	return audit.Entry{
		ID:         uuid.New(),
		TableName:  "ownership_transfers",
		RecordID:   recordID,
		Action:     audit.ActionTransferInitiated,
		NewValues:  json.RawMessage(`{"status":"pending"}`),
		Actor:      "registrar",
		Reason:     "sale",
		RequestID:  uuid.NewString(),
		IPAddress:  "10.0.0.1",
		UserAgent:  "integration-test",
		RecordedAt: recordedAt,
	}
}

func (s *PostgresStoreSuite) TestAppendWritesLogAndOutbox() {
	ctx := context.Background()
	entry := newTestEntry("42", time.Now().UTC().Truncate(time.Microsecond))

	s.Require().NoError(s.store.Append(ctx, entry))

	var count int
	err := s.postgres.DB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM audit_logs WHERE id = $1 AND action = 'transfer_initiated'`, entry.ID,
	).Scan(&count)
	s.Require().NoError(err)
	s.Equal(1, count)

	queued, err := s.store.NextUnpublished(ctx, 10)
	s.Require().NoError(err)
	s.Require().Len(queued, 1)
	s.Equal("42", queued[0].AggregateID)
	s.Equal("transfer_initiated", queued[0].EventType)

	var payload map[string]any
	s.Require().NoError(json.Unmarshal(queued[0].Payload, &payload))
	s.Equal(entry.ID.String(), payload["ID"])
	s.Equal("registrar", payload["Actor"])
}

func (s *PostgresStoreSuite) TestNextUnpublishedOrderAndLimit() {
	ctx := context.Background()
	base := time.Now().UTC().Add(-time.Hour).Truncate(time.Microsecond)

	for i := 0; i < 5; i++ {
		entry := newTestEntry("7", base.Add(time.Duration(i)*time.Second))
		s.Require().NoError(s.store.Append(ctx, entry))
	}

	queued, err := s.store.NextUnpublished(ctx, 3)
	s.Require().NoError(err)
	s.Require().Len(queued, 3)
	for i := 1; i < len(queued); i++ {
		s.False(queued[i].CreatedAt.Before(queued[i-1].CreatedAt))
	}
}

func (s *PostgresStoreSuite) TestMarkPublishedExcludesFromQueue() {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	s.Require().NoError(s.store.Append(ctx, newTestEntry("1", now)))
	s.Require().NoError(s.store.Append(ctx, newTestEntry("2", now.Add(time.Second))))

	queued, err := s.store.NextUnpublished(ctx, 10)
	s.Require().NoError(err)
	s.Require().Len(queued, 2)

	s.Require().NoError(s.store.MarkPublished(ctx, []uuid.UUID{queued[0].ID}))

	remaining, err := s.store.NextUnpublished(ctx, 10)
	s.Require().NoError(err)
	s.Require().Len(remaining, 1)
	s.Equal(queued[1].ID, remaining[0].ID)

	s.NoError(s.store.MarkPublished(ctx, nil), "empty acknowledgement is a no-op")
}
