//go:build integration

package outbox_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	"titleledger/internal/audit"
	"titleledger/internal/audit/outbox"
	auditpg "titleledger/internal/audit/store/postgres"
	"titleledger/internal/platform/config"
	"titleledger/internal/platform/kafka"
	"titleledger/pkg/testutil/containers"
)

// TestRelayPublishesToKafka drains a real outbox into a real broker and reads
// the events back, verifying payloads and per-aggregate keys.
func TestRelayPublishesToKafka(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	mgr := containers.GetManager()
	postgres := mgr.GetPostgres(t)
	redpanda := mgr.GetRedpanda(t)

	require.NoError(t, postgres.TruncateTables(ctx, "audit_logs", "outbox"))

	topic := "titleledger.audit." + uuid.NewString()
	producer, err := kafka.NewProducer(config.Kafka{
		Brokers:    []string{redpanda.Broker},
		AuditTopic: topic,
	})
	require.NoError(t, err)
	require.NotNil(t, producer)
	defer producer.Close()
	require.NoError(t, producer.EnsureTopic(ctx, 1, 1))

	store := auditpg.New(postgres.DB)
	recordedAt := time.Now().UTC().Truncate(time.Microsecond)
	entryIDs := make([]uuid.UUID, 3)
	for i := range entryIDs {
		entryIDs[i] = uuid.New()
		err := store.Append(ctx, audit.Entry{
			ID:         entryIDs[i],
			TableName:  "ownership_transfers",
			RecordID:   "7",
			Action:     audit.ActionTransferInitiated,
			NewValues:  json.RawMessage(`{"status":"pending"}`),
			Actor:      "registrar",
			RecordedAt: recordedAt.Add(time.Duration(i) * time.Second),
		})
		require.NoError(t, err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	relay := outbox.NewRelay(store, producer, logger, 50*time.Millisecond)

	relayCtx, cancelRelay := context.WithCancel(ctx)
	relayDone := make(chan struct{})
	go func() {
		defer close(relayDone)
		_ = relay.Run(relayCtx)
	}()

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(redpanda.Broker),
		kgo.ConsumeTopics(topic),
	)
	require.NoError(t, err)
	defer consumer.Close()

	var records []*kgo.Record
	deadline := time.Now().Add(15 * time.Second)
	for len(records) < len(entryIDs) && time.Now().Before(deadline) {
		pollCtx, cancel := context.WithTimeout(ctx, time.Second)
		fetches := consumer.PollFetches(pollCtx)
		cancel()
		fetches.EachRecord(func(rec *kgo.Record) {
			records = append(records, rec)
		})
	}
	cancelRelay()
	<-relayDone

	require.Len(t, records, len(entryIDs))
	for i, rec := range records {
		require.Equal(t, "7", string(rec.Key))

		var payload map[string]any
		require.NoError(t, json.Unmarshal(rec.Value, &payload))
		require.Equal(t, entryIDs[i].String(), payload["ID"])
		require.Equal(t, "transfer_initiated", payload["Action"])
	}

	var unpublished int
	err = postgres.DB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM outbox WHERE published_at IS NULL`,
	).Scan(&unpublished)
	require.NoError(t, err)
	require.Zero(t, unpublished)
}
