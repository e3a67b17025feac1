// Package outbox relays queued audit events from Postgres to Kafka. The
// relay runs as a background loop next to the HTTP server; at-least-once
// delivery is accepted because consumers key deduplication on the event ID.
package outbox

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"titleledger/internal/audit/store/postgres"
)

const defaultBatchSize = 100

// Source reads and acknowledges queued outbox entries.
type Source interface {
	NextUnpublished(ctx context.Context, limit int) ([]postgres.OutboxEntry, error)
	MarkPublished(ctx context.Context, ids []uuid.UUID) error
}

// Publisher delivers one event payload keyed by aggregate.
type Publisher interface {
	Produce(ctx context.Context, key string, value []byte) error
}

// Relay drains the outbox on an interval.
type Relay struct {
	source    Source
	publisher Publisher
	logger    *slog.Logger
	interval  time.Duration
	batchSize int
}

func NewRelay(source Source, publisher Publisher, logger *slog.Logger, interval time.Duration) *Relay {
	return &Relay{
		source:    source,
		publisher: publisher,
		logger:    logger,
		interval:  interval,
		batchSize: defaultBatchSize,
	}
}

// Run polls until the context is cancelled. Publish failures are logged and
// retried on the next tick; entries stay queued until acknowledged.
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := r.drain(ctx); err != nil {
				r.logger.Error("outbox relay pass failed", "error", err)
			}
		}
	}
}

func (r *Relay) drain(ctx context.Context) error {
	for {
		entries, err := r.source.NextUnpublished(ctx, r.batchSize)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			return nil
		}

		published := make([]uuid.UUID, 0, len(entries))
		for _, entry := range entries {
			if err := r.publisher.Produce(ctx, entry.AggregateID, entry.Payload); err != nil {
				// Preserve ordering per aggregate: stop the pass and
				// acknowledge only what made it out.
				r.logger.Error("publish outbox entry failed",
					"entry_id", entry.ID,
					"event_type", entry.EventType,
					"error", err,
				)
				return r.source.MarkPublished(ctx, published)
			}
			published = append(published, entry.ID)
		}

		if err := r.source.MarkPublished(ctx, published); err != nil {
			return err
		}
		if len(entries) < r.batchSize {
			return nil
		}
	}
}
