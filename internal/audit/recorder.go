package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"titleledger/pkg/requestcontext"
)

// Store persists audit entries. Implementations honor an ambient transaction
// on the context so entries commit atomically with the change they describe.
type Store interface {
	Append(ctx context.Context, entry Entry) error
}

// Recorder enriches audit entries with request metadata before persisting
// them. Services call Record inside the same transaction as the mutation.
type Recorder struct {
	store Store
}

func NewRecorder(store Store) *Recorder {
	return &Recorder{store: store}
}

// Record fills identity and timing fields from the request context and
// appends the entry. A failed append fails the surrounding transaction.
func (r *Recorder) Record(ctx context.Context, entry Entry) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.RecordedAt.IsZero() {
		entry.RecordedAt = requestcontext.Now(ctx)
	}
	if entry.Actor == "" {
		entry.Actor = requestcontext.Actor(ctx)
	}
	entry.RequestID = requestcontext.RequestID(ctx)
	entry.IPAddress = requestcontext.ClientIP(ctx)
	entry.UserAgent = requestcontext.UserAgent(ctx)

	return r.store.Append(ctx, entry)
}

// Snapshot marshals v for use as an entry's old or new values.
func Snapshot(v any) (json.RawMessage, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal audit snapshot: %w", err)
	}
	return raw, nil
}
