// Package postgres persists audit entries using the transactional outbox
// pattern. Each entry lands in audit_logs for querying and in the outbox
// table for Kafka relay; both writes join the caller's transaction.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"titleledger/internal/audit"
	txcontext "titleledger/pkg/platform/tx"
)

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Store) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (s *Store) q(ctx context.Context) querier {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

// outboxPayload is the JSON structure relayed to Kafka. Field names match
// audit.Entry so downstream consumers deserialize without a mapping layer.
type outboxPayload struct {
	ID         string          `json:"ID"`
	TableName  string          `json:"TableName"`
	RecordID   string          `json:"RecordID"`
	Action     string          `json:"Action"`
	OldValues  json.RawMessage `json:"OldValues,omitempty"`
	NewValues  json.RawMessage `json:"NewValues,omitempty"`
	Actor      string          `json:"Actor,omitempty"`
	Reason     string          `json:"Reason,omitempty"`
	RequestID  string          `json:"RequestID,omitempty"`
	IPAddress  string          `json:"IPAddress,omitempty"`
	UserAgent  string          `json:"UserAgent,omitempty"`
	RecordedAt string          `json:"RecordedAt"`
}

// Append writes the entry to audit_logs and queues it on the outbox.
func (s *Store) Append(ctx context.Context, entry audit.Entry) error {
	execer := s.execer(ctx)

	const insertLog = `
		INSERT INTO audit_logs (
			id, table_name, record_id, action, old_values, new_values,
			actor, reason, request_id, ip_address, user_agent, recorded_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err := execer.ExecContext(ctx, insertLog,
		entry.ID,
		entry.TableName,
		entry.RecordID,
		string(entry.Action),
		nullableJSON(entry.OldValues),
		nullableJSON(entry.NewValues),
		entry.Actor,
		entry.Reason,
		entry.RequestID,
		entry.IPAddress,
		entry.UserAgent,
		entry.RecordedAt,
	)
	if err != nil {
		return fmt.Errorf("insert audit log: %w", err)
	}

	payload := outboxPayload{
		ID:         entry.ID.String(),
		TableName:  entry.TableName,
		RecordID:   entry.RecordID,
		Action:     string(entry.Action),
		OldValues:  entry.OldValues,
		NewValues:  entry.NewValues,
		Actor:      entry.Actor,
		Reason:     entry.Reason,
		RequestID:  entry.RequestID,
		IPAddress:  entry.IPAddress,
		UserAgent:  entry.UserAgent,
		RecordedAt: entry.RecordedAt.Format(time.RFC3339Nano),
	}
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal outbox payload: %w", err)
	}

	const insertOutbox = `
		INSERT INTO outbox (id, aggregate_type, aggregate_id, event_type, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err = execer.ExecContext(ctx, insertOutbox,
		uuid.New(),
		entry.TableName,
		entry.RecordID,
		string(entry.Action),
		payloadBytes,
		entry.RecordedAt,
	)
	if err != nil {
		return fmt.Errorf("insert outbox entry: %w", err)
	}
	return nil
}

func nullableJSON(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return []byte(raw)
}
