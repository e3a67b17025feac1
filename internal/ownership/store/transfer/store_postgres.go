// Package transfer stores transfer records, the unit of work created by
// initiate and finalized by confirm.
package transfer

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"titleledger/internal/ownership/models"
	id "titleledger/pkg/domain"
	"titleledger/pkg/platform/sentinel"
	txcontext "titleledger/pkg/platform/tx"
)

// PostgresStore persists transfers in Postgres.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *PostgresStore) q(ctx context.Context) querier {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

const transferColumns = `
	transfer_id, unit_id, transfer_type, transfer_date, total_amount,
	transfer_currency, legal_reason, status, initiated_by, created_at`

// FindInFlightByUnit returns the unit's pending or in-progress transfer, or
// sentinel.ErrNotFound.
func (s *PostgresStore) FindInFlightByUnit(ctx context.Context, unitID id.UnitID) (*models.Transfer, error) {
	query := `
		SELECT` + transferColumns + `
		FROM ownership_transfers
		WHERE unit_id = $1 AND status IN ('pending', 'in_progress')
		ORDER BY transfer_id
		LIMIT 1
	`
	return s.scanTransfer(s.q(ctx).QueryRowContext(ctx, query, uuid.UUID(unitID)))
}

// FindInFlightByUnitForUpdate is FindInFlightByUnit with a row lock, so the
// confirm transaction can verify the transfer is still in flight before
// mutating the ledger.
func (s *PostgresStore) FindInFlightByUnitForUpdate(ctx context.Context, unitID id.UnitID) (*models.Transfer, error) {
	query := `
		SELECT` + transferColumns + `
		FROM ownership_transfers
		WHERE unit_id = $1 AND status IN ('pending', 'in_progress')
		ORDER BY transfer_id
		LIMIT 1
		FOR UPDATE
	`
	return s.scanTransfer(s.q(ctx).QueryRowContext(ctx, query, uuid.UUID(unitID)))
}

// Create inserts a transfer and assigns its ID.
func (s *PostgresStore) Create(ctx context.Context, t *models.Transfer) error {
	query := `
		INSERT INTO ownership_transfers (
			unit_id, transfer_type, transfer_date, total_amount,
			transfer_currency, legal_reason, status, initiated_by, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING transfer_id
	`
	var rawID int64
	err := s.q(ctx).QueryRowContext(ctx, query,
		uuid.UUID(t.UnitID), string(t.Type), t.Date, t.Amount,
		t.Currency, t.LegalReason, string(t.Status), t.InitiatedBy, t.CreatedAt,
	).Scan(&rawID)
	if err != nil {
		return fmt.Errorf("insert transfer: %w", err)
	}
	t.ID = id.TransferID(rawID)
	return nil
}

// UpdateStatus transitions a transfer's lifecycle state.
func (s *PostgresStore) UpdateStatus(ctx context.Context, transferID id.TransferID, status models.TransferStatus) error {
	query := `UPDATE ownership_transfers SET status = $2 WHERE transfer_id = $1`
	res, err := s.q(ctx).ExecContext(ctx, query, int64(transferID), string(status))
	if err != nil {
		return fmt.Errorf("update transfer status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update transfer status: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

// ListByUnits returns transfers for the given units, optionally bounded by a
// transfer-date range.
func (s *PostgresStore) ListByUnits(ctx context.Context, unitIDs []id.UnitID, from, to *time.Time) ([]models.Transfer, error) {
	if len(unitIDs) == 0 {
		return nil, nil
	}

	raw := make([]uuid.UUID, len(unitIDs))
	for i, u := range unitIDs {
		raw[i] = uuid.UUID(u)
	}

	query := `
		SELECT` + transferColumns + `
		FROM ownership_transfers
		WHERE unit_id = ANY($1)
	`
	args := []any{pq.Array(raw)}
	if from != nil && to != nil {
		args = append(args, *from, *to)
		query += ` AND transfer_date BETWEEN $2 AND $3`
	}
	query += ` ORDER BY transfer_id`

	rows, err := s.q(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query transfers: %w", err)
	}
	defer rows.Close()

	var transfers []models.Transfer
	for rows.Next() {
		t, err := scanTransferRow(rows)
		if err != nil {
			return nil, err
		}
		transfers = append(transfers, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transfers: %w", err)
	}
	return transfers, nil
}

func (s *PostgresStore) scanTransfer(row *sql.Row) (*models.Transfer, error) {
	var t models.Transfer
	var rawID int64
	var unitID uuid.UUID
	err := row.Scan(
		&rawID, &unitID, &t.Type, &t.Date, &t.Amount,
		&t.Currency, &t.LegalReason, &t.Status, &t.InitiatedBy, &t.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan transfer: %w", err)
	}
	t.ID = id.TransferID(rawID)
	t.UnitID = id.UnitID(unitID)
	return &t, nil
}

func scanTransferRow(rows *sql.Rows) (*models.Transfer, error) {
	var t models.Transfer
	var rawID int64
	var unitID uuid.UUID
	err := rows.Scan(
		&rawID, &unitID, &t.Type, &t.Date, &t.Amount,
		&t.Currency, &t.LegalReason, &t.Status, &t.InitiatedBy, &t.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("scan transfer: %w", err)
	}
	t.ID = id.TransferID(rawID)
	t.UnitID = id.UnitID(unitID)
	return &t, nil
}
