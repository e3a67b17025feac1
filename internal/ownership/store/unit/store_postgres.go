// Package unit stores property unit reference data.
package unit

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"titleledger/internal/ownership/models"
	id "titleledger/pkg/domain"
	"titleledger/pkg/platform/sentinel"
	txcontext "titleledger/pkg/platform/tx"
)

// PostgresStore persists units in Postgres.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *PostgresStore) q(ctx context.Context) querier {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

// FindByID loads a unit. Returns sentinel.ErrNotFound when absent.
func (s *PostgresStore) FindByID(ctx context.Context, unitID id.UnitID) (*models.Unit, error) {
	query := `
		SELECT unit_id, unique_key, building_name, unit_number, created_at
		FROM units
		WHERE unit_id = $1
	`
	var u models.Unit
	var rawID uuid.UUID
	err := s.q(ctx).QueryRowContext(ctx, query, uuid.UUID(unitID)).Scan(
		&rawID, &u.UniqueKey, &u.BuildingName, &u.UnitNumber, &u.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query unit: %w", err)
	}
	u.ID = id.UnitID(rawID)
	return &u, nil
}

// FindByIDForUpdate loads a unit holding a row lock for the enclosing
// transaction. Transfer initiation locks the unit row so the in-flight
// conflict check and the subsequent ledger reads are serialized per unit.
func (s *PostgresStore) FindByIDForUpdate(ctx context.Context, unitID id.UnitID) (*models.Unit, error) {
	query := `
		SELECT unit_id, unique_key, building_name, unit_number, created_at
		FROM units
		WHERE unit_id = $1
		FOR UPDATE
	`
	var u models.Unit
	var rawID uuid.UUID
	err := s.q(ctx).QueryRowContext(ctx, query, uuid.UUID(unitID)).Scan(
		&rawID, &u.UniqueKey, &u.BuildingName, &u.UnitNumber, &u.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query unit for update: %w", err)
	}
	u.ID = id.UnitID(rawID)
	return &u, nil
}

// Create inserts a unit. Unique-key collisions surface as sentinel.ErrConflict.
func (s *PostgresStore) Create(ctx context.Context, u *models.Unit) error {
	query := `
		INSERT INTO units (unit_id, unique_key, building_name, unit_number, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (unique_key) DO NOTHING
	`
	res, err := s.q(ctx).ExecContext(ctx, query,
		uuid.UUID(u.ID), u.UniqueKey, u.BuildingName, u.UnitNumber, u.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert unit: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert unit: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrConflict
	}
	return nil
}
