// Package owner stores persons and corporate entities holding shares.
package owner

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

// PostgresStore persists owners in Postgres.
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

const ownerColumns = `owner_id, owner_type, full_name, national_id, phone, email, is_active, created_at`

func (s *PostgresStore) scanOwner(row *sql.Row) (*models.Owner, error) {
	var o models.Owner
	var rawID uuid.UUID
	var nationalID, phone, email sql.NullString
	err := row.Scan(&rawID, &o.Type, &o.FullName, &nationalID, &phone, &email, &o.IsActive, &o.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan owner: %w", err)
	}
	o.ID = id.OwnerID(rawID)
	o.NationalID = nationalID.String
	o.Phone = phone.String
	o.Email = email.String
	return &o, nil
}

// FindByID loads an owner. Returns sentinel.ErrNotFound when absent.
func (s *PostgresStore) FindByID(ctx context.Context, ownerID id.OwnerID) (*models.Owner, error) {
	query := `SELECT ` + ownerColumns + ` FROM owners WHERE owner_id = $1`
	return s.scanOwner(s.q(ctx).QueryRowContext(ctx, query, uuid.UUID(ownerID)))
}

// FindByNationalID resolves an owner by national identifier.
func (s *PostgresStore) FindByNationalID(ctx context.Context, nationalID string) (*models.Owner, error) {
	query := `SELECT ` + ownerColumns + ` FROM owners WHERE national_id = $1`
	return s.scanOwner(s.q(ctx).QueryRowContext(ctx, query, nationalID))
}

// Create inserts an owner. National-ID collisions surface as
// sentinel.ErrConflict so the caller can re-resolve.
func (s *PostgresStore) Create(ctx context.Context, o *models.Owner) error {
	query := `
		INSERT INTO owners (owner_id, owner_type, full_name, national_id, phone, email, is_active, created_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), NULLIF($6, ''), $7, $8)
		ON CONFLICT (national_id) DO NOTHING
	`
	res, err := s.q(ctx).ExecContext(ctx, query,
		uuid.UUID(o.ID), string(o.Type), o.FullName, o.NationalID, o.Phone, o.Email, o.IsActive, o.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert owner: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert owner: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrConflict
	}
	return nil
}
