// Package document stores transfer supporting documents.
package document

import (
	"context"
	"database/sql"
	"fmt"

	"titleledger/internal/ownership/models"
	id "titleledger/pkg/domain"
	"titleledger/pkg/platform/sentinel"
	txcontext "titleledger/pkg/platform/tx"
)

// PostgresStore persists transfer documents in Postgres.
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

// Create inserts a document and assigns its ID.
func (s *PostgresStore) Create(ctx context.Context, d *models.TransferDocument) error {
	query := `
		INSERT INTO transfer_documents (
			transfer_id, document_type, document_name, file_path,
			upload_date, uploaded_by, verification_status, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING document_id
	`
	err := s.q(ctx).QueryRowContext(ctx, query,
		int64(d.TransferID), d.Type, d.Name, d.Location,
		d.UploadDate, d.UploadedBy, string(d.VerificationStatus), d.CreatedAt,
	).Scan(&d.ID)
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

// ListByTransfer returns a transfer's documents in upload order.
func (s *PostgresStore) ListByTransfer(ctx context.Context, transferID id.TransferID) ([]models.TransferDocument, error) {
	query := `
		SELECT document_id, transfer_id, document_type, document_name, file_path,
		       upload_date, uploaded_by, verification_status, created_at
		FROM transfer_documents
		WHERE transfer_id = $1
		ORDER BY document_id
	`
	rows, err := s.q(ctx).QueryContext(ctx, query, int64(transferID))
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	defer rows.Close()

	var docs []models.TransferDocument
	for rows.Next() {
		var d models.TransferDocument
		var rawTransferID int64
		err := rows.Scan(
			&d.ID, &rawTransferID, &d.Type, &d.Name, &d.Location,
			&d.UploadDate, &d.UploadedBy, &d.VerificationStatus, &d.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		d.TransferID = id.TransferID(rawTransferID)
		docs = append(docs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return docs, nil
}

// UpdateVerification records the verifier's verdict for a document.
func (s *PostgresStore) UpdateVerification(ctx context.Context, documentID int64, status models.VerificationStatus) error {
	query := `UPDATE transfer_documents SET verification_status = $2 WHERE document_id = $1`
	res, err := s.q(ctx).ExecContext(ctx, query, documentID, string(status))
	if err != nil {
		return fmt.Errorf("update document verification: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update document verification: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}
