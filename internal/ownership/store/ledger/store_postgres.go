// Package ledger stores ownership intervals: the append-mostly history of who
// held which share of a unit over time.
package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"titleledger/internal/ownership/models"
	id "titleledger/pkg/domain"
	txcontext "titleledger/pkg/platform/tx"
)

// StatusFilter narrows holdings queries.
type StatusFilter string

const (
	StatusCurrent    StatusFilter = "current"
	StatusHistorical StatusFilter = "historical"
	StatusAll        StatusFilter = "all"
)

// HoldingsQuery filters an owner's holdings.
type HoldingsQuery struct {
	Status StatusFilter
	From   *time.Time
	To     *time.Time
}

// Holding is an ownership interval joined with its unit's reference data for
// the portfolio read side.
type Holding struct {
	Interval     models.OwnershipInterval
	BuildingName string
	UnitNumber   string
}

// PostgresStore persists ownership intervals in Postgres.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) q(ctx context.Context) querier {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

const intervalColumns = `
	history_id, unit_id, owner_id, ownership_percentage,
	ownership_start_date, ownership_end_date, is_current_owner,
	purchase_price, purchase_currency, transaction_type, transfer_reason, created_at`

// intervalColumnsQualified disambiguates the join with units.
const intervalColumnsQualified = `
	h.history_id, h.unit_id, h.owner_id, h.ownership_percentage,
	h.ownership_start_date, h.ownership_end_date, h.is_current_owner,
	h.purchase_price, h.purchase_currency, h.transaction_type, h.transfer_reason, h.created_at`

// CurrentByUnit returns the unit's current intervals (no end date).
func (s *PostgresStore) CurrentByUnit(ctx context.Context, unitID id.UnitID) ([]models.OwnershipInterval, error) {
	query := `
		SELECT` + intervalColumns + `
		FROM ownership_history
		WHERE unit_id = $1 AND ownership_end_date IS NULL
		ORDER BY history_id
	`
	return s.queryIntervals(ctx, query, uuid.UUID(unitID))
}

// CurrentByUnitForUpdate is CurrentByUnit with row locks held for the duration
// of the enclosing transaction, serializing concurrent transfers per unit.
func (s *PostgresStore) CurrentByUnitForUpdate(ctx context.Context, unitID id.UnitID) ([]models.OwnershipInterval, error) {
	query := `
		SELECT` + intervalColumns + `
		FROM ownership_history
		WHERE unit_id = $1 AND ownership_end_date IS NULL
		ORDER BY history_id
		FOR UPDATE
	`
	return s.queryIntervals(ctx, query, uuid.UUID(unitID))
}

// UpdatePercentage rewrites a current interval's share in place.
func (s *PostgresStore) UpdatePercentage(ctx context.Context, historyID int64, percentage float64) error {
	query := `
		UPDATE ownership_history
		SET ownership_percentage = $2
		WHERE history_id = $1 AND ownership_end_date IS NULL
	`
	res, err := s.q(ctx).ExecContext(ctx, query, historyID, percentage)
	if err != nil {
		return fmt.Errorf("update interval percentage: %w", err)
	}
	return requireOneRow(res, "update interval percentage")
}

// Close ends an interval: the owner fully divested. Rows are never deleted.
func (s *PostgresStore) Close(ctx context.Context, historyID int64, endDate time.Time, reason string) error {
	query := `
		UPDATE ownership_history
		SET ownership_end_date = $2, is_current_owner = FALSE, transfer_reason = $3
		WHERE history_id = $1 AND ownership_end_date IS NULL
	`
	res, err := s.q(ctx).ExecContext(ctx, query, historyID, endDate, reason)
	if err != nil {
		return fmt.Errorf("close interval: %w", err)
	}
	return requireOneRow(res, "close interval")
}

// Insert opens a new interval and assigns its history ID.
func (s *PostgresStore) Insert(ctx context.Context, iv *models.OwnershipInterval) error {
	query := `
		INSERT INTO ownership_history (
			unit_id, owner_id, ownership_percentage,
			ownership_start_date, ownership_end_date, is_current_owner,
			purchase_price, purchase_currency, transaction_type, transfer_reason, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING history_id
	`
	err := s.q(ctx).QueryRowContext(ctx, query,
		uuid.UUID(iv.UnitID), uuid.UUID(iv.OwnerID), iv.Percentage,
		iv.StartDate, iv.EndDate, iv.IsCurrent,
		iv.PurchasePrice, iv.PurchaseCurrency, string(iv.TransactionType), iv.TransferReason, iv.CreatedAt,
	).Scan(&iv.HistoryID)
	if err != nil {
		return fmt.Errorf("insert interval: %w", err)
	}
	return nil
}

// HoldingsByOwner returns the owner's intervals joined with unit data,
// filtered by status and optional date range. The date range matches intervals
// that started or ended inside it.
func (s *PostgresStore) HoldingsByOwner(ctx context.Context, ownerID id.OwnerID, q HoldingsQuery) ([]Holding, error) {
	query := `
		SELECT` + intervalColumnsQualified + `, u.building_name, u.unit_number
		FROM ownership_history h
		JOIN units u ON u.unit_id = h.unit_id
		WHERE h.owner_id = $1
	`
	args := []any{uuid.UUID(ownerID)}

	switch q.Status {
	case StatusCurrent:
		query += ` AND h.is_current_owner`
	case StatusHistorical:
		query += ` AND NOT h.is_current_owner`
	}
	if q.From != nil && q.To != nil {
		args = append(args, *q.From, *q.To)
		query += fmt.Sprintf(` AND (
			(h.ownership_start_date >= $%d AND h.ownership_start_date <= $%d)
			OR (h.ownership_end_date IS NOT NULL AND h.ownership_end_date >= $%d AND h.ownership_end_date <= $%d)
		)`, len(args)-1, len(args), len(args)-1, len(args))
	}
	query += ` ORDER BY h.history_id`

	rows, err := s.q(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query holdings: %w", err)
	}
	defer rows.Close()

	var holdings []Holding
	for rows.Next() {
		var h Holding
		if err := scanInterval(rows, &h.Interval, &h.BuildingName, &h.UnitNumber); err != nil {
			return nil, err
		}
		holdings = append(holdings, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate holdings: %w", err)
	}
	return holdings, nil
}

// CurrentCoOwners lists the other owners currently holding the unit.
func (s *PostgresStore) CurrentCoOwners(ctx context.Context, unitID id.UnitID, exclude id.OwnerID) ([]id.OwnerID, error) {
	query := `
		SELECT DISTINCT owner_id
		FROM ownership_history
		WHERE unit_id = $1 AND owner_id <> $2 AND is_current_owner
	`
	rows, err := s.q(ctx).QueryContext(ctx, query, uuid.UUID(unitID), uuid.UUID(exclude))
	if err != nil {
		return nil, fmt.Errorf("query co-owners: %w", err)
	}
	defer rows.Close()

	var owners []id.OwnerID
	for rows.Next() {
		var rawID uuid.UUID
		if err := rows.Scan(&rawID); err != nil {
			return nil, fmt.Errorf("scan co-owner: %w", err)
		}
		owners = append(owners, id.OwnerID(rawID))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate co-owners: %w", err)
	}
	return owners, nil
}

func (s *PostgresStore) queryIntervals(ctx context.Context, query string, args ...any) ([]models.OwnershipInterval, error) {
	rows, err := s.q(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query intervals: %w", err)
	}
	defer rows.Close()

	var intervals []models.OwnershipInterval
	for rows.Next() {
		var iv models.OwnershipInterval
		if err := scanInterval(rows, &iv); err != nil {
			return nil, err
		}
		intervals = append(intervals, iv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate intervals: %w", err)
	}
	return intervals, nil
}

func scanInterval(rows *sql.Rows, iv *models.OwnershipInterval, extra ...any) error {
	var unitID, ownerID uuid.UUID
	var endDate sql.NullTime
	var currency, txType, reason sql.NullString
	var price sql.NullFloat64

	dest := []any{
		&iv.HistoryID, &unitID, &ownerID, &iv.Percentage,
		&iv.StartDate, &endDate, &iv.IsCurrent,
		&price, &currency, &txType, &reason, &iv.CreatedAt,
	}
	dest = append(dest, extra...)
	if err := rows.Scan(dest...); err != nil {
		return fmt.Errorf("scan interval: %w", err)
	}

	iv.UnitID = id.UnitID(unitID)
	iv.OwnerID = id.OwnerID(ownerID)
	if endDate.Valid {
		t := endDate.Time
		iv.EndDate = &t
	}
	iv.PurchasePrice = price.Float64
	iv.PurchaseCurrency = currency.String
	iv.TransactionType = models.TransferType(txType.String)
	iv.TransferReason = reason.String
	return nil
}

func requireOneRow(res sql.Result, op string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if affected == 0 {
		return fmt.Errorf("%s: no current interval matched", op)
	}
	return nil
}
