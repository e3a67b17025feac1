package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"titleledger/internal/ownership/metrics"
	"titleledger/internal/ownership/models"
	"titleledger/internal/ownership/store/ledger"
	id "titleledger/pkg/domain"
	dErrors "titleledger/pkg/domain-errors"
	"titleledger/pkg/platform/sentinel"
)

// coOwnerLookupConcurrency bounds the parallel co-owner queries per request.
const coOwnerLookupConcurrency = 4

// PortfolioQuery filters a portfolio read.
type PortfolioQuery struct {
	Status ledger.StatusFilter
	From   *time.Time
	To     *time.Time
}

// CoOwner is a fellow holder of a jointly owned unit.
type CoOwner struct {
	OwnerID  id.OwnerID
	FullName string
}

// PortfolioHolding is one unit position, current or historical.
type PortfolioHolding struct {
	UnitID        id.UnitID
	BuildingName  string
	UnitNumber    string
	Percentage    float64
	StartDate     time.Time
	EndDate       *time.Time
	IsCurrent     bool
	PurchasePrice decimal.Decimal
	Currency      string
	CoOwners      []CoOwner
}

// Portfolio is the derived read-side view of one owner's positions.
type Portfolio struct {
	OwnerID          id.OwnerID
	OwnerName        string
	Current          []PortfolioHolding
	Historical       []PortfolioHolding
	CurrentValue     decimal.Decimal
	HistoricalBasis  decimal.Decimal
	ValueDecreasePct decimal.Decimal
	Currency         string
	TransferHistory  []models.Transfer
}

// Portfolio assembles an owner's current and historical holdings, monetary
// aggregates, transfer history for divested units, and co-owner lists for
// jointly held units. It is a derived read outside the invariant-preserving
// engine: no locks, no transaction.
func (s *Service) Portfolio(ctx context.Context, ownerID id.OwnerID, query PortfolioQuery) (*Portfolio, error) {
	ctx, span := s.tracer.Start(ctx, "ownership.Portfolio")
	defer span.End()
	span.SetAttributes(attribute.String("owner_id", ownerID.String()))

	start := time.Now()
	defer func() {
		metrics.PortfolioDurationMs.Observe(float64(time.Since(start).Microseconds()) / 1000.0)
	}()

	owner, err := s.owners.FindByID(ctx, ownerID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Newf(dErrors.CodeNotFound, "owner %s not found", ownerID)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "resolve owner")
	}

	if query.Status == "" {
		query.Status = ledger.StatusAll
	}
	holdings, err := s.ledger.HoldingsByOwner(ctx, ownerID, ledger.HoldingsQuery{
		Status: query.Status,
		From:   query.From,
		To:     query.To,
	})
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "load holdings")
	}

	portfolio := &Portfolio{
		OwnerID:          ownerID,
		OwnerName:        owner.FullName,
		CurrentValue:     decimal.Zero,
		HistoricalBasis:  decimal.Zero,
		ValueDecreasePct: decimal.Zero,
		Currency:         models.DefaultCurrency,
	}

	var historicalUnits []id.UnitID
	seenHistorical := make(map[id.UnitID]bool)
	for _, h := range holdings {
		price := decimal.NewFromFloat(h.Interval.PurchasePrice)
		holding := PortfolioHolding{
			UnitID:        h.Interval.UnitID,
			BuildingName:  h.BuildingName,
			UnitNumber:    h.UnitNumber,
			Percentage:    h.Interval.Percentage,
			StartDate:     h.Interval.StartDate,
			EndDate:       h.Interval.EndDate,
			IsCurrent:     h.Interval.IsCurrent,
			PurchasePrice: price,
			Currency:      h.Interval.PurchaseCurrency,
		}
		portfolio.HistoricalBasis = portfolio.HistoricalBasis.Add(price)
		if h.Interval.IsCurrent {
			portfolio.CurrentValue = portfolio.CurrentValue.Add(price)
			portfolio.Current = append(portfolio.Current, holding)
		} else {
			portfolio.Historical = append(portfolio.Historical, holding)
			if !seenHistorical[h.Interval.UnitID] {
				seenHistorical[h.Interval.UnitID] = true
				historicalUnits = append(historicalUnits, h.Interval.UnitID)
			}
		}
	}

	// Naive decrease figure: how much of the total cost basis is no longer
	// held. Zero basis means nothing to compare against.
	if portfolio.HistoricalBasis.IsPositive() {
		portfolio.ValueDecreasePct = portfolio.HistoricalBasis.
			Sub(portfolio.CurrentValue).
			Div(portfolio.HistoricalBasis).
			Mul(decimal.NewFromInt(100)).
			Round(4)
	}

	if len(historicalUnits) > 0 {
		history, err := s.transfers.ListByUnits(ctx, historicalUnits, query.From, query.To)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "load transfer history")
		}
		portfolio.TransferHistory = history
	}

	if err := s.attachCoOwners(ctx, ownerID, portfolio.Current); err != nil {
		return nil, err
	}
	return portfolio, nil
}

// attachCoOwners resolves fellow holders for each jointly owned current
// holding, fanning the per-unit queries out with a bounded error group.
func (s *Service) attachCoOwners(ctx context.Context, ownerID id.OwnerID, current []PortfolioHolding) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(coOwnerLookupConcurrency)

	var mu sync.Mutex
	ownerNames := make(map[id.OwnerID]string)

	for i := range current {
		holding := &current[i]
		if holding.Percentage >= 100-models.Tolerance {
			continue
		}
		g.Go(func() error {
			coOwnerIDs, err := s.ledger.CurrentCoOwners(ctx, holding.UnitID, ownerID)
			if err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "load co-owners")
			}

			coOwners := make([]CoOwner, 0, len(coOwnerIDs))
			for _, coID := range coOwnerIDs {
				mu.Lock()
				name, known := ownerNames[coID]
				mu.Unlock()
				if !known {
					co, err := s.owners.FindByID(ctx, coID)
					if err != nil {
						return dErrors.Wrap(err, dErrors.CodeInternal, "resolve co-owner")
					}
					name = co.FullName
					mu.Lock()
					ownerNames[coID] = name
					mu.Unlock()
				}
				coOwners = append(coOwners, CoOwner{OwnerID: coID, FullName: name})
			}
			holding.CoOwners = coOwners
			return nil
		})
	}
	return g.Wait()
}
