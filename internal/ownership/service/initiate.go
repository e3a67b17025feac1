package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"titleledger/internal/audit"
	"titleledger/internal/ownership/metrics"
	"titleledger/internal/ownership/models"
	"titleledger/internal/ownership/shares"
	id "titleledger/pkg/domain"
	dErrors "titleledger/pkg/domain-errors"
	"titleledger/pkg/platform/sentinel"
	"titleledger/pkg/requestcontext"
)

// SellerInput names an existing owner and how much of their share they give up.
type SellerInput struct {
	OwnerID     id.OwnerID
	CurrentPct  float64
	TransferPct float64
}

// BuyerInput describes an incoming owner by identity; the owner record is
// resolved by national identifier or created on first appearance.
type BuyerInput struct {
	FullName   string
	NationalID string
	Phone      string
	Email      string
	Type       models.OwnerType
	Pct        float64
}

// DocumentInput is one supporting document submitted with a transfer.
type DocumentInput struct {
	Type       string
	Name       string
	Location   string
	UploadedBy string
}

// InitiateRequest is a validated transfer initiation.
type InitiateRequest struct {
	UnitID      id.UnitID
	Type        models.TransferType
	Sellers     []SellerInput
	Buyers      []BuyerInput
	Date        time.Time
	Amount      float64
	LegalReason string
	Documents   []DocumentInput
}

// InitiateResult is the persisted transfer plus its staged distribution.
type InitiateResult struct {
	Transfer     *models.Transfer
	Distribution *models.StagedDistribution
}

// validate enforces the pre-I/O invariants: a known type, balanced
// percentages, and per-seller transfer amounts within their declared holding.
func (r InitiateRequest) validate() error {
	if !models.ValidTransferType(r.Type) {
		return dErrors.Newf(dErrors.CodeValidation, "unknown transfer type %q", r.Type)
	}
	if len(r.Sellers) == 0 || len(r.Buyers) == 0 {
		return dErrors.New(dErrors.CodeValidation, "transfer requires at least one seller and one buyer")
	}

	var sellerSum, buyerSum float64
	for _, seller := range r.Sellers {
		if seller.TransferPct < 0 {
			return dErrors.New(dErrors.CodeValidation, "seller transfer percentage must not be negative")
		}
		if seller.TransferPct > seller.CurrentPct+models.Tolerance {
			return dErrors.Newf(dErrors.CodeValidation,
				"seller %s transfers %.4f%% but declares only %.4f%%",
				seller.OwnerID, seller.TransferPct, seller.CurrentPct)
		}
		sellerSum += seller.TransferPct
	}
	for _, buyer := range r.Buyers {
		if buyer.Pct <= 0 {
			return dErrors.New(dErrors.CodeValidation, "buyer percentage must be positive")
		}
		buyerSum += buyer.Pct
	}
	if math.Abs(sellerSum-buyerSum) > models.Tolerance {
		return dErrors.Newf(dErrors.CodeValidation,
			"transferred percentage %.4f does not match acquired percentage %.4f", sellerSum, buyerSum)
	}
	return nil
}

// Initiate runs the first half of the transfer protocol: conflict and
// existence checks, distribution computation, and durable persistence of the
// pending transfer, all in one transaction. The staged distribution is then
// written to the cache; a cache-write failure is logged but never fails the
// request, since the durable transfer row remains the source of truth.
func (s *Service) Initiate(ctx context.Context, req InitiateRequest) (*InitiateResult, error) {
	ctx, span := s.tracer.Start(ctx, "ownership.Initiate")
	defer span.End()
	span.SetAttributes(
		attribute.String("unit_id", req.UnitID.String()),
		attribute.String("transfer_type", string(req.Type)),
	)

	if err := req.validate(); err != nil {
		return nil, err
	}

	var result *InitiateResult
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		staged, err := s.initiateTx(ctx, req)
		if err != nil {
			return err
		}
		result = staged
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	// Step 8 runs outside the transaction: the durable write has committed,
	// the cache is best-effort. A lost entry surfaces at confirmation time.
	if err := s.staging.Put(ctx, result.Distribution, s.stagingTTL); err != nil {
		metrics.StagingWriteFailures.Inc()
		s.logger.Error("staged distribution not cached; confirmation will fail until re-staged",
			"unit_id", req.UnitID,
			"transfer_id", result.Transfer.ID,
			"error", err,
		)
	}

	metrics.TransfersInitiated.WithLabelValues(string(req.Type)).Inc()
	return result, nil
}

func (s *Service) initiateTx(ctx context.Context, req InitiateRequest) (*InitiateResult, error) {
	// Locking the unit row serializes concurrent initiations for the same
	// unit, making the in-flight check below race-free.
	if _, err := s.units.FindByIDForUpdate(ctx, req.UnitID); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Newf(dErrors.CodeNotFound, "unit %s not found", req.UnitID)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "load unit")
	}

	inFlight, err := s.transfers.FindInFlightByUnit(ctx, req.UnitID)
	if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "check in-flight transfers")
	}
	if inFlight != nil {
		return nil, dErrors.Newf(dErrors.CodeConflict,
			"unit %s already has transfer %d in status %s", req.UnitID, inFlight.ID, inFlight.Status)
	}

	intervals, err := s.ledger.CurrentByUnit(ctx, req.UnitID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "load current ownership")
	}
	if len(intervals) == 0 {
		return nil, dErrors.Newf(dErrors.CodeNotFound, "unit %s has no current ownership records", req.UnitID)
	}
	current := make(map[id.OwnerID]float64, len(intervals))
	for _, iv := range intervals {
		current[iv.OwnerID] += iv.Percentage
	}
	if !models.SumsTo100(models.SumCurrent(intervals)) {
		return nil, dErrors.Newf(dErrors.CodeConflict,
			"ledger corrupt: current shares of unit %s sum to %.6f, expected 100", req.UnitID, models.SumCurrent(intervals))
	}

	if err := s.reconcileSellers(req.Sellers, current); err != nil {
		return nil, err
	}

	reductions := make([]shares.SellerReduction, 0, len(req.Sellers))
	for _, seller := range req.Sellers {
		reductions = append(reductions, shares.SellerReduction{
			OwnerID:     seller.OwnerID,
			TransferPct: seller.TransferPct,
		})
	}
	additions, err := s.resolveBuyers(ctx, req.Buyers)
	if err != nil {
		return nil, err
	}

	dist, err := shares.Apply(current, reductions, additions)
	if err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	transfer := &models.Transfer{
		UnitID:      req.UnitID,
		Type:        req.Type,
		Date:        req.Date,
		Amount:      req.Amount,
		Currency:    models.DefaultCurrency,
		LegalReason: req.LegalReason,
		Status:      models.TransferStatusPending,
		InitiatedBy: requestcontext.Actor(ctx),
		CreatedAt:   now,
	}
	if err := s.transfers.Create(ctx, transfer); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "persist transfer")
	}

	for _, doc := range req.Documents {
		document := &models.TransferDocument{
			TransferID:         transfer.ID,
			Type:               doc.Type,
			Name:               doc.Name,
			Location:           doc.Location,
			UploadDate:         now,
			UploadedBy:         doc.UploadedBy,
			VerificationStatus: models.VerificationPending,
			CreatedAt:          now,
		}
		if err := s.documents.Create(ctx, document); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "persist transfer document")
		}
	}

	staged := &models.StagedDistribution{
		TransferID:  transfer.ID,
		UnitID:      req.UnitID,
		Type:        req.Type,
		Date:        req.Date,
		Amount:      req.Amount,
		Currency:    transfer.Currency,
		LegalReason: req.LegalReason,
		Sellers:     dist.Sellers,
		Buyers:      dist.Buyers,
	}

	oldSnap, err := audit.Snapshot(current)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "snapshot current distribution")
	}
	newSnap, err := audit.Snapshot(dist.CurrentHolders())
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "snapshot staged distribution")
	}
	entry := audit.Entry{
		TableName: "ownership_transfers",
		RecordID:  fmt.Sprintf("%d", transfer.ID),
		Action:    audit.ActionTransferInitiated,
		OldValues: oldSnap,
		NewValues: newSnap,
		Reason:    req.LegalReason,
	}
	if err := s.auditor.Record(ctx, entry); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "record audit entry")
	}

	return &InitiateResult{Transfer: transfer, Distribution: staged}, nil
}

// reconcileSellers requires the request's seller set to equal the ledger's
// current owner set exactly. A mismatch means the caller is working from a
// stale view of the unit.
func (s *Service) reconcileSellers(sellers []SellerInput, current map[id.OwnerID]float64) error {
	seen := make(map[id.OwnerID]bool, len(sellers))
	for _, seller := range sellers {
		if seen[seller.OwnerID] {
			return dErrors.Newf(dErrors.CodeBadRequest, "seller %s listed twice", seller.OwnerID)
		}
		seen[seller.OwnerID] = true
		if _, holds := current[seller.OwnerID]; !holds {
			return dErrors.Newf(dErrors.CodeBadRequest,
				"seller %s does not currently own a share of the unit", seller.OwnerID)
		}
	}
	if len(seen) != len(current) {
		return dErrors.New(dErrors.CodeBadRequest,
			"sellers must list every current owner of the unit, transferring zero for owners who keep their share")
	}
	return nil
}

// resolveBuyers maps buyer identities to owner records, creating owners on
// first appearance. Buyers sharing a national identifier resolve to the same
// owner.
func (s *Service) resolveBuyers(ctx context.Context, buyers []BuyerInput) ([]shares.BuyerAddition, error) {
	additions := make([]shares.BuyerAddition, 0, len(buyers))
	for _, buyer := range buyers {
		owner, err := s.resolveBuyer(ctx, buyer)
		if err != nil {
			return nil, err
		}
		if !s.capability.Validate(owner) {
			return nil, dErrors.Newf(dErrors.CodeBadRequest,
				"owner %s is not eligible for this transfer type", owner.ID)
		}
		additions = append(additions, shares.BuyerAddition{OwnerID: owner.ID, BuyerPct: buyer.Pct})
	}
	return additions, nil
}

func (s *Service) resolveBuyer(ctx context.Context, buyer BuyerInput) (*models.Owner, error) {
	if buyer.NationalID != "" {
		owner, err := s.owners.FindByNationalID(ctx, buyer.NationalID)
		if err == nil {
			return owner, nil
		}
		if !errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "resolve buyer")
		}
	}

	owner := &models.Owner{
		ID:         id.NewOwnerID(),
		Type:       buyer.Type,
		FullName:   buyer.FullName,
		NationalID: buyer.NationalID,
		Phone:      buyer.Phone,
		Email:      buyer.Email,
		IsActive:   true,
		CreatedAt:  requestcontext.Now(ctx),
	}
	if err := owner.Validate(); err != nil {
		return nil, err
	}
	if err := s.owners.Create(ctx, owner); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.Newf(dErrors.CodeConflict, "owner with national id %s already exists", buyer.NationalID)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "create owner")
	}

	snap, err := audit.Snapshot(owner)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "snapshot owner")
	}
	entry := audit.Entry{
		TableName: "owners",
		RecordID:  owner.ID.String(),
		Action:    audit.ActionOwnerCreated,
		NewValues: snap,
	}
	if err := s.auditor.Record(ctx, entry); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "record audit entry")
	}
	return owner, nil
}
