package service

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"titleledger/internal/ownership/models"
	"titleledger/internal/ownership/shares"
	id "titleledger/pkg/domain"
	dErrors "titleledger/pkg/domain-errors"
	"titleledger/pkg/platform/sentinel"
)

// HeirInput identifies one heir and their relationship to the deceased.
// Heirs are keyed by national identifier; an heir without an owner record
// gets one on initiation.
type HeirInput struct {
	FullName     string
	NationalID   string
	Phone        string
	Email        string
	Relationship shares.Relationship
}

// InheritanceRequest initiates an estate distribution for one deceased
// owner's share of a unit.
type InheritanceRequest struct {
	UnitID          id.UnitID
	DeceasedOwnerID id.OwnerID
	Percentage      float64
	Heirs           []HeirInput
	Date            time.Time
	LegalReason     string
	Documents       []DocumentInput
}

// InitiateInheritance computes the fixed-rule estate split and then runs the
// standard initiation path with the deceased as sole transferring seller. The
// unit's other owners are carried as zero-transfer sellers so the ledger
// reconciliation check holds.
func (s *Service) InitiateInheritance(ctx context.Context, req InheritanceRequest) (*InitiateResult, error) {
	ctx, span := s.tracer.Start(ctx, "ownership.InitiateInheritance")
	defer span.End()
	span.SetAttributes(
		attribute.String("unit_id", req.UnitID.String()),
		attribute.String("deceased_owner_id", req.DeceasedOwnerID.String()),
	)

	if len(req.Heirs) == 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "at least one heir is required")
	}
	heirsByIdentity := make(map[string]HeirInput, len(req.Heirs))
	relationships := make(map[string]shares.Relationship, len(req.Heirs))
	for _, heir := range req.Heirs {
		if heir.NationalID == "" {
			return nil, dErrors.New(dErrors.CodeValidation, "heirs must carry a national id")
		}
		if _, dup := heirsByIdentity[heir.NationalID]; dup {
			return nil, dErrors.Newf(dErrors.CodeValidation, "heir %s listed twice", heir.NationalID)
		}
		heirsByIdentity[heir.NationalID] = heir
		relationships[heir.NationalID] = heir.Relationship
	}

	estate, err := shares.DistributeEstate(req.Percentage, relationships)
	if err != nil {
		return nil, err
	}

	if _, err := s.owners.FindByID(ctx, req.DeceasedOwnerID); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Newf(dErrors.CodeNotFound, "deceased owner %s not found", req.DeceasedOwnerID)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "resolve deceased owner")
	}

	// Build the seller list from the unit's current owners: the deceased
	// transfers the estate percentage, co-owners transfer nothing. The
	// initiation transaction re-reads and re-validates this under lock.
	intervals, err := s.ledger.CurrentByUnit(ctx, req.UnitID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "load current ownership")
	}
	if len(intervals) == 0 {
		return nil, dErrors.Newf(dErrors.CodeNotFound, "unit %s has no current ownership records", req.UnitID)
	}

	holdings := make(map[id.OwnerID]float64, len(intervals))
	for _, iv := range intervals {
		holdings[iv.OwnerID] += iv.Percentage
	}
	deceasedPct, holds := holdings[req.DeceasedOwnerID]
	if !holds {
		return nil, dErrors.Newf(dErrors.CodeBadRequest,
			"deceased owner %s holds no current share of unit %s", req.DeceasedOwnerID, req.UnitID)
	}
	if req.Percentage > deceasedPct+models.Tolerance {
		return nil, dErrors.Newf(dErrors.CodeBadRequest,
			"estate percentage %.4f exceeds the deceased owner's current share %.4f", req.Percentage, deceasedPct)
	}

	sellers := make([]SellerInput, 0, len(holdings))
	for owner, pct := range holdings {
		transferPct := 0.0
		if owner == req.DeceasedOwnerID {
			transferPct = req.Percentage
		}
		sellers = append(sellers, SellerInput{OwnerID: owner, CurrentPct: pct, TransferPct: transferPct})
	}

	buyers := make([]BuyerInput, 0, len(estate))
	for identity, pct := range estate {
		heir := heirsByIdentity[identity]
		buyers = append(buyers, BuyerInput{
			FullName:   heir.FullName,
			NationalID: heir.NationalID,
			Phone:      heir.Phone,
			Email:      heir.Email,
			Type:       models.OwnerTypeIndividual,
			Pct:        pct,
		})
	}

	return s.Initiate(ctx, InitiateRequest{
		UnitID:      req.UnitID,
		Type:        models.TransferTypeInheritance,
		Sellers:     sellers,
		Buyers:      buyers,
		Date:        req.Date,
		Amount:      0,
		LegalReason: req.LegalReason,
		Documents:   req.Documents,
	})
}
