package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"titleledger/internal/audit"
	"titleledger/internal/ownership/metrics"
	"titleledger/internal/ownership/models"
	id "titleledger/pkg/domain"
	dErrors "titleledger/pkg/domain-errors"
	"titleledger/pkg/platform/sentinel"
	"titleledger/pkg/requestcontext"
)

// Confirm runs the second half of the transfer protocol: document
// verification, staged-distribution retrieval, and the single atomic ledger
// mutation. On success the transfer is completed and the staging entry
// consumed; any failure before or inside the ledger transaction leaves the
// ledger untouched and the staging entry in place so the call can be retried.
func (s *Service) Confirm(ctx context.Context, unitID id.UnitID, transferID *id.TransferID) (*models.Transfer, error) {
	ctx, span := s.tracer.Start(ctx, "ownership.Confirm")
	defer span.End()
	span.SetAttributes(attribute.String("unit_id", unitID.String()))

	start := time.Now()
	transfer, err := s.confirm(ctx, unitID, transferID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	metrics.ConfirmDurationMs.Observe(float64(time.Since(start).Microseconds()) / 1000.0)
	metrics.TransfersCompleted.Inc()
	return transfer, nil
}

func (s *Service) confirm(ctx context.Context, unitID id.UnitID, transferID *id.TransferID) (*models.Transfer, error) {
	transfer, err := s.transfers.FindInFlightByUnit(ctx, unitID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Newf(dErrors.CodeNotFound, "no transfer awaiting confirmation for unit %s", unitID)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "locate in-flight transfer")
	}
	if transferID != nil && transfer.ID != *transferID {
		return nil, dErrors.Newf(dErrors.CodeNotFound,
			"transfer %d is not the in-flight transfer for unit %s", *transferID, unitID)
	}

	// Mark the confirmation attempt durably before touching documents, so a
	// crashed confirmation is distinguishable from a never-attempted one.
	if transfer.Status == models.TransferStatusPending {
		if err := s.transfers.UpdateStatus(ctx, transfer.ID, models.TransferStatusInProgress); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "mark transfer in progress")
		}
		transfer.Status = models.TransferStatusInProgress
	}

	if err := s.verifyDocuments(ctx, transfer); err != nil {
		return nil, err
	}

	staged, err := s.staging.Get(ctx, unitID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) || errors.Is(err, sentinel.ErrExpired) {
			metrics.StagingMisses.Inc()
			return nil, dErrors.New(dErrors.CodeNotFound,
				"transfer data not found in cache - cannot complete validation")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "read staged distribution")
	}
	if staged.TransferID != transfer.ID {
		// A stale entry from an earlier transfer must not drive this one.
		metrics.StagingMisses.Inc()
		return nil, dErrors.New(dErrors.CodeNotFound,
			"transfer data not found in cache - cannot complete validation")
	}

	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		return s.applyStaged(ctx, transfer, staged)
	})
	if err != nil {
		return nil, err
	}
	transfer.Status = models.TransferStatusCompleted

	// The cache entry is single-use; a failed delete only means the key
	// lingers until its TTL.
	if err := s.staging.Delete(ctx, unitID); err != nil {
		s.logger.Warn("staged distribution not deleted after confirmation",
			"unit_id", unitID,
			"transfer_id", transfer.ID,
			"error", err,
		)
	}
	return transfer, nil
}

// verifyDocuments checks every supporting document. A document rejected on a
// prior attempt fails immediately and marks the transfer rejected; a fresh
// verification failure marks the document and leaves the transfer in progress
// so the caller sees the same InvalidRequest on retry.
func (s *Service) verifyDocuments(ctx context.Context, transfer *models.Transfer) error {
	documents, err := s.documents.ListByTransfer(ctx, transfer.ID)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "load transfer documents")
	}

	for _, doc := range documents {
		switch doc.VerificationStatus {
		case models.VerificationVerified:
			continue
		case models.VerificationNotVerified:
			if err := s.transfers.UpdateStatus(ctx, transfer.ID, models.TransferStatusRejected); err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "reject transfer")
			}
			metrics.TransfersRejected.Inc()
			return dErrors.Newf(dErrors.CodeBadRequest,
				"document %q was rejected; the transfer cannot be confirmed", doc.Name)
		}

		if err := s.verifier.Verify(ctx, doc); err != nil {
			if uerr := s.documents.UpdateVerification(ctx, doc.ID, models.VerificationNotVerified); uerr != nil {
				return dErrors.Wrap(uerr, dErrors.CodeInternal, "mark document not verified")
			}
			s.logger.Warn("document failed verification",
				"transfer_id", transfer.ID,
				"document", doc.Name,
				"error", err,
			)
			return dErrors.Newf(dErrors.CodeBadRequest, "document %q failed verification", doc.Name)
		}
		if err := s.documents.UpdateVerification(ctx, doc.ID, models.VerificationVerified); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "mark document verified")
		}
	}
	return nil
}

// applyStaged performs the all-or-nothing ledger mutation: sellers reduced or
// closed, buyers inserted, transfer completed, audit entry appended. The
// transfer row and the current intervals are locked for the duration.
func (s *Service) applyStaged(ctx context.Context, transfer *models.Transfer, staged *models.StagedDistribution) error {
	// The in-flight check outside this transaction is advisory only: a
	// concurrent confirmation may have settled the transfer between the
	// staging read and this point. Re-check under the transfer row lock so
	// the staged distribution is applied at most once.
	locked, err := s.transfers.FindInFlightByUnitForUpdate(ctx, staged.UnitID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.Newf(dErrors.CodeConflict,
				"transfer %d for unit %s has already been settled", transfer.ID, staged.UnitID)
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "lock in-flight transfer")
	}
	if locked.ID != transfer.ID {
		return dErrors.Newf(dErrors.CodeConflict,
			"transfer %d for unit %s has already been settled", transfer.ID, staged.UnitID)
	}

	intervals, err := s.ledger.CurrentByUnitForUpdate(ctx, staged.UnitID)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "lock current ownership")
	}

	byOwner := make(map[id.OwnerID]models.OwnershipInterval, len(intervals))
	before := make(map[id.OwnerID]float64, len(intervals))
	for _, iv := range intervals {
		byOwner[iv.OwnerID] = iv
		before[iv.OwnerID] += iv.Percentage
	}

	for owner, remaining := range staged.Sellers {
		iv, holds := byOwner[owner]
		if !holds {
			return dErrors.Newf(dErrors.CodeConflict,
				"ledger changed since initiation: seller %s no longer holds a share", owner)
		}
		if remaining > models.Tolerance {
			if err := s.ledger.UpdatePercentage(ctx, iv.HistoryID, remaining); err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "reduce seller share")
			}
		} else {
			if err := s.ledger.Close(ctx, iv.HistoryID, staged.Date, staged.LegalReason); err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "close seller interval")
			}
		}
	}

	var totalBuyerPct float64
	for _, pct := range staged.Buyers {
		totalBuyerPct += pct
	}
	for owner, pct := range staged.Buyers {
		price := 0.0
		if totalBuyerPct > models.Tolerance {
			price = staged.Amount * pct / totalBuyerPct
		}
		iv := &models.OwnershipInterval{
			UnitID:           staged.UnitID,
			OwnerID:          owner,
			Percentage:       pct,
			StartDate:        staged.Date,
			IsCurrent:        true,
			PurchasePrice:    price,
			PurchaseCurrency: staged.Currency,
			TransactionType:  staged.Type,
			TransferReason:   staged.LegalReason,
			CreatedAt:        requestcontext.Now(ctx),
		}
		if err := s.ledger.Insert(ctx, iv); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "insert buyer interval")
		}
	}

	if err := s.transfers.UpdateStatus(ctx, transfer.ID, models.TransferStatusCompleted); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "complete transfer")
	}

	// The invariant check reads the rows just written, not the staged maps:
	// the staged maps sum to 100 by construction and would mask a double
	// apply or any interleaved mutation.
	updated, err := s.ledger.CurrentByUnit(ctx, staged.UnitID)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "reload current ownership")
	}
	after := make(map[id.OwnerID]float64, len(updated))
	var total float64
	for _, iv := range updated {
		after[iv.OwnerID] += iv.Percentage
		total += iv.Percentage
	}
	if !models.SumsTo100(total) {
		return dErrors.Newf(dErrors.CodeConflict,
			"resulting shares for unit %s sum to %.6f, expected 100", staged.UnitID, total)
	}

	oldSnap, err := audit.Snapshot(before)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "snapshot prior distribution")
	}
	newSnap, err := audit.Snapshot(after)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "snapshot final distribution")
	}
	entry := audit.Entry{
		TableName: "ownership_transfers",
		RecordID:  fmt.Sprintf("%d", transfer.ID),
		Action:    audit.ActionTransferCompleted,
		OldValues: oldSnap,
		NewValues: newSnap,
		Reason:    staged.LegalReason,
	}
	if err := s.auditor.Record(ctx, entry); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "record audit entry")
	}
	return nil
}
