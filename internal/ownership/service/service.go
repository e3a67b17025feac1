// Package service orchestrates the two-step transfer protocol over the
// durable stores and the staging cache.
package service

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"titleledger/internal/audit"
	"titleledger/internal/ownership/models"
	"titleledger/internal/ownership/staging"
	"titleledger/internal/ownership/store/ledger"
	"titleledger/internal/ownership/verifier"
	id "titleledger/pkg/domain"
)

// Tx runs fn inside one atomic unit of work. All store calls made with the
// ctx passed to fn commit or roll back together.
type Tx interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// UnitStore resolves property units.
type UnitStore interface {
	FindByID(ctx context.Context, unitID id.UnitID) (*models.Unit, error)
	FindByIDForUpdate(ctx context.Context, unitID id.UnitID) (*models.Unit, error)
}

// OwnerStore resolves and registers owners.
type OwnerStore interface {
	FindByID(ctx context.Context, ownerID id.OwnerID) (*models.Owner, error)
	FindByNationalID(ctx context.Context, nationalID string) (*models.Owner, error)
	Create(ctx context.Context, o *models.Owner) error
}

// LedgerStore reads and mutates ownership intervals.
type LedgerStore interface {
	CurrentByUnit(ctx context.Context, unitID id.UnitID) ([]models.OwnershipInterval, error)
	CurrentByUnitForUpdate(ctx context.Context, unitID id.UnitID) ([]models.OwnershipInterval, error)
	UpdatePercentage(ctx context.Context, historyID int64, percentage float64) error
	Close(ctx context.Context, historyID int64, endDate time.Time, reason string) error
	Insert(ctx context.Context, iv *models.OwnershipInterval) error
	HoldingsByOwner(ctx context.Context, ownerID id.OwnerID, q ledger.HoldingsQuery) ([]ledger.Holding, error)
	CurrentCoOwners(ctx context.Context, unitID id.UnitID, exclude id.OwnerID) ([]id.OwnerID, error)
}

// TransferStore persists transfer lifecycle records.
type TransferStore interface {
	FindInFlightByUnit(ctx context.Context, unitID id.UnitID) (*models.Transfer, error)
	FindInFlightByUnitForUpdate(ctx context.Context, unitID id.UnitID) (*models.Transfer, error)
	Create(ctx context.Context, t *models.Transfer) error
	UpdateStatus(ctx context.Context, transferID id.TransferID, status models.TransferStatus) error
	ListByUnits(ctx context.Context, unitIDs []id.UnitID, from, to *time.Time) ([]models.Transfer, error)
}

// DocumentStore persists supporting documents.
type DocumentStore interface {
	Create(ctx context.Context, d *models.TransferDocument) error
	ListByTransfer(ctx context.Context, transferID id.TransferID) ([]models.TransferDocument, error)
	UpdateVerification(ctx context.Context, documentID int64, status models.VerificationStatus) error
}

// Auditor appends audit entries inside the ambient transaction.
type Auditor interface {
	Record(ctx context.Context, entry audit.Entry) error
}

// Capability gates type-specific transfer variants. Corporate restructuring
// and joint-ownership splits plug in here; the default allows everything.
type Capability interface {
	Validate(owner *models.Owner) bool
}

// AllowAll is the default capability: every owner may participate.
type AllowAll struct{}

func (AllowAll) Validate(*models.Owner) bool { return true }

// Service implements transfer initiation, confirmation, inheritance
// distribution and the portfolio read side.
type Service struct {
	tx         Tx
	units      UnitStore
	owners     OwnerStore
	ledger     LedgerStore
	transfers  TransferStore
	documents  DocumentStore
	staging    staging.Store
	verifier   verifier.DocumentVerifier
	auditor    Auditor
	capability Capability
	logger     *slog.Logger
	tracer     trace.Tracer
	stagingTTL time.Duration
}

// Deps bundles the service's collaborators.
type Deps struct {
	Tx         Tx
	Units      UnitStore
	Owners     OwnerStore
	Ledger     LedgerStore
	Transfers  TransferStore
	Documents  DocumentStore
	Staging    staging.Store
	Verifier   verifier.DocumentVerifier
	Auditor    Auditor
	Capability Capability
	Logger     *slog.Logger
	StagingTTL time.Duration
}

func New(deps Deps) *Service {
	if deps.Capability == nil {
		deps.Capability = AllowAll{}
	}
	if deps.Verifier == nil {
		deps.Verifier = verifier.AcceptAll{}
	}
	if deps.StagingTTL <= 0 {
		deps.StagingTTL = time.Hour
	}
	return &Service{
		tx:         deps.Tx,
		units:      deps.Units,
		owners:     deps.Owners,
		ledger:     deps.Ledger,
		transfers:  deps.Transfers,
		documents:  deps.Documents,
		staging:    deps.Staging,
		verifier:   deps.Verifier,
		auditor:    deps.Auditor,
		capability: deps.Capability,
		logger:     deps.Logger,
		tracer:     otel.Tracer("titleledger/internal/ownership/service"),
		stagingTTL: deps.StagingTTL,
	}
}
