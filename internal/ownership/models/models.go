// Package models defines the ownership ledger records and the staged
// distribution hand-off artifact.
package models

import (
	"regexp"
	"time"

	id "titleledger/pkg/domain"
	dErrors "titleledger/pkg/domain-errors"
)

// Tolerance is the floating tolerance used for all percentage sums.
const Tolerance = 1e-9

// DefaultCurrency is the ledger's single operating currency.
const DefaultCurrency = "AED"

// OwnerType discriminates individual and corporate owners.
type OwnerType string

const (
	OwnerTypeIndividual OwnerType = "individual"
	OwnerTypeCorporate  OwnerType = "corporate"
)

// TransferType enumerates the supported transfer variants.
type TransferType string

const (
	TransferTypePurchase      TransferType = "purchase"
	TransferTypeInheritance   TransferType = "inheritance"
	TransferTypeGift          TransferType = "gift"
	TransferTypeCourtOrder    TransferType = "court_order"
	TransferTypeRestructuring TransferType = "corporate_restructuring"
)

// ValidTransferType reports whether t is a known transfer type.
func ValidTransferType(t TransferType) bool {
	switch t {
	case TransferTypePurchase, TransferTypeInheritance, TransferTypeGift,
		TransferTypeCourtOrder, TransferTypeRestructuring:
		return true
	}
	return false
}

// TransferStatus is the transfer lifecycle state.
type TransferStatus string

const (
	TransferStatusPending    TransferStatus = "pending"
	TransferStatusInProgress TransferStatus = "in_progress"
	TransferStatusCompleted  TransferStatus = "completed"
	TransferStatusRejected   TransferStatus = "rejected"
)

// VerificationStatus is the document verification state.
type VerificationStatus string

const (
	VerificationPending     VerificationStatus = "pending"
	VerificationVerified    VerificationStatus = "verified"
	VerificationNotVerified VerificationStatus = "not_verified"
)

// Unit is immutable reference data for a property.
type Unit struct {
	ID           id.UnitID
	UniqueKey    string
	BuildingName string
	UnitNumber   string
	CreatedAt    time.Time
}

// nationalIDPattern matches the Emirates ID format 784-XXXX-XXXXXXX-X.
var nationalIDPattern = regexp.MustCompile(`^784-[0-9]{4}-[0-9]{7}-[0-9]$`)

// Owner is a person or corporate entity holding shares.
type Owner struct {
	ID         id.OwnerID
	Type       OwnerType
	FullName   string
	NationalID string
	Phone      string
	Email      string
	IsActive   bool
	CreatedAt  time.Time
}

// Validate enforces owner invariants: a known type, and a uniquely formatted
// national identifier for individuals.
func (o Owner) Validate() error {
	switch o.Type {
	case OwnerTypeIndividual:
		if o.NationalID == "" {
			return dErrors.New(dErrors.CodeValidation, "individual owners require a national id")
		}
	case OwnerTypeCorporate:
	default:
		return dErrors.New(dErrors.CodeValidation, "owner type must be individual or corporate")
	}
	if o.NationalID != "" && !nationalIDPattern.MatchString(o.NationalID) {
		return dErrors.New(dErrors.CodeValidation, "national id must match format 784-XXXX-XXXXXXX-X")
	}
	if o.FullName == "" {
		return dErrors.New(dErrors.CodeValidation, "owner full name is required")
	}
	return nil
}

// ValidNationalID reports whether s matches the national identifier format.
func ValidNationalID(s string) bool {
	return nationalIDPattern.MatchString(s)
}

// OwnershipInterval is one ledger row: an owner's share of a unit over a time
// interval. An interval is current iff EndDate is unset. Rows are closed, never
// deleted.
type OwnershipInterval struct {
	HistoryID        int64
	UnitID           id.UnitID
	OwnerID          id.OwnerID
	Percentage       float64
	StartDate        time.Time
	EndDate          *time.Time
	IsCurrent        bool
	PurchasePrice    float64
	PurchaseCurrency string
	TransactionType  TransferType
	TransferReason   string
	CreatedAt        time.Time
}

// Transfer is one initiate call's unit of work.
type Transfer struct {
	ID          id.TransferID
	UnitID      id.UnitID
	Type        TransferType
	Date        time.Time
	Amount      float64
	Currency    string
	LegalReason string
	Status      TransferStatus
	InitiatedBy string
	CreatedAt   time.Time
}

// InFlight reports whether the transfer blocks a new initiation for its unit.
func (t Transfer) InFlight() bool {
	return t.Status == TransferStatusPending || t.Status == TransferStatusInProgress
}

// TransferDocument supports one transfer; verification is mutated only by the
// confirmer.
type TransferDocument struct {
	ID                 int64
	TransferID         id.TransferID
	Type               string
	Name               string
	Location           string
	UploadDate         time.Time
	UploadedBy         string
	VerificationStatus VerificationStatus
	CreatedAt          time.Time
}

// StagedDistribution is the computed but unconfirmed result of a transfer,
// held in the staging cache between initiate and confirm. Seller entries carry
// remaining percentages; buyer entries carry new percentages.
type StagedDistribution struct {
	TransferID  id.TransferID          `json:"transfer_id"`
	UnitID      id.UnitID              `json:"unit_id"`
	Type        TransferType           `json:"transfer_type"`
	Date        time.Time              `json:"transfer_date"`
	Amount      float64                `json:"total_amount"`
	Currency    string                 `json:"transfer_currency"`
	LegalReason string                 `json:"legal_reason"`
	Sellers     map[id.OwnerID]float64 `json:"sellers"`
	Buyers      map[id.OwnerID]float64 `json:"buyers"`
}

// Total returns the percentage sum of the staged distribution.
func (d StagedDistribution) Total() float64 {
	var sum float64
	for _, pct := range d.Sellers {
		sum += pct
	}
	for _, pct := range d.Buyers {
		sum += pct
	}
	return sum
}

// SumCurrent returns the percentage sum of the given intervals.
func SumCurrent(intervals []OwnershipInterval) float64 {
	var sum float64
	for _, iv := range intervals {
		sum += iv.Percentage
	}
	return sum
}

// SumsTo100 reports whether total is 100 within Tolerance.
func SumsTo100(total float64) bool {
	return total > 100-Tolerance && total < 100+Tolerance
}
