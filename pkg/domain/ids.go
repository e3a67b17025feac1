// Package domain holds shared identifier types. Distinct types for unit and
// owner IDs make cross-assignment a compile error at trust boundaries.
package domain

import (
	"github.com/google/uuid"

	dErrors "titleledger/pkg/domain-errors"
)

// UnitID identifies a property unit.
type UnitID uuid.UUID

// OwnerID identifies a person or corporate entity.
type OwnerID uuid.UUID

// TransferID identifies an ownership transfer record.
type TransferID int64

func (id UnitID) String() string  { return uuid.UUID(id).String() }
func (id OwnerID) String() string { return uuid.UUID(id).String() }

func (id UnitID) IsNil() bool  { return uuid.UUID(id) == uuid.Nil }
func (id OwnerID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }

// NewUnitID returns a fresh random unit ID.
func NewUnitID() UnitID { return UnitID(uuid.New()) }

// NewOwnerID returns a fresh random owner ID.
func NewOwnerID() OwnerID { return OwnerID(uuid.New()) }

// Text marshalling lets the typed IDs serve as JSON map keys and values in
// staged distributions and audit snapshots.

func (id UnitID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }

func (id *UnitID) UnmarshalText(b []byte) error {
	u, err := uuid.ParseBytes(b)
	if err != nil {
		return err
	}
	*id = UnitID(u)
	return nil
}

func (id OwnerID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }

func (id *OwnerID) UnmarshalText(b []byte) error {
	u, err := uuid.ParseBytes(b)
	if err != nil {
		return err
	}
	*id = OwnerID(u)
	return nil
}

// ParseUnitID parses and validates a unit ID. Empty, malformed and nil UUIDs
// are rejected.
func ParseUnitID(s string) (UnitID, error) {
	u, err := parse(s, "unit id")
	return UnitID(u), err
}

// ParseOwnerID parses and validates an owner ID.
func ParseOwnerID(s string) (OwnerID, error) {
	u, err := parse(s, "owner id")
	return OwnerID(u), err
}

func parse(s, label string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeValidation, label+" is required")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeValidation, "invalid "+label)
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeValidation, label+" must not be nil")
	}
	return u, nil
}
