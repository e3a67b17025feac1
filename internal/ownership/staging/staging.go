// Package staging holds computed transfer distributions between the
// initiate and confirm steps. Entries expire on a TTL so abandoned
// transfers never leave permanent staging residue.
package staging

import (
	"context"
	"time"

	"titleledger/internal/ownership/models"
	id "titleledger/pkg/domain"
)

// Store stages one distribution per unit. A unit with a staged entry has a
// transfer in flight; the entry is removed on confirmation or expiry.
type Store interface {
	// Put stages the distribution under its unit, replacing any prior entry.
	Put(ctx context.Context, dist *models.StagedDistribution, ttl time.Duration) error
	// Get returns the staged distribution for the unit, or
	// sentinel.ErrNotFound if nothing is staged (never written or expired).
	Get(ctx context.Context, unitID id.UnitID) (*models.StagedDistribution, error)
	// Delete removes the staged entry. Deleting an absent entry is not an error.
	Delete(ctx context.Context, unitID id.UnitID) error
}
