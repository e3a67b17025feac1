// Package shares computes deterministic share redistributions. It is pure:
// no I/O, no clock, no randomness.
package shares

import (
	id "titleledger/pkg/domain"
	dErrors "titleledger/pkg/domain-errors"

	"titleledger/internal/ownership/models"
)

// SellerReduction reduces an existing owner's share by TransferPct.
type SellerReduction struct {
	OwnerID     id.OwnerID
	TransferPct float64
}

// BuyerAddition grants a (possibly new) owner BuyerPct. The owner ID must be
// resolved by the caller before invocation; the calculator never creates
// identities.
type BuyerAddition struct {
	OwnerID  id.OwnerID
	BuyerPct float64
}

// Distribution is the redistributed state. Sellers maps every current owner to
// their remaining percentage, zero included so the confirmer knows which
// intervals to close. Buyers maps incoming owners to their new percentage.
type Distribution struct {
	Sellers map[id.OwnerID]float64
	Buyers  map[id.OwnerID]float64
}

// Total returns the percentage sum across sellers and buyers.
func (d Distribution) Total() float64 {
	var sum float64
	for _, pct := range d.Sellers {
		sum += pct
	}
	for _, pct := range d.Buyers {
		sum += pct
	}
	return sum
}

// CurrentHolders returns the resulting owner→percentage distribution with
// fully divested owners dropped.
func (d Distribution) CurrentHolders() map[id.OwnerID]float64 {
	out := make(map[id.OwnerID]float64, len(d.Sellers)+len(d.Buyers))
	for owner, pct := range d.Sellers {
		if pct > models.Tolerance {
			out[owner] = pct
		}
	}
	for owner, pct := range d.Buyers {
		if pct > models.Tolerance {
			out[owner] = pct
		}
	}
	return out
}

// Apply redistributes current ownership. Preconditions the caller must have
// enforced: every seller exists in current and transfers no more than they
// hold. Postcondition: the result sums to 100 within tolerance; a violation is
// reported as a conflict since it signals an inconsistent request, not a
// calculator bug.
func Apply(current map[id.OwnerID]float64, sellers []SellerReduction, buyers []BuyerAddition) (Distribution, error) {
	remaining := make(map[id.OwnerID]float64, len(current))
	for owner, pct := range current {
		remaining[owner] = pct
	}

	for _, s := range sellers {
		held, ok := remaining[s.OwnerID]
		if !ok {
			return Distribution{}, dErrors.New(dErrors.CodeBadRequest, "seller "+s.OwnerID.String()+" holds no current share")
		}
		if s.TransferPct > held+models.Tolerance {
			return Distribution{}, dErrors.New(dErrors.CodeBadRequest, "transfer percentage exceeds current share for owner "+s.OwnerID.String())
		}
		remaining[s.OwnerID] = held - s.TransferPct
	}

	acquired := make(map[id.OwnerID]float64, len(buyers))
	for _, b := range buyers {
		if b.BuyerPct <= models.Tolerance {
			continue
		}
		// A buyer who already holds a share grows their existing interval
		// instead of opening a second one.
		if _, holds := remaining[b.OwnerID]; holds {
			remaining[b.OwnerID] += b.BuyerPct
			continue
		}
		acquired[b.OwnerID] += b.BuyerPct
	}

	dist := Distribution{Sellers: remaining, Buyers: acquired}
	if !models.SumsTo100(dist.Total()) {
		return Distribution{}, dErrors.New(dErrors.CodeConflict, "redistributed ownership percentages do not add up to 100%")
	}
	return dist, nil
}
