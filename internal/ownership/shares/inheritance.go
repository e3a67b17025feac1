package shares

import (
	dErrors "titleledger/pkg/domain-errors"

	"titleledger/internal/ownership/models"
)

// Relationship classifies an heir for estate distribution. Only wife, son and
// daughter receive computed shares; anything else gets nothing under the
// implemented rule subset.
type Relationship string

const (
	RelationshipWife     Relationship = "wife"
	RelationshipSon      Relationship = "son"
	RelationshipDaughter Relationship = "daughter"
)

// DistributeEstate splits a deceased owner's percentage p among classified
// heirs following a single school of thought:
//
//   - all wives together receive p/8, split equally
//   - the residue goes to the children, a son receiving twice a daughter's share
//   - only daughters, or only sons, split the residue equally
//
// The returned map is keyed by heir identity and sums to p when at least one
// wife, son or daughter exists. Heirs of other relationships are present with
// no entry.
func DistributeEstate(p float64, heirs map[string]Relationship) (map[string]float64, error) {
	if p <= 0 || p > 100+models.Tolerance {
		return nil, dErrors.New(dErrors.CodeValidation, "estate percentage must be in (0, 100]")
	}

	var wives, sons, daughters []string
	for heir, rel := range heirs {
		switch rel {
		case RelationshipWife:
			wives = append(wives, heir)
		case RelationshipSon:
			sons = append(sons, heir)
		case RelationshipDaughter:
			daughters = append(daughters, heir)
		}
	}
	if len(wives)+len(sons)+len(daughters) == 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "no eligible heirs: at least one wife, son or daughter is required")
	}

	shares := make(map[string]float64, len(heirs))

	residue := p
	if len(wives) > 0 {
		wivesShare := p / 8
		perWife := wivesShare / float64(len(wives))
		for _, wife := range wives {
			shares[wife] = perWife
		}
		residue = p - wivesShare
	}

	switch {
	case len(sons) > 0 && len(daughters) > 0:
		// A daughter's share is half of a son's.
		unitShare := residue / float64(2*len(sons)+len(daughters))
		for _, son := range sons {
			shares[son] = 2 * unitShare
		}
		for _, daughter := range daughters {
			shares[daughter] = unitShare
		}
	case len(sons) > 0:
		perSon := residue / float64(len(sons))
		for _, son := range sons {
			shares[son] = perSon
		}
	case len(daughters) > 0:
		perDaughter := residue / float64(len(daughters))
		for _, daughter := range daughters {
			shares[daughter] = perDaughter
		}
	default:
		// Wives only: the residue has no taker in the implemented subset, so
		// the split cannot cover the full estate.
		return nil, dErrors.New(dErrors.CodeValidation, "estate residue requires at least one son or daughter")
	}

	return shares, nil
}
