package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"titleledger/internal/ownership/models"
	"titleledger/internal/ownership/shares"
	id "titleledger/pkg/domain"
	dErrors "titleledger/pkg/domain-errors"
)

type InheritanceSuite struct {
	ServiceSuite
}

func TestInheritanceSuite(t *testing.T) {
	suite.Run(t, new(InheritanceSuite))
}

func heir(name string, rel shares.Relationship) HeirInput {
	return HeirInput{
		FullName:     name,
		NationalID:   nextNationalID(),
		Relationship: rel,
	}
}

func (s *InheritanceSuite) inheritanceRequest(unitID id.UnitID, deceased id.OwnerID, pct float64, heirs ...HeirInput) InheritanceRequest {
	return InheritanceRequest{
		UnitID:          unitID,
		DeceasedOwnerID: deceased,
		Percentage:      pct,
		Heirs:           heirs,
		Date:            time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		LegalReason:     "succession certificate 2025/118",
	}
}

func (s *InheritanceSuite) TestInitiateInheritance() {
	s.Run("two sons and a daughter split 40 percent", func() {
		s.SetupTest()
		unitID := s.seedUnit()
		deceased := s.seedOwner("Hassan Al Marri")
		s.seedInterval(unitID, deceased.ID, 100)

		son1 := heir("Omar Al Marri", shares.RelationshipSon)
		son2 := heir("Khalid Al Marri", shares.RelationshipSon)
		daughter := heir("Mariam Al Marri", shares.RelationshipDaughter)

		result, err := s.svc.InitiateInheritance(context.Background(),
			s.inheritanceRequest(unitID, deceased.ID, 40, son1, son2, daughter))
		s.Require().NoError(err)

		s.Equal(models.TransferTypeInheritance, result.Transfer.Type)
		s.InDelta(60.0, result.Distribution.Sellers[deceased.ID], models.Tolerance)

		byNationalID := make(map[string]float64)
		for owner, pct := range result.Distribution.Buyers {
			record, err := s.owners.FindByID(context.Background(), owner)
			s.Require().NoError(err)
			byNationalID[record.NationalID] = pct
		}
		s.InDelta(16.0, byNationalID[son1.NationalID], models.Tolerance)
		s.InDelta(16.0, byNationalID[son2.NationalID], models.Tolerance)
		s.InDelta(8.0, byNationalID[daughter.NationalID], models.Tolerance)

		// Confirm applies the split to the ledger.
		_, err = s.svc.Confirm(context.Background(), unitID, nil)
		s.Require().NoError(err)
		shares := s.currentShares(unitID)
		s.InDelta(60.0, shares[deceased.ID], models.Tolerance)
		s.Require().Len(shares, 4)
	})

	s.Run("wife and son divide the full estate", func() {
		s.SetupTest()
		unitID := s.seedUnit()
		deceased := s.seedOwner("Hassan Al Marri")
		s.seedInterval(unitID, deceased.ID, 100)

		wife := heir("Aisha Al Marri", shares.RelationshipWife)
		son := heir("Omar Al Marri", shares.RelationshipSon)

		result, err := s.svc.InitiateInheritance(context.Background(),
			s.inheritanceRequest(unitID, deceased.ID, 100, wife, son))
		s.Require().NoError(err)

		byNationalID := make(map[string]float64)
		for owner, pct := range result.Distribution.Buyers {
			record, err := s.owners.FindByID(context.Background(), owner)
			s.Require().NoError(err)
			byNationalID[record.NationalID] = pct
		}
		s.InDelta(12.5, byNationalID[wife.NationalID], models.Tolerance)
		s.InDelta(87.5, byNationalID[son.NationalID], models.Tolerance)

		_, err = s.svc.Confirm(context.Background(), unitID, nil)
		s.Require().NoError(err)
		s.NotContains(s.currentShares(unitID), deceased.ID)
	})

	s.Run("co-owners keep their shares through an estate split", func() {
		s.SetupTest()
		unitID := s.seedUnit()
		deceased := s.seedOwner("Hassan Al Marri")
		partner := s.seedOwner("Noor Fakhri")
		s.seedInterval(unitID, deceased.ID, 70)
		s.seedInterval(unitID, partner.ID, 30)

		son := heir("Omar Al Marri", shares.RelationshipSon)
		_, err := s.svc.InitiateInheritance(context.Background(),
			s.inheritanceRequest(unitID, deceased.ID, 70, son))
		s.Require().NoError(err)

		_, err = s.svc.Confirm(context.Background(), unitID, nil)
		s.Require().NoError(err)

		shares := s.currentShares(unitID)
		s.InDelta(30.0, shares[partner.ID], models.Tolerance)
		s.NotContains(shares, deceased.ID)
	})

	s.Run("no eligible heir fails validation before any write", func() {
		s.SetupTest()
		unitID := s.seedUnit()
		deceased := s.seedOwner("Hassan Al Marri")
		s.seedInterval(unitID, deceased.ID, 100)

		_, err := s.svc.InitiateInheritance(context.Background(),
			s.inheritanceRequest(unitID, deceased.ID, 100, heir("Cousin", shares.Relationship("cousin"))))
		s.Require().True(dErrors.HasCode(err, dErrors.CodeValidation))
		s.Empty(s.audits.Entries())
	})

	s.Run("estate percentage above the deceased's share is rejected", func() {
		s.SetupTest()
		unitID := s.seedUnit()
		deceased := s.seedOwner("Hassan Al Marri")
		partner := s.seedOwner("Noor Fakhri")
		s.seedInterval(unitID, deceased.ID, 40)
		s.seedInterval(unitID, partner.ID, 60)

		_, err := s.svc.InitiateInheritance(context.Background(),
			s.inheritanceRequest(unitID, deceased.ID, 55, heir("Omar Al Marri", shares.RelationshipSon)))
		s.Require().True(dErrors.HasCode(err, dErrors.CodeBadRequest))
	})

	s.Run("unknown deceased owner is not found", func() {
		s.SetupTest()
		unitID := s.seedUnit()
		owner := s.seedOwner("Noor Fakhri")
		s.seedInterval(unitID, owner.ID, 100)

		_, err := s.svc.InitiateInheritance(context.Background(),
			s.inheritanceRequest(unitID, id.NewOwnerID(), 50, heir("Omar", shares.RelationshipSon)))
		s.Require().True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}
