package service

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"titleledger/internal/ownership/models"
	"titleledger/internal/ownership/store/ledger"
	id "titleledger/pkg/domain"
	dErrors "titleledger/pkg/domain-errors"
)

type PortfolioSuite struct {
	ServiceSuite
}

func TestPortfolioSuite(t *testing.T) {
	suite.Run(t, new(PortfolioSuite))
}

func (s *PortfolioSuite) TestPortfolio() {
	s.Run("unknown owner is not found", func() {
		s.SetupTest()
		_, err := s.svc.Portfolio(context.Background(), id.NewOwnerID(), PortfolioQuery{})
		s.Require().True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("splits current and historical holdings with aggregates", func() {
		s.SetupTest()
		investor := s.seedOwner("Amna Al Suwaidi")
		keptUnit := s.seedUnit()
		s.seedInterval(keptUnit, investor.ID, 100) // price 1,000,000

		// A fully divested unit: initiate and confirm a 100% sale.
		soldUnit := s.seedUnit()
		s.seedInterval(soldUnit, investor.ID, 100)
		_, err := s.svc.Initiate(context.Background(), InitiateRequest{
			UnitID:      soldUnit,
			Type:        models.TransferTypePurchase,
			Sellers:     []SellerInput{{OwnerID: investor.ID, CurrentPct: 100, TransferPct: 100}},
			Buyers:      []BuyerInput{buyerFor("Bilal Haider", 100)},
			Date:        time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
			Amount:      900_000,
			LegalReason: "sale and purchase agreement",
		})
		s.Require().NoError(err)
		_, err = s.svc.Confirm(context.Background(), soldUnit, nil)
		s.Require().NoError(err)

		portfolio, err := s.svc.Portfolio(context.Background(), investor.ID, PortfolioQuery{})
		s.Require().NoError(err)

		s.Equal(investor.FullName, portfolio.OwnerName)
		s.Require().Len(portfolio.Current, 1)
		s.Equal(keptUnit, portfolio.Current[0].UnitID)
		s.Require().Len(portfolio.Historical, 1)
		s.Equal(soldUnit, portfolio.Historical[0].UnitID)

		// Basis 2,000,000, still held 1,000,000: half the basis divested.
		s.True(portfolio.CurrentValue.Equal(decimal.NewFromInt(1_000_000)),
			"current value %s", portfolio.CurrentValue)
		s.True(portfolio.HistoricalBasis.Equal(decimal.NewFromInt(2_000_000)),
			"historical basis %s", portfolio.HistoricalBasis)
		s.True(portfolio.ValueDecreasePct.Equal(decimal.NewFromInt(50)),
			"decrease %s", portfolio.ValueDecreasePct)

		// The divested unit's transfer appears in the history.
		s.Require().Len(portfolio.TransferHistory, 1)
		s.Equal(soldUnit, portfolio.TransferHistory[0].UnitID)
	})

	s.Run("status filter narrows the holdings", func() {
		s.SetupTest()
		investor := s.seedOwner("Amna Al Suwaidi")
		unitID := s.seedUnit()
		s.seedInterval(unitID, investor.ID, 100)

		portfolio, err := s.svc.Portfolio(context.Background(), investor.ID, PortfolioQuery{Status: ledger.StatusHistorical})
		s.Require().NoError(err)
		s.Empty(portfolio.Current)
		s.Empty(portfolio.Historical)
	})

	s.Run("joint holdings list co-owners by name", func() {
		s.SetupTest()
		investor := s.seedOwner("Amna Al Suwaidi")
		partner := s.seedOwner("Noor Fakhri")
		unitID := s.seedUnit()
		s.seedInterval(unitID, investor.ID, 60)
		s.seedInterval(unitID, partner.ID, 40)

		portfolio, err := s.svc.Portfolio(context.Background(), investor.ID, PortfolioQuery{Status: ledger.StatusCurrent})
		s.Require().NoError(err)
		s.Require().Len(portfolio.Current, 1)
		s.Require().Len(portfolio.Current[0].CoOwners, 1)
		s.Equal(partner.ID, portfolio.Current[0].CoOwners[0].OwnerID)
		s.Equal(partner.FullName, portfolio.Current[0].CoOwners[0].FullName)
	})

	s.Run("sole ownership skips the co-owner lookup", func() {
		s.SetupTest()
		investor := s.seedOwner("Amna Al Suwaidi")
		unitID := s.seedUnit()
		s.seedInterval(unitID, investor.ID, 100)

		portfolio, err := s.svc.Portfolio(context.Background(), investor.ID, PortfolioQuery{Status: ledger.StatusCurrent})
		s.Require().NoError(err)
		s.Require().Len(portfolio.Current, 1)
		s.Empty(portfolio.Current[0].CoOwners)
	})
}
