package handler

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"titleledger/internal/ownership/handler/mocks"
	"titleledger/internal/ownership/models"
	"titleledger/internal/ownership/service"
	id "titleledger/pkg/domain"
	dErrors "titleledger/pkg/domain-errors"
	"titleledger/pkg/testutil"
)

//go:generate mockgen -source=handler.go -destination=mocks/ownership-mocks.go -package=mocks Service

type HandlerSuite struct {
	suite.Suite

	service *mocks.MockService
	router  chi.Router
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	ctrl := gomock.NewController(s.T())
	s.service = mocks.NewMockService(ctrl)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.router = chi.NewRouter()
	New(s.service, logger).Register(s.router)
}

func (s *HandlerSuite) postJSON(path string, payload any) *httptest.ResponseRecorder {
	req := testutil.NewJSONRequest(s.T(), http.MethodPost, path, payload)
	return testutil.DoRequest(s.router, req)
}

func (s *HandlerSuite) get(path string) *httptest.ResponseRecorder {
	req := testutil.NewRequest(s.T(), http.MethodGet, path)
	return testutil.DoRequest(s.router, req)
}

func pastDate() string {
	return time.Now().AddDate(0, 0, -1).Format(dateLayout)
}

func initiatePayloadFixture(unitID id.UnitID, sellerID id.OwnerID) map[string]any {
	return map[string]any{
		"unit_id":       unitID.String(),
		"transfer_type": "purchase",
		"sellers": []map[string]any{
			{"owner_id": sellerID.String(), "current_percentage": 100, "transfer_percentage": 40},
		},
		"buyers": []map[string]any{
			{"full_name": "Bilal Haider", "national_id": "784-1985-1234567-1", "owner_type": "individual", "percentage": 40},
		},
		"transfer_date":   pastDate(),
		"transfer_amount": 800000,
		"legal_reason":    "sale and purchase agreement",
	}
}

func (s *HandlerSuite) TestInitiate() {
	s.Run("returns the created transfer and distribution", func() {
		s.SetupTest()
		unitID := id.NewUnitID()
		sellerID := id.NewOwnerID()
		buyerID := id.NewOwnerID()

		s.service.EXPECT().Initiate(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ any, req service.InitiateRequest) (*service.InitiateResult, error) {
				s.Equal(unitID, req.UnitID)
				s.Equal(models.TransferTypePurchase, req.Type)
				s.Require().Len(req.Sellers, 1)
				s.Equal(sellerID, req.Sellers[0].OwnerID)
				return &service.InitiateResult{
					Transfer: &models.Transfer{
						ID:       7,
						UnitID:   unitID,
						Type:     models.TransferTypePurchase,
						Date:     req.Date,
						Amount:   req.Amount,
						Currency: models.DefaultCurrency,
						Status:   models.TransferStatusPending,
					},
					Distribution: &models.StagedDistribution{
						TransferID: 7,
						UnitID:     unitID,
						Sellers:    map[id.OwnerID]float64{sellerID: 60},
						Buyers:     map[id.OwnerID]float64{buyerID: 40},
					},
				}, nil
			})

		rec := s.postJSON("/api/v1/ownership/transfers/initiate", initiatePayloadFixture(unitID, sellerID))
		s.Require().Equal(http.StatusCreated, rec.Code)

		var resp struct {
			TransferID   int64  `json:"transfer_id"`
			Status       string `json:"status"`
			Distribution struct {
				Sellers map[string]float64 `json:"sellers"`
				Buyers  map[string]float64 `json:"buyers"`
			} `json:"distribution"`
		}
		s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
		s.Equal(int64(7), resp.TransferID)
		s.Equal("pending", resp.Status)
		s.InDelta(60.0, resp.Distribution.Sellers[sellerID.String()], 1e-9)
		s.InDelta(40.0, resp.Distribution.Buyers[buyerID.String()], 1e-9)
	})

	s.Run("rejects a malformed body without calling the service", func() {
		s.SetupTest()
		req := testutil.NewRequestWithBody(s.T(), http.MethodPost, "/api/v1/ownership/transfers/initiate", "{")
		rec := testutil.DoRequest(s.router, req)
		s.Equal(http.StatusBadRequest, rec.Code)
	})

	s.Run("rejects unbalanced percentages before any service call", func() {
		s.SetupTest()
		payload := initiatePayloadFixture(id.NewUnitID(), id.NewOwnerID())
		payload["buyers"] = []map[string]any{
			{"full_name": "Bilal Haider", "national_id": "784-1985-1234567-1", "percentage": 35},
		}
		rec := s.postJSON("/api/v1/ownership/transfers/initiate", payload)
		s.Equal(http.StatusBadRequest, rec.Code)
		s.Contains(rec.Body.String(), "does not match")
	})

	s.Run("rejects a future transfer date", func() {
		s.SetupTest()
		payload := initiatePayloadFixture(id.NewUnitID(), id.NewOwnerID())
		payload["transfer_date"] = time.Now().AddDate(0, 0, 2).Format(dateLayout)
		rec := s.postJSON("/api/v1/ownership/transfers/initiate", payload)
		s.Equal(http.StatusBadRequest, rec.Code)
		s.Contains(rec.Body.String(), "future")
	})

	s.Run("rejects a malformed national id", func() {
		s.SetupTest()
		payload := initiatePayloadFixture(id.NewUnitID(), id.NewOwnerID())
		payload["buyers"] = []map[string]any{
			{"full_name": "Bilal Haider", "national_id": "123-456", "percentage": 40},
		}
		rec := s.postJSON("/api/v1/ownership/transfers/initiate", payload)
		s.Equal(http.StatusBadRequest, rec.Code)
		s.Contains(rec.Body.String(), "784-XXXX-XXXXXXX-X")
	})

	s.Run("maps a service conflict to 409", func() {
		s.SetupTest()
		s.service.EXPECT().Initiate(gomock.Any(), gomock.Any()).
			Return(nil, dErrors.New(dErrors.CodeConflict, "unit already has a transfer in flight"))

		rec := s.postJSON("/api/v1/ownership/transfers/initiate", initiatePayloadFixture(id.NewUnitID(), id.NewOwnerID()))
		s.Equal(http.StatusConflict, rec.Code)
		s.Contains(rec.Body.String(), "in flight")
	})

	s.Run("internal failures stay generic", func() {
		s.SetupTest()
		s.service.EXPECT().Initiate(gomock.Any(), gomock.Any()).
			Return(nil, dErrors.New(dErrors.CodeInternal, "pq: connection refused"))

		rec := s.postJSON("/api/v1/ownership/transfers/initiate", initiatePayloadFixture(id.NewUnitID(), id.NewOwnerID()))
		s.Equal(http.StatusInternalServerError, rec.Code)
		s.NotContains(rec.Body.String(), "pq:")
	})
}

func (s *HandlerSuite) TestValidate() {
	s.Run("confirms the unit's in-flight transfer", func() {
		s.SetupTest()
		unitID := id.NewUnitID()
		s.service.EXPECT().Confirm(gomock.Any(), unitID, gomock.Nil()).
			Return(&models.Transfer{ID: 7, UnitID: unitID, Status: models.TransferStatusCompleted}, nil)

		rec := s.postJSON("/api/v1/ownership/transfers/validate", map[string]any{"unit_id": unitID.String()})
		s.Require().Equal(http.StatusOK, rec.Code)
		s.Contains(rec.Body.String(), `"status":"completed"`)
	})

	s.Run("passes an explicit transfer id through", func() {
		s.SetupTest()
		unitID := id.NewUnitID()
		wanted := id.TransferID(9)
		s.service.EXPECT().Confirm(gomock.Any(), unitID, &wanted).
			Return(&models.Transfer{ID: wanted, UnitID: unitID, Status: models.TransferStatusCompleted}, nil)

		rec := s.postJSON("/api/v1/ownership/transfers/validate", map[string]any{
			"unit_id":     unitID.String(),
			"transfer_id": 9,
		})
		s.Equal(http.StatusOK, rec.Code)
	})

	s.Run("maps a cache miss to 404", func() {
		s.SetupTest()
		unitID := id.NewUnitID()
		s.service.EXPECT().Confirm(gomock.Any(), unitID, gomock.Nil()).
			Return(nil, dErrors.New(dErrors.CodeNotFound, "transfer data not found in cache - cannot complete validation"))

		rec := s.postJSON("/api/v1/ownership/transfers/validate", map[string]any{"unit_id": unitID.String()})
		s.Equal(http.StatusNotFound, rec.Code)
		s.Contains(rec.Body.String(), "not found in cache")
	})

	s.Run("rejects a missing unit id", func() {
		s.SetupTest()
		rec := s.postJSON("/api/v1/ownership/transfers/validate", map[string]any{})
		s.Equal(http.StatusBadRequest, rec.Code)
	})
}

func (s *HandlerSuite) TestInheritance() {
	payload := func(unitID id.UnitID, deceasedID id.OwnerID) map[string]any {
		return map[string]any{
			"unit_id":           unitID.String(),
			"deceased_owner_id": deceasedID.String(),
			"percentage":        40,
			"heirs": []map[string]any{
				{"full_name": "Omar Al Marri", "national_id": "784-2001-7654321-2", "relationship": "son"},
			},
			"transfer_date": pastDate(),
			"legal_reason":  "succession certificate 2025/118",
		}
	}

	s.Run("initiates an estate distribution", func() {
		s.SetupTest()
		unitID := id.NewUnitID()
		deceasedID := id.NewOwnerID()
		heirID := id.NewOwnerID()

		s.service.EXPECT().InitiateInheritance(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ any, req service.InheritanceRequest) (*service.InitiateResult, error) {
				s.Equal(deceasedID, req.DeceasedOwnerID)
				s.InDelta(40.0, req.Percentage, 1e-9)
				return &service.InitiateResult{
					Transfer: &models.Transfer{
						ID:     11,
						UnitID: unitID,
						Type:   models.TransferTypeInheritance,
						Date:   req.Date,
						Status: models.TransferStatusPending,
					},
					Distribution: &models.StagedDistribution{
						TransferID: 11,
						UnitID:     unitID,
						Sellers:    map[id.OwnerID]float64{deceasedID: 60},
						Buyers:     map[id.OwnerID]float64{heirID: 40},
					},
				}, nil
			})

		rec := s.postJSON("/api/v1/ownership/inheritance/initiate", payload(unitID, deceasedID))
		s.Require().Equal(http.StatusCreated, rec.Code)
		s.Contains(rec.Body.String(), `"transfer_type":"inheritance"`)
	})

	s.Run("rejects an heir without a valid national id", func() {
		s.SetupTest()
		p := payload(id.NewUnitID(), id.NewOwnerID())
		p["heirs"] = []map[string]any{{"full_name": "Omar", "national_id": "", "relationship": "son"}}
		rec := s.postJSON("/api/v1/ownership/inheritance/initiate", p)
		s.Equal(http.StatusBadRequest, rec.Code)
	})

	s.Run("rejects a percentage above 100", func() {
		s.SetupTest()
		p := payload(id.NewUnitID(), id.NewOwnerID())
		p["percentage"] = 120
		rec := s.postJSON("/api/v1/ownership/inheritance/initiate", p)
		s.Equal(http.StatusBadRequest, rec.Code)
	})
}

func (s *HandlerSuite) TestPortfolio() {
	s.Run("returns the owner's holdings", func() {
		s.SetupTest()
		ownerID := id.NewOwnerID()
		s.service.EXPECT().Portfolio(gomock.Any(), ownerID, gomock.Any()).
			Return(&service.Portfolio{
				OwnerID:   ownerID,
				OwnerName: "Amna Al Suwaidi",
				Currency:  models.DefaultCurrency,
			}, nil)

		rec := s.get("/api/v1/owners/" + ownerID.String() + "/portfolio")
		s.Require().Equal(http.StatusOK, rec.Code)
		s.Contains(rec.Body.String(), "Amna Al Suwaidi")
	})

	s.Run("passes the status filter and date range through", func() {
		s.SetupTest()
		ownerID := id.NewOwnerID()
		s.service.EXPECT().Portfolio(gomock.Any(), ownerID, gomock.Any()).DoAndReturn(
			func(_ any, _ id.OwnerID, query service.PortfolioQuery) (*service.Portfolio, error) {
				s.Equal("historical", string(query.Status))
				s.Require().NotNil(query.From)
				s.Equal(2024, query.From.Year())
				return &service.Portfolio{OwnerID: ownerID}, nil
			})

		rec := s.get(fmt.Sprintf("/api/v1/owners/%s/portfolio?status=historical&from_date=2024-01-01", ownerID))
		s.Equal(http.StatusOK, rec.Code)
	})

	s.Run("rejects an unknown status filter", func() {
		s.SetupTest()
		rec := s.get("/api/v1/owners/" + id.NewOwnerID().String() + "/portfolio?status=sold")
		s.Equal(http.StatusBadRequest, rec.Code)
	})

	s.Run("rejects a malformed owner id", func() {
		s.SetupTest()
		rec := s.get("/api/v1/owners/not-a-uuid/portfolio")
		s.Equal(http.StatusBadRequest, rec.Code)
	})
}
