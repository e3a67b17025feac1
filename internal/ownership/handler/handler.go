// Package handler exposes the ownership engine over HTTP.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"titleledger/internal/ownership/models"
	"titleledger/internal/ownership/service"
	"titleledger/internal/platform/middleware"
	id "titleledger/pkg/domain"
	dErrors "titleledger/pkg/domain-errors"
	"titleledger/pkg/platform/httputil"
)

// Service is the ownership engine surface the handlers depend on.
type Service interface {
	Initiate(ctx context.Context, req service.InitiateRequest) (*service.InitiateResult, error)
	Confirm(ctx context.Context, unitID id.UnitID, transferID *id.TransferID) (*models.Transfer, error)
	InitiateInheritance(ctx context.Context, req service.InheritanceRequest) (*service.InitiateResult, error)
	Portfolio(ctx context.Context, ownerID id.OwnerID, query service.PortfolioQuery) (*service.Portfolio, error)
}

// Handler routes ownership requests to the service.
type Handler struct {
	logger  *slog.Logger
	service Service
}

func New(svc Service, logger *slog.Logger) *Handler {
	return &Handler{logger: logger, service: svc}
}

// Register mounts the ownership API under /api/v1.
func (h *Handler) Register(r chi.Router) {
	api := chi.NewRouter()
	api.Use(middleware.RequestContext)
	api.Use(middleware.Logger(h.logger))

	api.Group(func(r chi.Router) {
		r.Use(middleware.ContentTypeJSON)
		r.Post("/ownership/transfers/initiate", h.handleInitiate)
		r.Post("/ownership/transfers/validate", h.handleValidate)
		r.Post("/ownership/inheritance/initiate", h.handleInheritance)
	})
	api.Get("/owners/{owner_id}/portfolio", h.handlePortfolio)

	r.Mount("/api/v1", api)
}

func (h *Handler) handleInitiate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, err := decodeInitiateRequest(r)
	if err != nil {
		h.logger.WarnContext(ctx, "invalid initiate request", "error", err.Error())
		httputil.WriteError(w, err)
		return
	}

	result, err := h.service.Initiate(ctx, req)
	if err != nil {
		h.writeServiceError(ctx, w, "initiate transfer", err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, newTransferResponse(result))
}

func (h *Handler) handleValidate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, err := decodeValidateRequest(r)
	if err != nil {
		h.logger.WarnContext(ctx, "invalid validate request", "error", err.Error())
		httputil.WriteError(w, err)
		return
	}

	transfer, err := h.service.Confirm(ctx, req.unitID, req.transferID)
	if err != nil {
		h.writeServiceError(ctx, w, "confirm transfer", err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, confirmResponse{
		TransferID: int64(transfer.ID),
		UnitID:     transfer.UnitID.String(),
		Status:     string(transfer.Status),
	})
}

func (h *Handler) handleInheritance(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, err := decodeInheritanceRequest(r)
	if err != nil {
		h.logger.WarnContext(ctx, "invalid inheritance request", "error", err.Error())
		httputil.WriteError(w, err)
		return
	}

	result, err := h.service.InitiateInheritance(ctx, req)
	if err != nil {
		h.writeServiceError(ctx, w, "initiate inheritance", err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, newTransferResponse(result))
}

func (h *Handler) handlePortfolio(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	ownerID, err := id.ParseOwnerID(chi.URLParam(r, "owner_id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	query, err := decodePortfolioQuery(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	portfolio, err := h.service.Portfolio(ctx, ownerID, query)
	if err != nil {
		h.writeServiceError(ctx, w, "load portfolio", err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, newPortfolioResponse(portfolio))
}

// writeServiceError logs and maps a service failure. Domain errors pass
// through; anything unclassified becomes a generic internal error so storage
// detail never reaches the caller.
func (h *Handler) writeServiceError(ctx context.Context, w http.ResponseWriter, op string, err error) {
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		h.logger.ErrorContext(ctx, op+" failed", "error", err.Error())
		httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, op+" failed"))
		return
	}
	h.logger.WarnContext(ctx, op+" rejected", "error", err.Error())
	httputil.WriteError(w, err)
}

// dateLayout is the wire format for transfer dates.
const dateLayout = "2006-01-02"

func parseTransferDate(value string, now time.Time) (time.Time, error) {
	if value == "" {
		return time.Time{}, dErrors.New(dErrors.CodeValidation, "transfer date is required")
	}
	date, err := time.Parse(dateLayout, value)
	if err != nil {
		return time.Time{}, dErrors.New(dErrors.CodeValidation, "transfer date must use YYYY-MM-DD")
	}
	if date.After(now) {
		return time.Time{}, dErrors.New(dErrors.CodeValidation, "transfer date must not be in the future")
	}
	return date, nil
}
