package handler

import (
	"github.com/shopspring/decimal"

	"titleledger/internal/ownership/service"
)

type distributionResponse struct {
	Sellers map[string]float64 `json:"sellers"`
	Buyers  map[string]float64 `json:"buyers"`
}

type transferResponse struct {
	TransferID   int64                `json:"transfer_id"`
	UnitID       string               `json:"unit_id"`
	TransferType string               `json:"transfer_type"`
	Status       string               `json:"status"`
	TransferDate string               `json:"transfer_date"`
	Amount       float64              `json:"transfer_amount"`
	Currency     string               `json:"currency"`
	Distribution distributionResponse `json:"distribution"`
}

func newTransferResponse(result *service.InitiateResult) transferResponse {
	dist := distributionResponse{
		Sellers: make(map[string]float64, len(result.Distribution.Sellers)),
		Buyers:  make(map[string]float64, len(result.Distribution.Buyers)),
	}
	for owner, pct := range result.Distribution.Sellers {
		dist.Sellers[owner.String()] = pct
	}
	for owner, pct := range result.Distribution.Buyers {
		dist.Buyers[owner.String()] = pct
	}
	return transferResponse{
		TransferID:   int64(result.Transfer.ID),
		UnitID:       result.Transfer.UnitID.String(),
		TransferType: string(result.Transfer.Type),
		Status:       string(result.Transfer.Status),
		TransferDate: result.Transfer.Date.Format(dateLayout),
		Amount:       result.Transfer.Amount,
		Currency:     result.Transfer.Currency,
		Distribution: dist,
	}
}

type confirmResponse struct {
	TransferID int64  `json:"transfer_id"`
	UnitID     string `json:"unit_id"`
	Status     string `json:"status"`
}

type coOwnerResponse struct {
	OwnerID  string `json:"owner_id"`
	FullName string `json:"full_name"`
}

type holdingResponse struct {
	UnitID        string            `json:"unit_id"`
	BuildingName  string            `json:"building_name"`
	UnitNumber    string            `json:"unit_number"`
	Percentage    float64           `json:"percentage"`
	StartDate     string            `json:"start_date"`
	EndDate       *string           `json:"end_date,omitempty"`
	PurchasePrice decimal.Decimal   `json:"purchase_price"`
	Currency      string            `json:"currency"`
	CoOwners      []coOwnerResponse `json:"co_owners,omitempty"`
}

type transferHistoryResponse struct {
	TransferID   int64   `json:"transfer_id"`
	UnitID       string  `json:"unit_id"`
	TransferType string  `json:"transfer_type"`
	Status       string  `json:"status"`
	TransferDate string  `json:"transfer_date"`
	Amount       float64 `json:"transfer_amount"`
}

type portfolioResponse struct {
	OwnerID          string                    `json:"owner_id"`
	OwnerName        string                    `json:"owner_name"`
	Current          []holdingResponse         `json:"current_holdings"`
	Historical       []holdingResponse         `json:"historical_holdings"`
	CurrentValue     decimal.Decimal           `json:"current_value"`
	HistoricalBasis  decimal.Decimal           `json:"historical_cost_basis"`
	ValueDecreasePct decimal.Decimal           `json:"value_decrease_percentage"`
	Currency         string                    `json:"currency"`
	TransferHistory  []transferHistoryResponse `json:"transfer_history,omitempty"`
}

func newHoldingResponse(h service.PortfolioHolding) holdingResponse {
	resp := holdingResponse{
		UnitID:        h.UnitID.String(),
		BuildingName:  h.BuildingName,
		UnitNumber:    h.UnitNumber,
		Percentage:    h.Percentage,
		StartDate:     h.StartDate.Format(dateLayout),
		PurchasePrice: h.PurchasePrice,
		Currency:      h.Currency,
	}
	if h.EndDate != nil {
		end := h.EndDate.Format(dateLayout)
		resp.EndDate = &end
	}
	for _, co := range h.CoOwners {
		resp.CoOwners = append(resp.CoOwners, coOwnerResponse{
			OwnerID:  co.OwnerID.String(),
			FullName: co.FullName,
		})
	}
	return resp
}

func newPortfolioResponse(p *service.Portfolio) portfolioResponse {
	resp := portfolioResponse{
		OwnerID:          p.OwnerID.String(),
		OwnerName:        p.OwnerName,
		Current:          make([]holdingResponse, 0, len(p.Current)),
		Historical:       make([]holdingResponse, 0, len(p.Historical)),
		CurrentValue:     p.CurrentValue,
		HistoricalBasis:  p.HistoricalBasis,
		ValueDecreasePct: p.ValueDecreasePct,
		Currency:         p.Currency,
	}
	for _, h := range p.Current {
		resp.Current = append(resp.Current, newHoldingResponse(h))
	}
	for _, h := range p.Historical {
		resp.Historical = append(resp.Historical, newHoldingResponse(h))
	}
	for _, t := range p.TransferHistory {
		resp.TransferHistory = append(resp.TransferHistory, transferHistoryResponse{
			TransferID:   int64(t.ID),
			UnitID:       t.UnitID.String(),
			TransferType: string(t.Type),
			Status:       string(t.Status),
			TransferDate: t.Date.Format(dateLayout),
			Amount:       t.Amount,
		})
	}
	return resp
}
