package handler

import (
	"encoding/json"
	"math"
	"net/http"
	"time"

	"titleledger/internal/ownership/models"
	"titleledger/internal/ownership/service"
	"titleledger/internal/ownership/shares"
	"titleledger/internal/ownership/store/ledger"
	id "titleledger/pkg/domain"
	dErrors "titleledger/pkg/domain-errors"
	"titleledger/pkg/requestcontext"
)

type sellerPayload struct {
	OwnerID           string  `json:"owner_id"`
	CurrentPercentage float64 `json:"current_percentage"`
	TransferPct       float64 `json:"transfer_percentage"`
}

type buyerPayload struct {
	FullName   string  `json:"full_name"`
	NationalID string  `json:"national_id"`
	Phone      string  `json:"phone,omitempty"`
	Email      string  `json:"email,omitempty"`
	OwnerType  string  `json:"owner_type"`
	Percentage float64 `json:"percentage"`
}

type documentPayload struct {
	Type       string `json:"document_type"`
	Name       string `json:"document_name"`
	Location   string `json:"document_location,omitempty"`
	UploadedBy string `json:"uploaded_by,omitempty"`
}

type initiatePayload struct {
	UnitID       string            `json:"unit_id"`
	TransferType string            `json:"transfer_type"`
	Sellers      []sellerPayload   `json:"sellers"`
	Buyers       []buyerPayload    `json:"buyers"`
	TransferDate string            `json:"transfer_date"`
	Amount       float64           `json:"transfer_amount"`
	LegalReason  string            `json:"legal_reason"`
	Documents    []documentPayload `json:"documents,omitempty"`
}

func decodeInitiateRequest(r *http.Request) (service.InitiateRequest, error) {
	var payload initiatePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		return service.InitiateRequest{}, dErrors.New(dErrors.CodeBadRequest, "invalid request body")
	}

	unitID, err := id.ParseUnitID(payload.UnitID)
	if err != nil {
		return service.InitiateRequest{}, err
	}
	transferType := models.TransferType(payload.TransferType)
	if !models.ValidTransferType(transferType) {
		return service.InitiateRequest{}, dErrors.Newf(dErrors.CodeValidation, "unknown transfer type %q", payload.TransferType)
	}
	date, err := parseTransferDate(payload.TransferDate, requestcontext.Now(r.Context()))
	if err != nil {
		return service.InitiateRequest{}, err
	}
	if payload.LegalReason == "" {
		return service.InitiateRequest{}, dErrors.New(dErrors.CodeValidation, "legal reason is required")
	}
	if payload.Amount < 0 {
		return service.InitiateRequest{}, dErrors.New(dErrors.CodeValidation, "transfer amount must not be negative")
	}

	sellers, err := parseSellers(payload.Sellers)
	if err != nil {
		return service.InitiateRequest{}, err
	}
	buyers, err := parseBuyers(payload.Buyers)
	if err != nil {
		return service.InitiateRequest{}, err
	}
	if err := checkBalance(sellers, buyers); err != nil {
		return service.InitiateRequest{}, err
	}

	req := service.InitiateRequest{
		UnitID:      unitID,
		Type:        transferType,
		Sellers:     sellers,
		Buyers:      buyers,
		Date:        date,
		Amount:      payload.Amount,
		LegalReason: payload.LegalReason,
	}
	for _, doc := range payload.Documents {
		if doc.Name == "" {
			return service.InitiateRequest{}, dErrors.New(dErrors.CodeValidation, "documents require a name")
		}
		req.Documents = append(req.Documents, service.DocumentInput{
			Type:       doc.Type,
			Name:       doc.Name,
			Location:   doc.Location,
			UploadedBy: doc.UploadedBy,
		})
	}
	return req, nil
}

func parseSellers(payloads []sellerPayload) ([]service.SellerInput, error) {
	if len(payloads) == 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "at least one seller is required")
	}
	sellers := make([]service.SellerInput, 0, len(payloads))
	for _, p := range payloads {
		ownerID, err := id.ParseOwnerID(p.OwnerID)
		if err != nil {
			return nil, err
		}
		if p.TransferPct < 0 || p.TransferPct > 100 {
			return nil, dErrors.New(dErrors.CodeValidation, "seller transfer percentage must be between 0 and 100")
		}
		if p.TransferPct > p.CurrentPercentage+models.Tolerance {
			return nil, dErrors.Newf(dErrors.CodeValidation,
				"seller %s cannot transfer more than their current share", p.OwnerID)
		}
		sellers = append(sellers, service.SellerInput{
			OwnerID:     ownerID,
			CurrentPct:  p.CurrentPercentage,
			TransferPct: p.TransferPct,
		})
	}
	return sellers, nil
}

func parseBuyers(payloads []buyerPayload) ([]service.BuyerInput, error) {
	if len(payloads) == 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "at least one buyer is required")
	}
	buyers := make([]service.BuyerInput, 0, len(payloads))
	for _, p := range payloads {
		ownerType := models.OwnerType(p.OwnerType)
		if ownerType == "" {
			ownerType = models.OwnerTypeIndividual
		}
		if p.FullName == "" {
			return nil, dErrors.New(dErrors.CodeValidation, "buyer full name is required")
		}
		if ownerType == models.OwnerTypeIndividual && !models.ValidNationalID(p.NationalID) {
			return nil, dErrors.New(dErrors.CodeValidation, "buyer national id must match format 784-XXXX-XXXXXXX-X")
		}
		if p.Percentage <= 0 || p.Percentage > 100 {
			return nil, dErrors.New(dErrors.CodeValidation, "buyer percentage must be in (0, 100]")
		}
		buyers = append(buyers, service.BuyerInput{
			FullName:   p.FullName,
			NationalID: p.NationalID,
			Phone:      p.Phone,
			Email:      p.Email,
			Type:       ownerType,
			Pct:        p.Percentage,
		})
	}
	return buyers, nil
}

// checkBalance rejects unbalanced requests at the edge, before any I/O.
func checkBalance(sellers []service.SellerInput, buyers []service.BuyerInput) error {
	var sellerSum, buyerSum float64
	for _, s := range sellers {
		sellerSum += s.TransferPct
	}
	for _, b := range buyers {
		buyerSum += b.Pct
	}
	if math.Abs(sellerSum-buyerSum) > models.Tolerance {
		return dErrors.Newf(dErrors.CodeValidation,
			"transferred percentage %.4f does not match acquired percentage %.4f", sellerSum, buyerSum)
	}
	return nil
}

type validatePayload struct {
	UnitID     string `json:"unit_id"`
	TransferID *int64 `json:"transfer_id,omitempty"`
}

type validateRequest struct {
	unitID     id.UnitID
	transferID *id.TransferID
}

func decodeValidateRequest(r *http.Request) (validateRequest, error) {
	var payload validatePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		return validateRequest{}, dErrors.New(dErrors.CodeBadRequest, "invalid request body")
	}
	unitID, err := id.ParseUnitID(payload.UnitID)
	if err != nil {
		return validateRequest{}, err
	}
	req := validateRequest{unitID: unitID}
	if payload.TransferID != nil {
		transferID := id.TransferID(*payload.TransferID)
		req.transferID = &transferID
	}
	return req, nil
}

type heirPayload struct {
	FullName     string `json:"full_name"`
	NationalID   string `json:"national_id"`
	Phone        string `json:"phone,omitempty"`
	Email        string `json:"email,omitempty"`
	Relationship string `json:"relationship"`
}

type inheritancePayload struct {
	UnitID          string            `json:"unit_id"`
	DeceasedOwnerID string            `json:"deceased_owner_id"`
	Percentage      float64           `json:"percentage"`
	Heirs           []heirPayload     `json:"heirs"`
	TransferDate    string            `json:"transfer_date"`
	LegalReason     string            `json:"legal_reason"`
	Documents       []documentPayload `json:"documents,omitempty"`
}

func decodeInheritanceRequest(r *http.Request) (service.InheritanceRequest, error) {
	var payload inheritancePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		return service.InheritanceRequest{}, dErrors.New(dErrors.CodeBadRequest, "invalid request body")
	}

	unitID, err := id.ParseUnitID(payload.UnitID)
	if err != nil {
		return service.InheritanceRequest{}, err
	}
	deceasedID, err := id.ParseOwnerID(payload.DeceasedOwnerID)
	if err != nil {
		return service.InheritanceRequest{}, err
	}
	if payload.Percentage <= 0 || payload.Percentage > 100 {
		return service.InheritanceRequest{}, dErrors.New(dErrors.CodeValidation, "percentage must be in (0, 100]")
	}
	date, err := parseTransferDate(payload.TransferDate, requestcontext.Now(r.Context()))
	if err != nil {
		return service.InheritanceRequest{}, err
	}
	if payload.LegalReason == "" {
		return service.InheritanceRequest{}, dErrors.New(dErrors.CodeValidation, "legal reason is required")
	}
	if len(payload.Heirs) == 0 {
		return service.InheritanceRequest{}, dErrors.New(dErrors.CodeValidation, "at least one heir is required")
	}

	req := service.InheritanceRequest{
		UnitID:          unitID,
		DeceasedOwnerID: deceasedID,
		Percentage:      payload.Percentage,
		Date:            date,
		LegalReason:     payload.LegalReason,
	}
	for _, heir := range payload.Heirs {
		if heir.FullName == "" {
			return service.InheritanceRequest{}, dErrors.New(dErrors.CodeValidation, "heir full name is required")
		}
		if !models.ValidNationalID(heir.NationalID) {
			return service.InheritanceRequest{}, dErrors.New(dErrors.CodeValidation, "heir national id must match format 784-XXXX-XXXXXXX-X")
		}
		req.Heirs = append(req.Heirs, service.HeirInput{
			FullName:     heir.FullName,
			NationalID:   heir.NationalID,
			Phone:        heir.Phone,
			Email:        heir.Email,
			Relationship: shares.Relationship(heir.Relationship),
		})
	}
	for _, doc := range payload.Documents {
		if doc.Name == "" {
			return service.InheritanceRequest{}, dErrors.New(dErrors.CodeValidation, "documents require a name")
		}
		req.Documents = append(req.Documents, service.DocumentInput{
			Type:       doc.Type,
			Name:       doc.Name,
			Location:   doc.Location,
			UploadedBy: doc.UploadedBy,
		})
	}
	return req, nil
}

func decodePortfolioQuery(r *http.Request) (service.PortfolioQuery, error) {
	query := service.PortfolioQuery{Status: ledger.StatusAll}

	if status := r.URL.Query().Get("status"); status != "" {
		switch ledger.StatusFilter(status) {
		case ledger.StatusCurrent, ledger.StatusHistorical, ledger.StatusAll:
			query.Status = ledger.StatusFilter(status)
		default:
			return service.PortfolioQuery{}, dErrors.New(dErrors.CodeValidation, "status must be current, historical or all")
		}
	}

	parseDate := func(name string) (*time.Time, error) {
		value := r.URL.Query().Get(name)
		if value == "" {
			return nil, nil
		}
		date, err := time.Parse(dateLayout, value)
		if err != nil {
			return nil, dErrors.Newf(dErrors.CodeValidation, "%s must use YYYY-MM-DD", name)
		}
		return &date, nil
	}

	from, err := parseDate("from_date")
	if err != nil {
		return service.PortfolioQuery{}, err
	}
	to, err := parseDate("to_date")
	if err != nil {
		return service.PortfolioQuery{}, err
	}
	if from != nil && to != nil && to.Before(*from) {
		return service.PortfolioQuery{}, dErrors.New(dErrors.CodeValidation, "to_date must not precede from_date")
	}
	query.From = from
	query.To = to
	return query, nil
}
