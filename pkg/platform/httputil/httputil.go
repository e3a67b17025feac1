// Package httputil maps domain errors onto HTTP responses so handlers stay
// free of status-code tables.
package httputil

import (
	"encoding/json"
	"net/http"

	dErrors "titleledger/pkg/domain-errors"
)

type errorBody struct {
	Error       string `json:"error"`
	Description string `json:"error_description,omitempty"`
}

var statusByCode = map[dErrors.Code]int{
	dErrors.CodeNotFound:   http.StatusNotFound,
	dErrors.CodeConflict:   http.StatusConflict,
	dErrors.CodeBadRequest: http.StatusBadRequest,
	dErrors.CodeValidation: http.StatusBadRequest,
	dErrors.CodeTimeout:    http.StatusGatewayTimeout,
	dErrors.CodeInternal:   http.StatusInternalServerError,
}

// WriteError renders a domain error as JSON. Internal errors omit the
// description so storage-layer detail never reaches callers.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	status, ok := statusByCode[code]
	if !ok {
		status = http.StatusInternalServerError
		code = dErrors.CodeInternal
	}

	body := errorBody{Error: string(code)}
	if code != dErrors.CodeInternal {
		body.Description = dErrors.MessageOf(err)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// WriteJSON renders v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
