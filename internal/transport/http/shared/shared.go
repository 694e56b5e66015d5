// Package shared centralizes JSON envelope helpers so every handler returns
// the same error shape.
package shared

import (
	"encoding/json"
	"net/http"

	dErrors "carebridge/pkg/domain-errors"
)

// WriteError translates a coded domain error into the JSON error envelope.
// Uncoded errors render as internal without leaking details.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(dErrors.ToHTTPStatus(code))
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":   string(code),
		"message": dErrors.MessageOf(err),
	})
}

// WriteJSON writes a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// Validatable is implemented by request types that validate and normalize
// themselves after decoding.
type Validatable interface {
	Validate() error
}

// DecodeAndPrepare decodes the JSON body into T and runs its validation,
// writing the error envelope itself on failure. Callers bail out when ok is
// false.
func DecodeAndPrepare[T any, P interface {
	*T
	Validatable
}](w http.ResponseWriter, r *http.Request) (*T, bool) {
	var req T
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return nil, false
	}
	if err := P(&req).Validate(); err != nil {
		WriteError(w, err)
		return nil, false
	}
	return &req, true
}
