// Package httpx writes the JSON response envelope shared by every API route.
package httpx

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"marketing-dashboard/backend/internal/platform/apperr"
)

// maxBodyBytes bounds request bodies decoded by DecodeJSON.
const maxBodyBytes = 1 << 20

// Envelope is the body of every API response.
type Envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// WriteJSON encodes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// OK writes a 200 success envelope around data.
func OK(w http.ResponseWriter, data any) {
	WriteJSON(w, http.StatusOK, Envelope{Success: true, Data: data})
}

// Fail writes an error envelope with the status and client-safe message derived from err's kind.
// Returns the status written.
func Fail(w http.ResponseWriter, err error) int {
	status := apperr.HTTPStatus(apperr.KindOf(err))
	WriteJSON(w, status, Envelope{Success: false, Error: apperr.PublicMessage(err)})
	return status
}

// DecodeJSON decodes the request body into v, rejecting unknown fields and oversized bodies.
// Failures are Invalid errors.
func DecodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return apperr.E(apperr.Invalid, "httpx.DecodeJSON", "request body is empty", err)
		}
		return apperr.E(apperr.Invalid, "httpx.DecodeJSON", "request body is not valid JSON", err)
	}
	return nil
}
