// Package httputil carries the shared HTTP response helpers: one JSON
// writer and one error writer so every endpoint speaks the same envelope.
package httputil

import (
	"encoding/json"
	"log/slog"
	"net/http"

	dErrors "medledger/pkg/domain-errors"
)

const maxBodyBytes = 1 << 20 // 1 MiB

// errorResponse is the wire shape for failures. Reason is present only when
// a specific rule is known; internal failures omit the description so
// infrastructure detail never leaks.
type errorResponse struct {
	Error       string `json:"error"`
	Reason      string `json:"reason,omitempty"`
	Description string `json:"error_description,omitempty"`
}

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// WriteError maps a domain error to its HTTP status and envelope. Unknown
// error types are treated as internal.
func WriteError(w http.ResponseWriter, err error) {
	status := dErrors.ToHTTPStatus(dErrors.CodeOf(err))
	resp := errorResponse{Error: string(dErrors.CodeOf(err))}
	if reason := dErrors.ReasonOf(err); reason != dErrors.ReasonNone {
		resp.Reason = string(reason)
	}
	if status < http.StatusInternalServerError {
		resp.Description = dErrors.MessageOf(err)
	}
	WriteJSON(w, status, resp)
}

// Decode parses a JSON request body into T. On failure it writes the error
// response itself and returns false.
func Decode[T any](w http.ResponseWriter, r *http.Request, logger *slog.Logger) (*T, bool) {
	var req T
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		if logger != nil {
			logger.DebugContext(r.Context(), "request decode failed", "error", err)
		}
		WriteError(w, dErrors.New(dErrors.CodeBadRequest, "malformed request body"))
		return nil, false
	}
	return &req, true
}
