package web

// errors.go provides unified error response handling for the API.
//
// Every error is logged server-side with full detail and the request ID,
// then returned to the client as JSON with a stable machine-readable code.
// Sentinel errors from the ingest and preset packages map to specific HTTP
// statuses; anything unrecognized becomes a 500 with a generic message so
// internals never leak to clients.

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/dealdesk/dealdesk/internal/ingest"
	"github.com/dealdesk/dealdesk/internal/preset"
)

// ErrorResponse is the JSON structure for API error responses.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// respondError logs the technical error and writes the mapped JSON response.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	status, code, msg := mapError(err)

	slog.Error("request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"error", err.Error(),
		"code", code,
		"request_id", chimw.GetReqID(r.Context()),
	)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{Error: msg, Code: code})
}

// mapError translates an error into an HTTP status, a stable code, and a
// client-safe message.
func mapError(err error) (status int, code, msg string) {
	switch {
	case errors.Is(err, ingest.ErrEmptyInput):
		return http.StatusBadRequest, "EMPTY_FILE",
			"the uploaded file contains no data"
	case errors.Is(err, ingest.ErrNotConfirmed):
		return http.StatusConflict, "MAPPING_NOT_CONFIRMED",
			"confirm the column mapping before requesting records"
	case errors.Is(err, ingest.ErrSessionConfirmed):
		return http.StatusConflict, "MAPPING_ALREADY_CONFIRMED",
			"the column mapping is already confirmed and can no longer change"
	case errors.Is(err, preset.ErrNotFound):
		return http.StatusNotFound, "PRESET_NOT_FOUND",
			"no preset with that ID exists"
	case errors.Is(err, ErrTooManyIngestions):
		return http.StatusTooManyRequests, "TOO_MANY_INGESTIONS",
			err.Error()
	default:
		return http.StatusInternalServerError, "INTERNAL",
			"an internal error occurred"
	}
}

// writeError writes a JSON error response for request-shape problems the
// handler detects itself (missing file, malformed body).
func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{Error: message, Code: codeForStatus(status)})
}

func codeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "BAD_REQUEST"
	case http.StatusNotFound:
		return "NOT_FOUND"
	case http.StatusConflict:
		return "CONFLICT"
	case http.StatusUnprocessableEntity:
		return "UNPROCESSABLE"
	case http.StatusTooManyRequests:
		return "RATE_LIMITED"
	default:
		return "ERROR"
	}
}

// writeJSON encodes v as JSON and writes it to w.
// Logs encoding errors since headers are already sent.
func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode error", "error", err)
	}
}
