package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/ConvoSphere/convosphere/internal/domain"
)

// readJSON decodes a JSON request body with a size limit.
func readJSON[T any](w http.ResponseWriter, r *http.Request, bodyLimit int64) (T, bool) {
	var v T
	if bodyLimit > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, bodyLimit)
	}
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
		if err.Error() == "http: request body too large" {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
		} else {
			writeError(w, http.StatusBadRequest, "invalid request body")
		}
		return v, false
	}
	return v, true
}

// writeJSON writes a JSON response with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("write json response", "error", err)
	}
}

// writeError writes a JSON error envelope.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeTypedError maps the pipeline error taxonomy onto HTTP statuses.
func writeTypedError(w http.ResponseWriter, err error) {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":      "invalid request",
			"violations": verr.Violations,
		})
	case errors.Is(err, domain.ErrProviderNotConfigured),
		errors.Is(err, domain.ErrModelNotSupported):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrBudgetExceeded):
		writeError(w, http.StatusPaymentRequired, err.Error())
	case errors.Is(err, domain.ErrProviderAuth):
		writeError(w, http.StatusBadGateway, err.Error())
	case errors.Is(err, domain.ErrProviderRateLimited):
		writeError(w, http.StatusTooManyRequests, err.Error())
	case errors.Is(err, domain.ErrProviderUnavailable):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, domain.ErrProviderProtocol):
		writeError(w, http.StatusBadGateway, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
