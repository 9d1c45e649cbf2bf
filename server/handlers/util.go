package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/nomis52/certwatch/campaign"
)

// ErrorResponse is returned when an error occurs.
type ErrorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode JSON response", "error", err)
	}
}

// statusFor maps campaign errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, campaign.ErrNotFound), errors.Is(err, campaign.ErrNoRuns):
		return http.StatusNotFound
	case errors.Is(err, campaign.ErrAlreadyRunning), errors.Is(err, campaign.ErrNoUnitsSpecified):
		return http.StatusBadRequest
	case errors.Is(err, campaign.ErrEvidenceUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeError logs server side failures and writes err as an ErrorResponse.
// Client errors carry the sentinel text, so callers see e.g. "test already running".
func writeError(w http.ResponseWriter, logger *slog.Logger, msg string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		logger.Error(msg, "error", err)
	} else {
		logger.Debug(msg, "error", err)
	}
	writeJSON(w, status, ErrorResponse{Error: errorText(err)})
}

func errorText(err error) string {
	for _, sentinel := range []error{
		campaign.ErrNoRuns,
		campaign.ErrAlreadyRunning,
		campaign.ErrNoUnitsSpecified,
	} {
		if errors.Is(err, sentinel) {
			return sentinel.Error()
		}
	}
	return err.Error()
}

func writeCSV(w http.ResponseWriter, filename, body string) {
	w.Header().Set("Content-Type", "text/csv")
	if filename != "" {
		w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	}
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(body)); err != nil {
		slog.Error("failed to write CSV response", "error", err)
	}
}
