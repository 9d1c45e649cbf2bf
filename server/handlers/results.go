package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/nomis52/certwatch/campaign"
	"github.com/nomis52/certwatch/report"
)

// NoRunsResponse is returned by /api/results/latest before any run exists.
type NoRunsResponse struct {
	NoRuns bool   `json:"no_runs"`
	Error  string `json:"error"`
}

const noRunsMessage = "No test reports found"

// LatestResultsHandler serves the banner based counts of the newest run.
type LatestResultsHandler struct {
	logger *slog.Logger
	source ProviderSource
}

// NewLatestResultsHandler creates a new LatestResultsHandler.
func NewLatestResultsHandler(logger *slog.Logger, source ProviderSource) *LatestResultsHandler {
	return &LatestResultsHandler{
		logger: logger,
		source: source,
	}
}

// ServeHTTP implements http.Handler.
func (h *LatestResultsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	results, err := h.source.Provider().LatestResults(r.Context())
	if errors.Is(err, campaign.ErrNoRuns) {
		writeJSON(w, http.StatusOK, NoRunsResponse{NoRuns: true, Error: noRunsMessage})
		return
	}
	if err != nil {
		writeError(w, h.logger, "failed to read latest results", err)
		return
	}
	writeJSON(w, http.StatusOK, results)
}

// CompletedHandler lists the units of the newest run with their outcome,
// failures first.
type CompletedHandler struct {
	logger *slog.Logger
	source ProviderSource
}

// NewCompletedHandler creates a new CompletedHandler.
func NewCompletedHandler(logger *slog.Logger, source ProviderSource) *CompletedHandler {
	return &CompletedHandler{
		logger: logger,
		source: source,
	}
}

// ServeHTTP implements http.Handler.
func (h *CompletedHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	units, err := h.source.Provider().CompletedUnits(r.Context())
	if errors.Is(err, campaign.ErrNoRuns) {
		units, err = []report.CompletedUnit{}, nil
	}
	if err != nil {
		writeError(w, h.logger, "failed to list completed operators", err)
		return
	}
	if units == nil {
		units = []report.CompletedUnit{}
	}
	writeJSON(w, http.StatusOK, units)
}
