package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/nomis52/certwatch/campaign"
	"github.com/nomis52/certwatch/report"
)

// ReportsHandler lists the newest runs with their counts. The limit query
// parameter is clamped to [1, 50] and defaults to 10.
type ReportsHandler struct {
	logger *slog.Logger
	source ProviderSource
}

// NewReportsHandler creates a new ReportsHandler.
func NewReportsHandler(logger *slog.Logger, source ProviderSource) *ReportsHandler {
	return &ReportsHandler{
		logger: logger,
		source: source,
	}
}

// ServeHTTP implements http.Handler.
func (h *ReportsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	limit := report.ClampLimit(r.URL.Query().Get("limit"))
	runs, err := h.source.Provider().Runs(r.Context(), limit)
	if errors.Is(err, campaign.ErrNoRuns) {
		runs, err = []report.Listing{}, nil
	}
	if err != nil {
		writeError(w, h.logger, "failed to list runs", err)
		return
	}
	if runs == nil {
		runs = []report.Listing{}
	}
	writeJSON(w, http.StatusOK, runs)
}

// ReportHandler serves the summary of one run, named by the run_id path value.
type ReportHandler struct {
	logger *slog.Logger
	source ProviderSource
}

// NewReportHandler creates a new ReportHandler.
func NewReportHandler(logger *slog.Logger, source ProviderSource) *ReportHandler {
	return &ReportHandler{
		logger: logger,
		source: source,
	}
}

// ServeHTTP implements http.Handler.
func (h *ReportHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	runID := r.PathValue("run_id")
	summary, err := h.source.Provider().RunSummary(r.Context(), runID)
	if err != nil {
		writeError(w, h.logger, "failed to summarise run", err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}
