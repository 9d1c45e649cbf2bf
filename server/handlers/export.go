package handlers

import (
	"log/slog"
	"net/http"
	"strings"
)

// ExportHandler serves the tabular export of one run, or of the newest run when
// run_id is not given.
type ExportHandler struct {
	logger *slog.Logger
	source ProviderSource
}

// NewExportHandler creates a new ExportHandler.
func NewExportHandler(logger *slog.Logger, source ProviderSource) *ExportHandler {
	return &ExportHandler{
		logger: logger,
		source: source,
	}
}

// ServeHTTP implements http.Handler.
func (h *ExportHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	runID := strings.TrimSpace(r.URL.Query().Get("run_id"))
	text, err := h.source.Provider().Export(r.Context(), runID)
	if err != nil {
		writeError(w, h.logger, "failed to export run", err)
		return
	}
	name := "latest.csv"
	if runID != "" {
		name = runID + ".csv"
	}
	writeCSV(w, name, text)
}

// CombinedExportHandler merges the exports of the comma separated run_ids.
// Unknown runs are skipped; 404 only when none contribute.
type CombinedExportHandler struct {
	logger *slog.Logger
	source ProviderSource
}

// NewCombinedExportHandler creates a new CombinedExportHandler.
func NewCombinedExportHandler(logger *slog.Logger, source ProviderSource) *CombinedExportHandler {
	return &CombinedExportHandler{
		logger: logger,
		source: source,
	}
}

// ServeHTTP implements http.Handler.
func (h *CombinedExportHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	runIDs := splitList(r.URL.Query().Get("run_ids"))
	text, err := h.source.Provider().CombinedExport(r.Context(), runIDs)
	if err != nil {
		writeError(w, h.logger, "failed to combine exports", err)
		return
	}
	writeCSV(w, "combined.csv", text)
}

func splitList(raw string) []string {
	var out []string
	for _, s := range strings.Split(raw, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
