package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/nomis52/certwatch/campaign"
	"github.com/nomis52/certwatch/providers"
)

// maxSelectionBytes bounds the start request body.
const maxSelectionBytes = 1 << 20

// StartHandler launches a campaign. An empty body starts the default
// campaign; a JSON campaign.Selection restricts it.
type StartHandler struct {
	logger *slog.Logger
	source ProviderSource
}

// NewStartHandler creates a new StartHandler.
func NewStartHandler(logger *slog.Logger, source ProviderSource) *StartHandler {
	return &StartHandler{
		logger: logger,
		source: source,
	}
}

// ServeHTTP implements http.Handler.
func (h *StartHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	sel, err := decodeSelection(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid request body: " + err.Error()})
		return
	}

	result, err := h.source.Provider().Start(r.Context(), sel)
	if err != nil {
		writeError(w, h.logger, "failed to start test", err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func decodeSelection(r *http.Request) (*campaign.Selection, error) {
	if r.Body == nil {
		return nil, nil
	}
	var sel campaign.Selection
	dec := json.NewDecoder(io.LimitReader(r.Body, maxSelectionBytes))
	if err := dec.Decode(&sel); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, err
	}
	return &sel, nil
}

// StopHandler kills the campaign session. Stopping an idle campaign succeeds.
type StopHandler struct {
	logger *slog.Logger
	source ProviderSource
	now    func() time.Time
}

// NewStopHandler creates a new StopHandler.
func NewStopHandler(logger *slog.Logger, source ProviderSource) *StopHandler {
	return &StopHandler{
		logger: logger,
		source: source,
		now:    time.Now,
	}
}

// ServeHTTP implements http.Handler.
func (h *StopHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if err := h.source.Provider().Stop(r.Context()); err != nil {
		h.logger.Warn("stop reported an error", "error", err)
	}
	writeJSON(w, http.StatusOK, campaign.StartResult{
		Status:    providers.StatusStopped,
		Timestamp: h.now(),
	})
}

// CleanupResponse carries the output of the cleanup script.
type CleanupResponse struct {
	Status string `json:"status"`
	Output string `json:"output"`
}

// CleanupHandler runs the cluster cleanup script.
type CleanupHandler struct {
	logger *slog.Logger
	source ProviderSource
}

// NewCleanupHandler creates a new CleanupHandler.
func NewCleanupHandler(logger *slog.Logger, source ProviderSource) *CleanupHandler {
	return &CleanupHandler{
		logger: logger,
		source: source,
	}
}

// ServeHTTP implements http.Handler.
func (h *CleanupHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	output, err := h.source.Provider().Cleanup(r.Context())
	if err != nil {
		writeError(w, h.logger, "cleanup failed", err)
		return
	}
	writeJSON(w, http.StatusOK, CleanupResponse{
		Status: providers.StatusCleaned,
		Output: output,
	})
}
