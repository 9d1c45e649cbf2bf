package handlers

import (
	"log/slog"
	"net/http"
)

// LiveOutputResponse is the tail of the campaign terminal.
type LiveOutputResponse struct {
	Output string `json:"output"`
}

// LiveOutputHandler serves the last lines of the campaign session scrollback.
type LiveOutputHandler struct {
	logger *slog.Logger
	source ProviderSource
}

// NewLiveOutputHandler creates a new LiveOutputHandler.
func NewLiveOutputHandler(logger *slog.Logger, source ProviderSource) *LiveOutputHandler {
	return &LiveOutputHandler{
		logger: logger,
		source: source,
	}
}

// ServeHTTP implements http.Handler.
func (h *LiveOutputHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	output, err := h.source.Provider().LiveOutput(r.Context())
	if err != nil {
		writeError(w, h.logger, "failed to capture live output", err)
		return
	}
	writeJSON(w, http.StatusOK, LiveOutputResponse{Output: output})
}
