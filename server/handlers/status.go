package handlers

import (
	"net/http"
)

// StatusHandler serves the live campaign status. It never fails: a host that
// cannot be reached reports an idle campaign.
type StatusHandler struct {
	source   ProviderSource
	observer StatusObserver
}

// NewStatusHandler creates a new StatusHandler. observer may be nil.
func NewStatusHandler(source ProviderSource, observer StatusObserver) *StatusHandler {
	return &StatusHandler{
		source:   source,
		observer: observer,
	}
}

// ServeHTTP implements http.Handler.
func (h *StatusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	status := h.source.Provider().Status(r.Context())
	if h.observer != nil {
		h.observer.Observe(status)
	}
	writeJSON(w, http.StatusOK, status)
}
