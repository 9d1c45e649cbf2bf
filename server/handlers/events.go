package handlers

import (
	"net/http"
	"strconv"

	"github.com/nomis52/certwatch/logging"
)

const (
	// DefaultEventComponent holds controller actions and progress lines.
	DefaultEventComponent = "controller"

	defaultEventLimit = 100
)

// EventsResponse is the captured event feed of one component.
type EventsResponse struct {
	Component  string             `json:"component"`
	Components []string           `json:"components"`
	Events     []logging.LogEntry `json:"events"`
}

// EventsHandler serves captured log entries, oldest first. Query parameters:
// component (default "controller") and limit (default 100, 0 for all).
type EventsHandler struct {
	events EventSource
}

// NewEventsHandler creates a new EventsHandler.
func NewEventsHandler(events EventSource) *EventsHandler {
	return &EventsHandler{events: events}
}

// ServeHTTP implements http.Handler.
func (h *EventsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	component := q.Get("component")
	if component == "" {
		component = DefaultEventComponent
	}
	limit := defaultEventLimit
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid limit " + strconv.Quote(raw)})
			return
		}
		limit = n
	}

	events := h.events.Recent(component, limit)
	if events == nil {
		events = []logging.LogEntry{}
	}
	writeJSON(w, http.StatusOK, EventsResponse{
		Component:  component,
		Components: h.events.Components(),
		Events:     events,
	})
}
