// Package handlers provides HTTP handlers for the certwatch server.
//
// Each handler is in its own file and implements http.Handler.
// Handlers use interfaces to access server dependencies, avoiding
// circular imports.
package handlers

import (
	"github.com/nomis52/certwatch/campaign"
	"github.com/nomis52/certwatch/config"
	"github.com/nomis52/certwatch/logging"
	"github.com/nomis52/certwatch/providers"
)

// ConfigProvider provides access to the current configuration.
type ConfigProvider interface {
	Config() *config.Config
}

// Reloader can reload its configuration.
type Reloader interface {
	Reload() error
}

// ProviderSource returns the campaign provider for the current configuration.
// The provider may change between requests after a reload.
type ProviderSource interface {
	Provider() providers.Provider
}

// StatusObserver is told about every status snapshot served.
type StatusObserver interface {
	Observe(campaign.Status)
}

// EventSource provides captured log entries.
type EventSource interface {
	Recent(component string, n int) []logging.LogEntry
	Components() []string
}
