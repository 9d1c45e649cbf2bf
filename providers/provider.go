// Package providers defines the capability a campaign view is served from.
//
// Two implementations exist: providers/remote reads evidence from the campaign
// host, providers/demo synthesises it from a clock. The server picks one at
// startup and never branches on the mode again.
package providers

import (
	"context"

	"github.com/nomis52/certwatch/campaign"
	"github.com/nomis52/certwatch/catalog"
	"github.com/nomis52/certwatch/report"
)

// Provider is everything the query surface needs from a campaign backend.
type Provider interface {
	// Name identifies the implementation in logs and responses.
	Name() string

	// Status never fails; missing evidence degrades individual fields.
	Status(ctx context.Context) campaign.Status
	// LatestResults returns campaign.ErrNoRuns when no run exists.
	LatestResults(ctx context.Context) (report.LatestResults, error)
	// Runs lists at most limit runs, newest first.
	Runs(ctx context.Context, limit int) ([]report.Listing, error)
	// RunSummary returns campaign.ErrNotFound for an unknown run.
	RunSummary(ctx context.Context, runID string) (report.Summary, error)
	CompletedUnits(ctx context.Context) ([]report.CompletedUnit, error)
	// Export returns the tabular export of a run, or of the latest run when
	// runID is empty.
	Export(ctx context.Context, runID string) (string, error)
	// CombinedExport merges the exports of runIDs, or of the latest run when
	// runIDs is empty.
	CombinedExport(ctx context.Context, runIDs []string) (string, error)

	// Start launches a campaign, restricted to sel when it is not nil.
	Start(ctx context.Context, sel *campaign.Selection) (campaign.StartResult, error)
	// Stop is idempotent.
	Stop(ctx context.Context) error
	LiveOutput(ctx context.Context) (string, error)
	Cleanup(ctx context.Context) (string, error)
	Catalogs(ctx context.Context) catalog.Catalogs
}

const (
	StatusStarted = "Test started"
	StatusStopped = "Test stopped"
	StatusCleaned = "Cleanup complete"
)
