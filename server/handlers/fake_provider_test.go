package handlers

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/nomis52/certwatch/campaign"
	"github.com/nomis52/certwatch/catalog"
	"github.com/nomis52/certwatch/providers"
	"github.com/nomis52/certwatch/report"
)

// fakeProvider returns canned values. Each error field, when set, is returned
// by the matching method.
type fakeProvider struct {
	mu sync.Mutex

	status    campaign.Status
	latest    report.LatestResults
	runs      []report.Listing
	summaries map[string]report.Summary
	completed []report.CompletedUnit
	exports   map[string]string
	combined  string
	live      string
	cleanup   string
	catalogs  catalog.Catalogs

	latestErr   error
	runsErr     error
	exportErr   error
	combinedErr error
	startErr    error
	liveErr     error
	cleanupErr  error
	stopErr     error

	started     []*campaign.Selection
	stopped     int
	gotLimit    int
	gotCombined []string
}

var _ providers.Provider = (*fakeProvider)(nil)

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) Status(context.Context) campaign.Status { return f.status }

func (f *fakeProvider) LatestResults(context.Context) (report.LatestResults, error) {
	return f.latest, f.latestErr
}

func (f *fakeProvider) Runs(_ context.Context, limit int) ([]report.Listing, error) {
	f.gotLimit = limit
	return f.runs, f.runsErr
}

func (f *fakeProvider) RunSummary(_ context.Context, runID string) (report.Summary, error) {
	s, ok := f.summaries[runID]
	if !ok {
		return report.Summary{}, campaign.ErrNotFound
	}
	return s, nil
}

func (f *fakeProvider) CompletedUnits(context.Context) ([]report.CompletedUnit, error) {
	return f.completed, f.runsErr
}

func (f *fakeProvider) Export(_ context.Context, runID string) (string, error) {
	if f.exportErr != nil {
		return "", f.exportErr
	}
	text, ok := f.exports[runID]
	if !ok {
		return "", campaign.ErrNotFound
	}
	return text, nil
}

func (f *fakeProvider) CombinedExport(_ context.Context, runIDs []string) (string, error) {
	f.gotCombined = runIDs
	return f.combined, f.combinedErr
}

func (f *fakeProvider) Start(_ context.Context, sel *campaign.Selection) (campaign.StartResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return campaign.StartResult{}, f.startErr
	}
	f.started = append(f.started, sel)
	return campaign.StartResult{
		Status:    providers.StatusStarted,
		Timestamp: time.Date(2025, 11, 24, 12, 45, 32, 0, time.UTC),
	}, nil
}

func (f *fakeProvider) Stop(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped++
	return f.stopErr
}

func (f *fakeProvider) LiveOutput(context.Context) (string, error) { return f.live, f.liveErr }

func (f *fakeProvider) Cleanup(context.Context) (string, error) { return f.cleanup, f.cleanupErr }

func (f *fakeProvider) Catalogs(context.Context) catalog.Catalogs { return f.catalogs }

// staticSource always returns the same provider.
type staticSource struct {
	provider providers.Provider
}

func (s staticSource) Provider() providers.Provider { return s.provider }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
