// Package demo implements providers.Provider without a campaign host.
//
// A campaign is modelled as a session record and a clock: the time elapsed
// since the session started selects the current unit and its stage. Terminal
// output and run logs are synthesised as text and fed through the same parsers
// the remote provider uses, so both providers produce the same shapes.
package demo

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/nomis52/certwatch/campaign"
	"github.com/nomis52/certwatch/catalog"
	"github.com/nomis52/certwatch/providers"
	"github.com/nomis52/certwatch/report"
)

const (
	DefaultUnitDuration = 45 * time.Second

	historyRuns     = 3
	historySpacing  = 24 * time.Hour
	liveOutputLines = 200
)

// DefaultUnits is the unit list a default demo campaign runs through.
var DefaultUnits = []string{
	"3scale-operator",
	"amq-streams",
	"ansible-automation-platform-operator",
	"cincinnati-operator",
	"cluster-logging",
	"compliance-operator",
	"devworkspace-operator",
	"file-integrity-operator",
	"gatekeeper-operator-product",
	"kiali-ossm",
	"local-storage-operator",
	"loki-operator",
	"mcg-operator",
	"metallb-operator",
	"netobserv-operator",
	"odf-operator",
	"openshift-gitops-operator",
	"openshift-pipelines-operator-rh",
	"rhods-operator",
	"serverless-operator",
	"servicemeshoperator",
	"web-terminal",
}

// Provider is the demo implementation of providers.Provider.
type Provider struct {
	now          func() time.Time
	unitDuration time.Duration
	units        []string
	catalogs     *catalog.Resolver
	logger       *slog.Logger

	mu      sync.Mutex
	current session
	history []session
}

// Option configures a Provider.
type Option func(*Provider)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(p *Provider) {
		p.now = now
	}
}

// WithUnitDuration sets how long each simulated unit takes.
func WithUnitDuration(d time.Duration) Option {
	return func(p *Provider) {
		p.unitDuration = d
	}
}

// WithUnits replaces DefaultUnits.
func WithUnits(units []string) Option {
	return func(p *Provider) {
		p.units = units
	}
}

// WithCatalogs sets the resolver Catalogs and custom starts use. It must not
// be given a runner: the demo never touches a cluster.
func WithCatalogs(r *catalog.Resolver) Option {
	return func(p *Provider) {
		p.catalogs = r
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Provider) {
		p.logger = logger
	}
}

// New creates a demo Provider with historyRuns completed runs, the newest of
// which finished a day before the clock's current time.
func New(opts ...Option) *Provider {
	p := &Provider{
		now:          time.Now,
		unitDuration: DefaultUnitDuration,
		units:        DefaultUnits,
		catalogs:     catalog.NewResolver(),
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.unitDuration <= 0 {
		p.unitDuration = DefaultUnitDuration
	}
	if len(p.units) == 0 {
		p.units = DefaultUnits
	}

	now := p.now().UTC().Truncate(time.Second)
	for k := 0; k < historyRuns; k++ {
		units := p.units[:len(p.units)-min(len(p.units)-1, 4*k)]
		start := now.Add(-time.Duration(k+1) * historySpacing)
		p.history = append(p.history, session{
			startedAt: start,
			stoppedAt: start.Add(time.Duration(len(units)) * p.unitDuration),
			runID:     runID(start),
			units:     units,
		})
	}
	return p
}

func (p *Provider) Name() string {
	return "demo"
}

// snapshot returns the session record and the runs newest first. The current
// session is included once it has been started.
func (p *Provider) snapshot() (session, []session) {
	p.mu.Lock()
	defer p.mu.Unlock()
	runs := make([]session, 0, len(p.history)+1)
	if !p.current.startedAt.IsZero() {
		runs = append(runs, p.current)
	}
	runs = append(runs, p.history...)
	return p.current, runs
}

func (p *Provider) Status(_ context.Context) campaign.Status {
	now := p.now()
	cur, _ := p.snapshot()
	status := campaign.IdleStatus(now)
	if !cur.active(now, p.unitDuration) {
		return status
	}

	lines := cur.scrollback(now, p.unitDuration)
	status.Active = true
	status.CurrentUnit = campaign.CurrentUnit(lines)
	status.Phase = campaign.Classify(lines, true)
	status.RunID = cur.runID
	status.StartedAt = report.StartedAt(report.ParseRunID(cur.runID))

	unit, _ := cur.position(now, p.unitDuration)
	manifest := strings.Join(cur.units, "\n") + "\n"
	return status.WithProgress(campaign.ComputeProgress(manifest, unit+1))
}

func (p *Provider) LatestResults(_ context.Context) (report.LatestResults, error) {
	now := p.now()
	_, runs := p.snapshot()
	if len(runs) == 0 {
		return report.LatestResults{}, campaign.ErrNoRuns
	}
	latest := runs[0]
	return report.CountResults(latest.runID, latest.runID+"/"+logName(latest), latest.log(now, p.unitDuration)), nil
}

func (p *Provider) Runs(_ context.Context, limit int) ([]report.Listing, error) {
	now := p.now()
	_, runs := p.snapshot()
	listings := make([]report.Listing, 0, min(limit, len(runs)))
	for _, r := range runs[:min(limit, len(runs))] {
		listings = append(listings, r.summary(now, p.unitDuration).Listing())
	}
	return listings, nil
}

func (p *Provider) RunSummary(_ context.Context, id string) (report.Summary, error) {
	r, err := p.find(id)
	if err != nil {
		return report.Summary{}, err
	}
	return r.summary(p.now(), p.unitDuration), nil
}

func (p *Provider) CompletedUnits(_ context.Context) ([]report.CompletedUnit, error) {
	now := p.now()
	_, runs := p.snapshot()
	if len(runs) == 0 {
		return nil, campaign.ErrNoRuns
	}
	return report.CompletedUnits(runs[0].summary(now, p.unitDuration)), nil
}

func (p *Provider) Export(_ context.Context, id string) (string, error) {
	now := p.now()
	var r session
	if id == "" {
		_, runs := p.snapshot()
		if len(runs) == 0 {
			return "", campaign.ErrNoRuns
		}
		r = runs[0]
	} else {
		found, err := p.find(id)
		if err != nil {
			return "", err
		}
		r = found
	}
	export := r.export(now, p.unitDuration)
	if export == "" {
		return "", fmt.Errorf("no export in %s: %w", r.runID, campaign.ErrNotFound)
	}
	return export, nil
}

func (p *Provider) CombinedExport(ctx context.Context, ids []string) (string, error) {
	if len(ids) == 0 {
		ids = []string{""}
	}
	tables := make([]report.Table, 0, len(ids))
	for _, id := range ids {
		text, err := p.Export(ctx, id)
		tables = append(tables, report.Table{RunID: id, Text: text, Found: err == nil})
	}
	return report.Combine(tables)
}

// Start swaps in a new session record. A session that was already started moves
// into the history.
func (p *Provider) Start(_ context.Context, sel *campaign.Selection) (campaign.StartResult, error) {
	now := p.now()
	start := now.UTC().Truncate(time.Second)

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current.active(now, p.unitDuration) {
		p.logger.Warn("test start rejected", "reason", campaign.ErrAlreadyRunning)
		return campaign.StartResult{}, campaign.ErrAlreadyRunning
	}

	units := p.units
	if sel != nil {
		normalized, err := sel.Normalize()
		if err != nil {
			return campaign.StartResult{}, err
		}
		units = nil
		for _, c := range normalized.Catalogs {
			units = append(units, c.Units...)
		}
	}
	if !p.current.startedAt.IsZero() {
		p.history = append([]session{p.current.frozen(p.unitDuration)}, p.history...)
	}
	p.current = session{
		running:   true,
		startedAt: start,
		runID:     runID(start),
		units:     units,
	}
	p.logger.Info("test started", "run_id", p.current.runID, "units", len(units))
	return campaign.StartResult{Status: providers.StatusStarted, Timestamp: now}, nil
}

// Stop freezes the session at the current time.
func (p *Provider) Stop(_ context.Context) error {
	now := p.now()
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current.running {
		p.current = p.current.stop(now)
		p.logger.Info("test stopped", "run_id", p.current.runID)
	}
	return nil
}

func (p *Provider) LiveOutput(_ context.Context) (string, error) {
	now := p.now()
	cur, _ := p.snapshot()
	if !cur.active(now, p.unitDuration) {
		return "", nil
	}
	lines := campaign.SplitLines(cur.log(now, p.unitDuration))
	lines = append(lines, cur.scrollback(now, p.unitDuration)...)
	if len(lines) > liveOutputLines {
		lines = lines[len(lines)-liveOutputLines:]
	}
	return strings.Join(lines, "\n"), nil
}

func (p *Provider) Cleanup(_ context.Context) (string, error) {
	p.logger.Info("cleanup requested")
	var b strings.Builder
	for _, unit := range p.units {
		fmt.Fprintf(&b, "namespace \"test-%s\" deleted\n", unit)
	}
	b.WriteString("cleanup complete\n")
	p.logger.Info("cleanup completed")
	return b.String(), nil
}

func (p *Provider) Catalogs(ctx context.Context) catalog.Catalogs {
	return p.catalogs.Resolve(ctx)
}

func (p *Provider) find(id string) (session, error) {
	_, runs := p.snapshot()
	for _, r := range runs {
		if r.runID == id {
			return r, nil
		}
	}
	return session{}, fmt.Errorf("run %q: %w", id, campaign.ErrNotFound)
}

func runID(t time.Time) string {
	t = t.UTC()
	return report.FormatRunID(t.Format("2006-01-02"), t.Format("15:04:05"), t.Format("MST"))
}

func logName(s session) string {
	return "output_" + s.startedAt.UTC().Format("20060102_150405") + ".log"
}

var _ providers.Provider = (*Provider)(nil)
