// Package remote implements providers.Provider by running shell commands on the
// campaign host and parsing what they print.
//
// Every request is a sequential chain of fetches. A fetch that fails degrades the
// fields that depend on it; the next poll is the retry.
package remote

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/nomis52/certwatch/campaign"
	"github.com/nomis52/certwatch/catalog"
	"github.com/nomis52/certwatch/clients/sshclient"
	"github.com/nomis52/certwatch/providers"
	"github.com/nomis52/certwatch/report"
)

const (
	ManifestName  = "operator-list.txt"
	LogPattern    = "output_*.log"
	ExportPattern = "*.csv"

	scrollbackLines = 100
	liveOutputLines = 200

	// missingRunExit is the status the artifact listing exits with when the
	// run directory does not exist.
	missingRunExit = 3
)

// Config holds the remote layout and the commands a campaign is driven with.
type Config struct {
	Session          string
	BaseDir          string
	ReportDir        string
	Script           string
	CustomRunner     string
	CustomScriptPath string
	CleanupCommand   string
	Kubeconfig       string
	CommandTimeout   time.Duration
	BulkTimeout      time.Duration
}

// FailureCounter is notified of every failed fetch.
type FailureCounter interface {
	EvidenceFailure(kind string)
}

type nopCounter struct{}

func (nopCounter) EvidenceFailure(string) {}

// Provider reads campaign evidence through a sshclient.Runner.
type Provider struct {
	runner   sshclient.Runner
	cfg      Config
	catalogs *catalog.Resolver
	failures FailureCounter
	logger   *slog.Logger
	now      func() time.Time
}

// Option configures a Provider.
type Option func(*Provider)

// WithLogger sets the logger. Controller actions and progress lines are logged
// through it.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Provider) {
		p.logger = logger
	}
}

// WithFailureCounter reports failed fetches, by kind.
func WithFailureCounter(c FailureCounter) Option {
	return func(p *Provider) {
		p.failures = c
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(p *Provider) {
		p.now = now
	}
}

// New creates a Provider.
func New(runner sshclient.Runner, cfg Config, catalogs *catalog.Resolver, opts ...Option) *Provider {
	p := &Provider{
		runner:   runner,
		cfg:      cfg,
		catalogs: catalogs,
		failures: nopCounter{},
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Provider) Name() string {
	return "remote"
}

// Status reports the live campaign. Progress fields are only populated while a
// session exists.
func (p *Provider) Status(ctx context.Context) campaign.Status {
	status := campaign.IdleStatus(p.now())

	active, err := p.hasSession(ctx)
	if err != nil || !active {
		return status
	}
	status.Active = true

	lines := []string{}
	if out, err := p.fetch(ctx, p.captureCommand(fmt.Sprintf("-%d", scrollbackLines)), p.cfg.CommandTimeout); err == nil {
		lines = campaign.SplitLines(strings.TrimRight(out, " \t\r\n"))
	}
	status.CurrentUnit = campaign.CurrentUnit(lines)
	status.Phase = campaign.Classify(lines, true)

	runID, err := p.latestRunID(ctx)
	if err != nil {
		return status
	}
	status.RunID = runID
	status.StartedAt = report.StartedAt(report.ParseRunID(runID))

	dir := p.runDir(runID)
	manifest, _ := p.fetch(ctx, "cat "+campaign.ShellQuote(path.Join(dir, ManifestName))+" 2>/dev/null || true", p.cfg.CommandTimeout)
	dirCount := 0
	if out, err := p.fetch(ctx, "find "+campaign.ShellQuote(dir)+" -maxdepth 1 -type d | wc -l", p.cfg.CommandTimeout); err == nil {
		dirCount = campaign.ParseCount(out)
	}
	status = status.WithProgress(campaign.ComputeProgress(manifest, dirCount))

	if status.CurrentUnit != "" {
		p.logger.Info("test running",
			"unit", status.CurrentUnit,
			"phase", status.Phase.String(),
			"completed", status.Completed,
			"total", status.Total,
			"run_id", runID)
	}
	return status
}

func (p *Provider) LatestResults(ctx context.Context) (report.LatestResults, error) {
	runID, err := p.latestRunID(ctx)
	if err != nil {
		return report.LatestResults{}, err
	}
	arts, err := p.artifacts(ctx, runID)
	if err != nil {
		return report.LatestResults{}, err
	}
	if arts.log == "" {
		return report.LatestResults{}, fmt.Errorf("no log file in %s: %w", runID, campaign.ErrNotFound)
	}
	logRef := path.Join(p.runDir(runID), arts.log)
	log, err := p.fetch(ctx, "cat "+campaign.ShellQuote(logRef), p.cfg.BulkTimeout)
	if err != nil {
		return report.LatestResults{}, err
	}

	results := report.CountResults(runID, logRef, log)
	if results.Total > 0 {
		p.logger.Debug("latest results",
			"run_id", runID,
			"succeeded", results.Succeeded,
			"total", results.Total,
			"failed", results.Failed,
			"success_rate", results.SuccessRate)
	}
	return results, nil
}

// Runs summarises the newest runs. A run whose artifacts cannot be read is
// listed with zero counts.
func (p *Provider) Runs(ctx context.Context, limit int) ([]report.Listing, error) {
	ids, err := p.runIDs(ctx, limit)
	if err != nil {
		return nil, err
	}
	listings := make([]report.Listing, 0, len(ids))
	for _, id := range ids {
		summary, err := p.RunSummary(ctx, id)
		if err != nil {
			p.logger.Debug("run summary unavailable", "run_id", id, "error", err)
			listings = append(listings, report.Listing{RunID: id})
			continue
		}
		listings = append(listings, summary.Listing())
	}
	return listings, nil
}

func (p *Provider) RunSummary(ctx context.Context, runID string) (report.Summary, error) {
	if !report.ValidRunID(runID) {
		return report.Summary{}, fmt.Errorf("run %q: %w", runID, campaign.ErrNotFound)
	}
	arts, err := p.artifacts(ctx, runID)
	if err != nil {
		return report.Summary{}, err
	}
	log := ""
	if arts.log != "" {
		// a missing log leaves every tested unit as other
		log, _ = p.fetch(ctx, "cat "+campaign.ShellQuote(path.Join(p.runDir(runID), arts.log)), p.cfg.BulkTimeout)
	}
	return report.ParseSummary(runID, arts.units, log), nil
}

func (p *Provider) CompletedUnits(ctx context.Context) ([]report.CompletedUnit, error) {
	runID, err := p.latestRunID(ctx)
	if err != nil {
		return nil, err
	}
	summary, err := p.RunSummary(ctx, runID)
	if err != nil {
		return nil, err
	}
	return report.CompletedUnits(summary), nil
}

func (p *Provider) Export(ctx context.Context, runID string) (string, error) {
	if runID == "" {
		id, err := p.latestRunID(ctx)
		if err != nil {
			return "", err
		}
		runID = id
	}
	if !report.ValidRunID(runID) {
		return "", fmt.Errorf("run %q: %w", runID, campaign.ErrNotFound)
	}
	arts, err := p.artifacts(ctx, runID)
	if err != nil {
		return "", err
	}
	if arts.export == "" {
		return "", fmt.Errorf("no export in %s: %w", runID, campaign.ErrNotFound)
	}
	return p.fetch(ctx, "cat "+campaign.ShellQuote(path.Join(p.runDir(runID), arts.export)), p.cfg.BulkTimeout)
}

// CombinedExport fetches each export in order and merges them. Runs that cannot
// be fetched are skipped.
func (p *Provider) CombinedExport(ctx context.Context, runIDs []string) (string, error) {
	if len(runIDs) == 0 {
		id, err := p.latestRunID(ctx)
		if err != nil {
			return "", err
		}
		runIDs = []string{id}
	}
	tables := make([]report.Table, 0, len(runIDs))
	for _, id := range runIDs {
		text, err := p.Export(ctx, id)
		if err != nil {
			p.logger.Debug("export skipped", "run_id", id, "error", err)
		}
		tables = append(tables, report.Table{RunID: id, Text: text, Found: err == nil})
	}
	return report.Combine(tables)
}

// Start launches the default script, or a synthesised script restricted to sel.
func (p *Provider) Start(ctx context.Context, sel *campaign.Selection) (campaign.StartResult, error) {
	p.logger.Info("test start requested", "selection", selectionString(sel))

	active, err := p.hasSession(ctx)
	if err != nil {
		return campaign.StartResult{}, err
	}
	if active {
		p.logger.Warn("test start rejected", "reason", campaign.ErrAlreadyRunning)
		return campaign.StartResult{}, campaign.ErrAlreadyRunning
	}

	command := p.defaultCommand()
	if sel != nil {
		command, err = p.uploadCustomScript(ctx, *sel)
		if err != nil {
			return campaign.StartResult{}, err
		}
	}

	launch := "tmux new-session -d -s " + campaign.ShellQuote(p.cfg.Session) + " " + campaign.ShellQuote(command)
	if _, err := p.fetch(ctx, launch, p.cfg.CommandTimeout); err != nil {
		return campaign.StartResult{}, fmt.Errorf("launching session: %w", err)
	}
	p.logger.Info("test started", "session", p.cfg.Session)
	return campaign.StartResult{Status: providers.StatusStarted, Timestamp: p.now()}, nil
}

// Stop kills the session. A missing session is not an error.
func (p *Provider) Stop(ctx context.Context) error {
	p.logger.Info("test stop requested")
	if _, err := p.fetch(ctx, "tmux kill-session -t "+campaign.ShellQuote(p.cfg.Session)+" 2>/dev/null || true", p.cfg.CommandTimeout); err != nil {
		p.logger.Warn("test stop failed", "error", err)
		return nil
	}
	p.logger.Info("test stopped")
	return nil
}

func (p *Provider) LiveOutput(ctx context.Context) (string, error) {
	out, err := p.fetch(ctx, p.captureCommand("")+fmt.Sprintf(" | tail -%d", liveOutputLines), p.cfg.CommandTimeout)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// Cleanup runs the cluster cleanup command and returns what it printed. A
// non-zero exit still returns the output.
func (p *Provider) Cleanup(ctx context.Context) (string, error) {
	p.logger.Info("cleanup requested")
	out, err := p.fetch(ctx, p.cfg.CleanupCommand, p.cfg.BulkTimeout)
	var exitErr *sshclient.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		p.logger.Error("cleanup failed", "error", err)
		return "", err
	}
	p.logger.Info("cleanup completed")
	return out, nil
}

func (p *Provider) Catalogs(ctx context.Context) catalog.Catalogs {
	return p.catalogs.Resolve(ctx)
}

func (p *Provider) hasSession(ctx context.Context) (bool, error) {
	out, err := p.fetch(ctx, "tmux has-session -t "+campaign.ShellQuote(p.cfg.Session)+` 2>/dev/null && echo "true" || echo "false"`, p.cfg.CommandTimeout)
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(out) == "true", nil
}

// captureCommand prints the session scrollback from start ("" for all of it).
func (p *Provider) captureCommand(start string) string {
	if start == "" {
		start = "-"
	}
	return "tmux capture-pane -t " + campaign.ShellQuote(p.cfg.Session) + " -p -S " + start + " 2>/dev/null"
}

func (p *Provider) runIDs(ctx context.Context, limit int) ([]string, error) {
	cmd := fmt.Sprintf("ls -td %s/%s* 2>/dev/null | head -n %d", campaign.ShellQuote(p.cfg.ReportDir), report.RunPrefix, limit)
	out, err := p.fetch(ctx, cmd, p.cfg.CommandTimeout)
	if err != nil {
		return nil, err
	}
	return report.ParseListing(out), nil
}

func (p *Provider) latestRunID(ctx context.Context) (string, error) {
	ids, err := p.runIDs(ctx, 1)
	if err != nil {
		return "", err
	}
	if len(ids) == 0 {
		return "", campaign.ErrNoRuns
	}
	return ids[0], nil
}

func (p *Provider) runDir(runID string) string {
	return path.Join(p.cfg.ReportDir, runID)
}

// runArtifacts is what one listing of a run directory yields.
type runArtifacts struct {
	units  []string
	log    string
	export string
}

// artifacts lists a run directory newest first, so the first match of each
// pattern is the most recently modified file.
func (p *Provider) artifacts(ctx context.Context, runID string) (runArtifacts, error) {
	cmd := fmt.Sprintf("cd %s 2>/dev/null || exit %d; ls -1tp", campaign.ShellQuote(p.runDir(runID)), missingRunExit)
	out, err := p.fetch(ctx, cmd, p.cfg.CommandTimeout)
	if err != nil {
		var exitErr *sshclient.ExitError
		if errors.As(err, &exitErr) && exitErr.Code == missingRunExit {
			return runArtifacts{}, fmt.Errorf("run %s: %w", runID, campaign.ErrNotFound)
		}
		return runArtifacts{}, err
	}
	return parseArtifacts(out), nil
}

func parseArtifacts(listing string) runArtifacts {
	arts := runArtifacts{units: []string{}}
	for _, entry := range campaign.SplitLines(listing) {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if dir, ok := strings.CutSuffix(entry, "/"); ok {
			arts.units = append(arts.units, dir)
			continue
		}
		if arts.log == "" && matches(LogPattern, entry) {
			arts.log = entry
		}
		if arts.export == "" && matches(ExportPattern, entry) {
			arts.export = entry
		}
	}
	return arts
}

func matches(pattern, name string) bool {
	ok, err := doublestar.Match(pattern, name)
	return err == nil && ok
}

func (p *Provider) defaultCommand() string {
	cmd := "cd " + campaign.ShellQuote(p.cfg.BaseDir) + " && " + p.cfg.Script
	if p.cfg.Kubeconfig != "" {
		cmd = "export KUBECONFIG=" + campaign.ShellQuote(p.cfg.Kubeconfig) + " && " + cmd
	}
	return cmd
}

// uploadCustomScript renders the restricted script, writes it to the host and
// returns the command that runs it.
func (p *Provider) uploadCustomScript(ctx context.Context, sel campaign.Selection) (string, error) {
	sel, err := sel.Normalize()
	if err != nil {
		return "", err
	}
	sel = p.catalogs.ResolveSelection(ctx, sel)

	script, err := campaign.BuildRunScript(campaign.ScriptParams{
		BaseDir:    p.cfg.BaseDir,
		Kubeconfig: p.cfg.Kubeconfig,
		Runner:     p.cfg.CustomRunner,
		Catalogs:   sel.Catalogs,
	})
	if err != nil {
		return "", err
	}

	target := campaign.ShellQuote(p.cfg.CustomScriptPath)
	upload := fmt.Sprintf("echo %s | base64 -d > %s && chmod +x %s",
		base64.StdEncoding.EncodeToString([]byte(script)), target, target)
	if _, err := p.fetch(ctx, upload, p.cfg.CommandTimeout); err != nil {
		return "", fmt.Errorf("uploading run script: %w", err)
	}
	p.logger.Info("custom run script uploaded",
		"path", p.cfg.CustomScriptPath,
		"catalogs", len(sel.Catalogs),
		"units", sel.UnitCount())
	return "bash " + target, nil
}

// fetch runs one command with its own deadline. Every failure is counted and
// wrapped as campaign.ErrEvidenceUnavailable; an *sshclient.ExitError stays
// reachable through errors.As.
func (p *Provider) fetch(ctx context.Context, cmd string, timeout time.Duration) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	out, err := p.runner.Run(ctx, cmd)
	if err != nil {
		kind := failureKind(err)
		p.failures.EvidenceFailure(kind)
		p.logger.Debug("remote command failed", "kind", kind, "command", truncate(cmd, 100), "error", err)
		return out, fmt.Errorf("%w: %w", campaign.ErrEvidenceUnavailable, err)
	}
	return out, nil
}

func failureKind(err error) string {
	var exitErr *sshclient.ExitError
	switch {
	case errors.Is(err, sshclient.ErrTimeout):
		return "timeout"
	case errors.Is(err, sshclient.ErrConnection):
		return "connection"
	case errors.As(err, &exitErr):
		return "exit"
	default:
		return "other"
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

func selectionString(sel *campaign.Selection) string {
	if sel == nil {
		return "default"
	}
	return sel.String()
}

var _ providers.Provider = (*Provider)(nil)
