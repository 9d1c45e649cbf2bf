// Command certwatch-cli queries or drives a certification campaign once and
// prints the result as JSON.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/jessevdk/go-flags"

	"github.com/nomis52/certwatch/buildinfo"
	"github.com/nomis52/certwatch/campaign"
	"github.com/nomis52/certwatch/config"
	"github.com/nomis52/certwatch/logging"
	"github.com/nomis52/certwatch/metrics"
	"github.com/nomis52/certwatch/providers"
	"github.com/nomis52/certwatch/providers/remote"
	"github.com/nomis52/certwatch/providers/setup"
	"github.com/nomis52/certwatch/report"
)

// Options are the global flags. Exactly one command is expected.
type Options struct {
	ConfigPath string `short:"c" long:"config" env:"CERTWATCH_CONFIG" description:"path to the YAML config file (optional)"`
	Push       bool   `long:"push" description:"push campaign gauges to the configured remote write endpoint"`
	Version    bool   `short:"v" long:"version" description:"display the version and exit"`

	config.Overrides

	Status  struct{}      `command:"status" description:"print the live campaign status"`
	Results struct{}      `command:"results" description:"print the counts of the newest run"`
	Runs    runsCommand   `command:"runs" description:"list the newest runs"`
	Start   startCommand  `command:"start" description:"start a campaign"`
	Stop    struct{}      `command:"stop" description:"stop the running campaign"`
	Export  exportCommand `command:"export" description:"print the export of a run"`
	Cleanup struct{}      `command:"cleanup" description:"run the cluster cleanup script"`
}

type runsCommand struct {
	Limit int `short:"n" long:"limit" default:"10" description:"number of runs, at most 50"`
}

type startCommand struct {
	Select string `short:"s" long:"select" description:"restrict the run, e.g. 'redhat=3scale-operator,amq-streams;certified=nginx-ingress-operator'"`
}

type exportCommand struct {
	RunIDs []string `short:"r" long:"run" description:"run id, repeat to combine runs (default newest)"`
}

var errNoCommand = errors.New("a command is required (status, results, runs, start, stop, export, cleanup)")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		if flags.WroteHelp(err) {
			return
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	var opts Options
	parser := flags.NewParser(&opts, flags.HelpFlag|flags.PassDoubleDash)
	parser.SubcommandsOptional = true
	if _, err := parser.ParseArgs(args); err != nil {
		return err
	}

	if opts.Version {
		fmt.Fprintf(stdout, "certwatch-cli %s\n", buildinfo.Get())
		return nil
	}
	if parser.Active == nil {
		return errNoCommand
	}

	cfg, err := config.LoadConfig(opts.ConfigPath, opts.Overrides)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logCfg := logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Output:    cfg.Logging.Output,
		AddSource: cfg.Logging.AddSource,
	}
	// stdout carries the command's JSON
	if logCfg.Output == "stdout" {
		logCfg.Output = "stderr"
	}
	logger, err := logging.New(logCfg)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	var (
		registry *metrics.PushRegistry
		recorder *metrics.CampaignMetrics
	)
	if opts.Push {
		if registry, recorder, err = newPusher(cfg); err != nil {
			return err
		}
	}

	var failures remote.FailureCounter
	if recorder != nil {
		failures = recorder
	}
	provider, closer, err := setup.NewProvider(cfg, logger.Logger, failures)
	if err != nil {
		return err
	}
	defer closer.Close()

	result, err := execute(ctx, parser.Active.Name, &opts, provider)
	if err != nil {
		return err
	}
	if err := writeResult(stdout, result); err != nil {
		return err
	}

	if recorder != nil {
		recorder.Observe(provider.Status(ctx))
		if err := registry.Flush(ctx); err != nil {
			return fmt.Errorf("failed to push metrics: %w", err)
		}
		logger.Debug("metrics pushed", "series", registry.Pending())
	}
	return nil
}

func newPusher(cfg *config.Config) (*metrics.PushRegistry, *metrics.CampaignMetrics, error) {
	if cfg.Monitoring.VictoriaMetricsURL == "" {
		return nil, nil, errors.New("--push needs monitoring.victoriametrics_url")
	}
	hostname, err := os.Hostname()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get hostname: %w", err)
	}
	registry := metrics.NewPushRegistry(metrics.PushConfig{
		URL:      cfg.Monitoring.VictoriaMetricsURL,
		Prefix:   cfg.Monitoring.MetricsPrefix,
		Job:      cfg.Monitoring.JobName,
		Instance: hostname,
	})
	recorder, err := metrics.NewCampaignMetrics(registry)
	if err != nil {
		return nil, nil, err
	}
	return registry, recorder, nil
}

// execute runs the named command and returns what should be printed.
func execute(ctx context.Context, name string, opts *Options, p providers.Provider) (any, error) {
	switch name {
	case "status":
		return p.Status(ctx), nil
	case "results":
		return p.LatestResults(ctx)
	case "runs":
		return p.Runs(ctx, report.ClampLimit(fmt.Sprint(opts.Runs.Limit)))
	case "start":
		var sel *campaign.Selection
		if opts.Start.Select != "" {
			parsed, err := campaign.ParseSelection(opts.Start.Select)
			if err != nil {
				return nil, err
			}
			sel = &parsed
		}
		return p.Start(ctx, sel)
	case "stop":
		if err := p.Stop(ctx); err != nil {
			return nil, err
		}
		return map[string]string{"status": providers.StatusStopped}, nil
	case "export":
		if len(opts.Export.RunIDs) > 1 {
			return p.CombinedExport(ctx, opts.Export.RunIDs)
		}
		runID := ""
		if len(opts.Export.RunIDs) == 1 {
			runID = opts.Export.RunIDs[0]
		}
		return p.Export(ctx, runID)
	case "cleanup":
		out, err := p.Cleanup(ctx)
		if err != nil {
			return nil, err
		}
		return map[string]string{"status": providers.StatusCleaned, "output": out}, nil
	default:
		return nil, fmt.Errorf("unknown command %q", name)
	}
}

// writeResult prints text results verbatim and everything else as indented JSON.
func writeResult(w io.Writer, v any) error {
	if s, ok := v.(string); ok {
		_, err := io.WriteString(w, s)
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
