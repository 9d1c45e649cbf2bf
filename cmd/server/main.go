package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jessevdk/go-flags"
	"go.uber.org/automaxprocs/maxprocs"

	"github.com/nomis52/certwatch/buildinfo"
	"github.com/nomis52/certwatch/config"
	"github.com/nomis52/certwatch/logging"
	"github.com/nomis52/certwatch/server"
)

// Options are the server's command line flags. The embedded overrides can also
// be given through the environment.
type Options struct {
	ConfigPath string `short:"c" long:"config" env:"CERTWATCH_CONFIG" description:"path to the YAML config file (optional)"`
	Version    bool   `short:"v" long:"version" description:"display the version and exit"`

	config.Overrides
}

func main() {
	_, _ = maxprocs.Set(maxprocs.Logger(func(string, ...interface{}) {}))

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var opts Options
	parser := flags.NewParser(&opts, flags.Default)
	parser.LongDescription = "certwatch serves the status and results of an operator certification campaign."
	if _, err := parser.Parse(); err != nil {
		if flags.WroteHelp(err) {
			return nil
		}
		return err
	}

	if opts.Version {
		fmt.Printf("certwatch %s\n", buildinfo.Get())
		return nil
	}

	cfg, err := config.LoadConfig(opts.ConfigPath, opts.Overrides)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := logging.New(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Output:    cfg.Logging.Output,
		AddSource: cfg.Logging.AddSource,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	props := buildinfo.Get()
	logger.Info("certwatch starting",
		"version", props.Version,
		"git_commit", props.GitCommit,
		"config_path", opts.ConfigPath,
	)

	srv, err := server.New(opts.ConfigPath, opts.Overrides, server.WithLogger(logger.Logger))
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return srv.Run(ctx)
}
