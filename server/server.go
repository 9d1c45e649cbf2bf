// Package server provides the HTTP query surface for a certification campaign.
//
// The server exposes a REST API to observe a campaign running in a tmux session
// on a remote host, browse its completed runs and start or stop it.
//
// # Endpoints
//
//   - GET /health - Liveness check, returns "ok"
//   - GET /api/status - Live campaign status
//   - GET /api/results/latest - Counts of the newest run
//   - GET /api/reports - Newest runs with their counts
//   - GET /api/reports/{run_id} - Summary of one run
//   - GET /api/completed - Units of the newest run and their outcome
//   - GET /api/export/csv - Export of one run
//   - GET /api/export/combined - Exports of several runs merged
//   - POST /api/test/start, POST /api/test/stop - Campaign control
//   - POST /api/cleanup - Runs the cluster cleanup script
//   - GET /api/live-output - Tail of the campaign terminal
//   - GET /api/catalogs - Resolved catalog indexes
//   - GET /api/events - Captured controller events
//   - GET /config, POST /reload, GET /metrics
//
// # Architecture
//
// The config and the provider built from it are swapped atomically on reload.
// Requests already in flight finish against the provider they started with.
// Cron triggers start campaigns through the current provider, so a reload also
// applies to them; the trigger list itself is read once at startup.
//
// # Example
//
//	srv, err := server.New("/etc/certwatch/config.yaml", overrides)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := srv.Run(ctx); err != nil {
//	    log.Fatal(err)
//	}
package server

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/nomis52/certwatch/campaign"
	"github.com/nomis52/certwatch/config"
	"github.com/nomis52/certwatch/logging"
	"github.com/nomis52/certwatch/metrics"
	"github.com/nomis52/certwatch/providers"
	"github.com/nomis52/certwatch/providers/setup"
	"github.com/nomis52/certwatch/server/cron"
	"github.com/nomis52/certwatch/server/handlers"
)

const (
	defaultReadTimeout     = 10 * time.Second
	defaultWriteTimeout    = 10 * time.Second
	defaultShutdownTimeout = 5 * time.Second

	// writeSlack is added to the bulk timeout so slow exports are not cut off.
	writeSlack = 5 * time.Second
)

// serverDeps holds config-derived dependencies that are swapped atomically on reload.
type serverDeps struct {
	config   *config.Config
	provider providers.Provider
	closer   io.Closer
}

// Server is the certwatch HTTP server.
type Server struct {
	addr       string
	configPath string
	overrides  config.Overrides
	logger     *slog.Logger
	controller *slog.Logger
	events     *logging.LogCollector
	deps       atomic.Pointer[serverDeps]
	registry   *metrics.ScrapeRegistry
	metrics    *metrics.CampaignMetrics
	cron       *cron.CronTriggerManager
	httpServer *http.Server
}

// Option configures a Server.
type Option func(*Server)

// WithListenAddr overrides the configured listen address.
func WithListenAddr(addr string) Option {
	return func(s *Server) {
		s.addr = addr
	}
}

// WithLogger sets the base logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithLogCollector sets the collector that backs /api/events.
func WithLogCollector(c *logging.LogCollector) Option {
	return func(s *Server) {
		s.events = c
	}
}

// New creates a Server from the config at configPath (which may be empty) and
// the overrides. It builds the provider and the cron triggers.
func New(configPath string, overrides config.Overrides, opts ...Option) (*Server, error) {
	s := &Server{
		configPath: configPath,
		overrides:  overrides,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.events == nil {
		s.events = logging.NewLogCollector(logging.DefaultCollectorLimit)
	}
	s.controller = s.events.Logger(s.logger, handlers.DefaultEventComponent, slog.LevelInfo)

	registry, err := metrics.NewScrapeRegistry()
	if err != nil {
		return nil, err
	}
	s.registry = registry
	if s.metrics, err = metrics.NewCampaignMetrics(registry); err != nil {
		return nil, fmt.Errorf("registering campaign metrics: %w", err)
	}

	if err := s.Reload(); err != nil {
		return nil, err
	}

	cfg := s.Config()
	if s.addr == "" {
		s.addr = cfg.Server.Listener.Addr
	}
	s.cron, err = cron.NewCronTriggerManager(cfg.Server.Cron, s, s.logger)
	if err != nil {
		return nil, fmt.Errorf("creating cron triggers: %w", err)
	}
	return s, nil
}

// Logger returns the server's logger.
func (s *Server) Logger() *slog.Logger {
	return s.logger
}

// Addr returns the listen address.
func (s *Server) Addr() string {
	return s.addr
}

// Reload reads the config and rebuilds the provider. On failure the previous
// config and provider stay in place. A demo provider whose settings did not
// change is kept, along with its session.
func (s *Server) Reload() error {
	cfg, err := config.LoadConfig(s.configPath, s.overrides)
	if err != nil {
		return err
	}

	if prev := s.deps.Load(); prev != nil && setup.KeepsProvider(prev.config, cfg) {
		s.deps.Store(&serverDeps{
			config:   cfg,
			provider: prev.provider,
			closer:   prev.closer,
		})
		s.logger.Info("configuration loaded",
			"config_path", s.configPath,
			"provider", prev.provider.Name(),
			"provider_kept", true,
		)
		return nil
	}

	provider, closer, err := setup.NewProvider(cfg, s.controller, s.metrics)
	if err != nil {
		return fmt.Errorf("building provider: %w", err)
	}

	old := s.deps.Swap(&serverDeps{
		config:   cfg,
		provider: provider,
		closer:   closer,
	})
	if old != nil {
		if err := old.closer.Close(); err != nil {
			s.logger.Warn("failed to close previous provider", "error", err)
		}
	}

	s.logger.Info("configuration loaded",
		"config_path", s.configPath,
		"provider", provider.Name(),
	)
	return nil
}

// Config returns the current configuration.
func (s *Server) Config() *config.Config {
	return s.deps.Load().config
}

// Provider returns the current campaign provider.
func (s *Server) Provider() providers.Provider {
	return s.deps.Load().provider
}

// Start starts a campaign through the current provider. Cron triggers use it.
func (s *Server) Start(ctx context.Context, sel *campaign.Selection) (campaign.StartResult, error) {
	return s.Provider().Start(ctx, sel)
}

// NextRun returns the next scheduled start, or the zero time without triggers.
func (s *Server) NextRun() time.Time {
	return s.cron.NextRun()
}

// Handler returns the server's routes wrapped in request logging.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.registerRoutes(mux)
	return withRequestLogging(s.logger, mux)
}

// Run starts the HTTP server and blocks until the context is cancelled.
// It performs a graceful shutdown when the context is done.
func (s *Server) Run(ctx context.Context) error {
	writeTimeout := defaultWriteTimeout
	if bulk := s.Config().Timeouts.Bulk + writeSlack; bulk > writeTimeout {
		writeTimeout = bulk
	}

	s.httpServer = &http.Server{
		Addr:         s.addr,
		Handler:      s.Handler(),
		ReadTimeout:  defaultReadTimeout,
		WriteTimeout: writeTimeout,
	}

	if s.cron.Len() > 0 {
		s.logger.Info("starting cron triggers",
			"triggers", s.cron.Len(),
			"next_run", s.cron.NextRun(),
		)
		s.cron.Start(ctx)
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting server",
			"addr", s.addr,
			"config_path", s.configPath,
			"provider", s.Provider().Name(),
		)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		s.logger.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
		defer cancel()
		err := s.httpServer.Shutdown(shutdownCtx)
		if deps := s.deps.Load(); deps != nil {
			deps.closer.Close()
		}
		return err
	}
}

func (s *Server) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", handlers.HandleHealth)

	mux.Handle("GET /api/status", handlers.NewStatusHandler(s, s.metrics))
	mux.Handle("GET /api/results/latest", handlers.NewLatestResultsHandler(s.logger, s))
	mux.Handle("GET /api/reports", handlers.NewReportsHandler(s.logger, s))
	mux.Handle("GET /api/reports/{run_id}", handlers.NewReportHandler(s.logger, s))
	mux.Handle("GET /api/completed", handlers.NewCompletedHandler(s.logger, s))
	mux.Handle("GET /api/export/csv", handlers.NewExportHandler(s.logger, s))
	mux.Handle("GET /api/export/combined", handlers.NewCombinedExportHandler(s.logger, s))
	mux.Handle("GET /api/live-output", handlers.NewLiveOutputHandler(s.logger, s))
	mux.Handle("GET /api/catalogs", handlers.NewCatalogsHandler(s))
	mux.Handle("GET /api/events", handlers.NewEventsHandler(s.events))

	mux.Handle("POST /api/test/start", handlers.NewStartHandler(s.controller, s))
	mux.Handle("POST /api/test/stop", handlers.NewStopHandler(s.controller, s))
	mux.Handle("POST /api/cleanup", handlers.NewCleanupHandler(s.controller, s))

	mux.Handle("GET /config", handlers.NewConfigHandler(s))
	mux.Handle("POST /reload", handlers.NewReloadHandler(s.logger, s))
	mux.Handle("GET /metrics", s.registry.Handler())
}
