// Package setup builds the campaign provider a configuration asks for.
package setup

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"reflect"

	"github.com/nomis52/certwatch/catalog"
	"github.com/nomis52/certwatch/clients/sshclient"
	"github.com/nomis52/certwatch/config"
	"github.com/nomis52/certwatch/providers"
	"github.com/nomis52/certwatch/providers/demo"
	"github.com/nomis52/certwatch/providers/remote"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// NewProvider returns the demo provider when demo mode is enabled and the
// remote provider otherwise. The closer releases any SSH connection and must
// be called once the provider is no longer used. failures may be nil.
//
// The remote provider runs commands:
//   - locally through bash when the host is "local"
//   - over x/crypto/ssh when a private key is configured
//   - through the system ssh binary otherwise, with the key when system_ssh is set
func NewProvider(cfg *config.Config, logger *slog.Logger, failures remote.FailureCounter) (providers.Provider, io.Closer, error) {
	resolverOpts := []catalog.Option{
		catalog.WithOverride(catalog.RedHat, cfg.Catalogs.RedHatIndex),
		catalog.WithOverride(catalog.Certified, cfg.Catalogs.CertifiedIndex),
		catalog.WithKubeconfig(cfg.Campaign.Kubeconfig),
		catalog.WithTimeout(cfg.Timeouts.Command),
		catalog.WithLogger(logger),
	}

	if cfg.Demo.Enabled {
		opts := []demo.Option{
			demo.WithUnitDuration(cfg.Demo.UnitDuration),
			demo.WithCatalogs(catalog.NewResolver(resolverOpts...)),
			demo.WithLogger(logger),
		}
		if len(cfg.Demo.Units) > 0 {
			opts = append(opts, demo.WithUnits(cfg.Demo.Units))
		}
		p := demo.New(opts...)
		logger.Info("using demo provider", "unit_duration", cfg.Demo.UnitDuration)
		return p, nopCloser{}, nil
	}

	runner, closer, err := newRunner(cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	if !cfg.Catalogs.DisableDiscovery {
		resolverOpts = append(resolverOpts, catalog.WithRunner(runner))
	}

	opts := []remote.Option{remote.WithLogger(logger)}
	if failures != nil {
		opts = append(opts, remote.WithFailureCounter(failures))
	}
	p := remote.New(runner, remote.Config{
		Session:          cfg.Campaign.Session,
		BaseDir:          cfg.Campaign.BaseDir,
		ReportDir:        cfg.Campaign.ReportDir,
		Script:           cfg.Campaign.Script,
		CustomRunner:     cfg.Campaign.CustomRunner,
		CustomScriptPath: cfg.Campaign.CustomScriptPath,
		CleanupCommand:   cfg.Campaign.CleanupCommand,
		Kubeconfig:       cfg.Campaign.Kubeconfig,
		CommandTimeout:   cfg.Timeouts.Command,
		BulkTimeout:      cfg.Timeouts.Bulk,
	}, catalog.NewResolver(resolverOpts...), opts...)

	logger.Info("using remote provider", "host", cfg.Remote.Host, "session", cfg.Campaign.Session)
	return p, closer, nil
}

// KeepsProvider reports whether a provider built from prev can keep serving
// next. Only the demo provider qualifies: its session lives in memory and
// must survive a reload that leaves the demo settings alone.
func KeepsProvider(prev, next *config.Config) bool {
	if prev == nil || next == nil || !prev.Demo.Enabled || !next.Demo.Enabled {
		return false
	}
	return reflect.DeepEqual(prev.Demo, next.Demo) &&
		prev.Catalogs == next.Catalogs &&
		prev.Campaign.Kubeconfig == next.Campaign.Kubeconfig &&
		prev.Timeouts.Command == next.Timeouts.Command
}

func newRunner(cfg *config.Config, logger *slog.Logger) (sshclient.Runner, io.Closer, error) {
	switch {
	case cfg.IsLocal():
		return sshclient.NewExecRunner(""), nopCloser{}, nil

	case cfg.Remote.SystemSSH && cfg.Remote.KeyPath != "":
		if _, err := os.Stat(cfg.Remote.KeyPath); err != nil {
			return nil, nil, fmt.Errorf("failed to read ssh key: %w", err)
		}
		runner := sshclient.NewExecRunner(cfg.Remote.Host,
			sshclient.WithExecUser(cfg.Remote.User),
			sshclient.WithIdentityFile(cfg.Remote.KeyPath),
		)
		return runner, nopCloser{}, nil

	case cfg.Remote.KeyPath != "":
		key, err := os.ReadFile(cfg.Remote.KeyPath)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to read ssh key: %w", err)
		}
		opts := []sshclient.Option{
			sshclient.WithUser(cfg.Remote.User),
			sshclient.WithDialTimeout(cfg.Timeouts.Command),
			sshclient.WithLogger(logger),
		}
		if cfg.Remote.KnownHostsPath != "" {
			opts = append(opts, sshclient.WithKnownHosts(cfg.Remote.KnownHostsPath))
		}
		client, err := sshclient.New(cfg.Remote.Host, key, opts...)
		if err != nil {
			return nil, nil, err
		}
		return client, client, nil

	default:
		return sshclient.NewExecRunner(cfg.Remote.Host, sshclient.WithExecUser(cfg.Remote.User)), nopCloser{}, nil
	}
}
