package setup

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nomis52/certwatch/catalog"
	"github.com/nomis52/certwatch/clients/sshclient"
	"github.com/nomis52/certwatch/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func baseConfig(host string) *config.Config {
	cfg := &config.Config{Remote: config.RemoteConfig{Host: host}}
	cfg.SetDefaults()
	return cfg
}

func writeKey(t *testing.T) string {
	t.Helper()
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	block, err := ssh.MarshalPrivateKey(priv, "")
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "id_ed25519")
	require.NoError(t, os.WriteFile(path, pem.EncodeToMemory(block), 0o600))
	return path
}

func TestNewProvider_Demo(t *testing.T) {
	cfg := baseConfig("")
	cfg.Demo.Enabled = true
	cfg.Demo.UnitDuration = time.Second
	cfg.Catalogs.CertifiedIndex = "quay.io/me/certified:v4.20"

	p, closer, err := NewProvider(cfg, testLogger(), nil)
	require.NoError(t, err)
	defer closer.Close()

	assert.Equal(t, "demo", p.Name())
	cats := p.Catalogs(context.Background())
	assert.Equal(t, catalog.Resolution{Index: "quay.io/me/certified:v4.20", Source: catalog.SourceOverride}, cats.Certified)
	assert.Equal(t, catalog.SourceFallback, cats.RedHat.Source)
}

func TestNewProvider_Remote(t *testing.T) {
	tests := []struct {
		name string
		cfg  func(t *testing.T) *config.Config
	}{
		{
			name: "local host",
			cfg:  func(*testing.T) *config.Config { return baseConfig(config.LocalHost) },
		},
		{
			name: "system ssh",
			cfg:  func(*testing.T) *config.Config { return baseConfig("lab-host") },
		},
		{
			name: "ssh key through system ssh",
			cfg: func(t *testing.T) *config.Config {
				cfg := baseConfig("lab-host")
				cfg.Remote.KeyPath = writeKey(t)
				cfg.Remote.SystemSSH = true
				return cfg
			},
		},
		{
			name: "ssh key",
			cfg: func(t *testing.T) *config.Config {
				cfg := baseConfig("lab-host")
				cfg.Remote.KeyPath = writeKey(t)
				return cfg
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.cfg(t)
			cfg.Catalogs.DisableDiscovery = true

			p, closer, err := NewProvider(cfg, testLogger(), nil)
			require.NoError(t, err)
			assert.Equal(t, "remote", p.Name())
			assert.Equal(t, catalog.SourceFallback, p.Catalogs(context.Background()).RedHat.Source)
			assert.NoError(t, closer.Close())
		})
	}
}

func TestNewRunner(t *testing.T) {
	key := writeKey(t)

	tests := []struct {
		name      string
		configure func(*config.Config)
		want      any
	}{
		{
			name:      "local host",
			configure: func(c *config.Config) { c.Remote.Host = config.LocalHost },
			want:      &sshclient.ExecRunner{},
		},
		{
			name:      "no key",
			configure: func(*config.Config) {},
			want:      &sshclient.ExecRunner{},
		},
		{
			name: "key with system ssh",
			configure: func(c *config.Config) {
				c.Remote.KeyPath = key
				c.Remote.SystemSSH = true
			},
			want: &sshclient.ExecRunner{},
		},
		{
			name:      "key",
			configure: func(c *config.Config) { c.Remote.KeyPath = key },
			want:      &sshclient.SSHClient{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := baseConfig("lab-host")
			tt.configure(cfg)

			runner, closer, err := newRunner(cfg, testLogger())
			require.NoError(t, err)
			defer closer.Close()
			assert.IsType(t, tt.want, runner)
		})
	}
}

func TestNewProvider_DemoUnits(t *testing.T) {
	cfg := baseConfig("")
	cfg.Demo.Enabled = true
	cfg.Demo.Units = []string{"op-a", "op-b"}

	p, closer, err := NewProvider(cfg, testLogger(), nil)
	require.NoError(t, err)
	defer closer.Close()

	ctx := context.Background()
	_, err = p.Start(ctx, nil)
	require.NoError(t, err)
	status := p.Status(ctx)
	assert.Equal(t, 2, status.Total)
	assert.Equal(t, "op-a", status.CurrentUnit)
}

func TestKeepsProvider(t *testing.T) {
	demoConfig := func() *config.Config {
		cfg := baseConfig("")
		cfg.Demo.Enabled = true
		return cfg
	}

	tests := []struct {
		name   string
		prev   *config.Config
		mutate func(*config.Config)
		want   bool
	}{
		{
			name:   "unchanged demo",
			prev:   demoConfig(),
			mutate: func(*config.Config) {},
			want:   true,
		},
		{
			name:   "unrelated change",
			prev:   demoConfig(),
			mutate: func(c *config.Config) { c.Server.Listener.Addr = ":9000" },
			want:   true,
		},
		{
			name:   "unit duration changed",
			prev:   demoConfig(),
			mutate: func(c *config.Config) { c.Demo.UnitDuration = time.Minute },
		},
		{
			name:   "units changed",
			prev:   demoConfig(),
			mutate: func(c *config.Config) { c.Demo.Units = []string{"op-a"} },
		},
		{
			name:   "catalog override changed",
			prev:   demoConfig(),
			mutate: func(c *config.Config) { c.Catalogs.RedHatIndex = "quay.io/me/redhat:v4.20" },
		},
		{
			name:   "demo disabled",
			prev:   demoConfig(),
			mutate: func(c *config.Config) { c.Demo.Enabled = false },
		},
		{
			name:   "remote provider",
			prev:   baseConfig("lab-host"),
			mutate: func(*config.Config) {},
		},
		{
			name:   "first load",
			mutate: func(*config.Config) {},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next := demoConfig()
			if tt.prev != nil && !tt.prev.Demo.Enabled {
				next = baseConfig("lab-host")
			}
			tt.mutate(next)
			assert.Equal(t, tt.want, KeepsProvider(tt.prev, next))
		})
	}
}

func TestNewProvider_Errors(t *testing.T) {
	t.Run("missing key file with system ssh", func(t *testing.T) {
		cfg := baseConfig("lab-host")
		cfg.Remote.KeyPath = filepath.Join(t.TempDir(), "missing")
		cfg.Remote.SystemSSH = true
		_, _, err := NewProvider(cfg, testLogger(), nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to read ssh key")
	})

	t.Run("missing key file", func(t *testing.T) {
		cfg := baseConfig("lab-host")
		cfg.Remote.KeyPath = filepath.Join(t.TempDir(), "missing")
		_, _, err := NewProvider(cfg, testLogger(), nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to read ssh key")
	})

	t.Run("missing known hosts", func(t *testing.T) {
		cfg := baseConfig("lab-host")
		cfg.Remote.KeyPath = writeKey(t)
		cfg.Remote.KnownHostsPath = filepath.Join(t.TempDir(), "known_hosts")
		_, _, err := NewProvider(cfg, testLogger(), nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to load known hosts")
	})
}
