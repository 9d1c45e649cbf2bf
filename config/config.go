package config

import (
	"fmt"
	"net/url"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// Default campaign layout on the remote host
	defaultSession          = "operator-test"
	defaultBaseDir          = "/root/test-rose/certsuite"
	defaultReportDir        = "/var/www/html"
	defaultScript           = "./run-ocp-4.20-test-v2.sh"
	defaultCustomRunner     = "./run-ocp-4.20-test-v2.sh"
	defaultCustomScriptPath = "/tmp/certwatch-custom-run.sh"
	defaultCleanupCommand   = "bash /tmp/cleanup-all-test-operators-v2.sh"
	defaultSSHUser          = "root"

	// Default timeouts
	defaultCommandTimeout = 30 * time.Second
	defaultBulkTimeout    = 120 * time.Second

	defaultDemoUnitDuration = 45 * time.Second

	defaultListenAddr = ":8080"

	// Default monitoring settings
	defaultMetricsPrefix = "certwatch"
	defaultJobName       = "certwatch"

	// Default logging settings
	defaultLogLevel  = "info"
	defaultLogFormat = "json"
	defaultLogOutput = "stdout"

	// LocalHost runs campaign commands on this machine instead of over SSH.
	LocalHost = "local"

	redactedValue = "REDACTED"
)

// Config represents the complete application configuration
type Config struct {
	Remote     RemoteConfig     `yaml:"remote"`
	Campaign   CampaignConfig   `yaml:"campaign"`
	Catalogs   CatalogsConfig   `yaml:"catalogs"`
	Timeouts   TimeoutsConfig   `yaml:"timeouts"`
	Demo       DemoConfig       `yaml:"demo"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Logging    LoggingConfig    `yaml:"logging"`
	Server     ServerConfig     `yaml:"server"`
}

// ServerConfig holds settings only the HTTP server uses
type ServerConfig struct {
	Listener ListenerConfig `yaml:"listener"`
	Cron     []CronTrigger  `yaml:"cron"`
}

// ListenerConfig holds HTTP server listener settings.
type ListenerConfig struct {
	// The listen address, defaults to :8080
	Addr string `yaml:"addr"`
}

// CronTrigger starts a campaign on a schedule.
type CronTrigger struct {
	// Standard 5 field cron expression
	Schedule string `yaml:"schedule"`
	// Optional unit selection in "catalog=unit,unit;catalog=unit" form. Empty
	// runs the default campaign.
	Selection string `yaml:"selection"`
}

// RemoteConfig holds the connection to the host the campaign runs on
type RemoteConfig struct {
	// Host is an address or an ssh config alias. "local" runs commands locally.
	Host string `yaml:"host"`
	User string `yaml:"user"`
	// KeyPath is a private key file. Without it the system ssh binary is used.
	KeyPath        string `yaml:"key_path"`
	KnownHostsPath string `yaml:"known_hosts_path"`
	// SystemSSH passes KeyPath to the system ssh binary instead of dialing
	// with the built-in client, so ~/.ssh/config and its known_hosts apply.
	SystemSSH bool `yaml:"system_ssh"`
}

// CampaignConfig describes the campaign layout on the remote host
type CampaignConfig struct {
	Session   string `yaml:"session"`
	BaseDir   string `yaml:"base_dir"`
	ReportDir string `yaml:"report_dir"`
	// Script is the default campaign command, run from BaseDir
	Script string `yaml:"script"`
	// CustomRunner is invoked once per catalog by a custom run, with the index
	// and a comma separated unit list as arguments
	CustomRunner     string `yaml:"custom_runner"`
	CustomScriptPath string `yaml:"custom_script_path"`
	CleanupCommand   string `yaml:"cleanup_command"`
	Kubeconfig       string `yaml:"kubeconfig"`
}

// CatalogsConfig pins catalog indexes. Unset indexes are discovered or fall back
// to built in defaults.
type CatalogsConfig struct {
	RedHatIndex      string `yaml:"redhat_index"`
	CertifiedIndex   string `yaml:"certified_index"`
	DisableDiscovery bool   `yaml:"disable_discovery"`
}

// TimeoutsConfig defines per command timeouts
type TimeoutsConfig struct {
	Command time.Duration `yaml:"command"`
	// Bulk applies to log and export transfers
	Bulk time.Duration `yaml:"bulk"`
}

// DemoConfig enables the simulated campaign
type DemoConfig struct {
	Enabled      bool          `yaml:"enabled"`
	UnitDuration time.Duration `yaml:"unit_duration"`
	// Units replaces the built-in operator list when set
	Units []string `yaml:"units"`
}

// MonitoringConfig holds metrics and monitoring settings
type MonitoringConfig struct {
	VictoriaMetricsURL string `yaml:"victoriametrics_url"`
	MetricsPrefix      string `yaml:"metrics_prefix"`
	JobName            string `yaml:"jobname"`
}

// LoggingConfig defines logging behavior settings
type LoggingConfig struct {
	Level     string `yaml:"level"`
	Format    string `yaml:"format"`
	Output    string `yaml:"output"`
	AddSource bool   `yaml:"add_source"`
}

// Validate performs basic validation on the configuration
func (c *Config) Validate() error {
	if !c.Demo.Enabled && c.Remote.Host == "" {
		return fmt.Errorf("remote host is required unless demo mode is enabled")
	}
	if c.Campaign.Session == "" {
		return fmt.Errorf("campaign session name is required")
	}
	if c.Campaign.ReportDir == "" {
		return fmt.Errorf("campaign report dir is required")
	}
	if c.Timeouts.Command <= 0 {
		return fmt.Errorf("command timeout must be positive")
	}
	if c.Timeouts.Bulk < c.Timeouts.Command {
		return fmt.Errorf("bulk timeout must not be shorter than the command timeout")
	}
	if c.Demo.UnitDuration <= 0 {
		return fmt.Errorf("demo unit duration must be positive")
	}
	if c.Remote.SystemSSH && c.Remote.KnownHostsPath != "" {
		return fmt.Errorf("known_hosts_path is not used with system_ssh")
	}
	for i, t := range c.Server.Cron {
		if t.Schedule == "" {
			return fmt.Errorf("cron trigger %d: schedule is required", i)
		}
	}
	if c.Monitoring.VictoriaMetricsURL != "" {
		if _, err := url.Parse(c.Monitoring.VictoriaMetricsURL); err != nil {
			return fmt.Errorf("invalid VictoriaMetrics URL: %w", err)
		}
	}
	return nil
}

// SetDefaults sets reasonable default values for optional fields
func (c *Config) SetDefaults() {
	if c.Remote.User == "" {
		c.Remote.User = defaultSSHUser
	}
	if c.Campaign.Session == "" {
		c.Campaign.Session = defaultSession
	}
	if c.Campaign.BaseDir == "" {
		c.Campaign.BaseDir = defaultBaseDir
	}
	if c.Campaign.ReportDir == "" {
		c.Campaign.ReportDir = defaultReportDir
	}
	if c.Campaign.Script == "" {
		c.Campaign.Script = defaultScript
	}
	if c.Campaign.CustomRunner == "" {
		c.Campaign.CustomRunner = defaultCustomRunner
	}
	if c.Campaign.CustomScriptPath == "" {
		c.Campaign.CustomScriptPath = defaultCustomScriptPath
	}
	if c.Campaign.CleanupCommand == "" {
		c.Campaign.CleanupCommand = defaultCleanupCommand
	}
	if c.Timeouts.Command == 0 {
		c.Timeouts.Command = defaultCommandTimeout
	}
	if c.Timeouts.Bulk == 0 {
		c.Timeouts.Bulk = defaultBulkTimeout
	}
	if c.Demo.UnitDuration == 0 {
		c.Demo.UnitDuration = defaultDemoUnitDuration
	}
	if c.Server.Listener.Addr == "" {
		c.Server.Listener.Addr = defaultListenAddr
	}
	if c.Monitoring.MetricsPrefix == "" {
		c.Monitoring.MetricsPrefix = defaultMetricsPrefix
	}
	if c.Monitoring.JobName == "" {
		c.Monitoring.JobName = defaultJobName
	}
	// Set logging defaults
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	if c.Logging.Output == "" {
		c.Logging.Output = defaultLogOutput
	}
}

// Redacted returns a copy of the config that is safe to show to clients.
func (c *Config) Redacted() *Config {
	out := *c
	if u, err := url.Parse(out.Monitoring.VictoriaMetricsURL); err == nil && u.User != nil {
		if _, ok := u.User.Password(); ok {
			u.User = url.UserPassword(u.User.Username(), redactedValue)
			out.Monitoring.VictoriaMetricsURL = u.String()
		}
	}
	if out.Remote.KeyPath != "" {
		out.Remote.KeyPath = redactedValue
	}
	return &out
}

// IsLocal reports whether campaign commands run on this machine.
func (c *Config) IsLocal() bool {
	return c.Remote.Host == LocalHost
}

// LoadConfig reads the YAML config file at path, applies the overrides and
// returns the validated result. An empty path yields a config built from
// defaults and overrides only.
func LoadConfig(path string, overrides Overrides) (*Config, error) {
	var cfg Config
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open config file %s: %w", path, err)
		}
		defer f.Close()

		dec := yaml.NewDecoder(f)
		if err := dec.Decode(&cfg); err != nil {
			return nil, fmt.Errorf("failed to decode YAML config: %w", err)
		}
	}

	if err := overrides.Apply(&cfg); err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
