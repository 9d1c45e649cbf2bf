package config

import (
	"fmt"
	"strconv"

	"github.com/jessevdk/go-flags"
)

// Overrides are settings taken from flags or the environment. They win over the
// config file. Empty values leave the file setting alone.
type Overrides struct {
	RemoteHost     string `long:"remote-host" env:"REMOTE_HOST" description:"host the campaign runs on"`
	RemoteBaseDir  string `long:"remote-base-dir" env:"REMOTE_BASE_DIR" description:"campaign working directory on the remote host"`
	ReportDir      string `long:"report-dir" env:"REPORT_DIR" description:"directory holding report_* run directories"`
	SSHKeyPath     string `long:"ssh-key" env:"SSH_KEY_PATH" description:"private key for the remote host"`
	SSHUser        string `long:"ssh-user" env:"SSH_USER" description:"remote login user"`
	RedHatIndex    string `long:"redhat-index" env:"REDHAT_INDEX" description:"Red Hat operator catalog index"`
	CertifiedIndex string `long:"certified-index" env:"CERTIFIED_INDEX" description:"certified operator catalog index"`
	Kubeconfig     string `long:"kubeconfig" env:"KUBECONFIG" description:"kubeconfig used on the remote host"`
	DemoMode       string `long:"demo" env:"DEMO_MODE" description:"serve a simulated campaign (true/false)"`
	Port           string `long:"port" env:"PORT" description:"HTTP listen port"`
}

// ParseOverrides reads overrides from args and the environment. Arguments it
// does not know are ignored.
func ParseOverrides(args []string) (Overrides, error) {
	var o Overrides
	parser := flags.NewParser(&o, flags.IgnoreUnknown)
	if _, err := parser.ParseArgs(args); err != nil {
		return Overrides{}, fmt.Errorf("failed to parse overrides: %w", err)
	}
	return o, nil
}

// Apply copies the set overrides into cfg.
func (o Overrides) Apply(cfg *Config) error {
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&cfg.Remote.Host, o.RemoteHost)
	set(&cfg.Remote.KeyPath, o.SSHKeyPath)
	set(&cfg.Remote.User, o.SSHUser)
	set(&cfg.Campaign.BaseDir, o.RemoteBaseDir)
	set(&cfg.Campaign.ReportDir, o.ReportDir)
	set(&cfg.Campaign.Kubeconfig, o.Kubeconfig)
	set(&cfg.Catalogs.RedHatIndex, o.RedHatIndex)
	set(&cfg.Catalogs.CertifiedIndex, o.CertifiedIndex)

	if addr := o.ListenAddr(); addr != "" {
		cfg.Server.Listener.Addr = addr
	}

	if o.DemoMode != "" {
		demo, err := strconv.ParseBool(o.DemoMode)
		if err != nil {
			return fmt.Errorf("invalid DEMO_MODE %q: %w", o.DemoMode, err)
		}
		cfg.Demo.Enabled = demo
	}
	return nil
}

// ListenAddr returns the listen address for the port override, or "" when unset.
func (o Overrides) ListenAddr() string {
	if o.Port == "" {
		return ""
	}
	return ":" + o.Port
}
