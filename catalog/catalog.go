// Package catalog resolves the operator catalog index images a campaign runs
// against.
//
// Each catalog is resolved through three layers, first hit wins: an explicit
// override from configuration, discovery on the cluster through oc, and a
// hardcoded fallback matching the default campaign script.
package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/blang/semver/v4"
	"github.com/tidwall/gjson"

	"github.com/nomis52/certwatch/campaign"
	"github.com/nomis52/certwatch/clients/sshclient"
)

// Kind names one of the two catalogs a campaign can draw units from.
type Kind string

const (
	RedHat    Kind = "redhat"
	Certified Kind = "certified"
)

// Source records which layer produced an index.
type Source string

const (
	SourceOverride   Source = "override"
	SourceDiscovered Source = "discovered"
	SourceFallback   Source = "fallback"
)

const (
	FallbackRedHatIndex    = "registry.redhat.io/redhat/redhat-operator-index:v4.20"
	FallbackCertifiedIndex = "registry.redhat.io/redhat/certified-operator-index:v4.20"

	marketplaceNamespace = "openshift-marketplace"
	defaultTimeout       = 30 * time.Second

	// FailureTTL is how long a failed discovery is remembered before oc is
	// tried again.
	FailureTTL = time.Minute
)

var catalogSources = map[Kind]string{
	RedHat:    "redhat-operators",
	Certified: "certified-operators",
}

var indexRepos = map[Kind]string{
	RedHat:    "registry.redhat.io/redhat/redhat-operator-index",
	Certified: "registry.redhat.io/redhat/certified-operator-index",
}

// Resolution is a resolved index and the layer it came from.
type Resolution struct {
	Index  string `json:"index"`
	Source Source `json:"source"`
}

// Catalogs holds both resolved catalogs.
type Catalogs struct {
	RedHat    Resolution `json:"redhat"`
	Certified Resolution `json:"certified"`
}

// Get returns the resolution for kind.
func (c Catalogs) Get(kind Kind) Resolution {
	if kind == Certified {
		return c.Certified
	}
	return c.RedHat
}

// Resolver resolves catalog indexes. Successful discovery is cached for the
// lifetime of the Resolver, a failure for FailureTTL. The lock is not held
// while oc runs.
type Resolver struct {
	runner     sshclient.Runner
	overrides  map[Kind]string
	kubeconfig string
	timeout    time.Duration
	logger     *slog.Logger
	now        func() time.Time

	mu         sync.Mutex
	discovered map[Kind]string
	failedAt   map[Kind]time.Time
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithRunner enables discovery through oc on the campaign host.
func WithRunner(r sshclient.Runner) Option {
	return func(res *Resolver) {
		res.runner = r
	}
}

// WithOverride pins the index for kind. Empty values are ignored.
func WithOverride(kind Kind, index string) Option {
	return func(res *Resolver) {
		if index = strings.TrimSpace(index); index != "" {
			res.overrides[kind] = index
		}
	}
}

// WithKubeconfig sets the KUBECONFIG used by discovery commands.
func WithKubeconfig(path string) Option {
	return func(res *Resolver) {
		res.kubeconfig = path
	}
}

// WithTimeout bounds each discovery command.
func WithTimeout(d time.Duration) Option {
	return func(res *Resolver) {
		res.timeout = d
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(res *Resolver) {
		res.logger = logger
	}
}

// NewResolver creates a Resolver. Without WithRunner only overrides and fallbacks
// are used.
func NewResolver(opts ...Option) *Resolver {
	r := &Resolver{
		overrides: make(map[Kind]string),
		timeout:   defaultTimeout,
		logger:    slog.Default(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve resolves both catalogs. It never fails: discovery errors are logged and
// the fallback is used.
func (r *Resolver) Resolve(ctx context.Context) Catalogs {
	return Catalogs{
		RedHat:    r.resolve(ctx, RedHat),
		Certified: r.resolve(ctx, Certified),
	}
}

// Index maps an alias to an index image. The empty string and "redhat" mean the
// Red Hat catalog, "certified" the certified catalog; anything else is taken to
// be an index image reference and returned unchanged.
func (r *Resolver) Index(ctx context.Context, alias string) string {
	switch strings.ToLower(strings.TrimSpace(alias)) {
	case "", string(RedHat):
		return r.resolve(ctx, RedHat).Index
	case string(Certified):
		return r.resolve(ctx, Certified).Index
	default:
		return alias
	}
}

// ResolveSelection replaces catalog aliases in sel with index images.
func (r *Resolver) ResolveSelection(ctx context.Context, sel campaign.Selection) campaign.Selection {
	out := campaign.Selection{Catalogs: make([]campaign.CatalogSelection, len(sel.Catalogs))}
	for i, c := range sel.Catalogs {
		out.Catalogs[i] = campaign.CatalogSelection{
			Index: r.Index(ctx, c.Index),
			Units: c.Units,
		}
	}
	return out
}

func (r *Resolver) resolve(ctx context.Context, kind Kind) Resolution {
	if index, ok := r.overrides[kind]; ok {
		return Resolution{Index: index, Source: SourceOverride}
	}
	if index, ok := r.discover(ctx, kind); ok {
		return Resolution{Index: index, Source: SourceDiscovered}
	}
	return Resolution{Index: fallback(kind), Source: SourceFallback}
}

func (r *Resolver) discover(ctx context.Context, kind Kind) (string, bool) {
	if r.runner == nil {
		return "", false
	}

	r.mu.Lock()
	if index, ok := r.discovered[kind]; ok {
		r.mu.Unlock()
		return index, true
	}
	if failed, ok := r.failedAt[kind]; ok && r.now().Sub(failed) < FailureTTL {
		r.mu.Unlock()
		return "", false
	}
	r.mu.Unlock()

	index, err := r.fromCatalogSource(ctx, kind)
	if err != nil || index == "" {
		index, err = r.fromClusterVersion(ctx, kind)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if err != nil {
		if r.failedAt == nil {
			r.failedAt = make(map[Kind]time.Time)
		}
		r.failedAt[kind] = r.now()
		r.logger.Debug("catalog discovery failed", "catalog", kind, "error", err)
		return "", false
	}

	if r.discovered == nil {
		r.discovered = make(map[Kind]string)
	}
	delete(r.failedAt, kind)
	r.discovered[kind] = index
	r.logger.Info("discovered catalog index", "catalog", kind, "index", index)
	return index, true
}

func (r *Resolver) fromCatalogSource(ctx context.Context, kind Kind) (string, error) {
	out, err := r.oc(ctx, "get catalogsource -n "+marketplaceNamespace+" -o json")
	if err != nil {
		return "", err
	}
	return CatalogSourceImage(out, catalogSources[kind]), nil
}

func (r *Resolver) fromClusterVersion(ctx context.Context, kind Kind) (string, error) {
	out, err := r.oc(ctx, "get clusterversion version -o json")
	if err != nil {
		return "", err
	}
	tag, err := VersionTag(gjson.Get(out, "status.desired.version").String())
	if err != nil {
		return "", err
	}
	return indexRepos[kind] + ":" + tag, nil
}

func (r *Resolver) oc(ctx context.Context, args string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	cmd := "oc " + args
	if r.kubeconfig != "" {
		cmd = "KUBECONFIG=" + campaign.ShellQuote(r.kubeconfig) + " " + cmd
	}
	return r.runner.Run(ctx, cmd)
}

// CatalogSourceImage extracts spec.image of the named CatalogSource from the JSON
// output of "oc get catalogsource -o json". It returns "" when absent.
func CatalogSourceImage(listJSON, name string) string {
	if !gjson.Valid(listJSON) {
		return ""
	}
	return gjson.Get(listJSON, fmt.Sprintf(`items.#(metadata.name==%q).spec.image`, name)).String()
}

// VersionTag turns a cluster version such as "4.20.3" into an index tag "v4.20".
func VersionTag(version string) (string, error) {
	if version == "" {
		return "", fmt.Errorf("empty cluster version")
	}
	v, err := semver.ParseTolerant(version)
	if err != nil {
		return "", fmt.Errorf("invalid cluster version %q: %w", version, err)
	}
	return fmt.Sprintf("v%d.%d", v.Major, v.Minor), nil
}

func fallback(kind Kind) string {
	if kind == Certified {
		return FallbackCertifiedIndex
	}
	return FallbackRedHatIndex
}
