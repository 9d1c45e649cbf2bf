package metrics

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/golang/protobuf/proto"
	"github.com/golang/snappy"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/prometheus/prompb"
)

const (
	// DefaultTimeout bounds a single Flush.
	DefaultTimeout = 30 * time.Second

	writePath = "/api/v1/write"
)

// PushConfig configures a PushRegistry.
type PushConfig struct {
	// URL is the base URL of the remote write endpoint, e.g. "http://vm:8428".
	URL string
	// Prefix is prepended to every metric name, followed by an underscore.
	Prefix   string
	Job      string
	Instance string
	// Timeout defaults to DefaultTimeout.
	Timeout time.Duration
	// Now stamps samples. Defaults to time.Now.
	Now func() time.Time
}

// PushRegistry implements Registry for one-shot processes such as the CLI.
// Values are buffered in memory and sent as a single remote write request by
// Flush.
type PushRegistry struct {
	url      string
	client   *http.Client
	prefix   string
	job      string
	instance string
	timeout  time.Duration
	now      func() time.Time

	mu     sync.Mutex
	series map[string]*series
}

type series struct {
	name   string
	labels map[string]string
	value  float64
}

// NewPushRegistry creates a PushRegistry writing to cfg.URL.
func NewPushRegistry(cfg PushConfig) *PushRegistry {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &PushRegistry{
		url:      strings.TrimRight(cfg.URL, "/") + writePath,
		client:   &http.Client{Timeout: timeout},
		prefix:   cfg.Prefix,
		job:      cfg.Job,
		instance: cfg.Instance,
		timeout:  timeout,
		now:      now,
		series:   make(map[string]*series),
	}
}

func (r *PushRegistry) NewGauge(opts prometheus.GaugeOpts) (Gauge, error) {
	return &pushGauge{reg: r, name: opts.Name}, nil
}

func (r *PushRegistry) NewGaugeVec(opts prometheus.GaugeOpts, labels []string) (GaugeVec, error) {
	return &pushGaugeVec{reg: r, name: opts.Name, labels: labels}, nil
}

func (r *PushRegistry) NewCounter(opts prometheus.CounterOpts) (Counter, error) {
	return &pushCounter{reg: r, name: opts.Name}, nil
}

func (r *PushRegistry) NewCounterVec(opts prometheus.CounterOpts, labels []string) (CounterVec, error) {
	return &pushCounterVec{reg: r, name: opts.Name, labels: labels}, nil
}

// Pending returns the number of buffered series.
func (r *PushRegistry) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.series)
}

// Flush sends every buffered series in one write request. The buffer is kept
// so a later Flush resends the latest values.
func (r *PushRegistry) Flush(ctx context.Context) error {
	req := r.writeRequest()
	if len(req.Timeseries) == 0 {
		return nil
	}

	data, err := proto.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshaling write request: %w", err)
	}
	compressed := snappy.Encode(nil, data)

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(compressed))
	if err != nil {
		return fmt.Errorf("creating HTTP request: %w", err)
	}
	httpReq.Header.Set("Content-Encoding", "snappy")
	httpReq.Header.Set("Content-Type", "application/x-protobuf")
	httpReq.Header.Set("X-Prometheus-Remote-Write-Version", "0.1.0")

	resp, err := r.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}

func (r *PushRegistry) set(name string, labels map[string]string, value float64) {
	key := seriesKey(name, labels)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.series[key] = &series{name: name, labels: labels, value: value}
}

func (r *PushRegistry) add(name string, labels map[string]string, delta float64) {
	key := seriesKey(name, labels)
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.series[key]
	if !ok {
		s = &series{name: name, labels: labels}
		r.series[key] = s
	}
	s.value += delta
}

func (r *PushRegistry) writeRequest() *prompb.WriteRequest {
	r.mu.Lock()
	defer r.mu.Unlock()

	keys := make([]string, 0, len(r.series))
	for k := range r.series {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	ts := r.now().UnixMilli()
	req := &prompb.WriteRequest{Timeseries: make([]prompb.TimeSeries, 0, len(keys))}
	for _, k := range keys {
		s := r.series[k]
		req.Timeseries = append(req.Timeseries, prompb.TimeSeries{
			Labels:  r.labels(s),
			Samples: []prompb.Sample{{Value: s.value, Timestamp: ts}},
		})
	}
	return req
}

func (r *PushRegistry) labels(s *series) []prompb.Label {
	name := s.name
	if r.prefix != "" {
		name = r.prefix + "_" + name
	}
	out := make([]prompb.Label, 0, len(s.labels)+3)
	out = append(out, prompb.Label{Name: "__name__", Value: name})
	if r.job != "" {
		out = append(out, prompb.Label{Name: "job", Value: r.job})
	}
	if r.instance != "" {
		out = append(out, prompb.Label{Name: "instance", Value: r.instance})
	}

	names := make([]string, 0, len(s.labels))
	for k := range s.labels {
		names = append(names, k)
	}
	sort.Strings(names)
	for _, k := range names {
		out = append(out, prompb.Label{Name: k, Value: s.labels[k]})
	}
	return out
}

// seriesKey is stable regardless of map iteration order.
func seriesKey(name string, labels map[string]string) string {
	names := make([]string, 0, len(labels))
	for k := range labels {
		names = append(names, k)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString(name)
	for _, k := range names {
		b.WriteString("," + k + "=" + labels[k])
	}
	return b.String()
}

type pushGauge struct {
	reg    *PushRegistry
	name   string
	labels map[string]string
}

func (g *pushGauge) Set(v float64) {
	g.reg.set(g.name, g.labels, v)
}

type pushGaugeVec struct {
	reg    *PushRegistry
	name   string
	labels []string
}

func (g *pushGaugeVec) With(labels prometheus.Labels) Gauge {
	return &pushGauge{reg: g.reg, name: g.name, labels: labels}
}

type pushCounter struct {
	reg    *PushRegistry
	name   string
	labels map[string]string
}

func (c *pushCounter) Inc() {
	c.Add(1)
}

func (c *pushCounter) Add(v float64) {
	if v < 0 {
		panic("counter cannot decrease in value")
	}
	c.reg.add(c.name, c.labels, v)
}

type pushCounterVec struct {
	reg    *PushRegistry
	name   string
	labels []string
}

func (c *pushCounterVec) With(labels prometheus.Labels) Counter {
	return &pushCounter{reg: c.reg, name: c.name, labels: labels}
}
