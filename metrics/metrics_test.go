package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang/protobuf/proto"
	"github.com/golang/snappy"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/prometheus/prompb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// receiver is a remote write endpoint that records decoded requests.
type receiver struct {
	server   *httptest.Server
	requests chan prompb.WriteRequest
	status   int
}

func newReceiver(t *testing.T, status int) *receiver {
	t.Helper()
	r := &receiver{requests: make(chan prompb.WriteRequest, 4), status: status}
	r.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		assert.Equal(t, writePath, req.URL.Path)
		assert.Equal(t, "snappy", req.Header.Get("Content-Encoding"))
		assert.Equal(t, "application/x-protobuf", req.Header.Get("Content-Type"))
		assert.Equal(t, "0.1.0", req.Header.Get("X-Prometheus-Remote-Write-Version"))

		body, err := io.ReadAll(req.Body)
		require.NoError(t, err)
		decoded, err := snappy.Decode(nil, body)
		require.NoError(t, err)

		var wr prompb.WriteRequest
		require.NoError(t, proto.Unmarshal(decoded, &wr))
		r.requests <- wr

		w.WriteHeader(r.status)
		if r.status >= 300 {
			_, _ = w.Write([]byte("rejected\n"))
		}
	}))
	t.Cleanup(r.server.Close)
	return r
}

func labelValue(labels []prompb.Label, name string) string {
	for _, l := range labels {
		if l.Name == name {
			return l.Value
		}
	}
	return ""
}

func fixedNow() time.Time {
	return time.Date(2025, 11, 24, 12, 45, 32, 0, time.UTC)
}

func TestPushRegistry_FlushSendsBufferedSeries(t *testing.T) {
	rcv := newReceiver(t, http.StatusNoContent)
	reg := NewPushRegistry(PushConfig{
		URL:      rcv.server.URL + "/",
		Prefix:   "certwatch",
		Job:      "certwatch",
		Instance: "bastion",
		Now:      fixedNow,
	})

	gauge, err := reg.NewGauge(prometheus.GaugeOpts{Name: "campaign_units_total"})
	require.NoError(t, err)
	gauge.Set(10)
	gauge.Set(22)

	counters, err := reg.NewCounterVec(prometheus.CounterOpts{Name: "evidence_failures_total"}, []string{"kind"})
	require.NoError(t, err)
	counters.With(prometheus.Labels{"kind": "timeout"}).Inc()
	counters.With(prometheus.Labels{"kind": "timeout"}).Add(2)
	counters.With(prometheus.Labels{"kind": "exit"}).Inc()

	assert.Equal(t, 3, reg.Pending())
	require.NoError(t, reg.Flush(context.Background()))

	wr := <-rcv.requests
	require.Len(t, wr.Timeseries, 3)

	got := map[string]float64{}
	for _, ts := range wr.Timeseries {
		assert.Equal(t, "certwatch", labelValue(ts.Labels, "job"))
		assert.Equal(t, "bastion", labelValue(ts.Labels, "instance"))
		require.Len(t, ts.Samples, 1)
		assert.Equal(t, fixedNow().UnixMilli(), ts.Samples[0].Timestamp)
		got[labelValue(ts.Labels, "__name__")+"/"+labelValue(ts.Labels, "kind")] = ts.Samples[0].Value
	}
	assert.Equal(t, map[string]float64{
		"certwatch_campaign_units_total/":           22,
		"certwatch_evidence_failures_total/timeout": 3,
		"certwatch_evidence_failures_total/exit":    1,
	}, got)
}

func TestPushRegistry_GaugeVecLabelsAreSorted(t *testing.T) {
	rcv := newReceiver(t, http.StatusOK)
	reg := NewPushRegistry(PushConfig{URL: rcv.server.URL})

	vec, err := reg.NewGaugeVec(prometheus.GaugeOpts{Name: "campaign_phase"}, []string{"phase", "host"})
	require.NoError(t, err)
	vec.With(prometheus.Labels{"phase": "Installing", "host": "bastion"}).Set(1)

	require.NoError(t, reg.Flush(context.Background()))
	wr := <-rcv.requests
	require.Len(t, wr.Timeseries, 1)
	assert.Equal(t, []prompb.Label{
		{Name: "__name__", Value: "campaign_phase"},
		{Name: "host", Value: "bastion"},
		{Name: "phase", Value: "Installing"},
	}, wr.Timeseries[0].Labels)
}

func TestPushRegistry_FlushEmptyIsNoop(t *testing.T) {
	reg := NewPushRegistry(PushConfig{URL: "http://127.0.0.1:1"})
	assert.NoError(t, reg.Flush(context.Background()))
}

func TestPushRegistry_FlushErrors(t *testing.T) {
	t.Run("non 2xx status", func(t *testing.T) {
		rcv := newReceiver(t, http.StatusBadRequest)
		reg := NewPushRegistry(PushConfig{URL: rcv.server.URL})
		g, err := reg.NewGauge(prometheus.GaugeOpts{Name: "campaign_active"})
		require.NoError(t, err)
		g.Set(1)

		err = reg.Flush(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unexpected status 400: rejected")
	})

	t.Run("unreachable endpoint", func(t *testing.T) {
		reg := NewPushRegistry(PushConfig{URL: "http://127.0.0.1:1", Timeout: time.Second})
		g, err := reg.NewGauge(prometheus.GaugeOpts{Name: "campaign_active"})
		require.NoError(t, err)
		g.Set(1)

		err = reg.Flush(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "sending request")
	})
}

func TestPushCounter_NegativeAddPanics(t *testing.T) {
	reg := NewPushRegistry(PushConfig{URL: "http://localhost"})
	c, err := reg.NewCounter(prometheus.CounterOpts{Name: "c"})
	require.NoError(t, err)
	assert.Panics(t, func() { c.Add(-1) })
}

func TestSeriesKey(t *testing.T) {
	a := seriesKey("m", map[string]string{"a": "1", "b": "2"})
	b := seriesKey("m", map[string]string{"b": "2", "a": "1"})
	assert.Equal(t, a, b)
	assert.Equal(t, "m,a=1,b=2", a)
	assert.Equal(t, "m", seriesKey("m", nil))
}

func scrape(t *testing.T, reg *ScrapeRegistry) string {
	t.Helper()
	rec := httptest.NewRecorder()
	reg.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	return rec.Body.String()
}

func TestScrapeRegistry(t *testing.T) {
	reg, err := NewScrapeRegistry()
	require.NoError(t, err)

	g, err := reg.NewGauge(prometheus.GaugeOpts{Name: "campaign_units_total", Help: "units"})
	require.NoError(t, err)
	g.Set(22)

	cv, err := reg.NewCounterVec(prometheus.CounterOpts{Name: "evidence_failures_total", Help: "failures"}, []string{"kind"})
	require.NoError(t, err)
	cv.With(prometheus.Labels{"kind": "connection"}).Add(2)

	body := scrape(t, reg)
	assert.Contains(t, body, "campaign_units_total 22")
	assert.Contains(t, body, `evidence_failures_total{kind="connection"} 2`)
	assert.Contains(t, body, "go_goroutines")

	families, err := reg.Gatherer().Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestScrapeRegistry_DuplicateRegistration(t *testing.T) {
	reg, err := NewScrapeRegistry()
	require.NoError(t, err)

	_, err = reg.NewGauge(prometheus.GaugeOpts{Name: "dup", Help: "x"})
	require.NoError(t, err)
	_, err = reg.NewGauge(prometheus.GaugeOpts{Name: "dup", Help: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `registering gauge "dup"`)
}
