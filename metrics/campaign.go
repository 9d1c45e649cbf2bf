package metrics

import (
	"github.com/nomis52/certwatch/campaign"
	"github.com/prometheus/client_golang/prometheus"
)

// CampaignMetrics records campaign status snapshots and evidence fetch
// failures. It works with either Registry implementation.
type CampaignMetrics struct {
	active    Gauge
	total     Gauge
	completed Gauge
	remaining Gauge
	phase     GaugeVec
	failures  CounterVec
}

// NewCampaignMetrics registers the campaign metrics with reg.
func NewCampaignMetrics(reg Registry) (*CampaignMetrics, error) {
	m := &CampaignMetrics{}
	gauges := []struct {
		dst  *Gauge
		name string
		help string
	}{
		{&m.active, "campaign_active", "1 while a campaign session exists on the host."},
		{&m.total, "campaign_units_total", "Units in the current campaign manifest."},
		{&m.completed, "campaign_units_completed", "Units of the current campaign with a result directory."},
		{&m.remaining, "campaign_units_remaining", "Units of the current campaign still to run."},
	}
	for _, g := range gauges {
		gauge, err := reg.NewGauge(prometheus.GaugeOpts{Name: g.name, Help: g.help})
		if err != nil {
			return nil, err
		}
		*g.dst = gauge
	}

	var err error
	m.phase, err = reg.NewGaugeVec(prometheus.GaugeOpts{
		Name: "campaign_phase",
		Help: "1 for the phase the live campaign is in, 0 otherwise.",
	}, []string{"phase"})
	if err != nil {
		return nil, err
	}

	m.failures, err = reg.NewCounterVec(prometheus.CounterOpts{
		Name: "evidence_failures_total",
		Help: "Remote evidence fetches that failed, by kind.",
	}, []string{"kind"})
	if err != nil {
		return nil, err
	}
	return m, nil
}

// Observe updates the gauges from a status snapshot.
func (m *CampaignMetrics) Observe(s campaign.Status) {
	m.active.Set(boolToFloat(s.Active))
	m.total.Set(float64(s.Total))
	m.completed.Set(float64(s.Completed))
	m.remaining.Set(float64(s.Remaining))
	for p := campaign.PhaseIdle; p <= campaign.PhaseProcessing; p++ {
		m.phase.With(prometheus.Labels{"phase": p.String()}).Set(boolToFloat(p == s.Phase))
	}
}

// EvidenceFailure counts one failed fetch.
func (m *CampaignMetrics) EvidenceFailure(kind string) {
	m.failures.With(prometheus.Labels{"kind": kind}).Inc()
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
