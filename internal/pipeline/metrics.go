package pipeline

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Lookup outcome labels. Cache hits are counted alongside network outcomes.
const (
	outcomeCacheHit = "cache_hit"
	outcomeFound    = "found"
	outcomeEmpty    = "empty"
	outcomeFailed   = "failed"
)

// Metrics holds the pipeline's Prometheus collectors. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	lookups       *prometheus.CounterVec
	leadsUpdated  *prometheus.CounterVec
	runs          *prometheus.CounterVec
	stageDuration *prometheus.HistogramVec
	queueDepth    prometheus.Gauge
}

// NewMetrics registers the pipeline collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		lookups: f.NewCounterVec(prometheus.CounterOpts{
			Name: "enrich_lookups_total",
			Help: "Lookups per stage by outcome",
		}, []string{"stage", "outcome"}),
		leadsUpdated: f.NewCounterVec(prometheus.CounterOpts{
			Name: "enrich_leads_updated_total",
			Help: "Leads that received at least one new value",
		}, []string{"stage"}),
		runs: f.NewCounterVec(prometheus.CounterOpts{
			Name: "enrich_runs_total",
			Help: "Finished enrichment runs by final status",
		}, []string{"status"}),
		stageDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "enrich_stage_duration_seconds",
			Help:    "Wall time of each stage",
			Buckets: prometheus.ExponentialBuckets(1, 2, 14),
		}, []string{"stage"}),
		queueDepth: f.NewGauge(prometheus.GaugeOpts{
			Name: "enrich_queue_depth",
			Help: "Lists waiting for a worker",
		}),
	}
}

func (m *Metrics) lookup(stage, outcome string) {
	if m == nil {
		return
	}
	m.lookups.WithLabelValues(stage, outcome).Inc()
}

func (m *Metrics) updated(stage string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.leadsUpdated.WithLabelValues(stage).Add(float64(n))
}

func (m *Metrics) run(status string) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(status).Inc()
}

func (m *Metrics) stage(stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (m *Metrics) queue(depth int) {
	if m == nil {
		return
	}
	m.queueDepth.Set(float64(depth))
}
