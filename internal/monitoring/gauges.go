package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/sells-group/lead-enrich/internal/cache"
	"github.com/sells-group/lead-enrich/internal/model"
)

// Gauges exposes the latest snapshot to Prometheus.
type Gauges struct {
	leads    prometheus.Gauge
	coverage *prometheus.GaugeVec
	lists    *prometheus.GaugeVec
	cache    *prometheus.GaugeVec
}

// NewGauges registers the snapshot gauges with reg.
func NewGauges(reg prometheus.Registerer) *Gauges {
	f := promauto.With(reg)
	return &Gauges{
		leads: f.NewGauge(prometheus.GaugeOpts{
			Name: "enrich_leads",
			Help: "Leads in the store",
		}),
		coverage: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "enrich_coverage_leads",
			Help: "Leads with a non-empty enrichment column",
		}, []string{"column"}),
		lists: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "enrich_lists",
			Help: "Lists by enrichment status",
		}, []string{"status"}),
		cache: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "enrich_cache_keys",
			Help: "Keys held per cache kind",
		}, []string{"kind"}),
	}
}

// Observe sets every gauge from snap.
func (g *Gauges) Observe(snap *Snapshot) {
	if g == nil || snap == nil {
		return
	}
	g.leads.Set(float64(snap.Leads))
	for col, n := range snap.Coverage {
		g.coverage.WithLabelValues(col).Set(float64(n))
	}
	for _, s := range model.AllStatuses() {
		g.lists.WithLabelValues(string(s)).Set(float64(snap.ListsByStatus[s]))
	}
	if snap.Cache != nil {
		g.cache.WithLabelValues(cache.KindURL).Set(float64(snap.Cache.URLs))
		g.cache.WithLabelValues(cache.KindSocial).Set(float64(snap.Cache.Socials))
		g.cache.WithLabelValues(cache.KindEmail).Set(float64(snap.Cache.Emails))
	}
}
