// Package monitoring snapshots enrichment coverage and list health, and
// alerts when lists fail.
package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/lead-enrich/internal/cache"
	"github.com/sells-group/lead-enrich/internal/model"
)

// Snapshot holds a point-in-time view of enrichment health.
type Snapshot struct {
	// Lead coverage across the whole store.
	Leads       int                `json:"leads" yaml:"leads"`
	Coverage    map[string]int     `json:"coverage" yaml:"coverage"`
	CoveragePct map[string]float64 `json:"coverage_pct" yaml:"coverage_pct"`

	// Lists by enrichment status.
	Lists          int                            `json:"lists" yaml:"lists"`
	ListsByStatus  map[model.EnrichmentStatus]int `json:"lists_by_status" yaml:"lists_by_status"`
	ListsEnriching int                            `json:"lists_enriching" yaml:"lists_enriching"`
	ListsFailed    int                            `json:"lists_failed" yaml:"lists_failed"`

	// Cache sizes; nil when no cache set was given.
	Cache *cache.Stats `json:"cache,omitempty" yaml:"cache,omitempty"`

	CollectedAt time.Time `json:"collected_at" yaml:"collected_at"`
}

// Idle reports whether no list is queued or running.
func (s *Snapshot) Idle() bool {
	return s.ListsEnriching == 0 && s.ListsByStatus[model.StatusPending] == 0
}

// Source is the part of the lead store the collector reads.
type Source interface {
	Coverage(ctx context.Context) (model.Coverage, error)
	ListLists(ctx context.Context) ([]model.List, error)
}

// CacheStatter reports cache sizes.
type CacheStatter interface {
	Stats(ctx context.Context) (cache.Stats, error)
}

// Collector gathers snapshots from the lead store and the caches.
type Collector struct {
	source Source
	caches CacheStatter
}

// NewCollector creates a collector. caches may be nil.
func NewCollector(src Source, caches CacheStatter) *Collector {
	return &Collector{source: src, caches: caches}
}

// Collect gathers a snapshot.
func (c *Collector) Collect(ctx context.Context) (*Snapshot, error) {
	snap := &Snapshot{
		Coverage:      make(map[string]int),
		CoveragePct:   make(map[string]float64),
		ListsByStatus: make(map[model.EnrichmentStatus]int),
		CollectedAt:   time.Now().UTC(),
	}

	cov, err := c.source.Coverage(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: coverage")
	}
	snap.Leads = cov.Leads
	for _, col := range model.EnrichmentColumns() {
		n := cov.Columns[col]
		snap.Coverage[col] = n
		if cov.Leads > 0 {
			snap.CoveragePct[col] = float64(n) / float64(cov.Leads)
		} else {
			snap.CoveragePct[col] = 0
		}
	}

	lists, err := c.source.ListLists(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list lists")
	}
	snap.Lists = len(lists)
	for _, l := range lists {
		snap.ListsByStatus[l.EnrichmentStatus]++
		switch {
		case l.EnrichmentStatus.IsEnriching():
			snap.ListsEnriching++
		case l.EnrichmentStatus == model.StatusError:
			snap.ListsFailed++
		}
	}

	if c.caches != nil {
		st, err := c.caches.Stats(ctx)
		if err != nil {
			return nil, eris.Wrap(err, "monitoring: cache stats")
		}
		snap.Cache = &st
	}

	return snap, nil
}
