package pipeline

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/lead-enrich/internal/cache"
	"github.com/sells-group/lead-enrich/internal/model"
)

// stageDef describes one cache-backed enrichment stage.
type stageDef[V any] struct {
	name     string
	store    cache.Store[V]
	governor *Governor

	// needs selects the leads the stage applies to.
	needs func(l *model.Lead) bool
	// key is the cache key for a lead; "" skips the lead.
	key func(l *model.Lead) string
	// lookup performs the network call on a cache miss.
	lookup func(ctx context.Context, l *model.Lead) model.Lookup[V]
	// apply sets empty fields on l from v and returns what changed.
	apply func(l *model.Lead, v V) model.Enrichment
}

// stageResult counts what a stage did.
type stageResult struct {
	Candidates int
	Processed  int
	CacheHits  int
	Lookups    int
	Found      int
	Failed     int
	Updated    int
}

// runStage walks leads in order. Every key is looked up at most once: a
// cached key (even an empty value) never reaches the network again, and a
// failed lookup is cached as empty. Every CheckpointEvery processed leads
// the cache is flushed and pending fills are committed; a final checkpoint
// runs on the way out, also after cancellation.
func runStage[V any](ctx context.Context, p *Pipeline, def stageDef[V], leads []model.Lead) (res stageResult, err error) {
	c, err := cache.Open(ctx, def.store)
	if err != nil {
		return res, eris.Wrapf(err, "pipeline: %s: open cache", def.name)
	}

	var pending []model.Fill
	checkpoint := func(ctx context.Context) error {
		if err := c.Flush(ctx); err != nil {
			return eris.Wrapf(err, "pipeline: %s: flush cache", def.name)
		}
		if len(pending) == 0 {
			return nil
		}
		n, err := p.store.FillLeads(ctx, pending)
		if err != nil {
			return eris.Wrapf(err, "pipeline: %s: commit %d leads", def.name, len(pending))
		}
		res.Updated += n
		pending = pending[:0]
		return nil
	}
	defer func() {
		if cpErr := checkpoint(context.WithoutCancel(ctx)); cpErr != nil && err == nil {
			err = cpErr
		}
	}()

	for i := range leads {
		l := &leads[i]
		if !def.needs(l) {
			continue
		}
		key := def.key(l)
		if key == "" {
			continue
		}
		res.Candidates++

		v, hit := c.Get(key)
		if hit {
			res.CacheHits++
			p.opts.Metrics.lookup(def.name, outcomeCacheHit)
		} else {
			if err := def.governor.Wait(ctx); err != nil {
				return res, eris.Wrapf(err, "pipeline: %s: wait", def.name)
			}
			out := def.lookup(ctx, l)
			if out.Status == model.LookupFailed && ctx.Err() != nil {
				// Interrupted, not a real answer; retry on the next run.
				return res, eris.Wrapf(ctx.Err(), "pipeline: %s: lookup", def.name)
			}
			res.Lookups++
			switch out.Status {
			case model.LookupFound:
				res.Found++
				p.opts.Metrics.lookup(def.name, outcomeFound)
			case model.LookupFailed:
				res.Failed++
				p.opts.Metrics.lookup(def.name, outcomeFailed)
				zap.L().Debug("pipeline: lookup failed",
					zap.String("stage", def.name),
					zap.String("key", key),
					zap.Error(out.Err),
				)
			default:
				p.opts.Metrics.lookup(def.name, outcomeEmpty)
			}
			v = out.Value
			c.Put(key, v)
		}

		if e := def.apply(l, v); !e.Empty() {
			pending = append(pending, model.Fill{LeadID: l.ID, Enrichment: e})
		}
		res.Processed++

		if res.Processed%p.opts.CheckpointEvery == 0 {
			if err := checkpoint(ctx); err != nil {
				return res, err
			}
		}
	}
	return res, nil
}
