package pipeline

import (
	"context"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/lead-enrich/internal/model"
	"github.com/sells-group/lead-enrich/internal/store"
)

// Runner errors returned by Submit.
var (
	ErrQueueFull     = eris.New("pipeline: queue full")
	ErrAlreadyQueued = eris.New("pipeline: list already queued")
)

// Enricher runs the enrichment of one list to completion.
type Enricher interface {
	Run(ctx context.Context, listID int64)
}

// Runner is a bounded job queue drained by a fixed number of workers. A
// list is never queued or running twice at once in this process.
type Runner struct {
	enricher Enricher
	store    store.Store
	workers  int
	metrics  *Metrics

	jobs chan int64
	g    *errgroup.Group

	mu       sync.Mutex
	inflight map[int64]bool
}

// NewRunner creates a Runner. Start launches its workers.
func NewRunner(e Enricher, st store.Store, workers, capacity int, m *Metrics) *Runner {
	if workers < 1 {
		workers = 1
	}
	if capacity < 1 {
		capacity = 1
	}
	return &Runner{
		enricher: e,
		store:    st,
		workers:  workers,
		metrics:  m,
		jobs:     make(chan int64, capacity),
		inflight: make(map[int64]bool),
	}
}

// Start launches the workers. They stop when ctx is done; a run in
// progress sees the same ctx and winds down through its own checkpoint.
func (r *Runner) Start(ctx context.Context) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)
	for i := 0; i < r.workers; i++ {
		g.Go(func() error {
			for {
				select {
				case <-gctx.Done():
					return nil
				case id := <-r.jobs:
					r.metrics.queue(len(r.jobs))
					r.enricher.Run(gctx, id)
					r.finish(id)
				}
			}
		})
	}
	r.g = g
}

// Wait blocks until every worker has returned.
func (r *Runner) Wait() error {
	if r.g == nil {
		return nil
	}
	return r.g.Wait()
}

// Submit marks the list pending and queues it. It never blocks.
func (r *Runner) Submit(ctx context.Context, listID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.inflight[listID] {
		return eris.Wrapf(ErrAlreadyQueued, "list %d", listID)
	}
	// Only Submit sends, under mu, so a free slot stays free until the send.
	if len(r.jobs) == cap(r.jobs) {
		return eris.Wrapf(ErrQueueFull, "list %d", listID)
	}
	if err := r.store.SetListStatus(ctx, listID, model.StatusPending); err != nil {
		return eris.Wrapf(err, "pipeline: mark list %d pending", listID)
	}
	r.inflight[listID] = true
	r.jobs <- listID
	r.metrics.queue(len(r.jobs))
	return nil
}

// ResumeInterrupted re-queues lists a previous process left pending or
// mid-run. It returns how many were queued.
func (r *Runner) ResumeInterrupted(ctx context.Context) (int, error) {
	lists, err := r.store.ListListsByStatus(ctx,
		model.StatusPending,
		model.StatusEnrichingURLs,
		model.StatusEnrichingSocials,
		model.StatusEnrichingEmails,
	)
	if err != nil {
		return 0, eris.Wrap(err, "pipeline: find interrupted lists")
	}

	n := 0
	for _, l := range lists {
		if err := r.Submit(ctx, l.ID); err != nil {
			zap.L().Warn("pipeline: could not resume list",
				zap.Int64("list_id", l.ID),
				zap.Error(err),
			)
			continue
		}
		zap.L().Info("pipeline: resumed interrupted list",
			zap.Int64("list_id", l.ID),
			zap.String("status", string(l.EnrichmentStatus)),
		)
		n++
	}
	return n, nil
}

// Busy reports whether the list is queued or running.
func (r *Runner) Busy(listID int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.inflight[listID]
}

func (r *Runner) finish(listID int64) {
	r.mu.Lock()
	delete(r.inflight, listID)
	r.mu.Unlock()
}
