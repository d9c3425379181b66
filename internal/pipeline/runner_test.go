package pipeline

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/lead-enrich/internal/model"
)

// blockingEnricher records runs and blocks each one until released.
type blockingEnricher struct {
	mu      sync.Mutex
	ran     []int64
	started chan int64
	release chan struct{}
}

func newBlockingEnricher() *blockingEnricher {
	return &blockingEnricher{started: make(chan int64, 16), release: make(chan struct{})}
}

func (e *blockingEnricher) Run(ctx context.Context, listID int64) {
	e.mu.Lock()
	e.ran = append(e.ran, listID)
	e.mu.Unlock()
	e.started <- listID
	select {
	case <-e.release:
	case <-ctx.Done():
	}
}

func (e *blockingEnricher) runs() []int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]int64(nil), e.ran...)
}

func waitStarted(t *testing.T, e *blockingEnricher) int64 {
	t.Helper()
	select {
	case id := <-e.started:
		return id
	case <-time.After(2 * time.Second):
		t.Fatal("run did not start")
		return 0
	}
}

func TestRunner_SubmitMarksPendingAndRuns(t *testing.T) {
	env := newTestEnv(t)
	listID := env.seed(t, allCols, model.Lead{NMLSID: "1"})

	e := newBlockingEnricher()
	r := NewRunner(e, env.store, 1, 4, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, r.Submit(ctx, listID))
	assert.Equal(t, model.StatusPending, env.status(t, listID))
	assert.True(t, r.Busy(listID))

	r.Start(ctx)
	assert.Equal(t, listID, waitStarted(t, e))

	close(e.release)
	assert.Eventually(t, func() bool { return !r.Busy(listID) }, 2*time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, r.Wait())
	assert.Equal(t, []int64{listID}, e.runs())
}

func TestRunner_DedupesInflightLists(t *testing.T) {
	env := newTestEnv(t)
	listID := env.seed(t, allCols, model.Lead{NMLSID: "1"})

	e := newBlockingEnricher()
	r := NewRunner(e, env.store, 1, 4, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r.Start(ctx)

	require.NoError(t, r.Submit(ctx, listID))
	waitStarted(t, e)

	err := r.Submit(ctx, listID)
	assert.ErrorIs(t, err, ErrAlreadyQueued)

	cancel()
	require.NoError(t, r.Wait())
	assert.Len(t, e.runs(), 1)
}

func TestRunner_QueueFull(t *testing.T) {
	env := newTestEnv(t)
	a := env.seed(t, allCols, model.Lead{NMLSID: "1"})
	b := env.seed(t, allCols, model.Lead{NMLSID: "2"})

	// Not started, so nothing drains the single slot.
	r := NewRunner(newBlockingEnricher(), env.store, 1, 1, nil)
	ctx := context.Background()

	require.NoError(t, r.Submit(ctx, a))
	err := r.Submit(ctx, b)
	assert.ErrorIs(t, err, ErrQueueFull)
	assert.Equal(t, model.StatusNone, env.status(t, b), "a refused list keeps its status")
}

func TestRunner_SubmitUnknownList(t *testing.T) {
	env := newTestEnv(t)
	r := NewRunner(newBlockingEnricher(), env.store, 1, 1, nil)

	err := r.Submit(context.Background(), 999)
	require.Error(t, err)
	assert.False(t, r.Busy(999))
}

func TestRunner_ResumeInterrupted(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	ids := map[model.EnrichmentStatus]int64{}
	for _, s := range model.AllStatuses() {
		id := env.seed(t, allCols)
		require.NoError(t, env.store.SetListStatus(ctx, id, s))
		ids[s] = id
	}

	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	r := NewRunner(newBlockingEnricher(), env.store, 1, 16, m)
	n, err := r.ResumeInterrupted(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	assert.True(t, r.Busy(ids[model.StatusPending]))
	assert.True(t, r.Busy(ids[model.StatusEnrichingURLs]))
	assert.True(t, r.Busy(ids[model.StatusEnrichingSocials]))
	assert.True(t, r.Busy(ids[model.StatusEnrichingEmails]))
	assert.False(t, r.Busy(ids[model.StatusComplete]))
	assert.False(t, r.Busy(ids[model.StatusError]))
	assert.False(t, r.Busy(ids[model.StatusNone]))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.queueDepth))
}

func TestRunner_StopsOnCancel(t *testing.T) {
	env := newTestEnv(t)
	r := NewRunner(newBlockingEnricher(), env.store, 2, 1, nil)
	ctx, cancel := context.WithCancel(context.Background())
	r.Start(ctx)
	cancel()

	done := make(chan error, 1)
	go func() { done <- r.Wait() }()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("workers did not stop")
	}
}
