package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/lead-enrich/internal/cache"
	"github.com/sells-group/lead-enrich/internal/email"
	"github.com/sells-group/lead-enrich/internal/fetch"
	"github.com/sells-group/lead-enrich/internal/pipeline"
	"github.com/sells-group/lead-enrich/internal/resolve"
	"github.com/sells-group/lead-enrich/internal/search"
	"github.com/sells-group/lead-enrich/internal/social"
	"github.com/sells-group/lead-enrich/internal/store"
)

// initStore opens the configured lead store and migrates it.
func initStore(ctx context.Context) (store.Store, error) {
	var (
		st  store.Store
		err error
	)
	switch cfg.Store.Driver {
	case "sqlite":
		st, err = store.NewSQLite(cfg.Store.DatabaseURL)
	case "postgres":
		st, err = store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
	if err != nil {
		return nil, err
	}

	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

// enrichEnv holds the store, caches and pipeline needed by the enrich and
// serve commands.
type enrichEnv struct {
	Store    store.Store
	Caches   *cache.Set
	Pipeline *pipeline.Pipeline
}

// Close releases resources held by the environment.
func (e *enrichEnv) Close() {
	if e.Caches != nil {
		_ = e.Caches.Close()
	}
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initPipeline validates config for mode, opens the store and caches and
// builds the Pipeline. m may be nil. Callers should defer env.Close().
func initPipeline(ctx context.Context, mode string, m *pipeline.Metrics) (*enrichEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	caches, err := cache.NewSet(ctx, cfg.Cache)
	if err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "open caches")
	}

	searcher, err := search.FromConfig(cfg.Search, cfg.Fetch.UserAgent)
	if err != nil {
		_ = caches.Close()
		_ = st.Close()
		return nil, err
	}
	fetcher := fetch.New(cfg.Fetch)

	opts := pipeline.OptionsFromConfig(cfg.Enrich)
	opts.Metrics = m
	p := pipeline.New(st, caches,
		resolve.New(searcher, cfg.Search.URLMaxResults),
		social.New(fetcher),
		email.New(fetcher, searcher,
			email.WithProbePause(time.Duration(cfg.Enrich.ProbePauseMs)*time.Millisecond),
			email.WithMaxResults(cfg.Search.EmailMaxResults),
		),
		opts,
	)

	zap.L().Info("pipeline ready",
		zap.String("store", cfg.Store.Driver),
		zap.String("cache", cfg.Cache.Driver),
		zap.String("search", cfg.Search.Provider),
	)

	return &enrichEnv{Store: st, Caches: caches, Pipeline: p}, nil
}
