// Package search adapts web search providers to one interface used by the
// URL resolver and the email extractor.
package search

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/lead-enrich/internal/config"
	"github.com/sells-group/lead-enrich/internal/resilience"
	"github.com/sells-group/lead-enrich/pkg/ddg"
	"github.com/sells-group/lead-enrich/pkg/jina"
)

// Result is one ranked search hit.
type Result struct {
	URL     string `json:"url"`
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
}

// Searcher returns up to maxResults hits in ranking order.
type Searcher interface {
	Search(ctx context.Context, query string, maxResults int) ([]Result, error)
}

// DuckDuckGo adapts the ddg client.
type DuckDuckGo struct {
	client ddg.Client
}

// NewDuckDuckGo wraps c.
func NewDuckDuckGo(c ddg.Client) *DuckDuckGo {
	return &DuckDuckGo{client: c}
}

func (d *DuckDuckGo) Search(ctx context.Context, query string, maxResults int) ([]Result, error) {
	hits, err := d.client.Search(ctx, query, maxResults)
	if err != nil {
		var se *ddg.StatusError
		if errors.As(err, &se) && se.RateLimited() {
			return nil, resilience.NewTransientError(eris.Wrap(err, "search: ddg"), http.StatusTooManyRequests)
		}
		return nil, eris.Wrap(err, "search: ddg")
	}
	out := make([]Result, 0, len(hits))
	for _, h := range hits {
		out = append(out, Result{URL: h.URL, Title: h.Title, Snippet: h.Snippet})
	}
	return out, nil
}

// Jina adapts the Jina search client.
type Jina struct {
	client jina.Client
}

// NewJina wraps c.
func NewJina(c jina.Client) *Jina {
	return &Jina{client: c}
}

func (j *Jina) Search(ctx context.Context, query string, maxResults int) ([]Result, error) {
	resp, err := j.client.Search(ctx, query, jina.WithoutContent())
	if err != nil {
		var apiErr *jina.APIError
		if errors.As(err, &apiErr) && resilience.IsTransientHTTPStatus(apiErr.StatusCode) {
			return nil, resilience.NewTransientError(eris.Wrap(err, "search: jina"), apiErr.StatusCode)
		}
		return nil, eris.Wrap(err, "search: jina")
	}
	out := make([]Result, 0, len(resp.Data))
	for _, d := range resp.Data {
		if maxResults > 0 && len(out) >= maxResults {
			break
		}
		snippet := d.Description
		if snippet == "" {
			snippet = d.Content
		}
		out = append(out, Result{URL: d.URL, Title: d.Title, Snippet: snippet})
	}
	return out, nil
}

// Retrying retries transient provider failures such as rate limiting.
type Retrying struct {
	next    Searcher
	backoff resilience.Backoff
}

// WithRetry wraps s so transient failures are retried per b.
func WithRetry(s Searcher, b resilience.Backoff) *Retrying {
	return &Retrying{next: s, backoff: b}
}

func (r *Retrying) Search(ctx context.Context, query string, maxResults int) ([]Result, error) {
	return resilience.Retry(ctx, r.backoff, "search", func(ctx context.Context) ([]Result, error) {
		return r.next.Search(ctx, query, maxResults)
	})
}

// FromConfig builds the provider named by cfg.Provider, wrapped with
// retries when cfg.RetryAttempts is above one.
func FromConfig(cfg config.SearchConfig, userAgent string) (Searcher, error) {
	s, err := provider(cfg, userAgent)
	if err != nil {
		return nil, err
	}
	if cfg.RetryAttempts > 1 {
		return WithRetry(s, resilience.Backoff{
			Attempts: cfg.RetryAttempts,
			Initial:  time.Duration(cfg.RetryBackoffMs) * time.Millisecond,
		}), nil
	}
	return s, nil
}

func provider(cfg config.SearchConfig, userAgent string) (Searcher, error) {
	hc := &http.Client{Timeout: cfg.Timeout()}
	switch cfg.Provider {
	case "", "ddg":
		opts := []ddg.Option{ddg.WithHTTPClient(hc)}
		if cfg.DDGBaseURL != "" {
			opts = append(opts, ddg.WithBaseURL(cfg.DDGBaseURL))
		}
		if userAgent != "" {
			opts = append(opts, ddg.WithUserAgent(userAgent))
		}
		return NewDuckDuckGo(ddg.NewClient(opts...)), nil
	case "jina":
		opts := []jina.Option{jina.WithHTTPClient(hc)}
		if cfg.JinaBaseURL != "" {
			opts = append(opts, jina.WithSearchBaseURL(cfg.JinaBaseURL))
		}
		return NewJina(jina.NewClient(cfg.JinaKey, opts...)), nil
	default:
		return nil, eris.Errorf("search: unknown provider %q", cfg.Provider)
	}
}
