package search

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/lead-enrich/internal/config"
	"github.com/sells-group/lead-enrich/internal/resilience"
)

const ddgPage = `<html><body>
<div class="result web-result">
  <a class="result__a" href="//duckduckgo.com/l/?uddg=https%3A%2F%2Facmelending.com%2F">Acme Lending</a>
  <a class="result__snippet">Call us</a>
</div>
<div class="result web-result">
  <a class="result__a" href="https://www.bbb.org/us/tx/acme">BBB</a>
</div>
</body></html>`

func TestDuckDuckGo_FromConfig(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-agent", r.Header.Get("User-Agent"))
		w.Write([]byte(ddgPage)) //nolint:errcheck
	}))
	defer srv.Close()

	s, err := FromConfig(config.SearchConfig{Provider: "ddg", DDGBaseURL: srv.URL, TimeoutSecs: 5}, "test-agent")
	require.NoError(t, err)

	got, err := s.Search(context.Background(), "acme", 8)
	require.NoError(t, err)
	assert.Equal(t, []Result{
		{URL: "https://acmelending.com/", Title: "Acme Lending", Snippet: "Call us"},
		{URL: "https://www.bbb.org/us/tx/acme", Title: "BBB"},
	}, got)
}

func TestDuckDuckGo_RateLimitIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	s, err := FromConfig(config.SearchConfig{DDGBaseURL: srv.URL}, "")
	require.NoError(t, err)

	_, err = s.Search(context.Background(), "acme", 8)
	require.Error(t, err)
	assert.True(t, resilience.IsTransient(err))
}

func TestJina_TruncatesAndFallsBackToContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer jk", r.Header.Get("Authorization"))
		w.Write([]byte(`{"code":200,"data":[` + //nolint:errcheck
			`{"title":"A","url":"https://a.com","description":"desc a"},` +
			`{"title":"B","url":"https://b.com","content":"email: info@b.com"},` +
			`{"title":"C","url":"https://c.com"}]}`))
	}))
	defer srv.Close()

	s, err := FromConfig(config.SearchConfig{Provider: "jina", JinaBaseURL: srv.URL, JinaKey: "jk"}, "")
	require.NoError(t, err)

	got, err := s.Search(context.Background(), "acme", 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "desc a", got[0].Snippet)
	assert.Equal(t, "email: info@b.com", got[1].Snippet)
}

func TestJina_ServerErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	s, err := FromConfig(config.SearchConfig{Provider: "jina", JinaBaseURL: srv.URL}, "")
	require.NoError(t, err)

	_, err = s.Search(context.Background(), "acme", 5)
	require.Error(t, err)
	assert.True(t, resilience.IsTransient(err))
}

func TestFromConfig_Unknown(t *testing.T) {
	_, err := FromConfig(config.SearchConfig{Provider: "bing"}, "")
	assert.Error(t, err)
}

func TestFromConfig_RetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"code":200,"data":[{"title":"A","url":"https://a.com","description":"d"}]}`)) //nolint:errcheck
	}))
	defer srv.Close()

	s, err := FromConfig(config.SearchConfig{
		Provider: "jina", JinaBaseURL: srv.URL, JinaKey: "jk",
		RetryAttempts: 3, RetryBackoffMs: 1,
	}, "")
	require.NoError(t, err)
	require.IsType(t, &Retrying{}, s)

	got, err := s.Search(context.Background(), "acme", 5)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, int32(2), calls.Load())
}
