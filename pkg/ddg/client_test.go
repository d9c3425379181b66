package ddg

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const resultsPage = `<html><body>
<div class="result results_links result--ad">
  <a class="result__a" href="https://duckduckgo.com/y.js?ad_provider=bing">Sponsored Loans</a>
</div>
<div class="result results_links results_links_deep web-result">
  <h2 class="result__title">
    <a class="result__a" href="//duckduckgo.com/l/?uddg=https%3A%2F%2Fwww.yelp.com%2Fbiz%2Facme-lending&amp;rut=abc">Acme Lending - Yelp</a>
  </h2>
  <a class="result__snippet" href="#">Reviews of Acme Lending</a>
</div>
<div class="result results_links results_links_deep web-result">
  <h2 class="result__title">
    <a class="result__a" href="//duckduckgo.com/l/?uddg=https%3A%2F%2Facmelending.com%2Fabout&amp;rut=def">Acme Lending | About</a>
  </h2>
  <a class="result__snippet" href="#">Contact us at info@acmelending.com</a>
</div>
<div class="result results_links web-result">
  <a class="result__a" href="https://direct.example.org/page">Direct link</a>
</div>
</body></html>`

func TestParseResults(t *testing.T) {
	t.Parallel()

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(resultsPage))
	require.NoError(t, err)

	got := ParseResults(doc, 0)
	require.Len(t, got, 3)

	assert.Equal(t, "https://www.yelp.com/biz/acme-lending", got[0].URL)
	assert.Equal(t, "Acme Lending - Yelp", got[0].Title)
	assert.Equal(t, "https://acmelending.com/about", got[1].URL)
	assert.Equal(t, "Contact us at info@acmelending.com", got[1].Snippet)
	assert.Equal(t, "https://direct.example.org/page", got[2].URL)

	assert.Len(t, ParseResults(doc, 2), 2)
}

func TestSearch_PostsQuery(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/html/", r.URL.Path)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "Acme Lending mortgage company official website", r.PostForm.Get("q"))
		assert.Equal(t, "us-en", r.PostForm.Get("kl"))
		assert.Contains(t, r.Header.Get("User-Agent"), "Mozilla/5.0")
		w.Write([]byte(resultsPage)) //nolint:errcheck
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL + "/"))
	got, err := c.Search(context.Background(), "Acme Lending mortgage company official website", 8)
	require.NoError(t, err)
	assert.Len(t, got, 3)
}

func TestSearch_RateLimited(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusAccepted)
		w.Write([]byte(`<html>anomaly</html>`)) //nolint:errcheck
	}))
	defer srv.Close()

	_, err := NewClient(WithBaseURL(srv.URL)).Search(context.Background(), "acme", 8)
	require.Error(t, err)

	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.True(t, se.RateLimited())
}

func TestResolveRedirect(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "https://acme.com/", resolveRedirect("//duckduckgo.com/l/?uddg=https%3A%2F%2Facme.com%2F"))
	assert.Equal(t, "http://acme.com", resolveRedirect("http://acme.com"))
	assert.Empty(t, resolveRedirect("//duckduckgo.com/l/?rut=x"))
	assert.Empty(t, resolveRedirect("javascript:void(0)"))
}
