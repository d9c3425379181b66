// Package fetch retrieves web pages for the extractors.
package fetch

import (
	"bufio"
	"context"
	"crypto/tls"
	"io"
	"mime"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding/htmlindex"

	"github.com/sells-group/lead-enrich/internal/config"
	"github.com/sells-group/lead-enrich/internal/resilience"
)

// Page is a fetched document decoded to UTF-8.
type Page struct {
	URL        string
	FinalURL   string
	StatusCode int
	Body       string
}

// Fetcher retrieves a single page.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*Page, error)
}

// ErrBlocked is returned for anti-bot interstitials served in place of the page.
var ErrBlocked = eris.New("fetch: blocked by challenge page")

const maxRedirects = 10

// HTTPFetcher fetches pages over net/http with redirects, a browser user
// agent and optional certificate verification.
type HTTPFetcher struct {
	client    *http.Client
	userAgent string
	maxBody   int64
}

// Option configures an HTTPFetcher.
type Option func(*HTTPFetcher)

// WithHTTPClient replaces the underlying client.
func WithHTTPClient(c *http.Client) Option {
	return func(f *HTTPFetcher) { f.client = c }
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(f *HTTPFetcher) { f.userAgent = ua }
}

// WithMaxBody caps how many bytes of a response are read.
func WithMaxBody(n int64) Option {
	return func(f *HTTPFetcher) { f.maxBody = n }
}

// New creates an HTTPFetcher from fetch configuration.
func New(cfg config.FetchConfig, opts ...Option) *HTTPFetcher {
	timeout := cfg.Timeout()
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	f := &HTTPFetcher{
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				Proxy: http.ProxyFromEnvironment,
				DialContext: (&net.Dialer{
					Timeout: timeout,
				}).DialContext,
				TLSHandshakeTimeout: timeout,
				TLSClientConfig: &tls.Config{
					InsecureSkipVerify: cfg.InsecureTLS, //nolint:gosec // broker sites often have broken certs
				},
			},
			CheckRedirect: func(_ *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return eris.Errorf("fetch: stopped after %d redirects", maxRedirects)
				}
				return nil
			},
		},
		userAgent: cfg.UserAgent,
		maxBody:   cfg.MaxBodyBytes,
	}
	if f.userAgent == "" {
		f.userAgent = config.DefaultUserAgent
	}
	if f.maxBody <= 0 {
		f.maxBody = 2 << 20
	}
	for _, o := range opts {
		o(f)
	}
	return f
}

// Fetch GETs url. Non-2xx responses are errors; 429 and 5xx are marked
// transient via the resilience package.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) (*Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, eris.Wrapf(err, "fetch: create request %s", url)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := f.client.Do(req)
	if err != nil {
		if resilience.IsTransient(err) {
			return nil, resilience.NewTransientError(eris.Wrapf(err, "fetch: get %s", url), 0)
		}
		return nil, eris.Wrapf(err, "fetch: get %s", url)
	}
	defer func() { _ = resp.Body.Close() }()

	if err := resilience.CheckStatus(url, resp.StatusCode); err != nil {
		return nil, eris.Wrap(err, "fetch: status")
	}

	body, err := decodeBody(resp, f.maxBody)
	if err != nil {
		return nil, eris.Wrapf(err, "fetch: read body %s", url)
	}

	if isChallenge(body) {
		return nil, ErrBlocked
	}

	return &Page{
		URL:        url,
		FinalURL:   resp.Request.URL.String(),
		StatusCode: resp.StatusCode,
		Body:       body,
	}, nil
}

// decodeBody reads at most limit bytes and converts them to UTF-8 using the
// Content-Type charset, falling back to a <meta charset> sniff.
func decodeBody(resp *http.Response, limit int64) (string, error) {
	br := bufio.NewReader(io.LimitReader(resp.Body, limit))

	charset := ""
	if _, params, err := mime.ParseMediaType(resp.Header.Get("Content-Type")); err == nil {
		charset = params["charset"]
	}
	if charset == "" {
		peek, _ := br.Peek(1024)
		charset = sniffMetaCharset(string(peek))
	}

	var r io.Reader = br
	if charset != "" && !strings.EqualFold(charset, "utf-8") {
		if enc, err := htmlindex.Get(charset); err == nil {
			r = enc.NewDecoder().Reader(br)
		}
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func sniffMetaCharset(head string) string {
	lower := strings.ToLower(head)
	i := strings.Index(lower, "charset=")
	if i < 0 {
		return ""
	}
	rest := strings.TrimLeft(lower[i+len("charset="):], `"' `)
	end := strings.IndexAny(rest, `"';> /`)
	if end < 0 {
		return ""
	}
	return rest[:end]
}

// isChallenge spots Cloudflare browser-check interstitials served with 200.
func isChallenge(body string) bool {
	if len(body) > 64<<10 {
		return false
	}
	lower := strings.ToLower(body)
	return strings.Contains(lower, "cf-browser-verification") ||
		strings.Contains(lower, "checking your browser before accessing") ||
		strings.Contains(lower, "cf-challenge-running")
}
