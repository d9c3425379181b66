// Package email finds and ranks contact addresses for a company.
package email

import (
	"context"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/lead-enrich/internal/fetch"
	"github.com/sells-group/lead-enrich/internal/model"
	"github.com/sells-group/lead-enrich/internal/search"
)

var emailRe = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)

// ContactPaths are probed in order when the homepage has no address.
var ContactPaths = []string{"/contact", "/contact-us", "/about", "/about-us"}

// DefaultMaxResults is how many search hits are scanned for a company
// without a website.
const DefaultMaxResults = 5

var junkDomains = map[string]bool{
	"example.com": true, "example.org": true, "test.com": true, "localhost": true,
	"sentry.io": true, "wixpress.com": true, "wix.com": true,
	"googleapis.com": true, "googleusercontent.com": true, "google.com": true,
	"facebook.com": true, "twitter.com": true, "instagram.com": true,
	"wordpress.com": true, "wordpress.org": true, "wp.com": true,
	"gravatar.com": true, "schema.org": true, "w3.org": true,
	"apple.com": true, "microsoft.com": true, "outlook.com": true,
	"changedetection.io": true, "cloudflare.com": true,
	"bootstrapcdn.com": true, "jsdelivr.net": true, "cdnjs.cloudflare.com": true,
	"fontawesome.com": true, "gstatic.com": true,
	"yourdomain.com": true, "domain.com": true, "email.com": true,
	"company.com": true, "yourcompany.com": true, "sampledomain.com": true,
}

// Asset file names like logo@2x.png match the address pattern.
var assetSuffixes = []string{".png", ".jpg", ".jpeg", ".gif", ".svg", ".css", ".js", ".webp"}

// roleLocals score lowest but are kept.
var roleLocals = map[string]bool{
	"noreply": true, "no-reply": true, "donotreply": true, "do-not-reply": true,
	"mailer-daemon": true, "postmaster": true, "webmaster": true,
	"admin": true, "administrator": true, "root": true, "support": true,
	"abuse": true, "spam": true, "security": true,
}

var businessLocals = map[string]bool{
	"info": true, "contact": true, "hello": true, "inquiries": true, "loans": true, "mortgage": true,
}

// IsJunk reports whether addr is a placeholder, vendor or asset address.
func IsJunk(addr string) bool {
	_, domain, ok := strings.Cut(strings.ToLower(addr), "@")
	if !ok {
		return true
	}
	if junkDomains[domain] {
		return true
	}
	for _, s := range assetSuffixes {
		if strings.HasSuffix(domain, s) {
			return true
		}
	}
	return false
}

// Score rates addr for outreach; higher is better.
func Score(addr string) int {
	local, _, _ := strings.Cut(strings.ToLower(addr), "@")
	switch {
	case roleLocals[local]:
		return 1
	case businessLocals[local]:
		return 10
	case strings.Contains(local, ".") && len(local) > 5:
		return 8
	default:
		return 5
	}
}

// Rank lowercases, drops junk, dedups and sorts addrs by descending score.
// Ties keep first-seen order.
func Rank(addrs []string) []string {
	seen := make(map[string]bool, len(addrs))
	out := make([]string, 0, len(addrs))
	for _, a := range addrs {
		a = strings.ToLower(strings.TrimSpace(a))
		if a == "" || seen[a] || IsJunk(a) {
			continue
		}
		seen[a] = true
		out = append(out, a)
	}
	slices.SortStableFunc(out, func(a, b string) int {
		return Score(b) - Score(a)
	})
	return out
}

// FromText returns every address pattern match in s.
func FromText(s string) []string {
	return emailRe.FindAllString(s, -1)
}

// FromHTML collects mailto targets (in document order) followed by pattern
// matches over the raw markup. The result is unfiltered.
func FromHTML(markup string) []string {
	var out []string
	if doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup)); err == nil {
		doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
			href := strings.TrimSpace(s.AttrOr("href", ""))
			if len(href) < len("mailto:") || !strings.EqualFold(href[:len("mailto:")], "mailto:") {
				return
			}
			target, _, _ := strings.Cut(href[len("mailto:"):], "?")
			if m := emailRe.FindString(target); m != "" {
				out = append(out, m)
			}
		})
	}
	return append(out, FromText(markup)...)
}

// Extractor finds emails on a company website, or via web search when the
// company has none.
type Extractor struct {
	fetcher    fetch.Fetcher
	searcher   search.Searcher
	maxResults int
	probePause time.Duration
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithProbePause sets the pause between contact-page probes.
func WithProbePause(d time.Duration) Option {
	return func(e *Extractor) { e.probePause = d }
}

// WithMaxResults sets how many search hits are scanned.
func WithMaxResults(n int) Option {
	return func(e *Extractor) {
		if n > 0 {
			e.maxResults = n
		}
	}
}

// New creates an Extractor.
func New(f fetch.Fetcher, s search.Searcher, opts ...Option) *Extractor {
	e := &Extractor{
		fetcher:    f,
		searcher:   s,
		maxResults: DefaultMaxResults,
		probePause: 500 * time.Millisecond,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// FromWebsite scrapes the homepage and, only if it yields nothing, the
// contact paths in order until one of them does. A failed homepage fetch
// is a Failed lookup and no subpages are probed.
func (e *Extractor) FromWebsite(ctx context.Context, website string) model.Lookup[[]string] {
	home, err := e.fetcher.Fetch(ctx, website)
	if err != nil {
		zap.L().Debug("email: homepage fetch failed",
			zap.String("url", website),
			zap.Error(err),
		)
		return model.Failed[[]string](eris.Wrapf(err, "email: fetch %s", website))
	}

	found := Rank(FromHTML(home.Body))
	if len(found) > 0 {
		return model.Found(found)
	}

	root := strings.TrimRight(website, "/")
	for i, path := range ContactPaths {
		if i > 0 {
			if err := sleep(ctx, e.probePause); err != nil {
				return model.Failed[[]string](eris.Wrap(err, "email: probe cancelled"))
			}
		}
		page, err := e.fetcher.Fetch(ctx, root+path)
		if err != nil {
			if ctx.Err() != nil {
				return model.Failed[[]string](eris.Wrap(ctx.Err(), "email: probe cancelled"))
			}
			continue
		}
		if found = Rank(FromHTML(page.Body)); len(found) > 0 {
			return model.Found(found)
		}
	}
	return model.Empty[[]string]()
}

// SearchQuery builds the query used for companies without a website.
func SearchQuery(company string) string {
	return `"` + strings.TrimSpace(company) + `" mortgage email contact Texas`
}

// FromCompany searches the web and scans result titles and snippets.
func (e *Extractor) FromCompany(ctx context.Context, company string) model.Lookup[[]string] {
	if strings.TrimSpace(company) == "" {
		return model.Empty[[]string]()
	}
	results, err := e.searcher.Search(ctx, SearchQuery(company), e.maxResults)
	if err != nil {
		zap.L().Debug("email: search failed",
			zap.String("company", company),
			zap.Error(err),
		)
		return model.Failed[[]string](eris.Wrapf(err, "email: search %q", company))
	}

	var raw []string
	for _, r := range results {
		raw = append(raw, FromText(r.Snippet+" "+r.Title)...)
	}
	if found := Rank(raw); len(found) > 0 {
		return model.Found(found)
	}
	return model.Empty[[]string]()
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
