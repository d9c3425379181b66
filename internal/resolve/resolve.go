// Package resolve finds a company's own website from a web search.
package resolve

import (
	"context"
	"net/url"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/lead-enrich/internal/model"
	"github.com/sells-group/lead-enrich/internal/search"
)

// DefaultMaxResults is how many search hits are considered.
const DefaultMaxResults = 8

// denylist holds aggregator, directory, social and regulator domains
// that rank well for a company name but are never the company's own site.
var denylist = []string{
	"linkedin.com", "facebook.com", "twitter.com", "x.com",
	"instagram.com", "youtube.com", "yelp.com", "bbb.org",
	"glassdoor.com", "indeed.com", "zillow.com", "realtor.com",
	"nmlsconsumeraccess.org", "mortgagemetrix.com", "wikipedia.org",
	"bloomberg.com", "crunchbase.com", "manta.com", "dnb.com",
	"buzzfile.com", "mapquest.com", "yellowpages.com",
	"companiesmarketcap.com", "zoominfo.com", "pitchbook.com",
	"sec.gov", "reddit.com", "tiktok.com",
}

// Denylist returns a copy of the excluded domains.
func Denylist() []string {
	return append([]string(nil), denylist...)
}

// Resolver turns a company name into the root URL of its website.
type Resolver struct {
	searcher   search.Searcher
	maxResults int
}

// New creates a Resolver. maxResults <= 0 uses DefaultMaxResults.
func New(s search.Searcher, maxResults int) *Resolver {
	if maxResults <= 0 {
		maxResults = DefaultMaxResults
	}
	return &Resolver{searcher: s, maxResults: maxResults}
}

// Query builds the search query for a company.
func Query(company string) string {
	return strings.TrimSpace(company) + " mortgage company official website"
}

// Resolve returns the scheme://host of the first non-denylisted result.
// When every result is denylisted the first result is used anyway. Search
// failures are returned as a Failed lookup, never as an error.
func (r *Resolver) Resolve(ctx context.Context, company string) model.Lookup[string] {
	if strings.TrimSpace(company) == "" {
		return model.Empty[string]()
	}

	results, err := r.searcher.Search(ctx, Query(company), r.maxResults)
	if err != nil {
		zap.L().Debug("resolve: search failed",
			zap.String("company", company),
			zap.Error(err),
		)
		return model.Failed[string](eris.Wrapf(err, "resolve: search %q", company))
	}

	if pick := Pick(results); pick != "" {
		return model.Found(pick)
	}
	return model.Empty[string]()
}

// Pick chooses the website from ranked results. It returns "" when no
// result carries a usable URL.
func Pick(results []search.Result) string {
	first := ""
	for _, res := range results {
		root := RootURL(res.URL)
		if root == "" {
			continue
		}
		if first == "" {
			first = root
		}
		if IsCompanyURL(res.URL) {
			return root
		}
	}
	return first
}

// RootURL reduces u to scheme://host, or "" if u has no host.
func RootURL(u string) string {
	parsed, err := url.Parse(strings.TrimSpace(u))
	if err != nil || parsed.Host == "" {
		return ""
	}
	scheme := strings.ToLower(parsed.Scheme)
	if scheme != "http" && scheme != "https" {
		return ""
	}
	return scheme + "://" + strings.ToLower(parsed.Host)
}

// IsCompanyURL reports whether u's host is outside the denylist. The
// comparison is case-insensitive, ignores a leading "www." and matches the
// denylisted domain itself or any subdomain of it.
func IsCompanyURL(u string) bool {
	parsed, err := url.Parse(strings.TrimSpace(u))
	if err != nil || parsed.Hostname() == "" {
		return false
	}
	host := strings.TrimPrefix(strings.ToLower(parsed.Hostname()), "www.")
	for _, d := range denylist {
		if host == d || strings.HasSuffix(host, "."+d) {
			return false
		}
	}
	return true
}
