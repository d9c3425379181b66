// Package social finds a company's social-media profiles on its website.
package social

import (
	"context"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/lead-enrich/internal/fetch"
	"github.com/sells-group/lead-enrich/internal/model"
)

type platformRule struct {
	platform model.Platform
	domains  []string
	pattern  *regexp.Regexp
}

// rules are evaluated in model.AllPlatforms order.
var rules = []platformRule{
	{
		platform: model.PlatformFacebook,
		domains:  []string{"facebook.com", "fb.com", "fb.me"},
		pattern:  regexp.MustCompile(`(?i)https?://(?:www\.)?(?:facebook\.com|fb\.com|fb\.me)/[^\s"'<>\\]+`),
	},
	{
		platform: model.PlatformLinkedIn,
		domains:  []string{"linkedin.com"},
		pattern:  regexp.MustCompile(`(?i)https?://(?:www\.)?linkedin\.com/(?:company|in)/[^\s"'<>\\]+`),
	},
	{
		platform: model.PlatformInstagram,
		domains:  []string{"instagram.com"},
		pattern:  regexp.MustCompile(`(?i)https?://(?:www\.)?instagram\.com/[^\s"'<>\\]+`),
	},
	{
		platform: model.PlatformTwitter,
		domains:  []string{"twitter.com", "x.com"},
		pattern:  regexp.MustCompile(`(?i)https?://(?:www\.)?(?:twitter\.com|x\.com)/[^\s"'<>\\]+`),
	},
	{
		platform: model.PlatformYouTube,
		domains:  []string{"youtube.com", "youtu.be"},
		pattern:  regexp.MustCompile(`(?i)https?://(?:www\.)?(?:youtube\.com|youtu\.be)/[^\s"'<>\\]+`),
	},
	{
		platform: model.PlatformTikTok,
		domains:  []string{"tiktok.com"},
		pattern:  regexp.MustCompile(`(?i)https?://(?:www\.)?tiktok\.com/@[^\s"'<>\\]+`),
	},
}

// skipPatterns mark share dialogs, intents, embeds, logins and tracking
// pixels, which link to a platform without being a profile.
var skipPatterns = []string{
	"facebook.com/sharer",
	"facebook.com/share",
	"facebook.com/dialog",
	"facebook.com/tr?",
	"facebook.com/tr/",
	"facebook.com/plugins",
	"twitter.com/intent",
	"twitter.com/share",
	"x.com/intent",
	"x.com/share",
	"linkedin.com/sharearticle",
	"linkedin.com/share",
	"instagram.com/accounts",
	"youtube.com/embed",
	"youtube.com/watch",
}

// IsSkipURL reports whether u is a share/intent/embed link rather than a profile.
func IsSkipURL(u string) bool {
	lower := strings.ToLower(u)
	for _, p := range skipPatterns {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

// Classify returns the platform u belongs to. The host must equal one of
// the platform's domains or be a subdomain of it, and the URL must have a
// path beyond "/".
func Classify(u string) (model.Platform, bool) {
	parsed, err := url.Parse(strings.TrimSpace(u))
	if err != nil || parsed.Hostname() == "" {
		return "", false
	}
	if strings.Trim(parsed.Path, "/") == "" {
		return "", false
	}
	host := strings.ToLower(parsed.Hostname())
	for _, r := range rules {
		for _, d := range r.domains {
			if host == d || strings.HasSuffix(host, "."+d) {
				return r.platform, true
			}
		}
	}
	return "", false
}

// CleanURL strips any query or fragment, then trailing slashes.
func CleanURL(u string) string {
	if i := strings.IndexAny(u, "?#"); i >= 0 {
		u = u[:i]
	}
	return strings.TrimRight(u, "/")
}

// Extractor fetches a website and classifies the social links on it.
type Extractor struct {
	fetcher fetch.Fetcher
}

// New creates an Extractor.
func New(f fetch.Fetcher) *Extractor {
	return &Extractor{fetcher: f}
}

// Extract fetches website and returns at most one profile per platform.
// Fetch failures are returned as a Failed lookup.
func (e *Extractor) Extract(ctx context.Context, website string) model.Lookup[model.Socials] {
	page, err := e.fetcher.Fetch(ctx, website)
	if err != nil {
		zap.L().Debug("social: fetch failed",
			zap.String("url", website),
			zap.Error(err),
		)
		return model.Failed[model.Socials](eris.Wrapf(err, "social: fetch %s", website))
	}

	base := page.FinalURL
	if base == "" {
		base = website
	}
	found, err := FromHTML(page.Body, base)
	if err != nil {
		return model.Failed[model.Socials](err)
	}
	if len(found) == 0 {
		return model.Empty[model.Socials]()
	}
	return model.Found(found)
}

// FromHTML classifies every candidate link in markup. Candidates are
// anchors in document order followed by raw-text pattern matches; the
// first accepted candidate for a platform wins.
func FromHTML(markup, baseURL string) (model.Socials, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil, eris.Wrap(err, "social: parse html")
	}

	base, _ := url.Parse(baseURL)
	if href, ok := doc.Find("base[href]").First().Attr("href"); ok && base != nil {
		if b, err := base.Parse(strings.TrimSpace(href)); err == nil {
			base = b
		}
	}

	var candidates []string
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href := strings.TrimSpace(s.AttrOr("href", ""))
		if href == "" {
			return
		}
		if base != nil {
			if ref, err := base.Parse(href); err == nil {
				href = ref.String()
			}
		}
		candidates = append(candidates, href)
	})
	for _, r := range rules {
		candidates = append(candidates, r.pattern.FindAllString(markup, -1)...)
	}

	out := make(model.Socials)
	for _, c := range candidates {
		if IsSkipURL(c) {
			continue
		}
		p, ok := Classify(c)
		if !ok {
			continue
		}
		if _, taken := out[p]; taken {
			continue
		}
		out[p] = CleanURL(c)
	}
	return out, nil
}
