package model

import (
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// EnrichmentStatus is the state of a list's enrichment run.
type EnrichmentStatus string

const (
	StatusNone             EnrichmentStatus = "none"
	StatusPending          EnrichmentStatus = "pending"
	StatusEnrichingURLs    EnrichmentStatus = "enriching_urls"
	StatusEnrichingSocials EnrichmentStatus = "enriching_socials"
	StatusEnrichingEmails  EnrichmentStatus = "enriching_emails"
	StatusComplete         EnrichmentStatus = "complete"
	StatusError            EnrichmentStatus = "error"
)

// AllStatuses returns every status in state-machine order.
func AllStatuses() []EnrichmentStatus {
	return []EnrichmentStatus{
		StatusNone,
		StatusPending,
		StatusEnrichingURLs,
		StatusEnrichingSocials,
		StatusEnrichingEmails,
		StatusComplete,
		StatusError,
	}
}

// IsEnriching reports whether a run is in progress for the list.
func (s EnrichmentStatus) IsEnriching() bool {
	return strings.HasPrefix(string(s), "enriching_")
}

// Started reports whether a run has ever advanced past the queued states.
func (s EnrichmentStatus) Started() bool {
	return s != StatusNone && s != StatusPending && s != ""
}

// Valid reports whether s is a known status.
func (s EnrichmentStatus) Valid() bool {
	for _, v := range AllStatuses() {
		if s == v {
			return true
		}
	}
	return false
}

// Platform is a social network a lead may have a profile on.
type Platform string

const (
	PlatformFacebook  Platform = "facebook"
	PlatformLinkedIn  Platform = "linkedin"
	PlatformInstagram Platform = "instagram"
	PlatformTwitter   Platform = "twitter"
	PlatformYouTube   Platform = "youtube"
	PlatformTikTok    Platform = "tiktok"
)

// AllPlatforms returns the supported platforms in a fixed order.
func AllPlatforms() []Platform {
	return []Platform{
		PlatformFacebook,
		PlatformLinkedIn,
		PlatformInstagram,
		PlatformTwitter,
		PlatformYouTube,
		PlatformTikTok,
	}
}

// Column returns the lead column that stores the platform's profile URL.
func (p Platform) Column() string {
	if p == PlatformTwitter {
		return ColTwitterX
	}
	return string(p)
}

// Socials maps a platform to a profile URL.
type Socials map[Platform]string

// Lead enrichment columns.
const (
	ColWebsite   = "company_website"
	ColEmail     = "email"
	ColFacebook  = "facebook"
	ColLinkedIn  = "linkedin"
	ColInstagram = "instagram"
	ColTwitterX  = "twitter_x"
	ColYouTube   = "youtube"
	ColTikTok    = "tiktok"
)

// EnrichmentColumns lists the write-once columns filled by the pipeline.
func EnrichmentColumns() []string {
	return []string{
		ColWebsite, ColEmail,
		ColFacebook, ColLinkedIn, ColInstagram, ColTwitterX, ColYouTube, ColTikTok,
	}
}

// IsEnrichmentColumn reports whether col is a write-once enrichment column.
func IsEnrichmentColumn(col string) bool {
	for _, c := range EnrichmentColumns() {
		if c == col {
			return true
		}
	}
	return false
}

// Lead is a single broker record keyed by NMLS license id.
type Lead struct {
	ID     int64  `json:"id" yaml:"id"`
	NMLSID string `json:"nmlsid" yaml:"nmlsid"`

	Name                string `json:"name,omitempty" yaml:"name,omitempty"`
	LORole              string `json:"lo_role,omitempty" yaml:"lo_role,omitempty"`
	CompanyNMLS         string `json:"company_nmls,omitempty" yaml:"company_nmls,omitempty"`
	Company             string `json:"company,omitempty" yaml:"company,omitempty"`
	Type                string `json:"type,omitempty" yaml:"type,omitempty"`
	City                string `json:"city,omitempty" yaml:"city,omitempty"`
	State               string `json:"state,omitempty" yaml:"state,omitempty"`
	OfficeType          string `json:"office_type,omitempty" yaml:"office_type,omitempty"`
	CompanyDetails      string `json:"company_details,omitempty" yaml:"company_details,omitempty"`
	Rank                int    `json:"rank,omitempty" yaml:"rank,omitempty"`
	Volume              string `json:"volume,omitempty" yaml:"volume,omitempty"`
	Units               int    `json:"units,omitempty" yaml:"units,omitempty"`
	MonthlyVolume       string `json:"monthly_volume,omitempty" yaml:"monthly_volume,omitempty"`
	MonthlyUnits        int    `json:"monthly_units,omitempty" yaml:"monthly_units,omitempty"`
	PurchasePercent     string `json:"purchase_percent,omitempty" yaml:"purchase_percent,omitempty"`
	MonthlyVolumeExport string `json:"monthly_volume_export,omitempty" yaml:"monthly_volume_export,omitempty"`
	VolumeExport        string `json:"volume_export,omitempty" yaml:"volume_export,omitempty"`

	CompanyWebsite string `json:"company_website,omitempty" yaml:"company_website,omitempty"`
	Email          string `json:"email,omitempty" yaml:"email,omitempty"`
	Facebook       string `json:"facebook,omitempty" yaml:"facebook,omitempty"`
	LinkedIn       string `json:"linkedin,omitempty" yaml:"linkedin,omitempty"`
	Instagram      string `json:"instagram,omitempty" yaml:"instagram,omitempty"`
	TwitterX       string `json:"twitter_x,omitempty" yaml:"twitter_x,omitempty"`
	YouTube        string `json:"youtube,omitempty" yaml:"youtube,omitempty"`
	TikTok         string `json:"tiktok,omitempty" yaml:"tiktok,omitempty"`
}

// LookupName is the name used to search for the lead's company. It falls
// back to the person's name when the company is blank.
func (l *Lead) LookupName() string {
	if c := strings.TrimSpace(l.Company); c != "" {
		return c
	}
	return strings.TrimSpace(l.Name)
}

// Social returns the stored profile URL for p.
func (l *Lead) Social(p Platform) string {
	return l.Value(p.Column())
}

// MissingSocials reports whether any social slot is still empty.
func (l *Lead) MissingSocials() bool {
	for _, p := range AllPlatforms() {
		if l.Social(p) == "" {
			return true
		}
	}
	return false
}

// Value returns the enrichment column value, or "" for unknown columns.
func (l *Lead) Value(col string) string {
	if f := l.field(col); f != nil {
		return *f
	}
	return ""
}

// Set assigns the enrichment column if it is currently empty. It reports
// whether the lead changed.
func (l *Lead) Set(col, value string) bool {
	f := l.field(col)
	if f == nil || *f != "" || value == "" {
		return false
	}
	*f = value
	return true
}

func (l *Lead) field(col string) *string {
	switch col {
	case ColWebsite:
		return &l.CompanyWebsite
	case ColEmail:
		return &l.Email
	case ColFacebook:
		return &l.Facebook
	case ColLinkedIn:
		return &l.LinkedIn
	case ColInstagram:
		return &l.Instagram
	case ColTwitterX:
		return &l.TwitterX
	case ColYouTube:
		return &l.YouTube
	case ColTikTok:
		return &l.TikTok
	}
	return nil
}

// Enrichment is the set of values a stage found for one lead.
type Enrichment struct {
	Website string
	Email   string
	Socials Socials
}

// Columns flattens e into column/value pairs, skipping empty values.
func (e Enrichment) Columns() map[string]string {
	out := make(map[string]string)
	if e.Website != "" {
		out[ColWebsite] = e.Website
	}
	if e.Email != "" {
		out[ColEmail] = e.Email
	}
	for p, v := range e.Socials {
		if v != "" {
			out[p.Column()] = v
		}
	}
	return out
}

// Empty reports whether e carries no values.
func (e Enrichment) Empty() bool {
	return len(e.Columns()) == 0
}

// Fill is a pending write-once update for one lead.
type Fill struct {
	LeadID int64
	Enrichment
}

// List is a named batch of leads sharing one enrichment status.
type List struct {
	ID               int64            `json:"id" yaml:"id"`
	Name             string           `json:"name" yaml:"name"`
	Filename         string           `json:"filename,omitempty" yaml:"filename,omitempty"`
	RowCount         int              `json:"row_count" yaml:"row_count"`
	EnrichmentStatus EnrichmentStatus `json:"enrichment_status" yaml:"enrichment_status"`
	CreatedAt        time.Time        `json:"created_at" yaml:"created_at"`
}

// Progress is the polled view of an enrichment run. Enriched counts
// leads with a website regardless of the active stage.
type Progress struct {
	Status      EnrichmentStatus `json:"status" yaml:"status"`
	Total       int              `json:"total" yaml:"total"`
	Enriched    int              `json:"enriched" yaml:"enriched"`
	ProgressPct float64          `json:"progress_pct" yaml:"progress_pct"`
}

// NewProgress builds a Progress and derives the percentage.
func NewProgress(status EnrichmentStatus, total, enriched int) Progress {
	p := Progress{Status: status, Total: total, Enriched: enriched}
	if total > 0 {
		p.ProgressPct = float64(int(float64(enriched)/float64(total)*1000+0.5)) / 10
	}
	return p
}

// Coverage counts how many leads carry each enrichment column.
type Coverage struct {
	Leads   int            `json:"leads" yaml:"leads"`
	Columns map[string]int `json:"columns" yaml:"columns"`
}

// NormalizeCompany canonicalizes a company name for use as a cache key.
func NormalizeCompany(name string) string {
	s := norm.NFKC.String(name)
	s = cases.Fold().String(s)
	return strings.Join(strings.Fields(s), " ")
}
