// Package pipeline runs the three-stage enrichment of a lead list.
package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/lead-enrich/internal/cache"
	"github.com/sells-group/lead-enrich/internal/config"
	"github.com/sells-group/lead-enrich/internal/model"
	"github.com/sells-group/lead-enrich/internal/store"
)

// URLResolver finds a company's website.
type URLResolver interface {
	Resolve(ctx context.Context, company string) model.Lookup[string]
}

// SocialExtractor finds social profiles on a website.
type SocialExtractor interface {
	Extract(ctx context.Context, website string) model.Lookup[model.Socials]
}

// EmailExtractor finds ranked contact emails.
type EmailExtractor interface {
	FromWebsite(ctx context.Context, website string) model.Lookup[[]string]
	FromCompany(ctx context.Context, company string) model.Lookup[[]string]
}

// Stage names used in logs and metrics.
const (
	StageURLs    = "urls"
	StageSocials = "socials"
	StageEmails  = "emails"
)

// noWebsitePrefix keys email lookups made by company name.
const noWebsitePrefix = "__no_website__"

// Options tunes a Pipeline.
type Options struct {
	URLDelay        time.Duration
	SocialDelay     time.Duration
	EmailDelay      time.Duration
	CheckpointEvery int
	Metrics         *Metrics
}

// OptionsFromConfig maps the enrich config section to Options.
func OptionsFromConfig(cfg config.EnrichConfig) Options {
	return Options{
		URLDelay:        time.Duration(cfg.URLDelayMs) * time.Millisecond,
		SocialDelay:     time.Duration(cfg.SocialDelayMs) * time.Millisecond,
		EmailDelay:      time.Duration(cfg.EmailDelayMs) * time.Millisecond,
		CheckpointEvery: cfg.CheckpointEvery,
	}
}

// Pipeline sequences the URL, social and email stages over a list.
type Pipeline struct {
	store    store.Store
	caches   *cache.Set
	resolver URLResolver
	social   SocialExtractor
	email    EmailExtractor
	opts     Options
}

// New creates a Pipeline with all dependencies.
func New(st store.Store, caches *cache.Set, r URLResolver, s SocialExtractor, e EmailExtractor, opts Options) *Pipeline {
	if opts.CheckpointEvery < 1 {
		opts.CheckpointEvery = 10
	}
	return &Pipeline{
		store:    st,
		caches:   caches,
		resolver: r,
		social:   s,
		email:    e,
		opts:     opts,
	}
}

// Run enriches every lead of the list. It never returns an error: the
// outcome is recorded in the list's enrichment status. A cancelled ctx
// ends the run after the current stage commits what it has, and leaves
// the list in the error state so it can be run again.
func (p *Pipeline) Run(ctx context.Context, listID int64) {
	log := zap.L().With(zap.Int64("list_id", listID), zap.String("run_id", uuid.NewString()))
	log.Info("pipeline: starting enrichment")
	start := time.Now()

	// Status writes must land even when the run itself was cancelled.
	statusCtx := context.WithoutCancel(ctx)
	setStatus := func(status model.EnrichmentStatus) error {
		if err := p.store.SetListStatus(statusCtx, listID, status); err != nil {
			log.Warn("pipeline: failed to update status",
				zap.String("status", string(status)),
				zap.Error(err),
			)
			return err
		}
		return nil
	}
	fail := func(err error) {
		log.Error("pipeline: enrichment failed", zap.Error(err))
		_ = setStatus(model.StatusError)
		p.opts.Metrics.run(string(model.StatusError))
	}

	defer func() {
		if r := recover(); r != nil {
			fail(eris.Errorf("pipeline: panic: %v", r))
		}
	}()

	leads, err := p.store.ListLeads(ctx, listID)
	if err != nil {
		fail(eris.Wrap(err, "pipeline: load leads"))
		return
	}
	if len(leads) == 0 {
		log.Info("pipeline: list has no leads")
		if err := setStatus(model.StatusComplete); err == nil {
			p.opts.Metrics.run(string(model.StatusComplete))
		}
		return
	}

	stages := []struct {
		status model.EnrichmentStatus
		name   string
		run    func(context.Context, []model.Lead) (stageResult, error)
	}{
		{model.StatusEnrichingURLs, StageURLs, p.enrichURLs},
		{model.StatusEnrichingSocials, StageSocials, p.enrichSocials},
		{model.StatusEnrichingEmails, StageEmails, p.enrichEmails},
	}

	for _, st := range stages {
		if ctx.Err() != nil {
			fail(eris.Wrap(ctx.Err(), "pipeline: cancelled"))
			return
		}
		if err := setStatus(st.status); err != nil {
			fail(eris.Wrapf(err, "pipeline: set status %s", st.status))
			return
		}
		p.trackStage(log, st.name, func() (stageResult, error) {
			return st.run(ctx, leads)
		})
	}

	if ctx.Err() != nil {
		fail(eris.Wrap(ctx.Err(), "pipeline: cancelled"))
		return
	}
	if err := setStatus(model.StatusComplete); err != nil {
		fail(eris.Wrap(err, "pipeline: set status complete"))
		return
	}
	p.opts.Metrics.run(string(model.StatusComplete))
	log.Info("pipeline: enrichment complete",
		zap.Int("leads", len(leads)),
		zap.Int64("duration_ms", time.Since(start).Milliseconds()),
	)
}

// trackStage times a stage and logs its counts. Errors and panics are
// logged and swallowed so the next stage still runs.
func (p *Pipeline) trackStage(log *zap.Logger, name string, fn func() (stageResult, error)) {
	start := time.Now()
	res, err := func() (res stageResult, err error) {
		defer func() {
			if r := recover(); r != nil {
				err = eris.Errorf("pipeline: %s: panic: %v", name, r)
			}
		}()
		return fn()
	}()
	elapsed := time.Since(start)
	p.opts.Metrics.stage(name, elapsed)
	p.opts.Metrics.updated(name, res.Updated)

	fields := []zap.Field{
		zap.String("stage", name),
		zap.Int64("duration_ms", elapsed.Milliseconds()),
		zap.Int("candidates", res.Candidates),
		zap.Int("processed", res.Processed),
		zap.Int("cache_hits", res.CacheHits),
		zap.Int("lookups", res.Lookups),
		zap.Int("found", res.Found),
		zap.Int("failed", res.Failed),
		zap.Int("updated", res.Updated),
	}
	if err != nil {
		log.Error("pipeline: stage failed", append(fields, zap.Error(err))...)
		return
	}
	log.Info("pipeline: stage complete", fields...)
}

func (p *Pipeline) enrichURLs(ctx context.Context, leads []model.Lead) (stageResult, error) {
	return runStage(ctx, p, stageDef[string]{
		name:     StageURLs,
		store:    p.caches.URLs,
		governor: NewGovernor(p.opts.URLDelay),
		needs: func(l *model.Lead) bool {
			return l.CompanyWebsite == ""
		},
		key: func(l *model.Lead) string {
			return model.NormalizeCompany(l.LookupName())
		},
		lookup: func(ctx context.Context, l *model.Lead) model.Lookup[string] {
			return p.resolver.Resolve(ctx, l.LookupName())
		},
		apply: func(l *model.Lead, website string) model.Enrichment {
			if l.Set(model.ColWebsite, website) {
				return model.Enrichment{Website: website}
			}
			return model.Enrichment{}
		},
	}, leads)
}

func (p *Pipeline) enrichSocials(ctx context.Context, leads []model.Lead) (stageResult, error) {
	return runStage(ctx, p, stageDef[model.Socials]{
		name:     StageSocials,
		store:    p.caches.Socials,
		governor: NewGovernor(p.opts.SocialDelay),
		needs: func(l *model.Lead) bool {
			return l.CompanyWebsite != "" && l.MissingSocials()
		},
		key: func(l *model.Lead) string {
			return l.CompanyWebsite
		},
		lookup: func(ctx context.Context, l *model.Lead) model.Lookup[model.Socials] {
			out := p.social.Extract(ctx, l.CompanyWebsite)
			if out.Value == nil {
				out.Value = model.Socials{}
			}
			return out
		},
		apply: func(l *model.Lead, found model.Socials) model.Enrichment {
			set := make(model.Socials)
			for _, platform := range model.AllPlatforms() {
				if u := found[platform]; l.Set(platform.Column(), u) {
					set[platform] = u
				}
			}
			return model.Enrichment{Socials: set}
		},
	}, leads)
}

func (p *Pipeline) enrichEmails(ctx context.Context, leads []model.Lead) (stageResult, error) {
	return runStage(ctx, p, stageDef[[]string]{
		name:     StageEmails,
		store:    p.caches.Emails,
		governor: NewGovernor(p.opts.EmailDelay),
		needs: func(l *model.Lead) bool {
			return l.Email == ""
		},
		key: emailKey,
		lookup: func(ctx context.Context, l *model.Lead) model.Lookup[[]string] {
			var out model.Lookup[[]string]
			if l.CompanyWebsite != "" {
				out = p.email.FromWebsite(ctx, l.CompanyWebsite)
			} else {
				out = p.email.FromCompany(ctx, l.LookupName())
			}
			if out.Value == nil {
				out.Value = []string{}
			}
			return out
		},
		apply: func(l *model.Lead, emails []string) model.Enrichment {
			if len(emails) > 0 && l.Set(model.ColEmail, emails[0]) {
				return model.Enrichment{Email: emails[0]}
			}
			return model.Enrichment{}
		},
	}, leads)
}

// emailKey is the website, or the no-website sentinel plus the normalized
// company name. Leads with neither are skipped.
func emailKey(l *model.Lead) string {
	if l.CompanyWebsite != "" {
		return l.CompanyWebsite
	}
	if name := model.NormalizeCompany(l.LookupName()); name != "" {
		return noWebsitePrefix + name
	}
	return ""
}
