// Package usecase implements C6 (the refresh orchestrator), driving
// C3->C4->C5 for every active source in a region under per-source
// isolation and timeout. Grounded on the teacher's usecase.Pipeline
// shape (an explicit deps struct, no package-level singletons — per
// SPEC_FULL.md §9's "pipeline context" design note) but fanned out across
// sources with golang.org/x/sync/errgroup, the module
// yungbote-neurobridge-backend reaches for to bound concurrent step
// fan-out.
package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"beatwatch/internal/domain"
	"beatwatch/internal/ports"
)

const (
	// maxSourceFanOut is the ≤4 concurrent source-tasks spec.md §4.6 caps
	// a region refresh at.
	maxSourceFanOut = 4

	// perSourceDeadline is the default 45s deadline spec.md §4.6 and §5
	// name for a single source-task.
	perSourceDeadline = 45 * time.Second
)

// OrchestratorDeps wires every driven adapter the orchestrator needs,
// passed explicitly rather than resolved from globals.
type OrchestratorDeps struct {
	Store    ports.Store
	Registry ports.ParserRegistry
	Enricher ports.Enricher
	Logger   *slog.Logger
}

// Orchestrator implements the C6 contract: a blocking Refresh and an
// async StartAsync/pairs-with-GetJob entry point.
type Orchestrator struct {
	store    ports.Store
	registry ports.ParserRegistry
	enricher ports.Enricher
	logger   *slog.Logger
}

// New builds an Orchestrator from explicit dependencies.
func New(deps OrchestratorDeps) *Orchestrator {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		store:    deps.Store,
		registry: deps.Registry,
		enricher: deps.Enricher,
		logger:   logger,
	}
}

// sourceOutcome names the non-fatal states a single source-task may end
// in, per spec.md §4.6.
type sourceOutcome string

const (
	outcomeOK                sourceOutcome = "OK"
	outcomeParserUnknown     sourceOutcome = "ParserUnknown"
	outcomeListingFailed     sourceOutcome = "ListingFetchFailed"
	outcomeTimeout           sourceOutcome = "Timeout"
	outcomePartialSuccess    sourceOutcome = "PartialSuccess"
)

// Refresh implements the synchronous refresh(region) entry point.
func (o *Orchestrator) Refresh(ctx context.Context, region string) (domain.RefreshCounts, error) {
	sources, err := o.store.ActiveSourcesFor(ctx, region)
	if err != nil {
		return domain.RefreshCounts{}, fmt.Errorf("load active sources for %s: %w", region, err)
	}
	if len(sources) == 0 {
		return domain.RefreshCounts{}, fmt.Errorf("%w: %s", domain.ErrNoActiveSources, region)
	}

	// SPEC_FULL.md Open Question #2: serialize same-region refreshes via an
	// advisory lock rather than letting two runs race on the same new
	// article and double-spend LLM calls. A refresh that finds the region
	// already locked is not an error — it returns the current totals as a
	// zero-new-articles no-op.
	locked, err := o.store.TryLockRegion(ctx, region)
	if err != nil {
		return domain.RefreshCounts{}, fmt.Errorf("lock region %s: %w", region, err)
	}
	if !locked {
		total, countErr := o.store.CountIncidents(ctx, region)
		if countErr != nil {
			return domain.RefreshCounts{}, fmt.Errorf("count incidents for %s: %w", region, countErr)
		}
		o.logger.InfoContext(ctx, "refresh skipped, region already in flight", "region", region)
		return domain.RefreshCounts{Region: region, NewArticles: 0, TotalIncidents: total}, nil
	}
	defer func() {
		if err := o.store.UnlockRegion(context.WithoutCancel(ctx), region); err != nil {
			o.logger.Error("unlock region failed", "region", region, "error", err)
		}
	}()

	newArticles := o.runSources(ctx, sources)

	total, err := o.store.CountIncidents(ctx, region)
	if err != nil {
		return domain.RefreshCounts{}, fmt.Errorf("count incidents for %s: %w", region, err)
	}

	return domain.RefreshCounts{Region: region, NewArticles: newArticles, TotalIncidents: total}, nil
}

// runSources fans out across sources up to maxSourceFanOut, sequential
// within each source, and sums inserted counts. Individual source
// failures are absorbed here and only show up as a lower count — per
// spec.md §4.6 step 4 and §7's propagation policy.
func (o *Orchestrator) runSources(ctx context.Context, sources []domain.Source) int {
	g, gctx := errgroup.WithContext(context.WithoutCancel(ctx))
	g.SetLimit(maxSourceFanOut)

	counts := make([]int, len(sources))
	for i, src := range sources {
		i, src := i, src
		g.Go(func() error {
			counts[i] = o.runSource(gctx, src)
			return nil
		})
	}
	_ = g.Wait()

	total := 0
	for _, c := range counts {
		total += c
	}
	return total
}

// runSource processes one source's articles sequentially under a
// per-source deadline, returning the number of newly inserted articles.
func (o *Orchestrator) runSource(ctx context.Context, src domain.Source) int {
	sourceCtx, cancel := context.WithTimeout(ctx, perSourceDeadline)
	defer cancel()

	log := o.logger.With("source_id", src.ID, "parser_id", src.ParserID, "region", src.RegionLabel)

	p, err := o.registry.Get(src.ParserID)
	if err != nil {
		log.Warn("unknown parser, skipping source", "outcome", outcomeParserUnknown, "error", err)
		return 0
	}

	articles, err := p.FetchNew(sourceCtx, src, src.LastCheckedAt)
	listingFailed := err != nil
	if err != nil {
		outcome := outcomeListingFailed
		if sourceCtx.Err() != nil {
			outcome = outcomeTimeout
		}
		log.Warn("listing fetch failed, source run aborted", "outcome", outcome, "error", err)
	}

	inserted := 0
	failures := 0
	for _, article := range articles {
		result, err := o.store.UpsertRaw(sourceCtx, article)
		if err != nil {
			log.Error("upsert raw article failed", "url", article.URL, "error", err)
			failures++
			continue
		}
		if !result.Inserted {
			continue
		}

		inserted++
		article.ID = result.ID

		incident, enrichErr := o.enricher.Enrich(sourceCtx, article, src)
		if enrichErr != nil {
			// EnrichmentError: the enricher already fell back to a stub;
			// data is never lost, only the failure is logged.
			log.Warn("enrichment fell back to stub", "article_id", article.ID, "error", enrichErr)
		}
		incident.ID = article.ID

		if err := o.store.StoreEnriched(sourceCtx, incident); err != nil {
			log.Error("store enriched incident failed", "article_id", article.ID, "error", err)
			failures++
		}
	}

	// SPEC_FULL.md Open Question #1: only advance the watermark after a
	// listing fetch that actually succeeded, even if it yielded zero new
	// articles. A source whose listing has been broken for days should
	// keep failing loudly, not quietly look "checked."
	if !listingFailed {
		if err := o.store.TouchSource(sourceCtx, src.ID, time.Now().UTC()); err != nil {
			log.Error("touch source failed", "error", err)
		}
	}

	switch {
	case listingFailed:
		return inserted
	case failures > 0:
		log.Info("source run completed", "outcome", outcomePartialSuccess, "inserted", inserted, "failures", failures)
	default:
		log.Info("source run completed", "outcome", outcomeOK, "inserted", inserted)
	}

	return inserted
}
