// Package ports declares the capability interfaces the orchestrator
// depends on, following the teacher's own ports.go split of driven
// adapters from the use case. Concrete implementations live under
// internal/infrastructure/*; tests supply in-memory fakes of the same
// interfaces.
package ports

import (
	"context"
	"time"

	"beatwatch/internal/domain"
)

// FetchOptions configures a single Fetcher.Fetch call.
type FetchOptions struct {
	Timeout     time.Duration
	MaxRetries  int
	UseBrowser  bool
	UserAgent   string
	TotalBudget time.Duration
}

// FetchResult is what a successful Fetch returns.
type FetchResult struct {
	StatusCode int
	Body       []byte
	FinalURL   string
}

// Fetcher retrieves an HTTP resource with retries, timeouts, and optional
// headless-browser rendering (C1).
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string, opts FetchOptions) (*FetchResult, error)
}

// Parser discovers articles on a source's listing page and normalizes them
// to RawArticle records (C3). since is the last_checked_at watermark, or
// nil; it is an optional early-exit hint only, never authoritative for
// duplication.
type Parser interface {
	FetchNew(ctx context.Context, source domain.Source, since *time.Time) ([]domain.RawArticle, error)
}

// ParserRegistry maps a parser_id string to a concrete Parser (C2).
type ParserRegistry interface {
	Get(parserID string) (Parser, error)
}

// CandidateParser is an optional capability a Parser may implement to
// expose the raw discovered listing URLs ahead of any article fetch,
// backing the dev-only /api/debug/candidates endpoint. Not every Parser
// needs it, so it is a separate interface rather than a Parser method.
type CandidateParser interface {
	Candidates(ctx context.Context, source domain.Source) ([]string, error)
}

// Enricher calls an LLM once per article to produce structured fields,
// falling back to a stub record on any failure (C5).
type Enricher interface {
	Enrich(ctx context.Context, article domain.RawArticle, source domain.Source) (domain.EnrichedIncident, error)
}

// UpsertResult is returned by Store.UpsertRaw.
type UpsertResult struct {
	Inserted bool
	ID       int64
}

// IncidentRow is the denormalized (Source, RawArticle, EnrichedIncident)
// join list_incidents projects, per spec.md §4.4.
type IncidentRow struct {
	Source   domain.Source
	Article  domain.RawArticle
	Incident domain.EnrichedIncident
}

// Store is the deduplicator/persistence contract (C4), including the
// refresh_jobs table that backs the job registry (C7).
type Store interface {
	// Source lifecycle.
	UpsertSource(ctx context.Context, src domain.Source) (domain.Source, error)
	ActiveSourcesFor(ctx context.Context, regionLabel string) ([]domain.Source, error)
	GetSource(ctx context.Context, sourceID int64) (domain.Source, error)
	TouchSource(ctx context.Context, sourceID int64, at time.Time) error

	// Article/incident dedup and persistence.
	UpsertRaw(ctx context.Context, article domain.RawArticle) (UpsertResult, error)
	StoreEnriched(ctx context.Context, incident domain.EnrichedIncident) error
	GetRawArticle(ctx context.Context, id int64) (domain.RawArticle, error)
	DeleteEnriched(ctx context.Context, id int64) error

	// Query surface reads.
	ListIncidents(ctx context.Context, regionLabel string, limit int) ([]IncidentRow, error)
	CountIncidents(ctx context.Context, regionLabel string) (int, error)

	// Job registry.
	CreateJob(ctx context.Context, region string) (domain.RefreshJob, error)
	MarkJobRunning(ctx context.Context, jobID string, at time.Time) error
	MarkJobSucceeded(ctx context.Context, jobID string, counts domain.RefreshCounts, at time.Time) error
	MarkJobFailed(ctx context.Context, jobID string, errMsg string, at time.Time) error
	GetJob(ctx context.Context, jobID string) (domain.RefreshJob, error)

	// Region-level advisory lock, closing the duplicate-refresh gap
	// SPEC_FULL.md Open Question #2 documents. TryLockRegion returns false
	// if another refresh already holds the lock; Unlock always succeeds.
	TryLockRegion(ctx context.Context, regionLabel string) (bool, error)
	UnlockRegion(ctx context.Context, regionLabel string) error
}

// ConfigProvider returns the configured source list (each with its Active
// flag, inactive ones included), treated as an opaque
// external collaborator per spec.md §1 Non-goals.
type ConfigProvider interface {
	Sources(ctx context.Context) ([]domain.Source, error)
}
