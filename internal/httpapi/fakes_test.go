package httpapi

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"beatwatch/internal/domain"
	"beatwatch/internal/ports"
)

// fakeStore is the same in-memory ports.Store shape internal/usecase tests
// against, rebuilt here since test helpers are unexported across packages.
type fakeStore struct {
	mu          sync.Mutex
	sources     map[int64]domain.Source
	nextSource  int64
	articles    map[int64]domain.RawArticle
	byExternal  map[string]int64
	nextArticle int64
	incidents   map[int64]domain.EnrichedIncident
	jobs        map[string]domain.RefreshJob
	locked      map[string]bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		sources:    map[int64]domain.Source{},
		articles:   map[int64]domain.RawArticle{},
		byExternal: map[string]int64{},
		incidents:  map[int64]domain.EnrichedIncident{},
		jobs:       map[string]domain.RefreshJob{},
		locked:     map[string]bool{},
	}
}

var _ ports.Store = (*fakeStore)(nil)

func (s *fakeStore) UpsertSource(ctx context.Context, src domain.Source) (domain.Source, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextSource++
	src.ID = s.nextSource
	s.sources[src.ID] = src
	return src, nil
}

func (s *fakeStore) ActiveSourcesFor(ctx context.Context, regionLabel string) ([]domain.Source, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Source
	for _, src := range s.sources {
		if src.RegionLabel == regionLabel && src.Active {
			out = append(out, src)
		}
	}
	return out, nil
}

func (s *fakeStore) GetSource(ctx context.Context, sourceID int64) (domain.Source, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	src, ok := s.sources[sourceID]
	if !ok {
		return domain.Source{}, domain.ErrSourceNotFound
	}
	return src, nil
}

func (s *fakeStore) TouchSource(ctx context.Context, sourceID int64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	src, ok := s.sources[sourceID]
	if !ok {
		return domain.ErrSourceNotFound
	}
	src.LastCheckedAt = &at
	s.sources[sourceID] = src
	return nil
}

func (s *fakeStore) UpsertRaw(ctx context.Context, article domain.RawArticle) (ports.UpsertResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := strconv.FormatInt(article.SourceID, 10) + ":" + article.ExternalID
	if id, ok := s.byExternal[key]; ok {
		return ports.UpsertResult{Inserted: false, ID: id}, nil
	}
	s.nextArticle++
	article.ID = s.nextArticle
	s.articles[article.ID] = article
	s.byExternal[key] = article.ID
	return ports.UpsertResult{Inserted: true, ID: article.ID}, nil
}

func (s *fakeStore) StoreEnriched(ctx context.Context, incident domain.EnrichedIncident) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.incidents[incident.ID] = incident
	return nil
}

func (s *fakeStore) GetRawArticle(ctx context.Context, id int64) (domain.RawArticle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.articles[id]
	if !ok {
		return domain.RawArticle{}, domain.ErrStore
	}
	return a, nil
}

func (s *fakeStore) DeleteEnriched(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.incidents, id)
	return nil
}

func (s *fakeStore) ListIncidents(ctx context.Context, regionLabel string, limit int) ([]ports.IncidentRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []ports.IncidentRow
	for _, a := range s.articles {
		src := s.sources[a.SourceID]
		if src.RegionLabel != regionLabel {
			continue
		}
		incident, ok := s.incidents[a.ID]
		if !ok {
			continue
		}
		out = append(out, ports.IncidentRow{Source: src, Article: a, Incident: incident})
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *fakeStore) CountIncidents(ctx context.Context, regionLabel string) (int, error) {
	rows, err := s.ListIncidents(ctx, regionLabel, 0)
	if err != nil {
		return 0, err
	}
	return len(rows), nil
}

func (s *fakeStore) CreateJob(ctx context.Context, region string) (domain.RefreshJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	jobID := "job-" + region + "-" + strconv.Itoa(len(s.jobs)+1)
	job := domain.RefreshJob{JobID: jobID, Region: region, Status: domain.JobPending, CreatedAt: time.Now().UTC()}
	s.jobs[jobID] = job
	return job, nil
}

func (s *fakeStore) MarkJobRunning(ctx context.Context, jobID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return nil
	}
	job.Status = domain.JobRunning
	job.StartedAt = &at
	s.jobs[jobID] = job
	return nil
}

func (s *fakeStore) MarkJobSucceeded(ctx context.Context, jobID string, counts domain.RefreshCounts, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return nil
	}
	job.Status = domain.JobSucceeded
	job.NewArticles = counts.NewArticles
	job.TotalIncidents = counts.TotalIncidents
	job.CompletedAt = &at
	s.jobs[jobID] = job
	return nil
}

func (s *fakeStore) MarkJobFailed(ctx context.Context, jobID string, errMsg string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return nil
	}
	job.Status = domain.JobFailed
	job.ErrorMessage = errMsg
	job.CompletedAt = &at
	s.jobs[jobID] = job
	return nil
}

func (s *fakeStore) GetJob(ctx context.Context, jobID string) (domain.RefreshJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return domain.RefreshJob{}, domain.ErrJobNotFound
	}
	return job, nil
}

func (s *fakeStore) TryLockRegion(ctx context.Context, regionLabel string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.locked[regionLabel] {
		return false, nil
	}
	s.locked[regionLabel] = true
	return true, nil
}

func (s *fakeStore) UnlockRegion(ctx context.Context, regionLabel string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.locked, regionLabel)
	return nil
}

// seedSource inserts an active source through UpsertSource, which assigns
// the next ID, so tests can assert on a known region/parser pairing.
func (s *fakeStore) seedSource(region, parserID string) domain.Source {
	src, _ := s.UpsertSource(context.Background(), domain.Source{
		RegionLabel: region,
		BaseURL:     "http://listing",
		ParserID:    parserID,
		Active:      true,
	})
	return src
}

// seedIncident inserts a raw article and its enriched incident directly,
// for the read-path handlers that never go through Refresh.
func (s *fakeStore) seedIncident(t *testing.T, sourceID int64, externalID string, incident domain.EnrichedIncident) int64 {
	t.Helper()
	result, err := s.UpsertRaw(context.Background(), domain.RawArticle{
		SourceID: sourceID, ExternalID: externalID, URL: "http://listing/" + externalID,
		TitleRaw: "T", BodyRaw: "B",
	})
	if err != nil {
		t.Fatalf("seed article: %v", err)
	}
	incident.ID = result.ID
	if err := s.StoreEnriched(context.Background(), incident); err != nil {
		t.Fatalf("seed incident: %v", err)
	}
	return result.ID
}

type fakeParser struct {
	articles []domain.RawArticle
	err      error
}

var _ ports.Parser = (*fakeParser)(nil)

func (p *fakeParser) FetchNew(ctx context.Context, source domain.Source, since *time.Time) ([]domain.RawArticle, error) {
	if p.err != nil {
		return nil, p.err
	}
	out := make([]domain.RawArticle, len(p.articles))
	for i, a := range p.articles {
		a.SourceID = source.ID
		out[i] = a
	}
	return out, nil
}

type fakeRegistry struct {
	parsers map[string]ports.Parser
}

var _ ports.ParserRegistry = (*fakeRegistry)(nil)

func (r *fakeRegistry) Get(parserID string) (ports.Parser, error) {
	p, ok := r.parsers[parserID]
	if !ok {
		return nil, domain.ErrUnknownParser
	}
	return p, nil
}

type fakeEnricher struct {
	err error
}

var _ ports.Enricher = fakeEnricher{}

func (f fakeEnricher) Enrich(ctx context.Context, article domain.RawArticle, source domain.Source) (domain.EnrichedIncident, error) {
	return domain.EnrichedIncident{
		ID:            article.ID,
		Severity:      domain.SeverityMedium,
		CrimeCategory: domain.CrimeUnknown,
		LLMModel:      domain.StubLLMModel,
		PromptVersion: domain.StubPromptVersion,
		Tags:          []string{},
		Entities:      []domain.Entity{},
	}, f.err
}
