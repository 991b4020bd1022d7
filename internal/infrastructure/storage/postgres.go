// Package storage implements C4 (the deduplicator/persistence layer) and
// the refresh_jobs table backing C7, against PostgreSQL. Grounded on the
// teacher's infrastructure/storage.PostgresRepository (database/sql +
// github.com/lib/pq), with github.com/Masterminds/squirrel wired in for
// the dynamic filters list_incidents/active_sources_for need — squirrel
// was declared in the teacher's go.mod but never actually used there.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"hash/fnv"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"

	"beatwatch/internal/domain"
	"beatwatch/internal/ports"
)

// Store implements ports.Store against PostgreSQL.
type Store struct {
	db      *sql.DB
	builder sq.StatementBuilderType
}

var _ ports.Store = (*Store)(nil)

// New wraps an already-opened *sql.DB. Callers are responsible for the
// DATABASE_URL-based sql.Open call; this package only issues queries.
func New(db *sql.DB) *Store {
	return &Store{
		db:      db,
		builder: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// UpsertSource inserts src if src.BaseURL is new, or otherwise overwrites
// the existing row's descriptor fields from src (keeping its id and
// last_checked_at). base_url is the uniqueness key spec.md §3 fixes.
func (s *Store) UpsertSource(ctx context.Context, src domain.Source) (domain.Source, error) {
	query := `
		INSERT INTO sources (agency_name, jurisdiction, region_label, source_type, base_url, parser_id, active, use_browser)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (base_url) DO UPDATE SET
			agency_name = EXCLUDED.agency_name,
			jurisdiction = EXCLUDED.jurisdiction,
			region_label = EXCLUDED.region_label,
			source_type = EXCLUDED.source_type,
			parser_id = EXCLUDED.parser_id,
			active = EXCLUDED.active,
			use_browser = EXCLUDED.use_browser
		RETURNING id, last_checked_at`

	row := s.db.QueryRowContext(ctx, query,
		src.AgencyName, src.Jurisdiction, src.RegionLabel, src.SourceType,
		src.BaseURL, src.ParserID, src.Active, src.UseBrowser)

	var id int64
	var lastChecked sql.NullTime
	if err := row.Scan(&id, &lastChecked); err != nil {
		return domain.Source{}, fmt.Errorf("upsert source %s: %w", src.BaseURL, err)
	}

	src.ID = id
	if lastChecked.Valid {
		t := lastChecked.Time
		src.LastCheckedAt = &t
	}
	return src, nil
}

// ActiveSourcesFor implements the C4 read contract.
func (s *Store) ActiveSourcesFor(ctx context.Context, regionLabel string) ([]domain.Source, error) {
	query, args, err := s.builder.
		Select("id", "agency_name", "jurisdiction", "region_label", "source_type", "base_url", "parser_id", "active", "use_browser", "last_checked_at").
		From("sources").
		Where(sq.Eq{"region_label": regionLabel, "active": true}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build active_sources_for query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query active sources: %w", err)
	}
	defer rows.Close()

	var out []domain.Source
	for rows.Next() {
		var src domain.Source
		var lastChecked sql.NullTime
		if err := rows.Scan(&src.ID, &src.AgencyName, &src.Jurisdiction, &src.RegionLabel,
			&src.SourceType, &src.BaseURL, &src.ParserID, &src.Active, &src.UseBrowser, &lastChecked); err != nil {
			return nil, fmt.Errorf("scan source: %w", err)
		}
		if lastChecked.Valid {
			t := lastChecked.Time
			src.LastCheckedAt = &t
		}
		out = append(out, src)
	}
	return out, rows.Err()
}

// GetSource fetches one Source by id, used by the replay path to resolve
// an article's source context without a region hint.
func (s *Store) GetSource(ctx context.Context, sourceID int64) (domain.Source, error) {
	var src domain.Source
	var lastChecked sql.NullTime
	err := s.db.QueryRowContext(ctx, `
		SELECT id, agency_name, jurisdiction, region_label, source_type, base_url, parser_id, active, use_browser, last_checked_at
		FROM sources WHERE id = $1`, sourceID,
	).Scan(&src.ID, &src.AgencyName, &src.Jurisdiction, &src.RegionLabel,
		&src.SourceType, &src.BaseURL, &src.ParserID, &src.Active, &src.UseBrowser, &lastChecked)
	if err == sql.ErrNoRows {
		return domain.Source{}, fmt.Errorf("%w: %d", domain.ErrSourceNotFound, sourceID)
	}
	if err != nil {
		return domain.Source{}, fmt.Errorf("get source %d: %w", sourceID, err)
	}
	if lastChecked.Valid {
		t := lastChecked.Time
		src.LastCheckedAt = &t
	}
	return src, nil
}

// TouchSource advances last_checked_at, idempotently.
func (s *Store) TouchSource(ctx context.Context, sourceID int64, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `UPDATE sources SET last_checked_at = $1 WHERE id = $2`, at, sourceID)
	if err != nil {
		return fmt.Errorf("touch source %d: %w", sourceID, err)
	}
	return nil
}

// UpsertRaw implements the at-most-one-copy contract: atomic lookup by
// (source_id, external_id); insert only if absent; never mutate an
// existing row.
func (s *Store) UpsertRaw(ctx context.Context, article domain.RawArticle) (ports.UpsertResult, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO articles_raw (source_id, external_id, url, title_raw, body_raw, published_at, raw_html)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (source_id, external_id) DO NOTHING
		RETURNING id`,
		article.SourceID, article.ExternalID, article.URL, article.TitleRaw,
		article.BodyRaw, article.PublishedAt, article.RawHTML,
	).Scan(&id)

	if errors.Is(err, sql.ErrNoRows) {
		// Conflict hit: row already exists. Look up its id — this is the
		// "benign race" StoreError path spec.md §7 describes, not a
		// failure, so it returns normally with Inserted=false.
		existingID, lookupErr := s.lookupExisting(ctx, article.SourceID, article.ExternalID)
		if lookupErr != nil {
			return ports.UpsertResult{}, fmt.Errorf("%w: lookup after conflict: %v", domain.ErrStore, lookupErr)
		}
		return ports.UpsertResult{Inserted: false, ID: existingID}, nil
	}
	if err != nil {
		return ports.UpsertResult{}, fmt.Errorf("upsert raw article: %w", err)
	}

	return ports.UpsertResult{Inserted: true, ID: id}, nil
}

func (s *Store) lookupExisting(ctx context.Context, sourceID int64, externalID string) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx,
		`SELECT id FROM articles_raw WHERE source_id = $1 AND external_id = $2`,
		sourceID, externalID).Scan(&id)
	return id, err
}

// GetRawArticle fetches one RawArticle by id.
func (s *Store) GetRawArticle(ctx context.Context, id int64) (domain.RawArticle, error) {
	var a domain.RawArticle
	var published sql.NullTime
	var rawHTML sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT id, source_id, external_id, url, title_raw, body_raw, published_at, raw_html, created_at
		FROM articles_raw WHERE id = $1`, id,
	).Scan(&a.ID, &a.SourceID, &a.ExternalID, &a.URL, &a.TitleRaw, &a.BodyRaw, &published, &rawHTML, &a.CreatedAt)
	if err != nil {
		return domain.RawArticle{}, fmt.Errorf("get raw article %d: %w", id, err)
	}
	if published.Valid {
		t := published.Time
		a.PublishedAt = &t
	}
	a.RawHTML = rawHTML.String
	return a, nil
}

// StoreEnriched inserts an EnrichedIncident keyed by incident.ID, failing
// loudly (domain.ErrAlreadyEnriched) if a row already exists — callers
// must only enrich newly inserted RawArticles.
func (s *Store) StoreEnriched(ctx context.Context, incident domain.EnrichedIncident) error {
	entityTypes := make([]string, len(incident.Entities))
	entityNames := make([]string, len(incident.Entities))
	for i, e := range incident.Entities {
		entityTypes[i] = string(e.Type)
		entityNames[i] = e.Name
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO incidents_enriched (
			id, severity, summary_tactical, tags, entity_types, entity_names,
			location_label, lat, lng, graph_cluster_key, crime_category,
			temporal_context, weapon_involved, tactical_advice,
			llm_model, prompt_version, processed_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)`,
		incident.ID, string(incident.Severity), incident.SummaryTactical,
		pq.Array(incident.Tags), pq.Array(entityTypes), pq.Array(entityNames),
		incident.LocationLabel, incident.Lat, incident.Lng, incident.GraphClusterKey,
		string(incident.CrimeCategory), incident.TemporalContext, incident.WeaponInvolved,
		incident.TacticalAdvice, incident.LLMModel, incident.PromptVersion, incident.ProcessedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: incident %d", domain.ErrAlreadyEnriched, incident.ID)
		}
		return fmt.Errorf("store enriched incident %d: %w", incident.ID, err)
	}
	return nil
}

// DeleteEnriched removes one EnrichedIncident row, used only by the
// operator-driven re-enrichment replay (SPEC_FULL.md §10), never by the
// refresh path.
func (s *Store) DeleteEnriched(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM incidents_enriched WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete enriched incident %d: %w", id, err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}

// TryLockRegion and UnlockRegion implement the advisory lock
// SPEC_FULL.md's Open Question #2 decision adds, keyed by a stable hash of
// the region label so arbitrary-length strings fit Postgres's bigint
// advisory-lock key space.
func (s *Store) TryLockRegion(ctx context.Context, regionLabel string) (bool, error) {
	var locked bool
	err := s.db.QueryRowContext(ctx, `SELECT pg_try_advisory_lock($1)`, regionLockKey(regionLabel)).Scan(&locked)
	if err != nil {
		return false, fmt.Errorf("try advisory lock for region %s: %w", regionLabel, err)
	}
	return locked, nil
}

func (s *Store) UnlockRegion(ctx context.Context, regionLabel string) error {
	_, err := s.db.ExecContext(ctx, `SELECT pg_advisory_unlock($1)`, regionLockKey(regionLabel))
	if err != nil {
		return fmt.Errorf("unlock region %s: %w", regionLabel, err)
	}
	return nil
}

func regionLockKey(regionLabel string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(regionLabel))
	return int64(h.Sum64())
}
