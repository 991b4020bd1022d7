package storage

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"

	"beatwatch/internal/domain"
	"beatwatch/internal/ports"
)

// ListIncidents implements the C4 read contract backing the C8 query
// surface: a join across sources/articles_raw/incidents_enriched,
// ordered newest-first, with the dynamic limit built through squirrel
// rather than string-concatenated SQL.
func (s *Store) ListIncidents(ctx context.Context, regionLabel string, limit int) ([]ports.IncidentRow, error) {
	qb := s.builder.
		Select(
			"a.id", "a.source_id", "a.external_id", "a.url", "a.title_raw", "a.body_raw",
			"a.published_at", "a.raw_html", "a.created_at",
			"s.id", "s.agency_name", "s.jurisdiction", "s.region_label", "s.source_type",
			"s.base_url", "s.parser_id", "s.active", "s.use_browser",
			"i.severity", "i.summary_tactical", "i.tags", "i.entity_types", "i.entity_names",
			"i.location_label", "i.lat", "i.lng", "i.graph_cluster_key", "i.crime_category",
			"i.temporal_context", "i.weapon_involved", "i.tactical_advice",
			"i.llm_model", "i.prompt_version", "i.processed_at",
		).
		From("articles_raw a").
		Join("sources s ON s.id = a.source_id").
		Join("incidents_enriched i ON i.id = a.id").
		Where(sq.Eq{"s.region_label": regionLabel}).
		OrderBy("a.published_at DESC", "a.id DESC")

	if limit > 0 {
		qb = qb.Limit(uint64(limit))
	}

	query, args, err := qb.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list_incidents query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query incidents: %w", err)
	}
	defer rows.Close()

	var out []ports.IncidentRow
	for rows.Next() {
		row, err := scanIncidentRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func scanIncidentRow(rows *sql.Rows) (ports.IncidentRow, error) {
	var row ports.IncidentRow
	var published, lastChecked, processedAt sql.NullTime
	var rawHTML sql.NullString
	var tags, entityTypes, entityNames []string
	var locationLabel, graphClusterKey, temporalContext, weaponInvolved, tacticalAdvice sql.NullString
	var lat, lng sql.NullFloat64

	err := rows.Scan(
		&row.Article.ID, &row.Article.SourceID, &row.Article.ExternalID, &row.Article.URL,
		&row.Article.TitleRaw, &row.Article.BodyRaw, &published, &rawHTML, &row.Article.CreatedAt,
		&row.Source.ID, &row.Source.AgencyName, &row.Source.Jurisdiction, &row.Source.RegionLabel,
		&row.Source.SourceType, &row.Source.BaseURL, &row.Source.ParserID, &row.Source.Active, &row.Source.UseBrowser,
		&row.Incident.Severity, &row.Incident.SummaryTactical, pq.Array(&tags), pq.Array(&entityTypes), pq.Array(&entityNames),
		&locationLabel, &lat, &lng, &graphClusterKey, &row.Incident.CrimeCategory,
		&temporalContext, &weaponInvolved, &tacticalAdvice,
		&row.Incident.LLMModel, &row.Incident.PromptVersion, &processedAt,
	)
	if err != nil {
		return ports.IncidentRow{}, fmt.Errorf("scan incident row: %w", err)
	}

	_ = lastChecked // sources.last_checked_at not projected here; kept for symmetry with ActiveSourcesFor.

	if published.Valid {
		t := published.Time
		row.Article.PublishedAt = &t
	}
	row.Article.RawHTML = rawHTML.String
	row.Incident.ID = row.Article.ID
	row.Incident.Tags = tags
	if locationLabel.Valid {
		row.Incident.LocationLabel = &locationLabel.String
	}
	if lat.Valid {
		row.Incident.Lat = &lat.Float64
	}
	if lng.Valid {
		row.Incident.Lng = &lng.Float64
	}
	if graphClusterKey.Valid {
		row.Incident.GraphClusterKey = &graphClusterKey.String
	}
	if temporalContext.Valid {
		row.Incident.TemporalContext = &temporalContext.String
	}
	if weaponInvolved.Valid {
		row.Incident.WeaponInvolved = &weaponInvolved.String
	}
	if tacticalAdvice.Valid {
		row.Incident.TacticalAdvice = &tacticalAdvice.String
	}
	if processedAt.Valid {
		row.Incident.ProcessedAt = processedAt.Time
	}

	for i := range entityTypes {
		name := ""
		if i < len(entityNames) {
			name = entityNames[i]
		}
		row.Incident.Entities = append(row.Incident.Entities, domain.Entity{
			Type: domain.EntityType(entityTypes[i]),
			Name: name,
		})
	}

	return row, nil
}

// CountIncidents implements the C4 read contract.
func (s *Store) CountIncidents(ctx context.Context, regionLabel string) (int, error) {
	query, args, err := s.builder.
		Select("COUNT(*)").
		From("articles_raw a").
		Join("sources s ON s.id = a.source_id").
		Join("incidents_enriched i ON i.id = a.id").
		Where(sq.Eq{"s.region_label": regionLabel}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count_incidents query: %w", err)
	}

	var count int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count incidents: %w", err)
	}
	return count, nil
}
