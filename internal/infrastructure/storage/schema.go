package storage

// schema is the bare CREATE TABLE set for the four tables spec.md §6
// names. Schema migration tooling is explicitly out of scope per spec.md
// §1; this is a single idempotent bootstrap, not a migration framework —
// callers that need real migrations run their own tool against the same
// tables.
const schema = `
CREATE TABLE IF NOT EXISTS sources (
	id              BIGSERIAL PRIMARY KEY,
	agency_name     TEXT NOT NULL,
	jurisdiction    TEXT NOT NULL,
	region_label    TEXT NOT NULL,
	source_type     TEXT NOT NULL,
	base_url        TEXT NOT NULL UNIQUE,
	parser_id       TEXT NOT NULL,
	active          BOOLEAN NOT NULL DEFAULT true,
	use_browser     BOOLEAN NOT NULL DEFAULT false,
	last_checked_at TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_sources_region ON sources (region_label);

CREATE TABLE IF NOT EXISTS articles_raw (
	id           BIGSERIAL PRIMARY KEY,
	source_id    BIGINT NOT NULL REFERENCES sources(id),
	external_id  TEXT NOT NULL,
	url          TEXT NOT NULL,
	title_raw    TEXT NOT NULL,
	body_raw     TEXT NOT NULL,
	published_at TIMESTAMPTZ,
	raw_html     TEXT,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (source_id, external_id)
);

CREATE TABLE IF NOT EXISTS incidents_enriched (
	id                BIGINT PRIMARY KEY REFERENCES articles_raw(id) ON DELETE CASCADE,
	severity          TEXT NOT NULL,
	summary_tactical  TEXT NOT NULL DEFAULT '',
	tags              TEXT[] NOT NULL DEFAULT '{}',
	entity_types      TEXT[] NOT NULL DEFAULT '{}',
	entity_names      TEXT[] NOT NULL DEFAULT '{}',
	location_label    TEXT,
	lat               DOUBLE PRECISION,
	lng               DOUBLE PRECISION,
	graph_cluster_key TEXT,
	crime_category    TEXT NOT NULL DEFAULT 'Unknown',
	temporal_context  TEXT,
	weapon_involved   TEXT,
	tactical_advice   TEXT,
	llm_model         TEXT NOT NULL,
	prompt_version    TEXT NOT NULL,
	processed_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS refresh_jobs (
	id               BIGSERIAL PRIMARY KEY,
	job_id           TEXT NOT NULL UNIQUE,
	region           TEXT NOT NULL,
	status           TEXT NOT NULL,
	new_articles     INTEGER NOT NULL DEFAULT 0,
	total_incidents  INTEGER NOT NULL DEFAULT 0,
	error_message    TEXT,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
	started_at       TIMESTAMPTZ,
	completed_at     TIMESTAMPTZ
);
`

// Migrate applies the bootstrap schema. Safe to call on every startup.
func (s *Store) Migrate() error {
	_, err := s.db.Exec(schema)
	return err
}
