package domain

import "time"

// RawArticle is one scraped article, stored verbatim. Once inserted its
// fields are never mutated by the pipeline.
type RawArticle struct {
	ID          int64
	SourceID    int64
	ExternalID  string
	URL         string
	TitleRaw    string
	BodyRaw     string
	PublishedAt *time.Time
	RawHTML     string
	CreatedAt   time.Time
}
