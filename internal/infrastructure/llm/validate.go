package llm

import (
	"encoding/json"
	"fmt"

	"beatwatch/internal/domain"
)

// wireIncident is the JSON shape requested from the LLM. No JSON-schema
// validation library appears anywhere in the example corpus, so this
// decode-then-validate step is deliberately stdlib-only (see DESIGN.md).
type wireIncident struct {
	Severity        string       `json:"severity"`
	SummaryTactical string       `json:"summary_tactical"`
	Tags            []string     `json:"tags"`
	Entities        []wireEntity `json:"entities"`
	LocationLabel   *string      `json:"location_label"`
	Lat             *float64     `json:"lat"`
	Lng             *float64     `json:"lng"`
	GraphClusterKey *string      `json:"graph_cluster_key"`
	CrimeCategory   string       `json:"crime_category"`
	TemporalContext *string      `json:"temporal_context"`
	WeaponInvolved  *string      `json:"weapon_involved"`
	TacticalAdvice  *string      `json:"tactical_advice"`
}

type wireEntity struct {
	Type string `json:"type"`
	Name string `json:"name"`
}

// parseAndValidate decodes raw JSON and checks it against the closed
// severity and crime-category domains. Any decode or domain-validation
// failure is returned as an error; the caller falls through to the stub
// path and logs the offending response, per spec.md §4.5 step 3.
func parseAndValidate(raw string, articleID int64) (domain.EnrichedIncident, error) {
	var w wireIncident
	if err := json.Unmarshal([]byte(raw), &w); err != nil {
		return domain.EnrichedIncident{}, fmt.Errorf("decode llm response: %w: %s", err, raw)
	}

	severity := domain.Severity(w.Severity)
	if !domain.ValidSeverity(severity) {
		return domain.EnrichedIncident{}, fmt.Errorf("invalid severity %q in response: %s", w.Severity, raw)
	}

	category := domain.CrimeCategory(w.CrimeCategory)
	if category == "" {
		category = domain.CrimeUnknown
	}
	if !domain.ValidCrimeCategory(category) {
		return domain.EnrichedIncident{}, fmt.Errorf("invalid crime_category %q in response: %s", w.CrimeCategory, raw)
	}

	summary := w.SummaryTactical
	if len(summary) > 200 {
		summary = summary[:200]
	}

	entities := make([]domain.Entity, 0, len(w.Entities))
	for _, e := range w.Entities {
		t := domain.EntityType(e.Type)
		switch t {
		case domain.EntityPerson, domain.EntityGroup, domain.EntityLocation:
			entities = append(entities, domain.Entity{Type: t, Name: e.Name})
		default:
			// Drop entities with an unrecognized type rather than failing
			// the whole record; the graph view only ever sees the closed set.
		}
	}

	tags := w.Tags
	if tags == nil {
		tags = []string{}
	}

	return domain.EnrichedIncident{
		ID:              articleID,
		Severity:        severity,
		SummaryTactical: summary,
		Tags:            tags,
		Entities:        entities,
		LocationLabel:   w.LocationLabel,
		Lat:             w.Lat,
		Lng:             w.Lng,
		GraphClusterKey: w.GraphClusterKey,
		CrimeCategory:   category,
		TemporalContext: w.TemporalContext,
		WeaponInvolved:  w.WeaponInvolved,
		TacticalAdvice:  w.TacticalAdvice,
	}, nil
}
