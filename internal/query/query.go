// Package query implements C8, the read-only derivation layer over
// C4's list_incidents/count_incidents rows. Every function here is pure
// and stateless: no I/O, no caching, nothing cyclic. There is no
// ecosystem library in the retrieved examples for reshaping an
// in-process struct list into a denormalized view or a node/edge graph
// — this stays on the standard library, same as the teacher's own
// scanner.Result-to-response mapping.
package query

import (
	"strconv"

	"beatwatch/internal/domain"
	"beatwatch/internal/ports"
)

// Coordinates is the nested {lat,lng} object spec.md §6 puts on every
// incident, rather than flat Lat/Lng fields.
type Coordinates struct {
	Lat *float64 `json:"lat"`
	Lng *float64 `json:"lng"`
}

// Incident is the denormalized, as-wire projection spec.md §6 fixes:
// agency name, severity, summary, tags, entities, coordinates,
// enrichment extras, and the original article URL. Field names and
// casing here are the wire contract, not a Go naming convention.
type Incident struct {
	ID                 int64                `json:"id"`
	Timestamp          string               `json:"timestamp"`
	Source             string               `json:"source"`
	AgencyName         string               `json:"agencyName"`
	Location           string               `json:"location"`
	Coordinates        Coordinates          `json:"coordinates"`
	Summary            string               `json:"summary"`
	FullText           string               `json:"fullText"`
	Severity           string               `json:"severity"`
	Tags               []string             `json:"tags"`
	Entities           []domain.Entity      `json:"entities"`
	RelatedIncidentIDs []int64              `json:"relatedIncidentIds"`
	SourceURL          string               `json:"sourceUrl"`
	CrimeCategory      domain.CrimeCategory `json:"crimeCategory"`
	TemporalContext    *string              `json:"temporalContext"`
	WeaponInvolved     *string              `json:"weaponInvolved"`
	TacticalAdvice     *string              `json:"tacticalAdvice"`
}

// titleCaseSeverity maps the stored upper-case severity domain to the
// title-cased wire form spec.md §6 requires, the same mapping the
// original backend's severity_map applied before returning incidents,
// defaulting to "Medium" on anything outside the closed set.
func titleCaseSeverity(s domain.Severity) string {
	switch s {
	case domain.SeverityLow:
		return "Low"
	case domain.SeverityHigh:
		return "High"
	case domain.SeverityCritical:
		return "Critical"
	default:
		return "Medium"
	}
}

// Incidents projects rows to the wire Incident shape, newest-first —
// list_incidents already orders by published_at desc, id desc, so this
// preserves order rather than re-sorting.
func Incidents(rows []ports.IncidentRow) []Incident {
	out := make([]Incident, 0, len(rows))
	for _, row := range rows {
		out = append(out, toIncident(row))
	}
	relateByCluster(rows, out)
	return out
}

func toIncident(row ports.IncidentRow) Incident {
	ts := row.Article.CreatedAt
	if row.Article.PublishedAt != nil {
		ts = *row.Article.PublishedAt
	}

	location := ""
	if row.Incident.LocationLabel != nil {
		location = *row.Incident.LocationLabel
	}

	tags := row.Incident.Tags
	if tags == nil {
		tags = []string{}
	}
	entities := row.Incident.Entities
	if entities == nil {
		entities = []domain.Entity{}
	}

	return Incident{
		ID:                 row.Article.ID,
		Timestamp:          ts.UTC().Format("2006-01-02T15:04:05Z"),
		Source:             row.Source.SourceType,
		AgencyName:         row.Source.AgencyName,
		Location:           location,
		Coordinates:        Coordinates{Lat: row.Incident.Lat, Lng: row.Incident.Lng},
		Summary:            row.Incident.SummaryTactical,
		FullText:           row.Article.BodyRaw,
		Severity:           titleCaseSeverity(row.Incident.Severity),
		Tags:               tags,
		Entities:           entities,
		RelatedIncidentIDs: []int64{},
		SourceURL:          row.Article.URL,
		CrimeCategory:      row.Incident.CrimeCategory,
		TemporalContext:    row.Incident.TemporalContext,
		WeaponInvolved:     row.Incident.WeaponInvolved,
		TacticalAdvice:     row.Incident.TacticalAdvice,
	}
}

// relateByCluster fills RelatedIncidentIDs by grouping on
// graph_cluster_key: any two incidents sharing a non-empty key are
// related to each other. Mutates out in place, matched by index.
func relateByCluster(rows []ports.IncidentRow, out []Incident) {
	byCluster := make(map[string][]int64)
	for _, row := range rows {
		if row.Incident.GraphClusterKey == nil || *row.Incident.GraphClusterKey == "" {
			continue
		}
		byCluster[*row.Incident.GraphClusterKey] = append(byCluster[*row.Incident.GraphClusterKey], row.Article.ID)
	}
	for i, row := range rows {
		if row.Incident.GraphClusterKey == nil || *row.Incident.GraphClusterKey == "" {
			continue
		}
		related := []int64{}
		for _, id := range byCluster[*row.Incident.GraphClusterKey] {
			if id != row.Article.ID {
				related = append(related, id)
			}
		}
		out[i].RelatedIncidentIDs = related
	}
}

// Node and Link are the (nodes, edges) arrays with string ids the
// graph view materializes per request, discarded after the response is
// written — no cyclic owning references survive past a single call.
type Node struct {
	ID    string `json:"id"`
	Type  string `json:"type"`
	Label string `json:"label"`
}

type Link struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Type   string `json:"type"`
}

// Graph derives a node/edge set from rows: one node per incident, one
// per distinct entity name, one per distinct location_label, with
// incident->entity edges typed "involved" and incident->location edges
// typed "occurred_at". graph_cluster_key is not read here: it yields no
// node and no grouping attribute; incidents sharing a key are linked only
// through Incidents' RelatedIncidentIDs.
func Graph(rows []ports.IncidentRow) ([]Node, []Link) {
	var nodes []Node
	var links []Link

	seenEntity := make(map[string]bool)
	seenLocation := make(map[string]bool)

	for _, row := range rows {
		incidentNodeID := incidentNode(row.Article.ID)
		label := row.Incident.SummaryTactical
		if label == "" {
			label = row.Article.TitleRaw
		}
		nodes = append(nodes, Node{ID: incidentNodeID, Type: "incident", Label: label})

		for _, e := range row.Incident.Entities {
			entID := entityNode(e.Type, e.Name)
			if !seenEntity[entID] {
				seenEntity[entID] = true
				nodes = append(nodes, Node{ID: entID, Type: string(e.Type), Label: e.Name})
			}
			links = append(links, Link{Source: incidentNodeID, Target: entID, Type: "involved"})
		}

		if row.Incident.LocationLabel != nil && *row.Incident.LocationLabel != "" {
			locID := locationNode(*row.Incident.LocationLabel)
			if !seenLocation[locID] {
				seenLocation[locID] = true
				nodes = append(nodes, Node{ID: locID, Type: "location", Label: *row.Incident.LocationLabel})
			}
			links = append(links, Link{Source: incidentNodeID, Target: locID, Type: "occurred_at"})
		}
	}

	return nodes, links
}

func incidentNode(id int64) string {
	return "incident:" + strconv.FormatInt(id, 10)
}

func entityNode(t domain.EntityType, name string) string {
	return "entity:" + string(t) + ":" + name
}

func locationNode(label string) string {
	return "location:" + label
}

// Marker is one non-null-coordinate incident projected for the map
// view.
type Marker struct {
	ID       int64   `json:"id"`
	Lat      float64 `json:"lat"`
	Lng      float64 `json:"lng"`
	Severity string  `json:"severity"`
	Summary  string  `json:"summary"`
}

// Map projects rows with non-null (lat, lng) to marker records,
// newest-first to match Incidents' ordering.
func Map(rows []ports.IncidentRow) []Marker {
	var out []Marker
	for _, row := range rows {
		if row.Incident.Lat == nil || row.Incident.Lng == nil {
			continue
		}
		out = append(out, Marker{
			ID:       row.Article.ID,
			Lat:      *row.Incident.Lat,
			Lng:      *row.Incident.Lng,
			Severity: string(row.Incident.Severity),
			Summary:  row.Incident.SummaryTactical,
		})
	}
	return out
}
