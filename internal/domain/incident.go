package domain

import "time"

// Severity is the closed domain spec.md §3 requires for every stored
// EnrichedIncident.
type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// ValidSeverity reports whether s belongs to the closed severity domain.
func ValidSeverity(s Severity) bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	}
	return false
}

// CrimeCategory is drawn from the closed set spec.md §4.5 enumerates.
type CrimeCategory string

const (
	CrimeViolent    CrimeCategory = "Violent Crime"
	CrimeProperty   CrimeCategory = "Property Crime"
	CrimeTraffic    CrimeCategory = "Traffic Incident"
	CrimeDrug       CrimeCategory = "Drug Offense"
	CrimeSexual     CrimeCategory = "Sexual Offense"
	CrimeCyber      CrimeCategory = "Cybercrime"
	CrimePublic     CrimeCategory = "Public Safety"
	CrimeOther      CrimeCategory = "Other"
	CrimeUnknown    CrimeCategory = "Unknown"
)

// ValidCrimeCategory reports whether c belongs to the closed category set.
func ValidCrimeCategory(c CrimeCategory) bool {
	switch c {
	case CrimeViolent, CrimeProperty, CrimeTraffic, CrimeDrug, CrimeSexual,
		CrimeCyber, CrimePublic, CrimeOther, CrimeUnknown:
		return true
	}
	return false
}

// EntityType discriminates the small tagged records EnrichedIncident.Entities
// carries. The graph query surface (C8) depends on this discrimination to
// build typed nodes.
type EntityType string

const (
	EntityPerson   EntityType = "Person"
	EntityGroup    EntityType = "Group"
	EntityLocation EntityType = "Location"
)

// Entity is one {type, name} pair extracted by the enricher.
type Entity struct {
	Type EntityType `json:"type"`
	Name string     `json:"name"`
}

// EnrichedIncident is the structured interpretation of exactly one
// RawArticle. Its ID equals the RawArticle's ID (1:1).
type EnrichedIncident struct {
	ID               int64
	Severity         Severity
	SummaryTactical  string
	Tags             []string
	Entities         []Entity
	LocationLabel    *string
	Lat              *float64
	Lng              *float64
	GraphClusterKey  *string
	CrimeCategory    CrimeCategory
	TemporalContext  *string
	WeaponInvolved   *string
	TacticalAdvice   *string
	LLMModel         string
	PromptVersion    string
	ProcessedAt      time.Time
}

// StubLLMModel and StubPromptVersion stamp the deterministic fallback path
// used when no LLM provider is configured, or any unrecoverable LLM error
// occurs. Spec.md §4.5 fixes these exact literals.
const (
	StubLLMModel      = "none"
	StubPromptVersion = "stub_v1"
)

// StubSummaryLen is the "first ~200 chars of body" the stub summary uses.
const StubSummaryLen = 200
