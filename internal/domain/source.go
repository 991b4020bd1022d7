package domain

import "time"

// Source describes one configured agency newsroom: a listing page plus the
// parser family that knows how to read it.
type Source struct {
	ID            int64
	AgencyName    string
	Jurisdiction  string
	RegionLabel   string
	SourceType    string
	BaseURL       string
	ParserID      string
	Active        bool
	UseBrowser    bool
	LastCheckedAt *time.Time
}
