package config

import (
	"context"

	"beatwatch/internal/domain"
)

// Provider adapts the loaded Config's opaque SourceSpec list into
// ports.ConfigProvider, so the startup sync (upsert by base_url) never
// needs to know config came from YAML.
type Provider struct {
	specs []SourceSpec
}

// NewProvider wraps the sources decoded at Load time.
func NewProvider(cfg Config) *Provider {
	return &Provider{specs: cfg.Sources}
}

// Sources converts every SourceSpec into a domain.Source with ID left
// zero; the store assigns IDs on first insert of a unique base_url.
func (p *Provider) Sources(ctx context.Context) ([]domain.Source, error) {
	out := make([]domain.Source, 0, len(p.specs))
	for _, s := range p.specs {
		out = append(out, domain.Source{
			AgencyName:   s.AgencyName,
			Jurisdiction: s.Jurisdiction,
			RegionLabel:  s.RegionLabel,
			SourceType:   s.SourceType,
			BaseURL:      s.BaseURL,
			ParserID:     s.ParserID,
			Active:       s.Active,
			UseBrowser:   s.UseBrowser,
		})
	}
	return out, nil
}
