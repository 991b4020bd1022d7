package usecase

import (
	"context"
	"fmt"
)

// Reenrich implements the operator-driven replay spec.md §4.5 permits but
// never triggers automatically: delete the existing EnrichedIncident for
// articleID and recreate it under the current (model, prompt_version),
// preserving the 1:1 invariant. Never called by Refresh/StartAsync.
func (o *Orchestrator) Reenrich(ctx context.Context, articleID int64) error {
	article, err := o.store.GetRawArticle(ctx, articleID)
	if err != nil {
		return fmt.Errorf("load article %d: %w", articleID, err)
	}

	source, err := o.store.GetSource(ctx, article.SourceID)
	if err != nil {
		return fmt.Errorf("load source %d for article %d: %w", article.SourceID, articleID, err)
	}

	incident, enrichErr := o.enricher.Enrich(ctx, article, source)
	incident.ID = articleID

	if err := o.store.DeleteEnriched(ctx, articleID); err != nil {
		return fmt.Errorf("delete existing incident %d: %w", articleID, err)
	}
	if err := o.store.StoreEnriched(ctx, incident); err != nil {
		return fmt.Errorf("store replayed incident %d: %w", articleID, err)
	}
	if enrichErr != nil {
		return fmt.Errorf("enrichment fell back to stub during replay: %w", enrichErr)
	}
	return nil
}
