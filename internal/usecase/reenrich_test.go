package usecase

import (
	"context"
	"testing"

	"beatwatch/internal/domain"
	"beatwatch/internal/ports"
)

func TestReenrichReplacesExistingIncident(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	src := seedSourceR(t, store)

	result, err := store.UpsertRaw(context.Background(), domain.RawArticle{
		SourceID: src.ID, ExternalID: "A", URL: "http://listing/a", TitleRaw: "T_A", BodyRaw: "B_A",
	})
	if err != nil {
		t.Fatalf("UpsertRaw: %v", err)
	}
	if err := store.StoreEnriched(context.Background(), domain.EnrichedIncident{
		ID: result.ID, Severity: domain.SeverityLow, LLMModel: "old-model",
	}); err != nil {
		t.Fatalf("StoreEnriched: %v", err)
	}

	o := New(OrchestratorDeps{Store: store, Registry: &fakeRegistry{parsers: map[string]ports.Parser{}}, Enricher: fakeEnricher{}})

	if err := o.Reenrich(context.Background(), result.ID); err != nil {
		t.Fatalf("Reenrich: %v", err)
	}

	incident, ok := store.incidents[result.ID]
	if !ok {
		t.Fatalf("expected a replayed incident to exist")
	}
	if incident.LLMModel != domain.StubLLMModel {
		t.Fatalf("expected replay to use the current enricher, got model %s", incident.LLMModel)
	}
}

func TestReenrichUnknownArticleFails(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	o := New(OrchestratorDeps{Store: store, Registry: &fakeRegistry{parsers: map[string]ports.Parser{}}, Enricher: fakeEnricher{}})

	if err := o.Reenrich(context.Background(), 999); err == nil {
		t.Fatalf("expected an error for an unknown article id")
	}
}
