package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"beatwatch/internal/domain"
	"beatwatch/internal/ports"
	"beatwatch/internal/usecase"
)

func newTestServer(store *fakeStore, registry *fakeRegistry, enricher ports.Enricher, debugEnabled bool) *Server {
	orchestrator := usecase.New(usecase.OrchestratorDeps{Store: store, Registry: registry, Enricher: enricher})
	return New(Deps{
		Orchestrator: orchestrator,
		Store:        store,
		Registry:     registry,
		Enricher:     enricher,
		DebugEnabled: debugEnabled,
	})
}

func doJSON(t *testing.T, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
		t.Fatalf("decode response body %q: %v", rec.Body.String(), err)
	}
}

func TestHandleHealth(t *testing.T) {
	t.Parallel()

	s := newTestServer(newFakeStore(), &fakeRegistry{parsers: map[string]ports.Parser{}}, fakeEnricher{}, false)
	rec := doJSON(t, s, http.MethodGet, "/", nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp healthResponse
	decodeBody(t, rec, &resp)
	if resp.Service != "beatwatch" || resp.Status != "ok" {
		t.Fatalf("unexpected health response: %+v", resp)
	}
}

func TestHandleRefreshSuccess(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.seedSource("R", "rcmp")
	parser := &fakeParser{articles: []domain.RawArticle{
		{ExternalID: "A", URL: "http://listing/a", TitleRaw: "T_A", BodyRaw: "B_A"},
	}}
	registry := &fakeRegistry{parsers: map[string]ports.Parser{"rcmp": parser}}
	s := newTestServer(store, registry, fakeEnricher{}, false)

	rec := doJSON(t, s, http.MethodPost, "/api/refresh", refreshRequest{Region: "R"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp refreshResponse
	decodeBody(t, rec, &resp)
	if resp.NewArticles != 1 || resp.TotalIncidents != 1 {
		t.Fatalf("unexpected refresh response: %+v", resp)
	}
}

func TestHandleRefreshMissingRegionIs422(t *testing.T) {
	t.Parallel()

	s := newTestServer(newFakeStore(), &fakeRegistry{parsers: map[string]ports.Parser{}}, fakeEnricher{}, false)
	rec := doJSON(t, s, http.MethodPost, "/api/refresh", refreshRequest{Region: ""})

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
	var body errorBody
	decodeBody(t, rec, &body)
	if body.Detail == "" {
		t.Fatalf("expected a non-empty detail message")
	}
}

func TestHandleRefreshUnknownRegionIs404(t *testing.T) {
	t.Parallel()

	s := newTestServer(newFakeStore(), &fakeRegistry{parsers: map[string]ports.Parser{}}, fakeEnricher{}, false)
	rec := doJSON(t, s, http.MethodPost, "/api/refresh", refreshRequest{Region: "nowhere"})

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestHandleRefreshAsyncThenStatus(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.seedSource("R", "rcmp")
	parser := &fakeParser{articles: []domain.RawArticle{
		{ExternalID: "A", URL: "http://listing/a", TitleRaw: "T_A", BodyRaw: "B_A"},
	}}
	registry := &fakeRegistry{parsers: map[string]ports.Parser{"rcmp": parser}}
	s := newTestServer(store, registry, fakeEnricher{}, false)

	rec := doJSON(t, s, http.MethodPost, "/api/refresh-async", refreshRequest{Region: "R"})
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	var started refreshAsyncResponse
	decodeBody(t, rec, &started)
	if started.JobID == "" {
		t.Fatalf("expected a job id")
	}

	statusRec := doJSON(t, s, http.MethodGet, "/api/refresh-status/"+started.JobID, nil)
	if statusRec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", statusRec.Code, statusRec.Body.String())
	}
	var job refreshJobResponse
	decodeBody(t, statusRec, &job)
	if job.JobID != started.JobID {
		t.Fatalf("unexpected job id in status response: %+v", job)
	}
}

func TestHandleRefreshStatusUnknownJobIs404(t *testing.T) {
	t.Parallel()

	s := newTestServer(newFakeStore(), &fakeRegistry{parsers: map[string]ports.Parser{}}, fakeEnricher{}, false)
	rec := doJSON(t, s, http.MethodGet, "/api/refresh-status/does-not-exist", nil)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestHandleIncidentsReturnsProjectedRows(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	src := store.seedSource("R", "rcmp")
	lat, lng := 49.28, -123.12
	store.seedIncident(t, src.ID, "A", domain.EnrichedIncident{
		Severity: domain.SeverityHigh, CrimeCategory: domain.CrimeViolent, Lat: &lat, Lng: &lng,
	})

	s := newTestServer(store, &fakeRegistry{parsers: map[string]ports.Parser{}}, fakeEnricher{}, false)
	rec := doJSON(t, s, http.MethodGet, "/api/incidents?region=R", nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp incidentsResponse
	decodeBody(t, rec, &resp)
	if len(resp.Incidents) != 1 {
		t.Fatalf("expected 1 incident, got %d", len(resp.Incidents))
	}
	if resp.Incidents[0].Severity != "High" {
		t.Fatalf("unexpected severity: %s", resp.Incidents[0].Severity)
	}

	// Assert the actual wire shape, not just the tag-less Go struct it
	// round-trips through: camelCase field names, a nested coordinates
	// object, and title-cased severity per spec.md §6.
	var raw map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &raw); err != nil {
		t.Fatalf("unmarshal raw body: %v", err)
	}
	incidents, ok := raw["incidents"].([]any)
	if !ok || len(incidents) != 1 {
		t.Fatalf("expected raw JSON to carry an incidents array, got %v", raw)
	}
	incident, ok := incidents[0].(map[string]any)
	if !ok {
		t.Fatalf("expected an incident object, got %v", incidents[0])
	}
	if incident["agencyName"] == nil {
		t.Errorf("expected camelCase agencyName field in raw JSON, got %v", incident)
	}
	if incident["severity"] != "High" {
		t.Errorf("expected title-cased severity %q in raw JSON, got %v", "High", incident["severity"])
	}
	coords, ok := incident["coordinates"].(map[string]any)
	if !ok {
		t.Fatalf("expected a nested coordinates object, got %v", incident["coordinates"])
	}
	if coords["lat"] != lat || coords["lng"] != lng {
		t.Errorf("unexpected coordinates: %v", coords)
	}
	if incident["sourceUrl"] == nil || incident["relatedIncidentIds"] == nil || incident["crimeCategory"] == nil {
		t.Errorf("expected camelCase sourceUrl/relatedIncidentIds/crimeCategory fields, got %v", incident)
	}
}

func TestHandleIncidentsMissingRegionIs422(t *testing.T) {
	t.Parallel()

	s := newTestServer(newFakeStore(), &fakeRegistry{parsers: map[string]ports.Parser{}}, fakeEnricher{}, false)
	rec := doJSON(t, s, http.MethodGet, "/api/incidents", nil)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
}

func TestHandleIncidentsBadLimitIs422(t *testing.T) {
	t.Parallel()

	s := newTestServer(newFakeStore(), &fakeRegistry{parsers: map[string]ports.Parser{}}, fakeEnricher{}, false)
	rec := doJSON(t, s, http.MethodGet, "/api/incidents?region=R&limit=not-a-number", nil)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
}

func TestHandleGraphDerivesNodesAndLinks(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	src := store.seedSource("R", "rcmp")
	loc := "Main St"
	store.seedIncident(t, src.ID, "A", domain.EnrichedIncident{
		Severity: domain.SeverityHigh, CrimeCategory: domain.CrimeViolent,
		Entities:      []domain.Entity{{Type: domain.EntityPerson, Name: "John Doe"}},
		LocationLabel: &loc,
	})

	s := newTestServer(store, &fakeRegistry{parsers: map[string]ports.Parser{}}, fakeEnricher{}, false)
	rec := doJSON(t, s, http.MethodGet, "/api/graph?region=R", nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp graphResponse
	decodeBody(t, rec, &resp)
	if len(resp.Nodes) == 0 || len(resp.Links) == 0 {
		t.Fatalf("expected non-empty graph, got %d nodes, %d links", len(resp.Nodes), len(resp.Links))
	}
}

func TestHandleMapOnlyIncludesCoordinates(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	src := store.seedSource("R", "rcmp")
	lat, lng := 49.2, -123.1
	store.seedIncident(t, src.ID, "A", domain.EnrichedIncident{Lat: &lat, Lng: &lng})
	store.seedIncident(t, src.ID, "B", domain.EnrichedIncident{})

	s := newTestServer(store, &fakeRegistry{parsers: map[string]ports.Parser{}}, fakeEnricher{}, false)
	rec := doJSON(t, s, http.MethodGet, "/api/map?region=R", nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp mapResponse
	decodeBody(t, rec, &resp)
	if len(resp.Markers) != 1 {
		t.Fatalf("expected 1 marker, got %d", len(resp.Markers))
	}
}

func TestHandleReenrichReplaysIncident(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	src := store.seedSource("R", "rcmp")
	id := store.seedIncident(t, src.ID, "A", domain.EnrichedIncident{LLMModel: "old-model"})

	s := newTestServer(store, &fakeRegistry{parsers: map[string]ports.Parser{}}, fakeEnricher{}, false)
	rec := doJSON(t, s, http.MethodPost, "/api/reenrich", reenrichRequest{ArticleID: id})

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if store.incidents[id].LLMModel != domain.StubLLMModel {
		t.Fatalf("expected incident to be replayed with the current enricher, got %+v", store.incidents[id])
	}
}

func TestHandleReenrichMissingArticleIDIs422(t *testing.T) {
	t.Parallel()

	s := newTestServer(newFakeStore(), &fakeRegistry{parsers: map[string]ports.Parser{}}, fakeEnricher{}, false)
	rec := doJSON(t, s, http.MethodPost, "/api/reenrich", reenrichRequest{ArticleID: 0})

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
}

func TestDebugRoutesHiddenWhenDisabled(t *testing.T) {
	t.Parallel()

	s := newTestServer(newFakeStore(), &fakeRegistry{parsers: map[string]ports.Parser{}}, fakeEnricher{}, false)
	rec := doJSON(t, s, http.MethodGet, "/api/debug/candidates?source_id=1", nil)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 when debug routes are disabled, got %d", rec.Code)
	}
}

func TestDebugEnrichmentCheckWhenEnabled(t *testing.T) {
	t.Parallel()

	s := newTestServer(newFakeStore(), &fakeRegistry{parsers: map[string]ports.Parser{}}, fakeEnricher{}, true)
	rec := doJSON(t, s, http.MethodGet, "/api/debug/enrichment-check", nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp enrichmentCheckResponse
	decodeBody(t, rec, &resp)
	if !resp.OK {
		t.Fatalf("expected enrichment self-test to report ok, got %+v", resp)
	}
}
