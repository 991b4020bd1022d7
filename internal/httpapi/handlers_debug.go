package httpapi

import (
	"net/http"
	"strconv"

	"beatwatch/internal/domain"
	"beatwatch/internal/ports"
)

// handleDebugCandidates implements GET /api/debug/candidates?source_id=,
// gated on ENV=dev. It reads the source from the store and discovers its
// listing URLs without fetching any article page or writing to the store, for inspecting a
// parser's discovery/accept logic in isolation.
func (s *Server) handleDebugCandidates(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("source_id")
	sourceID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || sourceID <= 0 {
		s.respondError(w, http.StatusUnprocessableEntity, "source_id is required")
		return
	}

	source, err := s.store.GetSource(r.Context(), sourceID)
	if err != nil {
		s.respondError(w, http.StatusNotFound, err.Error())
		return
	}

	p, err := s.registry.Get(source.ParserID)
	if err != nil {
		s.respondError(w, http.StatusNotFound, err.Error())
		return
	}

	cp, ok := p.(ports.CandidateParser)
	if !ok {
		s.respondError(w, http.StatusNotFound, "parser does not expose candidate discovery")
		return
	}

	urls, err := cp.Candidates(r.Context(), source)
	if err != nil {
		s.log.Error("debug candidates failed", "source_id", sourceID, "error", err)
		s.respondError(w, http.StatusInternalServerError, "candidate discovery failed")
		return
	}

	s.respondJSON(w, http.StatusOK, urls)
}

type enrichmentCheckResponse struct {
	OK            bool   `json:"ok"`
	ModelName     string `json:"model_name"`
	PromptVersion string `json:"prompt_version"`
	Severity      string `json:"severity"`
	CrimeCategory string `json:"crime_category"`
}

// handleDebugEnrichmentCheck implements GET /api/debug/enrichment-check,
// gated on ENV=dev: a self-test of the LLM path against a canned
// article, returning whatever the configured enricher (real or stub)
// actually produced.
func (s *Server) handleDebugEnrichmentCheck(w http.ResponseWriter, r *http.Request) {
	probe := domain.RawArticle{
		ID:       -1,
		TitleRaw: "Self-test: vehicle collision reported downtown",
		BodyRaw:  "Police responded to a two-vehicle collision at Main St and 1st Ave. No injuries reported. The roadway was closed for approximately one hour.",
	}
	source := domain.Source{AgencyName: "debug", RegionLabel: "debug"}

	incident, err := s.enricher.Enrich(r.Context(), probe, source)
	resp := enrichmentCheckResponse{
		OK:            err == nil,
		ModelName:     incident.LLMModel,
		PromptVersion: incident.PromptVersion,
		Severity:      string(incident.Severity),
		CrimeCategory: string(incident.CrimeCategory),
	}
	if err != nil {
		s.log.Warn("enrichment self-test fell back to stub", "error", err)
	}
	s.respondJSON(w, http.StatusOK, resp)
}
