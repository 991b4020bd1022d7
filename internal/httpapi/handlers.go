package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"beatwatch/internal/domain"
	"beatwatch/internal/query"
)

type healthResponse struct {
	Service string `json:"service"`
	Version string `json:"version"`
	Status  string `json:"status"`
}

// handleHealth implements GET /.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, healthResponse{
		Service: "beatwatch",
		Version: Version,
		Status:  "ok",
	})
}

type refreshRequest struct {
	Region string `json:"region"`
}

type refreshResponse struct {
	Region         string `json:"region"`
	NewArticles    int    `json:"new_articles"`
	TotalIncidents int    `json:"total_incidents"`
}

// handleRefresh implements POST /api/refresh.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Region == "" {
		s.respondError(w, http.StatusUnprocessableEntity, "region is required")
		return
	}

	counts, err := s.orchestrator.Refresh(r.Context(), req.Region)
	if err != nil {
		s.respondRefreshError(w, err)
		return
	}

	s.respondJSON(w, http.StatusOK, refreshResponse{
		Region:         counts.Region,
		NewArticles:    counts.NewArticles,
		TotalIncidents: counts.TotalIncidents,
	})
}

func (s *Server) respondRefreshError(w http.ResponseWriter, err error) {
	if errors.Is(err, domain.ErrNoActiveSources) {
		s.respondError(w, http.StatusNotFound, err.Error())
		return
	}
	s.log.Error("refresh failed", "error", err)
	s.respondError(w, http.StatusInternalServerError, "refresh failed")
}

type refreshAsyncResponse struct {
	JobID   string `json:"job_id"`
	Region  string `json:"region"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// handleRefreshAsync implements POST /api/refresh-async.
func (s *Server) handleRefreshAsync(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Region == "" {
		s.respondError(w, http.StatusUnprocessableEntity, "region is required")
		return
	}

	jobID, err := s.orchestrator.StartAsync(r.Context(), req.Region)
	if err != nil {
		s.log.Error("start async refresh failed", "error", err)
		s.respondError(w, http.StatusInternalServerError, "failed to start refresh")
		return
	}

	s.respondJSON(w, http.StatusAccepted, refreshAsyncResponse{
		JobID:   jobID,
		Region:  req.Region,
		Status:  string(domain.JobPending),
		Message: "refresh started",
	})
}

type refreshJobResponse struct {
	JobID          string  `json:"job_id"`
	Region         string  `json:"region"`
	Status         string  `json:"status"`
	NewArticles    int     `json:"new_articles"`
	TotalIncidents int     `json:"total_incidents"`
	ErrorMessage   string  `json:"error_message,omitempty"`
	CreatedAt      string  `json:"created_at"`
	StartedAt      *string `json:"started_at,omitempty"`
	CompletedAt    *string `json:"completed_at,omitempty"`
}

// handleRefreshStatus implements GET /api/refresh-status/{job_id}.
func (s *Server) handleRefreshStatus(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")

	job, err := s.orchestrator.GetJob(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, domain.ErrJobNotFound) {
			s.respondError(w, http.StatusNotFound, err.Error())
			return
		}
		s.log.Error("get job failed", "error", err)
		s.respondError(w, http.StatusInternalServerError, "failed to load job")
		return
	}

	resp := refreshJobResponse{
		JobID:          job.JobID,
		Region:         job.Region,
		Status:         string(job.Status),
		NewArticles:    job.NewArticles,
		TotalIncidents: job.TotalIncidents,
		ErrorMessage:   job.ErrorMessage,
		CreatedAt:      job.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
	}
	if job.StartedAt != nil {
		v := job.StartedAt.UTC().Format("2006-01-02T15:04:05Z")
		resp.StartedAt = &v
	}
	if job.CompletedAt != nil {
		v := job.CompletedAt.UTC().Format("2006-01-02T15:04:05Z")
		resp.CompletedAt = &v
	}
	s.respondJSON(w, http.StatusOK, resp)
}

type incidentsResponse struct {
	Region    string           `json:"region"`
	Incidents []query.Incident `json:"incidents"`
}

// handleIncidents implements GET /api/incidents?region=&limit=.
func (s *Server) handleIncidents(w http.ResponseWriter, r *http.Request) {
	region := r.URL.Query().Get("region")
	if region == "" {
		s.respondError(w, http.StatusUnprocessableEntity, "region is required")
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			s.respondError(w, http.StatusUnprocessableEntity, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	rows, err := s.store.ListIncidents(r.Context(), region, limit)
	if err != nil {
		s.log.Error("list incidents failed", "error", err)
		s.respondError(w, http.StatusInternalServerError, "failed to load incidents")
		return
	}

	s.respondJSON(w, http.StatusOK, incidentsResponse{Region: region, Incidents: query.Incidents(rows)})
}

type graphResponse struct {
	Region string        `json:"region"`
	Nodes  []query.Node  `json:"nodes"`
	Links  []query.Link  `json:"links"`
}

// handleGraph implements GET /api/graph?region=.
func (s *Server) handleGraph(w http.ResponseWriter, r *http.Request) {
	region := r.URL.Query().Get("region")
	if region == "" {
		s.respondError(w, http.StatusUnprocessableEntity, "region is required")
		return
	}

	rows, err := s.store.ListIncidents(r.Context(), region, 0)
	if err != nil {
		s.log.Error("list incidents for graph failed", "error", err)
		s.respondError(w, http.StatusInternalServerError, "failed to load graph")
		return
	}

	nodes, links := query.Graph(rows)
	s.respondJSON(w, http.StatusOK, graphResponse{Region: region, Nodes: nodes, Links: links})
}

type mapResponse struct {
	Region  string         `json:"region"`
	Markers []query.Marker `json:"markers"`
}

// handleMap implements GET /api/map?region=.
func (s *Server) handleMap(w http.ResponseWriter, r *http.Request) {
	region := r.URL.Query().Get("region")
	if region == "" {
		s.respondError(w, http.StatusUnprocessableEntity, "region is required")
		return
	}

	rows, err := s.store.ListIncidents(r.Context(), region, 0)
	if err != nil {
		s.log.Error("list incidents for map failed", "error", err)
		s.respondError(w, http.StatusInternalServerError, "failed to load map")
		return
	}

	s.respondJSON(w, http.StatusOK, mapResponse{Region: region, Markers: query.Map(rows)})
}

type reenrichRequest struct {
	ArticleID int64 `json:"article_id"`
}

// handleReenrich implements the operator-driven replay endpoint
// SPEC_FULL.md adds on top of the fixed spec.md §6 table: POST
// /api/reenrich deletes and recreates one article's EnrichedIncident
// under the current enrichment model and prompt_version.
func (s *Server) handleReenrich(w http.ResponseWriter, r *http.Request) {
	var req reenrichRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ArticleID <= 0 {
		s.respondError(w, http.StatusUnprocessableEntity, "article_id is required")
		return
	}

	if err := s.orchestrator.Reenrich(r.Context(), req.ArticleID); err != nil {
		s.log.Error("reenrich failed", "article_id", req.ArticleID, "error", err)
		s.respondError(w, http.StatusInternalServerError, "reenrich failed")
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]any{"article_id": req.ArticleID, "status": "reenriched"})
}
