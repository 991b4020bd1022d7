// Package httpapi implements the external HTTP surface spec.md §6 fixes,
// following the teacher's own server.New/setupMiddleware/setupRoutes
// split but rebuilt on github.com/go-chi/chi/v5, the router the rest of
// the retrieval pack (hazyhaar-chrc's chassis, rcliao-briefly's server)
// reaches for instead of the standard mux.
package httpapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"beatwatch/internal/ports"
	"beatwatch/internal/usecase"
)

// Version is stamped into the health response.
const Version = "0.1.0"

// Server wires the orchestrator, store, and enricher behind chi routes.
type Server struct {
	router      *chi.Mux
	httpServer  *http.Server
	orchestrator *usecase.Orchestrator
	store       ports.Store
	registry    ports.ParserRegistry
	enricher    ports.Enricher
	log         *slog.Logger
	debugEnabled bool
}

// Deps wires every collaborator the HTTP layer calls into, explicitly,
// matching the orchestrator's own no-singleton deps struct.
type Deps struct {
	Orchestrator *usecase.Orchestrator
	Store        ports.Store
	Registry     ports.ParserRegistry
	Enricher     ports.Enricher
	Logger       *slog.Logger
	Addr         string
	DebugEnabled bool
}

// New builds a Server and registers its routes.
func New(deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		router:       chi.NewRouter(),
		orchestrator: deps.Orchestrator,
		store:        deps.Store,
		registry:     deps.Registry,
		enricher:     deps.Enricher,
		log:          logger,
		debugEnabled: deps.DebugEnabled,
	}

	s.setupMiddleware()
	s.setupRoutes()

	addr := deps.Addr
	if addr == "" {
		addr = ":8080"
	}
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Recoverer)
	s.router.Use(s.logRequests)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log.InfoContext(r.Context(), "request handled",
			"method", r.Method, "path", r.URL.Path, "status", ww.Status(), "duration", time.Since(start))
	})
}

func (s *Server) setupRoutes() {
	s.router.Get("/", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Post("/refresh", s.handleRefresh)
		r.Post("/refresh-async", s.handleRefreshAsync)
		r.Get("/refresh-status/{job_id}", s.handleRefreshStatus)
		r.Get("/incidents", s.handleIncidents)
		r.Get("/graph", s.handleGraph)
		r.Get("/map", s.handleMap)
		r.Post("/reenrich", s.handleReenrich)

		if s.debugEnabled {
			r.Get("/debug/candidates", s.handleDebugCandidates)
			r.Get("/debug/enrichment-check", s.handleDebugEnrichmentCheck)
		}
	})
}

// Start runs the server, blocking until it exits or ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("http server starting", "addr", s.httpServer.Addr)
		errCh <- s.httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	}
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error("encode response failed", "error", err)
	}
}

// errorBody is the {detail: string} shape spec.md §6 fixes for every
// error response.
type errorBody struct {
	Detail string `json:"detail"`
}

func (s *Server) respondError(w http.ResponseWriter, status int, detail string) {
	s.respondJSON(w, status, errorBody{Detail: detail})
}
