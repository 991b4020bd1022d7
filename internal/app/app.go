// Package app wires config to use cases and lifecycle orchestration,
// grounded directly on the teacher's internal/app.Application: the same
// "New builds a minimal runnable application instance" shape, but
// driving an HTTP server (C8's external surface) instead of a single
// scheduled pipeline run.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/lib/pq"

	"beatwatch/internal/config"
	"beatwatch/internal/httpapi"
	"beatwatch/internal/infrastructure/fetcher"
	"beatwatch/internal/infrastructure/llm"
	"beatwatch/internal/infrastructure/parser"
	"beatwatch/internal/infrastructure/storage"
	"beatwatch/internal/parserreg"
	"beatwatch/internal/ports"
	"beatwatch/internal/usecase"
)

// Application wires every concrete adapter to the orchestrator and HTTP
// server, and owns the shared resources (DB pool, headless browser) that
// outlive a single request.
type Application struct {
	cfg          config.Config
	logger       *slog.Logger
	db           *sql.DB
	fetcher      *fetcher.Fetcher
	store        *storage.Store
	orchestrator *usecase.Orchestrator
	server       *httpapi.Server
}

// New builds a runnable Application from Config. It opens the database
// connection and registers every parser family, but performs no network
// calls itself — Bootstrap does the schema bootstrap and startup source sync.
func New(cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = slog.Default()
	}

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	store := storage.New(db)

	httpFetcher := fetcher.New(baseLogger.With("component", "fetcher"))

	registry := parserreg.NewRegistry()
	registry.Register(parser.ParserIDRCMP, parser.NewRCMPParser(httpFetcher, baseLogger.With("component", "parser.rcmp")))
	registry.Register(parser.ParserIDWordPress, parser.NewWordPressParser(httpFetcher, baseLogger.With("component", "parser.wordpress")))
	registry.Register(parser.ParserIDMunicipalList, parser.NewMunicipalListParser(httpFetcher, baseLogger.With("component", "parser.municipal_list")))

	var enricher ports.Enricher = llm.New(llm.Config{
		Endpoint:      cfg.LLM.Endpoint,
		Model:         cfg.LLM.Model,
		APIKey:        cfg.LLMAPIKey,
		PromptVersion: cfg.LLM.PromptVersion,
	})

	orchestrator := usecase.New(usecase.OrchestratorDeps{
		Store:    store,
		Registry: registry,
		Enricher: enricher,
		Logger:   baseLogger.With("component", "orchestrator"),
	})

	server := httpapi.New(httpapi.Deps{
		Orchestrator: orchestrator,
		Store:        store,
		Registry:     registry,
		Enricher:     enricher,
		Logger:       baseLogger.With("component", "httpapi"),
		Addr:         cfg.HTTPAddr,
		DebugEnabled: cfg.DebugEnabled(),
	})

	return &Application{
		cfg:          cfg,
		logger:       baseLogger,
		db:           db,
		fetcher:      httpFetcher,
		store:        store,
		orchestrator: orchestrator,
		server:       server,
	}, nil
}

// Close releases the shared headless browser and database pool.
func (a *Application) Close() {
	a.fetcher.Close()
	a.db.Close()
}

// Bootstrap applies the schema and syncs the configured source list into
// the store (upsert by base_url), matching the teacher's own "wire then
// sync" startup order.
func (a *Application) Bootstrap(ctx context.Context) error {
	if err := a.store.Migrate(); err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}

	provider := config.NewProvider(a.cfg)
	sources, err := provider.Sources(ctx)
	if err != nil {
		return fmt.Errorf("load configured sources: %w", err)
	}
	for _, src := range sources {
		if _, err := a.store.UpsertSource(ctx, src); err != nil {
			return fmt.Errorf("sync source %s: %w", src.BaseURL, err)
		}
	}
	return nil
}

// Serve runs the HTTP server until ctx is cancelled.
func (a *Application) Serve(ctx context.Context) error {
	return a.server.Start(ctx)
}

// Refresh runs one synchronous refresh(region) and returns its counts.
func (a *Application) Refresh(ctx context.Context, region string) (int, int, error) {
	counts, err := a.orchestrator.Refresh(ctx, region)
	if err != nil {
		return 0, 0, err
	}
	return counts.NewArticles, counts.TotalIncidents, nil
}

// Reenrich replays enrichment for one article, per the operator-driven
// replay path.
func (a *Application) Reenrich(ctx context.Context, articleID int64) error {
	return a.orchestrator.Reenrich(ctx, articleID)
}

// DefaultRegionTickInterval is how often the serve command's region ticker
// re-triggers an async refresh for every known region.
const DefaultRegionTickInterval = 15 * time.Minute

// StartRegionTicker launches the serve command's background ticker,
// grounded on the teacher's scheduler.CronScheduler (a time.Ticker loop
// selecting on ctx.Done alongside the tick channel): it periodically
// starts an async refresh, via C6's own StartAsync/GetJob path, for every
// region named in the configured source list. Returns immediately; the
// loop exits when ctx is cancelled.
func (a *Application) StartRegionTicker(ctx context.Context, interval time.Duration) {
	regions := a.knownRegions()
	if len(regions) == 0 {
		return
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				for _, region := range regions {
					if _, err := a.orchestrator.StartAsync(ctx, region); err != nil {
						a.logger.Error("region ticker: start async refresh failed", "region", region, "error", err)
					}
				}
			case <-ctx.Done():
				return
			}
		}
	}()
}

// knownRegions returns the distinct region labels in the configured
// source list, in first-seen order.
func (a *Application) knownRegions() []string {
	seen := make(map[string]bool)
	var regions []string
	for _, src := range a.cfg.Sources {
		if src.RegionLabel == "" || seen[src.RegionLabel] {
			continue
		}
		seen[src.RegionLabel] = true
		regions = append(regions, src.RegionLabel)
	}
	return regions
}
