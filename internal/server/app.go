package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/scrypster/warmconnector/internal/cache"
	"github.com/scrypster/warmconnector/internal/config"
	"github.com/scrypster/warmconnector/internal/engine"
	"github.com/scrypster/warmconnector/internal/enrichment"
	"github.com/scrypster/warmconnector/internal/llm"
	"github.com/scrypster/warmconnector/internal/matcher"
	"github.com/scrypster/warmconnector/internal/storage"
	"github.com/scrypster/warmconnector/internal/storage/graph"
	"github.com/scrypster/warmconnector/internal/storage/postgres"
	"github.com/scrypster/warmconnector/internal/storage/sqlite"
	"github.com/scrypster/warmconnector/web/handlers"
)

// dbGetter is implemented by stores backed by database/sql.
type dbGetter interface {
	GetDB() *sql.DB
}

// App holds the wired search stack shared by the HTTP server and the CLI.
type App struct {
	Config   *config.Config
	Logger   *slog.Logger
	Store    storage.Store
	Profiles *engine.InstrumentedStore
	Caches   *cache.Registry
	Monitor  *engine.PerformanceMonitor
	Registry *prometheus.Registry
	Resolver *engine.Resolver

	// Checks probe the backing store for /api/health.
	Checks map[string]handlers.HealthCheck
}

// NewApp opens the configured store and wires caches, monitoring, the graph
// search and the resolver with its optional collaborators.
func NewApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	store, checks, err := OpenStore(ctx, cfg.Storage)
	if err != nil {
		return nil, err
	}
	app, err := newApp(cfg, logger, store, checks)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	return app, nil
}

// newApp wires the stack over an already open store.
func newApp(cfg *config.Config, logger *slog.Logger, store storage.Store, checks map[string]handlers.HealthCheck) (*App, error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := engine.NewMetrics(reg)

	caches := cache.NewRegistry(cfg.Cache.Configs(), cache.WithComputeTimeout(cfg.Server.WriteTimeout))
	engine.RegisterCacheGauges(reg, caches)

	monitorOpts := []engine.MonitorOption{
		engine.WithWindowSize(cfg.Performance.WindowSize),
		engine.WithSlowQueryThreshold(cfg.Performance.SlowQueryThreshold),
		engine.WithCacheRegistry(caches),
		engine.WithMetrics(metrics),
		engine.WithMonitorLogger(logger),
	}
	if g, ok := store.(dbGetter); ok {
		monitorOpts = append(monitorOpts, engine.WithDB(g.GetDB()))
	}
	monitor := engine.NewPerformanceMonitor(monitorOpts...)

	profiles := engine.NewInstrumentedStore(store, monitor, caches.Cache(cache.BatchProfileLookup))
	search := engine.NewGraphSearch(profiles,
		engine.WithPathCache(caches.Cache(cache.Pathfinding)),
		engine.WithSearchBounds(engine.SearchBounds{
			MaxNodes: cfg.Search.DeepMaxNodes,
			MaxEdges: cfg.Search.DeepMaxEdges,
			Timeout:  cfg.Search.DeepTimeout,
		}),
		engine.WithGraphLogger(logger),
	)

	resolverOpts := []engine.ResolverOption{
		engine.WithMatcher(matcher.New(profiles, matcher.Config{})),
		engine.WithMonitor(monitor),
		engine.WithResolverMetrics(metrics),
		engine.WithLogger(logger),
	}

	if cfg.Enrichment.Enabled() {
		provider, err := enrichment.New(enrichment.Config{
			BaseURL:           cfg.Enrichment.URL,
			APIKey:            cfg.Enrichment.APIKey,
			SourceName:        cfg.Enrichment.SourceName,
			RequestsPerSecond: cfg.Enrichment.RequestsPerSecond,
			Burst:             cfg.Enrichment.Burst,
			Timeout:           cfg.Enrichment.Timeout,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("server: enrichment: %w", err)
		}
		resolverOpts = append(resolverOpts, engine.WithEnrichmentProvider(provider))
		logger.Info("external enrichment enabled", "url", cfg.Enrichment.URL)
	}

	if cfg.Narrative.Enabled() {
		gen, err := llm.NewTextGenerator(llm.ProviderConfig{
			Provider: cfg.Narrative.Provider,
			APIKey:   cfg.Narrative.APIKey,
			Model:    cfg.Narrative.Model,
			BaseURL:  cfg.Narrative.BaseURL,
			Timeout:  cfg.Narrative.Timeout,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("server: narrator: %w", err)
		}
		resolverOpts = append(resolverOpts, engine.WithNarrativeGenerator(llm.NewNarrator(gen, logger)))
		logger.Info("model narratives enabled", "provider", cfg.Narrative.Provider, "model", gen.GetModel())
	}

	resolver := engine.NewResolver(search, caches, engine.Config{
		DefaultFromPersonID: cfg.Search.DefaultFromPersonID,
		DefaultMode:         engine.SearchMode(cfg.Search.DefaultMode),
		MaxHops:             cfg.Search.MaxHops,
		MinStrength:         cfg.Search.MinStrength,
		ResultLimit:         cfg.Search.ResultLimit,
		MaxCandidates:       cfg.Search.MaxCandidates,
		NarrativeTimeout:    cfg.Narrative.Timeout,
		EnrichmentTimeout:   cfg.Enrichment.Timeout,
	}, resolverOpts...)

	return &App{
		Config:   cfg,
		Logger:   logger,
		Store:    store,
		Profiles: profiles,
		Caches:   caches,
		Monitor:  monitor,
		Registry: reg,
		Resolver: resolver,
		Checks:   checks,
	}, nil
}

// Close closes the store.
func (a *App) Close() error {
	return a.Store.Close()
}

// OpenStore opens the person store named by cfg.Driver and returns health
// checks for it.
func OpenStore(ctx context.Context, cfg config.StorageConfig) (storage.Store, map[string]handlers.HealthCheck, error) {
	switch strings.ToLower(cfg.Driver) {
	case "", "sqlite":
		if dir := filepath.Dir(cfg.DSN); cfg.DSN != ":memory:" && !strings.HasPrefix(cfg.DSN, "file:") && dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, nil, fmt.Errorf("server: create data dir: %w", err)
			}
		}
		s, err := sqlite.NewPersonStore(cfg.DSN)
		if err != nil {
			return nil, nil, err
		}
		return s, dbChecks(s.GetDB()), nil

	case "postgres":
		s, err := postgres.NewPersonStore(cfg.DSN, postgres.PoolOptions{
			MaxOpenConns:    cfg.MaxOpenConns,
			MaxIdleConns:    cfg.MaxIdleConns,
			ConnMaxLifetime: cfg.ConnMaxLifetime,
		})
		if err != nil {
			return nil, nil, err
		}
		return s, dbChecks(s.GetDB()), nil

	case "neo4j":
		client, err := graph.NewNeo4jClient(ctx, graph.Options{
			URI:            cfg.DSN,
			Database:       cfg.Database,
			Username:       cfg.Username,
			Password:       cfg.Password,
			MaxConnections: cfg.MaxOpenConns,
		})
		if err != nil {
			return nil, nil, err
		}
		checks := map[string]handlers.HealthCheck{"storage": client.VerifyConnectivity}
		return graph.NewPersonStore(client), checks, nil

	default:
		return nil, nil, errors.New("server: unsupported storage driver " + cfg.Driver)
	}
}

func dbChecks(db *sql.DB) map[string]handlers.HealthCheck {
	return map[string]handlers.HealthCheck{"storage": db.PingContext}
}
