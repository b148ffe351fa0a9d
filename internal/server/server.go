// Package server wires the WarmConnector search stack and serves it over
// HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/scrypster/warmconnector/internal/notify"
	"github.com/scrypster/warmconnector/web/handlers"
)

// Version is reported by /api/health.
var Version = "dev"

// NewHandler builds the routed, middleware-wrapped HTTP handler for app.
// hub serves /ws/performance; the caller runs and stops it.
func NewHandler(app *App, hub *handlers.WebSocketHub) http.Handler {
	cfg := app.Config

	searchHandler := handlers.NewSearchHandler(app.Resolver, app.Logger)
	profileHandler := handlers.NewProfileHandler(app.Profiles, app.Logger)
	perfHandler := handlers.NewPerformanceHandler(app.Monitor, app.Caches, app.Logger)
	healthHandler := handlers.NewHealthHandler(Version, app.Checks)

	mux := http.NewServeMux()
	mux.HandleFunc("/api/connections/search", searchHandler.Search)
	mux.HandleFunc("/api/profiles/batch", profileHandler.BatchLookup)
	mux.HandleFunc("/api/performance", perfHandler.GetReport)
	mux.HandleFunc("/api/cache/purge", perfHandler.PurgeCache)
	mux.HandleFunc("/api/health", healthHandler.Health)
	mux.Handle("/metrics", promhttp.HandlerFor(app.Registry, promhttp.HandlerOpts{Registry: app.Registry}))
	if hub != nil {
		mux.Handle("/ws/performance", hub)
	}

	// Rate limiting, then request logging, then security headers.
	rateLimiter := handlers.NewRateLimiter(cfg.Server.RateLimit, cfg.Server.RateLimitBurst, "/api/health", "/metrics", "/ws/")
	handler := handlers.RateLimitMiddleware(mux, rateLimiter)
	handler = handlers.RequestLogger(handler, app.Logger)
	handler = handlers.SecurityHeaders(handler)
	return handler
}

// Start serves app on the configured address until ctx is cancelled, then
// shuts down gracefully. It returns the actual listen address, which
// differs from the configured one when port 0 is used.
func Start(ctx context.Context, app *App) (string, error) {
	cfg := app.Config

	hub := handlers.NewWebSocketHub(app.Logger)
	go hub.Run()
	go hub.StreamReports(ctx, app.Monitor, cfg.Server.ReportInterval)

	server := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           NewHandler(app, hub),
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       60 * time.Second,
	}

	var watcher *notify.EventWatcher
	if dir := cfg.Cache.EventsDir; dir != "" {
		watcher = notify.NewEventWatcher(dir, invalidateCaches(app), app.Logger)
		if err := watcher.Start(); err != nil {
			hub.Stop()
			return "", fmt.Errorf("server: watch events: %w", err)
		}
	}

	listener, err := net.Listen("tcp", server.Addr)
	if err != nil {
		hub.Stop()
		if watcher != nil {
			watcher.Stop()
		}
		return "", fmt.Errorf("server: listen on %s: %w", server.Addr, err)
	}
	actualAddr := listener.Addr().String()

	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			app.Logger.Error("server error", "error", err)
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			app.Logger.Error("server shutdown error", "error", err)
		}
		hub.Stop()
		if watcher != nil {
			watcher.Stop()
		}
	}()

	app.Logger.Info("server listening", "addr", actualAddr)
	return actualAddr, nil
}

// invalidateCaches purges every cache when the graph changes underneath
// the server. Paths through any person may be affected, so nothing is kept.
func invalidateCaches(app *App) notify.Handler {
	return func(e notify.Event) {
		app.Caches.PurgeAll()
		app.Logger.Info("caches purged after graph change", "event", e.Type, "person_id", e.PersonID)
	}
}
