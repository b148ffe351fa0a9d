package handlers

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/scrypster/warmconnector/internal/cache"
	"github.com/scrypster/warmconnector/internal/engine"
)

// ReportSource produces performance reports. *engine.PerformanceMonitor
// satisfies it.
type ReportSource interface {
	Report() engine.PerformanceReport
}

// PerformanceHandler serves GET /api/performance and POST /api/cache/purge.
type PerformanceHandler struct {
	monitor ReportSource
	caches  *cache.Registry
	logger  *slog.Logger
}

// NewPerformanceHandler creates a PerformanceHandler. caches may be nil,
// in which case purges report nothing purged.
func NewPerformanceHandler(monitor ReportSource, caches *cache.Registry, logger *slog.Logger) *PerformanceHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &PerformanceHandler{monitor: monitor, caches: caches, logger: logger}
}

// GetReport returns the current performance report.
func (h *PerformanceHandler) GetReport(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	respondJSON(w, http.StatusOK, h.monitor.Report())
}

// PurgeCache empties one named cache (?name=pathfinding) or all of them.
func (h *PerformanceHandler) PurgeCache(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	resp := PurgeResponse{Purged: []cache.Name{}}
	if h.caches == nil {
		respondJSON(w, http.StatusOK, resp)
		return
	}

	name := cache.Name(strings.TrimSpace(r.URL.Query().Get("name")))
	if name == "" {
		h.caches.PurgeAll()
		for _, s := range h.caches.Stats() {
			resp.Purged = append(resp.Purged, s.Name)
		}
	} else {
		c := h.caches.Cache(name)
		if c == nil {
			respondError(w, http.StatusNotFound, "unknown cache "+string(name), nil)
			return
		}
		c.Purge()
		resp.Purged = append(resp.Purged, name)
	}

	h.logger.Info("caches purged", "caches", resp.Purged)
	respondJSON(w, http.StatusOK, resp)
}
