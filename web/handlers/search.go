package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/scrypster/warmconnector/internal/engine"
)

// ConnectionSearcher runs connection searches. *engine.Resolver satisfies it.
type ConnectionSearcher interface {
	FindConnections(ctx context.Context, req engine.SearchRequest) engine.SearchResponse
}

// SearchHandler serves POST /api/connections/search.
type SearchHandler struct {
	resolver ConnectionSearcher
	logger   *slog.Logger
}

// NewSearchHandler creates a SearchHandler.
func NewSearchHandler(resolver ConnectionSearcher, logger *slog.Logger) *SearchHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &SearchHandler{resolver: resolver, logger: logger}
}

// Search decodes a SearchRequest and returns the resolver's response. The
// body is always a SearchResponse once the JSON decodes; the status code
// reflects its source.
func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	var req engine.SearchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid search request", err)
		return
	}

	resp := h.resolver.FindConnections(r.Context(), req)
	if resp.Source == engine.SourceError {
		h.logger.Error("connection search failed", "request_id", resp.RequestID, "target", req.TargetName)
	}
	respondJSON(w, statusForSource(resp.Source), resp)
}

func statusForSource(src engine.Source) int {
	switch src {
	case engine.SourceInvalidRequest:
		return http.StatusBadRequest
	case engine.SourceError:
		return http.StatusInternalServerError
	default:
		return http.StatusOK
	}
}
