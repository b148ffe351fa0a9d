package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/scrypster/warmconnector/internal/storage"
	"github.com/scrypster/warmconnector/pkg/types"
)

// ProfileLookup fetches many profiles at once. *engine.InstrumentedStore
// satisfies it with a cached, batched lookup.
type ProfileLookup interface {
	BatchProfileLookup(ctx context.Context, ids []string) (map[string]*types.Person, error)
}

// ProfileHandler serves POST /api/profiles/batch.
type ProfileHandler struct {
	lookup ProfileLookup
	logger *slog.Logger
}

// NewProfileHandler creates a ProfileHandler.
func NewProfileHandler(lookup ProfileLookup, logger *slog.Logger) *ProfileHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ProfileHandler{lookup: lookup, logger: logger}
}

// BatchLookup returns the requested profiles and lists ids that do not exist.
func (h *ProfileHandler) BatchLookup(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	var req BatchProfilesRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid profile request", err)
		return
	}
	if err := validate.Struct(req); err != nil {
		respondError(w, http.StatusBadRequest, validationMessage(err), nil)
		return
	}

	ids := storage.DedupeIDs(req.IDs)
	profiles, err := h.lookup.BatchProfileLookup(r.Context(), ids)
	if err != nil {
		h.logger.Error("batch profile lookup failed", "ids", len(ids), "error", err)
		respondError(w, http.StatusInternalServerError, "profile lookup failed", err)
		return
	}
	if profiles == nil {
		profiles = map[string]*types.Person{}
	}

	missing := make([]string, 0)
	for _, id := range ids {
		if _, ok := profiles[id]; !ok {
			missing = append(missing, id)
		}
	}
	respondJSON(w, http.StatusOK, BatchProfilesResponse{Profiles: profiles, Missing: missing})
}
