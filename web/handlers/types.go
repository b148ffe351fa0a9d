package handlers

import (
	"github.com/scrypster/warmconnector/internal/cache"
	"github.com/scrypster/warmconnector/pkg/types"
)

// ErrorResponse is the standard error response format for the API.
type ErrorResponse struct {
	Error   string                 `json:"error"`
	Code    string                 `json:"code"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// BatchProfilesRequest is the body of POST /api/profiles/batch.
type BatchProfilesRequest struct {
	IDs []string `json:"ids" validate:"required,min=1,max=100,dive,required,max=128"`
}

// BatchProfilesResponse returns the people found, keyed by id, plus the
// requested ids that do not exist.
type BatchProfilesResponse struct {
	Profiles map[string]*types.Person `json:"profiles"`
	Missing  []string                 `json:"missing"`
}

// PurgeResponse is the body returned by POST /api/cache/purge.
type PurgeResponse struct {
	Purged []cache.Name `json:"purged"`
}

// HealthResponse is the body returned by GET /api/health.
type HealthResponse struct {
	Status        string            `json:"status"`
	Version       string            `json:"version"`
	UptimeSeconds int64             `json:"uptime_seconds"`
	Checks        map[string]string `json:"checks,omitempty"`
}

// StreamMessage is one frame pushed over /ws/performance.
type StreamMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}
