package handler

import (
	"context"
	"net/http"

	"github.com/Rrens/formvault/internal/api/response"
	"github.com/rs/zerolog/log"
)

// Pinger is a dependency readiness depends on
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthCheck returns a simple health check response
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	response.OK(w, map[string]string{
		"status": "ok",
	})
}

// ReadyCheck returns readiness status including storage and cache connectivity
func ReadyCheck(deps map[string]Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		for name, dep := range deps {
			if err := dep.Ping(r.Context()); err != nil {
				log.Warn().Err(err).Str("dependency", name).Msg("Readiness check failed")
				response.Error(w, http.StatusServiceUnavailable, name+" not ready")
				return
			}
		}

		response.OK(w, map[string]string{
			"status": "ready",
		})
	}
}

// CacheFlusher drops every cached version snapshot
type CacheFlusher interface {
	FlushAll(ctx context.Context) (int64, error)
}

// FlushCache clears all cached version snapshots
func FlushCache(cache CacheFlusher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		deleted, err := cache.FlushAll(r.Context())
		if err != nil {
			log.Error().Err(err).Msg("Failed to flush version cache")
			response.InternalError(w, "failed to flush cache")
			return
		}

		response.OK(w, map[string]any{
			"message":      "cache flushed successfully",
			"keys_deleted": deleted,
		})
	}
}
