package middleware

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/Rrens/formvault/internal/api/response"
	"github.com/Rrens/formvault/internal/domain"
	"github.com/rs/zerolog/log"
)

// Limiter decides whether a tenant may make another request
type Limiter interface {
	Allow(ctx context.Context, tenant domain.TenantID) (bool, int, time.Time, error)
}

// RateLimitMiddleware handles rate limiting
type RateLimitMiddleware struct {
	rateLimiter Limiter
}

// NewRateLimitMiddleware creates a new rate limit middleware
func NewRateLimitMiddleware(rateLimiter Limiter) *RateLimitMiddleware {
	return &RateLimitMiddleware{rateLimiter: rateLimiter}
}

// Limit applies rate limiting per authenticated tenant
func (m *RateLimitMiddleware) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tenant, ok := GetTenant(r.Context())
		if !ok {
			response.Error(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		allowed, remaining, resetTime, err := m.rateLimiter.Allow(r.Context(), tenant)
		if err != nil {
			// fail open
			log.Warn().Err(err).Str("tenant", tenant.String()).Msg("Rate limiter unavailable")
			next.ServeHTTP(w, r)
			return
		}

		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		w.Header().Set("X-RateLimit-Reset", resetTime.UTC().Format(time.RFC3339))

		if !allowed {
			response.TooManyRequests(w, "rate limit exceeded")
			return
		}

		next.ServeHTTP(w, r)
	})
}
