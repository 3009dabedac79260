package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/Rrens/formvault/internal/domain"
	"github.com/redis/go-redis/v9"
)

const (
	rateLimitPrefix = "formvault:ratelimit:"
)

// RateLimiter applies a fixed-window request budget per tenant
type RateLimiter struct {
	client            *Client
	requestsPerMinute int
	burst             int
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(client *Client, requestsPerMinute, burst int) *RateLimiter {
	return &RateLimiter{
		client:            client,
		requestsPerMinute: requestsPerMinute,
		burst:             burst,
	}
}

func rateLimitKey(tenantID domain.TenantID, windowStart time.Time) string {
	return fmt.Sprintf("%s%s:%d", rateLimitPrefix, tenantID, windowStart.Unix())
}

// Allow checks if a request should be allowed based on rate limits
// Returns (allowed, remaining, resetTime, error)
func (r *RateLimiter) Allow(ctx context.Context, tenantID domain.TenantID) (bool, int, time.Time, error) {
	now := time.Now()
	windowStart := now.Truncate(time.Minute)
	windowEnd := windowStart.Add(time.Minute)
	key := rateLimitKey(tenantID, windowStart)

	pipe := r.client.rdb.Pipeline()

	// Increment counter
	incrCmd := pipe.Incr(ctx, key)

	// Set expiry if key is new
	pipe.ExpireNX(ctx, key, 2*time.Minute)

	_, err := pipe.Exec(ctx)
	if err != nil && err != redis.Nil {
		return false, 0, time.Time{}, fmt.Errorf("failed to execute rate limit check: %w", err)
	}

	count := incrCmd.Val()
	limit := int64(r.requestsPerMinute + r.burst)
	remaining := int(limit - count)
	if remaining < 0 {
		remaining = 0
	}

	return count <= limit, remaining, windowEnd, nil
}

// Reset resets the current window's counter for a tenant
func (r *RateLimiter) Reset(ctx context.Context, tenantID domain.TenantID) error {
	return r.client.rdb.Del(ctx, rateLimitKey(tenantID, time.Now().Truncate(time.Minute))).Err()
}
