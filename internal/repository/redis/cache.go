package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Rrens/formvault/internal/domain"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	versionCachePrefix = "formvault:version:"
	defaultVersionTTL  = time.Hour
)

// VersionCache caches immutable version snapshots in Redis. Snapshots never
// change once published, so entries are only ever evicted, never refreshed.
type VersionCache struct {
	client *Client
	ttl    time.Duration
}

// NewVersionCache creates a new version cache
func NewVersionCache(client *Client, ttl time.Duration) *VersionCache {
	if ttl <= 0 {
		ttl = defaultVersionTTL
	}
	return &VersionCache{client: client, ttl: ttl}
}

func versionKey(tenantID domain.TenantID, definitionID uuid.UUID, number int) string {
	return fmt.Sprintf("%s%s:%s:%d", versionCachePrefix, tenantID, definitionID, number)
}

func definitionPattern(tenantID domain.TenantID, definitionID uuid.UUID) string {
	return fmt.Sprintf("%s%s:%s:*", versionCachePrefix, tenantID, definitionID)
}

// Get retrieves a cached snapshot
func (c *VersionCache) Get(ctx context.Context, tenantID domain.TenantID, definitionID uuid.UUID, number int) (*domain.SchemaVersion, error) {
	data, err := c.client.rdb.Get(ctx, versionKey(tenantID, definitionID, number)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil // Cache miss
		}
		return nil, fmt.Errorf("failed to read cached version: %w", err)
	}

	var v domain.SchemaVersion
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("failed to unmarshal version: %w", err)
	}

	// the key is tenant scoped, but never trust a payload blindly
	if v.TenantID != tenantID || v.DefinitionID != definitionID || v.Number != number {
		return nil, nil
	}
	v.Active = false

	return &v, nil
}

// Set caches a snapshot
func (c *VersionCache) Set(ctx context.Context, v *domain.SchemaVersion) error {
	snapshot := *v
	snapshot.Active = false

	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal version: %w", err)
	}

	return c.client.rdb.Set(ctx, versionKey(v.TenantID, v.DefinitionID, v.Number), data, c.ttl).Err()
}

// InvalidateDefinition removes every cached snapshot of a definition
func (c *VersionCache) InvalidateDefinition(ctx context.Context, tenantID domain.TenantID, definitionID uuid.UUID) error {
	_, err := c.deleteMatching(ctx, definitionPattern(tenantID, definitionID))
	return err
}

// FlushAll removes all cached snapshots
func (c *VersionCache) FlushAll(ctx context.Context) (int64, error) {
	return c.deleteMatching(ctx, versionCachePrefix+"*")
}

func (c *VersionCache) deleteMatching(ctx context.Context, pattern string) (int64, error) {
	var cursor uint64
	var deleted int64

	for {
		keys, nextCursor, err := c.client.rdb.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return deleted, fmt.Errorf("failed to scan keys: %w", err)
		}

		if len(keys) > 0 {
			count, err := c.client.rdb.Del(ctx, keys...).Result()
			if err != nil {
				return deleted, fmt.Errorf("failed to delete keys: %w", err)
			}
			deleted += count
		}

		cursor = nextCursor
		if cursor == 0 {
			break
		}
	}

	return deleted, nil
}
