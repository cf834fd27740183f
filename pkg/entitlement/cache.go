package entitlement

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	lru "github.com/hashicorp/golang-lru/v2/expirable"
)

// SnapshotCache caches resolved FeatureStates per organization
type SnapshotCache interface {
	Get(ctx context.Context, orgID int64) (FeatureState, bool)
	Set(ctx context.Context, orgID int64, state FeatureState)
	Invalidate(ctx context.Context, orgID int64)
}

// MemoryCache is an in-process LRU snapshot cache with TTL expiry
type MemoryCache struct {
	cache *lru.LRU[int64, FeatureState]
}

// NewMemoryCache creates a MemoryCache holding up to maxEntries snapshots
// for at most ttl each.
func NewMemoryCache(maxEntries int, ttl time.Duration) *MemoryCache {
	if maxEntries < 16 {
		maxEntries = 16
	}
	return &MemoryCache{
		cache: lru.NewLRU[int64, FeatureState](maxEntries, nil, ttl),
	}
}

// Get retrieves a cached snapshot
func (c *MemoryCache) Get(_ context.Context, orgID int64) (FeatureState, bool) {
	return c.cache.Get(orgID)
}

// Set stores a snapshot
func (c *MemoryCache) Set(_ context.Context, orgID int64, state FeatureState) {
	c.cache.Add(orgID, state)
}

// Invalidate drops a snapshot
func (c *MemoryCache) Invalidate(_ context.Context, orgID int64) {
	c.cache.Remove(orgID)
}

// RedisCache is a Redis-backed snapshot cache shared across instances
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// NewRedisCache creates a RedisCache with the given TTL
func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl, prefix: "entitlement"}
}

func (c *RedisCache) key(orgID int64) string {
	return fmt.Sprintf("%s:org:%d", c.prefix, orgID)
}

// Get retrieves a cached snapshot. A Redis error is treated as a miss; the
// resolver falls through to the store.
func (c *RedisCache) Get(ctx context.Context, orgID int64) (FeatureState, bool) {
	data, err := c.client.Get(ctx, c.key(orgID)).Bytes()
	if err != nil {
		return FeatureState{}, false
	}
	var state FeatureState
	if err := json.Unmarshal(data, &state); err != nil {
		return FeatureState{}, false
	}
	return state, true
}

// Set stores a snapshot with the configured TTL. Failures are ignored;
// the cache is best-effort.
func (c *RedisCache) Set(ctx context.Context, orgID int64, state FeatureState) {
	data, err := json.Marshal(state)
	if err != nil {
		return
	}
	c.client.Set(ctx, c.key(orgID), data, c.ttl)
}

// Invalidate drops a snapshot
func (c *RedisCache) Invalidate(ctx context.Context, orgID int64) {
	c.client.Del(ctx, c.key(orgID))
}
