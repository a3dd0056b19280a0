// internal/common/cache/cache.go
// Package cache provides an optional short-TTL Redis cache for synthesized
// responses. It is a latency optimization only: conversation persistence
// stays with the caller, and every cache failure is treated as a miss.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"supervisor-core/internal/common/config"
	"supervisor-core/internal/supervisor/types"
)

// ResponseCache caches SynthesizedResponse values keyed by the query
// identity (organization, deal, normalized query text).
type ResponseCache struct {
	client *redis.Client
	ttl    time.Duration
}

// New creates a ResponseCache from config. Returns nil when the cache is
// disabled; callers treat a nil cache as a no-op.
func New(cfg config.CacheConfig) (*ResponseCache, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	return &ResponseCache{
		client: rdb,
		ttl:    config.GetDuration(cfg.TTL),
	}, nil
}

// NewWithClient wraps an existing redis client; used by tests.
func NewWithClient(client *redis.Client, ttl time.Duration) *ResponseCache {
	return &ResponseCache{client: client, ttl: ttl}
}

// Key derives the cache key for a query context.
func Key(qc *types.QueryContext) string {
	normalized := strings.ToLower(strings.TrimSpace(qc.Query))
	sum := sha256.Sum256([]byte(qc.OrganizationID + "|" + qc.DealID + "|" + normalized))
	return "supervisor:response:" + hex.EncodeToString(sum[:])
}

// Get returns the cached response for the query, or (nil, false) on a miss
// or any cache error.
func (c *ResponseCache) Get(ctx context.Context, qc *types.QueryContext) (*types.SynthesizedResponse, bool) {
	if c == nil {
		return nil, false
	}

	raw, err := c.client.Get(ctx, Key(qc)).Result()
	if err != nil {
		return nil, false
	}

	var resp types.SynthesizedResponse
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		return nil, false
	}
	return &resp, true
}

// Set stores the response under the query's key with the configured TTL.
func (c *ResponseCache) Set(ctx context.Context, qc *types.QueryContext, resp *types.SynthesizedResponse) error {
	if c == nil {
		return nil
	}

	raw, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("marshal cached response: %w", err)
	}
	return c.client.Set(ctx, Key(qc), raw, c.ttl).Err()
}

// Ping tests the Redis connection.
func (c *ResponseCache) Ping(ctx context.Context) error {
	if c == nil {
		return nil
	}
	if err := c.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

// Close closes the underlying connection.
func (c *ResponseCache) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}
