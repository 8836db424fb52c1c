package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/biostack-engine/internal/domain"
	"github.com/biostack-engine/pkg/canonhash"
)

// ResultCache memoizes full pipeline responses in Redis. Because the
// pipeline is deterministic, a response is valid for as long as every
// version that produced it is unchanged; the cache key binds the
// canonical request hash to the full version set, so a catalog reload
// or ruleset bump silently invalidates all prior entries.
type ResultCache struct {
	redis      *redis.Client
	defaultTTL time.Duration
	logger     *logrus.Logger
}

// NewResultCache connects to Redis and verifies the connection.
func NewResultCache(cfg domain.CacheConfig, logger *logrus.Logger) (*ResultCache, error) {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	if cfg.PoolSize > 0 {
		opts.PoolSize = cfg.PoolSize
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	ttl := cfg.DefaultTTL
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}

	return &ResultCache{
		redis:      client,
		defaultTTL: ttl,
		logger:     logger,
	}, nil
}

// cachedResponse wraps a response with cache metadata.
type cachedResponse struct {
	Response  *domain.ProtocolResponse `json:"response"`
	CachedAt  time.Time                `json:"cached_at"`
	ExpiresAt time.Time                `json:"expires_at"`
}

// Key derives the cache key for a request under a given version set.
// Returns an error only when the request cannot be canonicalized.
func (c *ResultCache) Key(req *domain.ProtocolRequest, versions domain.Versions) (string, error) {
	reqHash, err := canonhash.Hash(req)
	if err != nil {
		return "", fmt.Errorf("failed to hash request: %w", err)
	}
	versionHash := canonhash.HashStrings(
		versions.ReferenceRanges,
		versions.GateRegistry,
		versions.Mapping,
		versions.Catalog,
		versions.Routing,
		versions.Matching,
	)
	return fmt.Sprintf("protocol:%s:%s", versionHash, reqHash), nil
}

// Get retrieves a cached response. A miss, a corrupted entry, and an
// expired entry all return (nil, false, nil); corrupted and expired
// entries are deleted on the way out.
func (c *ResultCache) Get(ctx context.Context, key string) (*domain.ProtocolResponse, bool, error) {
	val, err := c.redis.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get cached response: %w", err)
	}

	var cached cachedResponse
	if err := json.Unmarshal([]byte(val), &cached); err != nil {
		c.redis.Del(ctx, key)
		c.logger.WithField("key", key).Warn("Dropped corrupted cache entry")
		return nil, false, nil
	}

	if time.Now().After(cached.ExpiresAt) {
		c.redis.Del(ctx, key)
		return nil, false, nil
	}

	return cached.Response, true, nil
}

// Set stores a response under the given key. A zero ttl uses the
// configured default.
func (c *ResultCache) Set(ctx context.Context, key string, resp *domain.ProtocolResponse, ttl time.Duration) error {
	if ttl == 0 {
		ttl = c.defaultTTL
	}

	cached := cachedResponse{
		Response:  resp,
		CachedAt:  time.Now(),
		ExpiresAt: time.Now().Add(ttl),
	}

	data, err := json.Marshal(cached)
	if err != nil {
		return fmt.Errorf("failed to marshal cached response: %w", err)
	}

	return c.redis.Set(ctx, key, data, ttl).Err()
}

// InvalidateAll removes every cached protocol response. Used after an
// admin catalog reload so stale revisions never serve.
func (c *ResultCache) InvalidateAll(ctx context.Context) error {
	keys, err := c.redis.Keys(ctx, "protocol:*").Result()
	if err != nil {
		return fmt.Errorf("failed to list cache keys: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	return c.redis.Del(ctx, keys...).Err()
}

// Ping checks the Redis connection.
func (c *ResultCache) Ping(ctx context.Context) error {
	return c.redis.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (c *ResultCache) Close() error {
	return c.redis.Close()
}
