package cache

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/campusbay/marketplace/services/market-service/internal/domain/listings"
)

// DefaultTTL bounds how stale a cached listing can get if an invalidation is lost.
const DefaultTTL = time.Minute

// FillGuardTTL is how long an invalidation blocks refills. A read that loaded
// the item before the invalidation and writes it back within this window is
// dropped instead of caching the old state.
const FillGuardTTL = 10 * time.Second

const keyPrefix = "market:item:"

var tombstone = []byte("invalidated")

// RedisItemCache implements listings.ItemCache and bids.CacheInvalidator
type RedisItemCache struct {
	client redis.Cmdable
	ttl    time.Duration
}

// NewRedisItemCache creates a cache on top of an existing redis client
func NewRedisItemCache(client redis.Cmdable, ttl time.Duration) *RedisItemCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisItemCache{client: client, ttl: ttl}
}

func key(itemID uuid.UUID) string {
	return keyPrefix + itemID.String()
}

// Get returns the cached item, or nil on a miss
func (c *RedisItemCache) Get(ctx context.Context, itemID uuid.UUID) (*listings.Item, error) {
	raw, err := c.client.Get(ctx, key(itemID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cached item: %w", err)
	}
	if bytes.Equal(raw, tombstone) {
		return nil, nil
	}

	var item listings.Item
	if err := json.Unmarshal(raw, &item); err != nil {
		// Unreadable entries are dropped so the next read repopulates them.
		_ = c.client.Del(ctx, key(itemID)).Err()
		return nil, nil
	}
	return &item, nil
}

// Set fills a missing entry with the configured TTL. It never overwrites: an
// existing entry is at least as fresh, and a tombstone means the item changed
// after the caller read it.
func (c *RedisItemCache) Set(ctx context.Context, item *listings.Item) error {
	raw, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("failed to encode item: %w", err)
	}
	if err := c.client.SetNX(ctx, key(item.ID), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache item: %w", err)
	}
	return nil
}

// Invalidate replaces the cached item with a short-lived tombstone
func (c *RedisItemCache) Invalidate(ctx context.Context, itemID uuid.UUID) error {
	if err := c.client.Set(ctx, key(itemID), tombstone, FillGuardTTL).Err(); err != nil {
		return fmt.Errorf("failed to invalidate item: %w", err)
	}
	return nil
}
