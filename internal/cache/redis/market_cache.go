package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/xyzseer/conditional-tokens-contracts/internal/domain"
)

// MarketCache implements domain.MarketCache using JSON-serialized market
// snapshots under string keys.
//
// Key schema:
//
//	mkt:snapshot:{id} - JSON-encoded domain.MarketInfo
type MarketCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewMarketCache creates a MarketCache backed by the given Client. A zero ttl
// defaults to five minutes.
func NewMarketCache(c *Client, ttl time.Duration) *MarketCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &MarketCache{rdb: c.rdb, ttl: ttl}
}

func snapshotKey(id uuid.UUID) string { return "mkt:snapshot:" + id.String() }

// Set stores a market snapshot with the configured TTL.
func (mc *MarketCache) Set(ctx context.Context, info domain.MarketInfo) error {
	data, err := json.Marshal(info)
	if err != nil {
		return fmt.Errorf("redis: marshal market %s: %w", info.ID, err)
	}
	if err := mc.rdb.Set(ctx, snapshotKey(info.ID), data, mc.ttl).Err(); err != nil {
		return fmt.Errorf("redis: set market %s: %w", info.ID, err)
	}
	return nil
}

// Get retrieves a market snapshot by its ID.
// It returns domain.ErrNotFound when the key does not exist.
func (mc *MarketCache) Get(ctx context.Context, id uuid.UUID) (domain.MarketInfo, error) {
	data, err := mc.rdb.Get(ctx, snapshotKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.MarketInfo{}, domain.ErrNotFound
		}
		return domain.MarketInfo{}, fmt.Errorf("redis: get market %s: %w", id, err)
	}

	var info domain.MarketInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return domain.MarketInfo{}, fmt.Errorf("redis: unmarshal market %s: %w", id, err)
	}
	return info, nil
}

// Invalidate removes a market snapshot from the cache.
func (mc *MarketCache) Invalidate(ctx context.Context, id uuid.UUID) error {
	if err := mc.rdb.Del(ctx, snapshotKey(id)).Err(); err != nil {
		return fmt.Errorf("redis: invalidate market %s: %w", id, err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.MarketCache = (*MarketCache)(nil)
