package stock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const versionKey = "stock:levels:version"

// Cache is a read-through cache for stock level listings. Cached entries are
// keyed by a version counter that every posting bumps, so a read after a
// committed validation can never observe a stale listing.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache constructs Cache. A nil client disables caching.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &Cache{client: client, ttl: ttl}
}

// Bump invalidates all cached listings by advancing the version counter.
func (c *Cache) Bump(ctx context.Context) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Incr(ctx, versionKey).Err()
}

type cachedLevels struct {
	Levels []StockLevel `json:"levels"`
	Total  int          `json:"total"`
}

// GetLevels returns the cached listing for the filter, if present.
func (c *Cache) GetLevels(ctx context.Context, filter LevelFilter) ([]StockLevel, int, bool) {
	if c == nil || c.client == nil {
		return nil, 0, false
	}
	key, err := c.levelsKey(ctx, filter)
	if err != nil {
		return nil, 0, false
	}
	raw, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		return nil, 0, false
	}
	var cached cachedLevels
	if err := json.Unmarshal(raw, &cached); err != nil {
		return nil, 0, false
	}
	return cached.Levels, cached.Total, true
}

// SetLevels stores a listing under the current version.
func (c *Cache) SetLevels(ctx context.Context, filter LevelFilter, levels []StockLevel, total int) {
	if c == nil || c.client == nil {
		return
	}
	key, err := c.levelsKey(ctx, filter)
	if err != nil {
		return
	}
	raw, err := json.Marshal(cachedLevels{Levels: levels, Total: total})
	if err != nil {
		return
	}
	_ = c.client.Set(ctx, key, raw, c.ttl).Err()
}

func (c *Cache) levelsKey(ctx context.Context, filter LevelFilter) (string, error) {
	version, err := c.client.Get(ctx, versionKey).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return "", err
	}
	return fmt.Sprintf("stock:levels:%d:p%d:l%d:w%d:pg%d:sz%d",
		version, filter.ProductID, filter.LocationID, filter.WarehouseID, filter.Page, filter.Limit), nil
}
