package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/appetiteclub/apt"
	"github.com/redis/go-redis/v9"
)

// RedisCache keeps menu items in Redis in front of another Lookup. Redis
// failures degrade to the inner lookup.
type RedisCache struct {
	Client *redis.Client
	TTL    time.Duration
	inner  Lookup
	logger apt.Logger
}

func NewRedisCache(client *redis.Client, ttl time.Duration, inner Lookup, logger apt.Logger) *RedisCache {
	if logger == nil {
		logger = apt.NewNoopLogger()
	}
	return &RedisCache{Client: client, TTL: ttl, inner: inner, logger: logger}
}

func (c *RedisCache) Key(tenantID, id string) string {
	return "catalog:" + tenantID + ":" + id
}

func (c *RedisCache) Items(ctx context.Context, tenantID string, ids []string) (map[string]MenuItem, error) {
	ids = uniqueIDs(ids)
	out := make(map[string]MenuItem, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	missing := c.fromCache(ctx, tenantID, ids, out)
	if len(missing) == 0 {
		return out, nil
	}

	fetched, err := c.inner.Items(ctx, tenantID, missing)
	if err != nil {
		return nil, err
	}
	for id, item := range fetched {
		out[id] = item
	}
	c.store(ctx, tenantID, fetched)
	return out, nil
}

// Invalidate drops cached entries, e.g. after a menu change event.
func (c *RedisCache) Invalidate(ctx context.Context, tenantID string, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, c.Key(tenantID, id))
	}
	if err := c.Client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("cannot invalidate menu items: %w", err)
	}
	return nil
}

func (c *RedisCache) fromCache(ctx context.Context, tenantID string, ids []string, out map[string]MenuItem) []string {
	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, c.Key(tenantID, id))
	}

	vals, err := c.Client.MGet(ctx, keys...).Result()
	if err != nil {
		c.logger.Debug("catalog cache read failed", "tenant_id", tenantID, "error", err)
		return ids
	}

	var missing []string
	for i, v := range vals {
		s, ok := v.(string)
		if !ok {
			missing = append(missing, ids[i])
			continue
		}
		var item MenuItem
		if err := json.Unmarshal([]byte(s), &item); err != nil {
			missing = append(missing, ids[i])
			continue
		}
		out[ids[i]] = item
	}
	return missing
}

func (c *RedisCache) store(ctx context.Context, tenantID string, items map[string]MenuItem) {
	if len(items) == 0 {
		return
	}
	pipe := c.Client.Pipeline()
	for id, item := range items {
		data, err := json.Marshal(item)
		if err != nil {
			continue
		}
		pipe.Set(ctx, c.Key(tenantID, id), data, c.TTL)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		c.logger.Debug("catalog cache write failed", "tenant_id", tenantID, "error", err)
	}
}
