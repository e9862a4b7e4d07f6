package browse

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"

	"github.com/relabs-tech/promptlib/core/directory"
	"github.com/relabs-tech/promptlib/core/registry"
)

const bootCacheKey = "directoryBootData"

// RegistryCache keeps the boot data in the registry
type RegistryCache struct {
	accessor registry.Accessor
}

// NewRegistryCache returns a boot cache on top of the registry
func NewRegistryCache(r registry.Registry) *RegistryCache {
	return &RegistryCache{accessor: r.Accessor("_browse_")}
}

// Load implements BootCache
func (c *RegistryCache) Load(ctx context.Context) (*directory.BootData, time.Time, error) {
	var boot directory.BootData
	storedAt, err := c.accessor.Read(ctx, bootCacheKey, &boot)
	if err != nil || storedAt.IsZero() {
		return nil, time.Time{}, err
	}
	return &boot, storedAt, nil
}

// Save implements BootCache
func (c *RegistryCache) Save(ctx context.Context, boot *directory.BootData) error {
	return c.accessor.Write(ctx, bootCacheKey, boot)
}

// cachedBoot is the redis envelope: the data and the time it was stored in milliseconds
type cachedBoot struct {
	Data *directory.BootData `json:"data"`
	TS   int64               `json:"ts"`
}

// RedisCache keeps the boot data in redis, shared by all instances
type RedisCache struct {
	client redis.Cmdable
	key    string
	now    func() time.Time
}

// NewRedisCache returns a boot cache on top of a redis client
func NewRedisCache(client redis.Cmdable, prefix string) *RedisCache {
	return &RedisCache{client: client, key: prefix + bootCacheKey, now: time.Now}
}

// Load implements BootCache
func (c *RedisCache) Load(ctx context.Context) (*directory.BootData, time.Time, error) {
	raw, err := c.client.Get(ctx, c.key).Bytes()
	if err == redis.Nil {
		return nil, time.Time{}, nil
	}
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("cannot read boot data from redis: %w", err)
	}
	var cached cachedBoot
	if err := json.Unmarshal(raw, &cached); err != nil || cached.Data == nil {
		// malformed entries are treated as missing
		return nil, time.Time{}, nil
	}
	return cached.Data, time.UnixMilli(cached.TS), nil
}

// Save implements BootCache
func (c *RedisCache) Save(ctx context.Context, boot *directory.BootData) error {
	raw, err := json.Marshal(cachedBoot{Data: boot, TS: c.now().UnixMilli()})
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.key, raw, 0).Err()
}
