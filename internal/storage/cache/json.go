package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// setIfGeneration stores ARGV[2] under KEYS[1] only while the generation in
// KEYS[2] still equals ARGV[1]. ARGV[3] is the TTL in milliseconds, 0 for none.
var setIfGeneration = redis.NewScript(`
local gen = redis.call('GET', KEYS[2]) or '0'
if gen ~= ARGV[1] then
	return 0
end
if ARGV[3] == '0' then
	redis.call('SET', KEYS[1], ARGV[2])
else
	redis.call('SET', KEYS[1], ARGV[2], 'PX', ARGV[3])
end
return 1
`)

// LoaderFunc produces the value to cache on a miss.
type LoaderFunc func(ctx context.Context) (any, error)

// JSONCache stores JSON encoded values in Redis. A JSONCache without a client
// calls the loader every time. Concurrent misses for one key share a single
// loader call. Each key has a generation counter bumped by Invalidate; a load
// that overlaps an invalidation is returned to its callers but never stored.
type JSONCache struct {
	client *redis.Client
	ttl    time.Duration
	group  singleflight.Group
}

func NewJSONCache(client *redis.Client, ttl time.Duration) *JSONCache {
	return &JSONCache{client: client, ttl: ttl}
}

// Fetch decodes the cached value for key into dest, populating it with loader
// on a miss. Redis failures degrade to calling the loader.
func (c *JSONCache) Fetch(ctx context.Context, key string, dest any, loader LoaderFunc) error {
	if loader == nil {
		return errors.New("cache: loader required")
	}

	if c.client != nil {
		payload, err := c.client.Get(ctx, key).Bytes()
		if err == nil {
			return json.Unmarshal(payload, dest)
		}
		if !errors.Is(err, redis.Nil) && ctx.Err() != nil {
			return ctx.Err()
		}
	}

	raw, err, _ := c.group.Do(key, func() (any, error) {
		gen, genErr := c.generation(ctx, key)

		value, err := loader(ctx)
		if err != nil {
			return nil, err
		}

		raw, err := json.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("marshal cached value: %w", err)
		}

		if c.client != nil && genErr == nil {
			// A failed write only costs a reload on the next call.
			_ = setIfGeneration.Run(ctx, c.client,
				[]string{key, generationKey(key)},
				gen, raw, c.ttl.Milliseconds(),
			).Err()
		}

		return raw, nil
	})
	if err != nil {
		return err
	}

	return json.Unmarshal(raw.([]byte), dest)
}

// Invalidate removes keys from the cache and bumps their generation so that
// loads already in flight do not store their result.
func (c *JSONCache) Invalidate(ctx context.Context, keys ...string) error {
	if c.client == nil || len(keys) == 0 {
		return nil
	}

	if _, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, key := range keys {
			pipe.Incr(ctx, generationKey(key))
		}
		pipe.Del(ctx, keys...)
		return nil
	}); err != nil {
		return fmt.Errorf("invalidate cache keys: %w", err)
	}
	return nil
}

func (c *JSONCache) generation(ctx context.Context, key string) (string, error) {
	if c.client == nil {
		return "", nil
	}

	gen, err := c.client.Get(ctx, generationKey(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "0", nil
	}
	return gen, err
}

func generationKey(key string) string {
	return key + ":gen"
}
