package cache

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/redis/go-redis/v9"
	"github.com/vmihailenco/msgpack/v5"

	"candle-learning-lab/internal/observability"
)

// RedisCache stores msgpack-encoded values in Redis under a key prefix.
// Capacity is governed by the server maxmemory policy; MaxSize is ignored.
// Safe for concurrent use.
type RedisCache[V any] struct {
	client redis.UniversalClient
	prefix string
	cfg    Config

	hits   atomic.Int64
	misses atomic.Int64
}

// NewRedisCache creates a Redis-backed cache.
func NewRedisCache[V any](client redis.UniversalClient, prefix string, cfg Config) *RedisCache[V] {
	if prefix == "" {
		prefix = "candle-lab:cache:"
	}
	return &RedisCache[V]{client: client, prefix: prefix, cfg: cfg}
}

// Set stores value under key with the configured TTL. No-op when disabled.
func (c *RedisCache[V]) Set(ctx context.Context, key string, value V) error {
	if !c.cfg.Enabled {
		return nil
	}

	data, err := msgpack.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode cache value: %w", err)
	}
	if err := c.client.Set(ctx, c.prefix+key, data, c.cfg.TTL).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Get returns the value for key. Redis errors and decode failures count as misses.
func (c *RedisCache[V]) Get(ctx context.Context, key string) (V, bool) {
	var zero V
	if !c.cfg.Enabled {
		c.miss()
		return zero, false
	}

	data, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if err != nil {
		c.miss()
		return zero, false
	}

	var v V
	if err := msgpack.Unmarshal(data, &v); err != nil {
		c.miss()
		return zero, false
	}
	c.hits.Add(1)
	observability.RecordCacheLookup(true)
	return v, true
}

func (c *RedisCache[V]) miss() {
	c.misses.Add(1)
	observability.RecordCacheLookup(false)
}

// Clear deletes every key under the prefix.
func (c *RedisCache[V]) Clear(ctx context.Context) error {
	iter := c.client.Scan(ctx, 0, c.prefix+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("redis scan: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// Stats returns hit counters. Size is the number of keys under the prefix.
func (c *RedisCache[V]) Stats(ctx context.Context) (Stats, error) {
	var size int
	iter := c.client.Scan(ctx, 0, c.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		size++
	}
	if err := iter.Err(); err != nil {
		return Stats{}, fmt.Errorf("redis scan: %w", err)
	}

	s := Stats{Size: size, Hits: c.hits.Load(), Misses: c.misses.Load()}
	if total := s.Hits + s.Misses; total > 0 {
		s.HitRate = float64(s.Hits) / float64(total)
	}
	return s, nil
}

var _ Cache[int] = (*RedisCache[int])(nil)
