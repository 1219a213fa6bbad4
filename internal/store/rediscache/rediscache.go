// Package rediscache implements store.Cache on top of Redis, the way
// oriys-nova's internal/cache.RedisCache and internal/queue's
// Redis-backed notifier use a single *redis.Client with a namespacing
// key prefix.
package rediscache

import (
	"context"

	"github.com/redis/go-redis/v9"
	"golang.org/x/xerrors"
)

// RedisCache implements store.Cache.
type RedisCache struct {
	client *redis.Client
	prefix string
}

// Config mirrors oriys-nova's RedisCacheConfig.
type Config struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string // default "forge:"
}

func New(cfg Config) *RedisCache {
	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = "forge:"
	}
	return &RedisCache{
		client: redis.NewClient(&redis.Options{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
		}),
		prefix: prefix,
	}
}

// NewFromClient wraps an already-constructed client, used by tests
// wiring up a miniredis-backed instance.
func NewFromClient(client *redis.Client, keyPrefix string) *RedisCache {
	if keyPrefix == "" {
		keyPrefix = "forge:"
	}
	return &RedisCache{client: client, prefix: keyPrefix}
}

func (c *RedisCache) key(k string) string { return c.prefix + k }

func (c *RedisCache) Put(ctx context.Context, key string, value []byte) error {
	if err := c.client.Set(ctx, c.key(key), value, 0).Err(); err != nil {
		return xerrors.Errorf("SET %s: %w", key, err)
	}
	return nil
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := c.client.Get(ctx, c.key(key)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, xerrors.Errorf("GET %s: %w", key, err)
	}
	return val, true, nil
}

func (c *RedisCache) Delete(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, c.key(key)).Err(); err != nil {
		return xerrors.Errorf("DEL %s: %w", key, err)
	}
	return nil
}

// List scans the keyspace for everything under prefix, using SCAN with
// a MATCH pattern rather than KEYS so a large keyspace does not block
// other Redis clients (the same tradeoff oriys-nova's cache package
// documents for its own Redis usage).
func (c *RedisCache) List(ctx context.Context, prefix string) ([]string, error) {
	var out []string
	var cursor uint64
	pattern := c.key(prefix) + "*"
	for {
		keys, next, err := c.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return nil, xerrors.Errorf("SCAN %s: %w", pattern, err)
		}
		for _, k := range keys {
			out = append(out, k[len(c.prefix):])
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return out, nil
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}
