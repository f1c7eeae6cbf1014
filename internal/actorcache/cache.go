// Package actorcache provides a short-TTL Redis cache of resolved actor
// display names. It is an injected component owned by the process lifecycle,
// not ambient state; the engine runs without it.
package actorcache

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultTTL bounds how stale a cached designation may get.
const DefaultTTL = 60 * time.Second

type Cache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// New creates a Redis-backed cache from a URL. The connection is verified up
// front so a misconfigured URL fails at startup, not mid-mutation.
func New(redisURL string, ttl time.Duration) (*Cache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewWithClient(client, ttl), nil
}

// NewWithClient wraps an existing Redis client.
func NewWithClient(client *redis.Client, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{
		client: client,
		prefix: "actor:",
		ttl:    ttl,
	}
}

func (c *Cache) key(actor string) string {
	return c.prefix + actor
}

// Get returns the cached display name for a raw actor string. A miss or a
// Redis failure both report false: the cache is advisory and a mutation must
// never fail because of it.
func (c *Cache) Get(ctx context.Context, actor string) (string, bool) {
	value, err := c.client.Get(ctx, c.key(actor)).Result()
	if err == redis.Nil {
		return "", false
	}
	if err != nil {
		log.Printf("actorcache: get %q: %v", actor, err)
		return "", false
	}
	return value, true
}

// Set stores a resolved display name under the cache TTL.
func (c *Cache) Set(ctx context.Context, actor, display string) {
	if err := c.client.Set(ctx, c.key(actor), display, c.ttl).Err(); err != nil {
		log.Printf("actorcache: set %q: %v", actor, err)
	}
}

// Ping checks if Redis is reachable
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (c *Cache) Close() error {
	return c.client.Close()
}
