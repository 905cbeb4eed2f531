// Package tokencache provides the authenticator-token -> team-id TTL cache
// used by the platform-lookup authenticator variant, so every request
// doesn't have to round-trip the external auth platform.
package tokencache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache is a Redis-backed token -> team-id cache.
type Cache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// New builds a Cache with the given key prefix and entry lifetime.
func New(client *redis.Client, prefix string, ttl time.Duration) *Cache {
	return &Cache{client: client, prefix: prefix, ttl: ttl}
}

func (c *Cache) key(token string) string {
	return fmt.Sprintf("%s:tokens:%s", c.prefix, token)
}

// Put caches token -> teamID for the configured TTL.
func (c *Cache) Put(ctx context.Context, token, teamID string) error {
	return c.client.Set(ctx, c.key(token), teamID, c.ttl).Err()
}

// Get returns the cached team-id for token, and whether it was present.
func (c *Cache) Get(ctx context.Context, token string) (string, bool, error) {
	teamID, err := c.client.Get(ctx, c.key(token)).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return teamID, true, nil
}
