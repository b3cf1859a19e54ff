// Package redis implements the lookup cache on go-redis.
package redis

import (
	"context"
	"errors"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/CHRISCARLON/infra-hex/internal/core/ports"
)

// Cache implements ports.CacheService on a Redis server.
type Cache struct {
	client goredis.UniversalClient
}

// New creates a Redis-backed cache. The connection is established lazily.
func New(addr, password string, db int) *Cache {
	return &Cache{client: goredis.NewClient(&goredis.Options{Addr: addr, Password: password, DB: db})}
}

// NewFromClient wraps an existing client.
func NewFromClient(client goredis.UniversalClient) *Cache {
	return &Cache{client: client}
}

func (c *Cache) Get(ctx context.Context, key string) ([]byte, error) {
	b, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, ports.ErrCacheMiss
	}
	return b, err
}

func (c *Cache) Set(ctx context.Context, key string, value []byte, ttlSeconds int) error {
	return c.client.Set(ctx, key, value, time.Duration(ttlSeconds)*time.Second).Err()
}

func (c *Cache) Delete(ctx context.Context, key string) error {
	return c.client.Del(ctx, key).Err()
}

func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *Cache) Close() {
	_ = c.client.Close()
}
