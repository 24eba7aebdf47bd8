// Package cache provides the Redis access layer for identity caching and
// rate limiting.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Options tunes the Redis connection pool. Zero values keep the
// go-redis defaults.
type Options struct {
	PoolSize        int
	MinIdleConns    int
	PoolTimeout     time.Duration
	ConnMaxIdleTime time.Duration
}

func (o Options) apply(opt *redis.Options) {
	if o.PoolSize > 0 {
		opt.PoolSize = o.PoolSize
	}
	if o.MinIdleConns > 0 {
		opt.MinIdleConns = o.MinIdleConns
	}
	if o.PoolTimeout > 0 {
		opt.PoolTimeout = o.PoolTimeout
	}
	if o.ConnMaxIdleTime > 0 {
		opt.ConnMaxIdleTime = o.ConnMaxIdleTime
	}
}

// Cache holds the shared Redis client. The broadcast adapter publishes on
// the same client.
type Cache struct {
	client *redis.Client
}

// New connects to redisURL and verifies the connection.
func New(ctx context.Context, redisURL string, opts Options) (*Cache, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	opts.apply(opt)

	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}
	return &Cache{client: client}, nil
}

// NewWithClient wraps an existing Redis client.
func NewWithClient(client *redis.Client) *Cache {
	return &Cache{client: client}
}

// Ping reports Redis reachability for readiness checks.
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close releases the pool.
func (c *Cache) Close() error {
	return c.client.Close()
}

// Client returns the underlying client for the pub/sub adapter.
func (c *Cache) Client() *redis.Client {
	return c.client
}
