package store

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// Config holds Redis connection settings.
type Config struct {
	URL        string
	Password   string
	DB         int
	MaxRetries int
	PoolSize   int
}

// Observer receives a callback per store operation. The observability package
// provides a prometheus-backed implementation.
type Observer interface {
	ObserveOp(op string, err error, elapsed time.Duration)
}

// Client wraps a Redis connection with typed primitive operations.
type Client struct {
	rdb *redis.Client
	obs Observer
}

// Option configures a Client.
type Option func(*Client)

// WithObserver attaches per-operation instrumentation.
func WithObserver(obs Observer) Option {
	return func(c *Client) { c.obs = obs }
}

// NewClient connects to Redis and verifies the connection with a ping.
func NewClient(cfg Config, opts ...Option) (*Client, error) {
	ropts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	if cfg.Password != "" {
		ropts.Password = cfg.Password
	}
	if cfg.DB > 0 {
		ropts.DB = cfg.DB
	}
	if cfg.MaxRetries > 0 {
		ropts.MaxRetries = cfg.MaxRetries
	}
	if cfg.PoolSize > 0 {
		ropts.PoolSize = cfg.PoolSize
	}

	ropts.DialTimeout = 5 * time.Second
	ropts.ReadTimeout = 3 * time.Second
	ropts.WriteTimeout = 3 * time.Second
	ropts.PoolTimeout = 4 * time.Second

	rdb := redis.NewClient(ropts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	c := &Client{rdb: rdb}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// NewClientFromRedis wraps an existing Redis client. Used by tests and by
// callers that manage the connection themselves.
func NewClientFromRedis(rdb *redis.Client, opts ...Option) *Client {
	c := &Client{rdb: rdb}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Redis exposes the underlying client for health checks.
func (c *Client) Redis() *redis.Client {
	return c.rdb
}

// Ping checks connectivity.
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Close closes the connection pool.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// observe returns a completion callback for one operation.
func (c *Client) observe(op string) func(error) {
	if c.obs == nil {
		return func(error) {}
	}
	start := time.Now()
	return func(err error) {
		c.obs.ObserveOp(op, err, time.Since(start))
	}
}
