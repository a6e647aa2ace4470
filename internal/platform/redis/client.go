// Package redis opens the shared go-redis client used by the playbook cache
// and the rate limiter.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/redis/go-redis/v9"

	"idv/internal/platform/config"
)

const (
	connectAttempts = 5
	healthTimeout   = 2 * time.Second
)

// Client is a go-redis client that reports its health to /ops/readyz.
type Client struct {
	*redis.Client
}

// New connects to cfg.URL, retrying the first ping so the server can start
// alongside Redis. It returns nil, nil when no URL is configured.
func New(ctx context.Context, cfg config.RedisConfig) (*Client, error) {
	if cfg.URL == "" {
		return nil, nil
	}

	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns
	opts.DialTimeout = cfg.DialTimeout
	opts.ReadTimeout = cfg.ReadTimeout
	opts.WriteTimeout = cfg.WriteTimeout

	client := redis.NewClient(opts)
	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), connectAttempts-1), ctx)
	if err := backoff.Retry(func() error { return client.Ping(ctx).Err() }, policy); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed after %d attempts: %w", connectAttempts, err)
	}
	return &Client{Client: client}, nil
}

// Health pings with a short deadline so a hung connection fails readiness
// instead of blocking it.
func (c *Client) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()
	return c.Ping(ctx).Err()
}
