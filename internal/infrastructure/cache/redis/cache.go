// Package redis provides the Redis cache and event bus implementations.
package redis

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/unifiedui/multiagent-service/internal/core/events"
)

const connectTimeout = 5 * time.Second

// Config holds Redis connection configuration.
type Config struct {
	Host       string
	Port       string
	Password   string
	DB         int
	DefaultTTL time.Duration
}

// Addr returns host:port.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, c.Port)
}

// Client implements cache.Client on a single Redis connection that it shares
// with the event bus.
type Client struct {
	rdb        *redis.Client
	defaultTTL time.Duration
}

// NewClient connects to Redis and verifies the connection.
func NewClient(cfg Config) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:        cfg.Addr(),
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: connectTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Addr(), err)
	}

	return &Client{rdb: rdb, defaultTTL: cfg.DefaultTTL}, nil
}

// Bus returns an event bus sharing this client's connection.
func (c *Client) Bus() events.Bus {
	return NewBus(c.rdb)
}

// Get returns nil, nil when the key does not exist.
func (c *Client) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get key %s: %w", key, err)
	}
	return val, nil
}

// Set stores a value. A zero ttl uses the default TTL.
func (c *Client) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl == 0 {
		ttl = c.defaultTTL
	}

	if err := c.rdb.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set key %s: %w", key, err)
	}
	return nil
}

// Delete removes a key and reports whether it existed.
func (c *Client) Delete(ctx context.Context, key string) (bool, error) {
	result, err := c.rdb.Del(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("failed to delete key %s: %w", key, err)
	}
	return result > 0, nil
}

// Ping checks if the Redis connection is alive.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

// Close closes the connection shared with the bus.
func (c *Client) Close() error {
	if err := c.rdb.Close(); err != nil {
		return fmt.Errorf("failed to close redis connection: %w", err)
	}
	return nil
}
