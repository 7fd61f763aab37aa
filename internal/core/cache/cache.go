// Package cache defines the shared cache that holds discussion sessions and
// resolved agents, and the key layout both use.
package cache

import (
	"context"
	"time"

	"github.com/unifiedui/multiagent-service/internal/core/events"
)

// Type represents the type of cache.
type Type string

const (
	// TypeRedis represents a Redis cache.
	TypeRedis Type = "redis"
)

const (
	discussionKeyPrefix = "discussion:"
	agentKeyPrefix      = "agent:"
)

// Client stores opaque, already sealed values with a TTL.
type Client interface {
	// Get returns nil, nil when the key does not exist.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value. A zero ttl uses the client's default TTL.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete reports whether the key existed.
	Delete(ctx context.Context, key string) (bool, error)

	Ping(ctx context.Context) error

	// Bus returns an event bus sharing the cache connection.
	Bus() events.Bus

	Close() error
}

// DiscussionKey is the key of a live discussion session.
func DiscussionKey(discussionID string) string {
	return discussionKeyPrefix + discussionID
}

// AgentKey is the key of a resolved agent record.
func AgentKey(agentID string) string {
	return agentKeyPrefix + agentID
}
