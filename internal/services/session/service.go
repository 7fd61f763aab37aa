// Package session keeps live discussion state in the cache so any replica
// can report progress, encrypted at rest.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/unifiedui/multiagent-service/internal/core/cache"
	"github.com/unifiedui/multiagent-service/internal/domain/models"
	"github.com/unifiedui/multiagent-service/internal/pkg/encryption"
)

// DefaultSessionTTL bounds how long a discussion snapshot outlives its last update.
const DefaultSessionTTL = 24 * time.Hour

// Service stores discussion snapshots.
type Service interface {
	// GetSession returns nil, nil when the snapshot is missing or unreadable.
	GetSession(ctx context.Context, discussionID string) (*models.DiscussionState, error)

	// SetSession stores a snapshot with the configured TTL.
	SetSession(ctx context.Context, state *models.DiscussionState) error

	// DeleteSession removes a snapshot.
	DeleteSession(ctx context.Context, discussionID string) error

	// BuildCacheKey generates the cache key for a discussion.
	BuildCacheKey(discussionID string) string
}

type service struct {
	cacheClient cache.Client
	encryptor   encryption.Encryptor
	ttl         time.Duration
}

// Config holds the configuration for the session service.
type Config struct {
	CacheClient cache.Client
	Encryptor   encryption.Encryptor
	TTL         time.Duration
}

// NewService creates a new session service.
func NewService(cfg *Config) (Service, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if cfg.CacheClient == nil {
		return nil, fmt.Errorf("cache client is required")
	}
	if cfg.Encryptor == nil {
		return nil, fmt.Errorf("encryptor is required")
	}

	ttl := cfg.TTL
	if ttl == 0 {
		ttl = DefaultSessionTTL
	}

	return &service{
		cacheClient: cfg.CacheClient,
		encryptor:   cfg.Encryptor,
		ttl:         ttl,
	}, nil
}

// GetSession drops entries that no longer decrypt or decode, e.g. after a key rotation.
func (s *service) GetSession(ctx context.Context, discussionID string) (*models.DiscussionState, error) {
	key := s.BuildCacheKey(discussionID)

	encrypted, err := s.cacheClient.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to get discussion from cache: %w", err)
	}
	if encrypted == nil {
		return nil, nil
	}

	decrypted, err := s.encryptor.Decrypt(string(encrypted))
	if err != nil {
		_, _ = s.cacheClient.Delete(ctx, key)
		return nil, nil
	}

	var state models.DiscussionState
	if err := json.Unmarshal(decrypted, &state); err != nil {
		_, _ = s.cacheClient.Delete(ctx, key)
		return nil, nil
	}

	return &state, nil
}

// SetSession stamps UpdatedAt and stores the snapshot.
func (s *service) SetSession(ctx context.Context, state *models.DiscussionState) error {
	if state == nil {
		return fmt.Errorf("discussion state is required")
	}
	if state.ID == "" {
		return fmt.Errorf("discussion ID is required")
	}

	state.UpdatedAt = time.Now().UTC()
	if state.CreatedAt.IsZero() {
		state.CreatedAt = state.UpdatedAt
	}

	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal discussion: %w", err)
	}

	encrypted, err := s.encryptor.Encrypt(data)
	if err != nil {
		return fmt.Errorf("failed to encrypt discussion: %w", err)
	}

	if err := s.cacheClient.Set(ctx, s.BuildCacheKey(state.ID), []byte(encrypted), s.ttl); err != nil {
		return fmt.Errorf("failed to store discussion in cache: %w", err)
	}
	return nil
}

// DeleteSession removes a snapshot.
func (s *service) DeleteSession(ctx context.Context, discussionID string) error {
	if _, err := s.cacheClient.Delete(ctx, s.BuildCacheKey(discussionID)); err != nil {
		return fmt.Errorf("failed to delete discussion: %w", err)
	}
	return nil
}

// BuildCacheKey generates the cache key for a discussion.
func (s *service) BuildCacheKey(discussionID string) string {
	return cache.DiscussionKey(discussionID)
}
