// Package mocks provides testify mocks for the service's ports.
package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/unifiedui/multiagent-service/internal/core/cache"
	"github.com/unifiedui/multiagent-service/internal/core/events"
)

// MockCacheClient is a mock implementation of cache.Client.
type MockCacheClient struct {
	mock.Mock
}

var _ cache.Client = (*MockCacheClient)(nil)

func (m *MockCacheClient) Bus() events.Bus {
	args := m.Called()
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).(events.Bus)
}

func (m *MockCacheClient) Get(ctx context.Context, key string) ([]byte, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockCacheClient) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	args := m.Called(ctx, key, value, ttl)
	return args.Error(0)
}

func (m *MockCacheClient) Delete(ctx context.Context, key string) (bool, error) {
	args := m.Called(ctx, key)
	return args.Bool(0), args.Error(1)
}

func (m *MockCacheClient) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockCacheClient) Close() error {
	args := m.Called()
	return args.Error(0)
}
