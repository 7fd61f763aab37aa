package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/unifiedui/multiagent-service/internal/core/vault"
)

// MockVaultClient is a mock implementation of vault.Client.
type MockVaultClient struct {
	mock.Mock
}

func (m *MockVaultClient) GetVault() vault.Vault {
	return nil
}

func (m *MockVaultClient) StoreSecret(ctx context.Context, key string, value string) (string, error) {
	args := m.Called(ctx, key, value)
	return args.String(0), args.Error(1)
}

func (m *MockVaultClient) GetSecret(ctx context.Context, uri string) (string, error) {
	args := m.Called(ctx, uri)
	return args.String(0), args.Error(1)
}

func (m *MockVaultClient) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockVaultClient) Close() error {
	args := m.Called()
	return args.Error(0)
}
