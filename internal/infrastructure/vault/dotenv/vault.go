// Package dotenv provides a dotenv-based vault implementation.
package dotenv

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/unifiedui/multiagent-service/internal/core/vault"
)

const uriScheme = "dotenv://"

// URI builds the vault URI for an environment key.
func URI(key string) string {
	return uriScheme + key
}

// Vault implements vault.Vault on top of environment variables, with an
// in-memory overlay for secrets stored at runtime.
type Vault struct {
	secrets map[string]string
	mu      sync.RWMutex
	lookup  func(string) (string, bool)
}

// NewVault creates a new DotEnv vault instance.
func NewVault() *Vault {
	return &Vault{
		secrets: make(map[string]string),
		lookup:  os.LookupEnv,
	}
}

// StoreSecret stores a secret in memory.
func (v *Vault) StoreSecret(ctx context.Context, key string, value string) (string, error) {
	if key == "" {
		return "", fmt.Errorf("secret key is required")
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	v.secrets[key] = value
	return URI(key), nil
}

// GetSecret resolves a URI from the in-memory overlay first, then the environment.
func (v *Vault) GetSecret(ctx context.Context, uri string) (string, error) {
	key := strings.TrimPrefix(uri, uriScheme)

	v.mu.RLock()
	value, ok := v.secrets[key]
	v.mu.RUnlock()
	if ok && value != "" {
		return value, nil
	}

	if value, ok := v.lookup(key); ok && strings.TrimSpace(value) != "" {
		return value, nil
	}

	return "", fmt.Errorf("%s: %w", key, vault.ErrSecretNotFound)
}

// Ping always succeeds.
func (v *Vault) Ping(ctx context.Context) error {
	return nil
}

// Close is a no-op.
func (v *Vault) Close() error {
	return nil
}
