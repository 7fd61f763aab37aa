// Package vault defines the vault interface for secrets management.
package vault

import (
	"context"
	"errors"
)

// ErrSecretNotFound is returned when a URI resolves to no value.
var ErrSecretNotFound = errors.New("secret not found")

// Vault defines the interface for vault/secrets operations.
type Vault interface {
	// StoreSecret stores a secret and returns its URI.
	StoreSecret(ctx context.Context, key string, value string) (string, error)

	// GetSecret retrieves a secret by URI. Missing secrets yield ErrSecretNotFound.
	GetSecret(ctx context.Context, uri string) (string, error)

	// Ping checks if the vault connection is alive.
	Ping(ctx context.Context) error

	// Close closes the vault connection.
	Close() error
}
