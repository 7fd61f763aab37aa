// Package vault defines the vault client interface.
package vault

import (
	"context"
)

// Client is a higher-level vault client that wraps the Vault interface.
type Client interface {
	// GetVault returns the underlying Vault implementation.
	GetVault() Vault

	// StoreSecret stores a secret in the vault.
	StoreSecret(ctx context.Context, key string, value string) (string, error)

	// GetSecret retrieves a secret from the vault.
	GetSecret(ctx context.Context, uri string) (string, error)

	// Ping checks if the vault connection is alive.
	Ping(ctx context.Context) error

	// Close closes the vault client connection.
	Close() error
}
