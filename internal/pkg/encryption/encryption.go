// Package encryption seals agent API keys at rest and the discussion and agent
// records held in the shared cache.
package encryption

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
	"strings"
)

const keySize = 32

// sealedPrefix marks API keys produced by Seal. Stored keys without it were
// written by hand into the database and are returned unchanged.
const sealedPrefix = "enc:v1:"

// Encryptor turns cache payloads and API keys into base64 text and back.
type Encryptor interface {
	Encrypt(plaintext []byte) (string, error)
	Decrypt(ciphertext string) ([]byte, error)
}

// New returns an AES-256-GCM encryptor for key, or a NoOpEncryptor when key is
// empty.
func New(key string) (Encryptor, error) {
	if key == "" {
		return NewNoOpEncryptor(), nil
	}
	enc, err := NewAESEncryptor(key)
	if err != nil {
		return nil, err
	}
	return enc, nil
}

// AESEncryptor implements Encryptor using AES-256-GCM.
type AESEncryptor struct {
	gcm cipher.AEAD
}

// NewAESEncryptor accepts the 32-byte key base64-encoded or raw.
func NewAESEncryptor(key string) (*AESEncryptor, error) {
	keyBytes, err := base64.StdEncoding.DecodeString(key)
	if err != nil {
		keyBytes = []byte(key)
	}
	if len(keyBytes) != keySize {
		return nil, fmt.Errorf("encryption key must be %d bytes, got %d", keySize, len(keyBytes))
	}

	block, err := aes.NewCipher(keyBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to create AES cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return &AESEncryptor{gcm: gcm}, nil
}

// Encrypt returns base64(nonce || ciphertext).
func (e *AESEncryptor) Encrypt(plaintext []byte) (string, error) {
	nonce := make([]byte, e.gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	return base64.StdEncoding.EncodeToString(e.gcm.Seal(nonce, nonce, plaintext, nil)), nil
}

func (e *AESEncryptor) Decrypt(ciphertext string) ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return nil, fmt.Errorf("failed to decode ciphertext: %w", err)
	}

	nonceSize := e.gcm.NonceSize()
	if len(data) < nonceSize {
		return nil, fmt.Errorf("ciphertext too short")
	}

	plaintext, err := e.gcm.Open(nil, data[:nonceSize], data[nonceSize:], nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt: %w", err)
	}
	return plaintext, nil
}

// GenerateKey returns a random base64-encoded AES-256 key.
func GenerateKey() (string, error) {
	key := make([]byte, keySize)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return "", fmt.Errorf("failed to generate key: %w", err)
	}
	return base64.StdEncoding.EncodeToString(key), nil
}

// NoOpEncryptor only base64-encodes. It is used when no key is configured.
type NoOpEncryptor struct{}

func NewNoOpEncryptor() *NoOpEncryptor {
	return &NoOpEncryptor{}
}

func (e *NoOpEncryptor) Encrypt(plaintext []byte) (string, error) {
	return base64.StdEncoding.EncodeToString(plaintext), nil
}

func (e *NoOpEncryptor) Decrypt(ciphertext string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(ciphertext)
}

// Seal encrypts an API key for storage. An empty key stays empty.
func Seal(enc Encryptor, apiKey string) (string, error) {
	if apiKey == "" {
		return "", nil
	}
	ciphertext, err := enc.Encrypt([]byte(apiKey))
	if err != nil {
		return "", fmt.Errorf("failed to seal api key: %w", err)
	}
	return sealedPrefix + ciphertext, nil
}

// Open reverses Seal.
func Open(enc Encryptor, stored string) (string, error) {
	if !IsSealed(stored) {
		return stored, nil
	}
	plaintext, err := enc.Decrypt(strings.TrimPrefix(stored, sealedPrefix))
	if err != nil {
		return "", fmt.Errorf("failed to open api key: %w", err)
	}
	return string(plaintext), nil
}

// IsSealed reports whether stored was produced by Seal.
func IsSealed(stored string) bool {
	return strings.HasPrefix(stored, sealedPrefix)
}
