package encryption_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unifiedui/multiagent-service/internal/pkg/encryption"
)

func newAES(t *testing.T) *encryption.AESEncryptor {
	t.Helper()
	key, err := encryption.GenerateKey()
	require.NoError(t, err)
	enc, err := encryption.NewAESEncryptor(key)
	require.NoError(t, err)
	return enc
}

func TestNewAESEncryptor_InvalidKeyLength(t *testing.T) {
	encryptor, err := encryption.NewAESEncryptor("tooshort!!!")

	assert.Error(t, err)
	assert.Nil(t, encryptor)
	assert.Contains(t, err.Error(), "must be 32 bytes")
}

func TestNewAESEncryptor_RawKey(t *testing.T) {
	encryptor, err := encryption.NewAESEncryptor("0123456789abcdef0123456789abcde!")

	require.NoError(t, err)
	assert.NotNil(t, encryptor)
}

func TestAESEncryptor_EncryptDecrypt(t *testing.T) {
	// Arrange
	enc := newAES(t)
	plaintext := []byte("fastgpt-xxxxxxxx")

	// Act
	ciphertext, err := enc.Encrypt(plaintext)
	require.NoError(t, err)
	decrypted, err := enc.Decrypt(ciphertext)
	require.NoError(t, err)

	// Assert
	assert.Equal(t, plaintext, decrypted)
	assert.NotEqual(t, string(plaintext), ciphertext)
}

func TestAESEncryptor_DecryptWithWrongKey(t *testing.T) {
	ciphertext, err := newAES(t).Encrypt([]byte("secret"))
	require.NoError(t, err)

	_, err = newAES(t).Decrypt(ciphertext)
	assert.Error(t, err)
}

func TestAESEncryptor_DecryptTooShort(t *testing.T) {
	_, err := newAES(t).Decrypt("AAAA")

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "too short")
}

func TestSealOpen_RoundTrip(t *testing.T) {
	// Arrange
	enc := newAES(t)

	// Act
	sealed, err := encryption.Seal(enc, "fastgpt-key")
	require.NoError(t, err)
	opened, err := encryption.Open(enc, sealed)
	require.NoError(t, err)

	// Assert
	assert.True(t, encryption.IsSealed(sealed))
	assert.NotContains(t, sealed, "fastgpt-key")
	assert.Equal(t, "fastgpt-key", opened)
}

func TestSeal_EmptyStaysEmpty(t *testing.T) {
	sealed, err := encryption.Seal(newAES(t), "")

	require.NoError(t, err)
	assert.Empty(t, sealed)
}

func TestOpen_PlaintextPassesThrough(t *testing.T) {
	opened, err := encryption.Open(newAES(t), "legacy-plain-key")

	require.NoError(t, err)
	assert.Equal(t, "legacy-plain-key", opened)
}

func TestOpen_CorruptSealedValue(t *testing.T) {
	_, err := encryption.Open(newAES(t), "enc:v1:not-base64!!")

	assert.Error(t, err)
}

func TestNoOpEncryptor_RoundTrip(t *testing.T) {
	enc := encryption.NewNoOpEncryptor()

	sealed, err := encryption.Seal(enc, "k")
	require.NoError(t, err)
	opened, err := encryption.Open(enc, sealed)

	require.NoError(t, err)
	assert.Equal(t, "k", opened)
}

func TestNew(t *testing.T) {
	key, err := encryption.GenerateKey()
	require.NoError(t, err)

	tests := []struct {
		name    string
		key     string
		want    any
		wantErr bool
	}{
		{name: "empty key", key: "", want: &encryption.NoOpEncryptor{}},
		{name: "generated key", key: key, want: &encryption.AESEncryptor{}},
		{name: "short key", key: "abc", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			enc, err := encryption.New(tt.key)

			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.IsType(t, tt.want, enc)
		})
	}
}
