package crypto

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCipher(t *testing.T) *Cipher {
	t.Helper()
	dir := t.TempDir()
	km, err := LoadOrCreate(filepath.Join(dir, "encryption.key"), filepath.Join(dir, "salt.key"), 1000)
	require.NoError(t, err)
	return New(km)
}

func TestEncryptCompressRoundTrip(t *testing.T) {
	c := testCipher(t)
	plaintext := []byte("the quick brown fox jumps over the lazy dog, repeated for compressibility " +
		"the quick brown fox jumps over the lazy dog, repeated for compressibility")

	for level := 0; level <= 9; level++ {
		stored, err := c.EncryptCompress(plaintext, level)
		require.NoError(t, err)
		assert.NotEqual(t, plaintext, stored)

		recovered, err := c.DecryptDecompress(stored)
		require.NoError(t, err)
		assert.Equal(t, plaintext, recovered)
	}
}

func TestDecryptDecompressRejectsTamperedToken(t *testing.T) {
	c := testCipher(t)
	stored, err := c.EncryptCompress([]byte("payload"), 6)
	require.NoError(t, err)

	tampered := append([]byte(nil), stored...)
	tampered[len(tampered)-1] ^= 0xFF

	_, err = c.DecryptDecompress(tampered)
	assert.Error(t, err)
}

func TestDecryptDecompressRejectsTruncatedToken(t *testing.T) {
	c := testCipher(t)
	_, err := c.DecryptDecompress([]byte("short"))
	assert.Error(t, err)
}

func TestLoadOrCreatePersistsSaltAcrossCalls(t *testing.T) {
	dir := t.TempDir()
	keyFile := filepath.Join(dir, "encryption.key")
	saltFile := filepath.Join(dir, "salt.key")

	km1, err := LoadOrCreate(keyFile, saltFile, 1000)
	require.NoError(t, err)

	km2, err := LoadOrCreate(keyFile, saltFile, 1000)
	require.NoError(t, err)

	assert.Equal(t, km1.EncryptionKey, km2.EncryptionKey)
	assert.Equal(t, km1.SigningKey, km2.SigningKey)
}
