package secretcrypto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKeyHex = "ab0123456789abcdef0123456789abcdef0123456789abcdef0123456789ab01"

func TestEncryptDecryptRoundTrip(t *testing.T) {
	box, err := NewBox([]byte(testKeyHex))
	require.NoError(t, err)

	ciphertext, err := box.Encrypt("db.global", "super-secret")
	require.NoError(t, err)

	plain, err := box.Decrypt("db.global", ciphertext)
	require.NoError(t, err)
	assert.Equal(t, "super-secret", plain)
}

func TestDecryptRejectsWrongSalt(t *testing.T) {
	box, err := NewBox([]byte(testKeyHex))
	require.NoError(t, err)

	ciphertext, err := box.Encrypt("db.global", "super-secret")
	require.NoError(t, err)

	_, err = box.Decrypt("other.global", ciphertext)
	assert.Error(t, err)
}

func TestDecryptRejectsTruncatedCiphertext(t *testing.T) {
	box, err := NewBox([]byte(testKeyHex))
	require.NoError(t, err)

	_, err = box.Decrypt("db.global", []byte("short"))
	assert.Error(t, err)
}

func TestNewBoxRejectsInvalidMasterKey(t *testing.T) {
	_, err := NewBox([]byte("too-short"))
	assert.Error(t, err)
}

func TestNewBoxAcceptsHexPrefixed(t *testing.T) {
	_, err := NewBox([]byte("0x" + testKeyHex))
	assert.NoError(t, err)
}
