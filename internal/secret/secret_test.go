package secret

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "0123456789abcdef0123456789abcdef"

func TestNewRejectsShortKey(t *testing.T) {
	_, err := New(strings.Repeat("k", MinKeyLength-1))
	assert.ErrorIs(t, err, ErrKeyTooShort)
}

func TestEncryptDecrypt(t *testing.T) {
	box, err := New(testKey)
	require.NoError(t, err)

	sealed, err := box.Encrypt("ya29.access-token")
	require.NoError(t, err)
	assert.NotContains(t, sealed, "ya29")

	raw, err := base64.StdEncoding.DecodeString(sealed)
	require.NoError(t, err)
	// 12 byte nonce, 16 byte tag
	assert.Len(t, raw, 12+len("ya29.access-token")+16)

	plain, err := box.Decrypt(sealed)
	require.NoError(t, err)
	assert.Equal(t, "ya29.access-token", plain)
}

func TestEncryptUsesFreshNonce(t *testing.T) {
	box, err := New(testKey)
	require.NoError(t, err)

	a, err := box.Encrypt("same")
	require.NoError(t, err)
	b, err := box.Encrypt("same")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestKeyIsStableAcrossInstances(t *testing.T) {
	first, err := New(testKey)
	require.NoError(t, err)
	second, err := New(testKey)
	require.NoError(t, err)

	sealed, err := first.Encrypt("refresh")
	require.NoError(t, err)
	plain, err := second.Decrypt(sealed)
	require.NoError(t, err)
	assert.Equal(t, "refresh", plain)
}

func TestDecryptFailures(t *testing.T) {
	box, err := New(testKey)
	require.NoError(t, err)
	other, err := New(strings.Repeat("z", 40))
	require.NoError(t, err)

	sealed, err := other.Encrypt("token")
	require.NoError(t, err)

	_, err = box.Decrypt(sealed)
	assert.Error(t, err, "wrong key")

	_, err = box.Decrypt("not base64 !!")
	assert.Error(t, err)

	_, err = box.Decrypt(base64.StdEncoding.EncodeToString([]byte("short")))
	assert.Error(t, err)
}
