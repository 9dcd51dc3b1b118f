package secretbox

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	box, err := New("0123456789abcdef0123456789abcdef")
	require.NoError(t, err)

	for _, plaintext := range []string{"", "a", "refresh-token-value", strings.Repeat("x", 4096)} {
		blob, err := box.Encrypt(plaintext)
		require.NoError(t, err)

		got, err := box.Decrypt(blob)
		require.NoError(t, err)
		assert.Equal(t, plaintext, got)
	}
}

func TestDecryptRejectsTampering(t *testing.T) {
	box, err := New("0123456789abcdef0123456789abcdef")
	require.NoError(t, err)

	blob, err := box.Encrypt("hunter2")
	require.NoError(t, err)

	parts := strings.Split(blob, ":")
	require.Len(t, parts, 3)

	// flip a hex character in the ciphertext segment
	tampered := parts[2]
	flipped := []byte(tampered)
	if flipped[0] == '0' {
		flipped[0] = '1'
	} else {
		flipped[0] = '0'
	}
	tamperedBlob := strings.Join([]string{parts[0], parts[1], string(flipped)}, ":")

	_, err = box.Decrypt(tamperedBlob)
	assert.ErrorIs(t, err, ErrCryptoInvalid)
}

func TestDecryptRejectsMalformedBlob(t *testing.T) {
	box, err := New("k")
	require.NoError(t, err)

	for _, bad := range []string{"", "only-one-part", "a:b", "a:b:c:d", "zz:zz:zz"} {
		_, err := box.Decrypt(bad)
		assert.ErrorIs(t, err, ErrCryptoInvalid)
	}
}

func TestEncryptUsesFreshNoncePerCall(t *testing.T) {
	box, err := New("key")
	require.NoError(t, err)

	a, err := box.Encrypt("same plaintext")
	require.NoError(t, err)
	b, err := box.Encrypt("same plaintext")
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}
