package proxydial

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveDirectWhenNoneConfigured(t *testing.T) {
	dialFn, transport, err := Resolve(Options{})
	require.NoError(t, err)
	assert.Nil(t, dialFn)
	assert.Nil(t, transport)
}

func TestResolveSOCKS5TakesPrecedence(t *testing.T) {
	dialFn, transport, err := Resolve(Options{SOCKS5: "127.0.0.1:1080", HTTP: "127.0.0.1:8080"})
	require.NoError(t, err)
	assert.NotNil(t, dialFn)
	assert.Nil(t, transport)
}

func TestResolveHTTPProxy(t *testing.T) {
	dialFn, transport, err := Resolve(Options{HTTP: "http://127.0.0.1:8080"})
	require.NoError(t, err)
	assert.Nil(t, dialFn)
	require.NotNil(t, transport)
}

func TestNormalizeURLCoercesSchemeless(t *testing.T) {
	u, err := normalizeURL("proxy.example.com:1080", "socks5")
	require.NoError(t, err)
	assert.Equal(t, "socks5", u.Scheme)
	assert.Equal(t, "proxy.example.com:1080", u.Host)
}
