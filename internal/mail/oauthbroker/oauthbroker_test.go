package oauthbroker

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeffreasy/mailgate/internal/cache"
	"github.com/jeffreasy/mailgate/internal/proxydial"
)

func TestGraphTokenRequiresMailReadScope(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"tok123","expires_in":3600,"scope":"https://graph.microsoft.com/Mail.Read"}`))
	}))
	defer server.Close()

	broker := New(cache.NewMemoryStore()).WithEndpoint(server.URL)
	token, ok, err := broker.GraphToken(context.Background(), "user@example.com", "refresh-token", "client-id", proxydial.Options{})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "tok123", token)
}

func TestGraphTokenDegradesWithoutMailReadScope(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"tok123","expires_in":3600,"scope":"offline_access"}`))
	}))
	defer server.Close()

	broker := New(cache.NewMemoryStore()).WithEndpoint(server.URL)
	_, ok, err := broker.GraphToken(context.Background(), "user@example.com", "refresh-token", "client-id", proxydial.Options{})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestImapTokenDegradesOnNon2xx(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	broker := New(cache.NewMemoryStore()).WithEndpoint(server.URL)
	_, ok, err := broker.ImapToken(context.Background(), "user@example.com", "refresh-token", "client-id", proxydial.Options{})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGraphTokenIsCached(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"tok123","expires_in":3600,"scope":"https://graph.microsoft.com/Mail.Read"}`))
	}))
	defer server.Close()

	broker := New(cache.NewMemoryStore()).WithEndpoint(server.URL)
	ctx := context.Background()

	_, _, err := broker.GraphToken(ctx, "user@example.com", "refresh-token", "client-id", proxydial.Options{})
	require.NoError(t, err)
	_, _, err = broker.GraphToken(ctx, "user@example.com", "refresh-token", "client-id", proxydial.Options{})
	require.NoError(t, err)

	assert.Equal(t, 1, calls)
}
