package graph

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeffreasy/mailgate/internal/proxydial"
)

func TestListProjectsMessages(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer token123", r.Header.Get("Authorization"))
		assert.Equal(t, "/me/mailFolders/junkemail/messages", r.URL.Path)
		assert.Equal(t, "5", r.URL.Query().Get("$top"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"value":[{"id":"m1","subject":"hi","from":{"emailAddress":{"address":"a@b.com"}},"bodyPreview":"preview","body":{"content":"<p>hi</p>"},"receivedDateTime":"2026-01-01T00:00:00Z"}]}`))
	}))
	defer server.Close()

	client, err := New(proxydial.Options{})
	require.NoError(t, err)
	client.WithBaseURL(server.URL)

	messages, err := client.List(context.Background(), "token123", "junk", 5)
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, "m1", messages[0].ID)
	assert.Equal(t, "a@b.com", messages[0].From)
}

func TestListFailsOnNon2xx(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"invalid_token"}`))
	}))
	defer server.Close()

	client, err := New(proxydial.Options{})
	require.NoError(t, err)
	client.WithBaseURL(server.URL)

	_, err = client.List(context.Background(), "bad-token", "inbox", 10)
	require.Error(t, err)
}

func TestDeleteSwallowsNothingButReportsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client, err := New(proxydial.Options{})
	require.NoError(t, err)
	client.WithBaseURL(server.URL)

	err = client.Delete(context.Background(), "token123", "m1")
	require.Error(t, err)
}
