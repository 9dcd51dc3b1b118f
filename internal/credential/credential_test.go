package credential

import (
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
)

func newRequest(t *testing.T, rawQuery string) *http.Request {
	t.Helper()
	return &http.Request{
		Header: http.Header{},
		URL:    &url.URL{RawQuery: rawQuery},
	}
}

func TestExtractPrefersHeaderOverBearerOverQuery(t *testing.T) {
	r := newRequest(t, "api_key=from-query")
	r.Header.Set("X-API-Key", "from-header")
	r.Header.Set("Authorization", "Bearer sk_fromBearer")

	assert.Equal(t, "from-header", Extract(r))
}

func TestExtractFallsBackToBearerThenQuery(t *testing.T) {
	r := newRequest(t, "api_key=from-query")
	r.Header.Set("Authorization", "Bearer sk_fromBearer")
	assert.Equal(t, "sk_fromBearer", Extract(r))

	r2 := newRequest(t, "api_key=from-query")
	assert.Equal(t, "from-query", Extract(r2))
}

func TestExtractIgnoresNonSkBearerToken(t *testing.T) {
	r := newRequest(t, "api_key=from-query")
	r.Header.Set("Authorization", "Bearer some-jwt-not-a-key")
	assert.Equal(t, "from-query", Extract(r))
}

func TestDigestIsDeterministicAndDistinct(t *testing.T) {
	d1 := Digest("secret-a")
	d2 := Digest("secret-a")
	d3 := Digest("secret-b")

	assert.Equal(t, d1, d2)
	assert.NotEqual(t, d1, d3)
	assert.Len(t, d1, 64)
}
