// Package credential implements C17: extracting and validating the
// external API's credential from an inbound request, per spec.md §4.17.
package credential

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/jeffreasy/mailgate/internal/apierr"
	"github.com/jeffreasy/mailgate/internal/model"
	"github.com/jeffreasy/mailgate/internal/ratelimit"
	"github.com/jeffreasy/mailgate/internal/storage"
)

// Extract pulls the raw API key out of r in spec.md §4.17's priority
// order: X-API-Key header, then Authorization: Bearer sk_…, then the
// api_key query parameter. Returns "" if none is present.
func Extract(r *http.Request) string {
	if key := r.Header.Get("X-API-Key"); key != "" {
		return key
	}
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		token := strings.TrimPrefix(auth, "Bearer ")
		if strings.HasPrefix(token, "sk_") {
			return token
		}
	}
	return r.URL.Query().Get("api_key")
}

// Digest computes the SHA-256 hex digest a raw secret is looked up by.
func Digest(rawSecret string) string {
	sum := sha256.Sum256([]byte(rawSecret))
	return hex.EncodeToString(sum[:])
}

// GenerateSecret mints a fresh "sk_"-prefixed raw API key, returned to
// the admin exactly once on creation (spec.md §3's Credential lifecycle),
// along with its advisory 7-char Prefix.
func GenerateSecret() (raw, prefix string, err error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", "", fmt.Errorf("credential: generate secret: %w", err)
	}
	raw = "sk_" + hex.EncodeToString(buf)
	prefix = raw[:7]
	return raw, prefix, nil
}

// Identifier resolves a raw API key into an active, rate-limit-checked
// Credential and records its usage.
type Identifier struct {
	repo    *storage.CredentialRepo
	limiter ratelimit.Limiter
}

func New(repo *storage.CredentialRepo, limiter ratelimit.Limiter) *Identifier {
	return &Identifier{repo: repo, limiter: limiter}
}

// Identify runs the full C17 pipeline for rawSecret: digest lookup,
// lifecycle/expiry checks, rate limiting, then usage bookkeeping.
func (id *Identifier) Identify(ctx context.Context, rawSecret string) (*model.Credential, error) {
	cred, err := id.repo.GetByDigest(ctx, Digest(rawSecret))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, apierr.New(apierr.CodeInvalidApiKey, "invalid api key")
		}
		return nil, err
	}

	if cred.LifecycleState != model.StateActive {
		return nil, apierr.New(apierr.CodeApiKeyDisabled, "api key is disabled")
	}
	if cred.ExpiresAt != nil && cred.ExpiresAt.Before(time.Now()) {
		return nil, apierr.New(apierr.CodeApiKeyExpired, "api key has expired")
	}

	if err := id.limiter.Allow(ctx, cred.ID, cred.RatePerMinute); err != nil {
		if errors.Is(err, ratelimit.ErrRateLimitExceeded) {
			return nil, apierr.New(apierr.CodeRateLimitExceeded, "rate limit exceeded")
		}
		return nil, err
	}

	if err := id.repo.RecordUsage(ctx, cred.ID, time.Now()); err != nil {
		return nil, err
	}

	return cred, nil
}
