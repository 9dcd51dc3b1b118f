// Package ratelimit implements the per-credential requests/minute limit
// (C5): a shared-store-backed bucketed counter when a SharedStore is
// configured, falling back to a strictly per-process in-memory limiter
// otherwise (spec.md §4.5, §9).
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jeffreasy/mailgate/internal/cache"
)

// ErrRateLimitExceeded is returned when a credential has exceeded its
// requests/minute budget.
var ErrRateLimitExceeded = errors.New("rate limit exceeded")

// Limiter enforces a per-credential requests/minute budget.
type Limiter interface {
	// Allow increments the counter for credentialID and returns
	// ErrRateLimitExceeded if the increment pushed it over limitPerMinute.
	Allow(ctx context.Context, credentialID uuid.UUID, limitPerMinute int) error
}

// storeLimiter is a bucketed counter over a cache.SharedStore, keyed by
// credential and minute bucket with a 60s expiry set on first
// increment. Both the Redis-backed primary path and the in-process
// fallback share this exact bucketing logic — they differ only in
// which SharedStore implementation backs them, per spec.md §9's call to
// make the fallback an explicit, separately-named backend rather than
// a silently degraded approximation.
type storeLimiter struct {
	store cache.SharedStore
}

// NewSharedLimiter is the primary path, backed by a shared store such
// as Redis (see internal/cache.RedisStore).
func NewSharedLimiter(store cache.SharedStore) Limiter {
	return &storeLimiter{store: store}
}

// NewMemoryLimiter is the strictly per-process fallback used when no
// shared store is configured. Because it is an independent
// cache.MemoryStore per process, a multi-process deployment overshoots
// the configured limit by a factor equal to the process count — this
// matches spec.md §4.5's accepted fallback behavior exactly.
func NewMemoryLimiter() Limiter {
	return &storeLimiter{store: cache.NewMemoryStore()}
}

func (l *storeLimiter) Allow(ctx context.Context, credentialID uuid.UUID, limitPerMinute int) error {
	bucket := time.Now().Unix() / 60
	key := fmt.Sprintf("rate:credential:%s:%d", credentialID, bucket)

	count, err := l.store.IncrWithExpire(ctx, key, 60*time.Second)
	if err != nil {
		return fmt.Errorf("ratelimit: increment: %w", err)
	}

	if int(count) > limitPerMinute {
		return ErrRateLimitExceeded
	}
	return nil
}
