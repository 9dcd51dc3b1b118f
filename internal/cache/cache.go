// Package cache defines the SharedStore abstraction C5 (rate limiter),
// C6 (login lock-out) and C10 (OAuth token broker) use for counters,
// locks and token caches. The production adapter talks to Redis; the
// memory adapter is the single-process fallback spec.md §4.5/§5
// require to be explicit rather than silent.
package cache

import (
	"context"
	"time"
)

// SharedStore is the minimal surface the gateway's shared-state
// consumers need: atomic increment-with-expiry for counters, get/set
// with TTL for cached values, and a one-shot lock primitive.
type SharedStore interface {
	// IncrWithExpire atomically increments the counter at key and
	// returns its new value. If this call creates the key, ttl is set
	// on it; an existing key keeps its current expiry.
	IncrWithExpire(ctx context.Context, key string, ttl time.Duration) (int64, error)

	// Get returns the value stored at key, and false if it is absent
	// or expired.
	Get(ctx context.Context, key string) (string, bool, error)

	// Set stores value at key with the given TTL (0 means no expiry).
	Set(ctx context.Context, key string, value string, ttl time.Duration) error

	// SetNX sets key to value with ttl only if key does not already
	// exist, returning whether the set happened. Used for lock keys.
	SetNX(ctx context.Context, key string, value string, ttl time.Duration) (bool, error)

	// Delete removes key, if present.
	Delete(ctx context.Context, key string) error
}

// Backend names the concrete SharedStore implementation in effect, so
// the server startup (cmd/api) can log which one is active, per
// spec.md §9's "make this explicit" design note.
type Backend string

const (
	BackendRedis  Backend = "redis"
	BackendMemory Backend = "memory"
)
