// Package lockout implements C6: login lock-out for admin authentication.
// Failures are counted per (lowercased username, client IP); reaching the
// threshold within the lock window locks the pair out for the window's
// duration, independent of whether further attempts use the right
// password (spec.md §4.6).
package lockout

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jeffreasy/mailgate/internal/cache"
)

const (
	// DefaultMaxAttempts is the number of failures tolerated before a
	// lock is set.
	DefaultMaxAttempts = 5
	// DefaultLockWindow is both the failure-counter expiry and the lock
	// duration once tripped.
	DefaultLockWindow = 15 * time.Minute
)

// Lockout tracks failed login attempts and enforces a lock once a
// (username, ip) pair crosses the attempt threshold.
type Lockout struct {
	store       cache.SharedStore
	maxAttempts int
	lockWindow  time.Duration
}

// New builds a Lockout. A maxAttempts <= 0 or lockWindow <= 0 falls back
// to the package defaults.
func New(store cache.SharedStore, maxAttempts int, lockWindow time.Duration) *Lockout {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	if lockWindow <= 0 {
		lockWindow = DefaultLockWindow
	}
	return &Lockout{store: store, maxAttempts: maxAttempts, lockWindow: lockWindow}
}

// Check returns whether the (username, ip) pair is currently locked and,
// if so, the time remaining before the lock clears. Callers must skip the
// password check entirely when locked is true, per spec.md §4.6.
func (l *Lockout) Check(ctx context.Context, username, ip string) (locked bool, remaining time.Duration, err error) {
	lockKey := l.lockKey(username, ip)
	val, ok, err := l.store.Get(ctx, lockKey)
	if err != nil {
		return false, 0, fmt.Errorf("lockout: check: %w", err)
	}
	if !ok {
		return false, 0, nil
	}

	lockedUntil, parseErr := time.Parse(time.RFC3339, val)
	if parseErr != nil {
		// Corrupt/foreign value: fail safe by treating it as a full
		// lock window rather than trusting a malformed timestamp.
		return true, l.lockWindow, nil
	}
	remaining = time.Until(lockedUntil)
	if remaining <= 0 {
		return false, 0, nil
	}
	return true, remaining, nil
}

// RecordFailure increments the failure counter for (username, ip). When
// the counter reaches maxAttempts, it resets the counter and sets a lock
// key with TTL = lockWindow, reporting locked=true.
func (l *Lockout) RecordFailure(ctx context.Context, username, ip string) (locked bool, remaining time.Duration, err error) {
	failKey := l.failKey(username, ip)
	count, err := l.store.IncrWithExpire(ctx, failKey, l.lockWindow)
	if err != nil {
		return false, 0, fmt.Errorf("lockout: record failure: %w", err)
	}
	if int(count) < l.maxAttempts {
		return false, 0, nil
	}

	lockedUntil := time.Now().Add(l.lockWindow)
	if err := l.store.Set(ctx, l.lockKey(username, ip), lockedUntil.Format(time.RFC3339), l.lockWindow); err != nil {
		return false, 0, fmt.Errorf("lockout: set lock: %w", err)
	}
	_ = l.store.Delete(ctx, failKey)
	return true, l.lockWindow, nil
}

// Clear removes both the failure counter and any lock for (username, ip),
// called after a successful authentication.
func (l *Lockout) Clear(ctx context.Context, username, ip string) error {
	if err := l.store.Delete(ctx, l.failKey(username, ip)); err != nil {
		return fmt.Errorf("lockout: clear failures: %w", err)
	}
	if err := l.store.Delete(ctx, l.lockKey(username, ip)); err != nil {
		return fmt.Errorf("lockout: clear lock: %w", err)
	}
	return nil
}

func (l *Lockout) failKey(username, ip string) string {
	return fmt.Sprintf("lockout:fail:%s:%s", normalizeUsername(username), ip)
}

func (l *Lockout) lockKey(username, ip string) string {
	return fmt.Sprintf("lockout:lock:%s:%s", normalizeUsername(username), ip)
}

func normalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}
