package lockout

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeffreasy/mailgate/internal/cache"
)

func TestRecordFailureLocksAtThreshold(t *testing.T) {
	l := New(cache.NewMemoryStore(), 3, time.Minute)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		locked, _, err := l.RecordFailure(ctx, "Admin@Example.com", "1.2.3.4")
		require.NoError(t, err)
		assert.False(t, locked)
	}

	locked, remaining, err := l.RecordFailure(ctx, "Admin@Example.com", "1.2.3.4")
	require.NoError(t, err)
	assert.True(t, locked)
	assert.Greater(t, remaining, time.Duration(0))

	stillLocked, remaining2, err := l.Check(ctx, "admin@example.com", "1.2.3.4")
	require.NoError(t, err)
	assert.True(t, stillLocked)
	assert.Greater(t, remaining2, time.Duration(0))
}

func TestClearRemovesLockAndCounter(t *testing.T) {
	l := New(cache.NewMemoryStore(), 2, time.Minute)
	ctx := context.Background()

	locked, _, err := l.RecordFailure(ctx, "user", "10.0.0.1")
	require.NoError(t, err)
	assert.False(t, locked)

	locked, _, err = l.RecordFailure(ctx, "user", "10.0.0.1")
	require.NoError(t, err)
	assert.True(t, locked)

	require.NoError(t, l.Clear(ctx, "user", "10.0.0.1"))

	stillLocked, _, err := l.Check(ctx, "user", "10.0.0.1")
	require.NoError(t, err)
	assert.False(t, stillLocked)
}

func TestDifferentIPsTrackedIndependently(t *testing.T) {
	l := New(cache.NewMemoryStore(), 1, time.Minute)
	ctx := context.Background()

	locked, _, err := l.RecordFailure(ctx, "user", "1.1.1.1")
	require.NoError(t, err)
	assert.True(t, locked)

	stillLocked, _, err := l.Check(ctx, "user", "2.2.2.2")
	require.NoError(t, err)
	assert.False(t, stillLocked)
}
