package ratelimit

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestMemoryLimiterEnforcesPerMinuteBudget(t *testing.T) {
	limiter := NewMemoryLimiter()
	credentialID := uuid.New()
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		assert.NoError(t, limiter.Allow(ctx, credentialID, 2))
	}

	err := limiter.Allow(ctx, credentialID, 2)
	assert.True(t, errors.Is(err, ErrRateLimitExceeded))
}

func TestMemoryLimiterIsolatesCredentials(t *testing.T) {
	limiter := NewMemoryLimiter()
	ctx := context.Background()

	a, b := uuid.New(), uuid.New()
	assert.NoError(t, limiter.Allow(ctx, a, 1))
	assert.Error(t, limiter.Allow(ctx, a, 1))
	assert.NoError(t, limiter.Allow(ctx, b, 1))
}
