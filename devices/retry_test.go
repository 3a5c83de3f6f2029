package devices

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestWithRetry_SucceedsOnFirstAttempt(t *testing.T) {
	calls := 0
	err := WithRetry(context.Background(), discardLogger(), "op", func(ctx context.Context) error {
		calls++
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestWithRetry_SucceedsAfterTransientFailures(t *testing.T) {
	calls := 0
	err := WithRetry(context.Background(), discardLogger(), "op", func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestWithRetry_ReturnsLastErrorAfterExhaustingAttempts(t *testing.T) {
	wantErr := errors.New("persistent failure")
	calls := 0
	err := WithRetry(context.Background(), discardLogger(), "op", func(ctx context.Context) error {
		calls++
		return wantErr
	})

	require.ErrorIs(t, err, wantErr)
	assert.Equal(t, len(retryBackoff)+1, calls)
}

func TestWithRetry_AbortsOnContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := WithRetry(ctx, discardLogger(), "op", func(ctx context.Context) error {
		calls++
		cancel()
		return errors.New("fail")
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestLastKnownGood_GetWithinMaxAge(t *testing.T) {
	var cache LastKnownGood[int]
	now := time.Now()
	cache.Set(42, now)

	v, ok := cache.Get(now.Add(time.Second), 5*time.Second)
	require.True(t, ok)
	assert.Equal(t, 42, v)
}

func TestLastKnownGood_GetExpiresAfterMaxAge(t *testing.T) {
	var cache LastKnownGood[int]
	now := time.Now()
	cache.Set(42, now)

	_, ok := cache.Get(now.Add(10*time.Second), 5*time.Second)
	assert.False(t, ok)
}

func TestLastKnownGood_GetWithoutAnyValue(t *testing.T) {
	var cache LastKnownGood[int]
	_, ok := cache.Get(time.Now(), time.Minute)
	assert.False(t, ok)
}
