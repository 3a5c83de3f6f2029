package devices

import (
	"context"
	"log/slog"
	"time"
)

// retryBackoff is the linear back-off schedule for transient I/O failures:
// 100ms, 200ms, 300ms.
var retryBackoff = []time.Duration{100 * time.Millisecond, 200 * time.Millisecond, 300 * time.Millisecond}

// WithRetry invokes op up to len(retryBackoff)+1 times, backing off
// linearly between attempts, and returns the last error if all attempts
// fail. It respects ctx cancellation between attempts.
func WithRetry(ctx context.Context, logger *slog.Logger, opName string, op func(ctx context.Context) error) error {
	var lastErr error
	for attempt := 0; ; attempt++ {
		opCtx, cancel := context.WithTimeout(ctx, OperationDeadline)
		err := op(opCtx)
		cancel()
		if err == nil {
			return nil
		}
		lastErr = err
		if attempt >= len(retryBackoff) {
			break
		}
		logger.Warn("device operation failed, retrying", "op", opName, "attempt", attempt+1, "error", err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryBackoff[attempt]):
		}
	}
	return lastErr
}

// LastKnownGood caches a single value of type T along with the time it was
// set, so that a persistently failing read can fall back to a recent
// reading instead of aborting the tick. It is single-writer (the control
// loop) and many-readers-within-the-same-loop, a single-writer-per-device-slot
// shared-resource policy.
type LastKnownGood[T any] struct {
	value     T
	updatedAt time.Time
	hasValue  bool
}

// Set stores a fresh value.
func (l *LastKnownGood[T]) Set(v T, at time.Time) {
	l.value = v
	l.updatedAt = at
	l.hasValue = true
}

// Get returns the cached value if it is no older than maxAge, and whether
// it was usable.
func (l *LastKnownGood[T]) Get(now time.Time, maxAge time.Duration) (T, bool) {
	if !l.hasValue || now.Sub(l.updatedAt) > maxAge {
		var zero T
		return zero, false
	}
	return l.value, true
}
