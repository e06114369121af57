package rate

import (
	"context"
	"fmt"
	"time"
)

type WindowStore interface {
	IncrementWindow(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
}

// Limiter is a fixed-window counter over redis. One instance guards one
// endpoint; keys are whatever identifies the caller there (client IP, email).
type Limiter struct {
	store  WindowStore
	prefix string
	limit  int
	window time.Duration
}

func NewLimiter(store WindowStore, prefix string, limit int, window time.Duration) *Limiter {
	if limit < 0 {
		limit = 0
	}
	if window <= 0 {
		window = time.Minute
	}

	return &Limiter{
		store:  store,
		prefix: prefix,
		limit:  limit,
		window: window,
	}
}

// Allow counts the call and reports whether it fits the window. A zero limit
// disables the limiter. retryAfterSec is only meaningful when ok is false.
func (l *Limiter) Allow(ctx context.Context, key string) (int64, bool, error) {
	if l.limit == 0 {
		return 0, true, nil
	}
	if key == "" {
		return 0, false, fmt.Errorf("rate limit key is required")
	}
	if l.store == nil {
		return 0, false, fmt.Errorf("rate limiter store is nil")
	}

	count, ttl, err := l.store.IncrementWindow(ctx, l.prefix+":"+key, l.window)
	if err != nil {
		return 0, false, err
	}
	if count > int64(l.limit) {
		return ceilSeconds(ttl), false, nil
	}

	return 0, true, nil
}

func ceilSeconds(d time.Duration) int64 {
	if d <= 0 {
		return 1
	}
	secs := int64(d / time.Second)
	if d%time.Second != 0 {
		secs++
	}
	if secs < 1 {
		secs = 1
	}
	return secs
}
