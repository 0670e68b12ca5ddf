package app

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Pacer spaces out successive page requests of one polygon query.
type Pacer interface {
	Wait(ctx context.Context) error
}

// NewPagePacer lets the first page through at once and then one page per interval.
// A non-positive interval disables pacing.
func NewPagePacer(interval time.Duration) Pacer {
	if interval <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(interval), 1)
}

// sleepCtx waits for d or returns false early if ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
