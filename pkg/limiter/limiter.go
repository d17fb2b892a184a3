package limiter

import (
	"context"

	"golang.org/x/time/rate"
)

// Limiter throttles work shared by several goroutines.
type Limiter struct {
	limiter *rate.Limiter
}

// New allows perSecond events with the given burst. A non-positive rate
// disables throttling.
func New(perSecond float64, burst int) *Limiter {
	limit := rate.Inf
	if perSecond > 0 {
		limit = rate.Limit(perSecond)
	}
	if burst < 1 {
		burst = 1
	}
	return &Limiter{limiter: rate.NewLimiter(limit, burst)}
}

// Wait blocks until an event is allowed or ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	return l.limiter.Wait(ctx)
}
