package provider

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiters enforces each provider's declarative (max_requests,
// window_seconds) pair as a token bucket, applied by the manager between
// attempts against that provider.
type RateLimiters struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewRateLimiters returns an empty, lazily-populated set of limiters.
func NewRateLimiters() *RateLimiters {
	return &RateLimiters{limiters: make(map[string]*rate.Limiter)}
}

// Wait blocks until a request against name is permitted by rl, or ctx is
// done. A zero RateLimit (Unlimited) never blocks.
func (r *RateLimiters) Wait(ctx context.Context, name string, rl RateLimit) error {
	if rl.MaxRequests <= 0 || rl.Window <= 0 {
		return nil
	}

	r.mu.Lock()
	lim, ok := r.limiters[name]
	if !ok {
		every := rl.Window / time.Duration(rl.MaxRequests)
		lim = rate.NewLimiter(rate.Every(every), rl.MaxRequests)
		r.limiters[name] = lim
	}
	r.mu.Unlock()

	return lim.Wait(ctx)
}
