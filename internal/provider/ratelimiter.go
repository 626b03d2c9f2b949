package provider

import (
	"context"
	"sync"
	"time"
)

// RateLimiter is a token bucket shared by every request the client makes,
// so concurrent batches still respect the provider's per-minute quota.
type RateLimiter struct {
	mu             sync.Mutex
	tokens         int
	maxTokens      int
	refillInterval time.Duration
	lastRefill     time.Time
}

// NewRateLimiter allows a burst of maxTokens and adds one token every
// refillInterval.
func NewRateLimiter(maxTokens int, refillInterval time.Duration) *RateLimiter {
	return &RateLimiter{
		tokens:         maxTokens,
		maxTokens:      maxTokens,
		refillInterval: refillInterval,
		lastRefill:     time.Now(),
	}
}

// NewPerMinuteRateLimiter spreads perMinute requests evenly over a minute.
func NewPerMinuteRateLimiter(perMinute int) *RateLimiter {
	if perMinute <= 0 {
		perMinute = 1
	}
	return NewRateLimiter(perMinute, time.Minute/time.Duration(perMinute))
}

// Wait blocks until a token is available or ctx is done.
func (r *RateLimiter) Wait(ctx context.Context) error {
	for {
		wait, ok := r.take()
		if ok {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

// take consumes a token, or reports how long until the next refill.
func (r *RateLimiter) take() (time.Duration, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.refill()
	if r.tokens > 0 {
		r.tokens--
		return 0, true
	}
	return r.refillInterval - time.Since(r.lastRefill), false
}

func (r *RateLimiter) refill() {
	elapsed := time.Since(r.lastRefill)
	newTokens := int(elapsed / r.refillInterval)
	if newTokens > 0 {
		r.tokens += newTokens
		if r.tokens > r.maxTokens {
			r.tokens = r.maxTokens
		}
		r.lastRefill = r.lastRefill.Add(time.Duration(newTokens) * r.refillInterval)
	}
}
