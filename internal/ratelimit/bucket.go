// Package ratelimit implements the token-bucket-plus-backoff limiter that
// every outbound fetch in stage A acquires before issuing a request.
package ratelimit

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

const (
	initialBackoff    = 2 * time.Second
	backoffMultiplier = 2.0
)

// Bucket combines a token bucket (steady-state pacing) with a mutable
// backoff delay driven by upstream 429 responses. rate.Limiter has no notion
// of "current backoff delay on top of the steady rate", so that part is
// tracked separately and applied as an extra sleep inside Acquire.
type Bucket struct {
	limiter    *rate.Limiter
	maxBackoff time.Duration

	mu      chan struct{} // 1-buffered mutex, safe across concurrent acquirers
	current time.Duration
}

// New creates a Bucket with the given requests-per-minute capacity and a
// ceiling on the backoff delay. Initial tokens equal capacity.
func New(requestsPerMinute int, maxBackoff time.Duration) *Bucket {
	rps := float64(requestsPerMinute) / 60.0
	b := &Bucket{
		limiter:    rate.NewLimiter(rate.Limit(rps), requestsPerMinute),
		maxBackoff: maxBackoff,
		mu:         make(chan struct{}, 1),
	}
	b.mu <- struct{}{}
	return b
}

// Acquire sleeps for the current backoff delay, then waits for one token.
func (b *Bucket) Acquire(ctx context.Context) error {
	delay := b.currentDelay()
	if delay > 0 {
		t := time.NewTimer(delay)
		defer t.Stop()
		select {
		case <-t.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return b.limiter.Wait(ctx)
}

// Handle429 applies the rate-limited-response policy: if retryAfter is a
// positive duration, the new delay is exactly that; otherwise the delay
// grows exponentially from its previous value (or the 2.0s floor), clamped
// at maxBackoff. Negative or zero retryAfter is treated as "no header".
func (b *Bucket) Handle429(retryAfter time.Duration) {
	b.lock()
	defer b.unlock()

	if retryAfter > 0 {
		b.current = retryAfter
		return
	}

	next := b.current * time.Duration(backoffMultiplier)
	if next < initialBackoff {
		next = initialBackoff
	}
	b.current = clamp(next, b.maxBackoff)
}

// ResetBackoff returns the backoff delay to zero. Callers invoke this on
// every 2xx response.
func (b *Bucket) ResetBackoff() {
	b.lock()
	defer b.unlock()
	b.current = 0
}

// CurrentDelay reports the backoff delay in effect right now.
func (b *Bucket) CurrentDelay() time.Duration {
	return b.currentDelay()
}

func (b *Bucket) currentDelay() time.Duration {
	b.lock()
	defer b.unlock()
	return b.current
}

func (b *Bucket) lock()   { <-b.mu }
func (b *Bucket) unlock() { b.mu <- struct{}{} }

func clamp(d, max time.Duration) time.Duration {
	if d < 0 {
		return 0
	}
	if d > max {
		return max
	}
	return d
}
