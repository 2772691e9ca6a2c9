// Package papersources provides clients for searching academic paper databases.
package papersources

import (
	"context"
	"sync"
	"time"
)

// RateLimiter enforces a sliding-window request quota: at most maxRequests
// acquisitions within any window of the configured length. Unlike a token
// bucket, the quota maps directly onto the published limits of academic
// APIs (arXiv allows 1 request per 3 seconds, Semantic Scholar 100 per
// 5 minutes). It is safe for concurrent use.
type RateLimiter struct {
	mu          sync.Mutex
	maxRequests int
	window      time.Duration
	timestamps  []time.Time
	now         func() time.Time
}

// NewRateLimiter creates a sliding-window rate limiter.
//
// Example configurations:
//   - arXiv: NewRateLimiter(1, 3*time.Second)
//   - Semantic Scholar: NewRateLimiter(100, 5*time.Minute)
func NewRateLimiter(maxRequests int, window time.Duration) *RateLimiter {
	if maxRequests <= 0 {
		maxRequests = 1
	}
	if window <= 0 {
		window = time.Second
	}
	return &RateLimiter{
		maxRequests: maxRequests,
		window:      window,
		timestamps:  make([]time.Time, 0, maxRequests),
		now:         time.Now,
	}
}

// Acquire blocks until a request slot is available or the context is
// cancelled. On success the request is recorded against the window.
func (r *RateLimiter) Acquire(ctx context.Context) error {
	for {
		wait, ok := r.tryAcquire()
		if ok {
			return nil
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// tryAcquire records a request if the window has capacity. When full it
// returns the duration until the oldest recorded request leaves the window.
func (r *RateLimiter) tryAcquire() (time.Duration, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	r.prune(now)

	if len(r.timestamps) < r.maxRequests {
		r.timestamps = append(r.timestamps, now)
		return 0, true
	}

	wait := r.window - now.Sub(r.timestamps[0])
	if wait <= 0 {
		// Oldest entry expired between prune and here; retry immediately.
		wait = time.Millisecond
	}
	return wait, false
}

// WaitTime returns how long a caller would have to wait before Acquire
// could succeed, without recording a request. Zero means a slot is free.
func (r *RateLimiter) WaitTime() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	r.prune(now)

	if len(r.timestamps) < r.maxRequests {
		return 0
	}

	wait := r.window - now.Sub(r.timestamps[0])
	if wait < 0 {
		return 0
	}
	return wait
}

// prune drops timestamps that have aged out of the window.
// Caller must hold r.mu.
func (r *RateLimiter) prune(now time.Time) {
	cutoff := now.Add(-r.window)
	i := 0
	for i < len(r.timestamps) && !r.timestamps[i].After(cutoff) {
		i++
	}
	if i > 0 {
		r.timestamps = append(r.timestamps[:0], r.timestamps[i:]...)
	}
}
