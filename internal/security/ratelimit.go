// Package security holds process-wide limits that are not tied to a client.
package security

import (
	"sync"
	"time"
)

// RateLimiter caps how many events may start across all clients in any
// sliding one-minute window. It guards the summarizer backend, which is
// shared and may be billed per call.
type RateLimiter struct {
	mu           sync.Mutex
	timestamps   []time.Time
	maxPerMinute int
	now          func() time.Time
}

// NewRateLimiter creates a limiter. A non-positive maxPerMinute allows
// everything.
func NewRateLimiter(maxPerMinute int) *RateLimiter {
	return &RateLimiter{
		maxPerMinute: maxPerMinute,
		now:          time.Now,
	}
}

// Allow records an event if the window has room for it.
func (r *RateLimiter) Allow() bool {
	if r.maxPerMinute <= 0 {
		return true
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	r.evict(now)

	if len(r.timestamps) >= r.maxPerMinute {
		return false
	}
	r.timestamps = append(r.timestamps, now)
	return true
}

// Release returns the most recent slot to the window, for an event that was
// admitted but never started.
func (r *RateLimiter) Release() {
	if r.maxPerMinute <= 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if n := len(r.timestamps); n > 0 {
		r.timestamps = r.timestamps[:n-1]
	}
}

// RetryAfter reports how long until the window admits another event. It is
// zero when there is room.
func (r *RateLimiter) RetryAfter() time.Duration {
	if r.maxPerMinute <= 0 {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	r.evict(now)
	if len(r.timestamps) < r.maxPerMinute {
		return 0
	}
	return r.timestamps[0].Add(time.Minute).Sub(now)
}

func (r *RateLimiter) evict(now time.Time) {
	cutoff := now.Add(-time.Minute)
	valid := r.timestamps[:0]
	for _, ts := range r.timestamps {
		if ts.After(cutoff) {
			valid = append(valid, ts)
		}
	}
	r.timestamps = valid
}
