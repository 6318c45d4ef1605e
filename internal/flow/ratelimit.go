package flow

import (
	"sync"
	"time"
)

// RateLimiter is a per-user sliding window limiter for bot creations.
// The key is the Telegram user id, not the chat, so one user cannot get
// more creations by talking from several chats.
type RateLimiter struct {
	mu       sync.Mutex
	requests map[int64][]time.Time
	limit    int
	window   time.Duration
	now      func() time.Time
}

// NewRateLimiter creates a limiter. A limit <= 0 disables limiting.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		requests: make(map[int64][]time.Time),
		limit:    limit,
		window:   window,
		now:      time.Now,
	}
}

// Allow checks and records a request for the given user.
func (r *RateLimiter) Allow(userID int64) bool {
	if r == nil || r.limit <= 0 {
		return true
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	recent := fresh(r.requests[userID], now.Add(-r.window))
	if len(recent) >= r.limit {
		r.requests[userID] = recent
		return false
	}
	r.requests[userID] = append(recent, now)
	return true
}

// Sweep removes users with no requests left in the window. It is called by
// the janitor so the map does not grow without bound.
func (r *RateLimiter) Sweep() int {
	if r == nil {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.now().Add(-r.window)
	removed := 0
	for key, times := range r.requests {
		if recent := fresh(times, cutoff); len(recent) == 0 {
			delete(r.requests, key)
			removed++
		} else {
			r.requests[key] = recent
		}
	}
	return removed
}

func fresh(times []time.Time, cutoff time.Time) []time.Time {
	var recent []time.Time
	for _, t := range times {
		if t.After(cutoff) {
			recent = append(recent, t)
		}
	}
	return recent
}
