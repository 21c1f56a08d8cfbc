package collector

import (
	"context"
	"sync"
	"time"
)

// RateLimiter paces Jira API calls: a minimum delay between requests plus a
// shared penalty window applied after the server signals throttling.
type RateLimiter interface {
	Wait(ctx context.Context) error
	Penalize(d time.Duration)
}

type jiraRateLimiter struct {
	mu        sync.Mutex
	minDelay  time.Duration
	lastCall  time.Time
	notBefore time.Time
	clock     Clock
}

// NewRateLimiter creates a pacing limiter shared by all session goroutines.
func NewRateLimiter(minDelay time.Duration, clock Clock) RateLimiter {
	return &jiraRateLimiter{
		minDelay: minDelay,
		clock:    clock,
	}
}

// Wait blocks until the next call is allowed.
func (r *jiraRateLimiter) Wait(ctx context.Context) error {
	for {
		r.mu.Lock()
		now := r.clock.Now()
		wait := time.Duration(0)
		if !r.notBefore.IsZero() && now.Before(r.notBefore) {
			wait = r.notBefore.Sub(now)
		}
		if d := r.minDelay - now.Sub(r.lastCall); d > wait {
			wait = d
		}
		if wait <= 0 {
			r.lastCall = now
			r.mu.Unlock()
			return nil
		}
		r.mu.Unlock()

		if err := r.clock.Sleep(ctx, wait); err != nil {
			return err
		}
	}
}

// Penalize blocks all callers for d from now. Later calls only extend the
// window, never shorten it.
func (r *jiraRateLimiter) Penalize(d time.Duration) {
	if d <= 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	until := r.clock.Now().Add(d)
	if until.After(r.notBefore) {
		r.notBefore = until
	}
}
