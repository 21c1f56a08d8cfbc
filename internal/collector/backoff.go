package collector

import (
	"math/rand"
	"sync"
	"time"
)

// Backoff computes retry delays: exponential in the attempt number with
// full jitter, capped.
type Backoff struct {
	base time.Duration
	cap  time.Duration

	mu  sync.Mutex
	rnd *rand.Rand
}

// NewBackoff creates a backoff policy. A non-positive cap disables capping.
func NewBackoff(base, cap time.Duration) *Backoff {
	return &Backoff{
		base: base,
		cap:  cap,
		rnd:  rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Delay returns the wait before retry number attempt (0-based).
// The raw delay is base * 2^attempt, jittered by a factor in [0.5, 1.5).
func (b *Backoff) Delay(attempt int) time.Duration {
	if attempt > 20 {
		attempt = 20
	}
	raw := b.base << uint(attempt)
	if b.cap > 0 && raw > b.cap {
		raw = b.cap
	}
	b.mu.Lock()
	factor := 0.5 + b.rnd.Float64()
	b.mu.Unlock()
	d := time.Duration(float64(raw) * factor)
	if b.cap > 0 && d > b.cap {
		d = b.cap
	}
	return d
}

// Jitter spreads a fixed wait by ±20%, used for server-directed rate-limit
// waits so concurrent clients do not reconverge on the same instant.
func (b *Backoff) Jitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	b.mu.Lock()
	factor := 0.8 + 0.4*b.rnd.Float64()
	b.mu.Unlock()
	return time.Duration(float64(d) * factor)
}
