package collector

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	apperrors "github.com/pmaffi/jira-flow-metrics/internal/errors"
)

// attemptFunc is one bounded request attempt. The timeout is the per-attempt
// read deadline, escalating across retries of the same operation.
type attemptFunc func(ctx context.Context, timeout time.Duration) error

// retryPolicy drives an operation through its retry budget. Fatal and
// permanent errors return immediately, rate limits pause all callers through
// the shared limiter without consuming an attempt, and other transient
// failures back off then retry with a longer deadline. Both the batch fetcher
// and the changelog resolver run their requests through the same policy.
type retryPolicy struct {
	budget      int
	readTimeout time.Duration
	waitCap     time.Duration
	clock       Clock
	backoff     *Backoff
	limiter     RateLimiter
}

// attemptTimeout escalates the read deadline across retries of one operation.
func (p retryPolicy) attemptTimeout(attempt int) time.Duration {
	switch attempt {
	case 0:
		return p.readTimeout
	case 1:
		return time.Duration(float64(p.readTimeout) * 1.5)
	default:
		return p.readTimeout * 2
	}
}

// run executes fn until it succeeds, fails permanently, or exhausts the
// budget. note, when non-nil, observes every finished attempt.
func (p retryPolicy) run(ctx context.Context, log zerolog.Logger, note func(attempt int, err error), fn attemptFunc) error {
	var lastErr error
	for attempt := 0; attempt < p.budget; {
		if err := p.limiter.Wait(ctx); err != nil {
			return apperrors.NewInternalError("cancelled while pacing", err)
		}

		err := fn(ctx, p.attemptTimeout(attempt))
		if note != nil {
			note(attempt+1, err)
		}
		if err == nil {
			return nil
		}
		lastErr = err

		// Permission and not-found are permanent for the resource; retrying
		// cannot change the answer.
		if apperrors.IsFatal(err) || apperrors.IsPermission(err) || apperrors.IsNotFound(err) {
			return err
		}
		if apperrors.IsRateLimited(err) {
			// Server-directed wait; retry the same attempt afterwards.
			wait := apperrors.RetryAfterOf(err)
			if wait <= 0 {
				wait = p.backoff.Delay(0)
			}
			wait = p.backoff.Jitter(wait)
			if p.waitCap > 0 && wait > p.waitCap {
				wait = p.waitCap
			}
			p.limiter.Penalize(wait)
			log.Info().Dur("wait", wait).Msg("rate limited, pausing")
			if err := p.clock.Sleep(ctx, wait); err != nil {
				return apperrors.NewInternalError("cancelled during rate-limit wait", err)
			}
			continue
		}

		attempt++
		log.Warn().Err(err).Int("attempt", attempt).Msg("attempt failed")
		if attempt < p.budget {
			if err := p.clock.Sleep(ctx, p.backoff.Delay(attempt)); err != nil {
				return apperrors.NewInternalError("cancelled during backoff", err)
			}
		}
	}
	return lastErr
}
