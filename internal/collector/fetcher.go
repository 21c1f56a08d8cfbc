package collector

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/pmaffi/jira-flow-metrics/internal/domain"
	apperrors "github.com/pmaffi/jira-flow-metrics/internal/errors"
	"github.com/pmaffi/jira-flow-metrics/internal/jira"
)

// FetcherConfig controls batch sizing, retries, and safety limits.
type FetcherConfig struct {
	BatchSizeBase   int
	BatchSizeMin    int
	BatchSizeMax    int
	RetryBudget     int
	GrowthThreshold int
	ReadTimeout     time.Duration

	RateLimitWaitCap time.Duration
	MaxTotalIssues   int
	MaxRuntime       time.Duration
}

// Fetcher retrieves a full JQL result set through adaptively sized batches.
// One FetchAll call is one session; sessions are independent and a Fetcher
// can run them concurrently.
type Fetcher struct {
	client  jira.QueryClient
	cfg     FetcherConfig
	clock   Clock
	backoff *Backoff
	limiter RateLimiter
	log     zerolog.Logger
}

// NewFetcher creates an adaptive batch fetcher.
func NewFetcher(client jira.QueryClient, cfg FetcherConfig, clock Clock, backoff *Backoff, limiter RateLimiter, log zerolog.Logger) *Fetcher {
	return &Fetcher{
		client:  client,
		cfg:     cfg,
		clock:   clock,
		backoff: backoff,
		limiter: limiter,
		log:     log,
	}
}

// session holds the mutable state of one fetch run. It is owned by the
// goroutine running FetchAll and never shared.
type session struct {
	id        string
	jql       string
	offset    int
	size      int
	streak    int // consecutive successful batches
	total     int // -1 until the first page reports it
	issues    []*domain.Issue
	seen      *dedupSet
	dupes     int
	batches   []*domain.BatchRequestState
	skipped   []domain.SkippedRange
	startedAt time.Time
}

// FetchAll runs one fetch session for the given JQL query. The returned
// result carries a terminal state; err is non-nil only for Aborted sessions.
func (f *Fetcher) FetchAll(ctx context.Context, jql string) (*domain.FetchResult, error) {
	s := &session{
		id:        uuid.New().String(),
		jql:       jql,
		size:      f.cfg.BatchSizeBase,
		total:     -1,
		seen:      newDedupSet(),
		startedAt: f.clock.Now(),
	}
	log := f.log.With().Str("session_id", s.id).Logger()
	log.Info().Str("jql", jql).Int("batch_size", s.size).Msg("fetch session started")

	for {
		if s.total >= 0 && s.offset >= s.total {
			return f.finish(s, domain.SessionComplete, log), nil
		}
		if limit, reason := f.safetyLimit(s); limit {
			log.Warn().Str("reason", reason).Int("issues", len(s.issues)).Msg("safety limit reached")
			return f.finish(s, domain.SessionPartial, log), nil
		}

		state := &domain.BatchRequestState{
			ID:        uuid.New().String(),
			Offset:    s.offset,
			Size:      s.size,
			Outcome:   domain.BatchOutcomePending,
			StartedAt: f.clock.Now(),
		}
		s.batches = append(s.batches, state)

		page, err := f.runBatch(ctx, s, state, log)
		state.FinishedAt = f.clock.Now()

		switch {
		case err == nil:
			state.Outcome = domain.BatchOutcomeSucceeded
			f.absorb(s, page)
			if len(page.Issues) == 0 {
				// Jira reported more rows than it returned; treat as done.
				return f.finish(s, domain.SessionComplete, log), nil
			}
		case apperrors.IsFatal(err) || ctx.Err() != nil:
			state.Outcome = domain.BatchOutcomeFailed
			log.Error().Err(err).Int("offset", s.offset).Msg("session aborted")
			result := f.finish(s, domain.SessionAborted, log)
			return result, err
		default:
			// Retry budget exhausted at this size.
			state.Outcome = domain.BatchOutcomeFailed
			s.streak = 0
			if s.size > f.cfg.BatchSizeMin {
				next := s.size / 2
				if next < f.cfg.BatchSizeMin {
					next = f.cfg.BatchSizeMin
				}
				log.Warn().Int("offset", s.offset).Int("from", s.size).Int("to", next).Msg("halving batch size")
				s.size = next
			} else {
				// Already at the floor; abandon this range and move on.
				s.skipped = append(s.skipped, domain.SkippedRange{
					Offset: s.offset,
					Size:   s.size,
					Reason: state.LastErrCode,
				})
				log.Warn().Int("offset", s.offset).Int("size", s.size).Msg("skipping range at minimum batch size")
				s.offset += s.size
				if s.total < 0 {
					// Not even the total is known; no basis to keep probing.
					return f.finish(s, domain.SessionPartial, log), nil
				}
			}
		}
	}
}

// runBatch drives one batch through the shared retry policy, recording the
// attempt count and last error code on the batch state.
func (f *Fetcher) runBatch(ctx context.Context, s *session, state *domain.BatchRequestState, log zerolog.Logger) (*jira.SearchPage, error) {
	batchLog := log.With().Int("offset", s.offset).Int("size", s.size).Logger()

	var page *jira.SearchPage
	err := f.retry().run(ctx, batchLog,
		func(attempt int, err error) {
			state.Attempt = attempt
			if err != nil {
				state.LastErrCode = errCode(err)
			}
		},
		func(ctx context.Context, timeout time.Duration) error {
			p, err := f.client.SearchPage(ctx, jira.SearchRequest{
				JQL:         s.jql,
				StartAt:     s.offset,
				MaxResults:  s.size,
				ReadTimeout: timeout,
			})
			if err != nil {
				return err
			}
			page = p
			return nil
		})
	if err != nil {
		return nil, err
	}
	return page, nil
}

// retry builds the policy shared with the changelog resolver.
func (f *Fetcher) retry() retryPolicy {
	return retryPolicy{
		budget:      f.cfg.RetryBudget,
		readTimeout: f.cfg.ReadTimeout,
		waitCap:     f.cfg.RateLimitWaitCap,
		clock:       f.clock,
		backoff:     f.backoff,
		limiter:     f.limiter,
	}
}

// absorb folds a successful page into the session, deduplicating by key.
func (f *Fetcher) absorb(s *session, page *jira.SearchPage) {
	s.total = page.Total
	for _, issue := range page.Issues {
		if s.seen.add(issue.Key) {
			s.issues = append(s.issues, issue)
		} else {
			s.dupes++
		}
	}
	s.offset += len(page.Issues)
	s.streak++
	if s.streak >= f.cfg.GrowthThreshold && s.size < f.cfg.BatchSizeMax {
		next := s.size + s.size/2
		if next > f.cfg.BatchSizeMax {
			next = f.cfg.BatchSizeMax
		}
		s.size = next
		s.streak = 0
	}
}

func (f *Fetcher) safetyLimit(s *session) (bool, string) {
	if f.cfg.MaxTotalIssues > 0 && len(s.issues) >= f.cfg.MaxTotalIssues {
		return true, fmt.Sprintf("issue limit %d reached", f.cfg.MaxTotalIssues)
	}
	if f.cfg.MaxRuntime > 0 && f.clock.Now().Sub(s.startedAt) >= f.cfg.MaxRuntime {
		return true, fmt.Sprintf("runtime limit %s reached", f.cfg.MaxRuntime)
	}
	return false, ""
}

func (f *Fetcher) finish(s *session, terminal domain.SessionState, log zerolog.Logger) *domain.FetchResult {
	if terminal == domain.SessionComplete && len(s.skipped) > 0 {
		terminal = domain.SessionPartial
	}
	result := &domain.FetchResult{
		SessionID:     s.id,
		State:         terminal,
		Issues:        s.issues,
		Total:         s.total,
		Batches:       s.batches,
		SkippedRanges: s.skipped,
		Duplicates:    s.dupes,
		StartedAt:     s.startedAt,
		FinishedAt:    f.clock.Now(),
	}
	log.Info().
		Str("state", string(terminal)).
		Int("issues", len(s.issues)).
		Int("batches", len(s.batches)).
		Int("duplicates", s.dupes).
		Msg("fetch session finished")
	return result
}

func errCode(err error) string {
	switch {
	case apperrors.IsConnectTimeout(err):
		return string(apperrors.ErrCodeConnectTimeout)
	case apperrors.IsReadTimeout(err):
		return string(apperrors.ErrCodeReadTimeout)
	case apperrors.IsRateLimited(err):
		return string(apperrors.ErrCodeRateLimited)
	case apperrors.IsAuth(err):
		return string(apperrors.ErrCodeAuth)
	case apperrors.IsMalformed(err):
		return string(apperrors.ErrCodeMalformed)
	default:
		return string(apperrors.ErrCodeInternal)
	}
}
