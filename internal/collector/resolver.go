package collector

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/pmaffi/jira-flow-metrics/internal/domain"
	apperrors "github.com/pmaffi/jira-flow-metrics/internal/errors"
	"github.com/pmaffi/jira-flow-metrics/internal/jira"
)

// ResolveOutcome is what the resolver produces for a set of issues.
type ResolveOutcome struct {
	// Timelines by issue key. Issues whose changelog could not be read are
	// absent here and listed in Unavailable instead.
	Timelines   map[string]*domain.Timeline
	Unavailable []string
}

// ChangelogResolver turns issue changelogs into ordered status timelines.
// Changelog requests run through the same retry policy as batch fetches:
// escalating deadlines, backoff, and rate-limit waits shared via the limiter.
type ChangelogResolver struct {
	client     jira.QueryClient
	retry      retryPolicy
	inProgress domain.StatusSet
	completed  domain.StatusSet
	workers    int
	log        zerolog.Logger
}

// NewChangelogResolver creates a resolver with a bounded worker pool.
func NewChangelogResolver(client jira.QueryClient, retry retryPolicy, inProgress, completed domain.StatusSet, workers int, log zerolog.Logger) *ChangelogResolver {
	if workers < 1 {
		workers = 1
	}
	return &ChangelogResolver{
		client:     client,
		retry:      retry,
		inProgress: inProgress,
		completed:  completed,
		workers:    workers,
		log:        log,
	}
}

// Resolve fetches changelogs for all issues concurrently. Permission and
// not-found failures degrade the single issue to unavailable; an error that
// survives the retry budget stops the whole resolve.
func (r *ChangelogResolver) Resolve(ctx context.Context, issues []*domain.Issue) (*ResolveOutcome, error) {
	outcome := &ResolveOutcome{Timelines: make(map[string]*domain.Timeline, len(issues))}

	var mu sync.Mutex
	var wg sync.WaitGroup
	semaphore := make(chan struct{}, r.workers)
	errCh := make(chan error, len(issues))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	for _, issue := range issues {
		wg.Add(1)
		go func(issue *domain.Issue) {
			defer wg.Done()
			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			if ctx.Err() != nil {
				return
			}
			timeline, err := r.resolveOne(ctx, issue)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				outcome.Timelines[issue.Key] = timeline
			case apperrors.IsPermission(err) || apperrors.IsNotFound(err):
				r.log.Warn().Str("issue", issue.Key).Err(err).Msg("changelog unavailable")
				outcome.Unavailable = append(outcome.Unavailable, issue.Key)
			default:
				errCh <- err
				cancel()
			}
		}(issue)
	}
	wg.Wait()
	close(errCh)

	if err := <-errCh; err != nil {
		return nil, err
	}
	sort.Strings(outcome.Unavailable)
	return outcome, nil
}

func (r *ChangelogResolver) resolveOne(ctx context.Context, issue *domain.Issue) (*domain.Timeline, error) {
	log := r.log.With().Str("issue", issue.Key).Logger()

	var transitions []domain.StatusTransition
	err := r.retry.run(ctx, log, nil, func(ctx context.Context, timeout time.Duration) error {
		t, err := r.client.Changelog(ctx, issue.Key, timeout)
		if err != nil {
			return err
		}
		transitions = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return BuildTimeline(issue.Key, transitions, r.inProgress, r.completed), nil
}

// BuildTimeline orders transitions and derives the fixed points of an issue's
// history. The first entry into the in-progress set is final: later exits and
// re-entries never move it.
func BuildTimeline(issueKey string, transitions []domain.StatusTransition, inProgress, completed domain.StatusSet) *domain.Timeline {
	sorted := make([]domain.StatusTransition, len(transitions))
	copy(sorted, transitions)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].At.Before(sorted[j].At)
	})

	timeline := &domain.Timeline{
		IssueKey:    issueKey,
		Transitions: sorted,
	}
	for i := range sorted {
		tr := sorted[i]
		if timeline.FirstInProgressAt == nil && inProgress.Contains(tr.To) {
			at := tr.At
			timeline.FirstInProgressAt = &at
		}
		if completed.Contains(tr.To) {
			at := tr.At
			timeline.LastDoneAt = &at
		}
	}
	return timeline
}
