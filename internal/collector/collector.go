package collector

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/pmaffi/jira-flow-metrics/internal/config"
	"github.com/pmaffi/jira-flow-metrics/internal/domain"
	"github.com/pmaffi/jira-flow-metrics/internal/jira"
)

// Collector defines the interface for collecting Jira flow data
type Collector interface {
	// CollectProject fetches all issues for a project window and resolves
	// their status timelines.
	CollectProject(ctx context.Context, project string, window domain.TimeRange) (*CollectionResult, error)
}

// CollectionResult bundles one collection run's raw material for the
// metrics engine.
type CollectionResult struct {
	Fetch       *domain.FetchResult
	Timelines   map[string]*domain.Timeline
	Unavailable []string
	Window      domain.TimeRange
}

type jiraCollector struct {
	fetcher  *Fetcher
	resolver *ChangelogResolver
	extraJQL string
	log      zerolog.Logger
}

// NewJiraCollector wires the fetcher and resolver from configuration.
func NewJiraCollector(cfg *config.Config, log zerolog.Logger) Collector {
	clock := NewClock()
	client := jira.NewClient(cfg.JiraBaseURL, cfg.JiraToken, cfg.ConnectTimeout, cfg.ReadTimeout, log)
	limiter := NewRateLimiter(100*time.Millisecond, clock)
	backoff := NewBackoff(cfg.BackoffBase, cfg.BackoffCap)

	fetcher := NewFetcher(client, FetcherConfig{
		BatchSizeBase:    cfg.BatchSizeBase,
		BatchSizeMin:     cfg.BatchSizeMin,
		BatchSizeMax:     cfg.BatchSizeMax,
		RetryBudget:      cfg.RetryBudget,
		GrowthThreshold:  cfg.GrowthThreshold,
		ReadTimeout:      cfg.ReadTimeout,
		RateLimitWaitCap: cfg.RateLimitWaitCap,
		MaxTotalIssues:   cfg.MaxTotalIssues,
		MaxRuntime:       cfg.MaxSessionRuntime,
	}, clock, backoff, limiter, log)

	resolver := NewChangelogResolver(
		client,
		fetcher.retry(),
		domain.NewStatusSet(cfg.InProgressStatuses),
		domain.NewStatusSet(cfg.CompletedStatuses),
		cfg.WorkerCount,
		log,
	)

	return &jiraCollector{
		fetcher:  fetcher,
		resolver: resolver,
		extraJQL: cfg.JiraJQL,
		log:      log,
	}
}

func (c *jiraCollector) CollectProject(ctx context.Context, project string, window domain.TimeRange) (*CollectionResult, error) {
	jql := buildJQL(project, c.extraJQL, window)

	fetch, err := c.fetcher.FetchAll(ctx, jql)
	if err != nil {
		return nil, fmt.Errorf("fetching issues for %s: %w", project, err)
	}

	resolved, err := c.resolver.Resolve(ctx, fetch.Issues)
	if err != nil {
		return nil, fmt.Errorf("resolving changelogs for %s: %w", project, err)
	}

	return &CollectionResult{
		Fetch:       fetch,
		Timelines:   resolved.Timelines,
		Unavailable: resolved.Unavailable,
		Window:      window,
	}, nil
}

// buildJQL selects issues touched inside the window: still open, or updated
// or resolved after its start.
func buildJQL(project, extra string, window domain.TimeRange) string {
	jql := fmt.Sprintf(
		`project = %q AND (resolutiondate >= %q OR resolution = EMPTY) AND created <= %q`,
		project,
		window.Start.Format("2006-01-02"),
		window.End.Format("2006-01-02"),
	)
	if extra != "" {
		jql += " AND (" + extra + ")"
	}
	return jql + " ORDER BY created ASC"
}
