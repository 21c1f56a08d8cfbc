package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/pmaffi/jira-flow-metrics/internal/aggregator"
	"github.com/pmaffi/jira-flow-metrics/internal/collector"
	"github.com/pmaffi/jira-flow-metrics/internal/config"
	"github.com/pmaffi/jira-flow-metrics/internal/domain"
	"github.com/pmaffi/jira-flow-metrics/internal/forecast"
	"github.com/pmaffi/jira-flow-metrics/internal/storage"
)

// Service ties collection, metric computation, forecasting, and persistence
// together. API handlers, the CLI, and the cron job all go through it.
type Service struct {
	cfg       *config.Config
	collector collector.Collector
	store     storage.Storage
	log       zerolog.Logger

	inProgress domain.StatusSet
	completed  domain.StatusSet
}

// New creates the service.
func New(cfg *config.Config, c collector.Collector, store storage.Storage, log zerolog.Logger) *Service {
	return &Service{
		cfg:        cfg,
		collector:  c,
		store:      store,
		log:        log,
		inProgress: domain.NewStatusSet(cfg.InProgressStatuses),
		completed:  domain.NewStatusSet(cfg.CompletedStatuses),
	}
}

// RunCollection fetches a project window, computes its metrics snapshot,
// persists it, and records the window as sprint history for forecasting.
func (s *Service) RunCollection(ctx context.Context, project string, window domain.TimeRange) (*domain.MetricsSnapshot, error) {
	result, err := s.collector.CollectProject(ctx, project, window)
	if err != nil {
		return nil, err
	}

	snapshot := aggregator.ComputeSnapshot(aggregator.Input{
		Project:      project,
		Window:       window,
		Issues:       result.Fetch.Issues,
		Timelines:    result.Timelines,
		Unavailable:  result.Unavailable,
		InProgress:   s.inProgress,
		Completed:    s.completed,
		SessionState: result.Fetch.State,
		Now:          time.Now().UTC(),
	})

	if err := s.store.SaveSnapshot(ctx, snapshot); err != nil {
		return nil, fmt.Errorf("persisting snapshot: %w", err)
	}

	// Aborted sessions may have seen an arbitrary subset of the window;
	// their numbers are not history worth training on.
	if snapshot.SessionState != domain.SessionAborted {
		record := s.deriveSprintRecord(project, window, result.Fetch.Issues, snapshot.CreatedAt)
		if err := s.store.SaveSprintRecord(ctx, record); err != nil {
			return nil, fmt.Errorf("persisting sprint record: %w", err)
		}
	}

	s.log.Info().
		Str("project", project).
		Str("snapshot_id", snapshot.ID).
		Int("issues", snapshot.TotalIssues).
		Int("wip", snapshot.WIPCount).
		Msg("collection run finished")
	return snapshot, nil
}

// deriveSprintRecord reduces one collected window to the numbers the
// forecast trains on.
func (s *Service) deriveSprintRecord(project string, window domain.TimeRange, issues []*domain.Issue, now time.Time) *domain.HistoricalSprintRecord {
	var estimated, completed float64
	for _, issue := range issues {
		if issue.EstimateHours == nil {
			continue
		}
		estimated += *issue.EstimateHours
		if issue.ResolvedIn(window.Start, window.End) {
			completed += *issue.EstimateHours
		}
	}
	return &domain.HistoricalSprintRecord{
		ID:             uuid.New().String(),
		Project:        project,
		SprintName:     fmt.Sprintf("%s %s", project, window.Start.Format("2006-01-02")),
		EstimatedHours: estimated,
		CompletedHours: completed,
		DurationDays:   window.Days(),
		EndedAt:        window.End,
		CreatedAt:      now,
	}
}

// Forecast produces a completion forecast from stored sprint history.
// remainingHours <= 0 means "use the latest snapshot's remaining work".
func (s *Service) Forecast(ctx context.Context, project string, remainingHours float64, deadline time.Time) (*domain.Forecast, error) {
	if remainingHours <= 0 {
		snapshot, err := s.store.GetLatestSnapshot(ctx, project)
		if err != nil {
			return nil, err
		}
		if snapshot != nil {
			remainingHours = snapshot.RemainingHours
		}
	}
	if deadline.IsZero() {
		deadline = time.Now().UTC().AddDate(0, 0, s.cfg.SprintLengthDays)
	}

	records, err := s.store.GetSprintRecords(ctx, project, s.cfg.ForecastHistorySize)
	if err != nil {
		return nil, err
	}

	return forecast.Compute(forecast.Input{
		Project:        project,
		Records:        records,
		RemainingHours: remainingHours,
		Deadline:       deadline,
		HistorySize:    s.cfg.ForecastHistorySize,
		Now:            time.Now().UTC(),
	}), nil
}

// LatestSnapshot returns the newest stored snapshot for a project.
func (s *Service) LatestSnapshot(ctx context.Context, project string) (*domain.MetricsSnapshot, error) {
	return s.store.GetLatestSnapshot(ctx, project)
}

// Snapshot returns one stored snapshot by id.
func (s *Service) Snapshot(ctx context.Context, id string) (*domain.MetricsSnapshot, error) {
	return s.store.GetSnapshot(ctx, id)
}

// ListSnapshots returns recent snapshots for a project, newest first.
func (s *Service) ListSnapshots(ctx context.Context, project string, limit int) ([]*domain.MetricsSnapshot, error) {
	return s.store.ListSnapshots(ctx, project, limit)
}

// SprintRecords returns recent sprint history, oldest first.
func (s *Service) SprintRecords(ctx context.Context, project string, limit int) ([]domain.HistoricalSprintRecord, error) {
	return s.store.GetSprintRecords(ctx, project, limit)
}
