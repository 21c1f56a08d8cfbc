package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/pmaffi/jira-flow-metrics/internal/config"
	"github.com/pmaffi/jira-flow-metrics/internal/domain"
	"github.com/pmaffi/jira-flow-metrics/internal/service"
)

// Cron runs scheduled collections so snapshots and sprint history accumulate
// without manual runs.
type Cron struct {
	cfg *config.Config
	log zerolog.Logger
	svc *service.Service
	c   *cron.Cron
}

// NewCron wires the collection schedule from configuration. A nil Cron is
// returned when no schedule is configured.
func NewCron(cfg *config.Config, log zerolog.Logger, svc *service.Service) *Cron {
	if cfg.CollectCron == "" {
		return nil
	}
	c := cron.New(cron.WithParser(cron.NewParser(
		cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow,
	)))
	cr := &Cron{cfg: cfg, log: log, svc: svc, c: c}
	if _, err := c.AddFunc(cfg.CollectCron, cr.collect); err != nil {
		log.Error().Err(err).Str("spec", cfg.CollectCron).Msg("cron: invalid schedule")
		return nil
	}
	return cr
}

// Start begins the schedule.
func (cr *Cron) Start() { cr.c.Start() }

// Stop halts the schedule.
func (cr *Cron) Stop() { cr.c.Stop() }

func (cr *Cron) collect() {
	ctx, cancel := context.WithTimeout(context.Background(), cr.cfg.MaxSessionRuntime+time.Minute)
	defer cancel()

	now := time.Now().UTC()
	window := domain.TimeRange{
		Start: now.AddDate(0, 0, -cr.cfg.SprintLengthDays),
		End:   now,
	}

	cr.log.Info().Str("project", cr.cfg.JiraProject).Msg("cron: scheduled collection")
	if _, err := cr.svc.RunCollection(ctx, cr.cfg.JiraProject, window); err != nil {
		cr.log.Error().Err(err).Msg("cron: collection failed")
	}
}
