package jobs

import (
	"context"
	"fmt"
	"time"

	"hirevoice/interview/internal/config"
	"hirevoice/interview/internal/metrics"
	"hirevoice/interview/internal/repositories"
	"hirevoice/interview/internal/utils"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// StuckReason is recorded on responses the sweeper gives up on.
const StuckReason = "processing timed out"

// SweepResult counts what one sweep changed.
type SweepResult struct {
	FailedResponses int64
	ExpiredSessions int64
}

// StaleSweeperJob fails responses stuck mid-pipeline and expires sessions
// past their deadline.
type StaleSweeperJob struct {
	repos  *repositories.Repositories
	config config.SweeperConfig
	cron   *cron.Cron
	logger *zap.Logger
	now    func() time.Time
}

func NewStaleSweeperJob(repos *repositories.Repositories, cfg config.SweeperConfig, logger *zap.Logger) *StaleSweeperJob {
	return &StaleSweeperJob{
		repos:  repos,
		config: cfg,
		cron:   cron.New(),
		logger: utils.OrNop(logger).Named("sweeper"),
		now:    time.Now,
	}
}

// Start schedules the sweep
func (j *StaleSweeperJob) Start() error {
	if !j.config.Enabled {
		j.logger.Info("Stale sweeper is disabled, skipping scheduler")
		return nil
	}

	_, err := j.cron.AddFunc(j.config.Schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if _, err := j.RunSweep(ctx); err != nil {
			j.logger.Error("Sweep failed", zap.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule sweep job: %w", err)
	}

	j.cron.Start()
	j.logger.Info("Stale sweeper started", zap.String("schedule", j.config.Schedule))
	return nil
}

// Stop halts scheduling and waits for a running sweep to finish.
func (j *StaleSweeperJob) Stop() {
	if j.cron != nil {
		<-j.cron.Stop().Done()
		j.logger.Info("Stale sweeper stopped")
	}
}

// RunSweep performs a single sweep
func (j *StaleSweeperJob) RunSweep(ctx context.Context) (*SweepResult, error) {
	now := j.now()

	failed, err := j.repos.Responses.FailStuck(ctx, now.Add(-j.config.StuckAfter), StuckReason)
	if err != nil {
		return nil, fmt.Errorf("failed to sweep stuck responses: %w", err)
	}
	expired, err := j.repos.Sessions.ExpireOverdue(ctx, now.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to expire sessions: %w", err)
	}

	metrics.Swept("responses", failed)
	metrics.Swept("sessions", expired)
	if failed > 0 || expired > 0 {
		j.logger.Info("Sweep finished",
			zap.Int64("failedResponses", failed),
			zap.Int64("expiredSessions", expired))
	}
	return &SweepResult{FailedResponses: failed, ExpiredSessions: expired}, nil
}
