package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/fuomag9/kabomba-status/internal/logger"
)

// RetentionSpec runs the retention cleanup daily at 3:15 AM
const RetentionSpec = "15 3 * * *"

const jobTimeout = 5 * time.Minute

// CheckPruner deletes check results older than a cutoff
type CheckPruner interface {
	DeleteChecksBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// RetentionSettings reports how many days of checks to keep
type RetentionSettings interface {
	RetentionDays(ctx context.Context) int
}

// Scheduler manages background jobs
type Scheduler struct {
	cron     *cron.Cron
	checks   CheckPruner
	settings RetentionSettings
	now      func() time.Time
}

// NewScheduler creates a new job scheduler
func NewScheduler(checks CheckPruner, settings RetentionSettings) *Scheduler {
	cronLogger := cron.PrintfLogger(logger.Log().WithField("component", "cron"))
	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
		),
		checks:   checks,
		settings: settings,
		now:      time.Now,
	}
}

// Start registers the jobs and starts the scheduler
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(RetentionSpec, s.retentionJob); err != nil {
		return fmt.Errorf("schedule retention job: %w", err)
	}
	s.cron.Start()
	logger.Log().Info("Job scheduler started")
	return nil
}

// Stop stops the scheduler and waits for running jobs up to ctx
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
	logger.Log().Info("Job scheduler stopped")
}

func (s *Scheduler) retentionJob() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()
	if _, err := s.RunRetention(ctx); err != nil {
		logger.Log().WithError(err).Error("Retention cleanup failed")
	}
}

// RunRetention deletes checks older than the configured retention period.
// A retention of zero days disables cleanup.
func (s *Scheduler) RunRetention(ctx context.Context) (int64, error) {
	days := s.settings.RetentionDays(ctx)
	if days <= 0 {
		return 0, nil
	}

	cutoff := s.now().UTC().AddDate(0, 0, -days)
	deleted, err := s.checks.DeleteChecksBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	logger.WithFields(logrus.Fields{
		"deleted":        deleted,
		"retention_days": days,
		"cutoff":         cutoff.Format(time.RFC3339),
	}).Info("Cleaned up old service checks")
	return deleted, nil
}
