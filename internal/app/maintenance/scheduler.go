package maintenance

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/oktamirror/oktamirror/internal/services"
	"github.com/oktamirror/oktamirror/pkg/logger"
)

const (
	defaultRetentionDays  = 30
	defaultSyncSpec       = "@every 6h"
	defaultCleanupSpec    = "@daily"
	defaultQueryRetention = 90
)

// SyncFunc runs one full synchronization pass. A fresh orchestrator should be
// built per invocation so each run carries its own cancellation state.
type SyncFunc func(ctx context.Context) error

// Scheduler coordinates the periodic background work of the daemon: recurring
// sync runs and retention cleanup of sync and query history.
type Scheduler struct {
	tenantID string
	sync     SyncFunc
	history  *services.HistoryService
	queries  *services.QueryHistoryService
	cron     *cron.Cron
	now      func() time.Time
	log      *zap.Logger

	retentionDays   int
	syncSchedule    string
	cleanupSchedule string
}

// Option customises the Scheduler.
type Option func(*Scheduler)

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) Option {
	return func(s *Scheduler) {
		if c != nil {
			s.cron = c
		}
	}
}

// WithNow overrides the clock used for scheduling comparisons.
func WithNow(now func() time.Time) Option {
	return func(s *Scheduler) {
		if now != nil {
			s.now = now
		}
	}
}

// WithRetentionDays adjusts how many distinct days of sync history are retained.
func WithRetentionDays(days int) Option {
	return func(s *Scheduler) {
		if days > 0 {
			s.retentionDays = days
		}
	}
}

// WithSyncSchedule overrides the cron specification for periodic sync runs.
func WithSyncSchedule(spec string) Option {
	return func(s *Scheduler) {
		if spec != "" {
			s.syncSchedule = spec
		}
	}
}

// WithCleanupSchedule overrides the cron specification for retention cleanup.
func WithCleanupSchedule(spec string) Option {
	return func(s *Scheduler) {
		if spec != "" {
			s.cleanupSchedule = spec
		}
	}
}

// NewScheduler constructs a Scheduler with sensible defaults. A nil sync
// function or history service results in the corresponding job being skipped.
func NewScheduler(tenantID string, sync SyncFunc, history *services.HistoryService, queries *services.QueryHistoryService, opts ...Option) *Scheduler {
	scheduler := &Scheduler{
		tenantID:        tenantID,
		sync:            sync,
		history:         history,
		queries:         queries,
		now:             time.Now,
		retentionDays:   defaultRetentionDays,
		syncSchedule:    defaultSyncSpec,
		cleanupSchedule: defaultCleanupSpec,
		log:             logger.WithModule("maintenance"),
	}

	for _, opt := range opts {
		opt(scheduler)
	}

	if scheduler.cron == nil {
		scheduler.cron = cron.New(cron.WithLogger(cron.DiscardLogger))
	}

	return scheduler
}

// Start registers jobs with the cron scheduler and launches it.
func (s *Scheduler) Start() error {
	if s.sync != nil {
		if _, err := s.cron.AddFunc(s.syncSchedule, func() {
			ctx := context.Background()
			if err := s.sync(ctx); err != nil {
				s.log.Warn("scheduled sync failed", zap.Error(err))
			}
		}); err != nil {
			return err
		}
	}

	if s.history != nil && s.retentionDays > 0 {
		if _, err := s.cron.AddFunc(s.cleanupSchedule, func() {
			ctx := context.Background()
			if _, err := s.history.CleanupOldDays(ctx, s.tenantID, s.retentionDays); err != nil {
				s.log.Warn("sync history cleanup failed", zap.Error(err))
			}
			if s.queries != nil {
				if _, err := s.queries.CleanupOlderThan(ctx, s.tenantID, defaultQueryRetention); err != nil {
					s.log.Warn("query history cleanup failed", zap.Error(err))
				}
			}
		}); err != nil {
			return err
		}
	}

	s.cron.Start()
	return nil
}

// Stop halts the scheduler, waiting for running jobs to finish.
func (s *Scheduler) Stop(ctx context.Context) error {
	stopped := s.cron.Stop()
	select {
	case <-stopped.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunOnce executes all maintenance work immediately, aggregating errors.
// Used by the one-shot CLI mode.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	var errs error

	if s.sync != nil {
		if err := s.sync(ctx); err != nil {
			errs = multierr.Append(errs, err)
		}
	}

	if s.history != nil && s.retentionDays > 0 {
		if _, err := s.history.CleanupOldDays(ctx, s.tenantID, s.retentionDays); err != nil {
			errs = multierr.Append(errs, err)
		}
	}

	if s.queries != nil {
		if _, err := s.queries.CleanupOlderThan(ctx, s.tenantID, defaultQueryRetention); err != nil {
			errs = multierr.Append(errs, err)
		}
	}

	return errs
}
