// Package scheduler triggers the recurring billing runs. It owns no
// business logic: each tick fans out per-clinic jobs onto the queue and
// the workers do the rest.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/AdansBatista/orca-sub008/internal/domain"
	"github.com/AdansBatista/orca-sub008/internal/jobs"
)

// Config holds the cron specs for the recurring runs, in standard
// 5-field cron format.
type Config struct {
	// DueRunSpec schedules the due-payment run.
	DueRunSpec string

	// ReconcileSpec schedules the stale-PROCESSING sweep.
	ReconcileSpec string

	// CleanupSpec schedules completed-job pruning.
	CleanupSpec string

	// StaleAge is how long a payment may sit in PROCESSING before the
	// sweep reconciles it.
	StaleAge time.Duration

	// JobRetention is how long completed jobs are kept before pruning.
	JobRetention time.Duration
}

// Scheduler enqueues recurring billing work for every active clinic.
type Scheduler struct {
	config  Config
	queue   domain.JobService
	clinics domain.ClinicService
	cron    *cron.Cron
	logger  *slog.Logger
}

// NewScheduler creates a scheduler with defaults filled in: the due run
// nightly at 02:00, the reconcile sweep every 30 minutes, job cleanup at
// 04:00 with 30 days of retention. An entry that overruns its interval
// is skipped, never stacked.
func NewScheduler(queue domain.JobService, clinics domain.ClinicService, config Config, logger *slog.Logger) *Scheduler {
	if config.DueRunSpec == "" {
		config.DueRunSpec = "0 2 * * *"
	}
	if config.ReconcileSpec == "" {
		config.ReconcileSpec = "*/30 * * * *"
	}
	if config.CleanupSpec == "" {
		config.CleanupSpec = "0 4 * * *"
	}
	if config.StaleAge == 0 {
		config.StaleAge = 30 * time.Minute
	}
	if config.JobRetention == 0 {
		config.JobRetention = 30 * 24 * time.Hour
	}

	c := cron.New(cron.WithChain(
		cron.SkipIfStillRunning(cronLogger{logger}),
		cron.Recover(cronLogger{logger}),
	))

	return &Scheduler{
		config:  config,
		queue:   queue,
		clinics: clinics,
		cron:    c,
		logger:  logger,
	}
}

// Start registers the cron entries and begins ticking.
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.config.DueRunSpec, s.runDuePayments); err != nil {
		return fmt.Errorf("invalid due run spec %q: %w", s.config.DueRunSpec, err)
	}
	if _, err := s.cron.AddFunc(s.config.ReconcileSpec, s.runReconcile); err != nil {
		return fmt.Errorf("invalid reconcile spec %q: %w", s.config.ReconcileSpec, err)
	}
	if _, err := s.cron.AddFunc(s.config.CleanupSpec, s.runCleanup); err != nil {
		return fmt.Errorf("invalid cleanup spec %q: %w", s.config.CleanupSpec, err)
	}

	s.cron.Start()
	s.logger.Info("scheduler started",
		"due_run", s.config.DueRunSpec,
		"reconcile", s.config.ReconcileSpec,
		"cleanup", s.config.CleanupSpec,
	)
	return nil
}

// Stop halts the ticker and waits for running entries to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("scheduler stopped")
}

// runDuePayments enqueues the due-payment run for every active clinic.
// Per-clinic failures are logged and skipped; one broken clinic must not
// hold up the rest.
func (s *Scheduler) runDuePayments() {
	ctx, cancel := s.runContext()
	defer cancel()

	clinics, err := s.clinics.ListActive(ctx)
	if err != nil {
		s.logger.Error("failed to list active clinics for due run", "error", err)
		return
	}

	enqueued := 0
	for i := range clinics {
		if _, err := jobs.EnqueueProcessDuePayments(ctx, s.queue, clinics[i].ID); err != nil {
			s.logger.Error("failed to enqueue due payment run",
				"clinic_id", clinics[i].ID,
				"error", err,
			)
			continue
		}
		enqueued++
	}
	s.logger.Info("due payment runs enqueued", "clinics", enqueued)
}

// runReconcile enqueues the stale-PROCESSING sweep for every active clinic.
func (s *Scheduler) runReconcile() {
	ctx, cancel := s.runContext()
	defer cancel()

	clinics, err := s.clinics.ListActive(ctx)
	if err != nil {
		s.logger.Error("failed to list active clinics for reconcile sweep", "error", err)
		return
	}

	for i := range clinics {
		if _, err := jobs.EnqueueReconcilePayments(ctx, s.queue, clinics[i].ID, s.config.StaleAge); err != nil {
			s.logger.Error("failed to enqueue reconcile sweep",
				"clinic_id", clinics[i].ID,
				"error", err,
			)
		}
	}
}

// runCleanup prunes completed jobs past the retention window.
func (s *Scheduler) runCleanup() {
	ctx, cancel := s.runContext()
	defer cancel()

	deleted, err := s.queue.DeleteCompletedBefore(ctx, time.Now().UTC().Add(-s.config.JobRetention))
	if err != nil {
		s.logger.Error("failed to prune completed jobs", "error", err)
		return
	}
	if deleted > 0 {
		s.logger.Info("pruned completed jobs", "deleted", deleted)
	}
}

func (s *Scheduler) runContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	return domain.NewContextWithActor(ctx, domain.ActorScheduler), cancel
}

// cronLogger adapts slog to the cron logger interface. Info carries the
// skip notices emitted when an entry overruns its interval.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Info(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error(msg, append(keysAndValues, "error", err)...)
}
