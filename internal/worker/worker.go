package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/AdansBatista/orca-sub008/internal/domain"
	"github.com/AdansBatista/orca-sub008/internal/email"
	"github.com/AdansBatista/orca-sub008/internal/jobs"
	"github.com/AdansBatista/orca-sub008/internal/telemetry"
)

const (
	// staleJobAge is how long a running attempt may sit before it is
	// assumed to belong to a dead worker and requeued. Longer than any
	// job timeout we enqueue.
	staleJobAge          = 10 * time.Minute
	staleReleaseInterval = time.Minute

	// defaultJobTimeout bounds attempts on jobs enqueued without one.
	defaultJobTimeout = 60 * time.Second

	defaultStaleSweepAge = 30 * time.Minute
)

// Config holds worker configuration
type Config struct {
	// WorkerID uniquely identifies this worker instance
	WorkerID string

	// PollInterval is how often to check for new jobs
	PollInterval time.Duration

	// MaxConcurrency is the maximum number of jobs to process concurrently
	MaxConcurrency int

	// Queue name to process (empty string = all queues)
	Queue string

	// ClinicID to process jobs for (nil = all clinics)
	ClinicID *uuid.UUID
}

// Worker processes background jobs
type Worker struct {
	config       Config
	queue        domain.JobService
	billing      domain.RecurringBillingService
	emailService *email.Service
	clinics      domain.ClinicService
	accounts     domain.AccountService
	logger       *slog.Logger

	wg sync.WaitGroup
}

// NewWorker creates a new background job worker
func NewWorker(
	queue domain.JobService,
	billing domain.RecurringBillingService,
	emailService *email.Service,
	clinics domain.ClinicService,
	accounts domain.AccountService,
	config Config,
	logger *slog.Logger,
) *Worker {
	// Set defaults
	if config.WorkerID == "" {
		config.WorkerID = fmt.Sprintf("worker-%s", uuid.New().String()[:8])
	}
	if config.PollInterval == 0 {
		config.PollInterval = 1 * time.Second
	}
	if config.MaxConcurrency == 0 {
		config.MaxConcurrency = 5
	}

	return &Worker{
		config:       config,
		queue:        queue,
		billing:      billing,
		emailService: emailService,
		clinics:      clinics,
		accounts:     accounts,
		logger:       logger,
	}
}

// Start begins processing jobs until the context is cancelled. In-flight
// jobs finish their attempt before Start returns.
func (w *Worker) Start(ctx context.Context) error {
	w.logger.Info("worker starting",
		"worker_id", w.config.WorkerID,
		"queue", w.config.Queue,
		"poll_interval", w.config.PollInterval,
		"max_concurrency", w.config.MaxConcurrency,
	)

	ticker := time.NewTicker(w.config.PollInterval)
	defer ticker.Stop()

	release := time.NewTicker(staleReleaseInterval)
	defer release.Stop()

	// Semaphore for concurrency control
	sem := make(chan struct{}, w.config.MaxConcurrency)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("worker shutting down", "worker_id", w.config.WorkerID)
			w.wg.Wait()
			return ctx.Err()

		case <-release.C:
			w.releaseStale(ctx)

		case <-ticker.C:
			select {
			case sem <- struct{}{}:
				w.wg.Add(1)
				go func() {
					defer w.wg.Done()
					defer func() { <-sem }()
					w.claimAndProcess(ctx)
				}()
			default:
				// At max concurrency, skip this poll
			}
		}
	}
}

// claimAndProcess claims and processes a single job
func (w *Worker) claimAndProcess(ctx context.Context) {
	job, err := w.queue.ClaimNext(ctx, domain.ClaimJobParams{
		WorkerID: w.config.WorkerID,
		Queue:    w.config.Queue,
		ClinicID: w.config.ClinicID,
	})
	if err != nil {
		if !errors.Is(err, domain.ErrNoJobAvailable) {
			w.logger.Warn("failed to claim job", "worker_id", w.config.WorkerID, "error", err)
		}
		return
	}

	w.logger.Info("processing job",
		"job_id", job.ID,
		"job_type", job.JobType,
		"retry_count", job.RetryCount,
	)

	started := time.Now()
	err = w.processJob(ctx, job)
	if telemetry.Business != nil {
		telemetry.Business.JobDuration.WithLabelValues(job.ClinicID.String(), job.JobType).Observe(time.Since(started).Seconds())
	}

	// Outcome bookkeeping must land even during shutdown.
	bookCtx := context.WithoutCancel(ctx)

	if err != nil {
		w.logger.Error("job failed",
			"job_id", job.ID,
			"job_type", job.JobType,
			"retry_count", job.RetryCount,
			"error", err,
		)
		if telemetry.Business != nil {
			telemetry.Business.JobsFailed.WithLabelValues(job.ClinicID.String(), job.JobType, "processing").Inc()
		}
		telemetry.CaptureErrorWithClinic(err, job.ClinicID.String(), map[string]interface{}{
			"job_id":      job.ID.String(),
			"job_type":    job.JobType,
			"retry_count": job.RetryCount,
		})
		if _, failErr := w.queue.Fail(bookCtx, domain.FailJobParams{ID: job.ID, ErrorMessage: err.Error()}); failErr != nil {
			w.logger.Warn("failed to record job failure", "job_id", job.ID, "error", failErr)
		}
		return
	}

	w.logger.Info("job completed",
		"job_id", job.ID,
		"job_type", job.JobType,
	)
	if telemetry.Business != nil {
		telemetry.Business.JobsProcessed.WithLabelValues(job.ClinicID.String(), job.JobType).Inc()
	}
	if err := w.queue.Complete(bookCtx, job.ID); err != nil {
		w.logger.Warn("failed to mark job completed", "job_id", job.ID, "error", err)
	}
}

// processJob dispatches a single claimed job to its processor.
func (w *Worker) processJob(ctx context.Context, job *domain.Job) error {
	timeout := time.Duration(job.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = defaultJobTimeout
	}

	// A claimed job finishes its attempt even when the worker is shutting
	// down; the job timeout still bounds it.
	jobCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	jobCtx = jobContext(jobCtx, job)

	switch {
	case jobs.IsBillingJob(job.JobType):
		return w.processBillingJob(jobCtx, job)
	case jobs.IsNotificationJob(job.JobType):
		return jobs.ProcessNotificationJob(jobCtx, job, w.emailService, w.clinics, w.accounts)
	}

	return fmt.Errorf("unknown job type: %s", job.JobType)
}

// processBillingJob processes a billing job based on its type
func (w *Worker) processBillingJob(ctx context.Context, job *domain.Job) error {
	switch job.JobType {
	case jobs.JobTypeProcessDuePayments:
		var payload jobs.ProcessDuePaymentsPayload
		if err := json.Unmarshal(job.Payload, &payload); err != nil {
			return fmt.Errorf("failed to unmarshal process due payload: %w", err)
		}

		results, err := w.billing.ProcessDuePayments(ctx, payload.ClinicID, nil)
		if err != nil {
			return err
		}

		succeeded := 0
		for i := range results {
			if results[i].Success {
				succeeded++
			}
		}
		w.logger.Info("due payment run finished",
			"clinic_id", payload.ClinicID,
			"processed", len(results),
			"succeeded", succeeded,
			"failed", len(results)-succeeded,
		)
		return nil

	case jobs.JobTypeReconcilePayments:
		var payload jobs.ReconcilePaymentsPayload
		if err := json.Unmarshal(job.Payload, &payload); err != nil {
			return fmt.Errorf("failed to unmarshal reconcile payload: %w", err)
		}

		olderThan := time.Duration(payload.OlderThanMinutes) * time.Minute
		if olderThan <= 0 {
			olderThan = defaultStaleSweepAge
		}

		results, err := w.billing.ReconcileStalePayments(ctx, payload.ClinicID, olderThan)
		if err != nil {
			return err
		}
		if len(results) > 0 {
			w.logger.Info("stale payment sweep finished",
				"clinic_id", payload.ClinicID,
				"reconciled", len(results),
			)
		}
		return nil

	default:
		return fmt.Errorf("unknown billing job type: %s", job.JobType)
	}
}

// releaseStale requeues running jobs whose attempt started too long ago,
// covering workers that died mid-job.
func (w *Worker) releaseStale(ctx context.Context) {
	released, err := w.queue.ReleaseStale(ctx, time.Now().UTC().Add(-staleJobAge))
	if err != nil {
		w.logger.Warn("failed to release stale jobs", "worker_id", w.config.WorkerID, "error", err)
		return
	}
	if released > 0 {
		w.logger.Warn("released stale jobs", "count", released)
	}
}
