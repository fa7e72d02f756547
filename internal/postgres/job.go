package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/AdansBatista/orca-sub008/internal/domain"
)

// jobRetryBaseDelay is the first requeue delay; each further attempt doubles it.
const jobRetryBaseDelay = 30 * time.Second

// JobService implements domain.JobService using PostgreSQL. The jobs
// table doubles as the queue; claims use FOR UPDATE SKIP LOCKED so
// multiple workers can poll the same table safely.
type JobService struct {
	db *pgxpool.Pool
}

// Compile-time check that JobService implements domain.JobService.
var _ domain.JobService = (*JobService)(nil)

// NewJobService creates a new PostgreSQL-backed job queue.
func NewJobService(db *pgxpool.Pool) *JobService {
	return &JobService{db: db}
}

const jobColumns = `id, clinic_id, job_type, queue, payload, priority, status,
	retry_count, max_retries, scheduled_at, timeout_seconds, worker_id,
	last_error, started_at, completed_at, created_at, updated_at`

// Enqueue inserts a queued job. A zero ScheduledAt means runnable now.
func (s *JobService) Enqueue(ctx context.Context, params domain.EnqueueJobParams) (*domain.Job, error) {
	const op = "job.enqueue"

	if params.JobType == "" {
		return nil, domain.Invalid(op, "job type is required")
	}

	queue := params.Queue
	if queue == "" {
		queue = "default"
	}
	scheduledAt := params.ScheduledAt
	if scheduledAt.IsZero() {
		scheduledAt = time.Now().UTC()
	}
	payload := params.Payload
	if len(payload) == 0 {
		payload = []byte(`{}`)
	}

	row := s.db.QueryRow(ctx, `
		INSERT INTO jobs (
			clinic_id, job_type, queue, payload, priority,
			max_retries, scheduled_at, timeout_seconds
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING `+jobColumns,
		pgUUID(params.ClinicID), params.JobType, queue, []byte(payload),
		params.Priority, params.MaxRetries, pgTimestamptz(scheduledAt), params.TimeoutSeconds,
	)

	job, err := scanJob(row)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to enqueue job")
	}

	return job, nil
}

// ClaimNext atomically claims the next runnable job. Higher priority
// first, then earliest scheduled. SKIP LOCKED keeps concurrent workers
// from contending on the same row.
func (s *JobService) ClaimNext(ctx context.Context, params domain.ClaimJobParams) (*domain.Job, error) {
	const op = "job.claim"

	if params.WorkerID == "" {
		return nil, domain.Invalid(op, "worker id is required")
	}

	row := s.db.QueryRow(ctx, `
		WITH next AS (
			SELECT id FROM jobs
			WHERE status = 'queued'
			  AND scheduled_at <= now()
			  AND ($2 = '' OR queue = $2)
			  AND ($3::uuid IS NULL OR clinic_id = $3)
			ORDER BY priority DESC, scheduled_at
			FOR UPDATE SKIP LOCKED
			LIMIT 1
		)
		UPDATE jobs SET
			status = 'running',
			worker_id = $1,
			started_at = now(),
			updated_at = now()
		FROM next
		WHERE jobs.id = next.id
		RETURNING jobs.id, jobs.clinic_id, jobs.job_type, jobs.queue, jobs.payload,
			jobs.priority, jobs.status, jobs.retry_count, jobs.max_retries,
			jobs.scheduled_at, jobs.timeout_seconds, jobs.worker_id, jobs.last_error,
			jobs.started_at, jobs.completed_at, jobs.created_at, jobs.updated_at`,
		params.WorkerID, params.Queue, pgUUIDPtr(params.ClinicID),
	)

	job, err := scanJob(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNoJobAvailable
		}
		return nil, domain.Internal(err, op, "failed to claim job")
	}

	return job, nil
}

// Complete marks a running job completed.
func (s *JobService) Complete(ctx context.Context, id uuid.UUID) error {
	const op = "job.complete"

	tag, err := s.db.Exec(ctx, `
		UPDATE jobs SET
			status = 'completed',
			completed_at = now(),
			updated_at = now()
		WHERE id = $1 AND status = 'running'`,
		pgUUID(id),
	)
	if err != nil {
		return domain.Internal(err, op, "failed to complete job")
	}
	if tag.RowsAffected() == 0 {
		return s.runningConflict(ctx, op, id)
	}
	return nil
}

// Fail records a failed attempt. Jobs with budget left are requeued
// with exponential backoff; exhausted jobs land in terminal failed with
// worker and timing preserved for forensics.
func (s *JobService) Fail(ctx context.Context, params domain.FailJobParams) (*domain.Job, error) {
	const op = "job.fail"

	var job *domain.Job
	err := withTx(ctx, s.db, func(tx pgx.Tx) error {
		var retryCount, maxRetries int32
		err := tx.QueryRow(ctx,
			`SELECT retry_count, max_retries FROM jobs WHERE id = $1 AND status = 'running' FOR UPDATE`,
			pgUUID(params.ID),
		).Scan(&retryCount, &maxRetries)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return s.runningConflict(ctx, op, params.ID)
			}
			return domain.Internal(err, op, "failed to load job")
		}

		var row pgx.Row
		if retryCount+1 >= maxRetries {
			row = tx.QueryRow(ctx, `
				UPDATE jobs SET
					status = 'failed',
					retry_count = retry_count + 1,
					last_error = $2,
					completed_at = now(),
					updated_at = now()
				WHERE id = $1
				RETURNING `+jobColumns,
				pgUUID(params.ID), params.ErrorMessage,
			)
		} else {
			delay := jobRetryBaseDelay << uint(retryCount)
			row = tx.QueryRow(ctx, `
				UPDATE jobs SET
					status = 'queued',
					retry_count = retry_count + 1,
					last_error = $2,
					scheduled_at = now() + $3,
					worker_id = '',
					started_at = NULL,
					updated_at = now()
				WHERE id = $1
				RETURNING `+jobColumns,
				pgUUID(params.ID), params.ErrorMessage, delay,
			)
		}

		job, err = scanJob(row)
		if err != nil {
			return domain.Internal(err, op, "failed to record job failure")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return job, nil
}

// ReleaseStale requeues running jobs whose attempt started before the
// cutoff. Covers workers that died mid-job; the retry budget is not
// consumed because the attempt's outcome is unknown.
func (s *JobService) ReleaseStale(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE jobs SET
			status = 'queued',
			worker_id = '',
			started_at = NULL,
			last_error = 'released: worker timed out or died',
			updated_at = now()
		WHERE status = 'running' AND started_at < $1`,
		pgTimestamptz(cutoff),
	)
	if err != nil {
		return 0, domain.Internal(err, "job.release_stale", "failed to release stale jobs")
	}
	return tag.RowsAffected(), nil
}

// DeleteCompletedBefore prunes completed jobs older than the cutoff.
// Failed jobs are retained until an operator clears them.
func (s *JobService) DeleteCompletedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.db.Exec(ctx, `
		DELETE FROM jobs WHERE status = 'completed' AND completed_at < $1`,
		pgTimestamptz(cutoff),
	)
	if err != nil {
		return 0, domain.Internal(err, "job.prune", "failed to prune completed jobs")
	}
	return tag.RowsAffected(), nil
}

// runningConflict explains why an update guarded on running matched no rows.
func (s *JobService) runningConflict(ctx context.Context, op string, id uuid.UUID) error {
	var status string
	err := s.db.QueryRow(ctx, `SELECT status FROM jobs WHERE id = $1`, pgUUID(id)).Scan(&status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrJobNotFound
		}
		return domain.Internal(err, op, "failed to load job status")
	}
	return domain.Errorf(domain.ECONFLICT, op, "expected status running, found %s", status)
}

// =============================================================================
// MAPPING HELPERS
// =============================================================================

func scanJob(row pgx.Row) (*domain.Job, error) {
	var (
		id, clinicID           pgtype.UUID
		scheduledAt            pgtype.Timestamptz
		startedAt, completedAt pgtype.Timestamptz
		createdAt, updatedAt   pgtype.Timestamptz
		status                 string
		job                    domain.Job
	)

	err := row.Scan(
		&id, &clinicID, &job.JobType, &job.Queue, &job.Payload, &job.Priority,
		&status, &job.RetryCount, &job.MaxRetries, &scheduledAt,
		&job.TimeoutSeconds, &job.WorkerID, &job.LastError,
		&startedAt, &completedAt, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	job.ID = uuidValue(id)
	job.ClinicID = uuidValue(clinicID)
	job.Status = domain.JobStatus(status)
	job.ScheduledAt = tsValue(scheduledAt)
	job.StartedAt = tsPtr(startedAt)
	job.CompletedAt = tsPtr(completedAt)
	job.CreatedAt = tsValue(createdAt)
	job.UpdatedAt = tsValue(updatedAt)
	return &job, nil
}
