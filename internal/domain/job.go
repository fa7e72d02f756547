package domain

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// BACKGROUND JOB DOMAIN TYPES
// =============================================================================

// JobStatus represents the lifecycle state of a background job.
type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// Job is a unit of deferred work persisted in Postgres. Workers claim
// jobs with row locks, so a job is only ever running on one worker.
type Job struct {
	ID       uuid.UUID
	ClinicID uuid.UUID

	// JobType routes the job to a processor, e.g. "billing:process_due".
	JobType string

	// Queue partitions jobs so workers can be dedicated to one stream.
	Queue string

	// Payload is the JSON-encoded job arguments.
	Payload json.RawMessage

	// Priority orders claims within a queue. Higher runs first.
	Priority int32

	Status     JobStatus
	RetryCount int32
	MaxRetries int32

	// ScheduledAt is the earliest time a worker may claim the job.
	ScheduledAt time.Time

	// TimeoutSeconds bounds a single processing attempt.
	TimeoutSeconds int32

	WorkerID    string
	LastError   string
	StartedAt   *time.Time
	CompletedAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// EnqueueJobParams holds the fields for inserting a new job.
type EnqueueJobParams struct {
	ClinicID       uuid.UUID
	JobType        string
	Queue          string
	Payload        json.RawMessage
	Priority       int32
	MaxRetries     int32
	ScheduledAt    time.Time
	TimeoutSeconds int32
}

// ClaimJobParams identifies the worker and optional filters for a claim.
type ClaimJobParams struct {
	WorkerID string

	// Queue limits the claim to one queue. Empty claims from all queues.
	Queue string

	// ClinicID limits the claim to one clinic. Nil claims for all clinics.
	ClinicID *uuid.UUID
}

// FailJobParams records a failed processing attempt. Jobs with retries
// remaining go back to queued with a delayed ScheduledAt; exhausted jobs
// land in failed.
type FailJobParams struct {
	ID           uuid.UUID
	ErrorMessage string
}

// JobService is the persistence port for the background job queue.
type JobService interface {
	// Enqueue inserts a queued job.
	Enqueue(ctx context.Context, params EnqueueJobParams) (*Job, error)

	// ClaimNext atomically claims the next runnable job and marks it
	// running. Returns ErrNoJobAvailable when the queue is empty.
	ClaimNext(ctx context.Context, params ClaimJobParams) (*Job, error)

	// Complete marks a running job completed.
	Complete(ctx context.Context, id uuid.UUID) error

	// Fail records an attempt failure and either requeues or fails the
	// job depending on its retry budget.
	Fail(ctx context.Context, params FailJobParams) (*Job, error)

	// ReleaseStale requeues running jobs whose attempt started before
	// the cutoff, covering workers that died mid-job.
	ReleaseStale(ctx context.Context, cutoff time.Time) (int64, error)

	// DeleteCompletedBefore prunes completed jobs older than the cutoff.
	DeleteCompletedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Job errors.
var (
	ErrNoJobAvailable = &Error{Code: ENOTFOUND, Message: "No job available"}
	ErrJobNotFound    = &Error{Code: ENOTFOUND, Message: "Job not found"}
	ErrJobNotRunning  = &Error{Code: ECONFLICT, Message: "Job is not running"}
)
