package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/AdansBatista/orca-sub008/internal/domain"
	"github.com/AdansBatista/orca-sub008/internal/telemetry"
)

// Job type constants for billing jobs
const (
	JobTypeProcessDuePayments = "billing:process_due"
	JobTypeReconcilePayments  = "billing:reconcile"
)

// Billing job payloads (JSON-serializable)

// ProcessDuePaymentsPayload identifies the clinic whose due installments
// should be charged. The engine claims everything due at run time, so the
// payload carries no date.
type ProcessDuePaymentsPayload struct {
	ClinicID uuid.UUID `json:"clinic_id"`
}

// ReconcilePaymentsPayload identifies the clinic to sweep for payments
// stuck in PROCESSING.
type ReconcilePaymentsPayload struct {
	ClinicID         uuid.UUID `json:"clinic_id"`
	OlderThanMinutes int       `json:"older_than_minutes"`
}

// EnqueueProcessDuePayments enqueues the nightly due-payment run for a clinic.
func EnqueueProcessDuePayments(ctx context.Context, q domain.JobService, clinicID uuid.UUID) (*domain.Job, error) {
	payloadJSON, err := json.Marshal(ProcessDuePaymentsPayload{ClinicID: clinicID})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	job, err := q.Enqueue(ctx, domain.EnqueueJobParams{
		ClinicID:       clinicID,
		JobType:        JobTypeProcessDuePayments,
		Queue:          "billing",
		Payload:        payloadJSON,
		Priority:       100,
		MaxRetries:     3,
		ScheduledAt:    time.Now().UTC(),
		TimeoutSeconds: 300, // A clinic batch can carry many gateway calls
	})
	if err != nil {
		return nil, err
	}
	if telemetry.Business != nil {
		telemetry.Business.JobsEnqueued.WithLabelValues(clinicID.String(), JobTypeProcessDuePayments).Inc()
	}
	return job, nil
}

// EnqueueReconcilePayments enqueues the stale-processing sweep for a clinic.
func EnqueueReconcilePayments(ctx context.Context, q domain.JobService, clinicID uuid.UUID, olderThan time.Duration) (*domain.Job, error) {
	payload := ReconcilePaymentsPayload{
		ClinicID:         clinicID,
		OlderThanMinutes: int(olderThan.Minutes()),
	}
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	job, err := q.Enqueue(ctx, domain.EnqueueJobParams{
		ClinicID:       clinicID,
		JobType:        JobTypeReconcilePayments,
		Queue:          "billing",
		Payload:        payloadJSON,
		Priority:       50, // Recovery sweep can wait behind the main run
		MaxRetries:     3,
		ScheduledAt:    time.Now().UTC(),
		TimeoutSeconds: 300,
	})
	if err != nil {
		return nil, err
	}
	if telemetry.Business != nil {
		telemetry.Business.JobsEnqueued.WithLabelValues(clinicID.String(), JobTypeReconcilePayments).Inc()
	}
	return job, nil
}

// IsBillingJob checks if a job type belongs to the billing namespace.
func IsBillingJob(jobType string) bool {
	return strings.HasPrefix(jobType, "billing:")
}
