package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/AdansBatista/orca-sub008/internal/domain"
	"github.com/AdansBatista/orca-sub008/internal/email"
	"github.com/AdansBatista/orca-sub008/internal/telemetry"
)

// Job type constants for notification jobs
const (
	JobTypePaymentFailedNotification = "notification:payment_failed"
	JobTypePaymentReceipt            = "notification:payment_receipt"
)

// Notification job payloads (JSON-serializable)

// PaymentFailedPayload carries everything the failure mail needs. The
// processor resolves recipient addresses at send time so stale contact
// data is never baked into the queue.
type PaymentFailedPayload struct {
	ClinicID           uuid.UUID `json:"clinic_id"`
	ScheduledPaymentID uuid.UUID `json:"scheduled_payment_id"`

	// AccountID is zero when the failure happened before the plan's
	// account could be resolved.
	AccountID uuid.UUID `json:"account_id"`

	Amount         decimal.Decimal `json:"amount"`
	DueDate        time.Time       `json:"due_date"`
	Reason         string          `json:"reason"`
	RetryScheduled bool            `json:"retry_scheduled"`
	NextRetryDate  *time.Time      `json:"next_retry_date,omitempty"`
}

// PaymentReceiptPayload carries the settled charge for the receipt mail.
type PaymentReceiptPayload struct {
	ClinicID           uuid.UUID       `json:"clinic_id"`
	AccountID          uuid.UUID       `json:"account_id"`
	ScheduledPaymentID uuid.UUID       `json:"scheduled_payment_id"`
	PaymentID          uuid.UUID       `json:"payment_id"`
	PaymentNumber      string          `json:"payment_number"`
	Amount             decimal.Decimal `json:"amount"`
	PaymentDate        time.Time       `json:"payment_date"`
}

// EnqueuePaymentFailedNotification enqueues a failure notification for the
// clinic's billing contact.
func EnqueuePaymentFailedNotification(ctx context.Context, q domain.JobService, payload PaymentFailedPayload) (*domain.Job, error) {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	job, err := q.Enqueue(ctx, domain.EnqueueJobParams{
		ClinicID:       payload.ClinicID,
		JobType:        JobTypePaymentFailedNotification,
		Queue:          "notifications",
		Payload:        payloadJSON,
		Priority:       75,
		MaxRetries:     3,
		ScheduledAt:    time.Now().UTC(),
		TimeoutSeconds: 30,
	})
	if err != nil {
		return nil, err
	}
	if telemetry.Business != nil {
		telemetry.Business.JobsEnqueued.WithLabelValues(payload.ClinicID.String(), JobTypePaymentFailedNotification).Inc()
	}
	return job, nil
}

// EnqueuePaymentReceipt enqueues a receipt for the account holder.
func EnqueuePaymentReceipt(ctx context.Context, q domain.JobService, payload PaymentReceiptPayload) (*domain.Job, error) {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	job, err := q.Enqueue(ctx, domain.EnqueueJobParams{
		ClinicID:       payload.ClinicID,
		JobType:        JobTypePaymentReceipt,
		Queue:          "notifications",
		Payload:        payloadJSON,
		Priority:       60,
		MaxRetries:     3,
		ScheduledAt:    time.Now().UTC(),
		TimeoutSeconds: 30,
	})
	if err != nil {
		return nil, err
	}
	if telemetry.Business != nil {
		telemetry.Business.JobsEnqueued.WithLabelValues(payload.ClinicID.String(), JobTypePaymentReceipt).Inc()
	}
	return job, nil
}

// ProcessNotificationJob processes a notification job based on its type
func ProcessNotificationJob(ctx context.Context, job *domain.Job, emailService *email.Service, clinics domain.ClinicService, accounts domain.AccountService) error {
	switch job.JobType {
	case JobTypePaymentFailedNotification:
		return processPaymentFailed(ctx, job, emailService, clinics, accounts)
	case JobTypePaymentReceipt:
		return processPaymentReceipt(ctx, job, emailService, clinics, accounts)
	default:
		return fmt.Errorf("unknown notification job type: %s", job.JobType)
	}
}

// processPaymentFailed mails the clinic's billing contact about a failed
// charge attempt.
func processPaymentFailed(ctx context.Context, job *domain.Job, emailService *email.Service, clinics domain.ClinicService, accounts domain.AccountService) error {
	var payload PaymentFailedPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("failed to unmarshal payment failed payload: %w", err)
	}

	clinic, err := clinics.GetByID(ctx, payload.ClinicID)
	if err != nil {
		return fmt.Errorf("failed to load clinic: %w", err)
	}
	if clinic.BillingEmail == "" {
		// Nobody to notify; not a job failure.
		return nil
	}

	patientName := ""
	if payload.AccountID != uuid.Nil {
		account, err := accounts.GetByID(ctx, payload.ClinicID, payload.AccountID)
		if err == nil {
			patientName = account.PatientName
		}
	}

	err = emailService.SendPaymentFailed(ctx, email.PaymentFailedEmail{
		Email:              clinic.BillingEmail,
		ClinicName:         clinic.Name,
		PatientName:        patientName,
		ScheduledPaymentID: payload.ScheduledPaymentID.String(),
		Amount:             payload.Amount,
		DueDate:            payload.DueDate,
		Reason:             payload.Reason,
		RetryScheduled:     payload.RetryScheduled,
		NextRetryDate:      payload.NextRetryDate,
	})
	if err != nil {
		if telemetry.Business != nil {
			telemetry.Business.EmailFailed.WithLabelValues(payload.ClinicID.String(), "payment_failed", "send").Inc()
		}
		return err
	}
	if telemetry.Business != nil {
		telemetry.Business.EmailSent.WithLabelValues(payload.ClinicID.String(), "payment_failed").Inc()
	}
	return nil
}

// processPaymentReceipt mails the account holder their receipt.
func processPaymentReceipt(ctx context.Context, job *domain.Job, emailService *email.Service, clinics domain.ClinicService, accounts domain.AccountService) error {
	var payload PaymentReceiptPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("failed to unmarshal payment receipt payload: %w", err)
	}

	account, err := accounts.GetByID(ctx, payload.ClinicID, payload.AccountID)
	if err != nil {
		return fmt.Errorf("failed to load account: %w", err)
	}
	if account.Email == "" {
		return nil
	}

	clinicName := ""
	if clinic, err := clinics.GetByID(ctx, payload.ClinicID); err == nil {
		clinicName = clinic.Name
	}

	err = emailService.SendPaymentReceipt(ctx, email.PaymentReceiptEmail{
		Email:         account.Email,
		ClinicName:    clinicName,
		PatientName:   account.PatientName,
		PaymentNumber: payload.PaymentNumber,
		Amount:        payload.Amount,
		PaymentDate:   payload.PaymentDate,
	})
	if err != nil {
		if telemetry.Business != nil {
			telemetry.Business.EmailFailed.WithLabelValues(payload.ClinicID.String(), "payment_receipt", "send").Inc()
		}
		return err
	}
	if telemetry.Business != nil {
		telemetry.Business.EmailSent.WithLabelValues(payload.ClinicID.String(), "payment_receipt").Inc()
	}
	return nil
}

// IsNotificationJob checks if a job type belongs to the notification namespace.
func IsNotificationJob(jobType string) bool {
	return strings.HasPrefix(jobType, "notification:")
}
