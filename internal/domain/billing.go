package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// =============================================================================
// RECURRING BILLING CONFIGURATION
// =============================================================================

// Default retry policy applied when a config leaves the fields zero.
const (
	DefaultMaxRetryAttempts = 3
	FallbackRetryDelayDays  = 7
)

// DefaultRetryDelayDays returns the standard backoff ladder: the first
// retry waits 1 day, the second 3, the third 7.
func DefaultRetryDelayDays() []int {
	return []int{1, 3, 7}
}

// RecurringBillingConfig controls the retry policy and notification flags
// of the billing engine. The engine is constructed with one of these;
// individual operations may pass a partial override whose zero-valued
// fields inherit the engine's config.
type RecurringBillingConfig struct {
	// MaxRetryAttempts bounds how many times a failed charge is retried
	// before the installment goes terminal FAILED.
	MaxRetryAttempts int `json:"max_retry_attempts"`

	// RetryDelayDays[n] is the wait in days before retry n (zero-based).
	// Beyond the ladder the last element applies, or 7 days if empty.
	RetryDelayDays []int `json:"retry_delay_days"`

	// NotifyOnFailure enqueues a failure notification for the clinic's
	// billing contact after each failed attempt.
	NotifyOnFailure bool `json:"notify_on_failure"`

	// NotifyOnSuccess enqueues a receipt for the account holder after a
	// successful charge.
	NotifyOnSuccess bool `json:"notify_on_success"`
}

// DefaultRecurringBillingConfig returns the stock policy.
func DefaultRecurringBillingConfig() RecurringBillingConfig {
	return RecurringBillingConfig{
		MaxRetryAttempts: DefaultMaxRetryAttempts,
		RetryDelayDays:   DefaultRetryDelayDays(),
	}
}

// WithDefaults fills zero-valued fields from base. Boolean flags merge by
// OR so an override can enable notifications but not silently disable
// ones the engine default turned on.
func (c RecurringBillingConfig) WithDefaults(base RecurringBillingConfig) RecurringBillingConfig {
	merged := c
	if merged.MaxRetryAttempts <= 0 {
		merged.MaxRetryAttempts = base.MaxRetryAttempts
	}
	if len(merged.RetryDelayDays) == 0 {
		merged.RetryDelayDays = base.RetryDelayDays
	}
	merged.NotifyOnFailure = merged.NotifyOnFailure || base.NotifyOnFailure
	merged.NotifyOnSuccess = merged.NotifyOnSuccess || base.NotifyOnSuccess
	return merged
}

// RetryDelayFor returns the wait in days before the retry numbered
// retryCount (zero-based). Past the end of the ladder the last element
// applies; an empty ladder falls back to 7 days.
func (c RecurringBillingConfig) RetryDelayFor(retryCount int) int {
	if len(c.RetryDelayDays) == 0 {
		return FallbackRetryDelayDays
	}
	if retryCount < 0 {
		retryCount = 0
	}
	if retryCount >= len(c.RetryDelayDays) {
		return c.RetryDelayDays[len(c.RetryDelayDays)-1]
	}
	return c.RetryDelayDays[retryCount]
}

// =============================================================================
// ENGINE RESULTS
// =============================================================================

// ProcessingResult reports the outcome of driving one scheduled payment
// through the state machine. Business failures are carried here rather
// than returned as Go errors; only infrastructure failures surface as
// errors from the engine.
type ProcessingResult struct {
	ScheduledPaymentID uuid.UUID     `json:"scheduled_payment_id"`
	Success            bool          `json:"success"`
	Status             PaymentStatus `json:"status"`

	// PaymentID is set on success: the ledger entry created by the charge.
	PaymentID *uuid.UUID `json:"payment_id,omitempty"`

	// Error is the human-readable failure reason, empty on success.
	Error string `json:"error,omitempty"`

	// RetryScheduled is true when the failure was recoverable and the
	// installment was returned to PENDING with a future due date.
	RetryScheduled bool       `json:"retry_scheduled,omitempty"`
	NextRetryDate  *time.Time `json:"next_retry_date,omitempty"`
}

// AttentionSummary is the operator dashboard aggregate: counts of
// payments needing some form of attention.
type AttentionSummary struct {
	Failed       int64 `json:"failed"`
	Overdue      int64 `json:"overdue"`
	DueToday     int64 `json:"due_today"`
	UpcomingWeek int64 `json:"upcoming_week"`
}

// GenerateScheduleParams describes a bulk installment creation request.
type GenerateScheduleParams struct {
	ClinicID  uuid.UUID
	PlanID    uuid.UUID
	StartDate time.Time
	Count     int
	Amount    decimal.Decimal
	Frequency PaymentFrequency
}

// =============================================================================
// RECURRING BILLING ENGINE
// =============================================================================

// RecurringBillingService orchestrates due-payment discovery, gateway
// invocation, retry scheduling, balance reconciliation, and plan
// completion detection.
type RecurringBillingService interface {
	// ProcessDuePayments claims every due PENDING installment for the
	// clinic and processes each sequentially, earliest due date first.
	// Individual failures never abort the batch. cfg may be nil to use
	// the engine's configured defaults.
	ProcessDuePayments(ctx context.Context, clinicID uuid.UUID, cfg *RecurringBillingConfig) ([]ProcessingResult, error)

	// ProcessScheduledPayment drives a single installment through the
	// state machine: claim, precondition checks, gateway charge, then
	// finalize or retry scheduling.
	ProcessScheduledPayment(ctx context.Context, clinicID, id uuid.UUID, cfg *RecurringBillingConfig) (ProcessingResult, error)

	// RetryScheduledPayment is the operator-triggered retry. COMPLETED
	// installments are rejected without mutation; anything else is
	// force-reset to PENDING due now and re-enters the state machine.
	RetryScheduledPayment(ctx context.Context, clinicID, id uuid.UUID, cfg *RecurringBillingConfig) (ProcessingResult, error)

	// SkipScheduledPayment moves a non-terminal installment to SKIPPED,
	// recording the reason. Used during plan restructuring.
	SkipScheduledPayment(ctx context.Context, clinicID, id uuid.UUID, reason string) error

	// GenerateScheduledPayments bulk-creates PENDING installments with
	// due dates advanced by the plan frequency.
	GenerateScheduledPayments(ctx context.Context, params GenerateScheduleParams) ([]ScheduledPayment, error)

	// PaymentsNeedingAttention returns the dashboard counts. Read-only.
	PaymentsNeedingAttention(ctx context.Context, clinicID uuid.UUID) (*AttentionSummary, error)

	// ReconcileStalePayments recovers rows stuck in PROCESSING longer
	// than olderThan: the gateway call is re-issued under the original
	// idempotency key and the recorded outcome applied.
	ReconcileStalePayments(ctx context.Context, clinicID uuid.UUID, olderThan time.Duration) ([]ProcessingResult, error)
}
