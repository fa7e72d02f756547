package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// =============================================================================
// SCHEDULED PAYMENT DOMAIN TYPES
// =============================================================================

// PaymentStatus represents the lifecycle state of a scheduled payment.
//
// Allowed transitions:
//
//	PENDING    -> PROCESSING, SKIPPED
//	PROCESSING -> COMPLETED, PENDING (retry), FAILED, SKIPPED
//	COMPLETED  -> (terminal)
//	FAILED     -> (terminal)
//	SKIPPED    -> (terminal)
//
// PROCESSING is a transient lock state held only for the duration of a
// gateway call. Terminal rows are retained for audit and never deleted.
type PaymentStatus string

const (
	PaymentStatusPending    PaymentStatus = "PENDING"
	PaymentStatusProcessing PaymentStatus = "PROCESSING"
	PaymentStatusCompleted  PaymentStatus = "COMPLETED"
	PaymentStatusFailed     PaymentStatus = "FAILED"
	PaymentStatusSkipped    PaymentStatus = "SKIPPED"
)

// paymentStatusEdges is the closed set of engine-driven transitions.
var paymentStatusEdges = map[PaymentStatus][]PaymentStatus{
	PaymentStatusPending:    {PaymentStatusProcessing, PaymentStatusSkipped},
	PaymentStatusProcessing: {PaymentStatusCompleted, PaymentStatusPending, PaymentStatusFailed, PaymentStatusSkipped},
	PaymentStatusCompleted:  {},
	PaymentStatusFailed:     {},
	PaymentStatusSkipped:    {},
}

// Valid reports whether s is a known payment status.
func (s PaymentStatus) Valid() bool {
	_, ok := paymentStatusEdges[s]
	return ok
}

// Terminal reports whether no further engine-driven transitions exist.
func (s PaymentStatus) Terminal() bool {
	return s == PaymentStatusCompleted || s == PaymentStatusFailed || s == PaymentStatusSkipped
}

// CanTransitionTo reports whether the edge s -> next is allowed.
func (s PaymentStatus) CanTransitionTo(next PaymentStatus) bool {
	for _, allowed := range paymentStatusEdges[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// ValidateTransition is the single gate for status changes. Every store
// update that moves a scheduled payment between states goes through here,
// so an illegal edge can never be persisted.
func ValidateTransition(op string, from, to PaymentStatus) error {
	if !from.Valid() {
		return Errorf(EINVALID, op, "unknown payment status: %s", from)
	}
	if !to.Valid() {
		return Errorf(EINVALID, op, "unknown payment status: %s", to)
	}
	if !from.CanTransitionTo(to) {
		return Errorf(ECONFLICT, op, "illegal status transition: %s -> %s", from, to)
	}
	return nil
}

// PaymentFrequency is the installment cadence of a payment plan.
type PaymentFrequency string

const (
	FrequencyWeekly   PaymentFrequency = "WEEKLY"
	FrequencyBiweekly PaymentFrequency = "BIWEEKLY"
	FrequencyMonthly  PaymentFrequency = "MONTHLY"
)

// Valid reports whether f is a known frequency.
func (f PaymentFrequency) Valid() bool {
	switch f {
	case FrequencyWeekly, FrequencyBiweekly, FrequencyMonthly:
		return true
	}
	return false
}

// Advance returns the due date one frequency step after t.
// Monthly steps use calendar-month arithmetic, so month-length
// normalization follows time.AddDate (Jan 31 + 1 month = Mar 2/3).
func (f PaymentFrequency) Advance(t time.Time) time.Time {
	switch f {
	case FrequencyWeekly:
		return t.AddDate(0, 0, 7)
	case FrequencyBiweekly:
		return t.AddDate(0, 0, 14)
	case FrequencyMonthly:
		return t.AddDate(0, 1, 0)
	}
	return t
}

// ScheduledPayment is one installment obligation under a payment plan.
// Amount is immutable after creation; all other mutable fields are owned
// exclusively by the billing engine.
type ScheduledPayment struct {
	ID            uuid.UUID
	ClinicID      uuid.UUID
	PlanID        uuid.UUID
	Amount        decimal.Decimal
	DueDate       time.Time
	Status        PaymentStatus
	RetryCount    int32
	LastAttemptAt *time.Time
	LastError     string

	// PaymentID references the ledger entry created by a successful charge.
	PaymentID *uuid.UUID

	CreatedAt time.Time
	UpdatedAt time.Time
}

// =============================================================================
// SCHEDULED PAYMENT STORE
// =============================================================================

// FinalizeChargeParams carries everything needed to settle a successful
// gateway charge in one transaction.
type FinalizeChargeParams struct {
	ScheduledPayment *ScheduledPayment

	// GatewayTransactionID is the gateway's identifier for the charge.
	GatewayTransactionID string

	// PaymentDate is the ledger timestamp, normally the gateway response time.
	PaymentDate time.Time

	// Actor is recorded on the balance update for audit.
	Actor string
}

// FinalizeChargeResult reports what the finalize transaction produced.
type FinalizeChargeResult struct {
	PaymentID     uuid.UUID
	PaymentNumber string

	// PlanCompleted is true when this charge settled the plan's last
	// non-terminal installment.
	PlanCompleted bool
}

// ScheduleRetryParams reverts a PROCESSING row to PENDING for a later attempt.
type ScheduleRetryParams struct {
	ID          uuid.UUID
	NextDueDate time.Time
	AttemptedAt time.Time
	Reason      string
}

// MarkFailedParams moves a row to terminal FAILED.
type MarkFailedParams struct {
	ID          uuid.UUID
	AttemptedAt time.Time
	Reason      string
}

// ScheduledPaymentService is the persistence port for scheduled payments.
// Implementations live in the postgres package.
type ScheduledPaymentService interface {
	// CreateBatch inserts a set of PENDING installments in one transaction.
	CreateBatch(ctx context.Context, payments []ScheduledPayment) ([]ScheduledPayment, error)

	// GetByID fetches one scheduled payment scoped to its clinic.
	GetByID(ctx context.Context, clinicID, id uuid.UUID) (*ScheduledPayment, error)

	// ClaimDue atomically claims every PENDING row for the clinic with
	// due date at or before asOf, flipping each to PROCESSING in the same
	// statement. Rows come back ordered by due date ascending. A row
	// claimed here can never be claimed by a concurrent call.
	ClaimDue(ctx context.Context, clinicID uuid.UUID, asOf time.Time) ([]ScheduledPayment, error)

	// Claim conditionally moves a single PENDING row to PROCESSING.
	// Returns ErrPaymentNotPending if the row is in any other state.
	Claim(ctx context.Context, clinicID, id uuid.UUID) (*ScheduledPayment, error)

	// FinalizeCharge settles a successful charge atomically: creates the
	// payment ledger row, marks the scheduled payment COMPLETED with the
	// ledger back-reference, recomputes the account balance, and marks
	// the plan COMPLETED if no non-terminal installments remain.
	FinalizeCharge(ctx context.Context, params FinalizeChargeParams) (*FinalizeChargeResult, error)

	// ScheduleRetry reverts a PROCESSING row to PENDING, increments the
	// retry count, and records the failure.
	ScheduleRetry(ctx context.Context, params ScheduleRetryParams) error

	// MarkFailed moves a row to terminal FAILED, recording the reason.
	MarkFailed(ctx context.Context, params MarkFailedParams) error

	// MarkSkipped moves a non-terminal row to SKIPPED, recording the reason.
	MarkSkipped(ctx context.Context, clinicID, id uuid.UUID, reason string) error

	// ResetForRetry force-resets a non-COMPLETED row to PENDING with the
	// due date set to now. This is the operator escape hatch behind manual
	// retries; COMPLETED rows are rejected with ErrPaymentAlreadyCompleted.
	ResetForRetry(ctx context.Context, clinicID, id uuid.UUID, now time.Time) (*ScheduledPayment, error)

	// ListStaleProcessing returns rows stuck in PROCESSING since before
	// cutoff, oldest first. Input to the reconciliation sweep.
	ListStaleProcessing(ctx context.Context, clinicID uuid.UUID, cutoff time.Time) ([]ScheduledPayment, error)

	// CountAttention aggregates the operator dashboard counts.
	CountAttention(ctx context.Context, clinicID uuid.UUID, now time.Time) (*AttentionSummary, error)
}

// Scheduled payment store errors.
var (
	ErrScheduledPaymentNotFound = &Error{Code: ENOTFOUND, Message: "Scheduled payment not found"}
	ErrPaymentNotPending        = &Error{Code: ECONFLICT, Message: "Scheduled payment is not pending"}
	ErrPaymentAlreadyCompleted  = &Error{Code: ECONFLICT, Message: "Payment has already been completed"}
	ErrPaymentTerminal          = &Error{Code: ECONFLICT, Message: "Scheduled payment is in a terminal state"}
)
