package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// PAYMENT PLAN DOMAIN TYPES
// =============================================================================

// PlanStatus represents the lifecycle state of a payment plan.
type PlanStatus string

const (
	PlanStatusActive    PlanStatus = "ACTIVE"
	PlanStatusCompleted PlanStatus = "COMPLETED"
)

// PaymentPlan groups the scheduled payments of one patient account.
// The plan completes exactly when zero child installments remain in a
// non-terminal (PENDING/PROCESSING) state.
type PaymentPlan struct {
	ID        uuid.UUID
	ClinicID  uuid.UUID
	AccountID uuid.UUID

	// AutoCharge gates engine-driven charging. Plans with it disabled
	// fail the precondition check and are never sent to the gateway.
	AutoCharge bool

	// PaymentMethodID is the gateway payment-method reference linked to
	// the plan. Empty means fall back to the account default.
	PaymentMethodID string

	Status    PlanStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

// PaymentPlanService is the persistence port for payment plans.
type PaymentPlanService interface {
	// GetByID fetches one plan scoped to its clinic.
	GetByID(ctx context.Context, clinicID, id uuid.UUID) (*PaymentPlan, error)

	// HasOpenInstallments reports whether any child scheduled payment is
	// still PENDING or PROCESSING.
	HasOpenInstallments(ctx context.Context, clinicID, planID uuid.UUID) (bool, error)

	// MarkCompleted transitions the plan to COMPLETED.
	MarkCompleted(ctx context.Context, clinicID, planID uuid.UUID) error
}

// Payment plan errors.
var (
	ErrPaymentPlanNotFound = &Error{Code: ENOTFOUND, Message: "Payment plan not found"}
	ErrPlanNotActive       = &Error{Code: ECONFLICT, Message: "Payment plan is not active"}
)
