package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// CLINIC DOMAIN TYPES
// =============================================================================

// Clinic is the tenant of the billing engine. Every store query is
// scoped to a clinic; the scheduler enumerates active clinics when
// fanning out due-payment runs.
type Clinic struct {
	ID   uuid.UUID
	Name string

	// BillingEmail receives payment-failure notifications.
	BillingEmail string

	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ClinicService is the persistence port for clinics.
type ClinicService interface {
	// GetByID fetches one clinic.
	GetByID(ctx context.Context, id uuid.UUID) (*Clinic, error)

	// ListActive returns every active clinic, for scheduler fan-out.
	ListActive(ctx context.Context) ([]Clinic, error)
}

// Clinic errors.
var (
	ErrClinicNotFound = &Error{Code: ENOTFOUND, Message: "Clinic not found"}
	ErrClinicInactive = &Error{Code: EFORBIDDEN, Message: "Clinic is inactive"}
)
