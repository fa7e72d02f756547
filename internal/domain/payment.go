package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// =============================================================================
// PAYMENT LEDGER DOMAIN TYPES
// =============================================================================

// PaymentMethod identifies how money moved.
type PaymentMethod string

const (
	// PaymentMethodCardAuto marks engine-driven automatic card charges.
	PaymentMethodCardAuto PaymentMethod = "CARD_AUTO"
)

// PaymentSourceType links a ledger entry back to what produced it.
type PaymentSourceType string

const (
	PaymentSourceScheduledPayment PaymentSourceType = "SCHEDULED_PAYMENT"
)

// Payment is an immutable ledger entry representing money actually moved.
// Created exactly once per successful charge, never mutated thereafter.
type Payment struct {
	ID        uuid.UUID
	ClinicID  uuid.UUID
	AccountID uuid.UUID
	PlanID    uuid.UUID

	// PaymentNumber is the clinic-scoped human identifier, PAY-YYYY-NNNNN.
	PaymentNumber string

	Amount      decimal.Decimal
	PaymentDate time.Time
	Method      PaymentMethod

	// Status is always COMPLETED for engine-created entries; the column
	// exists because manually recorded payments share the ledger.
	Status string

	GatewayTransactionID string

	SourceType PaymentSourceType
	SourceID   uuid.UUID

	CreatedAt time.Time
}

// PaymentService is the persistence port for the payment ledger.
// Engine-driven inserts happen inside the finalize transaction owned by
// the scheduled payment store; this port serves reads and the number
// sequence.
type PaymentService interface {
	// GetByID fetches one ledger entry scoped to its clinic.
	GetByID(ctx context.Context, clinicID, id uuid.UUID) (*Payment, error)

	// GetBySource fetches the ledger entry created for a scheduled
	// payment. Returns nil without error when none exists. Used by
	// reconciliation to detect already-recorded charges.
	GetBySource(ctx context.Context, clinicID uuid.UUID, sourceType PaymentSourceType, sourceID uuid.UUID) (*Payment, error)

	// NextPaymentNumber derives the next clinic-scoped payment number for
	// the given year by parsing the highest existing suffix.
	NextPaymentNumber(ctx context.Context, clinicID uuid.UUID, year int) (string, error)
}

// Payment ledger errors.
var (
	ErrPaymentNotFound = &Error{Code: ENOTFOUND, Message: "Payment not found"}
)
