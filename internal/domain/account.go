package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// =============================================================================
// ACCOUNT DOMAIN TYPES
// =============================================================================

// Account is a patient billing account. The balance is derived, not
// authoritative: the engine recomputes it after every successful charge
// as total_billed minus the sum of completed ledger payments.
type Account struct {
	ID          uuid.UUID
	ClinicID    uuid.UUID
	PatientName string
	Email       string

	// GatewayCustomerID is the gateway-side customer identity. Required
	// before the engine will attempt a charge.
	GatewayCustomerID string

	// DefaultPaymentMethodID backs plans without a linked method.
	DefaultPaymentMethodID string

	// TotalBilled is maintained by the charting side of the practice
	// system; the engine only reads it during balance recomputation.
	TotalBilled decimal.Decimal
	Balance     decimal.Decimal

	CreatedAt time.Time
	UpdatedAt time.Time
}

// AccountService is the persistence port for patient accounts.
type AccountService interface {
	// GetByID fetches one account scoped to its clinic.
	GetByID(ctx context.Context, clinicID, id uuid.UUID) (*Account, error)

	// RecalculateBalance recomputes and persists the derived balance,
	// recording the actor for audit. Returns the new balance.
	RecalculateBalance(ctx context.Context, clinicID, accountID uuid.UUID, actor string) (decimal.Decimal, error)
}

// Account errors.
var (
	ErrAccountNotFound = &Error{Code: ENOTFOUND, Message: "Account not found"}
)
