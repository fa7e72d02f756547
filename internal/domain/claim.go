package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// =============================================================================
// INSURANCE CLAIM DOMAIN TYPES
// =============================================================================

// ClaimStatus represents where a filed claim stands with the carrier.
type ClaimStatus string

const (
	ClaimStatusSubmitted ClaimStatus = "SUBMITTED"
	ClaimStatusPaid      ClaimStatus = "PAID"
	ClaimStatusDenied    ClaimStatus = "DENIED"
)

// InsuranceClaim is the slice of the claim record the calculators and
// aging report need.
type InsuranceClaim struct {
	ID       uuid.UUID
	ClinicID uuid.UUID

	// ClaimNumber is the clinic-scoped human identifier, CLM-YYYY-NNNNN.
	ClaimNumber string

	PatientName string
	Amount      decimal.Decimal
	FiledAt     time.Time
	Status      ClaimStatus

	CreatedAt time.Time
}

// ClaimService is the persistence port for insurance claims.
type ClaimService interface {
	// HighestClaimNumber returns the lexicographically highest claim
	// number for the clinic and year, or empty string when none exist.
	HighestClaimNumber(ctx context.Context, clinicID uuid.UUID, year int) (string, error)

	// ListOpen returns claims not yet PAID or DENIED, for the aging report.
	ListOpen(ctx context.Context, clinicID uuid.UUID) ([]InsuranceClaim, error)
}

// Claim errors.
var (
	ErrClaimNotFound        = &Error{Code: ENOTFOUND, Message: "Insurance claim not found"}
	ErrClaimNumberExhausted = &Error{Code: EINTERNAL, Message: "Claim number sequence exhausted for year"}
)
