package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/AdansBatista/orca-sub008/internal/domain"
)

// claimSequenceMax is the largest suffix CLM-YYYY-NNNNN can carry.
const claimSequenceMax = 99999

// agingBuckets is the canonical report order.
var agingBuckets = []string{"0-30", "31-60", "61-90", "91-120", "120+"}

// =============================================================================
// PURE CALCULATORS
// =============================================================================

// NextClaimNumber derives the successor of the highest existing claim
// number for a year, formatted CLM-YYYY-NNNNN. An empty highestExisting
// starts the year at 00001.
func NextClaimNumber(year int, highestExisting string) (string, error) {
	const op = "claims.next_number"

	prefix := fmt.Sprintf("CLM-%d-", year)
	if highestExisting == "" {
		return fmt.Sprintf("%s%05d", prefix, 1), nil
	}

	suffix := strings.TrimPrefix(highestExisting, prefix)
	n, err := strconv.Atoi(suffix)
	if err != nil {
		return "", domain.Errorf(domain.EINTERNAL, op, "malformed claim number: %s", highestExisting)
	}
	if n >= claimSequenceMax {
		return "", domain.ErrClaimNumberExhausted
	}
	return fmt.Sprintf("%s%05d", prefix, n+1), nil
}

// AgingBucket classifies days since filing into the standard AR buckets.
func AgingBucket(daysSinceFiling int) string {
	switch {
	case daysSinceFiling <= 30:
		return "0-30"
	case daysSinceFiling <= 60:
		return "31-60"
	case daysSinceFiling <= 90:
		return "61-90"
	case daysSinceFiling <= 120:
		return "91-120"
	}
	return "120+"
}

// OrthoBenefitParams describes one coverage record at a point in time.
type OrthoBenefitParams struct {
	// AsOf is the evaluation date. Callers pass the treatment or service
	// date; handlers default it to today.
	AsOf time.Time

	EffectiveDate   time.Time
	TerminationDate *time.Time

	// WaitingPeriodMonths delays ortho eligibility past the effective date.
	WaitingPeriodMonths int

	LifetimeMaximum decimal.Decimal
	BenefitUsed     decimal.Decimal
}

// OrthoBenefitResult reports whether ortho benefits can be used and why not.
type OrthoBenefitResult struct {
	Available bool `json:"available"`

	// Reason is set when Available is false.
	Reason string `json:"reason,omitempty"`

	// RemainingBenefit is reported regardless of availability.
	RemainingBenefit decimal.Decimal `json:"remaining_benefit"`
}

// OrthoBenefitAvailable checks whether orthodontic benefits can be drawn
// on as of the evaluation date: coverage not terminated, waiting period
// satisfied, lifetime maximum not exhausted. Coverage runs through the
// termination date itself.
func OrthoBenefitAvailable(params OrthoBenefitParams) OrthoBenefitResult {
	remaining := params.LifetimeMaximum.Sub(params.BenefitUsed)
	if remaining.Sign() < 0 {
		remaining = decimal.Zero
	}
	remaining = remaining.Round(2)

	if params.TerminationDate != nil && params.AsOf.After(*params.TerminationDate) {
		return OrthoBenefitResult{Reason: "coverage terminated", RemainingBenefit: remaining}
	}

	if params.WaitingPeriodMonths > 0 {
		eligibleFrom := params.EffectiveDate.AddDate(0, params.WaitingPeriodMonths, 0)
		if params.AsOf.Before(eligibleFrom) {
			return OrthoBenefitResult{Reason: "waiting period not satisfied", RemainingBenefit: remaining}
		}
	}

	if remaining.Sign() <= 0 {
		return OrthoBenefitResult{Reason: "lifetime maximum exhausted", RemainingBenefit: remaining}
	}

	return OrthoBenefitResult{Available: true, RemainingBenefit: remaining}
}

// InsuranceEstimateParams feeds the payment estimator. Negative inputs
// are treated as zero.
type InsuranceEstimateParams struct {
	ClaimAmount decimal.Decimal

	// CoveragePercent is the plan's ortho coverage, 0-100.
	CoveragePercent decimal.Decimal

	DeductibleRemaining decimal.Decimal
	BenefitRemaining    decimal.Decimal
}

// InsuranceEstimateResult splits a claim between carrier and patient.
// InsurancePays + PatientPays always equals the claim amount.
type InsuranceEstimateResult struct {
	InsurancePays     decimal.Decimal `json:"insurance_pays"`
	PatientPays       decimal.Decimal `json:"patient_pays"`
	DeductibleApplied decimal.Decimal `json:"deductible_applied"`
}

// EstimateInsurancePayment estimates the carrier's share of a claim:
// the remaining deductible comes off the top, the coverage percentage
// applies to the rest, and the result is capped at the remaining
// lifetime benefit. Monetary outputs are rounded to cents.
func EstimateInsurancePayment(params InsuranceEstimateParams) InsuranceEstimateResult {
	hundred := decimal.NewFromInt(100)

	claim := clampNonNegative(params.ClaimAmount)
	deductible := clampNonNegative(params.DeductibleRemaining)
	benefit := clampNonNegative(params.BenefitRemaining)
	pct := clampNonNegative(params.CoveragePercent)
	if pct.GreaterThan(hundred) {
		pct = hundred
	}

	deductibleApplied := decimal.Min(claim, deductible)
	covered := claim.Sub(deductibleApplied).Mul(pct).Div(hundred)
	insurance := decimal.Min(covered, benefit).Round(2)
	patient := claim.Sub(insurance).Round(2)

	return InsuranceEstimateResult{
		InsurancePays:     insurance,
		PatientPays:       patient,
		DeductibleApplied: deductibleApplied.Round(2),
	}
}

func clampNonNegative(d decimal.Decimal) decimal.Decimal {
	if d.Sign() < 0 {
		return decimal.Zero
	}
	return d
}

// =============================================================================
// STORE-BACKED WRAPPERS
// =============================================================================

// ClaimsService backs the pure calculators with claim data.
type ClaimsService struct {
	claims domain.ClaimService
}

// NewClaimsService creates a claims service.
func NewClaimsService(claims domain.ClaimService) *ClaimsService {
	return &ClaimsService{claims: claims}
}

// NextClaimNumber returns the next available claim number for the clinic
// and year. Assignment itself happens at claim filing, protected by the
// unique index on (clinic_id, claim_number).
func (s *ClaimsService) NextClaimNumber(ctx context.Context, clinicID uuid.UUID, year int) (string, error) {
	highest, err := s.claims.HighestClaimNumber(ctx, clinicID, year)
	if err != nil {
		return "", err
	}
	return NextClaimNumber(year, highest)
}

// AgingBucketCount is one row of the aging report.
type AgingBucketCount struct {
	Bucket string          `json:"bucket"`
	Count  int             `json:"count"`
	Amount decimal.Decimal `json:"amount"`
}

// ClaimAgingReport summarizes open claims by age. Buckets always carries
// all five buckets in canonical order, including empty ones.
type ClaimAgingReport struct {
	Buckets     []AgingBucketCount `json:"buckets"`
	TotalOpen   int                `json:"total_open"`
	TotalAmount decimal.Decimal    `json:"total_amount"`
}

// AgingReport buckets the clinic's open claims by whole calendar days
// since filing.
func (s *ClaimsService) AgingReport(ctx context.Context, clinicID uuid.UUID) (*ClaimAgingReport, error) {
	open, err := s.claims.ListOpen(ctx, clinicID)
	if err != nil {
		return nil, err
	}

	report := &ClaimAgingReport{
		Buckets:     make([]AgingBucketCount, len(agingBuckets)),
		TotalAmount: decimal.Zero,
	}
	byBucket := make(map[string]*AgingBucketCount, len(agingBuckets))
	for i, name := range agingBuckets {
		report.Buckets[i] = AgingBucketCount{Bucket: name, Amount: decimal.Zero}
		byBucket[name] = &report.Buckets[i]
	}

	today := dateOnly(time.Now())
	for i := range open {
		days := int(today.Sub(dateOnly(open[i].FiledAt)).Hours() / 24)
		bucket := byBucket[AgingBucket(days)]
		bucket.Count++
		bucket.Amount = bucket.Amount.Add(open[i].Amount)
		report.TotalOpen++
		report.TotalAmount = report.TotalAmount.Add(open[i].Amount)
	}

	for i := range report.Buckets {
		report.Buckets[i].Amount = report.Buckets[i].Amount.Round(2)
	}
	report.TotalAmount = report.TotalAmount.Round(2)

	return report, nil
}
