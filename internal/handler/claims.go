package handler

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/AdansBatista/orca-sub008/internal/domain"
	"github.com/AdansBatista/orca-sub008/internal/service"
	"github.com/shopspring/decimal"
)

// ClaimsHandler exposes the insurance claim reports and calculators.
type ClaimsHandler struct {
	claims *service.ClaimsService
	logger *slog.Logger
}

// NewClaimsHandler creates a claims handler.
func NewClaimsHandler(claims *service.ClaimsService, logger *slog.Logger) *ClaimsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ClaimsHandler{
		claims: claims,
		logger: logger,
	}
}

// AgingReport handles GET /api/billing/clinics/{clinicID}/claims/aging
//
// Buckets the clinic's open claims by days since filing.
func (h *ClaimsHandler) AgingReport(w http.ResponseWriter, r *http.Request) {
	clinicID := domain.RequireClinicID(r.Context())

	report, err := h.claims.AgingReport(r.Context(), clinicID)
	if err != nil {
		ErrorResponse(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, report)
}

// NextClaimNumber handles GET /api/billing/clinics/{clinicID}/claims/next-number
//
// Returns the next available claim number for the clinic and year.
// The year query parameter defaults to the current year.
func (h *ClaimsHandler) NextClaimNumber(w http.ResponseWriter, r *http.Request) {
	clinicID := domain.RequireClinicID(r.Context())

	year := time.Now().Year()
	if param := r.URL.Query().Get("year"); param != "" {
		parsed, err := strconv.Atoi(param)
		if err != nil || parsed < 2000 || parsed > 9999 {
			ErrorResponse(w, r, domain.Invalid("claims.next_number", "Invalid year"))
			return
		}
		year = parsed
	}

	number, err := h.claims.NextClaimNumber(r.Context(), clinicID, year)
	if err != nil {
		ErrorResponse(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"claim_number": number,
		"year":         year,
	})
}

type insuranceEstimateRequest struct {
	ClaimAmount         decimal.Decimal `json:"claim_amount"`
	CoveragePercent     decimal.Decimal `json:"coverage_percent"`
	DeductibleRemaining decimal.Decimal `json:"deductible_remaining"`
	BenefitRemaining    decimal.Decimal `json:"benefit_remaining"`
}

// EstimateInsurance handles POST /api/billing/calculators/insurance-estimate
//
// Pure calculator: splits a claim between carrier and patient given the
// plan's coverage percent, remaining deductible, and remaining benefit.
// Negative inputs are treated as zero.
func (h *ClaimsHandler) EstimateInsurance(w http.ResponseWriter, r *http.Request) {
	var req insuranceEstimateRequest
	if err := decodeJSON(r, &req); err != nil {
		ErrorResponse(w, r, err)
		return
	}

	result := service.EstimateInsurancePayment(service.InsuranceEstimateParams{
		ClaimAmount:         req.ClaimAmount,
		CoveragePercent:     req.CoveragePercent,
		DeductibleRemaining: req.DeductibleRemaining,
		BenefitRemaining:    req.BenefitRemaining,
	})

	respondJSON(w, http.StatusOK, result)
}

type orthoBenefitRequest struct {
	AsOf                string          `json:"as_of"`
	EffectiveDate       string          `json:"effective_date" validate:"required"`
	TerminationDate     string          `json:"termination_date"`
	WaitingPeriodMonths int             `json:"waiting_period_months" validate:"gte=0"`
	LifetimeMaximum     decimal.Decimal `json:"lifetime_maximum"`
	BenefitUsed         decimal.Decimal `json:"benefit_used"`
}

// OrthoBenefit handles POST /api/billing/calculators/ortho-benefit
//
// Pure calculator: reports whether orthodontic benefits can be drawn on
// as of the evaluation date, and how much remains. as_of defaults to
// today.
func (h *ClaimsHandler) OrthoBenefit(w http.ResponseWriter, r *http.Request) {
	var req orthoBenefitRequest
	if err := decodeValid(r, &req); err != nil {
		ValidationErrorResponse(w, r, err)
		return
	}

	params := service.OrthoBenefitParams{
		WaitingPeriodMonths: req.WaitingPeriodMonths,
		LifetimeMaximum:     req.LifetimeMaximum,
		BenefitUsed:         req.BenefitUsed,
	}

	var err error
	params.EffectiveDate, err = time.Parse("2006-01-02", req.EffectiveDate)
	if err != nil {
		ValidationErrorResponse(w, r, domain.NewValidationError("claims.ortho_benefit", "effective_date", "must be a date in YYYY-MM-DD form"))
		return
	}

	if req.TerminationDate != "" {
		termination, err := time.Parse("2006-01-02", req.TerminationDate)
		if err != nil {
			ValidationErrorResponse(w, r, domain.NewValidationError("claims.ortho_benefit", "termination_date", "must be a date in YYYY-MM-DD form"))
			return
		}
		params.TerminationDate = &termination
	}

	params.AsOf = time.Now()
	if req.AsOf != "" {
		params.AsOf, err = time.Parse("2006-01-02", req.AsOf)
		if err != nil {
			ValidationErrorResponse(w, r, domain.NewValidationError("claims.ortho_benefit", "as_of", "must be a date in YYYY-MM-DD form"))
			return
		}
	}

	respondJSON(w, http.StatusOK, service.OrthoBenefitAvailable(params))
}
