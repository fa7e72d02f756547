package routes

import (
	"github.com/AdansBatista/orca-sub008/internal/middleware"
	"github.com/AdansBatista/orca-sub008/internal/router"
)

// RegisterAPIRoutes registers the clinic-facing billing API.
//
// Every route resolves the acting clinic from the X-Clinic-ID header.
// Routes that also carry a {clinicID} path segment additionally require
// the path clinic to match the header clinic, so one clinic can never
// read another's data by editing the URL.
func RegisterAPIRoutes(r *router.Router, deps APIDeps) {
	api := r.Group(middleware.RequireClinic(middleware.ClinicConfig{
		Clinics: deps.Clinics,
		Logger:  deps.Logger,
	}))

	// Clinic-scoped batch operations and reports
	api.Post("/api/billing/clinics/{clinicID}/process-due", deps.Billing.ProcessDuePayments, middleware.RequireClinicPath)
	api.Get("/api/billing/clinics/{clinicID}/attention", deps.Billing.PaymentsNeedingAttention, middleware.RequireClinicPath)
	api.Get("/api/billing/clinics/{clinicID}/claims/aging", deps.Claims.AgingReport, middleware.RequireClinicPath)
	api.Get("/api/billing/clinics/{clinicID}/claims/next-number", deps.Claims.NextClaimNumber, middleware.RequireClinicPath)

	// Single-resource operations (resources are looked up within the
	// header clinic, so a foreign ID can only ever miss)
	api.Post("/api/billing/scheduled-payments/{id}/retry", deps.Billing.RetryScheduledPayment)
	api.Post("/api/billing/scheduled-payments/{id}/skip", deps.Billing.SkipScheduledPayment)
	api.Post("/api/billing/plans/{planID}/schedule", deps.Billing.GenerateSchedule)
	api.Post("/api/billing/accounts/{accountID}/recalculate-balance", deps.Billing.RecalculateBalance)

	// Stateless calculators
	api.Post("/api/billing/calculators/insurance-estimate", deps.Claims.EstimateInsurance)
	api.Post("/api/billing/calculators/ortho-benefit", deps.Claims.OrthoBenefit)
}
