package routes

import (
	"log/slog"
	"net/http"

	"github.com/AdansBatista/orca-sub008/internal/domain"
	"github.com/AdansBatista/orca-sub008/internal/handler"
)

// APIDeps contains dependencies for the clinic-facing billing API
type APIDeps struct {
	// Billing (process-due, retry, skip, schedule generation, attention,
	// balance recalculation)
	Billing *handler.BillingHandler

	// Claims (aging report, claim numbering, benefit calculators)
	Claims *handler.ClaimsHandler

	// Clinics resolves the X-Clinic-ID header on every API request
	Clinics domain.ClinicService

	Logger *slog.Logger
}

// WebhookDeps contains dependencies for webhook routes
type WebhookDeps struct {
	StripeHandler http.HandlerFunc
}
