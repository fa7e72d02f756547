package routes

import (
	"github.com/AdansBatista/orca-sub008/internal/router"
)

// RegisterWebhookRoutes registers all webhook routes.
// These routes handle incoming webhooks from external services.
//
// Note: Webhook routes do NOT have clinic middleware. Each webhook
// handler is responsible for verifying the request signature (e.g.,
// Stripe signature verification) and resolving the clinic from the
// event payload.
func RegisterWebhookRoutes(r *router.Router, deps WebhookDeps) {
	r.Post("/webhooks/stripe", deps.StripeHandler)
}
