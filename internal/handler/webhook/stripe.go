package webhook

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v82"

	"github.com/AdansBatista/orca-sub008/internal/domain"
	"github.com/AdansBatista/orca-sub008/internal/gateway"
	"github.com/AdansBatista/orca-sub008/internal/handler"
	"github.com/AdansBatista/orca-sub008/internal/telemetry"
)

// clinicUnknown labels webhook metrics for events whose clinic could not
// be determined from the intent metadata.
const clinicUnknown = "unknown"

// Reconciler applies gateway-reported charge outcomes to scheduled
// payments. Implemented by the billing engine.
type Reconciler interface {
	ReconcileGatewayResult(ctx context.Context, clinicID, id uuid.UUID, succeeded bool, gatewayTransactionID, reason string) (domain.ProcessingResult, error)
}

// StripeHandler handles Stripe webhook events for scheduled charges.
// Events are matched back to scheduled payments through the clinic_id and
// scheduled_payment_id metadata the engine stamps on every intent.
type StripeHandler struct {
	provider gateway.Provider
	engine   Reconciler
	clinics  domain.ClinicService
	config   StripeWebhookConfig
	logger   *slog.Logger
}

// StripeWebhookConfig contains configuration for Stripe webhook handling
type StripeWebhookConfig struct {
	// WebhookSecret is the webhook signing secret from Stripe dashboard
	WebhookSecret string
}

// NewStripeHandler creates a new Stripe webhook handler
func NewStripeHandler(provider gateway.Provider, engine Reconciler, clinics domain.ClinicService, config StripeWebhookConfig, logger *slog.Logger) *StripeHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &StripeHandler{
		provider: provider,
		engine:   engine,
		clinics:  clinics,
		config:   config,
		logger:   logger,
	}
}

// HandleWebhook processes incoming Stripe webhook events.
//
// Stripe CLI testing:
//
//	stripe listen --forward-to localhost:3000/webhooks/stripe
//	stripe trigger payment_intent.succeeded
//
// Processing is idempotent, so a non-2xx response is safe: Stripe
// redelivers and the reconcile applies cleanly the second time.
func (h *StripeHandler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	startTime := time.Now()

	payload, err := io.ReadAll(r.Body)
	if err != nil {
		h.logger.Warn("webhook: failed to read payload", "error", err)
		handler.ErrorResponse(w, r, domain.Errorf(domain.EINVALID, "webhook.read", "Error reading request body"))
		return
	}

	signature := r.Header.Get("Stripe-Signature")
	if signature == "" {
		h.logger.Warn("webhook: missing Stripe-Signature header")
		handler.ErrorResponse(w, r, domain.Errorf(domain.EINVALID, "webhook.signature", "Missing signature"))
		return
	}

	if err := h.provider.VerifyWebhookSignature(payload, signature, h.config.WebhookSecret); err != nil {
		h.logger.Warn("webhook: signature verification failed", "error", err)
		handler.ErrorResponse(w, r, domain.Errorf(domain.EUNAUTHORIZED, "webhook.signature", "Invalid signature"))
		return
	}

	var event stripe.Event
	if err := json.Unmarshal(payload, &event); err != nil {
		h.logger.Warn("webhook: failed to parse event", "error", err)
		handler.ErrorResponse(w, r, domain.Errorf(domain.EINVALID, "webhook.parse", "Invalid JSON"))
		return
	}

	h.logger.Info("webhook: event received",
		"event_id", event.ID,
		"event_type", event.Type,
	)

	// The handler must finish applying an outcome even if Stripe hangs up.
	ctx := domain.NewContextWithActor(context.WithoutCancel(r.Context()), domain.ActorWebhook)

	var handleErr error
	switch event.Type {
	case "payment_intent.succeeded":
		handleErr = h.handlePaymentIntent(ctx, event, true)

	case "payment_intent.payment_failed":
		handleErr = h.handlePaymentIntent(ctx, event, false)

	case "payment_intent.canceled":
		// A canceled intent never collects; treat it like a failure so the
		// retry policy decides what happens next.
		handleErr = h.handlePaymentIntent(ctx, event, false)

	case "payment_intent.created":
		// No action needed - just for monitoring
		h.logger.Debug("webhook: payment intent created", "event_id", event.ID)

	default:
		h.logger.Debug("webhook: unhandled event type", "event_type", event.Type)
	}

	if telemetry.Business != nil {
		telemetry.Business.WebhookLatency.WithLabelValues(clinicFromEvent(event), string(event.Type)).
			Observe(time.Since(startTime).Seconds())
	}

	if handleErr != nil {
		// Infrastructure failure: signal Stripe to redeliver.
		handler.ErrorResponse(w, r, handleErr)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"received": true}`))
}

// handlePaymentIntent feeds an intent outcome into the billing engine.
// Events for intents the engine did not create (no scheduled payment
// metadata) are acknowledged without action.
func (h *StripeHandler) handlePaymentIntent(ctx context.Context, event stripe.Event, succeeded bool) error {
	eventType := string(event.Type)

	var intent stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
		h.logger.Warn("webhook: failed to parse payment intent", "event_id", event.ID, "error", err)
		if telemetry.Business != nil {
			telemetry.Business.WebhookFailed.WithLabelValues(clinicUnknown, eventType, "parse").Inc()
		}
		return nil
	}

	clinicRaw := intent.Metadata["clinic_id"]
	scheduledRaw := intent.Metadata["scheduled_payment_id"]
	if clinicRaw == "" || scheduledRaw == "" {
		// Not one of ours - a manual dashboard charge, or another product
		// sharing the Stripe account.
		h.logger.Debug("webhook: intent has no scheduled payment metadata",
			"event_id", event.ID,
			"payment_intent_id", intent.ID,
		)
		return nil
	}

	if telemetry.Business != nil {
		telemetry.Business.WebhookReceived.WithLabelValues(clinicRaw, eventType).Inc()
	}

	clinicID, err := uuid.Parse(clinicRaw)
	if err != nil {
		h.logger.Warn("webhook: malformed clinic_id metadata",
			"event_id", event.ID,
			"payment_intent_id", intent.ID,
			"clinic_id", clinicRaw,
		)
		if telemetry.Business != nil {
			telemetry.Business.WebhookFailed.WithLabelValues(clinicRaw, eventType, "bad_metadata").Inc()
		}
		return nil
	}
	scheduledID, err := uuid.Parse(scheduledRaw)
	if err != nil {
		h.logger.Warn("webhook: malformed scheduled_payment_id metadata",
			"event_id", event.ID,
			"payment_intent_id", intent.ID,
			"scheduled_payment_id", scheduledRaw,
		)
		if telemetry.Business != nil {
			telemetry.Business.WebhookFailed.WithLabelValues(clinicRaw, eventType, "bad_metadata").Inc()
		}
		return nil
	}

	// The reconcile query is clinic-scoped, so a forged clinic_id can only
	// ever miss; this check just produces a clearer log line.
	if _, err := h.clinics.GetByID(ctx, clinicID); err != nil {
		h.logger.Warn("webhook: intent references unknown clinic",
			"event_id", event.ID,
			"payment_intent_id", intent.ID,
			"clinic_id", clinicRaw,
		)
		if telemetry.Business != nil {
			telemetry.Business.WebhookFailed.WithLabelValues(clinicRaw, eventType, "unknown_clinic").Inc()
		}
		return nil
	}

	reason := failureReason(&intent, succeeded)

	result, err := h.engine.ReconcileGatewayResult(ctx, clinicID, scheduledID, succeeded, intent.ID, reason)
	if err != nil {
		h.logger.Error("webhook: reconcile failed",
			"event_id", event.ID,
			"payment_intent_id", intent.ID,
			"clinic_id", clinicRaw,
			"scheduled_payment_id", scheduledRaw,
			"error", err,
		)
		if telemetry.Business != nil {
			telemetry.Business.WebhookFailed.WithLabelValues(clinicRaw, eventType, "reconcile").Inc()
		}
		telemetry.CaptureErrorWithClinic(err, clinicRaw, map[string]interface{}{
			"event_id":             event.ID,
			"payment_intent_id":    intent.ID,
			"scheduled_payment_id": scheduledRaw,
		})
		return err
	}

	h.logger.Info("webhook: outcome applied",
		"event_id", event.ID,
		"payment_intent_id", intent.ID,
		"clinic_id", clinicRaw,
		"scheduled_payment_id", scheduledRaw,
		"succeeded", succeeded,
		"status", result.Status,
		"retry_scheduled", result.RetryScheduled,
	)
	if telemetry.Business != nil {
		telemetry.Business.WebhookProcessed.WithLabelValues(clinicRaw, eventType).Inc()
	}

	return nil
}

// failureReason derives the human-readable failure message recorded on
// the scheduled payment.
func failureReason(intent *stripe.PaymentIntent, succeeded bool) string {
	if succeeded {
		return ""
	}
	if intent.Status == stripe.PaymentIntentStatusCanceled {
		return "Payment canceled at gateway"
	}
	if intent.LastPaymentError != nil {
		if intent.LastPaymentError.Msg != "" {
			return intent.LastPaymentError.Msg
		}
		if intent.LastPaymentError.Code != "" {
			return string(intent.LastPaymentError.Code)
		}
	}
	return "Payment failed at gateway"
}

// clinicFromEvent best-effort extracts the clinic label for metrics
// without re-dispatching the event.
func clinicFromEvent(event stripe.Event) string {
	var envelope struct {
		Metadata map[string]string `json:"metadata"`
	}
	if err := json.Unmarshal(event.Data.Raw, &envelope); err != nil {
		return clinicUnknown
	}
	if id := envelope.Metadata["clinic_id"]; id != "" {
		return id
	}
	return clinicUnknown
}
