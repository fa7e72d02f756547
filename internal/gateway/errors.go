package gateway

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrInvalidAPIKey is returned when the gateway API key is invalid or missing.
	ErrInvalidAPIKey = errors.New("gateway: invalid or missing API key")

	// ErrPaymentIntentNotFound is returned when a payment intent does not
	// exist or belongs to a different clinic.
	ErrPaymentIntentNotFound = errors.New("gateway: payment intent not found")

	// ErrPaymentFailed is returned when a charge fails (card declined, etc.)
	ErrPaymentFailed = errors.New("gateway: payment failed")

	// ErrInvalidWebhookSignature is returned when webhook signature verification fails.
	ErrInvalidWebhookSignature = errors.New("gateway: invalid webhook signature")

	// ErrIdempotencyConflict is returned when an idempotency key matches a
	// previous request with different parameters.
	ErrIdempotencyConflict = errors.New("gateway: idempotency key conflict")

	// ErrAmountTooSmall is returned when the charge amount is below the
	// gateway minimum.
	ErrAmountTooSmall = errors.New("gateway: amount too small (minimum $0.50 USD)")
)

// StripeError wraps a Stripe API error with additional context.
type StripeError struct {
	Message       string // Human-readable error message
	Code          string // Stripe error code (e.g., "card_declined")
	DeclineCode   string // Card decline reason (if applicable)
	RequestID     string // Stripe request ID for debugging
	HTTPStatus    int    // HTTP status code from Stripe
	OriginalError error  // Original error from the Stripe SDK
}

func (e *StripeError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("stripe: %s (code: %s)", e.Message, e.Code)
	}
	return fmt.Sprintf("stripe: %s", e.Message)
}

func (e *StripeError) Unwrap() error {
	return e.OriginalError
}

// IsDeclined returns true if the error is a card decline. Declines are
// business failures and feed the retry ladder, not error propagation.
func (e *StripeError) IsDeclined() bool {
	return e.Code == "card_declined" || e.DeclineCode != ""
}

// IsTimeout returns true if the call hit its deadline before the gateway
// answered. The charge may still have gone through, so timed-out intents
// are resolved later by the reconciliation sweep under the original
// idempotency key.
func (e *StripeError) IsTimeout() bool {
	if errors.Is(e.OriginalError, context.DeadlineExceeded) {
		return true
	}
	return e.Code == "api_connection_error"
}

// IsTemporary returns true if the error is likely transient and retryable.
func (e *StripeError) IsTemporary() bool {
	return e.Code == "rate_limit" || e.Code == "api_connection_error" || e.Code == "lock_timeout"
}
