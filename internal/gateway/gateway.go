package gateway

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Provider defines the interface for charging patient payment methods.
// Implementations can use Stripe, or a mock for testing.
type Provider interface {
	// CreatePaymentIntent creates and, when a payment method is attached,
	// confirms a charge. Recurring charges pass OffSession with a saved
	// payment method and confirm in the same call.
	// Idempotency keys make the call safe to re-issue: the gateway returns
	// the original intent instead of charging twice.
	CreatePaymentIntent(ctx context.Context, params CreatePaymentIntentParams) (*PaymentIntent, error)

	// GetPaymentIntent retrieves an existing payment intent.
	// SECURITY: Validates clinic_id in intent metadata before returning.
	GetPaymentIntent(ctx context.Context, params GetPaymentIntentParams) (*PaymentIntent, error)

	// IsPaymentSuccessful reports whether the intent settled. Each gateway
	// has its own status vocabulary, so the check lives on the provider.
	IsPaymentSuccessful(intent *PaymentIntent) bool

	// VerifyWebhookSignature verifies that a webhook request is authentic.
	VerifyWebhookSignature(payload []byte, signature string, secret string) error
}

// Payment intent statuses shared across providers. Values follow the
// Stripe vocabulary; the mock uses the same strings.
const (
	IntentStatusRequiresPaymentMethod = "requires_payment_method"
	IntentStatusRequiresConfirmation  = "requires_confirmation"
	IntentStatusRequiresAction        = "requires_action"
	IntentStatusProcessing            = "processing"
	IntentStatusSucceeded             = "succeeded"
	IntentStatusCanceled              = "canceled"
)

// CreatePaymentIntentParams contains parameters for creating a payment intent.
type CreatePaymentIntentParams struct {
	// Amount is the charge amount in major units. Providers convert to
	// their own minor-unit representation internally.
	Amount decimal.Decimal

	// Currency code (ISO 4217) - e.g., "usd". Defaults to "usd".
	Currency string

	// CustomerID is the gateway customer the payment method belongs to.
	CustomerID string

	// PaymentMethodID is the saved payment method to charge. When set the
	// intent is confirmed immediately.
	PaymentMethodID string

	// OffSession marks the charge as merchant-initiated without the
	// patient present. All engine-driven charges set this.
	OffSession bool

	// Description appears on the patient's statement and in the gateway
	// dashboard.
	Description string

	// Metadata for filtering and reconciliation (always include clinic_id
	// and scheduled_payment_id).
	Metadata map[string]string

	// IdempotencyKey prevents duplicate charges. The engine derives it
	// from the scheduled payment ID so retries and reconciliation sweeps
	// can never double-charge.
	IdempotencyKey string
}

// GetPaymentIntentParams contains parameters for retrieving a payment intent.
type GetPaymentIntentParams struct {
	// PaymentIntentID is the gateway payment intent ID
	PaymentIntentID string

	// ClinicID is required for multi-clinic isolation.
	// Must match the clinic_id in payment intent metadata.
	ClinicID string

	// Expand specifies related objects to include in the response.
	Expand []string
}

// PaymentIntent represents a charge attempt at the gateway.
type PaymentIntent struct {
	// ID is the gateway payment intent ID (pi_...)
	ID string

	// ClientSecret is used by the frontend to confirm on-session payments.
	ClientSecret string

	// Amount in major units.
	Amount decimal.Decimal

	// Currency code
	Currency string

	// Status: requires_payment_method, processing, succeeded, etc.
	Status string

	CustomerID      string
	PaymentMethodID string

	// Metadata passed during creation
	Metadata map[string]string

	CreatedAt time.Time

	// LastPaymentError contains details if the charge failed.
	LastPaymentError *PaymentError
}

// PaymentError contains details about a failed charge attempt.
type PaymentError struct {
	Code        string // gateway error code
	Message     string // Human-readable message
	DeclineCode string // Reason card was declined (if applicable)
}
