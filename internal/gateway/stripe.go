package gateway

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/paymentintent"
	"github.com/stripe/stripe-go/v82/webhook"
)

// minimumChargeCents is Stripe's minimum charge for USD.
const minimumChargeCents = 50

// StripeProvider implements Provider using the Stripe API.
type StripeProvider struct {
	config StripeConfig
}

var _ Provider = (*StripeProvider)(nil)

// NewStripeProvider creates a new Stripe billing provider.
func NewStripeProvider(config StripeConfig) (*StripeProvider, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	stripe.Key = config.APIKey

	if config.MaxRetries > 0 {
		stripe.SetBackend(stripe.APIBackend, stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
			MaxNetworkRetries: stripe.Int64(int64(config.MaxRetries)),
		}))
	}

	return &StripeProvider{config: config}, nil
}

// CreatePaymentIntent creates a payment intent and, when a payment method
// is attached, confirms it in the same call. Off-session charges fail
// immediately instead of parking in requires_action, so the engine always
// gets a settled or failed answer.
func (s *StripeProvider) CreatePaymentIntent(ctx context.Context, params CreatePaymentIntentParams) (*PaymentIntent, error) {
	amountCents := toCents(params.Amount)
	if amountCents < minimumChargeCents {
		return nil, ErrAmountTooSmall
	}

	callCtx, cancel := context.WithTimeout(ctx, s.config.timeout())
	defer cancel()

	piParams := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(amountCents),
		Currency: stripe.String(currencyOrDefault(params.Currency)),
	}
	piParams.Context = callCtx

	if params.CustomerID != "" {
		piParams.Customer = stripe.String(params.CustomerID)
	}
	if params.PaymentMethodID != "" {
		piParams.PaymentMethod = stripe.String(params.PaymentMethodID)
		piParams.Confirm = stripe.Bool(true)
	}
	if params.OffSession {
		piParams.OffSession = stripe.Bool(true)
		piParams.ErrorOnRequiresAction = stripe.Bool(true)
	}
	if params.Description != "" {
		piParams.Description = stripe.String(params.Description)
	}
	for key, value := range params.Metadata {
		piParams.AddMetadata(key, value)
	}
	if params.IdempotencyKey != "" {
		piParams.SetIdempotencyKey(params.IdempotencyKey)
	}

	pi, err := paymentintent.New(piParams)
	if err != nil {
		return nil, wrapStripeError(callCtx, err)
	}

	return paymentIntentFromStripe(pi), nil
}

// GetPaymentIntent retrieves a payment intent and validates clinic
// ownership via metadata. A clinic mismatch reports not found rather than
// leaking the intent's existence.
func (s *StripeProvider) GetPaymentIntent(ctx context.Context, params GetPaymentIntentParams) (*PaymentIntent, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.config.timeout())
	defer cancel()

	getParams := &stripe.PaymentIntentParams{}
	getParams.Context = callCtx
	for _, expand := range params.Expand {
		getParams.AddExpand(expand)
	}

	pi, err := paymentintent.Get(params.PaymentIntentID, getParams)
	if err != nil {
		return nil, wrapStripeError(callCtx, err)
	}

	if params.ClinicID != "" && pi.Metadata["clinic_id"] != params.ClinicID {
		return nil, ErrPaymentIntentNotFound
	}

	return paymentIntentFromStripe(pi), nil
}

// IsPaymentSuccessful reports whether the intent settled.
func (s *StripeProvider) IsPaymentSuccessful(intent *PaymentIntent) bool {
	return intent != nil && intent.Status == IntentStatusSucceeded
}

// VerifyWebhookSignature verifies a Stripe webhook signature.
func (s *StripeProvider) VerifyWebhookSignature(payload []byte, signature string, secret string) error {
	if secret == "" {
		secret = s.config.WebhookSecret
	}

	if _, err := webhook.ConstructEvent(payload, signature, secret); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidWebhookSignature, err)
	}

	return nil
}

// toCents converts a major-unit amount to Stripe's minor units.
func toCents(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}

func currencyOrDefault(currency string) string {
	if currency == "" {
		return string(stripe.CurrencyUSD)
	}
	return currency
}

// paymentIntentFromStripe converts the SDK type to the provider type.
func paymentIntentFromStripe(pi *stripe.PaymentIntent) *PaymentIntent {
	out := &PaymentIntent{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		Amount:       decimal.New(pi.Amount, -2),
		Currency:     string(pi.Currency),
		Status:       string(pi.Status),
		Metadata:     pi.Metadata,
		CreatedAt:    time.Unix(pi.Created, 0),
	}

	if pi.Customer != nil {
		out.CustomerID = pi.Customer.ID
	}
	if pi.PaymentMethod != nil {
		out.PaymentMethodID = pi.PaymentMethod.ID
	}
	if pi.LastPaymentError != nil {
		out.LastPaymentError = &PaymentError{
			Code:        string(pi.LastPaymentError.Code),
			Message:     pi.LastPaymentError.Msg,
			DeclineCode: string(pi.LastPaymentError.DeclineCode),
		}
	}

	return out
}

// wrapStripeError converts SDK errors into StripeError with enough
// context for the engine to classify declines and timeouts.
func wrapStripeError(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}

	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		return &StripeError{
			Message:       stripeErr.Msg,
			Code:          string(stripeErr.Code),
			DeclineCode:   string(stripeErr.DeclineCode),
			RequestID:     stripeErr.RequestID,
			HTTPStatus:    stripeErr.HTTPStatusCode,
			OriginalError: err,
		}
	}

	if ctx.Err() != nil {
		return &StripeError{
			Message:       "stripe api call timed out",
			Code:          "api_connection_error",
			OriginalError: err,
		}
	}

	return &StripeError{
		Message:       err.Error(),
		OriginalError: err,
	}
}
