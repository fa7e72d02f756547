package gateway

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MockProvider is a mock billing provider for testing.
// Simulates charge flows without calling the Stripe API.
type MockProvider struct {
	// CreatePaymentIntentFunc allows customizing charge behavior
	CreatePaymentIntentFunc func(ctx context.Context, params CreatePaymentIntentParams) (*PaymentIntent, error)

	// GetPaymentIntentFunc allows customizing payment intent retrieval behavior
	GetPaymentIntentFunc func(ctx context.Context, params GetPaymentIntentParams) (*PaymentIntent, error)

	// VerifyWebhookSignatureFunc allows customizing webhook verification behavior
	VerifyWebhookSignatureFunc func(payload []byte, signature string, secret string) error

	// PaymentIntents stores created payment intents for retrieval
	PaymentIntents map[string]*PaymentIntent

	// CallLog tracks method calls for test assertions
	CallLog []string

	// intentsByKey maps idempotency keys to intent IDs so repeated calls
	// return the original intent, matching gateway semantics.
	intentsByKey map[string]string

	mu sync.Mutex
}

var _ Provider = (*MockProvider)(nil)

// NewMockProvider creates a new mock billing provider.
func NewMockProvider() *MockProvider {
	return &MockProvider{
		PaymentIntents: make(map[string]*PaymentIntent),
		intentsByKey:   make(map[string]string),
		CallLog:        []string{},
	}
}

// CreatePaymentIntent creates a mock payment intent. A reused idempotency
// key returns the previously created intent untouched.
func (m *MockProvider) CreatePaymentIntent(ctx context.Context, params CreatePaymentIntentParams) (*PaymentIntent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.CallLog = append(m.CallLog, fmt.Sprintf("CreatePaymentIntent(%s, %s)", params.Amount, currencyOrDefault(params.Currency)))

	if params.IdempotencyKey != "" {
		if id, seen := m.intentsByKey[params.IdempotencyKey]; seen {
			return m.PaymentIntents[id], nil
		}
	}

	if m.CreatePaymentIntentFunc != nil {
		pi, err := m.CreatePaymentIntentFunc(ctx, params)
		if err != nil {
			return nil, err
		}
		m.store(pi, params.IdempotencyKey)
		return pi, nil
	}

	// Default mock behavior: a saved payment method confirms and
	// succeeds immediately, otherwise the intent waits for one.
	status := IntentStatusRequiresPaymentMethod
	if params.PaymentMethodID != "" {
		status = IntentStatusSucceeded
	}

	pi := &PaymentIntent{
		ID:              "pi_" + uuid.New().String(),
		ClientSecret:    "pi_" + uuid.New().String() + "_secret_" + uuid.New().String(),
		Amount:          params.Amount,
		Currency:        currencyOrDefault(params.Currency),
		Status:          status,
		CustomerID:      params.CustomerID,
		PaymentMethodID: params.PaymentMethodID,
		Metadata:        params.Metadata,
		CreatedAt:       time.Now(),
	}

	m.store(pi, params.IdempotencyKey)
	return pi, nil
}

// GetPaymentIntent retrieves a mock payment intent.
func (m *MockProvider) GetPaymentIntent(ctx context.Context, params GetPaymentIntentParams) (*PaymentIntent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.CallLog = append(m.CallLog, fmt.Sprintf("GetPaymentIntent(%s)", params.PaymentIntentID))

	if m.GetPaymentIntentFunc != nil {
		return m.GetPaymentIntentFunc(ctx, params)
	}

	pi, exists := m.PaymentIntents[params.PaymentIntentID]
	if !exists {
		return nil, ErrPaymentIntentNotFound
	}

	// Validate clinic ownership
	if params.ClinicID != "" && (pi.Metadata == nil || pi.Metadata["clinic_id"] != params.ClinicID) {
		return nil, ErrPaymentIntentNotFound
	}

	return pi, nil
}

// IsPaymentSuccessful reports whether the intent settled.
func (m *MockProvider) IsPaymentSuccessful(intent *PaymentIntent) bool {
	return intent != nil && intent.Status == IntentStatusSucceeded
}

// VerifyWebhookSignature verifies a mock webhook signature.
func (m *MockProvider) VerifyWebhookSignature(payload []byte, signature string, secret string) error {
	m.mu.Lock()
	m.CallLog = append(m.CallLog, "VerifyWebhookSignature")
	m.mu.Unlock()

	if m.VerifyWebhookSignatureFunc != nil {
		return m.VerifyWebhookSignatureFunc(payload, signature, secret)
	}

	// Default mock behavior: always verify successfully
	return nil
}

// SimulateSucceededPayment updates a payment intent to succeeded status.
// Used in tests to simulate asynchronous payment confirmation.
func (m *MockProvider) SimulateSucceededPayment(paymentIntentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	pi, exists := m.PaymentIntents[paymentIntentID]
	if !exists {
		return ErrPaymentIntentNotFound
	}

	pi.Status = IntentStatusSucceeded
	pi.LastPaymentError = nil
	return nil
}

// SimulateFailedPayment updates a payment intent to a failed state.
// Used in tests to simulate card declines.
func (m *MockProvider) SimulateFailedPayment(paymentIntentID string, errorCode string, errorMessage string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	pi, exists := m.PaymentIntents[paymentIntentID]
	if !exists {
		return ErrPaymentIntentNotFound
	}

	pi.Status = IntentStatusRequiresPaymentMethod
	pi.LastPaymentError = &PaymentError{
		Code:    errorCode,
		Message: errorMessage,
	}
	return nil
}

func (m *MockProvider) store(pi *PaymentIntent, idempotencyKey string) {
	m.PaymentIntents[pi.ID] = pi
	if idempotencyKey != "" {
		m.intentsByKey[idempotencyKey] = pi.ID
	}
}
