package service

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AdansBatista/orca-sub008/internal/domain"
	"github.com/AdansBatista/orca-sub008/internal/gateway"
	"github.com/AdansBatista/orca-sub008/internal/jobs"
	"github.com/AdansBatista/orca-sub008/internal/mock"
)

// =============================================================================
// FIXTURE
// =============================================================================

// engineFixture wires a BillingEngine to mocks. Plan and account start
// in a chargeable state; tests mutate them to break preconditions.
type engineFixture struct {
	clinicID  uuid.UUID
	planID    uuid.UUID
	accountID uuid.UUID

	plan    *domain.PaymentPlan
	account *domain.Account

	scheduled *mock.ScheduledPaymentService
	plans     *mock.PaymentPlanService
	accounts  *mock.AccountService
	payments  *mock.PaymentService
	gw        *gateway.MockProvider

	engine *BillingEngine
}

func newEngineFixture() *engineFixture {
	f := &engineFixture{
		clinicID:  uuid.New(),
		planID:    uuid.New(),
		accountID: uuid.New(),
		scheduled: &mock.ScheduledPaymentService{},
		plans:     &mock.PaymentPlanService{},
		accounts:  &mock.AccountService{},
		payments:  &mock.PaymentService{},
		gw:        gateway.NewMockProvider(),
	}

	f.plan = &domain.PaymentPlan{
		ID:              f.planID,
		ClinicID:        f.clinicID,
		AccountID:       f.accountID,
		AutoCharge:      true,
		PaymentMethodID: "pm_plan",
		Status:          domain.PlanStatusActive,
	}
	f.account = &domain.Account{
		ID:                     f.accountID,
		ClinicID:               f.clinicID,
		PatientName:            "Jordan Reyes",
		Email:                  "jordan@patients.example",
		GatewayCustomerID:      "cus_test123",
		DefaultPaymentMethodID: "pm_default",
	}

	f.plans.GetByIDFunc = func(_ context.Context, _, _ uuid.UUID) (*domain.PaymentPlan, error) {
		return f.plan, nil
	}
	f.accounts.GetByIDFunc = func(_ context.Context, _, _ uuid.UUID) (*domain.Account, error) {
		return f.account, nil
	}

	f.rebuild(nil, domain.RecurringBillingConfig{})
	return f
}

// rebuild reconstructs the engine, used by tests that need a job queue
// or a non-default policy.
func (f *engineFixture) rebuild(jobQueue domain.JobService, cfg domain.RecurringBillingConfig) {
	f.engine = NewBillingEngine(f.scheduled, f.plans, f.accounts, f.payments, jobQueue, f.gw, cfg, discardLogger())
}

func (f *engineFixture) pendingPayment(retryCount int32) *domain.ScheduledPayment {
	return &domain.ScheduledPayment{
		ID:         uuid.New(),
		ClinicID:   f.clinicID,
		PlanID:     f.planID,
		Amount:     decimal.RequireFromString("150.00"),
		DueDate:    time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC),
		Status:     domain.PaymentStatusPending,
		RetryCount: retryCount,
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// claimReturning claims sp, handing the engine a PROCESSING copy.
func claimReturning(sp *domain.ScheduledPayment) func(context.Context, uuid.UUID, uuid.UUID) (*domain.ScheduledPayment, error) {
	return func(_ context.Context, _, _ uuid.UUID) (*domain.ScheduledPayment, error) {
		claimed := *sp
		claimed.Status = domain.PaymentStatusProcessing
		return &claimed, nil
	}
}

func processingCopy(sp *domain.ScheduledPayment) domain.ScheduledPayment {
	c := *sp
	c.Status = domain.PaymentStatusProcessing
	return c
}

func declineWith(code, message string) func(context.Context, gateway.CreatePaymentIntentParams) (*gateway.PaymentIntent, error) {
	return func(_ context.Context, _ gateway.CreatePaymentIntentParams) (*gateway.PaymentIntent, error) {
		return nil, &gateway.StripeError{Code: code, DeclineCode: "generic_decline", Message: message}
	}
}

// =============================================================================
// SINGLE PAYMENT
// =============================================================================

func TestBillingEngine_ProcessScheduledPayment_Success(t *testing.T) {
	f := newEngineFixture()
	sp := f.pendingPayment(0)
	f.scheduled.ClaimFunc = claimReturning(sp)

	var captured gateway.CreatePaymentIntentParams
	f.gw.CreatePaymentIntentFunc = func(_ context.Context, params gateway.CreatePaymentIntentParams) (*gateway.PaymentIntent, error) {
		captured = params
		return &gateway.PaymentIntent{ID: "pi_test123", Status: gateway.IntentStatusSucceeded}, nil
	}

	paymentID := uuid.New()
	var finalized domain.FinalizeChargeParams
	f.scheduled.FinalizeChargeFunc = func(_ context.Context, params domain.FinalizeChargeParams) (*domain.FinalizeChargeResult, error) {
		finalized = params
		return &domain.FinalizeChargeResult{PaymentID: paymentID, PaymentNumber: "PAY-2026-00007", PlanCompleted: false}, nil
	}

	result, err := f.engine.ProcessScheduledPayment(context.Background(), f.clinicID, sp.ID, nil)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, domain.PaymentStatusCompleted, result.Status)
	require.NotNil(t, result.PaymentID)
	assert.Equal(t, paymentID, *result.PaymentID)
	assert.Empty(t, result.Error)

	// The charge must be idempotent per installment and off-session.
	assert.Equal(t, "sched_"+sp.ID.String(), captured.IdempotencyKey)
	assert.True(t, captured.OffSession)
	assert.Equal(t, "usd", captured.Currency)
	assert.Equal(t, "cus_test123", captured.CustomerID)
	assert.Equal(t, "pm_plan", captured.PaymentMethodID)
	assert.True(t, sp.Amount.Equal(captured.Amount))
	assert.Equal(t, f.clinicID.String(), captured.Metadata["clinic_id"])
	assert.Equal(t, sp.ID.String(), captured.Metadata["scheduled_payment_id"])
	assert.Equal(t, f.planID.String(), captured.Metadata["plan_id"])
	assert.Equal(t, f.accountID.String(), captured.Metadata["account_id"])

	assert.Equal(t, "pi_test123", finalized.GatewayTransactionID)
	assert.Equal(t, "billing-engine", finalized.Actor)
	require.NotNil(t, finalized.ScheduledPayment)
	assert.Equal(t, sp.ID, finalized.ScheduledPayment.ID)
}

func TestBillingEngine_ProcessScheduledPayment_NotPending(t *testing.T) {
	f := newEngineFixture()
	id := uuid.New()
	f.scheduled.ClaimFunc = func(_ context.Context, _, _ uuid.UUID) (*domain.ScheduledPayment, error) {
		return nil, domain.ErrPaymentNotPending
	}

	result, err := f.engine.ProcessScheduledPayment(context.Background(), f.clinicID, id, nil)
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, "Scheduled payment is not pending", result.Error)
	assert.Empty(t, f.gw.CallLog, "a rejected claim must not reach the gateway")
}

func TestBillingEngine_ProcessScheduledPayment_DeclineSchedulesRetry(t *testing.T) {
	tests := []struct {
		name          string
		retryCount    int32
		wantDelayDays int
	}{
		{"first failure waits 1 day", 0, 1},
		{"second failure waits 3 days", 1, 3},
		{"third failure waits 7 days", 2, 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newEngineFixture()
			sp := f.pendingPayment(tt.retryCount)
			f.scheduled.ClaimFunc = claimReturning(sp)
			f.gw.CreatePaymentIntentFunc = declineWith("card_declined", "Your card has insufficient funds.")

			var retry domain.ScheduleRetryParams
			f.scheduled.ScheduleRetryFunc = func(_ context.Context, params domain.ScheduleRetryParams) error {
				retry = params
				return nil
			}

			result, err := f.engine.ProcessScheduledPayment(context.Background(), f.clinicID, sp.ID, nil)
			require.NoError(t, err)
			assert.False(t, result.Success)
			assert.True(t, result.RetryScheduled)
			assert.Equal(t, domain.PaymentStatusPending, result.Status)
			assert.Equal(t, "Your card has insufficient funds.", result.Error)

			wantDue := dateOnly(time.Now().UTC().AddDate(0, 0, tt.wantDelayDays))
			assert.Equal(t, sp.ID, retry.ID)
			assert.Equal(t, wantDue, retry.NextDueDate)
			assert.Equal(t, "Your card has insufficient funds.", retry.Reason)
			require.NotNil(t, result.NextRetryDate)
			assert.Equal(t, wantDue, *result.NextRetryDate)
		})
	}
}

func TestBillingEngine_ProcessScheduledPayment_RetriesExhausted(t *testing.T) {
	f := newEngineFixture()
	sp := f.pendingPayment(3) // the whole ladder already consumed
	f.scheduled.ClaimFunc = claimReturning(sp)
	f.gw.CreatePaymentIntentFunc = declineWith("card_declined", "Your card was declined.")

	var failed domain.MarkFailedParams
	f.scheduled.MarkFailedFunc = func(_ context.Context, params domain.MarkFailedParams) error {
		failed = params
		return nil
	}

	result, err := f.engine.ProcessScheduledPayment(context.Background(), f.clinicID, sp.ID, nil)
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.False(t, result.RetryScheduled)
	assert.Equal(t, domain.PaymentStatusFailed, result.Status)
	assert.Equal(t, sp.ID, failed.ID)
	assert.Equal(t, "Your card was declined.", failed.Reason)
}

func TestBillingEngine_ProcessScheduledPayment_IntentNotSucceeded(t *testing.T) {
	f := newEngineFixture()
	sp := f.pendingPayment(0)
	f.scheduled.ClaimFunc = claimReturning(sp)

	// No transport error, but the intent came back unsettled.
	f.gw.CreatePaymentIntentFunc = func(_ context.Context, _ gateway.CreatePaymentIntentParams) (*gateway.PaymentIntent, error) {
		return &gateway.PaymentIntent{
			ID:     "pi_pending",
			Status: gateway.IntentStatusRequiresAction,
		}, nil
	}

	var retry domain.ScheduleRetryParams
	f.scheduled.ScheduleRetryFunc = func(_ context.Context, params domain.ScheduleRetryParams) error {
		retry = params
		return nil
	}

	result, err := f.engine.ProcessScheduledPayment(context.Background(), f.clinicID, sp.ID, nil)
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.True(t, result.RetryScheduled)
	assert.Contains(t, retry.Reason, "requires_action")
}

func TestBillingEngine_ProcessScheduledPayment_Preconditions(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(f *engineFixture)
		reason string
	}{
		{
			name:   "auto-charge disabled",
			mutate: func(f *engineFixture) { f.plan.AutoCharge = false },
			reason: "Auto-charge is disabled for this plan",
		},
		{
			name:   "no gateway customer",
			mutate: func(f *engineFixture) { f.account.GatewayCustomerID = "" },
			reason: "No gateway customer on file",
		},
		{
			name: "no payment method anywhere",
			mutate: func(f *engineFixture) {
				f.plan.PaymentMethodID = ""
				f.account.DefaultPaymentMethodID = ""
			},
			reason: "No payment method on file",
		},
		{
			name: "plan missing",
			mutate: func(f *engineFixture) {
				f.plans.GetByIDFunc = func(_ context.Context, _, _ uuid.UUID) (*domain.PaymentPlan, error) {
					return nil, domain.ErrPaymentPlanNotFound
				}
			},
			reason: "Payment plan not found",
		},
		{
			name: "account missing",
			mutate: func(f *engineFixture) {
				f.accounts.GetByIDFunc = func(_ context.Context, _, _ uuid.UUID) (*domain.Account, error) {
					return nil, domain.ErrAccountNotFound
				}
			},
			reason: "Billing account not found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newEngineFixture()
			tt.mutate(f)

			sp := f.pendingPayment(0)
			f.scheduled.ClaimFunc = claimReturning(sp)

			var failed domain.MarkFailedParams
			f.scheduled.MarkFailedFunc = func(_ context.Context, params domain.MarkFailedParams) error {
				failed = params
				return nil
			}

			result, err := f.engine.ProcessScheduledPayment(context.Background(), f.clinicID, sp.ID, nil)
			require.NoError(t, err)
			assert.False(t, result.Success)
			assert.False(t, result.RetryScheduled, "precondition failures must not consume the retry ladder")
			assert.Equal(t, domain.PaymentStatusFailed, result.Status)
			assert.Equal(t, tt.reason, result.Error)
			assert.Equal(t, tt.reason, failed.Reason)
			assert.Empty(t, f.gw.CallLog, "precondition failures must not reach the gateway")
		})
	}
}

func TestBillingEngine_ProcessScheduledPayment_AccountDefaultMethodFallback(t *testing.T) {
	f := newEngineFixture()
	f.plan.PaymentMethodID = ""

	sp := f.pendingPayment(0)
	f.scheduled.ClaimFunc = claimReturning(sp)

	var captured gateway.CreatePaymentIntentParams
	f.gw.CreatePaymentIntentFunc = func(_ context.Context, params gateway.CreatePaymentIntentParams) (*gateway.PaymentIntent, error) {
		captured = params
		return &gateway.PaymentIntent{ID: "pi_fallback", Status: gateway.IntentStatusSucceeded}, nil
	}
	f.scheduled.FinalizeChargeFunc = func(_ context.Context, _ domain.FinalizeChargeParams) (*domain.FinalizeChargeResult, error) {
		return &domain.FinalizeChargeResult{PaymentID: uuid.New(), PaymentNumber: "PAY-2026-00008"}, nil
	}

	result, err := f.engine.ProcessScheduledPayment(context.Background(), f.clinicID, sp.ID, nil)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "pm_default", captured.PaymentMethodID)
}

func TestBillingEngine_ProcessScheduledPayment_FinalizeFailurePropagates(t *testing.T) {
	f := newEngineFixture()
	sp := f.pendingPayment(0)
	f.scheduled.ClaimFunc = claimReturning(sp)

	f.gw.CreatePaymentIntentFunc = func(_ context.Context, _ gateway.CreatePaymentIntentParams) (*gateway.PaymentIntent, error) {
		return &gateway.PaymentIntent{ID: "pi_orphan", Status: gateway.IntentStatusSucceeded}, nil
	}
	// Money moved but the record write failed. The row must stay
	// PROCESSING (no MarkFailed, no ScheduleRetry) for reconciliation.
	f.scheduled.FinalizeChargeFunc = func(_ context.Context, _ domain.FinalizeChargeParams) (*domain.FinalizeChargeResult, error) {
		return nil, domain.Internal(errors.New("connection reset"), "scheduled_payment.finalize", "failed to record payment")
	}

	_, err := f.engine.ProcessScheduledPayment(context.Background(), f.clinicID, sp.ID, nil)
	require.Error(t, err)
	assert.Equal(t, domain.EINTERNAL, domain.ErrorCode(err))
}

// =============================================================================
// BATCH
// =============================================================================

func TestBillingEngine_ProcessDuePayments_FailureDoesNotAbortBatch(t *testing.T) {
	f := newEngineFixture()
	spFail := f.pendingPayment(3)
	spOK := f.pendingPayment(0)

	f.scheduled.ClaimDueFunc = func(_ context.Context, clinicID uuid.UUID, _ time.Time) ([]domain.ScheduledPayment, error) {
		assert.Equal(t, f.clinicID, clinicID)
		return []domain.ScheduledPayment{processingCopy(spFail), processingCopy(spOK)}, nil
	}
	f.gw.CreatePaymentIntentFunc = func(_ context.Context, params gateway.CreatePaymentIntentParams) (*gateway.PaymentIntent, error) {
		if params.Metadata["scheduled_payment_id"] == spFail.ID.String() {
			return nil, &gateway.StripeError{Code: "card_declined", Message: "Your card was declined."}
		}
		return &gateway.PaymentIntent{ID: "pi_batch_ok", Status: gateway.IntentStatusSucceeded}, nil
	}
	f.scheduled.MarkFailedFunc = func(_ context.Context, _ domain.MarkFailedParams) error { return nil }
	f.scheduled.FinalizeChargeFunc = func(_ context.Context, _ domain.FinalizeChargeParams) (*domain.FinalizeChargeResult, error) {
		return &domain.FinalizeChargeResult{PaymentID: uuid.New(), PaymentNumber: "PAY-2026-00009"}, nil
	}

	results, err := f.engine.ProcessDuePayments(context.Background(), f.clinicID, nil)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, spFail.ID, results[0].ScheduledPaymentID)
	assert.False(t, results[0].Success)
	assert.Equal(t, domain.PaymentStatusFailed, results[0].Status)
	assert.Equal(t, spOK.ID, results[1].ScheduledPaymentID)
	assert.True(t, results[1].Success)
}

func TestBillingEngine_ProcessDuePayments_InfraErrorStopsBatch(t *testing.T) {
	f := newEngineFixture()
	sp1 := f.pendingPayment(0)
	sp2 := f.pendingPayment(0)

	f.scheduled.ClaimDueFunc = func(_ context.Context, _ uuid.UUID, _ time.Time) ([]domain.ScheduledPayment, error) {
		return []domain.ScheduledPayment{processingCopy(sp1), processingCopy(sp2)}, nil
	}
	f.gw.CreatePaymentIntentFunc = func(_ context.Context, _ gateway.CreatePaymentIntentParams) (*gateway.PaymentIntent, error) {
		return &gateway.PaymentIntent{ID: "pi_" + uuid.NewString(), Status: gateway.IntentStatusSucceeded}, nil
	}
	f.scheduled.FinalizeChargeFunc = func(_ context.Context, params domain.FinalizeChargeParams) (*domain.FinalizeChargeResult, error) {
		if params.ScheduledPayment.ID == sp2.ID {
			return nil, domain.Internal(errors.New("connection reset"), "scheduled_payment.finalize", "failed to record payment")
		}
		return &domain.FinalizeChargeResult{PaymentID: uuid.New(), PaymentNumber: "PAY-2026-00010"}, nil
	}

	results, err := f.engine.ProcessDuePayments(context.Background(), f.clinicID, nil)
	require.Error(t, err)
	require.Len(t, results, 1, "results processed before the failure are returned")
	assert.True(t, results[0].Success)
}

func TestBillingEngine_ProcessDuePayments_Empty(t *testing.T) {
	f := newEngineFixture()
	f.scheduled.ClaimDueFunc = func(_ context.Context, _ uuid.UUID, _ time.Time) ([]domain.ScheduledPayment, error) {
		return nil, nil
	}

	results, err := f.engine.ProcessDuePayments(context.Background(), f.clinicID, nil)
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Empty(t, f.gw.CallLog)
}

// =============================================================================
// OPERATOR ACTIONS
// =============================================================================

func TestBillingEngine_RetryScheduledPayment(t *testing.T) {
	t.Run("completed payment rejected without mutation", func(t *testing.T) {
		f := newEngineFixture()
		id := uuid.New()
		f.scheduled.ResetForRetryFunc = func(_ context.Context, _, _ uuid.UUID, _ time.Time) (*domain.ScheduledPayment, error) {
			return nil, domain.ErrPaymentAlreadyCompleted
		}

		result, err := f.engine.RetryScheduledPayment(context.Background(), f.clinicID, id, nil)
		require.NoError(t, err)
		assert.False(t, result.Success)
		assert.Equal(t, "Payment has already been completed", result.Error)
		assert.Empty(t, f.gw.CallLog)
	})

	t.Run("failed payment gets one fresh attempt", func(t *testing.T) {
		f := newEngineFixture()
		sp := f.pendingPayment(3)
		sp.Status = domain.PaymentStatusFailed

		resetCalled := false
		f.scheduled.ResetForRetryFunc = func(_ context.Context, _, id uuid.UUID, _ time.Time) (*domain.ScheduledPayment, error) {
			resetCalled = true
			assert.Equal(t, sp.ID, id)
			revived := *sp
			revived.Status = domain.PaymentStatusPending
			return &revived, nil
		}
		f.scheduled.ClaimFunc = func(_ context.Context, _, id uuid.UUID) (*domain.ScheduledPayment, error) {
			require.True(t, resetCalled, "claim must follow the reset")
			claimed := *sp
			claimed.Status = domain.PaymentStatusProcessing
			return &claimed, nil
		}
		f.gw.CreatePaymentIntentFunc = func(_ context.Context, _ gateway.CreatePaymentIntentParams) (*gateway.PaymentIntent, error) {
			return &gateway.PaymentIntent{ID: "pi_manual", Status: gateway.IntentStatusSucceeded}, nil
		}
		f.scheduled.FinalizeChargeFunc = func(_ context.Context, _ domain.FinalizeChargeParams) (*domain.FinalizeChargeResult, error) {
			return &domain.FinalizeChargeResult{PaymentID: uuid.New(), PaymentNumber: "PAY-2026-00011"}, nil
		}

		result, err := f.engine.RetryScheduledPayment(context.Background(), f.clinicID, sp.ID, nil)
		require.NoError(t, err)
		assert.True(t, result.Success)
	})
}

func TestBillingEngine_SkipScheduledPayment(t *testing.T) {
	f := newEngineFixture()
	id := uuid.New()

	var gotReason string
	f.scheduled.MarkSkippedFunc = func(_ context.Context, _, gotID uuid.UUID, reason string) error {
		assert.Equal(t, id, gotID)
		gotReason = reason
		return nil
	}

	err := f.engine.SkipScheduledPayment(context.Background(), f.clinicID, id, "plan restructured")
	require.NoError(t, err)
	assert.Equal(t, "plan restructured", gotReason)

	// Terminal rows are rejected by the store's transition gate.
	f.scheduled.MarkSkippedFunc = func(_ context.Context, _, _ uuid.UUID, _ string) error {
		return domain.ValidateTransition("payment.skip", domain.PaymentStatusCompleted, domain.PaymentStatusSkipped)
	}
	err = f.engine.SkipScheduledPayment(context.Background(), f.clinicID, id, "late skip")
	require.Error(t, err)
	assert.Equal(t, domain.ECONFLICT, domain.ErrorCode(err))
}

func TestBillingEngine_ConfigOverride(t *testing.T) {
	f := newEngineFixture()
	sp := f.pendingPayment(1)
	f.scheduled.ClaimFunc = claimReturning(sp)
	f.gw.CreatePaymentIntentFunc = declineWith("card_declined", "Your card was declined.")

	markFailedCalled := false
	f.scheduled.MarkFailedFunc = func(_ context.Context, _ domain.MarkFailedParams) error {
		markFailedCalled = true
		return nil
	}

	// With the default policy a retry count of 1 would retry again; the
	// override caps attempts at 1 and the delay ladder is inherited.
	override := &domain.RecurringBillingConfig{MaxRetryAttempts: 1}
	result, err := f.engine.ProcessScheduledPayment(context.Background(), f.clinicID, sp.ID, override)
	require.NoError(t, err)
	assert.True(t, markFailedCalled)
	assert.Equal(t, domain.PaymentStatusFailed, result.Status)
}

// =============================================================================
// SCHEDULE GENERATION
// =============================================================================

func TestBillingEngine_GenerateScheduledPayments(t *testing.T) {
	f := newEngineFixture()

	var created []domain.ScheduledPayment
	f.scheduled.CreateBatchFunc = func(_ context.Context, rows []domain.ScheduledPayment) ([]domain.ScheduledPayment, error) {
		created = rows
		out := make([]domain.ScheduledPayment, len(rows))
		for i, row := range rows {
			row.ID = uuid.New()
			row.Status = domain.PaymentStatusPending
			out[i] = row
		}
		return out, nil
	}

	amount := decimal.RequireFromString("185.50")
	start := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	rows, err := f.engine.GenerateScheduledPayments(context.Background(), domain.GenerateScheduleParams{
		ClinicID:  f.clinicID,
		PlanID:    f.planID,
		StartDate: start,
		Count:     4,
		Amount:    amount,
		Frequency: domain.FrequencyMonthly,
	})
	require.NoError(t, err)
	require.Len(t, rows, 4)
	require.Len(t, created, 4)

	wantDates := []time.Time{
		time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 4, 15, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 5, 15, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 6, 15, 0, 0, 0, 0, time.UTC),
	}
	for i, row := range created {
		assert.Equal(t, f.clinicID, row.ClinicID)
		assert.Equal(t, f.planID, row.PlanID)
		assert.True(t, amount.Equal(row.Amount), "amount copied verbatim to row %d", i)
		assert.Equal(t, wantDates[i], row.DueDate)
	}
	for _, row := range rows {
		assert.Equal(t, domain.PaymentStatusPending, row.Status)
	}
}

func TestBillingEngine_GenerateScheduledPayments_Validation(t *testing.T) {
	valid := func(f *engineFixture) domain.GenerateScheduleParams {
		return domain.GenerateScheduleParams{
			ClinicID:  f.clinicID,
			PlanID:    f.planID,
			StartDate: time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC),
			Count:     3,
			Amount:    decimal.RequireFromString("100.00"),
			Frequency: domain.FrequencyWeekly,
		}
	}

	tests := []struct {
		name    string
		mutate  func(f *engineFixture, p *domain.GenerateScheduleParams)
		wantErr error
	}{
		{
			name:    "zero count",
			mutate:  func(_ *engineFixture, p *domain.GenerateScheduleParams) { p.Count = 0 },
			wantErr: ErrInvalidCount,
		},
		{
			name:    "negative count",
			mutate:  func(_ *engineFixture, p *domain.GenerateScheduleParams) { p.Count = -2 },
			wantErr: ErrInvalidCount,
		},
		{
			name:    "unknown frequency",
			mutate:  func(_ *engineFixture, p *domain.GenerateScheduleParams) { p.Frequency = "DAILY" },
			wantErr: ErrInvalidFrequency,
		},
		{
			name:    "zero amount",
			mutate:  func(_ *engineFixture, p *domain.GenerateScheduleParams) { p.Amount = decimal.Zero },
			wantErr: ErrInvalidAmount,
		},
		{
			name:    "negative amount",
			mutate:  func(_ *engineFixture, p *domain.GenerateScheduleParams) { p.Amount = decimal.RequireFromString("-5") },
			wantErr: ErrInvalidAmount,
		},
		{
			name:    "zero start date",
			mutate:  func(_ *engineFixture, p *domain.GenerateScheduleParams) { p.StartDate = time.Time{} },
			wantErr: ErrInvalidStartDate,
		},
		{
			name: "plan not active",
			mutate: func(f *engineFixture, _ *domain.GenerateScheduleParams) {
				f.plan.Status = domain.PlanStatusCompleted
			},
			wantErr: domain.ErrPlanNotActive,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newEngineFixture()
			params := valid(f)
			tt.mutate(f, &params)

			_, err := f.engine.GenerateScheduledPayments(context.Background(), params)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

// =============================================================================
// RECONCILIATION
// =============================================================================

func TestBillingEngine_ReconcileStalePayments(t *testing.T) {
	f := newEngineFixture()
	recorded := f.pendingPayment(0)
	orphaned := f.pendingPayment(0)
	ledgerID := uuid.New()

	f.scheduled.ListStaleProcessingFunc = func(_ context.Context, _ uuid.UUID, cutoff time.Time) ([]domain.ScheduledPayment, error) {
		assert.True(t, cutoff.Before(time.Now()), "cutoff must be in the past")
		return []domain.ScheduledPayment{processingCopy(recorded), processingCopy(orphaned)}, nil
	}
	f.payments.GetBySourceFunc = func(_ context.Context, _ uuid.UUID, _ domain.PaymentSourceType, sourceID uuid.UUID) (*domain.Payment, error) {
		if sourceID == recorded.ID {
			return &domain.Payment{ID: ledgerID, SourceID: sourceID}, nil
		}
		return nil, nil
	}

	var capturedKey string
	f.gw.CreatePaymentIntentFunc = func(_ context.Context, params gateway.CreatePaymentIntentParams) (*gateway.PaymentIntent, error) {
		capturedKey = params.IdempotencyKey
		return &gateway.PaymentIntent{ID: "pi_replayed", Status: gateway.IntentStatusSucceeded}, nil
	}
	f.scheduled.FinalizeChargeFunc = func(_ context.Context, _ domain.FinalizeChargeParams) (*domain.FinalizeChargeResult, error) {
		return &domain.FinalizeChargeResult{PaymentID: uuid.New(), PaymentNumber: "PAY-2026-00012"}, nil
	}

	results, err := f.engine.ReconcileStalePayments(context.Background(), f.clinicID, 30*time.Minute)
	require.NoError(t, err)
	require.Len(t, results, 2)

	// Already-recorded charge resolves from the ledger without a gateway call.
	assert.True(t, results[0].Success)
	require.NotNil(t, results[0].PaymentID)
	assert.Equal(t, ledgerID, *results[0].PaymentID)

	// The orphan replays under its original idempotency key.
	assert.True(t, results[1].Success)
	assert.Equal(t, "sched_"+orphaned.ID.String(), capturedKey)
	assert.Len(t, f.gw.CallLog, 1, "exactly one payment needed the gateway")
}

func TestBillingEngine_ReconcileGatewayResult(t *testing.T) {
	t.Run("completed row is idempotent", func(t *testing.T) {
		f := newEngineFixture()
		sp := f.pendingPayment(0)
		paymentID := uuid.New()
		sp.Status = domain.PaymentStatusCompleted
		sp.PaymentID = &paymentID
		f.scheduled.GetByIDFunc = func(_ context.Context, _, _ uuid.UUID) (*domain.ScheduledPayment, error) {
			return sp, nil
		}

		result, err := f.engine.ReconcileGatewayResult(context.Background(), f.clinicID, sp.ID, true, "pi_webhook", "")
		require.NoError(t, err)
		assert.True(t, result.Success)
		assert.Equal(t, paymentID, *result.PaymentID)
		assert.Empty(t, f.gw.CallLog)
	})

	t.Run("processing row with success settles", func(t *testing.T) {
		f := newEngineFixture()
		sp := f.pendingPayment(0)
		sp.Status = domain.PaymentStatusProcessing
		f.scheduled.GetByIDFunc = func(_ context.Context, _, _ uuid.UUID) (*domain.ScheduledPayment, error) {
			return sp, nil
		}

		var finalized domain.FinalizeChargeParams
		f.scheduled.FinalizeChargeFunc = func(_ context.Context, params domain.FinalizeChargeParams) (*domain.FinalizeChargeResult, error) {
			finalized = params
			return &domain.FinalizeChargeResult{PaymentID: uuid.New(), PaymentNumber: "PAY-2026-00013"}, nil
		}

		result, err := f.engine.ReconcileGatewayResult(context.Background(), f.clinicID, sp.ID, true, "pi_webhook", "")
		require.NoError(t, err)
		assert.True(t, result.Success)
		assert.Equal(t, "pi_webhook", finalized.GatewayTransactionID)
	})

	t.Run("processing row with failure schedules retry", func(t *testing.T) {
		f := newEngineFixture()
		sp := f.pendingPayment(0)
		sp.Status = domain.PaymentStatusProcessing
		f.scheduled.GetByIDFunc = func(_ context.Context, _, _ uuid.UUID) (*domain.ScheduledPayment, error) {
			return sp, nil
		}

		var retry domain.ScheduleRetryParams
		f.scheduled.ScheduleRetryFunc = func(_ context.Context, params domain.ScheduleRetryParams) error {
			retry = params
			return nil
		}

		result, err := f.engine.ReconcileGatewayResult(context.Background(), f.clinicID, sp.ID, false, "", "Card was declined.")
		require.NoError(t, err)
		assert.False(t, result.Success)
		assert.True(t, result.RetryScheduled)
		assert.Equal(t, "Card was declined.", retry.Reason)
	})

	t.Run("pending row with failure is left alone", func(t *testing.T) {
		f := newEngineFixture()
		sp := f.pendingPayment(1)
		f.scheduled.GetByIDFunc = func(_ context.Context, _, _ uuid.UUID) (*domain.ScheduledPayment, error) {
			return sp, nil
		}

		result, err := f.engine.ReconcileGatewayResult(context.Background(), f.clinicID, sp.ID, false, "", "Card was declined.")
		require.NoError(t, err)
		assert.False(t, result.Success)
		assert.True(t, result.RetryScheduled, "the engine already scheduled this retry")
		assert.Empty(t, f.gw.CallLog)
	})

	t.Run("failed row with success is revived and recorded", func(t *testing.T) {
		f := newEngineFixture()
		sp := f.pendingPayment(3)
		sp.Status = domain.PaymentStatusFailed
		f.scheduled.GetByIDFunc = func(_ context.Context, _, _ uuid.UUID) (*domain.ScheduledPayment, error) {
			return sp, nil
		}
		f.scheduled.ResetForRetryFunc = func(_ context.Context, _, _ uuid.UUID, _ time.Time) (*domain.ScheduledPayment, error) {
			revived := *sp
			revived.Status = domain.PaymentStatusPending
			return &revived, nil
		}
		f.scheduled.ClaimFunc = claimReturning(sp)
		f.scheduled.FinalizeChargeFunc = func(_ context.Context, _ domain.FinalizeChargeParams) (*domain.FinalizeChargeResult, error) {
			return &domain.FinalizeChargeResult{PaymentID: uuid.New(), PaymentNumber: "PAY-2026-00014"}, nil
		}

		result, err := f.engine.ReconcileGatewayResult(context.Background(), f.clinicID, sp.ID, true, "pi_late_webhook", "")
		require.NoError(t, err)
		assert.True(t, result.Success)
		assert.Equal(t, domain.PaymentStatusCompleted, result.Status)
	})
}

// =============================================================================
// ATTENTION + NOTIFICATIONS
// =============================================================================

func TestBillingEngine_PaymentsNeedingAttention(t *testing.T) {
	f := newEngineFixture()
	want := &domain.AttentionSummary{Failed: 2, Overdue: 5, DueToday: 1, UpcomingWeek: 9}
	f.scheduled.CountAttentionFunc = func(_ context.Context, clinicID uuid.UUID, _ time.Time) (*domain.AttentionSummary, error) {
		assert.Equal(t, f.clinicID, clinicID)
		return want, nil
	}

	got, err := f.engine.PaymentsNeedingAttention(context.Background(), f.clinicID)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestBillingEngine_Notifications(t *testing.T) {
	t.Run("failure enqueues notification job", func(t *testing.T) {
		f := newEngineFixture()
		var enqueued []domain.EnqueueJobParams
		jobQueue := &mock.JobService{
			EnqueueFunc: func(_ context.Context, params domain.EnqueueJobParams) (*domain.Job, error) {
				enqueued = append(enqueued, params)
				return &domain.Job{ID: uuid.New()}, nil
			},
		}
		f.rebuild(jobQueue, domain.RecurringBillingConfig{NotifyOnFailure: true})

		sp := f.pendingPayment(0)
		f.scheduled.ClaimFunc = claimReturning(sp)
		f.gw.CreatePaymentIntentFunc = declineWith("card_declined", "Your card was declined.")
		f.scheduled.ScheduleRetryFunc = func(_ context.Context, _ domain.ScheduleRetryParams) error { return nil }

		_, err := f.engine.ProcessScheduledPayment(context.Background(), f.clinicID, sp.ID, nil)
		require.NoError(t, err)
		require.Len(t, enqueued, 1)
		assert.Equal(t, jobs.JobTypePaymentFailedNotification, enqueued[0].JobType)
		assert.Equal(t, f.clinicID, enqueued[0].ClinicID)

		var payload jobs.PaymentFailedPayload
		require.NoError(t, json.Unmarshal(enqueued[0].Payload, &payload))
		assert.Equal(t, sp.ID, payload.ScheduledPaymentID)
		assert.Equal(t, "Your card was declined.", payload.Reason)
		assert.True(t, payload.RetryScheduled)
		require.NotNil(t, payload.NextRetryDate)
	})

	t.Run("success enqueues receipt job", func(t *testing.T) {
		f := newEngineFixture()
		var enqueued []domain.EnqueueJobParams
		jobQueue := &mock.JobService{
			EnqueueFunc: func(_ context.Context, params domain.EnqueueJobParams) (*domain.Job, error) {
				enqueued = append(enqueued, params)
				return &domain.Job{ID: uuid.New()}, nil
			},
		}
		f.rebuild(jobQueue, domain.RecurringBillingConfig{NotifyOnSuccess: true})

		sp := f.pendingPayment(0)
		f.scheduled.ClaimFunc = claimReturning(sp)
		f.gw.CreatePaymentIntentFunc = func(_ context.Context, _ gateway.CreatePaymentIntentParams) (*gateway.PaymentIntent, error) {
			return &gateway.PaymentIntent{ID: "pi_receipt", Status: gateway.IntentStatusSucceeded}, nil
		}
		paymentID := uuid.New()
		f.scheduled.FinalizeChargeFunc = func(_ context.Context, _ domain.FinalizeChargeParams) (*domain.FinalizeChargeResult, error) {
			return &domain.FinalizeChargeResult{PaymentID: paymentID, PaymentNumber: "PAY-2026-00015"}, nil
		}

		_, err := f.engine.ProcessScheduledPayment(context.Background(), f.clinicID, sp.ID, nil)
		require.NoError(t, err)
		require.Len(t, enqueued, 1)
		assert.Equal(t, jobs.JobTypePaymentReceipt, enqueued[0].JobType)

		var payload jobs.PaymentReceiptPayload
		require.NoError(t, json.Unmarshal(enqueued[0].Payload, &payload))
		assert.Equal(t, paymentID, payload.PaymentID)
		assert.Equal(t, "PAY-2026-00015", payload.PaymentNumber)
		assert.Equal(t, f.accountID, payload.AccountID)
	})

	t.Run("enqueue failure never fails the payment", func(t *testing.T) {
		f := newEngineFixture()
		jobQueue := &mock.JobService{
			EnqueueFunc: func(_ context.Context, _ domain.EnqueueJobParams) (*domain.Job, error) {
				return nil, domain.Internal(errors.New("queue full"), "job.enqueue", "failed to enqueue job")
			},
		}
		f.rebuild(jobQueue, domain.RecurringBillingConfig{NotifyOnSuccess: true})

		sp := f.pendingPayment(0)
		f.scheduled.ClaimFunc = claimReturning(sp)
		f.gw.CreatePaymentIntentFunc = func(_ context.Context, _ gateway.CreatePaymentIntentParams) (*gateway.PaymentIntent, error) {
			return &gateway.PaymentIntent{ID: "pi_noqueue", Status: gateway.IntentStatusSucceeded}, nil
		}
		f.scheduled.FinalizeChargeFunc = func(_ context.Context, _ domain.FinalizeChargeParams) (*domain.FinalizeChargeResult, error) {
			return &domain.FinalizeChargeResult{PaymentID: uuid.New(), PaymentNumber: "PAY-2026-00016"}, nil
		}

		result, err := f.engine.ProcessScheduledPayment(context.Background(), f.clinicID, sp.ID, nil)
		require.NoError(t, err)
		assert.True(t, result.Success)
	})
}
