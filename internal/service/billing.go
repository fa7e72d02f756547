package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/AdansBatista/orca-sub008/internal/domain"
	"github.com/AdansBatista/orca-sub008/internal/gateway"
	"github.com/AdansBatista/orca-sub008/internal/jobs"
	"github.com/AdansBatista/orca-sub008/internal/telemetry"
)

// billingActor is recorded on balance updates made by the engine.
const billingActor = "billing-engine"

// BillingEngine drives scheduled payments through their lifecycle:
// due-payment discovery, gateway charging, retry scheduling, ledger
// recording, balance reconciliation, and plan completion detection.
//
// Business failures (declines, exhausted retries, precondition
// violations) are reported inside ProcessingResult; Go errors are
// reserved for infrastructure failures.
type BillingEngine struct {
	scheduledPayments domain.ScheduledPaymentService
	plans             domain.PaymentPlanService
	accounts          domain.AccountService
	payments          domain.PaymentService
	jobQueue          domain.JobService
	gateway           gateway.Provider
	cfg               domain.RecurringBillingConfig
	logger            *slog.Logger
}

// Compile-time check that BillingEngine implements domain.RecurringBillingService.
var _ domain.RecurringBillingService = (*BillingEngine)(nil)

// NewBillingEngine creates the billing engine. Zero-valued cfg fields
// inherit the stock policy. jobQueue may be nil, disabling notification
// enqueueing.
func NewBillingEngine(
	scheduledPayments domain.ScheduledPaymentService,
	plans domain.PaymentPlanService,
	accounts domain.AccountService,
	payments domain.PaymentService,
	jobQueue domain.JobService,
	gw gateway.Provider,
	cfg domain.RecurringBillingConfig,
	logger *slog.Logger,
) *BillingEngine {
	return &BillingEngine{
		scheduledPayments: scheduledPayments,
		plans:             plans,
		accounts:          accounts,
		payments:          payments,
		jobQueue:          jobQueue,
		gateway:           gw,
		cfg:               cfg.WithDefaults(domain.DefaultRecurringBillingConfig()),
		logger:            logger,
	}
}

// resolveConfig merges a per-call override with the engine's policy.
func (e *BillingEngine) resolveConfig(override *domain.RecurringBillingConfig) domain.RecurringBillingConfig {
	if override == nil {
		return e.cfg
	}
	return override.WithDefaults(e.cfg)
}

// =============================================================================
// BATCH PROCESSING
// =============================================================================

// ProcessDuePayments claims every due PENDING installment for the clinic
// and processes each sequentially, earliest due date first. Individual
// charge failures never abort the batch; an infrastructure error stops
// the run and is returned along with the results produced so far.
func (e *BillingEngine) ProcessDuePayments(ctx context.Context, clinicID uuid.UUID, cfg *domain.RecurringBillingConfig) ([]domain.ProcessingResult, error) {
	policy := e.resolveConfig(cfg)

	claimed, err := e.scheduledPayments.ClaimDue(ctx, clinicID, time.Now().UTC())
	if err != nil {
		return nil, err
	}

	e.logger.Info("processing due payments",
		"clinic_id", clinicID,
		"claimed", len(claimed),
	)

	results := make([]domain.ProcessingResult, 0, len(claimed))
	for i := range claimed {
		result, err := e.charge(ctx, &claimed[i], policy)
		if err != nil {
			return results, err
		}
		results = append(results, result)
	}

	return results, nil
}

// ProcessScheduledPayment drives a single installment through the state
// machine. A row that is not PENDING (concurrently claimed, or terminal)
// is rejected in the result without a gateway call.
func (e *BillingEngine) ProcessScheduledPayment(ctx context.Context, clinicID, id uuid.UUID, cfg *domain.RecurringBillingConfig) (domain.ProcessingResult, error) {
	policy := e.resolveConfig(cfg)

	sp, err := e.scheduledPayments.Claim(ctx, clinicID, id)
	if err != nil {
		switch domain.ErrorCode(err) {
		case domain.ENOTFOUND, domain.ECONFLICT:
			return domain.ProcessingResult{
				ScheduledPaymentID: id,
				Success:            false,
				Error:              domain.ErrorMessage(err),
			}, nil
		}
		return domain.ProcessingResult{}, err
	}

	return e.charge(ctx, sp, policy)
}

// RetryScheduledPayment is the operator-triggered retry. COMPLETED rows
// are rejected without mutation; anything else is force-reset to PENDING
// due now and re-enters the normal processing path. The retry count is
// preserved, so an exhausted installment gets exactly one fresh attempt.
func (e *BillingEngine) RetryScheduledPayment(ctx context.Context, clinicID, id uuid.UUID, cfg *domain.RecurringBillingConfig) (domain.ProcessingResult, error) {
	_, err := e.scheduledPayments.ResetForRetry(ctx, clinicID, id, time.Now().UTC())
	if err != nil {
		switch domain.ErrorCode(err) {
		case domain.ENOTFOUND, domain.ECONFLICT:
			return domain.ProcessingResult{
				ScheduledPaymentID: id,
				Success:            false,
				Error:              domain.ErrorMessage(err),
			}, nil
		}
		return domain.ProcessingResult{}, err
	}

	e.logger.Info("manual retry requested",
		"clinic_id", clinicID,
		"scheduled_payment_id", id,
	)

	return e.ProcessScheduledPayment(ctx, clinicID, id, cfg)
}

// SkipScheduledPayment moves a non-terminal installment to SKIPPED,
// recording the reason. Terminal rows are rejected by the transition gate.
func (e *BillingEngine) SkipScheduledPayment(ctx context.Context, clinicID, id uuid.UUID, reason string) error {
	if err := e.scheduledPayments.MarkSkipped(ctx, clinicID, id, reason); err != nil {
		return err
	}

	e.logger.Info("scheduled payment skipped",
		"clinic_id", clinicID,
		"scheduled_payment_id", id,
		"reason", reason,
	)
	if telemetry.Business != nil {
		telemetry.Business.PaymentsSkipped.WithLabelValues(clinicID.String()).Inc()
	}
	return nil
}

// GenerateScheduledPayments bulk-creates PENDING installments, the amount
// copied verbatim to each row and due dates advanced per the frequency.
func (e *BillingEngine) GenerateScheduledPayments(ctx context.Context, params domain.GenerateScheduleParams) ([]domain.ScheduledPayment, error) {
	if params.Count <= 0 {
		return nil, ErrInvalidCount
	}
	if !params.Frequency.Valid() {
		return nil, ErrInvalidFrequency
	}
	if params.Amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	if params.StartDate.IsZero() {
		return nil, ErrInvalidStartDate
	}

	plan, err := e.plans.GetByID(ctx, params.ClinicID, params.PlanID)
	if err != nil {
		return nil, err
	}
	if plan.Status != domain.PlanStatusActive {
		return nil, domain.ErrPlanNotActive
	}

	rows := make([]domain.ScheduledPayment, params.Count)
	due := params.StartDate
	for i := range rows {
		rows[i] = domain.ScheduledPayment{
			ClinicID: params.ClinicID,
			PlanID:   params.PlanID,
			Amount:   params.Amount,
			DueDate:  due,
		}
		due = params.Frequency.Advance(due)
	}

	created, err := e.scheduledPayments.CreateBatch(ctx, rows)
	if err != nil {
		return nil, err
	}

	e.logger.Info("schedule generated",
		"clinic_id", params.ClinicID,
		"plan_id", params.PlanID,
		"count", len(created),
		"frequency", params.Frequency,
	)
	if telemetry.Business != nil {
		telemetry.Business.SchedulesGenerated.WithLabelValues(params.ClinicID.String()).Add(float64(len(created)))
	}

	return created, nil
}

// PaymentsNeedingAttention returns the operator dashboard counts.
func (e *BillingEngine) PaymentsNeedingAttention(ctx context.Context, clinicID uuid.UUID) (*domain.AttentionSummary, error) {
	return e.scheduledPayments.CountAttention(ctx, clinicID, time.Now().UTC())
}

// ReconcileStalePayments recovers rows stuck in PROCESSING longer than
// olderThan: the crash window between issuing a charge and recording it.
// The gateway call is re-issued under the original idempotency key, so
// the gateway replays the original intent and the recorded outcome is
// applied through the normal success and failure paths.
func (e *BillingEngine) ReconcileStalePayments(ctx context.Context, clinicID uuid.UUID, olderThan time.Duration) ([]domain.ProcessingResult, error) {
	cutoff := time.Now().UTC().Add(-olderThan)

	stale, err := e.scheduledPayments.ListStaleProcessing(ctx, clinicID, cutoff)
	if err != nil {
		return nil, err
	}
	if len(stale) > 0 {
		e.logger.Warn("reconciling stale processing payments",
			"clinic_id", clinicID,
			"count", len(stale),
			"cutoff", cutoff,
		)
	}

	results := make([]domain.ProcessingResult, 0, len(stale))
	for i := range stale {
		result, err := e.reconcilePayment(ctx, &stale[i])
		if err != nil {
			return results, err
		}
		results = append(results, result)
	}

	return results, nil
}

// reconcilePayment settles one stale PROCESSING row.
func (e *BillingEngine) reconcilePayment(ctx context.Context, sp *domain.ScheduledPayment) (domain.ProcessingResult, error) {
	// A ledger entry for this row means the charge was already recorded.
	payment, err := e.payments.GetBySource(ctx, sp.ClinicID, domain.PaymentSourceScheduledPayment, sp.ID)
	if err != nil {
		return domain.ProcessingResult{}, err
	}
	if payment != nil {
		return domain.ProcessingResult{
			ScheduledPaymentID: sp.ID,
			Success:            true,
			Status:             domain.PaymentStatusCompleted,
			PaymentID:          &payment.ID,
		}, nil
	}

	result, err := e.charge(ctx, sp, e.cfg)
	if err != nil {
		return result, err
	}

	if telemetry.Business != nil {
		telemetry.Business.PaymentsReconciled.WithLabelValues(sp.ClinicID.String(), reconcileOutcome(result)).Inc()
	}
	return result, nil
}

// ReconcileGatewayResult applies a gateway-reported outcome, normally fed
// by the Stripe webhook, to a scheduled payment. Idempotent: rows already
// consistent with the reported outcome are left untouched. A success
// report always ends in a recorded ledger entry, even for rows the
// engine had since marked FAILED or SKIPPED, because the money moved.
func (e *BillingEngine) ReconcileGatewayResult(ctx context.Context, clinicID, id uuid.UUID, succeeded bool, gatewayTransactionID, reason string) (domain.ProcessingResult, error) {
	sp, err := e.scheduledPayments.GetByID(ctx, clinicID, id)
	if err != nil {
		if domain.ErrorCode(err) == domain.ENOTFOUND {
			return domain.ProcessingResult{
				ScheduledPaymentID: id,
				Success:            false,
				Error:              domain.ErrorMessage(err),
			}, nil
		}
		return domain.ProcessingResult{}, err
	}

	switch sp.Status {
	case domain.PaymentStatusCompleted:
		return domain.ProcessingResult{
			ScheduledPaymentID: sp.ID,
			Success:            true,
			Status:             domain.PaymentStatusCompleted,
			PaymentID:          sp.PaymentID,
		}, nil

	case domain.PaymentStatusProcessing:
		// Fall through to apply the outcome below.

	case domain.PaymentStatusPending:
		if !succeeded {
			// The engine already scheduled the retry.
			return domain.ProcessingResult{
				ScheduledPaymentID: sp.ID,
				Success:            false,
				Status:             domain.PaymentStatusPending,
				Error:              reason,
				RetryScheduled:     true,
			}, nil
		}
		sp, err = e.scheduledPayments.Claim(ctx, clinicID, id)
		if err != nil {
			if domain.ErrorCode(err) == domain.ECONFLICT {
				return domain.ProcessingResult{
					ScheduledPaymentID: id,
					Success:            false,
					Error:              domain.ErrorMessage(err),
				}, nil
			}
			return domain.ProcessingResult{}, err
		}

	case domain.PaymentStatusFailed, domain.PaymentStatusSkipped:
		if !succeeded {
			return domain.ProcessingResult{
				ScheduledPaymentID: sp.ID,
				Success:            false,
				Status:             sp.Status,
				Error:              sp.LastError,
			}, nil
		}
		e.logger.Warn("gateway reports success for terminal payment, reviving",
			"clinic_id", clinicID,
			"scheduled_payment_id", id,
			"status", sp.Status,
		)
		if _, err := e.scheduledPayments.ResetForRetry(ctx, clinicID, id, time.Now().UTC()); err != nil {
			return domain.ProcessingResult{}, err
		}
		sp, err = e.scheduledPayments.Claim(ctx, clinicID, id)
		if err != nil {
			return domain.ProcessingResult{}, err
		}
	}

	if succeeded {
		return e.settle(ctx, sp, gatewayTransactionID, e.cfg)
	}
	if reason == "" {
		reason = "payment failed at gateway"
	}
	return e.scheduleRetryOrFail(ctx, sp, uuid.Nil, e.cfg, reason, "gateway_error")
}

// =============================================================================
// PER-PAYMENT CORE
// =============================================================================

// charge drives one claimed (PROCESSING) installment: precondition
// checks, gateway call, then settlement or retry scheduling.
func (e *BillingEngine) charge(ctx context.Context, sp *domain.ScheduledPayment, policy domain.RecurringBillingConfig) (domain.ProcessingResult, error) {
	// Preconditions. Violations mark the row FAILED without a gateway
	// call and without consuming the retry ladder.
	plan, err := e.plans.GetByID(ctx, sp.ClinicID, sp.PlanID)
	if err != nil {
		if domain.ErrorCode(err) == domain.ENOTFOUND {
			return e.failPermanently(ctx, sp, uuid.Nil, policy, "Payment plan not found")
		}
		return domain.ProcessingResult{}, err
	}
	if !plan.AutoCharge {
		return e.failPermanently(ctx, sp, uuid.Nil, policy, ErrAutoChargeDisabled.Error())
	}

	account, err := e.accounts.GetByID(ctx, sp.ClinicID, plan.AccountID)
	if err != nil {
		if domain.ErrorCode(err) == domain.ENOTFOUND {
			return e.failPermanently(ctx, sp, uuid.Nil, policy, "Billing account not found")
		}
		return domain.ProcessingResult{}, err
	}
	if account.GatewayCustomerID == "" {
		return e.failPermanently(ctx, sp, account.ID, policy, ErrNoGatewayCustomer.Error())
	}

	paymentMethodID := plan.PaymentMethodID
	if paymentMethodID == "" {
		paymentMethodID = account.DefaultPaymentMethodID
	}
	if paymentMethodID == "" {
		return e.failPermanently(ctx, sp, account.ID, policy, ErrNoPaymentMethod.Error())
	}

	if telemetry.Business != nil {
		telemetry.Business.PaymentAttempts.WithLabelValues(sp.ClinicID.String()).Inc()
	}

	started := time.Now()
	intent, err := e.gateway.CreatePaymentIntent(ctx, gateway.CreatePaymentIntentParams{
		Amount:          sp.Amount,
		Currency:        "usd",
		CustomerID:      account.GatewayCustomerID,
		PaymentMethodID: paymentMethodID,
		OffSession:      true,
		Description:     fmt.Sprintf("Scheduled payment %s", sp.ID),
		Metadata: map[string]string{
			"clinic_id":            sp.ClinicID.String(),
			"scheduled_payment_id": sp.ID.String(),
			"plan_id":              sp.PlanID.String(),
			"account_id":           account.ID.String(),
		},
		IdempotencyKey: idempotencyKey(sp.ID),
	})
	if telemetry.Business != nil {
		telemetry.Business.GatewayLatency.WithLabelValues(sp.ClinicID.String(), "create_payment_intent").
			Observe(time.Since(started).Seconds())
	}

	if err != nil {
		return e.scheduleRetryOrFail(ctx, sp, account.ID, policy, failureMessage(err), classifyFailure(err))
	}
	if !e.gateway.IsPaymentSuccessful(intent) {
		reason, label := describeIntentFailure(intent)
		return e.scheduleRetryOrFail(ctx, sp, account.ID, policy, reason, label)
	}

	return e.settle(ctx, sp, intent.ID, policy)
}

// settle records a successful charge: the finalize transaction, metrics,
// and the receipt notification. If the transaction fails after the money
// moved, the row stays PROCESSING and the error propagates; the
// reconciliation sweep recovers it under the same idempotency key.
func (e *BillingEngine) settle(ctx context.Context, sp *domain.ScheduledPayment, gatewayTransactionID string, policy domain.RecurringBillingConfig) (domain.ProcessingResult, error) {
	paymentDate := time.Now().UTC()

	finalize, err := e.scheduledPayments.FinalizeCharge(ctx, domain.FinalizeChargeParams{
		ScheduledPayment:     sp,
		GatewayTransactionID: gatewayTransactionID,
		PaymentDate:          paymentDate,
		Actor:                billingActor,
	})
	if err != nil {
		e.logger.Error("charge succeeded but could not be recorded",
			"clinic_id", sp.ClinicID,
			"scheduled_payment_id", sp.ID,
			"gateway_transaction_id", gatewayTransactionID,
			"error", err,
		)
		return domain.ProcessingResult{}, err
	}

	e.logger.Info("scheduled payment settled",
		"clinic_id", sp.ClinicID,
		"scheduled_payment_id", sp.ID,
		"payment_number", finalize.PaymentNumber,
		"amount", sp.Amount,
		"plan_completed", finalize.PlanCompleted,
	)
	if telemetry.Business != nil {
		clinic := sp.ClinicID.String()
		telemetry.Business.PaymentSucceeded.WithLabelValues(clinic).Inc()
		telemetry.Business.RevenueCollected.WithLabelValues(clinic).Add(sp.Amount.InexactFloat64())
		if finalize.PlanCompleted {
			telemetry.Business.PlansCompleted.WithLabelValues(clinic).Inc()
		}
	}

	if policy.NotifyOnSuccess && e.jobQueue != nil {
		e.enqueueReceipt(ctx, sp, finalize, paymentDate)
	}

	paymentID := finalize.PaymentID
	return domain.ProcessingResult{
		ScheduledPaymentID: sp.ID,
		Success:            true,
		Status:             domain.PaymentStatusCompleted,
		PaymentID:          &paymentID,
	}, nil
}

// scheduleRetryOrFail applies the retry policy after a failed attempt.
func (e *BillingEngine) scheduleRetryOrFail(ctx context.Context, sp *domain.ScheduledPayment, accountID uuid.UUID, policy domain.RecurringBillingConfig, reason, failureLabel string) (domain.ProcessingResult, error) {
	now := time.Now().UTC()

	if telemetry.Business != nil {
		telemetry.Business.PaymentFailed.WithLabelValues(sp.ClinicID.String(), failureLabel).Inc()
	}

	if int(sp.RetryCount) < policy.MaxRetryAttempts {
		delayDays := policy.RetryDelayFor(int(sp.RetryCount))
		next := dateOnly(now.AddDate(0, 0, delayDays))

		err := e.scheduledPayments.ScheduleRetry(ctx, domain.ScheduleRetryParams{
			ID:          sp.ID,
			NextDueDate: next,
			AttemptedAt: now,
			Reason:      reason,
		})
		if err != nil {
			return domain.ProcessingResult{}, err
		}

		e.logger.Warn("charge failed, retry scheduled",
			"clinic_id", sp.ClinicID,
			"scheduled_payment_id", sp.ID,
			"retry", sp.RetryCount+1,
			"next_due", next,
			"reason", reason,
		)
		if telemetry.Business != nil {
			telemetry.Business.PaymentRetries.WithLabelValues(sp.ClinicID.String()).Inc()
		}
		e.notifyFailure(ctx, sp, accountID, policy, reason, true, &next)

		return domain.ProcessingResult{
			ScheduledPaymentID: sp.ID,
			Success:            false,
			Status:             domain.PaymentStatusPending,
			Error:              reason,
			RetryScheduled:     true,
			NextRetryDate:      &next,
		}, nil
	}

	err := e.scheduledPayments.MarkFailed(ctx, domain.MarkFailedParams{
		ID:          sp.ID,
		AttemptedAt: now,
		Reason:      reason,
	})
	if err != nil {
		return domain.ProcessingResult{}, err
	}

	e.logger.Warn("charge failed permanently, retries exhausted",
		"clinic_id", sp.ClinicID,
		"scheduled_payment_id", sp.ID,
		"retry_count", sp.RetryCount,
		"reason", reason,
	)
	e.notifyFailure(ctx, sp, accountID, policy, reason, false, nil)

	return domain.ProcessingResult{
		ScheduledPaymentID: sp.ID,
		Success:            false,
		Status:             domain.PaymentStatusFailed,
		Error:              reason,
	}, nil
}

// failPermanently marks a row FAILED for a precondition violation.
// No gateway call was made and the retry ladder does not apply.
func (e *BillingEngine) failPermanently(ctx context.Context, sp *domain.ScheduledPayment, accountID uuid.UUID, policy domain.RecurringBillingConfig, reason string) (domain.ProcessingResult, error) {
	now := time.Now().UTC()

	err := e.scheduledPayments.MarkFailed(ctx, domain.MarkFailedParams{
		ID:          sp.ID,
		AttemptedAt: now,
		Reason:      reason,
	})
	if err != nil {
		return domain.ProcessingResult{}, err
	}

	e.logger.Warn("charge precondition failed",
		"clinic_id", sp.ClinicID,
		"scheduled_payment_id", sp.ID,
		"reason", reason,
	)
	if telemetry.Business != nil {
		telemetry.Business.PaymentFailed.WithLabelValues(sp.ClinicID.String(), "precondition").Inc()
	}
	e.notifyFailure(ctx, sp, accountID, policy, reason, false, nil)

	return domain.ProcessingResult{
		ScheduledPaymentID: sp.ID,
		Success:            false,
		Status:             domain.PaymentStatusFailed,
		Error:              reason,
	}, nil
}

// =============================================================================
// NOTIFICATIONS
// =============================================================================

// notifyFailure enqueues a failure notification, best-effort.
func (e *BillingEngine) notifyFailure(ctx context.Context, sp *domain.ScheduledPayment, accountID uuid.UUID, policy domain.RecurringBillingConfig, reason string, retryScheduled bool, nextRetry *time.Time) {
	if !policy.NotifyOnFailure || e.jobQueue == nil {
		return
	}

	_, err := jobs.EnqueuePaymentFailedNotification(ctx, e.jobQueue, jobs.PaymentFailedPayload{
		ClinicID:           sp.ClinicID,
		ScheduledPaymentID: sp.ID,
		AccountID:          accountID,
		Amount:             sp.Amount,
		DueDate:            sp.DueDate,
		Reason:             reason,
		RetryScheduled:     retryScheduled,
		NextRetryDate:      nextRetry,
	})
	if err != nil {
		e.logger.Warn("failed to enqueue payment failed notification",
			"clinic_id", sp.ClinicID,
			"scheduled_payment_id", sp.ID,
			"error", err,
		)
	}
}

// enqueueReceipt enqueues the receipt mail, best-effort.
func (e *BillingEngine) enqueueReceipt(ctx context.Context, sp *domain.ScheduledPayment, finalize *domain.FinalizeChargeResult, paymentDate time.Time) {
	plan, err := e.plans.GetByID(ctx, sp.ClinicID, sp.PlanID)
	if err != nil {
		e.logger.Warn("failed to resolve plan for receipt",
			"clinic_id", sp.ClinicID,
			"scheduled_payment_id", sp.ID,
			"error", err,
		)
		return
	}

	_, err = jobs.EnqueuePaymentReceipt(ctx, e.jobQueue, jobs.PaymentReceiptPayload{
		ClinicID:           sp.ClinicID,
		AccountID:          plan.AccountID,
		ScheduledPaymentID: sp.ID,
		PaymentID:          finalize.PaymentID,
		PaymentNumber:      finalize.PaymentNumber,
		Amount:             sp.Amount,
		PaymentDate:        paymentDate,
	})
	if err != nil {
		e.logger.Warn("failed to enqueue payment receipt",
			"clinic_id", sp.ClinicID,
			"scheduled_payment_id", sp.ID,
			"error", err,
		)
	}
}

// =============================================================================
// HELPERS
// =============================================================================

// idempotencyKey derives the gateway idempotency key for an installment.
// Stable across retries and reconciliation, so a re-issued call replays
// the original charge instead of creating a second one.
func idempotencyKey(scheduledPaymentID uuid.UUID) string {
	return fmt.Sprintf("sched_%s", scheduledPaymentID)
}

// dateOnly truncates t to its UTC calendar day.
func dateOnly(t time.Time) time.Time {
	year, month, day := t.UTC().Date()
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// failureMessage extracts a human-readable reason from a gateway error.
func failureMessage(err error) string {
	var se *gateway.StripeError
	if errors.As(err, &se) && se.Message != "" {
		return se.Message
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "gateway call timed out"
	}
	return err.Error()
}

// classifyFailure buckets a gateway error for the failure metric label.
func classifyFailure(err error) string {
	var se *gateway.StripeError
	if errors.As(err, &se) {
		switch {
		case se.IsTimeout():
			return "timeout"
		case se.IsDeclined():
			return "declined"
		}
		return "gateway_error"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	return "gateway_error"
}

// describeIntentFailure derives the failure reason and metric label from
// an intent that came back unsuccessful without a transport error.
func describeIntentFailure(intent *gateway.PaymentIntent) (string, string) {
	if intent == nil {
		return "gateway returned no payment intent", "gateway_error"
	}
	if intent.LastPaymentError != nil {
		msg := intent.LastPaymentError.Message
		if msg == "" {
			msg = fmt.Sprintf("payment failed with code %s", intent.LastPaymentError.Code)
		}
		if intent.LastPaymentError.DeclineCode != "" {
			return msg, "declined"
		}
		return msg, "intent_status"
	}
	return fmt.Sprintf("payment intent status %s", intent.Status), "intent_status"
}

// reconcileOutcome buckets a reconciliation result for its metric label.
func reconcileOutcome(result domain.ProcessingResult) string {
	switch {
	case result.Success:
		return "completed"
	case result.RetryScheduled:
		return "retried"
	}
	return "failed"
}
