package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/AdansBatista/orca-sub008/internal/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// BillingHandler exposes the recurring billing engine over HTTP.
// Every route runs behind clinic resolution middleware, so the acting
// clinic is always in context.
type BillingHandler struct {
	engine   domain.RecurringBillingService
	accounts domain.AccountService
	logger   *slog.Logger
}

// NewBillingHandler creates a billing handler.
func NewBillingHandler(engine domain.RecurringBillingService, accounts domain.AccountService, logger *slog.Logger) *BillingHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &BillingHandler{
		engine:   engine,
		accounts: accounts,
		logger:   logger,
	}
}

// ProcessDuePayments handles POST /api/billing/clinics/{clinicID}/process-due
//
// Runs the due-payment batch for the clinic immediately, outside the
// nightly schedule. Individual payment failures appear inside the
// results; only infrastructure errors fail the request.
func (h *BillingHandler) ProcessDuePayments(w http.ResponseWriter, r *http.Request) {
	clinicID := domain.RequireClinicID(r.Context())

	results, err := h.engine.ProcessDuePayments(r.Context(), clinicID, nil)
	if err != nil {
		ErrorResponse(w, r, err)
		return
	}

	succeeded := 0
	for _, res := range results {
		if res.Success {
			succeeded++
		}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"results":   results,
		"processed": len(results),
		"succeeded": succeeded,
		"failed":    len(results) - succeeded,
	})
}

// RetryScheduledPayment handles POST /api/billing/scheduled-payments/{id}/retry
//
// Operator-triggered retry. Completed payments are rejected; anything
// else is reset to pending and driven through the state machine now.
func (h *BillingHandler) RetryScheduledPayment(w http.ResponseWriter, r *http.Request) {
	clinicID := domain.RequireClinicID(r.Context())

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		ErrorResponse(w, r, domain.Invalid("billing.retry", "Invalid scheduled payment ID"))
		return
	}

	result, err := h.engine.RetryScheduledPayment(r.Context(), clinicID, id, nil)
	if err != nil {
		ErrorResponse(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

type skipPaymentRequest struct {
	Reason string `json:"reason" validate:"required"`
}

// SkipScheduledPayment handles POST /api/billing/scheduled-payments/{id}/skip
//
// Moves a non-terminal installment to SKIPPED, recording the reason.
func (h *BillingHandler) SkipScheduledPayment(w http.ResponseWriter, r *http.Request) {
	clinicID := domain.RequireClinicID(r.Context())

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		ErrorResponse(w, r, domain.Invalid("billing.skip", "Invalid scheduled payment ID"))
		return
	}

	var req skipPaymentRequest
	if err := decodeValid(r, &req); err != nil {
		ValidationErrorResponse(w, r, err)
		return
	}

	if err := h.engine.SkipScheduledPayment(r.Context(), clinicID, id, req.Reason); err != nil {
		ErrorResponse(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type generateScheduleRequest struct {
	StartDate string          `json:"start_date" validate:"required"`
	Count     int             `json:"count" validate:"required,gt=0"`
	Amount    decimal.Decimal `json:"amount" validate:"required"`
	Frequency string          `json:"frequency" validate:"required,oneof=WEEKLY BIWEEKLY MONTHLY"`
}

type scheduledPaymentResponse struct {
	ID      uuid.UUID            `json:"id"`
	PlanID  uuid.UUID            `json:"plan_id"`
	Amount  decimal.Decimal      `json:"amount"`
	DueDate string               `json:"due_date"`
	Status  domain.PaymentStatus `json:"status"`
}

// GenerateSchedule handles POST /api/billing/plans/{planID}/schedule
//
// Bulk-creates pending installments for the plan, due dates advanced
// by the requested frequency.
func (h *BillingHandler) GenerateSchedule(w http.ResponseWriter, r *http.Request) {
	clinicID := domain.RequireClinicID(r.Context())

	planID, err := uuid.Parse(r.PathValue("planID"))
	if err != nil {
		ErrorResponse(w, r, domain.Invalid("billing.schedule", "Invalid plan ID"))
		return
	}

	var req generateScheduleRequest
	if err := decodeValid(r, &req); err != nil {
		ValidationErrorResponse(w, r, err)
		return
	}

	startDate, err := time.Parse("2006-01-02", req.StartDate)
	if err != nil {
		ValidationErrorResponse(w, r, domain.NewValidationError("billing.schedule", "start_date", "must be a date in YYYY-MM-DD form"))
		return
	}

	created, err := h.engine.GenerateScheduledPayments(r.Context(), domain.GenerateScheduleParams{
		ClinicID:  clinicID,
		PlanID:    planID,
		StartDate: startDate,
		Count:     req.Count,
		Amount:    req.Amount,
		Frequency: domain.PaymentFrequency(req.Frequency),
	})
	if err != nil {
		ErrorResponse(w, r, err)
		return
	}

	payments := make([]scheduledPaymentResponse, len(created))
	for i, sp := range created {
		payments[i] = scheduledPaymentResponse{
			ID:      sp.ID,
			PlanID:  sp.PlanID,
			Amount:  sp.Amount,
			DueDate: sp.DueDate.Format("2006-01-02"),
			Status:  sp.Status,
		}
	}

	respondJSON(w, http.StatusCreated, map[string]interface{}{
		"scheduled_payments": payments,
		"count":              len(payments),
	})
}

// PaymentsNeedingAttention handles GET /api/billing/clinics/{clinicID}/attention
//
// Dashboard counts: failed, overdue, due today, upcoming week.
func (h *BillingHandler) PaymentsNeedingAttention(w http.ResponseWriter, r *http.Request) {
	clinicID := domain.RequireClinicID(r.Context())

	summary, err := h.engine.PaymentsNeedingAttention(r.Context(), clinicID)
	if err != nil {
		ErrorResponse(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, summary)
}

// RecalculateBalance handles POST /api/billing/accounts/{accountID}/recalculate-balance
//
// Recomputes the account's derived balance from the ledger and persists
// it, recording who asked.
func (h *BillingHandler) RecalculateBalance(w http.ResponseWriter, r *http.Request) {
	clinicID := domain.RequireClinicID(r.Context())

	accountID, err := uuid.Parse(r.PathValue("accountID"))
	if err != nil {
		ErrorResponse(w, r, domain.Invalid("billing.recalculate", "Invalid account ID"))
		return
	}

	actor := domain.ActorOrDefault(r.Context(), "api")
	balance, err := h.accounts.RecalculateBalance(r.Context(), clinicID, accountID, actor)
	if err != nil {
		ErrorResponse(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"account_id": accountID,
		"balance":    balance,
	})
}
