// Package mock provides hand-written test doubles for the domain
// service ports. Each method delegates to its Func field; calling a
// method whose field was left unset panics, which surfaces unexpected
// calls in tests immediately.
package mock

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/AdansBatista/orca-sub008/internal/domain"
)

// =============================================================================
// SCHEDULED PAYMENTS
// =============================================================================

// ScheduledPaymentService is a mock of domain.ScheduledPaymentService.
type ScheduledPaymentService struct {
	CreateBatchFunc         func(ctx context.Context, payments []domain.ScheduledPayment) ([]domain.ScheduledPayment, error)
	GetByIDFunc             func(ctx context.Context, clinicID, id uuid.UUID) (*domain.ScheduledPayment, error)
	ClaimDueFunc            func(ctx context.Context, clinicID uuid.UUID, asOf time.Time) ([]domain.ScheduledPayment, error)
	ClaimFunc               func(ctx context.Context, clinicID, id uuid.UUID) (*domain.ScheduledPayment, error)
	FinalizeChargeFunc      func(ctx context.Context, params domain.FinalizeChargeParams) (*domain.FinalizeChargeResult, error)
	ScheduleRetryFunc       func(ctx context.Context, params domain.ScheduleRetryParams) error
	MarkFailedFunc          func(ctx context.Context, params domain.MarkFailedParams) error
	MarkSkippedFunc         func(ctx context.Context, clinicID, id uuid.UUID, reason string) error
	ResetForRetryFunc       func(ctx context.Context, clinicID, id uuid.UUID, now time.Time) (*domain.ScheduledPayment, error)
	ListStaleProcessingFunc func(ctx context.Context, clinicID uuid.UUID, cutoff time.Time) ([]domain.ScheduledPayment, error)
	CountAttentionFunc      func(ctx context.Context, clinicID uuid.UUID, now time.Time) (*domain.AttentionSummary, error)
}

var _ domain.ScheduledPaymentService = (*ScheduledPaymentService)(nil)

func (s *ScheduledPaymentService) CreateBatch(ctx context.Context, payments []domain.ScheduledPayment) ([]domain.ScheduledPayment, error) {
	return s.CreateBatchFunc(ctx, payments)
}

func (s *ScheduledPaymentService) GetByID(ctx context.Context, clinicID, id uuid.UUID) (*domain.ScheduledPayment, error) {
	return s.GetByIDFunc(ctx, clinicID, id)
}

func (s *ScheduledPaymentService) ClaimDue(ctx context.Context, clinicID uuid.UUID, asOf time.Time) ([]domain.ScheduledPayment, error) {
	return s.ClaimDueFunc(ctx, clinicID, asOf)
}

func (s *ScheduledPaymentService) Claim(ctx context.Context, clinicID, id uuid.UUID) (*domain.ScheduledPayment, error) {
	return s.ClaimFunc(ctx, clinicID, id)
}

func (s *ScheduledPaymentService) FinalizeCharge(ctx context.Context, params domain.FinalizeChargeParams) (*domain.FinalizeChargeResult, error) {
	return s.FinalizeChargeFunc(ctx, params)
}

func (s *ScheduledPaymentService) ScheduleRetry(ctx context.Context, params domain.ScheduleRetryParams) error {
	return s.ScheduleRetryFunc(ctx, params)
}

func (s *ScheduledPaymentService) MarkFailed(ctx context.Context, params domain.MarkFailedParams) error {
	return s.MarkFailedFunc(ctx, params)
}

func (s *ScheduledPaymentService) MarkSkipped(ctx context.Context, clinicID, id uuid.UUID, reason string) error {
	return s.MarkSkippedFunc(ctx, clinicID, id, reason)
}

func (s *ScheduledPaymentService) ResetForRetry(ctx context.Context, clinicID, id uuid.UUID, now time.Time) (*domain.ScheduledPayment, error) {
	return s.ResetForRetryFunc(ctx, clinicID, id, now)
}

func (s *ScheduledPaymentService) ListStaleProcessing(ctx context.Context, clinicID uuid.UUID, cutoff time.Time) ([]domain.ScheduledPayment, error) {
	return s.ListStaleProcessingFunc(ctx, clinicID, cutoff)
}

func (s *ScheduledPaymentService) CountAttention(ctx context.Context, clinicID uuid.UUID, now time.Time) (*domain.AttentionSummary, error) {
	return s.CountAttentionFunc(ctx, clinicID, now)
}

// =============================================================================
// PAYMENT PLANS
// =============================================================================

// PaymentPlanService is a mock of domain.PaymentPlanService.
type PaymentPlanService struct {
	GetByIDFunc             func(ctx context.Context, clinicID, id uuid.UUID) (*domain.PaymentPlan, error)
	HasOpenInstallmentsFunc func(ctx context.Context, clinicID, planID uuid.UUID) (bool, error)
	MarkCompletedFunc       func(ctx context.Context, clinicID, planID uuid.UUID) error
}

var _ domain.PaymentPlanService = (*PaymentPlanService)(nil)

func (s *PaymentPlanService) GetByID(ctx context.Context, clinicID, id uuid.UUID) (*domain.PaymentPlan, error) {
	return s.GetByIDFunc(ctx, clinicID, id)
}

func (s *PaymentPlanService) HasOpenInstallments(ctx context.Context, clinicID, planID uuid.UUID) (bool, error) {
	return s.HasOpenInstallmentsFunc(ctx, clinicID, planID)
}

func (s *PaymentPlanService) MarkCompleted(ctx context.Context, clinicID, planID uuid.UUID) error {
	return s.MarkCompletedFunc(ctx, clinicID, planID)
}

// =============================================================================
// ACCOUNTS
// =============================================================================

// AccountService is a mock of domain.AccountService.
type AccountService struct {
	GetByIDFunc            func(ctx context.Context, clinicID, id uuid.UUID) (*domain.Account, error)
	RecalculateBalanceFunc func(ctx context.Context, clinicID, accountID uuid.UUID, actor string) (decimal.Decimal, error)
}

var _ domain.AccountService = (*AccountService)(nil)

func (s *AccountService) GetByID(ctx context.Context, clinicID, id uuid.UUID) (*domain.Account, error) {
	return s.GetByIDFunc(ctx, clinicID, id)
}

func (s *AccountService) RecalculateBalance(ctx context.Context, clinicID, accountID uuid.UUID, actor string) (decimal.Decimal, error) {
	return s.RecalculateBalanceFunc(ctx, clinicID, accountID, actor)
}

// =============================================================================
// PAYMENT LEDGER
// =============================================================================

// PaymentService is a mock of domain.PaymentService.
type PaymentService struct {
	GetByIDFunc           func(ctx context.Context, clinicID, id uuid.UUID) (*domain.Payment, error)
	GetBySourceFunc       func(ctx context.Context, clinicID uuid.UUID, sourceType domain.PaymentSourceType, sourceID uuid.UUID) (*domain.Payment, error)
	NextPaymentNumberFunc func(ctx context.Context, clinicID uuid.UUID, year int) (string, error)
}

var _ domain.PaymentService = (*PaymentService)(nil)

func (s *PaymentService) GetByID(ctx context.Context, clinicID, id uuid.UUID) (*domain.Payment, error) {
	return s.GetByIDFunc(ctx, clinicID, id)
}

func (s *PaymentService) GetBySource(ctx context.Context, clinicID uuid.UUID, sourceType domain.PaymentSourceType, sourceID uuid.UUID) (*domain.Payment, error) {
	return s.GetBySourceFunc(ctx, clinicID, sourceType, sourceID)
}

func (s *PaymentService) NextPaymentNumber(ctx context.Context, clinicID uuid.UUID, year int) (string, error) {
	return s.NextPaymentNumberFunc(ctx, clinicID, year)
}

// =============================================================================
// INSURANCE CLAIMS
// =============================================================================

// ClaimService is a mock of domain.ClaimService.
type ClaimService struct {
	HighestClaimNumberFunc func(ctx context.Context, clinicID uuid.UUID, year int) (string, error)
	ListOpenFunc           func(ctx context.Context, clinicID uuid.UUID) ([]domain.InsuranceClaim, error)
}

var _ domain.ClaimService = (*ClaimService)(nil)

func (s *ClaimService) HighestClaimNumber(ctx context.Context, clinicID uuid.UUID, year int) (string, error) {
	return s.HighestClaimNumberFunc(ctx, clinicID, year)
}

func (s *ClaimService) ListOpen(ctx context.Context, clinicID uuid.UUID) ([]domain.InsuranceClaim, error) {
	return s.ListOpenFunc(ctx, clinicID)
}

// =============================================================================
// CLINICS
// =============================================================================

// ClinicService is a mock of domain.ClinicService.
type ClinicService struct {
	GetByIDFunc    func(ctx context.Context, id uuid.UUID) (*domain.Clinic, error)
	ListActiveFunc func(ctx context.Context) ([]domain.Clinic, error)
}

var _ domain.ClinicService = (*ClinicService)(nil)

func (s *ClinicService) GetByID(ctx context.Context, id uuid.UUID) (*domain.Clinic, error) {
	return s.GetByIDFunc(ctx, id)
}

func (s *ClinicService) ListActive(ctx context.Context) ([]domain.Clinic, error) {
	return s.ListActiveFunc(ctx)
}

// =============================================================================
// JOB QUEUE
// =============================================================================

// JobService is a mock of domain.JobService.
type JobService struct {
	EnqueueFunc               func(ctx context.Context, params domain.EnqueueJobParams) (*domain.Job, error)
	ClaimNextFunc             func(ctx context.Context, params domain.ClaimJobParams) (*domain.Job, error)
	CompleteFunc              func(ctx context.Context, id uuid.UUID) error
	FailFunc                  func(ctx context.Context, params domain.FailJobParams) (*domain.Job, error)
	ReleaseStaleFunc          func(ctx context.Context, cutoff time.Time) (int64, error)
	DeleteCompletedBeforeFunc func(ctx context.Context, cutoff time.Time) (int64, error)
}

var _ domain.JobService = (*JobService)(nil)

func (s *JobService) Enqueue(ctx context.Context, params domain.EnqueueJobParams) (*domain.Job, error) {
	return s.EnqueueFunc(ctx, params)
}

func (s *JobService) ClaimNext(ctx context.Context, params domain.ClaimJobParams) (*domain.Job, error) {
	return s.ClaimNextFunc(ctx, params)
}

func (s *JobService) Complete(ctx context.Context, id uuid.UUID) error {
	return s.CompleteFunc(ctx, id)
}

func (s *JobService) Fail(ctx context.Context, params domain.FailJobParams) (*domain.Job, error) {
	return s.FailFunc(ctx, params)
}

func (s *JobService) ReleaseStale(ctx context.Context, cutoff time.Time) (int64, error) {
	return s.ReleaseStaleFunc(ctx, cutoff)
}

func (s *JobService) DeleteCompletedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return s.DeleteCompletedBeforeFunc(ctx, cutoff)
}

// =============================================================================
// BILLING ENGINE
// =============================================================================

// RecurringBillingService is a mock of domain.RecurringBillingService,
// for handler tests.
type RecurringBillingService struct {
	ProcessDuePaymentsFunc        func(ctx context.Context, clinicID uuid.UUID, cfg *domain.RecurringBillingConfig) ([]domain.ProcessingResult, error)
	ProcessScheduledPaymentFunc   func(ctx context.Context, clinicID, id uuid.UUID, cfg *domain.RecurringBillingConfig) (domain.ProcessingResult, error)
	RetryScheduledPaymentFunc     func(ctx context.Context, clinicID, id uuid.UUID, cfg *domain.RecurringBillingConfig) (domain.ProcessingResult, error)
	SkipScheduledPaymentFunc      func(ctx context.Context, clinicID, id uuid.UUID, reason string) error
	GenerateScheduledPaymentsFunc func(ctx context.Context, params domain.GenerateScheduleParams) ([]domain.ScheduledPayment, error)
	PaymentsNeedingAttentionFunc  func(ctx context.Context, clinicID uuid.UUID) (*domain.AttentionSummary, error)
	ReconcileStalePaymentsFunc    func(ctx context.Context, clinicID uuid.UUID, olderThan time.Duration) ([]domain.ProcessingResult, error)
}

var _ domain.RecurringBillingService = (*RecurringBillingService)(nil)

func (s *RecurringBillingService) ProcessDuePayments(ctx context.Context, clinicID uuid.UUID, cfg *domain.RecurringBillingConfig) ([]domain.ProcessingResult, error) {
	return s.ProcessDuePaymentsFunc(ctx, clinicID, cfg)
}

func (s *RecurringBillingService) ProcessScheduledPayment(ctx context.Context, clinicID, id uuid.UUID, cfg *domain.RecurringBillingConfig) (domain.ProcessingResult, error) {
	return s.ProcessScheduledPaymentFunc(ctx, clinicID, id, cfg)
}

func (s *RecurringBillingService) RetryScheduledPayment(ctx context.Context, clinicID, id uuid.UUID, cfg *domain.RecurringBillingConfig) (domain.ProcessingResult, error) {
	return s.RetryScheduledPaymentFunc(ctx, clinicID, id, cfg)
}

func (s *RecurringBillingService) SkipScheduledPayment(ctx context.Context, clinicID, id uuid.UUID, reason string) error {
	return s.SkipScheduledPaymentFunc(ctx, clinicID, id, reason)
}

func (s *RecurringBillingService) GenerateScheduledPayments(ctx context.Context, params domain.GenerateScheduleParams) ([]domain.ScheduledPayment, error) {
	return s.GenerateScheduledPaymentsFunc(ctx, params)
}

func (s *RecurringBillingService) PaymentsNeedingAttention(ctx context.Context, clinicID uuid.UUID) (*domain.AttentionSummary, error) {
	return s.PaymentsNeedingAttentionFunc(ctx, clinicID)
}

func (s *RecurringBillingService) ReconcileStalePayments(ctx context.Context, clinicID uuid.UUID, olderThan time.Duration) ([]domain.ProcessingResult, error) {
	return s.ReconcileStalePaymentsFunc(ctx, clinicID, olderThan)
}
