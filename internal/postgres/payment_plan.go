package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/AdansBatista/orca-sub008/internal/domain"
)

// PaymentPlanService implements domain.PaymentPlanService using PostgreSQL.
type PaymentPlanService struct {
	db *pgxpool.Pool
}

// Compile-time check that PaymentPlanService implements domain.PaymentPlanService.
var _ domain.PaymentPlanService = (*PaymentPlanService)(nil)

// NewPaymentPlanService creates a new PostgreSQL-backed payment plan service.
func NewPaymentPlanService(db *pgxpool.Pool) *PaymentPlanService {
	return &PaymentPlanService{db: db}
}

const paymentPlanColumns = `id, clinic_id, account_id, auto_charge, payment_method_id,
	status, created_at, updated_at`

// GetByID retrieves a payment plan scoped to its clinic.
func (s *PaymentPlanService) GetByID(ctx context.Context, clinicID, id uuid.UUID) (*domain.PaymentPlan, error) {
	row := s.db.QueryRow(ctx,
		`SELECT `+paymentPlanColumns+` FROM payment_plans WHERE clinic_id = $1 AND id = $2`,
		pgUUID(clinicID), pgUUID(id),
	)

	plan, err := scanPaymentPlan(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrPaymentPlanNotFound
		}
		return nil, domain.Internal(err, "plan.get", "failed to get payment plan")
	}

	return plan, nil
}

// HasOpenInstallments reports whether any child scheduled payment is
// still PENDING or PROCESSING.
func (s *PaymentPlanService) HasOpenInstallments(ctx context.Context, clinicID, planID uuid.UUID) (bool, error) {
	row := s.db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM scheduled_payments
			WHERE clinic_id = $1 AND plan_id = $2 AND status IN ('PENDING', 'PROCESSING')
		)`,
		pgUUID(clinicID), pgUUID(planID),
	)

	var open bool
	if err := row.Scan(&open); err != nil {
		return false, domain.Internal(err, "plan.has_open_installments", "failed to check installments")
	}
	return open, nil
}

// MarkCompleted transitions an ACTIVE plan to COMPLETED.
func (s *PaymentPlanService) MarkCompleted(ctx context.Context, clinicID, planID uuid.UUID) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE payment_plans SET status = 'COMPLETED', updated_at = now()
		WHERE clinic_id = $1 AND id = $2 AND status = 'ACTIVE'`,
		pgUUID(clinicID), pgUUID(planID),
	)
	if err != nil {
		return domain.Internal(err, "plan.mark_completed", "failed to mark plan completed")
	}
	if tag.RowsAffected() == 0 {
		// Either missing or already terminal; distinguish for the caller.
		if _, err := s.GetByID(ctx, clinicID, planID); err != nil {
			return err
		}
		return domain.ErrPlanNotActive
	}
	return nil
}

// =============================================================================
// MAPPING HELPERS
// =============================================================================

func scanPaymentPlan(row pgx.Row) (*domain.PaymentPlan, error) {
	var (
		id, clinicID, accountID pgtype.UUID
		createdAt, updatedAt    pgtype.Timestamptz
		status                  string
		plan                    domain.PaymentPlan
	)

	err := row.Scan(
		&id, &clinicID, &accountID, &plan.AutoCharge, &plan.PaymentMethodID,
		&status, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	plan.ID = uuidValue(id)
	plan.ClinicID = uuidValue(clinicID)
	plan.AccountID = uuidValue(accountID)
	plan.Status = domain.PlanStatus(status)
	plan.CreatedAt = tsValue(createdAt)
	plan.UpdatedAt = tsValue(updatedAt)
	return &plan, nil
}
