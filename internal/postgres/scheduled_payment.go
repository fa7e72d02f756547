package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/AdansBatista/orca-sub008/internal/domain"
)

// ScheduledPaymentService implements domain.ScheduledPaymentService using
// PostgreSQL. Claims rely on FOR UPDATE SKIP LOCKED and conditional
// updates, so concurrent workers never double-process a row.
type ScheduledPaymentService struct {
	db *pgxpool.Pool
}

// Compile-time check that ScheduledPaymentService implements domain.ScheduledPaymentService.
var _ domain.ScheduledPaymentService = (*ScheduledPaymentService)(nil)

// NewScheduledPaymentService creates a new PostgreSQL-backed scheduled payment store.
func NewScheduledPaymentService(db *pgxpool.Pool) *ScheduledPaymentService {
	return &ScheduledPaymentService{db: db}
}

const scheduledPaymentColumns = `id, clinic_id, plan_id, amount, due_date, status,
	retry_count, last_attempt_at, last_error, payment_id, created_at, updated_at`

// CreateBatch inserts a set of PENDING installments in one transaction.
// IDs and timestamps come from the database; returned rows are in input order.
func (s *ScheduledPaymentService) CreateBatch(ctx context.Context, payments []domain.ScheduledPayment) ([]domain.ScheduledPayment, error) {
	const op = "scheduled_payment.create_batch"

	if len(payments) == 0 {
		return nil, domain.Invalid(op, "no payments to create")
	}

	created := make([]domain.ScheduledPayment, 0, len(payments))
	err := withTx(ctx, s.db, func(tx pgx.Tx) error {
		for _, p := range payments {
			row := tx.QueryRow(ctx, `
				INSERT INTO scheduled_payments (clinic_id, plan_id, amount, due_date, status)
				VALUES ($1, $2, $3, $4, 'PENDING')
				RETURNING `+scheduledPaymentColumns,
				pgUUID(p.ClinicID), pgUUID(p.PlanID), pgNumeric(p.Amount), pgDate(p.DueDate),
			)

			sp, err := scanScheduledPayment(row)
			if err != nil {
				return err
			}
			created = append(created, *sp)
		}
		return nil
	})
	if err != nil {
		return nil, domain.Internal(err, op, "failed to create scheduled payments")
	}

	return created, nil
}

// GetByID retrieves a scheduled payment scoped to its clinic.
func (s *ScheduledPaymentService) GetByID(ctx context.Context, clinicID, id uuid.UUID) (*domain.ScheduledPayment, error) {
	row := s.db.QueryRow(ctx,
		`SELECT `+scheduledPaymentColumns+` FROM scheduled_payments WHERE clinic_id = $1 AND id = $2`,
		pgUUID(clinicID), pgUUID(id),
	)

	sp, err := scanScheduledPayment(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrScheduledPaymentNotFound
		}
		return nil, domain.Internal(err, "scheduled_payment.get", "failed to get scheduled payment")
	}

	return sp, nil
}

// ClaimDue atomically flips every due PENDING row for the clinic to
// PROCESSING and returns the claimed rows ordered by due date. SKIP
// LOCKED keeps concurrent claimers from blocking on or double-claiming
// the same rows.
func (s *ScheduledPaymentService) ClaimDue(ctx context.Context, clinicID uuid.UUID, asOf time.Time) ([]domain.ScheduledPayment, error) {
	const op = "scheduled_payment.claim_due"

	rows, err := s.db.Query(ctx, `
		WITH due AS (
			SELECT id FROM scheduled_payments
			WHERE clinic_id = $1 AND status = 'PENDING' AND due_date <= $2
			ORDER BY due_date, created_at
			FOR UPDATE SKIP LOCKED
		),
		claimed AS (
			UPDATE scheduled_payments sp SET
				status = 'PROCESSING',
				last_attempt_at = now(),
				updated_at = now()
			FROM due
			WHERE sp.id = due.id
			RETURNING sp.id, sp.clinic_id, sp.plan_id, sp.amount, sp.due_date, sp.status,
				sp.retry_count, sp.last_attempt_at, sp.last_error, sp.payment_id,
				sp.created_at, sp.updated_at
		)
		SELECT `+scheduledPaymentColumns+` FROM claimed ORDER BY due_date, created_at`,
		pgUUID(clinicID), pgDate(asOf),
	)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to claim due payments")
	}
	defer rows.Close()

	claimed, err := collectScheduledPayments(rows)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to read claimed payments")
	}
	return claimed, nil
}

// Claim conditionally moves a single PENDING row to PROCESSING.
func (s *ScheduledPaymentService) Claim(ctx context.Context, clinicID, id uuid.UUID) (*domain.ScheduledPayment, error) {
	const op = "scheduled_payment.claim"

	row := s.db.QueryRow(ctx, `
		UPDATE scheduled_payments SET
			status = 'PROCESSING',
			last_attempt_at = now(),
			updated_at = now()
		WHERE clinic_id = $1 AND id = $2 AND status = 'PENDING'
		RETURNING `+scheduledPaymentColumns,
		pgUUID(clinicID), pgUUID(id),
	)

	sp, err := scanScheduledPayment(row)
	if err == nil {
		return sp, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.Internal(err, op, "failed to claim payment")
	}

	// No row matched: distinguish missing from wrong state.
	if _, err := s.GetByID(ctx, clinicID, id); err != nil {
		return nil, err
	}
	return nil, domain.ErrPaymentNotPending
}

// FinalizeCharge settles a successful gateway charge in one transaction:
// ledger insert, COMPLETED flip with back-reference, balance recompute,
// and plan completion check.
func (s *ScheduledPaymentService) FinalizeCharge(ctx context.Context, params domain.FinalizeChargeParams) (*domain.FinalizeChargeResult, error) {
	const op = "scheduled_payment.finalize"

	sp := params.ScheduledPayment
	if sp == nil {
		return nil, domain.Invalid(op, "scheduled payment is required")
	}
	if err := domain.ValidateTransition(op, sp.Status, domain.PaymentStatusCompleted); err != nil {
		return nil, err
	}

	var result domain.FinalizeChargeResult
	err := withTx(ctx, s.db, func(tx pgx.Tx) error {
		var accountID pgtype.UUID
		err := tx.QueryRow(ctx,
			`SELECT account_id FROM payment_plans WHERE clinic_id = $1 AND id = $2`,
			pgUUID(sp.ClinicID), pgUUID(sp.PlanID),
		).Scan(&accountID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return domain.ErrPaymentPlanNotFound
			}
			return domain.Internal(err, op, "failed to resolve plan account")
		}

		number, err := nextPaymentNumber(ctx, tx, sp.ClinicID, params.PaymentDate.Year())
		if err != nil {
			return domain.Internal(err, op, "failed to derive payment number")
		}

		var paymentID pgtype.UUID
		err = tx.QueryRow(ctx, `
			INSERT INTO payments (
				clinic_id, account_id, plan_id, payment_number, amount,
				payment_date, method, status, gateway_transaction_id,
				source_type, source_id
			) VALUES ($1, $2, $3, $4, $5, $6, $7, 'COMPLETED', $8, $9, $10)
			RETURNING id`,
			pgUUID(sp.ClinicID), accountID, pgUUID(sp.PlanID), number, pgNumeric(sp.Amount),
			pgTimestamptz(params.PaymentDate), string(domain.PaymentMethodCardAuto),
			params.GatewayTransactionID,
			string(domain.PaymentSourceScheduledPayment), pgUUID(sp.ID),
		).Scan(&paymentID)
		if err != nil {
			return domain.Internal(err, op, "failed to record payment")
		}

		// Guard on PROCESSING so a concurrent settle cannot apply twice.
		tag, err := tx.Exec(ctx, `
			UPDATE scheduled_payments SET
				status = 'COMPLETED',
				payment_id = $3,
				last_error = '',
				updated_at = now()
			WHERE clinic_id = $1 AND id = $2 AND status = 'PROCESSING'`,
			pgUUID(sp.ClinicID), pgUUID(sp.ID), paymentID,
		)
		if err != nil {
			return domain.Internal(err, op, "failed to complete scheduled payment")
		}
		if tag.RowsAffected() == 0 {
			return domain.Conflict(op, "scheduled payment is no longer processing")
		}

		if _, err := recalculateBalance(ctx, tx, sp.ClinicID, uuidValue(accountID), params.Actor); err != nil {
			return domain.Internal(err, op, "failed to recalculate balance")
		}

		// The settled row is already COMPLETED inside this tx, so it no
		// longer counts as open.
		var open bool
		err = tx.QueryRow(ctx, `
			SELECT EXISTS (
				SELECT 1 FROM scheduled_payments
				WHERE clinic_id = $1 AND plan_id = $2 AND status IN ('PENDING', 'PROCESSING')
			)`,
			pgUUID(sp.ClinicID), pgUUID(sp.PlanID),
		).Scan(&open)
		if err != nil {
			return domain.Internal(err, op, "failed to check open installments")
		}

		if !open {
			tag, err := tx.Exec(ctx, `
				UPDATE payment_plans SET status = 'COMPLETED', updated_at = now()
				WHERE clinic_id = $1 AND id = $2 AND status = 'ACTIVE'`,
				pgUUID(sp.ClinicID), pgUUID(sp.PlanID),
			)
			if err != nil {
				return domain.Internal(err, op, "failed to complete plan")
			}
			result.PlanCompleted = tag.RowsAffected() > 0
		}

		result.PaymentID = uuidValue(paymentID)
		result.PaymentNumber = number
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &result, nil
}

// ScheduleRetry reverts a PROCESSING row to PENDING for a later attempt,
// incrementing the retry count and recording the failure.
func (s *ScheduledPaymentService) ScheduleRetry(ctx context.Context, params domain.ScheduleRetryParams) error {
	const op = "scheduled_payment.schedule_retry"

	tag, err := s.db.Exec(ctx, `
		UPDATE scheduled_payments SET
			status = 'PENDING',
			retry_count = retry_count + 1,
			due_date = $2,
			last_attempt_at = $3,
			last_error = $4,
			updated_at = now()
		WHERE id = $1 AND status = 'PROCESSING'`,
		pgUUID(params.ID), pgDate(params.NextDueDate), pgTimestamptz(params.AttemptedAt), params.Reason,
	)
	if err != nil {
		return domain.Internal(err, op, "failed to schedule retry")
	}
	if tag.RowsAffected() == 0 {
		return s.processingConflict(ctx, op, params.ID)
	}
	return nil
}

// MarkFailed moves a PROCESSING row to terminal FAILED. The retry count
// stays where exhaustion left it.
func (s *ScheduledPaymentService) MarkFailed(ctx context.Context, params domain.MarkFailedParams) error {
	const op = "scheduled_payment.mark_failed"

	tag, err := s.db.Exec(ctx, `
		UPDATE scheduled_payments SET
			status = 'FAILED',
			last_attempt_at = $2,
			last_error = $3,
			updated_at = now()
		WHERE id = $1 AND status = 'PROCESSING'`,
		pgUUID(params.ID), pgTimestamptz(params.AttemptedAt), params.Reason,
	)
	if err != nil {
		return domain.Internal(err, op, "failed to mark payment failed")
	}
	if tag.RowsAffected() == 0 {
		return s.processingConflict(ctx, op, params.ID)
	}
	return nil
}

// MarkSkipped moves a non-terminal row to SKIPPED, recording the reason
// in last_error.
func (s *ScheduledPaymentService) MarkSkipped(ctx context.Context, clinicID, id uuid.UUID, reason string) error {
	const op = "scheduled_payment.skip"

	sp, err := s.GetByID(ctx, clinicID, id)
	if err != nil {
		return err
	}
	if err := domain.ValidateTransition(op, sp.Status, domain.PaymentStatusSkipped); err != nil {
		return err
	}

	// Guard on the observed status so a concurrent transition loses cleanly.
	tag, err := s.db.Exec(ctx, `
		UPDATE scheduled_payments SET
			status = 'SKIPPED',
			last_error = $4,
			updated_at = now()
		WHERE clinic_id = $1 AND id = $2 AND status = $3`,
		pgUUID(clinicID), pgUUID(id), string(sp.Status), reason,
	)
	if err != nil {
		return domain.Internal(err, op, "failed to skip payment")
	}
	if tag.RowsAffected() == 0 {
		return domain.Conflict(op, "scheduled payment changed state, retry the skip")
	}
	return nil
}

// ResetForRetry force-resets a non-COMPLETED row to PENDING due now.
// FAILED and SKIPPED are terminal to the engine, but operators may revive
// them here; only COMPLETED rows are untouchable. The retry count is
// preserved, so an exhausted payment gets exactly one fresh attempt.
func (s *ScheduledPaymentService) ResetForRetry(ctx context.Context, clinicID, id uuid.UUID, now time.Time) (*domain.ScheduledPayment, error) {
	const op = "scheduled_payment.reset"

	sp, err := s.GetByID(ctx, clinicID, id)
	if err != nil {
		return nil, err
	}
	if sp.Status == domain.PaymentStatusCompleted {
		return nil, domain.ErrPaymentAlreadyCompleted
	}

	row := s.db.QueryRow(ctx, `
		UPDATE scheduled_payments SET
			status = 'PENDING',
			due_date = $3,
			updated_at = now()
		WHERE clinic_id = $1 AND id = $2 AND status <> 'COMPLETED'
		RETURNING `+scheduledPaymentColumns,
		pgUUID(clinicID), pgUUID(id), pgDate(now),
	)

	reset, err := scanScheduledPayment(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Completed (or vanished) between the read and the update.
			return nil, domain.ErrPaymentAlreadyCompleted
		}
		return nil, domain.Internal(err, op, "failed to reset payment")
	}

	return reset, nil
}

// ListStaleProcessing returns rows stuck in PROCESSING since before
// cutoff, oldest first.
func (s *ScheduledPaymentService) ListStaleProcessing(ctx context.Context, clinicID uuid.UUID, cutoff time.Time) ([]domain.ScheduledPayment, error) {
	const op = "scheduled_payment.list_stale"

	rows, err := s.db.Query(ctx, `
		SELECT `+scheduledPaymentColumns+`
		FROM scheduled_payments
		WHERE clinic_id = $1 AND status = 'PROCESSING' AND last_attempt_at < $2
		ORDER BY last_attempt_at`,
		pgUUID(clinicID), pgTimestamptz(cutoff),
	)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to list stale payments")
	}
	defer rows.Close()

	stale, err := collectScheduledPayments(rows)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to read stale payments")
	}
	return stale, nil
}

// CountAttention aggregates the operator dashboard counts in one scan.
func (s *ScheduledPaymentService) CountAttention(ctx context.Context, clinicID uuid.UUID, now time.Time) (*domain.AttentionSummary, error) {
	const op = "scheduled_payment.count_attention"

	today := pgDate(now)
	weekOut := pgDate(now.AddDate(0, 0, 7))

	var summary domain.AttentionSummary
	err := s.db.QueryRow(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE status = 'FAILED'),
			COUNT(*) FILTER (WHERE status = 'PENDING' AND due_date < $2),
			COUNT(*) FILTER (WHERE status = 'PENDING' AND due_date = $2),
			COUNT(*) FILTER (WHERE status = 'PENDING' AND due_date > $2 AND due_date <= $3)
		FROM scheduled_payments
		WHERE clinic_id = $1`,
		pgUUID(clinicID), today, weekOut,
	).Scan(&summary.Failed, &summary.Overdue, &summary.DueToday, &summary.UpcomingWeek)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to count attention payments")
	}

	return &summary, nil
}

// processingConflict explains why an update guarded on PROCESSING
// matched no rows.
func (s *ScheduledPaymentService) processingConflict(ctx context.Context, op string, id uuid.UUID) error {
	var status string
	err := s.db.QueryRow(ctx,
		`SELECT status FROM scheduled_payments WHERE id = $1`, pgUUID(id),
	).Scan(&status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrScheduledPaymentNotFound
		}
		return domain.Internal(err, op, "failed to load payment status")
	}
	return domain.Errorf(domain.ECONFLICT, op, "expected status PROCESSING, found %s", status)
}

// =============================================================================
// MAPPING HELPERS
// =============================================================================

func scanScheduledPayment(row pgx.Row) (*domain.ScheduledPayment, error) {
	var (
		id, clinicID, planID, paymentID pgtype.UUID
		amount                          pgtype.Numeric
		dueDate                         pgtype.Date
		lastAttemptAt                   pgtype.Timestamptz
		createdAt, updatedAt            pgtype.Timestamptz
		status                          string
		sp                              domain.ScheduledPayment
	)

	err := row.Scan(
		&id, &clinicID, &planID, &amount, &dueDate, &status,
		&sp.RetryCount, &lastAttemptAt, &sp.LastError, &paymentID,
		&createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	sp.ID = uuidValue(id)
	sp.ClinicID = uuidValue(clinicID)
	sp.PlanID = uuidValue(planID)
	sp.Amount = decimalValue(amount)
	sp.DueDate = dateValue(dueDate)
	sp.Status = domain.PaymentStatus(status)
	sp.LastAttemptAt = tsPtr(lastAttemptAt)
	sp.PaymentID = uuidPtr(paymentID)
	sp.CreatedAt = tsValue(createdAt)
	sp.UpdatedAt = tsValue(updatedAt)
	return &sp, nil
}

func collectScheduledPayments(rows pgx.Rows) ([]domain.ScheduledPayment, error) {
	var payments []domain.ScheduledPayment
	for rows.Next() {
		sp, err := scanScheduledPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, *sp)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return payments, nil
}
