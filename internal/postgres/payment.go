package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/AdansBatista/orca-sub008/internal/domain"
)

// PaymentService implements domain.PaymentService using PostgreSQL.
type PaymentService struct {
	db *pgxpool.Pool
}

// Compile-time check that PaymentService implements domain.PaymentService.
var _ domain.PaymentService = (*PaymentService)(nil)

// NewPaymentService creates a new PostgreSQL-backed payment ledger service.
func NewPaymentService(db *pgxpool.Pool) *PaymentService {
	return &PaymentService{db: db}
}

const paymentColumns = `id, clinic_id, account_id, plan_id, payment_number, amount,
	payment_date, method, status, gateway_transaction_id, source_type, source_id, created_at`

// GetByID retrieves a ledger entry scoped to its clinic.
func (s *PaymentService) GetByID(ctx context.Context, clinicID, id uuid.UUID) (*domain.Payment, error) {
	row := s.db.QueryRow(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE clinic_id = $1 AND id = $2`,
		pgUUID(clinicID), pgUUID(id),
	)

	payment, err := scanPayment(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrPaymentNotFound
		}
		return nil, domain.Internal(err, "payment.get", "failed to get payment")
	}

	return payment, nil
}

// GetBySource retrieves the ledger entry recorded for a source row.
// Returns nil without error when none exists.
func (s *PaymentService) GetBySource(ctx context.Context, clinicID uuid.UUID, sourceType domain.PaymentSourceType, sourceID uuid.UUID) (*domain.Payment, error) {
	row := s.db.QueryRow(ctx,
		`SELECT `+paymentColumns+` FROM payments
		WHERE clinic_id = $1 AND source_type = $2 AND source_id = $3`,
		pgUUID(clinicID), string(sourceType), pgUUID(sourceID),
	)

	payment, err := scanPayment(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, domain.Internal(err, "payment.get_by_source", "failed to get payment by source")
	}

	return payment, nil
}

// NextPaymentNumber derives the next clinic-scoped payment number for
// the year by parsing the highest existing suffix.
func (s *PaymentService) NextPaymentNumber(ctx context.Context, clinicID uuid.UUID, year int) (string, error) {
	number, err := nextPaymentNumber(ctx, s.db, clinicID, year)
	if err != nil {
		return "", domain.Internal(err, "payment.next_number", "failed to derive payment number")
	}
	return number, nil
}

// nextPaymentNumber is shared with the finalize-charge transaction.
// Uniqueness is backed by the (clinic_id, payment_number) index; the
// engine processes a clinic's batch sequentially, so collisions only
// occur under concurrent manual activity and fail the tx cleanly.
func nextPaymentNumber(ctx context.Context, q querier, clinicID uuid.UUID, year int) (string, error) {
	prefix := fmt.Sprintf("PAY-%d-", year)

	row := q.QueryRow(ctx, `
		SELECT COALESCE(MAX(payment_number), '')
		FROM payments
		WHERE clinic_id = $1 AND payment_number LIKE $2`,
		pgUUID(clinicID), prefix+"%",
	)

	var highest string
	if err := row.Scan(&highest); err != nil {
		return "", err
	}

	next, err := nextSequence(highest, prefix)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s%05d", prefix, next), nil
}

// nextSequence parses the numeric suffix of the highest existing number
// and returns the successor. An empty highest starts the year at 1.
func nextSequence(highest, prefix string) (int, error) {
	if highest == "" {
		return 1, nil
	}

	suffix := strings.TrimPrefix(highest, prefix)
	n, err := strconv.Atoi(suffix)
	if err != nil {
		return 0, fmt.Errorf("malformed number %q: %w", highest, err)
	}
	if n >= 99999 {
		return 0, fmt.Errorf("sequence exhausted at %q", highest)
	}
	return n + 1, nil
}

// =============================================================================
// MAPPING HELPERS
// =============================================================================

func scanPayment(row pgx.Row) (*domain.Payment, error) {
	var (
		id, clinicID, accountID, planID, sourceID pgtype.UUID
		amount                                    pgtype.Numeric
		paymentDate, createdAt                    pgtype.Timestamptz
		method, sourceType                        string
		payment                                   domain.Payment
	)

	err := row.Scan(
		&id, &clinicID, &accountID, &planID, &payment.PaymentNumber, &amount,
		&paymentDate, &method, &payment.Status, &payment.GatewayTransactionID,
		&sourceType, &sourceID, &createdAt,
	)
	if err != nil {
		return nil, err
	}

	payment.ID = uuidValue(id)
	payment.ClinicID = uuidValue(clinicID)
	payment.AccountID = uuidValue(accountID)
	payment.PlanID = uuidValue(planID)
	payment.Amount = decimalValue(amount)
	payment.PaymentDate = tsValue(paymentDate)
	payment.Method = domain.PaymentMethod(method)
	payment.SourceType = domain.PaymentSourceType(sourceType)
	payment.SourceID = uuidValue(sourceID)
	payment.CreatedAt = tsValue(createdAt)
	return &payment, nil
}
