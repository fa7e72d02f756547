package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/AdansBatista/orca-sub008/internal/domain"
)

// AccountService implements domain.AccountService using PostgreSQL.
type AccountService struct {
	db *pgxpool.Pool
}

// Compile-time check that AccountService implements domain.AccountService.
var _ domain.AccountService = (*AccountService)(nil)

// NewAccountService creates a new PostgreSQL-backed account service.
func NewAccountService(db *pgxpool.Pool) *AccountService {
	return &AccountService{db: db}
}

const accountColumns = `id, clinic_id, patient_name, email, gateway_customer_id,
	default_payment_method_id, total_billed, balance, created_at, updated_at`

// GetByID retrieves an account scoped to its clinic.
func (s *AccountService) GetByID(ctx context.Context, clinicID, id uuid.UUID) (*domain.Account, error) {
	row := s.db.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE clinic_id = $1 AND id = $2`,
		pgUUID(clinicID), pgUUID(id),
	)

	account, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrAccountNotFound
		}
		return nil, domain.Internal(err, "account.get", "failed to get account")
	}

	return account, nil
}

// RecalculateBalance recomputes the derived balance from the payment
// ledger and persists it with audit fields. Returns the new balance.
func (s *AccountService) RecalculateBalance(ctx context.Context, clinicID, accountID uuid.UUID, actor string) (decimal.Decimal, error) {
	balance, err := recalculateBalance(ctx, s.db, clinicID, accountID, actor)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, domain.ErrAccountNotFound
		}
		return decimal.Zero, domain.Internal(err, "account.recalculate_balance", "failed to recalculate balance")
	}
	return balance, nil
}

// recalculateBalance is shared with the finalize-charge transaction so
// the balance update can ride the same tx as the ledger insert.
func recalculateBalance(ctx context.Context, q querier, clinicID, accountID uuid.UUID, actor string) (decimal.Decimal, error) {
	row := q.QueryRow(ctx, `
		UPDATE accounts SET
			balance = total_billed - (
				SELECT COALESCE(SUM(amount), 0)
				FROM payments
				WHERE account_id = accounts.id AND status = 'COMPLETED'
			),
			balance_updated_by = $3,
			balance_updated_at = now(),
			updated_at = now()
		WHERE clinic_id = $1 AND id = $2
		RETURNING balance`,
		pgUUID(clinicID), pgUUID(accountID), actor,
	)

	var balance pgtype.Numeric
	if err := row.Scan(&balance); err != nil {
		return decimal.Zero, err
	}
	return decimalValue(balance), nil
}

// =============================================================================
// MAPPING HELPERS
// =============================================================================

func scanAccount(row pgx.Row) (*domain.Account, error) {
	var (
		id, clinicID         pgtype.UUID
		totalBilled, balance pgtype.Numeric
		createdAt, updatedAt pgtype.Timestamptz
		account              domain.Account
	)

	err := row.Scan(
		&id, &clinicID, &account.PatientName, &account.Email,
		&account.GatewayCustomerID, &account.DefaultPaymentMethodID,
		&totalBilled, &balance, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	account.ID = uuidValue(id)
	account.ClinicID = uuidValue(clinicID)
	account.TotalBilled = decimalValue(totalBilled)
	account.Balance = decimalValue(balance)
	account.CreatedAt = tsValue(createdAt)
	account.UpdatedAt = tsValue(updatedAt)
	return &account, nil
}
