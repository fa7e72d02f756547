package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/AdansBatista/orca-sub008/internal/domain"
)

// ClaimService implements domain.ClaimService using PostgreSQL.
type ClaimService struct {
	db *pgxpool.Pool
}

// Compile-time check that ClaimService implements domain.ClaimService.
var _ domain.ClaimService = (*ClaimService)(nil)

// NewClaimService creates a new PostgreSQL-backed insurance claim service.
func NewClaimService(db *pgxpool.Pool) *ClaimService {
	return &ClaimService{db: db}
}

const claimColumns = `id, clinic_id, claim_number, patient_name, amount, filed_at, status, created_at`

// HighestClaimNumber returns the highest claim number for the clinic
// and year, or empty string when none exist. The CLM-YYYY-NNNNN format
// is zero-padded, so lexicographic MAX matches numeric order.
func (s *ClaimService) HighestClaimNumber(ctx context.Context, clinicID uuid.UUID, year int) (string, error) {
	prefix := fmt.Sprintf("CLM-%d-", year)

	row := s.db.QueryRow(ctx, `
		SELECT COALESCE(MAX(claim_number), '')
		FROM insurance_claims
		WHERE clinic_id = $1 AND claim_number LIKE $2`,
		pgUUID(clinicID), prefix+"%",
	)

	var highest string
	if err := row.Scan(&highest); err != nil {
		return "", domain.Internal(err, "claim.highest_number", "failed to query claim numbers")
	}
	return highest, nil
}

// ListOpen returns claims still awaiting a carrier decision, oldest
// filing first so the aging report reads top-down.
func (s *ClaimService) ListOpen(ctx context.Context, clinicID uuid.UUID) ([]domain.InsuranceClaim, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+claimColumns+`
		FROM insurance_claims
		WHERE clinic_id = $1 AND status NOT IN ('PAID', 'DENIED')
		ORDER BY filed_at, claim_number`,
		pgUUID(clinicID),
	)
	if err != nil {
		return nil, domain.Internal(err, "claim.list_open", "failed to list open claims")
	}
	defer rows.Close()

	var claims []domain.InsuranceClaim
	for rows.Next() {
		claim, err := scanClaim(rows)
		if err != nil {
			return nil, domain.Internal(err, "claim.list_open", "failed to scan claim")
		}
		claims = append(claims, *claim)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.Internal(err, "claim.list_open", "failed to read claims")
	}

	return claims, nil
}

// =============================================================================
// MAPPING HELPERS
// =============================================================================

func scanClaim(row pgx.Row) (*domain.InsuranceClaim, error) {
	var (
		id, clinicID      pgtype.UUID
		amount            pgtype.Numeric
		filedAt, createdAt pgtype.Timestamptz
		status            string
		claim             domain.InsuranceClaim
	)

	err := row.Scan(
		&id, &clinicID, &claim.ClaimNumber, &claim.PatientName,
		&amount, &filedAt, &status, &createdAt,
	)
	if err != nil {
		return nil, err
	}

	claim.ID = uuidValue(id)
	claim.ClinicID = uuidValue(clinicID)
	claim.Amount = decimalValue(amount)
	claim.FiledAt = tsValue(filedAt)
	claim.Status = domain.ClaimStatus(status)
	claim.CreatedAt = tsValue(createdAt)
	return &claim, nil
}
