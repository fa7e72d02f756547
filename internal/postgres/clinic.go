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

// ClinicService implements domain.ClinicService using PostgreSQL.
type ClinicService struct {
	db *pgxpool.Pool
}

// Compile-time check that ClinicService implements domain.ClinicService.
var _ domain.ClinicService = (*ClinicService)(nil)

// NewClinicService creates a new PostgreSQL-backed clinic service.
func NewClinicService(db *pgxpool.Pool) *ClinicService {
	return &ClinicService{db: db}
}

const clinicColumns = `id, name, billing_email, active, created_at, updated_at`

// GetByID retrieves a clinic by ID.
func (s *ClinicService) GetByID(ctx context.Context, id uuid.UUID) (*domain.Clinic, error) {
	row := s.db.QueryRow(ctx,
		`SELECT `+clinicColumns+` FROM clinics WHERE id = $1`,
		pgUUID(id),
	)

	clinic, err := scanClinic(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrClinicNotFound
		}
		return nil, domain.Internal(err, "clinic.get", "failed to get clinic")
	}

	return clinic, nil
}

// ListActive returns all active clinics ordered by name.
func (s *ClinicService) ListActive(ctx context.Context) ([]domain.Clinic, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+clinicColumns+` FROM clinics WHERE active ORDER BY name`,
	)
	if err != nil {
		return nil, domain.Internal(err, "clinic.list_active", "failed to list active clinics")
	}
	defer rows.Close()

	var clinics []domain.Clinic
	for rows.Next() {
		clinic, err := scanClinic(rows)
		if err != nil {
			return nil, domain.Internal(err, "clinic.list_active", "failed to scan clinic")
		}
		clinics = append(clinics, *clinic)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.Internal(err, "clinic.list_active", "failed to read clinics")
	}

	return clinics, nil
}

// =============================================================================
// MAPPING HELPERS
// =============================================================================

func scanClinic(row pgx.Row) (*domain.Clinic, error) {
	var (
		id                   pgtype.UUID
		createdAt, updatedAt pgtype.Timestamptz
		clinic               domain.Clinic
	)

	err := row.Scan(&id, &clinic.Name, &clinic.BillingEmail, &clinic.Active, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	clinic.ID = uuidValue(id)
	clinic.CreatedAt = tsValue(createdAt)
	clinic.UpdatedAt = tsValue(updatedAt)
	return &clinic, nil
}
