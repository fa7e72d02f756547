// Package middleware provides HTTP middleware for the billing API.
//
// This file contains clinic resolution middleware for multi-clinic request
// scoping. Every /api route runs under a resolved clinic; handlers read it
// back with domain.ClinicFromContext and never trust raw identifiers.
package middleware

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/AdansBatista/orca-sub008/internal/domain"
	"github.com/google/uuid"
)

// ClinicIDHeader identifies the clinic a request acts on behalf of.
const ClinicIDHeader = "X-Clinic-ID"

// ClinicConfig holds configuration for clinic resolution middleware.
type ClinicConfig struct {
	// Clinics looks up clinics by ID.
	Clinics domain.ClinicService

	// Logger is the structured logger for middleware operations.
	// If nil, uses slog.Default().
	Logger *slog.Logger
}

// RequireClinic creates middleware that resolves the acting clinic from the
// X-Clinic-ID request header.
//
// Resolution order:
//  1. Read the header - missing or malformed responds 400
//  2. Load the clinic - unknown ID responds 404
//  3. Check the clinic is active - inactive responds 403
//  4. Add the clinic to the context and continue
//
// Requests that pass carry the clinic in context, so handlers and services
// resolve scope the same way worker jobs do.
func RequireClinic(cfg ClinicConfig) func(http.Handler) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get(ClinicIDHeader)
			if header == "" {
				respondBadRequest(w, r, "Missing "+ClinicIDHeader+" header")
				return
			}

			clinicID, err := uuid.Parse(header)
			if err != nil {
				respondBadRequest(w, r, "Invalid "+ClinicIDHeader+" header")
				return
			}

			clinic, err := cfg.Clinics.GetByID(r.Context(), clinicID)
			if err != nil {
				if errors.Is(err, domain.ErrClinicNotFound) {
					respondNotFound(w, r)
					return
				}
				logger.Error("clinic resolution failed", "clinic_id", clinicID, "error", err)
				respondInternalError(w, r, err)
				return
			}

			if !clinic.Active {
				respondWithError(w, r, domain.ErrClinicInactive)
				return
			}

			ctx := domain.NewContextWithClinic(r.Context(), clinic)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireClinicPath is middleware that verifies the {clinicID} path segment
// matches the clinic resolved from the header. A mismatch responds 403 and
// never reaches the handler.
//
// This should be applied AFTER RequireClinic middleware, on routes whose
// pattern names a {clinicID} value.
func RequireClinicPath(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clinic := domain.ClinicFromContext(r.Context())
		if clinic == nil {
			respondForbidden(w, r)
			return
		}

		pathID, err := uuid.Parse(r.PathValue("clinicID"))
		if err != nil {
			respondBadRequest(w, r, "Invalid clinic ID")
			return
		}

		if pathID != clinic.ID {
			respondWithError(w, r, domain.ErrClinicMismatch)
			return
		}

		next.ServeHTTP(w, r)
	})
}
