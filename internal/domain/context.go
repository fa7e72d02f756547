// Package domain provides core business types and context helpers for the
// Orca billing engine.
//
// Context helpers centralize request-scoped data access, making clinic
// isolation bugs harder to write and providing consistent patterns
// throughout the codebase.
package domain

import (
	"context"

	"github.com/google/uuid"
)

// contextKey is an unexported type for context keys to prevent collisions.
type contextKey int

const (
	// clinicContextKey stores clinic information in context.
	clinicContextKey contextKey = iota

	// actorContextKey stores the acting principal for audit trails.
	actorContextKey

	// requestIDContextKey stores the request ID for tracing.
	requestIDContextKey
)

// --- Clinic Context Helpers ---

// NewContextWithClinic returns a new context with the clinic attached.
func NewContextWithClinic(ctx context.Context, clinic *Clinic) context.Context {
	return context.WithValue(ctx, clinicContextKey, clinic)
}

// ClinicFromContext retrieves the clinic from context.
// Returns nil if no clinic is present.
func ClinicFromContext(ctx context.Context) *Clinic {
	clinic, _ := ctx.Value(clinicContextKey).(*Clinic)
	return clinic
}

// ClinicIDFromContext retrieves the clinic ID from context.
// Returns uuid.Nil if no clinic is present.
func ClinicIDFromContext(ctx context.Context) uuid.UUID {
	if clinic := ClinicFromContext(ctx); clinic != nil {
		return clinic.ID
	}
	return uuid.Nil
}

// RequireClinicID retrieves the clinic ID from context, panicking if not present.
// Use this in store/service layers where clinic scope is required.
// The panic will be caught by error recovery middleware in HTTP handlers.
func RequireClinicID(ctx context.Context) uuid.UUID {
	id := ClinicIDFromContext(ctx)
	if id == uuid.Nil {
		panic("clinic_id required in context but not found")
	}
	return id
}

// MustClinic retrieves the clinic from context, panicking if not present.
// Use this when you need the full clinic struct and it must be present.
func MustClinic(ctx context.Context) *Clinic {
	clinic := ClinicFromContext(ctx)
	if clinic == nil {
		panic("clinic required in context but not found")
	}
	return clinic
}

// HasClinic returns true if there is a clinic in context.
func HasClinic(ctx context.Context) bool {
	return ClinicFromContext(ctx) != nil
}

// --- Actor Context Helpers ---

// Well-known actor identifiers for engine-driven mutations.
const (
	ActorScheduler = "system:scheduler"
	ActorWorker    = "system:worker"
	ActorWebhook   = "system:webhook"
)

// NewContextWithActor returns a new context with the acting principal attached.
// The actor is recorded on audit-relevant writes such as balance updates.
func NewContextWithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, actorContextKey, actor)
}

// ActorFromContext retrieves the actor from context.
// Returns empty string if no actor is present.
func ActorFromContext(ctx context.Context) string {
	actor, _ := ctx.Value(actorContextKey).(string)
	return actor
}

// ActorOrDefault retrieves the actor from context, falling back to the
// given default when none is set.
func ActorOrDefault(ctx context.Context, fallback string) string {
	if actor := ActorFromContext(ctx); actor != "" {
		return actor
	}
	return fallback
}

// --- Request ID Context Helpers ---

// NewContextWithRequestID returns a new context with the request ID attached.
func NewContextWithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDContextKey, requestID)
}

// RequestIDFromContext retrieves the request ID from context.
// Returns empty string if no request ID is present.
func RequestIDFromContext(ctx context.Context) string {
	requestID, _ := ctx.Value(requestIDContextKey).(string)
	return requestID
}
