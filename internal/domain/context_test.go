package domain

import (
	"context"
	"testing"

	"github.com/google/uuid"
)

func TestClinicContext(t *testing.T) {
	t.Run("ClinicFromContext returns nil when no clinic", func(t *testing.T) {
		ctx := context.Background()
		clinic := ClinicFromContext(ctx)
		if clinic != nil {
			t.Errorf("expected nil clinic, got %+v", clinic)
		}
	})

	t.Run("ClinicFromContext returns clinic when set", func(t *testing.T) {
		ctx := context.Background()
		expected := &Clinic{
			ID:     uuid.New(),
			Name:   "Lakeside Orthodontics",
			Active: true,
		}
		ctx = NewContextWithClinic(ctx, expected)

		clinic := ClinicFromContext(ctx)
		if clinic == nil {
			t.Fatal("expected clinic, got nil")
		}
		if clinic.ID != expected.ID {
			t.Errorf("expected ID %v, got %v", expected.ID, clinic.ID)
		}
		if clinic.Name != expected.Name {
			t.Errorf("expected Name %q, got %q", expected.Name, clinic.Name)
		}
	})

	t.Run("ClinicIDFromContext returns uuid.Nil when no clinic", func(t *testing.T) {
		ctx := context.Background()
		id := ClinicIDFromContext(ctx)
		if id != uuid.Nil {
			t.Errorf("expected uuid.Nil, got %v", id)
		}
	})

	t.Run("ClinicIDFromContext returns ID when clinic set", func(t *testing.T) {
		ctx := context.Background()
		expected := &Clinic{ID: uuid.New()}
		ctx = NewContextWithClinic(ctx, expected)

		id := ClinicIDFromContext(ctx)
		if id != expected.ID {
			t.Errorf("expected %v, got %v", expected.ID, id)
		}
	})

	t.Run("RequireClinicID panics when no clinic", func(t *testing.T) {
		ctx := context.Background()
		defer func() {
			if r := recover(); r == nil {
				t.Error("expected panic, got none")
			}
		}()
		RequireClinicID(ctx)
	})

	t.Run("RequireClinicID returns ID when clinic set", func(t *testing.T) {
		ctx := context.Background()
		expected := &Clinic{ID: uuid.New()}
		ctx = NewContextWithClinic(ctx, expected)

		id := RequireClinicID(ctx)
		if id != expected.ID {
			t.Errorf("expected %v, got %v", expected.ID, id)
		}
	})

	t.Run("MustClinic panics when no clinic", func(t *testing.T) {
		ctx := context.Background()
		defer func() {
			if r := recover(); r == nil {
				t.Error("expected panic, got none")
			}
		}()
		MustClinic(ctx)
	})

	t.Run("MustClinic returns clinic when set", func(t *testing.T) {
		ctx := context.Background()
		expected := &Clinic{ID: uuid.New(), Name: "test"}
		ctx = NewContextWithClinic(ctx, expected)

		clinic := MustClinic(ctx)
		if clinic.ID != expected.ID {
			t.Errorf("expected %v, got %v", expected.ID, clinic.ID)
		}
	})

	t.Run("HasClinic returns false when no clinic", func(t *testing.T) {
		ctx := context.Background()
		if HasClinic(ctx) {
			t.Error("expected HasClinic to return false")
		}
	})

	t.Run("HasClinic returns true when clinic set", func(t *testing.T) {
		ctx := context.Background()
		ctx = NewContextWithClinic(ctx, &Clinic{ID: uuid.New()})
		if !HasClinic(ctx) {
			t.Error("expected HasClinic to return true")
		}
	})
}

func TestActorContext(t *testing.T) {
	t.Run("ActorFromContext returns empty string when no actor", func(t *testing.T) {
		ctx := context.Background()
		actor := ActorFromContext(ctx)
		if actor != "" {
			t.Errorf("expected empty string, got %q", actor)
		}
	})

	t.Run("ActorFromContext returns actor when set", func(t *testing.T) {
		ctx := context.Background()
		ctx = NewContextWithActor(ctx, ActorScheduler)

		actor := ActorFromContext(ctx)
		if actor != ActorScheduler {
			t.Errorf("expected %q, got %q", ActorScheduler, actor)
		}
	})

	t.Run("ActorOrDefault falls back when no actor", func(t *testing.T) {
		ctx := context.Background()
		actor := ActorOrDefault(ctx, ActorWorker)
		if actor != ActorWorker {
			t.Errorf("expected %q, got %q", ActorWorker, actor)
		}
	})

	t.Run("ActorOrDefault prefers context value", func(t *testing.T) {
		ctx := NewContextWithActor(context.Background(), "operator:42")
		actor := ActorOrDefault(ctx, ActorWorker)
		if actor != "operator:42" {
			t.Errorf("expected %q, got %q", "operator:42", actor)
		}
	})
}

func TestRequestIDContext(t *testing.T) {
	t.Run("RequestIDFromContext returns empty string when no request ID", func(t *testing.T) {
		ctx := context.Background()
		requestID := RequestIDFromContext(ctx)
		if requestID != "" {
			t.Errorf("expected empty string, got %q", requestID)
		}
	})

	t.Run("RequestIDFromContext returns request ID when set", func(t *testing.T) {
		ctx := context.Background()
		expected := "req-12345"
		ctx = NewContextWithRequestID(ctx, expected)

		requestID := RequestIDFromContext(ctx)
		if requestID != expected {
			t.Errorf("expected %q, got %q", expected, requestID)
		}
	})
}

func TestMultipleContextValues(t *testing.T) {
	t.Run("multiple values can coexist in context", func(t *testing.T) {
		ctx := context.Background()

		clinic := &Clinic{ID: uuid.New(), Name: "Lakeside Orthodontics"}
		actor := "operator:abc"
		requestID := "req-abc123"

		ctx = NewContextWithClinic(ctx, clinic)
		ctx = NewContextWithActor(ctx, actor)
		ctx = NewContextWithRequestID(ctx, requestID)

		// All values should be retrievable
		if got := ClinicFromContext(ctx); got == nil || got.ID != clinic.ID {
			t.Error("clinic not found or wrong ID")
		}
		if got := ActorFromContext(ctx); got != actor {
			t.Errorf("expected actor %q, got %q", actor, got)
		}
		if got := RequestIDFromContext(ctx); got != requestID {
			t.Errorf("expected request ID %q, got %q", requestID, got)
		}
	})
}
