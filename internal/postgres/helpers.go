package postgres

import (
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

// pgUUID wraps a uuid.UUID for pgx parameters.
func pgUUID(id uuid.UUID) pgtype.UUID {
	return pgtype.UUID{Bytes: id, Valid: true}
}

// pgUUIDPtr wraps an optional uuid.UUID, NULL when nil.
func pgUUIDPtr(id *uuid.UUID) pgtype.UUID {
	if id == nil {
		return pgtype.UUID{}
	}
	return pgtype.UUID{Bytes: *id, Valid: true}
}

// uuidValue converts a scanned pgtype.UUID back to uuid.UUID.
func uuidValue(v pgtype.UUID) uuid.UUID {
	return uuid.UUID(v.Bytes)
}

// uuidPtr converts a nullable scanned UUID to a pointer.
func uuidPtr(v pgtype.UUID) *uuid.UUID {
	if !v.Valid {
		return nil
	}
	id := uuid.UUID(v.Bytes)
	return &id
}

// pgDate truncates a time to its UTC calendar day for DATE columns.
// Due dates are day-granular; all day boundaries in the engine are UTC.
func pgDate(t time.Time) pgtype.Date {
	return pgtype.Date{Time: utcDay(t), Valid: true}
}

// dateValue converts a scanned DATE to UTC midnight.
func dateValue(v pgtype.Date) time.Time {
	return utcDay(v.Time)
}

// utcDay returns t's calendar day at UTC midnight.
func utcDay(t time.Time) time.Time {
	year, month, day := t.UTC().Date()
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// pgTimestamptz wraps a time for TIMESTAMPTZ columns.
func pgTimestamptz(t time.Time) pgtype.Timestamptz {
	return pgtype.Timestamptz{Time: t, Valid: true}
}

// pgTimestamptzPtr wraps an optional time, NULL when nil.
func pgTimestamptzPtr(t *time.Time) pgtype.Timestamptz {
	if t == nil {
		return pgtype.Timestamptz{}
	}
	return pgtype.Timestamptz{Time: *t, Valid: true}
}

// tsValue converts a scanned TIMESTAMPTZ to time.Time.
func tsValue(v pgtype.Timestamptz) time.Time {
	return v.Time
}

// tsPtr converts a nullable scanned TIMESTAMPTZ to a pointer.
func tsPtr(v pgtype.Timestamptz) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time
	return &t
}

// pgNumeric converts a decimal amount for NUMERIC columns without a
// string round trip.
func pgNumeric(d decimal.Decimal) pgtype.Numeric {
	return pgtype.Numeric{Int: d.Coefficient(), Exp: d.Exponent(), Valid: true}
}

// decimalValue converts a scanned NUMERIC back to decimal.
func decimalValue(v pgtype.Numeric) decimal.Decimal {
	if !v.Valid || v.Int == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(v.Int, v.Exp)
}
