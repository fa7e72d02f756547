// Package postgres implements the domain persistence ports with
// hand-written pgx queries. All clinic-scoped queries filter on
// clinic_id; cross-table writes share a transaction.
package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// querier is the subset of pgx methods shared by pools and transactions,
// letting store helpers run either standalone or inside a tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}
