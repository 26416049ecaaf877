package sqlutil

import (
	"context"
	"database/sql"
)

// DBTX is the subset of database/sql used by the discovery and retirement
// code. It is satisfied by both *sql.DB and *sql.Tx, which lets the same
// components run against the pool (dry-run planning) or inside the single
// retirement transaction.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}
