// Package schema discovers, at runtime, which physical tables and columns
// exist in the current deployment. Concrete names vary across installations
// ("teacher" vs "teachers" vs "faculty"), so nothing in this package is
// cached between operations: every retirement batch takes a fresh snapshot.
package schema

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Ririin-28/IS-RPT-SAES-sub003/internal/logger"
	"github.com/Ririin-28/IS-RPT-SAES-sub003/internal/sqlutil"
)

// ErrTableNotFound is returned when none of the candidate names resolves to
// an existing table with at least one column.
var ErrTableNotFound = errors.New("table not found")

// ColumnSet is a case-insensitive set of column names.
type ColumnSet map[string]struct{}

// NewColumnSet builds a ColumnSet from column names.
func NewColumnSet(names ...string) ColumnSet {
	cs := make(ColumnSet, len(names))
	for _, n := range names {
		cs[strings.ToLower(n)] = struct{}{}
	}
	return cs
}

// Has reports whether the set contains the column, ignoring case.
func (cs ColumnSet) Has(name string) bool {
	_, ok := cs[strings.ToLower(name)]
	return ok
}

// Len returns the number of columns in the set.
func (cs ColumnSet) Len() int {
	return len(cs)
}

// First returns the first of the candidate column names present in the set,
// or "" when none is.
func (cs ColumnSet) First(candidates ...string) string {
	for _, c := range candidates {
		if cs.Has(c) {
			return strings.ToLower(c)
		}
	}
	return ""
}

// TableRef is an immutable snapshot of a resolved table: its concrete name
// and the columns it carried at resolution time.
type TableRef struct {
	Name    string
	Columns ColumnSet
}

// Catalog answers "does this table exist, and with which columns" against
// information_schema, scoped to one database.
type Catalog struct {
	db     sqlutil.DBTX
	dbName string
	logger *logger.Logger
}

// NewCatalog creates a catalog over the given connection or transaction.
func NewCatalog(db sqlutil.DBTX, dbName string, log *logger.Logger) (*Catalog, error) {
	if db == nil {
		return nil, fmt.Errorf("database is nil")
	}
	if dbName == "" {
		return nil, fmt.Errorf("database name is required")
	}
	if log == nil {
		log = logger.NewDefault()
	}
	return &Catalog{db: db, dbName: dbName, logger: log}, nil
}

// Columns returns the column set of the named table. An absent table yields
// an empty set and a nil error, so callers can treat "table not present" and
// "column not present" uniformly.
func (c *Catalog) Columns(ctx context.Context, table string) (ColumnSet, error) {
	if !sqlutil.IsValidIdentifier(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}

	const query = `
		SELECT COLUMN_NAME
		FROM information_schema.COLUMNS
		WHERE TABLE_SCHEMA = ? AND TABLE_NAME = ?`

	rows, err := c.db.QueryContext(ctx, query, c.dbName, table)
	if err != nil {
		return nil, fmt.Errorf("failed to query columns of %s: %w", table, err)
	}
	defer rows.Close()

	cs := make(ColumnSet)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan column name of %s: %w", table, err)
		}
		cs[strings.ToLower(name)] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating columns of %s: %w", table, err)
	}

	return cs, nil
}

// ResolveTable tries each candidate name in order and returns the first one
// that exists with a non-empty column set. The fixed priority order gives
// deterministic resolution across runs.
func (c *Catalog) ResolveTable(ctx context.Context, candidates []string) (TableRef, error) {
	for _, name := range candidates {
		cols, err := c.Columns(ctx, name)
		if err != nil {
			return TableRef{}, err
		}
		if cols.Len() > 0 {
			c.logger.Debugf("Resolved table %q (%d columns)", name, cols.Len())
			return TableRef{Name: name, Columns: cols}, nil
		}
	}
	return TableRef{}, fmt.Errorf("%w: none of %v exists", ErrTableNotFound, candidates)
}
