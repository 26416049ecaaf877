package schema

import (
	"context"
	"fmt"

	"github.com/elliotchance/orderedmap/v2"

	"github.com/Ririin-28/IS-RPT-SAES-sub003/internal/logger"
	"github.com/Ririin-28/IS-RPT-SAES-sub003/internal/sqlutil"
)

// Edge is one foreign-key reference into a target table: the referencing
// column and the column it points at.
type Edge struct {
	Column           string
	ReferencedColumn string
}

// ReferencingMap maps referencing tables to the edges they hold against one
// target table. Iteration order is the order the constraint metadata was
// returned in, kept stable so cascade deletes run in a reproducible order.
type ReferencingMap struct {
	Target string
	edges  *orderedmap.OrderedMap[string, []Edge]
}

// Tables returns the referencing table names in discovery order.
func (m *ReferencingMap) Tables() []string {
	return m.edges.Keys()
}

// Edges returns the edges a referencing table holds against the target.
func (m *ReferencingMap) Edges(table string) []Edge {
	edges, _ := m.edges.Get(table)
	return edges
}

// Len returns the number of referencing tables.
func (m *ReferencingMap) Len() int {
	return m.edges.Len()
}

// Index discovers foreign-key constraints from the database's metadata.
// The referencing set is computed fresh per invocation rather than
// configured, so the cascade tolerates schema evolution without code
// changes.
type Index struct {
	db     sqlutil.DBTX
	dbName string
	logger *logger.Logger
}

// NewIndex creates a foreign-key index over the given connection or
// transaction.
func NewIndex(db sqlutil.DBTX, dbName string, log *logger.Logger) (*Index, error) {
	if db == nil {
		return nil, fmt.Errorf("database is nil")
	}
	if dbName == "" {
		return nil, fmt.Errorf("database name is required")
	}
	if log == nil {
		log = logger.NewDefault()
	}
	return &Index{db: db, dbName: dbName, logger: log}, nil
}

// Referencing builds the map of (table, column) pairs that foreign-key into
// target. Rows with a blank table, column, or referenced-column name are
// discarded; duplicate (table, column) pairs are deduplicated.
func (i *Index) Referencing(ctx context.Context, target string) (*ReferencingMap, error) {
	if !sqlutil.IsValidIdentifier(target) {
		return nil, fmt.Errorf("invalid table name %q", target)
	}

	const query = `
		SELECT TABLE_NAME, COLUMN_NAME, REFERENCED_COLUMN_NAME
		FROM information_schema.KEY_COLUMN_USAGE
		WHERE TABLE_SCHEMA = ?
		AND REFERENCED_TABLE_NAME = ?
		ORDER BY TABLE_NAME, COLUMN_NAME`

	rows, err := i.db.QueryContext(ctx, query, i.dbName, target)
	if err != nil {
		return nil, fmt.Errorf("failed to query foreign keys referencing %s: %w", target, err)
	}
	defer rows.Close()

	result := &ReferencingMap{
		Target: target,
		edges:  orderedmap.NewOrderedMap[string, []Edge](),
	}
	seen := make(map[[2]string]bool)

	for rows.Next() {
		var table, column, referenced string
		if err := rows.Scan(&table, &column, &referenced); err != nil {
			return nil, fmt.Errorf("failed to scan foreign key row: %w", err)
		}

		// Defensive against inconsistent constraint metadata.
		if table == "" || column == "" || referenced == "" {
			continue
		}

		key := [2]string{table, column}
		if seen[key] {
			continue
		}
		seen[key] = true

		edges, _ := result.edges.Get(table)
		result.edges.Set(table, append(edges, Edge{Column: column, ReferencedColumn: referenced}))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating foreign keys referencing %s: %w", target, err)
	}

	i.logger.Debugf("Discovered %d tables referencing %q", result.Len(), target)
	return result, nil
}
