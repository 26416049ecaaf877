package schema

import (
	"database/sql"
	"fmt"
	"strings"
)

// RowAccessor wraps one row read via SELECT * against a table whose shape is
// only known at runtime. Lookups are case-insensitive and []byte values are
// normalized to strings, isolating the dynamic-schema concern from the code
// that consumes typed fields.
type RowAccessor struct {
	columns []string
	values  map[string]interface{}
}

// NewRowAccessor builds an accessor from parallel column/value slices.
func NewRowAccessor(columns []string, values []interface{}) *RowAccessor {
	r := &RowAccessor{
		columns: columns,
		values:  make(map[string]interface{}, len(columns)),
	}
	for i, col := range columns {
		v := values[i]
		// The MySQL driver returns []byte for strings and blobs.
		if b, ok := v.([]byte); ok {
			v = string(b)
		}
		r.values[strings.ToLower(col)] = v
	}
	return r
}

// Get returns the raw value of a column and whether the column exists.
func (r *RowAccessor) Get(column string) (interface{}, bool) {
	v, ok := r.values[strings.ToLower(column)]
	return v, ok
}

// String returns a column's value as a trimmed string. The second return is
// false when the column is absent, NULL, or empty after trimming.
func (r *RowAccessor) String(column string) (string, bool) {
	v, ok := r.values[strings.ToLower(column)]
	if !ok || v == nil {
		return "", false
	}
	s := strings.TrimSpace(fmt.Sprintf("%v", v))
	if s == "" {
		return "", false
	}
	return s, true
}

// FirstString returns the value of the first candidate column that holds a
// non-empty string.
func (r *RowAccessor) FirstString(candidates ...string) (string, bool) {
	for _, c := range candidates {
		if s, ok := r.String(c); ok {
			return s, true
		}
	}
	return "", false
}

// Int64 returns a column's value as int64.
func (r *RowAccessor) Int64(column string) (int64, bool) {
	v, ok := r.values[strings.ToLower(column)]
	if !ok || v == nil {
		return 0, false
	}
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case uint64:
		return int64(n), true
	case float64:
		return int64(n), true
	case string:
		var parsed int64
		if _, err := fmt.Sscanf(n, "%d", &parsed); err == nil {
			return parsed, true
		}
	}
	return 0, false
}

// Columns returns the column names in their original order and spelling.
func (r *RowAccessor) Columns() []string {
	return r.columns
}

// Map returns the normalized column -> value map. The returned map is the
// accessor's own; callers must not mutate it.
func (r *RowAccessor) Map() map[string]interface{} {
	return r.values
}

// ScanRows drains a result set into accessors, one per row.
func ScanRows(rows *sql.Rows) ([]*RowAccessor, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to get column names: %w", err)
	}

	var out []*RowAccessor
	for rows.Next() {
		values := make([]interface{}, len(columns))
		ptrs := make([]interface{}, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		out = append(out, NewRowAccessor(columns, values))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return out, nil
}
