package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRowAccessor_String(t *testing.T) {
	row := NewRowAccessor(
		[]string{"ID", "Email", "teacher_code", "phone", "note"},
		[]interface{}{int64(7), []byte("t@school.edu"), "  T-0007  ", nil, ""},
	)

	email, ok := row.String("email")
	assert.True(t, ok, "lookup is case-insensitive and bytes normalize to string")
	assert.Equal(t, "t@school.edu", email)

	code, ok := row.String("teacher_code")
	assert.True(t, ok)
	assert.Equal(t, "T-0007", code, "values are trimmed")

	_, ok = row.String("phone")
	assert.False(t, ok, "NULL is absent")

	_, ok = row.String("note")
	assert.False(t, ok, "empty string is absent")

	_, ok = row.String("missing")
	assert.False(t, ok)
}

func TestRowAccessor_FirstString(t *testing.T) {
	row := NewRowAccessor(
		[]string{"id", "employee_id", "teacher_code"},
		[]interface{}{int64(7), "", "T-0007"},
	)

	v, ok := row.FirstString("teacher_code", "employee_id")
	assert.True(t, ok)
	assert.Equal(t, "T-0007", v)

	// Empty candidates are passed over.
	v, ok = row.FirstString("employee_id", "teacher_code")
	assert.True(t, ok)
	assert.Equal(t, "T-0007", v)

	_, ok = row.FirstString("staff_no")
	assert.False(t, ok)
}

func TestRowAccessor_Int64(t *testing.T) {
	row := NewRowAccessor(
		[]string{"a", "b", "c", "d", "e"},
		[]interface{}{int64(1), 2, "33", 4.0, "nope"},
	)

	for col, want := range map[string]int64{"a": 1, "b": 2, "c": 33, "d": 4} {
		v, ok := row.Int64(col)
		assert.True(t, ok, col)
		assert.Equal(t, want, v, col)
	}

	_, ok := row.Int64("e")
	assert.False(t, ok)
}

func TestRowAccessor_Columns(t *testing.T) {
	row := NewRowAccessor([]string{"ID", "Email"}, []interface{}{int64(1), "x"})
	assert.Equal(t, []string{"ID", "Email"}, row.Columns(), "original order and spelling kept")
}
