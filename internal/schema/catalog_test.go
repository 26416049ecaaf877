package schema

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ririin-28/IS-RPT-SAES-sub003/internal/logger"
)

func TestNewCatalog_Validation(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	_, err = NewCatalog(nil, "school", logger.NewDefault())
	assert.Error(t, err)

	_, err = NewCatalog(db, "", logger.NewDefault())
	assert.Error(t, err)

	c, err := NewCatalog(db, "school", nil)
	assert.NoError(t, err)
	assert.NotNil(t, c)
}

func TestCatalog_Columns(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	catalog, err := NewCatalog(db, "school", logger.NewDefault())
	require.NoError(t, err)

	mock.ExpectQuery("SELECT COLUMN_NAME").
		WithArgs("school", "users").
		WillReturnRows(sqlmock.NewRows([]string{"COLUMN_NAME"}).
			AddRow("ID").
			AddRow("Email").
			AddRow("name"))

	cols, err := catalog.Columns(context.Background(), "users")
	require.NoError(t, err)
	assert.Equal(t, 3, cols.Len())
	assert.True(t, cols.Has("id"), "lookup is case-insensitive")
	assert.True(t, cols.Has("EMAIL"))
	assert.False(t, cols.Has("password"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCatalog_Columns_AbsentTable(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	catalog, err := NewCatalog(db, "school", logger.NewDefault())
	require.NoError(t, err)

	mock.ExpectQuery("SELECT COLUMN_NAME").
		WithArgs("school", "no_such_table").
		WillReturnRows(sqlmock.NewRows([]string{"COLUMN_NAME"}))

	cols, err := catalog.Columns(context.Background(), "no_such_table")
	require.NoError(t, err, "an absent table is an empty set, not an error")
	assert.Equal(t, 0, cols.Len())
}

func TestCatalog_Columns_RejectsInvalidName(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	catalog, err := NewCatalog(db, "school", logger.NewDefault())
	require.NoError(t, err)

	_, err = catalog.Columns(context.Background(), "users; DROP TABLE users")
	assert.Error(t, err)
}

func TestCatalog_ResolveTable_PriorityOrder(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	catalog, err := NewCatalog(db, "school", logger.NewDefault())
	require.NoError(t, err)

	// "teacher" and "teachers" do not exist in this deployment; "faculty"
	// does. Candidates are probed in order.
	mock.ExpectQuery("SELECT COLUMN_NAME").
		WithArgs("school", "teacher").
		WillReturnRows(sqlmock.NewRows([]string{"COLUMN_NAME"}))
	mock.ExpectQuery("SELECT COLUMN_NAME").
		WithArgs("school", "teachers").
		WillReturnRows(sqlmock.NewRows([]string{"COLUMN_NAME"}))
	mock.ExpectQuery("SELECT COLUMN_NAME").
		WithArgs("school", "faculty").
		WillReturnRows(sqlmock.NewRows([]string{"COLUMN_NAME"}).
			AddRow("id").
			AddRow("user_id").
			AddRow("faculty_id"))

	ref, err := catalog.ResolveTable(context.Background(), []string{"teacher", "teachers", "faculty"})
	require.NoError(t, err)
	assert.Equal(t, "faculty", ref.Name)
	assert.True(t, ref.Columns.Has("user_id"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCatalog_ResolveTable_NoneExists(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	catalog, err := NewCatalog(db, "school", logger.NewDefault())
	require.NoError(t, err)

	for _, name := range []string{"archived_users", "users_archive"} {
		mock.ExpectQuery("SELECT COLUMN_NAME").
			WithArgs("school", name).
			WillReturnRows(sqlmock.NewRows([]string{"COLUMN_NAME"}))
	}

	_, err = catalog.ResolveTable(context.Background(), []string{"archived_users", "users_archive"})
	assert.True(t, errors.Is(err, ErrTableNotFound))
}

func TestColumnSet_First(t *testing.T) {
	cs := NewColumnSet("id", "teacher_code", "email")

	assert.Equal(t, "teacher_code", cs.First("employee_id", "teacher_code", "id"))
	assert.Equal(t, "id", cs.First("id", "teacher_code"))
	assert.Equal(t, "", cs.First("staff_no"))
}
