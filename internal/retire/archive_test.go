package retire

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ririin-28/IS-RPT-SAES-sub003/internal/logger"
	"github.com/Ririin-28/IS-RPT-SAES-sub003/internal/schema"
)

func archivePlan(archiveCols ...string) *Plan {
	return &Plan{
		Users:   schema.TableRef{Name: "users", Columns: schema.NewColumnSet("id", "name", "email", "phone")},
		UsersPK: "id",
		Archive: schema.TableRef{Name: "archived_users", Columns: schema.NewColumnSet(archiveCols...)},
	}
}

func archiveBundle() *SourceBundle {
	return &SourceBundle{
		PrimaryID: 7,
		User: schema.NewRowAccessor(
			[]string{"id", "name", "email", "phone"},
			[]interface{}{int64(7), "Alice", "alice@school.edu", "555-0100"},
		),
	}
}

func TestWriter_ArchiveOne_ReusesExistingRow(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT `id` FROM `archived_users` WHERE `user_id` = ").
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(42))

	w := NewWriter(db, logger.NewDefault())
	id, err := w.ArchiveOne(context.Background(), archivePlan("id", "user_id", "name", "email"), archiveBundle(), "left school")
	require.NoError(t, err)
	assert.Equal(t, int64(42), id, "existing row is reused, never duplicated")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWriter_ArchiveOne_ClaimsPlaceholderByEmail(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT `id` FROM `archived_users` WHERE `user_id` = ").
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectQuery("SELECT `id` FROM `archived_users` WHERE `email` = ").
		WithArgs("alice@school.edu").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(9))
	mock.ExpectExec("UPDATE `archived_users` SET `user_id` = ").
		WithArgs(int64(7), int64(9)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	w := NewWriter(db, logger.NewDefault())
	id, err := w.ArchiveOne(context.Background(), archivePlan("id", "user_id", "name", "email"), archiveBundle(), "")
	require.NoError(t, err)
	assert.Equal(t, int64(9), id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWriter_ArchiveOne_InsertsColumnIntersection(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT `id` FROM `archived_users` WHERE `user_id` = ").
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectQuery("SELECT `id` FROM `archived_users` WHERE `email` = ").
		WithArgs("alice@school.edu").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	// The archive carries name and email but not phone; only shared columns
	// plus reason and archived_at are written.
	mock.ExpectExec("INSERT INTO `archived_users`").
		WithArgs(int64(7), "Alice", "alice@school.edu", "left school", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(55, 1))

	w := NewWriter(db, logger.NewDefault())
	plan := archivePlan("id", "user_id", "name", "email", "reason", "archived_at")
	id, err := w.ArchiveOne(context.Background(), plan, archiveBundle(), "left school")
	require.NoError(t, err)
	assert.Equal(t, int64(55), id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWriter_ArchiveOne_WritesSnapshot(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT `id` FROM `archived_users` WHERE `user_id` = ").
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	// Sparse archive table: only the snapshot column preserves the row.
	mock.ExpectExec("INSERT INTO `archived_users`").
		WithArgs(int64(7), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(56, 1))

	w := NewWriter(db, logger.NewDefault())
	id, err := w.ArchiveOne(context.Background(), archivePlan("id", "user_id", "snapshot"), archiveBundle(), "")
	require.NoError(t, err)
	assert.Equal(t, int64(56), id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWriter_ArchiveOne_NoUserIDColumn(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	w := NewWriter(db, logger.NewDefault())
	_, err = w.ArchiveOne(context.Background(), archivePlan("id", "name"), archiveBundle(), "")
	assert.True(t, errors.Is(err, ErrNoArchiveStorage))
}

func TestWriter_PreserveAuxiliary(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	step := AuxStep{
		Source: schema.TableRef{
			Name:    "teacher_grades",
			Columns: schema.NewColumnSet("id", "teacher_id", "grade", "school_year"),
		},
		Archive: schema.TableRef{
			Name:    "archived_teacher_grades",
			Columns: schema.NewColumnSet("id", "archive_id", "grade", "school_year"),
		},
		KeyColumn:        "teacher_id",
		ArchiveKeyColumn: "archive_id",
	}

	mock.ExpectQuery("SELECT (.+) FROM `teacher_grades` WHERE `teacher_id` IN ").
		WithArgs("T-0007").
		WillReturnRows(sqlmock.NewRows([]string{"id", "teacher_id", "grade", "school_year"}).
			AddRow(1, "T-0007", "3", "2025-2026").
			AddRow(2, "T-0007", "4", "2025-2026"))

	// Rows are re-keyed to the archive id; the live id and key column do not
	// carry over.
	mock.ExpectExec("INSERT INTO `archived_teacher_grades`").
		WithArgs(int64(42), "3", "2025-2026").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO `archived_teacher_grades`").
		WithArgs(int64(42), "4", "2025-2026").
		WillReturnResult(sqlmock.NewResult(2, 1))

	w := NewWriter(db, logger.NewDefault())
	preserved, err := w.PreserveAuxiliary(context.Background(), step, map[string]int64{"T-0007": 42}, 500)
	require.NoError(t, err)
	assert.Equal(t, int64(2), preserved)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWriter_PreserveAuxiliary_NoKeys(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	w := NewWriter(db, logger.NewDefault())
	preserved, err := w.PreserveAuxiliary(context.Background(), AuxStep{}, nil, 500)
	require.NoError(t, err)
	assert.Equal(t, int64(0), preserved)
}
