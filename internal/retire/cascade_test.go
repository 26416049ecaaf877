package retire

import (
	"context"
	"fmt"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ririin-28/IS-RPT-SAES-sub003/internal/logger"
	"github.com/Ririin-28/IS-RPT-SAES-sub003/internal/schema"
)

func TestDeleter_Execute_RunsInPlanOrder(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	// Expectations are ordered; a DELETE arriving out of order fails the
	// test. Children must go before the role and users tables.
	mock.ExpectExec("DELETE FROM `notifications` WHERE `user_id` IN ").
		WithArgs(int64(7), int64(8)).
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec("DELETE FROM `teacher_subjects` WHERE `teacher_id` IN ").
		WithArgs(int64(301)).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec("DELETE FROM `activity_logs` WHERE `user_id` IN ").
		WithArgs(int64(7), int64(8)).
		WillReturnResult(sqlmock.NewResult(0, 10))
	mock.ExpectExec("DELETE FROM `teacher_grades` WHERE `teacher_id` IN ").
		WithArgs("T-0007", "8").
		WillReturnResult(sqlmock.NewResult(0, 4))
	mock.ExpectExec("DELETE FROM `teachers` WHERE `user_id` IN ").
		WithArgs(int64(7), int64(8)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM `users` WHERE `id` IN ").
		WithArgs(int64(7), int64(8)).
		WillReturnResult(sqlmock.NewResult(0, 2))

	d := NewDeleter(db, 500, logger.NewDefault())
	stats, err := d.Execute(context.Background(), testPlan(), testBundles(), []int64{7, 8}, []string{"T-0007", "8"})
	require.NoError(t, err)

	assert.Equal(t, 6, stats.TablesProcessed)
	assert.Equal(t, int64(22), stats.RowsDeleted)
	assert.Equal(t, int64(3), stats.RowsPerTable["notifications"])
	assert.Equal(t, int64(2), stats.RowsPerTable["users"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleter_Execute_ChunksLargeBatches(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	plan := &Plan{
		Users:   schema.TableRef{Name: "users", Columns: schema.NewColumnSet("id")},
		UsersPK: "id",
		Archive: schema.TableRef{Name: "archived_users", Columns: schema.NewColumnSet("id", "user_id")},
	}

	ids := make([]int64, 1200)
	bundles := make(map[int64]*SourceBundle, 1200)
	for i := range ids {
		id := int64(i + 1)
		ids[i] = id
		bundles[id] = &SourceBundle{
			PrimaryID: id,
			User:      schema.NewRowAccessor([]string{"id"}, []interface{}{id}),
		}
	}

	// 1200 ids at a chunk size of 500 is exactly three statements.
	for _, n := range []int{500, 500, 200} {
		mock.ExpectExec("DELETE FROM `users` WHERE `id` IN ").
			WillReturnResult(sqlmock.NewResult(0, int64(n)))
	}

	d := NewDeleter(db, 500, logger.NewDefault())
	stats, err := d.Execute(context.Background(), plan, bundles, ids, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1200), stats.RowsDeleted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleter_Execute_SkipsEmptyInstances(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	plan := testPlan()
	bundles := map[int64]*SourceBundle{
		8: testBundles()[8], // no role row, so role-sourced steps have no values
	}

	mock.ExpectExec("DELETE FROM `notifications` WHERE `user_id` IN ").
		WithArgs(int64(8)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	// teacher_subjects is skipped: no role row, no values.
	mock.ExpectExec("DELETE FROM `activity_logs` WHERE `user_id` IN ").
		WithArgs(int64(8)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("DELETE FROM `teacher_grades` WHERE `teacher_id` IN ").
		WithArgs("8").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("DELETE FROM `teachers` WHERE `user_id` IN ").
		WithArgs(int64(8)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("DELETE FROM `users` WHERE `id` IN ").
		WithArgs(int64(8)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	d := NewDeleter(db, 500, logger.NewDefault())
	stats, err := d.Execute(context.Background(), plan, bundles, []int64{8}, []string{"8"})
	require.NoError(t, err)
	assert.Equal(t, 5, stats.TablesProcessed)
	assert.Equal(t, 1, stats.TablesSkipped)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleter_Execute_FailurePropagates(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	plan := &Plan{
		Users:   schema.TableRef{Name: "users", Columns: schema.NewColumnSet("id")},
		UsersPK: "id",
		Archive: schema.TableRef{Name: "archived_users", Columns: schema.NewColumnSet("id", "user_id")},
	}

	mock.ExpectExec("DELETE FROM `users` WHERE `id` IN ").
		WillReturnError(fmt.Errorf("lock wait timeout"))

	d := NewDeleter(db, 500, logger.NewDefault())
	_, err = d.Execute(context.Background(), plan, map[int64]*SourceBundle{}, []int64{7}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "users")
}
