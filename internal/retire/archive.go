package retire

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Ririin-28/IS-RPT-SAES-sub003/internal/logger"
	"github.com/Ririin-28/IS-RPT-SAES-sub003/internal/schema"
	"github.com/Ririin-28/IS-RPT-SAES-sub003/internal/sqlutil"
)

// Writer persists account history into the archive table before the live
// rows are deleted. Writes are idempotent: an account that already has an
// archive row is reused, never duplicated.
type Writer struct {
	db     sqlutil.DBTX
	logger *logger.Logger
}

// NewWriter creates an archive writer over the given connection or
// transaction.
func NewWriter(db sqlutil.DBTX, log *logger.Logger) *Writer {
	if log == nil {
		log = logger.NewDefault()
	}
	return &Writer{db: db, logger: log}
}

// ArchiveOne ensures one account has an archive row and returns its id.
//
// Resolution order:
//  1. an existing row keyed by the account id is reused;
//  2. a placeholder row matching the account's email with no account id yet
//     (pre-created by an earlier partial flow) is claimed by patching the id;
//  3. otherwise a fresh row is inserted from the intersection of the live
//     columns and the archive columns, plus a JSON snapshot of the full row
//     when the archive carries a snapshot column.
func (w *Writer) ArchiveOne(ctx context.Context, plan *Plan, bundle *SourceBundle, reason string) (int64, error) {
	arc := plan.Archive
	pkCol := arc.Columns.First("id", "archive_id")
	userIDCol := arc.Columns.First("user_id", "original_id", "users_id")
	if userIDCol == "" {
		return 0, fmt.Errorf("%w: archive table %s has no account id column", ErrNoArchiveStorage, arc.Name)
	}

	log := w.logger.WithAccount(bundle.PrimaryID)

	if id, found, err := w.findByUserID(ctx, arc, pkCol, userIDCol, bundle.PrimaryID); err != nil {
		return 0, err
	} else if found {
		log.Debugf("Archive row %d already exists; reusing", id)
		return id, nil
	}

	if email := bundle.Email(); email != "" && arc.Columns.Has("email") {
		id, found, err := w.claimPlaceholder(ctx, arc, pkCol, userIDCol, email, bundle.PrimaryID)
		if err != nil {
			return 0, err
		}
		if found {
			log.Debugf("Claimed placeholder archive row %d by email", id)
			return id, nil
		}
	}

	return w.insert(ctx, arc, pkCol, userIDCol, bundle, reason)
}

func (w *Writer) findByUserID(ctx context.Context, arc schema.TableRef, pkCol, userIDCol string, userID int64) (int64, bool, error) {
	if pkCol == "" {
		// No primary key column to report; existence alone decides reuse.
		query := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s = ?",
			sqlutil.QuoteIdentifier(arc.Name), sqlutil.QuoteIdentifier(userIDCol))
		var count int64
		if err := w.db.QueryRowContext(ctx, query, userID).Scan(&count); err != nil {
			return 0, false, fmt.Errorf("failed to probe archive for account %d: %w", userID, err)
		}
		return 0, count > 0, nil
	}

	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s = ? ORDER BY %s LIMIT 1",
		sqlutil.QuoteIdentifier(pkCol),
		sqlutil.QuoteIdentifier(arc.Name),
		sqlutil.QuoteIdentifier(userIDCol),
		sqlutil.QuoteIdentifier(pkCol))
	var id int64
	err := w.db.QueryRowContext(ctx, query, userID).Scan(&id)
	if err != nil {
		if isNoRows(err) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("failed to probe archive for account %d: %w", userID, err)
	}
	return id, true, nil
}

// claimPlaceholder looks for an archive row created before the account id
// was known (matching email, id NULL or zero) and stamps the id onto it.
func (w *Writer) claimPlaceholder(ctx context.Context, arc schema.TableRef, pkCol, userIDCol, email string, userID int64) (int64, bool, error) {
	if pkCol == "" {
		return 0, false, nil
	}
	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s = ? AND (%s IS NULL OR %s = 0) ORDER BY %s LIMIT 1",
		sqlutil.QuoteIdentifier(pkCol),
		sqlutil.QuoteIdentifier(arc.Name),
		sqlutil.QuoteIdentifier("email"),
		sqlutil.QuoteIdentifier(userIDCol),
		sqlutil.QuoteIdentifier(userIDCol),
		sqlutil.QuoteIdentifier(pkCol))
	var id int64
	err := w.db.QueryRowContext(ctx, query, email).Scan(&id)
	if err != nil {
		if isNoRows(err) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("failed to probe archive placeholders: %w", err)
	}

	update := fmt.Sprintf("UPDATE %s SET %s = ? WHERE %s = ?",
		sqlutil.QuoteIdentifier(arc.Name),
		sqlutil.QuoteIdentifier(userIDCol),
		sqlutil.QuoteIdentifier(pkCol))
	if _, err := w.db.ExecContext(ctx, update, userID, id); err != nil {
		return 0, false, fmt.Errorf("failed to claim archive placeholder %d: %w", id, err)
	}
	return id, true, nil
}

func (w *Writer) insert(ctx context.Context, arc schema.TableRef, pkCol, userIDCol string, bundle *SourceBundle, reason string) (int64, error) {
	columns := []string{userIDCol}
	args := []interface{}{bundle.PrimaryID}
	added := map[string]bool{userIDCol: true}
	if pkCol != "" {
		added[pkCol] = true
	}

	// Copy every live column the archive also carries.
	for _, col := range bundle.User.Columns() {
		lc := strings.ToLower(col)
		if added[lc] || !arc.Columns.Has(lc) {
			continue
		}
		v, ok := bundle.User.Get(lc)
		if !ok {
			continue
		}
		columns = append(columns, lc)
		args = append(args, v)
		added[lc] = true
	}

	if reasonCol := arc.Columns.First("reason", "archive_reason", "remarks"); reasonCol != "" && !added[reasonCol] && reason != "" {
		columns = append(columns, reasonCol)
		args = append(args, reason)
		added[reasonCol] = true
	}
	if atCol := arc.Columns.First("archived_at", "deleted_at"); atCol != "" && !added[atCol] {
		columns = append(columns, atCol)
		args = append(args, time.Now())
		added[atCol] = true
	}
	// Deployments whose archive table misses live columns still keep the
	// full row as a JSON snapshot.
	if snapCol := arc.Columns.First("snapshot", "archived_data", "payload"); snapCol != "" && !added[snapCol] {
		payload, err := json.Marshal(bundle.User.Map())
		if err != nil {
			return 0, fmt.Errorf("failed to encode snapshot for account %d: %w", bundle.PrimaryID, err)
		}
		columns = append(columns, snapCol)
		args = append(args, string(payload))
		added[snapCol] = true
	}

	quoted := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = sqlutil.QuoteIdentifier(c)
	}
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		sqlutil.QuoteIdentifier(arc.Name),
		strings.Join(quoted, ", "),
		sqlutil.Placeholders(len(columns)))

	result, err := w.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to archive account %d: %w", bundle.PrimaryID, err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read archive id for account %d: %w", bundle.PrimaryID, err)
	}
	w.logger.WithAccount(bundle.PrimaryID).Debugf("Archived as row %d (%d columns)", id, len(columns))
	return id, nil
}

// PreserveAuxiliary copies rows from a live relationship table into its
// archived counterpart, re-keyed to the owning archive row, before the live
// rows are deleted. archiveIDByKey maps the relationship key value (account
// id or alternate id, as the table is keyed) to the archive row id.
func (w *Writer) PreserveAuxiliary(ctx context.Context, step AuxStep, archiveIDByKey map[string]int64, chunkSize int) (int64, error) {
	keys := make([]string, 0, len(archiveIDByKey))
	for k := range archiveIDByKey {
		keys = append(keys, k)
	}
	if len(keys) == 0 {
		return 0, nil
	}

	var preserved int64
	for _, chunk := range sqlutil.ChunkStrings(keys, chunkSize) {
		query := fmt.Sprintf("SELECT * FROM %s WHERE %s IN (%s)",
			sqlutil.QuoteIdentifier(step.Source.Name),
			sqlutil.QuoteIdentifier(step.KeyColumn),
			sqlutil.Placeholders(len(chunk)))
		rows, err := w.db.QueryContext(ctx, query, sqlutil.StringArgs(chunk)...)
		if err != nil {
			return preserved, fmt.Errorf("failed to query %s: %w", step.Source.Name, err)
		}
		accessors, err := schema.ScanRows(rows)
		rows.Close()
		if err != nil {
			return preserved, fmt.Errorf("failed to read %s rows: %w", step.Source.Name, err)
		}

		for _, row := range accessors {
			owner, ok := row.String(step.KeyColumn)
			if !ok {
				continue
			}
			archiveID, ok := archiveIDByKey[owner]
			if !ok {
				continue
			}
			if err := w.preserveRow(ctx, step, row, archiveID); err != nil {
				return preserved, err
			}
			preserved++
		}
	}

	if preserved > 0 {
		w.logger.WithTable(step.Archive.Name).Infof("Preserved %d auxiliary rows from %s", preserved, step.Source.Name)
	}
	return preserved, nil
}

func (w *Writer) preserveRow(ctx context.Context, step AuxStep, row *schema.RowAccessor, archiveID int64) error {
	columns := []string{step.ArchiveKeyColumn}
	args := []interface{}{archiveID}
	added := map[string]bool{step.ArchiveKeyColumn: true}

	for _, col := range row.Columns() {
		lc := strings.ToLower(col)
		// The live row's own id and key column do not carry over; archived
		// rows are keyed by the archive id alone.
		if lc == "id" || lc == step.KeyColumn || added[lc] || !step.Archive.Columns.Has(lc) {
			continue
		}
		v, ok := row.Get(lc)
		if !ok {
			continue
		}
		columns = append(columns, lc)
		args = append(args, v)
		added[lc] = true
	}

	quoted := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = sqlutil.QuoteIdentifier(c)
	}
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		sqlutil.QuoteIdentifier(step.Archive.Name),
		strings.Join(quoted, ", "),
		sqlutil.Placeholders(len(columns)))
	if _, err := w.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to preserve row into %s: %w", step.Archive.Name, err)
	}
	return nil
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
