package retire

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/Ririin-28/IS-RPT-SAES-sub003/internal/config"
	"github.com/Ririin-28/IS-RPT-SAES-sub003/internal/logger"
	"github.com/Ririin-28/IS-RPT-SAES-sub003/internal/schema"
	"github.com/Ririin-28/IS-RPT-SAES-sub003/internal/sqlutil"
)

// Coordinator runs retirement batches. Each batch is a single transaction:
// plan, read, archive, preserve, delete, verify, commit. Any failure rolls
// the whole batch back, leaving every account either fully retired or fully
// intact.
type Coordinator struct {
	db     *sql.DB
	dbName string
	cfg    *config.RetirementConfig
	logger *logger.Logger
}

// NewCoordinator creates a retirement coordinator.
func NewCoordinator(db *sql.DB, dbName string, cfg *config.RetirementConfig, log *logger.Logger) (*Coordinator, error) {
	if db == nil {
		return nil, fmt.Errorf("database is nil")
	}
	if dbName == "" {
		return nil, fmt.Errorf("database name is required")
	}
	if cfg == nil {
		return nil, fmt.Errorf("retirement config is nil")
	}
	if log == nil {
		log = logger.NewDefault()
	}
	return &Coordinator{db: db, dbName: dbName, cfg: cfg, logger: log}, nil
}

// ArchivedAccount is one successfully retired account as reported back to
// the caller.
type ArchivedAccount struct {
	UserID    int64  `json:"userId"`
	ArchiveID int64  `json:"archiveId"`
	Name      string `json:"name,omitempty"`
	Email     string `json:"email,omitempty"`
}

// Result summarizes one committed batch.
type Result struct {
	BatchID  string            `json:"batchId"`
	Archived []ArchivedAccount `json:"archived"`
	Skipped  []int64           `json:"skipped,omitempty"`
	Deleted  *DeleteStats      `json:"-"`
	Duration time.Duration     `json:"-"`
}

// ValidateIDs normalizes a batch's requested ids: non-positive values and
// duplicates are dropped, input order is preserved. An empty result is
// ErrEmptyInput.
func ValidateIDs(ids []int64) ([]int64, error) {
	seen := make(map[int64]bool, len(ids))
	var valid []int64
	for _, id := range ids {
		if id <= 0 || seen[id] {
			continue
		}
		seen[id] = true
		valid = append(valid, id)
	}
	if len(valid) == 0 {
		return nil, ErrEmptyInput
	}
	return valid, nil
}

// Retire archives and cascade-deletes the given accounts in one
// transaction. Ids with no account are skipped, not errors, so a retry of a
// partially observed batch converges instead of failing.
func (c *Coordinator) Retire(ctx context.Context, ids []int64, reason string) (*Result, error) {
	ids, err := ValidateIDs(ids)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	batchID := uuid.NewString()
	log := c.logger.WithBatch(batchID)
	log.Infof("Retiring %d accounts", len(ids))

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, &TransientError{Op: "begin transaction", Err: err}
	}
	defer func() {
		if tx != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				log.Errorf("Rollback failed: %v", rbErr)
			}
		}
	}()

	plan, err := c.buildPlan(ctx, tx, log)
	if err != nil {
		return nil, err
	}

	bundles, foundIDs, err := FetchBundles(ctx, tx, plan, ids, c.cfg.ChunkSize, log)
	if err != nil {
		return nil, classify("fetch accounts", err)
	}
	result := &Result{BatchID: batchID, Skipped: missingIDs(ids, bundles)}
	if len(foundIDs) == 0 {
		log.Infof("No matching accounts; nothing to do")
		result.Duration = time.Since(start)
		return result, nil
	}

	writer := NewWriter(tx, log)
	altIDs := make([]string, 0, len(foundIDs))
	archiveIDByUserKey := make(map[string]int64, len(foundIDs))
	archiveIDByAltKey := make(map[string]int64, len(foundIDs))

	for _, id := range foundIDs {
		b := bundles[id]
		altID := ResolveAlternateID(id, b.Role, c.cfg.AlternateIDColumns)
		altIDs = append(altIDs, altID)

		archiveID, err := writer.ArchiveOne(ctx, plan, b, reason)
		if err != nil {
			return nil, classify("archive account", err)
		}
		archiveIDByUserKey[strconv.FormatInt(id, 10)] = archiveID
		archiveIDByAltKey[altID] = archiveID

		result.Archived = append(result.Archived, ArchivedAccount{
			UserID:    id,
			ArchiveID: archiveID,
			Name:      b.DisplayName(),
			Email:     b.Email(),
		})
	}

	for _, aux := range plan.Aux {
		keyMap := archiveIDByAltKey
		if isUserIDColumn(aux.KeyColumn) {
			keyMap = archiveIDByUserKey
		}
		if _, err := writer.PreserveAuxiliary(ctx, aux, keyMap, c.cfg.ChunkSize); err != nil {
			return nil, classify("preserve auxiliary rows", err)
		}
	}

	stats, err := NewDeleter(tx, c.cfg.ChunkSize, log).Execute(ctx, plan, bundles, foundIDs, altIDs)
	if err != nil {
		return nil, classify("cascade delete", err)
	}
	result.Deleted = stats

	if c.cfg.Verify {
		if err := NewVerifier(tx, c.cfg.ChunkSize, log).VerifyGone(ctx, plan, bundles, foundIDs, altIDs); err != nil {
			return nil, classify("verify", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, &TransientError{Op: "commit", Err: err}
	}
	tx = nil

	result.Duration = time.Since(start)
	log.Infof("Batch committed: %d archived, %d rows deleted in %s",
		len(result.Archived), stats.RowsDeleted, result.Duration.Round(time.Millisecond))
	return result, nil
}

// PlanReport is the outcome of a dry run: what would be touched, without
// touching it.
type PlanReport struct {
	UsersTable   string          `json:"usersTable"`
	ArchiveTable string          `json:"archiveTable"`
	RoleTable    string          `json:"roleTable,omitempty"`
	FoundIDs     []int64         `json:"foundIds"`
	MissingIDs   []int64         `json:"missingIds,omitempty"`
	Estimates    []TableEstimate `json:"estimates"`
}

// DryRun resolves the plan and counts affected rows without mutating
// anything. It runs on the pool, outside any transaction.
func (c *Coordinator) DryRun(ctx context.Context, ids []int64) (*PlanReport, error) {
	ids, err := ValidateIDs(ids)
	if err != nil {
		return nil, err
	}

	plan, err := c.buildPlan(ctx, c.db, c.logger)
	if err != nil {
		return nil, err
	}

	bundles, foundIDs, err := FetchBundles(ctx, c.db, plan, ids, c.cfg.ChunkSize, c.logger)
	if err != nil {
		return nil, classify("fetch accounts", err)
	}

	altIDs := make([]string, 0, len(foundIDs))
	for _, id := range foundIDs {
		altIDs = append(altIDs, ResolveAlternateID(id, bundles[id].Role, c.cfg.AlternateIDColumns))
	}

	estimates, err := plan.Estimate(ctx, c.db, bundles, foundIDs, altIDs, c.cfg.ChunkSize)
	if err != nil {
		return nil, classify("estimate", err)
	}

	return &PlanReport{
		UsersTable:   plan.Users.Name,
		ArchiveTable: plan.Archive.Name,
		RoleTable:    plan.RoleTableName(),
		FoundIDs:     foundIDs,
		MissingIDs:   missingIDsFromList(ids, foundIDs),
		Estimates:    estimates,
	}, nil
}

func (c *Coordinator) buildPlan(ctx context.Context, db sqlutil.DBTX, log *logger.Logger) (*Plan, error) {
	catalog, err := schema.NewCatalog(db, c.dbName, log)
	if err != nil {
		return nil, err
	}
	fks, err := schema.NewIndex(db, c.dbName, log)
	if err != nil {
		return nil, err
	}
	plan, err := NewPlanner(catalog, fks, c.cfg, log).Build(ctx)
	if err != nil {
		return nil, classify("build plan", err)
	}
	return plan, nil
}

// classify separates precondition failures, which the caller caused and a
// retry will not fix, from everything else, which is reported as transient.
func classify(op string, err error) error {
	var drift *SchemaDriftError
	switch {
	case errors.Is(err, ErrNoArchiveStorage),
		errors.Is(err, ErrEmptyInput),
		errors.Is(err, schema.ErrTableNotFound),
		errors.As(err, &drift),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return err
	}
	return &TransientError{Op: op, Err: err}
}

func isUserIDColumn(col string) bool {
	for _, c := range userIDColumnCandidates {
		if c == col {
			return true
		}
	}
	return false
}

func missingIDs(requested []int64, bundles map[int64]*SourceBundle) []int64 {
	var missing []int64
	for _, id := range requested {
		if _, ok := bundles[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing
}

func missingIDsFromList(requested, found []int64) []int64 {
	have := make(map[int64]bool, len(found))
	for _, id := range found {
		have[id] = true
	}
	var missing []int64
	for _, id := range requested {
		if !have[id] {
			missing = append(missing, id)
		}
	}
	return missing
}
