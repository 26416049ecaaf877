package retire

import (
	"context"
	"fmt"
	"time"

	"github.com/Ririin-28/IS-RPT-SAES-sub003/internal/logger"
	"github.com/Ririin-28/IS-RPT-SAES-sub003/internal/sqlutil"
)

// Deleter executes the cascade: chunked DELETEs over every edge instance of
// a plan, children before parents. It never decides what to delete; the plan
// does.
type Deleter struct {
	db        sqlutil.DBTX
	chunkSize int
	logger    *logger.Logger
}

// NewDeleter creates a cascade deleter over the given transaction.
func NewDeleter(db sqlutil.DBTX, chunkSize int, log *logger.Logger) *Deleter {
	if chunkSize <= 0 {
		chunkSize = sqlutil.DefaultChunkSize
	}
	if log == nil {
		log = logger.NewDefault()
	}
	return &Deleter{db: db, chunkSize: chunkSize, logger: log}
}

// DeleteStats summarizes one cascade run.
type DeleteStats struct {
	TablesProcessed int
	TablesSkipped   int
	RowsDeleted     int64
	RowsPerTable    map[string]int64
	Duration        time.Duration
}

// Execute runs every edge instance in plan order. Instances with no values
// are counted as skipped, not errors: an account with no role row simply has
// nothing in the role-keyed tables.
func (d *Deleter) Execute(ctx context.Context, plan *Plan, bundles map[int64]*SourceBundle, ids []int64, altIDs []string) (*DeleteStats, error) {
	start := time.Now()
	stats := &DeleteStats{RowsPerTable: make(map[string]int64)}

	for _, inst := range plan.EdgeInstances(bundles, ids, altIDs) {
		if len(inst.Values) == 0 {
			d.logger.WithTable(inst.Table).Debugf("No values for stage %s; skipped", inst.Stage)
			stats.TablesSkipped++
			continue
		}
		deleted, err := d.deleteInstance(ctx, inst)
		if err != nil {
			return stats, err
		}
		stats.TablesProcessed++
		stats.RowsDeleted += deleted
		stats.RowsPerTable[inst.Table] += deleted
		d.logger.WithTable(inst.Table).Debugf("Deleted %d rows (stage %s)", deleted, inst.Stage)
	}

	stats.Duration = time.Since(start)
	d.logger.Infof("Cascade complete: %d rows across %d targets in %s",
		stats.RowsDeleted, stats.TablesProcessed, stats.Duration.Round(time.Millisecond))
	return stats, nil
}

func (d *Deleter) deleteInstance(ctx context.Context, inst EdgeInstance) (int64, error) {
	var total int64
	for _, chunk := range sqlutil.ChunkValues(inst.Values, d.chunkSize) {
		query := fmt.Sprintf("DELETE FROM %s WHERE %s IN (%s)",
			sqlutil.QuoteIdentifier(inst.Table),
			sqlutil.QuoteIdentifier(inst.Column),
			sqlutil.Placeholders(len(chunk)))
		result, err := d.db.ExecContext(ctx, query, chunk...)
		if err != nil {
			return total, fmt.Errorf("failed to delete from %s: %w", inst.Table, err)
		}
		if n, err := result.RowsAffected(); err == nil {
			total += n
		}
	}
	return total, nil
}
