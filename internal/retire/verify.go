package retire

import (
	"context"
	"fmt"

	"github.com/Ririin-28/IS-RPT-SAES-sub003/internal/logger"
	"github.com/Ririin-28/IS-RPT-SAES-sub003/internal/sqlutil"
)

// Verifier re-counts dependent rows after the cascade, inside the same
// transaction, so a leftover reference forces a rollback instead of a
// silently incomplete retirement.
type Verifier struct {
	db        sqlutil.DBTX
	chunkSize int
	logger    *logger.Logger
}

// NewVerifier creates a verifier over the batch transaction.
func NewVerifier(db sqlutil.DBTX, chunkSize int, log *logger.Logger) *Verifier {
	if chunkSize <= 0 {
		chunkSize = sqlutil.DefaultChunkSize
	}
	if log == nil {
		log = logger.NewDefault()
	}
	return &Verifier{db: db, chunkSize: chunkSize, logger: log}
}

// VerifyGone checks that no edge instance still matches any row. The first
// leftover found fails the batch.
func (v *Verifier) VerifyGone(ctx context.Context, plan *Plan, bundles map[int64]*SourceBundle, ids []int64, altIDs []string) error {
	for _, inst := range plan.EdgeInstances(bundles, ids, altIDs) {
		for _, chunk := range sqlutil.ChunkValues(inst.Values, v.chunkSize) {
			query := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s IN (%s)",
				sqlutil.QuoteIdentifier(inst.Table),
				sqlutil.QuoteIdentifier(inst.Column),
				sqlutil.Placeholders(len(chunk)))
			var count int64
			if err := v.db.QueryRowContext(ctx, query, chunk...).Scan(&count); err != nil {
				return fmt.Errorf("failed to verify %s: %w", inst.Table, err)
			}
			if count > 0 {
				return fmt.Errorf("verification failed: %d rows remain in %s.%s", count, inst.Table, inst.Column)
			}
		}
	}
	v.logger.Debugf("Verification passed: no dependent rows remain")
	return nil
}
