package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/gookit/color"
	"github.com/spf13/cobra"

	"github.com/Ririin-28/IS-RPT-SAES-sub003/internal/database"
	"github.com/Ririin-28/IS-RPT-SAES-sub003/internal/lock"
	"github.com/Ririin-28/IS-RPT-SAES-sub003/internal/logger"
	"github.com/Ririin-28/IS-RPT-SAES-sub003/internal/retire"
)

var (
	retireIDs    []int64
	retireReason string
	retireDryRun bool
	retireForce  bool
)

var retireCmd = &cobra.Command{
	Use:   "retire",
	Short: "Retire accounts: archive then cascade-delete",
	Long: `Retire archives the given accounts into the archive table and deletes
every row that references them, in one transaction. Any failure rolls the
whole batch back.

An advisory lock serializes batches across instances. Use --dry-run to see
what would be deleted without changing anything.

Example:
  saesadmin retire --config saesadmin.yaml --ids 101,102 --reason "left school"`,
	RunE: runRetire,
}

func init() {
	retireCmd.Flags().Int64SliceVar(&retireIDs, "ids", nil,
		"Account ids to retire (required)")
	retireCmd.MarkFlagRequired("ids")

	retireCmd.Flags().StringVar(&retireReason, "reason", "",
		"Reason recorded on the archive rows")
	retireCmd.Flags().BoolVar(&retireDryRun, "dry-run", false,
		"Resolve the plan and count affected rows without deleting")
	retireCmd.Flags().BoolVar(&retireForce, "force", false,
		"Skip the advisory lock (use with caution)")

	rootCmd.AddCommand(retireCmd)
}

func runRetire(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	log, err := logger.New(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer log.Sync()

	ctx := database.SetupSignalHandler()

	dbManager := database.NewManager(&cfg.Database)
	if err := dbManager.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer dbManager.Close()

	coordinator, err := retire.NewCoordinator(dbManager.DB, cfg.Database.Database, &cfg.Retirement, log)
	if err != nil {
		return fmt.Errorf("failed to create retirement coordinator: %w", err)
	}

	if retireDryRun {
		report, err := coordinator.DryRun(ctx, retireIDs)
		if err != nil {
			return fmt.Errorf("dry run failed: %w", err)
		}
		renderPlanReport(report)
		return nil
	}

	if !retireForce {
		batchLock := lock.NewRetirementLock(dbManager.DB)
		if err := batchLock.AcquireOrFail(ctx); err != nil {
			if errors.Is(err, lock.ErrLockTimeout) {
				return fmt.Errorf("another retirement batch is running (use --force to override)")
			}
			return fmt.Errorf("failed to acquire retirement lock: %w", err)
		}
		defer batchLock.ReleaseLock(context.Background())
	} else {
		log.Warnf("Skipping advisory lock acquisition (--force flag used)")
	}

	result, err := coordinator.Retire(ctx, retireIDs, retireReason)
	if err != nil {
		return fmt.Errorf("retirement failed: %w", err)
	}

	printRetireResult(result)
	return nil
}

func printRetireResult(result *retire.Result) {
	fmt.Fprintf(outputWriter, "\n=== Retirement Complete ===\n")
	fmt.Fprintf(outputWriter, "Batch: %s\n", result.BatchID)
	fmt.Fprintf(outputWriter, "Duration: %s\n", result.Duration)
	fmt.Fprintf(outputWriter, "Archived: %d\n", len(result.Archived))
	if result.Deleted != nil {
		fmt.Fprintf(outputWriter, "Rows Deleted: %d (across %d targets, %d skipped)\n",
			result.Deleted.RowsDeleted, result.Deleted.TablesProcessed, result.Deleted.TablesSkipped)
	}
	for _, a := range result.Archived {
		fmt.Fprintf(outputWriter, "  - %s\n", color.Green.Sprintf("#%d %s <%s> -> archive row %d",
			a.UserID, a.Name, a.Email, a.ArchiveID))
	}
	if len(result.Skipped) > 0 {
		fmt.Fprintf(outputWriter, "%s\n", color.Yellow.Sprintf("Skipped (not found): %v", result.Skipped))
	}
}
