package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/gookit/color"
	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"

	"github.com/Ririin-28/IS-RPT-SAES-sub003/internal/database"
	"github.com/Ririin-28/IS-RPT-SAES-sub003/internal/logger"
	"github.com/Ririin-28/IS-RPT-SAES-sub003/internal/retire"
)

// outputWriter is used for printing output, can be overridden in tests
var outputWriter io.Writer = os.Stdout

var planIDs []int64

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Show the retirement plan for a set of accounts",
	Long: `Plan resolves the deployment's schema and shows which tables a
retirement of the given accounts would touch, with row counts, without
changing anything.

Example:
  saesadmin plan --config saesadmin.yaml --ids 101,102`,
	RunE: runPlan,
}

func init() {
	planCmd.Flags().Int64SliceVar(&planIDs, "ids", nil,
		"Account ids to plan for (required)")
	planCmd.MarkFlagRequired("ids")

	rootCmd.AddCommand(planCmd)
}

func runPlan(cmd *cobra.Command, args []string) error {
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

	report, err := coordinator.DryRun(ctx, planIDs)
	if err != nil {
		return fmt.Errorf("plan failed: %w", err)
	}

	renderPlanReport(report)
	return nil
}

// renderPlanReport prints the dry-run report as a fixed-width table, one row
// per delete target in execution order.
func renderPlanReport(report *retire.PlanReport) {
	fmt.Fprintf(outputWriter, "\n=== Retirement Plan ===\n")
	fmt.Fprintf(outputWriter, "Users table:   %s\n", report.UsersTable)
	fmt.Fprintf(outputWriter, "Archive table: %s\n", report.ArchiveTable)
	if report.RoleTable != "" {
		fmt.Fprintf(outputWriter, "Role table:    %s\n", report.RoleTable)
	}
	fmt.Fprintf(outputWriter, "Accounts:      %d found", len(report.FoundIDs))
	if len(report.MissingIDs) > 0 {
		fmt.Fprintf(outputWriter, ", %s", color.Yellow.Sprintf("%d not found %v", len(report.MissingIDs), report.MissingIDs))
	}
	fmt.Fprintln(outputWriter)

	tableWidth := runewidth.StringWidth("TABLE")
	for _, e := range report.Estimates {
		if w := runewidth.StringWidth(e.Table); w > tableWidth {
			tableWidth = w
		}
	}

	fmt.Fprintf(outputWriter, "\n%s  %s  %s\n",
		runewidth.FillRight("TABLE", tableWidth),
		runewidth.FillRight("STAGE", 10),
		"ROWS")
	for _, e := range report.Estimates {
		rows := fmt.Sprintf("%d", e.Rows)
		if e.Rows > 0 {
			rows = color.Red.Sprint(rows)
		}
		fmt.Fprintf(outputWriter, "%s  %s  %s\n",
			runewidth.FillRight(e.Table, tableWidth),
			runewidth.FillRight(e.Stage, 10),
			rows)
	}
}
