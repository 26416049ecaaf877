package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Ririin-28/IS-RPT-SAES-sub003/internal/database"
	"github.com/Ririin-28/IS-RPT-SAES-sub003/internal/logger"
	"github.com/Ririin-28/IS-RPT-SAES-sub003/internal/retire"
	"github.com/Ririin-28/IS-RPT-SAES-sub003/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the administration HTTP API",
	Long: `Serve starts the HTTP API used by the administration frontend,
including the account retirement endpoint.

Example:
  saesadmin serve --config saesadmin.yaml`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
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

	srv := server.New(&cfg.Server, coordinator, log)
	if err := srv.Run(ctx); err != nil {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}
