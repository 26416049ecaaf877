package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Ririin-28/IS-RPT-SAES-sub003/internal/config"
)

// Version information (set via ldflags at build time)
var (
	Version = "0.0.1-dev"
	Commit  = "unknown"
)

// CLI flags that override config file values
var (
	cfgFile      string
	logLevel     string
	logFormat    string
	chunkSize    int
	strictSchema bool
	skipVerify   bool
)

var rootCmd = &cobra.Command{
	Use:   "saesadmin",
	Short: "SAES account administration backend",
	Long: `Administration backend for the school system: serves the account
management API and retires accounts by archiving them into durable history
and cascade-deleting every row that references them.

Retirement is atomic per batch (one transaction), idempotent on retry, and
adapts to the deployment's actual schema at runtime.`,
	Version: Version,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "saesadmin.yaml",
		"Path to configuration file")

	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "",
		"Override log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "",
		"Override log format (json, text)")

	rootCmd.PersistentFlags().IntVar(&chunkSize, "chunk-size", 0,
		"Override ids per SQL statement")
	rootCmd.PersistentFlags().BoolVar(&strictSchema, "strict-schema", false,
		"Treat missing optional tables as errors instead of skips")
	rootCmd.PersistentFlags().BoolVar(&skipVerify, "skip-verify", false,
		"Skip post-delete verification before commit")
}

// loadConfig loads the config file, applies CLI overrides, and validates.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	cfg.ApplyOverrides(logLevel, logFormat, chunkSize, strictSchema, skipVerify)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}
