// Package main provides the stackit server and its maintenance commands.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/emilythestrangee/stackit/backend/internal/config"
	"github.com/emilythestrangee/stackit/backend/internal/database"
	"github.com/emilythestrangee/stackit/backend/internal/telemetry"
)

var (
	version    = "0.1.0-dev"
	configPath string
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	rootCmd := &cobra.Command{
		Use:           "stackit",
		Short:         "Q&A platform backend",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to a TOML or YAML config file")

	rootCmd.AddCommand(
		newServeCmd(),
		newMigrateCmd(),
		newReconcileCmd(),
	)

	return rootCmd.ExecuteContext(ctx)
}

// setup loads the configuration, installs the logger and opens the database.
func setup() (*config.Config, *slog.Logger, database.Service, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, nil, err
	}
	logger := telemetry.NewLogger(os.Stdout, cfg.LogLevel)

	db, err := database.New(cfg.Database, logger)
	if err != nil {
		return nil, nil, nil, err
	}
	return cfg, logger, db, nil
}
