package main

import (
	"fmt"
	"os"

	"stockservice/internal/platform/observability"
	"stockservice/internal/storage/postgres"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the PostgreSQL ledger and catalog tables",
	RunE:  runMigrate,
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.DatabaseDSN == "" {
		return fmt.Errorf("DATABASE_DSN is required for migrate")
	}

	logger, err := observability.NewLogger(cfg.LogLevel, os.Stdout)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	db, err := postgres.Open(cfg.DatabaseDSN, logger)
	if err != nil {
		return err
	}
	defer postgres.Close(db)

	if err := postgres.AutoMigrate(db); err != nil {
		return err
	}
	logger.Info("✅ Schema migrated", zap.String("backend", "postgres"))
	return nil
}
