package main

import (
	"context"
	"fmt"
	"os"

	"stockservice/internal/catalog"
	"stockservice/internal/config"
	"stockservice/internal/platform/observability"
	"stockservice/internal/storage/postgres"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	catalogFile string

	catalogCmd = &cobra.Command{
		Use:   "catalog",
		Short: "Manage the local catalog replica",
	}
	catalogImportCmd = &cobra.Command{
		Use:   "import",
		Short: "Load a YAML catalog snapshot into the configured catalog backend",
		RunE:  runCatalogImport,
	}
)

func init() {
	catalogImportCmd.Flags().StringVarP(&catalogFile, "file", "f", "", "YAML snapshot to import")
	_ = catalogImportCmd.MarkFlagRequired("file")
	catalogCmd.AddCommand(catalogImportCmd)
}

func runCatalogImport(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := observability.NewLogger(cfg.LogLevel, os.Stdout)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	snap, err := catalog.LoadSnapshot(catalogFile)
	if err != nil {
		return err
	}
	ctx := context.Background()

	switch cfg.CatalogBackend {
	case config.CatalogPostgres:
		err = importPostgres(ctx, cfg, logger, snap)
	case config.CatalogSQLite:
		err = importSQLite(ctx, cfg, snap)
	default:
		return fmt.Errorf("catalog backend %q is read from its snapshot file directly", cfg.CatalogBackend)
	}
	if err != nil {
		return err
	}

	logger.Info("📚 Catalog imported",
		zap.String("backend", cfg.CatalogBackend),
		zap.Int("stores", len(snap.Stores)),
		zap.Int("products", len(snap.Products)),
	)
	return nil
}

func importSQLite(ctx context.Context, cfg *config.Config, snap *catalog.Snapshot) error {
	db, err := catalog.OpenSQLite(ctx, cfg.CatalogSQLitePath)
	if err != nil {
		return err
	}
	defer db.Close()
	return db.Load(ctx, snap)
}

func importPostgres(ctx context.Context, cfg *config.Config, logger *zap.Logger, snap *catalog.Snapshot) error {
	db, err := postgres.Open(cfg.DatabaseDSN, logger)
	if err != nil {
		return err
	}
	defer postgres.Close(db)

	if err := postgres.AutoMigrate(db); err != nil {
		return err
	}
	c := postgres.NewCatalog(db)
	for _, s := range snap.Stores {
		if err := c.PutStore(ctx, postgres.CatalogStore{Code: s.Code, Name: s.Name}); err != nil {
			return fmt.Errorf("import store %s: %w", s.Code, err)
		}
	}
	for _, p := range snap.Products {
		if err := c.PutProduct(ctx, postgres.CatalogProduct{SKU: p.SKU, Name: p.Name, Active: p.Active}); err != nil {
			return fmt.Errorf("import product %s: %w", p.SKU, err)
		}
	}
	return nil
}
