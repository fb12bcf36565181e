package main

import (
	stdlog "log"

	"stockservice/internal/config"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "stock-service",
	Short: "Applies catalog, sale and stock adjustment events to per-store stock levels",
	Long: `stock-service consumes product, store, sale and stock adjustment events
from Kafka and applies each one exactly once to the stock ledger.`,
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		stdlog.Fatalf("Application failed: %v", err)
	}
}

func init() {
	rootCmd.AddCommand(runCmd, migrateCmd, publishCmd, catalogCmd)
}

func loadConfig() (*config.Config, error) {
	return config.LoadConfig()
}
