package main

import (
	"context"

	"stockservice/internal/app"

	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Consume stock events until interrupted",
	RunE:  runService,
}

func runService(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	application, err := app.NewApplication(context.Background(), cfg)
	if err != nil {
		return err
	}
	defer application.Shutdown()

	return application.Run()
}
