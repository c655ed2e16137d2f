package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pumpwatch/pumpwatch/internal/notify"
)

func newScanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scan",
		Short: "Run one detection cycle and print the result",
		Long: `Runs a single detection cycle against the live exchange and prints any
signals to stdout. Nothing is sent to Telegram.`,
		RunE: runScan,
	}
}

func runScan(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	app := buildApp(cfg, notify.LogNotifier{})

	batch, err := app.detector.RunCycle(cmd.Context())
	if err != nil {
		return err
	}
	if len(batch) == 0 {
		fmt.Println("No pump signals this cycle.")
		return nil
	}

	fmt.Print(notify.RenderBatch(batch))
	return nil
}
