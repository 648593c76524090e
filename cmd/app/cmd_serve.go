package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API, Kafka consumer, scheduler and model watcher",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, cleanup, err := loadApp()
		if err != nil {
			return err
		}
		defer cleanup()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return app.Run(ctx)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
