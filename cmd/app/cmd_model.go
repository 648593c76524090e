package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stanford201807/TW-Pulse-CLI-sub000/internal/domain/models"
)

var modelCmd = &cobra.Command{
	Use:   "model",
	Short: "Inspect trained model artifacts",
}

var modelStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the loaded model, thresholds and last training report",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, cleanup, err := loadApp()
		if err != nil {
			return err
		}
		defer cleanup()

		out := struct {
			Status any                    `json:"status"`
			Report *models.TrainingReport `json:"report,omitempty"`
		}{Status: app.Engine.Status()}
		report, err := app.Training.Report()
		switch {
		case err == nil:
			out.Report = report
		case !errors.Is(err, models.ErrModelUnavailable):
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	},
}

var modelReloadCmd = &cobra.Command{
	Use:   "reload",
	Short: "Load the artifacts in the model directory and report problems",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, cleanup, err := loadApp()
		if err != nil {
			return err
		}
		defer cleanup()

		if err := app.Engine.Reload(); err != nil {
			return fmt.Errorf("artifacts not usable: %w", err)
		}
		st := app.Engine.Status()
		fmt.Fprintf(cmd.OutOrStdout(), "model loaded: %t, learned thresholds: %t\n", st.ModelLoaded, st.LearnedThresholds)
		if st.Drift != "" {
			fmt.Fprintf(cmd.OutOrStdout(), "warning: %s\n", st.Drift)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(modelCmd)
	modelCmd.AddCommand(modelStatusCmd, modelReloadCmd)
}
