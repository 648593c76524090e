package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stanford201807/TW-Pulse-CLI-sub000/internal/usecase"
)

var (
	analyzePeriod   int
	analyzeDetailed bool
	analyzeJSON     bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze TICKER",
	Short: "Score one ticker with every SAPTA module",
	Example: `  pulse analyze 2330
  pulse analyze 2330 --detailed
  pulse analyze 2454 --period 730 --json`,
	Args: cobra.ExactArgs(1),
	RunE: runAnalyze,
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
	analyzeCmd.Flags().IntVar(&analyzePeriod, "period", 0, "history window in calendar days (0 uses the configured default)")
	analyzeCmd.Flags().BoolVar(&analyzeDetailed, "detailed", false, "show per-module signals")
	analyzeCmd.Flags().BoolVar(&analyzeJSON, "json", false, "print the raw result as JSON")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	app, cleanup, err := loadApp()
	if err != nil {
		return err
	}
	defer cleanup()

	res, err := app.Engine.AnalyzePeriod(cmd.Context(), args[0], analyzePeriod)
	if err != nil {
		return fmt.Errorf("analyze %s: %w", args[0], err)
	}
	out := cmd.OutOrStdout()
	if res == nil {
		fmt.Fprintf(out, "%s: not enough history (need %d bars)\n", args[0], app.Engine.MinHistory())
		return nil
	}
	if analyzeJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	fmt.Fprintln(out, usecase.FormatResult(res, analyzeDetailed))
	return nil
}
