package main

import (
	"encoding/json"
	"fmt"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/stanford201807/TW-Pulse-CLI-sub000/internal/domain/models"
	"github.com/stanford201807/TW-Pulse-CLI-sub000/internal/usecase"
	"github.com/stanford201807/TW-Pulse-CLI-sub000/pkg/util"
)

var (
	trainMode    string
	trainPeriod  int
	trainStep    int
	trainTickers string
	trainJSON    bool
)

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Generate labeled samples and train the pre-markup model",
	Long: `train slides a window over each ticker's history, labels every window by the
forward gain, fits the boosted-tree model and derives score thresholds. Artifacts
are written atomically to the model directory; a running server picks them up.`,
	Example: `  pulse train
  pulse train --mode simple --period 1095
  pulse train --tickers 2330,2317,2454 --step 10`,
	RunE: runTrain,
}

func init() {
	rootCmd.AddCommand(trainCmd)
	trainCmd.Flags().StringVar(&trainMode, "mode", "", "validation scheme: simple or walk_forward (default from config)")
	trainCmd.Flags().IntVar(&trainPeriod, "period", 0, "history window in calendar days")
	trainCmd.Flags().IntVar(&trainStep, "step", 0, "bars between consecutive samples")
	trainCmd.Flags().StringVar(&trainTickers, "tickers", "", "comma-separated tickers (default: the configured universe)")
	trainCmd.Flags().BoolVar(&trainJSON, "json", false, "print the result as JSON")
}

func runTrain(cmd *cobra.Command, args []string) error {
	mode := models.TrainMode(trainMode)
	if mode != "" && mode != models.TrainModeSimple && mode != models.TrainModeWalkForward {
		return fmt.Errorf("unknown mode %q", trainMode)
	}
	app, cleanup, err := loadApp()
	if err != nil {
		return err
	}
	defer cleanup()

	res, err := app.Training.Run(cmd.Context(), usecase.TrainParams{
		Tickers:    util.NormalizeTickers([]string{trainTickers}),
		Mode:       mode,
		PeriodDays: trainPeriod,
		Step:       trainStep,
	})
	if err != nil {
		return fmt.Errorf("train: %w", err)
	}

	out := cmd.OutOrStdout()
	if trainJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}

	m := res.Metrics
	fmt.Fprintf(out, "Model saved to %s\n\n", res.ModelPath)
	fmt.Fprintf(out, "Accuracy %.3f  Precision %.3f  Recall %.3f  F1 %.3f  AUC %.3f\n",
		m.Accuracy, m.Precision, m.Recall, m.F1, m.AUCROC)
	fmt.Fprintf(out, "Thresholds: PRE-MARKUP %.1f  SIAP %.1f  WATCHLIST %.1f\n\n",
		res.Thresholds.PreMarkup, res.Thresholds.Siap, res.Thresholds.Watchlist)

	names := make([]string, 0, len(res.FeatureImportance))
	for n := range res.FeatureImportance {
		names = append(names, n)
	}
	sort.Slice(names, func(i, j int) bool {
		return res.FeatureImportance[names[i]] > res.FeatureImportance[names[j]]
	})
	if len(names) > 10 {
		names = names[:10]
	}
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "FEATURE\tIMPORTANCE")
	for _, n := range names {
		fmt.Fprintf(tw, "%s\t%.4f\n", n, res.FeatureImportance[n])
	}
	return tw.Flush()
}
