package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/stanford201807/TW-Pulse-CLI-sub000/internal/repository"
	"github.com/stanford201807/TW-Pulse-CLI-sub000/pkg/util"
)

var importCmd = &cobra.Command{
	Use:   "import FILE...",
	Short: "Load daily bars from CSV files into the configured bar store",
	Long: `Each file is named <TICKER>.csv with columns date,open,high,low,close,volume.
Existing bars for the same date are replaced.`,
	Example: `  pulse import data/raw/2330.csv data/raw/2317.csv`,
	Args:    cobra.MinimumNArgs(1),
	RunE:    runImport,
}

func init() {
	rootCmd.AddCommand(importCmd)
}

func runImport(cmd *cobra.Command, args []string) error {
	app, cleanup, err := loadApp()
	if err != nil {
		return err
	}
	defer cleanup()
	if app.Writer == nil {
		return errors.New("configured bar store is read-only")
	}

	for _, path := range args {
		ticker := util.NormalizeTicker(strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)))
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		bars, err := repository.ReadBarsCSV(f)
		f.Close()
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		if err := app.Writer.StoreBars(cmd.Context(), ticker, bars); err != nil {
			return fmt.Errorf("store %s: %w", ticker, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %d bars\n", ticker, len(bars))
	}
	return nil
}
