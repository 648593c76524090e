package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stanford201807/TW-Pulse-CLI-sub000/internal/domain/models"
	"github.com/stanford201807/TW-Pulse-CLI-sub000/internal/usecase"
	"github.com/stanford201807/TW-Pulse-CLI-sub000/pkg/util"
)

var (
	scanTickers   string
	scanMinStatus string
	scanPeriod    int
	scanLimit     int
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan the ticker universe and list tickers at or above a status",
	Example: `  pulse scan
  pulse scan --min-status siap --limit 20
  pulse scan --tickers 2330,2317,2454`,
	RunE: runScan,
}

func init() {
	rootCmd.AddCommand(scanCmd)
	scanCmd.Flags().StringVar(&scanTickers, "tickers", "", "comma-separated tickers (default: the configured universe)")
	scanCmd.Flags().StringVar(&scanMinStatus, "min-status", "WATCHLIST", "lowest status to keep (PRE-MARKUP|SIAP|WATCHLIST|ABAIKAN)")
	scanCmd.Flags().IntVar(&scanPeriod, "period", 0, "history window in calendar days")
	scanCmd.Flags().IntVar(&scanLimit, "limit", 50, "maximum results")
}

func runScan(cmd *cobra.Command, args []string) error {
	minStatus, err := models.ParseStatus(scanMinStatus)
	if err != nil {
		return err
	}
	app, cleanup, err := loadApp()
	if err != nil {
		return err
	}
	defer cleanup()

	ctx := cmd.Context()
	tickers := util.NormalizeTickers([]string{scanTickers})
	if len(tickers) == 0 {
		if tickers, err = app.Universe.Tickers(ctx); err != nil {
			return fmt.Errorf("load universe: %w", err)
		}
	}

	errOut := cmd.ErrOrStderr()
	results, err := app.Scanner.Scan(ctx, tickers, usecase.ScanOptions{
		MinStatus:  minStatus,
		PeriodDays: scanPeriod,
		Limit:      scanLimit,
		Progress: func(done, total int) {
			fmt.Fprintf(errOut, "\rscanned %d/%d", done, total)
		},
	})
	fmt.Fprintln(errOut)
	if err != nil {
		return fmt.Errorf("scan: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), usecase.FormatScan(results, ""))
	return nil
}
