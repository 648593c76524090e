package usecase

import (
	"fmt"
	"strings"

	"github.com/stanford201807/TW-Pulse-CLI-sub000/internal/domain/models"
)

const (
	formatNotes    = 7
	formatWarnings = 3
)

var moduleTitles = map[string]string{
	models.ModuleAbsorption:       "Absorption",
	models.ModuleCompression:      "Compression",
	models.ModuleBBSqueeze:        "BB Squeeze",
	models.ModuleElliott:          "Elliott",
	models.ModuleTimeProjection:   "Time Projection",
	models.ModuleAntiDistribution: "Anti-Distribution",
}

// FormatResult renders one result for a terminal.
func FormatResult(r *models.AggregateResult, detailed bool) string {
	var b strings.Builder
	line := func(format string, args ...any) {
		fmt.Fprintf(&b, format, args...)
		b.WriteByte('\n')
	}

	line("SAPTA Analysis: %s", r.Ticker)
	line("%s", strings.Repeat("=", 40))
	line("Status: [%s]", r.Status)
	line("Score: %.1f/100", r.FinalScore)
	line("Confidence: %s", r.Confidence)
	if r.MLProbability != nil {
		line("ML Probability: %.1f%%", *r.MLProbability*100)
	}
	if r.WavePhase != "" && r.WavePhase != models.WaveUnknown {
		line("Wave Phase: %s", r.WavePhase)
	}
	if r.FibRetracement != nil {
		line("Fib Retracement: %.1f%%", *r.FibRetracement*100)
	}
	if r.ProjectedWindow != "" {
		line("Projected Window: %s", r.ProjectedWindow)
	}
	if r.DaysToWindow != nil && *r.DaysToWindow > 0 {
		line("Days to Window: %d", *r.DaysToWindow)
	}

	if detailed {
		line("")
		line("Module Breakdown")
		line("%s", strings.Repeat("-", 30))
		for _, m := range r.Modules {
			mark := "-"
			if m.Status {
				mark = "+"
			}
			title := moduleTitles[m.Module]
			if title == "" {
				title = m.Module
			}
			line("  [%s] %s: %.1f/%.0f", mark, title, m.Score, m.MaxScore)
		}
	}

	if len(r.Notes) > 0 {
		line("")
		line("Signals")
		line("%s", strings.Repeat("-", 30))
		for _, n := range r.Notes[:min(len(r.Notes), formatNotes)] {
			line("  - %s", n)
		}
	}
	if len(r.Warnings) > 0 {
		line("")
		line("Warnings")
		for _, w := range r.Warnings[:min(len(r.Warnings), formatWarnings)] {
			line("  ! %s", w)
		}
	}
	if len(r.Penalties) > 0 {
		line("")
		line("Penalties: -%.1f", r.PenaltyScore)
		for _, p := range r.Penalties {
			line("  - %s", p)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// FormatScan renders scan results as a table.
func FormatScan(results []*models.AggregateResult, title string) string {
	if len(results) == 0 {
		return "No stocks found matching SAPTA criteria."
	}
	if title == "" {
		title = "SAPTA Scan Results"
	}
	rows := []string{
		title,
		strings.Repeat("=", 60),
		fmt.Sprintf("%-8s %-12s %8s %-10s %-8s", "Ticker", "Status", "Score", "Confidence", "Wave"),
		strings.Repeat("-", 60),
	}
	for _, r := range results {
		wave := "-"
		if r.WavePhase != "" && r.WavePhase != models.WaveUnknown {
			wave = string(r.WavePhase)
			if len(wave) > 7 {
				wave = wave[:7]
			}
		}
		rows = append(rows, fmt.Sprintf("%-8s %-12s %7.1f  %-10s %-8s", r.Ticker, r.Status, r.FinalScore, r.Confidence, wave))
	}
	rows = append(rows, strings.Repeat("-", 60), fmt.Sprintf("Total: %d stocks", len(results)))
	return strings.Join(rows, "\n")
}
