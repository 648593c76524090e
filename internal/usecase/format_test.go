package usecase

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/stanford201807/TW-Pulse-CLI-sub000/internal/domain/models"
)

func sampleResult() *models.AggregateResult {
	p, fib, days := 0.72, 0.618, 4
	return &models.AggregateResult{
		Ticker:          "2330",
		Status:          models.StatusSiap,
		Confidence:      models.ConfidenceHigh,
		FinalScore:      68.25,
		PenaltyScore:    10,
		MLProbability:   &p,
		WavePhase:       models.Wave2,
		FibRetracement:  &fib,
		ProjectedWindow: "2024-03-01",
		DaysToWindow:    &days,
		Modules: []models.ModuleScore{
			{Module: models.ModuleAbsorption, Score: 14, MaxScore: 20, Status: true},
			{Module: models.ModuleElliott, Score: 0, MaxScore: 20},
		},
		Notes:     []string{"n1", "n2", "n3", "n4", "n5", "n6", "n7", "n8"},
		Warnings:  []string{"w1", "w2", "w3", "w4"},
		Penalties: []string{"False breakout detected"},
	}
}

func TestFormatResult(t *testing.T) {
	out := FormatResult(sampleResult(), true)

	for _, want := range []string{
		"SAPTA Analysis: 2330",
		"Status: [SIAP]",
		"Score: 68.2/100",
		"Confidence: HIGH",
		"ML Probability: 72.0%",
		"Wave Phase: wave2",
		"Fib Retracement: 61.8%",
		"Projected Window: 2024-03-01",
		"Days to Window: 4",
		"[+] Absorption: 14.0/20",
		"[-] Elliott: 0.0/20",
		"  - n7",
		"  ! w3",
		"Penalties: -10.0",
		"  - False breakout detected",
	} {
		assert.Contains(t, out, want)
	}
	assert.NotContains(t, out, "n8")
	assert.NotContains(t, out, "w4")
	assert.False(t, strings.HasSuffix(out, "\n"))
}

func TestFormatResultCompact(t *testing.T) {
	r := sampleResult()
	r.MLProbability = nil
	r.WavePhase = models.WaveUnknown
	out := FormatResult(r, false)

	assert.NotContains(t, out, "Module Breakdown")
	assert.NotContains(t, out, "ML Probability")
	assert.NotContains(t, out, "Wave Phase")
}

func TestFormatScan(t *testing.T) {
	assert.Equal(t, "No stocks found matching SAPTA criteria.", FormatScan(nil, ""))

	a := sampleResult()
	b := sampleResult()
	b.Ticker, b.WavePhase, b.FinalScore = "2317", models.WaveUnknown, 51
	out := FormatScan([]*models.AggregateResult{a, b}, "")

	lines := strings.Split(out, "\n")
	assert.Equal(t, "SAPTA Scan Results", lines[0])
	assert.Contains(t, lines[4], "2330")
	assert.Contains(t, lines[4], "68.2")
	assert.Contains(t, lines[4], "wave2")
	assert.Contains(t, lines[5], "2317")
	assert.Contains(t, lines[5], " - ")
	assert.Equal(t, "Total: 2 stocks", lines[len(lines)-1])
}
