package analytics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAntiDistributionClean(t *testing.T) {
	ms, err := NewAntiDistributionScorer(testConfig()).Analyze(flatBars(80))
	require.NoError(t, err)

	assert.Equal(t, 15.0, ms.Score)
	assert.True(t, ms.Status)
	assert.Equal(t, "Clean (no distribution)", ms.Details)
	assert.Equal(t, []string{"No distribution signs detected"}, ms.Signals)
	assert.Equal(t, "none", ms.Features["obv_divergence"])
	assert.Equal(t, false, ms.Features["false_breakout"])
}

func TestAntiDistributionFalseBreakout(t *testing.T) {
	bars := flatBars(80)
	bars[len(bars)-6].High = 105

	ms, err := NewAntiDistributionScorer(testConfig()).Analyze(bars)
	require.NoError(t, err)

	assert.Equal(t, true, ms.Features["false_breakout"])
	assert.Contains(t, ms.Signals, SignalFalseBreakout)
	assert.Equal(t, 10.0, ms.Score)
}

func TestAntiDistributionBreakoutThatHolds(t *testing.T) {
	bars := flatBars(80)
	n := len(bars)
	for i := n - 6; i < n; i++ {
		bars[i].High = 105
		bars[i].Close = 104
	}
	ms, err := NewAntiDistributionScorer(testConfig()).Analyze(bars)
	require.NoError(t, err)
	assert.Equal(t, false, ms.Features["false_breakout"])
}

func TestAntiDistributionCandles(t *testing.T) {
	bars := flatBars(80)
	n := len(bars)
	for _, i := range []int{n - 15, n - 12, n - 9} {
		bars[i].Volume = 3000
		bars[i].Close = 99.2
	}
	ms, err := NewAntiDistributionScorer(testConfig()).Analyze(bars)
	require.NoError(t, err)

	assert.Equal(t, 3, ms.Features["distribution_candles"])
	assert.Contains(t, ms.Signals, "Multiple distribution candles (3)")
	assert.Equal(t, 9.0, ms.Score)
	assert.False(t, ms.Status)
	assert.Equal(t, "Distribution warning", ms.Details)
}

func TestAntiDistributionCapitulation(t *testing.T) {
	bars := flatBars(80)
	last := &bars[len(bars)-1]
	last.Open, last.High, last.Low, last.Close, last.Volume = 101, 101.1, 98.9, 99, 5000

	ms, err := NewAntiDistributionScorer(testConfig()).Analyze(bars)
	require.NoError(t, err)

	assert.Equal(t, true, ms.Features["capitulation"])
	assert.Contains(t, ms.Signals, "Potential capitulation (selling climax)")
	assert.Contains(t, ms.Signals, "Minor distribution signal")
	assert.Equal(t, 15.0, ms.Score)
}
