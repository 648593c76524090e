package analytics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stanford201807/TW-Pulse-CLI-sub000/internal/domain/models"
)

func TestDefaultRegistryOrder(t *testing.T) {
	r := DefaultRegistry(testConfig())
	assert.Equal(t, models.ModuleNames, r.Names())
	assert.Equal(t, 6, r.Len())

	s, ok := r.Get(models.ModuleElliott)
	require.True(t, ok)
	assert.Equal(t, 20.0, s.MaxScore())
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(NewCompressionScorer(testConfig())))
	assert.Error(t, r.Register(NewCompressionScorer(testConfig())))
	assert.Panics(t, func() { r.MustRegister(NewCompressionScorer(testConfig())) })
}

func TestFeatureSchemaCoversEveryModule(t *testing.T) {
	schema := DefaultRegistry(testConfig()).FeatureSchema()
	require.Len(t, schema, 6)
	for _, name := range models.ModuleNames {
		assert.NotEmpty(t, schema[name], name)
	}
	assert.Contains(t, schema[models.ModuleBBSqueeze], "bb_width_percentile")
}

func TestScoresStayWithinBounds(t *testing.T) {
	r := DefaultRegistry(testConfig())
	for seed := int64(1); seed <= 20; seed++ {
		bars := randomWalk(seed, 260)
		for _, s := range r.Scorers() {
			ms, err := s.Analyze(bars)
			require.NoError(t, err)
			assert.GreaterOrEqual(t, ms.Score, 0.0, "%s seed %d", s.Name(), seed)
			assert.LessOrEqual(t, ms.Score, ms.MaxScore, "%s seed %d", s.Name(), seed)
			assert.NotNil(t, ms.Signals)
			assert.NotNil(t, ms.Features)
		}
	}
}

func TestScorersAreDeterministic(t *testing.T) {
	r := DefaultRegistry(testConfig())
	bars := randomWalk(7, 240)
	for _, s := range r.Scorers() {
		a, err := s.Analyze(bars)
		require.NoError(t, err)
		b, err := s.Analyze(bars)
		require.NoError(t, err)
		assert.Equal(t, a, b, s.Name())
	}
}

func TestInsufficientHistory(t *testing.T) {
	r := DefaultRegistry(testConfig())
	bars := flatBars(30)
	for _, s := range r.Scorers() {
		ms, err := s.Analyze(bars)
		require.NoError(t, err)
		assert.Zero(t, ms.Score, s.Name())
		assert.False(t, ms.Status, s.Name())
		assert.Equal(t, "Insufficient data", ms.Details, s.Name())
	}
}

func TestAbsorptionHeldSpike(t *testing.T) {
	ms, err := NewAbsorptionScorer(testConfig()).Analyze(absorbedSpikeBars())
	require.NoError(t, err)

	assert.GreaterOrEqual(t, ms.Score, 10.0)
	assert.True(t, ms.Status)
	assert.Equal(t, "Supply being absorbed", ms.Details)
	assert.Equal(t, true, ms.Features["price_held_after_spike"])
	ratio, _ := ms.Features.Float("volume_spike_ratio")
	assert.InDelta(t, 2000.0/1020.0, ratio, 1e-9)
	assert.GreaterOrEqual(t, ms.Features["higher_lows_count"], 3)
}

func TestAbsorptionBrokenSpike(t *testing.T) {
	bars := absorbedSpikeBars()
	bars[len(bars)-2].Low = 90

	ms, err := NewAbsorptionScorer(testConfig()).Analyze(bars)
	require.NoError(t, err)
	assert.Equal(t, false, ms.Features["price_held_after_spike"])
	assert.Contains(t, ms.Signals[0], "but price broke down")
}

func TestCompressionOnContractingSeries(t *testing.T) {
	ms, err := NewCompressionScorer(testConfig()).Analyze(compressingBars())
	require.NoError(t, err)

	assert.True(t, ms.Status)
	assert.Equal(t, "Price compressing", ms.Details)
	slope, _ := ms.Features.Float("atr_slope")
	assert.Less(t, slope, -0.08)
	rc, _ := ms.Features.Float("range_contraction")
	assert.Less(t, rc, 0.5)
	assert.Contains(t, ms.Signals, "Triangle pattern (higher lows + lower highs)")
	assert.Equal(t, 15.0, ms.Score)
}

func TestCompressionFlatSeries(t *testing.T) {
	ms, err := NewCompressionScorer(testConfig()).Analyze(flatBars(60))
	require.NoError(t, err)
	assert.False(t, ms.Status)
	assert.Equal(t, "No significant compression", ms.Details)
}

func TestBBSqueezeOnContractingSeries(t *testing.T) {
	ms, err := NewBBSqueezeScorer(testConfig()).Analyze(compressingBars())
	require.NoError(t, err)

	assert.True(t, ms.Status)
	pct, _ := ms.Features.Float("bb_width_percentile")
	assert.LessOrEqual(t, pct, 10.0)
	assert.GreaterOrEqual(t, ms.Features["squeeze_duration"], 16)
	assert.Contains(t, ms.Details, "BB Squeeze active")
	assert.GreaterOrEqual(t, ms.Score, 13.0)
}

func TestElliottWithoutSwings(t *testing.T) {
	bars := flatBars(80)
	for i := range bars {
		step := float64(i)
		bars[i].High += step
		bars[i].Low += step
		bars[i].Close += step
		bars[i].Open += step
	}
	ms, err := NewElliottScorer(testConfig()).Analyze(bars)
	require.NoError(t, err)
	assert.Zero(t, ms.Score)
	assert.Equal(t, "Not enough swing points", ms.Details)
	assert.Equal(t, 0, ms.Features["swing_count"])
}

func TestScoreRetracementTiers(t *testing.T) {
	tests := []struct {
		r      float64
		points float64
		phase  models.WavePhase
		prefix string
	}{
		{0.55, 10, models.Wave2, "Golden zone"},
		{0.40, 8, models.Wave2, "Fibonacci retracement"},
		{0.30, 6, models.Wave4, "Shallow"},
		{0.70, 4, models.Wave2, "Deep"},
		{0.90, 0, models.WaveUnknown, "Over-retracement"},
		{0.10, 2, models.WaveUnknown, "Minimal"},
	}
	for _, tt := range tests {
		pts, signal, phase := scoreRetracement(tt.r)
		assert.Equal(t, tt.points, pts, "r=%.2f", tt.r)
		assert.Equal(t, tt.phase, phase, "r=%.2f", tt.r)
		assert.Contains(t, signal, tt.prefix)
	}
	_, signal, _ := scoreRetracement(0.55)
	assert.Equal(t, "Golden zone retracement (55.0%)", signal)
}
