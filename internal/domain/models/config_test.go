package models

import (
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultSaptaConfigIsValid(t *testing.T) {
	c := DefaultSaptaConfig()
	c.SetDefaults()
	require.NoError(t, c.Validate())
}

func TestScorerParamsValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(p *ScorerParams)
		errMsg string
	}{
		{"zero lookback", func(p *ScorerParams) { p.Lookback = 0 }, "params.lookback"},
		{"single bar lookback", func(p *ScorerParams) { p.Lookback = 1 }, "params.lookback must be >= 2"},
		{"negative atr period", func(p *ScorerParams) { p.ATRPeriod = -1 }, "params.atr_period"},
		{"zero time lookback", func(p *ScorerParams) { p.TimeLookback = 0 }, "params.time_lookback"},
		{"obv window past history", func(p *ScorerParams) { p.OBVLookback = 71 }, "params.obv_lookback"},
		{"capitulation window past history", func(p *ScorerParams) { p.CapitulationBars = 100 }, "params.capitulation_bars"},
		{"squeeze quantile of one", func(p *ScorerParams) { p.SqueezeQuantile = 1 }, "params.squeeze_quantile"},
		{"zero std dev", func(p *ScorerParams) { p.BBStdDev = 0 }, "params.bb_std_dev"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := DefaultSaptaConfig()
			c.SetDefaults()
			tt.mutate(&c.Params)
			assert.ErrorContains(t, c.Validate(), tt.errMsg)
		})
	}

	t.Run("obv window equal to history", func(t *testing.T) {
		c := DefaultSaptaConfig()
		c.SetDefaults()
		c.Params.OBVLookback = c.Params.Lookback + c.Params.VolumeAvgPeriod
		assert.NoError(t, c.Validate())
	})
}

func TestSaptaConfigRequiresNotes(t *testing.T) {
	c := DefaultSaptaConfig()
	c.SetDefaults()
	c.MaxNotes = 0
	assert.ErrorContains(t, c.Validate(), "max_notes")
}

func TestFailedModuleScoreTruncatesRunes(t *testing.T) {
	cause := ""
	for i := 0; i < 60; i++ {
		cause += "資"
	}
	ms := FailedModuleScore(ModuleAbsorption, 20, cause)

	assert.True(t, utf8.ValidString(ms.Details))
	assert.Equal(t, 50, utf8.RuneCountInString(ms.Details)-utf8.RuneCountInString("Analysis failed: "))
	assert.False(t, ms.Status)
	assert.Zero(t, ms.Score)

	short := FailedModuleScore(ModuleAbsorption, 20, "boom")
	assert.Equal(t, "Analysis failed: boom", short.Details)
}
