package models

import (
	"fmt"

	"github.com/creasty/defaults"
)

// Thresholds are the three ascending final-score cutoffs on a 0-100 scale.
type Thresholds struct {
	PreMarkup float64 `yaml:"pre_markup" json:"pre_markup" default:"80"`
	Siap      float64 `yaml:"siap" json:"siap" default:"65"`
	Watchlist float64 `yaml:"watchlist" json:"watchlist" default:"50"`
}

// Validate checks watchlist <= siap <= pre_markup, all within 0-100.
func (t Thresholds) Validate() error {
	for name, v := range map[string]float64{"pre_markup": t.PreMarkup, "siap": t.Siap, "watchlist": t.Watchlist} {
		if v < 0 || v > 100 {
			return fmt.Errorf("threshold %s must be within 0-100, got %.2f", name, v)
		}
	}
	if !(t.Watchlist <= t.Siap && t.Siap <= t.PreMarkup) {
		return fmt.Errorf("thresholds must ascend watchlist <= siap <= pre_markup, got %.2f/%.2f/%.2f",
			t.Watchlist, t.Siap, t.PreMarkup)
	}
	return nil
}

// TargetDefinition describes the supervised label: a gain of GainPct within Days bars.
type TargetDefinition struct {
	GainPct float64 `yaml:"gain_pct" json:"gain_pct" default:"10"`
	Days    int     `yaml:"days" json:"days" default:"20"`
}

// ScorerParams holds the detection constants used by the scorers.
type ScorerParams struct {
	Lookback        int `yaml:"lookback" default:"20"`
	VolumeAvgPeriod int `yaml:"volume_avg_period" default:"50"`

	SpikeVolumeRatio   float64 `yaml:"spike_volume_ratio" default:"1.5"`
	SpikeHoldTolerance float64 `yaml:"spike_hold_tolerance" default:"0.99"`
	WeakClosePosition  float64 `yaml:"weak_close_position" default:"0.3"`
	CloseStrengthBars  int     `yaml:"close_strength_bars" default:"5"`

	ATRPeriod int `yaml:"atr_period" default:"14"`

	BBPeriod           int     `yaml:"bb_period" default:"20"`
	BBStdDev           float64 `yaml:"bb_std_dev" default:"2"`
	BBMinHistory       int     `yaml:"bb_min_history" default:"100"`
	BBPercentileWindow int     `yaml:"bb_percentile_window" default:"200"`
	SqueezeQuantile    float64 `yaml:"squeeze_quantile" default:"0.2"`
	SqueezeMaxBars     int     `yaml:"squeeze_max_bars" default:"50"`
	SqueezeMinDuration int     `yaml:"squeeze_min_duration" default:"8"`

	ElliottWindow int `yaml:"elliott_window" default:"60"`
	SwingLookback int `yaml:"swing_lookback" default:"5"`
	RSIPeriod     int `yaml:"rsi_period" default:"14"`

	TimeMinBars  int `yaml:"time_min_bars" default:"50"`
	TimeLookback int `yaml:"time_lookback" default:"200"`

	DistributionVolumeRatio float64 `yaml:"distribution_volume_ratio" default:"1.8"`
	FalseBreakScanBars      int     `yaml:"false_break_scan_bars" default:"5"`
	OBVLookback             int     `yaml:"obv_lookback" default:"20"`
	CapitulationVolumeRatio float64 `yaml:"capitulation_volume_ratio" default:"3"`
	CapitulationBodyRatio   float64 `yaml:"capitulation_body_ratio" default:"0.7"`
	CapitulationBars        int     `yaml:"capitulation_bars" default:"5"`
}

// Validate checks that every window is positive and that the windows read from
// the volume-history tail fit inside it.
func (p ScorerParams) Validate() error {
	windows := []struct {
		name string
		v    int
	}{
		{"lookback", p.Lookback},
		{"volume_avg_period", p.VolumeAvgPeriod},
		{"close_strength_bars", p.CloseStrengthBars},
		{"atr_period", p.ATRPeriod},
		{"bb_period", p.BBPeriod},
		{"bb_min_history", p.BBMinHistory},
		{"bb_percentile_window", p.BBPercentileWindow},
		{"squeeze_max_bars", p.SqueezeMaxBars},
		{"squeeze_min_duration", p.SqueezeMinDuration},
		{"elliott_window", p.ElliottWindow},
		{"swing_lookback", p.SwingLookback},
		{"rsi_period", p.RSIPeriod},
		{"time_min_bars", p.TimeMinBars},
		{"time_lookback", p.TimeLookback},
		{"false_break_scan_bars", p.FalseBreakScanBars},
		{"obv_lookback", p.OBVLookback},
		{"capitulation_bars", p.CapitulationBars},
	}
	for _, w := range windows {
		if w.v <= 0 {
			return fmt.Errorf("params.%s must be > 0, got %d", w.name, w.v)
		}
	}
	if p.Lookback < 2 {
		return fmt.Errorf("params.lookback must be >= 2, got %d", p.Lookback)
	}
	history := p.Lookback + p.VolumeAvgPeriod
	for name, v := range map[string]int{"obv_lookback": p.OBVLookback, "capitulation_bars": p.CapitulationBars} {
		if v > history {
			return fmt.Errorf("params.%s must be <= lookback+volume_avg_period (%d), got %d", name, history, v)
		}
	}
	if p.SqueezeQuantile <= 0 || p.SqueezeQuantile >= 1 {
		return fmt.Errorf("params.squeeze_quantile must be within (0, 1), got %.2f", p.SqueezeQuantile)
	}
	for name, v := range map[string]float64{
		"bb_std_dev":                p.BBStdDev,
		"spike_volume_ratio":        p.SpikeVolumeRatio,
		"distribution_volume_ratio": p.DistributionVolumeRatio,
		"capitulation_volume_ratio": p.CapitulationVolumeRatio,
	} {
		if v <= 0 {
			return fmt.Errorf("params.%s must be > 0, got %.2f", name, v)
		}
	}
	return nil
}

// SaptaConfig is the engine configuration. Weights and MaxScores are keyed by module name.
type SaptaConfig struct {
	Thresholds Thresholds         `yaml:"thresholds"`
	Weights    map[string]float64 `yaml:"weights"`
	MaxScores  map[string]float64 `yaml:"max_scores"`
	Target     TargetDefinition   `yaml:"target"`

	FibWindows   []int `yaml:"fib_windows"`
	FibTolerance int   `yaml:"fib_tolerance" default:"3"`

	FalseBreakCandles int     `yaml:"false_break_candles" default:"3"`
	FalseBreakPenalty float64 `yaml:"false_break_penalty" default:"10"`
	MinHistoryDays    int     `yaml:"min_history_days" default:"120"`
	MaxNotes          int     `yaml:"max_notes" default:"10"`

	IncludePlanetary bool `yaml:"include_planetary" default:"true"`
	IncludeLunar     bool `yaml:"include_lunar" default:"true"`

	Params ScorerParams `yaml:"params"`
}

// DefaultMaxScores are the per-module score caps.
func DefaultMaxScores() map[string]float64 {
	return map[string]float64{
		ModuleAbsorption:       20,
		ModuleCompression:      15,
		ModuleBBSqueeze:        15,
		ModuleElliott:          20,
		ModuleTimeProjection:   15,
		ModuleAntiDistribution: 15,
	}
}

// SetDefaults fills the map and slice fields that struct tags cannot express.
func (c *SaptaConfig) SetDefaults() {
	if c.Weights == nil {
		c.Weights = make(map[string]float64, len(ModuleNames))
	}
	for _, name := range ModuleNames {
		if _, ok := c.Weights[name]; !ok {
			c.Weights[name] = 1.0
		}
	}
	if c.MaxScores == nil {
		c.MaxScores = make(map[string]float64, len(ModuleNames))
	}
	for name, v := range DefaultMaxScores() {
		if _, ok := c.MaxScores[name]; !ok {
			c.MaxScores[name] = v
		}
	}
	if len(c.FibWindows) == 0 {
		c.FibWindows = []int{21, 34, 55, 89, 144}
	}
}

// DefaultSaptaConfig returns the configuration with every default applied.
func DefaultSaptaConfig() SaptaConfig {
	var c SaptaConfig
	if err := defaults.Set(&c); err != nil {
		panic(fmt.Sprintf("sapta defaults: %v", err))
	}
	return c
}

// Weight returns the weight of a module (1.0 when unset).
func (c *SaptaConfig) Weight(module string) float64 {
	if w, ok := c.Weights[module]; ok {
		return w
	}
	return 1.0
}

// MaxScore returns the score cap of a module.
func (c *SaptaConfig) MaxScore(module string) float64 {
	if m, ok := c.MaxScores[module]; ok {
		return m
	}
	return DefaultMaxScores()[module]
}

// Validate reports the first invalid setting.
func (c *SaptaConfig) Validate() error {
	if err := c.Thresholds.Validate(); err != nil {
		return err
	}
	for name, w := range c.Weights {
		if w < 0 {
			return fmt.Errorf("weight %s must be >= 0, got %.2f", name, w)
		}
	}
	for name, m := range c.MaxScores {
		if m <= 0 {
			return fmt.Errorf("max score %s must be > 0, got %.2f", name, m)
		}
	}
	if c.Target.GainPct <= 0 || c.Target.Days <= 0 {
		return fmt.Errorf("target requires positive gain_pct and days")
	}
	if c.MinHistoryDays <= 0 {
		return fmt.Errorf("min_history_days must be > 0")
	}
	if c.FalseBreakPenalty < 0 {
		return fmt.Errorf("false_break_penalty must be >= 0")
	}
	if c.MaxNotes < 1 {
		return fmt.Errorf("max_notes must be >= 1, got %d", c.MaxNotes)
	}
	return c.Params.Validate()
}
