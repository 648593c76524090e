package analytics

import (
	"fmt"
	"math"

	"github.com/stanford201807/TW-Pulse-CLI-sub000/internal/domain/models"
	domsvc "github.com/stanford201807/TW-Pulse-CLI-sub000/internal/domain/service"
	"github.com/stanford201807/TW-Pulse-CLI-sub000/internal/services/features"
)

// AbsorptionScorer detects supply being absorbed: a high-volume bar whose low holds,
// rising lows and strong closes.
type AbsorptionScorer struct{ baseScorer }

func NewAbsorptionScorer(cfg *models.SaptaConfig) *AbsorptionScorer {
	return &AbsorptionScorer{newBase(models.ModuleAbsorption, cfg)}
}

func (s *AbsorptionScorer) FeatureKeys() []string {
	return []string{"volume_spike_ratio", "price_held_after_spike", "higher_lows_count", "avg_close_strength", "distribution_candles"}
}

func (s *AbsorptionScorer) Analyze(bars models.Bars) (models.ModuleScore, error) {
	p := s.params
	if len(bars) < p.Lookback+p.VolumeAvgPeriod {
		return s.insufficient(), nil
	}

	var (
		score   float64
		signals []string
		f       = models.RawFeatures{}
	)
	n := len(bars)
	start := n - p.Lookback
	recent := bars[start:]
	avgVol := features.RollingMean(bars.Volumes(), p.VolumeAvgPeriod)

	// volume spike absorbed
	spikeIdx := start + features.ArgMax(recent.Volumes())
	ratio := 0.0
	if avg := avgVol[spikeIdx]; avg > 0 {
		ratio = bars[spikeIdx].Volume / avg
	}
	f["volume_spike_ratio"] = ratio
	if ratio >= p.SpikeVolumeRatio {
		spikeLow := bars[spikeIdx].Low
		subsequentLow := math.Inf(1)
		for _, b := range bars[spikeIdx:] {
			subsequentLow = math.Min(subsequentLow, b.Low)
		}
		held := subsequentLow >= spikeLow*p.SpikeHoldTolerance
		f["price_held_after_spike"] = held
		if held {
			score += 8
			signals = append(signals, fmt.Sprintf("Volume spike %.1fx absorbed, price held", ratio))
		} else {
			score += 3
			signals = append(signals, fmt.Sprintf("Volume spike %.1fx but price broke down", ratio))
		}
	}

	// higher lows
	higherLows := features.MaxConsecutiveRises(recent.Lows())
	f["higher_lows_count"] = higherLows
	switch {
	case higherLows >= 3:
		score += 6
		signals = append(signals, fmt.Sprintf("Higher lows forming (%d consecutive)", higherLows))
	case higherLows >= 2:
		score += 3
		signals = append(signals, fmt.Sprintf("Higher lows emerging (%d)", higherLows))
	}

	// close strength
	var strengths []float64
	for _, b := range bars.Tail(min(p.CloseStrengthBars, len(recent))) {
		if pos, ok := features.ClosePosition(b); ok {
			strengths = append(strengths, pos)
		}
	}
	strength := 0.5
	if len(strengths) > 0 {
		strength = features.Mean(strengths)
	}
	f["avg_close_strength"] = strength
	switch {
	case strength >= 0.6:
		score += 6
		signals = append(signals, fmt.Sprintf("Strong closes (%.0f%% avg)", strength*100))
	case strength >= 0.5:
		score += 3
		signals = append(signals, fmt.Sprintf("Moderate close strength (%.0f%%)", strength*100))
	}

	// distribution candles
	dist := 0
	for i := start; i < n; i++ {
		if !(bars[i].Volume > avgVol[i]*p.SpikeVolumeRatio) {
			continue
		}
		if pos, ok := features.ClosePosition(bars[i]); ok && pos < p.WeakClosePosition {
			dist++
		}
	}
	f["distribution_candles"] = dist
	if dist >= 2 {
		score -= 4
		signals = append(signals, fmt.Sprintf("Warning: %d distribution candles detected", dist))
	}

	status := score >= 10
	details := "No clear absorption pattern"
	if status {
		details = "Supply being absorbed"
	}
	return s.result(score, status, details, signals, f), nil
}

var _ domsvc.Scorer = (*AbsorptionScorer)(nil)
