package analytics

import (
	"fmt"

	"github.com/stanford201807/TW-Pulse-CLI-sub000/internal/domain/models"
	domsvc "github.com/stanford201807/TW-Pulse-CLI-sub000/internal/domain/service"
	"github.com/stanford201807/TW-Pulse-CLI-sub000/internal/services/features"
)

// CompressionScorer measures volatility contraction: falling ATR, narrowing range,
// converging highs and lows, shrinking bodies.
type CompressionScorer struct{ baseScorer }

func NewCompressionScorer(cfg *models.SaptaConfig) *CompressionScorer {
	return &CompressionScorer{newBase(models.ModuleCompression, cfg)}
}

func (s *CompressionScorer) FeatureKeys() []string {
	return []string{"atr_slope", "range_contraction", "higher_lows", "lower_highs", "avg_body_ratio"}
}

func (s *CompressionScorer) Analyze(bars models.Bars) (models.ModuleScore, error) {
	p := s.params
	if len(bars) < p.Lookback+p.ATRPeriod {
		return s.insufficient(), nil
	}

	var (
		score   float64
		signals []string
		f       = models.RawFeatures{}
	)
	recent := bars.Tail(p.Lookback)

	atr := features.ATR(bars.Highs(), bars.Lows(), bars.Closes(), p.ATRPeriod)
	slope := features.NormalizedSlope(atr, p.Lookback)
	f["atr_slope"] = slope
	switch {
	case slope < -0.15:
		score += 6
		signals = append(signals, fmt.Sprintf("ATR strongly contracting (%.1f%%)", slope*100))
	case slope < -0.08:
		score += 4
		signals = append(signals, fmt.Sprintf("ATR contracting (%.1f%%)", slope*100))
	case slope < 0:
		score += 2
		signals = append(signals, fmt.Sprintf("ATR slightly decreasing (%.1f%%)", slope*100))
	}

	half := p.Lookback / 2
	rangeFirst := barRange(recent[:half])
	rangeSecond := barRange(recent[half:])
	ratio := 1.0
	if rangeFirst > 0 {
		ratio = rangeSecond / rangeFirst
	}
	f["range_contraction"] = ratio
	switch {
	case ratio < 0.5:
		score += 5
		signals = append(signals, fmt.Sprintf("Range contracted to %.0f%%", ratio*100))
	case ratio < 0.7:
		score += 3
		signals = append(signals, fmt.Sprintf("Range narrowing (%.0f%%)", ratio*100))
	}

	higherLows := features.HasConsecutiveRises(recent.Lows(), 2)
	lowerHighs := features.HasConsecutiveFalls(recent.Highs(), 2)
	f["higher_lows"] = higherLows
	f["lower_highs"] = lowerHighs
	switch {
	case higherLows && lowerHighs:
		score += 4
		signals = append(signals, "Triangle pattern (higher lows + lower highs)")
	case higherLows:
		score += 2
		signals = append(signals, "Ascending triangle (higher lows)")
	case lowerHighs:
		score += 1
		signals = append(signals, "Descending triangle (lower highs)")
	}

	var bodies []float64
	for _, b := range recent {
		if r, ok := features.BodyRatio(b); ok {
			bodies = append(bodies, r)
		}
	}
	bodyRatio := 0.5
	if len(bodies) >= 5 {
		bodyRatio = features.Mean(bodies[len(bodies)-5:])
	}
	f["avg_body_ratio"] = bodyRatio
	if bodyRatio < 0.3 {
		score += 2
		signals = append(signals, fmt.Sprintf("Small candle bodies (%.0f%%)", bodyRatio*100))
	}

	status := score >= 8
	details := "No significant compression"
	if status {
		details = "Price compressing"
	}
	return s.result(score, status, details, signals, f), nil
}

// barRange is max(high) - min(low) over bars.
func barRange(bars models.Bars) float64 {
	if len(bars) == 0 {
		return 0
	}
	hi, lo := bars[0].High, bars[0].Low
	for _, b := range bars[1:] {
		if b.High > hi {
			hi = b.High
		}
		if b.Low < lo {
			lo = b.Low
		}
	}
	return hi - lo
}

var _ domsvc.Scorer = (*CompressionScorer)(nil)
