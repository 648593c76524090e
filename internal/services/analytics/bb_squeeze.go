package analytics

import (
	"fmt"

	"github.com/stanford201807/TW-Pulse-CLI-sub000/internal/domain/models"
	domsvc "github.com/stanford201807/TW-Pulse-CLI-sub000/internal/domain/service"
	"github.com/stanford201807/TW-Pulse-CLI-sub000/internal/services/features"
)

// BBSqueezeScorer ranks the current Bollinger width against its own history.
type BBSqueezeScorer struct{ baseScorer }

func NewBBSqueezeScorer(cfg *models.SaptaConfig) *BBSqueezeScorer {
	return &BBSqueezeScorer{newBase(models.ModuleBBSqueeze, cfg)}
}

func (s *BBSqueezeScorer) FeatureKeys() []string {
	return []string{"bb_width_current", "bb_width_percentile", "squeeze_duration", "price_position_in_bb"}
}

func (s *BBSqueezeScorer) Analyze(bars models.Bars) (models.ModuleScore, error) {
	p := s.params
	if len(bars) < p.BBPeriod+p.BBMinHistory {
		return s.insufficient(), nil
	}

	var (
		score   float64
		signals []string
		f       = models.RawFeatures{}
	)
	closes := bars.Closes()
	bb := features.Bollinger(closes, p.BBPeriod, p.BBStdDev)
	n := len(closes)
	current := bb.Width[n-1]

	window := bb.Width
	if len(window) > p.BBPercentileWindow {
		window = window[len(window)-p.BBPercentileWindow:]
	}
	pct := features.PercentileRank(window, current)
	f["bb_width_current"] = current
	f["bb_width_percentile"] = pct

	squeezePct := p.SqueezeQuantile * 100
	switch {
	case pct <= 10:
		score += 8
		signals = append(signals, fmt.Sprintf("BB Width at %.0fth percentile (extreme squeeze)", pct))
	case pct <= squeezePct:
		score += 5
		signals = append(signals, fmt.Sprintf("BB Width at %.0fth percentile (squeeze)", pct))
	case pct <= 30:
		score += 2
		signals = append(signals, fmt.Sprintf("BB Width at %.0fth percentile (mild compression)", pct))
	}

	// consecutive bars at or below the squeeze quantile, newest first
	threshold := features.Quantile(window, p.SqueezeQuantile)
	squeeze := 0
	limit := min(p.SqueezeMaxBars, n) - 1
	for k := 1; k <= limit; k++ {
		if bb.Width[n-k] <= threshold {
			squeeze++
		} else {
			break
		}
	}
	f["squeeze_duration"] = squeeze
	minDur := p.SqueezeMinDuration
	switch {
	case squeeze >= minDur*2:
		score += 5
		signals = append(signals, fmt.Sprintf("Extended squeeze: %d candles", squeeze))
	case squeeze >= minDur:
		score += 3
		signals = append(signals, fmt.Sprintf("Squeeze duration: %d candles", squeeze))
	case squeeze >= minDur/2:
		score += 1
		signals = append(signals, fmt.Sprintf("Short squeeze: %d candles", squeeze))
	}

	if rng := bb.Upper[n-1] - bb.Lower[n-1]; rng > 0 {
		pos := (closes[n-1] - bb.Lower[n-1]) / rng
		f["price_position_in_bb"] = pos
		switch {
		case pos >= 0.4 && pos <= 0.6:
			score += 2
			signals = append(signals, "Price at BB middle (balanced)")
		case pos > 0.6:
			score += 1
			signals = append(signals, "Price in upper BB zone")
		}
	}

	status := score >= 8
	details := "No squeeze"
	if status {
		details = fmt.Sprintf("BB Squeeze active (%d candles)", squeeze)
	}
	return s.result(score, status, details, signals, f), nil
}

var _ domsvc.Scorer = (*BBSqueezeScorer)(nil)
