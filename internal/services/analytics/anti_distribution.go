package analytics

import (
	"fmt"
	"math"

	"github.com/stanford201807/TW-Pulse-CLI-sub000/internal/domain/models"
	domsvc "github.com/stanford201807/TW-Pulse-CLI-sub000/internal/domain/service"
	"github.com/stanford201807/TW-Pulse-CLI-sub000/internal/services/features"
)

// SignalFalseBreakout is the anti-distribution signal the engine penalizes.
const SignalFalseBreakout = "Recent false breakout detected"

// AntiDistributionScorer starts from the maximum and deducts for signs of supply:
// heavy bars closing weak, failed breakouts and OBV lagging price.
type AntiDistributionScorer struct {
	baseScorer
	falseBreakCandles int
}

func NewAntiDistributionScorer(cfg *models.SaptaConfig) *AntiDistributionScorer {
	return &AntiDistributionScorer{
		baseScorer:        newBase(models.ModuleAntiDistribution, cfg),
		falseBreakCandles: cfg.FalseBreakCandles,
	}
}

func (s *AntiDistributionScorer) FeatureKeys() []string {
	return []string{"distribution_candles", "false_breakout", "price_trend_up", "obv_trend_up", "capitulation"}
}

func (s *AntiDistributionScorer) Analyze(bars models.Bars) (models.ModuleScore, error) {
	p := s.params
	if len(bars) < p.Lookback+p.VolumeAvgPeriod {
		return s.insufficient(), nil
	}

	var (
		score   = s.max
		signals []string
		f       = models.RawFeatures{}
	)
	n := len(bars)
	avgVol := features.RollingMean(bars.Volumes(), p.VolumeAvgPeriod)

	dist := 0
	for i := n - p.Lookback; i < n; i++ {
		avg := avgVol[i]
		if math.IsNaN(avg) || avg == 0 || bars[i].Volume <= avg*p.DistributionVolumeRatio {
			continue
		}
		if pos, ok := features.ClosePosition(bars[i]); ok && pos < p.WeakClosePosition {
			dist++
		}
	}
	f["distribution_candles"] = dist
	switch {
	case dist >= 3:
		score -= 6
		signals = append(signals, fmt.Sprintf("Multiple distribution candles (%d)", dist))
	case dist == 2:
		score -= 4
		signals = append(signals, fmt.Sprintf("Distribution candles detected (%d)", dist))
	case dist == 1:
		score -= 2
		signals = append(signals, "Minor distribution signal")
	}

	falseBreak := s.falseBreakout(bars)
	f["false_breakout"] = falseBreak
	if falseBreak {
		score -= 5
		signals = append(signals, SignalFalseBreakout)
	}

	closes := bars.Closes()
	obv := features.OBV(closes, bars.Volumes())
	back := n - p.OBVLookback
	priceUp := closes[n-1] > closes[back]
	obvUp := obv[n-1] > obv[back]
	f["price_trend_up"] = priceUp
	f["obv_trend_up"] = obvUp
	switch {
	case priceUp && !obvUp:
		score -= 4
		signals = append(signals, "Negative OBV divergence (bearish)")
		f["obv_divergence"] = "bearish"
	case !priceUp && obvUp:
		score += 2
		signals = append(signals, "Positive OBV divergence (hidden accumulation)")
		f["obv_divergence"] = "bullish"
	default:
		f["obv_divergence"] = "none"
	}

	// a heavy wide-bodied down bar reads as capitulation, which favors reversal
	for i := n - p.CapitulationBars; i < n; i++ {
		b, avg := bars[i], avgVol[i]
		if math.IsNaN(avg) || b.Volume <= avg*p.CapitulationVolumeRatio || b.Close >= b.Open {
			continue
		}
		if body, ok := features.BodyRatio(b); ok && body > p.CapitulationBodyRatio {
			score += 2
			signals = append(signals, "Potential capitulation (selling climax)")
			f["capitulation"] = true
			break
		}
	}

	if len(signals) == 0 {
		signals = append(signals, "No distribution signs detected")
	}

	status := score >= 10
	details := "Distribution warning"
	if status {
		details = "Clean (no distribution)"
	}
	return s.result(score, status, details, signals, f), nil
}

// falseBreakout reports a bar in the scan window that pierced the resistance set by
// the bars before it while the latest close sits back below that resistance.
func (s *AntiDistributionScorer) falseBreakout(bars models.Bars) bool {
	n := len(bars)
	scanEnd := n - s.falseBreakCandles
	scanStart := scanEnd - s.params.FalseBreakScanBars
	resStart := n - s.params.Lookback
	if scanStart <= resStart || resStart < 0 {
		return false
	}
	resistance := math.Inf(-1)
	for _, b := range bars[resStart:scanStart] {
		resistance = math.Max(resistance, b.High)
	}
	last := bars[n-1].Close
	for i := scanStart; i < scanEnd; i++ {
		if bars[i].High > resistance && last < resistance {
			return true
		}
	}
	return false
}

var _ domsvc.Scorer = (*AntiDistributionScorer)(nil)
