package analytics

import (
	"fmt"

	"github.com/stanford201807/TW-Pulse-CLI-sub000/internal/domain/models"
	domsvc "github.com/stanford201807/TW-Pulse-CLI-sub000/internal/domain/service"
	"github.com/stanford201807/TW-Pulse-CLI-sub000/internal/services/features"
)

const violationWaveOverlap = "Wave 4 overlaps Wave 1 territory"

// ElliottScorer estimates where price sits in an Elliott structure. Corrections ending
// inside the Fibonacci zone of the prior move score highest.
type ElliottScorer struct{ baseScorer }

func NewElliottScorer(cfg *models.SaptaConfig) *ElliottScorer {
	return &ElliottScorer{newBase(models.ModuleElliott, cfg)}
}

func (s *ElliottScorer) FeatureKeys() []string {
	return []string{"swing_count", "retracement", "abc_pattern", "rule_violations", "rsi_divergence", "fib_retracement"}
}

func (s *ElliottScorer) Analyze(bars models.Bars) (models.ModuleScore, error) {
	p := s.params
	if len(bars) < p.ElliottWindow {
		return s.insufficient(), nil
	}

	var (
		score   float64
		signals []string
		f       = models.RawFeatures{}
		phase   = models.WaveUnknown
	)
	recent := bars.Tail(p.ElliottWindow)
	swings := features.FindSwings(recent, p.SwingLookback)
	f["swing_count"] = len(swings)
	if len(swings) < 3 {
		return s.result(0, false, "Not enough swing points", nil, f), nil
	}

	highs, lows := recent.Highs(), recent.Lows()
	highIdx, lowIdx := features.ArgMax(highs), features.ArgMin(lows)
	top, bottom := highs[highIdx], lows[lowIdx]
	last := recent.Last().Close

	if rng := top - bottom; rng > 0 {
		var retrace float64
		if highIdx > lowIdx {
			retrace = (top - last) / rng
			f["trend_context"] = "uptrend"
		} else {
			retrace = (last - bottom) / rng
			f["trend_context"] = "downtrend"
		}
		f["retracement"] = retrace
		pts, signal, ph := scoreRetracement(retrace)
		score += pts
		signals = append(signals, signal)
		phase = ph
	}

	abc, abcDetails := detectABC(swings)
	f["abc_pattern"] = abc
	if abc {
		score += 6
		signals = append(signals, "ABC corrective pattern: "+abcDetails)
		if phase == models.WaveUnknown {
			phase = models.WaveC
		}
	}

	violations := elliottViolations(swings)
	f["rule_violations"] = len(violations)
	for _, v := range violations {
		score -= 2
		signals = append(signals, "Warning: "+v)
	}

	if len(recent) >= p.RSIPeriod {
		div := rsiDivergence(recent.Closes(), p.RSIPeriod)
		f["rsi_divergence"] = div
		if div {
			score += 4
			signals = append(signals, "RSI divergence confirms wave end")
		}
	}

	f["wave_phase"] = string(phase)
	if r, ok := f.Float("retracement"); ok {
		f["fib_retracement"] = r
	} else {
		f["fib_retracement"] = 0.0
	}

	status := score >= 12
	details := "No clear Elliott pattern"
	if status {
		details = "Elliott: " + string(phase)
	}
	return s.result(score, status, details, signals, f), nil
}

// scoreRetracement grades a retracement ratio against the Fibonacci levels.
func scoreRetracement(r float64) (float64, string, models.WavePhase) {
	pct := r * 100
	switch {
	case r >= 0.5 && r <= 0.618:
		return 10, fmt.Sprintf("Golden zone retracement (%.1f%%)", pct), models.Wave2
	case r >= 0.382 && r < 0.5:
		return 8, fmt.Sprintf("Fibonacci retracement (%.1f%%)", pct), models.Wave2
	case r >= 0.236 && r < 0.382:
		return 6, fmt.Sprintf("Shallow retracement (%.1f%%)", pct), models.Wave4
	case r > 0.618 && r <= 0.786:
		return 4, fmt.Sprintf("Deep retracement (%.1f%%)", pct), models.Wave2
	case r > 0.786:
		return 0, fmt.Sprintf("Over-retracement (%.1f%%)", pct), models.WaveUnknown
	default:
		return 2, fmt.Sprintf("Minimal retracement (%.1f%%)", pct), models.WaveUnknown
	}
}

// detectABC looks for a zigzag in the last four swings where B retraces 38-78% of A
// and C measures 0.8-1.8 times A.
func detectABC(swings []features.SwingPoint) (bool, string) {
	if len(swings) < 4 {
		return false, ""
	}
	w := swings[len(swings)-4:]
	var a, b, c float64
	var dir string
	switch {
	case w[0].Kind == features.SwingHigh && w[1].Kind == features.SwingLow &&
		w[2].Kind == features.SwingHigh && w[3].Kind == features.SwingLow:
		a, b, c = w[0].Price-w[1].Price, w[2].Price-w[1].Price, w[2].Price-w[3].Price
		dir = "down"
	case w[0].Kind == features.SwingLow && w[1].Kind == features.SwingHigh &&
		w[2].Kind == features.SwingLow && w[3].Kind == features.SwingHigh:
		a, b, c = w[1].Price-w[0].Price, w[1].Price-w[2].Price, w[3].Price-w[2].Price
		dir = "up"
	default:
		return false, ""
	}
	if a <= 0 || b <= 0 || c <= 0 {
		return false, ""
	}
	bRetrace, cRatio := b/a, c/a
	if bRetrace < 0.38 || bRetrace > 0.78 || cRatio < 0.8 || cRatio > 1.8 {
		return false, ""
	}
	return true, fmt.Sprintf("ABC %s (B retrace: %.0f%%, C/A: %.1f)", dir, bRetrace*100, cRatio)
}

// elliottViolations applies the wave 4 / wave 1 overlap rule to the last five swings.
func elliottViolations(swings []features.SwingPoint) []string {
	if len(swings) < 5 {
		return nil
	}
	w := swings[len(swings)-5:]
	if w[0].Kind != features.SwingLow {
		return nil
	}
	for i := 3; i < len(w); i++ {
		if w[i].Kind == features.SwingLow && w[i].Price < w[0].Price {
			return []string{violationWaveOverlap}
		}
	}
	return nil
}

// rsiDivergence compares the two halves of the last ten closes: a lower low with a
// higher RSI (bullish) or a higher high with a lower RSI (bearish).
func rsiDivergence(closes []float64, period int) bool {
	if len(closes) < 10 {
		return false
	}
	rsi := features.RSI(closes, period)
	off := len(closes) - 10
	first, second := closes[off:off+5], closes[off+5:]

	fLo, sLo := features.ArgMin(first), features.ArgMin(second)
	if second[sLo] < first[fLo] && rsi[off+5+sLo] > rsi[off+fLo] {
		return true
	}
	fHi, sHi := features.ArgMax(first), features.ArgMax(second)
	return second[sHi] > first[fHi] && rsi[off+5+sHi] < rsi[off+fHi]
}

var _ domsvc.Scorer = (*ElliottScorer)(nil)
