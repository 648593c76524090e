package features

import (
	"math"
	"sort"
	"time"

	"github.com/stanford201807/TW-Pulse-CLI-sub000/internal/domain/models"
)

// Series helpers below follow rolling-window conventions: positions without a full
// window hold NaN so callers can tell "not yet defined" apart from zero.

// Mean returns the arithmetic mean of xs, ignoring NaN. It returns NaN for no values.
func Mean(xs []float64) float64 {
	sum, n := 0.0, 0
	for _, x := range xs {
		if math.IsNaN(x) {
			continue
		}
		sum += x
		n++
	}
	if n == 0 {
		return math.NaN()
	}
	return sum / float64(n)
}

// RollingMean computes the simple moving average of xs over window.
// A window containing NaN yields NaN.
func RollingMean(xs []float64, window int) []float64 {
	out := make([]float64, len(xs))
	for i := range out {
		out[i] = math.NaN()
	}
	if window <= 0 || len(xs) < window {
		return out
	}
	sum, nans := 0.0, 0
	for i, x := range xs {
		if math.IsNaN(x) {
			nans++
		} else {
			sum += x
		}
		if i >= window {
			old := xs[i-window]
			if math.IsNaN(old) {
				nans--
			} else {
				sum -= old
			}
		}
		if i >= window-1 && nans == 0 {
			out[i] = sum / float64(window)
		}
	}
	return out
}

// rollingStd is the population standard deviation over window.
func rollingStd(xs []float64, window int, means []float64) []float64 {
	out := make([]float64, len(xs))
	for i := range out {
		out[i] = math.NaN()
		if i < window-1 || math.IsNaN(means[i]) {
			continue
		}
		ss := 0.0
		for j := i - window + 1; j <= i; j++ {
			d := xs[j] - means[i]
			ss += d * d
		}
		out[i] = math.Sqrt(ss / float64(window))
	}
	return out
}

// TrueRange is max(h-l, |h-prevClose|, |l-prevClose|); the first bar uses h-l.
func TrueRange(highs, lows, closes []float64) []float64 {
	out := make([]float64, len(highs))
	for i := range highs {
		tr := highs[i] - lows[i]
		if i > 0 {
			tr = math.Max(tr, math.Abs(highs[i]-closes[i-1]))
			tr = math.Max(tr, math.Abs(lows[i]-closes[i-1]))
		}
		out[i] = tr
	}
	return out
}

// ATR is the simple rolling mean of the true range.
func ATR(highs, lows, closes []float64, period int) []float64 {
	return RollingMean(TrueRange(highs, lows, closes), period)
}

// NormalizedSlope fits a least-squares line to the last window values and returns
// the slope divided by their mean. Flat, short or undefined input yields 0.
func NormalizedSlope(xs []float64, window int) float64 {
	if window < 2 || len(xs) < window {
		return 0
	}
	recent := xs[len(xs)-window:]
	for _, v := range recent {
		if math.IsNaN(v) {
			return 0
		}
	}
	mean := Mean(recent)
	variance := 0.0
	for _, v := range recent {
		variance += (v - mean) * (v - mean)
	}
	if variance == 0 {
		return 0
	}
	xMean := float64(window-1) / 2
	num, den := 0.0, 0.0
	for i, v := range recent {
		dx := float64(i) - xMean
		num += dx * (v - mean)
		den += dx * dx
	}
	slope := num / den
	if mean != 0 {
		slope /= mean
	}
	return slope
}

// BollingerBands holds the band series for a close series.
type BollingerBands struct {
	Mid   []float64
	Upper []float64
	Lower []float64
	// Width is (upper-lower)/mid*100.
	Width []float64
}

// Bollinger computes bands with a population standard deviation.
func Bollinger(closes []float64, period int, dev float64) BollingerBands {
	mid := RollingMean(closes, period)
	std := rollingStd(closes, period, mid)
	bb := BollingerBands{
		Mid:   mid,
		Upper: make([]float64, len(closes)),
		Lower: make([]float64, len(closes)),
		Width: make([]float64, len(closes)),
	}
	for i := range closes {
		bb.Upper[i] = mid[i] + dev*std[i]
		bb.Lower[i] = mid[i] - dev*std[i]
		if mid[i] == 0 || math.IsNaN(mid[i]) {
			bb.Width[i] = math.NaN()
			continue
		}
		bb.Width[i] = (bb.Upper[i] - bb.Lower[i]) / mid[i] * 100
	}
	return bb
}

// RSI is Wilder's relative strength index (exponential smoothing with alpha 1/period).
// Values before the first full period are NaN; a zero average loss yields 100.
func RSI(closes []float64, period int) []float64 {
	out := make([]float64, len(closes))
	for i := range out {
		out[i] = math.NaN()
	}
	if period <= 0 || len(closes) == 0 {
		return out
	}
	alpha := 1 / float64(period)
	var up, down float64
	for i := range closes {
		var gain, loss float64
		if i > 0 {
			d := closes[i] - closes[i-1]
			if d > 0 {
				gain = d
			} else {
				loss = -d
			}
		}
		if i == 0 {
			up, down = gain, loss
		} else {
			up = (1-alpha)*up + alpha*gain
			down = (1-alpha)*down + alpha*loss
		}
		if i < period-1 {
			continue
		}
		if down == 0 {
			out[i] = 100
			continue
		}
		out[i] = 100 - 100/(1+up/down)
	}
	return out
}

// OBV is on-balance volume starting from zero at the first bar.
func OBV(closes, volumes []float64) []float64 {
	out := make([]float64, len(closes))
	for i := 1; i < len(closes); i++ {
		switch {
		case closes[i] > closes[i-1]:
			out[i] = out[i-1] + volumes[i]
		case closes[i] < closes[i-1]:
			out[i] = out[i-1] - volumes[i]
		default:
			out[i] = out[i-1]
		}
	}
	return out
}

// Quantile returns the q-quantile of the non-NaN values using linear interpolation.
func Quantile(xs []float64, q float64) float64 {
	vals := make([]float64, 0, len(xs))
	for _, x := range xs {
		if !math.IsNaN(x) {
			vals = append(vals, x)
		}
	}
	if len(vals) == 0 {
		return math.NaN()
	}
	sort.Float64s(vals)
	pos := q * float64(len(vals)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return vals[lo]
	}
	return vals[lo] + (vals[hi]-vals[lo])*(pos-float64(lo))
}

// PercentileRank is the share of xs strictly below current, in percent.
// NaN entries count toward the denominator but never compare below.
func PercentileRank(xs []float64, current float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	below := 0
	for _, x := range xs {
		if x < current {
			below++
		}
	}
	return float64(below) / float64(len(xs)) * 100
}

// ArgMax returns the first index of the maximum value, or -1 for empty input.
func ArgMax(xs []float64) int {
	idx := -1
	for i, x := range xs {
		if math.IsNaN(x) {
			continue
		}
		if idx < 0 || x > xs[idx] {
			idx = i
		}
	}
	return idx
}

// ArgMin returns the first index of the minimum value, or -1 for empty input.
func ArgMin(xs []float64) int {
	idx := -1
	for i, x := range xs {
		if math.IsNaN(x) {
			continue
		}
		if idx < 0 || x < xs[idx] {
			idx = i
		}
	}
	return idx
}

// MaxConsecutiveRises counts the longest run of strictly increasing steps.
func MaxConsecutiveRises(xs []float64) int {
	best, cur := 0, 0
	for i := 1; i < len(xs); i++ {
		if xs[i] > xs[i-1] {
			cur++
			if cur > best {
				best = cur
			}
		} else {
			cur = 0
		}
	}
	return best
}

// HasConsecutiveRises reports a run of at least min strictly increasing steps.
func HasConsecutiveRises(xs []float64, min int) bool {
	if len(xs) < min+1 {
		return false
	}
	return MaxConsecutiveRises(xs) >= min
}

// HasConsecutiveFalls reports a run of at least min strictly decreasing steps.
func HasConsecutiveFalls(xs []float64, min int) bool {
	if len(xs) < min+1 {
		return false
	}
	neg := make([]float64, len(xs))
	for i, x := range xs {
		neg[i] = -x
	}
	return MaxConsecutiveRises(neg) >= min
}

// ClosePosition is where the close sits inside the bar range (0 = low, 1 = high).
// ok is false for a zero-range bar.
func ClosePosition(b models.Bar) (pos float64, ok bool) {
	rng := b.High - b.Low
	if rng <= 0 {
		return 0, false
	}
	return (b.Close - b.Low) / rng, true
}

// BodyRatio is |close-open| / (high-low); ok is false for a zero-range bar.
func BodyRatio(b models.Bar) (ratio float64, ok bool) {
	rng := b.High - b.Low
	if rng <= 0 {
		return 0, false
	}
	return math.Abs(b.Close-b.Open) / rng, true
}

// SwingKind distinguishes swing highs from swing lows.
type SwingKind string

const (
	SwingHigh SwingKind = "high"
	SwingLow  SwingKind = "low"
)

// SwingPoint is a strict local extreme.
type SwingPoint struct {
	Kind  SwingKind
	Index int
	Date  time.Time
	Price float64
}

// FindSwings returns swing points ordered by index. A swing high is strictly above
// the lookback bars on both sides; swing lows mirror that. One bar may be both.
func FindSwings(bars models.Bars, lookback int) []SwingPoint {
	var out []SwingPoint
	for i := lookback; i < len(bars)-lookback; i++ {
		isHigh, isLow := true, true
		for j := 1; j <= lookback; j++ {
			if !(bars[i].High > bars[i-j].High && bars[i].High > bars[i+j].High) {
				isHigh = false
			}
			if !(bars[i].Low < bars[i-j].Low && bars[i].Low < bars[i+j].Low) {
				isLow = false
			}
		}
		if isHigh {
			out = append(out, SwingPoint{Kind: SwingHigh, Index: i, Date: bars[i].Date, Price: bars[i].High})
		}
		if isLow {
			out = append(out, SwingPoint{Kind: SwingLow, Index: i, Date: bars[i].Date, Price: bars[i].Low})
		}
	}
	return out
}
