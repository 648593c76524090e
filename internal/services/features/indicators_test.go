package features

import (
	"math"
	"testing"
	"time"

	"github.com/stanford201807/TW-Pulse-CLI-sub000/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRollingMean(t *testing.T) {
	out := RollingMean([]float64{1, 2, 3, 4, 5}, 3)
	require.Len(t, out, 5)
	assert.True(t, math.IsNaN(out[0]))
	assert.True(t, math.IsNaN(out[1]))
	assert.InDelta(t, 2.0, out[2], 1e-12)
	assert.InDelta(t, 3.0, out[3], 1e-12)
	assert.InDelta(t, 4.0, out[4], 1e-12)
}

func TestTrueRangeUsesPreviousClose(t *testing.T) {
	highs := []float64{10, 12, 11}
	lows := []float64{9, 11, 8}
	closes := []float64{9.5, 11.5, 9}
	tr := TrueRange(highs, lows, closes)
	assert.Equal(t, []float64{1, 2.5, 3.5}, tr)
}

func TestNormalizedSlope(t *testing.T) {
	t.Run("flat series", func(t *testing.T) {
		assert.Equal(t, 0.0, NormalizedSlope([]float64{5, 5, 5, 5}, 4))
	})
	t.Run("too short", func(t *testing.T) {
		assert.Equal(t, 0.0, NormalizedSlope([]float64{1, 2}, 4))
	})
	t.Run("linear decline", func(t *testing.T) {
		// y = 10 - x over x=0..4, mean 8, slope -1
		got := NormalizedSlope([]float64{10, 9, 8, 7, 6}, 5)
		assert.InDelta(t, -1.0/8.0, got, 1e-12)
	})
}

func TestBollingerWidthIsPercentOfMid(t *testing.T) {
	closes := []float64{1, 2, 3, 4, 5}
	bb := Bollinger(closes, 5, 2)
	// mean 3, population std sqrt(2)
	std := math.Sqrt(2)
	assert.InDelta(t, 3.0, bb.Mid[4], 1e-12)
	assert.InDelta(t, 3+2*std, bb.Upper[4], 1e-12)
	assert.InDelta(t, (4*std)/3*100, bb.Width[4], 1e-9)
	assert.True(t, math.IsNaN(bb.Width[3]))
}

func TestRSI(t *testing.T) {
	t.Run("only gains saturates at 100", func(t *testing.T) {
		closes := make([]float64, 20)
		for i := range closes {
			closes[i] = float64(i + 1)
		}
		rsi := RSI(closes, 14)
		assert.True(t, math.IsNaN(rsi[12]))
		assert.Equal(t, 100.0, rsi[13])
		assert.Equal(t, 100.0, rsi[19])
	})
	t.Run("alternating moves stay near the middle", func(t *testing.T) {
		closes := make([]float64, 60)
		for i := range closes {
			closes[i] = 100 + float64(i%2)
		}
		rsi := RSI(closes, 14)
		assert.InDelta(t, 50, rsi[59], 5)
	})
}

func TestOBV(t *testing.T) {
	obv := OBV([]float64{10, 11, 11, 9}, []float64{100, 200, 300, 400})
	assert.Equal(t, []float64{0, 200, 200, -200}, obv)
}

func TestQuantileInterpolates(t *testing.T) {
	xs := []float64{math.NaN(), 4, 1, 3, 2}
	assert.InDelta(t, 1.6, Quantile(xs, 0.2), 1e-12)
	assert.InDelta(t, 2.5, Quantile(xs, 0.5), 1e-12)
	assert.True(t, math.IsNaN(Quantile([]float64{math.NaN()}, 0.5)))
}

func TestPercentileRankCountsNaNInDenominator(t *testing.T) {
	xs := []float64{math.NaN(), 1, 2, 3}
	assert.Equal(t, 50.0, PercentileRank(xs, 3))
}

func TestConsecutiveRuns(t *testing.T) {
	xs := []float64{5, 4, 5, 6, 7, 3, 4}
	assert.Equal(t, 3, MaxConsecutiveRises(xs))
	assert.True(t, HasConsecutiveRises(xs, 3))
	assert.False(t, HasConsecutiveRises(xs, 4))
	assert.True(t, HasConsecutiveFalls([]float64{9, 8, 7}, 2))
	assert.False(t, HasConsecutiveFalls([]float64{9, 8}, 2))
}

func TestFindSwings(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	prices := []float64{5, 6, 7, 10, 7, 6, 5, 2, 5, 6, 7}
	bars := make(models.Bars, len(prices))
	for i, p := range prices {
		bars[i] = models.Bar{Date: start.AddDate(0, 0, i), Open: p, High: p, Low: p, Close: p}
	}
	swings := FindSwings(bars, 3)
	require.Len(t, swings, 2)
	assert.Equal(t, SwingHigh, swings[0].Kind)
	assert.Equal(t, 3, swings[0].Index)
	assert.Equal(t, SwingLow, swings[1].Kind)
	assert.Equal(t, 7, swings[1].Index)
	assert.Equal(t, 2.0, swings[1].Price)
}
