package analytics

import (
	"math"
	"math/rand"
	"time"

	"github.com/stanford201807/TW-Pulse-CLI-sub000/internal/domain/models"
)

var testStart = time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)

func testConfig() *models.SaptaConfig {
	cfg := models.DefaultSaptaConfig()
	return &cfg
}

// flatBars are identical bars closing in the upper part of a 99-101 range.
func flatBars(n int) models.Bars {
	out := make(models.Bars, n)
	for i := range out {
		out[i] = models.Bar{
			Date:   testStart.AddDate(0, 0, i),
			Open:   100,
			High:   101,
			Low:    99,
			Close:  100.6,
			Volume: 1000,
		}
	}
	return out
}

// compressingBars oscillates around 100 with a four-bar cycle whose amplitude
// decays by 10% a bar over the last 40 bars.
func compressingBars() models.Bars {
	const n = 150
	out := make(models.Bars, n)
	for i := range out {
		amp := 2.0
		if i >= 110 {
			amp *= math.Pow(0.9, float64(i-109))
		}
		mid := [4]float64{100, 100 + amp, 100, 100 - amp}[(i+3)%4]
		out[i] = models.Bar{
			Date:   testStart.AddDate(0, 0, i),
			Open:   mid + 0.1*amp,
			High:   mid + amp,
			Low:    mid - amp,
			Close:  mid + 0.2*amp,
			Volume: 1000,
		}
	}
	return out
}

// absorbedSpikeBars carries a 2x volume bar ten bars from the end whose low holds,
// followed by rising lows.
func absorbedSpikeBars() models.Bars {
	bars := flatBars(80)
	spike := len(bars) - 10
	bars[spike].Volume = 2000
	for i := spike + 1; i < len(bars); i++ {
		bars[i].Low = 99 + 0.1*float64(i-spike)
	}
	return bars
}

func randomWalk(seed int64, n int) models.Bars {
	rng := rand.New(rand.NewSource(seed))
	out := make(models.Bars, n)
	price := 100.0
	for i := range out {
		open := price
		price *= 1 + rng.NormFloat64()*0.02
		hi := math.Max(open, price) * (1 + rng.Float64()*0.01)
		lo := math.Min(open, price) * (1 - rng.Float64()*0.01)
		out[i] = models.Bar{
			Date:   testStart.AddDate(0, 0, i),
			Open:   open,
			High:   hi,
			Low:    lo,
			Close:  price,
			Volume: 1000 + rng.Float64()*4000,
		}
	}
	return out
}
