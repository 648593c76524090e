package training

import (
	"sort"

	"github.com/stanford201807/TW-Pulse-CLI-sub000/internal/domain/models"
)

// Percentile cut points of the descending probability ranking.
const (
	preMarkupTop = 0.10
	siapTop      = 0.25
	watchlistTop = 0.50
)

// DeriveThresholds maps the probabilities at the top 10%, 25% and 50% of the ranking
// onto the 0-100 score scale. Empty input returns fallback; the result is forced ascending.
func DeriveThresholds(proba []float64, fallback models.Thresholds) models.Thresholds {
	n := len(proba)
	if n == 0 {
		return fallback
	}
	sorted := append([]float64(nil), proba...)
	sort.Sort(sort.Reverse(sort.Float64Slice(sorted)))

	at := func(p float64) float64 {
		i := int(float64(n) * p)
		if i > n-1 {
			i = n - 1
		}
		return sorted[i] * 100
	}
	t := models.Thresholds{
		PreMarkup: at(preMarkupTop),
		Siap:      at(siapTop),
		Watchlist: at(watchlistTop),
	}
	if t.Siap > t.PreMarkup {
		t.Siap = t.PreMarkup
	}
	if t.Watchlist > t.Siap {
		t.Watchlist = t.Siap
	}
	return t
}
