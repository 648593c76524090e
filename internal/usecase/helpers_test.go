package usecase

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"

	"github.com/stanford201807/TW-Pulse-CLI-sub000/internal/domain/models"
	"github.com/stanford201807/TW-Pulse-CLI-sub000/internal/services/analytics"
)

var testStart = time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)

// fixedNow sits one day after the last bar of a 150-bar series.
var fixedNow = testStart.AddDate(0, 0, 150)

func fixedClock() time.Time { return fixedNow }

func flatBars(n int) models.Bars {
	out := make(models.Bars, n)
	for i := range out {
		out[i] = models.Bar{Date: testStart.AddDate(0, 0, i), Open: 100, High: 101, Low: 99, Close: 100.6, Volume: 1000}
	}
	return out
}

// compressingBars oscillates around 100 with an amplitude that decays over the last 40 bars.
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

// stubScorer returns a fixed score, or the score keyed by the last close when byClose is set.
type stubScorer struct {
	name     string
	max      float64
	score    float64
	status   bool
	signals  []string
	features models.RawFeatures
	err      error
	panicMsg string
	byClose  bool
}

func (s *stubScorer) Name() string          { return s.name }
func (s *stubScorer) MaxScore() float64     { return s.max }
func (s *stubScorer) FeatureKeys() []string { return []string{"x"} }
func (s *stubScorer) Analyze(bars models.Bars) (models.ModuleScore, error) {
	if s.panicMsg != "" {
		panic(s.panicMsg)
	}
	if s.err != nil {
		return models.ModuleScore{}, s.err
	}
	score := s.score
	if s.byClose {
		score = bars.Last().Close
	}
	return models.NewModuleScore(s.name, score, s.max, s.status, "stub", s.signals, s.features), nil
}

func stubRegistry(scorers ...*stubScorer) *analytics.Registry {
	r := analytics.NewRegistry()
	for _, s := range scorers {
		r.MustRegister(s)
	}
	return r
}

func stubConfig() models.SaptaConfig {
	cfg := models.DefaultSaptaConfig()
	cfg.MinHistoryDays = 10
	return cfg
}

// closeBars is a short history whose last close drives a byClose stub.
func closeBars(n int, last float64) models.Bars {
	bars := flatBars(n)
	bars[n-1].Close = last
	return bars
}

type fakePredictor struct {
	names []string
	p     float64
	err   error
	calls int
	last  []float64
	mu    sync.Mutex
}

func (f *fakePredictor) FeatureNames() []string { return f.names }

func (f *fakePredictor) PredictProbability(_ context.Context, v []float64) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.last = v
	return f.p, f.err
}

type mapFetcher map[string]models.Bars

func (m mapFetcher) FetchBars(_ context.Context, ticker string, _ int) (models.Bars, error) {
	b, ok := m[ticker]
	if !ok {
		return nil, errors.New("no such ticker")
	}
	return b, nil
}

// countingMetrics records calls made through the metrics port.
type countingMetrics struct {
	nopMetrics
	mu       sync.Mutex
	analyses int
	failures map[string]int
	scans    [][2]int
	cache    map[bool]int
	fetchErr int
}

func newCountingMetrics() *countingMetrics {
	return &countingMetrics{failures: map[string]int{}, cache: map[bool]int{}}
}

func (m *countingMetrics) RecordAnalysis(models.Status, float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.analyses++
}

func (m *countingMetrics) RecordModuleFailure(module string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[module]++
}

func (m *countingMetrics) RecordScan(tickers, matched int, _ float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scans = append(m.scans, [2]int{tickers, matched})
}

func (m *countingMetrics) RecordCacheResult(_ string, hit bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cache[hit]++
}

func (m *countingMetrics) RecordFetchError(string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fetchErr++
}
