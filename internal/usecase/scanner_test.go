package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stanford201807/TW-Pulse-CLI-sub000/internal/domain/models"
)

type mapPrefetcher map[string]models.Bars

func (m mapPrefetcher) Prefetch(_ context.Context, tickers []string, _, minBars int) (map[string]models.Bars, error) {
	out := map[string]models.Bars{}
	for _, t := range tickers {
		if b, ok := m[t]; ok && len(b) >= minBars {
			out[t] = b
		}
	}
	return out, nil
}

type recordingSink struct {
	mu        sync.Mutex
	stored    []*models.AggregateResult
	published []*models.AggregateResult
	err       error
}

func (s *recordingSink) Init(context.Context) error { return nil }

func (s *recordingSink) StoreBatch(_ context.Context, r []*models.AggregateResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stored = append(s.stored, r...)
	return s.err
}

func (s *recordingSink) Latest(context.Context, string, int) ([]*models.AggregateResult, error) {
	return nil, nil
}

func (s *recordingSink) Publish(_ context.Context, r *models.AggregateResult) error {
	return s.PublishBatch(context.Background(), []*models.AggregateResult{r})
}

func (s *recordingSink) PublishBatch(_ context.Context, r []*models.AggregateResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.published = append(s.published, r...)
	return s.err
}

func (s *recordingSink) Close() error { return nil }

func tickerNames(rs []*models.AggregateResult) []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = r.Ticker
	}
	return out
}

func TestScanSkipsInsufficientHistory(t *testing.T) {
	store := newCountingStore(t, map[string]models.Bars{
		"GOOD":  flatBars(150),
		"SHORT": flatBars(20),
	})
	cfg := stubConfig()
	cfg.MinHistoryDays = 100
	e := NewEngine(cfg, stubRegistry(&stubScorer{name: "stub", max: 100, score: 90, status: true}), nil)
	h := NewHistoryLoader(store, "memory", WithHistoryClock(fixedClock))
	s := NewScanner(e, h)

	got, err := s.Scan(context.Background(), []string{"short", "good"}, ScanOptions{MinStatus: models.StatusWatchlist})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "GOOD", got[0].Ticker)
	assert.Equal(t, models.StatusPreMarkup, got[0].Status)
}

func scoredUniverse() mapPrefetcher {
	return mapPrefetcher{
		"AAA": closeBars(20, 55),
		"BBB": closeBars(20, 90),
		"CCC": closeBars(20, 30),
		"DDD": closeBars(20, 70),
	}
}

func TestScanFiltersAndSorts(t *testing.T) {
	e := closeEngine(t)
	s := NewScanner(e, scoredUniverse())
	tickers := []string{"AAA", "BBB", "CCC", "DDD"}

	got, err := s.Scan(context.Background(), tickers, ScanOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"BBB", "DDD", "AAA"}, tickerNames(got))

	got, err = s.Scan(context.Background(), tickers, ScanOptions{MinStatus: models.StatusSiap})
	require.NoError(t, err)
	assert.Equal(t, []string{"BBB", "DDD"}, tickerNames(got))

	got, err = s.Scan(context.Background(), tickers, ScanOptions{MinStatus: models.StatusSkip, Limit: 3})
	require.NoError(t, err)
	assert.Equal(t, []string{"BBB", "DDD", "AAA"}, tickerNames(got))

	for i := 1; i < len(got); i++ {
		assert.GreaterOrEqual(t, got[i-1].FinalScore, got[i].FinalScore)
	}
}

func TestScanProgressAndCallbacks(t *testing.T) {
	e := closeEngine(t)
	sink := &recordingSink{}
	m := newCountingMetrics()
	s := NewScanner(e, scoredUniverse(),
		WithProgressEvery(3),
		WithResultStore(sink),
		WithResultPublisher(sink),
		WithScannerMetrics(m),
	)

	var progress [][2]int
	var streamed []string
	got, err := s.Scan(context.Background(), []string{"AAA", "BBB", "CCC", "DDD", "NONE"}, ScanOptions{
		Progress: func(done, total int) { progress = append(progress, [2]int{done, total}) },
		OnResult: func(r *models.AggregateResult) { streamed = append(streamed, r.Ticker) },
	})
	require.NoError(t, err)

	assert.Equal(t, [][2]int{{3, 5}, {5, 5}}, progress)
	assert.ElementsMatch(t, []string{"AAA", "BBB", "DDD"}, streamed)
	assert.Equal(t, tickerNames(got), tickerNames(sink.stored))
	assert.Equal(t, tickerNames(got), tickerNames(sink.published))
	assert.Equal(t, [][2]int{{5, 3}}, m.scans)
}

func TestScanDeliveryErrorsDoNotFailScan(t *testing.T) {
	e := closeEngine(t)
	sink := &recordingSink{err: errors.New("broker down")}
	s := NewScanner(e, scoredUniverse(), WithResultPublisher(sink), WithResultStore(sink))

	got, err := s.Scan(context.Background(), []string{"BBB"}, ScanOptions{})
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestScanSurvivesPanickingScorerAndCancellation(t *testing.T) {
	reg := stubRegistry(&stubScorer{name: "stub", max: 100, byClose: true, status: true}, &stubScorer{name: "bad", max: 1, panicMsg: "x"})
	e := NewEngine(stubConfig(), reg, nil)
	s := NewScanner(e, scoredUniverse())

	got, err := s.Scan(context.Background(), []string{"BBB", "CCC"}, ScanOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"BBB"}, tickerNames(got))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = s.Scan(ctx, []string{"BBB"}, ScanOptions{})
	assert.ErrorIs(t, err, context.Canceled)
}
