package usecase

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stanford201807/TW-Pulse-CLI-sub000/internal/domain/models"
	"github.com/stanford201807/TW-Pulse-CLI-sub000/internal/repository"
	"github.com/stanford201807/TW-Pulse-CLI-sub000/internal/service/breaker"
	"github.com/stanford201807/TW-Pulse-CLI-sub000/internal/service/cache"
	"github.com/stanford201807/TW-Pulse-CLI-sub000/internal/service/ratelimit"
)

// countingStore wraps a bar store and can be switched to fail.
type countingStore struct {
	inner *repository.MemoryBarStore
	calls atomic.Int32
	fail  atomic.Bool
}

func newCountingStore(t *testing.T, histories map[string]models.Bars) *countingStore {
	t.Helper()
	mem := repository.NewMemoryBarStore()
	for tk, bars := range histories {
		require.NoError(t, mem.StoreBars(context.Background(), tk, bars))
	}
	return &countingStore{inner: mem}
}

func (s *countingStore) GetBars(ctx context.Context, ticker string, from, to time.Time) (models.Bars, error) {
	s.calls.Add(1)
	if s.fail.Load() {
		return nil, errors.New("provider down")
	}
	return s.inner.GetBars(ctx, ticker, from, to)
}

func (s *countingStore) GetLatestNBars(ctx context.Context, ticker string, n int) (models.Bars, error) {
	return s.inner.GetLatestNBars(ctx, ticker, n)
}

func TestHistoryLoaderUsesPeriodWindow(t *testing.T) {
	store := newCountingStore(t, map[string]models.Bars{"2330": flatBars(150)})
	h := NewHistoryLoader(store, "memory", WithHistoryClock(fixedClock))

	bars, err := h.FetchBars(context.Background(), " 2330 ", 60)
	require.NoError(t, err)
	assert.Len(t, bars, 60)
	assert.Equal(t, flatBars(150).Last().Date, bars.Last().Date)
}

func TestHistoryLoaderCachesBars(t *testing.T) {
	store := newCountingStore(t, map[string]models.Bars{"2330": flatBars(150)})
	m := newCountingMetrics()
	h := NewHistoryLoader(store, "memory",
		WithHistoryClock(fixedClock),
		WithBarCache(cache.NewBarCache(cache.NewTTLCache(), cache.BackendMemory, time.Hour)),
		WithHistoryMetrics(m),
	)

	a, err := h.FetchBars(context.Background(), "2330", 365)
	require.NoError(t, err)
	b, err := h.FetchBars(context.Background(), "2330", 365)
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Equal(t, int32(1), store.calls.Load())
	assert.Equal(t, 1, m.cache[false])
	assert.Equal(t, 1, m.cache[true])
}

func TestHistoryLoaderBreakerOpens(t *testing.T) {
	store := newCountingStore(t, nil)
	store.fail.Store(true)
	m := newCountingMetrics()
	h := NewHistoryLoader(store, "memory",
		WithBreaker(breaker.New("bars", breaker.Config{MaxFailures: 2, Timeout: time.Minute}, nil)),
		WithHistoryMetrics(m),
	)

	for i := 0; i < 2; i++ {
		_, err := h.FetchBars(context.Background(), "2330", 365)
		require.Error(t, err)
		assert.NotErrorIs(t, err, models.ErrProviderUnavailable)
	}
	_, err := h.FetchBars(context.Background(), "2330", 365)
	assert.ErrorIs(t, err, models.ErrProviderUnavailable)
	assert.Equal(t, int32(2), store.calls.Load())
	assert.Equal(t, 3, m.fetchErr)
}

func TestHistoryLoaderRateLimitHonoursContext(t *testing.T) {
	store := newCountingStore(t, map[string]models.Bars{"2330": flatBars(10)})
	h := NewHistoryLoader(store, "memory", WithRateLimiter(ratelimit.New(0.001, 1)), WithHistoryClock(fixedClock))

	_, err := h.FetchBars(context.Background(), "2330", 365)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = h.FetchBars(ctx, "2330", 365)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limit")
	assert.Equal(t, int32(1), store.calls.Load())
}

func TestHistoryLoaderPrefetchSkipsShortAndFailing(t *testing.T) {
	store := newCountingStore(t, map[string]models.Bars{
		"LONG":  flatBars(150),
		"LONG2": flatBars(140),
		"SHORT": flatBars(20),
	})
	h := NewHistoryLoader(store, "memory", WithHistoryClock(fixedClock), WithConcurrency(2))

	got, err := h.Prefetch(context.Background(), []string{"LONG", "long2", "SHORT", "MISSING"}, 365, 100)
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Len(t, got["LONG"], 150)
	assert.Len(t, got["LONG2"], 140)
	assert.Equal(t, int32(4), store.calls.Load())
}

func TestHistoryLoaderPrefetchCancelled(t *testing.T) {
	store := newCountingStore(t, map[string]models.Bars{"LONG": flatBars(150)})
	h := NewHistoryLoader(store, "memory", WithHistoryClock(fixedClock))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := h.Prefetch(ctx, []string{"LONG"}, 365, 10)
	assert.ErrorIs(t, err, context.Canceled)
}
