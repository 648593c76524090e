package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/stanford201807/TW-Pulse-CLI-sub000/internal/domain/models"
	"github.com/stanford201807/TW-Pulse-CLI-sub000/internal/domain/repository"
	domsvc "github.com/stanford201807/TW-Pulse-CLI-sub000/internal/domain/service"
	"github.com/stanford201807/TW-Pulse-CLI-sub000/internal/service/breaker"
	"github.com/stanford201807/TW-Pulse-CLI-sub000/internal/service/cache"
	"github.com/stanford201807/TW-Pulse-CLI-sub000/internal/service/ratelimit"
	applogger "github.com/stanford201807/TW-Pulse-CLI-sub000/pkg/logger"
	"github.com/stanford201807/TW-Pulse-CLI-sub000/pkg/util"
)

const defaultPrefetchConcurrency = 4

// HistoryLoader fetches bar histories through a cache, a rate limiter and a circuit breaker.
type HistoryLoader struct {
	store       repository.BarStore
	source      string
	cache       *cache.BarCache
	limiter     *ratelimit.Limiter
	breaker     *breaker.Breaker
	concurrency int
	metrics     repository.Metrics
	logger      *applogger.Logger
	now         func() time.Time
}

type HistoryOption func(*HistoryLoader)

func WithBarCache(c *cache.BarCache) HistoryOption {
	return func(h *HistoryLoader) { h.cache = c }
}

func WithRateLimiter(l *ratelimit.Limiter) HistoryOption {
	return func(h *HistoryLoader) { h.limiter = l }
}

func WithBreaker(b *breaker.Breaker) HistoryOption {
	return func(h *HistoryLoader) { h.breaker = b }
}

// WithConcurrency bounds the number of in-flight fetches during Prefetch.
func WithConcurrency(n int) HistoryOption {
	return func(h *HistoryLoader) {
		if n > 0 {
			h.concurrency = n
		}
	}
}

func WithHistoryMetrics(m repository.Metrics) HistoryOption {
	return func(h *HistoryLoader) {
		if m != nil {
			h.metrics = m
		}
	}
}

func WithHistoryLogger(l *applogger.Logger) HistoryOption {
	return func(h *HistoryLoader) {
		if l != nil {
			h.logger = l
		}
	}
}

func WithHistoryClock(now func() time.Time) HistoryOption {
	return func(h *HistoryLoader) { h.now = now }
}

// NewHistoryLoader wraps store. source names the store in logs and metrics.
func NewHistoryLoader(store repository.BarStore, source string, opts ...HistoryOption) *HistoryLoader {
	h := &HistoryLoader{
		store:       store,
		source:      source,
		cache:       cache.NewBarCache(nil, "", 0),
		concurrency: defaultPrefetchConcurrency,
		metrics:     nopMetrics{},
		logger:      applogger.Nop(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *HistoryLoader) cacheKey(ticker string, periodDays int) string {
	return fmt.Sprintf("bars:%s:%s:%d:%s", h.source, ticker, periodDays, h.now().UTC().Format(time.DateOnly))
}

// FetchBars returns the last periodDays calendar days of history for ticker.
func (h *HistoryLoader) FetchBars(ctx context.Context, ticker string, periodDays int) (models.Bars, error) {
	ticker = util.NormalizeTicker(ticker)
	period := repository.NormalizePeriod(periodDays)
	key := h.cacheKey(ticker, int(period))

	bars, ok, err := h.cache.Get(ctx, key)
	if err != nil {
		h.logger.Debug("bar cache read failed", applogger.String("key", key), applogger.Error(err))
	}
	h.metrics.RecordCacheResult(h.cache.Backend(), ok)
	if ok {
		return bars, nil
	}

	if h.limiter != nil {
		if err := h.limiter.Wait(ctx, h.source); err != nil {
			return nil, fmt.Errorf("rate limit %s: %w", h.source, err)
		}
	}

	start := time.Now()
	from, to := period.Range(h.now())
	fetch := func() (any, error) { return h.store.GetBars(ctx, ticker, from, to) }
	var v any
	if h.breaker != nil {
		v, err = h.breaker.Execute(fetch)
	} else {
		v, err = fetch()
	}
	if err != nil {
		h.metrics.RecordFetchError(h.source)
		h.logger.Error("fetch bars failed",
			applogger.String("ticker", ticker),
			applogger.String("source", h.source),
			applogger.Error(err),
		)
		return nil, fmt.Errorf("get bars %s: %w", ticker, err)
	}
	bars, _ = v.(models.Bars)
	h.metrics.RecordLatency("fetch_bars", time.Since(start).Seconds())
	h.logger.Debug("bars fetched",
		applogger.String("ticker", ticker),
		applogger.Int("rows", len(bars)),
		applogger.Int64("duration_ms", time.Since(start).Milliseconds()),
	)

	if len(bars) > 0 {
		if err := h.cache.Set(ctx, key, bars); err != nil {
			h.logger.Debug("bar cache write failed", applogger.String("key", key), applogger.Error(err))
		}
	}
	return bars, nil
}

// Prefetch loads many histories with bounded concurrency. Failed tickers and tickers with
// fewer than minBars bars are left out of the result; only cancellation is returned as an error.
func (h *HistoryLoader) Prefetch(ctx context.Context, tickers []string, periodDays, minBars int) (map[string]models.Bars, error) {
	var (
		mu  sync.Mutex
		out = make(map[string]models.Bars, len(tickers))
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(h.concurrency)
	for _, t := range tickers {
		t := t
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			bars, err := h.FetchBars(gctx, t, periodDays)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				h.logger.Warn("prefetch skipped ticker", applogger.String("ticker", t), applogger.Error(err))
				return nil
			}
			if len(bars) < minBars {
				h.logger.Debug("prefetch skipped short history",
					applogger.String("ticker", t),
					applogger.Int("bars", len(bars)),
				)
				return nil
			}
			mu.Lock()
			out[util.NormalizeTicker(t)] = bars
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	h.logger.Info("prefetch completed",
		applogger.Int("requested", len(tickers)),
		applogger.Int("loaded", len(out)),
	)
	return out, nil
}

var _ domsvc.BarFetcher = (*HistoryLoader)(nil)
