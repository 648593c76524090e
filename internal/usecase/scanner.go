package usecase

import (
	"context"
	"sort"
	"time"

	"github.com/stanford201807/TW-Pulse-CLI-sub000/internal/domain/models"
	"github.com/stanford201807/TW-Pulse-CLI-sub000/internal/domain/repository"
	applogger "github.com/stanford201807/TW-Pulse-CLI-sub000/pkg/logger"
	"github.com/stanford201807/TW-Pulse-CLI-sub000/pkg/util"
)

const defaultProgressEvery = 50

// Prefetcher loads many histories up front, skipping tickers it cannot serve.
type Prefetcher interface {
	Prefetch(ctx context.Context, tickers []string, periodDays, minBars int) (map[string]models.Bars, error)
}

// ProgressFunc receives the number of tickers processed so far and the total.
type ProgressFunc func(done, total int)

// ScanOptions tune a single scan.
type ScanOptions struct {
	MinStatus  models.Status
	PeriodDays int
	Limit      int
	Progress   ProgressFunc
	OnResult   func(*models.AggregateResult)
}

// Scanner runs the engine over a ticker list and keeps the results at or above a status.
type Scanner struct {
	engine        *Engine
	prefetcher    Prefetcher
	publisher     repository.ResultPublisher
	results       repository.ResultStore
	periodDays    int
	progressEvery int
	metrics       repository.Metrics
	logger        *applogger.Logger
}

type ScannerOption func(*Scanner)

// WithProgressEvery sets how many tickers pass between progress callbacks.
func WithProgressEvery(n int) ScannerOption {
	return func(s *Scanner) {
		if n > 0 {
			s.progressEvery = n
		}
	}
}

// WithResultPublisher forwards every kept result downstream.
func WithResultPublisher(p repository.ResultPublisher) ScannerOption {
	return func(s *Scanner) { s.publisher = p }
}

// WithResultStore persists every kept result.
func WithResultStore(r repository.ResultStore) ScannerOption {
	return func(s *Scanner) { s.results = r }
}

func WithScannerMetrics(m repository.Metrics) ScannerOption {
	return func(s *Scanner) {
		if m != nil {
			s.metrics = m
		}
	}
}

func WithScannerLogger(l *applogger.Logger) ScannerOption {
	return func(s *Scanner) {
		if l != nil {
			s.logger = l
		}
	}
}

func WithScanPeriod(days int) ScannerOption {
	return func(s *Scanner) {
		if days > 0 {
			s.periodDays = days
		}
	}
}

func NewScanner(engine *Engine, prefetcher Prefetcher, opts ...ScannerOption) *Scanner {
	s := &Scanner{
		engine:        engine,
		prefetcher:    prefetcher,
		periodDays:    int(repository.DefaultPeriod()),
		progressEvery: defaultProgressEvery,
		metrics:       nopMetrics{},
		logger:        applogger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Scan prefetches every ticker, evaluates those with enough history and returns the
// results ranked by final score. Per-ticker problems are logged and skipped.
func (s *Scanner) Scan(ctx context.Context, tickers []string, opts ScanOptions) ([]*models.AggregateResult, error) {
	start := time.Now()
	tickers = util.NormalizeTickers(tickers)
	period := opts.PeriodDays
	if period <= 0 {
		period = s.periodDays
	}
	minStatus := opts.MinStatus
	if minStatus == "" {
		minStatus = models.StatusWatchlist
	}

	histories, err := s.prefetcher.Prefetch(ctx, tickers, period, s.engine.MinHistory())
	if err != nil {
		return nil, err
	}

	var kept []*models.AggregateResult
	total := len(tickers)
	for i, t := range tickers {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if bars, ok := histories[t]; ok {
			if r := s.evaluate(ctx, t, bars); r != nil && r.Status.AtLeast(minStatus) {
				kept = append(kept, r)
				if opts.OnResult != nil {
					opts.OnResult(r)
				}
			}
		}
		if opts.Progress != nil && ((i+1)%s.progressEvery == 0 || i+1 == total) {
			opts.Progress(i+1, total)
		}
	}

	sort.SliceStable(kept, func(i, j int) bool { return kept[i].FinalScore > kept[j].FinalScore })
	if opts.Limit > 0 && len(kept) > opts.Limit {
		kept = kept[:opts.Limit]
	}
	s.deliver(ctx, kept)

	s.metrics.RecordScan(total, len(kept), time.Since(start).Seconds())
	s.logger.Info("scan completed",
		applogger.Int("tickers", total),
		applogger.Int("analyzed", len(histories)),
		applogger.Int("matched", len(kept)),
		applogger.String("min_status", string(minStatus)),
		applogger.Int64("duration_ms", time.Since(start).Milliseconds()),
	)
	return kept, nil
}

func (s *Scanner) evaluate(ctx context.Context, ticker string, bars models.Bars) (r *models.AggregateResult) {
	defer func() {
		if rec := recover(); rec != nil {
			s.logger.Warn("scan ticker panicked", applogger.String("ticker", ticker), applogger.Any("panic", rec))
			r = nil
		}
	}()
	r, err := s.engine.Evaluate(ctx, ticker, bars)
	if err != nil {
		s.logger.Warn("scan ticker failed", applogger.String("ticker", ticker), applogger.Error(err))
		return nil
	}
	return r
}

func (s *Scanner) deliver(ctx context.Context, results []*models.AggregateResult) {
	if len(results) == 0 {
		return
	}
	if s.results != nil {
		if err := s.results.StoreBatch(ctx, results); err != nil {
			s.metrics.RecordError("result_store")
			s.logger.Error("store scan results failed", applogger.Int("results", len(results)), applogger.Error(err))
		}
	}
	if s.publisher != nil {
		if err := s.publisher.PublishBatch(ctx, results); err != nil {
			s.metrics.RecordError("result_publish")
			s.logger.Error("publish scan results failed", applogger.Int("results", len(results)), applogger.Error(err))
		}
	}
}
