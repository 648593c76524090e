package usecase

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/stanford201807/TW-Pulse-CLI-sub000/internal/domain/models"
	"github.com/stanford201807/TW-Pulse-CLI-sub000/internal/domain/repository"
	domsvc "github.com/stanford201807/TW-Pulse-CLI-sub000/internal/domain/service"
	"github.com/stanford201807/TW-Pulse-CLI-sub000/internal/services/analytics"
	"github.com/stanford201807/TW-Pulse-CLI-sub000/internal/services/features"
	"github.com/stanford201807/TW-Pulse-CLI-sub000/internal/services/training"
	applogger "github.com/stanford201807/TW-Pulse-CLI-sub000/pkg/logger"
)

const (
	agreementHigh    = 5
	agreementReason  = 4
	mlHighConfidence = 0.7
	mlNoteConfidence = 0.5

	warnFeatureDrift = "ML disabled: feature drift"
)

// engineState is the swappable artifact view. A reload replaces it wholesale.
type engineState struct {
	predictor  domsvc.Predictor
	thresholds models.Thresholds
	learned    bool
	drift      error
}

// Engine runs the scorers over a bar history and aggregates them into a classified result.
type Engine struct {
	cfg        models.SaptaConfig
	registry   *analytics.Registry
	extractor  *features.Extractor
	fetcher    domsvc.BarFetcher
	store      repository.ArtifactStore
	remote     domsvc.Predictor
	metrics    repository.Metrics
	logger     *applogger.Logger
	now        func() time.Time
	periodDays int

	state atomic.Pointer[engineState]
}

type EngineOption func(*Engine)

func WithEngineLogger(l *applogger.Logger) EngineOption {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

func WithEngineMetrics(m repository.Metrics) EngineOption {
	return func(e *Engine) {
		if m != nil {
			e.metrics = m
		}
	}
}

// WithArtifactStore makes the engine load the model and learned thresholds from store.
func WithArtifactStore(s repository.ArtifactStore) EngineOption {
	return func(e *Engine) { e.store = s }
}

// WithPredictor installs a predictor that takes precedence over any stored model.
func WithPredictor(p domsvc.Predictor) EngineOption {
	return func(e *Engine) { e.remote = p }
}

func WithEngineClock(now func() time.Time) EngineOption {
	return func(e *Engine) { e.now = now }
}

// WithPeriodDays sets the lookback requested from the fetcher by Analyze.
func WithPeriodDays(days int) EngineOption {
	return func(e *Engine) {
		if days > 0 {
			e.periodDays = days
		}
	}
}

// NewEngine builds an engine and loads whatever artifacts are available. Missing or
// unreadable artifacts leave it on rule-based scoring.
func NewEngine(cfg models.SaptaConfig, registry *analytics.Registry, fetcher domsvc.BarFetcher, opts ...EngineOption) *Engine {
	e := &Engine{
		cfg:        cfg,
		registry:   registry,
		extractor:  features.NewExtractor(registry.FeatureSchema()),
		fetcher:    fetcher,
		metrics:    nopMetrics{},
		logger:     applogger.Nop(),
		now:        time.Now,
		periodDays: int(repository.DefaultPeriod()),
	}
	for _, opt := range opts {
		opt(e)
	}
	if err := e.Reload(); err != nil {
		e.logger.Warn("engine started without some artifacts", applogger.Error(err))
	}
	return e
}

// Reload re-reads thresholds and model. The previous state stays in use until the new
// one is complete; errors are reported but never leave the engine unusable.
func (e *Engine) Reload() error {
	st := &engineState{thresholds: e.cfg.Thresholds}
	var errs []error

	if e.store != nil {
		th, err := e.store.LoadThresholds()
		switch {
		case err == nil:
			if verr := th.Validate(); verr != nil {
				errs = append(errs, fmt.Errorf("learned thresholds: %w", verr))
			} else {
				st.thresholds = *th
				st.learned = true
			}
		case !errors.Is(err, models.ErrModelUnavailable):
			errs = append(errs, fmt.Errorf("load thresholds: %w", err))
		}
	}

	switch {
	case e.remote != nil:
		st.predictor = e.remote
	case e.store != nil:
		m, err := training.LoadModel(e.store)
		switch {
		case err == nil:
			st.predictor = m
		case !errors.Is(err, models.ErrModelUnavailable):
			errs = append(errs, err)
		}
	}
	if st.predictor != nil {
		st.drift = features.CheckDrift(e.extractor.Names(), st.predictor.FeatureNames())
		if st.drift != nil {
			e.logger.Warn("model features differ from live features", applogger.Error(st.drift))
		}
	}

	e.state.Store(st)
	e.logger.Info("engine artifacts loaded",
		applogger.Bool("model", st.predictor != nil),
		applogger.Bool("learned_thresholds", st.learned),
		applogger.Float64("pre_markup", st.thresholds.PreMarkup),
		applogger.Float64("siap", st.thresholds.Siap),
		applogger.Float64("watchlist", st.thresholds.Watchlist),
	)
	return errors.Join(errs...)
}

// EngineStatus describes the artifacts the engine currently uses.
type EngineStatus struct {
	ModelLoaded       bool              `json:"model_loaded"`
	LearnedThresholds bool              `json:"learned_thresholds"`
	Thresholds        models.Thresholds `json:"thresholds"`
	Modules           []string          `json:"modules"`
	Features          int               `json:"features"`
	Drift             string            `json:"drift,omitempty"`
}

func (e *Engine) Status() EngineStatus {
	st := e.state.Load()
	out := EngineStatus{
		ModelLoaded:       st.predictor != nil,
		LearnedThresholds: st.learned,
		Thresholds:        st.thresholds,
		Modules:           e.registry.Names(),
		Features:          len(e.extractor.Names()),
	}
	if st.drift != nil {
		out.Drift = st.drift.Error()
	}
	return out
}

// Thresholds returns the cutoffs currently used for classification.
func (e *Engine) Thresholds() models.Thresholds { return e.state.Load().thresholds }

// FeatureNames is the live feature order produced by the registered scorers.
func (e *Engine) FeatureNames() []string { return e.extractor.Names() }

// MinHistory is the bar count below which a ticker is skipped.
func (e *Engine) MinHistory() int { return e.cfg.MinHistoryDays }

// Analyze fetches history for ticker and evaluates it. A nil result with a nil error
// means the history was too short.
func (e *Engine) Analyze(ctx context.Context, ticker string) (*models.AggregateResult, error) {
	return e.AnalyzePeriod(ctx, ticker, e.periodDays)
}

// AnalyzePeriod is Analyze over a caller-chosen lookback in calendar days.
func (e *Engine) AnalyzePeriod(ctx context.Context, ticker string, periodDays int) (*models.AggregateResult, error) {
	if e.fetcher == nil {
		return nil, errors.New("engine has no bar fetcher")
	}
	if periodDays <= 0 {
		periodDays = e.periodDays
	}
	bars, err := e.fetcher.FetchBars(ctx, ticker, periodDays)
	if err != nil {
		if errors.Is(err, models.ErrInsufficientData) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetch %s: %w", ticker, err)
	}
	return e.Evaluate(ctx, ticker, bars)
}

// Evaluate scores a supplied history. Scorers run concurrently; a failing scorer is
// replaced by a failed module score.
func (e *Engine) Evaluate(ctx context.Context, ticker string, bars models.Bars) (*models.AggregateResult, error) {
	if len(bars) < e.cfg.MinHistoryDays {
		e.logger.Debug("insufficient history",
			applogger.String("ticker", ticker),
			applogger.Int("bars", len(bars)),
			applogger.Int("required", e.cfg.MinHistoryDays),
		)
		return nil, nil
	}
	start := time.Now()

	scorers := e.registry.Scorers()
	scores := make([]models.ModuleScore, len(scorers))
	failed := make([]bool, len(scorers))
	var g errgroup.Group
	for i, s := range scorers {
		i, s := i, s
		g.Go(func() error {
			scores[i], failed[i] = e.runScorer(ticker, s, bars)
			return nil
		})
	}
	_ = g.Wait()

	st := e.state.Load()
	r := e.aggregate(ticker, bars, scores, failed)
	e.classify(r, st.thresholds)
	e.applyModel(ctx, r, st, scores)

	e.metrics.RecordAnalysis(r.Status, time.Since(start).Seconds())
	return r, nil
}

func (e *Engine) runScorer(ticker string, s domsvc.Scorer, bars models.Bars) (score models.ModuleScore, failed bool) {
	defer func() {
		if rec := recover(); rec != nil {
			score, failed = models.FailedModuleScore(s.Name(), s.MaxScore(), fmt.Sprint(rec)), true
			e.moduleFailed(ticker, s.Name(), fmt.Errorf("panic: %v", rec))
		}
	}()
	ms, err := s.Analyze(bars)
	if err != nil {
		e.moduleFailed(ticker, s.Name(), err)
		return models.FailedModuleScore(s.Name(), s.MaxScore(), err.Error()), true
	}
	return ms, false
}

func (e *Engine) moduleFailed(ticker, module string, err error) {
	e.metrics.RecordModuleFailure(module)
	e.logger.Debug("module failed",
		applogger.String("ticker", ticker),
		applogger.String("module", module),
		applogger.Error(err),
	)
}

func (e *Engine) aggregate(ticker string, bars models.Bars, scores []models.ModuleScore, failed []bool) *models.AggregateResult {
	r := &models.AggregateResult{
		Ticker:           ticker,
		Timestamp:        e.now().UTC(),
		AsOf:             bars[len(bars)-1].Date,
		Modules:          scores,
		MaxPossibleScore: 100,
		WavePhase:        models.WaveUnknown,
		Notes:            []string{},
		Warnings:         []string{},
		Reasons:          []string{},
		Penalties:        []string{},
		Features:         map[string]any{},
	}

	var num, den float64
	for i, s := range scores {
		w := e.cfg.Weight(s.Module)
		r.TotalScore += s.Score
		num += s.Score * w
		den += s.MaxScore * w
		if s.Status {
			r.ModulesActive++
		}

		for _, sig := range s.Signals {
			if len(r.Notes) < e.cfg.MaxNotes {
				r.Notes = append(r.Notes, sig)
			}
		}
		for k, v := range s.Features {
			r.Features[s.Module+"_"+k] = v
		}
		if failed[i] || (!s.Status && s.Score == 0) {
			r.Warnings = append(r.Warnings, s.Module+": "+s.Details)
		}

		switch s.Module {
		case models.ModuleElliott:
			if p := s.Features.String("wave_phase"); p != "" {
				r.WavePhase = models.WavePhase(p)
			}
			if fr, ok := s.Features.Float("fib_retracement"); ok && fr > 0 {
				r.FibRetracement = &fr
			}
		case models.ModuleTimeProjection:
			r.ProjectedWindow = s.Features.String("projected_window")
			if d, ok := s.Features["days_to_next_window"].(int); ok {
				r.DaysToWindow = &d
			}
		case models.ModuleAntiDistribution:
			if s.Features.Bool("false_breakout") {
				r.Penalties = append(r.Penalties, "False breakout detected")
				r.PenaltyScore += e.cfg.FalseBreakPenalty
			}
		}
	}
	if den > 0 {
		r.WeightedScore = num / den * 100
	}
	r.FinalScore = math.Min(100, math.Max(0, r.WeightedScore-r.PenaltyScore))
	return r
}

// classify applies the thresholds in descending order with inclusive comparisons.
func (e *Engine) classify(r *models.AggregateResult, th models.Thresholds) {
	final := r.FinalScore
	switch {
	case final >= th.PreMarkup:
		r.Status, r.Confidence = models.StatusPreMarkup, models.ConfidenceHigh
		r.Reasons = append(r.Reasons, fmt.Sprintf("Score %.1f >= %.1f (PRE-MARKUP threshold)", final, th.PreMarkup))
	case final >= th.Siap:
		r.Status, r.Confidence = models.StatusSiap, models.ConfidenceMedium
		r.Reasons = append(r.Reasons, fmt.Sprintf("Score %.1f >= %.1f (SIAP threshold)", final, th.Siap))
	case final >= th.Watchlist:
		r.Status, r.Confidence = models.StatusWatchlist, models.ConfidenceLow
		r.Reasons = append(r.Reasons, fmt.Sprintf("Score %.1f >= %.1f (WATCHLIST threshold)", final, th.Watchlist))
	default:
		r.Status, r.Confidence = models.StatusSkip, models.ConfidenceLow
		r.Reasons = append(r.Reasons, fmt.Sprintf("Score %.1f < %.1f (below threshold)", final, th.Watchlist))
	}

	total := len(r.Modules)
	if r.ModulesActive >= agreementHigh && r.Status != models.StatusSkip {
		r.Confidence = models.ConfidenceHigh
	}
	if r.ModulesActive >= agreementReason {
		r.Reasons = append(r.Reasons, fmt.Sprintf("%d/%d modules confirm pattern", r.ModulesActive, total))
	}
}

// applyModel adds the model probability. It adjusts confidence and notes only; score and
// status are never touched.
func (e *Engine) applyModel(ctx context.Context, r *models.AggregateResult, st *engineState, scores []models.ModuleScore) {
	if st.predictor == nil {
		return
	}
	if st.drift != nil {
		r.Warnings = append(r.Warnings, warnFeatureDrift)
		return
	}
	fm := e.extractor.FromScores(scores, features.Aggregates{
		TotalScore:    r.TotalScore,
		WeightedScore: r.WeightedScore,
		PenaltyScore:  r.PenaltyScore,
	})
	p, err := st.predictor.PredictProbability(ctx, features.Vector(fm, st.predictor.FeatureNames()))
	if err != nil {
		e.logger.Debug("prediction failed", applogger.String("ticker", r.Ticker), applogger.Error(err))
		r.Warnings = append(r.Warnings, "ML prediction unavailable: "+err.Error())
		return
	}
	r.MLProbability = &p
	switch {
	case p >= mlHighConfidence:
		r.Confidence = models.ConfidenceHigh
		e.addModelNote(r, p)
	case p >= mlNoteConfidence:
		e.addModelNote(r, p)
	default:
		r.Warnings = append(r.Warnings, fmt.Sprintf("ML confidence low: %.0f%%", p*100))
	}
}

// addModelNote keeps the notes within MaxNotes; the model note replaces the last
// module signal when the list is full.
func (e *Engine) addModelNote(r *models.AggregateResult, p float64) {
	if limit := e.cfg.MaxNotes; limit > 0 && len(r.Notes) >= limit {
		r.Notes = r.Notes[:limit-1]
	}
	r.Notes = append(r.Notes, fmt.Sprintf("ML confidence: %.0f%%", p*100))
}

var _ training.Evaluator = (*Engine)(nil)

type nopMetrics struct{}

func (nopMetrics) RecordAnalysis(models.Status, float64)                    {}
func (nopMetrics) RecordModuleFailure(string)                               {}
func (nopMetrics) RecordScan(int, int, float64)                             {}
func (nopMetrics) RecordFetchError(string)                                  {}
func (nopMetrics) RecordCacheResult(string, bool)                           {}
func (nopMetrics) RecordTraining(string, int, models.ClassificationMetrics) {}
func (nopMetrics) RecordError(string)                                       {}
func (nopMetrics) RecordLatency(string, float64)                            {}
