package usecase

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/stanford201807/TW-Pulse-CLI-sub000/internal/domain/models"
	"github.com/stanford201807/TW-Pulse-CLI-sub000/internal/domain/repository"
	"github.com/stanford201807/TW-Pulse-CLI-sub000/internal/services/training"
	applogger "github.com/stanford201807/TW-Pulse-CLI-sub000/pkg/logger"
	"github.com/stanford201807/TW-Pulse-CLI-sub000/pkg/util"
)

// TrainParams selects the data and scheme for one training run. Zero values fall back
// to the configured defaults.
type TrainParams struct {
	Tickers    []string         `json:"tickers"`
	Mode       models.TrainMode `json:"mode"`
	PeriodDays int              `json:"period_days"`
	Step       int              `json:"step"`
}

// TrainingUseCase loads histories, generates samples, trains, and reloads the engine.
// Only one run may execute at a time.
type TrainingUseCase struct {
	engine     *Engine
	prefetcher Prefetcher
	universe   repository.UniverseProvider
	generator  *training.SampleGenerator
	trainer    *training.Trainer
	store      repository.ArtifactStore
	cfg        models.TrainingConfig
	target     models.TargetDefinition
	mode       models.TrainMode
	periodDays int
	metrics    repository.Metrics
	logger     *applogger.Logger

	running atomic.Bool
}

type TrainingDeps struct {
	Engine     *Engine
	Prefetcher Prefetcher
	Universe   repository.UniverseProvider
	Generator  *training.SampleGenerator
	Trainer    *training.Trainer
	Store      repository.ArtifactStore
	Metrics    repository.Metrics
	Logger     *applogger.Logger
}

func NewTrainingUseCase(deps TrainingDeps, cfg models.TrainingConfig, target models.TargetDefinition, mode models.TrainMode, periodDays int) *TrainingUseCase {
	u := &TrainingUseCase{
		engine:     deps.Engine,
		prefetcher: deps.Prefetcher,
		universe:   deps.Universe,
		generator:  deps.Generator,
		trainer:    deps.Trainer,
		store:      deps.Store,
		cfg:        cfg,
		target:     target,
		mode:       mode,
		periodDays: periodDays,
		metrics:    deps.Metrics,
		logger:     deps.Logger,
	}
	if u.metrics == nil {
		u.metrics = nopMetrics{}
	}
	if u.logger == nil {
		u.logger = applogger.Nop()
	}
	if u.mode == "" {
		u.mode = models.TrainModeWalkForward
	}
	if u.periodDays <= 0 {
		u.periodDays = int(repository.Period5Y)
	}
	return u
}

// Run executes one training run end to end. Artifacts are only replaced when training
// succeeds; the engine is reloaded afterwards.
func (u *TrainingUseCase) Run(ctx context.Context, p TrainParams) (*models.TrainResult, error) {
	if !u.running.CompareAndSwap(false, true) {
		return nil, models.ErrTrainingInProgress
	}
	defer u.running.Store(false)
	start := time.Now()

	tickers := util.NormalizeTickers(p.Tickers)
	if len(tickers) == 0 && u.universe != nil {
		var err error
		if tickers, err = u.universe.Tickers(ctx); err != nil {
			return nil, fmt.Errorf("load universe: %w", err)
		}
	}
	mode := p.Mode
	if mode == "" {
		mode = u.mode
	}
	period := p.PeriodDays
	if period <= 0 {
		period = u.periodDays
	}
	u.logger.Info("training started",
		applogger.String("mode", string(mode)),
		applogger.Int("tickers", len(tickers)),
		applogger.Int("period_days", period),
	)

	histories, err := u.prefetcher.Prefetch(ctx, tickers, period, u.cfg.WindowBars+u.target.Days+1)
	if err != nil {
		return nil, fmt.Errorf("load histories: %w", err)
	}

	gen := u.generator
	if p.Step > 0 {
		gen = gen.WithStep(p.Step)
	}
	samples, err := gen.GenerateAll(ctx, histories)
	if err != nil {
		return nil, err
	}
	u.logger.Info("samples generated",
		applogger.Int("samples", len(samples)),
		applogger.Int("histories", len(histories)),
		applogger.Int64("duration_ms", time.Since(start).Milliseconds()),
	)

	res, err := u.trainer.Train(ctx, samples, mode)
	if err != nil {
		u.metrics.RecordError("training")
		return nil, err
	}
	u.metrics.RecordTraining(string(res.Report.Mode), len(samples), res.Metrics)

	if u.engine != nil {
		if err := u.engine.Reload(); err != nil {
			u.logger.Warn("engine reload after training reported errors", applogger.Error(err))
		}
	}
	return res, nil
}

// Running reports whether a run is in progress.
func (u *TrainingUseCase) Running() bool { return u.running.Load() }

// Report returns the report of the last successful run.
func (u *TrainingUseCase) Report() (*models.TrainingReport, error) {
	return u.store.LoadReport()
}
