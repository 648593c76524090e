package training

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/stanford201807/TW-Pulse-CLI-sub000/internal/domain/models"
	"github.com/stanford201807/TW-Pulse-CLI-sub000/internal/domain/repository"
	"github.com/stanford201807/TW-Pulse-CLI-sub000/internal/services/features"
	applogger "github.com/stanford201807/TW-Pulse-CLI-sub000/pkg/logger"
	"github.com/stanford201807/TW-Pulse-CLI-sub000/pkg/util"
)

const (
	modelVersion    = "1.0.0"
	topFeatureCount = 10
)

// Trainer fits the classifier, derives thresholds and replaces the stored artifacts.
type Trainer struct {
	cfg      models.TrainingConfig
	target   models.TargetDefinition
	fallback models.Thresholds
	store    repository.ArtifactStore
	logger   *applogger.Logger
	now      func() time.Time
}

type TrainerOption func(*Trainer)

func WithTrainerLogger(l *applogger.Logger) TrainerOption {
	return func(t *Trainer) {
		if l != nil {
			t.logger = l
		}
	}
}

// WithClock overrides the timestamp source used in reports.
func WithClock(now func() time.Time) TrainerOption {
	return func(t *Trainer) { t.now = now }
}

// WithFallbackThresholds sets the thresholds used when none can be derived.
func WithFallbackThresholds(th models.Thresholds) TrainerOption {
	return func(t *Trainer) { t.fallback = th }
}

func NewTrainer(cfg models.TrainingConfig, target models.TargetDefinition, store repository.ArtifactStore, opts ...TrainerOption) *Trainer {
	t := &Trainer{
		cfg:      cfg,
		target:   target,
		fallback: models.Thresholds{PreMarkup: 80, Siap: 65, Watchlist: 50},
		store:    store,
		logger:   applogger.Nop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// dataset is the matrix form of a sample set.
type dataset struct {
	names   []string
	X       [][]float64
	y       []int
	dates   []time.Time
	tickers []string
}

func buildDataset(samples []models.LabeledSample) dataset {
	maps := make([]map[string]float64, len(samples))
	for i := range samples {
		maps[i] = samples[i].Features
	}
	ds := dataset{names: features.UnionNames(maps...)}
	seen := map[string]struct{}{}
	for _, s := range samples {
		ds.X = append(ds.X, features.Vector(s.Features, ds.names))
		ds.y = append(ds.y, s.Label)
		ds.dates = append(ds.dates, s.Date)
		if _, ok := seen[s.Ticker]; !ok {
			seen[s.Ticker] = struct{}{}
			ds.tickers = append(ds.tickers, s.Ticker)
		}
	}
	return ds
}

func (d dataset) subset(idx []int) ([][]float64, []int) {
	X := make([][]float64, len(idx))
	y := make([]int, len(idx))
	for k, i := range idx {
		X[k] = d.X[i]
		y[k] = d.y[i]
	}
	return X, y
}

// CheckShortage returns a TrainingShortageError when samples or tickers fall below the minimums.
func (t *Trainer) CheckShortage(samples []models.LabeledSample) error {
	tickers := map[string]struct{}{}
	for _, s := range samples {
		tickers[s.Ticker] = struct{}{}
	}
	if len(samples) < t.cfg.MinSamples || len(tickers) < t.cfg.MinTickers {
		return &models.TrainingShortageError{
			Samples:    len(samples),
			Tickers:    len(tickers),
			MinSamples: t.cfg.MinSamples,
			MinTickers: t.cfg.MinTickers,
		}
	}
	return nil
}

// fitOutcome is what either validation scheme hands to persistence.
type fitOutcome struct {
	mode       models.TrainMode
	model      *GBTModel
	metrics    models.ClassificationMetrics
	trainCount int
	validCount int
	folds      []models.FoldResult
}

// Train validates, fits and persists. Nothing on disk changes unless every step before
// persistence succeeds.
func (t *Trainer) Train(ctx context.Context, samples []models.LabeledSample, mode models.TrainMode) (*models.TrainResult, error) {
	start := time.Now()
	if err := t.CheckShortage(samples); err != nil {
		t.logger.Warn("training aborted", applogger.Error(err))
		return nil, err
	}

	sorted := append([]models.LabeledSample(nil), samples...)
	SortSamples(sorted)
	ds := buildDataset(sorted)

	var (
		out *fitOutcome
		err error
	)
	switch mode {
	case models.TrainModeWalkForward:
		out, err = t.walkForward(ctx, ds)
		if err == nil && out == nil {
			t.logger.Warn("walk-forward produced no folds, falling back to simple split")
			out, err = t.simple(ds)
		}
	case models.TrainModeSimple, "":
		out, err = t.simple(ds)
	default:
		return nil, fmt.Errorf("unknown training mode %q", mode)
	}
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	thresholds := DeriveThresholds(out.model.ProbaBatch(ds.X), t.fallback)
	res, err := t.persist(ds, sorted, out, thresholds)
	if err != nil {
		return nil, err
	}

	t.logger.Info("training completed",
		applogger.String("mode", string(out.mode)),
		applogger.Int("samples", len(sorted)),
		applogger.Int("tickers", len(ds.tickers)),
		applogger.Int("features", len(ds.names)),
		applogger.Float64("auc", out.metrics.AUCROC),
		applogger.Float64("f1", out.metrics.F1),
		applogger.Int64("duration_ms", time.Since(start).Milliseconds()),
	)
	return res, nil
}

func (t *Trainer) simple(ds dataset) (*fitOutcome, error) {
	trainIdx, testIdx := StratifiedSplit(ds.y, t.cfg.TestSize, t.cfg.Seed)
	Xtr, ytr := ds.subset(trainIdx)
	Xte, yte := ds.subset(testIdx)

	model, err := FitGBT(Xtr, ytr, ds.names, ParamsFrom(t.cfg))
	if err != nil {
		return nil, fmt.Errorf("simple fit: %w", err)
	}
	return &fitOutcome{
		mode:       models.TrainModeSimple,
		model:      model,
		metrics:    Evaluate(yte, model.ProbaBatch(Xte)),
		trainCount: len(trainIdx),
		validCount: len(testIdx),
	}, nil
}

// walkForward trains on rolling TrainMonths windows and tests on the following
// TestMonths, advancing by TestMonths. Metrics come only from the concatenated
// out-of-sample predictions. A nil outcome means no fold qualified.
func (t *Trainer) walkForward(ctx context.Context, ds dataset) (*fitOutcome, error) {
	if len(ds.dates) == 0 {
		return nil, nil
	}
	minDate, maxDate := ds.dates[0], ds.dates[len(ds.dates)-1]

	var (
		folds   []models.FoldResult
		oosY    []int
		oosProb []float64
	)
	for cur := minDate; ; cur = util.AddMonths(cur, t.cfg.TestMonths) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		trainEnd := util.AddMonths(cur, t.cfg.TrainMonths)
		testEnd := util.AddMonths(trainEnd, t.cfg.TestMonths)
		if !trainEnd.Before(maxDate) {
			break
		}

		var trainIdx, testIdx []int
		for i, d := range ds.dates {
			switch {
			case !d.Before(cur) && d.Before(trainEnd):
				trainIdx = append(trainIdx, i)
			case !d.Before(trainEnd) && d.Before(testEnd):
				testIdx = append(testIdx, i)
			}
		}
		if len(trainIdx) < t.cfg.MinFoldTrain || len(testIdx) < t.cfg.MinFoldTest {
			t.logger.Debug("walk-forward fold skipped",
				applogger.String("train_end", trainEnd.Format(time.DateOnly)),
				applogger.Int("train", len(trainIdx)),
				applogger.Int("test", len(testIdx)),
			)
			continue
		}

		Xtr, ytr := ds.subset(trainIdx)
		Xte, yte := ds.subset(testIdx)
		model, err := FitGBT(Xtr, ytr, ds.names, ParamsFrom(t.cfg))
		if err != nil {
			return nil, fmt.Errorf("fold %s: %w", trainEnd.Format(time.DateOnly), err)
		}
		prob := model.ProbaBatch(Xte)
		oosY = append(oosY, yte...)
		oosProb = append(oosProb, prob...)

		fold := models.FoldResult{
			Fold:         len(folds) + 1,
			TrainStart:   cur,
			TrainEnd:     trainEnd,
			TestEnd:      testEnd,
			TrainSamples: len(trainIdx),
			TestSamples:  len(testIdx),
			Metrics:      Evaluate(yte, prob),
		}
		folds = append(folds, fold)
		t.logger.Info("walk-forward fold",
			applogger.Int("fold", fold.Fold),
			applogger.String("train_end", trainEnd.Format(time.DateOnly)),
			applogger.Int("train", fold.TrainSamples),
			applogger.Int("test", fold.TestSamples),
			applogger.Float64("auc", fold.Metrics.AUCROC),
		)
	}
	if len(oosY) == 0 {
		return nil, nil
	}

	final, err := FitGBT(ds.X, ds.y, ds.names, ParamsFrom(t.cfg))
	if err != nil {
		return nil, fmt.Errorf("final fit: %w", err)
	}
	return &fitOutcome{
		mode:       models.TrainModeWalkForward,
		model:      final,
		metrics:    Evaluate(oosY, oosProb),
		trainCount: len(ds.y),
		validCount: len(oosY),
		folds:      folds,
	}, nil
}

func (t *Trainer) persist(ds dataset, samples []models.LabeledSample, out *fitOutcome, th models.Thresholds) (*models.TrainResult, error) {
	blob, err := out.model.Encode()
	if err != nil {
		return nil, fmt.Errorf("encode model: %w", err)
	}

	modelPath, err := t.store.SaveModel(blob)
	if err != nil {
		return nil, fmt.Errorf("save model: %w", err)
	}
	namesPath, err := t.store.SaveFeatureNames(ds.names)
	if err != nil {
		return nil, fmt.Errorf("save feature names: %w", err)
	}
	thPath, err := t.store.SaveThresholds(th)
	if err != nil {
		return nil, fmt.Errorf("save thresholds: %w", err)
	}

	report := t.report(ds, samples, out, th)
	report.Files = map[string]string{
		"model":         modelPath,
		"feature_names": namesPath,
		"thresholds":    thPath,
	}
	reportPath, err := t.store.SaveReport(report)
	if err != nil {
		return nil, fmt.Errorf("save report: %w", err)
	}
	report.Files["report"] = reportPath

	return &models.TrainResult{
		ModelPath:         modelPath,
		ThresholdsPath:    thPath,
		FeatureNamesPath:  namesPath,
		ReportPath:        reportPath,
		Metrics:           out.metrics,
		FeatureImportance: out.model.Importance,
		Thresholds:        th,
		Report:            report,
	}, nil
}

func (t *Trainer) report(ds dataset, samples []models.LabeledSample, out *fitOutcome, th models.Thresholds) *models.TrainingReport {
	pos := 0
	for _, v := range ds.y {
		pos += v
	}
	dist := models.LabelDistribution{Positive: pos, Negative: len(ds.y) - pos}
	if len(ds.y) > 0 {
		dist.Ratio = float64(pos) / float64(len(ds.y))
	}

	stats := map[string]any{
		"total_samples": len(samples),
		"tickers":       len(ds.tickers),
		"features":      len(ds.names),
	}
	if len(samples) > 0 {
		stats["date_start"] = samples[0].Date.Format(time.DateOnly)
		stats["date_end"] = samples[len(samples)-1].Date.Format(time.DateOnly)
	}

	return &models.TrainingReport{
		ModelInfo: models.ModelInfo{
			Version:           modelVersion,
			RunID:             uuid.NewString(),
			TrainedAt:         t.now().UTC(),
			Mode:              out.mode,
			TrainingSamples:   out.trainCount,
			ValidationSamples: out.validCount,
			Metrics:           out.metrics,
			Thresholds:        th,
			FeatureImportance: out.model.Importance,
			Target:            t.target,
			TickersUsed:       ds.tickers,
		},
		Config: map[string]any{
			"mode":            string(out.mode),
			"target_gain_pct": t.target.GainPct,
			"target_days":     t.target.Days,
			"test_size":       t.cfg.TestSize,
			"train_months":    t.cfg.TrainMonths,
			"test_months":     t.cfg.TestMonths,
			"num_trees":       t.cfg.NumTrees,
			"max_depth":       t.cfg.MaxDepth,
			"learning_rate":   t.cfg.LearningRate,
			"window_bars":     t.cfg.WindowBars,
			"step":            t.cfg.Step,
		},
		DataStats:         stats,
		LabelDistribution: dist,
		TopFeatures:       out.model.TopFeatures(topFeatureCount),
		Folds:             out.folds,
	}
}
