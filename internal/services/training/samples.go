package training

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/stanford201807/TW-Pulse-CLI-sub000/internal/domain/models"
	"github.com/stanford201807/TW-Pulse-CLI-sub000/internal/services/features"
	"github.com/stanford201807/TW-Pulse-CLI-sub000/internal/services/labeling"
	applogger "github.com/stanford201807/TW-Pulse-CLI-sub000/pkg/logger"
)

// Evaluator produces the rule-based result whose features feed the model.
type Evaluator interface {
	Evaluate(ctx context.Context, ticker string, bars models.Bars) (*models.AggregateResult, error)
}

// SampleGenerator slides a fixed window over a history, extracting features from the
// window and labeling the bar right after it from the full series.
type SampleGenerator struct {
	eval        Evaluator
	extractor   *features.Extractor
	labeler     *labeling.Labeler
	window      int
	step        int
	concurrency int
	logger      *applogger.Logger
}

func NewSampleGenerator(eval Evaluator, extractor *features.Extractor, labeler *labeling.Labeler, cfg models.TrainingConfig, lgr *applogger.Logger) *SampleGenerator {
	if lgr == nil {
		lgr = applogger.Nop()
	}
	return &SampleGenerator{
		eval:        eval,
		extractor:   extractor,
		labeler:     labeler,
		window:      cfg.WindowBars,
		step:        cfg.Step,
		concurrency: max(cfg.Concurrency, 1),
		logger:      lgr,
	}
}

// WithStep returns a copy using a different window step.
func (g *SampleGenerator) WithStep(step int) *SampleGenerator {
	cp := *g
	if step > 0 {
		cp.step = step
	}
	return &cp
}

// Generate builds samples for one ticker. Indices within the label horizon of the
// series end are skipped; a window that fails to evaluate is skipped as well.
func (g *SampleGenerator) Generate(ctx context.Context, ticker string, bars models.Bars) ([]models.LabeledSample, error) {
	horizon := g.labeler.Target().Days
	var out []models.LabeledSample
	for i := g.window; i < len(bars)-horizon; i += g.step {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		lbl, ok := g.labeler.LabelAt(bars, i)
		if !ok {
			continue
		}
		res, err := g.eval.Evaluate(ctx, ticker, bars[i-g.window:i])
		if err != nil || res == nil {
			g.logger.Debug("sample window skipped",
				applogger.String("ticker", ticker),
				applogger.Int("index", i),
				applogger.Error(err),
			)
			continue
		}
		out = append(out, models.LabeledSample{
			Ticker:        ticker,
			Date:          bars[i].Date,
			Features:      g.extractor.FromResult(res),
			Label:         lbl.HitTarget,
			ForwardReturn: lbl.ForwardReturn,
			MaxReturn:     lbl.MaxForwardReturn,
			DaysToTarget:  lbl.DaysToTarget,
		})
	}
	return out, nil
}

// GenerateAll runs Generate over many tickers with bounded concurrency. Samples are
// returned ordered by date, then ticker.
func (g *SampleGenerator) GenerateAll(ctx context.Context, histories map[string]models.Bars) ([]models.LabeledSample, error) {
	var (
		mu  sync.Mutex
		all []models.LabeledSample
	)
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(g.concurrency)
	for ticker, bars := range histories {
		ticker, bars := ticker, bars
		eg.Go(func() error {
			s, err := g.Generate(ctx, ticker, bars)
			if err != nil {
				return fmt.Errorf("generate samples %s: %w", ticker, err)
			}
			mu.Lock()
			all = append(all, s...)
			mu.Unlock()
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	SortSamples(all)
	return all, nil
}

// SortSamples orders samples chronologically with ticker as the tie-break.
func SortSamples(s []models.LabeledSample) {
	sort.SliceStable(s, func(i, j int) bool {
		if !s[i].Date.Equal(s[j].Date) {
			return s[i].Date.Before(s[j].Date)
		}
		return s[i].Ticker < s[j].Ticker
	})
}
