package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/stanford201807/TW-Pulse-CLI-sub000/internal/domain/models"
	"github.com/stanford201807/TW-Pulse-CLI-sub000/internal/domain/repository"
	pkgkafka "github.com/stanford201807/TW-Pulse-CLI-sub000/pkg/kafka"
	applogger "github.com/stanford201807/TW-Pulse-CLI-sub000/pkg/logger"
	"github.com/stanford201807/TW-Pulse-CLI-sub000/pkg/util"
)

// BarsUpdatedEvent announces new daily bars for a ticker. Bars is optional; when present
// the handler ingests them before re-analysing.
type BarsUpdatedEvent struct {
	Ticker string      `json:"ticker"`
	Bars   models.Bars `json:"bars,omitempty"`
}

// BarsUpdatedHandler re-analyses a ticker whenever its history changes and forwards
// results at or above MinStatus.
type BarsUpdatedHandler struct {
	topic     string
	engine    *Engine
	store     repository.BarStore
	writer    repository.BarWriter
	lookback  int
	minStatus models.Status
	results   repository.ResultStore
	publisher repository.ResultPublisher
	logger    *applogger.Logger
}

// BarsUpdatedDeps wires the handler. Writer, Results and Publisher are optional.
type BarsUpdatedDeps struct {
	Topic     string
	Engine    *Engine
	Store     repository.BarStore
	Writer    repository.BarWriter
	Lookback  int
	MinStatus models.Status
	Results   repository.ResultStore
	Publisher repository.ResultPublisher
	Logger    *applogger.Logger
}

func NewBarsUpdatedHandler(d BarsUpdatedDeps) *BarsUpdatedHandler {
	if d.Logger == nil {
		d.Logger = applogger.Nop()
	}
	if d.Lookback <= 0 {
		d.Lookback = int(repository.DefaultPeriod())
	}
	if d.MinStatus == "" {
		d.MinStatus = models.StatusWatchlist
	}
	return &BarsUpdatedHandler{
		topic:     d.Topic,
		engine:    d.Engine,
		store:     d.Store,
		writer:    d.Writer,
		lookback:  d.Lookback,
		minStatus: d.MinStatus,
		results:   d.Results,
		publisher: d.Publisher,
		logger:    d.Logger.With(applogger.String("component", "bars_updated")),
	}
}

func (h *BarsUpdatedHandler) Topic() string { return h.topic }

// Handle decodes one event. Malformed payloads are returned as errors so the consumer
// can dead-letter them.
func (h *BarsUpdatedHandler) Handle(ctx context.Context, data []byte) error {
	var ev BarsUpdatedEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return fmt.Errorf("decode bars event: %w", err)
	}
	ticker := util.NormalizeTicker(ev.Ticker)
	if ticker == "" {
		return errors.New("bars event without ticker")
	}

	if len(ev.Bars) > 0 {
		if h.writer == nil {
			h.logger.Warn("bars dropped, store is read-only", applogger.String("ticker", ticker), applogger.Int("bars", len(ev.Bars)))
		} else if err := h.writer.StoreBars(ctx, ticker, ev.Bars); err != nil {
			return fmt.Errorf("store bars %s: %w", ticker, err)
		}
	}

	bars, err := h.store.GetLatestNBars(ctx, ticker, h.lookback)
	if err != nil {
		return fmt.Errorf("load bars %s: %w", ticker, err)
	}
	r, err := h.engine.Evaluate(ctx, ticker, bars)
	if err != nil {
		return fmt.Errorf("evaluate %s: %w", ticker, err)
	}
	if r == nil || !r.Status.AtLeast(h.minStatus) {
		return nil
	}

	h.logger.Info("ticker re-analysed",
		applogger.String("ticker", ticker),
		applogger.String("status", string(r.Status)),
		applogger.Float64("final_score", r.FinalScore),
	)
	if h.results != nil {
		if err := h.results.StoreBatch(ctx, []*models.AggregateResult{r}); err != nil {
			return fmt.Errorf("store result %s: %w", ticker, err)
		}
	}
	if h.publisher != nil {
		if err := h.publisher.Publish(ctx, r); err != nil {
			return fmt.Errorf("publish result %s: %w", ticker, err)
		}
	}
	return nil
}

var _ pkgkafka.MessageHandler = (*BarsUpdatedHandler)(nil)
