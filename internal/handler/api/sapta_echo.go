package api

import (
	"context"
	"errors"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/stanford201807/TW-Pulse-CLI-sub000/internal/domain/models"
	domrepo "github.com/stanford201807/TW-Pulse-CLI-sub000/internal/domain/repository"
	"github.com/stanford201807/TW-Pulse-CLI-sub000/internal/usecase"
	xhttp "github.com/stanford201807/TW-Pulse-CLI-sub000/pkg/http"
	xlogger "github.com/stanford201807/TW-Pulse-CLI-sub000/pkg/logger"
	"github.com/stanford201807/TW-Pulse-CLI-sub000/pkg/queue"
	"github.com/stanford201807/TW-Pulse-CLI-sub000/pkg/util"
)

// Analyzer is the slice of *usecase.Engine the handlers use.
type Analyzer interface {
	AnalyzePeriod(ctx context.Context, ticker string, periodDays int) (*models.AggregateResult, error)
	Status() usecase.EngineStatus
	Reload() error
}

// ScanRunner is implemented by *usecase.Scanner.
type ScanRunner interface {
	Scan(ctx context.Context, tickers []string, opts usecase.ScanOptions) ([]*models.AggregateResult, error)
}

// TrainRunner is implemented by *usecase.TrainingUseCase.
type TrainRunner interface {
	Run(ctx context.Context, p usecase.TrainParams) (*models.TrainResult, error)
	Running() bool
	Report() (*models.TrainingReport, error)
}

// SaptaDeps wires the handler. Queue and Results are optional.
type SaptaDeps struct {
	Logger   *xlogger.Logger
	Engine   Analyzer
	Scanner  ScanRunner
	Universe domrepo.UniverseProvider
	Trainer  TrainRunner
	Queue    queue.QueueService
	Results  domrepo.ResultStore
}

// SaptaEchoHandler exposes analysis, scanning and model management over HTTP.
type SaptaEchoHandler struct {
	logger   *xlogger.Logger
	engine   Analyzer
	scanner  ScanRunner
	universe domrepo.UniverseProvider
	trainer  TrainRunner
	queue    queue.QueueService
	results  domrepo.ResultStore
}

func NewSaptaEchoHandler(d SaptaDeps) *SaptaEchoHandler {
	if d.Logger == nil {
		d.Logger = xlogger.Nop()
	}
	return &SaptaEchoHandler{
		logger:   d.Logger.With(xlogger.String("component", "sapta_api")),
		engine:   d.Engine,
		scanner:  d.Scanner,
		universe: d.Universe,
		trainer:  d.Trainer,
		queue:    d.Queue,
		results:  d.Results,
	}
}

func (h *SaptaEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api/sapta")
	g.GET("/analyze", h.Analyze)
	g.GET("/scan", h.Scan)
	g.GET("/scan/ws", h.ScanStream)
	g.GET("/results", h.Results)
	g.POST("/train", h.Train)
	g.GET("/model", h.Model)
	g.POST("/model/reload", h.ReloadModel)
}

func (h *SaptaEchoHandler) Analyze(c echo.Context) error {
	req := &models.AnalyzeRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	ticker := util.NormalizeTicker(req.Ticker)

	res, err := h.engine.AnalyzePeriod(c.Request().Context(), ticker, req.PeriodDays)
	if err != nil {
		h.logger.Error("analyze failed", xlogger.String("ticker", ticker), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, mapError(err))
	}
	if res == nil {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundErrorf("not enough history for %s", ticker).
			WithParam("period_days", req.PeriodDays))
	}
	if req.Detailed {
		return xhttp.SuccessResponse(c, res)
	}
	return xhttp.SuccessResponse(c, summarize(res))
}

func (h *SaptaEchoHandler) Scan(c echo.Context) error {
	req := &models.ScanRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	tickers, opts, err := h.scanInput(c.Request().Context(), req)
	if err != nil {
		return xhttp.AppErrorResponse(c, err)
	}

	results, err := h.scanner.Scan(c.Request().Context(), tickers, opts)
	if err != nil {
		h.logger.Error("scan failed", xlogger.Int("tickers", len(tickers)), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, mapError(err))
	}
	rows := make([]ResultSummary, len(results))
	for i, r := range results {
		rows[i] = summarize(r)
	}
	return xhttp.ListResponse(c, rows, int64(len(rows)))
}

func (h *SaptaEchoHandler) scanInput(ctx context.Context, req *models.ScanRequest) ([]string, usecase.ScanOptions, error) {
	minStatus, err := models.ParseStatus(req.MinStatus)
	if err != nil {
		return nil, usecase.ScanOptions{}, xhttp.BadRequestError(err.Error())
	}
	opts := usecase.ScanOptions{MinStatus: minStatus, PeriodDays: req.PeriodDays, Limit: req.Limit}

	tickers := util.NormalizeTickers(req.Tickers)
	if len(tickers) == 0 {
		if h.universe == nil {
			return nil, opts, xhttp.BadRequestError("tickers required")
		}
		if tickers, err = h.universe.Tickers(ctx); err != nil {
			return nil, opts, xhttp.InternalError("load universe").WithError(err)
		}
	}
	return tickers, opts, nil
}

func (h *SaptaEchoHandler) Results(c echo.Context) error {
	if h.results == nil {
		return xhttp.AppErrorResponse(c, xhttp.UnavailableError("result store not configured"))
	}
	req := &models.ResultsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	rows, err := h.results.Latest(c.Request().Context(), util.NormalizeTicker(req.Ticker), req.Limit)
	if err != nil {
		h.logger.Error("load results failed", xlogger.String("ticker", req.Ticker), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.InternalError("load results").WithError(err))
	}
	return xhttp.ListResponse(c, rows, int64(len(rows)))
}

func (h *SaptaEchoHandler) Train(c echo.Context) error {
	req := &models.TrainRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if h.trainer.Running() {
		return xhttp.AppErrorResponse(c, mapError(models.ErrTrainingInProgress))
	}
	params := usecase.TrainParams{
		Tickers:    util.NormalizeTickers(req.Tickers),
		Mode:       models.TrainMode(req.Mode),
		PeriodDays: req.PeriodDays,
		Step:       req.Step,
	}

	if req.Async {
		if h.queue == nil {
			return xhttp.AppErrorResponse(c, xhttp.UnavailableError("no job queue configured"))
		}
		if err := h.queue.PublishMessage(c.Request().Context(), usecase.TrainJobType, params); err != nil {
			h.logger.Error("enqueue training failed", xlogger.Error(err))
			return xhttp.AppErrorResponse(c, xhttp.UnavailableError("enqueue training").WithError(err))
		}
		return xhttp.AcceptedResponse(c, map[string]any{"queued": true, "mode": req.Mode})
	}

	res, err := h.trainer.Run(c.Request().Context(), params)
	if err != nil {
		h.logger.Error("training failed", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, mapError(err))
	}
	return xhttp.SuccessResponse(c, res)
}

// ModelInfo is the payload of GET /api/sapta/model.
type ModelInfo struct {
	usecase.EngineStatus
	Training bool                   `json:"training"`
	Report   *models.TrainingReport `json:"report,omitempty"`
	Queue    *queue.Stats           `json:"queue,omitempty"`
}

type queueStats interface {
	Stats(ctx context.Context) (queue.Stats, error)
}

func (h *SaptaEchoHandler) Model(c echo.Context) error {
	info := ModelInfo{EngineStatus: h.engine.Status()}
	if h.trainer != nil {
		info.Training = h.trainer.Running()
		report, err := h.trainer.Report()
		switch {
		case err == nil:
			info.Report = report
		case !errors.Is(err, models.ErrModelUnavailable):
			h.logger.Warn("load training report failed", xlogger.Error(err))
		}
	}
	if qs, ok := h.queue.(queueStats); ok {
		st, err := qs.Stats(c.Request().Context())
		if err != nil {
			h.logger.Warn("queue stats failed", xlogger.Error(err))
		} else {
			info.Queue = &st
		}
	}
	return xhttp.SuccessResponse(c, info)
}

func (h *SaptaEchoHandler) ReloadModel(c echo.Context) error {
	var warnings []string
	if err := h.engine.Reload(); err != nil {
		h.logger.Warn("model reload reported errors", xlogger.Error(err))
		warnings = strings.Split(err.Error(), "\n")
	}
	return xhttp.SuccessResponse(c, map[string]any{
		"status":   h.engine.Status(),
		"warnings": warnings,
	})
}

// ResultSummary is the compact view used by listings.
type ResultSummary struct {
	Ticker        string            `json:"ticker"`
	Status        models.Status     `json:"status"`
	Confidence    models.Confidence `json:"confidence"`
	FinalScore    float64           `json:"final_score"`
	MLProbability *float64          `json:"ml_probability,omitempty"`
	WavePhase     models.WavePhase  `json:"wave_phase"`
	Window        string            `json:"projected_breakout_window,omitempty"`
	Reasons       []string          `json:"reasons"`
	Warnings      []string          `json:"warnings,omitempty"`
}

func summarize(r *models.AggregateResult) ResultSummary {
	return ResultSummary{
		Ticker:        r.Ticker,
		Status:        r.Status,
		Confidence:    r.Confidence,
		FinalScore:    r.FinalScore,
		MLProbability: r.MLProbability,
		WavePhase:     r.WavePhase,
		Window:        r.ProjectedWindow,
		Reasons:       r.Reasons,
		Warnings:      r.Warnings,
	}
}

func mapError(err error) error {
	var appErr *xhttp.AppError
	var shortage *models.TrainingShortageError
	switch {
	case errors.As(err, &appErr):
		return err
	case errors.As(err, &shortage):
		return xhttp.BadRequestError(shortage.Error()).
			WithParam("samples", shortage.Samples).
			WithParam("tickers", shortage.Tickers)
	case errors.Is(err, models.ErrTrainingInProgress):
		return xhttp.ConflictError(err.Error())
	case errors.Is(err, models.ErrProviderUnavailable):
		return xhttp.UnavailableError(err.Error()).WithError(err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return xhttp.UnavailableError("request cancelled").WithError(err)
	default:
		return xhttp.InternalError("analysis failed").WithError(err)
	}
}
