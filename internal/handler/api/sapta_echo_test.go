package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stanford201807/TW-Pulse-CLI-sub000/internal/domain/models"
	"github.com/stanford201807/TW-Pulse-CLI-sub000/internal/repository"
	"github.com/stanford201807/TW-Pulse-CLI-sub000/internal/usecase"
	"github.com/stanford201807/TW-Pulse-CLI-sub000/pkg/queue"
)

type fakeEngine struct {
	result    *models.AggregateResult
	err       error
	reloadErr error
	gotTicker string
	gotPeriod int
	reloads   int
}

func (f *fakeEngine) AnalyzePeriod(_ context.Context, ticker string, days int) (*models.AggregateResult, error) {
	f.gotTicker, f.gotPeriod = ticker, days
	return f.result, f.err
}

func (f *fakeEngine) Status() usecase.EngineStatus {
	return usecase.EngineStatus{ModelLoaded: f.reloads > 0, Thresholds: models.Thresholds{PreMarkup: 80, Siap: 65, Watchlist: 50}}
}

func (f *fakeEngine) Reload() error {
	f.reloads++
	return f.reloadErr
}

type fakeScanner struct {
	mu      sync.Mutex
	tickers []string
	opts    usecase.ScanOptions
	results []*models.AggregateResult
	err     error
}

func (f *fakeScanner) Scan(_ context.Context, tickers []string, opts usecase.ScanOptions) ([]*models.AggregateResult, error) {
	f.mu.Lock()
	f.tickers, f.opts = tickers, opts
	f.mu.Unlock()
	for i := range tickers {
		if opts.Progress != nil {
			opts.Progress(i+1, len(tickers))
		}
	}
	for _, r := range f.results {
		if opts.OnResult != nil {
			opts.OnResult(r)
		}
	}
	return f.results, f.err
}

type fakeTrainer struct {
	running bool
	result  *models.TrainResult
	err     error
	params  usecase.TrainParams
	report  *models.TrainingReport
}

func (f *fakeTrainer) Run(_ context.Context, p usecase.TrainParams) (*models.TrainResult, error) {
	f.params = p
	return f.result, f.err
}
func (f *fakeTrainer) Running() bool { return f.running }
func (f *fakeTrainer) Report() (*models.TrainingReport, error) {
	if f.report == nil {
		return nil, models.ErrModelUnavailable
	}
	return f.report, nil
}

type fakeQueue struct {
	msgType string
	payload interface{}
	err     error
}

func (q *fakeQueue) PublishMessage(_ context.Context, msgType string, payload interface{}) error {
	q.msgType, q.payload = msgType, payload
	return q.err
}

type apiResponse struct {
	Status  int             `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func sampleResult(ticker string, score float64, status models.Status) *models.AggregateResult {
	return &models.AggregateResult{
		Ticker:     ticker,
		FinalScore: score,
		Status:     status,
		Confidence: models.ConfidenceMedium,
		Reasons:    []string{"compression"},
		Modules:    []models.ModuleScore{{Module: models.ModuleCompression, Score: 10, MaxScore: 15}},
	}
}

func newTestEcho(h *SaptaEchoHandler) *echo.Echo {
	e := echo.New()
	h.RegisterRoutes(e)
	return e
}

func do(t *testing.T, e *echo.Echo, method, target, body string) (int, apiResponse) {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	var out apiResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return rec.Code, out
}

func TestAnalyzeEndpoint(t *testing.T) {
	eng := &fakeEngine{result: sampleResult("2330", 72, models.StatusSiap)}
	e := newTestEcho(NewSaptaEchoHandler(SaptaDeps{Engine: eng}))

	code, resp := do(t, e, http.MethodGet, "/api/sapta/analyze?ticker=%202330%20", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "2330", eng.gotTicker)
	assert.Equal(t, 365, eng.gotPeriod)
	var sum ResultSummary
	require.NoError(t, json.Unmarshal(resp.Data, &sum))
	assert.Equal(t, models.StatusSiap, sum.Status)
	assert.NotContains(t, string(resp.Data), `"modules"`)

	code, resp = do(t, e, http.MethodGet, "/api/sapta/analyze?ticker=2330&detailed=true&period_days=730", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 730, eng.gotPeriod)
	assert.Contains(t, string(resp.Data), `"modules"`)
}

func TestAnalyzeEndpointErrors(t *testing.T) {
	eng := &fakeEngine{}
	e := newTestEcho(NewSaptaEchoHandler(SaptaDeps{Engine: eng}))

	code, resp := do(t, e, http.MethodGet, "/api/sapta/analyze", "")
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, string(resp.Data), "ERR_REQUIRED")

	code, _ = do(t, e, http.MethodGet, "/api/sapta/analyze?ticker=2330&period_days=30", "")
	assert.Equal(t, http.StatusBadRequest, code)

	code, resp = do(t, e, http.MethodGet, "/api/sapta/analyze?ticker=2330", "")
	assert.Equal(t, http.StatusNotFound, code)
	assert.Contains(t, string(resp.Data), "not enough history")

	eng.err = models.ErrProviderUnavailable
	code, _ = do(t, e, http.MethodGet, "/api/sapta/analyze?ticker=2330", "")
	assert.Equal(t, http.StatusServiceUnavailable, code)

	eng.err = errors.New("boom")
	code, _ = do(t, e, http.MethodGet, "/api/sapta/analyze?ticker=2330", "")
	assert.Equal(t, http.StatusInternalServerError, code)
}

func TestScanEndpoint(t *testing.T) {
	sc := &fakeScanner{results: []*models.AggregateResult{
		sampleResult("2330", 82, models.StatusPreMarkup),
		sampleResult("2317", 66, models.StatusSiap),
	}}
	h := NewSaptaEchoHandler(SaptaDeps{
		Engine:   &fakeEngine{},
		Scanner:  sc,
		Universe: repository.StaticUniverse{"2454", "3008"},
	})
	e := newTestEcho(h)

	code, resp := do(t, e, http.MethodGet, "/api/sapta/scan?tickers=2330,2317&min_status=SIAP&limit=5", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, []string{"2330", "2317"}, sc.tickers)
	assert.Equal(t, models.StatusSiap, sc.opts.MinStatus)
	assert.Equal(t, 5, sc.opts.Limit)

	var list struct {
		Rows  []ResultSummary `json:"rows"`
		Total int64           `json:"total"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &list))
	assert.EqualValues(t, 2, list.Total)
	assert.Equal(t, "2330", list.Rows[0].Ticker)

	code, _ = do(t, e, http.MethodGet, "/api/sapta/scan", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, []string{"2454", "3008"}, sc.tickers)
	assert.Equal(t, models.StatusWatchlist, sc.opts.MinStatus)

	code, _ = do(t, e, http.MethodGet, "/api/sapta/scan?min_status=GREAT", "")
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestTrainEndpoint(t *testing.T) {
	tr := &fakeTrainer{result: &models.TrainResult{ModelPath: "data/models/sapta_model.json"}}
	q := &fakeQueue{}
	e := newTestEcho(NewSaptaEchoHandler(SaptaDeps{Engine: &fakeEngine{}, Trainer: tr, Queue: q}))

	code, _ := do(t, e, http.MethodPost, "/api/sapta/train", `{"tickers":["2330","2317"],"mode":"simple"}`)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, models.TrainModeSimple, tr.params.Mode)
	assert.Equal(t, 10, tr.params.Step)
	assert.Equal(t, 1825, tr.params.PeriodDays)

	code, _ = do(t, e, http.MethodPost, "/api/sapta/train", `{"async":true}`)
	require.Equal(t, http.StatusAccepted, code)
	assert.Equal(t, usecase.TrainJobType, q.msgType)
	p, ok := q.payload.(usecase.TrainParams)
	require.True(t, ok)
	assert.Equal(t, models.TrainModeWalkForward, p.Mode)

	tr.err = &models.TrainingShortageError{Samples: 10, Tickers: 2, MinSamples: 100, MinTickers: 5}
	code, resp := do(t, e, http.MethodPost, "/api/sapta/train", `{}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, string(resp.Data), "training data shortage")

	tr.running = true
	code, _ = do(t, e, http.MethodPost, "/api/sapta/train", `{}`)
	assert.Equal(t, http.StatusConflict, code)

	code, _ = do(t, e, http.MethodPost, "/api/sapta/train", `{"mode":"deep"}`)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestTrainAsyncWithoutQueue(t *testing.T) {
	e := newTestEcho(NewSaptaEchoHandler(SaptaDeps{Engine: &fakeEngine{}, Trainer: &fakeTrainer{}}))
	code, _ := do(t, e, http.MethodPost, "/api/sapta/train", `{"async":true}`)
	assert.Equal(t, http.StatusServiceUnavailable, code)
}

func TestModelEndpoints(t *testing.T) {
	eng := &fakeEngine{reloadErr: errors.New("thresholds.json: invalid")}
	tr := &fakeTrainer{report: &models.TrainingReport{ModelInfo: models.ModelInfo{Mode: models.TrainModeWalkForward}}}
	e := newTestEcho(NewSaptaEchoHandler(SaptaDeps{Engine: eng, Trainer: tr}))

	code, resp := do(t, e, http.MethodGet, "/api/sapta/model", "")
	require.Equal(t, http.StatusOK, code)
	var info ModelInfo
	require.NoError(t, json.Unmarshal(resp.Data, &info))
	require.NotNil(t, info.Report)
	assert.Equal(t, models.TrainModeWalkForward, info.Report.Mode)
	assert.False(t, info.ModelLoaded)

	code, resp = do(t, e, http.MethodPost, "/api/sapta/model/reload", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 1, eng.reloads)
	assert.Contains(t, string(resp.Data), "thresholds.json: invalid")
}

func TestResultsEndpoint(t *testing.T) {
	e := newTestEcho(NewSaptaEchoHandler(SaptaDeps{Engine: &fakeEngine{}}))
	code, _ := do(t, e, http.MethodGet, "/api/sapta/results?ticker=2330", "")
	assert.Equal(t, http.StatusServiceUnavailable, code)
}

func TestModelReportsQueueDepth(t *testing.T) {
	q := queue.NewLocalQueue(nil, 1, 4)
	t.Cleanup(func() { _ = q.Stop(context.Background()) })
	e := newTestEcho(NewSaptaEchoHandler(SaptaDeps{Engine: &fakeEngine{}, Queue: q}))

	code, resp := do(t, e, http.MethodGet, "/api/sapta/model", "")
	require.Equal(t, http.StatusOK, code)
	var info ModelInfo
	require.NoError(t, json.Unmarshal(resp.Data, &info))
	require.NotNil(t, info.Queue)
	assert.Zero(t, info.Queue.Pending)
}
