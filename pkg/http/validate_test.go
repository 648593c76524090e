package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type lookupReq struct {
	Ticker string `query:"ticker" json:"ticker" validate:"required,ticker"`
	Days   int    `query:"days" json:"days" default:"90" validate:"gte=30,lte=400"`
	Side   string `query:"side" json:"side" default:"long" validate:"oneof=long short"`
}

func bindQuery(t *testing.T, query string) (*lookupReq, []ValidationError) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/?"+query, nil)
	c := e.NewContext(req, httptest.NewRecorder())
	out := &lookupReq{}
	return out, ReadAndValidateRequest(c, out)
}

func TestReadAndValidateRequest(t *testing.T) {
	got, errs := bindQuery(t, "ticker=2330")
	require.Nil(t, errs)
	assert.Equal(t, 90, got.Days)
	assert.Equal(t, "long", got.Side)

	_, errs = bindQuery(t, "ticker=2330.tw&days=45&side=short")
	assert.Nil(t, errs)
}

func TestValidationMessagesUseWireNames(t *testing.T) {
	_, errs := bindQuery(t, "days=10")
	require.Len(t, errs, 2)
	assert.Equal(t, "ERR_REQUIRED", errs[0].Code)
	assert.Equal(t, "ticker", errs[0].Field)
	assert.Equal(t, "ticker is required", errs[0].Message)
	assert.Equal(t, "ERR_GTE", errs[1].Code)
	assert.Equal(t, "days", errs[1].Field)
	assert.Equal(t, "30", errs[1].Params["min"])

	_, errs = bindQuery(t, "ticker=23%2030&side=flat")
	require.Len(t, errs, 2)
	assert.Equal(t, "ERR_TICKER", errs[0].Code)
	assert.Contains(t, errs[0].Message, "ticker symbol")
	assert.Equal(t, []string{"long", "short"}, errs[1].Params["options"])
}

func TestReadAndValidateRequestMalformedBody(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("{"))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	c := e.NewContext(req, httptest.NewRecorder())
	errs := ReadAndValidateRequest(c, &lookupReq{})
	require.Len(t, errs, 1)
	assert.Equal(t, "ERR_MALFORMED", errs[0].Code)
}

func TestMustRegisterRuleTwicePanics(t *testing.T) {
	assert.Panics(t, func() {
		MustRegisterRule("ticker", func(string) bool { return true }, "dup")
	})
}

func TestAppErrorResponse(t *testing.T) {
	e := echo.New()
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{ConflictError("training already running"), http.StatusConflict, "ERR_CONFLICT"},
		{NotFoundErrorf("%s: not enough history", "2330").WithParam("bars", 12), http.StatusNotFound, "ERR_NOT_FOUND"},
		{UnavailableError("bars unavailable").WithError(errors.New("dial tcp")), http.StatusServiceUnavailable, "ERR_UNAVAILABLE"},
		{errors.New("boom"), http.StatusInternalServerError, "ERR_INTERNAL"},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
		require.NoError(t, AppErrorResponse(c, tc.err))
		assert.Equal(t, tc.status, rec.Code)

		var body struct {
			Status int         `json:"status"`
			Data   []*AppError `json:"data"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		require.Len(t, body.Data, 1)
		assert.Equal(t, tc.code, body.Data[0].Code)
		assert.NotContains(t, rec.Body.String(), "dial tcp")
		assert.NotContains(t, rec.Body.String(), "boom")
	}
}

func TestClientJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "k", r.Header.Get("X-Api-Key"))
		if r.URL.Path == "/missing" {
			http.Error(w, "no such model", http.StatusNotFound)
			return
		}
		var in map[string]int
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		_ = json.NewEncoder(w).Encode(map[string]int{"sum": in["a"] + in["b"]})
	}))
	defer srv.Close()

	c := NewClient(WithHeader("X-Api-Key", "k"))
	var out struct{ Sum int }
	require.NoError(t, c.JSON(context.Background(), MethodPost, srv.URL+"/add", map[string]int{"a": 2, "b": 3}, &out))
	assert.Equal(t, 5, out.Sum)

	err := c.JSON(context.Background(), MethodGet, srv.URL+"/missing", nil, nil)
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusNotFound, se.Code)
	assert.Equal(t, "no such model", se.Body)
	assert.False(t, Retryable(err))
	assert.True(t, Retryable(&StatusError{Code: http.StatusBadGateway}))
}
