package api

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stanford201807/TW-Pulse-CLI-sub000/internal/domain/models"
)

func TestScanStreamPushesFrames(t *testing.T) {
	sc := &fakeScanner{results: []*models.AggregateResult{sampleResult("2330", 82, models.StatusPreMarkup)}}
	e := newTestEcho(NewSaptaEchoHandler(SaptaDeps{Engine: &fakeEngine{}, Scanner: sc}))
	srv := httptest.NewServer(e)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/sapta/scan/ws?tickers=2330,2317"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	var frames []StreamFrame
	for {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		var f StreamFrame
		if err := conn.ReadJSON(&f); err != nil {
			break
		}
		frames = append(frames, f)
	}

	require.Len(t, frames, 4)
	assert.Equal(t, StreamFrame{Type: "progress", Done: 1, Total: 2}, frames[0])
	assert.Equal(t, "progress", frames[1].Type)
	assert.Equal(t, "result", frames[2].Type)
	require.NotNil(t, frames[2].Result)
	assert.Equal(t, "2330", frames[2].Result.Ticker)
	assert.Equal(t, StreamFrame{Type: "done", Total: 2, Matched: 1}, frames[3])
}

func TestScanStreamRejectsBadRequestBeforeUpgrade(t *testing.T) {
	e := newTestEcho(NewSaptaEchoHandler(SaptaDeps{Engine: &fakeEngine{}, Scanner: &fakeScanner{}}))
	srv := httptest.NewServer(e)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/sapta/scan/ws?min_status=GREAT"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, 400, resp.StatusCode)
}
