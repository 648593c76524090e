package api

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/stanford201807/TW-Pulse-CLI-sub000/internal/domain/models"
	xhttp "github.com/stanford201807/TW-Pulse-CLI-sub000/pkg/http"
	xlogger "github.com/stanford201807/TW-Pulse-CLI-sub000/pkg/logger"
)

const streamWriteWait = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// StreamFrame is one websocket message of a streamed scan.
type StreamFrame struct {
	Type    string         `json:"type"`
	Done    int            `json:"done,omitempty"`
	Total   int            `json:"total,omitempty"`
	Result  *ResultSummary `json:"result,omitempty"`
	Matched int            `json:"matched,omitempty"`
	Message string         `json:"message,omitempty"`
}

// frameWriter serialises writes; gorilla connections allow one concurrent writer.
type frameWriter struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (w *frameWriter) send(f StreamFrame) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	_ = w.conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
	return w.conn.WriteJSON(f)
}

// ScanStream runs a scan and pushes progress, each kept result and a final summary
// over a websocket. Closing the socket cancels the scan.
func (h *SaptaEchoHandler) ScanStream(c echo.Context) error {
	req := &models.ScanRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	ctx, cancel := context.WithCancel(c.Request().Context())
	defer cancel()

	tickers, opts, err := h.scanInput(ctx, req)
	if err != nil {
		return xhttp.AppErrorResponse(c, err)
	}

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", xlogger.Error(err))
		return nil
	}
	defer conn.Close()

	// reader: any read error means the client went away
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	w := &frameWriter{conn: conn}
	opts.Progress = func(done, total int) {
		if err := w.send(StreamFrame{Type: "progress", Done: done, Total: total}); err != nil {
			cancel()
		}
	}
	opts.OnResult = func(r *models.AggregateResult) {
		s := summarize(r)
		if err := w.send(StreamFrame{Type: "result", Result: &s}); err != nil {
			cancel()
		}
	}

	results, err := h.scanner.Scan(ctx, tickers, opts)
	if err != nil {
		h.logger.Warn("streamed scan ended", xlogger.Int("tickers", len(tickers)), xlogger.Error(err))
		_ = w.send(StreamFrame{Type: "error", Message: err.Error()})
		return nil
	}
	_ = w.send(StreamFrame{Type: "done", Total: len(tickers), Matched: len(results)})

	w.mu.Lock()
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "scan complete"),
		time.Now().Add(time.Second))
	w.mu.Unlock()
	return nil
}
