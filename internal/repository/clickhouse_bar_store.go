package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/stanford201807/TW-Pulse-CLI-sub000/internal/domain/models"
	domrepo "github.com/stanford201807/TW-Pulse-CLI-sub000/internal/domain/repository"
	pkgch "github.com/stanford201807/TW-Pulse-CLI-sub000/pkg/clickhouse"
	applogger "github.com/stanford201807/TW-Pulse-CLI-sub000/pkg/logger"
)

const barInsertChunk = 2000

// CHBarStore reads and writes daily bars in ClickHouse.
type CHBarStore struct {
	db    *sql.DB
	table string
	l     *applogger.Logger
}

func NewCHBarStore(ch *pkgch.Client, table string, l *applogger.Logger) *CHBarStore {
	if l == nil {
		l = applogger.Nop()
	}
	return &CHBarStore{db: ch.DB(), table: table, l: l}
}

func (s *CHBarStore) GetBars(ctx context.Context, ticker string, from, to time.Time) (models.Bars, error) {
	start := time.Now()
	q := fmt.Sprintf(`
        SELECT date, open, high, low, close, volume
        FROM %s FINAL
        WHERE ticker = ? AND date >= ? AND date <= ?
        ORDER BY date ASC
    `, s.table)
	out, err := s.query(ctx, "get_bars", ticker, q, ticker, from, to)
	if err != nil {
		return nil, err
	}
	s.l.Debug("clickhouse get_bars ok",
		applogger.String("table", s.table),
		applogger.String("ticker", ticker),
		applogger.Int("rows", len(out)),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return out, nil
}

func (s *CHBarStore) GetLatestNBars(ctx context.Context, ticker string, n int) (models.Bars, error) {
	q := fmt.Sprintf(`
        SELECT date, open, high, low, close, volume
        FROM %s FINAL
        WHERE ticker = ?
        ORDER BY date DESC
        LIMIT ?
    `, s.table)
	out, err := s.query(ctx, "latest_bars", ticker, q, ticker, n)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

func (s *CHBarStore) query(ctx context.Context, op, ticker, q string, args ...any) (models.Bars, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		s.l.Error("clickhouse "+op+" query error",
			applogger.String("table", s.table),
			applogger.String("ticker", ticker),
			applogger.Error(err),
		)
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	out := make(models.Bars, 0, 512)
	for rows.Next() {
		var b models.Bar
		if err := rows.Scan(&b.Date, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			s.l.Error("clickhouse "+op+" scan error",
				applogger.String("table", s.table),
				applogger.String("ticker", ticker),
				applogger.Error(err),
			)
			return nil, fmt.Errorf("scan bar: %w", err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}

// StoreBars inserts bars in multi-row chunks. The table is a ReplacingMergeTree, so
// re-importing a date overwrites it.
func (s *CHBarStore) StoreBars(ctx context.Context, ticker string, bars models.Bars) error {
	for start := 0; start < len(bars); start += barInsertChunk {
		end := min(start+barInsertChunk, len(bars))
		values := make([]string, 0, end-start)
		args := make([]any, 0, (end-start)*7)
		for _, b := range bars[start:end] {
			values = append(values, "(?, ?, ?, ?, ?, ?, ?)")
			args = append(args, b.Date, ticker, b.Open, b.High, b.Low, b.Close, b.Volume)
		}
		q := fmt.Sprintf("INSERT INTO %s (date, ticker, open, high, low, close, volume) VALUES %s",
			s.table, strings.Join(values, ","))
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			s.l.Error("clickhouse store_bars error",
				applogger.String("table", s.table),
				applogger.String("ticker", ticker),
				applogger.Int("rows", end-start),
				applogger.Error(err),
			)
			return fmt.Errorf("insert bars %s: %w", ticker, err)
		}
	}
	return nil
}

var (
	_ domrepo.BarStore  = (*CHBarStore)(nil)
	_ domrepo.BarWriter = (*CHBarStore)(nil)
)
