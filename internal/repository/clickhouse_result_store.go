package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/stanford201807/TW-Pulse-CLI-sub000/internal/domain/models"
	domrepo "github.com/stanford201807/TW-Pulse-CLI-sub000/internal/domain/repository"
	pkgch "github.com/stanford201807/TW-Pulse-CLI-sub000/pkg/clickhouse"
	applogger "github.com/stanford201807/TW-Pulse-CLI-sub000/pkg/logger"
)

// CHResultStore keeps scan results in ClickHouse. The full result is stored as JSON next
// to the columns used for filtering.
type CHResultStore struct {
	ch    *pkgch.Client
	db    *sql.DB
	table string
	l     *applogger.Logger
}

func NewCHResultStore(ch *pkgch.Client, table string, l *applogger.Logger) *CHResultStore {
	if l == nil {
		l = applogger.Nop()
	}
	return &CHResultStore{ch: ch, db: ch.DB(), table: table, l: l}
}

func (s *CHResultStore) Init(ctx context.Context) error {
	return s.ch.InitSchema(ctx, []string{pkgch.ResultTableDDL(s.table)})
}

func (s *CHResultStore) StoreBatch(ctx context.Context, results []*models.AggregateResult) error {
	if len(results) == 0 {
		return nil
	}
	values := make([]string, 0, len(results))
	args := make([]any, 0, len(results)*9)
	for _, r := range results {
		if r == nil || r.Ticker == "" {
			continue
		}
		payload, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("marshal result %s: %w", r.Ticker, err)
		}
		values = append(values, "(?, ?, ?, ?, ?, ?, ?, ?, ?)")
		args = append(args,
			r.Timestamp,
			r.Ticker,
			r.AsOf,
			string(r.Status),
			string(r.Confidence),
			r.FinalScore,
			r.WeightedScore,
			r.MLProbability,
			string(payload),
		)
	}
	if len(values) == 0 {
		return nil
	}
	q := fmt.Sprintf("INSERT INTO %s (ts, ticker, as_of, status, confidence, final_score, weighted_score, ml_probability, payload) VALUES %s",
		s.table, strings.Join(values, ","))
	if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
		s.l.Error("clickhouse store_results error",
			applogger.String("table", s.table),
			applogger.Int("rows", len(values)),
			applogger.Error(err),
		)
		return fmt.Errorf("insert results: %w", err)
	}
	return nil
}

func (s *CHResultStore) Latest(ctx context.Context, ticker string, limit int) ([]*models.AggregateResult, error) {
	q := fmt.Sprintf("SELECT payload FROM %s WHERE ticker = ? ORDER BY ts DESC LIMIT ?", s.table)
	rows, err := s.db.QueryContext(ctx, q, ticker, limit)
	if err != nil {
		return nil, fmt.Errorf("latest results: %w", err)
	}
	defer rows.Close()

	var out []*models.AggregateResult
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		var r models.AggregateResult
		if err := json.Unmarshal([]byte(payload), &r); err != nil {
			return nil, fmt.Errorf("decode result: %w", err)
		}
		out = append(out, &r)
	}
	return out, rows.Err()
}

// Close is a no-op; the connection pool is owned by the client.
func (s *CHResultStore) Close() error { return nil }

var _ domrepo.ResultStore = (*CHResultStore)(nil)
