package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/stanford201807/TW-Pulse-CLI-sub000/internal/domain/models"
	domrepo "github.com/stanford201807/TW-Pulse-CLI-sub000/internal/domain/repository"
	applogger "github.com/stanford201807/TW-Pulse-CLI-sub000/pkg/logger"
)

// PostgresConfig configures the Postgres bar source.
type PostgresConfig struct {
	DSN             string        `yaml:"dsn"`
	Table           string        `yaml:"table" default:"daily_bars"`
	MaxOpenConns    int           `yaml:"max_open_conns" default:"10"`
	MaxIdleConns    int           `yaml:"max_idle_conns" default:"5"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" default:"30m"`
	QueryTimeout    time.Duration `yaml:"query_timeout" default:"30s"`
}

// PostgresBarStore reads daily bars from a table (ticker, date, open, high, low, close, volume).
type PostgresBarStore struct {
	db      *sqlx.DB
	table   string
	timeout time.Duration
	l       *applogger.Logger
}

// OpenPostgres connects and pings the database.
func OpenPostgres(ctx context.Context, cfg PostgresConfig) (*sqlx.DB, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("postgres dsn is required")
	}
	db, err := sqlx.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("postgres open: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	return db, nil
}

func NewPostgresBarStore(db *sqlx.DB, cfg PostgresConfig, l *applogger.Logger) *PostgresBarStore {
	if l == nil {
		l = applogger.Nop()
	}
	timeout := cfg.QueryTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	table := cfg.Table
	if table == "" {
		table = "daily_bars"
	}
	return &PostgresBarStore{db: db, table: table, timeout: timeout, l: l}
}

type pgBar struct {
	Date   time.Time `db:"date"`
	Open   float64   `db:"open"`
	High   float64   `db:"high"`
	Low    float64   `db:"low"`
	Close  float64   `db:"close"`
	Volume float64   `db:"volume"`
}

func toBars(rows []pgBar) models.Bars {
	out := make(models.Bars, len(rows))
	for i, r := range rows {
		out[i] = models.Bar{Date: r.Date, Open: r.Open, High: r.High, Low: r.Low, Close: r.Close, Volume: r.Volume}
	}
	return out
}

func (s *PostgresBarStore) GetBars(ctx context.Context, ticker string, from, to time.Time) (models.Bars, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	q := fmt.Sprintf(`
		SELECT date, open, high, low, close, volume
		FROM %s
		WHERE ticker = $1 AND date >= $2 AND date <= $3
		ORDER BY date ASC`, s.table)
	var rows []pgBar
	if err := s.db.SelectContext(ctx, &rows, q, ticker, from, to); err != nil {
		s.l.Error("postgres get_bars error",
			applogger.String("table", s.table),
			applogger.String("ticker", ticker),
			applogger.Error(err),
		)
		return nil, fmt.Errorf("get bars %s: %w", ticker, err)
	}
	return toBars(rows), nil
}

func (s *PostgresBarStore) GetLatestNBars(ctx context.Context, ticker string, n int) (models.Bars, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	q := fmt.Sprintf(`
		SELECT date, open, high, low, close, volume FROM (
			SELECT date, open, high, low, close, volume
			FROM %s WHERE ticker = $1
			ORDER BY date DESC LIMIT $2
		) t ORDER BY date ASC`, s.table)
	var rows []pgBar
	if err := s.db.SelectContext(ctx, &rows, q, ticker, n); err != nil {
		return nil, fmt.Errorf("latest bars %s: %w", ticker, err)
	}
	return toBars(rows), nil
}

// StoreBars upserts bars inside one transaction.
func (s *PostgresBarStore) StoreBars(ctx context.Context, ticker string, bars models.Bars) error {
	if len(bars) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout*time.Duration(len(bars)/1000+1))
	defer cancel()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(`
		INSERT INTO %s (ticker, date, open, high, low, close, volume)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (ticker, date) DO UPDATE SET
			open = EXCLUDED.open, high = EXCLUDED.high, low = EXCLUDED.low,
			close = EXCLUDED.close, volume = EXCLUDED.volume`, s.table))
	if err != nil {
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	for _, b := range bars {
		if _, err := stmt.ExecContext(ctx, ticker, b.Date, b.Open, b.High, b.Low, b.Close, b.Volume); err != nil {
			return fmt.Errorf("upsert %s %s: %w", ticker, b.Date.Format(time.DateOnly), err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

var (
	_ domrepo.BarStore  = (*PostgresBarStore)(nil)
	_ domrepo.BarWriter = (*PostgresBarStore)(nil)
)
