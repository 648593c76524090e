// Package clickhouse opens the analytical store used for daily bars and
// scan results.
package clickhouse

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	ch "github.com/ClickHouse/clickhouse-go/v2"
)

// codeUnknownDatabase is the server error for a missing database.
const codeUnknownDatabase = 81

// Client wraps a database/sql pool on the ClickHouse driver.
type Client struct {
	db       *sql.DB
	database string
}

// NewClient connects to cfg.Database, creating it first when the server
// reports it missing.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	cfg.setDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	db := ch.OpenDB(cfg.options(cfg.Database))
	err := ping(ctx, db, cfg.ConnectAttempts)
	if isUnknownDatabase(err) {
		_ = db.Close()
		if err := createDatabase(ctx, cfg); err != nil {
			return nil, err
		}
		db = ch.OpenDB(cfg.options(cfg.Database))
		err = ping(ctx, db, 1)
	}
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("clickhouse %s:%d: %w", cfg.Host, cfg.Port, err)
	}
	return &Client{db: db, database: cfg.Database}, nil
}

func createDatabase(ctx context.Context, cfg Config) error {
	boot := ch.OpenDB(cfg.options("default"))
	defer boot.Close()
	if _, err := boot.ExecContext(ctx, "CREATE DATABASE IF NOT EXISTS "+quoteIdent(cfg.Database)); err != nil {
		return fmt.Errorf("create database %s: %w", cfg.Database, err)
	}
	return nil
}

func ping(ctx context.Context, db *sql.DB, attempts int) error {
	var err error
	for i := 1; i <= attempts; i++ {
		if err = db.PingContext(ctx); err == nil || isUnknownDatabase(err) {
			return err
		}
		if i == attempts {
			break
		}
		select {
		case <-time.After(time.Duration(i) * time.Second):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

func isUnknownDatabase(err error) bool {
	var exc *ch.Exception
	return errors.As(err, &exc) && exc.Code == codeUnknownDatabase
}

// quoteIdent backquotes a database or table name.
func quoteIdent(name string) string {
	out := make([]byte, 0, len(name)+2)
	out = append(out, '`')
	for i := 0; i < len(name); i++ {
		if name[i] == '`' || name[i] == '\\' {
			out = append(out, '\\')
		}
		out = append(out, name[i])
	}
	return string(append(out, '`'))
}

func (c *Client) DB() *sql.DB { return c.db }

// Database is the database every unqualified table lives in.
func (c *Client) Database() string { return c.database }

// Table qualifies name with the client's database.
func (c *Client) Table(name string) string {
	return quoteIdent(c.database) + "." + quoteIdent(name)
}

func (c *Client) Health(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

func (c *Client) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}

// InitSchema runs idempotent DDL in order.
func (c *Client) InitSchema(ctx context.Context, stmts []string) error {
	for _, stmt := range stmts {
		if _, err := c.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}
