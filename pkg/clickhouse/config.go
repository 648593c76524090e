package clickhouse

import (
	"errors"
	"net"
	"strconv"
	"time"

	ch "github.com/ClickHouse/clickhouse-go/v2"
)

// Config describes one ClickHouse endpoint holding bar history and scan
// results.
type Config struct {
	Host     string
	Port     int
	Database string
	User     string
	Password string
	// HTTP talks to the HTTP interface (8123) instead of native TCP (9000).
	HTTP bool

	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	MaxExecution time.Duration
	// AsyncInsert lets the server buffer result inserts; WaitAsync makes the
	// insert return only once the buffer is flushed.
	AsyncInsert bool
	WaitAsync   bool

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	// ConnectAttempts bounds the initial ping; the server is often still
	// starting when the service comes up under compose.
	ConnectAttempts int
}

func (c *Config) setDefaults() {
	if c.Port == 0 {
		c.Port = 9000
		if c.HTTP {
			c.Port = 8123
		}
	}
	if c.Database == "" {
		c.Database = "default"
	}
	if c.DialTimeout <= 0 {
		c.DialTimeout = 5 * time.Second
	}
	if c.MaxOpenConns <= 0 {
		c.MaxOpenConns = 10
	}
	if c.MaxIdleConns <= 0 {
		c.MaxIdleConns = c.MaxOpenConns / 2
	}
	if c.ConnMaxLifetime <= 0 {
		c.ConnMaxLifetime = 5 * time.Minute
	}
	if c.ConnectAttempts <= 0 {
		c.ConnectAttempts = 3
	}
}

func (c Config) validate() error {
	if c.Host == "" {
		return errors.New("clickhouse: host is required")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return errors.New("clickhouse: port out of range")
	}
	return nil
}

// options maps c onto the driver options for database.
func (c Config) options(database string) *ch.Options {
	settings := ch.Settings{}
	if c.MaxExecution > 0 {
		settings["max_execution_time"] = int(c.MaxExecution / time.Second)
	}
	if c.AsyncInsert {
		settings["async_insert"] = 1
		if c.WaitAsync {
			settings["wait_for_async_insert"] = 1
		} else {
			settings["wait_for_async_insert"] = 0
		}
	}
	protocol := ch.Native
	if c.HTTP {
		protocol = ch.HTTP
	}
	return &ch.Options{
		Protocol: protocol,
		Addr:     []string{net.JoinHostPort(c.Host, strconv.Itoa(c.Port))},
		Auth: ch.Auth{
			Database: database,
			Username: c.User,
			Password: c.Password,
		},
		DialTimeout:     c.DialTimeout,
		ReadTimeout:     c.ReadTimeout,
		Settings:        settings,
		MaxOpenConns:    c.MaxOpenConns,
		MaxIdleConns:    c.MaxIdleConns,
		ConnMaxLifetime: c.ConnMaxLifetime,
	}
}
