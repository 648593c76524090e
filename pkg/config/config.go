package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // schedules default to Asia/Taipei

	"github.com/creasty/defaults"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"github.com/stanford201807/TW-Pulse-CLI-sub000/internal/domain/models"
)

type Config struct {
	Environment string             `yaml:"environment" default:"development"`
	Log         LogConfig          `yaml:"log"`
	Server      ServerConfig       `yaml:"server"`
	Metrics     MetricsConfig      `yaml:"metrics"`
	Sapta       models.SaptaConfig `yaml:"sapta"`
	Training    TrainingConfig     `yaml:"training"`
	Model       ModelConfig        `yaml:"model"`
	Scanner     ScannerConfig      `yaml:"scanner"`
	Bars        BarsConfig         `yaml:"bars"`
	Cache       CacheConfig        `yaml:"cache"`
	ClickHouse  ClickHouseConfig   `yaml:"clickhouse"`
	Postgres    PostgresConfig     `yaml:"postgres"`
	Redis       RedisConfig        `yaml:"redis"`
	Kafka       KafkaConfig        `yaml:"kafka"`
	Queue       QueueConfig        `yaml:"queue"`
	Schedule    ScheduleConfig     `yaml:"schedule"`
	Predictor   PredictorConfig    `yaml:"predictor"`
	Universe    UniverseConfig     `yaml:"universe"`
}

type LogConfig struct {
	Level  string `yaml:"level" default:"info"`
	Format string `yaml:"format" default:"console"`
	Output string `yaml:"output" default:"stderr"`
	Digest struct {
		Enabled   bool          `yaml:"enabled"`
		Interval  time.Duration `yaml:"interval" default:"30s"`
		MaxUnique int           `yaml:"max_unique" default:"100"`
		Topic     string        `yaml:"topic" default:"pulse.log.digest"`
	} `yaml:"digest"`
}

type ServerConfig struct {
	Host            string        `yaml:"host" default:"0.0.0.0"`
	Port            int           `yaml:"port" default:"8080"`
	ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" default:"120s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"15s"`
	SlowRequest     time.Duration `yaml:"slow_request" default:"5s"`
	CORS            bool          `yaml:"cors" default:"true"`
	CORSOrigins     []string      `yaml:"cors_origins"`
}

type MetricsConfig struct {
	Enabled bool `yaml:"enabled" default:"true"`
}

// TrainingConfig extends the learner settings with run defaults.
type TrainingConfig struct {
	models.TrainingConfig `yaml:",inline"`
	Mode                  string `yaml:"mode" default:"walk_forward"`
	PeriodDays            int    `yaml:"period_days" default:"1825"`
}

type ModelConfig struct {
	Dir           string        `yaml:"dir" default:"data/models"`
	Watch         bool          `yaml:"watch" default:"true"`
	WatchDebounce time.Duration `yaml:"watch_debounce" default:"500ms"`
}

type ScannerConfig struct {
	Concurrency   int    `yaml:"concurrency" default:"8"`
	ProgressEvery int    `yaml:"progress_every" default:"10"`
	PeriodDays    int    `yaml:"period_days" default:"365"`
	MinStatus     string `yaml:"min_status" default:"WATCHLIST"`
	Limit         int    `yaml:"limit" default:"50"`
}

type BarsConfig struct {
	Source    string  `yaml:"source" default:"csv"`
	CSVDir    string  `yaml:"csv_dir" default:"data/bars"`
	Table     string  `yaml:"table" default:"daily_bars"`
	RateLimit float64 `yaml:"rate_limit" default:"20"`
	Burst     int     `yaml:"burst" default:"5"`
	Breaker   struct {
		MaxFailures uint32        `yaml:"max_failures" default:"5"`
		Interval    time.Duration `yaml:"interval" default:"60s"`
		Timeout     time.Duration `yaml:"timeout" default:"30s"`
	} `yaml:"breaker"`
	Topic string `yaml:"updates_topic" default:"pulse.bars.updated"`
}

type CacheConfig struct {
	Backend   string        `yaml:"backend" default:"memory"`
	TTL       time.Duration `yaml:"ttl" default:"15m"`
	BadgerDir string        `yaml:"badger_dir" default:"data/cache"`
	Prefix    string        `yaml:"prefix" default:"pulse:bars:"`
}

type ClickHouseConfig struct {
	Host             string        `yaml:"host" default:"localhost"`
	Port             int           `yaml:"port" default:"9000"`
	Database         string        `yaml:"database" default:"pulse"`
	User             string        `yaml:"user" default:"default"`
	Password         string        `yaml:"password"`
	UseHTTP          bool          `yaml:"use_http"`
	AsyncInsert      bool          `yaml:"async_insert"`
	WaitForAsync     bool          `yaml:"wait_for_async_insert"`
	DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
	ReadTimeout      time.Duration `yaml:"read_timeout" default:"30s"`
	MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"60s"`
	ResultsTable     string        `yaml:"results_table" default:"sapta_results"`
	StoreResults     bool          `yaml:"store_results"`
}

type PostgresConfig struct {
	DSN             string        `yaml:"dsn"`
	Table           string        `yaml:"table" default:"daily_bars"`
	MaxOpenConns    int           `yaml:"max_open_conns" default:"10"`
	MaxIdleConns    int           `yaml:"max_idle_conns" default:"5"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" default:"30m"`
	QueryTimeout    time.Duration `yaml:"query_timeout" default:"30s"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr" default:"localhost:6379"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type KafkaConfig struct {
	Enabled      bool     `yaml:"enabled"`
	Brokers      []string `yaml:"brokers"`
	ResultsTopic string   `yaml:"results_topic" default:"pulse.sapta.results"`
	RequiredAcks int      `yaml:"required_acks" default:"-1"`
	Compression  string   `yaml:"compression" default:"gzip"`
	Producer     struct {
		MaxAttempts  int           `yaml:"max_attempts" default:"3"`
		Linger       time.Duration `yaml:"linger" default:"1s"`
		BatchBytes   int           `yaml:"batch_bytes" default:"1048576"`
		BatchSize    int           `yaml:"batch_size" default:"100"`
		WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
		ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
		Async        bool          `yaml:"async"`
	} `yaml:"producer"`
	Consumer struct {
		Enabled    bool          `yaml:"enabled"`
		GroupID    string        `yaml:"group_id" default:"pulse-sapta"`
		Workers    int           `yaml:"workers" default:"4"`
		BufferSize int           `yaml:"buffer_size" default:"64"`
		RetryMax   int           `yaml:"retry_max" default:"3"`
		BackoffMin time.Duration `yaml:"backoff_min" default:"50ms"`
		BackoffMax time.Duration `yaml:"backoff_max" default:"2s"`
		DLQTopic   string        `yaml:"dlq_topic" default:"pulse.bars.updated.dlq"`
		MinBytes   int           `yaml:"min_bytes" default:"10000"`
		MaxBytes   int           `yaml:"max_bytes" default:"10000000"`
	} `yaml:"consumer"`
}

type QueueConfig struct {
	Backend    string        `yaml:"backend" default:"local"`
	Workers    int           `yaml:"workers" default:"1"`
	QueueSize  int           `yaml:"queue_size" default:"16"`
	RetryLimit int           `yaml:"retry_limit" default:"1"`
	RetryDelay time.Duration `yaml:"retry_delay" default:"1m"`
	KeyPrefix  string        `yaml:"key_prefix" default:"pulse:queue"`
}

// ScheduleConfig holds standard five-field cron specs. Empty disables a job.
type ScheduleConfig struct {
	Scan     string `yaml:"scan"`
	Retrain  string `yaml:"retrain"`
	Timezone string `yaml:"timezone" default:"Asia/Taipei"`
}

type PredictorConfig struct {
	Kind     string        `yaml:"kind" default:"local"`
	URL      string        `yaml:"url"`
	Timeout  time.Duration `yaml:"timeout" default:"3s"`
	Attempts int           `yaml:"attempts" default:"2"`
}

type UniverseConfig struct {
	File string `yaml:"file" default:"config/tickers.json"`
}

// Default returns a fully defaulted config that needs no external service.
func Default() *Config {
	var c Config
	if err := defaults.Set(&c); err != nil {
		panic(fmt.Sprintf("config defaults: %v", err))
	}
	return &c
}

// Load reads and parses a YAML configuration file on top of the defaults.
func Load(path string) (*Config, error) {
	c, err := load(path)
	if err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	c := Default()
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
// An empty path starts from Default().
func LoadWithEnv(path string) (*Config, error) {
	c := Default()
	if path != "" {
		var err error
		if c, err = load(path); err != nil {
			return nil, err
		}
	}
	if err := c.applyEnv(os.Getenv); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func (c *Config) applyEnv(getenv func(string) string) error {
	if v := getenv("PULSE_ENV"); v != "" {
		c.Environment = v
	}
	if v := getenv("PULSE_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := getenv("PULSE_BAR_SOURCE"); v != "" {
		c.Bars.Source = v
	}
	if v := getenv("PULSE_MODEL_DIR"); v != "" {
		c.Model.Dir = v
	}
	if v := getenv("PULSE_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("PULSE_PORT: %w", err)
		}
		c.Server.Port = port
	}
	if v := getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
		c.Kafka.Enabled = true
	}
	if v := getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
	}
	if v := getenv("POSTGRES_DSN"); v != "" {
		c.Postgres.DSN = v
	}
	return nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return errors.New("environment is required")
	}
	if err := c.Sapta.Validate(); err != nil {
		return fmt.Errorf("sapta: %w", err)
	}
	if err := c.Training.Validate(); err != nil {
		return fmt.Errorf("training: %w", err)
	}
	switch models.TrainMode(c.Training.Mode) {
	case models.TrainModeSimple, models.TrainModeWalkForward:
	default:
		return fmt.Errorf("training.mode must be 'simple' or 'walk_forward', got '%s'", c.Training.Mode)
	}
	if _, err := models.ParseStatus(c.Scanner.MinStatus); err != nil {
		return fmt.Errorf("scanner.min_status: %w", err)
	}
	if c.Scanner.Concurrency <= 0 {
		return errors.New("scanner.concurrency must be > 0")
	}

	switch c.Bars.Source {
	case "csv", "memory", "clickhouse":
	case "postgres":
		if c.Postgres.DSN == "" {
			return errors.New("postgres.dsn is required when bars.source is 'postgres'")
		}
	default:
		return fmt.Errorf("bars.source must be one of csv|memory|clickhouse|postgres, got '%s'", c.Bars.Source)
	}
	switch c.Cache.Backend {
	case "memory", "redis", "badger", "none":
	default:
		return fmt.Errorf("cache.backend must be one of memory|redis|badger|none, got '%s'", c.Cache.Backend)
	}
	switch c.Queue.Backend {
	case "local", "redis":
	default:
		return fmt.Errorf("queue.backend must be 'local' or 'redis', got '%s'", c.Queue.Backend)
	}
	if (c.Cache.Backend == "redis" || c.Queue.Backend == "redis") && c.Redis.Addr == "" {
		return errors.New("redis.addr is required by the redis cache or queue")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return errors.New("kafka.brokers cannot be empty when kafka is enabled")
	}
	switch c.Predictor.Kind {
	case "local":
	case "http":
		if c.Predictor.URL == "" {
			return errors.New("predictor.url is required for the http predictor")
		}
	default:
		return fmt.Errorf("predictor.kind must be 'local' or 'http', got '%s'", c.Predictor.Kind)
	}

	for name, spec := range map[string]string{"schedule.scan": c.Schedule.Scan, "schedule.retrain": c.Schedule.Retrain} {
		if spec == "" {
			continue
		}
		if _, err := cron.ParseStandard(spec); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	if c.Schedule.Timezone != "" {
		if _, err := time.LoadLocation(c.Schedule.Timezone); err != nil {
			return fmt.Errorf("schedule.timezone: %w", err)
		}
	}
	return nil
}
