package kafka

import (
	"errors"
	"time"

	"github.com/creasty/defaults"
	"github.com/prometheus/client_golang/prometheus"

	applogger "github.com/stanford201807/TW-Pulse-CLI-sub000/pkg/logger"
)

// ProducerConfig tunes the writer behind Producer. Zero fields take the
// default tag.
type ProducerConfig struct {
	Brokers []string
	// RequiredAcks: -1 all in-sync replicas, 1 leader only.
	RequiredAcks int    `default:"-1"`
	Compression  string `default:"gzip"`
	MaxAttempts  int    `default:"3"`

	WriteTimeout time.Duration `default:"10s"`
	ReadTimeout  time.Duration `default:"10s"`
	BatchSize    int           `default:"100"`
	BatchBytes   int           `default:"1048576"`
	BatchTimeout time.Duration `default:"1s"`
	Async        bool
	// HashByKey keeps every message of one ticker on one partition.
	HashByKey bool
}

// ConsumerConfig tunes Consumer. Zero fields take the default tag.
type ConsumerConfig struct {
	Brokers []string
	GroupID string `default:"pulse"`
	Workers int    `default:"1"`
	// BufferSize is the fetched-but-unhandled message backlog.
	BufferSize int `default:"10"`

	RetryMax      int           `default:"3"`
	BackoffMin    time.Duration `default:"50ms"`
	BackoffMax    time.Duration `default:"2s"`
	HandleTimeout time.Duration `default:"30s"`
	// DLQTopic receives messages that exhausted retries. Empty drops nothing:
	// the offset stays uncommitted instead.
	DLQTopic string

	MinBytes int `default:"10000"`
	MaxBytes int `default:"10000000"`
}

var errNoBrokers = errors.New("kafka: brokers are required")

func (c *ProducerConfig) prepare() error {
	if len(c.Brokers) == 0 {
		return errNoBrokers
	}
	return defaults.Set(c)
}

func (c *ConsumerConfig) prepare() error {
	if len(c.Brokers) == 0 {
		return errNoBrokers
	}
	return defaults.Set(c)
}

// Option wires process-wide dependencies into a producer or consumer.
type Option func(*deps)

type deps struct {
	l   *applogger.Logger
	reg prometheus.Registerer
}

func WithLogger(l *applogger.Logger) Option {
	return func(d *deps) { d.l = l }
}

// WithMetrics registers the client's collectors on reg.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(d *deps) { d.reg = reg }
}

func collect(component string, opts []Option) deps {
	var d deps
	for _, opt := range opts {
		opt(&d)
	}
	if d.l == nil {
		d.l = applogger.Nop()
	}
	d.l = d.l.With(applogger.Component(component))
	return d
}
