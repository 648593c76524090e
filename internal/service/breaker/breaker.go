// Package breaker guards the bar provider with a circuit breaker.
package breaker

import (
	"errors"
	"time"

	cb "github.com/sony/gobreaker"

	"github.com/stanford201807/TW-Pulse-CLI-sub000/internal/domain/models"
	applogger "github.com/stanford201807/TW-Pulse-CLI-sub000/pkg/logger"
)

type Config struct {
	MaxFailures uint32        `yaml:"max_failures" default:"5"`
	Interval    time.Duration `yaml:"interval" default:"60s"`
	Timeout     time.Duration `yaml:"timeout" default:"30s"`
}

type Breaker struct{ cb *cb.CircuitBreaker }

func New(name string, cfg Config, lgr *applogger.Logger) *Breaker {
	if lgr == nil {
		lgr = applogger.Nop()
	}
	if cfg.MaxFailures == 0 {
		cfg.MaxFailures = 5
	}
	st := cb.Settings{Name: name, Interval: cfg.Interval, Timeout: cfg.Timeout}
	st.ReadyToTrip = func(counts cb.Counts) bool {
		return counts.ConsecutiveFailures >= cfg.MaxFailures
	}
	st.OnStateChange = func(name string, from, to cb.State) {
		lgr.Warn("circuit breaker state changed",
			applogger.String("breaker", name),
			applogger.String("from", from.String()),
			applogger.String("to", to.String()),
		)
	}
	return &Breaker{cb: cb.NewCircuitBreaker(st)}
}

// Execute runs fn through the breaker. An open circuit yields models.ErrProviderUnavailable.
func (b *Breaker) Execute(fn func() (any, error)) (any, error) {
	v, err := b.cb.Execute(fn)
	if errors.Is(err, cb.ErrOpenState) || errors.Is(err, cb.ErrTooManyRequests) {
		return nil, models.ErrProviderUnavailable
	}
	return v, err
}

func (b *Breaker) State() string { return b.cb.State().String() }
