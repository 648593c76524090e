package breaker

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stanford201807/TW-Pulse-CLI-sub000/internal/domain/models"
)

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	b := New("bars", Config{MaxFailures: 2, Interval: time.Minute, Timeout: time.Minute}, nil)
	boom := errors.New("boom")
	fail := func() (any, error) { return nil, boom }

	_, err := b.Execute(fail)
	assert.ErrorIs(t, err, boom)
	_, err = b.Execute(fail)
	assert.ErrorIs(t, err, boom)

	_, err = b.Execute(func() (any, error) { return 1, nil })
	assert.ErrorIs(t, err, models.ErrProviderUnavailable)
	assert.Equal(t, "open", b.State())
}

func TestBreakerPassesValues(t *testing.T) {
	b := New("bars", Config{}, nil)
	v, err := b.Execute(func() (any, error) { return 42, nil })
	require.NoError(t, err)
	assert.Equal(t, 42, v)
}
