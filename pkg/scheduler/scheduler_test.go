package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddValidation(t *testing.T) {
	s := New(nil)
	noop := func(context.Context) error { return nil }

	require.NoError(t, s.Add("disabled", "", 0, noop))
	_, ok := s.Next("disabled")
	assert.False(t, ok, "empty spec registers nothing")

	require.NoError(t, s.Add("scan", "30 14 * * 1-5", time.Minute, noop))
	assert.ErrorContains(t, s.Add("scan", "0 3 * * 0", 0, noop), "already registered")
	assert.ErrorContains(t, s.Add("bad", "every day", 0, noop), "schedule bad")
}

func TestRunNow(t *testing.T) {
	s := New(nil)
	var deadline time.Time
	require.NoError(t, s.Add("retrain", "0 3 * * 0", time.Minute, func(ctx context.Context) error {
		deadline, _ = ctx.Deadline()
		return errors.New("boom")
	}))

	err := s.RunNow("retrain")
	assert.EqualError(t, err, "boom")
	assert.WithinDuration(t, time.Now().Add(time.Minute), deadline, 5*time.Second)

	assert.ErrorContains(t, s.RunNow("missing"), "not registered")
}

func TestScheduledRunAndStop(t *testing.T) {
	loc, err := time.LoadLocation("UTC")
	require.NoError(t, err)
	s := New(nil, WithLocation(loc))

	var runs atomic.Int32
	release := make(chan struct{})
	require.NoError(t, s.Add("tick", "@every 1s", 0, func(ctx context.Context) error {
		runs.Add(1)
		select {
		case <-release:
		case <-ctx.Done():
		}
		return ctx.Err()
	}))

	next, ok := s.Next("tick")
	require.True(t, ok)
	assert.True(t, next.IsZero(), "next is unknown until start")

	s.Start()
	require.Eventually(t, func() bool { return runs.Load() >= 1 }, 3*time.Second, 20*time.Millisecond)

	// The first run is still blocked, so further ticks are skipped.
	time.Sleep(1200 * time.Millisecond)
	assert.Equal(t, int32(1), runs.Load())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))
	close(release)
}
