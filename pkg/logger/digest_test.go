package logger

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturePublisher struct {
	mu      sync.Mutex
	topic   string
	batches [][]DigestEntry
}

func (p *capturePublisher) PublishMessage(_ context.Context, topic string, payload interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topic = topic
	p.batches = append(p.batches, payload.([]DigestEntry))
	return nil
}

func TestDigestCollapsesRepeats(t *testing.T) {
	pub := &capturePublisher{}
	d := NewDigest(DigestConfig{Interval: time.Hour, MaxUnique: 10, Topic: "pulse.logs", Publisher: pub})

	lg := Nop()
	lg.AttachDigest(d)
	for _, ticker := range []string{"2330", "2317", "2454"} {
		lg.Error("fetch bars failed", String("ticker", ticker), Error(errors.New("timeout")))
	}
	lg.Warn("cache miss storm")
	assert.Equal(t, 2, d.Pending())

	lg.DetachDigest()

	pub.mu.Lock()
	defer pub.mu.Unlock()
	require.Len(t, pub.batches, 1)
	assert.Equal(t, "pulse.logs", pub.topic)
	counts := map[string]int{}
	for _, e := range pub.batches[0] {
		counts[e.Message] = e.Count
	}
	assert.Equal(t, 3, counts["fetch bars failed"])
	assert.Equal(t, 1, counts["cache miss storm"])
}

func TestDigestFlushesAtMaxUnique(t *testing.T) {
	pub := &capturePublisher{}
	d := NewDigest(DigestConfig{Interval: time.Hour, MaxUnique: 2, Publisher: pub})
	defer d.Close()

	d.Add("error", "a", nil, "x.go:1")
	d.Add("error", "b", nil, "x.go:2")
	assert.Zero(t, d.Pending())

	pub.mu.Lock()
	assert.Len(t, pub.batches, 1)
	pub.mu.Unlock()
}

func TestNewRejectsBadLevel(t *testing.T) {
	_, err := New(&Config{Level: "loud", Output: "stdout"})
	assert.Error(t, err)

	lg, err := New(&Config{Level: "info", Format: "json", Output: "stderr"})
	require.NoError(t, err)
	lg.With(String("component", "test")).Debug("suppressed")
}
