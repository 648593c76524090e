package queue

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type trainPayload struct {
	Tickers []string `json:"tickers"`
	Mode    string   `json:"mode"`
}

func TestParsePayloadFromDecodedMap(t *testing.T) {
	p, err := ParsePayload[trainPayload](map[string]interface{}{
		"tickers": []interface{}{"2330", "2317"},
		"mode":    "walk_forward",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"2330", "2317"}, p.Tickers)
	assert.Equal(t, "walk_forward", p.Mode)
}

func TestParsePayloadFromRawMessage(t *testing.T) {
	p, err := ParsePayload[trainPayload](json.RawMessage(`{"mode":"simple"}`))
	require.NoError(t, err)
	assert.Equal(t, "simple", p.Mode)
}

func TestParsePayloadPassesTypedValues(t *testing.T) {
	in := trainPayload{Mode: "simple"}
	p, err := ParsePayload[trainPayload](in)
	require.NoError(t, err)
	assert.Equal(t, in, *p)

	_, err = ParsePayload[trainPayload](42)
	assert.Error(t, err)
}

type recordJob struct {
	mu   sync.Mutex
	got  []interface{}
	fail bool
}

func (j *recordJob) Name() string { return "record" }
func (j *recordJob) Type() string { return "test.record" }
func (j *recordJob) Handle(_ context.Context, payload interface{}) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.got = append(j.got, payload)
	if j.fail {
		return errors.New("job failed")
	}
	return nil
}

func (j *recordJob) count() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.got)
}

func TestLocalQueueRunsJobs(t *testing.T) {
	job := &recordJob{}
	q := NewLocalQueue(nil, 2, 4, job)
	defer func() { _ = q.Stop(context.Background()) }()

	require.NoError(t, q.PublishMessage(context.Background(), "test.record", "a"))
	require.NoError(t, q.PublishMessage(context.Background(), "test.record", "b"))
	assert.Eventually(t, func() bool { return job.count() == 2 }, time.Second, 5*time.Millisecond)

	assert.Error(t, q.PublishMessage(context.Background(), "unknown", nil))
}

func TestLocalQueueRejectsAfterStop(t *testing.T) {
	q := NewLocalQueue(nil, 1, 1, &recordJob{fail: true})
	require.NoError(t, q.Stop(context.Background()))
	assert.Error(t, q.PublishMessage(context.Background(), "test.record", nil))
}

func TestBackoffDoubles(t *testing.T) {
	assert.Equal(t, 10*time.Second, backoff(10*time.Second, 1))
	assert.Equal(t, 40*time.Second, backoff(10*time.Second, 3))
	assert.Equal(t, backoff(time.Second, 10), backoff(time.Second, 50))
}

func TestLocalQueueStats(t *testing.T) {
	block := make(chan struct{})
	job := &blockingJob{release: block}
	q := NewLocalQueue(nil, 1, 4, job)
	defer func() { _ = q.Stop(context.Background()) }()

	require.NoError(t, q.PublishMessage(context.Background(), job.Type(), nil))
	require.NoError(t, q.PublishMessage(context.Background(), job.Type(), nil))
	assert.Eventually(t, func() bool {
		st, _ := q.Stats(context.Background())
		return st.InFlight == 1 && st.Pending == 1
	}, time.Second, 5*time.Millisecond)
	close(block)
}

type blockingJob struct{ release chan struct{} }

func (j *blockingJob) Name() string { return "blocking" }
func (j *blockingJob) Type() string { return "test.blocking" }
func (j *blockingJob) Handle(ctx context.Context, _ interface{}) error {
	select {
	case <-j.release:
	case <-ctx.Done():
	}
	return nil
}

func TestRedisQueueKeysAndLifecycle(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 100 * time.Millisecond, MaxRetries: -1})
	defer rdb.Close()

	q := NewRedisQueue(nil, &QueueConfig{RetryLimit: 2}, rdb, ModeProducerConsumer, WithKeyPrefix("test:train"))
	assert.Equal(t, "test:train:ready", q.keys.ready)
	assert.Equal(t, "test:train:dead", q.keys.dead)
	assert.Equal(t, 10*time.Second, q.cfg.RetryDelay)

	q.RegisterJob(&recordJob{})
	assert.Error(t, q.PublishMessage(context.Background(), "test.record", "x"), "not started")
	assert.Error(t, q.Start(), "redis is unreachable")
	assert.NoError(t, q.Stop(context.Background()))
}
