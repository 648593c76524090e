package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/stanford201807/TW-Pulse-CLI-sub000/pkg/logger"
)

// DefaultKeyPrefix namespaces the lists and sorted set the queue uses.
const DefaultKeyPrefix = "pulse:queue"

const (
	pollTimeout  = time.Second
	promoteEvery = time.Second
	promoteBatch = 100
)

// QueueMode selects which half of the queue a process runs.
type QueueMode int

const (
	ModeProducerConsumer QueueMode = iota
	ModeProducerOnly
)

// redisKeys are the four structures behind one queue:
// ready (list) -> processing (list) -> delayed (zset by due time) or dead (list).
type redisKeys struct {
	ready, processing, delayed, dead string
}

func keysFor(prefix string) redisKeys {
	return redisKeys{
		ready:      prefix + ":ready",
		processing: prefix + ":processing",
		delayed:    prefix + ":delayed",
		dead:       prefix + ":dead",
	}
}

// wireMessage is Message as stored in Redis; the payload stays raw until a
// job decodes it.
type wireMessage struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	Payload    json.RawMessage `json:"payload"`
	Attempt    int             `json:"attempt"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
}

// RedisQueue is an at-least-once queue on Redis lists. A message moves
// atomically from ready to processing while a worker owns it, so a crash
// leaves it in processing and the next Start puts it back. Only one
// consumer process per key prefix is supported.
type RedisQueue struct {
	l    *logger.Logger
	rdb  *redis.Client
	cfg  QueueConfig
	mode QueueMode
	keys redisKeys

	mu      sync.RWMutex
	jobs    map[string]Job
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// RedisQueueOption configures RedisQueue.
type RedisQueueOption func(*RedisQueue)

func WithKeyPrefix(prefix string) RedisQueueOption {
	return func(q *RedisQueue) {
		if prefix != "" {
			q.keys = keysFor(prefix)
		}
	}
}

func NewRedisQueue(lgr *logger.Logger, cfg *QueueConfig, rdb *redis.Client, mode QueueMode, opts ...RedisQueueOption) *RedisQueue {
	if lgr == nil {
		lgr = logger.Nop()
	}
	c := QueueConfig{}
	if cfg != nil {
		c = *cfg
	}
	if c.Workers <= 0 {
		c.Workers = 1
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = 10 * time.Second
	}
	q := &RedisQueue{
		l:    lgr.With(logger.Component("redis_queue")),
		rdb:  rdb,
		cfg:  c,
		mode: mode,
		keys: keysFor(DefaultKeyPrefix),
		jobs: make(map[string]Job),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// RegisterJob must be called before Start.
func (q *RedisQueue) RegisterJob(job Job) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, dup := q.jobs[job.Type()]; dup {
		q.l.Warn("job type registered twice", logger.String("type", job.Type()))
		return
	}
	q.jobs[job.Type()] = job
}

// Start checks the connection, requeues messages a previous process left
// in flight and starts the workers.
func (q *RedisQueue) Start() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.running {
		return errors.New("queue already running")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := q.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}

	runCtx, stop := context.WithCancel(context.Background())
	q.cancel = stop
	q.running = true

	if q.mode == ModeProducerOnly {
		q.l.Info("redis queue publishing", logger.String("ready", q.keys.ready))
		return nil
	}

	n, err := q.recover(ctx)
	if err != nil {
		q.l.Warn("requeue in-flight messages", logger.Error(err))
	} else if n > 0 {
		q.l.Info("requeued in-flight messages", logger.Int("count", n))
	}

	for i := 0; i < q.cfg.Workers; i++ {
		q.wg.Add(1)
		go q.work(runCtx, i)
	}
	q.wg.Add(1)
	go q.promote(runCtx)

	q.l.Info("redis queue started",
		logger.Int("workers", q.cfg.Workers),
		logger.Int("retry_limit", q.cfg.RetryLimit),
		logger.String("prefix", q.keys.ready),
	)
	return nil
}

// Stop cancels running jobs and waits for the workers until ctx expires.
func (q *RedisQueue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if !q.running {
		q.mu.Unlock()
		return nil
	}
	q.running = false
	q.cancel()
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		q.l.Info("redis queue stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for queue workers: %w", ctx.Err())
	}
}

// PublishMessage implements QueueService.
func (q *RedisQueue) PublishMessage(ctx context.Context, msgType string, payload interface{}) error {
	q.mu.RLock()
	running := q.running
	_, known := q.jobs[msgType]
	q.mu.RUnlock()
	if !running {
		return errors.New("queue not running")
	}
	if q.mode != ModeProducerOnly && !known {
		return fmt.Errorf("no job registered for message type %s", msgType)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", msgType, err)
	}
	raw, err := json.Marshal(wireMessage{
		ID:         uuid.NewString(),
		Type:       msgType,
		Payload:    body,
		EnqueuedAt: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}
	if err := q.rdb.LPush(ctx, q.keys.ready, raw).Err(); err != nil {
		return fmt.Errorf("enqueue %s: %w", msgType, err)
	}
	return nil
}

func (q *RedisQueue) Stats(ctx context.Context) (Stats, error) {
	pipe := q.rdb.Pipeline()
	ready := pipe.LLen(ctx, q.keys.ready)
	inFlight := pipe.LLen(ctx, q.keys.processing)
	delayed := pipe.ZCard(ctx, q.keys.delayed)
	dead := pipe.LLen(ctx, q.keys.dead)
	if _, err := pipe.Exec(ctx); err != nil {
		return Stats{}, fmt.Errorf("queue stats: %w", err)
	}
	return Stats{
		Pending:  ready.Val(),
		InFlight: inFlight.Val(),
		Retrying: delayed.Val(),
		Dead:     dead.Val(),
	}, nil
}

func (q *RedisQueue) recover(ctx context.Context) (int, error) {
	n := 0
	for {
		err := q.rdb.LMove(ctx, q.keys.processing, q.keys.ready, "RIGHT", "RIGHT").Err()
		if errors.Is(err, redis.Nil) {
			return n, nil
		}
		if err != nil {
			return n, err
		}
		n++
	}
}

func (q *RedisQueue) work(ctx context.Context, id int) {
	defer q.wg.Done()
	for ctx.Err() == nil {
		raw, err := q.rdb.BLMove(ctx, q.keys.ready, q.keys.processing, "RIGHT", "LEFT", pollTimeout).Result()
		switch {
		case err == nil:
			q.handle(ctx, raw)
		case errors.Is(err, redis.Nil), ctx.Err() != nil:
		default:
			q.l.Error("queue poll failed", logger.Int("worker", id), logger.Error(err))
			select {
			case <-time.After(pollTimeout):
			case <-ctx.Done():
			}
		}
	}
}

func (q *RedisQueue) handle(ctx context.Context, raw string) {
	var msg wireMessage
	if err := json.Unmarshal([]byte(raw), &msg); err != nil {
		q.l.Error("undecodable message moved to dead letters", logger.Error(err))
		q.settle(raw, q.keys.dead)
		return
	}
	q.mu.RLock()
	job, ok := q.jobs[msg.Type]
	q.mu.RUnlock()
	if !ok {
		q.l.Error("no job for message type", logger.String("type", msg.Type), logger.String("id", msg.ID))
		q.settle(raw, q.keys.dead)
		return
	}

	start := time.Now()
	err := runJob(ctx, job, msg.Payload)
	fields := []logger.Field{
		logger.String("id", msg.ID),
		logger.String("job", job.Name()),
		logger.Int("attempt", msg.Attempt+1),
		logger.Duration("elapsed", time.Since(start)),
	}
	switch {
	case err == nil:
		q.l.Debug("job done", fields...)
		q.settle(raw, "")
	case ctx.Err() != nil:
		// Stopped mid-job: leave it in processing for the next Start.
		q.l.Warn("job interrupted by shutdown", fields...)
	case msg.Attempt < q.cfg.RetryLimit:
		msg.Attempt++
		wait := backoff(q.cfg.RetryDelay, msg.Attempt)
		q.l.Warn("job failed, retrying", append(fields, logger.Error(err), logger.Duration("retry_in", wait))...)
		next, _ := json.Marshal(msg)
		q.settleRetry(raw, string(next), time.Now().Add(wait))
	default:
		q.l.Error("job failed, giving up", append(fields, logger.Error(err))...)
		q.settle(raw, q.keys.dead)
	}
}

func runJob(ctx context.Context, job Job, payload json.RawMessage) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job panicked: %v", r)
		}
	}()
	return job.Handle(ctx, payload)
}

// settle removes raw from processing and, when to is set, pushes it there.
func (q *RedisQueue) settle(raw, to string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	pipe := q.rdb.TxPipeline()
	pipe.LRem(ctx, q.keys.processing, 1, raw)
	if to != "" {
		pipe.LPush(ctx, to, raw)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		q.l.Error("settle message", logger.Error(err))
	}
}

func (q *RedisQueue) settleRetry(raw, next string, due time.Time) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	pipe := q.rdb.TxPipeline()
	pipe.LRem(ctx, q.keys.processing, 1, raw)
	pipe.ZAdd(ctx, q.keys.delayed, redis.Z{Score: float64(due.UnixMilli()), Member: next})
	if _, err := pipe.Exec(ctx); err != nil {
		q.l.Error("schedule retry", logger.Error(err))
	}
}

// promote moves delayed messages whose due time has passed back to ready.
func (q *RedisQueue) promote(ctx context.Context) {
	defer q.wg.Done()
	t := time.NewTicker(promoteEvery)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
		due, err := q.rdb.ZRangeByScore(ctx, q.keys.delayed, &redis.ZRangeBy{
			Min:   "-inf",
			Max:   strconv.FormatInt(time.Now().UnixMilli(), 10),
			Count: promoteBatch,
		}).Result()
		if err != nil {
			if ctx.Err() == nil {
				q.l.Warn("read delayed messages", logger.Error(err))
			}
			continue
		}
		for _, m := range due {
			if n, err := q.rdb.ZRem(ctx, q.keys.delayed, m).Result(); err != nil || n == 0 {
				continue
			}
			if err := q.rdb.LPush(ctx, q.keys.ready, m).Err(); err != nil {
				q.l.Error("requeue delayed message", logger.Error(err))
			}
		}
	}
}

var _ QueueService = (*RedisQueue)(nil)
