package queue

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/stanford201807/TW-Pulse-CLI-sub000/pkg/logger"
)

// LocalQueue runs jobs in-process. It is used when no Redis is configured; messages
// are lost on restart.
type LocalQueue struct {
	logger *logger.Logger
	jobs   map[string]Job
	msgs   chan Message
	busy   atomic.Int64
	wg     sync.WaitGroup
	once   sync.Once
	ctx    context.Context
	cancel context.CancelFunc
}

// NewLocalQueue starts workers goroutines consuming a buffer of size queueSize.
func NewLocalQueue(lgr *logger.Logger, workers, queueSize int, jobs ...Job) *LocalQueue {
	if lgr == nil {
		lgr = logger.Nop()
	}
	if workers <= 0 {
		workers = 1
	}
	if queueSize <= 0 {
		queueSize = 16
	}
	ctx, cancel := context.WithCancel(context.Background())
	q := &LocalQueue{
		logger: lgr.With(logger.String("component", "local_queue")),
		jobs:   make(map[string]Job, len(jobs)),
		msgs:   make(chan Message, queueSize),
		ctx:    ctx,
		cancel: cancel,
	}
	for _, j := range jobs {
		q.jobs[j.Type()] = j
	}
	for i := 0; i < workers; i++ {
		q.wg.Add(1)
		go q.worker()
	}
	return q
}

// PublishMessage enqueues without blocking; a full buffer is an error.
func (q *LocalQueue) PublishMessage(ctx context.Context, msgType string, payload interface{}) error {
	if _, ok := q.jobs[msgType]; !ok {
		return fmt.Errorf("no job registered for message type %s", msgType)
	}
	if q.ctx.Err() != nil {
		return fmt.Errorf("queue stopped")
	}
	msg := Message{ID: uuid.NewString(), Type: msgType, Payload: payload, EnqueuedAt: time.Now().UTC()}
	select {
	case q.msgs <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return fmt.Errorf("queue full")
	}
}

func (q *LocalQueue) worker() {
	defer q.wg.Done()
	for {
		select {
		case <-q.ctx.Done():
			return
		case msg := <-q.msgs:
			q.process(msg)
		}
	}
}

func (q *LocalQueue) process(msg Message) {
	job := q.jobs[msg.Type]
	q.busy.Add(1)
	defer q.busy.Add(-1)
	defer func() {
		if r := recover(); r != nil {
			q.logger.Error("job panicked", logger.String("type", msg.Type), logger.Any("panic", r))
		}
	}()
	if err := job.Handle(q.ctx, msg.Payload); err != nil {
		q.logger.Error("job failed",
			logger.String("id", msg.ID),
			logger.String("type", msg.Type),
			logger.Error(err),
		)
		return
	}
	q.logger.Debug("job done", logger.String("id", msg.ID), logger.String("type", msg.Type))
}

// Stats reports buffered and running messages. Failed jobs are not retried.
func (q *LocalQueue) Stats(context.Context) (Stats, error) {
	return Stats{Pending: int64(len(q.msgs)), InFlight: q.busy.Load()}, nil
}

// Stop cancels running jobs and waits for workers.
func (q *LocalQueue) Stop(ctx context.Context) error {
	q.once.Do(q.cancel)
	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

var _ QueueService = (*LocalQueue)(nil)
