// Package scheduler runs named jobs on cron schedules.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	applogger "github.com/stanford201807/TW-Pulse-CLI-sub000/pkg/logger"
)

// JobFunc is one scheduled unit of work. ctx is cancelled on timeout or Stop.
type JobFunc func(ctx context.Context) error

type job struct {
	name    string
	spec    string
	timeout time.Duration
	fn      JobFunc
	id      cron.EntryID
}

// Scheduler wraps a cron runner. Runs of the same job never overlap.
type Scheduler struct {
	cron *cron.Cron
	loc  *time.Location
	l    *applogger.Logger

	mu   sync.Mutex
	jobs map[string]*job

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type Option func(*Scheduler)

// WithLocation interprets schedules in loc instead of time.Local.
func WithLocation(loc *time.Location) Option {
	return func(s *Scheduler) { s.loc = loc }
}

func New(l *applogger.Logger, opts ...Option) *Scheduler {
	if l == nil {
		l = applogger.Nop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		loc:    time.Local,
		l:      l,
		jobs:   make(map[string]*job),
		ctx:    ctx,
		cancel: cancel,
	}
	for _, o := range opts {
		o(s)
	}
	if s.loc == nil {
		s.loc = time.Local
	}
	s.cron = cron.New(
		cron.WithLocation(s.loc),
		cron.WithChain(cron.Recover(cronLogger{l})),
	)
	return s
}

// Add registers fn under a standard five-field spec or an @descriptor.
// An empty spec is a no-op so disabled schedules can be passed straight from config.
func (s *Scheduler) Add(name, spec string, timeout time.Duration, fn JobFunc) error {
	if spec == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[name]; ok {
		return fmt.Errorf("job %s already registered", name)
	}
	j := &job{name: name, spec: spec, timeout: timeout, fn: fn}
	wrapped := cron.NewChain(cron.SkipIfStillRunning(cronLogger{s.l})).
		Then(cron.FuncJob(func() { s.run(j) }))
	id, err := s.cron.AddJob(spec, wrapped)
	if err != nil {
		return fmt.Errorf("schedule %s (%q): %w", name, spec, err)
	}
	j.id = id
	s.jobs[name] = j
	return nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.mu.Lock()
	for _, j := range s.jobs {
		s.l.Info("Job scheduled",
			applogger.String("job", j.name),
			applogger.String("schedule", j.spec),
			applogger.String("next", s.cron.Entry(j.id).Next.Format(time.RFC3339)))
	}
	s.mu.Unlock()
}

// Stop halts the schedule, cancels running jobs and waits for them under ctx.
func (s *Scheduler) Stop(ctx context.Context) error {
	cronDone := s.cron.Stop()
	s.cancel()

	done := make(chan struct{})
	go func() {
		<-cronDone.Done()
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		s.l.Info("Scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunNow triggers an immediate run of a registered job and waits for it.
func (s *Scheduler) RunNow(name string) error {
	s.mu.Lock()
	j, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("job %s not registered", name)
	}
	return s.run(j)
}

// Next reports the next activation time of a job.
func (s *Scheduler) Next(name string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[name]
	if !ok {
		return time.Time{}, false
	}
	return s.cron.Entry(j.id).Next, true
}

func (s *Scheduler) run(j *job) error {
	s.wg.Add(1)
	defer s.wg.Done()

	ctx := s.ctx
	if j.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.timeout)
		defer cancel()
	}

	start := time.Now()
	s.l.Info("Starting scheduled job", applogger.String("job", j.name))
	if err := j.fn(ctx); err != nil {
		s.l.Error("Scheduled job failed",
			applogger.String("job", j.name),
			applogger.Duration("duration_ms", time.Since(start)),
			applogger.Error(err))
		return err
	}
	s.l.Info("Scheduled job completed",
		applogger.String("job", j.name),
		applogger.Duration("duration_ms", time.Since(start)))
	return nil
}

// cronLogger adapts the application logger to cron.Logger.
type cronLogger struct{ l *applogger.Logger }

func (c cronLogger) Info(msg string, kv ...interface{}) {
	c.l.Debug("cron: "+msg, kvFields(kv)...)
}

func (c cronLogger) Error(err error, msg string, kv ...interface{}) {
	c.l.Error("cron: "+msg, append(kvFields(kv), applogger.Error(err))...)
}

func kvFields(kv []interface{}) []applogger.Field {
	fields := make([]applogger.Field, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		fields = append(fields, applogger.Any(fmt.Sprint(kv[i]), kv[i+1]))
	}
	return fields
}
