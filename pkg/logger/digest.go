package logger

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"
)

// Publisher ships digest batches to an external sink (kafka topic, redis queue).
type Publisher interface {
	PublishMessage(ctx context.Context, topic string, payload interface{}) error
}

type DigestConfig struct {
	Interval  time.Duration // flush period
	MaxUnique int           // flush early once this many distinct entries are pending
	Topic     string
	Publisher Publisher
}

// DigestEntry is one distinct warn/error event with its repeat count.
type DigestEntry struct {
	Level     string                 `json:"level"`
	Message   string                 `json:"message"`
	Fields    map[string]interface{} `json:"fields"`
	Caller    string                 `json:"caller"`
	Count     int                    `json:"count"`
	FirstSeen time.Time              `json:"first_seen"`
	LastSeen  time.Time              `json:"last_seen"`
}

// Digest collapses repeated warnings and errors (a failing data source during a
// scan logs the same line per ticker) and publishes them in periodic batches.
type Digest struct {
	cfg     DigestConfig
	mu      sync.Mutex
	pending map[string]*DigestEntry
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	once    sync.Once
}

func NewDigest(cfg DigestConfig) *Digest {
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	if cfg.MaxUnique <= 0 {
		cfg.MaxUnique = 100
	}
	ctx, cancel := context.WithCancel(context.Background())
	d := &Digest{
		cfg:     cfg,
		pending: make(map[string]*DigestEntry),
		cancel:  cancel,
	}
	d.wg.Add(1)
	go d.loop(ctx)
	return d
}

// Add records an event. Entries are keyed by level, message, caller and the
// sorted field keys so per-ticker values collapse into one entry.
func (d *Digest) Add(level, message string, fields map[string]interface{}, caller string) {
	now := time.Now()
	key := digestKey(level, message, fields, caller)

	d.mu.Lock()
	defer d.mu.Unlock()
	if e, ok := d.pending[key]; ok {
		e.Count++
		e.LastSeen = now
		e.Fields = fields
	} else {
		d.pending[key] = &DigestEntry{
			Level:     level,
			Message:   message,
			Fields:    fields,
			Caller:    caller,
			Count:     1,
			FirstSeen: now,
			LastSeen:  now,
		}
	}
	if len(d.pending) >= d.cfg.MaxUnique {
		d.flushLocked()
	}
}

// Pending returns the number of distinct entries awaiting flush.
func (d *Digest) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}

func digestKey(level, message string, fields map[string]interface{}, caller string) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return strings.Join([]string{level, message, caller, strings.Join(keys, ",")}, "|")
}

func (d *Digest) loop(ctx context.Context) {
	defer d.wg.Done()
	ticker := time.NewTicker(d.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			d.mu.Lock()
			d.flushLocked()
			d.mu.Unlock()
		case <-ctx.Done():
			d.mu.Lock()
			d.flushLocked()
			d.mu.Unlock()
			return
		}
	}
}

func (d *Digest) flushLocked() {
	if len(d.pending) == 0 || d.cfg.Publisher == nil {
		return
	}
	batch := make([]DigestEntry, 0, len(d.pending))
	for _, e := range d.pending {
		batch = append(batch, *e)
	}
	d.pending = make(map[string]*DigestEntry)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := d.cfg.Publisher.PublishMessage(ctx, d.cfg.Topic, batch); err != nil {
		fmt.Fprintf(os.Stderr, "log digest publish failed: %v\n", err)
	}
}

// Close flushes pending entries and stops the background loop.
func (d *Digest) Close() {
	d.once.Do(func() {
		d.cancel()
		d.wg.Wait()
	})
}
