package usecase

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	applogger "github.com/stanford201807/TW-Pulse-CLI-sub000/pkg/logger"
)

const defaultReloadDebounce = 500 * time.Millisecond

// Reloader swaps in freshly written artifacts.
type Reloader interface {
	Reload() error
}

// ModelWatcher reloads the engine when artifact files in the model directory change.
// Bursts of events (a retrain writes four files) collapse into one reload.
type ModelWatcher struct {
	dir      string
	files    map[string]struct{}
	target   Reloader
	debounce time.Duration
	logger   *applogger.Logger
}

func NewModelWatcher(dir string, files []string, target Reloader, debounce time.Duration, lgr *applogger.Logger) *ModelWatcher {
	if debounce <= 0 {
		debounce = defaultReloadDebounce
	}
	if lgr == nil {
		lgr = applogger.Nop()
	}
	set := make(map[string]struct{}, len(files))
	for _, f := range files {
		set[f] = struct{}{}
	}
	return &ModelWatcher{dir: dir, files: set, target: target, debounce: debounce, logger: lgr}
}

// Run blocks until ctx is done.
func (w *ModelWatcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fw.Close()
	if err := fw.Add(w.dir); err != nil {
		return fmt.Errorf("watch %s: %w", w.dir, err)
	}
	w.logger.Info("watching model directory", applogger.String("dir", w.dir))

	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !w.relevant(ev) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(w.debounce)
			}
			fire = timer.C
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("model watcher error", applogger.Error(err))
		case <-fire:
			fire = nil
			if err := w.target.Reload(); err != nil {
				w.logger.Warn("artifact reload reported errors", applogger.Error(err))
				continue
			}
			w.logger.Info("artifacts reloaded", applogger.String("dir", w.dir))
		}
	}
}

func (w *ModelWatcher) relevant(ev fsnotify.Event) bool {
	if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Rename) && !ev.Has(fsnotify.Remove) {
		return false
	}
	if len(w.files) == 0 {
		return true
	}
	_, ok := w.files[filepath.Base(ev.Name)]
	return ok
}
