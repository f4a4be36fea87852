package watcher

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/kbukum/lifecycle/component"
	"github.com/kbukum/lifecycle/errors"
	"github.com/kbukum/lifecycle/logger"
	"github.com/kbukum/lifecycle/observability"
)

// ComponentName is the name the config watcher is registered under.
const ComponentName = "config-watcher"

// DefaultDebounce is how long the watcher waits after the last write before
// calling OnChange.
const DefaultDebounce = 100 * time.Millisecond

// ChangeFunc is called once per burst of writes to the watched file.
type ChangeFunc func(ctx context.Context) error

// Watcher is a component that watches a single file. fsnotify watches the
// parent directory so that editors replacing the file are still seen.
type Watcher struct {
	path     string
	debounce time.Duration
	onChange ChangeFunc
	log      *logger.Logger
	changes  atomic.Int64
	failures atomic.Int64

	mu      sync.Mutex
	fsw     *fsnotify.Watcher
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	pending *time.Timer
}

var (
	_ component.Component         = (*Watcher)(nil)
	_ component.Describable       = (*Watcher)(nil)
	_ observability.HealthChecker = (*Watcher)(nil)
)

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce overrides DefaultDebounce. Non-positive values are ignored.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) Option {
	return func(w *Watcher) { w.log = l.WithComponent("watcher") }
}

// New creates a stopped watcher for path.
func New(path string, onChange ChangeFunc, opts ...Option) (*Watcher, error) {
	if path == "" {
		return nil, errors.MissingField("path")
	}
	if onChange == nil {
		return nil, errors.MissingField("onChange")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, errors.InvalidInput("path", err.Error())
	}
	w := &Watcher{
		path:     abs,
		debounce: DefaultDebounce,
		onChange: onChange,
		log:      logger.WithComponent("watcher"),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Path returns the absolute path being watched.
func (w *Watcher) Path() string { return w.path }

// Changes returns how many times OnChange has been called.
func (w *Watcher) Changes() int64 { return w.changes.Load() }

// Start begins watching. A missing directory fails the start.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cancel != nil {
		return nil
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create file watcher: %w", err)
	}
	if err := fsw.Add(filepath.Dir(w.path)); err != nil {
		_ = fsw.Close()
		return fmt.Errorf("watch %s: %w", filepath.Dir(w.path), err)
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	w.fsw, w.cancel = fsw, cancel
	w.wg.Add(1)
	go w.loop(runCtx, fsw)

	w.log.Info("Watching config file", map[string]interface{}{
		"path":     w.path,
		"debounce": w.debounce.String(),
	})
	return nil
}

// Stop ends the watch loop and drops any pending change.
func (w *Watcher) Stop(_ context.Context) error {
	w.mu.Lock()
	if w.cancel == nil {
		w.mu.Unlock()
		return nil
	}
	w.cancel()
	if w.pending != nil {
		w.pending.Stop()
		w.pending = nil
	}
	fsw := w.fsw
	w.fsw, w.cancel = nil, nil
	w.mu.Unlock()

	err := fsw.Close()
	w.wg.Wait()
	return err
}

// Shutdown implements component.Component.
func (w *Watcher) Shutdown(ctx context.Context) error {
	return w.Stop(ctx)
}

func (w *Watcher) loop(ctx context.Context, fsw *fsnotify.Watcher) {
	defer w.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			w.schedule(ctx)
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			w.log.Warn("File watcher error", map[string]interface{}{
				"path":  w.path,
				"error": err.Error(),
			})
		}
	}
}

// schedule restarts the debounce timer.
func (w *Watcher) schedule(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.pending != nil {
		w.pending.Stop()
	}
	w.pending = time.AfterFunc(w.debounce, func() { w.fire(ctx) })
}

func (w *Watcher) fire(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	w.changes.Add(1)
	w.log.Info("Config file changed", map[string]interface{}{
		"path": w.path,
	})
	if err := w.onChange(ctx); err != nil {
		w.failures.Add(1)
		w.log.Exception("Config reload failed", err, map[string]interface{}{
			"path": w.path,
		})
		return
	}
	w.failures.Store(0)
}

// CheckHealth implements observability.HealthChecker. A failed reload
// degrades the watcher until the next successful one.
func (w *Watcher) CheckHealth(_ context.Context) observability.Health {
	w.mu.Lock()
	running := w.cancel != nil
	w.mu.Unlock()
	switch {
	case !running:
		return observability.Health{Name: ComponentName, Status: observability.HealthStatusDown, Message: "not watching"}
	case w.failures.Load() > 0:
		return observability.Health{
			Name:    ComponentName,
			Status:  observability.HealthStatusDegraded,
			Message: fmt.Sprintf("%d failed reloads", w.failures.Load()),
		}
	}
	return observability.Health{Name: ComponentName, Status: observability.HealthStatusUp, Message: w.path}
}

// Describe implements component.Describable.
func (w *Watcher) Describe() component.Description {
	return component.Description{Type: "watcher", Details: w.path}
}
