package driver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"stackc/pkg/compiler"
)

// Watcher recompiles a single source file whenever it changes on disk.
//
// The containing directory is watched rather than the file itself so that
// editors which save by renaming a temporary file over the original are
// still seen.
type Watcher struct {
	driver   *Driver
	path     string
	watcher  *fsnotify.Watcher
	debounce *Debouncer

	mu      sync.Mutex
	running bool
}

// NewWatcher prepares a watcher for path. Call Close when done.
func (d *Driver) NewWatcher(path string) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %q: %w", path, err)
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	return &Watcher{
		driver:   d,
		path:     abs,
		watcher:  fw,
		debounce: NewDebouncer(d.cfg.Watch.Debounce),
	}, nil
}

// Watch compiles the file once, then again after every burst of changes,
// passing each outcome to onResult. It blocks until ctx is cancelled.
func (w *Watcher) Watch(ctx context.Context, onResult func(*compiler.Result, error)) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return errors.New("watcher already running")
	}
	w.running = true
	w.mu.Unlock()

	defer func() {
		w.mu.Lock()
		w.running = false
		w.mu.Unlock()
	}()

	if err := w.watcher.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("failed to watch %q: %w", w.path, err)
	}

	log := w.driver.log
	log.Info("watching", "path", w.path, "debounce", w.driver.cfg.Watch.Debounce)

	var mu sync.Mutex
	compile := func() {
		mu.Lock()
		defer mu.Unlock()
		onResult(w.driver.CompileFile(ctx, w.path))
	}
	compile()

	for {
		select {
		case <-ctx.Done():
			log.Info("watch stopped")
			w.debounce.Stop()
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return errors.New("watcher events channel closed")
			}
			if !w.relevant(event) {
				continue
			}
			log.Debug("file event", "path", event.Name, "op", event.Op.String())
			w.debounce.Trigger(compile)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return errors.New("watcher errors channel closed")
			}
			log.Error("watcher error", "error", err)
		}
	}
}

func (w *Watcher) relevant(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
		return false
	}
	return filepath.Clean(event.Name) == w.path
}

// Close releases the underlying fsnotify watcher.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}

// Debouncer runs the most recently triggered callback once no new trigger
// has arrived for the interval.
type Debouncer struct {
	interval time.Duration

	mu       sync.Mutex
	timer    *time.Timer
	callback func()
	stopped  bool
}

func NewDebouncer(interval time.Duration) *Debouncer {
	return &Debouncer{interval: interval}
}

// Trigger (re)starts the quiet period with callback as the pending action.
func (d *Debouncer) Trigger(callback func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	d.callback = callback
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.interval, func() {
		d.mu.Lock()
		cb := d.callback
		d.callback = nil
		stopped := d.stopped
		d.mu.Unlock()
		if cb != nil && !stopped {
			cb()
		}
	})
}

// Stop cancels any pending callback; later triggers are ignored.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.callback = nil
}

// ServeMetrics exposes the driver's collector over HTTP until ctx is
// cancelled. It returns immediately when metrics are disabled or no
// collector is attached.
func (d *Driver) ServeMetrics(ctx context.Context) error {
	mc := d.cfg.Metrics
	if !mc.Enabled || d.metrics == nil {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle(mc.Path, d.metrics.Handler())
	srv := &http.Server{
		Addr:              mc.ListenAddress,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		d.log.Info("serving metrics", "address", mc.ListenAddress, "path", mc.Path)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("metrics server: %w", err)
	}
}
