package config

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/ninedomain/loreengine/internal/observability"
)

// Watcher reloads a config file on change and delivers the freshly decoded
// Config to subscribers. Watches the containing directory (not the file
// itself) so editors that replace-via-rename still trigger a reload,
// debounces bursts of events into a single reload, and keeps the watcher
// lifecycle cancelable.
type Watcher struct {
	path     string
	debounce time.Duration
	logger   *observability.Logger

	mu        sync.Mutex
	watcher   *fsnotify.Watcher
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	listeners []func(*Config, error)
}

// NewWatcher builds a Watcher for the config file at path. It does not
// start watching until Start is called.
func NewWatcher(path string, debounce time.Duration, logger *observability.Logger) *Watcher {
	if debounce <= 0 {
		debounce = 250 * time.Millisecond
	}
	return &Watcher{path: path, debounce: debounce, logger: logger}
}

// Subscribe registers fn to be called with the reloaded Config, or the
// error from a failed reload, every time the watched file changes. Must be
// called before Start.
func (w *Watcher) Subscribe(fn func(cfg *Config, err error)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.listeners = append(w.listeners, fn)
}

// Start begins watching the config file's directory in the background.
// Cancelling ctx, or calling Close, stops it.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.watcher != nil {
		w.mu.Unlock()
		return nil
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		w.mu.Unlock()
		return err
	}
	dir := filepath.Dir(w.path)
	if err := fw.Add(dir); err != nil {
		_ = fw.Close()
		w.mu.Unlock()
		return err
	}
	w.watcher = fw
	watchCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.mu.Unlock()

	w.wg.Add(1)
	go w.watchLoop(watchCtx)
	return nil
}

// Close stops the watcher and waits for its goroutine to exit.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.cancel != nil {
		w.cancel()
		w.cancel = nil
	}
	fw := w.watcher
	w.watcher = nil
	w.mu.Unlock()

	if fw != nil {
		_ = fw.Close()
	}
	w.wg.Wait()
	return nil
}

func (w *Watcher) watchLoop(ctx context.Context) {
	defer w.wg.Done()
	w.mu.Lock()
	fw := w.watcher
	w.mu.Unlock()
	if fw == nil {
		return
	}

	target := filepath.Clean(w.path)
	var timerMu sync.Mutex
	var timer *time.Timer
	scheduleReload := func() {
		timerMu.Lock()
		defer timerMu.Unlock()
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(w.debounce, w.reload)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-fw.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) != 0 {
				scheduleReload()
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return
			}
			w.logger.Warn(ctx, "config watch error", "error", err)
		}
	}
}

func (w *Watcher) reload() {
	cfg, err := Load(w.path)
	ctx := context.Background()
	if err != nil {
		w.logger.Warn(ctx, "config reload failed, keeping previous config", "path", w.path, "error", err)
	} else {
		w.logger.Info(ctx, "config reloaded", "path", w.path)
	}

	w.mu.Lock()
	listeners := make([]func(*Config, error), len(w.listeners))
	copy(listeners, w.listeners)
	w.mu.Unlock()

	for _, fn := range listeners {
		fn(cfg, err)
	}
}
