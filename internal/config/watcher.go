package config

import (
	"fmt"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const reloadDebounce = 500 * time.Millisecond

// Watcher reloads configuration when files in the loader's directory
// change and hands the new value to registered callbacks. A reload that
// fails validation is logged and discarded; the previous value stays live.
type Watcher struct {
	loader *Loader
	logger *zap.Logger

	mu        sync.RWMutex
	current   *Config
	callbacks []func(old, new *Config)

	fs     *fsnotify.Watcher
	stopCh chan struct{}
	once   sync.Once
}

// NewWatcher starts watching the loader's directory.
func NewWatcher(loader *Loader, initial *Config, logger *zap.Logger) (*Watcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create file watcher: %w", err)
	}
	if err := fs.Add(loader.Dir()); err != nil {
		fs.Close()
		return nil, fmt.Errorf("watch %s: %w", loader.Dir(), err)
	}

	w := &Watcher{
		loader:  loader,
		logger:  logger.Named("config"),
		current: initial,
		fs:      fs,
		stopCh:  make(chan struct{}),
	}
	go w.loop()

	w.logger.Info("Configuration hot reload enabled", zap.String("dir", loader.Dir()))
	return w, nil
}

// Current returns the live configuration.
func (w *Watcher) Current() *Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

// OnChange registers a callback run after every successful reload.
func (w *Watcher) OnChange(fn func(old, new *Config)) {
	w.mu.Lock()
	w.callbacks = append(w.callbacks, fn)
	w.mu.Unlock()
}

// Stop ends the watch loop. It is safe to call more than once.
func (w *Watcher) Stop() {
	w.once.Do(func() { close(w.stopCh) })
}

func (w *Watcher) loop() {
	defer w.fs.Close()

	var debounce *time.Timer
	for {
		select {
		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 || !isConfigFile(event.Name) {
				continue
			}
			w.logger.Debug("Configuration file changed",
				zap.String("file", event.Name),
				zap.String("op", event.Op.String()),
			)
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(reloadDebounce, w.Reload)

		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.logger.Error("File watcher error", zap.Error(err))

		case <-w.stopCh:
			if debounce != nil {
				debounce.Stop()
			}
			return
		}
	}
}

// Reload reads the configuration again and notifies callbacks if it
// changed.
func (w *Watcher) Reload() {
	next, err := w.loader.Load()
	if err != nil {
		w.logger.Error("Configuration reload rejected", zap.Error(err))
		return
	}

	w.mu.Lock()
	prev := w.current
	if reflect.DeepEqual(stripSources(prev), stripSources(next)) {
		w.mu.Unlock()
		return
	}
	w.current = next
	callbacks := append([]func(old, new *Config){}, w.callbacks...)
	w.mu.Unlock()

	w.logger.Info("Configuration reloaded", zap.Strings("sources", next.LoadedFrom))
	for _, cb := range callbacks {
		w.notify(cb, prev, next)
	}
}

func (w *Watcher) notify(cb func(old, new *Config), prev, next *Config) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("Configuration callback panicked", zap.Any("panic", r))
		}
	}()
	cb(prev, next)
}

func stripSources(c *Config) Config {
	if c == nil {
		return Config{}
	}
	cp := *c
	cp.LoadedFrom = nil
	return cp
}

func isConfigFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}
