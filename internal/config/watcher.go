// internal/config/watcher.go
package config

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/valpere/landwatch/internal/utils"
)

// ConfigWatcher reloads the configuration file when it changes on disk.
// Only successfully validated configurations reach the callbacks.
type ConfigWatcher struct {
	watcher    *fsnotify.Watcher
	configPath string
	debounce   time.Duration
	logger     *slog.Logger

	mu        sync.RWMutex
	callbacks []func(*Config)
}

// NewConfigWatcher creates a watcher on the file's directory, so editors
// that replace the file by rename are seen too.
func NewConfigWatcher(configPath string, logger *slog.Logger) (*ConfigWatcher, error) {
	if logger == nil {
		logger = utils.NewComponentLogger("config")
	}
	abs, err := filepath.Abs(configPath)
	if err != nil {
		return nil, utils.WrapError(err, utils.ErrCodeConfiguration, "resolve config path")
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, utils.WrapError(err, utils.ErrCodeConfiguration, "failed to create file watcher")
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		w.Close()
		return nil, utils.WrapError(err, utils.ErrCodeConfiguration, "failed to watch config directory")
	}
	return &ConfigWatcher{
		watcher:    w,
		configPath: abs,
		debounce:   500 * time.Millisecond,
		logger:     logger,
	}, nil
}

// OnChange registers a callback to be called when the config changes
func (cw *ConfigWatcher) OnChange(callback func(*Config)) {
	cw.mu.Lock()
	defer cw.mu.Unlock()
	cw.callbacks = append(cw.callbacks, callback)
}

// Run handles file system events until ctx is done. Bursts of events
// within the debounce window cause a single reload.
func (cw *ConfigWatcher) Run(ctx context.Context) error {
	defer cw.watcher.Close()

	var timer *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil

		case event, ok := <-cw.watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != cw.configPath {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(cw.debounce)
			} else {
				timer.Reset(cw.debounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			cw.reload()

		case err, ok := <-cw.watcher.Errors:
			if !ok {
				return nil
			}
			cw.logger.Warn("config watcher error", "error", err)
		}
	}
}

func (cw *ConfigWatcher) reload() {
	cfg, err := LoadFromFile(cw.configPath)
	if err != nil {
		cw.logger.Error("config reload rejected", "path", cw.configPath, "error", err)
		return
	}
	cw.mu.RLock()
	callbacks := make([]func(*Config), len(cw.callbacks))
	copy(callbacks, cw.callbacks)
	cw.mu.RUnlock()

	cw.logger.Info("config reloaded", "path", cw.configPath)
	for _, cb := range callbacks {
		cb(cfg)
	}
}
