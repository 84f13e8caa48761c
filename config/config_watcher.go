package config

import (
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

var _ Watcher = (*ConfigWatcher)(nil)

// ConfigWatcher reloads the config file when it changes on disk. Invalid
// edits are logged and ignored; the last good config stays current.
type ConfigWatcher struct {
	currentConfig atomic.Pointer[Config]
	configPath    string
	watcher       *fsnotify.Watcher
	logger        *zap.Logger

	mu          sync.Mutex
	subscribers []chan *Config
	done        chan struct{}
	closeOnce   sync.Once
}

// NewConfigWatcher loads configPath and starts watching it. The directory
// is watched rather than the file so editors that replace the file on
// save are still picked up.
func NewConfigWatcher(configPath string, initial *Config, logger *zap.Logger) (*ConfigWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	cw := &ConfigWatcher{
		configPath: filepath.Clean(configPath),
		watcher:    watcher,
		logger:     logger,
		done:       make(chan struct{}),
	}

	if initial == nil {
		initial, err = LoadFile(configPath, true)
		if err != nil {
			watcher.Close()
			return nil, fmt.Errorf("failed to load initial config: %w", err)
		}
	}
	cw.currentConfig.Store(initial)

	if err := watcher.Add(filepath.Dir(cw.configPath)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch config file: %w", err)
	}

	go cw.watchConfig()
	return cw, nil
}

// Subscribe returns a channel that receives every successfully reloaded
// config. Slow subscribers only see the latest one.
func (cw *ConfigWatcher) Subscribe() <-chan *Config {
	ch := make(chan *Config, 1)
	cw.mu.Lock()
	cw.subscribers = append(cw.subscribers, ch)
	cw.mu.Unlock()
	return ch
}

// GetCurrentConfig returns the last config that loaded and validated.
func (cw *ConfigWatcher) GetCurrentConfig() *Config {
	return cw.currentConfig.Load()
}

func (cw *ConfigWatcher) watchConfig() {
	for {
		select {
		case event, ok := <-cw.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != cw.configPath {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				cw.handleConfigChange()
			}
		case err, ok := <-cw.watcher.Errors:
			if !ok {
				return
			}
			cw.logger.Error("Config watcher error", zap.Error(err))
		case <-cw.done:
			return
		}
	}
}

func (cw *ConfigWatcher) handleConfigChange() {
	cw.logger.Info("Detected config file change, reloading",
		zap.String("path", cw.configPath),
	)

	newConfig, err := LoadFile(cw.configPath, true)
	if err != nil {
		cw.logger.Error("Failed to load new config", zap.Error(err))
		return
	}

	cw.currentConfig.Store(newConfig)

	cw.mu.Lock()
	for _, sub := range cw.subscribers {
		// Drop a stale pending config so the newest one always lands.
		select {
		case <-sub:
		default:
		}
		select {
		case sub <- newConfig:
		default:
		}
	}
	cw.mu.Unlock()

	cw.logger.Info("Configuration reloaded successfully")
}

// Close stops watching. Subscriber channels are closed.
func (cw *ConfigWatcher) Close() error {
	var err error
	cw.closeOnce.Do(func() {
		close(cw.done)
		err = cw.watcher.Close()
		cw.mu.Lock()
		for _, sub := range cw.subscribers {
			close(sub)
		}
		cw.subscribers = nil
		cw.mu.Unlock()
	})
	return err
}
