package swaconfig

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/dzerik/swa-emulator/pkg/logger"
)

// DefaultDebounce is the quiet period before a changed file is reloaded.
const DefaultDebounce = 100 * time.Millisecond

// ReloadFunc is called after every reload attempt. cfg is nil when err is set.
type ReloadFunc func(cfg *Config, err error)

// Holder publishes the active configuration. Readers take a snapshot with
// Current and keep using it for the whole request.
type Holder struct {
	root     string
	current  atomic.Pointer[Config]
	debounce time.Duration

	mu        sync.Mutex
	listeners []ReloadFunc
}

// NewHolder returns a holder serving initial.
func NewHolder(root string, initial *Config) *Holder {
	if initial == nil {
		initial = Empty()
	}
	h := &Holder{root: root, debounce: DefaultDebounce}
	h.current.Store(initial)
	return h
}

// Current returns the active configuration.
func (h *Holder) Current() *Config {
	return h.current.Load()
}

// OnReload registers fn to run after each reload attempt.
func (h *Holder) OnReload(fn ReloadFunc) {
	h.mu.Lock()
	h.listeners = append(h.listeners, fn)
	h.mu.Unlock()
}

// Reload re-reads the configuration from disk. On failure the previous
// configuration stays active.
func (h *Holder) Reload() error {
	cfg, err := LoadDir(h.root)
	if err == nil {
		h.current.Store(cfg)
	}

	h.mu.Lock()
	listeners := append([]ReloadFunc(nil), h.listeners...)
	h.mu.Unlock()
	for _, fn := range listeners {
		fn(cfg, err)
	}
	return err
}

// Watch reloads the configuration whenever a config file under root changes.
// It blocks until ctx is cancelled.
func (h *Holder) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer watcher.Close()

	if err := h.addTree(watcher, h.root); err != nil {
		return err
	}
	logger.Info("watching routing configuration", zap.String("root", h.root))

	var (
		timerMu sync.Mutex
		timer   *time.Timer
	)
	defer func() {
		timerMu.Lock()
		if timer != nil {
			timer.Stop()
		}
		timerMu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			logger.Info("stopping configuration watcher")
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}

			if event.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() && !skipDir(filepath.Base(event.Name)) {
					if err := h.addTree(watcher, event.Name); err != nil {
						logger.Warn("failed to watch new directory", zap.String("path", event.Name), zap.Error(err))
					}
				}
			}

			if !isConfigFile(event.Name) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}

			timerMu.Lock()
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(h.debounce, func() {
				if ctx.Err() != nil {
					return
				}
				if err := h.Reload(); err != nil {
					logger.Error("failed to reload routing configuration, keeping previous", zap.Error(err))
					return
				}
				logger.Info("routing configuration reloaded", zap.String("path", h.Current().Path))
			})
			timerMu.Unlock()

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Error("file watcher error", zap.Error(err))
		}
	}
}

func (h *Holder) addTree(watcher *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && skipDir(d.Name()) {
			return fs.SkipDir
		}
		if err := watcher.Add(path); err != nil {
			logger.Warn("failed to watch directory", zap.String("path", path), zap.Error(err))
		}
		return nil
	})
}

func skipDir(name string) bool {
	return strings.Contains(name, "node_modules") || strings.HasPrefix(name, ".git")
}

func isConfigFile(path string) bool {
	base := filepath.Base(path)
	return base == FileName || base == LegacyFileName
}
