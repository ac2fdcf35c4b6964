package config

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const reloadDebounce = 100 * time.Millisecond

// ChangeHandler is invoked after a new config snapshot has been installed.
type ChangeHandler func(prev, next *Config) error

// Manager owns the live config snapshot and hot-reloads it from disk.
// Snapshots are never mutated once installed; readers may hold them freely.
type Manager struct {
	path     string
	logger   *zap.Logger
	loader   func(string) (*Config, error)
	current  *Config
	handlers []ChangeHandler
	watcher  *fsnotify.Watcher
	started  bool
	stopCh   chan struct{}
	doneCh   chan struct{}
	mu       sync.RWMutex
}

// NewManager loads the initial config from path. An empty path means
// environment-only configuration and disables watching.
func NewManager(path string, logger *zap.Logger) (*Manager, error) {
	m := &Manager{
		path:   path,
		logger: logger,
		loader: Load,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
	cfg, err := m.loader(path)
	if err != nil {
		return nil, err
	}
	m.current = cfg
	return m, nil
}

// Current returns the installed snapshot.
func (m *Manager) Current() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// RegisterHandler adds a callback run on every successful reload.
func (m *Manager) RegisterHandler(h ChangeHandler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers = append(m.handlers, h)
}

// Start begins watching the config file's directory. Editors commonly
// replace files by rename, so the directory is watched rather than the file.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.started || m.path == "" {
		m.mu.Unlock()
		return nil
	}
	m.started = true
	m.mu.Unlock()

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := w.Add(filepath.Dir(m.path)); err != nil {
		_ = w.Close()
		return fmt.Errorf("failed to watch config directory: %w", err)
	}
	m.watcher = w

	go m.watchLoop(ctx)
	m.logger.Info("Config manager started", zap.String("path", m.path))
	return nil
}

// Stop ends watching. Safe to call when Start was never called.
func (m *Manager) Stop() error {
	m.mu.Lock()
	started := m.started && m.watcher != nil
	m.started = false
	m.mu.Unlock()
	if !started {
		return nil
	}
	close(m.stopCh)
	<-m.doneCh
	return m.watcher.Close()
}

func (m *Manager) watchLoop(ctx context.Context) {
	defer close(m.doneCh)
	target := filepath.Clean(m.path)

	var timer *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return
		case <-m.stopCh:
			return
		case event, ok := <-m.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(reloadDebounce)
			} else {
				timer.Reset(reloadDebounce)
			}
			fire = timer.C
		case <-fire:
			fire = nil
			if err := m.Reload(); err != nil {
				m.logger.Warn("Config reload rejected, keeping previous config", zap.Error(err))
			}
		case err, ok := <-m.watcher.Errors:
			if !ok {
				return
			}
			m.logger.Error("Config watcher error", zap.Error(err))
		}
	}
}

// Reload re-reads the file and installs the reloadable sections. Listener
// ports, backends and credentials only change on restart.
func (m *Manager) Reload() error {
	loaded, err := m.loader(m.path)
	if err != nil {
		return err
	}

	m.mu.Lock()
	prev := m.current
	next := *prev
	next.Logging.Level = loaded.Logging.Level
	next.Campaign = loaded.Campaign
	next.Selection = loaded.Selection
	next.Delivery.Sender = loaded.Delivery.Sender
	next.Delivery.Recipient = loaded.Delivery.Recipient
	next.Delivery.Subject = loaded.Delivery.Subject
	next.Delivery.HTML = loaded.Delivery.HTML
	next.Delivery.FallbackSubject = loaded.Delivery.FallbackSubject
	next.Orchestration = loaded.Orchestration
	next.Webhook.Async = loaded.Webhook.Async
	next.Policy = loaded.Policy
	next.RateLimit = loaded.RateLimit
	next.LLM.Pricing = loaded.LLM.Pricing
	if err := next.Validate(); err != nil {
		m.mu.Unlock()
		return err
	}
	m.current = &next
	handlers := append([]ChangeHandler(nil), m.handlers...)
	m.mu.Unlock()

	m.logger.Info("Config reloaded", zap.String("path", m.path))
	for _, h := range handlers {
		if err := h(prev, &next); err != nil {
			m.logger.Error("Config change handler failed", zap.Error(err))
		}
	}
	return nil
}
