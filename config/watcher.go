package config

import (
	"log"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const reloadDebounce = 500 * time.Millisecond

// Manager holds the live configuration and reloads it when the file changes
// on disk or Reload is called.
type Manager struct {
	path      string
	config    *Config
	mu        sync.RWMutex
	listeners []func(*Config)
	watchMu   sync.Mutex
	watcher   *fsnotify.Watcher
	done      chan struct{}
}

func NewManager(path string) (*Manager, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	return &Manager{path: path, config: cfg}, nil
}

// Get returns the current configuration. The returned value must be treated
// as read-only; a reload swaps in a new one.
func (m *Manager) Get() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config
}

// OnReload registers fn to run after every successful reload.
func (m *Manager) OnReload(fn func(*Config)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, fn)
}

// StartWatching watches the config file's directory, so editors that save
// through a rename are also picked up.
func (m *Manager) StartWatching() error {
	m.watchMu.Lock()
	defer m.watchMu.Unlock()

	if m.watcher != nil {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(filepath.Dir(m.path)); err != nil {
		watcher.Close()
		return err
	}

	done := make(chan struct{})
	m.watcher = watcher
	m.done = done
	go m.watchLoop(watcher, done)

	log.Printf("[CONFIG] Watching for changes: %s", m.path)
	return nil
}

func (m *Manager) StopWatching() {
	m.watchMu.Lock()
	watcher := m.watcher
	done := m.done
	m.watcher = nil
	m.done = nil
	m.watchMu.Unlock()

	if watcher == nil {
		return
	}

	close(done)
	_ = watcher.Close()
}

func (m *Manager) watchLoop(watcher *fsnotify.Watcher, done <-chan struct{}) {
	configName := filepath.Base(m.path)

	debounce := time.NewTimer(reloadDebounce)
	if !debounce.Stop() {
		<-debounce.C
	}
	pending := false

	for {
		select {
		case <-done:
			debounce.Stop()
			return

		case <-debounce.C:
			pending = false
			if err := m.Reload(); err != nil {
				log.Printf("[CONFIG] Failed to reload config: %v", err)
			}

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != configName {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			if pending && !debounce.Stop() {
				<-debounce.C
			}
			debounce.Reset(reloadDebounce)
			pending = true

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			log.Printf("[CONFIG] Watcher error: %v", err)
		}
	}
}

// Reload re-reads the config file. On error the current configuration is
// kept and listeners are not called.
func (m *Manager) Reload() error {
	log.Printf("[CONFIG] Reloading %s", m.path)

	newCfg, err := Load(m.path)
	if err != nil {
		return err
	}

	m.mu.Lock()
	oldCfg := m.config
	m.config = newCfg
	listeners := make([]func(*Config), len(m.listeners))
	copy(listeners, m.listeners)
	m.mu.Unlock()

	log.Printf("[CONFIG] Reloaded successfully: %d upstreams (was %d), cli=%s",
		len(newCfg.Upstreams), len(oldCfg.Upstreams), newCfg.CLI.Path)
	for _, u := range newCfg.Upstreams {
		status := "enabled"
		if !u.IsEnabled() {
			status = "disabled"
		}
		log.Printf("[CONFIG]   - %s (%s, weight: %d, %s)", u.Name, u.GetVendor(), u.Weight, status)
	}

	for _, fn := range listeners {
		func() {
			defer func() {
				if r := recover(); r != nil {
					log.Printf("[CONFIG] Reload listener panic: %v", r)
				}
			}()
			fn(newCfg)
		}()
	}
	return nil
}
