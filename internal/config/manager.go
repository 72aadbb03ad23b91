package config

import (
	"context"
	"hash/fnv"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// Manager owns the config file: initial load plus an fsnotify watch that
// re-reads, validates and publishes changed configs to subscribers.
// Invalid edits are logged and dropped; the last good config stays
// committed.
type Manager struct {
	path string
	log  zerolog.Logger

	mu  sync.RWMutex
	cfg *Config

	subsMu sync.Mutex
	subs   []func(*Config)

	// lastHash avoids republishing when the editor fires several write
	// events without content changes.
	lastHash uint64
}

func NewManager(path string, log zerolog.Logger) *Manager {
	return &Manager{path: path, log: log}
}

// SetLogger swaps the manager's logger. Used once the real logger
// exists; the manager is constructed before logging config is known.
func (m *Manager) SetLogger(log zerolog.Logger) { m.log = log }

// Load performs the initial read. Fatal on error: the process cannot
// start without a valid config.
func (m *Manager) Load() (*Config, error) {
	b, err := os.ReadFile(m.path)
	if err != nil {
		return nil, err
	}
	cfg, err := Parse(b)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	m.cfg = cfg
	m.lastHash = hashBytes(b)
	m.mu.Unlock()
	return cfg, nil
}

// Current returns the last committed config.
func (m *Manager) Current() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cfg
}

// Subscribe registers a callback invoked with every committed reload.
// Callbacks run on the watch goroutine and must be quick.
func (m *Manager) Subscribe(fn func(*Config)) {
	m.subsMu.Lock()
	m.subs = append(m.subs, fn)
	m.subsMu.Unlock()
}

// Watch blocks until ctx is done, reloading on file changes. Editors
// replace files as rename+create, so the parent directory is watched and
// events are debounced.
func (m *Manager) Watch(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	dir := filepath.Dir(m.path)
	if err := w.Add(dir); err != nil {
		return err
	}
	base := filepath.Base(m.path)

	var debounce *time.Timer
	fire := make(chan struct{}, 1)

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Base(ev.Name) != base {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(250*time.Millisecond, func() {
				select {
				case fire <- struct{}{}:
				default:
				}
			})
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			m.log.Warn().Err(err).Msg("config watch error")
		case <-fire:
			m.reload()
		}
	}
}

func (m *Manager) reload() {
	b, err := os.ReadFile(m.path)
	if err != nil {
		m.log.Warn().Err(err).Msg("config reload: read failed; keeping previous config")
		return
	}
	h := hashBytes(b)
	m.mu.RLock()
	unchanged := h == m.lastHash
	m.mu.RUnlock()
	if unchanged {
		return
	}
	cfg, err := Parse(b)
	if err != nil {
		m.log.Warn().Err(err).Msg("config reload: invalid; keeping previous config")
		return
	}

	m.mu.Lock()
	m.cfg = cfg
	m.lastHash = h
	m.mu.Unlock()
	m.log.Info().Msg("config reloaded")

	m.subsMu.Lock()
	subs := append(([]func(*Config))(nil), m.subs...)
	m.subsMu.Unlock()
	for _, fn := range subs {
		fn(cfg)
	}
}

func hashBytes(b []byte) uint64 {
	h := fnv.New64a()
	_, _ = h.Write(b)
	return h.Sum64()
}
