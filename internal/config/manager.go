package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	logx "taskpanel/pkg/logx"
)

// ErrUnchanged is returned by Reload when the file decodes to the config
// already committed.
var ErrUnchanged = errors.New("config unchanged")

const validateTimeout = 5 * time.Second

// Manager holds the committed config for panelbot and panelctl and, for
// panelbot, re-reads it on file changes or SIGHUP.
type Manager struct {
	path     string
	debounce time.Duration

	log      logx.Logger
	validate func(ctx context.Context, cfg *Config) error

	mu   sync.RWMutex
	cfg  *Config
	hash uint64

	// reloadMu serializes Reload between the watcher and signal handlers.
	reloadMu sync.Mutex

	subMu sync.Mutex
	subs  map[chan *Config]struct{}
}

func NewManager(path string) *Manager {
	return &Manager{
		path:     path,
		debounce: 250 * time.Millisecond,
		subs:     map[chan *Config]struct{}{},
	}
}

func (m *Manager) Path() string { return m.path }

func (m *Manager) SetLogger(log logx.Logger) { m.log = log }

// SetValidator adds a check that runs after Validate on every reload. A
// rejected file leaves the committed config in place.
func (m *Manager) SetValidator(fn func(ctx context.Context, cfg *Config) error) {
	m.validate = fn
}

// Parse reads and decodes the file, then applies env overrides. Nothing is
// committed.
func (m *Manager) Parse() (*Config, error) {
	b, err := os.ReadFile(m.path)
	if err != nil {
		return nil, err
	}
	cfg, err := Decode(m.path, b)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", m.path, err)
	}
	ApplyEnv(cfg)
	return cfg, nil
}

// Load parses, validates and commits the file. Used once at startup.
func (m *Manager) Load() (*Config, error) {
	cfg, err := m.Parse()
	if err != nil {
		return nil, err
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	m.commit(cfg)
	return cfg, nil
}

func (m *Manager) Get() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cfg
}

func (m *Manager) commit(cfg *Config) {
	m.mu.Lock()
	m.cfg, m.hash = cfg, hashConfig(cfg)
	m.mu.Unlock()
}

func hashConfig(cfg *Config) uint64 {
	b, err := json.Marshal(cfg)
	if err != nil {
		return 0
	}
	return hashBytes(b)
}

// Reload re-reads the file and, if it differs from the committed config and
// passes validation, commits and publishes it. It returns ErrUnchanged for
// a no-op save.
func (m *Manager) Reload(ctx context.Context) (*Config, error) {
	m.reloadMu.Lock()
	defer m.reloadMu.Unlock()

	cfg, err := m.Parse()
	if err != nil {
		return nil, err
	}
	h := hashConfig(cfg)
	m.mu.RLock()
	same := h != 0 && h == m.hash
	m.mu.RUnlock()
	if same {
		return nil, ErrUnchanged
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	if m.validate != nil {
		vctx, cancel := context.WithTimeout(ctx, validateTimeout)
		err := m.validate(vctx, cfg)
		cancel()
		if err != nil {
			return nil, err
		}
	}

	m.commit(cfg)
	m.publish(cfg)
	return cfg, nil
}

// Subscribe returns a channel that always holds the newest committed config
// not yet received. Intermediate configs in a burst are skipped. Call the
// returned func to unsubscribe; it closes the channel.
func (m *Manager) Subscribe() (<-chan *Config, func()) {
	ch := make(chan *Config, 1)
	m.subMu.Lock()
	m.subs[ch] = struct{}{}
	m.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			m.subMu.Lock()
			delete(m.subs, ch)
			m.subMu.Unlock()
			close(ch)
		})
	}
}

func (m *Manager) publish(cfg *Config) {
	m.subMu.Lock()
	defer m.subMu.Unlock()
	for ch := range m.subs {
		// Replace whatever the subscriber has not picked up yet.
		select {
		case <-ch:
		default:
		}
		ch <- cfg
	}
}
