package settings

import (
	"context"
	"errors"
	"sync"

	"github.com/phishguard/phishguard/internal/core"
	"go.uber.org/zap"
)

// Manager owns the process-wide settings: loaded once at startup (merged
// over defaults), mutated by explicit updates, persisted on every mutation.
// Persistence failures are logged, never fatal; the in-memory state stands
// and the next successful save wins.
type Manager struct {
	current core.Settings
	mu      sync.RWMutex
	store   core.Store
	logger  *zap.Logger
}

// NewManager creates a settings manager with defaults in place. Call Load
// before serving to pick up persisted state.
func NewManager(store core.Store, logger *zap.Logger) *Manager {
	return &Manager{
		current: core.DefaultSettings(),
		store:   store,
		logger:  logger,
	}
}

// Load merges persisted settings over the defaults. On first run the
// defaults are persisted; on storage failure the defaults stand.
func (m *Manager) Load(ctx context.Context) error {
	stored, err := m.store.LoadSettings(ctx)
	if err != nil {
		if errors.Is(err, core.ErrSettingsNotFound) {
			m.logger.Info("First run, persisting default settings")
			if saveErr := m.store.SaveSettings(ctx, m.Snapshot()); saveErr != nil {
				m.logger.Error("Failed to persist default settings", zap.Error(saveErr))
			}
			return nil
		}
		m.logger.Error("Failed to load settings, using defaults", zap.Error(err))
		return nil
	}

	m.mu.Lock()
	m.current = mergeOverDefaults(*stored)
	enabled, devMode := m.current.Enabled, m.current.DevMode
	m.mu.Unlock()

	m.logger.Info("Settings loaded",
		zap.Bool("enabled", enabled),
		zap.Bool("dev_mode", devMode))
	return nil
}

// Snapshot returns a copy of the current settings
func (m *Manager) Snapshot() core.Settings {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s := m.current
	s.Whitelist = append([]string(nil), m.current.Whitelist...)
	return s
}

// Update applies a partial settings update, last-write-wins per field,
// and persists the result
func (m *Manager) Update(ctx context.Context, patch core.SettingsPatch) core.Settings {
	m.mu.Lock()

	if patch.Enabled != nil {
		m.current.Enabled = *patch.Enabled
	}
	if patch.AutoBlock != nil {
		m.current.AutoBlock = *patch.AutoBlock
	}
	if patch.Whitelist != nil {
		m.current.Whitelist = append([]string(nil), (*patch.Whitelist)...)
	}
	if patch.APIURL != nil {
		m.current.APIURL = *patch.APIURL
	}
	if patch.DevMode != nil {
		m.current.DevMode = *patch.DevMode
	}
	if patch.StrictMode != nil {
		m.current.StrictMode = *patch.StrictMode
	}
	if patch.LogHistory != nil {
		m.current.LogHistory = *patch.LogHistory
	}
	m.mu.Unlock()

	updated := m.Snapshot()
	m.persist(ctx, updated)
	m.logger.Info("Settings updated", zap.Bool("enabled", updated.Enabled))
	return updated
}

// AddToWhitelist appends a domain if absent. The membership check and the
// append happen under one lock so concurrent adds cannot duplicate.
func (m *Manager) AddToWhitelist(ctx context.Context, domain string) core.Settings {
	m.mu.Lock()
	found := false
	for _, d := range m.current.Whitelist {
		if d == domain {
			found = true
			break
		}
	}
	if !found && domain != "" {
		m.current.Whitelist = append(m.current.Whitelist, domain)
	}
	m.mu.Unlock()

	updated := m.Snapshot()
	if !found && domain != "" {
		m.persist(ctx, updated)
	}
	return updated
}

// RemoveFromWhitelist removes a domain if present
func (m *Manager) RemoveFromWhitelist(ctx context.Context, domain string) core.Settings {
	m.mu.Lock()
	kept := m.current.Whitelist[:0]
	for _, d := range m.current.Whitelist {
		if d != domain {
			kept = append(kept, d)
		}
	}
	m.current.Whitelist = kept
	m.mu.Unlock()

	updated := m.Snapshot()
	m.persist(ctx, updated)
	return updated
}

func (m *Manager) persist(ctx context.Context, s core.Settings) {
	if err := m.store.SaveSettings(ctx, s); err != nil {
		m.logger.Error("Failed to persist settings", zap.Error(err))
	}
}

// mergeOverDefaults fills fields the stored object could not have lost
// (whitelist nil vs empty) after a partial or older-version write
func mergeOverDefaults(stored core.Settings) core.Settings {
	if stored.Whitelist == nil {
		stored.Whitelist = []string{}
	}
	return stored
}
