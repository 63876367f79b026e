package storage

import (
	"context"
	"sync"

	"github.com/phishguard/phishguard/internal/core"
)

// MemoryStore is an in-memory implementation of the Store interface.
// State does not survive a restart; it exists for tests and for running
// without a database.
type MemoryStore struct {
	mu           sync.RWMutex
	settings     *core.Settings
	history      []*core.BlockedHistoryEntry
	historyLimit int
}

// NewMemoryStore creates a new in-memory store
func NewMemoryStore(historyLimit int) *MemoryStore {
	return &MemoryStore{
		historyLimit: historyLimit,
	}
}

// LoadSettings returns the stored settings, or ErrSettingsNotFound
func (s *MemoryStore) LoadSettings(ctx context.Context) (*core.Settings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.settings == nil {
		return nil, core.ErrSettingsNotFound
	}
	stored := *s.settings
	stored.Whitelist = append([]string(nil), s.settings.Whitelist...)
	return &stored, nil
}

// SaveSettings persists the full settings object
func (s *MemoryStore) SaveSettings(ctx context.Context, settings core.Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	settings.Whitelist = append([]string(nil), settings.Whitelist...)
	s.settings = &settings
	return nil
}

// AppendHistory prepends an entry, dropping the oldest beyond the cap
func (s *MemoryStore) AppendHistory(ctx context.Context, entry *core.BlockedHistoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.history = append([]*core.BlockedHistoryEntry{entry}, s.history...)
	if s.historyLimit > 0 && len(s.history) > s.historyLimit {
		s.history = s.history[:s.historyLimit]
	}
	return nil
}

// History returns blocked entries, newest first
func (s *MemoryStore) History(ctx context.Context) ([]*core.BlockedHistoryEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]*core.BlockedHistoryEntry(nil), s.history...), nil
}

// ClearHistory removes all blocked entries
func (s *MemoryStore) ClearHistory(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.history = nil
	return nil
}

// Close is a no-op for the in-memory store
func (s *MemoryStore) Close() error {
	return nil
}
