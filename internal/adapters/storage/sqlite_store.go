package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"github.com/phishguard/phishguard/internal/core"
	"go.uber.org/zap"
)

// SQLiteStore is a SQLite implementation of the Store interface. Settings
// are kept as a single JSON row; blocked history as capped rows.
type SQLiteStore struct {
	db           *sql.DB
	logger       *zap.Logger
	historyLimit int
}

// NewSQLiteStore creates a new SQLite store
func NewSQLiteStore(dbPath string, historyLimit int, logger *zap.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	// Create tables if they don't exist
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS settings (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			data TEXT NOT NULL
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create settings table: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS blocked_history (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			url TEXT NOT NULL,
			domain TEXT NOT NULL,
			blocked_at TIMESTAMP NOT NULL,
			confidence REAL NOT NULL,
			risk_level TEXT NOT NULL
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create history table: %w", err)
	}

	return &SQLiteStore{
		db:           db,
		logger:       logger,
		historyLimit: historyLimit,
	}, nil
}

// LoadSettings returns the persisted settings merged over defaults, or
// ErrSettingsNotFound on first run
func (s *SQLiteStore) LoadSettings(ctx context.Context) (*core.Settings, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT data FROM settings WHERE id = 1`).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrSettingsNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}

	// Unmarshal over defaults so fields missing from an older persisted
	// version keep their default values
	settings := core.DefaultSettings()
	if err := json.Unmarshal([]byte(data), &settings); err != nil {
		return nil, fmt.Errorf("failed to parse persisted settings: %w", err)
	}
	return &settings, nil
}

// SaveSettings persists the full settings object
func (s *SQLiteStore) SaveSettings(ctx context.Context, settings core.Settings) error {
	data, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO settings (id, data) VALUES (1, ?)`, string(data))
	if err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	return nil
}

// AppendHistory inserts an entry and trims the table to the cap
func (s *SQLiteStore) AppendHistory(ctx context.Context, entry *core.BlockedHistoryEntry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO blocked_history (url, domain, blocked_at, confidence, risk_level)
		VALUES (?, ?, ?, ?, ?)`,
		entry.URL, entry.Domain, entry.Timestamp, entry.Confidence, string(entry.RiskLevel))
	if err != nil {
		return fmt.Errorf("failed to insert history entry: %w", err)
	}

	if s.historyLimit > 0 {
		_, err = s.db.ExecContext(ctx, `
			DELETE FROM blocked_history WHERE id NOT IN (
				SELECT id FROM blocked_history ORDER BY id DESC LIMIT ?
			)`, s.historyLimit)
		if err != nil {
			return fmt.Errorf("failed to trim history: %w", err)
		}
	}
	return nil
}

// History returns blocked entries, newest first
func (s *SQLiteStore) History(ctx context.Context) ([]*core.BlockedHistoryEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT url, domain, blocked_at, confidence, risk_level
		FROM blocked_history ORDER BY id DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var entries []*core.BlockedHistoryEntry
	for rows.Next() {
		var entry core.BlockedHistoryEntry
		var riskLevel string
		if err := rows.Scan(&entry.URL, &entry.Domain, &entry.Timestamp, &entry.Confidence, &riskLevel); err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}
		entry.RiskLevel = core.RiskLevel(riskLevel)
		entries = append(entries, &entry)
	}
	return entries, rows.Err()
}

// ClearHistory removes all blocked entries
func (s *SQLiteStore) ClearHistory(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM blocked_history`); err != nil {
		return fmt.Errorf("failed to clear history: %w", err)
	}
	return nil
}

// Close closes the underlying database
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
