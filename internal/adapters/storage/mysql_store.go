package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "github.com/go-sql-driver/mysql"
	"github.com/phishguard/phishguard/internal/core"
	"go.uber.org/zap"
)

// MySQLStore is a MySQL implementation of the Store interface, for
// deployments where several machines share one settings and history pool
type MySQLStore struct {
	db           *sql.DB
	logger       *zap.Logger
	historyLimit int
}

// NewMySQLStore creates a new MySQL store
func NewMySQLStore(dsn string, historyLimit int, logger *zap.Logger) (*MySQLStore, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL connection: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping MySQL: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS settings (
			id TINYINT PRIMARY KEY,
			data TEXT NOT NULL
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create settings table: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS blocked_history (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			url TEXT NOT NULL,
			domain VARCHAR(255) NOT NULL,
			blocked_at TIMESTAMP NOT NULL,
			confidence DOUBLE NOT NULL,
			risk_level VARCHAR(16) NOT NULL
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create history table: %w", err)
	}

	return &MySQLStore{
		db:           db,
		logger:       logger,
		historyLimit: historyLimit,
	}, nil
}

// LoadSettings returns the persisted settings merged over defaults, or
// ErrSettingsNotFound on first run
func (s *MySQLStore) LoadSettings(ctx context.Context) (*core.Settings, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT data FROM settings WHERE id = 1`).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrSettingsNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}

	settings := core.DefaultSettings()
	if err := json.Unmarshal([]byte(data), &settings); err != nil {
		return nil, fmt.Errorf("failed to parse persisted settings: %w", err)
	}
	return &settings, nil
}

// SaveSettings persists the full settings object
func (s *MySQLStore) SaveSettings(ctx context.Context, settings core.Settings) error {
	data, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO settings (id, data) VALUES (1, ?)
		ON DUPLICATE KEY UPDATE data = VALUES(data)`, string(data))
	if err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	return nil
}

// AppendHistory inserts an entry and trims the table to the cap
func (s *MySQLStore) AppendHistory(ctx context.Context, entry *core.BlockedHistoryEntry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO blocked_history (url, domain, blocked_at, confidence, risk_level)
		VALUES (?, ?, ?, ?, ?)`,
		entry.URL, entry.Domain, entry.Timestamp, entry.Confidence, string(entry.RiskLevel))
	if err != nil {
		return fmt.Errorf("failed to insert history entry: %w", err)
	}

	if s.historyLimit > 0 {
		// MySQL cannot delete from a table it selects from directly; go
		// through a derived table
		_, err = s.db.ExecContext(ctx, `
			DELETE FROM blocked_history WHERE id NOT IN (
				SELECT id FROM (
					SELECT id FROM blocked_history ORDER BY id DESC LIMIT ?
				) keep
			)`, s.historyLimit)
		if err != nil {
			return fmt.Errorf("failed to trim history: %w", err)
		}
	}
	return nil
}

// History returns blocked entries, newest first
func (s *MySQLStore) History(ctx context.Context) ([]*core.BlockedHistoryEntry, error) {
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
func (s *MySQLStore) ClearHistory(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM blocked_history`); err != nil {
		return fmt.Errorf("failed to clear history: %w", err)
	}
	return nil
}

// Close closes the underlying database
func (s *MySQLStore) Close() error {
	return s.db.Close()
}
