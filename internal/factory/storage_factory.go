package factory

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/phishguard/phishguard/internal/adapters/storage"
	"github.com/phishguard/phishguard/internal/config"
	"github.com/phishguard/phishguard/internal/core"
	"go.uber.org/zap"
)

// StorageFactory creates persisted stores based on configuration
type StorageFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewStorageFactory creates a new storage factory
func NewStorageFactory(cfg *config.Config, logger *zap.Logger) *StorageFactory {
	return &StorageFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateStore creates a store based on the configuration
func (f *StorageFactory) CreateStore() (core.Store, error) {
	storageCfg := f.cfg.GetStorage()

	switch storageCfg.Type {
	case "memory":
		return storage.NewMemoryStore(storageCfg.HistoryLimit), nil
	case "sqlite":
		// Ensure directory exists
		if err := os.MkdirAll(filepath.Dir(storageCfg.SQLitePath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create SQLite directory: %w", err)
		}
		return storage.NewSQLiteStore(storageCfg.SQLitePath, storageCfg.HistoryLimit, f.logger)
	case "mysql":
		return storage.NewMySQLStore(storageCfg.MySQLDSN, storageCfg.HistoryLimit, f.logger)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", storageCfg.Type)
	}
}
