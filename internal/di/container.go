package di

import (
	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/phishguard/phishguard/internal/adapters/cache"
	"github.com/phishguard/phishguard/internal/adapters/phishapi"
	"github.com/phishguard/phishguard/internal/allowlist"
	"github.com/phishguard/phishguard/internal/config"
	"github.com/phishguard/phishguard/internal/core"
	"github.com/phishguard/phishguard/internal/dispatch"
	"github.com/phishguard/phishguard/internal/factory"
	"github.com/phishguard/phishguard/internal/logging"
	"github.com/phishguard/phishguard/internal/server"
	"github.com/phishguard/phishguard/internal/settings"
	"github.com/phishguard/phishguard/internal/stats"
	"github.com/phishguard/phishguard/internal/whitelist"
)

// BuildContainer creates and configures a dependency injection container
func BuildContainer() (*dig.Container, error) {
	container := dig.New()

	// Register configuration
	if err := container.Provide(config.New); err != nil {
		return nil, err
	}

	// Register logger
	if err := container.Provide(logging.InitLogger); err != nil {
		return nil, err
	}

	// Register stats collector
	if err := container.Provide(stats.NewCollector); err != nil {
		return nil, err
	}

	// Register persisted store
	if err := container.Provide(factory.NewStorageFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(func(f *factory.StorageFactory) (core.Store, error) {
		return f.CreateStore()
	}); err != nil {
		return nil, err
	}

	// Register settings manager
	if err := container.Provide(settings.NewManager); err != nil {
		return nil, err
	}
	if err := container.Provide(func(m *settings.Manager) core.SettingsProvider {
		return m
	}); err != nil {
		return nil, err
	}

	// Register result cache
	if err := container.Provide(func(cfg *config.Config, logger *zap.Logger) (*cache.MemoryCache, error) {
		cacheCfg, err := cfg.GetCache()
		if err != nil {
			return nil, err
		}
		return cache.NewMemoryCache(logger, cacheCfg.TTL, cacheCfg.SweepFrequency, cacheCfg.MaxEntries), nil
	}); err != nil {
		return nil, err
	}
	if err := container.Provide(func(c *cache.MemoryCache) core.ResultCache {
		return c
	}); err != nil {
		return nil, err
	}

	// Register temporary allow-list
	if err := container.Provide(func(cfg *config.Config, logger *zap.Logger) (*allowlist.TemporaryAllowList, error) {
		ttl, err := cfg.GetDuration("allowlist.ttl")
		if err != nil {
			return nil, err
		}
		return allowlist.New(ttl, logger), nil
	}); err != nil {
		return nil, err
	}
	if err := container.Provide(func(l *allowlist.TemporaryAllowList) core.AllowList {
		return l
	}); err != nil {
		return nil, err
	}

	// Register whitelist checker
	if err := container.Provide(whitelist.NewChecker); err != nil {
		return nil, err
	}
	if err := container.Provide(func(c *whitelist.Checker) core.WhitelistChecker {
		return c
	}); err != nil {
		return nil, err
	}

	// Register classification client
	if err := container.Provide(func(
		cfg *config.Config,
		resultCache core.ResultCache,
		provider core.SettingsProvider,
		collector *stats.Collector,
		logger *zap.Logger,
	) (*phishapi.Client, error) {
		apiCfg, err := cfg.GetAPI()
		if err != nil {
			return nil, err
		}
		return phishapi.NewClient(apiCfg, resultCache, provider, collector, logger), nil
	}); err != nil {
		return nil, err
	}
	if err := container.Provide(func(c *phishapi.Client) core.Classifier {
		return c
	}); err != nil {
		return nil, err
	}

	// Register action dispatcher
	if err := container.Provide(func(
		cfg *config.Config,
		collector *stats.Collector,
		store core.Store,
		provider core.SettingsProvider,
		logger *zap.Logger,
	) (*dispatch.Dispatcher, error) {
		gateCfg, err := cfg.GetGate()
		if err != nil {
			return nil, err
		}
		return dispatch.NewDispatcher(collector, store, provider, gateCfg.BlockPage, gateCfg.WarnDelay, logger), nil
	}); err != nil {
		return nil, err
	}
	if err := container.Provide(func(d *dispatch.Dispatcher) core.Dispatcher {
		return d
	}); err != nil {
		return nil, err
	}

	// Register navigation gate
	if err := container.Provide(core.NewNavigationGate); err != nil {
		return nil, err
	}

	// Register control server
	if err := container.Provide(func(
		cfg *config.Config,
		gate *core.NavigationGate,
		classifier core.Classifier,
		resultCache core.ResultCache,
		allowList core.AllowList,
		settingsMgr *settings.Manager,
		collector *stats.Collector,
		store core.Store,
		dispatcher *dispatch.Dispatcher,
		logger *zap.Logger,
	) *server.Server {
		return server.New(
			gate,
			classifier,
			resultCache,
			allowList,
			settingsMgr,
			collector,
			store,
			dispatcher,
			cfg.GetServer().ListenAddress,
			logger,
		)
	}); err != nil {
		return nil, err
	}

	return container, nil
}
