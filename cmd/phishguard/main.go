package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/phishguard/phishguard/internal/adapters/cache"
	"github.com/phishguard/phishguard/internal/allowlist"
	"github.com/phishguard/phishguard/internal/core"
	"github.com/phishguard/phishguard/internal/di"
	"github.com/phishguard/phishguard/internal/dispatch"
	"github.com/phishguard/phishguard/internal/server"
	"github.com/phishguard/phishguard/internal/settings"
	"go.uber.org/zap"
)

func main() {
	// Build the dependency injection container
	container, err := di.BuildContainer()
	if err != nil {
		fmt.Printf("Failed to build dependency container: %v\n", err)
		os.Exit(1)
	}

	// Run the application
	if err := container.Invoke(run); err != nil {
		fmt.Printf("Application error: %v\n", err)
		os.Exit(1)
	}
}

// run is the main application function that gets all dependencies injected
func run(
	logger *zap.Logger,
	settingsMgr *settings.Manager,
	srv *server.Server,
	resultCache *cache.MemoryCache,
	allowList *allowlist.TemporaryAllowList,
	dispatcher *dispatch.Dispatcher,
	store core.Store,
) error {
	defer logger.Sync()

	// Load persisted settings over defaults before gating anything
	if err := settingsMgr.Load(context.Background()); err != nil {
		return err
	}

	// Start the control server
	if err := srv.Start(); err != nil {
		logger.Fatal("Failed to start control server", zap.Error(err))
		return err
	}

	logger.Info("phishguard initialized")

	// Handle graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	<-sigCh
	logger.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Stop(shutdownCtx); err != nil {
		logger.Error("Failed to stop control server", zap.Error(err))
	}

	resultCache.Stop()
	allowList.Stop()
	dispatcher.Stop()

	if err := store.Close(); err != nil {
		logger.Error("Failed to close store", zap.Error(err))
	}

	logger.Info("Shutdown complete")
	return nil
}
