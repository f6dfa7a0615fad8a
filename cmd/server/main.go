package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/kmicac/matchsync/internal/api"
	"github.com/kmicac/matchsync/internal/config"
	"github.com/kmicac/matchsync/internal/scheduler"
	"github.com/kmicac/matchsync/internal/syncer"
	"github.com/kmicac/matchsync/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	if err := logger.InitLogger(cfg.Logging.Level, cfg.Logging.Format); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting matchsync service",
		zap.String("version", api.Version),
		zap.String("environment", cfg.Server.Environment),
		zap.Strings("competitions", cfg.Schedule.Competitions),
		zap.String("data_dir", cfg.Storage.DataDir),
	)

	// Initialize run ledger
	if err := config.InitDatabase(cfg.Database.CachePath, cfg.Scheduler); err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer config.CloseDatabase()

	logger.Info("Database initialized successfully")

	// Initialize scheduler
	syncService := syncer.NewSyncer(cfg)
	cronScheduler := scheduler.NewScheduler(cfg, syncService)
	if err := cronScheduler.Start(); err != nil {
		logger.Fatal("Failed to start scheduler", zap.Error(err))
	}

	// Initialize HTTP router
	router := api.NewRouter(cfg, cronScheduler, syncService)

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("HTTP server listening", zap.String("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	// Stop scheduler, cancelling a sync in progress
	cronScheduler.Stop()

	logger.Info("Server stopped gracefully")
}
