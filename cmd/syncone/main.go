// Command syncone runs a single synchronization job and exits. The job kind
// is the first argument, or SYNC_KIND, defaulting to "all".
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/kmicac/matchsync/internal/config"
	"github.com/kmicac/matchsync/internal/scheduler"
	"github.com/kmicac/matchsync/internal/syncer"
	"github.com/kmicac/matchsync/pkg/logger"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if err := logger.InitLogger(cfg.Logging.Level, cfg.Logging.Format); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	kind := os.Getenv("SYNC_KIND")
	if len(os.Args) > 1 {
		kind = os.Args[1]
	}
	if kind == "" {
		kind = syncer.JobAll
	}

	if err := config.InitDatabase(cfg.Database.CachePath, cfg.Scheduler); err != nil {
		logger.Warn("Run ledger unavailable, job history will not be recorded", zap.Error(err))
	} else {
		defer config.CloseDatabase()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sched := scheduler.NewScheduler(cfg, syncer.NewSyncer(cfg))
	res, err := sched.Run(ctx, kind)
	if err != nil {
		logger.Error("Sync failed",
			zap.String("kind", kind),
			zap.Strings("kinds", syncer.Kinds),
			zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}

	logger.Info("Sync finished",
		zap.String("kind", kind),
		zap.Int("processed", res.Processed),
		zap.Int("skipped", res.Skipped))
}
