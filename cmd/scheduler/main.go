// Command scheduler runs the due-time tick loop that scans due subjects
// and enqueues run jobs: a thin "decide what's due, push it" process
// distinct from cmd/worker, which executes the work.
package main

import (
	"context"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/synthwatch/e2emon/internal/config"
	"github.com/synthwatch/e2emon/internal/metrics"
	"github.com/synthwatch/e2emon/internal/queue"
	"github.com/synthwatch/e2emon/internal/scheduler"
	"github.com/synthwatch/e2emon/internal/store"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	db, err := store.Connect(cfg.Database.URL, cfg.Database.MaxConnections, cfg.Database.MaxIdleConns)
	if err != nil {
		logger.Fatal("connect database", zap.Error(err))
	}
	defer db.Close()

	doorbell, err := queue.NewRing(cfg.Redis.URL)
	if err != nil {
		logger.Fatal("connect doorbell", zap.Error(err))
	}
	defer doorbell.Close()

	collector := metrics.NewCollector(metrics.RemoteWriteConfig{
		URL:           cfg.Metrics.RemoteWriteURL,
		TenantHeader:  cfg.Metrics.TenantHeader,
		BatchSize:     cfg.Metrics.BatchSize,
		FlushInterval: cfg.Metrics.FlushInterval,
		AuthToken:     cfg.Metrics.RemoteWriteAuth,
	})

	sched := scheduler.New(scheduler.Config{
		TickInterval:         cfg.Scheduler.TickInterval,
		GlobalConcurrency:    cfg.Scheduler.GlobalConcurrency,
		PerTenantConcurrency: cfg.Scheduler.PerTenantConcurrency,
		BackoffFailThreshold: cfg.Scheduler.BackoffFailThreshold,
		BackoffMaxMultiplier: cfg.Scheduler.BackoffMaxMultiplier,
	}, db, doorbell, logger).WithMetrics(collector)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go collector.StartRemoteWrite(ctx)
	go sched.Run(ctx)

	logger.Info("scheduler started")
	<-ctx.Done()
	logger.Info("scheduler shutting down")
}
