// Command worker executes due work: the Runner Pool claims queued test
// runs and drives the sandbox, the Domain Monitor runs the built-in
// HTTP/browser/optional checks against the curated domain list, and both
// feed the shared State & Alert Engine. Check execution, the metrics
// collector, and its remote-write exporter all run in this one process.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/synthwatch/e2emon/internal/alerttransport"
	"github.com/synthwatch/e2emon/internal/artifacts"
	"github.com/synthwatch/e2emon/internal/checks"
	"github.com/synthwatch/e2emon/internal/config"
	"github.com/synthwatch/e2emon/internal/domainconfig"
	"github.com/synthwatch/e2emon/internal/domainmon"
	"github.com/synthwatch/e2emon/internal/escalationclient"
	"github.com/synthwatch/e2emon/internal/heartbeat"
	"github.com/synthwatch/e2emon/internal/metrics"
	"github.com/synthwatch/e2emon/internal/queue"
	"github.com/synthwatch/e2emon/internal/runner"
	"github.com/synthwatch/e2emon/internal/state"
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

	if err := store.Migrate(cfg.Database.URL); err != nil {
		logger.Fatal("run migrations", zap.Error(err))
	}

	art := artifacts.New(cfg.Data.ArtifactsDir)

	doorbell, err := queue.NewRing(cfg.Redis.URL)
	if err != nil {
		logger.Fatal("connect doorbell", zap.Error(err))
	}
	defer doorbell.Close()

	transport := alerttransport.NewWebhookSink(cfg.Alert.Endpoint, cfg.Alert.TransportToken)
	sink := state.NewTransportSink(transport, logger)

	collector := metrics.NewCollector(metrics.RemoteWriteConfig{
		URL:           cfg.Metrics.RemoteWriteURL,
		TenantHeader:  cfg.Metrics.TenantHeader,
		BatchSize:     cfg.Metrics.BatchSize,
		FlushInterval: cfg.Metrics.FlushInterval,
		AuthToken:     cfg.Metrics.RemoteWriteAuth,
	})
	sink = sink.WithMetrics(collector)

	engine := state.NewEngine(db, sink, cfg.Data.ArtifactsDir, logger).WithMetrics(collector)
	if cfg.Escalation.Enabled {
		esc := escalationclient.NewClient(cfg.Escalation.Endpoint, cfg.Escalation.Token)
		engine = engine.WithEscalation(esc, cfg.Escalation.Model, cfg.Escalation.PollInterval, cfg.Escalation.PollTimeout)
	}

	cfgProvider := domainconfig.NewProvider(cfg.Data.DomainsFile)
	if err := reloadDomainConfig(cfgProvider, db, logger); err != nil {
		logger.Fatal("load domain config", zap.Error(err))
	}

	httpChecker := checks.NewHTTPChecker()
	var browserChecker checks.Checker
	if cfg.Sandbox.BrowserExecutablePath != "" {
		browserChecker = checks.NewBrowserChecker(cfg.Data.ArtifactsDir, sandboxBinPath())
	}
	optionalProbes := []checks.Checker{
		checks.NewDNSChecker(""),
		checks.NewSSLChecker(0),
		checks.NewWHOISChecker(),
	}

	pool := runner.NewPool(runner.Config{
		WorkerCount:    cfg.Runner.WorkerCount,
		LeaseGrace:     cfg.Runner.LeaseGrace,
		SandboxGrace:   cfg.Runner.SandboxGrace,
		SandboxBinPath: sandboxBinPath(),
		SweepInterval:  cfg.Runner.SweepInterval,
	}, db, art, engine, logger).WithMetrics(collector).WithDoorbell(doorbell)

	monitor := domainmon.New(domainmon.Config{}, db, cfgProvider, engine, httpChecker, browserChecker, optionalProbes, logger).WithMetrics(collector)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go pool.Run(ctx)
	go monitor.Run(ctx)
	go collector.StartRemoteWrite(ctx)

	if len(cfg.Heartbeat.Anchors) > 0 {
		hbSched, err := heartbeat.NewSchedule(cfg.Heartbeat.Anchors, cfg.Heartbeat.Timezone)
		if err != nil {
			logger.Error("invalid heartbeat schedule, heartbeats disabled", zap.Error(err))
		} else {
			go engine.RunHeartbeatLoop(ctx, hbSched, 10)
		}
	}

	go watchSIGHUP(ctx, cfgProvider, db, logger)

	logger.Info("worker started")
	<-ctx.Done()
	logger.Info("worker shutting down")
}

func watchSIGHUP(ctx context.Context, provider *domainconfig.Provider, db *store.DB, logger *zap.Logger) {
	sighup := make(chan os.Signal, 1)
	signal.Notify(sighup, syscall.SIGHUP)
	defer signal.Stop(sighup)

	for {
		select {
		case <-ctx.Done():
			return
		case <-sighup:
			if err := reloadDomainConfig(provider, db, logger); err != nil {
				logger.Error("reload domain config", zap.Error(err))
			} else {
				logger.Info("domain config reloaded")
			}
		}
	}
}

// reloadDomainConfig loads the YAML domain list, upserts the persisted
// config columns and ensures a domain_states row exists for each, then
// prunes any domain no longer present in the file.
func reloadDomainConfig(provider *domainconfig.Provider, db *store.DB, logger *zap.Logger) error {
	domains, err := provider.Load()
	if err != nil {
		return err
	}
	for _, d := range domains {
		if err := db.UpsertDomain(d); err != nil {
			logger.Error("store_io upserting domain", zap.Error(err))
			continue
		}
		if err := db.CreateDomainState(d.Name); err != nil {
			logger.Error("store_io creating domain state", zap.Error(err))
		}
	}
	return db.RemoveDomainsNotIn(provider.Names())
}

func sandboxBinPath() string {
	if p := os.Getenv("SANDBOX_RUNNER_BIN"); p != "" {
		return p
	}
	return "/usr/local/bin/sandboxrunner"
}
