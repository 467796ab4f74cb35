// Command api serves the Registry API: tenant test upload/management,
// run history, artifact downloads, and the admin status summary.
package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/synthwatch/e2emon/internal/api"
	"github.com/synthwatch/e2emon/internal/artifacts"
	"github.com/synthwatch/e2emon/internal/config"
	"github.com/synthwatch/e2emon/internal/store"
	"github.com/synthwatch/e2emon/pkg/ssoauth"
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
	sso := ssoauth.NewClient(ssoauth.Config{
		IssuerURL: cfg.Admin.Issuer,
		JWKSPath:  cfg.Admin.JWKSURL,
	}, logger)

	server := api.NewServer(":"+cfg.Server.Port, cfg.Server.Mode, api.Deps{
		DB:        db,
		Artifacts: art,
		SSO:       sso,
		Logger:    logger,

		RateLimitPerSecond: 10,
		RateLimitBurst:     20,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := server.ListenAndServe(); err != nil {
			logger.Info("http server stopped", zap.Error(err))
		}
	}()

	logger.Info("api started", zap.String("addr", ":"+cfg.Server.Port))
	<-ctx.Done()
	logger.Info("api shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
}
