// Package api wires the Registry API's gin engine: a thin struct holding
// the engine plus the collaborators handlers need, with route
// registration split into its own method.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/synthwatch/e2emon/internal/api/handlers"
	"github.com/synthwatch/e2emon/internal/api/middleware"
	"github.com/synthwatch/e2emon/internal/artifacts"
	"github.com/synthwatch/e2emon/internal/store"
	"github.com/synthwatch/e2emon/pkg/ssoauth"
)

type Server struct {
	Engine *gin.Engine
	http   *http.Server
}

type Deps struct {
	DB        *store.DB
	Artifacts *artifacts.Store
	SSO       *ssoauth.Client
	Logger    *zap.Logger

	RateLimitPerSecond float64
	RateLimitBurst     int
}

func NewServer(addr string, ginMode string, deps Deps) *Server {
	gin.SetMode(ginMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(requestLogger(deps.Logger))

	s := &Server{Engine: engine}
	s.setupRoutes(deps)

	s.http = &http.Server{
		Addr:         addr,
		Handler:      engine,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 2 * time.Minute,
	}
	return s
}

func (s *Server) setupRoutes(deps Deps) {
	s.Engine.GET("/health", handlers.HealthCheck(deps.DB))

	testHandler := handlers.NewTestHandler(deps.DB, deps.Artifacts, deps.Logger)
	runHandler := handlers.NewRunHandler(deps.DB, deps.Artifacts, deps.Logger)
	adminHandler := handlers.NewAdminHandler(deps.DB, deps.Logger)

	v1 := s.Engine.Group("/api/v1")
	v1.Use(middleware.AdminAuth(deps.SSO))
	v1.Use(middleware.TenantAuth(deps.DB))

	writes := v1.Group("")
	writes.Use(middleware.TenantRateLimit(deps.RateLimitPerSecond, deps.RateLimitBurst))
	{
		writes.POST("/tests/upload", testHandler.Upload)
		writes.PATCH("/tests/:id", testHandler.UpdateMetadata)
		writes.POST("/tests/:id/source", testHandler.ReplaceSource)
		writes.POST("/tests/:id/disable", testHandler.Disable)
		writes.POST("/tests/:id/enable", testHandler.Enable)
		writes.POST("/tests/:id/run", testHandler.RunNow)
	}

	v1.GET("/tests", testHandler.List)
	v1.GET("/tests/:id", testHandler.Get)
	v1.GET("/tests/:id/runs", runHandler.ListForTest)
	v1.GET("/runs/:id", runHandler.Get)
	v1.GET("/runs/:id/artifacts/:name", runHandler.DownloadArtifact)

	admin := v1.Group("/status")
	admin.Use(middleware.RequireAdmin)
	admin.GET("/summary", adminHandler.StatusSummary)
}

func (s *Server) ListenAndServe() error {
	return s.http.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("elapsed", time.Since(start)),
		)
	}
}
