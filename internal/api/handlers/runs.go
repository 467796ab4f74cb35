package handlers

import (
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/synthwatch/e2emon/internal/api/middleware"
	"github.com/synthwatch/e2emon/internal/artifacts"
	"github.com/synthwatch/e2emon/internal/store"
)

type RunHandler struct {
	db        *store.DB
	artifacts *artifacts.Store
	logger    *zap.Logger
}

func NewRunHandler(db *store.DB, art *artifacts.Store, logger *zap.Logger) *RunHandler {
	return &RunHandler{db: db, artifacts: art, logger: logger}
}

func (h *RunHandler) ListForTest(c *gin.Context) {
	tenantID, ok := middleware.TenantIDFrom(c)
	if !ok {
		unauthorizedErr(c)
		return
	}
	testID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		invalidRequest(c, "malformed test id")
		return
	}
	if _, err := h.db.GetTest(testID, tenantID); err == store.ErrNotFound {
		notFound(c, "test not found")
		return
	}

	limit, _ := strconv.Atoi(c.Query("limit"))
	runs, err := h.db.ListRunsForTest(testID, tenantID, limit)
	if err != nil {
		internalError(c, "could not list runs")
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs})
}

func (h *RunHandler) Get(c *gin.Context) {
	tenantID, ok := middleware.TenantIDFrom(c)
	if !ok {
		unauthorizedErr(c)
		return
	}
	runID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		invalidRequest(c, "malformed run id")
		return
	}

	run, err := h.db.GetRunForTenant(runID, tenantID)
	if err == store.ErrNotFound {
		notFound(c, "run not found")
		return
	}
	if err != nil {
		internalError(c, "could not load run")
		return
	}
	c.JSON(http.StatusOK, run)
}

func (h *RunHandler) DownloadArtifact(c *gin.Context) {
	tenantID, ok := middleware.TenantIDFrom(c)
	if !ok {
		unauthorizedErr(c)
		return
	}
	runID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		invalidRequest(c, "malformed run id")
		return
	}
	name := c.Param("name")

	run, err := h.db.GetRunForTenant(runID, tenantID)
	if err == store.ErrNotFound {
		notFound(c, "run not found")
		return
	}
	if err != nil {
		internalError(c, "could not load run")
		return
	}

	test, err := h.db.GetTest(run.TestID, tenantID)
	if err != nil {
		notFound(c, "run not found")
		return
	}

	f, err := h.artifacts.ReadArtifact(tenantID, test.ID, run.ID, name)
	if err != nil {
		notFound(c, "artifact not found")
		return
	}
	defer f.Close()

	c.Status(http.StatusOK)
	if _, err := io.Copy(c.Writer, f); err != nil {
		h.logger.Warn("artifact download interrupted", zap.Error(err))
	}
}
