package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/synthwatch/e2emon/internal/report"
	"github.com/synthwatch/e2emon/internal/store"
)

type AdminHandler struct {
	db     *store.DB
	logger *zap.Logger
}

func NewAdminHandler(db *store.DB, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{db: db, logger: logger}
}

func (h *AdminHandler) StatusSummary(c *gin.Context) {
	summary, err := report.BuildSummary(h.db, 10)
	if err != nil {
		internalError(c, "could not build status summary")
		return
	}
	c.JSON(http.StatusOK, summary)
}
