package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/synthwatch/e2emon/internal/store"
)

func HealthCheck(db *store.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}
