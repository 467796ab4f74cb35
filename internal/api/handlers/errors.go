package handlers

import "github.com/gin-gonic/gin"

func respondError(c *gin.Context, status int, code, message string) {
	c.JSON(status, gin.H{"error": gin.H{"code": code, "message": message}})
}

func invalidRequest(c *gin.Context, message string) { respondError(c, 400, "invalid_request", message) }
func unauthorizedErr(c *gin.Context)                 { respondError(c, 401, "unauthorized", "unauthorized") }
func notFound(c *gin.Context, message string)       { respondError(c, 404, "not_found", message) }
func internalError(c *gin.Context, message string)  { respondError(c, 500, "internal", message) }
