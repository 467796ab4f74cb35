// Package middleware holds the Registry API's gin middleware: tenant
// bearer-token auth, admin JWT auth, and per-tenant rate limiting.
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/synthwatch/e2emon/internal/authtoken"
	"github.com/synthwatch/e2emon/internal/store"
	"github.com/synthwatch/e2emon/pkg/ssoauth"
)

const (
	tenantIDKey = "tenant_id"
	isAdminKey  = "is_admin"
)

// TenantAuth resolves a request's Bearer token to a tenant by hash. An
// admin-scope JWT (validated separately by AdminAuth layered before this
// middleware on admin-capable routes) bypasses tenant filtering, so this
// middleware is a no-op once is_admin is already set in context.
func TenantAuth(db *store.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if admin, _ := c.Get(isAdminKey); admin == true {
			c.Next()
			return
		}

		token := bearerToken(c)
		if token == "" {
			respondUnauthorized(c, "bearer token required")
			return
		}

		tenantID, err := db.TenantByTokenHash(authtoken.Hash(token))
		if err != nil {
			respondUnauthorized(c, "invalid or revoked token")
			return
		}
		c.Set(tenantIDKey, tenantID)
		c.Next()
	}
}

// AdminAuth validates an admin-scope JWT and, on success, marks the
// request as admin so TenantAuth skips tenant-hash resolution. Routes that
// are admin-only (not merely admin-capable) should additionally call
// RequireAdmin.
func AdminAuth(sso *ssoauth.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			c.Next()
			return
		}
		claims, err := sso.ValidateToken(token)
		if err != nil {
			c.Next()
			return
		}
		if scope, _ := claims["scope"].(string); strings.Contains(scope, "admin") {
			c.Set(isAdminKey, true)
		}
		c.Next()
	}
}

func RequireAdmin(c *gin.Context) {
	if admin, _ := c.Get(isAdminKey); admin != true {
		respondUnauthorized(c, "admin scope required")
		c.Abort()
		return
	}
	c.Next()
}

func TenantIDFrom(c *gin.Context) (uuid.UUID, bool) {
	v, ok := c.Get(tenantIDKey)
	if !ok {
		return uuid.UUID{}, false
	}
	id, ok := v.(uuid.UUID)
	return id, ok
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if header == "" {
		return ""
	}
	trimmed := strings.TrimPrefix(header, "Bearer ")
	if trimmed == header {
		return ""
	}
	return trimmed
}

func respondUnauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": gin.H{"code": "unauthorized", "message": message}})
}
