package middleware

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// TenantRateLimit enforces a per-tenant token-bucket limit on write
// endpoints, returning rate_limited once a tenant's bucket is exhausted.
// One limiter per tenant is created lazily and kept for the process
// lifetime; the limiter set is small relative to the tenant catalog, so
// it is never evicted.
func TenantRateLimit(ratePerSecond float64, burst int) gin.HandlerFunc {
	var mu sync.Mutex
	limiters := map[uuid.UUID]*rate.Limiter{}

	return func(c *gin.Context) {
		tenantID, ok := TenantIDFrom(c)
		if !ok {
			c.Next()
			return
		}

		mu.Lock()
		limiter, exists := limiters[tenantID]
		if !exists {
			limiter = rate.NewLimiter(rate.Limit(ratePerSecond), burst)
			limiters[tenantID] = limiter
		}
		mu.Unlock()

		if !limiter.Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": gin.H{"code": "rate_limited", "message": "too many requests"},
			})
			return
		}
		c.Next()
	}
}
