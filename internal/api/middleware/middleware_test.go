package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

func TestBearerTokenExtractsToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer abc123")
	c.Request = req

	if got := bearerToken(c); got != "abc123" {
		t.Fatalf("expected abc123, got %q", got)
	}
}

func TestBearerTokenMissingHeaderReturnsEmpty(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

	if got := bearerToken(c); got != "" {
		t.Fatalf("expected empty string, got %q", got)
	}
}

func TestBearerTokenWrongSchemeReturnsEmpty(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Basic abc123")
	c.Request = req

	if got := bearerToken(c); got != "" {
		t.Fatalf("expected empty string for a non-Bearer scheme, got %q", got)
	}
}

func TestTenantIDFromUnsetReturnsFalse(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())

	if _, ok := TenantIDFrom(c); ok {
		t.Fatal("expected ok=false when tenant_id was never set")
	}
}

func TestTenantIDFromReturnsSetValue(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	want := uuid.New()
	c.Set(tenantIDKey, want)

	got, ok := TenantIDFrom(c)
	if !ok || got != want {
		t.Fatalf("expected %v, got %v (ok=%v)", want, got, ok)
	}
}

func TestRequireAdminRejectsNonAdmin(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

	RequireAdmin(c)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if !c.IsAborted() {
		t.Fatal("expected the context to be aborted")
	}
}

func TestRequireAdminAllowsAdmin(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	c.Set(isAdminKey, true)

	RequireAdmin(c)

	if c.IsAborted() {
		t.Fatal("expected the context not to be aborted for an admin caller")
	}
}

func TestTenantRateLimitAllowsWithinBurst(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	tenantID := uuid.New()
	r.Use(func(c *gin.Context) {
		c.Set(tenantIDKey, tenantID)
		c.Next()
	})
	r.Use(TenantRateLimit(1, 2))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200 within burst, got %d", i, rec.Code)
		}
	}
}

func TestTenantRateLimitRejectsOverBurst(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	tenantID := uuid.New()
	r.Use(func(c *gin.Context) {
		c.Set(tenantIDKey, tenantID)
		c.Next()
	})
	r.Use(TenantRateLimit(0.001, 1))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	rec1 := httptest.NewRecorder()
	r.ServeHTTP(rec1, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec1.Code != http.StatusOK {
		t.Fatalf("expected the first request to pass, got %d", rec1.Code)
	}

	rec2 := httptest.NewRecorder()
	r.ServeHTTP(rec2, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec2.Code != http.StatusTooManyRequests {
		t.Fatalf("expected the second request to be rate limited, got %d", rec2.Code)
	}
}

func TestTenantRateLimitSkipsWhenNoTenant(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(TenantRateLimit(0.001, 1))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: expected rate limiting to be skipped without a tenant, got %d", i, rec.Code)
		}
	}
}
