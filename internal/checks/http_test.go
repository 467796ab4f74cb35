package checks

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/synthwatch/e2emon/internal/store"
)

func TestHTTPCheckerPassOnExpectedStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	checker := NewHTTPChecker()
	domain := &store.Domain{Name: "example.com", HTTPCheckCfg: store.JSONB{"url": srv.URL}}
	obs := checker.Check(context.Background(), domain)

	if obs.Status != store.RunPass {
		t.Fatalf("expected pass, got %s (%s)", obs.Status, obs.ErrorMessage)
	}
}

func TestHTTPCheckerFailsOnUnexpectedStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	checker := NewHTTPChecker()
	domain := &store.Domain{Name: "example.com", HTTPCheckCfg: store.JSONB{"url": srv.URL}}
	obs := checker.Check(context.Background(), domain)

	if obs.Status != store.RunFail || obs.ErrorKind != "http_status" {
		t.Fatalf("expected http_status failure, got status=%s kind=%s", obs.Status, obs.ErrorKind)
	}
}

func TestHTTPCheckerFailsWhenSearchStringMissing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("nothing matches here"))
	}))
	defer srv.Close()

	checker := NewHTTPChecker()
	domain := &store.Domain{Name: "example.com", HTTPCheckCfg: store.JSONB{
		"url":           srv.URL,
		"search_string": "expected-marker",
	}}
	obs := checker.Check(context.Background(), domain)

	if obs.Status != store.RunFail || obs.ErrorKind != "http_body" {
		t.Fatalf("expected http_body failure, got status=%s kind=%s", obs.Status, obs.ErrorKind)
	}
}

func TestHTTPCheckerPassesWhenSearchStringFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(strings.Repeat("x", 10) + "expected-marker" + strings.Repeat("y", 10)))
	}))
	defer srv.Close()

	checker := NewHTTPChecker()
	domain := &store.Domain{Name: "example.com", HTTPCheckCfg: store.JSONB{
		"url":           srv.URL,
		"search_string": "expected-marker",
	}}
	obs := checker.Check(context.Background(), domain)

	if obs.Status != store.RunPass {
		t.Fatalf("expected pass, got %s (%s)", obs.Status, obs.ErrorMessage)
	}
}

func TestHTTPCheckerCustomExpectedStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	checker := NewHTTPChecker()
	domain := &store.Domain{Name: "example.com", HTTPCheckCfg: store.JSONB{
		"url":             srv.URL,
		"expected_status": float64(201),
	}}
	obs := checker.Check(context.Background(), domain)

	if obs.Status != store.RunPass {
		t.Fatalf("expected pass with custom expected_status, got %s (%s)", obs.Status, obs.ErrorMessage)
	}
}
