package checks

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/synthwatch/e2emon/internal/store"
)

// HTTPChecker is the core HTTP-liveness probe for domain uptime.
type HTTPChecker struct {
	client *http.Client
}

func NewHTTPChecker() *HTTPChecker {
	return &HTTPChecker{
		client: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{InsecureSkipVerify: false},
			},
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return fmt.Errorf("stopped after 10 redirects")
				}
				return nil
			},
		},
	}
}

func (h *HTTPChecker) Check(ctx context.Context, d *store.Domain) Observation {
	cfg := d.HTTPCheckCfg
	method, _ := cfg["method"].(string)
	if method == "" {
		method = "GET"
	}
	url, _ := cfg["url"].(string)
	if url == "" {
		url = "https://" + d.Name
	}
	timeout := 10 * time.Second
	if t, ok := cfg["timeout_seconds"].(float64); ok && t > 0 {
		timeout = time.Duration(t) * time.Second
	}

	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, method, url, nil)
	if err != nil {
		return Observation{Status: store.RunFail, ErrorKind: "user_input", ErrorMessage: err.Error()}
	}

	start := time.Now()
	resp, err := h.client.Do(req)
	elapsed := elapsedMs(start)
	if err != nil {
		return Observation{Status: store.RunFail, ElapsedMs: elapsed, ErrorKind: "timeout", ErrorMessage: err.Error()}
	}
	defer resp.Body.Close()

	expected := 200
	if code, ok := cfg["expected_status"].(float64); ok {
		expected = int(code)
	}
	if resp.StatusCode != expected {
		return Observation{
			Status:       store.RunFail,
			ElapsedMs:    elapsed,
			ErrorKind:    "http_status",
			ErrorMessage: fmt.Sprintf("expected status %d, got %d", expected, resp.StatusCode),
		}
	}

	if search, _ := cfg["search_string"].(string); search != "" {
		body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		if err != nil {
			return Observation{Status: store.RunFail, ElapsedMs: elapsed, ErrorKind: "http_body", ErrorMessage: err.Error()}
		}
		if !strings.Contains(string(body), search) {
			return Observation{Status: store.RunFail, ElapsedMs: elapsed, ErrorKind: "http_body", ErrorMessage: "search string not found"}
		}
	}

	return Observation{Status: store.RunPass, ElapsedMs: elapsed}
}
