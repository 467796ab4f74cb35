// Package checks implements the Domain Monitor's built-in probes: HTTP
// liveness and a minimal headless-browser expectation check, plus optional
// plug-in probes (DNS, SSL/TLS expiry, WHOIS) that feed the same
// Observation/observe() contract shared with the Runner Pool's Run
// classification.
package checks

import (
	"context"
	"time"

	"github.com/synthwatch/e2emon/internal/store"
)

// Observation is the Checker-side equivalent of a finished Run: enough to
// feed store.RunStatus classification and the State Engine's observe call.
type Observation struct {
	Status       store.RunStatus
	ElapsedMs    int
	ErrorKind    string
	ErrorMessage string
	Details      map[string]interface{}
}

// Checker is the abstract "probe" contract: any plug-in probe
// (container/host metrics, TLS/DNS, proxy log scanning) can satisfy it and
// feed the same debounce engine via observe(subject_id, status).
type Checker interface {
	Check(ctx context.Context, domain *store.Domain) Observation
}

func elapsedMs(start time.Time) int {
	return int(time.Since(start).Milliseconds())
}
