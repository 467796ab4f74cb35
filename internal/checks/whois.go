package checks

import (
	"context"
	"strings"
	"time"

	"github.com/likexian/whois"
	"github.com/synthwatch/e2emon/internal/store"
)

// WHOISChecker is an optional plug-in probe that catches domain
// registration lapses (expired or about-to-expire registration, rather
// than a TLS certificate) that neither the HTTP nor SSL checks would see
// coming until resolution itself starts failing.
type WHOISChecker struct {
	client *whois.Client
}

func NewWHOISChecker() *WHOISChecker {
	c := whois.NewClient()
	c.SetTimeout(10 * time.Second)
	return &WHOISChecker{client: c}
}

var noMatchMarkers = []string{"no match for", "not found", "no data found", "domain not found"}

func (c *WHOISChecker) Check(ctx context.Context, d *store.Domain) Observation {
	start := time.Now()

	raw, err := c.client.Whois(d.Name)
	elapsed := elapsedMs(start)
	if err != nil {
		return Observation{Status: store.RunFail, ElapsedMs: elapsed, ErrorKind: "whois", ErrorMessage: err.Error()}
	}

	lower := strings.ToLower(raw)
	for _, marker := range noMatchMarkers {
		if strings.Contains(lower, marker) {
			return Observation{Status: store.RunFail, ElapsedMs: elapsed, ErrorKind: "whois", ErrorMessage: "registration not found"}
		}
	}
	return Observation{Status: store.RunPass, ElapsedMs: elapsed}
}
