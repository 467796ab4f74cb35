package checks

import (
	"context"
	"fmt"
	"time"

	"github.com/miekg/dns"
	"github.com/synthwatch/e2emon/internal/store"
)

// DNSChecker is an optional plug-in probe that resolves a domain's
// A records against a configured
// resolver, useful for catching DNS-layer outages an HTTP check alone
// would report as generic timeouts.
type DNSChecker struct {
	resolver string
	client   *dns.Client
}

func NewDNSChecker(resolver string) *DNSChecker {
	if resolver == "" {
		resolver = "1.1.1.1:53"
	}
	return &DNSChecker{resolver: resolver, client: &dns.Client{Timeout: 5 * time.Second}}
}

func (c *DNSChecker) Check(ctx context.Context, d *store.Domain) Observation {
	start := time.Now()

	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(d.Name), dns.TypeA)

	resp, _, err := c.client.ExchangeContext(ctx, msg, c.resolver)
	elapsed := elapsedMs(start)
	if err != nil {
		return Observation{Status: store.RunFail, ElapsedMs: elapsed, ErrorKind: "dns", ErrorMessage: err.Error()}
	}
	if resp.Rcode != dns.RcodeSuccess {
		return Observation{
			Status:       store.RunFail,
			ElapsedMs:    elapsed,
			ErrorKind:    "dns",
			ErrorMessage: fmt.Sprintf("rcode %s", dns.RcodeToString[resp.Rcode]),
		}
	}
	if len(resp.Answer) == 0 {
		return Observation{Status: store.RunFail, ElapsedMs: elapsed, ErrorKind: "dns", ErrorMessage: "no A records"}
	}
	return Observation{Status: store.RunPass, ElapsedMs: elapsed, Details: map[string]interface{}{"answers": len(resp.Answer)}}
}
