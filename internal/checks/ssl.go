package checks

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"time"

	"github.com/synthwatch/e2emon/internal/store"
)

// SSLChecker is an optional plug-in probe that fails a subject once its
// leaf certificate is within warnWithin of expiry, catching the class of
// outage an HTTP status check alone would miss until the certificate has
// already lapsed.
type SSLChecker struct {
	warnWithin time.Duration
}

func NewSSLChecker(warnWithin time.Duration) *SSLChecker {
	if warnWithin <= 0 {
		warnWithin = 14 * 24 * time.Hour
	}
	return &SSLChecker{warnWithin: warnWithin}
}

func (c *SSLChecker) Check(ctx context.Context, d *store.Domain) Observation {
	start := time.Now()

	dialer := &net.Dialer{Timeout: 10 * time.Second}
	conn, err := tls.DialWithDialer(dialer, "tcp", d.Name+":443", &tls.Config{ServerName: d.Name})
	elapsed := elapsedMs(start)
	if err != nil {
		return Observation{Status: store.RunFail, ElapsedMs: elapsed, ErrorKind: "ssl", ErrorMessage: err.Error()}
	}
	defer conn.Close()

	certs := conn.ConnectionState().PeerCertificates
	if len(certs) == 0 {
		return Observation{Status: store.RunFail, ElapsedMs: elapsed, ErrorKind: "ssl", ErrorMessage: "no peer certificates"}
	}
	leaf := certs[0]
	remaining := time.Until(leaf.NotAfter)
	if remaining <= 0 {
		return Observation{Status: store.RunFail, ElapsedMs: elapsed, ErrorKind: "ssl", ErrorMessage: "certificate expired"}
	}
	if remaining <= c.warnWithin {
		return Observation{
			Status:       store.RunFail,
			ElapsedMs:    elapsed,
			ErrorKind:    "ssl",
			ErrorMessage: fmt.Sprintf("certificate expires in %s", remaining.Round(time.Hour)),
			Details:      map[string]interface{}{"not_after": leaf.NotAfter},
		}
	}
	return Observation{Status: store.RunPass, ElapsedMs: elapsed, Details: map[string]interface{}{"not_after": leaf.NotAfter}}
}
