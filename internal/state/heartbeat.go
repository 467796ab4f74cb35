package state

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/synthwatch/e2emon/internal/heartbeat"
	"github.com/synthwatch/e2emon/internal/report"
)

// RunHeartbeatLoop blocks, waking at each of the schedule's wall-clock
// anchors to compose and dispatch a status summary via the Sink, even
// when no transitions have occurred in the interim. The summary carries
// the enabled-test count, the failing count, the slowest_N runs of the
// last 24h and each tenant's latest run; it does not include per-subject
// last_ok_ts or last elapsed_ms, and domains are not counted.
func (e *Engine) RunHeartbeatLoop(ctx context.Context, sched *heartbeat.Schedule, slowestN int) {
	for {
		next := sched.Next(time.Now())
		wait := time.Until(next)
		if wait < 0 {
			wait = 0
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}

		summary, err := report.BuildSummary(e.db, slowestN)
		if err != nil {
			e.logger.Error("store_io building heartbeat summary", zap.Error(err))
			continue
		}
		e.sink.SendHeartbeat(ctx, formatHeartbeat(summary))
	}
}

func formatHeartbeat(s *report.Summary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[HEARTBEAT] %d tests enabled, %d failing\n", s.TestsTotal, s.Failing)
	if len(s.SlowestN) > 0 {
		b.WriteString("slowest:\n")
		for _, t := range s.SlowestN {
			fmt.Fprintf(&b, "  %s: %dms\n", t.Name, t.ElapsedMs)
		}
	}
	for _, lr := range s.LastRunPerTenant {
		fmt.Fprintf(&b, "tenant %s last run: %s (%s)\n", lr.TenantID, lr.Status, lr.FinishedAt)
	}
	return strings.TrimRight(b.String(), "\n")
}
