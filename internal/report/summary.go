// Package report composes the admin status summary and the uptime
// percentage figure shown alongside it.
package report

import (
	"time"

	"github.com/google/uuid"

	"github.com/synthwatch/e2emon/internal/store"
)

type SlowTest struct {
	TestID    uuid.UUID `json:"test_id"`
	Name      string    `json:"name"`
	ElapsedMs int       `json:"elapsed_ms"`
}

type Summary struct {
	TestsTotal        int                     `json:"tests_total"`
	Failing           int                     `json:"failing"`
	SlowestN          []SlowTest              `json:"slowest_n"`
	LastRunPerTenant  []*store.TenantLastRun  `json:"last_run_per_tenant"`
}

// BuildSummary assembles the admin status summary. It is intentionally a
// handful of targeted queries rather than one large join, since the
// pieces have independent retention and indexing characteristics.
func BuildSummary(db *store.DB, slowestN int) (*Summary, error) {
	total, failing, err := db.TestCountsByEnabledAndState()
	if err != nil {
		return nil, err
	}

	slow, err := db.SlowestRunsRecent(slowestN, 24*time.Hour)
	if err != nil {
		return nil, err
	}
	slowest := make([]SlowTest, 0, len(slow))
	for _, r := range slow {
		slowest = append(slowest, SlowTest{TestID: r.TestID, Name: r.Name, ElapsedMs: r.ElapsedMs})
	}

	lastRuns, err := db.LatestRunPerTenant()
	if err != nil {
		return nil, err
	}

	return &Summary{
		TestsTotal:       total,
		Failing:          failing,
		SlowestN:         slowest,
		LastRunPerTenant: lastRuns,
	}, nil
}

// UptimePercent returns passing/total as a percentage (100 when total is
// 0): a straight pass-count ratio over whatever Run outcomes the caller
// counted, not a weighted time-in-state integral. It applies no time
// window itself.
func UptimePercent(total, passing int) float64 {
	if total == 0 {
		return 100.0
	}
	return float64(passing) / float64(total) * 100.0
}
