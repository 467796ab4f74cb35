package metrics

import (
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

var (
	sharedCollector     *Collector
	sharedCollectorOnce sync.Once
)

// testCollector returns a single Collector shared across this file's tests
// since NewCollector registers its metrics with the global Prometheus
// registry, and registering the same metric name twice panics.
func testCollector() *Collector {
	sharedCollectorOnce.Do(func() {
		sharedCollector = NewCollector(RemoteWriteConfig{})
	})
	return sharedCollector
}

func TestObserveRunIncrementsOutcomeCounter(t *testing.T) {
	c := testCollector()
	c.ObserveRun("tenant-1", "test-1", "script_python", "pass", 1.2)

	got := testutil.ToFloat64(c.runOutcome.WithLabelValues("tenant-1", "test-1", "pass"))
	if got != 1 {
		t.Fatalf("expected runOutcome to be 1, got %v", got)
	}
}

func TestIncRunsClaimedIncrementsPerWorker(t *testing.T) {
	c := testCollector()
	c.IncRunsClaimed("worker-a")
	c.IncRunsClaimed("worker-a")

	got := testutil.ToFloat64(c.runsTotal.WithLabelValues("worker-a"))
	if got != 2 {
		t.Fatalf("expected runsTotal to be 2, got %v", got)
	}
}

func TestSetQueueDepthSetsGauge(t *testing.T) {
	c := testCollector()
	c.SetQueueDepth("global", 7)

	got := testutil.ToFloat64(c.queueDepth.WithLabelValues("global"))
	if got != 7 {
		t.Fatalf("expected queueDepth to be 7, got %v", got)
	}
}

func TestIncSchedulerTickIncrementsCounter(t *testing.T) {
	c := testCollector()
	before := testutil.ToFloat64(c.schedulerTicks)
	c.IncSchedulerTick()
	after := testutil.ToFloat64(c.schedulerTicks)

	if after != before+1 {
		t.Fatalf("expected schedulerTicks to increment by 1, got %v -> %v", before, after)
	}
}

func TestIncSchedulerShedTracksReason(t *testing.T) {
	c := testCollector()
	c.IncSchedulerShed("concurrency_cap")

	got := testutil.ToFloat64(c.schedulerShed.WithLabelValues("concurrency_cap"))
	if got != 1 {
		t.Fatalf("expected schedulerShed to be 1, got %v", got)
	}
}

func TestSetSubjectStateSetsGauge(t *testing.T) {
	c := testCollector()
	c.SetSubjectState("tenant-1", "test", "subject-1", 2)

	got := testutil.ToFloat64(c.subjectState.WithLabelValues("tenant-1", "test", "subject-1"))
	if got != 2 {
		t.Fatalf("expected subjectState to be 2, got %v", got)
	}
}

func TestIncStateTransitionTracksEdge(t *testing.T) {
	c := testCollector()
	c.IncStateTransition("tenant-1", "domain", "down")

	got := testutil.ToFloat64(c.stateTransitions.WithLabelValues("tenant-1", "domain", "down"))
	if got != 1 {
		t.Fatalf("expected stateTransitions to be 1, got %v", got)
	}
}

func TestObserveAlertDispatchSplitsSentAndFailed(t *testing.T) {
	c := testCollector()
	c.ObserveAlertDispatch("tenant-1", "down", true, 0.5)
	c.ObserveAlertDispatch("tenant-1", "down", false, 0.5)

	sent := testutil.ToFloat64(c.alertsSent.WithLabelValues("tenant-1", "down"))
	failed := testutil.ToFloat64(c.alertsFailed.WithLabelValues("tenant-1", "down"))
	if sent != 1 {
		t.Fatalf("expected alertsSent to be 1, got %v", sent)
	}
	if failed != 1 {
		t.Fatalf("expected alertsFailed to be 1, got %v", failed)
	}
}

func TestIncEscalationStartedTracksTenant(t *testing.T) {
	c := testCollector()
	c.IncEscalationStarted("tenant-1")

	got := testutil.ToFloat64(c.escalationsStarted.WithLabelValues("tenant-1"))
	if got != 1 {
		t.Fatalf("expected escalationsStarted to be 1, got %v", got)
	}
}

func TestObserveDomainCheckSetsUpGauge(t *testing.T) {
	c := testCollector()
	c.ObserveDomainCheck("example.com", "http", true, 0.1)

	got := testutil.ToFloat64(c.domainCheckUp.WithLabelValues("example.com"))
	if got != 1 {
		t.Fatalf("expected domainCheckUp to be 1 for a passing check, got %v", got)
	}

	c.ObserveDomainCheck("example.com", "http", false, 0.1)
	got = testutil.ToFloat64(c.domainCheckUp.WithLabelValues("example.com"))
	if got != 0 {
		t.Fatalf("expected domainCheckUp to be 0 for a failing check, got %v", got)
	}
}
