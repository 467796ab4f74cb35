package state

import (
	"testing"
	"time"

	"github.com/synthwatch/e2emon/internal/store"
)

var th3up2 = thresholds{downAfterFailures: 3, upAfterSuccesses: 2}

func TestApplyUnknownToUpOnFirstPass(t *testing.T) {
	now := time.Now()
	tr := apply(counters{effectiveOK: store.SubjectUnknown}, store.RunPass, now, th3up2)
	if tr.counters.effectiveOK != store.SubjectUp {
		t.Fatalf("expected up, got %s", tr.counters.effectiveOK)
	}
	if tr.edge != "" {
		t.Fatalf("unknown->up on first pass should not fire an alert edge, got %q", tr.edge)
	}
}

func TestApplyDebouncesDownTransition(t *testing.T) {
	now := time.Now()
	c := counters{effectiveOK: store.SubjectUp}

	for i := 0; i < 2; i++ {
		tr := apply(c, store.RunFail, now, th3up2)
		c = tr.counters
		if tr.edge != "" {
			t.Fatalf("expected no edge before downAfterFailures reached, got %q at failure %d", tr.edge, i+1)
		}
		if c.effectiveOK != store.SubjectUp {
			t.Fatalf("subject should stay up until the threshold is reached")
		}
	}

	tr := apply(c, store.RunFail, now, th3up2)
	if tr.edge != "down" {
		t.Fatalf("expected down edge on the 3rd consecutive failure, got %q", tr.edge)
	}
	if tr.counters.effectiveOK != store.SubjectDown {
		t.Fatalf("expected effectiveOK=down, got %s", tr.counters.effectiveOK)
	}
}

func TestApplyDebouncesUpTransition(t *testing.T) {
	now := time.Now()
	c := counters{effectiveOK: store.SubjectDown}

	tr := apply(c, store.RunPass, now, th3up2)
	if tr.edge != "" {
		t.Fatalf("expected no edge before upAfterSuccesses reached, got %q", tr.edge)
	}
	c = tr.counters

	tr = apply(c, store.RunPass, now, th3up2)
	if tr.edge != "up" {
		t.Fatalf("expected up edge on the 2nd consecutive success, got %q", tr.edge)
	}
	if tr.counters.effectiveOK != store.SubjectUp {
		t.Fatalf("expected effectiveOK=up, got %s", tr.counters.effectiveOK)
	}
}

func TestApplyInfraDegradedIsNeutral(t *testing.T) {
	now := time.Now()
	c := counters{effectiveOK: store.SubjectUp, failStreak: 2, successStreak: 0}

	tr := apply(c, store.RunInfraDegraded, now, th3up2)
	if tr.edge != "" {
		t.Fatalf("infra_degraded must never fire an edge, got %q", tr.edge)
	}
	if tr.counters.failStreak != 2 {
		t.Fatalf("infra_degraded must not advance fail_streak, got %d", tr.counters.failStreak)
	}
	if tr.counters.effectiveOK != store.SubjectUp {
		t.Fatalf("infra_degraded must not change effectiveOK, got %s", tr.counters.effectiveOK)
	}
}

func TestApplyTimeoutCountsAsFailure(t *testing.T) {
	now := time.Now()
	c := counters{effectiveOK: store.SubjectUp, failStreak: 2}

	tr := apply(c, store.RunTimeout, now, th3up2)
	if tr.edge != "down" {
		t.Fatalf("timeout should count toward the fail streak like a genuine failure, expected down edge, got %q", tr.edge)
	}
}

func TestApplyDownSubjectStaysDownWithoutDuplicateEdge(t *testing.T) {
	now := time.Now()
	c := counters{effectiveOK: store.SubjectDown, failStreak: 5}

	tr := apply(c, store.RunFail, now, th3up2)
	if tr.edge != "" {
		t.Fatalf("a subject already down should not re-fire a down edge, got %q", tr.edge)
	}
	if tr.counters.effectiveOK != store.SubjectDown {
		t.Fatalf("expected effectiveOK to remain down, got %s", tr.counters.effectiveOK)
	}
}

func TestApplySuccessResetsFailStreak(t *testing.T) {
	now := time.Now()
	c := counters{effectiveOK: store.SubjectUp, failStreak: 2}

	tr := apply(c, store.RunPass, now, th3up2)
	if tr.counters.failStreak != 0 {
		t.Fatalf("a pass must reset fail_streak, got %d", tr.counters.failStreak)
	}
}

func TestSubjectStateGauge(t *testing.T) {
	cases := map[store.SubjectStatus]int{
		store.SubjectUp:      1,
		store.SubjectDown:    2,
		store.SubjectUnknown: 0,
	}
	for status, want := range cases {
		if got := subjectStateGauge(status); got != want {
			t.Fatalf("subjectStateGauge(%s) = %d, want %d", status, got, want)
		}
	}
}
