// Package state implements the debounced per-subject UP/DOWN state
// machine shared by the External Runner and the Domain Monitor, the alert
// dispatch pipeline, and heartbeat composition.
package state

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/synthwatch/e2emon/internal/metrics"
	"github.com/synthwatch/e2emon/internal/store"
)

// thresholds bundles the two debounce knobs a subject carries, whether it
// is a Test or a Domain.
type thresholds struct {
	downAfterFailures int
	upAfterSuccesses  int
}

// counters is the mutable half of TestState/DomainState this package
// actually reasons about; the caller is responsible for mapping it back
// onto whichever concrete struct the Store persists.
type counters struct {
	effectiveOK   store.SubjectStatus
	failStreak    int
	successStreak int
	lastOKTS      *time.Time
	lastFailTS    *time.Time
	lastAlertTS   *time.Time
}

// transition is the result of folding one observation into a subject's
// counters: the updated counters, plus a non-empty edge string ("up" or
// "down") when the observation caused a state change.
type transition struct {
	counters counters
	edge     string
}

// apply implements the core debounce rule. infra_degraded observations
// are neutral: they neither advance nor reset either streak.
// timeout counts as a failure like a genuine assertion failure, since the
// test code itself was given a bounded chance to complete.
func apply(c counters, status store.RunStatus, now time.Time, th thresholds) transition {
	switch status {
	case store.RunInfraDegraded:
		c.lastFailTS = &now
		return transition{counters: c}
	case store.RunPass:
		c.successStreak++
		c.failStreak = 0
		c.lastOKTS = &now
	case store.RunFail, store.RunTimeout:
		c.failStreak++
		c.successStreak = 0
		c.lastFailTS = &now
	}

	edge := ""
	switch {
	case (c.effectiveOK == store.SubjectUnknown || c.effectiveOK == store.SubjectUp) && c.failStreak >= th.downAfterFailures:
		c.effectiveOK = store.SubjectDown
		c.lastAlertTS = &now
		edge = "down"
	case c.effectiveOK == store.SubjectDown && c.successStreak >= th.upAfterSuccesses:
		c.effectiveOK = store.SubjectUp
		c.lastAlertTS = &now
		edge = "up"
	case c.effectiveOK == store.SubjectUnknown && status == store.RunPass:
		c.effectiveOK = store.SubjectUp
	}
	return transition{counters: c, edge: edge}
}

// Engine wires the debounce rule to the durable Store and the Alert Sink,
// and optionally an Escalation collaborator invoked on DOWN transitions.
type Engine struct {
	db         *store.DB
	sink       *TransportSink
	escalation Escalation
	escModel   string
	escPoll    time.Duration
	escTimeout time.Duration
	evidenceRoot string
	metrics    *metrics.Collector
	logger     *zap.Logger
}

func NewEngine(db *store.DB, sink *TransportSink, evidenceRoot string, logger *zap.Logger) *Engine {
	return &Engine{db: db, sink: sink, evidenceRoot: evidenceRoot, logger: logger}
}

// WithEscalation enables the optional per-subject escalation hook.
func (e *Engine) WithEscalation(esc Escalation, model string, pollInterval, pollTimeout time.Duration) *Engine {
	e.escalation = esc
	e.escModel = model
	e.escPoll = pollInterval
	e.escTimeout = pollTimeout
	return e
}

// WithMetrics attaches a metrics collector. Nil-safe when unset.
func (e *Engine) WithMetrics(m *metrics.Collector) *Engine {
	e.metrics = m
	return e
}

func subjectStateGauge(s store.SubjectStatus) int {
	switch s {
	case store.SubjectUp:
		return 1
	case store.SubjectDown:
		return 2
	default:
		return 0
	}
}

// ObserveRun folds a finished Test run's status into the subject's
// debounce counters, persists the result write-through, and dispatches an
// alert on an edge transition.
func (e *Engine) ObserveRun(ctx context.Context, test *store.Test, run *store.Run) error {
	s, err := e.db.GetTestState(test.ID)
	if err != nil {
		return fmt.Errorf("load test state: %w", err)
	}

	th := thresholds{downAfterFailures: test.DownAfterFailures, upAfterSuccesses: test.UpAfterSuccesses}
	t := apply(counters{
		effectiveOK:   s.EffectiveOK,
		failStreak:    s.FailStreak,
		successStreak: s.SuccessStreak,
		lastOKTS:      s.LastOKTS,
		lastFailTS:    s.LastFailTS,
		lastAlertTS:   s.LastAlertTS,
	}, run.Status, run.FinishedAt, th)

	s.EffectiveOK = t.counters.effectiveOK
	s.FailStreak = t.counters.failStreak
	s.SuccessStreak = t.counters.successStreak
	s.LastOKTS = t.counters.lastOKTS
	s.LastFailTS = t.counters.lastFailTS
	s.LastAlertTS = t.counters.lastAlertTS

	if err := e.db.PutTestState(s); err != nil {
		return fmt.Errorf("persist test state: %w", err)
	}

	if e.metrics != nil {
		e.metrics.SetSubjectState(test.TenantID.String(), "test", test.ID.String(), subjectStateGauge(s.EffectiveOK))
		if t.edge != "" {
			e.metrics.IncStateTransition(test.TenantID.String(), "test", t.edge)
		}
	}

	if t.edge == "" {
		return nil
	}

	a := Alert{
		TenantID:           test.TenantID.String(),
		SubjectKind:        store.SubjectTest,
		SubjectID:          test.ID.String(),
		SubjectDisplayName: test.Name,
		Transition:         t.edge,
		LastOKTS:           s.LastOKTS,
		LastFailTS:         s.LastFailTS,
		EvidenceLinks:      []string{evidenceLink(e.evidenceRoot, test.TenantID, test.ID, run.ID, "run.log")},
		ReasonSnippet:      reasonSnippet(run),
	}
	e.sink.SendAlert(ctx, a)

	if t.edge == "down" && e.escalation != nil {
		if e.metrics != nil {
			e.metrics.IncEscalationStarted(test.TenantID.String())
		}
		go runEscalation(context.Background(), e.escalation, e.sink, e.metrics, e.escModel, e.escPoll, e.escTimeout, a, run)
	}
	return nil
}

// ObserveDomainCheck folds a Domain Monitor observation into a domain
// subject's counters the same way ObserveRun does for tenant tests.
func (e *Engine) ObserveDomainCheck(ctx context.Context, domain *store.Domain, status store.RunStatus, errorMessage string, at time.Time) error {
	s, err := e.db.GetDomainState(domain.Name)
	if err != nil {
		return fmt.Errorf("load domain state: %w", err)
	}

	th := thresholds{downAfterFailures: domain.DownAfterFailures, upAfterSuccesses: domain.UpAfterSuccesses}
	t := apply(counters{
		effectiveOK:   s.EffectiveOK,
		failStreak:    s.FailStreak,
		successStreak: s.SuccessStreak,
		lastOKTS:      s.LastOKTS,
		lastFailTS:    s.LastFailTS,
		lastAlertTS:   s.LastAlertTS,
	}, status, at, th)

	s.EffectiveOK = t.counters.effectiveOK
	s.FailStreak = t.counters.failStreak
	s.SuccessStreak = t.counters.successStreak
	s.LastOKTS = t.counters.lastOKTS
	s.LastFailTS = t.counters.lastFailTS
	s.LastAlertTS = t.counters.lastAlertTS

	if err := e.db.PutDomainState(s); err != nil {
		return fmt.Errorf("persist domain state: %w", err)
	}

	if e.metrics != nil {
		e.metrics.SetSubjectState("", "domain", domain.Name, subjectStateGauge(s.EffectiveOK))
		if t.edge != "" {
			e.metrics.IncStateTransition("", "domain", t.edge)
		}
	}

	if t.edge == "" {
		return nil
	}

	e.sink.SendAlert(ctx, Alert{
		SubjectKind:        store.SubjectDomain,
		SubjectID:          domain.Name,
		SubjectDisplayName: domain.Name,
		Transition:         t.edge,
		LastOKTS:           s.LastOKTS,
		LastFailTS:         s.LastFailTS,
		ReasonSnippet:      errorMessage,
	})
	return nil
}

func reasonSnippet(run *store.Run) string {
	if run.ErrorMessage != nil {
		return *run.ErrorMessage
	}
	return string(run.Status)
}
