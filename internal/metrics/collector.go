// Package metrics holds the prometheus.Collector and the Mimir remote-write
// pipeline for the metric families this system actually emits: scheduler
// ticks and queue depth, run outcomes, subject state transitions, and
// alert dispatch.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type RemoteWriteConfig struct {
	URL           string
	TenantHeader  string
	BatchSize     int
	FlushInterval int // seconds
	AuthToken     string
}

type Collector struct {
	config *RemoteWriteConfig

	runDuration  *prometheus.HistogramVec
	runOutcome   *prometheus.CounterVec
	runsTotal    *prometheus.CounterVec

	queueDepth      *prometheus.GaugeVec
	schedulerTicks  prometheus.Counter
	schedulerShed   *prometheus.CounterVec

	subjectState      *prometheus.GaugeVec
	stateTransitions  *prometheus.CounterVec

	alertsSent     *prometheus.CounterVec
	alertsFailed   *prometheus.CounterVec
	alertLatency   *prometheus.HistogramVec

	escalationsStarted  *prometheus.CounterVec
	escalationDuration  *prometheus.HistogramVec

	domainCheckUp       *prometheus.GaugeVec
	domainCheckDuration *prometheus.HistogramVec
}

func NewCollector(cfg RemoteWriteConfig) *Collector {
	return &Collector{
		config: &cfg,

		runDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "e2emon_run_duration_seconds",
				Help:    "Duration of external test runs in seconds",
				Buckets: []float64{.25, .5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"tenant_id", "test_id", "kind"},
		),

		runOutcome: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "e2emon_run_outcome_total",
				Help: "Count of runs by final status",
			},
			[]string{"tenant_id", "test_id", "status"},
		),

		runsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "e2emon_runs_total",
				Help: "Count of runs claimed and executed by the runner pool",
			},
			[]string{"worker_id"},
		),

		queueDepth: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "e2emon_run_queue_depth",
				Help: "Current number of queued or leased run_queue entries",
			},
			[]string{"scope"},
		),

		schedulerTicks: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "e2emon_scheduler_ticks_total",
				Help: "Count of scheduler tick loop iterations",
			},
		),

		schedulerShed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "e2emon_scheduler_shed_total",
				Help: "Count of due tests skipped because a concurrency cap was exceeded",
			},
			[]string{"reason"},
		),

		subjectState: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "e2emon_subject_state",
				Help: "Current effective state of a subject (0=unknown, 1=up, 2=down)",
			},
			[]string{"tenant_id", "subject_kind", "subject_id"},
		),

		stateTransitions: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "e2emon_state_transitions_total",
				Help: "Count of debounced state transitions by edge",
			},
			[]string{"tenant_id", "subject_kind", "edge"},
		),

		alertsSent: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "e2emon_alerts_sent_total",
				Help: "Count of alerts successfully dispatched",
			},
			[]string{"tenant_id", "transition"},
		),

		alertsFailed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "e2emon_alerts_failed_total",
				Help: "Count of alert dispatch attempts that failed after retry",
			},
			[]string{"tenant_id", "transition"},
		),

		alertLatency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "e2emon_alert_dispatch_latency_seconds",
				Help:    "Latency of alert transport send calls",
				Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"tenant_id"},
		),

		escalationsStarted: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "e2emon_escalations_started_total",
				Help: "Count of escalation jobs created on a down transition",
			},
			[]string{"tenant_id"},
		),

		escalationDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "e2emon_escalation_duration_seconds",
				Help:    "Wall-clock time from escalation job creation to completion",
				Buckets: []float64{5, 15, 30, 60, 300, 900, 3600},
			},
			[]string{"tenant_id"},
		),

		domainCheckUp: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "e2emon_domain_check_up",
				Help: "Whether the most recent domain check passed (1) or failed (0)",
			},
			[]string{"domain"},
		),

		domainCheckDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "e2emon_domain_check_duration_seconds",
				Help:    "Duration of domain monitor checks in seconds",
				Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"domain", "probe"},
		),
	}
}

func (c *Collector) ObserveRun(tenantID, testID, kind, status string, elapsedSeconds float64) {
	c.runDuration.WithLabelValues(tenantID, testID, kind).Observe(elapsedSeconds)
	c.runOutcome.WithLabelValues(tenantID, testID, status).Inc()
}

func (c *Collector) IncRunsClaimed(workerID string) {
	c.runsTotal.WithLabelValues(workerID).Inc()
}

func (c *Collector) SetQueueDepth(scope string, depth int) {
	c.queueDepth.WithLabelValues(scope).Set(float64(depth))
}

func (c *Collector) IncSchedulerTick() {
	c.schedulerTicks.Inc()
}

func (c *Collector) IncSchedulerShed(reason string) {
	c.schedulerShed.WithLabelValues(reason).Inc()
}

func (c *Collector) SetSubjectState(tenantID, subjectKind, subjectID string, state int) {
	c.subjectState.WithLabelValues(tenantID, subjectKind, subjectID).Set(float64(state))
}

func (c *Collector) IncStateTransition(tenantID, subjectKind, edge string) {
	c.stateTransitions.WithLabelValues(tenantID, subjectKind, edge).Inc()
}

func (c *Collector) ObserveAlertDispatch(tenantID, transition string, ok bool, elapsedSeconds float64) {
	c.alertLatency.WithLabelValues(tenantID).Observe(elapsedSeconds)
	if ok {
		c.alertsSent.WithLabelValues(tenantID, transition).Inc()
	} else {
		c.alertsFailed.WithLabelValues(tenantID, transition).Inc()
	}
}

func (c *Collector) IncEscalationStarted(tenantID string) {
	c.escalationsStarted.WithLabelValues(tenantID).Inc()
}

func (c *Collector) ObserveEscalationDuration(tenantID string, elapsedSeconds float64) {
	c.escalationDuration.WithLabelValues(tenantID).Observe(elapsedSeconds)
}

func (c *Collector) ObserveDomainCheck(domain, probe string, up bool, elapsedSeconds float64) {
	c.domainCheckDuration.WithLabelValues(domain, probe).Observe(elapsedSeconds)
	val := 0.0
	if up {
		val = 1.0
	}
	c.domainCheckUp.WithLabelValues(domain).Set(val)
}
