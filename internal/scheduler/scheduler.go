// Package scheduler implements the single-writer due-time scheduling loop:
// a 1-second tick that scans due subjects, enqueues run jobs under global
// and per-tenant concurrency caps, applies jitter to the next due time,
// and stretches it multiplicatively on persistent failure.
package scheduler

import (
	"context"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/synthwatch/e2emon/internal/metrics"
	"github.com/synthwatch/e2emon/internal/queue"
	"github.com/synthwatch/e2emon/internal/store"
)

// Config bundles the Scheduler's tunables.
type Config struct {
	TickInterval         time.Duration
	GlobalConcurrency    int
	PerTenantConcurrency int
	BackoffFailThreshold int
	BackoffMaxMultiplier float64
	ScanLimit            int
}

type Scheduler struct {
	cfg      Config
	db       *store.DB
	doorbell *queue.Ring
	metrics  *metrics.Collector
	logger   *zap.Logger
}

func New(cfg Config, db *store.DB, doorbell *queue.Ring, logger *zap.Logger) *Scheduler {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = time.Second
	}
	if cfg.ScanLimit <= 0 {
		cfg.ScanLimit = 500
	}
	return &Scheduler{cfg: cfg, db: db, doorbell: doorbell, logger: logger}
}

// WithMetrics attaches a metrics collector. Nil-safe when unset.
func (s *Scheduler) WithMetrics(m *metrics.Collector) *Scheduler {
	s.metrics = m
	return s
}

// Run blocks ticking once per TickInterval until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	now := time.Now()
	if s.metrics != nil {
		s.metrics.IncSchedulerTick()
	}

	globalDepth, err := s.db.ActiveQueueDepth()
	if err != nil {
		s.logger.Error("store_io reading global queue depth", zap.Error(err))
		return
	}
	if s.metrics != nil {
		s.metrics.SetQueueDepth("global", globalDepth)
	}
	if s.cfg.GlobalConcurrency > 0 && globalDepth >= s.cfg.GlobalConcurrency {
		if s.metrics != nil {
			s.metrics.IncSchedulerShed("global_concurrency")
		}
		return
	}

	s.tickTests(ctx, now, globalDepth)
}

func (s *Scheduler) tickTests(ctx context.Context, now time.Time, globalDepth int) {
	due, err := s.db.DueTestStates(now, s.cfg.ScanLimit)
	if err != nil {
		s.logger.Error("store_io scanning due test states", zap.Error(err))
		return
	}

	tenantDepth := map[string]int{}

	for _, ts := range due {
		if s.cfg.GlobalConcurrency > 0 && globalDepth >= s.cfg.GlobalConcurrency {
			return
		}

		test, err := s.db.GetTestAnyTenant(ts.TestID)
		if err != nil {
			s.logger.Error("store_io loading test for scheduling", zap.Error(err))
			continue
		}

		key := test.TenantID.String()
		if _, ok := tenantDepth[key]; !ok {
			depth, err := s.db.ActiveQueueDepthForTenant(test.TenantID)
			if err != nil {
				s.logger.Error("store_io reading tenant queue depth", zap.Error(err))
				continue
			}
			tenantDepth[key] = depth
		}
		if s.cfg.PerTenantConcurrency > 0 && tenantDepth[key] >= s.cfg.PerTenantConcurrency {
			// Shedding: leave next_due_ts alone so the subject reappears
			// on the next tick instead of building up queue backlog.
			if s.metrics != nil {
				s.metrics.IncSchedulerShed("per_tenant_concurrency")
			}
			continue
		}

		interval := time.Duration(test.IntervalSeconds) * time.Second
		if ts.FailStreak >= s.cfg.BackoffFailThreshold && s.cfg.BackoffFailThreshold > 0 {
			interval = backoffInterval(interval, ts.FailStreak, s.cfg.BackoffFailThreshold, s.cfg.BackoffMaxMultiplier)
		}
		nextDue := now.Add(interval).Add(jitter(test.JitterSeconds))
		ts.NextDueTS = nextDue

		if err := s.db.PutTestState(ts); err != nil {
			s.logger.Error("store_io advancing test next_due_ts", zap.Error(err))
			continue
		}

		entry, err := s.db.Enqueue(test.ID, now)
		if err != nil {
			s.logger.Error("store_io enqueuing run", zap.Error(err))
			continue
		}

		globalDepth++
		tenantDepth[key]++

		if s.doorbell != nil {
			if err := s.doorbell.Notify(ctx, entry.TestID, entry.DueTS); err != nil {
				s.logger.Warn("doorbell notify failed, worker will pick up via poll", zap.Error(err))
			}
		}
	}
}

func jitter(maxSeconds int) time.Duration {
	if maxSeconds <= 0 {
		return 0
	}
	return time.Duration(rand.Intn(maxSeconds+1)) * time.Second
}

// backoffInterval stretches the configured interval multiplicatively once
// fail_streak crosses the threshold, capped at maxMultiplier×interval, and
// resets implicitly the moment a success breaks the streak (fail_streak
// drops below threshold again via the State Engine).
func backoffInterval(interval time.Duration, failStreak, threshold int, maxMultiplier float64) time.Duration {
	if maxMultiplier <= 1 {
		maxMultiplier = 4
	}
	over := failStreak - threshold
	multiplier := 1.0 + float64(over)*0.5
	if multiplier > maxMultiplier {
		multiplier = maxMultiplier
	}
	return time.Duration(float64(interval) * multiplier)
}
