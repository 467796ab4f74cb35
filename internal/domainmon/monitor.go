// Package domainmon implements the Domain Monitor: a due-time loop over
// the curated first-party domain list that runs the built-in HTTP and
// browser checks (plus any configured optional plug-in probes) and feeds
// their results into the same debounce engine the External Runner uses.
package domainmon

import (
	"context"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/synthwatch/e2emon/internal/checks"
	"github.com/synthwatch/e2emon/internal/domainconfig"
	"github.com/synthwatch/e2emon/internal/metrics"
	"github.com/synthwatch/e2emon/internal/state"
	"github.com/synthwatch/e2emon/internal/store"
)

type Config struct {
	TickInterval time.Duration
	ScanLimit    int
}

type Monitor struct {
	cfg      Config
	db       *store.DB
	cfgFile  *domainconfig.Provider
	engine   *state.Engine
	http     checks.Checker
	browser  checks.Checker
	optional []checks.Checker
	metrics  *metrics.Collector
	logger   *zap.Logger
}

func New(cfg Config, db *store.DB, cfgFile *domainconfig.Provider, engine *state.Engine, http, browser checks.Checker, optional []checks.Checker, logger *zap.Logger) *Monitor {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = time.Second
	}
	if cfg.ScanLimit <= 0 {
		cfg.ScanLimit = 200
	}
	return &Monitor{cfg: cfg, db: db, cfgFile: cfgFile, engine: engine, http: http, browser: browser, optional: optional, logger: logger}
}

// WithMetrics attaches a metrics collector. Nil-safe when unset.
func (m *Monitor) WithMetrics(c *metrics.Collector) *Monitor {
	m.metrics = c
	return m
}

func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.tick(ctx)
		}
	}
}

func (m *Monitor) tick(ctx context.Context) {
	now := time.Now()
	due, err := m.db.DueDomainStates(now, m.cfg.ScanLimit)
	if err != nil {
		m.logger.Error("store_io scanning due domain states", zap.Error(err))
		return
	}

	for _, ds := range due {
		domain := m.cfgFile.Get(ds.DomainName)
		if domain == nil || domain.Disabled {
			continue
		}
		m.checkOne(ctx, domain, ds)
	}
}

func (m *Monitor) checkOne(ctx context.Context, domain *store.Domain, ds *store.DomainState) {
	obs := m.observe(ctx, "http", domain, m.http.Check)
	if obs.Status == store.RunPass && m.browser != nil {
		obs = m.observe(ctx, "browser", domain, m.browser.Check)
	}
	if obs.Status == store.RunPass {
		for i, probe := range m.optional {
			result := m.observe(ctx, "optional_"+strconv.Itoa(i), domain, probe.Check)
			if result.Status != store.RunPass {
				obs = result
				break
			}
		}
	}

	interval := time.Duration(domain.IntervalSeconds) * time.Second
	if interval <= 0 {
		interval = 60 * time.Second
	}
	ds.NextDueTS = time.Now().Add(interval)
	if err := m.db.PutDomainState(ds); err != nil {
		m.logger.Error("store_io advancing domain next_due_ts", zap.Error(err))
	}

	if err := m.engine.ObserveDomainCheck(ctx, domain, obs.Status, obs.ErrorMessage, time.Now()); err != nil {
		m.logger.Error("store_io observing domain check", zap.Error(err))
	}
}

func (m *Monitor) observe(ctx context.Context, probe string, domain *store.Domain, check func(context.Context, *store.Domain) checks.Observation) checks.Observation {
	start := time.Now()
	obs := check(ctx, domain)
	if m.metrics != nil {
		m.metrics.ObserveDomainCheck(domain.Name, probe, obs.Status == store.RunPass, time.Since(start).Seconds())
	}
	return obs
}

