// Package runner implements the Runner Pool: worker goroutines that claim
// queued run entries, spawn the sandbox child, classify the result, and
// hand the finished Run to the State & Alert Engine.
package runner

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/synthwatch/e2emon/internal/artifacts"
	"github.com/synthwatch/e2emon/internal/metrics"
	"github.com/synthwatch/e2emon/internal/procexec"
	"github.com/synthwatch/e2emon/internal/queue"
	"github.com/synthwatch/e2emon/internal/sandbox"
	"github.com/synthwatch/e2emon/internal/state"
	"github.com/synthwatch/e2emon/internal/store"
)

// Config bundles the Runner Pool's tunables.
type Config struct {
	WorkerCount    int
	LeaseGrace     time.Duration
	SandboxGrace   time.Duration
	SandboxBinPath string
	SweepInterval  time.Duration
}

type Pool struct {
	cfg       Config
	db        *store.DB
	artifacts *artifacts.Store
	engine    *state.Engine
	metrics   *metrics.Collector
	doorbell  *queue.Ring
	logger    *zap.Logger
	workerIDs []string
}

func NewPool(cfg Config, db *store.DB, art *artifacts.Store, engine *state.Engine, logger *zap.Logger) *Pool {
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 4
	}
	ids := make([]string, cfg.WorkerCount)
	for i := range ids {
		ids[i] = "worker-" + strconv.Itoa(i)
	}
	return &Pool{cfg: cfg, db: db, artifacts: art, engine: engine, logger: logger, workerIDs: ids}
}

// WithMetrics attaches a metrics collector. Nil-safe when unset.
func (p *Pool) WithMetrics(m *metrics.Collector) *Pool {
	p.metrics = m
	return p
}

// WithDoorbell attaches the Redis wake signal so idle workers notice new
// work faster than the fallback poll interval. Nil-safe when unset.
func (p *Pool) WithDoorbell(r *queue.Ring) *Pool {
	p.doorbell = r
	return p
}

// Run starts all worker loops and the crash-recovery sweep, blocking until
// ctx is cancelled.
func (p *Pool) Run(ctx context.Context) {
	for _, id := range p.workerIDs {
		go p.workerLoop(ctx, id)
	}
	p.sweepLoop(ctx)
}

func (p *Pool) workerLoop(ctx context.Context, workerID string) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		entry, err := p.db.ClaimOldest(workerID, p.leaseDuration())
		if err == store.ErrNotFound {
			p.waitForWork(ctx)
			continue
		}
		if err != nil {
			p.logger.Error("store_io claiming queue entry", zap.Error(err))
			time.Sleep(time.Second)
			continue
		}

		if p.metrics != nil {
			p.metrics.IncRunsClaimed(workerID)
		}
		p.execute(ctx, entry)
	}
}

// waitForWork blocks briefly for either the doorbell's wake signal or a
// fixed poll interval, whichever comes first, so an idle worker still
// notices new work promptly even if the doorbell notify was lost.
func (p *Pool) waitForWork(ctx context.Context) {
	if p.doorbell == nil {
		select {
		case <-ctx.Done():
		case <-time.After(500 * time.Millisecond):
		}
		return
	}
	waitCtx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()
	p.doorbell.Wait(waitCtx, 500*time.Millisecond)
}

// leaseDuration is deliberately generous relative to a single test's
// timeout, since the lease must outlive one worker's hard wall-clock cap
// on the slowest test currently enqueued. Entries that finish early are
// marked done by execute; the sweep only reclaims leases that have expired.
func (p *Pool) leaseDuration() time.Duration {
	return 10 * time.Minute
}

func (p *Pool) execute(ctx context.Context, entry *store.RunQueueEntry) {
	defer func() {
		if err := p.db.MarkDone(entry.ID); err != nil {
			p.logger.Error("store_io marking queue entry done", zap.Error(err))
		}
	}()

	test, err := p.db.GetTestAnyTenant(entry.TestID)
	if err != nil {
		p.logger.Error("runner_protocol loading test", zap.Error(err))
		return
	}
	runID := uuid.New()
	startedAt := time.Now()

	runDir, err := p.artifacts.EnsureRunDir(test.TenantID, test.ID, runID)
	if err != nil {
		p.logger.Error("store_io preparing run directory", zap.Error(err))
		return
	}

	srcReader, err := p.artifacts.ReadSource(test.SourceBlobRef)
	if err != nil {
		p.logger.Error("store_io reading source blob", zap.Error(err))
		return
	}
	sourcePath := filepath.Join(runDir, "source"+sourceExt(test.Kind))
	if err := copySource(srcReader, sourcePath); err != nil {
		p.logger.Error("store_io staging source blob", zap.Error(err))
		return
	}

	timeout := time.Duration(test.TimeoutSeconds) * time.Second
	res := procexec.Spawn(ctx, p.cfg.SandboxBinPath, []string{
		"--test-file", sourcePath,
		"--base-url", test.BaseURL,
		"--artifacts-dir", runDir,
		"--timeout-seconds", strconv.Itoa(test.TimeoutSeconds),
	}, procexec.Options{
		Timeout: timeout + p.cfg.SandboxGrace,
		Grace:   p.cfg.SandboxGrace,
	})

	run := &store.Run{
		ID:             runID,
		TestID:         test.ID,
		ScheduledForTS: entry.DueTS,
		StartedAt:      startedAt,
		FinishedAt:     time.Now(),
	}
	classify(run, res)

	if err := p.db.CreateRun(run); err != nil {
		p.logger.Error("store_io persisting run", zap.Error(err))
		return
	}
	if p.metrics != nil {
		elapsed := 0.0
		if run.ElapsedMs != nil {
			elapsed = float64(*run.ElapsedMs) / 1000.0
		}
		p.metrics.ObserveRun(test.TenantID.String(), test.ID.String(), string(test.Kind), string(run.Status), elapsed)
	}
	if err := p.engine.ObserveRun(ctx, test, run); err != nil {
		p.logger.Error("store_io observing run", zap.Error(err))
	}
}

// classify turns a raw subprocess result into a terminal Run status:
// missing/unparsable result line is a protocol failure, a hard timeout is
// `timeout`, and any error message (from the
// parsed result or from raw stderr when parsing failed) matching a known
// infra sentinel becomes `infra_degraded` rather than `fail`.
func classify(run *store.Run, res *procexec.Result) {
	elapsed := int(res.DurationMs)
	run.ElapsedMs = &elapsed

	if res.TimedOut {
		run.Status = store.RunTimeout
		kind := "timeout"
		run.ErrorKind = &kind
		msg := "sandbox child exceeded timeout+grace"
		run.ErrorMessage = &msg
		return
	}

	parsed, err := sandbox.ParseResult(res.Stdout)
	if err != nil {
		if sandbox.IsInfraDegraded(res.Stderr) {
			run.Status = store.RunInfraDegraded
		} else {
			run.Status = store.RunFail
		}
		kind := "runner_protocol"
		run.ErrorKind = &kind
		msg := err.Error()
		run.ErrorMessage = &msg
		return
	}

	run.Status = store.RunStatus(parsed.Status)
	if parsed.BrowserInfraError || sandbox.IsInfraDegraded(parsed.ErrorMessage) {
		run.Status = store.RunInfraDegraded
	}
	if parsed.ErrorKind != "" {
		k := parsed.ErrorKind
		run.ErrorKind = &k
	}
	if parsed.ErrorMessage != "" {
		m := parsed.ErrorMessage
		run.ErrorMessage = &m
	}
	if parsed.FinalURL != "" {
		u := parsed.FinalURL
		run.FinalURL = &u
	}
	if parsed.Title != "" {
		t := parsed.Title
		run.PageTitle = &t
	}
	if parsed.Artifacts != nil {
		run.ArtifactsJSON = store.JSONB(parsed.Artifacts)
	}
}

func copySource(r io.ReadCloser, dest string) error {
	defer r.Close()
	f, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.Copy(f, r)
	return err
}

// sweepLoop reclaims queue entries whose lease expired before a worker
// finished them (crash recovery). A synthetic infra_degraded run is
// recorded so the restart invariant holds: infra_degraded never flips an
// up/unknown subject to down, and a subject already down stays down
// without emitting a duplicate alert.
func (p *Pool) sweepLoop(ctx context.Context) {
	interval := p.cfg.SweepInterval
	if interval <= 0 {
		interval = 15 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.sweepOnce(ctx)
		}
	}
}

func (p *Pool) sweepOnce(ctx context.Context) {
	abandoned, err := p.db.AbandonedLeases(time.Now())
	if err != nil {
		p.logger.Error("store_io listing abandoned leases", zap.Error(err))
		return
	}
	for _, entry := range abandoned {
		test, err := p.db.GetTestAnyTenant(entry.TestID)
		if err != nil {
			p.logger.Error("runner_protocol loading test for abandoned lease", zap.Error(err))
			continue
		}
		now := time.Now()
		run := &store.Run{
			ID:             uuid.New(),
			TestID:         test.ID,
			ScheduledForTS: entry.DueTS,
			StartedAt:      now,
			FinishedAt:     now,
			Status:         store.RunInfraDegraded,
		}
		kind := "worker_restart"
		run.ErrorKind = &kind
		if err := p.db.CreateRun(run); err != nil {
			p.logger.Error("store_io persisting synthetic run", zap.Error(err))
			continue
		}
		if err := p.engine.ObserveRun(ctx, test, run); err != nil {
			p.logger.Error("store_io observing synthetic run", zap.Error(err))
		}
		if err := p.db.ReclaimAbandoned(entry.ID); err != nil {
			p.logger.Error("store_io reclaiming abandoned lease", zap.Error(err))
		}
	}
}

func sourceExt(kind store.TestKind) string {
	if kind == store.KindScriptJS {
		return ".js"
	}
	return ".py"
}

