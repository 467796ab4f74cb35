package store

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Enqueue inserts a due RunQueueEntry. Coalescing (triggering a run now
// twice should enqueue at most one extra run) is enforced by the caller
// checking for an existing queued/leased entry before calling this.
func (db *DB) Enqueue(testID uuid.UUID, dueTS time.Time) (*RunQueueEntry, error) {
	e := &RunQueueEntry{ID: uuid.New(), TestID: testID, DueTS: dueTS, Status: QueueQueued}
	_, err := db.Exec(`
		INSERT INTO run_queue (id, test_id, due_ts, attempt, status)
		VALUES ($1, $2, $3, 0, 'queued')`, e.ID, e.TestID, e.DueTS)
	if err != nil {
		return nil, err
	}
	return e, nil
}

// HasPendingEntry reports whether a test already has a queued or leased
// entry, used to coalesce repeated "run now" triggers.
func (db *DB) HasPendingEntry(testID uuid.UUID) (bool, error) {
	var exists bool
	err := db.Get(&exists, `
		SELECT EXISTS(
			SELECT 1 FROM run_queue
			WHERE test_id = $1 AND status IN ('queued', 'leased')
		)`, testID)
	return exists, err
}

// ClaimOldest atomically claims the oldest queued entry for a worker via a
// conditional UPDATE ... WHERE status='queued', preventing double-lease.
func (db *DB) ClaimOldest(workerID string, leaseDuration time.Duration) (*RunQueueEntry, error) {
	var e RunQueueEntry
	err := db.Get(&e, `
		UPDATE run_queue SET
			status = 'leased',
			leased_by = $1,
			leased_until_ts = now() + make_interval(secs => $2),
			attempt = attempt + 1
		WHERE id = (
			SELECT id FROM run_queue
			WHERE status = 'queued'
			ORDER BY due_ts ASC
			FOR UPDATE SKIP LOCKED
			LIMIT 1
		)
		RETURNING *`, workerID, leaseDuration.Seconds())
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return &e, err
}

func (db *DB) MarkDone(id uuid.UUID) error {
	_, err := db.Exec(`UPDATE run_queue SET status = 'done' WHERE id = $1`, id)
	return err
}

// AbandonedLeases returns entries whose lease expired before a worker
// finished them, for the crash-recovery sweep in the Runner Pool.
func (db *DB) AbandonedLeases(now time.Time) ([]*RunQueueEntry, error) {
	entries := []*RunQueueEntry{}
	err := db.Select(&entries, `
		SELECT * FROM run_queue
		WHERE status = 'leased' AND leased_until_ts < $1`, now)
	return entries, err
}

func (db *DB) ReclaimAbandoned(id uuid.UUID) error {
	_, err := db.Exec(`
		UPDATE run_queue SET status = 'done', leased_by = NULL, leased_until_ts = NULL
		WHERE id = $1`, id)
	return err
}

// ActiveQueueDepth returns the number of queued-or-leased entries, for the
// Scheduler's global concurrency cap.
func (db *DB) ActiveQueueDepth() (int, error) {
	var n int
	err := db.Get(&n, `SELECT COUNT(*) FROM run_queue WHERE status IN ('queued', 'leased')`)
	return n, err
}

// ActiveQueueDepthForTenant mirrors ActiveQueueDepth scoped to one tenant,
// for the per-tenant concurrency cap.
func (db *DB) ActiveQueueDepthForTenant(tenantID uuid.UUID) (int, error) {
	var n int
	err := db.Get(&n, `
		SELECT COUNT(*) FROM run_queue q
		JOIN tests t ON t.id = q.test_id
		WHERE q.status IN ('queued', 'leased') AND t.tenant_id = $1`, tenantID)
	return n, err
}
