package store

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

func (db *DB) CreateTestState(testID uuid.UUID) error {
	_, err := db.Exec(`
		INSERT INTO test_states (test_id, effective_ok, next_due_ts)
		VALUES ($1, 'unknown', now())
		ON CONFLICT (test_id) DO NOTHING`, testID)
	return err
}

func (db *DB) GetTestState(testID uuid.UUID) (*TestState, error) {
	var s TestState
	err := db.Get(&s, `SELECT * FROM test_states WHERE test_id = $1`, testID)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return &s, err
}

// PutTestState writes the entire per-subject state block atomically
// (write-through, no in-memory-only dirty state).
func (db *DB) PutTestState(s *TestState) error {
	_, err := db.NamedExec(`
		UPDATE test_states SET
			effective_ok = :effective_ok,
			fail_streak = :fail_streak,
			success_streak = :success_streak,
			last_ok_ts = :last_ok_ts,
			last_fail_ts = :last_fail_ts,
			last_alert_ts = :last_alert_ts,
			next_due_ts = :next_due_ts
		WHERE test_id = :test_id`, s)
	return err
}

// DueTestStates returns enabled subjects whose next_due_ts has passed and
// which have no run currently leased.
func (db *DB) DueTestStates(now time.Time, limit int) ([]*TestState, error) {
	states := []*TestState{}
	err := db.Select(&states, `
		SELECT ts.* FROM test_states ts
		JOIN tests t ON t.id = ts.test_id
		WHERE ts.next_due_ts <= $1
		  AND t.enabled = true
		  AND (t.disabled_until_ts IS NULL OR t.disabled_until_ts <= $1)
		  AND NOT EXISTS (
		      SELECT 1 FROM run_queue q
		      WHERE q.test_id = ts.test_id AND q.status = 'leased'
		  )
		ORDER BY ts.next_due_ts ASC
		LIMIT $2`, now, limit)
	return states, err
}

func (db *DB) CreateDomainState(name string) error {
	_, err := db.Exec(`
		INSERT INTO domain_states (domain_name, effective_ok, next_due_ts)
		VALUES ($1, 'unknown', now())
		ON CONFLICT (domain_name) DO NOTHING`, name)
	return err
}

func (db *DB) GetDomainState(name string) (*DomainState, error) {
	var s DomainState
	err := db.Get(&s, `SELECT * FROM domain_states WHERE domain_name = $1`, name)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return &s, err
}

func (db *DB) PutDomainState(s *DomainState) error {
	_, err := db.NamedExec(`
		UPDATE domain_states SET
			effective_ok = :effective_ok,
			fail_streak = :fail_streak,
			success_streak = :success_streak,
			last_ok_ts = :last_ok_ts,
			last_fail_ts = :last_fail_ts,
			last_alert_ts = :last_alert_ts,
			next_due_ts = :next_due_ts
		WHERE domain_name = :domain_name`, s)
	return err
}

func (db *DB) DueDomainStates(now time.Time, limit int) ([]*DomainState, error) {
	states := []*DomainState{}
	err := db.Select(&states, `
		SELECT ds.* FROM domain_states ds
		JOIN domains d ON d.name = ds.domain_name
		WHERE ds.next_due_ts <= $1
		  AND d.disabled = false
		  AND (d.disabled_until_ts IS NULL OR d.disabled_until_ts <= $1)
		ORDER BY ds.next_due_ts ASC
		LIMIT $2`, now, limit)
	return states, err
}
