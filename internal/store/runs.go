package store

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

func (db *DB) CreateRun(r *Run) error {
	query := `
		INSERT INTO runs (
			id, test_id, scheduled_for_ts, started_at, finished_at, status,
			elapsed_ms, error_kind, error_message, final_url, page_title, artifacts_json
		) VALUES (
			:id, :test_id, :scheduled_for_ts, :started_at, :finished_at, :status,
			:elapsed_ms, :error_kind, :error_message, :final_url, :page_title, :artifacts_json
		)`
	_, err := db.NamedExec(query, r)
	return err
}

func (db *DB) GetRun(id uuid.UUID) (*Run, error) {
	var r Run
	err := db.Get(&r, `SELECT * FROM runs WHERE id = $1`, id)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return &r, err
}

// GetRunForTenant scopes the lookup through the owning test so a run from
// another tenant's test resolves to not_found rather than forbidden.
func (db *DB) GetRunForTenant(id, tenantID uuid.UUID) (*Run, error) {
	var r Run
	err := db.Get(&r, `
		SELECT r.* FROM runs r
		JOIN tests t ON t.id = r.test_id
		WHERE r.id = $1 AND t.tenant_id = $2`, id, tenantID)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return &r, err
}

func (db *DB) ListRunsForTest(testID, tenantID uuid.UUID, limit int) ([]*Run, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	runs := []*Run{}
	err := db.Select(&runs, `
		SELECT r.* FROM runs r
		JOIN tests t ON t.id = r.test_id
		WHERE r.test_id = $1 AND t.tenant_id = $2
		ORDER BY r.finished_at DESC
		LIMIT $3`, testID, tenantID, limit)
	return runs, err
}

// LatestRunPerTenant supports the admin status summary's last_run_per_tenant
// field with a period-scan style query.
type TenantLastRun struct {
	TenantID  uuid.UUID `db:"tenant_id" json:"tenant_id"`
	RunID     uuid.UUID `db:"id" json:"run_id"`
	Status    RunStatus `db:"status" json:"status"`
	FinishedAt string   `db:"finished_at" json:"finished_at"`
}

func (db *DB) LatestRunPerTenant() ([]*TenantLastRun, error) {
	rows := []*TenantLastRun{}
	err := db.Select(&rows, `
		SELECT DISTINCT ON (t.tenant_id)
			t.tenant_id, r.id, r.status, r.finished_at::text
		FROM runs r
		JOIN tests t ON t.id = r.test_id
		ORDER BY t.tenant_id, r.finished_at DESC`)
	return rows, err
}

// TestCountsByEnabledAndState supports the admin status summary: total
// enabled tests and how many are currently in the `down` state.
func (db *DB) TestCountsByEnabledAndState() (total, failing int, err error) {
	if err = db.Get(&total, `SELECT COUNT(*) FROM tests WHERE enabled = true`); err != nil {
		return 0, 0, err
	}
	err = db.Get(&failing, `
		SELECT COUNT(*) FROM test_states ts
		JOIN tests t ON t.id = ts.test_id
		WHERE t.enabled = true AND ts.effective_ok = 'down'`)
	return total, failing, err
}

type SlowRun struct {
	TestID    uuid.UUID `db:"test_id" json:"test_id"`
	Name      string    `db:"name" json:"name"`
	ElapsedMs int       `db:"elapsed_ms" json:"elapsed_ms"`
}

// SlowestRunsRecent supports the admin status summary's slowest_N field,
// looking back over a recent window rather than the full run history.
func (db *DB) SlowestRunsRecent(limit int, window time.Duration) ([]*SlowRun, error) {
	if limit <= 0 {
		limit = 10
	}
	rows := []*SlowRun{}
	err := db.Select(&rows, `
		SELECT r.test_id, t.name, r.elapsed_ms
		FROM runs r
		JOIN tests t ON t.id = r.test_id
		WHERE r.finished_at >= $1 AND r.elapsed_ms IS NOT NULL
		ORDER BY r.elapsed_ms DESC
		LIMIT $2`, time.Now().Add(-window), limit)
	return rows, err
}
