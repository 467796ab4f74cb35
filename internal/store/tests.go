package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

func (db *DB) CreateTest(t *Test) error {
	t.CreatedAt = time.Now()
	t.UpdatedAt = t.CreatedAt
	query := `
		INSERT INTO tests (
			id, tenant_id, name, base_url, kind, enabled,
			interval_seconds, timeout_seconds, jitter_seconds,
			down_after_failures, up_after_successes, source_blob_ref,
			created_at, updated_at
		) VALUES (
			:id, :tenant_id, :name, :base_url, :kind, :enabled,
			:interval_seconds, :timeout_seconds, :jitter_seconds,
			:down_after_failures, :up_after_successes, :source_blob_ref,
			:created_at, :updated_at
		)`
	_, err := db.NamedExec(query, t)
	return err
}

func (db *DB) GetTest(id, tenantID uuid.UUID) (*Test, error) {
	var t Test
	err := db.Get(&t, `SELECT * FROM tests WHERE id = $1 AND tenant_id = $2`, id, tenantID)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return &t, err
}

// GetTestAnyTenant is used internally by the Runner and Scheduler, which
// operate across tenants and are not themselves tenant-scoped callers.
func (db *DB) GetTestAnyTenant(id uuid.UUID) (*Test, error) {
	var t Test
	err := db.Get(&t, `SELECT * FROM tests WHERE id = $1`, id)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return &t, err
}

type TestFilters struct {
	Enabled         *bool
	BaseURLContains string
	Limit           int
	Offset          int
}

func (db *DB) ListTests(tenantID uuid.UUID, f TestFilters) ([]*Test, error) {
	tests := []*Test{}
	query := `SELECT * FROM tests WHERE tenant_id = $1`
	args := []interface{}{tenantID}

	if f.Enabled != nil {
		args = append(args, *f.Enabled)
		query += fmt.Sprintf(" AND enabled = $%d", len(args))
	}
	if f.BaseURLContains != "" {
		args = append(args, "%"+f.BaseURLContains+"%")
		query += fmt.Sprintf(" AND base_url ILIKE $%d", len(args))
	}

	limit := f.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d", len(args))
	args = append(args, f.Offset)
	query += fmt.Sprintf(" OFFSET $%d", len(args))

	err := db.Select(&tests, query, args...)
	return tests, err
}

// UpdateTestMetadata updates name, base_url and the schedule and debounce
// fields only; source and
// TestState are left untouched per the replace-source invariant.
func (db *DB) UpdateTestMetadata(t *Test) error {
	t.UpdatedAt = time.Now()
	query := `
		UPDATE tests SET
			name = :name,
			base_url = :base_url,
			interval_seconds = :interval_seconds,
			timeout_seconds = :timeout_seconds,
			jitter_seconds = :jitter_seconds,
			down_after_failures = :down_after_failures,
			up_after_successes = :up_after_successes,
			updated_at = :updated_at
		WHERE id = :id AND tenant_id = :tenant_id`
	res, err := db.NamedExec(query, t)
	if err != nil {
		return err
	}
	return checkAffected(res)
}

func (db *DB) ReplaceTestSource(id, tenantID uuid.UUID, blobRef string) error {
	res, err := db.Exec(
		`UPDATE tests SET source_blob_ref = $1, updated_at = now() WHERE id = $2 AND tenant_id = $3`,
		blobRef, id, tenantID)
	if err != nil {
		return err
	}
	return checkAffected(res)
}

func (db *DB) SetTestDisabled(id, tenantID uuid.UUID, disabled bool, reason *string, until *time.Time) error {
	res, err := db.Exec(
		`UPDATE tests SET enabled = $1, disabled_reason = $2, disabled_until_ts = $3, updated_at = now()
		 WHERE id = $4 AND tenant_id = $5`,
		!disabled, reason, until, id, tenantID)
	if err != nil {
		return err
	}
	return checkAffected(res)
}

func (db *DB) DeleteTest(id, tenantID uuid.UUID) error {
	res, err := db.Exec(`DELETE FROM tests WHERE id = $1 AND tenant_id = $2`, id, tenantID)
	if err != nil {
		return err
	}
	return checkAffected(res)
}

func (db *DB) CountTestsByTenant(tenantID uuid.UUID) (int, error) {
	var n int
	err := db.Get(&n, `SELECT COUNT(*) FROM tests WHERE tenant_id = $1`, tenantID)
	return n, err
}

func checkAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
