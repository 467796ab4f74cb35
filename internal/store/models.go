// Package store is the single source of truth for tenants, tests, subject
// state, runs, and the durable run queue. All mutations are atomic per
// record; queue claims use conditional updates so no two workers can lease
// the same entry.
package store

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type TestKind string

const (
	KindScriptPython TestKind = "script_python"
	KindScriptJS     TestKind = "script_js"
)

type RunStatus string

const (
	RunPass           RunStatus = "pass"
	RunFail           RunStatus = "fail"
	RunInfraDegraded  RunStatus = "infra_degraded"
	RunTimeout        RunStatus = "timeout"
)

type SubjectStatus string

const (
	SubjectUnknown SubjectStatus = "unknown"
	SubjectUp      SubjectStatus = "up"
	SubjectDown    SubjectStatus = "down"
)

type QueueStatus string

const (
	QueueQueued QueueStatus = "queued"
	QueueLeased QueueStatus = "leased"
	QueueDone   QueueStatus = "done"
)

type SubjectKind string

const (
	SubjectTest   SubjectKind = "test"
	SubjectDomain SubjectKind = "domain"
)

// JSONB is a generic JSON-valued column implementing the
// driver.Valuer/sql.Scanner convention for Postgres JSONB columns.
type JSONB map[string]interface{}

func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(j)
}

func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = JSONB{}
		return nil
	}
	b, ok := value.([]byte)
	if !ok {
		return nil
	}
	return json.Unmarshal(b, j)
}

type Tenant struct {
	ID        uuid.UUID `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

type ApiKey struct {
	ID         uuid.UUID  `db:"id" json:"id"`
	TenantID   uuid.UUID  `db:"tenant_id" json:"tenant_id"`
	TokenHash  string     `db:"token_hash" json:"-"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
	RevokedAt  *time.Time `db:"revoked_at" json:"revoked_at,omitempty"`
}

type Test struct {
	ID               uuid.UUID  `db:"id" json:"id"`
	TenantID         uuid.UUID  `db:"tenant_id" json:"-"`
	Name             string     `db:"name" json:"name"`
	BaseURL          string     `db:"base_url" json:"base_url"`
	Kind             TestKind   `db:"kind" json:"kind"`
	Enabled          bool       `db:"enabled" json:"enabled"`
	DisabledReason   *string    `db:"disabled_reason" json:"disabled_reason,omitempty"`
	DisabledUntilTS  *time.Time `db:"disabled_until_ts" json:"disabled_until_ts,omitempty"`
	IntervalSeconds  int        `db:"interval_seconds" json:"interval_seconds"`
	TimeoutSeconds   int        `db:"timeout_seconds" json:"timeout_seconds"`
	JitterSeconds    int        `db:"jitter_seconds" json:"jitter_seconds"`
	DownAfterFailures int       `db:"down_after_failures" json:"down_after_failures"`
	UpAfterSuccesses  int       `db:"up_after_successes" json:"up_after_successes"`
	SourceBlobRef    string     `db:"source_blob_ref" json:"-"`
	CreatedAt        time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time  `db:"updated_at" json:"updated_at"`
}

type TestState struct {
	TestID        uuid.UUID     `db:"test_id" json:"test_id"`
	EffectiveOK   SubjectStatus `db:"effective_ok" json:"effective_ok"`
	FailStreak    int           `db:"fail_streak" json:"fail_streak"`
	SuccessStreak int           `db:"success_streak" json:"success_streak"`
	LastOKTS      *time.Time    `db:"last_ok_ts" json:"last_ok_ts,omitempty"`
	LastFailTS    *time.Time    `db:"last_fail_ts" json:"last_fail_ts,omitempty"`
	LastAlertTS   *time.Time    `db:"last_alert_ts" json:"last_alert_ts,omitempty"`
	NextDueTS     time.Time     `db:"next_due_ts" json:"next_due_ts"`
}

type Run struct {
	ID             uuid.UUID  `db:"id" json:"id"`
	TestID         uuid.UUID  `db:"test_id" json:"test_id"`
	ScheduledForTS time.Time  `db:"scheduled_for_ts" json:"scheduled_for_ts"`
	StartedAt      time.Time  `db:"started_at" json:"started_at"`
	FinishedAt     time.Time  `db:"finished_at" json:"finished_at"`
	Status         RunStatus  `db:"status" json:"status"`
	ElapsedMs      *int       `db:"elapsed_ms" json:"elapsed_ms,omitempty"`
	ErrorKind      *string    `db:"error_kind" json:"error_kind,omitempty"`
	ErrorMessage   *string    `db:"error_message" json:"error_message,omitempty"`
	FinalURL       *string    `db:"final_url" json:"final_url,omitempty"`
	PageTitle      *string    `db:"page_title" json:"page_title,omitempty"`
	ArtifactsJSON  JSONB      `db:"artifacts_json" json:"artifacts_json,omitempty"`
}

type Domain struct {
	Name            string    `db:"name" json:"name"`
	HTTPCheckCfg    JSONB     `db:"http_check_cfg" json:"http_check_cfg"`
	BrowserCheckCfg JSONB     `db:"browser_check_cfg" json:"browser_check_cfg"`
	HeartbeatCfg    JSONB     `db:"heartbeat_cfg" json:"heartbeat_cfg"`
	Disabled        bool      `db:"disabled" json:"disabled"`
	DisabledUntilTS *time.Time `db:"disabled_until_ts" json:"disabled_until_ts,omitempty"`
	AlertingCfg     JSONB     `db:"alerting_cfg" json:"alerting_cfg"`

	// Scheduling fields loaded from the domain config file; they are not
	// persisted in any table.
	IntervalSeconds   int `db:"-" json:"interval_seconds"`
	TimeoutSeconds    int `db:"-" json:"timeout_seconds"`
	JitterSeconds     int `db:"-" json:"jitter_seconds"`
	DownAfterFailures int `db:"-" json:"down_after_failures"`
	UpAfterSuccesses  int `db:"-" json:"up_after_successes"`
}

type DomainState struct {
	DomainName    string        `db:"domain_name" json:"domain_name"`
	EffectiveOK   SubjectStatus `db:"effective_ok" json:"effective_ok"`
	FailStreak    int           `db:"fail_streak" json:"fail_streak"`
	SuccessStreak int           `db:"success_streak" json:"success_streak"`
	LastOKTS      *time.Time    `db:"last_ok_ts" json:"last_ok_ts,omitempty"`
	LastFailTS    *time.Time    `db:"last_fail_ts" json:"last_fail_ts,omitempty"`
	LastAlertTS   *time.Time    `db:"last_alert_ts" json:"last_alert_ts,omitempty"`
	NextDueTS     time.Time     `db:"next_due_ts" json:"next_due_ts"`
}

type RunQueueEntry struct {
	ID             uuid.UUID   `db:"id" json:"id"`
	TestID         uuid.UUID   `db:"test_id" json:"test_id"`
	DueTS          time.Time   `db:"due_ts" json:"due_ts"`
	Attempt        int         `db:"attempt" json:"attempt"`
	Status         QueueStatus `db:"status" json:"status"`
	LeasedBy       *string     `db:"leased_by" json:"leased_by,omitempty"`
	LeasedUntilTS  *time.Time  `db:"leased_until_ts" json:"leased_until_ts,omitempty"`
}
