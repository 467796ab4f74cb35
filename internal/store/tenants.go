package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

func (db *DB) CreateTenant(name string) (*Tenant, error) {
	t := &Tenant{ID: uuid.New(), Name: name, CreatedAt: time.Now()}
	_, err := db.Exec(`INSERT INTO tenants (id, name, created_at) VALUES ($1, $2, $3)`,
		t.ID, t.Name, t.CreatedAt)
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (db *DB) GetTenant(id uuid.UUID) (*Tenant, error) {
	var t Tenant
	err := db.Get(&t, `SELECT id, name, created_at FROM tenants WHERE id = $1`, id)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return &t, err
}

// CreateApiKey persists an API key by its hash; the raw token is returned
// once to the caller and never stored.
func (db *DB) CreateApiKey(tenantID uuid.UUID, tokenHash string) (*ApiKey, error) {
	k := &ApiKey{ID: uuid.New(), TenantID: tenantID, TokenHash: tokenHash, CreatedAt: time.Now()}
	_, err := db.Exec(
		`INSERT INTO api_keys (id, tenant_id, token_hash, created_at) VALUES ($1, $2, $3, $4)`,
		k.ID, k.TenantID, k.TokenHash, k.CreatedAt)
	if err != nil {
		return nil, err
	}
	return k, nil
}

// TenantByTokenHash resolves the tenant owning a non-revoked API key hash.
func (db *DB) TenantByTokenHash(tokenHash string) (uuid.UUID, error) {
	var tenantID uuid.UUID
	err := db.Get(&tenantID, `
		SELECT tenant_id FROM api_keys
		WHERE token_hash = $1 AND revoked_at IS NULL`, tokenHash)
	if err == sql.ErrNoRows {
		return uuid.Nil, ErrNotFound
	}
	if err != nil {
		return uuid.Nil, fmt.Errorf("lookup api key: %w", err)
	}
	return tenantID, nil
}

func (db *DB) RevokeApiKey(id uuid.UUID) error {
	_, err := db.Exec(`UPDATE api_keys SET revoked_at = now() WHERE id = $1`, id)
	return err
}
