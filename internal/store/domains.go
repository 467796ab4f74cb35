package store

func (db *DB) UpsertDomain(d *Domain) error {
	_, err := db.NamedExec(`
		INSERT INTO domains (name, http_check_cfg, browser_check_cfg, heartbeat_cfg, disabled, disabled_until_ts, alerting_cfg)
		VALUES (:name, :http_check_cfg, :browser_check_cfg, :heartbeat_cfg, :disabled, :disabled_until_ts, :alerting_cfg)
		ON CONFLICT (name) DO UPDATE SET
			http_check_cfg = EXCLUDED.http_check_cfg,
			browser_check_cfg = EXCLUDED.browser_check_cfg,
			heartbeat_cfg = EXCLUDED.heartbeat_cfg,
			disabled = EXCLUDED.disabled,
			disabled_until_ts = EXCLUDED.disabled_until_ts,
			alerting_cfg = EXCLUDED.alerting_cfg`, d)
	return err
}

func (db *DB) ListDomains() ([]*Domain, error) {
	domains := []*Domain{}
	err := db.Select(&domains, `SELECT * FROM domains`)
	return domains, err
}

// RemoveDomainsNotIn deletes domains no longer present in the reloaded
// config file (SIGHUP reload semantics for the static domain list).
func (db *DB) RemoveDomainsNotIn(names []string) error {
	if len(names) == 0 {
		_, err := db.Exec(`DELETE FROM domains`)
		return err
	}
	query, args, err := sqlxIn(`DELETE FROM domains WHERE name NOT IN (?)`, names)
	if err != nil {
		return err
	}
	_, err = db.Exec(db.Rebind(query), args...)
	return err
}
