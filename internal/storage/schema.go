package storage

import (
	"database/sql"
	"fmt"
	"time"
)

// runMigrations applies all schema migrations in order.
func (d *Database) runMigrations() error {
	return d.withLock(func() error {
		tx, err := d.db.Begin()
		if err != nil {
			return err
		}
		defer func() {
			if err != nil {
				tx.Rollback()
			}
		}()

		if _, err = tx.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at TEXT NOT NULL,
			note TEXT
		)`); err != nil {
			return fmt.Errorf("creating schema_migrations: %w", err)
		}

		version := d.getSchemaVersion(tx)

		migrations := []struct {
			version int
			note    string
			fn      func(*sql.Tx) error
		}{
			{1, "run and request accounting", migrateV1},
		}

		for _, m := range migrations {
			if version >= m.version {
				continue
			}
			if err = m.fn(tx); err != nil {
				return fmt.Errorf("migration v%d (%s): %w", m.version, m.note, err)
			}
			if _, err = tx.Exec(
				`INSERT INTO schema_migrations (version, applied_at, note) VALUES (?, ?, ?)`,
				m.version, time.Now().UTC().Format(time.RFC3339), m.note,
			); err != nil {
				return fmt.Errorf("recording migration v%d: %w", m.version, err)
			}
		}

		return tx.Commit()
	})
}

func (d *Database) getSchemaVersion(tx *sql.Tx) int {
	var version int
	row := tx.QueryRow(`SELECT COALESCE(MAX(version), 0) FROM schema_migrations`)
	if err := row.Scan(&version); err != nil {
		return 0
	}
	return version
}

func migrateV1(tx *sql.Tx) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			run_id TEXT PRIMARY KEY,
			thread_id TEXT NOT NULL,
			status TEXT NOT NULL,
			event_count INTEGER NOT NULL,
			byte_count INTEGER NOT NULL,
			duration_ms INTEGER NOT NULL,
			created_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at)`,
		`CREATE TABLE IF NOT EXISTS request_log (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			method TEXT NOT NULL,
			path TEXT NOT NULL,
			status INTEGER NOT NULL,
			bytes INTEGER NOT NULL,
			duration_ms INTEGER NOT NULL,
			streaming INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_request_log_created_at ON request_log(created_at)`,
	}
	for _, s := range stmts {
		if _, err := tx.Exec(s); err != nil {
			return err
		}
	}
	return nil
}
