package database

import (
	"database/sql"
	"fmt"

	"github.com/TobiSchelling/ReviewGuide/internal/logger"
)

// schemaVersion returns the history schema version stored in user_version.
func schemaVersion(conn *sql.DB) (int, error) {
	var v int
	if err := conn.QueryRow("PRAGMA user_version").Scan(&v); err != nil {
		return 0, fmt.Errorf("reading history schema version: %w", err)
	}
	return v, nil
}

// migrate upgrades the history schema to latestVersion, one step at a time.
func migrate(conn *sql.DB) error {
	from, err := schemaVersion(conn)
	if err != nil {
		return err
	}

	for _, m := range migrations {
		if m.Version <= from {
			continue
		}
		if err := applyMigration(conn, m); err != nil {
			return err
		}
		logger.Log.WithField("version", m.Version).Debugf("history schema: %s", m.Description)
	}
	return nil
}

func applyMigration(conn *sql.DB, m Migration) error {
	tx, err := conn.Begin()
	if err != nil {
		return fmt.Errorf("history schema v%d: %w", m.Version, err)
	}
	if err := m.Up(tx); err != nil {
		tx.Rollback()
		return fmt.Errorf("history schema v%d (%s): %w", m.Version, m.Description, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("history schema v%d commit: %w", m.Version, err)
	}

	// modernc/sqlite does not honour user_version inside a transaction; the
	// DDL is idempotent, so a crash before this line re-runs the step.
	if _, err := conn.Exec(fmt.Sprintf("PRAGMA user_version = %d", m.Version)); err != nil {
		return fmt.Errorf("history schema v%d version bump: %w", m.Version, err)
	}
	return nil
}
