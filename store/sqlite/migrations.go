package sqlite

import (
	"context"
	"fmt"
)

// migration is one forward-only schema step.
type migration struct {
	Version string
	Name    string
	Up      []string
}

var migrations = []migration{
	{
		Version: "20260101120000",
		Name:    "create_correlation_table",
		Up: []string{`
			CREATE TABLE IF NOT EXISTS volshift_correlation (
				resource_id TEXT NOT NULL,
				stage       TEXT NOT NULL,
				token       TEXT NOT NULL,
				PRIMARY KEY (resource_id, stage)
			)`,
		},
	},
	{
		Version: "20260101120100",
		Name:    "create_dlq_table",
		Up: []string{`
			CREATE TABLE IF NOT EXISTS volshift_dlq (
				id          TEXT PRIMARY KEY,
				stage       TEXT NOT NULL,
				resource_id TEXT NOT NULL DEFAULT '',
				code        TEXT NOT NULL,
				error       TEXT NOT NULL DEFAULT '',
				input       TEXT,
				token_hash  TEXT NOT NULL DEFAULT '',
				failed_at   INTEGER NOT NULL,
				resolved_at INTEGER,
				created_at  INTEGER NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_volshift_dlq_failed_at ON volshift_dlq (failed_at DESC)`,
			`CREATE INDEX IF NOT EXISTS idx_volshift_dlq_stage ON volshift_dlq (stage)`,
		},
	},
}

// Migrate applies pending migrations, each in its own transaction.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS volshift_migrations (
			version    TEXT PRIMARY KEY,
			name       TEXT NOT NULL,
			applied_at INTEGER NOT NULL
		)`); err != nil {
		return fmt.Errorf("volshift/sqlite: create migrations table: %w", err)
	}

	for _, m := range migrations {
		var n int
		if err := s.db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM volshift_migrations WHERE version = ?`, m.Version,
		).Scan(&n); err != nil {
			return fmt.Errorf("volshift/sqlite: check migration %s: %w", m.Version, err)
		}
		if n > 0 {
			continue
		}

		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("volshift/sqlite: begin migration %s: %w", m.Version, err)
		}
		for _, stmt := range m.Up {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				_ = tx.Rollback()
				return fmt.Errorf("volshift/sqlite: migration %s (%s): %w", m.Version, m.Name, err)
			}
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO volshift_migrations (version, name, applied_at) VALUES (?, ?, ?)`,
			m.Version, m.Name, toMillis(s.now()),
		); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("volshift/sqlite: record migration %s: %w", m.Version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("volshift/sqlite: commit migration %s: %w", m.Version, err)
		}
		s.logger.Debug("applied migration", "version", m.Version, "name", m.Name)
	}
	return nil
}
