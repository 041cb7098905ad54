package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	jerrors "trade-journal/internal/errors"
)

// Migration is one idempotent schema step. Apply must leave an already
// up-to-date schema unchanged.
type Migration struct {
	Version string
	Apply   func(ctx context.Context, tx *sql.Tx) error
}

// MigrationReport lists what a migration run did.
type MigrationReport struct {
	Applied []string
	Skipped []string
	Failed  []string
}

// Migrations are applied in order. Databases created by initSchema already
// have every column, so on those each step only records its version.
var Migrations = []Migration{
	{Version: "001_add_user_id_to_trades", Apply: func(ctx context.Context, tx *sql.Tx) error {
		if err := addColumn(ctx, tx, "trades", "user_id", "INTEGER DEFAULT 1"); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS idx_trades_user_id ON trades(user_id)`)
		return err
	}},
	{Version: "002_add_confidence_fields", Apply: func(ctx context.Context, tx *sql.Tx) error {
		for _, c := range [][2]string{
			{"confidence", "INTEGER"},
			{"emotion_before", "TEXT"},
			{"rule_followed", "INTEGER DEFAULT 1"},
			{"risk_percentage", "REAL"},
		} {
			if err := addColumn(ctx, tx, "trades", c[0], c[1]); err != nil {
				return err
			}
		}
		return nil
	}},
	{Version: "003_add_user_plan", Apply: func(ctx context.Context, tx *sql.Tx) error {
		for _, c := range [][2]string{
			{"plan", "TEXT DEFAULT 'free'"},
			{"is_active", "INTEGER DEFAULT 1"},
			{"last_login", "DATETIME"},
		} {
			if err := addColumn(ctx, tx, "users", c[0], c[1]); err != nil {
				return err
			}
		}
		return nil
	}},
	{Version: "004_add_screenshot_columns", Apply: func(ctx context.Context, tx *sql.Tx) error {
		if err := addColumn(ctx, tx, "trades", "screenshot_before", "TEXT"); err != nil {
			return err
		}
		return addColumn(ctx, tx, "trades", "screenshot_after", "TEXT")
	}},
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

// columnExists reports whether table has a column named column.
func columnExists(ctx context.Context, q queryer, table, column string) (bool, error) {
	rows, err := q.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return false, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			cid       int
			name      string
			ctype     string
			notNull   int
			dfltValue sql.NullString
			pk        int
		)
		if err := rows.Scan(&cid, &name, &ctype, &notNull, &dfltValue, &pk); err != nil {
			return false, err
		}
		if name == column {
			return true, nil
		}
	}
	return false, rows.Err()
}

func addColumn(ctx context.Context, tx *sql.Tx, table, column, decl string) error {
	exists, err := columnExists(ctx, tx, table, column)
	if err != nil || exists {
		return err
	}
	_, err = tx.ExecContext(ctx, fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", table, column, decl))
	return err
}

// ColumnExists reports whether table has the named column.
func (s *SQLiteStore) ColumnExists(ctx context.Context, table, column string) (bool, error) {
	return columnExists(ctx, s.db, table, column)
}

func (s *SQLiteStore) ensureMigrationTable(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			version TEXT UNIQUE NOT NULL,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	return err
}

// AppliedMigrations returns the versions recorded in schema_migrations.
func (s *SQLiteStore) AppliedMigrations(ctx context.Context) ([]string, error) {
	if err := s.ensureMigrationTable(ctx); err != nil {
		return nil, jerrors.NewStoreError("create", "schema_migrations", err)
	}
	rows, err := s.db.QueryContext(ctx, `SELECT version FROM schema_migrations ORDER BY version`)
	if err != nil {
		return nil, jerrors.NewStoreError("list", "migration", err)
	}
	defer rows.Close()

	var versions []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

// Migrate applies every pending migration. A failing step is rolled back,
// logged and skipped so later steps still run; the returned error joins the
// failures.
func (s *SQLiteStore) Migrate(ctx context.Context) (*MigrationReport, error) {
	return s.runMigrations(ctx, Migrations)
}

func (s *SQLiteStore) runMigrations(ctx context.Context, steps []Migration) (*MigrationReport, error) {
	applied, err := s.AppliedMigrations(ctx)
	if err != nil {
		return nil, err
	}
	done := make(map[string]bool, len(applied))
	for _, v := range applied {
		done[v] = true
	}

	report := &MigrationReport{}
	var failures []error
	for _, m := range steps {
		if done[m.Version] {
			report.Skipped = append(report.Skipped, m.Version)
			continue
		}

		start := time.Now()
		if err := s.applyMigration(ctx, m); err != nil {
			s.logger.Error().Err(err).Str("version", m.Version).Msg("Migration failed")
			report.Failed = append(report.Failed, m.Version)
			failures = append(failures, jerrors.NewMigrationError(m.Version, err))
			continue
		}
		s.logger.Info().Str("version", m.Version).Dur("duration", time.Since(start)).Msg("Migration applied")
		report.Applied = append(report.Applied, m.Version)
	}

	return report, jerrors.Join(failures...)
}

func (s *SQLiteStore) applyMigration(ctx context.Context, m Migration) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := m.Apply(ctx, tx); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations (version) VALUES (?)`, m.Version); err != nil {
		return err
	}
	return tx.Commit()
}
