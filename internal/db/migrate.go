package db

import (
	"database/sql"
	"fmt"
)

// SchemaVersion is the user_version of a fully migrated database.
var SchemaVersion = len(migrations)

// Migrate brings db up to SchemaVersion. PRAGMA user_version records how
// many steps have run, and each step commits together with its version
// bump. A database newer than this binary is rejected.
func Migrate(db *sql.DB) error {
	var current int
	if err := db.QueryRow(`PRAGMA user_version`).Scan(&current); err != nil {
		return fmt.Errorf("reading schema version: %w", err)
	}
	if current > len(migrations) {
		return fmt.Errorf("schema version %d is newer than this build supports (%d)", current, len(migrations))
	}
	for i := current; i < len(migrations); i++ {
		if err := applyStep(db, i+1, migrations[i]); err != nil {
			return fmt.Errorf("migration %d: %w", i+1, err)
		}
	}
	return nil
}

func applyStep(db *sql.DB, version int, stmt string) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	if _, err := tx.Exec(stmt); err != nil {
		_ = tx.Rollback()
		return err
	}
	// PRAGMA does not take bind parameters.
	if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", version)); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// migrations are append-only. Step N sets user_version to N.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS pipelines (
		id                 TEXT PRIMARY KEY,
		status             TEXT NOT NULL DEFAULT 'idle'
		                   CHECK(status IN ('idle','running','paused','completed','failed')),
		stages             TEXT NOT NULL,
		current_task_index INTEGER NOT NULL DEFAULT 0,
		start_time         TEXT,
		end_time           TEXT,
		created_at         TEXT NOT NULL,
		updated_at         TEXT NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS refinement_tasks (
		id               TEXT PRIMARY KEY,
		pipeline_id      TEXT NOT NULL REFERENCES pipelines(id) ON DELETE CASCADE,
		position         INTEGER NOT NULL,
		chapter_id       TEXT NOT NULL,
		chapter_title    TEXT NOT NULL DEFAULT '',
		original_content TEXT NOT NULL,
		current_content  TEXT NOT NULL,
		current_stage    TEXT NOT NULL,
		completed_stages TEXT NOT NULL DEFAULT '[]',
		status           TEXT NOT NULL DEFAULT 'pending'
		                 CHECK(status IN ('pending','processing','completed','failed','paused')),
		error            TEXT NOT NULL DEFAULT '',
		start_time       TEXT,
		end_time         TEXT,
		UNIQUE(pipeline_id, position)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_refinement_tasks_pipeline ON refinement_tasks(pipeline_id)`,

	// Score columns are nullable: NULL round-trips a NaN score.
	`CREATE TABLE IF NOT EXISTS quality_metrics (
		seq                INTEGER PRIMARY KEY AUTOINCREMENT,
		chapter_number     INTEGER NOT NULL,
		recorded_at        TEXT NOT NULL,
		overall            REAL,
		ai_flavor          REAL,
		cool_point_density REAL,
		pacing             REAL,
		consistency        REAL,
		repetition         REAL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_quality_metrics_recorded ON quality_metrics(recorded_at)`,

	`CREATE TABLE IF NOT EXISTS alert_thresholds (
		id         INTEGER PRIMARY KEY CHECK(id = 1),
		data       TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`,

	`ALTER TABLE pipelines ADD COLUMN source TEXT NOT NULL DEFAULT ''`,
}
