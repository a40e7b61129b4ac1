package db

import (
	"context"
	"fmt"
)

// Tables lists the catalog tables that hold per-version rows, children first.
var Tables = []string{
	"references_",
	"attributes",
	"variables",
	"dimensions",
	"datasets",
	"ci_jobs",
	"versions",
}

var schemaStatements = []string{
	`CREATE SCHEMA IF NOT EXISTS catalog`,

	`CREATE TABLE IF NOT EXISTS catalog.versions (
		version_id   SERIAL PRIMARY KEY,
		version_name TEXT NOT NULL,
		fingerprint  TEXT NOT NULL,
		run_id       UUID NOT NULL,
		created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
		is_active    BOOLEAN NOT NULL DEFAULT false,
		source_dir   TEXT NOT NULL,
		description  TEXT
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS versions_single_active
		ON catalog.versions (is_active) WHERE is_active`,

	`CREATE TABLE IF NOT EXISTS catalog.datasets (
		version_id   INTEGER NOT NULL REFERENCES catalog.versions ON DELETE CASCADE,
		dataset_name TEXT NOT NULL,
		file_name    TEXT NOT NULL,
		is_clean     BOOLEAN NOT NULL,
		PRIMARY KEY (version_id, dataset_name)
	)`,

	`CREATE TABLE IF NOT EXISTS catalog.dimensions (
		version_id     INTEGER NOT NULL REFERENCES catalog.versions ON DELETE CASCADE,
		dataset_name   TEXT NOT NULL,
		dimension_name TEXT NOT NULL,
		size           INTEGER NOT NULL,
		is_unlimited   BOOLEAN NOT NULL,
		position       INTEGER NOT NULL,
		PRIMARY KEY (version_id, dataset_name, dimension_name)
	)`,

	`CREATE TABLE IF NOT EXISTS catalog.variables (
		version_id    INTEGER NOT NULL REFERENCES catalog.versions ON DELETE CASCADE,
		dataset_name  TEXT NOT NULL,
		variable_name TEXT NOT NULL,
		data_type     TEXT NOT NULL,
		dimensions    TEXT NOT NULL,
		is_coordinate BOOLEAN NOT NULL,
		value_count   INTEGER NOT NULL,
		position      INTEGER NOT NULL,
		PRIMARY KEY (version_id, dataset_name, variable_name)
	)`,

	`CREATE TABLE IF NOT EXISTS catalog.attributes (
		version_id     INTEGER NOT NULL REFERENCES catalog.versions ON DELETE CASCADE,
		dataset_name   TEXT NOT NULL,
		variable_name  TEXT NOT NULL,
		attribute_name TEXT NOT NULL,
		data_type      TEXT NOT NULL,
		value          TEXT NOT NULL,
		position       INTEGER NOT NULL,
		PRIMARY KEY (version_id, dataset_name, variable_name, attribute_name)
	)`,

	`CREATE TABLE IF NOT EXISTS catalog.references_ (
		version_id        INTEGER NOT NULL REFERENCES catalog.versions ON DELETE CASCADE,
		dataset_name      TEXT NOT NULL,
		variable_name     TEXT NOT NULL,
		attribute_name    TEXT NOT NULL,
		target            TEXT NOT NULL,
		measure_key       TEXT,
		target_exists     BOOLEAN NOT NULL,
		dimension_rule    TEXT NOT NULL,
		consistent        BOOLEAN NOT NULL,
		PRIMARY KEY (version_id, dataset_name, variable_name, attribute_name, target)
	)`,

	`CREATE TABLE IF NOT EXISTS catalog.ci_jobs (
		version_id       INTEGER NOT NULL REFERENCES catalog.versions ON DELETE CASCADE,
		job_number       INTEGER NOT NULL,
		language_version TEXT NOT NULL,
		test_target      TEXT,
		env              TEXT NOT NULL,
		allow_failure    BOOLEAN NOT NULL,
		install_commands TEXT NOT NULL,
		script_commands  TEXT NOT NULL,
		PRIMARY KEY (version_id, job_number)
	)`,
}

// EnsureSchema creates the catalog schema and tables when they are missing.
func (db *DB) EnsureSchema(ctx context.Context) error {
	tx, err := db.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range schemaStatements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("applying schema: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	db.logger.Debug("Catalog schema ensured", "statements", len(schemaStatements))
	return nil
}
