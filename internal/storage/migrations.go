package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// ExpectedSchemaVersion is the latest schema version that the application
// expects. If the database cannot be migrated to this version, it's a fatal
// error.
const ExpectedSchemaVersion = 3

// Migration represents a database schema migration.
type Migration struct {
	Up          func(*sql.Tx) error
	Description string
	Version     int
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Initial schema",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS project_fields (
					project_id TEXT NOT NULL,
					field TEXT NOT NULL,
					value TEXT NOT NULL DEFAULT '',
					updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					PRIMARY KEY (project_id, field)
				)`,
				`CREATE INDEX idx_project_fields_project ON project_fields(project_id)`,

				`CREATE TABLE IF NOT EXISTS battery_models (
					make TEXT NOT NULL,
					model TEXT NOT NULL,
					couple_type TEXT NOT NULL DEFAULT '',
					PRIMARY KEY (make, model)
				)`,

				`CREATE TABLE IF NOT EXISTS inverter_models (
					make TEXT NOT NULL,
					model TEXT NOT NULL,
					max_cont_output_amps REAL NOT NULL DEFAULT 0,
					PRIMARY KEY (make, model)
				)`,

				`CREATE TABLE IF NOT EXISTS equipment_catalog (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					equipment_type TEXT NOT NULL,
					make TEXT NOT NULL,
					model TEXT NOT NULL,
					amp_rating REAL NOT NULL DEFAULT 0
				)`,
				`CREATE INDEX idx_equipment_catalog_type ON equipment_catalog(equipment_type)`,

				`CREATE TABLE IF NOT EXISTS preferred_equipment (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					company_id TEXT NOT NULL,
					equipment_type TEXT NOT NULL,
					make TEXT NOT NULL,
					model TEXT NOT NULL DEFAULT ''
				)`,
				`CREATE INDEX idx_preferred_equipment_company ON preferred_equipment(company_id, equipment_type)`,

				`CREATE TABLE IF NOT EXISTS utility_requirements (
					utility_name TEXT PRIMARY KEY,
					state TEXT NOT NULL DEFAULT '',
					combination TEXT NOT NULL DEFAULT '',
					bos_type_1 TEXT NOT NULL DEFAULT '',
					bos_type_2 TEXT NOT NULL DEFAULT '',
					bos_type_3 TEXT NOT NULL DEFAULT '',
					bos_type_4 TEXT NOT NULL DEFAULT '',
					bos_type_5 TEXT NOT NULL DEFAULT '',
					bos_type_6 TEXT NOT NULL DEFAULT ''
				)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query: %w", err)
				}
			}
			return nil
		},
	},
	{
		Version:     2,
		Description: "Add default flag to preferred equipment",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`ALTER TABLE preferred_equipment ADD COLUMN is_default BOOLEAN DEFAULT 0`,
				`CREATE INDEX idx_preferred_equipment_default ON preferred_equipment(company_id, equipment_type, is_default)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query '%s': %w", query, err)
				}
			}
			return nil
		},
	},
	{
		Version:     3,
		Description: "Case-insensitive catalog lookups",
		Up: func(tx *sql.Tx) error {
			// Catalog types and manufacturer names arrive with inconsistent
			// casing from imports; match them case-insensitively.
			queries := []string{
				`DROP INDEX IF EXISTS idx_equipment_catalog_type`,
				`CREATE INDEX idx_equipment_catalog_type ON equipment_catalog(equipment_type COLLATE NOCASE)`,
				`CREATE INDEX idx_battery_models_make ON battery_models(make COLLATE NOCASE)`,
				`CREATE INDEX idx_inverter_models_make ON inverter_models(make COLLATE NOCASE)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query '%s': %w", query, err)
				}
			}
			return nil
		},
	},
}

// Migrate applies all pending database migrations.
func (s *SQLiteStorage) Migrate(ctx context.Context) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	var currentVersion int
	err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&currentVersion)
	if err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}

	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		tx, txErr := s.db.BeginTx(ctx, nil)
		if txErr != nil {
			return fmt.Errorf("failed to begin transaction: %w", txErr)
		}

		if upErr := migration.Up(tx); upErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d failed: %w", migration.Version, upErr)
		}

		if _, execErr := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", migration.Version)); execErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to update schema version: %w", execErr)
		}

		if commitErr := tx.Commit(); commitErr != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, commitErr)
		}

		slog.Info("Applied migration",
			"version", migration.Version,
			"description", migration.Description)
	}

	var finalVersion int
	err = s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&finalVersion)
	if err != nil {
		return fmt.Errorf("failed to verify final schema version: %w", err)
	}

	if finalVersion != ExpectedSchemaVersion {
		return fmt.Errorf("database schema version mismatch: expected %d, got %d", ExpectedSchemaVersion, finalVersion)
	}

	return nil
}
