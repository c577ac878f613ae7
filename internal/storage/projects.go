package storage

import (
	"context"
	"fmt"

	"github.com/solarcraft/bosforge/internal/common"
)

// Fields retrieves the flat field bag for a project. An unknown project is
// an error so callers can tell "no record" from "empty record".
func (s *SQLiteStorage) Fields(ctx context.Context, projectID string) (map[string]string, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(projectID, "projectID"); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT field, value
		FROM project_fields
		WHERE project_id = ?
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to query project fields: %w", err)
	}
	defer func() { _ = rows.Close() }()

	fields := make(map[string]string)
	for rows.Next() {
		var field, value string
		if err := rows.Scan(&field, &value); err != nil {
			return nil, fmt.Errorf("failed to scan project field: %w", err)
		}
		fields[field] = value
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating project fields: %w", err)
	}

	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: project %s", common.ErrNotFound, projectID)
	}
	return fields, nil
}

// SaveFields upserts a field-value payload for a project in one transaction.
// Boolean values persist as "true"/"false" so the bag stays string-typed.
func (s *SQLiteStorage) SaveFields(ctx context.Context, projectID string, payload map[string]any) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(projectID, "projectID"); err != nil {
		return err
	}
	if len(payload) == 0 {
		return fmt.Errorf("%w: payload", ErrEmptyPayload)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO project_fields (project_id, field, value, updated_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(project_id, field) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare upsert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for field, value := range payload {
		if _, err := stmt.ExecContext(ctx, projectID, field, fmt.Sprintf("%v", value)); err != nil {
			return fmt.Errorf("failed to save field %s: %w", field, err)
		}
	}

	return tx.Commit()
}
