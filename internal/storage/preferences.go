package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/solarcraft/bosforge/internal/service"
)

// ByCompanyAndType retrieves a company's preferred equipment entries for a
// type, defaults first.
func (s *SQLiteStorage) ByCompanyAndType(ctx context.Context, companyID, equipmentType string) ([]service.Preference, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(companyID, "companyID"); err != nil {
		return nil, err
	}
	if err := validateString(equipmentType, "equipmentType"); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT make, model, is_default
		FROM preferred_equipment
		WHERE company_id = ? AND equipment_type = ? COLLATE NOCASE
		ORDER BY is_default DESC, make, model
	`, companyID, equipmentType)
	if err != nil {
		return nil, fmt.Errorf("failed to query preferred equipment: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var prefs []service.Preference
	for rows.Next() {
		var p service.Preference
		if err := rows.Scan(&p.Make, &p.Model, &p.IsDefault); err != nil {
			return nil, fmt.Errorf("failed to scan preference: %w", err)
		}
		prefs = append(prefs, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating preferences: %w", err)
	}
	return prefs, nil
}

// ByUtility retrieves the governing utility's BOS requirements row, or nil
// when the utility has none on file.
func (s *SQLiteStorage) ByUtility(ctx context.Context, utilityName string) (*service.UtilityRequirementsRow, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(utilityName, "utilityName"); err != nil {
		return nil, err
	}

	var row service.UtilityRequirementsRow
	err := s.db.QueryRowContext(ctx, `
		SELECT utility_name, state, combination,
			bos_type_1, bos_type_2, bos_type_3,
			bos_type_4, bos_type_5, bos_type_6
		FROM utility_requirements
		WHERE utility_name = ? COLLATE NOCASE
	`, utilityName).Scan(
		&row.UtilityName,
		&row.State,
		&row.Combination,
		&row.BOSTypes[0],
		&row.BOSTypes[1],
		&row.BOSTypes[2],
		&row.BOSTypes[3],
		&row.BOSTypes[4],
		&row.BOSTypes[5],
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get utility requirements: %w", err)
	}
	return &row, nil
}
