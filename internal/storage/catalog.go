package storage

import (
	"context"
	"fmt"

	"github.com/solarcraft/bosforge/internal/service"
)

// Batteries returns the battery-catalog view of the storage.
func (s *SQLiteStorage) Batteries() service.BatteryCatalog {
	return batteryCatalog{s}
}

// Inverters returns the inverter-catalog view of the storage.
func (s *SQLiteStorage) Inverters() service.InverterCatalog {
	return inverterCatalog{s}
}

// The two catalog interfaces share a method name with different row types,
// so each gets a thin view over the storage.
type batteryCatalog struct{ s *SQLiteStorage }

func (c batteryCatalog) ModelsByMake(ctx context.Context, manufacturer string) ([]service.BatteryModel, error) {
	return c.s.BatteryModelsByMake(ctx, manufacturer)
}

type inverterCatalog struct{ s *SQLiteStorage }

func (c inverterCatalog) ModelsByMake(ctx context.Context, manufacturer string) ([]service.InverterModel, error) {
	return c.s.InverterModelsByMake(ctx, manufacturer)
}

// BatteryModelsByMake retrieves the battery catalog entries for a
// manufacturer.
func (s *SQLiteStorage) BatteryModelsByMake(ctx context.Context, manufacturer string) ([]service.BatteryModel, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(manufacturer, "manufacturer"); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT model, couple_type
		FROM battery_models
		WHERE make = ? COLLATE NOCASE
		ORDER BY model
	`, manufacturer)
	if err != nil {
		return nil, fmt.Errorf("failed to query battery models: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var models []service.BatteryModel
	for rows.Next() {
		var m service.BatteryModel
		if err := rows.Scan(&m.Model, &m.CoupleType); err != nil {
			return nil, fmt.Errorf("failed to scan battery model: %w", err)
		}
		models = append(models, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating battery models: %w", err)
	}
	return models, nil
}

// InverterModelsByMake retrieves the inverter catalog entries for a
// manufacturer.
func (s *SQLiteStorage) InverterModelsByMake(ctx context.Context, manufacturer string) ([]service.InverterModel, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(manufacturer, "manufacturer"); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT model, max_cont_output_amps
		FROM inverter_models
		WHERE make = ? COLLATE NOCASE
		ORDER BY model
	`, manufacturer)
	if err != nil {
		return nil, fmt.Errorf("failed to query inverter models: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var models []service.InverterModel
	for rows.Next() {
		var m service.InverterModel
		if err := rows.Scan(&m.Model, &m.MaxContOutputAmps); err != nil {
			return nil, fmt.Errorf("failed to scan inverter model: %w", err)
		}
		models = append(models, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating inverter models: %w", err)
	}
	return models, nil
}

// ByType retrieves the BOS equipment catalog entries for a type, smallest
// amp rating first.
func (s *SQLiteStorage) ByType(ctx context.Context, equipmentType string) ([]service.CatalogItem, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(equipmentType, "equipmentType"); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT equipment_type, make, model, amp_rating
		FROM equipment_catalog
		WHERE equipment_type = ? COLLATE NOCASE
		ORDER BY amp_rating, make, model
	`, equipmentType)
	if err != nil {
		return nil, fmt.Errorf("failed to query equipment catalog: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var items []service.CatalogItem
	for rows.Next() {
		var item service.CatalogItem
		if err := rows.Scan(&item.Type, &item.Make, &item.Model, &item.Amp); err != nil {
			return nil, fmt.Errorf("failed to scan catalog item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating equipment catalog: %w", err)
	}
	return items, nil
}
