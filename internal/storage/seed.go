package storage

import (
	"context"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// SeedFile is the YAML layout for catalog imports.
type SeedFile struct {
	Batteries []struct {
		Make       string `yaml:"make"`
		Model      string `yaml:"model"`
		CoupleType string `yaml:"couple_type"`
	} `yaml:"batteries"`
	Inverters []struct {
		Make              string  `yaml:"make"`
		Model             string  `yaml:"model"`
		MaxContOutputAmps float64 `yaml:"max_cont_output_amps"`
	} `yaml:"inverters"`
	Equipment []struct {
		Type      string  `yaml:"type"`
		Make      string  `yaml:"make"`
		Model     string  `yaml:"model"`
		AmpRating float64 `yaml:"amp_rating"`
	} `yaml:"equipment"`
	Preferences []struct {
		CompanyID string `yaml:"company_id"`
		Type      string `yaml:"type"`
		Make      string `yaml:"make"`
		Model     string `yaml:"model"`
		Default   bool   `yaml:"default"`
	} `yaml:"preferences"`
	Utilities []struct {
		Name        string   `yaml:"name"`
		State       string   `yaml:"state"`
		Combination string   `yaml:"combination"`
		BOSTypes    []string `yaml:"bos_types"`
	} `yaml:"utilities"`
}

// Records counts the rows the seed file carries.
func (f *SeedFile) Records() int {
	return len(f.Batteries) + len(f.Inverters) + len(f.Equipment) +
		len(f.Preferences) + len(f.Utilities)
}

// SeedFromYAML loads catalog data from a YAML stream, replacing matching
// rows. The progress callback, when non-nil, fires once per inserted row so
// callers can drive a progress display.
func (s *SQLiteStorage) SeedFromYAML(ctx context.Context, r io.Reader, progress func(int)) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return 0, fmt.Errorf("failed to read seed data: %w", err)
	}

	var file SeedFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return 0, fmt.Errorf("failed to parse seed data: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	inserted := 0
	tick := func() {
		inserted++
		if progress != nil {
			progress(1)
		}
	}

	for _, b := range file.Batteries {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO battery_models (make, model, couple_type)
			VALUES (?, ?, ?)
			ON CONFLICT(make, model) DO UPDATE SET couple_type = excluded.couple_type
		`, b.Make, b.Model, b.CoupleType); err != nil {
			return inserted, fmt.Errorf("failed to seed battery %s %s: %w", b.Make, b.Model, err)
		}
		tick()
	}

	for _, inv := range file.Inverters {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO inverter_models (make, model, max_cont_output_amps)
			VALUES (?, ?, ?)
			ON CONFLICT(make, model) DO UPDATE SET max_cont_output_amps = excluded.max_cont_output_amps
		`, inv.Make, inv.Model, inv.MaxContOutputAmps); err != nil {
			return inserted, fmt.Errorf("failed to seed inverter %s %s: %w", inv.Make, inv.Model, err)
		}
		tick()
	}

	for _, e := range file.Equipment {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO equipment_catalog (equipment_type, make, model, amp_rating)
			VALUES (?, ?, ?, ?)
		`, e.Type, e.Make, e.Model, e.AmpRating); err != nil {
			return inserted, fmt.Errorf("failed to seed equipment %s: %w", e.Type, err)
		}
		tick()
	}

	for _, p := range file.Preferences {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO preferred_equipment (company_id, equipment_type, make, model, is_default)
			VALUES (?, ?, ?, ?, ?)
		`, p.CompanyID, p.Type, p.Make, p.Model, p.Default); err != nil {
			return inserted, fmt.Errorf("failed to seed preference %s/%s: %w", p.CompanyID, p.Type, err)
		}
		tick()
	}

	for _, u := range file.Utilities {
		var types [6]string
		copy(types[:], u.BOSTypes)
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO utility_requirements (
				utility_name, state, combination,
				bos_type_1, bos_type_2, bos_type_3,
				bos_type_4, bos_type_5, bos_type_6
			)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(utility_name) DO UPDATE SET
				state = excluded.state,
				combination = excluded.combination,
				bos_type_1 = excluded.bos_type_1,
				bos_type_2 = excluded.bos_type_2,
				bos_type_3 = excluded.bos_type_3,
				bos_type_4 = excluded.bos_type_4,
				bos_type_5 = excluded.bos_type_5,
				bos_type_6 = excluded.bos_type_6
		`, u.Name, u.State, u.Combination,
			types[0], types[1], types[2], types[3], types[4], types[5]); err != nil {
			return inserted, fmt.Errorf("failed to seed utility %s: %w", u.Name, err)
		}
		tick()
	}

	if err := tx.Commit(); err != nil {
		return inserted, fmt.Errorf("failed to commit seed data: %w", err)
	}
	return inserted, nil
}
