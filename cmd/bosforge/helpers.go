package main

import (
	"context"
	"fmt"

	"github.com/solarcraft/bosforge/internal/config"
	"github.com/solarcraft/bosforge/internal/extract"
	"github.com/solarcraft/bosforge/internal/model"
	"github.com/solarcraft/bosforge/internal/rules"
	"github.com/solarcraft/bosforge/internal/sizing"
	"github.com/solarcraft/bosforge/internal/storage"
	"github.com/solarcraft/bosforge/internal/switchboard"
)

// initStorage opens the database and brings the schema current.
func initStorage(ctx context.Context) (*storage.SQLiteStorage, error) {
	store, err := storage.NewSQLiteStorage(config.DatabasePath())
	if err != nil {
		return nil, err
	}

	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

// engine bundles everything a detection run needs.
type engine struct {
	store       *storage.SQLiteStorage
	extractor   *extract.Extractor
	switchboard *switchboard.Switchboard
	sizer       *sizing.Sizer
	rules       config.Rules
}

// buildEngine wires the extractor and the detector registry on top of the
// storage. The peer-system lookup lets multi-system rules inspect sibling
// subsystems of the same project.
func buildEngine(store *storage.SQLiteStorage) (*engine, error) {
	rulesData := config.LoadRules()
	sizer := sizing.NewSizer(rulesData.BreakerLadder)
	extractor := extract.New(store.Batteries(), store.Inverters(), rulesData)

	deps := rules.Deps{
		Sizer: sizer,
		PeerSystem: func(ctx context.Context, projectID string, systemNumber int) (*model.EquipmentState, error) {
			fields, err := store.Fields(ctx, projectID)
			if err != nil {
				return nil, err
			}
			reqs, err := utilityRequirements(ctx, store, fields)
			if err != nil {
				return nil, err
			}
			return extractor.ForSystem(ctx, fields, systemNumber, reqs)
		},
	}

	sb := switchboard.New()
	if err := sb.Init(rules.Registry(deps)...); err != nil {
		return nil, fmt.Errorf("failed to initialize switchboard: %w", err)
	}

	return &engine{
		store:       store,
		extractor:   extractor,
		switchboard: sb,
		sizer:       sizer,
		rules:       rulesData,
	}, nil
}

// utilityRequirements loads the governing utility's requirement row for the
// record, when one is on file.
func utilityRequirements(ctx context.Context, store *storage.SQLiteStorage, fields map[string]string) (*model.UtilityRequirements, error) {
	utilityName := fields["utility_name"]
	if utilityName == "" {
		return nil, nil
	}

	row, err := store.ByUtility(ctx, utilityName)
	if err != nil {
		return nil, fmt.Errorf("loading utility requirements: %w", err)
	}
	if row == nil {
		return nil, nil
	}

	return &model.UtilityRequirements{
		UtilityName: row.UtilityName,
		State:       row.State,
		Combination: row.Combination,
		BOSTypes:    row.BOSTypes,
	}, nil
}
