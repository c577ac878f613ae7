// Package service defines the interfaces for all external collaborators of
// the BOS engine: project record access, equipment catalogs, and company
// preferences.
package service

import "context"

// ProjectReader fetches the flat field bag for a project. The engine only
// reads it; raw keys never leak past the extractor and the duplicate check.
type ProjectReader interface {
	Fields(ctx context.Context, projectID string) (map[string]string, error)
}

// ProjectWriter persists a flat field-value payload. A failed write is
// surfaced to the caller; the engine does not retry.
type ProjectWriter interface {
	SaveFields(ctx context.Context, projectID string, payload map[string]any) error
}

// BatteryModel is one battery catalog entry.
type BatteryModel struct {
	Model      string
	CoupleType string
}

// BatteryCatalog looks up battery models by manufacturer.
type BatteryCatalog interface {
	ModelsByMake(ctx context.Context, manufacturer string) ([]BatteryModel, error)
}

// InverterModel is one inverter catalog entry.
type InverterModel struct {
	Model             string
	MaxContOutputAmps float64
}

// InverterCatalog looks up inverter models by manufacturer.
type InverterCatalog interface {
	ModelsByMake(ctx context.Context, manufacturer string) ([]InverterModel, error)
}

// CatalogItem is one BOS equipment catalog entry. Amp is the numeric rating.
type CatalogItem struct {
	Type  string
	Make  string
	Model string
	Amp   float64
}

// EquipmentCatalog looks up BOS equipment by catalog-standard type name.
type EquipmentCatalog interface {
	ByType(ctx context.Context, equipmentType string) ([]CatalogItem, error)
}

// Preference is a company's declared preferred equipment entry. Model may be
// empty or "N/A" for make-only preferences.
type Preference struct {
	Make      string
	Model     string
	IsDefault bool
}

// PreferredEquipment looks up a company's preferences for an equipment type.
type PreferredEquipment interface {
	ByCompanyAndType(ctx context.Context, companyID, equipmentType string) ([]Preference, error)
}

// UtilityRequirements loads the governing utility's BOS requirement row.
type UtilityRequirements interface {
	ByUtility(ctx context.Context, utilityName string) (*UtilityRequirementsRow, error)
}

// UtilityRequirementsRow mirrors the utility requirements table.
type UtilityRequirementsRow struct {
	UtilityName string
	State       string
	Combination string
	BOSTypes    [6]string
}
