// Package populate turns configuration matches into persisted BOS equipment:
// catalog resolution, company preference filtering, duplicate detection, and
// the flat-field save payload.
package populate

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/solarcraft/bosforge/internal/common"
	"github.com/solarcraft/bosforge/internal/config"
	"github.com/solarcraft/bosforge/internal/model"
	"github.com/solarcraft/bosforge/internal/service"
)

// standardTypes translates utility-specific equipment names back to the
// catalog-standard type before lookup. Rules may emit either form.
var standardTypes = map[string]string{
	"Utility Disconnect":                      "AC Disconnect",
	"Photovoltaic System Disconnect Switch":   "Fused AC Disconnect",
	"APS Production Meter":                    "PV Meter",
	"APS Net Meter":                           "Bi-Directional Meter",
	"DER Meter Disconnect Switch":             "AC Disconnect",
	"SRP System Disconnect":                   "Fused AC Disconnect",
	"Dedicated DER Meter":                     "PV Meter",
	"SRP Net Metering Device":                 "Bi-Directional Meter",
	"DG Disconnect Switch":                    "AC Disconnect",
	"TEP Fused Disconnect":                    "Fused AC Disconnect",
	"Utility DG Meter":                        "PV Meter",
	"TEP Bi-Directional Meter":                "Bi-Directional Meter",
	"Co-Generation System Utility Disconnect": "AC Disconnect",
	"TRICO System Disconnect":                 "Fused AC Disconnect",
	"Co-Generation Meter":                     "PV Meter",
	"TRICO Generation Meter":                  "PV Meter",
}

func standardTypeFor(equipmentType string) string {
	if std, ok := standardTypes[equipmentType]; ok {
		return std
	}
	return equipmentType
}

// Service resolves and persists the equipment a configuration match calls
// for. All collaborators are interfaces so tests run against stubs.
type Service struct {
	projects  service.ProjectReader
	writer    service.ProjectWriter
	catalog   service.EquipmentCatalog
	preferred service.PreferredEquipment
	landing   map[string]string
}

// New builds the population service. The landing map comes from rules data
// and translates combine-point names to their persistence values.
func New(
	projects service.ProjectReader,
	writer service.ProjectWriter,
	catalog service.EquipmentCatalog,
	preferred service.PreferredEquipment,
	rules config.Rules,
) *Service {
	landing := make(map[string]string, len(rules.LandingPoints))
	for k, v := range rules.LandingPoints {
		landing[strings.ToLower(k)] = v
	}
	return &Service{
		projects:  projects,
		writer:    writer,
		catalog:   catalog,
		preferred: preferred,
		landing:   landing,
	}
}

// Request asks for one configuration match to be applied to a project.
type Request struct {
	ProjectID    string
	CompanyID    string
	SystemNumber int
	Match        *model.Match

	// SkipExisting leaves already-populated slots alone instead of
	// overwriting them.
	SkipExisting bool

	// AutoSelect picks the smallest qualifying catalog entry when several
	// remain after preference filtering, instead of deferring to the user.
	AutoSelect bool
}

// AutoPopulate resolves each item of the match against the catalog and
// preferences, then persists the combined payload. Individual item failures
// accumulate in the result; only a failed save fails the call.
func (s *Service) AutoPopulate(ctx context.Context, req Request) (*model.AutoPopulateResult, error) {
	if req.Match == nil {
		return nil, fmt.Errorf("no configuration match supplied")
	}

	result := &model.AutoPopulateResult{}
	log := slog.With("project_id", req.ProjectID, "config_id", req.Match.ConfigID)
	log.Info("Starting BOS auto-population", "items", len(req.Match.Items))

	// One read serves every duplicate check. An unreadable project record
	// must not block population; we proceed as if the slots were empty.
	var fields map[string]string
	if req.SkipExisting {
		var err error
		fields, err = s.projects.Fields(ctx, req.ProjectID)
		if err != nil {
			log.Warn("Could not read project record; duplicate checks skipped", "error", err)
			fields = nil
		}
	}

	for _, item := range req.Match.Items {
		if req.SkipExisting && s.itemExists(fields, item, req.SystemNumber) {
			result.SkippedEquipment = append(result.SkippedEquipment, item)
			log.Debug("Slot already populated, skipping", "equipment_type", item.EquipmentType, "position", item.Position)
			continue
		}

		// Rules may pin the full selection; no catalog work needed.
		if item.DirectlySpecified() {
			result.AddedEquipment = append(result.AddedEquipment, item)
			continue
		}

		resolved, err := s.resolve(ctx, req, item)
		if err != nil {
			result.Errors = append(result.Errors, err.Error())
			log.Warn("Equipment resolution failed", "equipment_type", item.EquipmentType, "error", err)
			continue
		}
		if resolved.RequiresUserSelection {
			result.RequiresUserSelection = append(result.RequiresUserSelection, resolved)
		} else {
			result.AddedEquipment = append(result.AddedEquipment, resolved)
		}
	}

	all := append(append([]model.Item(nil), result.AddedEquipment...), result.RequiresUserSelection...)
	result.DatabasePayload = buildPayload(all, req.SystemNumber)
	s.applyLandings(result.DatabasePayload, req.Match.MultiSystem)

	if len(all) > 0 || req.Match.MultiSystem != nil {
		if err := s.writer.SaveFields(ctx, req.ProjectID, result.DatabasePayload); err != nil {
			result.Message = "Saving BOS equipment failed"
			return result, fmt.Errorf("saving BOS payload: %w", err)
		}
		result.Success = true
		result.Message = populationMessage(result)
	} else if len(result.SkippedEquipment) > 0 {
		result.Success = true
		result.Message = "All required BOS equipment already exists"
	} else {
		result.Message = "No BOS equipment could be added"
	}

	log.Info("Auto-population complete",
		"added", len(result.AddedEquipment),
		"skipped", len(result.SkippedEquipment),
		"needs_selection", len(result.RequiresUserSelection),
		"errors", len(result.Errors))
	return result, nil
}

func populationMessage(result *model.AutoPopulateResult) string {
	added, pending := len(result.AddedEquipment), len(result.RequiresUserSelection)
	switch {
	case added > 0 && pending > 0:
		return fmt.Sprintf("Added %d BOS item(s), %d require user selection", added, pending)
	case added > 0:
		return fmt.Sprintf("Successfully added %d BOS equipment item(s)", added)
	default:
		return fmt.Sprintf("%d BOS equipment item(s) require user selection", pending)
	}
}

// applyLandings writes the multi-system landing selectors alongside the
// equipment fields.
func (s *Service) applyLandings(payload map[string]any, multi *model.MultiSystemConfig) {
	if multi == nil {
		return
	}
	for systemNumber, combinesAt := range multi.CombinesAt {
		value := combinesAt
		if translated, ok := s.landing[strings.ToLower(combinesAt)]; ok {
			value = translated
		}
		payload[fmt.Sprintf("systemLandingSys%d", systemNumber)] = value
	}
}

// itemExists reports whether the target slot already holds equipment.
// Gateways and storage management systems exist at most once per subsystem,
// so they are matched anywhere in the system rather than positionally.
func (s *Service) itemExists(fields map[string]string, item model.Item, fallbackSystem int) bool {
	if len(fields) == 0 {
		return false
	}

	lowerType := strings.ToLower(item.EquipmentType)
	if strings.Contains(lowerType, "gateway") || lowerType == "sms" || strings.Contains(lowerType, "storage management") {
		return s.coreEquipmentExists(fields, item, fallbackSystem)
	}

	prefix, ok := existsFieldPrefix(item, fallbackSystem)
	if !ok {
		return false
	}
	return fields[prefix+"_equipment_type"] != "" ||
		fields[prefix+"_make"] != "" ||
		fields[prefix+"_model"] != ""
}

// coreEquipmentExists scans every slot of the item's subsystem for a
// same-family equipment type.
func (s *Service) coreEquipmentExists(fields map[string]string, item model.Item, fallbackSystem int) bool {
	family := "gateway"
	lowerType := strings.ToLower(item.EquipmentType)
	if lowerType == "sms" || strings.Contains(lowerType, "storage management") {
		family = "sms"
	}

	systemNumber := systemNumberFor(item, fallbackSystem)
	for section, schema := range sectionSchemas {
		for pos := 1; pos <= section.MaxSlots(); pos++ {
			existing := strings.ToLower(fields[schema.fieldPrefix(systemNumber, pos)+"_equipment_type"])
			if existing == "" {
				continue
			}
			if family == "sms" && (existing == "sms" || strings.Contains(existing, "storage management")) {
				return true
			}
			if family == "gateway" && strings.Contains(existing, "gateway") {
				return true
			}
		}
	}
	return false
}

// resolve fills in make, model and amp rating from the catalog, honoring
// company preferences. Precedence:
//
//  1. the company's default preferred entry, when it exists in the catalog
//  2. a single preferred make+model entry, when it exists in the catalog
//  3. the rule's preferred make, narrowing the candidate set
//  4. a lone surviving make+model combination
//
// Anything still ambiguous is returned for user selection with the
// candidate makes and models attached.
func (s *Service) resolve(ctx context.Context, req Request, item model.Item) (model.Item, error) {
	standardType := standardTypeFor(item.EquipmentType)

	candidates, err := s.catalog.ByType(ctx, standardType)
	if err != nil {
		return item, fmt.Errorf("catalog lookup for %q: %w", standardType, err)
	}
	if len(candidates) == 0 && standardType != item.EquipmentType {
		candidates, err = s.catalog.ByType(ctx, item.EquipmentType)
		if err != nil {
			return item, fmt.Errorf("catalog lookup for %q: %w", item.EquipmentType, err)
		}
	}
	if len(candidates) == 0 {
		return item, fmt.Errorf("%w: %q", common.ErrCatalogMiss, item.EquipmentType)
	}

	// Preference lookup failures degrade to an unfiltered catalog.
	var prefs []service.Preference
	if req.CompanyID != "" && s.preferred != nil {
		prefs, err = s.preferred.ByCompanyAndType(ctx, req.CompanyID, standardType)
		if err != nil {
			slog.Warn("Preferred equipment lookup failed", "equipment_type", standardType, "error", err)
			prefs = nil
		}
	}

	candidates = filterByPreferredMakes(candidates, prefs)
	candidates = filterByMinAmp(candidates, item.MinAmpRating)
	sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].Amp < candidates[j].Amp })

	if chosen, ok := pickPreferred(candidates, prefs); ok {
		return fillItem(item, chosen, true), nil
	}

	if item.PreferredMake != "" {
		if narrowed := filterByMake(candidates, item.PreferredMake); len(narrowed) > 0 {
			candidates = narrowed
		}
	}

	makes, models := uniqueMakesAndModels(candidates)
	if len(makes) == 1 && len(models) == 1 {
		return fillItem(item, candidates[0], true), nil
	}
	if req.AutoSelect {
		return fillItem(item, candidates[0], true), nil
	}

	item.RequiresUserSelection = true
	item.AvailableMakes = makes
	item.AvailableModels = models
	return item, nil
}

func fillItem(item model.Item, chosen service.CatalogItem, autoSelected bool) model.Item {
	item.Make = chosen.Make
	item.Model = chosen.Model
	item.AmpRating = fmt.Sprintf("%g", chosen.Amp)
	item.AutoSelected = autoSelected
	return item
}

// filterByPreferredMakes narrows to the company's preferred manufacturers,
// but never to an empty set.
func filterByPreferredMakes(items []service.CatalogItem, prefs []service.Preference) []service.CatalogItem {
	if len(prefs) == 0 {
		return items
	}
	makes := make(map[string]bool, len(prefs))
	for _, p := range prefs {
		makes[strings.ToLower(p.Make)] = true
	}
	var filtered []service.CatalogItem
	for _, item := range items {
		if makes[strings.ToLower(item.Make)] {
			filtered = append(filtered, item)
		}
	}
	if len(filtered) == 0 {
		return items
	}
	return filtered
}

// filterByMinAmp keeps the smallest amp tier at or above the requirement.
// Without a qualifying tier the full set stands, for user selection.
func filterByMinAmp(items []service.CatalogItem, minAmp int) []service.CatalogItem {
	if minAmp <= 0 {
		return items
	}
	var qualifying []service.CatalogItem
	for _, item := range items {
		if item.Amp >= float64(minAmp) {
			qualifying = append(qualifying, item)
		}
	}
	if len(qualifying) == 0 {
		return items
	}
	smallest := qualifying[0].Amp
	for _, item := range qualifying[1:] {
		if item.Amp < smallest {
			smallest = item.Amp
		}
	}
	var tier []service.CatalogItem
	for _, item := range qualifying {
		if item.Amp == smallest {
			tier = append(tier, item)
		}
	}
	return tier
}

func filterByMake(items []service.CatalogItem, manufacturer string) []service.CatalogItem {
	var filtered []service.CatalogItem
	for _, item := range items {
		if strings.EqualFold(item.Make, manufacturer) {
			filtered = append(filtered, item)
		}
	}
	return filtered
}

// pickPreferred applies the default-preference and lone-preference rules.
// Make-only preferences (empty or N/A model) never auto-select a model.
func pickPreferred(items []service.CatalogItem, prefs []service.Preference) (service.CatalogItem, bool) {
	match := func(p service.Preference) (service.CatalogItem, bool) {
		if p.Model == "" || strings.EqualFold(p.Model, "N/A") {
			return service.CatalogItem{}, false
		}
		for _, item := range items {
			if strings.EqualFold(item.Make, p.Make) && strings.EqualFold(item.Model, p.Model) {
				return item, true
			}
		}
		return service.CatalogItem{}, false
	}

	for _, p := range prefs {
		if p.IsDefault {
			if item, ok := match(p); ok {
				return item, true
			}
		}
	}
	if len(prefs) == 1 {
		return match(prefs[0])
	}
	return service.CatalogItem{}, false
}

func uniqueMakesAndModels(items []service.CatalogItem) ([]string, []string) {
	makeSeen := make(map[string]bool)
	modelSeen := make(map[string]bool)
	var makes, models []string
	for _, item := range items {
		if !makeSeen[item.Make] {
			makeSeen[item.Make] = true
			makes = append(makes, item.Make)
		}
		if !modelSeen[item.Model] {
			modelSeen[item.Model] = true
			models = append(models, item.Model)
		}
	}
	return makes, models
}

// ValidateRequiredEquipment checks that the project record actually carries
// the equipment the matched configuration assumes, before any BOS is added.
func ValidateRequiredEquipment(match *model.Match, fields map[string]string) (bool, []string) {
	var missing []string
	prefix := match.SystemPrefix
	req := match.Required

	if req.SolarPanels &&
		fields[prefix+"solar_panel_make"] == "" && fields[prefix+"solar_panel_model"] == "" {
		missing = append(missing, "Solar Panels")
	}
	if req.BatteryQuantity > 0 && fields[prefix+"battery_1_qty"] == "" {
		missing = append(missing, "Battery")
	}
	if len(req.InverterTypes) > 0 &&
		fields[prefix+"micro_inverter_make"] == "" && fields[prefix+"micro_inverter_model"] == "" {
		missing = append(missing, "Inverter")
	}
	if req.SMS && fields[prefix+"sms_make"] == "" && fields[prefix+"sms_model"] == "" {
		missing = append(missing, "Storage Management System (SMS)")
	}

	return len(missing) == 0, missing
}
