// Package extract normalizes raw project records into per-subsystem
// equipment state for configuration detection.
package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/solarcraft/bosforge/internal/config"
	"github.com/solarcraft/bosforge/internal/model"
	"github.com/solarcraft/bosforge/internal/service"
	"github.com/solarcraft/bosforge/internal/sizing"
)

// Record is the flat, loosely typed project field bag as persisted. The
// extractor is the only component that reads it by raw key.
type Record map[string]string

func (r Record) get(key string) string {
	return strings.TrimSpace(r[key])
}

// parseInt coerces a free-form numeric field; unparseable values are zero.
func (r Record) parseInt(key string) int {
	v, err := strconv.Atoi(r.get(key))
	if err != nil {
		return 0
	}
	return v
}

func (r Record) parseFloat(key string) float64 {
	v, err := strconv.ParseFloat(r.get(key), 64)
	if err != nil {
		return 0
	}
	return v
}

// parseBool treats "true"/"1" as true and anything else (including absent)
// as false, matching the legacy schema's loose boolean storage.
func (r Record) parseBool(key string) bool {
	switch strings.ToLower(r.get(key)) {
	case "true", "1":
		return true
	default:
		return false
	}
}

// Extractor builds EquipmentState values from raw records, consulting the
// battery and inverter catalogs for derived attributes.
type Extractor struct {
	batteries service.BatteryCatalog
	inverters service.InverterCatalog
	rules     config.Rules
}

// New creates an extractor with the given catalog lookups and rules data.
func New(batteries service.BatteryCatalog, inverters service.InverterCatalog, rules config.Rules) *Extractor {
	return &Extractor{
		batteries: batteries,
		inverters: inverters,
		rules:     rules,
	}
}

// ForSystem extracts the equipment state for one subsystem. It returns
// (nil, nil) when the subsystem has no meaningful data. Catalog lookup
// failures degrade to inference and never abort extraction.
func (e *Extractor) ForSystem(ctx context.Context, record Record, systemNumber int, reqs *model.UtilityRequirements) (*model.EquipmentState, error) {
	if systemNumber < 1 || systemNumber > 4 {
		return nil, fmt.Errorf("system number must be between 1 and 4, got %d", systemNumber)
	}

	prefix := fmt.Sprintf("sys%d_", systemNumber)

	if !e.systemHasData(record, prefix) {
		slog.Debug("Subsystem has no equipment data, skipping", "system", systemNumber)
		return nil, nil
	}

	state := &model.EquipmentState{
		ProjectID:    firstNonEmpty(record.get("project_id"), record.get("id")),
		SystemPrefix: prefix,
		SystemNumber: systemNumber,
	}

	if reqs != nil {
		state.UtilityName = reqs.UtilityName
		state.UtilityState = reqs.State
		state.UtilityCombination = reqs.Combination
		state.UtilityRequirements = reqs
	} else {
		// "utility" is the legacy key; the schema writes "utility_name".
		state.UtilityName = firstNonEmpty(record.get("utility_name"), record.get("utility"))
	}

	// Solar.
	state.SolarMake = record.get(prefix + "solar_panel_make")
	state.SolarModel = record.get(prefix + "solar_panel_model")
	state.SolarQuantity = record.parseInt(prefix + "solar_panel_qty")
	state.SolarWattage = record.parseInt(prefix + "solar_panel_wattage")
	state.HasSolarPanels = state.SolarMake != "" || state.SolarModel != "" || state.SolarQuantity > 0

	// Inverter and microinverter. The schema stores both under the
	// micro_inverter field family regardless of system type.
	state.SystemType = model.SystemType(normalizeSystemType(record.get(prefix + "selectedsystem")))
	state.InverterMake = record.get(prefix + "micro_inverter_make")
	state.InverterModel = record.get(prefix + "micro_inverter_model")
	state.InverterQuantity = record.parseInt(prefix + "micro_inverter_qty")
	state.MicroInverterMake = state.InverterMake
	state.MicroInverterModel = state.InverterModel
	state.AggregatePVBreaker = record.parseInt(prefix + "aggregate_pv_breaker")

	// existing=true means isNew=false; missing or false means new.
	state.InverterIsNew = !record.parseBool(prefix + "inverter_existing")
	state.MicroInverterIsNew = !record.parseBool(prefix + "micro_inverter_existing")

	state.InverterType = e.classifyInverter(state.InverterMake, state.InverterModel)

	// No explicit system selection: a known microinverter make implies one.
	// This matters for sizing, which aggregates microinverter output per unit.
	if state.SystemType == "" && e.isMicroinverter(state.InverterMake, state.InverterModel) {
		state.SystemType = model.SystemMicroinverter
	}

	// Battery.
	state.BatteryQuantity = record.parseInt(prefix + "battery_1_qty")
	state.BatteryMake = record.get(prefix + "battery_1_make")
	state.BatteryModel = record.get(prefix + "battery_1_model")
	state.BatteryMaxOutput = record.parseFloat(prefix + "battery_1_max_continuous_output")

	if !state.HasSolarPanels || record.get(prefix+"battery_charging_source") == "grid-only" {
		state.ChargingSource = model.ChargeGridOnly
	} else {
		state.ChargingSource = model.ChargeGridOrRenewable
	}

	state.Battery2Quantity = record.parseInt(prefix + "battery_2_qty")
	state.Battery2Make = record.get(prefix + "battery_2_make")
	state.Battery2Model = record.get(prefix + "battery_2_model")

	// SMS. A literal "No SMS" selection means no SMS equipment.
	state.SMSMake = record.get(prefix + "sms_make")
	state.SMSModel = record.get(prefix + "sms_model")
	state.HasSMS = (state.SMSMake != "" || state.SMSModel != "") &&
		!strings.EqualFold(state.SMSMake, "no sms") &&
		!strings.EqualFold(state.SMSModel, "no sms")

	// Gateway, including the selector-style field used by the Tesla family.
	state.GatewayMake = record.get(prefix + "gateway_make")
	state.GatewayModel = record.get(prefix + "gateway_model")
	state.GatewaySelector = record.get(prefix + "gateway")
	hasGatewayMakeModel := (state.GatewayMake != "" || state.GatewayModel != "") &&
		!strings.EqualFold(state.GatewayMake, "no gateway") &&
		!strings.EqualFold(state.GatewayModel, "no gateway")
	state.HasGateway = hasGatewayMakeModel || state.GatewaySelector != ""

	// Backup sub-panel. Field naming diverged as the schema grew: system 1
	// uses the bls1_ family, system 2 its own literal names, systems 3-4 a
	// generalized pattern. Preserved as-is; do not unify.
	state.BackupOption = model.BackupOption(record.get(prefix + "backup_option"))
	switch systemNumber {
	case 1:
		state.BackupPanelMake = record.get("bls1_backup_load_sub_panel_make")
		state.BackupPanelModel = record.get("bls1_backup_load_sub_panel_model")
		state.BackupPanelBusAmps = record.parseInt("bls1_backuploader_bus_bar_rating")
	case 2:
		state.BackupPanelMake = record.get("sys2_backup_load_sub_panel_make")
		state.BackupPanelModel = record.get("sys2_backup_load_sub_panel_model")
		state.BackupPanelBusAmps = record.parseInt("sys2_backuploadsubpanel_bus_rating")
	default:
		state.BackupPanelMake = record.get(fmt.Sprintf("sys%d_backup_load_sub_panel_make", systemNumber))
		state.BackupPanelModel = record.get(fmt.Sprintf("sys%d_backup_load_sub_panel_model", systemNumber))
		state.BackupPanelBusAmps = record.parseInt(fmt.Sprintf("sys%d_backuploadsubpanel_bus_rating", systemNumber))
	}
	state.HasBackupPanel = state.BackupOption != "" && state.BackupOption != model.BackupNone &&
		(state.BackupPanelMake != "" || state.BackupPanelModel != "")

	state.UtilityServiceAmps = record.parseInt("utility_service_amps")
	state.POIType = record.get("poi_type")

	// Derived attributes needing catalog lookups.
	state.CouplingType = e.couplingType(ctx, state)
	state.InverterMaxOutput = e.inverterMaxOutput(ctx, state)

	// Derived flags.
	state.HasMultipleBatteries = state.BatteryQuantity > 1
	state.HasDifferentBatteryTypes = state.Battery2Quantity > 0
	state.IsStandbyOnly = !state.HasSolarPanels && state.ChargingSource == model.ChargeGridOnly
	state.RequiresBackupPower = state.HasBackupPanel && state.BackupOption != model.BackupNone
	state.SupportsPeakShaving = state.InverterType == model.InverterHybrid

	state.ExistingBOS = extractExistingBOS(record, systemNumber)
	state.CombinePoint = extractCombinePoint(record)

	slog.Debug("Extracted equipment state",
		"system", systemNumber,
		"utility", state.UtilityName,
		"solar", state.HasSolarPanels,
		"battery_qty", state.BatteryQuantity,
		"inverter_type", state.InverterType,
		"coupling", state.CouplingType)

	return state, nil
}

// AllSystems extracts all four subsystems concurrently. Subsystems without
// data are omitted from the result.
func (e *Extractor) AllSystems(ctx context.Context, record Record, reqs *model.UtilityRequirements) map[int]*model.EquipmentState {
	var (
		wg     sync.WaitGroup
		states [5]*model.EquipmentState
	)

	for n := 1; n <= 4; n++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			state, err := e.ForSystem(ctx, record, n, reqs)
			if err != nil {
				slog.Error("Extraction failed", "system", n, "error", err)
				return
			}
			states[n] = state
		}(n)
	}
	wg.Wait()

	result := make(map[int]*model.EquipmentState)
	for n := 1; n <= 4; n++ {
		if states[n] != nil {
			result[n] = states[n]
		}
	}
	return result
}

// systemHasData reports whether a subsystem is configured at all: solar
// data, inverter data, a real battery, or an explicit system selection.
func (e *Extractor) systemHasData(record Record, prefix string) bool {
	hasSolar := record.get(prefix+"solar_panel_make") != "" ||
		record.get(prefix+"solar_panel_model") != "" ||
		record.get(prefix+"solar_panel_qty") != ""

	hasInverter := record.get(prefix+"micro_inverter_make") != "" ||
		record.get(prefix+"micro_inverter_model") != ""

	hasBattery := (record.get(prefix+"battery_1_make") != "" || record.get(prefix+"battery_1_model") != "") &&
		record.parseInt(prefix+"battery_1_qty") > 0

	hasSelection := record.get(prefix+"selectedsystem") != ""

	return hasSolar || hasInverter || hasBattery || hasSelection
}

// couplingType resolves AC vs DC coupling. The battery catalog is the
// authority when a battery is present; on any miss or failure we fall back
// to inverter-type inference.
func (e *Extractor) couplingType(ctx context.Context, state *model.EquipmentState) model.CouplingType {
	inferred := model.CouplingAC
	if state.InverterType == model.InverterHybrid {
		inferred = model.CouplingDC
	}

	if state.BatteryQuantity == 0 || state.BatteryMake == "" {
		return inferred
	}

	models, err := e.batteries.ModelsByMake(ctx, state.BatteryMake)
	if err != nil {
		slog.Debug("Battery catalog lookup failed, inferring coupling from inverter",
			"make", state.BatteryMake, "error", err)
		return inferred
	}

	for _, m := range models {
		if strings.EqualFold(m.Model, state.BatteryModel) && m.CoupleType != "" {
			if strings.EqualFold(m.CoupleType, "DC") {
				return model.CouplingDC
			}
			return model.CouplingAC
		}
	}
	return inferred
}

// inverterMaxOutput resolves the total max continuous output current. A
// lookup miss leaves the value nil: "cannot size", never "zero-rated".
func (e *Extractor) inverterMaxOutput(ctx context.Context, state *model.EquipmentState) *float64 {
	if state.InverterQuantity == 0 || state.InverterMake == "" || state.InverterModel == "" {
		return nil
	}

	models, err := e.inverters.ModelsByMake(ctx, state.InverterMake)
	if err != nil {
		slog.Debug("Inverter catalog lookup failed",
			"make", state.InverterMake, "error", err)
		return nil
	}

	for _, m := range models {
		if strings.EqualFold(m.Model, state.InverterModel) && m.MaxContOutputAmps > 0 {
			amps := m.MaxContOutputAmps
			// Microinverters aggregate per unit; string inverters are
			// already whole-system ratings.
			if state.SystemType == model.SystemMicroinverter {
				amps *= float64(state.InverterQuantity)
			}
			return &amps
		}
	}
	return nil
}

// classifyInverter pattern-matches make/model against the configured token
// lists: hybrid tokens first, then grid-forming, else grid-following. No
// make and no model yields unknown.
func (e *Extractor) classifyInverter(inverterMake, inverterModel string) model.InverterType {
	if inverterMake == "" && inverterModel == "" {
		return model.InverterUnknown
	}

	combined := strings.ToLower(inverterMake + " " + inverterModel)
	for _, token := range e.rules.HybridTokens {
		if strings.Contains(combined, token) {
			return model.InverterHybrid
		}
	}
	for _, token := range e.rules.GridFormingTokens {
		if strings.Contains(combined, token) {
			return model.InverterGridFormingFollowing
		}
	}
	return model.InverterGridFollowing
}

// isMicroinverter matches make/model against the configured microinverter
// manufacturer tokens.
func (e *Extractor) isMicroinverter(inverterMake, inverterModel string) bool {
	if inverterMake == "" && inverterModel == "" {
		return false
	}
	combined := strings.ToLower(inverterMake + " " + inverterModel)
	for _, token := range e.rules.MicroinverterMakes {
		if strings.Contains(combined, token) {
			return true
		}
	}
	return false
}

// extractExistingBOS scans the numbered slots of each BOS section for
// already-persisted equipment.
func extractExistingBOS(record Record, systemNumber int) model.ExistingBOS {
	var out model.ExistingBOS

	scan := func(fieldPrefix func(i int) string, max int) []model.ExistingSlot {
		var slots []model.ExistingSlot
		for i := 1; i <= max; i++ {
			p := fieldPrefix(i)
			if record.get(p+"_equipment_type") == "" {
				continue
			}
			slots = append(slots, model.ExistingSlot{
				EquipmentType: record.get(p + "_equipment_type"),
				Make:          record.get(p + "_make"),
				Model:         record.get(p + "_model"),
				AmpRating:     record.get(p + "_amp_rating"),
				Position:      i,
			})
		}
		return slots
	}

	out.Utility = scan(func(i int) string {
		return fmt.Sprintf("bos_sys%d_type%d", systemNumber, i)
	}, 6)
	out.Battery = scan(func(i int) string {
		return fmt.Sprintf("bos_sys%d_battery1_type%d", systemNumber, i)
	}, 3)
	out.Backup = scan(func(i int) string {
		return fmt.Sprintf("bos_sys%d_backup_type%d", systemNumber, i)
	}, 3)
	out.PostSMS = scan(func(i int) string {
		return fmt.Sprintf("post_sms_bos_sys%d_type%d", systemNumber, i)
	}, 3)

	return out
}

// extractCombinePoint parses the electrical combine layout. The rating sums
// the recorded inverter output of every active system and applies the 125%
// rule. Absent or malformed layout data means no combine point.
func extractCombinePoint(record Record) *model.CombinePoint {
	raw := record.get("ele_combine_positions")
	if raw == "" {
		return nil
	}

	var parsed struct {
		Method        string `json:"method"`
		ActiveSystems []int  `json:"active_systems"`
	}
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		slog.Debug("Unparseable combine layout, ignoring", "error", err)
		return nil
	}

	var total float64
	for _, n := range parsed.ActiveSystems {
		total += record.parseFloat(fmt.Sprintf("sys%d_inv_max_continuous_output", n))
	}

	return &model.CombinePoint{
		Method:        parsed.Method,
		ActiveSystems: parsed.ActiveSystems,
		AmpRating:     sizing.MinimumAmps(total),
	}
}

// normalizeSystemType maps the raw selection value onto the typed enum.
func normalizeSystemType(raw string) string {
	switch strings.ToLower(raw) {
	case "microinverter":
		return string(model.SystemMicroinverter)
	case "inverter":
		return string(model.SystemInverter)
	case "batteryonly", "battery-only":
		return string(model.SystemBatteryOnly)
	default:
		return raw
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
