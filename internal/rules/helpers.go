// Package rules ships the built-in configuration detectors, from
// vendor-specific combinations down to the universal fallbacks.
package rules

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/solarcraft/bosforge/internal/model"
	"github.com/solarcraft/bosforge/internal/sizing"
)

// Deps carries the external lookups the rule set needs. PeerSystem lets a
// multi-system rule anchored on one subsystem inspect another; a nil or
// failing lookup simply means the rule does not match. Sizer rounds ratings
// up the utility's standard breaker ladder.
type Deps struct {
	PeerSystem func(ctx context.Context, projectID string, systemNumber int) (*model.EquipmentState, error)
	Sizer      *sizing.Sizer
}

const defaultBackupPanelAmps = 200

// Vendor predicates. All matching is substring, case-insensitive, because
// the record fields are free text.

func contains(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), needle)
}

func isFranklinAPowerBattery(s *model.EquipmentState) bool {
	return contains(s.BatteryMake, "franklin") &&
		contains(s.BatteryModel, "apower") &&
		s.BatteryQuantity > 0
}

func isFranklinAgateSMS(s *model.EquipmentState) bool {
	return contains(s.SMSMake, "franklin") && contains(s.SMSModel, "agate")
}

func isEnphaseMicroinverter(s *model.EquipmentState) bool {
	return contains(s.MicroInverterMake, "enphase")
}

func isEnphaseSMS(s *model.EquipmentState) bool {
	return s.HasSMS && contains(s.SMSMake, "enphase")
}

func isEnphaseBattery(s *model.EquipmentState) bool {
	return contains(s.BatteryMake, "enphase") && s.BatteryQuantity > 0
}

func isStorzBattery(s *model.EquipmentState) bool {
	return contains(s.BatteryMake, "storz") && s.BatteryQuantity > 0
}

func isSolArkInverter(s *model.EquipmentState) bool {
	return contains(s.InverterMake, "sol-ark") || contains(s.InverterMake, "solark")
}

func isTeslaPowerwall3(s *model.EquipmentState) bool {
	return contains(s.InverterMake, "tesla") || contains(s.InverterMake, "powerwall")
}

// hasTeslaGateway3 checks for Gateway 3, which the schema stores in the SMS
// fields rather than the gateway fields.
func hasTeslaGateway3(s *model.EquipmentState) bool {
	if !s.HasSMS {
		return false
	}
	return contains(s.SMSMake, "tesla") &&
		(contains(s.SMSModel, "gateway 3") || contains(s.SMSModel, "gateway3"))
}

func noBackup(s *model.EquipmentState) bool {
	return s.BackupOption == "" || s.BackupOption == model.BackupNone
}

func anyBackup(s *model.EquipmentState) bool {
	return s.BackupOption == model.BackupWholeHome || s.BackupOption == model.BackupPartialHome
}

// outputOr unwraps an optional max continuous output with a fallback for
// rules that must size even without catalog data.
func outputOr(amps *float64, fallback float64) float64 {
	if amps == nil {
		return fallback
	}
	return *amps
}

// microACCoupled sizes like sizing.ACCoupled but names the microinverter in
// the calculation shown to the user.
func microACCoupled(microAmps, batteryAmps float64) sizing.Requirement {
	amps := sizing.MinimumAmps(microAmps + batteryAmps)
	return sizing.Requirement{
		Label:       "Total System Output (AC-Coupled)",
		Calculation: fmt.Sprintf("Microinverter (%gA) + Battery (%gA) × 1.25 = %dA (AC-Coupled)", microAmps, batteryAmps, amps),
		Amps:        amps,
	}
}

// backupPanelRequirement sizes backup-section BOS to the sub-panel bus.
func backupPanelRequirement(s *model.EquipmentState) sizing.Requirement {
	amps := s.BackupPanelBusAmps
	if amps == 0 {
		amps = defaultBackupPanelAmps
	}
	return sizing.Requirement{
		Label:       "Backup Panel Rating",
		Calculation: fmt.Sprintf("%dA", amps),
		Amps:        amps,
	}
}

// sizedItem builds an amp-rated BOS line carrying its sizing provenance.
func sizedItem(equipmentType string, position int, section model.Section, prefix string, req sizing.Requirement) model.Item {
	return model.Item{
		EquipmentType:     equipmentType,
		AmpRating:         strconv.Itoa(req.Amps),
		IsNew:             true,
		Position:          position,
		Section:           section,
		SystemPrefix:      prefix,
		MinAmpRating:      req.Amps,
		SizingLabel:       req.Label,
		SizingCalculation: req.Calculation,
		SizingValue:       req.Amps,
	}
}

// plainItem builds a BOS line that the population service resolves from the
// catalog without an amp constraint.
func plainItem(equipmentType string, position int, section model.Section, prefix string) model.Item {
	return model.Item{
		EquipmentType: equipmentType,
		IsNew:         true,
		Position:      position,
		Section:       section,
		SystemPrefix:  prefix,
	}
}

// fixedUniMeter is the utility-section uni-directional meter every APS
// vendor configuration pins to the same part.
func fixedUniMeter(position int, prefix string) model.Item {
	return model.Item{
		EquipmentType: "Uni-Directional Meter",
		Make:          "Milbank",
		Model:         "U5929XL",
		AmpRating:     "100",
		IsNew:         true,
		Position:      position,
		Section:       model.SectionUtility,
		SystemPrefix:  prefix,
		AutoSelected:  true,
	}
}

func uniMeterLineSideDisconnect(position int, prefix string) model.Item {
	return model.Item{
		EquipmentType: "Uni-Directional Meter Line Side Disconnect",
		PreferredMake: "Siemens",
		IsNew:         true,
		Position:      position,
		Section:       model.SectionUtility,
		SystemPrefix:  prefix,
	}
}
