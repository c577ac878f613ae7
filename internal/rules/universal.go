package rules

import (
	"context"
	"fmt"

	"github.com/solarcraft/bosforge/internal/model"
	"github.com/solarcraft/bosforge/internal/sizing"
)

// Universal fallbacks run for any utility after every specific rule has
// passed. They emit generic equipment names and only fill slots that are
// still free, so they never clobber equipment an installer placed by hand.

// universalSizing applies the 125% rule to the inverter output alone. The
// fallbacks decline to match when no output figure is available rather than
// guess at a rating.
func universalSizing(s *model.EquipmentState) (sizing.Requirement, bool) {
	out := outputOr(s.InverterMaxOutput, 0)
	if out == 0 {
		return sizing.Requirement{}, false
	}
	amps := sizing.MinimumAmps(out)
	return sizing.Requirement{
		Label:       "Inverter Output",
		Calculation: fmt.Sprintf("%gA × 1.25 = %dA", out, amps),
		Amps:        amps,
	}, true
}

// slotItem places a sized item in the section's lowest free slot. Returns
// false when the section is full.
func slotItem(s *model.EquipmentState, equipmentType string, section model.Section, extraTaken []int, req sizing.Requirement) (model.Item, bool) {
	occupied := append(s.ExistingBOS.Positions(section), extraTaken...)
	pos := model.NextFreeSlot(section, occupied)
	if pos == 0 {
		return model.Item{}, false
	}
	return sizedItem(equipmentType, pos, section, s.SystemPrefix, req), true
}

func universalDetectors() []*model.Detector {
	return []*model.Detector{
		universalPVOnly(),
		universalACCoupled(),
		universalBatteryOnly(),
	}
}

func universalPVOnly() *model.Detector {
	const configID = "generic-pv-only"

	return &model.Detector{
		Name:      "Generic PV-Only System",
		ConfigID:  configID,
		Priority:  50,
		Utilities: []string{"*"},

		QuickCheck: func(s *model.EquipmentState) bool {
			return s.HasSolarPanels && s.BatteryQuantity == 0
		},

		Detect: func(_ context.Context, s *model.EquipmentState) (*model.Match, error) {
			if !s.HasSolarPanels || s.BatteryQuantity > 0 {
				return nil, nil
			}
			req, ok := universalSizing(s)
			if !ok {
				return nil, nil
			}

			var items []model.Item
			var taken []int
			if item, ok := slotItem(s, "PV Meter", model.SectionUtility, nil, req); ok {
				items = append(items, item)
				taken = append(taken, item.Position)
			}
			if item, ok := slotItem(s, "AC Disconnect", model.SectionUtility, taken, req); ok {
				items = append(items, item)
			}
			if len(items) == 0 {
				return nil, nil
			}

			return &model.Match{
				ConfigID:    configID,
				ConfigName:  "Generic PV-Only System",
				Description: "Solar panels with inverter, no battery storage",
				Priority:    50,
				Confidence:  model.ConfidenceMedium,
				Required: model.RequiredEquipment{
					SolarPanels: true,
				},
				Items: items,
				Notes: []string{
					"Fallback configuration; generic equipment names resolved by catalog lookup",
				},
			}, nil
		},
	}
}

func universalACCoupled() *model.Detector {
	const configID = "generic-ac-coupled"

	return &model.Detector{
		Name:      "Generic AC-Coupled System",
		ConfigID:  configID,
		Priority:  51,
		Utilities: []string{"*"},

		QuickCheck: func(s *model.EquipmentState) bool {
			return s.HasSolarPanels && s.BatteryQuantity > 0
		},

		Detect: func(_ context.Context, s *model.EquipmentState) (*model.Match, error) {
			if !s.HasSolarPanels || s.BatteryQuantity == 0 {
				return nil, nil
			}
			req, ok := universalSizing(s)
			if !ok {
				return nil, nil
			}

			var items []model.Item
			var utilityTaken []int
			if item, ok := slotItem(s, "PV Meter", model.SectionUtility, nil, req); ok {
				items = append(items, item)
				utilityTaken = append(utilityTaken, item.Position)
			}
			if item, ok := slotItem(s, "AC Disconnect", model.SectionUtility, utilityTaken, req); ok {
				items = append(items, item)
			}
			if item, ok := slotItem(s, "AC Disconnect", model.SectionBattery, nil, req); ok {
				items = append(items, item)
			}
			if s.HasBackupPanel {
				if item, ok := slotItem(s, "AC Disconnect", model.SectionBackup, nil, req); ok {
					items = append(items, item)
				}
			}
			if s.HasSMS {
				if item, ok := slotItem(s, "AC Disconnect", model.SectionPostSMS, nil, req); ok {
					items = append(items, item)
				}
			}
			if len(items) == 0 {
				return nil, nil
			}

			return &model.Match{
				ConfigID:    configID,
				ConfigName:  "Generic AC-Coupled System",
				Description: "Solar panels with battery storage (AC-Coupled)",
				Priority:    51,
				Confidence:  model.ConfidenceMedium,
				Required: model.RequiredEquipment{
					SolarPanels:     true,
					BatteryQuantity: s.BatteryQuantity,
					BatteryTypes:    1,
					BackupPanel:     s.HasBackupPanel,
					SMS:             s.HasSMS,
				},
				Items: items,
				Notes: []string{
					"Fallback configuration; generic equipment names resolved by catalog lookup",
				},
			}, nil
		},
	}
}

func universalBatteryOnly() *model.Detector {
	const configID = "generic-battery-only"

	return &model.Detector{
		Name:      "Generic Battery-Only System",
		ConfigID:  configID,
		Priority:  52,
		Utilities: []string{"*"},

		QuickCheck: func(s *model.EquipmentState) bool {
			return !s.HasSolarPanels && s.BatteryQuantity > 0
		},

		Detect: func(_ context.Context, s *model.EquipmentState) (*model.Match, error) {
			if s.HasSolarPanels || s.BatteryQuantity == 0 {
				return nil, nil
			}
			req, ok := universalSizing(s)
			if !ok {
				return nil, nil
			}

			var items []model.Item
			if item, ok := slotItem(s, "AC Disconnect", model.SectionBattery, nil, req); ok {
				items = append(items, item)
			}
			if s.HasBackupPanel {
				if item, ok := slotItem(s, "AC Disconnect", model.SectionBackup, nil, req); ok {
					items = append(items, item)
				}
			}
			if s.HasSMS {
				if item, ok := slotItem(s, "AC Disconnect", model.SectionPostSMS, nil, req); ok {
					items = append(items, item)
				}
			}
			if len(items) == 0 {
				return nil, nil
			}

			return &model.Match{
				ConfigID:    configID,
				ConfigName:  "Generic Battery-Only System",
				Description: "Battery storage without solar panels",
				Priority:    52,
				Confidence:  model.ConfidenceMedium,
				Required: model.RequiredEquipment{
					BatteryQuantity: s.BatteryQuantity,
					BatteryTypes:    1,
					BackupPanel:     s.HasBackupPanel,
					SMS:             s.HasSMS,
				},
				Items: items,
				Notes: []string{
					"Fallback configuration; generic equipment names resolved by catalog lookup",
				},
			}, nil
		},
	}
}
