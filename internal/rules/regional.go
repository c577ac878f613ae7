package rules

import (
	"context"
	"fmt"

	"github.com/solarcraft/bosforge/internal/model"
	"github.com/solarcraft/bosforge/internal/sizing"
)

// Regional PV-only rules for the non-APS utilities. Each utility calls the
// same two pre-combine devices by its own name, so the detectors share one
// body parameterized on the naming.
type regionalUtility struct {
	key            string
	label          string
	aliases        []string
	meterType      string
	disconnectType string
}

var regionalUtilities = []regionalUtility{
	{
		key:            "srp",
		label:          "SRP",
		aliases:        []string{"srp", "salt river"},
		meterType:      "Dedicated DER Meter",
		disconnectType: "DER Meter Disconnect Switch",
	},
	{
		key:            "tep",
		label:          "TEP",
		aliases:        []string{"tep", "tucson electric"},
		meterType:      "Utility DG Meter",
		disconnectType: "DG Disconnect Switch",
	},
	{
		key:            "trico",
		label:          "TRICO",
		aliases:        []string{"trico"},
		meterType:      "Co-Generation Meter",
		disconnectType: "Co-Generation System Utility Disconnect",
	},
}

func (u regionalUtility) matches(s *model.EquipmentState) bool {
	for _, alias := range u.aliases {
		if contains(s.UtilityName, alias) {
			return true
		}
	}
	return false
}

func regionalDetectors(deps Deps) []*model.Detector {
	var detectors []*model.Detector
	for _, u := range regionalUtilities {
		detectors = append(detectors,
			regionalPVOnly(deps, u, model.SystemInverter, "String Inverter", "string"),
			regionalPVOnly(deps, u, model.SystemMicroinverter, "Microinverter", "micro"),
		)
	}
	detectors = append(detectors,
		xcelPVOnly(deps, model.SystemInverter, "String Inverter", "string"),
		xcelPVOnly(deps, model.SystemMicroinverter, "Microinverter", "micro"),
	)
	return detectors
}

// regionalSizing applies the 125% rule and rounds up the standard breaker
// ladder when a sizer is available.
func regionalSizing(deps Deps, inverterOut float64) sizing.Requirement {
	minAmps := sizing.MinimumAmps(inverterOut)
	standard := minAmps
	if deps.Sizer != nil {
		if r := deps.Sizer.NextStandardRating(minAmps); r != 0 {
			standard = r
		}
	}
	return sizing.Requirement{
		Label:       "Inverter Output (PV-Only)",
		Calculation: fmt.Sprintf("%gA × 1.25 = %dA (Standard: %dA)", inverterOut, minAmps, standard),
		Amps:        standard,
	}
}

func regionalPVOnly(deps Deps, u regionalUtility, systemType model.SystemType, typeLabel, typeKey string) *model.Detector {
	configID := fmt.Sprintf("%s-pv-only-%s", u.key, typeKey)
	name := fmt.Sprintf("%s PV-Only %s", u.label, typeLabel)

	return &model.Detector{
		Name:     name,
		ConfigID: configID,
		Priority: 3,
		// Utility names in the record are free text; match on substrings
		// instead of the switchboard's exact-name filter.
		Utilities: []string{"*"},

		QuickCheck: func(s *model.EquipmentState) bool {
			return s.SystemNumber == 1 &&
				u.matches(s) &&
				s.SystemType == systemType &&
				s.HasSolarPanels &&
				s.BatteryQuantity == 0
		},

		Detect: func(_ context.Context, s *model.EquipmentState) (*model.Match, error) {
			if s.SystemNumber != 1 ||
				!u.matches(s) ||
				s.SystemType != systemType ||
				!s.HasSolarPanels ||
				s.BatteryQuantity > 0 {
				return nil, nil
			}
			if systemType == model.SystemInverter && !s.HasInverter() {
				return nil, nil
			}
			inverterOut := outputOr(s.InverterMaxOutput, 0)
			if inverterOut == 0 {
				return nil, nil
			}

			req := regionalSizing(deps, inverterOut)

			var items []model.Item
			var taken []int
			if item, ok := slotItem(s, u.meterType, model.SectionUtility, nil, req); ok {
				items = append(items, item)
				taken = append(taken, item.Position)
			}
			if item, ok := slotItem(s, u.disconnectType, model.SectionUtility, taken, req); ok {
				items = append(items, item)
			}
			if len(items) == 0 {
				return nil, nil
			}

			return &model.Match{
				ConfigID:    configID,
				ConfigName:  name,
				Description: fmt.Sprintf("Solar panels with %s, no battery (%s)", typeLabel, u.label),
				Priority:    3,
				Confidence:  model.ConfidenceHigh,
				Required: model.RequiredEquipment{
					SolarPanels: true,
				},
				Items: items,
				Notes: []string{
					fmt.Sprintf("%s utility naming for the pre-combine meter and disconnect", u.label),
					fmt.Sprintf("PV-only system: BOS sized to %dA (inverter × 1.25, standard rating)", req.Amps),
				},
			}, nil
		},
	}
}

// xcelPVOnly selects a fused or non-fused disconnect from the point of
// interconnection: supply side taps skip the fuse, load side taps need it.
func xcelPVOnly(deps Deps, systemType model.SystemType, typeLabel, typeKey string) *model.Detector {
	name := fmt.Sprintf("Xcel PV-Only %s", typeLabel)
	isXcel := func(s *model.EquipmentState) bool {
		return contains(s.UtilityName, "xcel") ||
			contains(s.UtilityName, "public service company of colorado")
	}

	return &model.Detector{
		Name:      name,
		ConfigID:  fmt.Sprintf("xcel-pv-only-%s", typeKey),
		Priority:  3,
		Utilities: []string{"*"},

		QuickCheck: func(s *model.EquipmentState) bool {
			return s.SystemNumber == 1 &&
				isXcel(s) &&
				s.SystemType == systemType &&
				s.HasSolarPanels &&
				s.BatteryQuantity == 0
		},

		Detect: func(_ context.Context, s *model.EquipmentState) (*model.Match, error) {
			if s.SystemNumber != 1 ||
				!isXcel(s) ||
				s.SystemType != systemType ||
				!s.HasSolarPanels ||
				s.BatteryQuantity > 0 {
				return nil, nil
			}
			if systemType == model.SystemInverter && !s.HasInverter() {
				return nil, nil
			}
			inverterOut := outputOr(s.InverterMaxOutput, 0)
			if inverterOut == 0 {
				return nil, nil
			}

			req := regionalSizing(deps, inverterOut)

			poi := s.POIType
			if poi == "" {
				poi = "load_side"
			}
			disconnectType := "Fused AC Disconnect"
			poiLabel := "Load Side"
			if poi == "supply_side" {
				disconnectType = "Non-Fused AC Disconnect"
				poiLabel = "Supply Side"
			}

			var items []model.Item
			var taken []int
			if item, ok := slotItem(s, "Production Meter", model.SectionUtility, nil, req); ok {
				items = append(items, item)
				taken = append(taken, item.Position)
			}
			if item, ok := slotItem(s, disconnectType, model.SectionUtility, taken, req); ok {
				items = append(items, item)
			}
			if len(items) == 0 {
				return nil, nil
			}

			return &model.Match{
				ConfigID:    fmt.Sprintf("xcel-pv-only-%s-%s", typeKey, poi),
				ConfigName:  fmt.Sprintf("Xcel PV-Only %s (%s)", typeLabel, poiLabel),
				Description: fmt.Sprintf("Solar panels with %s, no battery (Xcel %s)", typeLabel, poiLabel),
				Priority:    3,
				Confidence:  model.ConfidenceHigh,
				Required: model.RequiredEquipment{
					SolarPanels: true,
				},
				Items: items,
				Notes: []string{
					fmt.Sprintf("Point of interconnection: %s, selecting a %s", poiLabel, disconnectType),
					fmt.Sprintf("PV-only system: BOS sized to %dA (inverter × 1.25, standard rating)", req.Amps),
				},
			}, nil
		},
	}
}
