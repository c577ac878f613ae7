package rules

import (
	"context"
	"fmt"

	"github.com/solarcraft/bosforge/internal/model"
	"github.com/solarcraft/bosforge/internal/sizing"
)

// pvOnlyDetectors covers solar-only APS systems with no storage. They run in
// the vendor band so battery-less systems are claimed before the coupled
// generics consider them.
func pvOnlyDetectors() []*model.Detector {
	return []*model.Detector{
		apsPVOnly("APS_PV_ONLY_STRING_INVERTER", "APS PV-Only String Inverter (No Battery, No Backup)", model.SystemInverter),
		apsPVOnly("APS_PV_ONLY_MICROINVERTER", "APS PV-Only Microinverter (No Battery, No Backup)", model.SystemMicroinverter),
	}
}

func apsPVOnly(configID, name string, systemType model.SystemType) *model.Detector {
	return &model.Detector{
		Name:      name,
		ConfigID:  configID,
		Priority:  3,
		Utilities: []string{"APS"},

		QuickCheck: func(s *model.EquipmentState) bool {
			return s.SystemType == systemType &&
				s.HasSolarPanels &&
				s.BatteryQuantity == 0 &&
				!s.HasBackupPanel
		},

		Detect: func(_ context.Context, s *model.EquipmentState) (*model.Match, error) {
			if s.SystemType != systemType ||
				!s.HasSolarPanels ||
				s.BatteryQuantity != 0 ||
				s.HasSMS ||
				s.HasBackupPanel ||
				!noBackup(s) {
				return nil, nil
			}

			inverterOut := outputOr(s.InverterMaxOutput, 0)
			amps := sizing.MinimumAmps(inverterOut)
			req := sizing.Requirement{
				Label:       "Inverter Output (PV-Only)",
				Calculation: fmt.Sprintf("%gA × 1.25 = %dA (PV-Only)", inverterOut, amps),
				Amps:        amps,
			}

			items := []model.Item{
				sizedItem("Uni-Directional Meter", 1, model.SectionUtility, s.SystemPrefix, req),
				sizedItem("Utility Disconnect", 2, model.SectionUtility, s.SystemPrefix, req),
			}

			return &model.Match{
				ConfigID:   configID,
				ConfigName: name,
				Priority:   3,
				Confidence: model.ConfidenceHigh,
				Required: model.RequiredEquipment{
					SolarPanels:   true,
					InverterTypes: []string{"Grid Following"},
				},
				Items: items,
				Notes: []string{
					"Grid-tied solar-only system, no battery storage",
					"System shuts down when the grid goes down (NEC 690.12 rapid shutdown)",
					fmt.Sprintf("PV-only system: BOS sized to %dA (inverter × 1.25)", req.Amps),
				},
			}, nil
		},
	}
}
