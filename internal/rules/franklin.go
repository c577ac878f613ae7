package rules

import (
	"context"
	"fmt"

	"github.com/solarcraft/bosforge/internal/model"
	"github.com/solarcraft/bosforge/internal/sizing"
)

// franklinDetectors covers Franklin aPower + Agate on APS, the most specific
// configurations in the registry.
func franklinDetectors() []*model.Detector {
	return []*model.Detector{
		franklinAPS("FRANKLIN_APS_WHOLE_HOME", "Franklin aPower + APS (Whole Home Backup)", 1,
			"Optimized configuration for Franklin aPower battery with Agate SMS on APS utility with whole home backup capability.",
			model.BackupWholeHome),
		franklinAPS("FRANKLIN_APS_PARTIAL_HOME", "Franklin aPower + APS (Partial Home Backup)", 2,
			"Configuration for Franklin aPower battery with Agate SMS on APS utility with partial home backup (critical loads panel).",
			model.BackupPartialHome),
		franklinAPS("FRANKLIN_APS_NO_BACKUP", "Franklin aPower + APS (Grid-Tied, No Backup)", 3,
			"Grid-tied configuration for Franklin aPower battery with Agate SMS on APS utility. No backup power capability.",
			model.BackupNone),
	}
}

func franklinAPS(configID, name string, priority int, description string, backup model.BackupOption) *model.Detector {
	backupMatches := func(s *model.EquipmentState) bool {
		if backup == model.BackupNone {
			return noBackup(s)
		}
		return s.BackupOption == backup
	}

	return &model.Detector{
		Name:        name,
		ConfigID:    configID,
		Description: description,
		Priority:    priority,
		Utilities:   []string{"APS"},

		QuickCheck: func(s *model.EquipmentState) bool {
			return s.HasSolarPanels && s.BatteryQuantity > 0 && backupMatches(s)
		},

		Detect: func(_ context.Context, s *model.EquipmentState) (*model.Match, error) {
			if !s.HasSolarPanels || !isFranklinAgateSMS(s) || !isFranklinAPowerBattery(s) || !backupMatches(s) {
				return nil, nil
			}

			// Franklin aPower is AC-coupled: the post-SMS disconnect must
			// carry inverter and battery output at once.
			postSMS := sizing.ACCoupled(outputOr(s.InverterMaxOutput, 0), s.BatteryMaxOutput)

			items := []model.Item{
				fixedUniMeter(1, s.SystemPrefix),
				uniMeterLineSideDisconnect(2, s.SystemPrefix),
			}
			if backup == model.BackupNone {
				items = append(items,
					plainItem("Bi-Directional Meter", 1, model.SectionBattery, s.SystemPrefix),
					plainItem("Bi-Directional Meter Line Side Disconnect", 2, model.SectionBattery, s.SystemPrefix),
				)
			} else {
				items = append(items,
					plainItem("Bi-Directional Meter DER Side Disconnect", 1, model.SectionBattery, s.SystemPrefix),
					plainItem("Bi-Directional Meter", 2, model.SectionBattery, s.SystemPrefix),
					plainItem("Bi-Directional Meter Line Side Disconnect", 3, model.SectionBattery, s.SystemPrefix),
				)
			}
			items = append(items,
				sizedItem("Utility Disconnect", 1, model.SectionPostSMS, s.SystemPrefix, postSMS),
			)

			hasBackup := backup != model.BackupNone
			biMeters := 2
			if hasBackup {
				biMeters = 3
			}

			return &model.Match{
				ConfigID:    configID,
				ConfigName:  name,
				Description: description,
				Priority:    priority,
				Confidence:  model.ConfidenceExact,
				Required: model.RequiredEquipment{
					SolarPanels:     true,
					BatteryQuantity: s.BatteryQuantity,
					BatteryTypes:    1,
					InverterTypes:   []string{"Grid Following", "Grid Forming/Following"},
					BackupPanel:     hasBackup,
					SMS:             true,
					Gateway:         hasBackup,
				},
				Items: items,
				Notes: []string{
					"Franklin aPower battery system with Agate SMS detected",
					fmt.Sprintf("Bi-directional metering: %d meters for battery charge/discharge monitoring", biMeters),
					"APS utility requires uni-directional meter for solar production",
					fmt.Sprintf("AC-coupled system: Post-SMS BOS sized to %dA (inverter + battery × 1.25)", postSMS.Amps),
				},
			}, nil
		},
	}
}
