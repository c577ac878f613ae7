package rules

import (
	"context"
	"fmt"

	"github.com/solarcraft/bosforge/internal/model"
)

// enphaseDetectors covers the all-Enphase stack (IQ microinverters, Encharge
// battery, Enphase SMS) on APS.
func enphaseDetectors() []*model.Detector {
	return []*model.Detector{
		enphaseAPS("enphase_aps_wholeHome", "Enphase Microinverter + Enphase Battery + APS (Whole Home Backup)", 1, model.BackupWholeHome),
		enphaseAPS("enphase_aps_partialHome", "Enphase Microinverter + Enphase Battery + APS (Partial Home Backup)", 2, model.BackupPartialHome),
		enphaseAPS("enphase_aps_noBackup", "Enphase Microinverter + Enphase Battery + APS (No Backup)", 3, model.BackupNone),
	}
}

func enphaseAPS(configID, name string, priority int, backup model.BackupOption) *model.Detector {
	backupMatches := func(s *model.EquipmentState) bool {
		if backup == model.BackupNone {
			return noBackup(s)
		}
		return s.BackupOption == backup
	}

	return &model.Detector{
		Name:      name,
		ConfigID:  configID,
		Priority:  priority,
		Utilities: []string{"APS"},

		QuickCheck: func(s *model.EquipmentState) bool {
			return s.SystemType == model.SystemMicroinverter &&
				s.HasSolarPanels &&
				s.BatteryQuantity > 0 &&
				backupMatches(s)
		},

		Detect: func(_ context.Context, s *model.EquipmentState) (*model.Match, error) {
			if s.SystemType != model.SystemMicroinverter ||
				!s.HasSolarPanels ||
				!isEnphaseMicroinverter(s) ||
				!isEnphaseSMS(s) ||
				!isEnphaseBattery(s) ||
				!backupMatches(s) {
				return nil, nil
			}

			// Microinverters and Encharge batteries are independent AC
			// sources that can discharge simultaneously.
			postSMS := microACCoupled(outputOr(s.InverterMaxOutput, 0), s.BatteryMaxOutput)

			items := []model.Item{
				fixedUniMeter(1, s.SystemPrefix),
				uniMeterLineSideDisconnect(2, s.SystemPrefix),
				sizedItem("Utility Disconnect", 1, model.SectionPostSMS, s.SystemPrefix, postSMS),
			}

			hasBackup := backup != model.BackupNone

			return &model.Match{
				ConfigID:   configID,
				ConfigName: name,
				Priority:   priority,
				Confidence: model.ConfidenceExact,
				Required: model.RequiredEquipment{
					SolarPanels:     true,
					BatteryQuantity: s.BatteryQuantity,
					BatteryTypes:    1,
					InverterTypes:   []string{"Microinverter"},
					BackupPanel:     hasBackup,
					SMS:             true,
					Gateway:         hasBackup,
				},
				Items: items,
				Notes: []string{
					"All-Enphase system detected (microinverters, battery, SMS)",
					"BOS installed after the Enphase combiner panel",
					fmt.Sprintf("AC-coupled system: Post-SMS BOS sized to %dA (microinverter + battery × 1.25)", postSMS.Amps),
				},
			}, nil
		},
	}
}
