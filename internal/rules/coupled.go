package rules

import (
	"context"
	"fmt"

	"github.com/solarcraft/bosforge/internal/model"
	"github.com/solarcraft/bosforge/internal/sizing"
)

// coupledVariant enumerates one equipment-agnostic solar+battery combination
// on APS. The variants differ only in system type, SMS presence and backup,
// so they are generated from a table instead of written out longhand.
type coupledVariant struct {
	configID   string
	name       string
	priority   int
	systemType model.SystemType
	wantSMS    bool
	wantBackup bool
}

// acCoupledDetectors are the brand-agnostic AC-coupled battery rules for
// both string-inverter and microinverter systems.
func acCoupledDetectors() []*model.Detector {
	variants := []coupledVariant{
		{"APS_AC_COUPLED_SMS_BACKUP", "Generic AC-Coupled + APS + SMS + Backup", 4, model.SystemInverter, true, true},
		{"APS_AC_COUPLED_SMS_NO_BACKUP", "Generic AC-Coupled + APS + SMS + No Backup", 5, model.SystemInverter, true, false},
		{"APS_AC_COUPLED_NO_SMS_BACKUP", "Generic AC-Coupled + APS + No SMS + Backup", 4, model.SystemInverter, false, true},
		{"APS_AC_COUPLED_NO_SMS_NO_BACKUP", "Generic AC-Coupled + APS + No SMS + No Backup", 5, model.SystemInverter, false, false},
		{"APS_AC_COUPLED_MICRO_SMS_BACKUP", "Generic AC-Coupled Microinverter + APS + SMS + Backup", 4, model.SystemMicroinverter, true, true},
		{"APS_AC_COUPLED_MICRO_SMS_NO_BACKUP", "Generic AC-Coupled Microinverter + APS + SMS + No Backup", 5, model.SystemMicroinverter, true, false},
		{"APS_AC_COUPLED_MICRO_NO_SMS_BACKUP", "Generic AC-Coupled Microinverter + APS + No SMS + Backup", 4, model.SystemMicroinverter, false, true},
		{"APS_AC_COUPLED_MICRO_NO_SMS_NO_BACKUP", "Generic AC-Coupled Microinverter + APS + No SMS + No Backup", 5, model.SystemMicroinverter, false, false},
	}

	detectors := make([]*model.Detector, 0, len(variants))
	for _, v := range variants {
		detectors = append(detectors, acCoupled(v))
	}
	return detectors
}

func acCoupled(v coupledVariant) *model.Detector {
	return &model.Detector{
		Name:      v.name,
		ConfigID:  v.configID,
		Priority:  v.priority,
		Utilities: []string{"APS"},

		QuickCheck: func(s *model.EquipmentState) bool {
			return s.SystemType == v.systemType &&
				s.HasSolarPanels &&
				s.BatteryQuantity > 0 &&
				s.HasSMS == v.wantSMS &&
				s.HasBackupPanel == v.wantBackup
		},

		Detect: func(_ context.Context, s *model.EquipmentState) (*model.Match, error) {
			if s.SystemType != v.systemType ||
				!s.HasSolarPanels ||
				s.BatteryQuantity == 0 ||
				s.HasSMS != v.wantSMS ||
				s.HasBackupPanel != v.wantBackup {
				return nil, nil
			}
			if v.wantBackup && !anyBackup(s) {
				return nil, nil
			}
			// AC-coupled: either explicitly marked, or the battery carries
			// its own inverter (non-zero continuous output).
			if s.CouplingType != model.CouplingAC && s.BatteryMaxOutput == 0 {
				return nil, nil
			}

			postSMS := sizing.ACCoupled(outputOr(s.InverterMaxOutput, 0), s.BatteryMaxOutput)

			items := []model.Item{
				fixedUniMeter(1, s.SystemPrefix),
				uniMeterLineSideDisconnect(2, s.SystemPrefix),
			}
			if v.wantBackup {
				items = append(items,
					plainItem("Bi-Directional Meter DER Side Disconnect", 1, model.SectionBattery, s.SystemPrefix),
					plainItem("Bi-Directional Meter", 2, model.SectionBattery, s.SystemPrefix),
					plainItem("Bi-Directional Meter Line Side Disconnect", 3, model.SectionBattery, s.SystemPrefix),
				)
			} else {
				items = append(items,
					plainItem("Bi-Directional Meter", 1, model.SectionBattery, s.SystemPrefix),
					plainItem("Bi-Directional Meter Line Side Disconnect", 2, model.SectionBattery, s.SystemPrefix),
				)
			}
			if v.wantSMS {
				items = append(items, sizedItem("Utility Disconnect", 1, model.SectionPostSMS, s.SystemPrefix, postSMS))
			} else {
				items = append(items, sizedItem("Utility Disconnect", 3, model.SectionUtility, s.SystemPrefix, postSMS))
			}

			return &model.Match{
				ConfigID:   v.configID,
				ConfigName: v.name,
				Priority:   v.priority,
				Confidence: model.ConfidenceHigh,
				Required: model.RequiredEquipment{
					SolarPanels:     true,
					BatteryQuantity: s.BatteryQuantity,
					BatteryTypes:    1,
					InverterTypes:   []string{"Grid Following", "Grid Forming/Following"},
					BackupPanel:     v.wantBackup,
					SMS:             v.wantSMS,
					Gateway:         v.wantBackup,
				},
				Items: items,
				Notes: []string{
					"Equipment-agnostic AC-coupled battery configuration",
					fmt.Sprintf("AC-coupled system: BOS sized to %dA (inverter + battery × 1.25)", postSMS.Amps),
				},
			}, nil
		},
	}
}

// dcCoupledDetectors are the brand-agnostic hybrid-inverter rules: the
// battery rides the DC bus, so all sizing follows the inverter output.
func dcCoupledDetectors() []*model.Detector {
	variants := []coupledVariant{
		{"APS_DC_COUPLED_SMS_BACKUP", "APS DC Coupled + SMS + Backup", 4, model.SystemInverter, true, true},
		{"APS_DC_COUPLED_SMS_NO_BACKUP", "APS DC Coupled + SMS + No Backup", 5, model.SystemInverter, true, false},
		{"APS_DC_COUPLED_NO_SMS_BACKUP", "APS DC Coupled + No SMS + Backup", 4, model.SystemInverter, false, true},
		{"APS_DC_COUPLED_NO_SMS_NO_BACKUP", "APS DC Coupled + No SMS + No Backup", 5, model.SystemInverter, false, false},
	}

	detectors := make([]*model.Detector, 0, len(variants))
	for _, v := range variants {
		detectors = append(detectors, dcCoupled(v))
	}
	return detectors
}

func dcCoupled(v coupledVariant) *model.Detector {
	return &model.Detector{
		Name:      v.name,
		ConfigID:  v.configID,
		Priority:  v.priority,
		Utilities: []string{"APS"},

		QuickCheck: func(s *model.EquipmentState) bool {
			return s.SystemType == model.SystemInverter &&
				s.CouplingType == model.CouplingDC &&
				s.HasSolarPanels &&
				s.BatteryQuantity > 0 &&
				s.HasSMS == v.wantSMS &&
				s.HasBackupPanel == v.wantBackup
		},

		Detect: func(_ context.Context, s *model.EquipmentState) (*model.Match, error) {
			if s.SystemType != model.SystemInverter ||
				s.CouplingType != model.CouplingDC ||
				!s.HasSolarPanels ||
				s.BatteryQuantity == 0 ||
				s.HasSMS != v.wantSMS ||
				s.HasBackupPanel != v.wantBackup {
				return nil, nil
			}
			if v.wantBackup && !anyBackup(s) {
				return nil, nil
			}

			inverterReq := sizing.DCCoupled(outputOr(s.InverterMaxOutput, 100))

			var items []model.Item
			if v.wantBackup {
				backupReq := backupPanelRequirement(s)
				items = append(items,
					sizedItem("Uni-Directional Meter", 1, model.SectionBackup, s.SystemPrefix, backupReq),
					sizedItem("Uni-Directional Meter Line Side Disconnect", 2, model.SectionBackup, s.SystemPrefix, backupReq),
				)
			}
			items = append(items,
				sizedItem("Bi-Directional Meter DER Side Disconnect", 1, model.SectionUtility, s.SystemPrefix, inverterReq),
				sizedItem("Bi-Directional Meter", 2, model.SectionUtility, s.SystemPrefix, inverterReq),
			)
			if v.wantSMS {
				items = append(items, sizedItem("Utility Disconnect", 3, model.SectionPostSMS, s.SystemPrefix, inverterReq))
			} else {
				items = append(items, sizedItem("Utility Disconnect", 3, model.SectionUtility, s.SystemPrefix, inverterReq))
			}

			return &model.Match{
				ConfigID:   v.configID,
				ConfigName: v.name,
				Priority:   v.priority,
				Confidence: model.ConfidenceHigh,
				Required: model.RequiredEquipment{
					SolarPanels:     true,
					BatteryQuantity: s.BatteryQuantity,
					BatteryTypes:    1,
					InverterTypes:   []string{"Hybrid"},
					BackupPanel:     v.wantBackup,
					SMS:             v.wantSMS,
					Gateway:         v.wantBackup,
				},
				Items: items,
				Notes: []string{
					"Equipment-agnostic DC-coupled hybrid configuration",
					"Battery rides the DC bus; the inverter regulates all AC power",
					fmt.Sprintf("DC-coupled system: BOS sized to %dA (inverter only × 1.25)", inverterReq.Amps),
				},
			}, nil
		},
	}
}
