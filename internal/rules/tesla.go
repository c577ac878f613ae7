package rules

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/solarcraft/bosforge/internal/model"
	"github.com/solarcraft/bosforge/internal/sizing"
)

// teslaDetectors covers Tesla Powerwall 3 with Gateway 3 on APS. Gateway 3
// is recorded in the SMS fields, not the gateway fields, and the Powerwall 3
// carries its own battery-integrated inverter.
func teslaDetectors(deps Deps) []*model.Detector {
	return []*model.Detector{
		teslaMultiSystem(deps),
		teslaSingleBackup(),
		teslaNoBackup(),
	}
}

func teslaMultiSystem(deps Deps) *model.Detector {
	const (
		configID = "TESLA_PW3_GATEWAY3_APS"
		name     = "Tesla Powerwall 3 + Gateway 3 + APS (Multi-System)"
	)

	return &model.Detector{
		Name:            name,
		ConfigID:        configID,
		Description:     "Multi-system configuration: Microinverter solar (Sys1) + Tesla Powerwall 3 with Gateway 3 (Sys2)",
		Priority:        3,
		Utilities:       []string{"APS"},
		IsMultiSystem:   true,
		AffectedSystems: []int{1, 2},

		QuickCheck: func(s *model.EquipmentState) bool {
			return s.SystemNumber == 2 &&
				s.BatteryQuantity > 0 &&
				s.BackupOption == model.BackupWholeHome
		},

		Detect: func(ctx context.Context, s *model.EquipmentState) (*model.Match, error) {
			if s.SystemNumber != 2 {
				return nil, nil
			}
			if s.HasSolarPanels || !isTeslaPowerwall3(s) || !hasTeslaGateway3(s) ||
				s.BatteryQuantity == 0 ||
				s.BackupOption != model.BackupWholeHome || !s.HasBackupPanel {
				return nil, nil
			}

			if deps.PeerSystem == nil {
				return nil, nil
			}
			sys1, err := deps.PeerSystem(ctx, s.ProjectID, 1)
			if err != nil {
				return nil, fmt.Errorf("loading system 1 state: %w", err)
			}
			if sys1 == nil ||
				sys1.SystemType != model.SystemMicroinverter ||
				!sys1.HasSolarPanels ||
				sys1.BatteryQuantity != 0 ||
				sys1.HasSMS {
				slog.Debug("Companion system does not fit Tesla multi-system layout")
				return nil, nil
			}

			// Powerwall 3 is AC-coupled; post-combine carries inverter and
			// battery output simultaneously.
			postCombine := sizing.ACCoupled(outputOr(s.InverterMaxOutput, 0), s.BatteryMaxOutput)
			backupReq := backupPanelRequirement(s)

			items := []model.Item{
				fixedUniMeter(1, "sys1_"),
				uniMeterLineSideDisconnect(2, "sys1_"),

				sizedItem("Uni-Directional Meter", 1, model.SectionBackup, "sys2_", backupReq),
				sizedItem("Uni-Directional Meter Line Side Disconnect", 2, model.SectionBackup, "sys2_", backupReq),

				sizedItem("Bi-Directional Meter DER Side Disconnect", 1, model.SectionCombine, "", postCombine),
				sizedItem("Bi-Directional Meter", 2, model.SectionCombine, "", postCombine),
				sizedItem("Utility Disconnect", 3, model.SectionCombine, "", postCombine),
			}

			return &model.Match{
				ConfigID:    configID,
				ConfigName:  name,
				Description: "Multi-system configuration: Microinverter solar (Sys1) + Tesla Powerwall 3 with Gateway 3 (Sys2)",
				Priority:    3,
				Confidence:  model.ConfidenceHigh,
				Required: model.RequiredEquipment{
					SolarPanels:     true,
					BatteryQuantity: s.BatteryQuantity,
					BatteryTypes:    1,
					InverterTypes:   []string{"Tesla Powerwall 3"},
					BackupPanel:     true,
					Gateway:         true,
				},
				Items: items,
				MultiSystem: &model.MultiSystemConfig{
					TotalSystems: 2,
					CombinesAt: map[int]string{
						1: "Tesla Powerwall 3",
						2: "Main Panel A",
					},
					CombineMethod: "post-combine panel",
				},
				Notes: []string{
					"System 1: Microinverter + Solar (no batteries)",
					"System 2: Tesla Powerwall 3 (battery-integrated inverter) + Gateway 3",
					"Gateway 3 is recorded in the SMS fields (make=Tesla, model=Gateway 3)",
					fmt.Sprintf("AC-coupled system: Post-Combine BOS sized to %dA (inverter + battery × 1.25)", postCombine.Amps),
				},
			}, nil
		},
	}
}

func teslaSingleBackup() *model.Detector {
	const (
		configID = "TESLA_PW3_GATEWAY3_APS_SINGLE_BACKUP"
		name     = "Tesla Powerwall 3 + Gateway 3 + APS Backup (Single System)"
	)

	return &model.Detector{
		Name:      name,
		ConfigID:  configID,
		Priority:  4,
		Utilities: []string{"APS"},

		QuickCheck: func(s *model.EquipmentState) bool {
			return s.SystemNumber == 1 &&
				isTeslaPowerwall3(s) &&
				hasTeslaGateway3(s) &&
				anyBackup(s)
		},

		Detect: func(_ context.Context, s *model.EquipmentState) (*model.Match, error) {
			if s.SystemNumber != 1 ||
				s.SystemType != model.SystemInverter ||
				!isTeslaPowerwall3(s) || !hasTeslaGateway3(s) ||
				!anyBackup(s) || !s.HasBackupPanel {
				return nil, nil
			}

			postSMS := sizing.ACCoupled(outputOr(s.InverterMaxOutput, 0), s.BatteryMaxOutput)
			backupReq := backupPanelRequirement(s)

			items := []model.Item{
				sizedItem("Uni-Directional Meter", 1, model.SectionBackup, s.SystemPrefix, backupReq),
				sizedItem("Uni-Directional Meter Line Side Disconnect", 2, model.SectionBackup, s.SystemPrefix, backupReq),

				// Between the Powerwall 3 and Gateway 3.
				sizedItem("Bi-Directional Meter DER Side Disconnect", 1, model.SectionUtility, s.SystemPrefix, postSMS),
				sizedItem("Bi-Directional Meter", 2, model.SectionUtility, s.SystemPrefix, postSMS),

				sizedItem("Utility Disconnect", 1, model.SectionPostSMS, s.SystemPrefix, postSMS),
			}

			return &model.Match{
				ConfigID:   configID,
				ConfigName: fmt.Sprintf("Tesla Powerwall 3 + Gateway 3 + APS %s", s.BackupOption),
				Priority:   4,
				Confidence: model.ConfidenceHigh,
				Required: model.RequiredEquipment{
					SolarPanels:     s.HasSolarPanels,
					BatteryQuantity: s.BatteryQuantity,
					BatteryTypes:    1,
					InverterTypes:   []string{"Tesla Powerwall 3"},
					BackupPanel:     true,
					Gateway:         true,
				},
				Items: items,
				Notes: []string{
					"Single-system Tesla Powerwall 3 with Gateway 3 acting as SMS",
					"Supports 0-3 Tesla expansion packs",
					fmt.Sprintf("AC-coupled system: BOS sized to %dA (inverter + battery × 1.25)", postSMS.Amps),
				},
			}, nil
		},
	}
}

func teslaNoBackup() *model.Detector {
	const (
		configID = "TESLA_PW3_GATEWAY3_APS_NO_BACKUP"
		name     = "Tesla Powerwall 3 + Gateway 3 + APS No Backup (Single System)"
	)

	return &model.Detector{
		Name:      name,
		ConfigID:  configID,
		Priority:  5,
		Utilities: []string{"APS"},

		QuickCheck: func(s *model.EquipmentState) bool {
			return s.SystemNumber == 1 &&
				isTeslaPowerwall3(s) &&
				hasTeslaGateway3(s) &&
				(s.BackupOption == model.BackupNone || !s.HasBackupPanel)
		},

		Detect: func(_ context.Context, s *model.EquipmentState) (*model.Match, error) {
			if s.SystemNumber != 1 ||
				s.SystemType != model.SystemInverter ||
				!isTeslaPowerwall3(s) || !hasTeslaGateway3(s) {
				return nil, nil
			}
			if s.BackupOption != model.BackupNone && s.HasBackupPanel {
				return nil, nil
			}

			postSMS := sizing.ACCoupled(outputOr(s.InverterMaxOutput, 0), s.BatteryMaxOutput)

			items := []model.Item{
				sizedItem("Bi-Directional Meter DER Side Disconnect", 1, model.SectionPostSMS, s.SystemPrefix, postSMS),
				sizedItem("Bi-Directional Meter", 2, model.SectionPostSMS, s.SystemPrefix, postSMS),
				sizedItem("Utility Disconnect", 3, model.SectionPostSMS, s.SystemPrefix, postSMS),
			}

			return &model.Match{
				ConfigID:   configID,
				ConfigName: name,
				Priority:   5,
				Confidence: model.ConfidenceHigh,
				Required: model.RequiredEquipment{
					SolarPanels:     s.HasSolarPanels,
					BatteryQuantity: s.BatteryQuantity,
					BatteryTypes:    1,
					InverterTypes:   []string{"Tesla Powerwall 3"},
					Gateway:         true,
				},
				Items: items,
				Notes: []string{
					"Single-system Tesla Powerwall 3 with Gateway 3 acting as SMS",
					"No backup load sub-panel; post-SMS BOS only",
					fmt.Sprintf("AC-coupled system: Post-SMS BOS sized to %dA (inverter + battery × 1.25)", postSMS.Amps),
				},
			}, nil
		},
	}
}
