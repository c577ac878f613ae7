package rules

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/solarcraft/bosforge/internal/model"
	"github.com/solarcraft/bosforge/internal/sizing"
)

// storzDetector matches the two-system Storz/Sol-Ark layout: a microinverter
// solar array on system 1 feeding a Sol-Ark hybrid with Storz batteries on
// system 2. Anchored on system 2; the peer lookup verifies system 1.
func storzDetector(deps Deps) *model.Detector {
	const (
		configID = "STORZ_WHOLE_HOME_APS"
		name     = "Storz Whole Home + APS (Multi-System)"
	)

	return &model.Detector{
		Name:            name,
		ConfigID:        configID,
		Description:     "Multi-system configuration: Microinverter solar (Sys1) + Sol-Ark battery backup (Sys2)",
		Priority:        2,
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
			if s.HasSolarPanels || s.HasSMS ||
				!isSolArkInverter(s) || !isStorzBattery(s) ||
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
				slog.Debug("Companion system does not fit Storz multi-system layout")
				return nil, nil
			}

			// Sol-Ark is a hybrid: the battery rides the DC bus, so the
			// post-combine chain carries inverter output only. A declared
			// combine point in the electrical layout overrides the estimate.
			postCombine := sizing.DCCoupled(outputOr(s.InverterMaxOutput, 100))
			combineMethod := "post-combine panel"
			if cp := s.CombinePoint; cp != nil {
				if cp.AmpRating > 0 {
					postCombine = sizing.Requirement{
						Label:       "Combined Inverter Output",
						Calculation: fmt.Sprintf("combined output × 1.25 = %dA", cp.AmpRating),
						Amps:        cp.AmpRating,
					}
				}
				if cp.Method != "" {
					combineMethod = cp.Method
				}
			}
			backupReq := backupPanelRequirement(s)

			items := []model.Item{
				// System 1 pre-combine, after the string combiner.
				fixedUniMeter(1, "sys1_"),
				uniMeterLineSideDisconnect(2, "sys1_"),

				// System 2 backup chain, sized to the sub-panel bus.
				sizedItem("Uni-Directional Meter", 1, model.SectionBackup, "sys2_", backupReq),
				sizedItem("Uni-Directional Meter Line Side Disconnect", 2, model.SectionBackup, "sys2_", backupReq),

				// Shared post-combine chain; no system prefix.
				sizedItem("Bi-Directional Meter DER Side Disconnect", 1, model.SectionCombine, "", postCombine),
				sizedItem("Bi-Directional Meter", 2, model.SectionCombine, "", postCombine),
				sizedItem("Utility Disconnect", 3, model.SectionCombine, "", postCombine),
			}

			return &model.Match{
				ConfigID:    configID,
				ConfigName:  name,
				Description: "Multi-system configuration: Microinverter solar (Sys1) + Sol-Ark battery backup (Sys2)",
				Priority:    2,
				Confidence:  model.ConfidenceHigh,
				Required: model.RequiredEquipment{
					SolarPanels:     true,
					BatteryQuantity: 1,
					BatteryTypes:    1,
					InverterTypes:   []string{"Sol-Ark"},
					BackupPanel:     true,
				},
				Items: items,
				MultiSystem: &model.MultiSystemConfig{
					TotalSystems: 2,
					CombinesAt: map[int]string{
						1: "Sol-Ark",
						2: "Main Panel A",
					},
					CombineMethod: combineMethod,
				},
				Notes: []string{
					"System 1: Microinverter + Solar (no batteries)",
					"System 2: Sol-Ark inverter + Storz batteries + Whole Home backup",
					fmt.Sprintf("DC-coupled system: Post-Combine BOS sized to %dA (inverter only × 1.25)", postCombine.Amps),
					"Systems combine at: Sys1 into Sol-Ark, Sys2 at Main Panel A",
				},
			}, nil
		},
	}
}
