package rules

import (
	"context"
	"fmt"

	"github.com/solarcraft/bosforge/internal/model"
	"github.com/solarcraft/bosforge/internal/sizing"
)

// apsGenericDetectors is the APS interconnection ladder (A-1, A-2, B-1
// through B-5, C-1, C-2, D). These run after the vendor rules and classify
// systems by charging source, coupling and backup rather than by brand.
func apsGenericDetectors() []*model.Detector {
	return []*model.Detector{
		apsA1(),
		apsA2(),
		apsB1(),
		apsB2(),
		apsB3(),
		apsB4(),
		apsB5(),
		apsC1(),
		apsC2(),
		apsD(),
	}
}

// A-1: grid-only charging, AC-coupled, backup capable.
func apsA1() *model.Detector {
	const configID = "APS_A1"

	return &model.Detector{
		Name:      "APS A-1 (Grid-only + Backup)",
		ConfigID:  configID,
		Priority:  10,
		Utilities: []string{"APS"},

		QuickCheck: func(s *model.EquipmentState) bool {
			return !s.HasSolarPanels && s.BatteryQuantity > 0 && s.HasBackupPanel
		},

		Detect: func(_ context.Context, s *model.EquipmentState) (*model.Match, error) {
			if s.HasSolarPanels ||
				s.BatteryQuantity == 0 ||
				s.ChargingSource != model.ChargeGridOnly ||
				s.CouplingType != model.CouplingAC ||
				!s.HasBackupPanel {
				return nil, nil
			}

			req := sizing.ACCoupled(outputOr(s.InverterMaxOutput, 0), s.BatteryMaxOutput)

			return &model.Match{
				ConfigID:    configID,
				ConfigName:  "AC Coupled A-1 (Grid-only + Backup)",
				Description: "Battery charged from grid only with backup power capability",
				Priority:    10,
				Confidence:  model.ConfidenceHigh,
				Required: model.RequiredEquipment{
					BatteryQuantity: 1,
					BatteryTypes:    1,
					InverterTypes:   []string{"Grid Forming/Following"},
					BackupPanel:     true,
					Gateway:         true,
				},
				Items: []model.Item{
					sizedItem("Automatic Disconnect Switch", 1, model.SectionUtility, s.SystemPrefix, req),
					sizedItem("Bi-Directional Meter", 2, model.SectionUtility, s.SystemPrefix, req),
					sizedItem("Bi-Directional Meter", 3, model.SectionUtility, s.SystemPrefix, req),
				},
				Notes: []string{
					"Battery charges from grid only",
					"Provides backup power during outages",
					"Requires ADS for grid isolation",
					fmt.Sprintf("AC-coupled system: BOS sized to %dA (inverter + battery × 1.25)", req.Amps),
				},
			}, nil
		},
	}
}

// A-2: grid-only charging, AC-coupled, curtailment only (no backup).
func apsA2() *model.Detector {
	const configID = "APS_A2"

	return &model.Detector{
		Name:      "APS A-2 (Grid-only + PCS)",
		ConfigID:  configID,
		Priority:  11,
		Utilities: []string{"APS"},

		QuickCheck: func(s *model.EquipmentState) bool {
			return !s.HasSolarPanels && s.BatteryQuantity > 0 && !s.HasBackupPanel
		},

		Detect: func(_ context.Context, s *model.EquipmentState) (*model.Match, error) {
			if s.HasSolarPanels ||
				s.BatteryQuantity == 0 ||
				s.ChargingSource != model.ChargeGridOnly ||
				s.CouplingType != model.CouplingAC ||
				s.HasBackupPanel {
				return nil, nil
			}

			req := sizing.ACCoupled(outputOr(s.InverterMaxOutput, 0), s.BatteryMaxOutput)

			return &model.Match{
				ConfigID:    configID,
				ConfigName:  "AC Coupled A-2 (Grid-only + PCS)",
				Description: "Battery charged from grid only with Power Control System (curtailment)",
				Priority:    11,
				Confidence:  model.ConfidenceHigh,
				Required: model.RequiredEquipment{
					BatteryQuantity: 1,
					BatteryTypes:    1,
					InverterTypes:   []string{"Grid Following"},
				},
				Items: []model.Item{
					sizedItem("Disconnect Switch", 1, model.SectionUtility, s.SystemPrefix, req),
					sizedItem("Bi-Directional Meter", 2, model.SectionUtility, s.SystemPrefix, req),
				},
				Notes: []string{
					"Battery charges from grid only",
					"Provides customer load curtailment/PCS",
					"System shuts down during grid outage",
					fmt.Sprintf("AC-coupled system: BOS sized to %dA (inverter + battery × 1.25)", req.Amps),
				},
			}, nil
		},
	}
}

// B-1: solar, multiple batteries, backup.
func apsB1() *model.Detector {
	const configID = "APS_B1"

	return &model.Detector{
		Name:      "APS B-1 (Solar + Multiple Batteries + Backup)",
		ConfigID:  configID,
		Priority:  12,
		Utilities: []string{"APS"},

		QuickCheck: func(s *model.EquipmentState) bool {
			return s.HasSolarPanels && s.BatteryQuantity > 1 && s.HasBackupPanel
		},

		Detect: func(_ context.Context, s *model.EquipmentState) (*model.Match, error) {
			if !s.HasSolarPanels ||
				s.BatteryQuantity <= 1 ||
				!s.HasMultipleBatteries ||
				s.ChargingSource != model.ChargeGridOrRenewable ||
				s.CouplingType != model.CouplingAC ||
				!s.HasBackupPanel {
				return nil, nil
			}

			req := sizing.ACCoupled(outputOr(s.InverterMaxOutput, 0), s.BatteryMaxOutput)

			return &model.Match{
				ConfigID:    configID,
				ConfigName:  "AC Coupled B-1 (Solar + Multiple Batteries + Backup)",
				Description: "Battery charged from grid or renewable with multiple batteries and backup",
				Priority:    12,
				Confidence:  model.ConfidenceHigh,
				Required: model.RequiredEquipment{
					SolarPanels:     true,
					BatteryQuantity: s.BatteryQuantity,
					BatteryTypes:    1,
					InverterTypes:   []string{"Grid Following", "Grid Forming/Following"},
					BackupPanel:     true,
					Gateway:         true,
				},
				Items: []model.Item{
					plainItem("String Combiner Panel", 1, model.SectionUtility, s.SystemPrefix),
					sizedItem("Automatic Disconnect Switch", 2, model.SectionUtility, s.SystemPrefix, req),
					sizedItem("Uni-Directional Meter", 3, model.SectionUtility, s.SystemPrefix, req),
					plainItem("Dedicated DER Combiner Panel", 4, model.SectionUtility, s.SystemPrefix),
				},
				Notes: []string{
					"Multiple battery units of the same type (quantity > 1)",
					"Requires dedicated DER combiner panel for multiple batteries",
					fmt.Sprintf("AC-coupled system: BOS sized to %dA (inverter + battery × 1.25)", req.Amps),
				},
			}, nil
		},
	}
}

// B-2: solar, single battery, peak shaving, no backup.
func apsB2() *model.Detector {
	const configID = "APS_B2"

	return &model.Detector{
		Name:      "APS B-2 (Solar + Battery + PCS)",
		ConfigID:  configID,
		Priority:  13,
		Utilities: []string{"APS"},

		QuickCheck: func(s *model.EquipmentState) bool {
			return s.HasSolarPanels && s.BatteryQuantity == 1 && !s.HasBackupPanel
		},

		Detect: func(_ context.Context, s *model.EquipmentState) (*model.Match, error) {
			if !s.HasSolarPanels ||
				s.BatteryQuantity != 1 ||
				s.ChargingSource != model.ChargeGridOrRenewable ||
				s.CouplingType != model.CouplingAC ||
				s.HasBackupPanel ||
				!s.SupportsPeakShaving {
				return nil, nil
			}

			req := sizing.ACCoupled(outputOr(s.InverterMaxOutput, 0), s.BatteryMaxOutput)

			return &model.Match{
				ConfigID:    configID,
				ConfigName:  "AC Coupled B-2 (Solar + Battery + PCS)",
				Description: "Battery charged from grid or renewable with PCS (curtailment)",
				Priority:    13,
				Confidence:  model.ConfidenceHigh,
				Required: model.RequiredEquipment{
					SolarPanels:     true,
					BatteryQuantity: 1,
					BatteryTypes:    1,
					InverterTypes:   []string{"Grid Following"},
				},
				Items: []model.Item{
					plainItem("String Combiner Panel", 1, model.SectionUtility, s.SystemPrefix),
					sizedItem("Bi-Directional Meter", 2, model.SectionUtility, s.SystemPrefix, req),
				},
				Notes: []string{
					"Single battery system with load curtailment/PCS",
					"System shuts down during grid outage",
					fmt.Sprintf("AC-coupled system: BOS sized to %dA (inverter + battery × 1.25)", req.Amps),
				},
			}, nil
		},
	}
}

// B-3: solar, single battery, backup.
func apsB3() *model.Detector {
	const configID = "APS_B3"

	return &model.Detector{
		Name:      "APS B-3 (Solar + Single Battery + Backup)",
		ConfigID:  configID,
		Priority:  14,
		Utilities: []string{"APS"},

		QuickCheck: func(s *model.EquipmentState) bool {
			return s.HasSolarPanels && s.BatteryQuantity == 1 && s.HasBackupPanel
		},

		Detect: func(_ context.Context, s *model.EquipmentState) (*model.Match, error) {
			if !s.HasSolarPanels ||
				s.BatteryQuantity != 1 ||
				s.HasMultipleBatteries ||
				s.ChargingSource != model.ChargeGridOrRenewable ||
				s.CouplingType != model.CouplingAC ||
				!s.HasBackupPanel {
				return nil, nil
			}

			req := sizing.ACCoupled(outputOr(s.InverterMaxOutput, 0), s.BatteryMaxOutput)

			return &model.Match{
				ConfigID:    configID,
				ConfigName:  "AC Coupled B-3 (Solar + Single Battery + Backup)",
				Description: "Battery charged from grid or renewable with single battery and backup",
				Priority:    14,
				Confidence:  model.ConfidenceHigh,
				Required: model.RequiredEquipment{
					SolarPanels:     true,
					BatteryQuantity: 1,
					BatteryTypes:    1,
					InverterTypes:   []string{"Grid Following", "Grid Forming/Following"},
					BackupPanel:     true,
					Gateway:         true,
				},
				Items: []model.Item{
					plainItem("String Combiner Panel", 1, model.SectionUtility, s.SystemPrefix),
					sizedItem("Automatic Disconnect Switch", 2, model.SectionUtility, s.SystemPrefix, req),
					sizedItem("Bi-Directional Meter", 3, model.SectionUtility, s.SystemPrefix, req),
				},
				Notes: []string{
					"Single battery system with backup power",
					"Requires ADS for grid isolation",
					fmt.Sprintf("AC-coupled system: BOS sized to %dA (inverter + battery × 1.25)", req.Amps),
				},
			}, nil
		},
	}
}

// B-4: solar, single battery, no backup, no peak shaving.
func apsB4() *model.Detector {
	const configID = "APS_B4"

	return &model.Detector{
		Name:      "APS B-4 (Solar + Battery Standard)",
		ConfigID:  configID,
		Priority:  15,
		Utilities: []string{"APS"},

		QuickCheck: func(s *model.EquipmentState) bool {
			return s.HasSolarPanels && s.BatteryQuantity == 1 && !s.HasBackupPanel
		},

		Detect: func(_ context.Context, s *model.EquipmentState) (*model.Match, error) {
			if !s.HasSolarPanels ||
				s.BatteryQuantity != 1 ||
				s.ChargingSource != model.ChargeGridOrRenewable ||
				s.CouplingType != model.CouplingAC ||
				s.HasBackupPanel ||
				s.SupportsPeakShaving {
				return nil, nil
			}

			req := sizing.ACCoupled(outputOr(s.InverterMaxOutput, 0), s.BatteryMaxOutput)

			return &model.Match{
				ConfigID:    configID,
				ConfigName:  "AC Coupled B-4 (Solar + Battery Standard)",
				Description: "Battery charged from grid or renewable (standard configuration)",
				Priority:    15,
				Confidence:  model.ConfidenceHigh,
				Required: model.RequiredEquipment{
					SolarPanels:     true,
					BatteryQuantity: 1,
					BatteryTypes:    1,
					InverterTypes:   []string{"Grid Following"},
				},
				Items: []model.Item{
					plainItem("String Combiner Panel", 1, model.SectionUtility, s.SystemPrefix),
					sizedItem("Bi-Directional Meter", 2, model.SectionUtility, s.SystemPrefix, req),
				},
				Notes: []string{
					"Standard configuration, no backup or PCS",
					"Includes dedicated DER combiner panel",
					fmt.Sprintf("AC-coupled system: BOS sized to %dA (inverter + battery × 1.25)", req.Amps),
				},
			}, nil
		},
	}
}

// B-5: solar, multiple batteries, no backup.
func apsB5() *model.Detector {
	const configID = "APS_B5"

	return &model.Detector{
		Name:      "APS B-5 (Multiple Batteries + PCS)",
		ConfigID:  configID,
		Priority:  16,
		Utilities: []string{"APS"},

		QuickCheck: func(s *model.EquipmentState) bool {
			return s.HasSolarPanels && s.BatteryQuantity > 1 && !s.HasBackupPanel
		},

		Detect: func(_ context.Context, s *model.EquipmentState) (*model.Match, error) {
			if !s.HasSolarPanels ||
				s.BatteryQuantity <= 1 ||
				!s.HasMultipleBatteries ||
				s.ChargingSource != model.ChargeGridOrRenewable ||
				s.CouplingType != model.CouplingAC ||
				s.HasBackupPanel {
				return nil, nil
			}

			req := sizing.ACCoupled(outputOr(s.InverterMaxOutput, 0), s.BatteryMaxOutput)

			return &model.Match{
				ConfigID:    configID,
				ConfigName:  "AC Coupled B-5 (Multiple Batteries + PCS)",
				Description: "Battery charged from grid or renewable with multiple batteries and PCS",
				Priority:    16,
				Confidence:  model.ConfidenceHigh,
				Required: model.RequiredEquipment{
					SolarPanels:     true,
					BatteryQuantity: s.BatteryQuantity,
					BatteryTypes:    1,
					InverterTypes:   []string{"Grid Following"},
				},
				Items: []model.Item{
					plainItem("String Combiner Panel", 1, model.SectionUtility, s.SystemPrefix),
					sizedItem("Bi-Directional Meter", 2, model.SectionUtility, s.SystemPrefix, req),
				},
				Notes: []string{
					"Multiple battery units of the same type (quantity > 1)",
					"Provides customer load curtailment/PCS",
					fmt.Sprintf("AC-coupled system: BOS sized to %dA (inverter + battery × 1.25)", req.Amps),
				},
			}, nil
		},
	}
}

// C-1: DC-coupled hybrid, peak shaving, no backup.
func apsC1() *model.Detector {
	const configID = "APS_C1"

	return &model.Detector{
		Name:      "APS C-1 (DC Coupled Hybrid)",
		ConfigID:  configID,
		Priority:  17,
		Utilities: []string{"APS"},

		QuickCheck: func(s *model.EquipmentState) bool {
			return s.HasSolarPanels && s.CouplingType == model.CouplingDC && !s.HasBackupPanel
		},

		Detect: func(_ context.Context, s *model.EquipmentState) (*model.Match, error) {
			if !s.HasSolarPanels ||
				s.CouplingType != model.CouplingDC ||
				!s.SupportsPeakShaving ||
				s.HasBackupPanel {
				return nil, nil
			}

			req := sizing.DCCoupled(outputOr(s.InverterMaxOutput, 100))

			return &model.Match{
				ConfigID:    configID,
				ConfigName:  "DC Coupled Hybrid C-1 (Peak Shaving)",
				Description: "DC coupled hybrid system with peak shaving capability",
				Priority:    17,
				Confidence:  model.ConfidenceHigh,
				Required: model.RequiredEquipment{
					SolarPanels:     true,
					BatteryQuantity: 1,
					BatteryTypes:    1,
					InverterTypes:   []string{"Hybrid"},
				},
				Items: []model.Item{
					plainItem("String Combiner Panel", 1, model.SectionUtility, s.SystemPrefix),
					sizedItem("Bi-Directional Meter", 2, model.SectionUtility, s.SystemPrefix, req),
					sizedItem("Uni-Directional Meter", 3, model.SectionUtility, s.SystemPrefix, req),
				},
				Notes: []string{
					"DC coupled system with hybrid inverter",
					"PV array directly connected to hybrid inverter",
					fmt.Sprintf("DC-coupled system: BOS sized to %dA (inverter only × 1.25)", req.Amps),
				},
			}, nil
		},
	}
}

// C-2: DC-coupled hybrid, peak shaving, backup.
func apsC2() *model.Detector {
	const configID = "APS_C2"

	return &model.Detector{
		Name:      "APS C-2 (DC Coupled Hybrid + Backup)",
		ConfigID:  configID,
		Priority:  18,
		Utilities: []string{"APS"},

		QuickCheck: func(s *model.EquipmentState) bool {
			return s.HasSolarPanels && s.CouplingType == model.CouplingDC && s.HasBackupPanel
		},

		Detect: func(_ context.Context, s *model.EquipmentState) (*model.Match, error) {
			if !s.HasSolarPanels ||
				s.CouplingType != model.CouplingDC ||
				!s.SupportsPeakShaving ||
				!s.HasBackupPanel {
				return nil, nil
			}

			req := sizing.DCCoupled(outputOr(s.InverterMaxOutput, 100))

			return &model.Match{
				ConfigID:    configID,
				ConfigName:  "DC Coupled Hybrid C-2 (Peak Shaving + Backup)",
				Description: "DC coupled hybrid system with peak shaving and backup power",
				Priority:    18,
				Confidence:  model.ConfidenceHigh,
				Required: model.RequiredEquipment{
					SolarPanels:     true,
					BatteryQuantity: 1,
					BatteryTypes:    1,
					InverterTypes:   []string{"Hybrid"},
					BackupPanel:     true,
					Gateway:         true,
				},
				Items: []model.Item{
					plainItem("String Combiner Panel", 1, model.SectionUtility, s.SystemPrefix),
					sizedItem("Automatic Disconnect Switch", 2, model.SectionUtility, s.SystemPrefix, req),
					sizedItem("Bi-Directional Meter", 3, model.SectionUtility, s.SystemPrefix, req),
				},
				Notes: []string{
					"DC coupled system with hybrid inverter and backup power",
					"Requires ADS for grid isolation",
					fmt.Sprintf("DC-coupled system: BOS sized to %dA (inverter only × 1.25)", req.Amps),
				},
			}, nil
		},
	}
}

// D: standby battery only, no renewable sources.
func apsD() *model.Detector {
	const configID = "APS_D"

	return &model.Detector{
		Name:      "APS D (Standby Battery)",
		ConfigID:  configID,
		Priority:  19,
		Utilities: []string{"APS"},

		QuickCheck: func(s *model.EquipmentState) bool {
			return !s.HasSolarPanels && s.BatteryQuantity > 0 && s.IsStandbyOnly
		},

		Detect: func(_ context.Context, s *model.EquipmentState) (*model.Match, error) {
			if !s.IsStandbyOnly {
				return nil, nil
			}

			return &model.Match{
				ConfigID:    configID,
				ConfigName:  "Standby Battery Configuration D",
				Description: "Standby battery system without renewable energy sources",
				Priority:    19,
				Confidence:  model.ConfidenceHigh,
				Required: model.RequiredEquipment{
					BatteryQuantity: 1,
					BatteryTypes:    1,
					InverterTypes:   []string{"Grid Forming/Following"},
					BackupPanel:     true,
					Gateway:         true,
				},
				Items: []model.Item{
					plainItem("Transfer Switch", 1, model.SectionUtility, s.SystemPrefix),
				},
				Notes: []string{
					"Standby battery only, no solar",
					"Includes battery charger and transfer switch",
				},
			}, nil
		},
	}
}
