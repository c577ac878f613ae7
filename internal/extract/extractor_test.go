package extract

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solarcraft/bosforge/internal/config"
	"github.com/solarcraft/bosforge/internal/model"
	"github.com/solarcraft/bosforge/internal/service"
)

type stubBatteryCatalog struct {
	models map[string][]service.BatteryModel
	err    error
}

func (s *stubBatteryCatalog) ModelsByMake(_ context.Context, manufacturer string) ([]service.BatteryModel, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.models[manufacturer], nil
}

type stubInverterCatalog struct {
	models map[string][]service.InverterModel
	err    error
}

func (s *stubInverterCatalog) ModelsByMake(_ context.Context, manufacturer string) ([]service.InverterModel, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.models[manufacturer], nil
}

func testRules() config.Rules {
	return config.Rules{
		BreakerLadder:      []int{15, 20, 30, 40, 50, 60, 70, 100, 125, 150, 175, 200, 225, 400},
		HybridTokens:       []string{"hybrid", "goodwe", "growatt", "sol-ark", "solark"},
		GridFormingTokens:  []string{"forming", "powerwall", "backup interface", "agate", "franklin", "tesla"},
		MicroinverterMakes: []string{"enphase", "hoymiles", "apsystems"},
	}
}

func newTestExtractor(batteries *stubBatteryCatalog, inverters *stubInverterCatalog) *Extractor {
	if batteries == nil {
		batteries = &stubBatteryCatalog{}
	}
	if inverters == nil {
		inverters = &stubInverterCatalog{}
	}
	return New(batteries, inverters, testRules())
}

func TestForSystemAbsentSubsystem(t *testing.T) {
	e := newTestExtractor(nil, nil)

	tests := []struct {
		name   string
		record Record
		want   bool
	}{
		{
			name:   "empty record",
			record: Record{},
			want:   false,
		},
		{
			name: "solar make alone is presence",
			record: Record{
				"sys1_solar_panel_make": "REC",
			},
			want: true,
		},
		{
			name: "inverter model alone is presence",
			record: Record{
				"sys1_micro_inverter_model": "IQ8+",
			},
			want: true,
		},
		{
			name: "battery make without quantity is not presence",
			record: Record{
				"sys1_battery_1_make": "Tesla",
			},
			want: false,
		},
		{
			name: "battery make with quantity is presence",
			record: Record{
				"sys1_battery_1_make": "Tesla",
				"sys1_battery_1_qty":  "2",
			},
			want: true,
		},
		{
			name: "system selection alone is presence",
			record: Record{
				"sys1_selectedsystem": "microinverter",
			},
			want: true,
		},
		{
			name: "other subsystem's data does not leak",
			record: Record{
				"sys2_solar_panel_make": "REC",
			},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state, err := e.ForSystem(context.Background(), tt.record, 1, nil)
			require.NoError(t, err)
			if tt.want {
				assert.NotNil(t, state)
			} else {
				assert.Nil(t, state)
			}
		})
	}
}

func TestForSystemInvalidSystemNumber(t *testing.T) {
	e := newTestExtractor(nil, nil)
	_, err := e.ForSystem(context.Background(), Record{}, 0, nil)
	assert.Error(t, err)
	_, err = e.ForSystem(context.Background(), Record{}, 5, nil)
	assert.Error(t, err)
}

func TestForSystemNumericCoercion(t *testing.T) {
	e := newTestExtractor(nil, nil)
	record := Record{
		"sys1_solar_panel_make": "REC",
		"sys1_solar_panel_qty":  "not-a-number",
		"sys1_battery_1_qty":    "",
		"utility_service_amps":  "200",
	}

	state, err := e.ForSystem(context.Background(), record, 1, nil)
	require.NoError(t, err)
	require.NotNil(t, state)

	assert.Equal(t, 0, state.SolarQuantity)
	assert.Equal(t, 0, state.BatteryQuantity)
	assert.Equal(t, 200, state.UtilityServiceAmps)
}

func TestForSystemExistingInversion(t *testing.T) {
	e := newTestExtractor(nil, nil)

	tests := []struct {
		name     string
		existing string
		wantNew  bool
	}{
		{"existing true means not new", "true", false},
		{"existing false means new", "false", true},
		{"absent means new", "", true},
		{"garbage means new", "maybe", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			record := Record{
				"sys1_micro_inverter_make":     "Enphase",
				"sys1_micro_inverter_existing": tt.existing,
			}
			state, err := e.ForSystem(context.Background(), record, 1, nil)
			require.NoError(t, err)
			assert.Equal(t, tt.wantNew, state.MicroInverterIsNew)
		})
	}
}

func TestForSystemSentinelValues(t *testing.T) {
	e := newTestExtractor(nil, nil)
	record := Record{
		"sys1_solar_panel_make": "REC",
		"sys1_sms_make":         "No SMS",
		"sys1_gateway_model":    "NO GATEWAY",
	}

	state, err := e.ForSystem(context.Background(), record, 1, nil)
	require.NoError(t, err)

	assert.False(t, state.HasSMS)
	assert.False(t, state.HasGateway)
}

func TestForSystemGatewaySelector(t *testing.T) {
	e := newTestExtractor(nil, nil)
	record := Record{
		"sys1_solar_panel_make": "REC",
		"sys1_gateway":          "Backup Gateway 2",
	}

	state, err := e.ForSystem(context.Background(), record, 1, nil)
	require.NoError(t, err)

	assert.True(t, state.HasGateway)
	assert.Equal(t, "Backup Gateway 2", state.GatewaySelector)
}

func TestForSystemBackupPanelFieldDivergence(t *testing.T) {
	e := newTestExtractor(nil, nil)

	tests := []struct {
		name     string
		system   int
		record   Record
		wantMake string
		wantBus  int
	}{
		{
			name:   "system 1 uses the bls1 family",
			system: 1,
			record: Record{
				"sys1_solar_panel_make":             "REC",
				"sys1_backup_option":                "Whole Home",
				"bls1_backup_load_sub_panel_make":   "Eaton",
				"bls1_backuploader_bus_bar_rating":  "200",
			},
			wantMake: "Eaton",
			wantBus:  200,
		},
		{
			name:   "system 2 uses its own names",
			system: 2,
			record: Record{
				"sys2_solar_panel_make":             "REC",
				"sys2_backup_option":                "Partial Home",
				"sys2_backup_load_sub_panel_make":   "Square D",
				"sys2_backuploadsubpanel_bus_rating": "125",
			},
			wantMake: "Square D",
			wantBus:  125,
		},
		{
			name:   "system 3 generalizes by index",
			system: 3,
			record: Record{
				"sys3_solar_panel_make":              "REC",
				"sys3_backup_option":                 "Whole Home",
				"sys3_backup_load_sub_panel_make":    "Siemens",
				"sys3_backuploadsubpanel_bus_rating": "100",
			},
			wantMake: "Siemens",
			wantBus:  100,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state, err := e.ForSystem(context.Background(), tt.record, tt.system, nil)
			require.NoError(t, err)
			require.NotNil(t, state)
			assert.Equal(t, tt.wantMake, state.BackupPanelMake)
			assert.Equal(t, tt.wantBus, state.BackupPanelBusAmps)
			assert.True(t, state.HasBackupPanel)
		})
	}
}

func TestForSystemBackupNoneIsNotBackupPanel(t *testing.T) {
	e := newTestExtractor(nil, nil)
	record := Record{
		"sys1_solar_panel_make":           "REC",
		"sys1_backup_option":              "None",
		"bls1_backup_load_sub_panel_make": "Eaton",
	}

	state, err := e.ForSystem(context.Background(), record, 1, nil)
	require.NoError(t, err)
	assert.False(t, state.HasBackupPanel)
}

func TestCouplingTypeCatalogAuthority(t *testing.T) {
	batteries := &stubBatteryCatalog{models: map[string][]service.BatteryModel{
		"FranklinWH": {{Model: "aPower 2", CoupleType: "AC"}},
		"GoodWe":     {{Model: "Lynx Home F", CoupleType: "DC"}},
	}}

	tests := []struct {
		name     string
		record   Record
		batErr   error
		want     model.CouplingType
	}{
		{
			name: "catalog says AC",
			record: Record{
				"sys1_selectedsystem":  "microinverter",
				"sys1_battery_1_make":  "FranklinWH",
				"sys1_battery_1_model": "aPower 2",
				"sys1_battery_1_qty":   "1",
			},
			want: model.CouplingAC,
		},
		{
			name: "catalog says DC",
			record: Record{
				"sys1_selectedsystem":  "inverter",
				"sys1_battery_1_make":  "GoodWe",
				"sys1_battery_1_model": "Lynx Home F",
				"sys1_battery_1_qty":   "2",
			},
			want: model.CouplingDC,
		},
		{
			name: "catalog miss infers from hybrid inverter",
			record: Record{
				"sys1_battery_1_make":       "Unknown Co",
				"sys1_battery_1_model":      "X1",
				"sys1_battery_1_qty":        "1",
				"sys1_micro_inverter_make":  "Sol-Ark",
				"sys1_micro_inverter_model": "15K",
			},
			want: model.CouplingDC,
		},
		{
			name: "catalog error infers AC for non-hybrid",
			record: Record{
				"sys1_battery_1_make":       "FranklinWH",
				"sys1_battery_1_model":      "aPower 2",
				"sys1_battery_1_qty":        "1",
				"sys1_micro_inverter_make":  "Enphase",
				"sys1_micro_inverter_model": "IQ8+",
			},
			batErr: errors.New("db closed"),
			want:   model.CouplingAC,
		},
		{
			name: "no battery infers from inverter",
			record: Record{
				"sys1_micro_inverter_make":  "Enphase",
				"sys1_micro_inverter_model": "IQ8+",
			},
			want: model.CouplingAC,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cat := batteries
			if tt.batErr != nil {
				cat = &stubBatteryCatalog{err: tt.batErr}
			}
			e := newTestExtractor(cat, nil)
			state, err := e.ForSystem(context.Background(), tt.record, 1, nil)
			require.NoError(t, err)
			require.NotNil(t, state)
			assert.Equal(t, tt.want, state.CouplingType)
		})
	}
}

func TestInverterMaxOutput(t *testing.T) {
	inverters := &stubInverterCatalog{models: map[string][]service.InverterModel{
		"Enphase": {{Model: "IQ8+", MaxContOutputAmps: 1.21}},
		"Sol-Ark": {{Model: "15K", MaxContOutputAmps: 62.5}},
	}}

	t.Run("microinverter multiplies by quantity", func(t *testing.T) {
		e := newTestExtractor(nil, inverters)
		record := Record{
			"sys1_selectedsystem":       "microinverter",
			"sys1_micro_inverter_make":  "Enphase",
			"sys1_micro_inverter_model": "IQ8+",
			"sys1_micro_inverter_qty":   "20",
		}
		state, err := e.ForSystem(context.Background(), record, 1, nil)
		require.NoError(t, err)
		require.NotNil(t, state.InverterMaxOutput)
		assert.InDelta(t, 24.2, *state.InverterMaxOutput, 0.0001)
	})

	t.Run("string inverter rating is not multiplied", func(t *testing.T) {
		e := newTestExtractor(nil, inverters)
		record := Record{
			"sys1_selectedsystem":       "inverter",
			"sys1_micro_inverter_make":  "Sol-Ark",
			"sys1_micro_inverter_model": "15K",
			"sys1_micro_inverter_qty":   "2",
		}
		state, err := e.ForSystem(context.Background(), record, 1, nil)
		require.NoError(t, err)
		require.NotNil(t, state.InverterMaxOutput)
		assert.InDelta(t, 62.5, *state.InverterMaxOutput, 0.0001)
	})

	t.Run("catalog miss leaves nil", func(t *testing.T) {
		e := newTestExtractor(nil, inverters)
		record := Record{
			"sys1_micro_inverter_make":  "Obscure",
			"sys1_micro_inverter_model": "Z9",
			"sys1_micro_inverter_qty":   "1",
		}
		state, err := e.ForSystem(context.Background(), record, 1, nil)
		require.NoError(t, err)
		assert.Nil(t, state.InverterMaxOutput)
	})

	t.Run("catalog error leaves nil", func(t *testing.T) {
		e := newTestExtractor(nil, &stubInverterCatalog{err: errors.New("db closed")})
		record := Record{
			"sys1_micro_inverter_make":  "Enphase",
			"sys1_micro_inverter_model": "IQ8+",
			"sys1_micro_inverter_qty":   "4",
		}
		state, err := e.ForSystem(context.Background(), record, 1, nil)
		require.NoError(t, err)
		assert.Nil(t, state.InverterMaxOutput)
	})
}

func TestClassifyInverter(t *testing.T) {
	e := newTestExtractor(nil, nil)

	tests := []struct {
		name          string
		inverterMake  string
		inverterModel string
		want          model.InverterType
	}{
		{"hybrid by make", "Sol-Ark", "15K", model.InverterHybrid},
		{"hybrid by model token", "Generic", "HYBRID-6000", model.InverterHybrid},
		{"grid forming by make", "FranklinWH", "aGate", model.InverterGridFormingFollowing},
		{"tesla is grid forming", "Tesla", "Powerwall 3", model.InverterGridFormingFollowing},
		{"plain micro is grid following", "Enphase", "IQ8+", model.InverterGridFollowing},
		{"empty is unknown", "", "", model.InverterUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := e.classifyInverter(tt.inverterMake, tt.inverterModel)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestChargingSourceAndDerivedFlags(t *testing.T) {
	e := newTestExtractor(nil, nil)

	t.Run("no solar forces grid-only and standby", func(t *testing.T) {
		record := Record{
			"sys1_battery_1_make":  "Tesla",
			"sys1_battery_1_model": "Powerwall 3",
			"sys1_battery_1_qty":   "2",
		}
		state, err := e.ForSystem(context.Background(), record, 1, nil)
		require.NoError(t, err)
		assert.Equal(t, model.ChargeGridOnly, state.ChargingSource)
		assert.True(t, state.IsStandbyOnly)
		assert.True(t, state.HasMultipleBatteries)
	})

	t.Run("solar allows renewable charging", func(t *testing.T) {
		record := Record{
			"sys1_solar_panel_make": "REC",
			"sys1_battery_1_make":   "Tesla",
			"sys1_battery_1_qty":    "1",
		}
		state, err := e.ForSystem(context.Background(), record, 1, nil)
		require.NoError(t, err)
		assert.Equal(t, model.ChargeGridOrRenewable, state.ChargingSource)
		assert.False(t, state.IsStandbyOnly)
		assert.False(t, state.HasMultipleBatteries)
	})

	t.Run("second battery family sets mixed types", func(t *testing.T) {
		record := Record{
			"sys1_solar_panel_make": "REC",
			"sys1_battery_2_make":   "FranklinWH",
			"sys1_battery_2_qty":    "1",
		}
		state, err := e.ForSystem(context.Background(), record, 1, nil)
		require.NoError(t, err)
		assert.True(t, state.HasDifferentBatteryTypes)
	})
}

func TestExistingBOSSlotScan(t *testing.T) {
	e := newTestExtractor(nil, nil)
	record := Record{
		"sys2_solar_panel_make": "REC",

		"bos_sys2_type1_equipment_type": "AC Disconnect",
		"bos_sys2_type1_make":           "Eaton",
		"bos_sys2_type3_equipment_type": "Production Meter",

		"bos_sys2_battery1_type1_equipment_type": "Breaker",

		"post_sms_bos_sys2_type2_equipment_type": "AC Disconnect",

		// Neighbor system's slots must not bleed in.
		"bos_sys1_type1_equipment_type": "AC Disconnect",
	}

	state, err := e.ForSystem(context.Background(), record, 2, nil)
	require.NoError(t, err)

	assert.Equal(t, []int{1, 3}, state.ExistingBOS.Positions(model.SectionUtility))
	assert.Equal(t, []int{1}, state.ExistingBOS.Positions(model.SectionBattery))
	assert.Equal(t, []int{2}, state.ExistingBOS.Positions(model.SectionPostSMS))
	assert.Empty(t, state.ExistingBOS.Positions(model.SectionBackup))
	assert.Equal(t, "Eaton", state.ExistingBOS.Utility[0].Make)
}

func TestForSystemUtilityContext(t *testing.T) {
	e := newTestExtractor(nil, nil)
	reqs := &model.UtilityRequirements{
		UtilityName: "Pacific Gas & Electric",
		State:       "CA",
		Combination: "A-1",
		BOSTypes:    [6]string{"AC Disconnect", "Production Meter"},
	}
	record := Record{
		"project_id":            "P-100",
		"sys1_solar_panel_make": "REC",
	}

	state, err := e.ForSystem(context.Background(), record, 1, reqs)
	require.NoError(t, err)

	assert.Equal(t, "P-100", state.ProjectID)
	assert.Equal(t, "Pacific Gas & Electric", state.UtilityName)
	assert.Equal(t, "CA", state.UtilityState)
	assert.Equal(t, "A-1", state.UtilityCombination)
	require.NotNil(t, state.UtilityRequirements)
}

func TestUtilityNameWithoutRequirementsRow(t *testing.T) {
	e := newTestExtractor(nil, nil)

	t.Run("reads utility_name", func(t *testing.T) {
		record := Record{
			"utility_name":          "APS",
			"sys1_solar_panel_make": "REC",
		}
		state, err := e.ForSystem(context.Background(), record, 1, nil)
		require.NoError(t, err)
		require.NotNil(t, state)
		assert.Equal(t, "APS", state.UtilityName)
	})

	t.Run("falls back to the legacy utility key", func(t *testing.T) {
		record := Record{
			"utility":               "SRP",
			"sys1_solar_panel_make": "REC",
		}
		state, err := e.ForSystem(context.Background(), record, 1, nil)
		require.NoError(t, err)
		require.NotNil(t, state)
		assert.Equal(t, "SRP", state.UtilityName)
	})
}

func TestMicroinverterMakeImpliesSystemType(t *testing.T) {
	e := newTestExtractor(nil, nil)

	t.Run("known microinverter make fills an empty selection", func(t *testing.T) {
		record := Record{
			"sys1_micro_inverter_make":  "Enphase",
			"sys1_micro_inverter_model": "IQ8+",
		}
		state, err := e.ForSystem(context.Background(), record, 1, nil)
		require.NoError(t, err)
		require.NotNil(t, state)
		assert.Equal(t, model.SystemMicroinverter, state.SystemType)
	})

	t.Run("explicit selection wins", func(t *testing.T) {
		record := Record{
			"sys1_selectedsystem":      "inverter",
			"sys1_micro_inverter_make": "Enphase",
		}
		state, err := e.ForSystem(context.Background(), record, 1, nil)
		require.NoError(t, err)
		require.NotNil(t, state)
		assert.Equal(t, model.SystemInverter, state.SystemType)
	})

	t.Run("string inverter make stays unselected", func(t *testing.T) {
		record := Record{
			"sys1_micro_inverter_make":  "Sol-Ark",
			"sys1_micro_inverter_model": "15K",
		}
		state, err := e.ForSystem(context.Background(), record, 1, nil)
		require.NoError(t, err)
		require.NotNil(t, state)
		assert.Empty(t, state.SystemType)
	})
}

func TestCombinePointExtraction(t *testing.T) {
	e := newTestExtractor(nil, nil)

	t.Run("sums active systems and applies 125% rule", func(t *testing.T) {
		record := Record{
			"sys1_solar_panel_make":          "REC",
			"ele_combine_positions":          `{"method":"post-combine panel","active_systems":[1,2]}`,
			"sys1_inv_max_continuous_output": "24.2",
			"sys2_inv_max_continuous_output": "62.5",
		}
		state, err := e.ForSystem(context.Background(), record, 1, nil)
		require.NoError(t, err)
		require.NotNil(t, state.CombinePoint)

		assert.Equal(t, "post-combine panel", state.CombinePoint.Method)
		assert.Equal(t, []int{1, 2}, state.CombinePoint.ActiveSystems)
		// ceil((24.2 + 62.5) × 1.25) = 109
		assert.Equal(t, 109, state.CombinePoint.AmpRating)
	})

	t.Run("absent layout means no combine point", func(t *testing.T) {
		record := Record{"sys1_solar_panel_make": "REC"}
		state, err := e.ForSystem(context.Background(), record, 1, nil)
		require.NoError(t, err)
		assert.Nil(t, state.CombinePoint)
	})

	t.Run("malformed layout is ignored", func(t *testing.T) {
		record := Record{
			"sys1_solar_panel_make": "REC",
			"ele_combine_positions": "{not json",
		}
		state, err := e.ForSystem(context.Background(), record, 1, nil)
		require.NoError(t, err)
		assert.Nil(t, state.CombinePoint)
	})
}

func TestAllSystems(t *testing.T) {
	e := newTestExtractor(nil, nil)
	record := Record{
		"sys1_solar_panel_make": "REC",
		"sys2_battery_1_make":   "Tesla",
		"sys2_battery_1_qty":    "1",
		"sys4_selectedsystem":   "inverter",
	}

	states := e.AllSystems(context.Background(), record, nil)

	assert.Len(t, states, 3)
	assert.Contains(t, states, 1)
	assert.Contains(t, states, 2)
	assert.NotContains(t, states, 3)
	assert.Contains(t, states, 4)
	assert.Equal(t, "sys2_", states[2].SystemPrefix)
}
