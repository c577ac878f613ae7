package cli

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/solarcraft/bosforge/internal/model"
)

func TestRenderMatchGroupsSections(t *testing.T) {
	match := &model.Match{
		ConfigID:    "test",
		ConfigName:  "Test Configuration",
		Description: "Solar with battery",
		Confidence:  model.ConfidenceHigh,
		Items: []model.Item{
			{
				EquipmentType: "AC Disconnect",
				Section:       model.SectionBattery,
				Position:      1,
				AmpRating:     "60",
			},
			{
				EquipmentType:     "PV Meter",
				Make:              "Milbank",
				Model:             "U5929XL",
				Section:           model.SectionUtility,
				Position:          1,
				SizingCalculation: "40A × 1.25 = 50A",
			},
		},
		Notes: []string{"sized from inverter output"},
	}

	out := RenderMatch(match)
	assert.Contains(t, out, "Test Configuration")
	assert.Contains(t, out, "[high]")
	assert.Contains(t, out, "Utility BOS")
	assert.Contains(t, out, "Battery BOS")
	assert.Contains(t, out, "Milbank U5929XL")
	assert.Contains(t, out, "40A × 1.25 = 50A")
	assert.Contains(t, out, "sized from inverter output")

	// Utility section renders before battery.
	assert.Less(t,
		strings.Index(out, "Utility BOS"),
		strings.Index(out, "Battery BOS"))
}

func TestRenderMatchMultiSystem(t *testing.T) {
	match := &model.Match{
		ConfigID:   "multi",
		ConfigName: "Dual System",
		Confidence: model.ConfidenceExact,
		MultiSystem: &model.MultiSystemConfig{
			TotalSystems: 2,
			CombinesAt:   map[int]string{1: "Sol-Ark", 2: "Main Panel A"},
		},
	}

	out := RenderMatch(match)
	assert.Contains(t, out, "System 1 lands at Sol-Ark")
	assert.Contains(t, out, "System 2 lands at Main Panel A")
}

func TestRenderMatchesEmpty(t *testing.T) {
	out := RenderMatches(nil)
	assert.Contains(t, out, "No configuration matched")
}

func TestRenderPopulateResult(t *testing.T) {
	result := &model.AutoPopulateResult{
		Success: true,
		Message: "Added 1 BOS item(s), 1 require user selection",
		AddedEquipment: []model.Item{
			{EquipmentType: "PV Meter", Make: "Milbank", Model: "U5929XL", AmpRating: "100", Position: 1},
		},
		RequiresUserSelection: []model.Item{
			{
				EquipmentType:   "AC Disconnect",
				Position:        2,
				AvailableMakes:  []string{"Eaton", "Siemens"},
				AvailableModels: []string{"DG222URB", "WN2060U"},
			},
		},
		SkippedEquipment: []model.Item{{EquipmentType: "Gateway"}},
		Errors:           []string{"equipment type \"Transfer Switch\" not found"},
	}

	out := RenderPopulateResult(result)
	assert.Contains(t, out, "Added 1 BOS item(s)")
	assert.Contains(t, out, "Milbank U5929XL")
	assert.Contains(t, out, "Makes: Eaton, Siemens")
	assert.Contains(t, out, "Skipped 1 existing item(s)")
	assert.Contains(t, out, "Transfer Switch")
}

func TestRenderMissingEquipment(t *testing.T) {
	out := RenderMissingEquipment([]string{"Battery", "Solar Panels"})
	assert.Contains(t, out, "Battery")
	assert.Contains(t, out, "Solar Panels")
}

func TestRenderDetectors(t *testing.T) {
	detectors := []*model.Detector{
		{ConfigID: "franklin-whole-home", Priority: 1, Utilities: []string{"APS"}},
		{ConfigID: "generic-pv-only", Priority: 50, Utilities: []string{"*"}},
	}

	out := RenderDetectors(detectors)
	assert.Contains(t, out, "franklin-whole-home")
	assert.Contains(t, out, "generic-pv-only")
}
