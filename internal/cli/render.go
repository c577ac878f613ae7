package cli

import (
	"fmt"
	"strings"

	"github.com/solarcraft/bosforge/internal/model"
)

// sectionOrder fixes the display order of BOS sections.
var sectionOrder = []model.Section{
	model.SectionUtility,
	model.SectionBattery,
	model.SectionBackup,
	model.SectionPostSMS,
	model.SectionCombine,
}

var sectionLabels = map[model.Section]string{
	model.SectionUtility: "Utility BOS",
	model.SectionBattery: "Battery BOS",
	model.SectionBackup:  "Backup Panel BOS",
	model.SectionPostSMS: "Post-SMS BOS",
	model.SectionCombine: "Post-Combine BOS",
}

func confidenceBadge(c model.Confidence) string {
	badge := "[" + string(c) + "]"
	switch c {
	case model.ConfidenceExact:
		return SuccessStyle.Render(badge)
	case model.ConfidenceHigh:
		return InfoStyle.Render(badge)
	case model.ConfidenceMedium:
		return WarningStyle.Render(badge)
	default:
		return SubtleStyle.Render(badge)
	}
}

func itemLine(item model.Item) string {
	parts := []string{item.EquipmentType}
	if item.Make != "" || item.Model != "" {
		parts = append(parts, strings.TrimSpace(item.Make+" "+item.Model))
	}
	if item.AmpRating != "" {
		parts = append(parts, item.AmpRating+"A")
	}
	line := fmt.Sprintf("%d. %s", item.Position, strings.Join(parts, "  "))
	if item.SizingCalculation != "" {
		line += "  " + SubtleStyle.Render("("+item.SizingCalculation+")")
	}
	return line
}

// RenderMatch formats one configuration match with its equipment grouped by
// section.
func RenderMatch(m *model.Match) string {
	var b strings.Builder

	b.WriteString(BoldStyle.Render(BoltIcon+" "+m.ConfigName) + "  " + confidenceBadge(m.Confidence) + "\n")
	if m.Description != "" {
		b.WriteString("   " + SubtleStyle.Render(m.Description) + "\n")
	}

	bySection := make(map[model.Section][]model.Item)
	for _, item := range m.Items {
		bySection[item.Section] = append(bySection[item.Section], item)
	}
	for _, section := range sectionOrder {
		items := bySection[section]
		if len(items) == 0 {
			continue
		}
		b.WriteString("   " + InfoStyle.Render(sectionLabels[section]) + "\n")
		for _, item := range items {
			b.WriteString("     " + itemLine(item) + "\n")
		}
	}

	if m.MultiSystem != nil {
		b.WriteString("   " + InfoStyle.Render("Multi-System") + "\n")
		for n := 1; n <= m.MultiSystem.TotalSystems; n++ {
			if landing, ok := m.MultiSystem.CombinesAt[n]; ok {
				b.WriteString(fmt.Sprintf("     System %d lands at %s\n", n, landing))
			}
		}
	}

	for _, note := range m.Notes {
		b.WriteString("   " + SubtleStyle.Render("• "+note) + "\n")
	}
	for _, warning := range m.Warnings {
		b.WriteString("   " + FormatWarning(warning) + "\n")
	}

	return b.String()
}

// RenderMatches formats a ranked list of matches, best first.
func RenderMatches(matches []*model.Match) string {
	if len(matches) == 0 {
		return FormatInfo("No configuration matched this system.") + "\n"
	}

	var b strings.Builder
	for i, m := range matches {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(RenderMatch(m))
	}
	return b.String()
}

// RenderPopulateResult formats the outcome of an auto-population run.
func RenderPopulateResult(result *model.AutoPopulateResult) string {
	var b strings.Builder

	if result.Success {
		b.WriteString(FormatSuccess(result.Message) + "\n")
	} else {
		b.WriteString(FormatWarning(result.Message) + "\n")
	}

	if len(result.AddedEquipment) > 0 {
		b.WriteString(BoldStyle.Render("Added") + "\n")
		for _, item := range result.AddedEquipment {
			b.WriteString("  " + itemLine(item) + "\n")
		}
	}

	if len(result.RequiresUserSelection) > 0 {
		b.WriteString(BoldStyle.Render("Needs selection") + "\n")
		for _, item := range result.RequiresUserSelection {
			b.WriteString("  " + itemLine(item) + "\n")
			if len(item.AvailableMakes) > 0 {
				b.WriteString("    " + SubtleStyle.Render("Makes: "+strings.Join(item.AvailableMakes, ", ")) + "\n")
			}
			if len(item.AvailableModels) > 0 {
				b.WriteString("    " + SubtleStyle.Render("Models: "+strings.Join(item.AvailableModels, ", ")) + "\n")
			}
		}
	}

	if len(result.SkippedEquipment) > 0 {
		b.WriteString(SubtleStyle.Render(fmt.Sprintf("Skipped %d existing item(s)", len(result.SkippedEquipment))) + "\n")
	}

	for _, errMsg := range result.Errors {
		b.WriteString(FormatError(errMsg) + "\n")
	}

	return b.String()
}

// RenderMissingEquipment formats a pre-population validation failure.
func RenderMissingEquipment(missing []string) string {
	var b strings.Builder
	b.WriteString(FormatWarning("The matched configuration expects equipment the project record lacks:") + "\n")
	for _, name := range missing {
		b.WriteString("  " + ErrorStyle.Render("• "+name) + "\n")
	}
	return b.String()
}

// RenderDetectors formats the registered detector table, one line each.
func RenderDetectors(detectors []*model.Detector) string {
	var b strings.Builder
	b.WriteString(TableHeaderStyle.Render("Priority  Config ID                                Utilities") + "\n")
	for _, d := range detectors {
		b.WriteString(fmt.Sprintf("%8d  %-40s %s\n",
			d.Priority, d.ConfigID, strings.Join(d.Utilities, ", ")))
	}
	return b.String()
}
