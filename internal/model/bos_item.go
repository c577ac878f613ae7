package model

import "fmt"

// Section identifies which BOS section a piece of equipment lands in. Each
// section persists under a different legacy field scheme, so the section tag
// selects the payload encoder.
type Section string

const (
	// SectionUtility is the pre-combine utility BOS (6 slots).
	SectionUtility Section = "utility"
	// SectionBattery is the battery-chain BOS (3 slots).
	SectionBattery Section = "battery"
	// SectionBackup is the backup sub-panel BOS (3 slots).
	SectionBackup Section = "backup"
	// SectionPostSMS is the post-SMS BOS (3 slots).
	SectionPostSMS Section = "post-sms"
	// SectionCombine is the shared post-combine BOS (3 slots, no system prefix).
	SectionCombine Section = "combine"
)

// MaxSlots returns the number of numbered positions the section offers.
func (s Section) MaxSlots() int {
	if s == SectionUtility {
		return 6
	}
	return 3
}

// NextFreeSlot returns the lowest unoccupied position in the section, or 0
// when every position is taken.
func NextFreeSlot(section Section, occupied []int) int {
	taken := make(map[int]bool, len(occupied))
	for _, p := range occupied {
		taken[p] = true
	}
	for i := 1; i <= section.MaxSlots(); i++ {
		if !taken[i] {
			return i
		}
	}
	return 0
}

// Item is one BOS equipment line emitted by a configuration match. Make,
// model and amp rating may be pre-specified by the rule (bypassing catalog
// resolution) or filled in by the auto-population service.
type Item struct {
	EquipmentType string
	Make          string
	Model         string
	AmpRating     string
	IsNew         bool
	Position      int
	Section       Section

	// SystemPrefix overrides the request's subsystem for multi-system
	// configurations. Empty for combine-section items, which are shared.
	SystemPrefix string

	// Catalog resolution hints.
	MinAmpRating  int
	PreferredMake string

	// Sizing provenance shown to the user.
	SizingLabel       string
	SizingCalculation string
	SizingValue       int

	// Resolution outcome.
	RequiresUserSelection bool
	AutoSelected          bool
	AvailableMakes        []string
	AvailableModels       []string
}

// DirectlySpecified reports whether the rule supplied a complete selection,
// making catalog lookup unnecessary.
func (i *Item) DirectlySpecified() bool {
	return i.Make != "" && i.Model != "" && i.AmpRating != ""
}

// Validate checks positional invariants for the item.
func (i *Item) Validate() error {
	if i.EquipmentType == "" {
		return fmt.Errorf("equipment type is required")
	}
	switch i.Section {
	case SectionUtility, SectionBattery, SectionBackup, SectionPostSMS, SectionCombine:
	default:
		return fmt.Errorf("unknown section %q", i.Section)
	}
	if i.Position < 1 || i.Position > i.Section.MaxSlots() {
		return fmt.Errorf("position %d out of range for %s section (1-%d)", i.Position, i.Section, i.Section.MaxSlots())
	}
	if i.Section == SectionCombine && i.SystemPrefix != "" {
		return fmt.Errorf("combine section items must not carry a system prefix")
	}
	return nil
}
