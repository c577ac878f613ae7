// Package model defines the core domain types for BOS configuration
// detection and auto-population.
package model

import "fmt"

// InverterType classifies an inverter by its grid behavior.
type InverterType string

const (
	// InverterGridFollowing is a standard string or micro inverter.
	InverterGridFollowing InverterType = "grid-following"
	// InverterGridFormingFollowing is a battery inverter that can form a grid.
	InverterGridFormingFollowing InverterType = "grid-forming-following"
	// InverterHybrid is a hybrid inverter with a DC battery bus.
	InverterHybrid InverterType = "hybrid"
	// InverterUnknown means no make or model was available to classify.
	InverterUnknown InverterType = ""
)

// CouplingType describes how the battery couples to the system.
type CouplingType string

const (
	// CouplingAC means the battery has its own AC inverter.
	CouplingAC CouplingType = "AC"
	// CouplingDC means the battery sits on the inverter's DC bus.
	CouplingDC CouplingType = "DC"
)

// SystemType is the installer's declared system selection.
type SystemType string

const (
	// SystemMicroinverter is a microinverter-per-panel system.
	SystemMicroinverter SystemType = "microinverter"
	// SystemInverter is a string inverter system.
	SystemInverter SystemType = "inverter"
	// SystemBatteryOnly has storage but no generation.
	SystemBatteryOnly SystemType = "battery-only"
)

// ChargingSource describes where a battery may charge from.
type ChargingSource string

const (
	// ChargeGridOnly restricts charging to the utility grid.
	ChargeGridOnly ChargingSource = "grid-only"
	// ChargeGridOrRenewable allows charging from solar as well.
	ChargeGridOrRenewable ChargingSource = "grid-or-renewable"
)

// BackupOption is the declared backup coverage for a subsystem.
type BackupOption string

const (
	// BackupWholeHome backs up the entire service.
	BackupWholeHome BackupOption = "Whole Home"
	// BackupPartialHome backs up a dedicated subset of loads.
	BackupPartialHome BackupOption = "Partial Home"
	// BackupNone means no backup capability.
	BackupNone BackupOption = "None"
)

// UtilityRequirements carries the governing utility's metadata and its
// declared BOS requirement codes, as loaded from the requirements table.
type UtilityRequirements struct {
	UtilityName string
	State       string
	Combination string
	BOSTypes    [6]string
}

// ExistingSlot is one already-persisted BOS equipment entry.
type ExistingSlot struct {
	EquipmentType string
	Make          string
	Model         string
	AmpRating     string
	Position      int
}

// ExistingBOS records which numbered slots are already occupied, per section.
type ExistingBOS struct {
	Utility []ExistingSlot
	Battery []ExistingSlot
	Backup  []ExistingSlot
	PostSMS []ExistingSlot
}

// Positions returns the occupied position numbers for a section.
func (e ExistingBOS) Positions(section Section) []int {
	var slots []ExistingSlot
	switch section {
	case SectionUtility:
		slots = e.Utility
	case SectionBattery:
		slots = e.Battery
	case SectionBackup:
		slots = e.Backup
	case SectionPostSMS:
		slots = e.PostSMS
	case SectionCombine:
		return nil
	}
	positions := make([]int, 0, len(slots))
	for _, s := range slots {
		positions = append(positions, s.Position)
	}
	return positions
}

// EquipmentState is the normalized equipment description for one subsystem.
// It is built once by the extractor and consumed read-only by detectors;
// nothing downstream touches raw project-record keys.
type EquipmentState struct {
	// Project and system context.
	ProjectID    string
	SystemPrefix string
	SystemNumber int

	// Utility context. POIType is the point of interconnection
	// ("supply_side" or "load_side"); some utilities select fused vs
	// non-fused disconnects on it.
	UtilityName         string
	UtilityState        string
	UtilityCombination  string
	POIType             string
	UtilityRequirements *UtilityRequirements

	// Solar.
	HasSolarPanels bool
	SolarMake      string
	SolarModel     string
	SolarQuantity  int
	SolarWattage   int

	// Inverter. MaxContinuousOutput is nil when the catalog lookup found
	// nothing; callers must treat nil as "cannot size", not zero.
	InverterMake         string
	InverterModel        string
	InverterType         InverterType
	InverterQuantity     int
	InverterMaxOutput    *float64
	InverterIsNew        bool
	MicroInverterMake    string
	MicroInverterModel   string
	MicroInverterIsNew   bool
	AggregatePVBreaker   int
	SystemType           SystemType
	UtilityServiceAmps   int

	// Battery.
	BatteryQuantity  int
	BatteryMake      string
	BatteryModel     string
	BatteryMaxOutput float64
	ChargingSource   ChargingSource

	// Secondary battery for mixed-chemistry systems.
	Battery2Quantity int
	Battery2Make     string
	Battery2Model    string

	// Storage management system.
	HasSMS   bool
	SMSMake  string
	SMSModel string

	// Gateway. GatewaySelector is the alternate single-value field used by
	// the Tesla vendor family instead of make/model.
	HasGateway      bool
	GatewayMake     string
	GatewayModel    string
	GatewaySelector string

	// Backup power.
	HasBackupPanel      bool
	BackupOption        BackupOption
	BackupPanelMake     string
	BackupPanelModel    string
	BackupPanelBusAmps  int

	// Derived flags.
	CouplingType            CouplingType
	HasMultipleBatteries    bool
	HasDifferentBatteryTypes bool
	IsStandbyOnly           bool
	RequiresBackupPower     bool
	SupportsPeakShaving     bool

	// Already-persisted BOS equipment, per section.
	ExistingBOS ExistingBOS

	// Combine point from the electrical layout, when the project declares
	// one. Shared across subsystems.
	CombinePoint *CombinePoint
}

// CombinePoint describes where multiple subsystems' outputs join.
// AmpRating is the summed inverter output of the active systems with the
// 125% continuous-current rule applied.
type CombinePoint struct {
	Method        string
	ActiveSystems []int
	AmpRating     int
}

// HasInverter reports whether any inverter or microinverter is configured.
func (s *EquipmentState) HasInverter() bool {
	return s.InverterMake != "" || s.InverterModel != ""
}

// Validate ensures the state carries a usable system identity.
func (s *EquipmentState) Validate() error {
	if s.SystemNumber < 1 || s.SystemNumber > 4 {
		return fmt.Errorf("system number must be between 1 and 4, got %d", s.SystemNumber)
	}
	if s.SystemPrefix != fmt.Sprintf("sys%d_", s.SystemNumber) {
		return fmt.Errorf("system prefix %q does not match system number %d", s.SystemPrefix, s.SystemNumber)
	}
	return nil
}
