package model

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Confidence is the qualitative certainty of a configuration match. It is
// only a tie-break between matches of equal priority.
type Confidence string

const (
	// ConfidenceExact means every criterion matched specific equipment.
	ConfidenceExact Confidence = "exact"
	// ConfidenceHigh means the major equipment matched.
	ConfidenceHigh Confidence = "high"
	// ConfidenceMedium means a plausible but generic match.
	ConfidenceMedium Confidence = "medium"
	// ConfidenceLow is a fallback match.
	ConfidenceLow Confidence = "low"
)

// Rank returns the sort order of the confidence tier; exact sorts first.
func (c Confidence) Rank() int {
	switch c {
	case ConfidenceExact:
		return 0
	case ConfidenceHigh:
		return 1
	case ConfidenceMedium:
		return 2
	case ConfidenceLow:
		return 3
	default:
		return 4
	}
}

// RequiredEquipment summarizes what a configuration assumes is installed.
type RequiredEquipment struct {
	SolarPanels     bool
	BatteryQuantity int
	BatteryTypes    int
	InverterTypes   []string
	BackupPanel     bool
	SMS             bool
	Gateway         bool
}

// MultiSystemConfig describes where each subsystem's output lands when a
// configuration spans more than one subsystem. AffectedSystems is stamped
// from the detector at match time and drives propagation; CombinesAt only
// names landing points.
type MultiSystemConfig struct {
	TotalSystems    int
	AffectedSystems []int
	CombinesAt      map[int]string // system number -> landing point name
	CombineMethod   string
}

// Match is a successful detection result. It is immutable once produced;
// CloneForSystem is used to mirror it across subsystems.
type Match struct {
	ConfigID    string
	ConfigName  string
	Description string

	Priority   int
	Confidence Confidence

	Required    RequiredEquipment
	Items       []Item
	MultiSystem *MultiSystemConfig

	Notes    []string
	Warnings []string

	Source     string
	DetectedAt time.Time

	SystemPrefix string
	SystemNumber int
}

// CloneForSystem copies the match onto another subsystem, annotating its
// origin. Items keep their own per-item system prefixes.
func (m *Match) CloneForSystem(systemNumber int, note string) *Match {
	clone := *m
	clone.SystemNumber = systemNumber
	clone.SystemPrefix = fmt.Sprintf("sys%d_", systemNumber)
	clone.Notes = append(append([]string(nil), m.Notes...), note)
	clone.Items = append([]Item(nil), m.Items...)
	return &clone
}

// SortMatches orders matches by ascending priority, then by confidence tier.
// The sort is stable so equal matches keep registration order.
func SortMatches(matches []*Match) {
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Priority != matches[j].Priority {
			return matches[i].Priority < matches[j].Priority
		}
		return matches[i].Confidence.Rank() < matches[j].Confidence.Rank()
	})
}

// SortDetectors orders detectors by ascending priority, stable within a band.
func SortDetectors(detectors []*Detector) {
	sort.SliceStable(detectors, func(i, j int) bool {
		return detectors[i].Priority < detectors[j].Priority
	})
}

// Detector is a single registered configuration rule. Detect must be free of
// side effects on the engine's state; it may perform external reads.
type Detector struct {
	Name        string
	ConfigID    string
	Description string

	// Priority orders evaluation and ranking; lower runs and wins first.
	Priority int

	// Utilities this rule applies to; "*" is a wildcard.
	Utilities []string

	// Multi-system rules are decided once, from subsystem 2, then mirrored
	// onto the other affected subsystems.
	IsMultiSystem   bool
	AffectedSystems []int

	// QuickCheck is an optional cheap pre-filter run before Detect.
	QuickCheck func(*EquipmentState) bool

	// Detect returns nil when the state does not match.
	Detect func(context.Context, *EquipmentState) (*Match, error)
}

// AppliesToUtility reports whether the detector covers the named utility.
func (d *Detector) AppliesToUtility(utility string) bool {
	for _, u := range d.Utilities {
		if u == "*" || strings.EqualFold(u, utility) {
			return true
		}
	}
	return false
}

// Validate ensures the detector is well formed before registration.
func (d *Detector) Validate() error {
	if d.ConfigID == "" {
		return fmt.Errorf("config id is required")
	}
	if d.Name == "" {
		return fmt.Errorf("detector name is required")
	}
	if d.Detect == nil {
		return fmt.Errorf("detector %s has no detect function", d.ConfigID)
	}
	if len(d.Utilities) == 0 {
		return fmt.Errorf("detector %s declares no utilities", d.ConfigID)
	}
	if d.IsMultiSystem && len(d.AffectedSystems) == 0 {
		return fmt.Errorf("multi-system detector %s declares no affected systems", d.ConfigID)
	}
	return nil
}
