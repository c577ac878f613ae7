// Package sizing implements NEC continuous-load amp calculations for BOS
// equipment selection.
package sizing

import (
	"fmt"
	"math"
	"sort"
)

// ContinuousLoadMultiplier is the NEC 125% continuous-load factor.
const ContinuousLoadMultiplier = 1.25

// Sizer rounds continuous-current requirements up the standard breaker
// ladder. The ladder is configuration data, not code.
type Sizer struct {
	ladder []int
}

// NewSizer creates a sizer over the given ascending breaker ladder.
func NewSizer(ladder []int) *Sizer {
	sorted := append([]int(nil), ladder...)
	sort.Ints(sorted)
	return &Sizer{ladder: sorted}
}

// MinimumAmps applies the 125% rule to a continuous output and returns the
// raw required amperage, rounded up to a whole amp.
func MinimumAmps(continuousAmps float64) int {
	return int(math.Ceil(continuousAmps * ContinuousLoadMultiplier))
}

// NextStandardRating returns the smallest ladder entry at or above the
// required amps, or 0 when the requirement exceeds the ladder.
func (s *Sizer) NextStandardRating(requiredAmps int) int {
	for _, r := range s.ladder {
		if r >= requiredAmps {
			return r
		}
	}
	return 0
}

// ForContinuousOutput combines the 125% rule and ladder rounding.
func (s *Sizer) ForContinuousOutput(continuousAmps float64) int {
	return s.NextStandardRating(MinimumAmps(continuousAmps))
}

// Requirement is a sized BOS amp requirement with its justification, shown
// to the user alongside the selected equipment.
type Requirement struct {
	Label       string
	Calculation string
	Amps        int
}

// ACCoupled sizes for a system whose battery inverts on the AC side: the
// device must carry inverter and battery output simultaneously.
func ACCoupled(inverterAmps, batteryAmps float64) Requirement {
	amps := MinimumAmps(inverterAmps + batteryAmps)
	return Requirement{
		Label:       "Total System Output (AC-Coupled)",
		Calculation: fmt.Sprintf("Inverter (%gA) + Battery (%gA) × 1.25 = %dA (AC-Coupled)", inverterAmps, batteryAmps, amps),
		Amps:        amps,
	}
}

// DCCoupled sizes for a hybrid system: the battery rides the DC bus, so the
// inverter output bounds all AC current.
func DCCoupled(inverterAmps float64) Requirement {
	amps := MinimumAmps(inverterAmps)
	return Requirement{
		Label:       "Inverter Output (DC-Coupled)",
		Calculation: fmt.Sprintf("%gA × 1.25 = %dA (DC-Coupled)", inverterAmps, amps),
		Amps:        amps,
	}
}

// BatteryChain sizes the battery-chain BOS from the battery output alone.
func BatteryChain(batteryAmps float64) Requirement {
	amps := MinimumAmps(batteryAmps)
	return Requirement{
		Label:       "Battery Output",
		Calculation: fmt.Sprintf("%gA × 1.25 = %dA", batteryAmps, amps),
		Amps:        amps,
	}
}
