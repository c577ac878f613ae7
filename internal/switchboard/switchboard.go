// Package switchboard routes equipment state through the registered
// configuration detectors and ranks the results.
package switchboard

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/solarcraft/bosforge/internal/common"
	"github.com/solarcraft/bosforge/internal/model"
)

// Switchboard holds the detector registry and evaluates it against
// per-subsystem equipment state. Construct one per process; it is safe for
// concurrent use after Init.
type Switchboard struct {
	mu          sync.RWMutex
	detectors   []*model.Detector
	initialized bool
}

// New returns an empty, uninitialized switchboard.
func New() *Switchboard {
	return &Switchboard{}
}

// Init registers the given detector groups and sorts them by priority. A
// second call is a no-op, so callers may Init defensively.
func (s *Switchboard) Init(groups ...[]*model.Detector) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.initialized {
		slog.Debug("Switchboard already initialized, skipping")
		return nil
	}

	for _, group := range groups {
		for _, d := range group {
			if err := d.Validate(); err != nil {
				return fmt.Errorf("registering detector: %w", err)
			}
			s.detectors = append(s.detectors, d)
		}
	}

	// Stable sort keeps registration order within a priority band.
	model.SortDetectors(s.detectors)
	s.initialized = true

	slog.Info("Switchboard initialized", "detectors", len(s.detectors))
	return nil
}

// Reset clears the registry so Init can run again. Intended for tests.
func (s *Switchboard) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.detectors = nil
	s.initialized = false
}

// Detectors returns a snapshot of the registry in evaluation order.
func (s *Switchboard) Detectors() []*model.Detector {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]*model.Detector(nil), s.detectors...)
}

// FindMatchingConfigurations evaluates every applicable detector against the
// state and returns all matches, best first. A failing detector is logged
// and skipped; it never aborts the run.
func (s *Switchboard) FindMatchingConfigurations(ctx context.Context, state *model.EquipmentState) ([]*model.Match, error) {
	s.mu.RLock()
	detectors := s.detectors
	initialized := s.initialized
	s.mu.RUnlock()

	if !initialized {
		return nil, common.ErrNotInitialized
	}
	if state == nil {
		return nil, fmt.Errorf("%w: no equipment state", common.ErrStateUnavailable)
	}
	if err := state.Validate(); err != nil {
		return nil, fmt.Errorf("invalid equipment state: %w", err)
	}

	var matches []*model.Match
	for _, d := range detectors {
		if !d.AppliesToUtility(state.UtilityName) {
			continue
		}

		match, err := runDetector(ctx, d, state)
		if err != nil {
			common.LogError(err, "Detector failed, continuing", common.Fields{
				"detector": d.ConfigID,
				"system":   state.SystemNumber,
			})
			continue
		}
		if match == nil {
			continue
		}

		match.Source = d.Name
		if match.ConfigID == "" {
			match.ConfigID = d.ConfigID
		}
		if match.Priority == 0 {
			match.Priority = d.Priority
		}
		match.SystemPrefix = state.SystemPrefix
		match.SystemNumber = state.SystemNumber
		if match.DetectedAt.IsZero() {
			match.DetectedAt = time.Now()
		}
		if match.MultiSystem != nil && len(match.MultiSystem.AffectedSystems) == 0 {
			match.MultiSystem.AffectedSystems = d.AffectedSystems
		}
		matches = append(matches, match)

		slog.Debug("Detector matched",
			"detector", d.ConfigID,
			"system", state.SystemNumber,
			"confidence", match.Confidence)
	}

	model.SortMatches(matches)
	return matches, nil
}

// BestMatch returns the single highest-ranked match for the state.
func (s *Switchboard) BestMatch(ctx context.Context, state *model.EquipmentState) (*model.Match, error) {
	matches, err := s.FindMatchingConfigurations(ctx, state)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("%w for system %d", common.ErrNoMatches, state.SystemNumber)
	}
	return matches[0], nil
}

// TopMatches returns up to limit matches, best first.
func (s *Switchboard) TopMatches(ctx context.Context, state *model.EquipmentState, limit int) ([]*model.Match, error) {
	matches, err := s.FindMatchingConfigurations(ctx, state)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

// AnalyzeAllSystems evaluates every extracted subsystem. Subsystem 2 runs
// first: multi-system configurations are anchored there and mirrored onto the
// other subsystems they span, which are then excluded from independent
// evaluation. The remaining subsystems are evaluated concurrently.
func (s *Switchboard) AnalyzeAllSystems(ctx context.Context, states map[int]*model.EquipmentState) (*model.MultiSystemResult, error) {
	s.mu.RLock()
	initialized := s.initialized
	s.mu.RUnlock()
	if !initialized {
		return nil, common.ErrNotInitialized
	}

	result := model.NewMultiSystemResult()
	handled := make(map[int]bool)

	if state2, ok := states[2]; ok {
		matches, err := s.FindMatchingConfigurations(ctx, state2)
		if err != nil {
			return nil, fmt.Errorf("analyzing system 2: %w", err)
		}
		if len(matches) > 0 {
			result.Systems[2] = matches
			result.BestMatches[2] = matches[0]
			handled[2] = true

			if best := matches[0]; best.MultiSystem != nil {
				s.propagateMultiSystem(best, states, result, handled)
			}
		}
	}

	// Remaining subsystems are independent of each other.
	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	for n, state := range states {
		if handled[n] {
			continue
		}
		wg.Add(1)
		go func(n int, state *model.EquipmentState) {
			defer wg.Done()
			matches, err := s.FindMatchingConfigurations(ctx, state)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.Warnings = append(result.Warnings,
					fmt.Sprintf("System %d analysis failed: %v", n, err))
				return
			}
			if len(matches) == 0 {
				result.Warnings = append(result.Warnings,
					fmt.Sprintf("System %d has equipment but no configuration matched", n))
				return
			}
			result.Systems[n] = matches
			result.BestMatches[n] = matches[0]
		}(n, state)
	}
	wg.Wait()

	result.TotalSystemsAnalyzed = len(states)
	for _, matches := range result.Systems {
		result.TotalMatchesFound += len(matches)
	}
	for n := 1; n <= 4; n++ {
		best, ok := result.BestMatches[n]
		if !ok {
			continue
		}
		result.Recommendations = append(result.Recommendations,
			fmt.Sprintf("System %d: %s (%s confidence)", n, best.ConfigName, best.Confidence))
		result.Warnings = append(result.Warnings, best.Warnings...)
	}

	slog.Info("Multi-system analysis complete",
		"systems", result.TotalSystemsAnalyzed,
		"matches", result.TotalMatchesFound)
	return result, nil
}

// propagateMultiSystem mirrors an anchored multi-system match onto the other
// subsystems it spans, per the detector's affected-system list. Only
// subsystems that actually have equipment receive a mirrored match.
func (s *Switchboard) propagateMultiSystem(best *model.Match, states map[int]*model.EquipmentState, result *model.MultiSystemResult, handled map[int]bool) {
	for _, n := range best.MultiSystem.AffectedSystems {
		if n == best.SystemNumber || handled[n] {
			continue
		}
		if _, ok := states[n]; !ok {
			continue
		}
		clone := best.CloneForSystem(n,
			fmt.Sprintf("Mirrored from system %d multi-system detection", best.SystemNumber))
		result.Systems[n] = []*model.Match{clone}
		result.BestMatches[n] = clone
		handled[n] = true

		slog.Debug("Propagated multi-system match",
			"config", best.ConfigID,
			"from", best.SystemNumber,
			"to", n)
	}
}

// runDetector applies the quick check then the full detection, converting a
// panic into an error so one bad rule cannot take down the analysis.
func runDetector(ctx context.Context, d *model.Detector, state *model.EquipmentState) (match *model.Match, err error) {
	defer func() {
		if r := recover(); r != nil {
			match = nil
			err = fmt.Errorf("%w: %s panicked: %v", common.ErrDetectorFailed, d.ConfigID, r)
		}
	}()

	if d.QuickCheck != nil && !d.QuickCheck(state) {
		return nil, nil
	}
	return d.Detect(ctx, state)
}
