package switchboard

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solarcraft/bosforge/internal/common"
	"github.com/solarcraft/bosforge/internal/model"
)

func testState(systemNumber int, utility string) *model.EquipmentState {
	return &model.EquipmentState{
		ProjectID:    "P-1",
		SystemPrefix: fmt.Sprintf("sys%d_", systemNumber),
		SystemNumber: systemNumber,
		UtilityName:  utility,
	}
}

func staticDetector(id string, priority int, confidence model.Confidence, utilities ...string) *model.Detector {
	if len(utilities) == 0 {
		utilities = []string{"*"}
	}
	return &model.Detector{
		Name:      id,
		ConfigID:  id,
		Priority:  priority,
		Utilities: utilities,
		Detect: func(_ context.Context, _ *model.EquipmentState) (*model.Match, error) {
			return &model.Match{
				ConfigID:   id,
				ConfigName: id,
				Confidence: confidence,
			}, nil
		},
	}
}

func TestInitValidatesAndIsIdempotent(t *testing.T) {
	sb := New()
	require.NoError(t, sb.Init([]*model.Detector{staticDetector("a", 10, model.ConfidenceHigh)}))
	assert.Len(t, sb.Detectors(), 1)

	// Second init is a no-op, not a duplicate registration.
	require.NoError(t, sb.Init([]*model.Detector{staticDetector("b", 20, model.ConfidenceHigh)}))
	assert.Len(t, sb.Detectors(), 1)

	sb.Reset()
	require.NoError(t, sb.Init([]*model.Detector{staticDetector("b", 20, model.ConfidenceHigh)}))
	assert.Equal(t, "b", sb.Detectors()[0].ConfigID)
}

func TestInitRejectsMalformedDetector(t *testing.T) {
	sb := New()
	err := sb.Init([]*model.Detector{{Name: "no-id"}})
	assert.Error(t, err)
}

func TestFindBeforeInit(t *testing.T) {
	sb := New()
	_, err := sb.FindMatchingConfigurations(context.Background(), testState(1, "PG&E"))
	assert.ErrorIs(t, err, common.ErrNotInitialized)
}

func TestRankingTotalOrder(t *testing.T) {
	sb := New()
	require.NoError(t, sb.Init([]*model.Detector{
		staticDetector("generic-low", 50, model.ConfidenceLow),
		staticDetector("vendor-medium", 10, model.ConfidenceMedium),
		staticDetector("vendor-exact", 10, model.ConfidenceExact),
		staticDetector("band-high", 20, model.ConfidenceHigh),
	}))

	matches, err := sb.FindMatchingConfigurations(context.Background(), testState(1, "PG&E"))
	require.NoError(t, err)
	require.Len(t, matches, 4)

	// Priority dominates; confidence breaks ties within a band.
	assert.Equal(t, "vendor-exact", matches[0].ConfigID)
	assert.Equal(t, "vendor-medium", matches[1].ConfigID)
	assert.Equal(t, "band-high", matches[2].ConfigID)
	assert.Equal(t, "generic-low", matches[3].ConfigID)
}

func TestUtilityFilter(t *testing.T) {
	sb := New()
	require.NoError(t, sb.Init([]*model.Detector{
		staticDetector("pge-only", 10, model.ConfidenceHigh, "Pacific Gas & Electric"),
		staticDetector("anywhere", 50, model.ConfidenceLow, "*"),
	}))

	matches, err := sb.FindMatchingConfigurations(context.Background(), testState(1, "SDG&E"))
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "anywhere", matches[0].ConfigID)

	// Utility names compare case-insensitively.
	matches, err = sb.FindMatchingConfigurations(context.Background(), testState(1, "pacific gas & electric"))
	require.NoError(t, err)
	assert.Len(t, matches, 2)
}

func TestQuickCheckShortCircuits(t *testing.T) {
	detectCalled := false
	d := &model.Detector{
		Name:       "gated",
		ConfigID:   "gated",
		Priority:   10,
		Utilities:  []string{"*"},
		QuickCheck: func(s *model.EquipmentState) bool { return s.HasSolarPanels },
		Detect: func(_ context.Context, _ *model.EquipmentState) (*model.Match, error) {
			detectCalled = true
			return &model.Match{ConfigID: "gated", Confidence: model.ConfidenceHigh}, nil
		},
	}

	sb := New()
	require.NoError(t, sb.Init([]*model.Detector{d}))

	matches, err := sb.FindMatchingConfigurations(context.Background(), testState(1, "PG&E"))
	require.NoError(t, err)
	assert.Empty(t, matches)
	assert.False(t, detectCalled)
}

func TestDetectorFailureIsIsolated(t *testing.T) {
	failing := &model.Detector{
		Name:      "failing",
		ConfigID:  "failing",
		Priority:  1,
		Utilities: []string{"*"},
		Detect: func(_ context.Context, _ *model.EquipmentState) (*model.Match, error) {
			return nil, errors.New("backend unavailable")
		},
	}
	panicking := &model.Detector{
		Name:      "panicking",
		ConfigID:  "panicking",
		Priority:  2,
		Utilities: []string{"*"},
		Detect: func(_ context.Context, _ *model.EquipmentState) (*model.Match, error) {
			panic("nil map write")
		},
	}

	sb := New()
	require.NoError(t, sb.Init([]*model.Detector{
		failing,
		panicking,
		staticDetector("survivor", 50, model.ConfidenceLow),
	}))

	matches, err := sb.FindMatchingConfigurations(context.Background(), testState(1, "PG&E"))
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "survivor", matches[0].ConfigID)
}

func TestNilStateRejected(t *testing.T) {
	sb := New()
	require.NoError(t, sb.Init([]*model.Detector{staticDetector("a", 10, model.ConfidenceHigh)}))

	// An unconfigured subsystem extracts to a nil state; the switchboard
	// must refuse it instead of dereferencing it.
	_, err := sb.FindMatchingConfigurations(context.Background(), nil)
	assert.ErrorIs(t, err, common.ErrStateUnavailable)

	_, err = sb.TopMatches(context.Background(), nil, 3)
	assert.ErrorIs(t, err, common.ErrStateUnavailable)

	_, err = sb.BestMatch(context.Background(), nil)
	assert.ErrorIs(t, err, common.ErrStateUnavailable)
}

func TestBestMatchNoMatches(t *testing.T) {
	sb := New()
	require.NoError(t, sb.Init([]*model.Detector{
		staticDetector("pge-only", 10, model.ConfidenceHigh, "Pacific Gas & Electric"),
	}))

	_, err := sb.BestMatch(context.Background(), testState(1, "SDG&E"))
	assert.ErrorIs(t, err, common.ErrNoMatches)
}

func TestTopMatchesLimit(t *testing.T) {
	sb := New()
	require.NoError(t, sb.Init([]*model.Detector{
		staticDetector("a", 10, model.ConfidenceExact),
		staticDetector("b", 20, model.ConfidenceHigh),
		staticDetector("c", 30, model.ConfidenceMedium),
	}))

	matches, err := sb.TopMatches(context.Background(), testState(1, "PG&E"), 2)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "a", matches[0].ConfigID)
}

func TestMatchAnnotation(t *testing.T) {
	sb := New()
	require.NoError(t, sb.Init([]*model.Detector{staticDetector("a", 10, model.ConfidenceHigh)}))

	state := testState(3, "PG&E")
	matches, err := sb.FindMatchingConfigurations(context.Background(), state)
	require.NoError(t, err)
	require.Len(t, matches, 1)

	m := matches[0]
	assert.Equal(t, "a", m.Source)
	assert.Equal(t, 10, m.Priority)
	assert.Equal(t, "sys3_", m.SystemPrefix)
	assert.Equal(t, 3, m.SystemNumber)
	assert.False(t, m.DetectedAt.IsZero())
}

func TestAnalyzeAllSystemsMultiSystemPropagation(t *testing.T) {
	multiDetector := &model.Detector{
		Name:            "storz-multi",
		ConfigID:        "storz-multi",
		Priority:        5,
		Utilities:       []string{"*"},
		IsMultiSystem:   true,
		AffectedSystems: []int{1, 2, 3},
		Detect: func(_ context.Context, s *model.EquipmentState) (*model.Match, error) {
			if s.SystemNumber != 2 {
				return nil, nil
			}
			return &model.Match{
				ConfigID:   "storz-multi",
				ConfigName: "Storz Multi-System",
				Confidence: model.ConfidenceExact,
				MultiSystem: &model.MultiSystemConfig{
					TotalSystems: 3,
					// No landing point recorded for system 3; the span
					// comes from the detector's affected systems, not
					// from this map.
					CombinesAt: map[int]string{
						1: "Main Panel A",
						2: "Sol-Ark",
					},
					CombineMethod: "post-combine panel",
				},
			}, nil
		},
	}

	sb := New()
	require.NoError(t, sb.Init([]*model.Detector{
		multiDetector,
		staticDetector("fallback", 50, model.ConfidenceLow),
	}))

	states := map[int]*model.EquipmentState{
		1: testState(1, "PG&E"),
		2: testState(2, "PG&E"),
		3: testState(3, "PG&E"),
		4: testState(4, "PG&E"),
	}

	result, err := sb.AnalyzeAllSystems(context.Background(), states)
	require.NoError(t, err)

	// Systems 1 and 3 mirror the anchor from system 2.
	require.Contains(t, result.BestMatches, 1)
	require.Contains(t, result.BestMatches, 3)
	require.NotNil(t, result.BestMatches[2].MultiSystem)
	assert.Equal(t, []int{1, 2, 3}, result.BestMatches[2].MultiSystem.AffectedSystems)
	assert.Equal(t, "storz-multi", result.BestMatches[1].ConfigID)
	assert.Equal(t, "storz-multi", result.BestMatches[2].ConfigID)
	assert.Equal(t, "storz-multi", result.BestMatches[3].ConfigID)
	assert.Equal(t, "sys1_", result.BestMatches[1].SystemPrefix)
	assert.NotEmpty(t, result.BestMatches[1].Notes)

	// System 4 is outside the span and evaluated independently.
	assert.Equal(t, "fallback", result.BestMatches[4].ConfigID)

	assert.Equal(t, 4, result.TotalSystemsAnalyzed)
	assert.NotEmpty(t, result.Recommendations)
}

func TestAnalyzeAllSystemsIndependent(t *testing.T) {
	sb := New()
	require.NoError(t, sb.Init([]*model.Detector{
		staticDetector("fallback", 50, model.ConfidenceLow),
	}))

	states := map[int]*model.EquipmentState{
		1: testState(1, "PG&E"),
		4: testState(4, "PG&E"),
	}

	result, err := sb.AnalyzeAllSystems(context.Background(), states)
	require.NoError(t, err)

	assert.Len(t, result.BestMatches, 2)
	assert.Equal(t, 2, result.TotalSystemsAnalyzed)
	assert.Equal(t, 2, result.TotalMatchesFound)
}
