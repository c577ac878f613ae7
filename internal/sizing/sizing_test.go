package sizing

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

var testLadder = []int{
	15, 20, 25, 30, 35, 40, 45, 50, 60, 70, 80, 90, 100,
	110, 125, 150, 175, 200, 225, 250, 300, 350, 400,
}

func TestMinimumAmps(t *testing.T) {
	tests := []struct {
		name       string
		continuous float64
		want       int
	}{
		{"zero stays zero", 0, 0},
		{"whole result", 40, 50},
		{"fractional result rounds up", 38.5, 49},
		{"just over a whole amp rounds up", 32.01, 41},
		{"sub-amp output still rounds up", 0.5, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MinimumAmps(tt.continuous))
		})
	}
}

func TestNextStandardRating(t *testing.T) {
	s := NewSizer(testLadder)

	tests := []struct {
		name     string
		required int
		want     int
	}{
		{"below the ladder takes the first rung", 1, 15},
		{"exact ladder hit", 60, 60},
		{"between rungs rounds up", 79, 80},
		{"one over a rung takes the next", 201, 225},
		{"top of the ladder", 400, 400},
		{"above the ladder is unsizeable", 401, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, s.NextStandardRating(tt.required))
		})
	}
}

func TestNextStandardRatingSortsLadder(t *testing.T) {
	// Configured ladders may arrive unsorted; the sizer must not skip
	// rungs because of input order.
	s := NewSizer([]int{100, 20, 60, 15})
	assert.Equal(t, 20, s.NextStandardRating(16))
	assert.Equal(t, 100, s.NextStandardRating(61))
}

func TestForContinuousOutput(t *testing.T) {
	s := NewSizer(testLadder)

	tests := []struct {
		name       string
		continuous float64
		want       int
	}{
		{"62.5A lands on the 80A rung", 62.5, 80},
		{"24A lands on the 30A rung", 24, 30},
		{"exact rung after the 125% rule", 48, 60},
		{"beyond the ladder", 500, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, s.ForContinuousOutput(tt.continuous))
		})
	}
}
