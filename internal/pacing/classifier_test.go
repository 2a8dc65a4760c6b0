package pacing

import (
	"math"
	"testing"

	"github.com/pacing-engine/internal/types"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		actual   float64
		expected float64
		want     types.PaceStatus
	}{
		{"well under pace", 500, 1100, types.PaceUnder},
		{"ratio 95 is on pace", 95, 100, types.PaceOn},
		{"well over pace", 2000, 1100, types.PaceOver},
		{"exactly 90 percent is on pace", 90, 100, types.PaceOn},
		{"exactly 110 percent is on pace", 110, 100, types.PaceOn},
		{"just below 90 percent is under", 89.99, 100, types.PaceUnder},
		{"just above 110 percent is over", 110.01, 100, types.PaceOver},
		{"zero expected is on pace", 500, 0, types.PaceOn},
		{"negative expected is on pace", 500, -10, types.PaceOn},
		{"zero actual against positive expected is under", 0, 100, types.PaceUnder},
		{"zero actual and zero expected is on pace", 0, 0, types.PaceOn},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.actual, tt.expected); got != tt.want {
				t.Errorf("Classify(%v, %v) = %v, want %v", tt.actual, tt.expected, got, tt.want)
			}
		})
	}
}

func TestClassify_NonFiniteExpected(t *testing.T) {
	if got := Classify(100, math.NaN()); got != types.PaceOn {
		t.Errorf("Classify with NaN expected = %v, want ON", got)
	}
	if got := Classify(100, math.Inf(1)); got != types.PaceOn {
		t.Errorf("Classify with +Inf expected = %v, want ON", got)
	}
}
