package pacing

import (
	"math"

	"github.com/pacing-engine/internal/types"
)

// On-pace band boundaries, as percentages of expected-to-date. The band is a
// fixed design constant applied uniformly to spend and deliverable pacing and
// to campaign-level rollups.
const (
	// UnderThreshold is the ratio below which delivery is under pace
	UnderThreshold = 90.0
	// OverThreshold is the ratio above which delivery is over pace
	OverThreshold = 110.0
)

// Classify compares actual-to-date delivery against expected-to-date and
// assigns a status band. When expected is zero (or not a finite number) there
// is no defensible basis for under/over, so the status is ON. The band is
// inclusive: a ratio of exactly 90 or exactly 110 is ON.
func Classify(actualToDate, expectedToDate float64) types.PaceStatus {
	if expectedToDate <= 0 || math.IsNaN(expectedToDate) || math.IsInf(expectedToDate, 0) {
		return types.PaceOn
	}

	ratio := actualToDate / expectedToDate * 100

	switch {
	case ratio < UnderThreshold:
		return types.PaceUnder
	case ratio > OverThreshold:
		return types.PaceOver
	default:
		return types.PaceOn
	}
}
