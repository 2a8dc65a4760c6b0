package pacing

import (
	"fmt"
	"time"
)

// WindowPreset names a relative date-window preset consumed by the calling
// layer. Presets resolve to concrete dates before reaching the engine; the
// gateway only ever sees a resolved DateWindow.
type WindowPreset string

const (
	// PresetLast30 is the trailing 30 days ending yesterday
	PresetLast30 WindowPreset = "LAST_30"
	// PresetLast60 is the trailing 60 days ending yesterday
	PresetLast60 WindowPreset = "LAST_60"
	// PresetLast90 is the trailing 90 days ending yesterday
	PresetLast90 WindowPreset = "LAST_90"
	// PresetCampaignDates is the campaign's own start and end dates
	PresetCampaignDates WindowPreset = "CAMPAIGN_DATES"
)

// DateWindow is a concrete inclusive date range
type DateWindow struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// ResolvePreset maps a preset to a concrete date window using the business
// clock. CAMPAIGN_DATES requires campaign bounds.
func ResolvePreset(preset WindowPreset, clock *Clock, campaignStart, campaignEnd time.Time) (DateWindow, error) {
	yesterday := clock.Yesterday()

	switch preset {
	case PresetLast30:
		return DateWindow{Start: yesterday.AddDate(0, 0, -29), End: yesterday}, nil
	case PresetLast60:
		return DateWindow{Start: yesterday.AddDate(0, 0, -59), End: yesterday}, nil
	case PresetLast90:
		return DateWindow{Start: yesterday.AddDate(0, 0, -89), End: yesterday}, nil
	case PresetCampaignDates:
		if campaignStart.IsZero() || campaignEnd.IsZero() {
			return DateWindow{}, fmt.Errorf("preset %s requires campaign dates", preset)
		}
		return DateWindow{Start: DateOnly(campaignStart), End: DateOnly(campaignEnd)}, nil
	default:
		return DateWindow{}, fmt.Errorf("unknown date window preset: %s", preset)
	}
}
