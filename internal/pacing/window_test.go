package pacing

import (
	"testing"
	"time"
)

func fixedClock(t *testing.T, now time.Time) *Clock {
	t.Helper()
	return NewClockAt(time.UTC, func() time.Time { return now })
}

func TestResolvePreset_TrailingWindows(t *testing.T) {
	// Today is June 15, so every trailing window ends June 14.
	clock := fixedClock(t, time.Date(2024, time.June, 15, 10, 0, 0, 0, time.UTC))

	tests := []struct {
		preset    WindowPreset
		wantStart time.Time
		wantEnd   time.Time
	}{
		{PresetLast30, date(2024, time.May, 16), date(2024, time.June, 14)},
		{PresetLast60, date(2024, time.April, 16), date(2024, time.June, 14)},
		{PresetLast90, date(2024, time.March, 17), date(2024, time.June, 14)},
	}

	for _, tt := range tests {
		t.Run(string(tt.preset), func(t *testing.T) {
			got, err := ResolvePreset(tt.preset, clock, time.Time{}, time.Time{})
			if err != nil {
				t.Fatalf("ResolvePreset() error = %v", err)
			}
			if !got.Start.Equal(tt.wantStart) || !got.End.Equal(tt.wantEnd) {
				t.Errorf("ResolvePreset(%s) = %v..%v, want %v..%v",
					tt.preset, got.Start, got.End, tt.wantStart, tt.wantEnd)
			}
			if days := DaysBetweenInclusive(got.Start, got.End); days != windowDays(tt.preset) {
				t.Errorf("window spans %d days", days)
			}
		})
	}
}

func windowDays(preset WindowPreset) int {
	switch preset {
	case PresetLast30:
		return 30
	case PresetLast60:
		return 60
	default:
		return 90
	}
}

func TestResolvePreset_CampaignDates(t *testing.T) {
	clock := fixedClock(t, time.Date(2024, time.June, 15, 10, 0, 0, 0, time.UTC))

	start := date(2024, time.February, 1)
	end := date(2024, time.April, 30)

	got, err := ResolvePreset(PresetCampaignDates, clock, start, end)
	if err != nil {
		t.Fatalf("ResolvePreset() error = %v", err)
	}
	if !got.Start.Equal(start) || !got.End.Equal(end) {
		t.Errorf("ResolvePreset(CAMPAIGN_DATES) = %v..%v, want %v..%v", got.Start, got.End, start, end)
	}

	if _, err := ResolvePreset(PresetCampaignDates, clock, time.Time{}, time.Time{}); err == nil {
		t.Error("expected error when campaign dates are missing")
	}
}

func TestResolvePreset_Unknown(t *testing.T) {
	clock := fixedClock(t, time.Date(2024, time.June, 15, 10, 0, 0, 0, time.UTC))

	if _, err := ResolvePreset("LAST_7", clock, time.Time{}, time.Time{}); err == nil {
		t.Error("expected error for unknown preset")
	}
}
