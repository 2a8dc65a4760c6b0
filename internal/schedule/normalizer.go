// Package schedule normalizes raw planned-burst payloads into validated
// bursts. Burst data arrives from the media-plan store as loosely-typed JSON
// authored by planning tools, so this package is the single boundary where
// untyped records become the canonical Burst type. Nothing downstream ever
// sees a raw payload.
package schedule

import (
	"encoding/json"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/pacing-engine/internal/logging"
	"github.com/pacing-engine/internal/pacing"
	"github.com/pacing-engine/internal/types"
)

// rawBurst mirrors the shapes planning tools emit. Field values may be
// numbers or strings; dates may carry a time component.
type rawBurst struct {
	StartDate    json.RawMessage `json:"startDate"`
	StartDateAlt json.RawMessage `json:"start_date"`
	EndDate      json.RawMessage `json:"endDate"`
	EndDateAlt   json.RawMessage `json:"end_date"`
	Amount       json.RawMessage `json:"plannedAmount"`
	Budget       json.RawMessage `json:"budget"`
	MediaCost    json.RawMessage `json:"media_cost"`
	Deliverable  json.RawMessage `json:"plannedDeliverable"`
	Deliverables json.RawMessage `json:"deliverables"`
	Rate         json.RawMessage `json:"rate"`
	UnitRate     json.RawMessage `json:"unit_rate"`
}

// dateLayouts lists the date formats planning tools have been seen to emit
var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02 15:04:05",
	"02/01/2006",
}

// NormalizeBursts deserializes a raw burst payload into an ordered, validated
// burst list. The payload may be a JSON array, a single object, or a JSON
// string wrapping either. Malformed input yields an empty list rather than an
// error: a broken schedule on one line item must not fail a whole pacing
// request. For buy types where the deliverable is the authoritative planned
// metric, a missing deliverable is derived from plannedAmount / rate.
func NormalizeBursts(raw []byte, buyType types.BuyType) []types.Burst {
	records := decodeRecords(raw)
	if len(records) == 0 {
		return []types.Burst{}
	}

	bursts := make([]types.Burst, 0, len(records))
	dropped := 0

	for _, r := range records {
		start, okStart := coerceDate(firstPresent(r.StartDate, r.StartDateAlt))
		end, okEnd := coerceDate(firstPresent(r.EndDate, r.EndDateAlt))
		if !okStart || !okEnd || end.Before(start) {
			dropped++
			continue
		}

		amount := coerceNumber(firstPresent(r.Amount, r.Budget, r.MediaCost))
		deliverable := coerceNumber(firstPresent(r.Deliverable, r.Deliverables))
		rate := coerceNumber(firstPresent(r.Rate, r.UnitRate))

		if deliverable == 0 && rate > 0 && buyType.DeliverableAuthoritative() {
			deliverable = amount / rate
		}

		bursts = append(bursts, types.Burst{
			StartDate:          start,
			EndDate:            end,
			PlannedAmount:      amount,
			PlannedDeliverable: deliverable,
		})
	}

	if dropped > 0 {
		logging.WithField("droppedBursts", dropped).Warn("Dropped bursts with unusable date windows")
	}

	sort.SliceStable(bursts, func(i, j int) bool {
		return bursts[i].StartDate.Before(bursts[j].StartDate)
	})

	return bursts
}

// decodeRecords unwraps the accepted payload shapes into raw burst records
func decodeRecords(raw []byte) []rawBurst {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return nil
	}

	// A JSON string wrapping the real payload: unwrap one level and recurse.
	if strings.HasPrefix(trimmed, `"`) {
		var inner string
		if err := json.Unmarshal([]byte(trimmed), &inner); err != nil {
			return nil
		}
		return decodeRecords([]byte(inner))
	}

	if strings.HasPrefix(trimmed, "[") {
		var records []rawBurst
		if err := json.Unmarshal([]byte(trimmed), &records); err != nil {
			return nil
		}
		return records
	}

	var record rawBurst
	if err := json.Unmarshal([]byte(trimmed), &record); err != nil {
		return nil
	}
	return []rawBurst{record}
}

// firstPresent returns the first raw value that is present and non-null
func firstPresent(values ...json.RawMessage) json.RawMessage {
	for _, v := range values {
		if len(v) > 0 && string(v) != "null" {
			return v
		}
	}
	return nil
}

// coerceDate parses a raw JSON value into a date-only value
func coerceDate(raw json.RawMessage) (time.Time, bool) {
	if raw == nil {
		return time.Time{}, false
	}

	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return time.Time{}, false
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return pacing.DateOnly(t), true
		}
	}

	return time.Time{}, false
}

// coerceNumber parses a raw JSON value into a non-negative float. String
// values are stripped of currency symbols, commas, and other non-numeric
// characters before parsing; anything unparseable defaults to zero.
func coerceNumber(raw json.RawMessage) float64 {
	if raw == nil {
		return 0
	}

	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		if f < 0 {
			return 0
		}
		return f
	}

	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0
	}

	var b strings.Builder
	for _, r := range s {
		if (r >= '0' && r <= '9') || r == '.' || r == '-' {
			b.WriteRune(r)
		}
	}

	f, err := strconv.ParseFloat(b.String(), 64)
	if err != nil || f < 0 {
		return 0
	}
	return f
}
