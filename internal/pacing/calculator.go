package pacing

import (
	"time"

	"github.com/pacing-engine/internal/types"
)

// ToDateResult holds the cumulative planned total and the date-prorated
// expected-to-date value for one line item's schedule.
type ToDateResult struct {
	BookedTotal    float64 `json:"bookedTotal"`
	ExpectedToDate float64 `json:"expectedToDate"`
}

// metricValue selects the planned figure a proration runs over
func metricValue(amount, deliverable float64, metric types.Metric) float64 {
	if metric == types.MetricDeliverable {
		return deliverable
	}
	return amount
}

// prorate applies the core day-fraction rule to one date window:
// before the window contributes 0, past the window contributes the full
// total, inside the window contributes total * elapsedDays/totalDays with
// both day counts inclusive and the fraction clamped to [0,1].
func prorate(total float64, start, end, asOf time.Time) float64 {
	if DateOnly(asOf).Before(DateOnly(start)) {
		return 0
	}
	if SameOrAfter(asOf, end) {
		return total
	}

	totalDays := DaysBetweenInclusive(start, end)
	if totalDays == 0 {
		return total
	}
	elapsedDays := DaysBetweenInclusive(start, asOf)

	fraction := float64(elapsedDays) / float64(totalDays)
	if fraction < 0 {
		fraction = 0
	}
	if fraction > 1 {
		fraction = 1
	}

	return total * fraction
}

// ComputeToDate prorates a burst schedule to the as-of date. BookedTotal is
// the sum of the selected metric over all bursts with no date filtering;
// ExpectedToDate sums each burst's prorated contribution. Overlapping bursts
// are additive. The computation is pure: identical inputs yield identical
// results.
func ComputeToDate(bursts []types.Burst, asOf time.Time, metric types.Metric) ToDateResult {
	var result ToDateResult

	for _, b := range bursts {
		total := metricValue(b.PlannedAmount, b.PlannedDeliverable, metric)
		result.BookedTotal += total
		result.ExpectedToDate += prorate(total, b.StartDate, b.EndDate, asOf)
	}

	return result
}

// ComputeMonthlyToDate prorates a month-bucketed schedule to the as-of date.
// The same day-fraction rule applies per calendar month, except the month
// window is clamped to the campaign's own start and end dates whenever the
// campaign starts or ends inside that month, so a partial first or last month
// prorates over the days the campaign actually runs.
func ComputeMonthlyToDate(months []types.MonthlyPlan, campaignStart, campaignEnd, asOf time.Time, metric types.Metric) ToDateResult {
	var result ToDateResult

	hasBounds := !campaignStart.IsZero() && !campaignEnd.IsZero()

	for _, m := range months {
		total := metricValue(m.PlannedAmount, m.PlannedDeliverable, metric)
		result.BookedTotal += total

		start, end := MonthBounds(m.Year, m.Month)
		if hasBounds {
			if DateOnly(campaignStart).After(start) {
				start = DateOnly(campaignStart)
			}
			if DateOnly(campaignEnd).Before(end) {
				end = DateOnly(campaignEnd)
			}
			// A planned month entirely outside the campaign bounds keeps its
			// full calendar window rather than an empty one.
			if end.Before(start) {
				start, end = MonthBounds(m.Year, m.Month)
			}
		}

		result.ExpectedToDate += prorate(total, start, end, asOf)
	}

	return result
}

// ComputeScheduleToDate dispatches on the schedule representation: burst
// schedules use per-burst proration, monthly schedules use the month-bucket
// variant clamped to campaign bounds.
func ComputeScheduleToDate(schedule *types.LineItemSchedule, asOf time.Time, metric types.Metric) ToDateResult {
	if schedule.Kind == types.ScheduleMonthly {
		return ComputeMonthlyToDate(schedule.Monthly, schedule.CampaignStart, schedule.CampaignEnd, asOf, metric)
	}
	return ComputeToDate(schedule.Bursts, asOf, metric)
}
