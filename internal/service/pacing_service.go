// Package service implements the pacing pipeline: it joins planned schedules
// with actual delivery and produces per-line-item pacing results and
// portfolio rollups.
package service

import (
	"context"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pacing-engine/internal/errors"
	"github.com/pacing-engine/internal/logging"
	"github.com/pacing-engine/internal/pacing"
	"github.com/pacing-engine/internal/storage"
	"github.com/pacing-engine/internal/types"
)

// ScheduleReader reads planned schedules from the media-plan store
type ScheduleReader interface {
	GetByCampaign(ctx context.Context, campaignID string) ([]*types.LineItemSchedule, error)
	GetAll(ctx context.Context) ([]*types.LineItemSchedule, error)
}

// DeliveryFetcher fetches actual delivery rows from the warehouse
type DeliveryFetcher interface {
	Fetch(ctx context.Context, lineItemIDs []string, window pacing.DateWindow) (*storage.FetchResult, error)
}

// PacingService orchestrates one pacing request: schedules and actuals are
// fetched concurrently, joined, and classified. The service holds no mutable
// state between calls.
type PacingService struct {
	schedules ScheduleReader
	delivery  DeliveryFetcher
	clock     *pacing.Clock
}

// NewPacingService creates a new pacing service
func NewPacingService(schedules ScheduleReader, delivery DeliveryFetcher, clock *pacing.Clock) *PacingService {
	return &PacingService{
		schedules: schedules,
		delivery:  delivery,
		clock:     clock,
	}
}

// ReportInput defines one pacing request
type ReportInput struct {
	CampaignID  string              `json:"campaignId"`
	LineItemIDs []string            `json:"lineItemIds"`
	StartDate   *time.Time          `json:"startDate,omitempty"`
	EndDate     *time.Time          `json:"endDate,omitempty"`
	Preset      pacing.WindowPreset `json:"preset,omitempty"`
}

// DeliveryMeta reports how the underlying warehouse fetch went
type DeliveryMeta struct {
	Count           int            `json:"count"`
	Truncated       bool           `json:"truncated"`
	DroppedChannels map[string]int `json:"droppedChannels,omitempty"`
}

// ReportResult is the full pipeline output for one campaign
type ReportResult struct {
	CampaignID string               `json:"campaignId"`
	AsOf       time.Time            `json:"asOf"`
	Results    []types.PacingResult `json:"results"`
	Delivery   DeliveryMeta         `json:"delivery"`
}

// validate fails fast on malformed input before any I/O is attempted
func (s *PacingService) validate(input *ReportInput) error {
	if input == nil {
		return errors.NewValidationError("request", "missing request body")
	}
	if input.CampaignID == "" {
		return errors.NewValidationError("campaignId", "must not be empty")
	}
	if len(input.LineItemIDs) == 0 {
		return errors.NewValidationError("lineItemIds", "must not be empty")
	}
	return nil
}

// resolveWindow turns the request's dates or preset into a concrete window.
// Explicit dates win over a preset; with neither, the campaign's own dates
// apply when known, otherwise the gateway's default clamping takes over.
func (s *PacingService) resolveWindow(input *ReportInput, schedules []*types.LineItemSchedule) (pacing.DateWindow, error) {
	if input.StartDate != nil || input.EndDate != nil {
		var window pacing.DateWindow
		if input.StartDate != nil {
			window.Start = pacing.DateOnly(*input.StartDate)
		}
		if input.EndDate != nil {
			window.End = pacing.DateOnly(*input.EndDate)
		}
		if !window.Start.IsZero() && !window.End.IsZero() && window.End.Before(window.Start) {
			return pacing.DateWindow{}, errors.NewValidationError("endDate", "must not precede startDate")
		}
		return window, nil
	}

	campaignStart, campaignEnd := campaignBounds(schedules)

	if input.Preset != "" {
		window, err := pacing.ResolvePreset(input.Preset, s.clock, campaignStart, campaignEnd)
		if err != nil {
			return pacing.DateWindow{}, errors.NewValidationError("preset", err.Error())
		}
		return window, nil
	}

	return pacing.DateWindow{Start: campaignStart, End: campaignEnd}, nil
}

// Report runs the full pipeline for one campaign: fetch actuals and compute
// expected values concurrently, join, classify.
func (s *PacingService) Report(ctx context.Context, input *ReportInput) (*ReportResult, error) {
	logger := logging.FromContext(ctx)

	if err := s.validate(input); err != nil {
		return nil, err
	}

	schedules, err := s.schedules.GetByCampaign(ctx, input.CampaignID)
	if err != nil {
		return nil, err
	}
	if len(schedules) == 0 {
		return nil, errors.NewNotFoundError("campaign", input.CampaignID)
	}
	schedules = filterSchedules(schedules, input.LineItemIDs)
	if len(schedules) == 0 {
		return nil, errors.NewNotFoundError("line items", input.CampaignID)
	}

	window, err := s.resolveWindow(input, schedules)
	if err != nil {
		return nil, err
	}

	asOf := s.asOf(window)

	// The warehouse fetch is the only blocking I/O; the expected-value
	// computation is pure and runs alongside it. They share no mutable state
	// and join before classification.
	var fetched *storage.FetchResult
	expected := make(map[string]expectedValues, len(schedules))

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		result, err := s.delivery.Fetch(gctx, lineItemIDs(schedules), window)
		if err != nil {
			return err
		}
		fetched = result
		return nil
	})

	g.Go(func() error {
		for _, sched := range schedules {
			expected[sched.LineItemID] = computeExpected(sched, asOf)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	results := joinResults(schedules, fetched.Rows, expected)

	logger.WithFields(map[string]interface{}{
		"campaignId": input.CampaignID,
		"lineItems":  len(results),
		"rows":       fetched.Count,
		"truncated":  fetched.Truncated,
	}).Debug("Pacing report computed")

	return &ReportResult{
		CampaignID: input.CampaignID,
		AsOf:       asOf,
		Results:    results,
		Delivery: DeliveryMeta{
			Count:           fetched.Count,
			Truncated:       fetched.Truncated,
			DroppedChannels: fetched.DroppedChannels,
		},
	}, nil
}

// asOf picks the reference day for proration: yesterday in the business
// timezone, or the window's own end when the window closed earlier. Actuals
// and expected values then cover the same days.
func (s *PacingService) asOf(window pacing.DateWindow) time.Time {
	yesterday := s.clock.Yesterday()
	if !window.End.IsZero() && window.End.Before(yesterday) {
		return window.End
	}
	return yesterday
}

// expectedValues holds both prorations for one line item
type expectedValues struct {
	spend       pacing.ToDateResult
	deliverable pacing.ToDateResult
}

// computeExpected evaluates both metrics for one schedule
func computeExpected(sched *types.LineItemSchedule, asOf time.Time) expectedValues {
	return expectedValues{
		spend:       pacing.ComputeScheduleToDate(sched, asOf, types.MetricSpend),
		deliverable: pacing.ComputeScheduleToDate(sched, asOf, types.MetricDeliverable),
	}
}

// joinResults merges actual delivery rows into the expected values and
// classifies each line item on both metrics.
func joinResults(schedules []*types.LineItemSchedule, rows []types.DeliveryRow, expected map[string]expectedValues) []types.PacingResult {
	spendActuals := make(map[string]float64, len(schedules))
	deliverableActuals := make(map[string]float64, len(schedules))
	buyTypes := make(map[string]types.BuyType, len(schedules))

	for _, sched := range schedules {
		buyTypes[normalizeID(sched.LineItemID)] = sched.BuyType
	}

	for _, row := range rows {
		id := normalizeID(row.LineItemID)
		spendActuals[id] += row.AmountSpent
		deliverableActuals[id] += row.DeliverableActual(buyTypes[id])
	}

	results := make([]types.PacingResult, 0, len(schedules))
	for _, sched := range schedules {
		id := normalizeID(sched.LineItemID)
		exp := expected[sched.LineItemID]

		results = append(results, types.PacingResult{
			LineItemID:                sched.LineItemID,
			CampaignID:                sched.CampaignID,
			ClientID:                  sched.ClientID,
			SpendToDate:               spendActuals[id],
			PlannedSpendToDate:        exp.spend.BookedTotal,
			ExpectedSpendToDate:       exp.spend.ExpectedToDate,
			SpendPaceStatus:           pacing.Classify(spendActuals[id], exp.spend.ExpectedToDate),
			DeliverableToDate:         deliverableActuals[id],
			PlannedDeliverableToDate:  exp.deliverable.BookedTotal,
			ExpectedDeliverableToDate: exp.deliverable.ExpectedToDate,
			DeliverablePaceStatus:     pacing.Classify(deliverableActuals[id], exp.deliverable.ExpectedToDate),
		})
	}

	return results
}

// campaignBounds returns the earliest start and latest end across schedules
func campaignBounds(schedules []*types.LineItemSchedule) (time.Time, time.Time) {
	var start, end time.Time

	for _, sched := range schedules {
		candidates := [][2]time.Time{{sched.CampaignStart, sched.CampaignEnd}}
		for _, b := range sched.Bursts {
			candidates = append(candidates, [2]time.Time{b.StartDate, b.EndDate})
		}
		for _, c := range candidates {
			if !c[0].IsZero() && (start.IsZero() || c[0].Before(start)) {
				start = c[0]
			}
			if !c[1].IsZero() && (end.IsZero() || c[1].After(end)) {
				end = c[1]
			}
		}
	}

	return start, end
}

// filterSchedules keeps only the requested line items
func filterSchedules(schedules []*types.LineItemSchedule, ids []string) []*types.LineItemSchedule {
	requested := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		requested[normalizeID(id)] = struct{}{}
	}

	filtered := make([]*types.LineItemSchedule, 0, len(schedules))
	for _, sched := range schedules {
		if _, ok := requested[normalizeID(sched.LineItemID)]; ok {
			filtered = append(filtered, sched)
		}
	}
	return filtered
}

// normalizeID matches the gateway's identifier normalization so joins line up
func normalizeID(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}

// lineItemIDs collects the identifiers of a schedule set
func lineItemIDs(schedules []*types.LineItemSchedule) []string {
	ids := make([]string, 0, len(schedules))
	for _, sched := range schedules {
		ids = append(ids, sched.LineItemID)
	}
	return ids
}
