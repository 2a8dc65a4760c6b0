package service

import (
	"context"
	"sort"
	"time"

	"github.com/pacing-engine/internal/logging"
	"github.com/pacing-engine/internal/pacing"
	"github.com/pacing-engine/internal/types"
)

// SnapshotCache caches portfolio snapshots for the calling layer. The engine
// treats cached values as read-only and never mutates them.
type SnapshotCache interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}) error
	Invalidate(ctx context.Context, keys ...string) error
	PortfolioKey() string
	ReportKey(campaignID string) string
}

// PortfolioService rolls per-line-item pacing results up into campaign,
// client, and portfolio summaries.
type PortfolioService struct {
	schedules ScheduleReader
	delivery  DeliveryFetcher
	clock     *pacing.Clock
	cache     SnapshotCache
}

// NewPortfolioService creates a new portfolio service. The cache is optional;
// without one every snapshot is computed fresh.
func NewPortfolioService(schedules ScheduleReader, delivery DeliveryFetcher, clock *pacing.Clock, cache SnapshotCache) *PortfolioService {
	return &PortfolioService{
		schedules: schedules,
		delivery:  delivery,
		clock:     clock,
		cache:     cache,
	}
}

// GetSnapshot returns the full portfolio rollup across every tracked client
// and campaign, read-through cached when a cache is configured.
func (s *PortfolioService) GetSnapshot(ctx context.Context) (*types.PortfolioSnapshot, error) {
	logger := logging.FromContext(ctx)

	if s.cache != nil {
		var cached types.PortfolioSnapshot
		hit, err := s.cache.Get(ctx, s.cache.PortfolioKey(), &cached)
		if err != nil {
			logger.WithError(err).Warn("Portfolio cache read failed, computing fresh")
		} else if hit {
			return &cached, nil
		}
	}

	snapshot, err := s.computeSnapshot(ctx)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, s.cache.PortfolioKey(), snapshot); err != nil {
			logger.WithError(err).Warn("Portfolio cache write failed")
		}
	}

	return snapshot, nil
}

// InvalidateSnapshot drops the cached portfolio rollup
func (s *PortfolioService) InvalidateSnapshot(ctx context.Context) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.Invalidate(ctx, s.cache.PortfolioKey())
}

// computeSnapshot loads every schedule, fetches actuals in one batched
// gateway call, and aggregates.
func (s *PortfolioService) computeSnapshot(ctx context.Context) (*types.PortfolioSnapshot, error) {
	schedules, err := s.schedules.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	if len(schedules) == 0 {
		return Aggregate(nil, s.clock.Today()), nil
	}

	start, end := campaignBounds(schedules)
	window := pacing.DateWindow{Start: start, End: end}
	asOf := s.asOf(window)

	fetched, err := s.delivery.Fetch(ctx, lineItemIDs(schedules), window)
	if err != nil {
		return nil, err
	}

	expected := make(map[string]expectedValues, len(schedules))
	for _, sched := range schedules {
		expected[sched.LineItemID] = computeExpected(sched, asOf)
	}

	results := joinResults(schedules, fetched.Rows, expected)
	return Aggregate(results, s.clock.Today()), nil
}

// asOf mirrors PacingService.asOf for the portfolio path
func (s *PortfolioService) asOf(window pacing.DateWindow) time.Time {
	yesterday := s.clock.Yesterday()
	if !window.End.IsZero() && window.End.Before(yesterday) {
		return window.End
	}
	return yesterday
}

// Aggregate folds per-line-item pacing results into the client -> campaign ->
// line item rollup. Campaign totals are plain sums; the campaign status comes
// from classifying the summed actual against the summed expected, never from
// averaging child statuses. Sums are order-independent, and no rounding is
// applied mid-aggregation.
func Aggregate(results []types.PacingResult, generatedAt time.Time) *types.PortfolioSnapshot {
	type campaignKey struct {
		clientID   string
		campaignID string
	}

	grouped := make(map[campaignKey][]types.PacingResult)
	for _, r := range results {
		k := campaignKey{clientID: r.ClientID, campaignID: r.CampaignID}
		grouped[k] = append(grouped[k], r)
	}

	campaignsByClient := make(map[string][]types.CampaignSummary)
	for k, items := range grouped {
		summary := types.CampaignSummary{
			CampaignID: k.campaignID,
			ClientID:   k.clientID,
			LineItems:  items,
		}
		for _, item := range items {
			summary.PlannedTotal += item.PlannedSpendToDate
			summary.SpentToDate += item.SpendToDate
			summary.ExpectedSpendToDate += item.ExpectedSpendToDate
		}
		summary.PaceStatus = pacing.Classify(summary.SpentToDate, summary.ExpectedSpendToDate)

		campaignsByClient[k.clientID] = append(campaignsByClient[k.clientID], summary)
	}

	snapshot := &types.PortfolioSnapshot{GeneratedAt: generatedAt}

	clientIDs := make([]string, 0, len(campaignsByClient))
	for clientID := range campaignsByClient {
		clientIDs = append(clientIDs, clientID)
	}
	sort.Strings(clientIDs)

	for _, clientID := range clientIDs {
		campaigns := campaignsByClient[clientID]
		sort.Slice(campaigns, func(i, j int) bool {
			return campaigns[i].CampaignID < campaigns[j].CampaignID
		})

		for _, c := range campaigns {
			snapshot.PlannedTotal += c.PlannedTotal
			snapshot.SpentToDate += c.SpentToDate

			switch c.PaceStatus {
			case types.PaceUnder:
				snapshot.UnderCount++
			case types.PaceOver:
				snapshot.OverCount++
			default:
				snapshot.OnCount++
			}
		}

		snapshot.Clients = append(snapshot.Clients, types.ClientSummary{
			ClientID:  clientID,
			Campaigns: campaigns,
		})
	}

	return snapshot
}
