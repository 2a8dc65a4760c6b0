package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pacing-engine/internal/errors"
	"github.com/pacing-engine/internal/pacing"
	"github.com/pacing-engine/internal/storage"
	"github.com/pacing-engine/internal/types"
)

// mockScheduleReader serves canned schedules and records calls
type mockScheduleReader struct {
	schedules []*types.LineItemSchedule
	err       error
	calls     int
}

func (m *mockScheduleReader) GetByCampaign(ctx context.Context, campaignID string) ([]*types.LineItemSchedule, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	var out []*types.LineItemSchedule
	for _, s := range m.schedules {
		if s.CampaignID == campaignID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *mockScheduleReader) GetAll(ctx context.Context) ([]*types.LineItemSchedule, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.schedules, nil
}

// mockDeliveryFetcher serves canned rows and records the request it saw
type mockDeliveryFetcher struct {
	result *storage.FetchResult
	err    error

	calls     int
	gotIDs    []string
	gotWindow pacing.DateWindow
}

func (m *mockDeliveryFetcher) Fetch(ctx context.Context, lineItemIDs []string, window pacing.DateWindow) (*storage.FetchResult, error) {
	m.calls++
	m.gotIDs = lineItemIDs
	m.gotWindow = window
	if m.err != nil {
		return nil, m.err
	}
	if m.result == nil {
		return &storage.FetchResult{Rows: []types.DeliveryRow{}}, nil
	}
	return m.result, nil
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func testClock(now time.Time) *pacing.Clock {
	return pacing.NewClockAt(time.UTC, func() time.Time { return now })
}

func burstSchedule(lineItemID, campaignID, clientID string, start, end time.Time, amount float64) *types.LineItemSchedule {
	return &types.LineItemSchedule{
		LineItemID:   lineItemID,
		CampaignID:   campaignID,
		ClientID:     clientID,
		ChannelGroup: types.ChannelSocial,
		BuyType:      types.BuyTypeCPM,
		Kind:         types.ScheduleBursts,
		Bursts: []types.Burst{
			{StartDate: start, EndDate: end, PlannedAmount: amount},
		},
		CampaignStart: start,
		CampaignEnd:   end,
	}
}

func TestPacingService_ValidationFailsBeforeIO(t *testing.T) {
	schedules := &mockScheduleReader{}
	delivery := &mockDeliveryFetcher{}
	svc := NewPacingService(schedules, delivery, testClock(date(2024, time.January, 12)))

	tests := []struct {
		name  string
		input *ReportInput
		field string
	}{
		{"nil input", nil, "request"},
		{"missing campaign", &ReportInput{LineItemIDs: []string{"ab1"}}, "campaignId"},
		{"missing line items", &ReportInput{CampaignID: "cmp-001"}, "lineItemIds"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Report(context.Background(), tt.input)
			require.Error(t, err)

			var catErr *errors.CategorizedError
			require.ErrorAs(t, err, &catErr)
			assert.Equal(t, errors.CategoryValidation, catErr.Category)

			assert.Zero(t, schedules.calls, "no store call for invalid input")
			assert.Zero(t, delivery.calls, "no warehouse call for invalid input")
		})
	}
}

func TestPacingService_EndBeforeStartRejected(t *testing.T) {
	schedules := &mockScheduleReader{schedules: []*types.LineItemSchedule{
		burstSchedule("ab1", "cmp-001", "client-a", date(2024, time.January, 1), date(2024, time.January, 31), 3100),
	}}
	delivery := &mockDeliveryFetcher{}
	svc := NewPacingService(schedules, delivery, testClock(date(2024, time.January, 12)))

	start := date(2024, time.January, 20)
	end := date(2024, time.January, 10)

	_, err := svc.Report(context.Background(), &ReportInput{
		CampaignID:  "cmp-001",
		LineItemIDs: []string{"ab1"},
		StartDate:   &start,
		EndDate:     &end,
	})
	require.Error(t, err)

	var catErr *errors.CategorizedError
	require.ErrorAs(t, err, &catErr)
	assert.Equal(t, errors.CategoryValidation, catErr.Category)
	assert.Zero(t, delivery.calls)
}

func TestPacingService_UnknownCampaignIsNotFound(t *testing.T) {
	schedules := &mockScheduleReader{}
	svc := NewPacingService(schedules, &mockDeliveryFetcher{}, testClock(date(2024, time.January, 12)))

	_, err := svc.Report(context.Background(), &ReportInput{
		CampaignID:  "cmp-missing",
		LineItemIDs: []string{"ab1"},
	})
	require.Error(t, err)

	var catErr *errors.CategorizedError
	require.ErrorAs(t, err, &catErr)
	assert.Equal(t, errors.CategoryNotFound, catErr.Category)
}

func TestPacingService_ReportJoinsAndClassifies(t *testing.T) {
	// Campaign is 3100 over all of January; today is Jan 12, so the engine
	// prorates through Jan 11: expected 1100.
	schedules := &mockScheduleReader{schedules: []*types.LineItemSchedule{
		burstSchedule("ab1", "cmp-001", "client-a", date(2024, time.January, 1), date(2024, time.January, 31), 3100),
	}}
	delivery := &mockDeliveryFetcher{result: &storage.FetchResult{
		Rows: []types.DeliveryRow{
			{LineItemID: "ab1", Date: date(2024, time.January, 10), Channel: types.ChannelSocial, AmountSpent: 600},
			{LineItemID: "ab1", Date: date(2024, time.January, 11), Channel: types.ChannelSocial, AmountSpent: 445},
		},
		Count: 2,
	}}
	svc := NewPacingService(schedules, delivery, testClock(date(2024, time.January, 12)))

	report, err := svc.Report(context.Background(), &ReportInput{
		CampaignID:  "cmp-001",
		LineItemIDs: []string{"ab1"},
	})
	require.NoError(t, err)

	require.Len(t, report.Results, 1)
	r := report.Results[0]

	assert.Equal(t, "ab1", r.LineItemID)
	assert.Equal(t, 1045.0, r.SpendToDate)
	assert.InDelta(t, 1100.0, r.ExpectedSpendToDate, 1e-9)
	// 1045 / 1100 = 95%: inside the on-pace band.
	assert.Equal(t, types.PaceOn, r.SpendPaceStatus)
	assert.True(t, report.AsOf.Equal(date(2024, time.January, 11)))

	assert.Equal(t, 1, delivery.calls)
	assert.Equal(t, []string{"ab1"}, delivery.gotIDs)
}

func TestPacingService_UnderAndOverClassification(t *testing.T) {
	schedules := &mockScheduleReader{schedules: []*types.LineItemSchedule{
		burstSchedule("under1", "cmp-001", "client-a", date(2024, time.January, 1), date(2024, time.January, 31), 3100),
		burstSchedule("over1", "cmp-001", "client-a", date(2024, time.January, 1), date(2024, time.January, 31), 3100),
	}}
	delivery := &mockDeliveryFetcher{result: &storage.FetchResult{
		Rows: []types.DeliveryRow{
			{LineItemID: "under1", Date: date(2024, time.January, 10), Channel: types.ChannelSocial, AmountSpent: 500},
			{LineItemID: "over1", Date: date(2024, time.January, 10), Channel: types.ChannelSocial, AmountSpent: 2000},
		},
		Count: 2,
	}}
	svc := NewPacingService(schedules, delivery, testClock(date(2024, time.January, 12)))

	report, err := svc.Report(context.Background(), &ReportInput{
		CampaignID:  "cmp-001",
		LineItemIDs: []string{"under1", "over1"},
	})
	require.NoError(t, err)
	require.Len(t, report.Results, 2)

	byID := make(map[string]types.PacingResult)
	for _, r := range report.Results {
		byID[r.LineItemID] = r
	}

	assert.Equal(t, types.PaceUnder, byID["under1"].SpendPaceStatus)
	assert.Equal(t, types.PaceOver, byID["over1"].SpendPaceStatus)
}

func TestPacingService_MixedCaseIdentifiersJoin(t *testing.T) {
	// The store carries "AB1" while the warehouse returns "ab1"; the join
	// normalizes both sides.
	sched := burstSchedule("AB1", "cmp-001", "client-a", date(2024, time.January, 1), date(2024, time.January, 31), 3100)
	schedules := &mockScheduleReader{schedules: []*types.LineItemSchedule{sched}}
	delivery := &mockDeliveryFetcher{result: &storage.FetchResult{
		Rows: []types.DeliveryRow{
			{LineItemID: "ab1", Date: date(2024, time.January, 10), Channel: types.ChannelSocial, AmountSpent: 1000},
		},
		Count: 1,
	}}
	svc := NewPacingService(schedules, delivery, testClock(date(2024, time.January, 12)))

	report, err := svc.Report(context.Background(), &ReportInput{
		CampaignID:  "cmp-001",
		LineItemIDs: []string{" ab1 "},
	})
	require.NoError(t, err)

	require.Len(t, report.Results, 1)
	assert.Equal(t, 1000.0, report.Results[0].SpendToDate)
}

func TestPacingService_ZeroDeliveryStillReports(t *testing.T) {
	schedules := &mockScheduleReader{schedules: []*types.LineItemSchedule{
		burstSchedule("ab1", "cmp-001", "client-a", date(2024, time.January, 1), date(2024, time.January, 31), 3100),
	}}
	svc := NewPacingService(schedules, &mockDeliveryFetcher{}, testClock(date(2024, time.January, 12)))

	report, err := svc.Report(context.Background(), &ReportInput{
		CampaignID:  "cmp-001",
		LineItemIDs: []string{"ab1"},
	})
	require.NoError(t, err)

	require.Len(t, report.Results, 1)
	assert.Equal(t, 0.0, report.Results[0].SpendToDate)
	assert.Equal(t, types.PaceUnder, report.Results[0].SpendPaceStatus)
}

func TestPacingService_CompletedCampaignUsesWindowEnd(t *testing.T) {
	// Campaign ended in April; today is June 15. Proration anchors on the
	// campaign's own end date, so the full budget is expected.
	schedules := &mockScheduleReader{schedules: []*types.LineItemSchedule{
		burstSchedule("ab1", "cmp-001", "client-a", date(2024, time.April, 1), date(2024, time.April, 30), 3000),
	}}
	delivery := &mockDeliveryFetcher{result: &storage.FetchResult{
		Rows: []types.DeliveryRow{
			{LineItemID: "ab1", Date: date(2024, time.April, 15), Channel: types.ChannelSocial, AmountSpent: 2950},
		},
		Count: 1,
	}}
	svc := NewPacingService(schedules, delivery, testClock(date(2024, time.June, 15)))

	report, err := svc.Report(context.Background(), &ReportInput{
		CampaignID:  "cmp-001",
		LineItemIDs: []string{"ab1"},
	})
	require.NoError(t, err)

	assert.True(t, report.AsOf.Equal(date(2024, time.April, 30)))
	require.Len(t, report.Results, 1)
	assert.InDelta(t, 3000.0, report.Results[0].ExpectedSpendToDate, 1e-9)
	assert.Equal(t, types.PaceOn, report.Results[0].SpendPaceStatus)
}

func TestPacingService_DeliveryErrorPropagates(t *testing.T) {
	schedules := &mockScheduleReader{schedules: []*types.LineItemSchedule{
		burstSchedule("ab1", "cmp-001", "client-a", date(2024, time.January, 1), date(2024, time.January, 31), 3100),
	}}
	delivery := &mockDeliveryFetcher{err: errors.NewTimeoutError("delivery fetch", context.DeadlineExceeded)}
	svc := NewPacingService(schedules, delivery, testClock(date(2024, time.January, 12)))

	_, err := svc.Report(context.Background(), &ReportInput{
		CampaignID:  "cmp-001",
		LineItemIDs: []string{"ab1"},
	})
	require.Error(t, err)
	assert.True(t, errors.IsTimeout(err))
}

func TestPacingService_TruncationSurfacesInMeta(t *testing.T) {
	schedules := &mockScheduleReader{schedules: []*types.LineItemSchedule{
		burstSchedule("ab1", "cmp-001", "client-a", date(2024, time.January, 1), date(2024, time.January, 31), 3100),
	}}
	delivery := &mockDeliveryFetcher{result: &storage.FetchResult{
		Rows:      []types.DeliveryRow{},
		Count:     0,
		Truncated: true,
	}}
	svc := NewPacingService(schedules, delivery, testClock(date(2024, time.January, 12)))

	report, err := svc.Report(context.Background(), &ReportInput{
		CampaignID:  "cmp-001",
		LineItemIDs: []string{"ab1"},
	})
	require.NoError(t, err)
	assert.True(t, report.Delivery.Truncated)
}

func TestPacingService_DeliverableMetricUsesBuyType(t *testing.T) {
	sched := burstSchedule("ab1", "cmp-001", "client-a", date(2024, time.January, 1), date(2024, time.January, 31), 3100)
	sched.BuyType = types.BuyTypeCPC
	sched.Bursts[0].PlannedDeliverable = 310

	schedules := &mockScheduleReader{schedules: []*types.LineItemSchedule{sched}}
	delivery := &mockDeliveryFetcher{result: &storage.FetchResult{
		Rows: []types.DeliveryRow{
			{LineItemID: "ab1", Date: date(2024, time.January, 10), Channel: types.ChannelSocial, Clicks: 105, Impressions: 99999},
		},
		Count: 1,
	}}
	svc := NewPacingService(schedules, delivery, testClock(date(2024, time.January, 12)))

	report, err := svc.Report(context.Background(), &ReportInput{
		CampaignID:  "cmp-001",
		LineItemIDs: []string{"ab1"},
	})
	require.NoError(t, err)

	require.Len(t, report.Results, 1)
	r := report.Results[0]
	// CPC counts clicks, not impressions. Expected 310 * 11/31 = 110.
	assert.Equal(t, 105.0, r.DeliverableToDate)
	assert.InDelta(t, 110.0, r.ExpectedDeliverableToDate, 1e-9)
	assert.Equal(t, types.PaceOn, r.DeliverablePaceStatus)
}
