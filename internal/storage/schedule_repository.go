package storage

import (
	"context"
	"time"

	"github.com/pacing-engine/internal/errors"
	"github.com/pacing-engine/internal/pacing"
	"github.com/pacing-engine/internal/schedule"
	"github.com/pacing-engine/internal/types"
)

// ScheduleRepository reads planned schedules from the media-plan store.
// Schedule persistence is owned by the planning system; this repository is
// strictly a reader, and raw burst payloads pass through the schedule
// normalizer before anything downstream sees them.
type ScheduleRepository struct {
	db *PostgresDB
}

// NewScheduleRepository creates a new schedule repository
func NewScheduleRepository(db *PostgresDB) *ScheduleRepository {
	return &ScheduleRepository{db: db}
}

// lineItemRow is the raw shape of a line_items row before normalization
type lineItemRow struct {
	lineItemID    string
	campaignID    string
	clientID      string
	channelGroup  string
	buyType       string
	scheduleKind  string
	burstsRaw     []byte
	campaignStart *time.Time
	campaignEnd   *time.Time
}

const lineItemColumns = `
	line_item_id, campaign_id, client_id, channel_group, buy_type,
	schedule_kind, bursts, campaign_start, campaign_end
`

// GetByCampaign returns the normalized schedules for every line item in a campaign
func (r *ScheduleRepository) GetByCampaign(ctx context.Context, campaignID string) ([]*types.LineItemSchedule, error) {
	query := `SELECT ` + lineItemColumns + ` FROM line_items WHERE campaign_id = $1 ORDER BY line_item_id`

	rows, err := r.db.pool.Query(ctx, query, campaignID)
	if err != nil {
		return nil, errors.NewDatabaseError("schedule lookup", err)
	}
	defer rows.Close()

	return r.scanSchedules(ctx, rows.Next, rows.Scan, rows.Err)
}

// GetAll returns the normalized schedules for every tracked line item,
// used by the portfolio rollup.
func (r *ScheduleRepository) GetAll(ctx context.Context) ([]*types.LineItemSchedule, error) {
	query := `SELECT ` + lineItemColumns + ` FROM line_items ORDER BY client_id, campaign_id, line_item_id`

	rows, err := r.db.pool.Query(ctx, query)
	if err != nil {
		return nil, errors.NewDatabaseError("schedule scan", err)
	}
	defer rows.Close()

	return r.scanSchedules(ctx, rows.Next, rows.Scan, rows.Err)
}

// scanSchedules converts raw rows into normalized schedules, attaching
// monthly plans for line items that use the monthly representation.
func (r *ScheduleRepository) scanSchedules(
	ctx context.Context,
	next func() bool,
	scan func(dest ...any) error,
	rowsErr func() error,
) ([]*types.LineItemSchedule, error) {
	var raws []lineItemRow

	for next() {
		var row lineItemRow
		if err := scan(
			&row.lineItemID,
			&row.campaignID,
			&row.clientID,
			&row.channelGroup,
			&row.buyType,
			&row.scheduleKind,
			&row.burstsRaw,
			&row.campaignStart,
			&row.campaignEnd,
		); err != nil {
			return nil, errors.NewDatabaseError("schedule scan", err)
		}
		raws = append(raws, row)
	}
	if err := rowsErr(); err != nil {
		return nil, errors.NewDatabaseError("schedule scan", err)
	}

	schedules := make([]*types.LineItemSchedule, 0, len(raws))
	for _, row := range raws {
		s := &types.LineItemSchedule{
			LineItemID:   row.lineItemID,
			CampaignID:   row.campaignID,
			ClientID:     row.clientID,
			ChannelGroup: types.Channel(row.channelGroup),
			BuyType:      types.BuyType(row.buyType),
			Kind:         types.ScheduleKind(row.scheduleKind),
		}
		if row.campaignStart != nil {
			s.CampaignStart = pacing.DateOnly(*row.campaignStart)
		}
		if row.campaignEnd != nil {
			s.CampaignEnd = pacing.DateOnly(*row.campaignEnd)
		}

		if s.Kind == types.ScheduleMonthly {
			monthly, err := r.getMonthlyPlans(ctx, row.lineItemID)
			if err != nil {
				return nil, err
			}
			s.Monthly = monthly
		} else {
			s.Kind = types.ScheduleBursts
			s.Bursts = schedule.NormalizeBursts(row.burstsRaw, s.BuyType)
		}

		schedules = append(schedules, s)
	}

	return schedules, nil
}

// getMonthlyPlans loads the per-month planned amounts for one line item
func (r *ScheduleRepository) getMonthlyPlans(ctx context.Context, lineItemID string) ([]types.MonthlyPlan, error) {
	query := `
		SELECT year, month, planned_amount, planned_deliverable
		FROM monthly_plans
		WHERE line_item_id = $1
		ORDER BY year, month
	`

	rows, err := r.db.pool.Query(ctx, query, lineItemID)
	if err != nil {
		return nil, errors.NewDatabaseError("monthly plan lookup", err)
	}
	defer rows.Close()

	var plans []types.MonthlyPlan
	for rows.Next() {
		var p types.MonthlyPlan
		if err := rows.Scan(&p.Year, &p.Month, &p.PlannedAmount, &p.PlannedDeliverable); err != nil {
			return nil, errors.NewDatabaseError("monthly plan scan", err)
		}
		if p.PlannedAmount < 0 {
			p.PlannedAmount = 0
		}
		if p.PlannedDeliverable < 0 {
			p.PlannedDeliverable = 0
		}
		plans = append(plans, p)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewDatabaseError("monthly plan scan", err)
	}

	return plans, nil
}
