// Package types provides common type definitions for the pacing engine.
package types

import "time"

// PaceStatus represents the pacing classification of actual vs expected delivery
type PaceStatus string

const (
	// PaceUnder means actual delivery is below 90% of expected to date
	PaceUnder PaceStatus = "UNDER"
	// PaceOn means actual delivery is within the 90-110% on-pace band
	PaceOn PaceStatus = "ON"
	// PaceOver means actual delivery is above 110% of expected to date
	PaceOver PaceStatus = "OVER"
)

// Channel represents a canonical media channel category
type Channel string

const (
	// ChannelSocial covers paid social platforms (Meta, TikTok, Pinterest, ...)
	ChannelSocial Channel = "social"
	// ChannelProgrammaticDisplay covers programmatic display buys
	ChannelProgrammaticDisplay Channel = "programmatic_display"
	// ChannelProgrammaticVideo covers programmatic video buys
	ChannelProgrammaticVideo Channel = "programmatic_video"
	// ChannelSearch covers paid search buys
	ChannelSearch Channel = "search"
)

// Channels lists every recognized channel category
var Channels = []Channel{
	ChannelSocial,
	ChannelProgrammaticDisplay,
	ChannelProgrammaticVideo,
	ChannelSearch,
}

// BuyType represents how a line item is bought and which planned metric is authoritative
type BuyType string

const (
	// BuyTypeCPM is an impression-based buy; planned spend is authoritative
	BuyTypeCPM BuyType = "cpm"
	// BuyTypeCPC is a click-based buy; planned deliverable (clicks) is authoritative
	BuyTypeCPC BuyType = "cpc"
	// BuyTypeCPV is a view-based buy; planned deliverable (views) is authoritative
	BuyTypeCPV BuyType = "cpv"
	// BuyTypeFixed is a fixed-cost buy (sponsorships, tenancies); planned spend is authoritative
	BuyTypeFixed BuyType = "fixed"
)

// DeliverableAuthoritative reports whether the planned deliverable, rather than
// planned spend, is the authoritative metric for this buy type.
func (b BuyType) DeliverableAuthoritative() bool {
	return b == BuyTypeCPC || b == BuyTypeCPV
}

// Metric selects which planned figure a proration computes over
type Metric string

const (
	// MetricSpend prorates the planned monetary amount
	MetricSpend Metric = "spend"
	// MetricDeliverable prorates the planned deliverable units
	MetricDeliverable Metric = "deliverable"
)

// Burst is a contiguous date-bounded slice of a line item's planned commitment.
// Both ends of the date range are inclusive. Fields are guaranteed non-negative
// once the burst has passed through the schedule normalizer. Overlapping bursts
// within one line item are permitted; their totals are additive.
type Burst struct {
	StartDate          time.Time `json:"startDate"`
	EndDate            time.Time `json:"endDate"`
	PlannedAmount      float64   `json:"plannedAmount"`
	PlannedDeliverable float64   `json:"plannedDeliverable"`
}

// MonthlyPlan is one planned amount for a single calendar month, used by
// schedules expressed per-month rather than per-burst.
type MonthlyPlan struct {
	Year               int     `json:"year"`
	Month              int     `json:"month"` // 1-12
	PlannedAmount      float64 `json:"plannedAmount"`
	PlannedDeliverable float64 `json:"plannedDeliverable"`
}

// ScheduleKind distinguishes the two planned-schedule representations
type ScheduleKind string

const (
	// ScheduleBursts is a schedule expressed as date-bounded bursts
	ScheduleBursts ScheduleKind = "bursts"
	// ScheduleMonthly is a schedule expressed as one amount per calendar month
	ScheduleMonthly ScheduleKind = "monthly"
)

// LineItemSchedule is the validated planned schedule for one line item
type LineItemSchedule struct {
	LineItemID   string        `json:"lineItemId"`
	CampaignID   string        `json:"campaignId"`
	ClientID     string        `json:"clientId"`
	ChannelGroup Channel       `json:"channelGroup"`
	BuyType      BuyType       `json:"buyType"`
	Kind         ScheduleKind  `json:"kind"`
	Bursts       []Burst       `json:"bursts,omitempty"`
	Monthly      []MonthlyPlan `json:"monthly,omitempty"`
	// Campaign bounds clamp month-bucket proration when a month partially
	// precedes or follows the campaign window.
	CampaignStart time.Time `json:"campaignStart"`
	CampaignEnd   time.Time `json:"campaignEnd"`
}

// DeliveryRow is one actual-delivery record per (lineItemId, date, channel)
// as reported by the analytics warehouse. Dates are calendar-day granularity
// in the business timezone.
type DeliveryRow struct {
	LineItemID   string    `json:"lineItemId"`
	Date         time.Time `json:"date"`
	Channel      Channel   `json:"channel"`
	AmountSpent  float64   `json:"amountSpent"`
	Impressions  int64     `json:"impressions"`
	Clicks       int64     `json:"clicks"`
	Results      int64     `json:"results"`
	Video3sViews int64     `json:"video3sViews"`
}

// DeliverableActual returns the actual deliverable units for a buy type.
func (r *DeliveryRow) DeliverableActual(buyType BuyType) float64 {
	switch buyType {
	case BuyTypeCPC:
		return float64(r.Clicks)
	case BuyTypeCPV:
		return float64(r.Video3sViews)
	default:
		return float64(r.Impressions)
	}
}

// PacingResult is the per-line-item output of the pacing pipeline
type PacingResult struct {
	LineItemID                string     `json:"lineItemId"`
	CampaignID                string     `json:"campaignId"`
	ClientID                  string     `json:"clientId"`
	SpendToDate               float64    `json:"spendToDate"`
	PlannedSpendToDate        float64    `json:"plannedSpendToDate"` // booked total
	ExpectedSpendToDate       float64    `json:"expectedSpendToDate"`
	SpendPaceStatus           PaceStatus `json:"spendPaceStatus"`
	DeliverableToDate         float64    `json:"deliverableToDate"`
	PlannedDeliverableToDate  float64    `json:"plannedDeliverableToDate"`
	ExpectedDeliverableToDate float64    `json:"expectedDeliverableToDate"`
	DeliverablePaceStatus     PaceStatus `json:"deliverablePaceStatus"`
}

// CampaignSummary is the campaign-level rollup inside a portfolio snapshot.
// Totals are sums over line items; the campaign status comes from classifying
// the summed actual against the summed expected, not from averaging child
// statuses.
type CampaignSummary struct {
	CampaignID          string         `json:"campaignId"`
	ClientID            string         `json:"clientId"`
	PlannedTotal        float64        `json:"plannedTotal"`
	SpentToDate         float64        `json:"spentToDate"`
	ExpectedSpendToDate float64        `json:"expectedSpendToDate"`
	PaceStatus          PaceStatus     `json:"paceStatus"`
	LineItems           []PacingResult `json:"lineItems"`
}

// ClientSummary groups a client's campaigns inside a portfolio snapshot
type ClientSummary struct {
	ClientID  string            `json:"clientId"`
	Campaigns []CampaignSummary `json:"campaigns"`
}

// PortfolioSnapshot is the full client -> campaign -> line item rollup plus
// scalar totals. Built fresh per request; never persisted by the engine.
type PortfolioSnapshot struct {
	Clients      []ClientSummary `json:"clients"`
	PlannedTotal float64         `json:"plannedTotal"`
	SpentToDate  float64         `json:"spentToDate"`
	UnderCount   int             `json:"underCount"`
	OnCount      int             `json:"onCount"`
	OverCount    int             `json:"overCount"`
	GeneratedAt  time.Time       `json:"generatedAt"`
}

// ServiceError represents a structured error response
type ServiceError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func (e *ServiceError) Error() string {
	return e.Message
}
