package storage

import (
	"context"
	stderrors "errors"
	"sort"
	"strings"
	"time"

	"github.com/pacing-engine/internal/circuitbreaker"
	"github.com/pacing-engine/internal/config"
	"github.com/pacing-engine/internal/errors"
	"github.com/pacing-engine/internal/logging"
	"github.com/pacing-engine/internal/pacing"
	"github.com/pacing-engine/internal/retry"
	"github.com/pacing-engine/internal/types"
)

// deliveryRows is the subset of the warehouse result set the gateway scans
type deliveryRows interface {
	Next() bool
	Scan(dest ...any) error
	Close() error
	Err() error
}

// warehouseQuerier issues the bounded delivery query against the warehouse
type warehouseQuerier interface {
	queryDelivery(ctx context.Context, query string, args ...interface{}) (deliveryRows, error)
}

// DeliveryRepository is the delivery-data gateway: it issues bounded,
// retryable, cancellable queries against the warehouse for actual per-day
// delivery rows. The warehouse is high-latency with cold starts, so every
// query carries a hard deadline, a row cap, and a circuit breaker.
type DeliveryRepository struct {
	db      warehouseQuerier
	clock   *pacing.Clock
	breaker *circuitbreaker.CircuitBreaker

	maxLineItems  int
	maxWindowDays int
	rowCap        int
	queryDeadline time.Duration
	retryConfig   *retry.Config
}

// NewDeliveryRepository creates the gateway from pacing configuration
func NewDeliveryRepository(db *ClickHouseDB, clock *pacing.Clock, cfg *config.PacingConfig) *DeliveryRepository {
	return &DeliveryRepository{
		db:            db,
		clock:         clock,
		breaker:       circuitbreaker.NewCircuitBreaker(circuitbreaker.DefaultConfig("delivery-warehouse")),
		maxLineItems:  cfg.MaxLineItems,
		maxWindowDays: cfg.MaxWindowDays,
		rowCap:        cfg.RowCap,
		queryDeadline: cfg.QueryDeadline,
		retryConfig: &retry.Config{
			MaxAttempts: cfg.MaxAttempts,
			Backoff:     cfg.RetryBackoff,
		},
	}
}

// FetchResult carries the rows plus the soft warnings a fetch can raise.
// Truncation and zero-rows are diagnostics, not failures: the request still
// succeeds, but pacing accuracy may be degraded.
type FetchResult struct {
	Rows            []types.DeliveryRow `json:"rows"`
	Count           int                 `json:"count"`
	Truncated       bool                `json:"truncated"`
	IDsTruncated    bool                `json:"idsTruncated"`
	DroppedChannels map[string]int      `json:"droppedChannels,omitempty"`
}

// NormalizeLineItemIDs trims, lowercases, deduplicates, and sorts identifiers,
// capping the set at max to bound query cost. The second return value reports
// whether the cap dropped identifiers.
func NormalizeLineItemIDs(ids []string, max int) ([]string, bool) {
	seen := make(map[string]struct{}, len(ids))
	normalized := make([]string, 0, len(ids))

	for _, id := range ids {
		id = strings.ToLower(strings.TrimSpace(id))
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		normalized = append(normalized, id)
	}

	sort.Strings(normalized)

	if max > 0 && len(normalized) > max {
		return normalized[:max], true
	}
	return normalized, false
}

// clampWindow bounds the requested date window. The end date defaults to
// yesterday in the business timezone unless the window lies fully in the past
// (a completed campaign keeps its own end date). The start is clamped to at
// most maxWindowDays before the end.
func (r *DeliveryRepository) clampWindow(window pacing.DateWindow) pacing.DateWindow {
	yesterday := r.clock.Yesterday()

	end := pacing.DateOnly(window.End)
	if end.IsZero() || end.After(yesterday) {
		end = yesterday
	}

	start := pacing.DateOnly(window.Start)
	earliest := end.AddDate(0, 0, -(r.maxWindowDays - 1))
	if start.IsZero() || start.Before(earliest) {
		start = earliest
	}
	if start.After(end) {
		start = end
	}

	return pacing.DateWindow{Start: start, End: end}
}

// Fetch returns actual per-day delivery rows for the given line items and
// date window, ordered ascending by (date, channel, lineItemId). The query is
// ordered descending under the row cap so that if truncation occurs the
// oldest rows are dropped, not the most recent ones, which matter more for
// pacing. Transient failures retry with linear backoff; deadline expiry
// surfaces as a distinct timeout error.
func (r *DeliveryRepository) Fetch(ctx context.Context, lineItemIDs []string, window pacing.DateWindow) (*FetchResult, error) {
	logger := logging.FromContext(ctx)

	if len(lineItemIDs) == 0 {
		return nil, errors.NewValidationError("lineItemIds", "must not be empty")
	}

	ids, idsTruncated := NormalizeLineItemIDs(lineItemIDs, r.maxLineItems)
	if len(ids) == 0 {
		return nil, errors.NewValidationError("lineItemIds", "contains no usable identifiers")
	}
	if idsTruncated {
		logger.WithFields(map[string]interface{}{
			"requested": len(lineItemIDs),
			"cap":       r.maxLineItems,
		}).Warn("Line item identifier set truncated to cap")
	}

	window = r.clampWindow(window)

	ctx, cancel := context.WithTimeout(ctx, r.queryDeadline)
	defer cancel()

	var raw []types.DeliveryRow
	var scanned int
	var dropped map[string]int

	err := retry.Do(ctx, r.retryConfig, func(err error) bool {
		// Deadline expiry and circuit-open are not transient within this request.
		if stderrors.Is(err, context.DeadlineExceeded) || stderrors.Is(err, context.Canceled) {
			return false
		}
		if stderrors.Is(err, circuitbreaker.ErrCircuitOpen) {
			return false
		}
		return true
	}, func(ctx context.Context, attempt int) error {
		return r.breaker.Execute(ctx, func() error {
			var queryErr error
			raw, scanned, dropped, queryErr = r.queryRows(ctx, ids, window)
			return queryErr
		})
	})
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded || stderrors.Is(err, context.DeadlineExceeded) {
			return nil, errors.NewTimeoutError("delivery fetch", err)
		}
		return nil, errors.NewQueryError("delivery fetch", err)
	}

	// Truncation is judged on the scanned-row count, before unrecognized
	// channel labels are filtered out: hitting the LIMIT means the oldest rows
	// were cut regardless of how many survived the channel filter.
	truncated := scanned >= r.rowCap
	if truncated {
		logger.WithFields(map[string]interface{}{
			"rowCap":    r.rowCap,
			"lineItems": len(ids),
		}).Warn("Delivery query hit the row cap; oldest rows were dropped")
	}

	rows := mergeRows(raw)

	sort.Slice(rows, func(i, j int) bool {
		if !rows[i].Date.Equal(rows[j].Date) {
			return rows[i].Date.Before(rows[j].Date)
		}
		if rows[i].Channel != rows[j].Channel {
			return rows[i].Channel < rows[j].Channel
		}
		return rows[i].LineItemID < rows[j].LineItemID
	})

	if len(rows) == 0 {
		// Distinguishes "no delivery yet" from "query misconfigured" for operators.
		logger.WithFields(map[string]interface{}{
			"lineItems":   len(ids),
			"windowStart": window.Start.Format("2006-01-02"),
			"windowEnd":   window.End.Format("2006-01-02"),
		}).Info("Delivery query returned zero rows for a non-empty identifier set")
	}

	if len(dropped) > 0 {
		logger.WithField("droppedChannels", dropped).Debug("Dropped rows with unrecognized channel labels")
	}

	return &FetchResult{
		Rows:            rows,
		Count:           len(rows),
		Truncated:       truncated,
		IDsTruncated:    idsTruncated,
		DroppedChannels: dropped,
	}, nil
}

// queryRows issues the single bounded warehouse query and scans the result,
// normalizing channel labels and dropping unrecognized ones. The scanned
// count covers every row the query returned, kept or dropped, so the caller
// can compare it against the row cap.
func (r *DeliveryRepository) queryRows(ctx context.Context, ids []string, window pacing.DateWindow) ([]types.DeliveryRow, int, map[string]int, error) {
	query := `
		SELECT
			line_item_id,
			date,
			channel,
			sum(amount_spent)   AS amount_spent,
			sum(impressions)    AS impressions,
			sum(clicks)         AS clicks,
			sum(results)        AS results,
			sum(video_3s_views) AS video_3s_views
		FROM delivery_daily
		WHERE lower(line_item_id) IN (?)
		  AND date >= ?
		  AND date <= ?
		GROUP BY line_item_id, date, channel
		ORDER BY date DESC
		LIMIT ?
	`

	chRows, err := r.db.queryDelivery(ctx, query, ids, window.Start, window.End, r.rowCap)
	if err != nil {
		return nil, 0, nil, err
	}
	defer chRows.Close()

	rows := make([]types.DeliveryRow, 0, 256)
	dropped := make(map[string]int)
	scanned := 0

	for chRows.Next() {
		var (
			lineItemID string
			date       time.Time
			label      string
			spent      float64
			imps       int64
			clicks     int64
			results    int64
			views      int64
		)

		if err := chRows.Scan(&lineItemID, &date, &label, &spent, &imps, &clicks, &results, &views); err != nil {
			return nil, 0, nil, err
		}
		scanned++

		channel, ok := NormalizeChannel(label)
		if !ok {
			dropped[label]++
			continue
		}

		if spent < 0 {
			spent = 0
		}

		rows = append(rows, types.DeliveryRow{
			LineItemID:   strings.ToLower(strings.TrimSpace(lineItemID)),
			Date:         pacing.DateOnly(date),
			Channel:      channel,
			AmountSpent:  spent,
			Impressions:  imps,
			Clicks:       clicks,
			Results:      results,
			Video3sViews: views,
		})
	}

	if err := chRows.Err(); err != nil {
		return nil, 0, nil, err
	}

	if len(dropped) == 0 {
		dropped = nil
	}
	return rows, scanned, dropped, nil
}

// mergeRows collapses rows whose vendor labels normalized onto the same
// canonical channel, keeping at most one row per (lineItemId, date, channel).
func mergeRows(rows []types.DeliveryRow) []types.DeliveryRow {
	type key struct {
		id      string
		day     int64
		channel types.Channel
	}

	index := make(map[key]int, len(rows))
	merged := make([]types.DeliveryRow, 0, len(rows))

	for _, row := range rows {
		k := key{id: row.LineItemID, day: row.Date.Unix(), channel: row.Channel}
		if i, ok := index[k]; ok {
			merged[i].AmountSpent += row.AmountSpent
			merged[i].Impressions += row.Impressions
			merged[i].Clicks += row.Clicks
			merged[i].Results += row.Results
			merged[i].Video3sViews += row.Video3sViews
			continue
		}
		index[k] = len(merged)
		merged = append(merged, row)
	}

	return merged
}
