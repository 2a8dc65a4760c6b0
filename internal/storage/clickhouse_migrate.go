package storage

import (
	"context"
	"fmt"
)

// deliveryDailyDDL is the warehouse table holding one row per line item per
// calendar day per vendor channel label. MergeTree ordered by date first so
// the gateway's date-bounded scans stay cheap.
const deliveryDailyDDL = `
CREATE TABLE IF NOT EXISTS delivery_daily (
	line_item_id   String,
	date           Date,
	channel        LowCardinality(String),
	amount_spent   Float64,
	impressions    Int64,
	clicks         Int64,
	results        Int64,
	video_3s_views Int64
) ENGINE = MergeTree()
ORDER BY (date, line_item_id, channel)
`

// EnsureDeliverySchema creates the delivery warehouse table if missing
func EnsureDeliverySchema(ctx context.Context, db *ClickHouseDB) error {
	if err := db.Exec(ctx, deliveryDailyDDL); err != nil {
		return fmt.Errorf("failed to create delivery_daily: %w", err)
	}
	return nil
}
