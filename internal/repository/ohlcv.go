package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// UpsertCandle folds one price observation into the 1-minute bar for
// (poolID, bucketStart): the first observation seeds all four OHLC fields,
// later ones extend high/low and overwrite close. GREATEST/LEAST and the
// close overwrite converge under height replay. Volume and trade_count are
// owned by RefreshCandleTotals so they are never accumulated incrementally.
func (r *Repository) UpsertCandle(ctx context.Context, poolID int64, bucketStart time.Time, price decimal.Decimal) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO ohlcv_1m (pool_id, bucket_start, open, high, low, close, volume_zig, trade_count)
		VALUES ($1, $2, $3, $3, $3, $3, 0, 0)
		ON CONFLICT (pool_id, bucket_start) DO UPDATE SET
			high = GREATEST(ohlcv_1m.high, EXCLUDED.high),
			low = LEAST(ohlcv_1m.low, EXCLUDED.low),
			close = EXCLUDED.close`,
		poolID, bucketStart.UTC().Truncate(time.Minute), price.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert candle pool=%d bucket=%s: %w", poolID, bucketStart, err)
	}
	return nil
}

// RefreshCandleTotals recomputes a bar's volume and trade count from the
// trades table. Trades are deduplicated on their natural key, so replaying
// a height converges to the same totals instead of double-counting.
func (r *Repository) RefreshCandleTotals(ctx context.Context, poolID int64, bucketStart time.Time) error {
	bucket := bucketStart.UTC().Truncate(time.Minute)
	_, err := r.db.Exec(ctx, `
		UPDATE ohlcv_1m SET
			volume_zig = COALESCE((
				SELECT SUM(CASE
					WHEN t.offer_denom = 'uzig' THEN t.offer_amount_base::numeric / 1e6
					WHEN t.ask_denom = 'uzig' THEN t.ask_amount_base::numeric / 1e6
					ELSE 0 END)
				FROM trades t
				WHERE t.pool_id = $1 AND t.action = 'swap'
				  AND t.created_at >= $2 AND t.created_at < $2 + interval '1 minute'), 0),
			trade_count = (
				SELECT COUNT(*) FROM trades t
				WHERE t.pool_id = $1 AND t.action = 'swap'
				  AND t.created_at >= $2 AND t.created_at < $2 + interval '1 minute')
		WHERE pool_id = $1 AND bucket_start = $2`,
		poolID, bucket,
	)
	if err != nil {
		return fmt.Errorf("failed to refresh candle totals pool=%d bucket=%s: %w", poolID, bucket, err)
	}
	return nil
}

// CandleTradeCount returns the trade_count of one bar, 0 when absent.
func (r *Repository) CandleTradeCount(ctx context.Context, poolID int64, bucketStart time.Time) (int64, error) {
	var n int64
	err := r.db.QueryRow(ctx,
		"SELECT COALESCE((SELECT trade_count FROM ohlcv_1m WHERE pool_id = $1 AND bucket_start = $2), 0)",
		poolID, bucketStart.UTC().Truncate(time.Minute),
	).Scan(&n)
	return n, err
}
