package repository

import (
	"context"
	"fmt"
	"time"

	"degenter/internal/pricing"
)

// RefreshPoolMatrix recomputes one (pool, bucket) rolling-window aggregate
// from the trades table: volume in ZIG, trade count, unique signers and
// price change over the window. Single statement so concurrent refreshes
// only race on the upsert, which the conflict clause resolves.
func (r *Repository) RefreshPoolMatrix(ctx context.Context, poolID int64, bucket string) error {
	window, ok := pricing.BucketWindow(bucket)
	if !ok {
		return fmt.Errorf("unknown matrix bucket %q", bucket)
	}
	since := time.Now().Add(-window)

	_, err := r.db.Exec(ctx, `
		INSERT INTO pool_matrix (pool_id, bucket, volume_zig, trade_count, unique_signers, price_change, updated_at)
		SELECT $1, $2,
		       COALESCE(SUM(CASE
		           WHEN t.offer_denom = 'uzig' THEN t.offer_amount_base::numeric / 1e6
		           WHEN t.ask_denom = 'uzig' THEN t.ask_amount_base::numeric / 1e6
		           ELSE 0 END), 0),
		       COUNT(*) FILTER (WHERE t.action = 'swap'),
		       COUNT(DISTINCT t.signer),
		       COALESCE((
		           SELECT (last.close - first.open) / NULLIF(first.open, 0)
		           FROM (SELECT open FROM ohlcv_1m WHERE pool_id = $1 AND bucket_start >= $3 ORDER BY bucket_start ASC LIMIT 1) first,
		                (SELECT close FROM ohlcv_1m WHERE pool_id = $1 ORDER BY bucket_start DESC LIMIT 1) last
		       ), 0),
		       NOW()
		FROM trades t
		WHERE t.pool_id = $1 AND t.created_at >= $3
		ON CONFLICT (pool_id, bucket) DO UPDATE SET
			volume_zig = EXCLUDED.volume_zig,
			trade_count = EXCLUDED.trade_count,
			unique_signers = EXCLUDED.unique_signers,
			price_change = EXCLUDED.price_change,
			updated_at = EXCLUDED.updated_at`,
		poolID, bucket, since,
	)
	if err != nil {
		return fmt.Errorf("failed to refresh pool matrix pool=%d bucket=%s: %w", poolID, bucket, err)
	}
	return nil
}

// RefreshTokenMatrix recomputes one (token, bucket) aggregate across all
// pools where the token is the base leg.
func (r *Repository) RefreshTokenMatrix(ctx context.Context, tokenID int64, bucket string) error {
	window, ok := pricing.BucketWindow(bucket)
	if !ok {
		return fmt.Errorf("unknown matrix bucket %q", bucket)
	}
	since := time.Now().Add(-window)

	_, err := r.db.Exec(ctx, `
		INSERT INTO token_matrix (token_id, bucket, volume_zig, trade_count, unique_signers, updated_at)
		SELECT $1, $2,
		       COALESCE(SUM(CASE
		           WHEN t.offer_denom = 'uzig' THEN t.offer_amount_base::numeric / 1e6
		           WHEN t.ask_denom = 'uzig' THEN t.ask_amount_base::numeric / 1e6
		           ELSE 0 END), 0),
		       COUNT(*) FILTER (WHERE t.action = 'swap'),
		       COUNT(DISTINCT t.signer),
		       NOW()
		FROM trades t
		JOIN pools p ON p.id = t.pool_id
		WHERE p.base_token_id = $1 AND t.created_at >= $3
		ON CONFLICT (token_id, bucket) DO UPDATE SET
			volume_zig = EXCLUDED.volume_zig,
			trade_count = EXCLUDED.trade_count,
			unique_signers = EXCLUDED.unique_signers,
			updated_at = EXCLUDED.updated_at`,
		tokenID, bucket, since,
	)
	if err != nil {
		return fmt.Errorf("failed to refresh token matrix token=%d bucket=%s: %w", tokenID, bucket, err)
	}
	return nil
}
