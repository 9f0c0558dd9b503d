package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// UpsertPoolState matches the two reserve legs to (base, quote) by denom and
// overwrites the pool's live reserves snapshot.
func (r *Repository) UpsertPoolState(ctx context.Context, poolID int64, baseDenom, quoteDenom, r1Denom, r1Amt, r2Denom, r2Amt string, height int64) error {
	var baseAmt, quoteAmt string
	switch {
	case r1Denom == baseDenom && r2Denom == quoteDenom:
		baseAmt, quoteAmt = r1Amt, r2Amt
	case r2Denom == baseDenom && r1Denom == quoteDenom:
		baseAmt, quoteAmt = r2Amt, r1Amt
	default:
		return fmt.Errorf("pool %d: reserve legs (%s,%s) do not match pair (%s,%s)",
			poolID, r1Denom, r2Denom, baseDenom, quoteDenom)
	}

	_, err := r.db.Exec(ctx, `
		INSERT INTO pool_state (pool_id, base_amount, quote_amount, block_height, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (pool_id) DO UPDATE SET
			base_amount = EXCLUDED.base_amount,
			quote_amount = EXCLUDED.quote_amount,
			block_height = EXCLUDED.block_height,
			updated_at = EXCLUDED.updated_at`,
		poolID, baseAmt, quoteAmt, height, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert pool state %d: %w", poolID, err)
	}
	return nil
}

// UpsertPrice writes the live price row (unique on token_id, pool_id) and
// appends a tick to the price time series. The row is only overwritten with
// a newer observation so out-of-order writers cannot move prices backwards.
func (r *Repository) UpsertPrice(ctx context.Context, tokenID, poolID int64, price decimal.Decimal, isPairNative bool, observedAt time.Time) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO prices (token_id, pool_id, price_in_zig, is_pair_native, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (token_id, pool_id) DO UPDATE SET
			price_in_zig = EXCLUDED.price_in_zig,
			is_pair_native = EXCLUDED.is_pair_native,
			updated_at = EXCLUDED.updated_at
		WHERE prices.updated_at <= EXCLUDED.updated_at`,
		tokenID, poolID, price.String(), isPairNative, observedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert price token=%d pool=%d: %w", tokenID, poolID, err)
	}

	_, err = r.db.Exec(ctx, `
		INSERT INTO price_ticks (token_id, pool_id, price_in_zig, created_at)
		VALUES ($1, $2, $3, $4)`,
		tokenID, poolID, price.String(), observedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to append price tick token=%d pool=%d: %w", tokenID, poolID, err)
	}
	return nil
}

// LatestPrice returns the most recent price_in_zig for a token across all
// of its pools, or (zero, false) when none exists. Used by shapers to
// cross-convert non-native-quote pools.
func (r *Repository) LatestPrice(ctx context.Context, tokenID int64) (decimal.Decimal, bool, error) {
	var s string
	err := r.db.QueryRow(ctx, `
		SELECT price_in_zig FROM prices
		WHERE token_id = $1
		ORDER BY updated_at DESC
		LIMIT 1`, tokenID).Scan(&s)
	if err == pgx.ErrNoRows {
		return decimal.Zero, false, nil
	}
	if err != nil {
		return decimal.Zero, false, err
	}
	p, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false, fmt.Errorf("malformed price for token %d: %w", tokenID, err)
	}
	return p, true, nil
}
