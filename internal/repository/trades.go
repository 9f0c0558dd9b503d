package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"degenter/internal/models"
)

// tradeColumns is the insert column list; keep in sync with appendTradeArgs.
const tradeColumns = `pool_id, tx_hash, msg_index, action, direction,
	offer_denom, offer_amount_base, ask_denom, ask_amount_base, return_amount_base,
	reserve1_denom, reserve1_amount, reserve2_denom, reserve2_amount,
	signer, is_router, size_class, block_height, created_at`

const tradeColumnCount = 19

func appendTradeArgs(args []interface{}, t models.Trade) []interface{} {
	return append(args,
		t.PoolID, t.TxHash, t.MsgIndex, t.Action, t.Direction,
		nullIfEmpty(t.OfferDenom), nullIfEmpty(t.OfferAmountBase),
		nullIfEmpty(t.AskDenom), nullIfEmpty(t.AskAmountBase),
		nullIfEmpty(t.ReturnAmountBase),
		nullIfEmpty(t.Reserve1Denom), nullIfEmpty(t.Reserve1Amount),
		nullIfEmpty(t.Reserve2Denom), nullIfEmpty(t.Reserve2Amount),
		t.Signer, t.IsRouter, nullIfEmpty(t.SizeClass), t.BlockHeight, t.CreatedAt,
	)
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// InsertTradeBatch writes a batch of trades in a single multi-row statement.
// The conflict target (created_at, tx_hash, pool_id, msg_index) DO NOTHING
// makes replays of a height idempotent. A failure fails the whole batch.
func (r *Repository) InsertTradeBatch(ctx context.Context, trades []models.Trade) error {
	if len(trades) == 0 {
		return nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "INSERT INTO trades (%s) VALUES ", tradeColumns)
	args := make([]interface{}, 0, len(trades)*tradeColumnCount)
	for i, t := range trades {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteByte('(')
		for c := 0; c < tradeColumnCount; c++ {
			if c > 0 {
				sb.WriteByte(',')
			}
			fmt.Fprintf(&sb, "$%d", i*tradeColumnCount+c+1)
		}
		sb.WriteByte(')')
		args = appendTradeArgs(args, t)
	}
	sb.WriteString(" ON CONFLICT (created_at, tx_hash, pool_id, msg_index) DO NOTHING")

	if _, err := r.db.Exec(ctx, sb.String(), args...); err != nil {
		return fmt.Errorf("failed to insert trade batch of %d: %w", len(trades), err)
	}
	return nil
}

// BroadcastTrade is a trade row joined with its pool, as consumed by the
// live broadcaster.
type BroadcastTrade struct {
	Trade        models.Trade
	PairContract string
	BaseTokenID  int64
	BaseDenom    string
	BaseExponent int
	BaseSymbol   string
	QuoteDenom   string
	QuoteExp     int
	IsUzigQuote  bool
}

// TradesSince returns trades strictly newer than the watermark, oldest
// first, capped at limit.
func (r *Repository) TradesSince(ctx context.Context, watermark time.Time, limit int) ([]BroadcastTrade, error) {
	rows, err := r.db.Query(ctx, `
		SELECT t.id, t.pool_id, t.tx_hash, t.msg_index, t.action, t.direction,
		       COALESCE(t.offer_denom,''), COALESCE(t.offer_amount_base,''),
		       COALESCE(t.ask_denom,''), COALESCE(t.ask_amount_base,''),
		       COALESCE(t.return_amount_base,''),
		       COALESCE(t.signer,''), t.is_router, COALESCE(t.size_class,''),
		       t.block_height, t.created_at,
		       p.pair_contract, p.base_token_id, p.base_denom, bt.exponent, COALESCE(bt.symbol,''),
		       p.quote_denom, qt.exponent, p.is_uzig_quote
		FROM trades t
		JOIN pools p ON p.id = t.pool_id
		JOIN tokens bt ON bt.id = p.base_token_id
		JOIN tokens qt ON qt.id = p.quote_token_id
		WHERE t.created_at > $1
		ORDER BY t.created_at ASC, t.msg_index ASC
		LIMIT $2`, watermark, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []BroadcastTrade
	for rows.Next() {
		var bt BroadcastTrade
		err := rows.Scan(
			&bt.Trade.ID, &bt.Trade.PoolID, &bt.Trade.TxHash, &bt.Trade.MsgIndex,
			&bt.Trade.Action, &bt.Trade.Direction,
			&bt.Trade.OfferDenom, &bt.Trade.OfferAmountBase,
			&bt.Trade.AskDenom, &bt.Trade.AskAmountBase,
			&bt.Trade.ReturnAmountBase,
			&bt.Trade.Signer, &bt.Trade.IsRouter, &bt.Trade.SizeClass,
			&bt.Trade.BlockHeight, &bt.Trade.CreatedAt,
			&bt.PairContract, &bt.BaseTokenID, &bt.BaseDenom, &bt.BaseExponent, &bt.BaseSymbol,
			&bt.QuoteDenom, &bt.QuoteExp, &bt.IsUzigQuote,
		)
		if err != nil {
			return nil, err
		}
		out = append(out, bt)
	}
	return out, rows.Err()
}
