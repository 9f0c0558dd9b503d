package api

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"degenter/internal/market"
	"degenter/internal/models"
	"degenter/internal/repository"
)

func TestShape_Swap(t *testing.T) {
	t.Parallel()

	prices := market.NewPriceCache()
	prices.Set(market.NativeAsset, 0.02, time.Now())
	b := NewBroadcaster(nil, NewHub(), prices)

	created := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	row := repository.BroadcastTrade{
		Trade: models.Trade{
			TxHash:           "ABC123",
			Action:           models.ActionSwap,
			Direction:        models.DirectionBuy,
			OfferDenom:       "uzig",
			OfferAmountBase:  "1500000000", // 1500 ZIG in
			AskDenom:         "factory/zig1abc/ucoin",
			AskAmountBase:    "380000000",
			ReturnAmountBase: "375000000",
			Signer:           "zig1signer",
			CreatedAt:        created,
		},
		PairContract: "zig1pair",
		BaseTokenID:  7,
		BaseDenom:    "factory/zig1abc/ucoin",
		BaseExponent: 6,
		BaseSymbol:   "COIN",
		QuoteDenom:   "uzig",
		QuoteExp:     6,
		IsUzigQuote:  true,
	}

	msg := b.Shape(row)
	require.Equal(t, "trade", msg.Type)
	d := msg.Data
	require.Equal(t, "ABC123", d.TxHash)
	require.Equal(t, "zig1pair", d.PairContract)
	require.Equal(t, models.DirectionBuy, d.Direction)

	// Base-unit strings pass through untouched; display floats are shifted
	// by each leg's exponent.
	require.Equal(t, "1500000000", d.OfferAmountBase)
	require.InDelta(t, 1500.0, d.OfferAmount, 1e-9)
	require.InDelta(t, 380.0, d.AskAmount, 1e-9)
	require.InDelta(t, 375.0, d.ReturnAmount, 1e-9)

	// Native notional is the uzig leg; USD applies the cached quote.
	require.InDelta(t, 1500.0, d.ValueNative, 1e-9)
	require.InDelta(t, 30.0, d.ValueUsd, 1e-9)
}

func TestShape_SellUsesAskLegForNative(t *testing.T) {
	t.Parallel()

	b := NewBroadcaster(nil, NewHub(), market.NewPriceCache())

	row := repository.BroadcastTrade{
		Trade: models.Trade{
			Action:          models.ActionSwap,
			Direction:       models.DirectionSell,
			OfferDenom:      "factory/zig1abc/ucoin",
			OfferAmountBase: "380000000",
			AskDenom:        "uzig",
			AskAmountBase:   "25000000", // 25 ZIG out
			CreatedAt:       time.Now(),
		},
		PairContract: "zig1pair",
		BaseDenom:    "factory/zig1abc/ucoin",
		BaseExponent: 6,
		QuoteDenom:   "uzig",
		QuoteExp:     6,
	}

	d := b.Shape(row).Data
	require.InDelta(t, 25.0, d.ValueNative, 1e-9)
	// No cached quote: valueUsd stays zero rather than going stale.
	require.Zero(t, d.ValueUsd)
	// Offer leg is the base token here, so its exponent applies.
	require.InDelta(t, 380.0, d.OfferAmount, 1e-9)
}

func TestShape_ProvideHasNoNotional(t *testing.T) {
	t.Parallel()

	prices := market.NewPriceCache()
	prices.Set(market.NativeAsset, 0.02, time.Now())
	b := NewBroadcaster(nil, NewHub(), prices)

	row := repository.BroadcastTrade{
		Trade: models.Trade{
			Action:           models.ActionProvide,
			Direction:        models.DirectionProvide,
			ReturnAmountBase: "123456789", // LP shares minted
			CreatedAt:        time.Now(),
		},
		PairContract: "zig1pair",
		BaseDenom:    "factory/zig1abc/ucoin",
		BaseExponent: 6,
		QuoteDenom:   "uzig",
		QuoteExp:     6,
	}

	d := b.Shape(row).Data
	require.Zero(t, d.ValueNative)
	require.Zero(t, d.ValueUsd)
	require.Zero(t, d.OfferAmount)
	require.Equal(t, "", d.OfferDenom)
	require.Equal(t, "123456789", d.ReturnAmountBase)
}
