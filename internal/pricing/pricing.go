// Package pricing holds the pure math of the indexer: reserve-based price
// derivation, trade size classification and candle bucketing. Amounts come
// in as decimal strings and leave as decimals; floats appear only in the
// display shapers.
package pricing

import (
	"time"

	"github.com/shopspring/decimal"

	"degenter/internal/models"
)

// Size class thresholds in whole ZIG (native display units).
var (
	sharkThreshold = decimal.NewFromInt(1000)
	whaleThreshold = decimal.NewFromInt(10000)
	uzigScale      = decimal.New(1, 6) // 10^6 micro-units per ZIG
)

// TokenSide describes one side of a pair for price derivation.
type TokenSide struct {
	Denom    string
	Exponent int
}

// Leg is a reserve observation in base units.
type Leg struct {
	Denom  string
	Amount string
}

// PriceFromReserves returns quote_display / base_display, matching the two
// reserve legs to (base, quote) by denom. Returns (zero, false) when a leg
// cannot be matched, fails to parse, or either reserve is zero.
func PriceFromReserves(base, quote TokenSide, legs []Leg) (decimal.Decimal, bool) {
	var baseAmt, quoteAmt decimal.Decimal
	var haveBase, haveQuote bool

	for _, leg := range legs {
		amt, err := decimal.NewFromString(leg.Amount)
		if err != nil {
			continue
		}
		switch leg.Denom {
		case base.Denom:
			baseAmt, haveBase = amt, true
		case quote.Denom:
			quoteAmt, haveQuote = amt, true
		}
	}
	if !haveBase || !haveQuote || baseAmt.IsZero() || quoteAmt.IsZero() {
		return decimal.Zero, false
	}

	baseDisplay := baseAmt.Shift(int32(-base.Exponent))
	quoteDisplay := quoteAmt.Shift(int32(-quote.Exponent))
	if baseDisplay.IsZero() {
		return decimal.Zero, false
	}
	return quoteDisplay.DivRound(baseDisplay, 18), true
}

// NativeNotional returns the trade's native-unit notional in whole ZIG when
// either leg is uzig, matching offer first then ask then return.
func NativeNotional(offerDenom, offerAmount, askDenom, askAmount string) (decimal.Decimal, bool) {
	pick := ""
	switch {
	case offerDenom == models.UZIGDenom:
		pick = offerAmount
	case askDenom == models.UZIGDenom:
		pick = askAmount
	default:
		return decimal.Zero, false
	}
	amt, err := decimal.NewFromString(pick)
	if err != nil {
		return decimal.Zero, false
	}
	return amt.Div(uzigScale), true
}

// SizeClass buckets a native-unit notional z (whole ZIG):
// z < 1000 -> shrimp, z < 10000 -> shark, else whale.
func SizeClass(z decimal.Decimal) string {
	switch {
	case z.LessThan(sharkThreshold):
		return models.SizeShrimp
	case z.LessThan(whaleThreshold):
		return models.SizeShark
	default:
		return models.SizeWhale
	}
}

// ClassifyTrade returns the size class for a trade's legs, "" when neither
// leg is the native quote.
func ClassifyTrade(offerDenom, offerAmount, askDenom, askAmount string) string {
	z, ok := NativeNotional(offerDenom, offerAmount, askDenom, askAmount)
	if !ok {
		return ""
	}
	return SizeClass(z)
}

// MinuteBucket is the UTC minute floor used as the ohlcv_1m bucket key.
func MinuteBucket(t time.Time) time.Time {
	return t.UTC().Truncate(time.Minute)
}

// BucketWindow maps a matrix bucket label to its lookback duration.
func BucketWindow(bucket string) (time.Duration, bool) {
	switch bucket {
	case "30m":
		return 30 * time.Minute, true
	case "1h":
		return time.Hour, true
	case "4h":
		return 4 * time.Hour, true
	case "24h":
		return 24 * time.Hour, true
	default:
		return 0, false
	}
}
