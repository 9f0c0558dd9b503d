package pricing

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"degenter/internal/models"
)

func TestPriceFromReserves(t *testing.T) {
	t.Parallel()

	base := TokenSide{Denom: "factory/zig1abc/ucoin", Exponent: 6}
	quote := TokenSide{Denom: "uzig", Exponent: 6}

	// 1.0 ZIG of quote reserves against 0.25 of base: price 4.0
	legs := []Leg{
		{Denom: "uzig", Amount: "1000000"},
		{Denom: "factory/zig1abc/ucoin", Amount: "250000"},
	}
	price, ok := PriceFromReserves(base, quote, legs)
	if !ok {
		t.Fatal("expected ok")
	}
	if !price.Equal(decimal.NewFromInt(4)) {
		t.Fatalf("price = %s, want 4", price)
	}

	// Exponent mismatch shifts the ratio: base with exponent 8.
	price, ok = PriceFromReserves(TokenSide{Denom: base.Denom, Exponent: 8}, quote, legs)
	if !ok {
		t.Fatal("expected ok")
	}
	if !price.Equal(decimal.NewFromInt(400)) {
		t.Fatalf("price = %s, want 400", price)
	}

	// Zero reserve: no price.
	if _, ok := PriceFromReserves(base, quote, []Leg{
		{Denom: "uzig", Amount: "0"},
		{Denom: base.Denom, Amount: "250000"},
	}); ok {
		t.Error("zero quote reserve should not price")
	}

	// Unmatched denom: no price.
	if _, ok := PriceFromReserves(base, quote, []Leg{
		{Denom: "uzig", Amount: "1000000"},
		{Denom: "uother", Amount: "5"},
	}); ok {
		t.Error("unmatched base leg should not price")
	}
}

func TestSizeClass(t *testing.T) {
	t.Parallel()

	cases := []struct {
		zig  int64
		want string
	}{
		{0, models.SizeShrimp},
		{999, models.SizeShrimp},
		{1000, models.SizeShark}, // boundary is inclusive upward
		{9999, models.SizeShark},
		{10000, models.SizeWhale},
		{1000000, models.SizeWhale},
	}
	for _, tc := range cases {
		if got := SizeClass(decimal.NewFromInt(tc.zig)); got != tc.want {
			t.Fatalf("SizeClass(%d)=%s want %s", tc.zig, got, tc.want)
		}
	}
}

func TestNativeNotional(t *testing.T) {
	t.Parallel()

	// offer leg native: 1500 ZIG
	z, ok := NativeNotional("uzig", "1500000000", "ucoin", "1")
	if !ok || !z.Equal(decimal.NewFromInt(1500)) {
		t.Fatalf("offer leg: z=%s ok=%v", z, ok)
	}

	// ask leg native
	z, ok = NativeNotional("ucoin", "1", "uzig", "25000000")
	if !ok || !z.Equal(decimal.NewFromInt(25)) {
		t.Fatalf("ask leg: z=%s ok=%v", z, ok)
	}

	// neither leg native
	if _, ok := NativeNotional("ua", "1", "ub", "2"); ok {
		t.Error("non-native trade should have no notional")
	}
}

func TestClassifyTrade(t *testing.T) {
	t.Parallel()

	if got := ClassifyTrade("uzig", "999999999", "ucoin", "1"); got != models.SizeShrimp {
		t.Errorf("999.99 ZIG = %s, want shrimp", got)
	}
	if got := ClassifyTrade("ucoin", "1", "uzig", "10000000000"); got != models.SizeWhale {
		t.Errorf("10000 ZIG = %s, want whale", got)
	}
	if got := ClassifyTrade("ua", "1", "ub", "2"); got != "" {
		t.Errorf("non-native trade = %q, want empty", got)
	}
}

func TestMinuteBucket(t *testing.T) {
	t.Parallel()

	loc := time.FixedZone("UTC+5", 5*3600)
	in := time.Date(2025, 6, 1, 12, 34, 56, 789e6, loc)
	got := MinuteBucket(in)

	want := time.Date(2025, 6, 1, 7, 34, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("MinuteBucket = %s, want %s", got, want)
	}
	if got.Location() != time.UTC {
		t.Errorf("bucket not in UTC: %s", got.Location())
	}
}

func TestBucketWindow(t *testing.T) {
	t.Parallel()

	for _, bucket := range models.MatrixBuckets {
		if _, ok := BucketWindow(bucket); !ok {
			t.Errorf("bucket %q has no window", bucket)
		}
	}
	if _, ok := BucketWindow("7d"); ok {
		t.Error("unknown bucket should not resolve")
	}
}
