package ingester

import (
	"testing"

	"degenter/internal/models"
)

func TestClassifyDirection(t *testing.T) {
	t.Parallel()

	pool := &models.PoolWithTokens{Pool: models.Pool{
		BaseDenom:  "factory/zig1abc/ucoin",
		QuoteDenom: "uzig",
	}}

	cases := []struct {
		offer string
		ask   string
		want  string
	}{
		// offering the quote buys the base
		{"uzig", "factory/zig1abc/ucoin", models.DirectionBuy},
		// offering the base sells it
		{"factory/zig1abc/ucoin", "uzig", models.DirectionSell},
		// offer unknown: decide from the ask leg
		{"", "factory/zig1abc/ucoin", models.DirectionBuy},
		{"", "uzig", models.DirectionSell},
		// nothing matches: default buy
		{"uother", "uother2", models.DirectionBuy},
	}

	for _, tc := range cases {
		if got := classifyDirection(pool, tc.offer, tc.ask); got != tc.want {
			t.Fatalf("classifyDirection(%q,%q)=%q want %q", tc.offer, tc.ask, got, tc.want)
		}
	}
}
