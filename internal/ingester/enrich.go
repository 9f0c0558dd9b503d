package ingester

import (
	"context"
	"log"
	"strings"

	"degenter/internal/chain"
	"degenter/internal/models"
	"degenter/internal/repository"
)

// EnrichTokenMeta fills a token's name/symbol/display/exponent/supply from
// the LCD. Failures are logged, never propagated: metadata is best-effort
// and the backfill worker retries later. Race-tolerant because the write is
// a single keyed UPDATE.
func EnrichTokenMeta(ctx context.Context, lcd *chain.LCDClient, repo *repository.Repository, denom string) {
	if _, err := repo.UpsertTokenMinimal(ctx, denom); err != nil {
		log.Printf("[TokenMeta] %s: ensure row: %v", denom, err)
		return
	}

	meta, err := lcd.DenomMetadata(ctx, denom)
	if err != nil {
		if err != chain.ErrNotFound {
			log.Printf("[TokenMeta] %s: metadata: %v", denom, err)
		}
		return
	}

	symbol := meta.Symbol
	if symbol == "" {
		symbol = fallbackSymbol(denom)
	}
	name := meta.Name
	if name == "" {
		name = symbol
	}

	supply, err := lcd.SupplyOf(ctx, denom)
	if err != nil {
		supply = ""
	}

	exponent := meta.DisplayExponent()
	if err := repo.SetTokenMeta(ctx, denom, name, symbol, meta.Display, exponent, supply); err != nil {
		log.Printf("[TokenMeta] %s: save: %v", denom, err)
	}
}

// fallbackSymbol derives a display symbol from the denom when the bank
// metadata carries none: the subdenom for factory tokens, the denom itself
// otherwise.
func fallbackSymbol(denom string) string {
	if strings.HasPrefix(denom, "factory/") {
		parts := strings.Split(denom, "/")
		return strings.ToUpper(strings.TrimPrefix(parts[len(parts)-1], "u"))
	}
	if denom == models.UZIGDenom {
		return "ZIG"
	}
	return denom
}
