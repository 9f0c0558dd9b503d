package ingester

import (
	"context"
	"log"
	"sync"
	"time"

	"degenter/internal/chain"
	"degenter/internal/eventbus"
	"degenter/internal/models"
	"degenter/internal/pricing"
	"degenter/internal/repository"
)

// fewHoldersThreshold marks a token suspicious when almost nobody holds it.
const fewHoldersThreshold = 10

// FastTrack reacts to pair_created: the moment a pool appears it drives
// metadata, holder counts, security flags, matrix rollups and seed pricing
// so the pool is queryable before its first swap. Every step fails in
// isolation.
type FastTrack struct {
	lcd  *chain.LCDClient
	repo *repository.Repository
}

func NewFastTrack(lcd *chain.LCDClient, repo *repository.Repository) *FastTrack {
	return &FastTrack{lcd: lcd, repo: repo}
}

// Start subscribes to the bus. Handler work runs on the subscription's
// dedicated worker, so a slow LCD never stalls the block processor.
func (f *FastTrack) Start(bus *eventbus.Bus) {
	bus.Listen(eventbus.TopicPairCreated, func(evt eventbus.Event) {
		payload, ok := evt.Data.(models.PairCreated)
		if !ok {
			log.Printf("[FastTrack] unexpected payload type %T", evt.Data)
			return
		}
		f.handle(context.Background(), payload, evt.Timestamp)
	})
}

func (f *FastTrack) handle(ctx context.Context, pc models.PairCreated, createdAt time.Time) {
	log.Printf("[FastTrack] new pool %d (%s)", pc.PoolID, pc.PairContract)

	// 1. Metadata for both legs, in parallel.
	var wg sync.WaitGroup
	for _, denom := range []string{pc.BaseDenom, pc.QuoteDenom} {
		wg.Add(1)
		go func(d string) {
			defer wg.Done()
			EnrichTokenMeta(ctx, f.lcd, f.repo, d)
		}(denom)
	}
	wg.Wait()

	// 2. Holder counts: base always, quote only when non-native.
	wg.Add(1)
	go func() {
		defer wg.Done()
		f.refreshHolders(ctx, pc.BaseTokenID, pc.BaseDenom)
	}()
	if !pc.IsUzigQuote {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f.refreshHolders(ctx, pc.QuoteTokenID, pc.QuoteDenom)
		}()
	}
	wg.Wait()

	// 3. Security scan.
	f.securityScan(ctx, pc.BaseTokenID, pc.BaseDenom)
	if !pc.IsUzigQuote {
		f.securityScan(ctx, pc.QuoteTokenID, pc.QuoteDenom)
	}

	// 4. Matrix rollups across all buckets.
	for _, bucket := range models.MatrixBuckets {
		if err := f.repo.RefreshPoolMatrix(ctx, pc.PoolID, bucket); err != nil {
			log.Printf("[FastTrack] pool matrix %d/%s: %v", pc.PoolID, bucket, err)
		}
		if err := f.repo.RefreshTokenMatrix(ctx, pc.BaseTokenID, bucket); err != nil {
			log.Printf("[FastTrack] token matrix %d/%s: %v", pc.BaseTokenID, bucket, err)
		}
	}

	// 5. Seed pricing for native-quote pools.
	if pc.IsUzigQuote {
		f.seedPrice(ctx, pc, createdAt)
	}
}

// refreshHolders fetches the holder count, retrying once when it reports
// zero (the LCD lags right after a factory denom mints).
func (f *FastTrack) refreshHolders(ctx context.Context, tokenID int64, denom string) {
	count, err := f.lcd.HolderCount(ctx, denom)
	if err != nil {
		log.Printf("[FastTrack] holders %s: %v", denom, err)
		return
	}
	if count == 0 {
		time.Sleep(2 * time.Second)
		if count, err = f.lcd.HolderCount(ctx, denom); err != nil {
			log.Printf("[FastTrack] holders retry %s: %v", denom, err)
			return
		}
	}
	if err := f.repo.SetTokenHolderCount(ctx, tokenID, count); err != nil {
		log.Printf("[FastTrack] holders save %s: %v", denom, err)
	}
}

func (f *FastTrack) securityScan(ctx context.Context, tokenID int64, denom string) {
	token, err := f.repo.GetTokenByID(ctx, tokenID)
	if err != nil || token == nil {
		log.Printf("[FastTrack] security %s: load token: %v", denom, err)
		return
	}

	flags := models.SecurityFlags{
		TokenID: tokenID,
		// Factory denoms keep their creator as mint authority unless
		// renounced; the conservative default is to flag them.
		HasMintAuth: token.Type == models.TokenTypeFactory,
		NoMetadata:  token.Symbol == "",
		FewHolders:  token.HolderCount > 0 && token.HolderCount < fewHoldersThreshold,
	}
	if err := f.repo.UpsertSecurityFlags(ctx, flags); err != nil {
		log.Printf("[FastTrack] security save %s: %v", denom, err)
	}
}

// seedPrice fetches on-chain reserves once the base exponent is known and
// writes one price row and one zero-volume candle at the creation minute,
// so a freshly created pool is immediately queryable.
func (f *FastTrack) seedPrice(ctx context.Context, pc models.PairCreated, createdAt time.Time) {
	base, err := f.repo.GetTokenByID(ctx, pc.BaseTokenID)
	if err != nil || base == nil {
		log.Printf("[FastTrack] seed %s: load base token: %v", pc.PairContract, err)
		return
	}

	legs, err := f.lcd.PoolReserves(ctx, pc.PairContract)
	if err != nil {
		log.Printf("[FastTrack] seed %s: reserves: %v", pc.PairContract, err)
		return
	}
	plegs := make([]pricing.Leg, 0, len(legs))
	for _, l := range legs {
		plegs = append(plegs, pricing.Leg{Denom: l.Denom, Amount: l.Amount})
	}

	price, ok := pricing.PriceFromReserves(
		pricing.TokenSide{Denom: pc.BaseDenom, Exponent: base.Exponent},
		pricing.TokenSide{Denom: pc.QuoteDenom, Exponent: 6},
		plegs,
	)
	if !ok {
		log.Printf("[FastTrack] seed %s: empty or unmatched reserves", pc.PairContract)
		return
	}

	if err := f.repo.UpsertPrice(ctx, pc.BaseTokenID, pc.PoolID, price, true, createdAt); err != nil {
		log.Printf("[FastTrack] seed %s: price: %v", pc.PairContract, err)
		return
	}
	if err := f.repo.UpsertCandle(ctx, pc.PoolID, pricing.MinuteBucket(createdAt), price); err != nil {
		log.Printf("[FastTrack] seed %s: candle: %v", pc.PairContract, err)
	}
}
