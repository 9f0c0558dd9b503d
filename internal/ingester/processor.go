package ingester

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"degenter/internal/chain"
	"degenter/internal/eventbus"
	"degenter/internal/events"
	"degenter/internal/models"
	"degenter/internal/pricing"
	"degenter/internal/repository"
)

// ProcessorConfig holds the block pipeline knobs.
type ProcessorConfig struct {
	Concurrency     int // max parallel tasks within a phase
	MaxPendingTasks int // phase-2 backpressure threshold during scan
	RouterAddr      string
	FactoryAddr     string
}

// Processor turns one block height into pool/trade/price/candle writes.
// Phase-1 (pool creation) fully drains before phase-2 (trades) so trades
// can always resolve their pool; low-priority metadata fetches run last at
// reduced concurrency.
type Processor struct {
	rpc  *chain.RPCClient
	lcd  *chain.LCDClient
	repo *repository.Repository
	bus  *eventbus.Bus
	sink *TradeSink
	cfg  ProcessorConfig

	// Pool cache: written by phase-1 and the prefetch step, read by
	// phase-2. Phase ordering makes reads see a consistent snapshot.
	cacheMu   sync.RWMutex
	poolCache map[string]*models.PoolWithTokens

	// Denoms whose metadata fetch was already scheduled this process.
	seenMu     sync.Mutex
	seenDenoms map[string]bool

	// Bars touched by the current height; their volume/trade_count totals
	// are recomputed from trades after the sink drains.
	barMu       sync.Mutex
	touchedBars map[barKey]struct{}
}

type barKey struct {
	poolID int64
	bucket time.Time
}

func NewProcessor(rpc *chain.RPCClient, lcd *chain.LCDClient, repo *repository.Repository, bus *eventbus.Bus, sink *TradeSink, cfg ProcessorConfig) *Processor {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 12
	}
	if cfg.MaxPendingTasks <= 0 {
		cfg.MaxPendingTasks = 5000
	}
	return &Processor{
		rpc:        rpc,
		lcd:        lcd,
		repo:       repo,
		bus:        bus,
		sink:       sink,
		cfg:        cfg,
		poolCache:   make(map[string]*models.PoolWithTokens),
		seenDenoms:  make(map[string]bool),
		touchedBars: make(map[barKey]struct{}),
	}
}

// Tagged task records. Keeping the scan side declarative makes the phase
// boundaries and instrumentation labels explicit.
type poolUpsertReq struct {
	ev     events.Event
	txHash string
	sender string
}

type tradeReq struct {
	action   string // swap | provide | withdraw
	ev       events.Event
	msgIndex int // resolved: event msg_index, or its ordinal within the tx
	txHash   string
	sender   string
	router   bool
}

type metaFetchReq struct {
	denom string
}

// ProcessHeight runs the full pipeline for one height. On error the height
// is abandoned without advancing index_state; the caller retries and every
// write path is idempotent against the replay.
func (p *Processor) ProcessHeight(ctx context.Context, height int64) error {
	start := time.Now()

	// 1. Fetch block and block-results in parallel.
	var block *chain.Block
	var results *chain.BlockResults
	var blockErr, resultsErr error
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		block, blockErr = p.rpc.Block(ctx, height)
	}()
	go func() {
		defer wg.Done()
		results, resultsErr = p.rpc.BlockResults(ctx, height)
	}()
	wg.Wait()
	if blockErr != nil {
		return fmt.Errorf("fetch block %d: %w", height, blockErr)
	}
	if resultsErr != nil {
		return fmt.Errorf("fetch block results %d: %w", height, resultsErr)
	}

	timer := NewTaskTimer()

	// 2. Scan transactions into phase task lists.
	var phase1 []poolUpsertReq
	var phase2 []tradeReq
	var lowPrio []metaFetchReq
	phase1Done := false

	for ti, txRes := range results.TxsResults {
		if txRes.Code != 0 {
			continue // failed txs emit no committed state
		}
		if ti >= len(block.Txs) {
			log.Printf("[BlockProc] height %d: results has tx %d but block has %d txs", height, ti, len(block.Txs))
			break
		}
		txHash := events.TxHash(block.Txs[ti])
		evs := events.Decode(txRes.Events)
		senders := events.MsgSenderMap(evs)

		for _, ev := range events.WasmByAction(evs, "create_pair") {
			phase1 = append(phase1, poolUpsertReq{ev: ev, txHash: txHash, sender: senders[maxInt(ev.MsgIndex, 0)]})
		}

		for _, req := range p.collectTradeReqs(txHash, evs, senders) {
			phase2 = append(phase2, req)
			p.scheduleMetaFetch(req.ev, &lowPrio)
		}

		// Backpressure: flush phase-2 through the scheduler before the
		// scan outgrows the pending-task bound.
		if len(phase2) >= p.cfg.MaxPendingTasks {
			if !phase1Done {
				if err := p.drainPhase1(ctx, phase1, block, timer); err != nil {
					return err
				}
				phase1, phase1Done = nil, true
			}
			if err := p.drainPhase2(ctx, phase2, block, timer); err != nil {
				return err
			}
			phase2 = nil
		}
	}

	// 3. Phase-1 before phase-2 so trades can resolve their pool.
	if !phase1Done {
		if err := p.drainPhase1(ctx, phase1, block, timer); err != nil {
			return err
		}
	}

	// 4+5. Prefetch referenced pools, then drain phase-2.
	if err := p.drainPhase2(ctx, phase2, block, timer); err != nil {
		return err
	}

	// Trades must be on disk before the watermark moves.
	if err := p.sink.Drain(ctx); err != nil {
		return fmt.Errorf("height %d: trade sink drain: %w", height, err)
	}

	// Bar totals derive from the now-persisted trades; recomputing them
	// here (instead of accumulating per trade) keeps replays convergent.
	for _, bar := range p.takeBars() {
		if err := p.repo.RefreshCandleTotals(ctx, bar.poolID, bar.bucket); err != nil {
			return fmt.Errorf("height %d: candle totals pool=%d: %w", height, bar.poolID, err)
		}
	}

	// 6. Low-priority metadata fetches at a smaller cap. Failures here are
	// logged by the tasks themselves and never fail the height.
	if len(lowPrio) > 0 {
		tasks := make([]Task, 0, len(lowPrio))
		for _, req := range lowPrio {
			denom := req.denom
			tasks = append(tasks, Task{Label: "meta", Run: func(ctx context.Context) error {
				EnrichTokenMeta(ctx, p.lcd, p.repo, denom)
				return nil
			}})
		}
		lowCap := p.cfg.Concurrency / 4
		if lowCap < 1 {
			lowCap = 1
		}
		RunWithConcurrency(ctx, tasks, lowCap, timer, "lowprio")
	}

	if err := p.repo.SetLastIndexedHeight(ctx, repository.ServiceName, height); err != nil {
		return err
	}

	if len(phase1)+len(phase2)+len(lowPrio) > 0 {
		log.Printf("[BlockProc] height %d done in %s (%s)", height, time.Since(start).Round(time.Millisecond), timer.Summary())
	}
	return nil
}

// collectTradeReqs builds one tx's phase-2 requests. When the node omits
// msg_index from wasm events the event's ordinal within the tx is used
// instead, so two trades on the same pool in one tx never collide on the
// insert key.
func (p *Processor) collectTradeReqs(txHash string, evs []events.Event, senders map[int]string) []tradeReq {
	var out []tradeReq
	ordinal := 0
	for _, action := range []string{"swap", "provide_liquidity", "withdraw_liquidity"} {
		for _, ev := range events.WasmByAction(evs, action) {
			msgIdx := ev.MsgIndex
			if msgIdx < 0 {
				msgIdx = ordinal
			}
			ordinal++
			req := tradeReq{
				action:   tradeAction(action),
				ev:       ev,
				msgIndex: msgIdx,
				txHash:   txHash,
				sender:   senders[maxInt(ev.MsgIndex, 0)],
			}
			if action == "swap" {
				req.router = p.isRouterSwap(req.sender, ev, evs)
			}
			out = append(out, req)
		}
	}
	return out
}

func (p *Processor) markBar(poolID int64, bucket time.Time) {
	p.barMu.Lock()
	p.touchedBars[barKey{poolID: poolID, bucket: bucket}] = struct{}{}
	p.barMu.Unlock()
}

// takeBars swaps out the touched-bar set for the finishing height.
func (p *Processor) takeBars() []barKey {
	p.barMu.Lock()
	defer p.barMu.Unlock()
	out := make([]barKey, 0, len(p.touchedBars))
	for k := range p.touchedBars {
		out = append(out, k)
	}
	p.touchedBars = make(map[barKey]struct{})
	return out
}

func tradeAction(wasmAction string) string {
	switch wasmAction {
	case "provide_liquidity":
		return models.ActionProvide
	case "withdraw_liquidity":
		return models.ActionWithdraw
	default:
		return models.ActionSwap
	}
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// isRouterSwap reports whether the swap was routed: the sender is the
// configured router, or an execute event with the same msg_index targets it.
func (p *Processor) isRouterSwap(sender string, swapEv events.Event, all []events.Event) bool {
	if p.cfg.RouterAddr == "" {
		return false
	}
	if sender == p.cfg.RouterAddr {
		return true
	}
	for _, ev := range all {
		if ev.Type != "execute" {
			continue
		}
		if ev.MsgIndex >= 0 && swapEv.MsgIndex >= 0 && ev.MsgIndex != swapEv.MsgIndex {
			continue
		}
		if ev.Attrs.Get("_contract_address") == p.cfg.RouterAddr {
			return true
		}
	}
	return false
}

// scheduleMetaFetch queues a first-time metadata fetch for each denom
// referenced by the event, deduplicated process-wide.
func (p *Processor) scheduleMetaFetch(ev events.Event, out *[]metaFetchReq) {
	for _, key := range []string{"offer_asset", "ask_asset"} {
		denom := ev.Attrs.Get(key)
		if denom == "" || denom == models.UZIGDenom {
			continue
		}
		p.seenMu.Lock()
		seen := p.seenDenoms[denom]
		if !seen {
			p.seenDenoms[denom] = true
		}
		p.seenMu.Unlock()
		if !seen {
			*out = append(*out, metaFetchReq{denom: denom})
		}
	}
}

// drainPhase1 upserts every created pool and publishes pair_created.
func (p *Processor) drainPhase1(ctx context.Context, reqs []poolUpsertReq, block *chain.Block, timer *TaskTimer) error {
	if len(reqs) == 0 {
		return nil
	}
	tasks := make([]Task, 0, len(reqs))
	for _, req := range reqs {
		req := req
		tasks = append(tasks, Task{Label: "pool", Run: func(ctx context.Context) error {
			return p.handleCreatePair(ctx, req, block)
		}})
	}
	if err := RunWithConcurrency(ctx, tasks, p.cfg.Concurrency, timer, "phase1"); err != nil {
		return fmt.Errorf("height %d phase-1: %w", block.Height, err)
	}
	return nil
}

func (p *Processor) handleCreatePair(ctx context.Context, req poolUpsertReq, block *chain.Block) error {
	attrs := req.ev.Attrs
	legs, ok := events.NormalizePair(attrs.Get("pair"))
	if !ok {
		log.Printf("[BlockProc] height %d: create_pair with malformed pair %q, skipping", block.Height, attrs.Get("pair"))
		return nil
	}

	pairContract := attrs.Get("pair_contract_addr")
	if pairContract == "" {
		pairContract = attrs.Get("_contract_address")
	}
	if pairContract == "" {
		log.Printf("[BlockProc] height %d: create_pair without pair contract, skipping", block.Height)
		return nil
	}

	pairType := attrs.Get("pair_type")
	switch pairType {
	case models.PairTypeXYK, models.PairTypeConcentrated, models.PairTypeCustom:
	default:
		pairType = models.PairTypeXYK
	}

	factory := attrs.Get("_contract_address")
	if p.cfg.FactoryAddr != "" && factory == pairContract {
		factory = p.cfg.FactoryAddr
	}

	pool := models.Pool{
		PairContract:    pairContract,
		BaseDenom:       legs.Base,
		QuoteDenom:      legs.Quote,
		PairType:        pairType,
		Creator:         req.sender,
		TxHash:          req.txHash,
		FactoryContract: factory,
		BlockHeight:     block.Height,
		CreatedAt:       block.Time,
	}

	poolID, err := p.repo.UpsertPool(ctx, pool)
	if err != nil {
		return err
	}

	pwt, err := p.repo.PoolWithTokens(ctx, pairContract)
	if err != nil || pwt == nil {
		return fmt.Errorf("pool %s vanished after upsert: %w", pairContract, err)
	}

	p.cacheMu.Lock()
	p.poolCache[pairContract] = pwt
	p.cacheMu.Unlock()

	p.bus.Publish(eventbus.Event{
		Topic:     eventbus.TopicPairCreated,
		Height:    block.Height,
		Timestamp: block.Time,
		Data: models.PairCreated{
			PoolID:       poolID,
			PairContract: pairContract,
			BaseDenom:    pwt.Pool.BaseDenom,
			QuoteDenom:   pwt.Pool.QuoteDenom,
			BaseTokenID:  pwt.Pool.BaseTokenID,
			QuoteTokenID: pwt.Pool.QuoteTokenID,
			IsUzigQuote:  pwt.Pool.IsUzigQuote,
		},
	})

	log.Printf("[BlockProc] pair created: %s (%s/%s) pool_id=%d", pairContract, pwt.Pool.BaseDenom, pwt.Pool.QuoteDenom, poolID)
	return nil
}

// drainPhase2 prefetches every referenced pool, then runs the trade tasks.
func (p *Processor) drainPhase2(ctx context.Context, reqs []tradeReq, block *chain.Block, timer *TaskTimer) error {
	if len(reqs) == 0 {
		return nil
	}

	if err := p.prefetchPools(ctx, reqs); err != nil {
		return fmt.Errorf("height %d prefetch: %w", block.Height, err)
	}

	tasks := make([]Task, 0, len(reqs))
	for _, req := range reqs {
		req := req
		tasks = append(tasks, Task{Label: "trade", Run: func(ctx context.Context) error {
			return p.handleTrade(ctx, req, block)
		}})
	}
	if err := RunWithConcurrency(ctx, tasks, p.cfg.Concurrency, timer, "phase2"); err != nil {
		return fmt.Errorf("height %d phase-2: %w", block.Height, err)
	}
	return nil
}

func (p *Processor) prefetchPools(ctx context.Context, reqs []tradeReq) error {
	var missing []string
	seen := make(map[string]bool)
	p.cacheMu.RLock()
	for _, req := range reqs {
		pc := req.ev.Attrs.Get("_contract_address")
		if pc == "" || seen[pc] {
			continue
		}
		seen[pc] = true
		if _, ok := p.poolCache[pc]; !ok {
			missing = append(missing, pc)
		}
	}
	p.cacheMu.RUnlock()

	if len(missing) == 0 {
		return nil
	}
	fetched, err := p.repo.PoolsByPairContracts(ctx, missing)
	if err != nil {
		return err
	}
	p.cacheMu.Lock()
	for pc, pwt := range fetched {
		p.poolCache[pc] = pwt
	}
	p.cacheMu.Unlock()
	return nil
}

func (p *Processor) lookupPool(pairContract string) *models.PoolWithTokens {
	p.cacheMu.RLock()
	defer p.cacheMu.RUnlock()
	return p.poolCache[pairContract]
}

// handleTrade turns one swap/provide/withdraw event into a trade insert
// plus, for swaps on native-quote pools, pool state, price and candle
// writes.
func (p *Processor) handleTrade(ctx context.Context, req tradeReq, block *chain.Block) error {
	attrs := req.ev.Attrs
	pairContract := attrs.Get("_contract_address")
	pool := p.lookupPool(pairContract)
	if pool == nil {
		// Phase-1 of a later height may not have run yet; the replay of
		// this height after it lands will recover the trade.
		log.Printf("[BlockProc] height %d: %s on unknown pool %s, skipping", block.Height, req.action, pairContract)
		return nil
	}

	trade := models.Trade{
		PoolID:      pool.Pool.ID,
		TxHash:      req.txHash,
		MsgIndex:    req.msgIndex,
		Action:      req.action,
		Signer:      req.sender,
		IsRouter:    req.router,
		BlockHeight: block.Height,
		CreatedAt:   block.Time,
	}

	legs := p.extractReserves(attrs)

	switch req.action {
	case models.ActionSwap:
		trade.OfferDenom = attrs.Get("offer_asset")
		trade.AskDenom = attrs.Get("ask_asset")
		trade.OfferAmountBase = attrs.Digits("offer_amount")
		trade.AskAmountBase = attrs.Digits("return_amount")
		trade.ReturnAmountBase = trade.AskAmountBase
		trade.Direction = classifyDirection(pool, trade.OfferDenom, trade.AskDenom)
	case models.ActionProvide:
		trade.Direction = models.DirectionProvide
		trade.ReturnAmountBase = attrs.Digits("share")
	case models.ActionWithdraw:
		trade.Direction = models.DirectionWithdraw
		trade.ReturnAmountBase = attrs.Digits("withdrawn_share")
	}

	if len(legs) == 2 {
		trade.Reserve1Denom, trade.Reserve1Amount = legs[0].Denom, legs[0].Amount
		trade.Reserve2Denom, trade.Reserve2Amount = legs[1].Denom, legs[1].Amount
	}

	p.sink.Insert(trade)

	// Reserve-derived writes. Prices are computed in the block path only
	// for native-quote pools; cross-conversion is the shapers' job.
	if len(legs) == 2 {
		if err := p.repo.UpsertPoolState(ctx, pool.Pool.ID,
			pool.Pool.BaseDenom, pool.Pool.QuoteDenom,
			legs[0].Denom, legs[0].Amount, legs[1].Denom, legs[1].Amount,
			block.Height); err != nil {
			log.Printf("[BlockProc] height %d: pool state %s: %v", block.Height, pairContract, err)
		}

		if pool.Pool.IsUzigQuote {
			price, ok := pricing.PriceFromReserves(
				pricing.TokenSide{Denom: pool.Pool.BaseDenom, Exponent: pool.Base.Exponent},
				pricing.TokenSide{Denom: pool.Pool.QuoteDenom, Exponent: pool.Quote.Exponent},
				[]pricing.Leg{{Denom: legs[0].Denom, Amount: legs[0].Amount}, {Denom: legs[1].Denom, Amount: legs[1].Amount}},
			)
			if ok {
				if err := p.repo.UpsertPrice(ctx, pool.Pool.BaseTokenID, pool.Pool.ID, price, true, block.Time); err != nil {
					return err
				}
				if req.action == models.ActionSwap {
					bucket := pricing.MinuteBucket(block.Time)
					if err := p.repo.UpsertCandle(ctx, pool.Pool.ID, bucket, price); err != nil {
						return err
					}
					p.markBar(pool.Pool.ID, bucket)
				}
			}
		}
	}

	return nil
}

// extractReserves applies the fallback order: direct reserve attributes,
// then the structured reserves / assets / refund_assets attribute.
func (p *Processor) extractReserves(attrs events.Attrs) []events.AssetAmount {
	r1d, r1a := attrs.Get("reserve_asset1_denom"), attrs.Digits("reserve_asset1_amount")
	r2d, r2a := attrs.Get("reserve_asset2_denom"), attrs.Digits("reserve_asset2_amount")
	if r1d != "" && r1a != "" && r2d != "" && r2a != "" {
		return []events.AssetAmount{{Denom: r1d, Amount: r1a}, {Denom: r2d, Amount: r2a}}
	}

	if s := attrs.Get("reserves"); s != "" {
		if legs := events.ParseReservesKV(s); len(legs) == 2 {
			return legs
		}
	}
	for _, key := range []string{"assets", "refund_assets"} {
		if s := attrs.Get(key); s != "" {
			if legs := events.ParseAssetsList(s); len(legs) == 2 {
				return legs
			}
		}
	}
	return nil
}

// classifyDirection: buy when offering the quote, sell when offering the
// base, falling back to ask-denom symmetry when the offer denom is foreign.
func classifyDirection(pool *models.PoolWithTokens, offerDenom, askDenom string) string {
	switch offerDenom {
	case pool.Pool.QuoteDenom:
		return models.DirectionBuy
	case pool.Pool.BaseDenom:
		return models.DirectionSell
	}
	switch askDenom {
	case pool.Pool.BaseDenom:
		return models.DirectionBuy
	case pool.Pool.QuoteDenom:
		return models.DirectionSell
	}
	return models.DirectionBuy
}
