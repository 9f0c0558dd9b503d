package api

import (
	"context"
	"encoding/json"
	"log"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"degenter/internal/market"
	"degenter/internal/models"
	"degenter/internal/repository"
)

const (
	pumpInterval  = 2 * time.Second
	pumpBatchSize = 200
	coldStartLag  = 10 * time.Minute
)

// TradeMessage is the WebSocket trade broadcast payload. AmountBase fields
// are decimal strings preserving precision; the Amount/value fields are
// display-unit floats, lossy by design at this boundary.
type TradeMessage struct {
	Type string    `json:"type"`
	Data TradeData `json:"data"`
}

type TradeData struct {
	Time             time.Time `json:"time"`
	TxHash           string    `json:"txHash"`
	PairContract     string    `json:"pairContract"`
	Signer           string    `json:"signer"`
	Direction        string    `json:"direction"`
	OfferDenom       string    `json:"offerDenom"`
	OfferAmountBase  string    `json:"offerAmountBase"`
	OfferAmount      float64   `json:"offerAmount"`
	AskDenom         string    `json:"askDenom"`
	AskAmountBase    string    `json:"askAmountBase"`
	AskAmount        float64   `json:"askAmount"`
	ReturnAmountBase string    `json:"returnAmountBase"`
	ReturnAmount     float64   `json:"returnAmount"`
	ValueNative      float64   `json:"valueNative"`
	ValueUsd         float64   `json:"valueUsd"`
}

// Broadcaster tails the trades table and fans shaped rows out to the hub's
// topic subscribers. The watermark is strictly advanced past broadcast
// rows, so delivery is at-least-once across restarts but duplicate-free
// within a run.
type Broadcaster struct {
	repo      *repository.Repository
	hub       *Hub
	prices    *market.PriceCache
	watermark time.Time
}

func NewBroadcaster(repo *repository.Repository, hub *Hub, prices *market.PriceCache) *Broadcaster {
	return &Broadcaster{
		repo:   repo,
		hub:    hub,
		prices: prices,
		// Cold start: replay the recent window rather than all history.
		watermark: time.Now().Add(-coldStartLag),
	}
}

// Start runs the trade pump until ctx is cancelled.
func (b *Broadcaster) Start(ctx context.Context) {
	log.Printf("[Broadcaster] starting trade pump (every %s)", pumpInterval)
	go func() {
		ticker := time.NewTicker(pumpInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				log.Printf("[Broadcaster] stopping...")
				return
			case <-ticker.C:
				b.pumpOnce(ctx)
			}
		}
	}()
}

func (b *Broadcaster) pumpOnce(ctx context.Context) {
	rows, err := b.repo.TradesSince(ctx, b.watermark, pumpBatchSize)
	if err != nil {
		log.Printf("[Broadcaster] select trades: %v", err)
		return
	}
	if len(rows) == 0 {
		return
	}

	for _, row := range rows {
		frame, err := json.Marshal(b.Shape(row))
		if err != nil {
			log.Printf("[Broadcaster] shape trade %d: %v", row.Trade.ID, err)
			continue
		}

		b.hub.Publish(TopicTrades, frame)
		b.hub.Publish(PairTopic(row.PairContract), frame)
		// Token topics match the pool's base token by id, symbol or denom.
		b.hub.Publish(TokenTopic(strconv.FormatInt(row.BaseTokenID, 10)), frame)
		b.hub.Publish(TokenTopic(row.BaseDenom), frame)
		if row.BaseSymbol != "" {
			b.hub.Publish(TokenTopic(row.BaseSymbol), frame)
		}
	}

	b.watermark = rows[len(rows)-1].Trade.CreatedAt
}

// Shape converts a persisted trade row into the wire payload.
func (b *Broadcaster) Shape(row repository.BroadcastTrade) TradeMessage {
	offerExp, askExp := row.QuoteExp, row.BaseExponent
	if row.Trade.OfferDenom == row.BaseDenom {
		offerExp, askExp = row.BaseExponent, row.QuoteExp
	}

	data := TradeData{
		Time:             row.Trade.CreatedAt,
		TxHash:           row.Trade.TxHash,
		PairContract:     row.PairContract,
		Signer:           row.Trade.Signer,
		Direction:        row.Trade.Direction,
		OfferDenom:       row.Trade.OfferDenom,
		OfferAmountBase:  row.Trade.OfferAmountBase,
		OfferAmount:      displayFloat(row.Trade.OfferAmountBase, offerExp),
		AskDenom:         row.Trade.AskDenom,
		AskAmountBase:    row.Trade.AskAmountBase,
		AskAmount:        displayFloat(row.Trade.AskAmountBase, askExp),
		ReturnAmountBase: row.Trade.ReturnAmountBase,
		ReturnAmount:     displayFloat(row.Trade.ReturnAmountBase, askExp),
	}

	// Native notional: the uzig leg for swaps, zero for provide/withdraw
	// (their leg amounts are not populated).
	if row.Trade.Action == models.ActionSwap {
		switch {
		case row.Trade.OfferDenom == models.UZIGDenom:
			data.ValueNative = displayFloat(row.Trade.OfferAmountBase, 6)
		case row.Trade.AskDenom == models.UZIGDenom:
			data.ValueNative = displayFloat(row.Trade.AskAmountBase, 6)
		}
	}
	if zigUsd, ok := b.prices.GetLatestPrice(market.NativeAsset); ok {
		data.ValueUsd = data.ValueNative * zigUsd
	}

	return TradeMessage{Type: "trade", Data: data}
}

func displayFloat(base string, exponent int) float64 {
	if base == "" {
		return 0
	}
	d, err := decimal.NewFromString(base)
	if err != nil {
		return 0
	}
	f, _ := d.Shift(int32(-exponent)).Float64()
	return f
}
