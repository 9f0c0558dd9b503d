package ingester

import (
	"context"
	"time"

	"degenter/internal/models"
	"degenter/internal/pricing"
	"degenter/internal/repository"
)

// TradeSink is the batched, deduplicated write path for trades. Insert
// enqueues and returns immediately; batches land as one multi-row insert
// whose conflict clause makes height replays idempotent.
type TradeSink struct {
	queue *BatchQueue[models.Trade]
}

func NewTradeSink(repo *repository.Repository, maxItems int, maxWait time.Duration) *TradeSink {
	return &TradeSink{
		queue: NewBatchQueue(maxItems, maxWait, func(ctx context.Context, batch []models.Trade) error {
			return repo.InsertTradeBatch(ctx, batch)
		}),
	}
}

// Insert classifies the trade's size and enqueues it.
func (s *TradeSink) Insert(t models.Trade) {
	if t.Action == models.ActionSwap {
		t.SizeClass = pricing.ClassifyTrade(t.OfferDenom, t.OfferAmountBase, t.AskDenom, t.AskAmountBase)
	}
	s.queue.Add(t)
}

// Drain forces a flush and reports any batch failure since the last drain.
// The block processor calls this before advancing the height watermark.
func (s *TradeSink) Drain(ctx context.Context) error {
	return s.queue.Drain(ctx)
}

// Pending reports trades waiting for the next flush.
func (s *TradeSink) Pending() int {
	return s.queue.Len()
}
