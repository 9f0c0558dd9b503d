package ingester

import (
	"context"
	"log"
	"time"

	"degenter/internal/chain"
	"degenter/internal/repository"
)

// MetaWorker periodically backfills token metadata that the low-priority
// block path failed to fetch (LCD flakes, tokens created before the
// indexer started). Controlled by the META_* env knobs.
type MetaWorker struct {
	lcd  *chain.LCDClient
	repo *repository.Repository
	cfg  MetaWorkerConfig
}

type MetaWorkerConfig struct {
	RefreshEvery time.Duration // scan interval
	BatchSize    int           // denoms per scan
	BatchSleep   time.Duration // pause between denoms
	Concurrency  int
}

func NewMetaWorker(lcd *chain.LCDClient, repo *repository.Repository, cfg MetaWorkerConfig) *MetaWorker {
	if cfg.RefreshEvery == 0 {
		cfg.RefreshEvery = 60 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 250
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	return &MetaWorker{lcd: lcd, repo: repo, cfg: cfg}
}

// Start runs the backfill loop until ctx is cancelled.
func (w *MetaWorker) Start(ctx context.Context) {
	log.Printf("[MetaWorker] starting (every %s, batch %d, concurrency %d)",
		w.cfg.RefreshEvery, w.cfg.BatchSize, w.cfg.Concurrency)
	go w.runLoop(ctx)
}

func (w *MetaWorker) runLoop(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.RefreshEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Printf("[MetaWorker] stopping...")
			return
		case <-ticker.C:
			w.runOnce(ctx)
		}
	}
}

func (w *MetaWorker) runOnce(ctx context.Context) {
	denoms, err := w.repo.TokensMissingMeta(ctx, w.cfg.BatchSize)
	if err != nil {
		log.Printf("[MetaWorker] list missing: %v", err)
		return
	}
	if len(denoms) == 0 {
		return
	}

	tasks := make([]Task, 0, len(denoms))
	for _, denom := range denoms {
		denom := denom
		tasks = append(tasks, Task{Label: "meta_backfill", Run: func(ctx context.Context) error {
			EnrichTokenMeta(ctx, w.lcd, w.repo, denom)
			if w.cfg.BatchSleep > 0 {
				sleepCtx(ctx, w.cfg.BatchSleep)
			}
			return nil
		}})
	}
	RunWithConcurrency(ctx, tasks, w.cfg.Concurrency, nil, "meta_backfill")
	log.Printf("[MetaWorker] refreshed %d token(s)", len(denoms))
}
