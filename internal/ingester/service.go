package ingester

import (
	"context"
	"log"
	"time"

	"degenter/internal/chain"
	"degenter/internal/repository"
)

// Service drives the block pipeline: it follows the chain tip from the
// index_state checkpoint, processing heights in order. A failed height is
// retried after backoff without advancing the checkpoint.
type Service struct {
	rpc       *chain.RPCClient
	repo      *repository.Repository
	processor *Processor
	config    ServiceConfig
}

type ServiceConfig struct {
	ServiceName string
	StartHeight int64 // used when no checkpoint exists
	PollEvery   time.Duration
	RetryAfter  time.Duration
}

func NewService(rpc *chain.RPCClient, repo *repository.Repository, processor *Processor, cfg ServiceConfig) *Service {
	if cfg.ServiceName == "" {
		cfg.ServiceName = repository.ServiceName
	}
	if cfg.PollEvery == 0 {
		cfg.PollEvery = 1 * time.Second
	}
	if cfg.RetryAfter == 0 {
		cfg.RetryAfter = 5 * time.Second
	}
	return &Service{rpc: rpc, repo: repo, processor: processor, config: cfg}
}

// Start runs the ingestion loop until ctx is cancelled.
func (s *Service) Start(ctx context.Context) error {
	log.Printf("Starting %s ingester...", s.config.ServiceName)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			caughtUp, err := s.processNext(ctx)
			if err != nil {
				log.Printf("[%s] Error processing: %v", s.config.ServiceName, err)
				sleepCtx(ctx, s.config.RetryAfter)
				continue
			}
			if caughtUp {
				sleepCtx(ctx, s.config.PollEvery)
			}
		}
	}
}

// processNext advances by one height. Returns caughtUp=true when the tip
// has been reached and the loop should idle.
func (s *Service) processNext(ctx context.Context) (bool, error) {
	lastIndexed, err := s.repo.GetLastIndexedHeight(ctx, s.config.ServiceName)
	if err != nil {
		return false, err
	}

	latest, err := s.rpc.LatestHeight(ctx)
	if err != nil {
		return false, err
	}

	var next int64
	switch {
	case lastIndexed > 0:
		next = lastIndexed + 1
	case s.config.StartHeight > 0:
		next = s.config.StartHeight
	default:
		next = latest
	}

	if next > latest {
		return true, nil
	}

	if behind := latest - next; behind > 10 {
		log.Printf("[%s] Syncing height %d (behind: %d)", s.config.ServiceName, next, behind)
	}

	if err := s.processor.ProcessHeight(ctx, next); err != nil {
		return false, err
	}
	return next == latest, nil
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
