package service

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ales-api/internal/config"
	"github.com/ales-api/internal/ipfs"
	"github.com/ales-api/internal/models"
	"github.com/ales-api/internal/repository"
	"github.com/rs/zerolog"
)

// reconciler is the concrete implementation of ReconcilerService
type reconciler struct {
	pinRepo repository.PinRepository
	store   ipfs.Store
	cfg     config.ReconcilerConfig
	log     zerolog.Logger
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
	running bool
	mu      sync.Mutex
	// Semaphore: buffered channel limiting concurrent unpin calls
	sem chan struct{}
}

// NewReconciler creates the orphaned pin cleaner with a worker pool sized
// for I/O-bound work
func NewReconciler(pinRepo repository.PinRepository, store ipfs.Store, cfg config.ReconcilerConfig, log zerolog.Logger) ReconcilerService {
	// Unpinning is a network round trip, so allow more workers than cores
	maxWorkers := runtime.NumCPU() * 4
	if maxWorkers < 4 {
		maxWorkers = 4
	}
	if maxWorkers > 32 {
		maxWorkers = 32
	}

	log.Info().Int("max_workers", maxWorkers).Msg("Initializing pin reconciler worker pool")

	return &reconciler{
		pinRepo: pinRepo,
		store:   store,
		cfg:     cfg,
		log:     log.With().Str("service", "reconciler").Logger(),
		sem:     make(chan struct{}, maxWorkers),
	}
}

// StartProcessor runs a pass every interval until stopped
func (r *reconciler) StartProcessor(ctx context.Context) {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return
	}
	r.running = true
	r.ctx, r.cancel = context.WithCancel(ctx)
	r.done = make(chan struct{})
	r.mu.Unlock()
	defer close(r.done)

	r.log.Info().Dur("interval", r.cfg.Interval).Msg("Pin reconciler started")

	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.ctx.Done():
			r.log.Info().Msg("Pin reconciler stopping")
			return
		case <-ticker.C:
			if _, err := r.RunOnce(r.ctx); err != nil {
				r.log.Error().Err(err).Msg("Pin reconciliation failed")
			}
		}
	}
}

// StopProcessor stops the loop and waits for the current pass
func (r *reconciler) StopProcessor() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.running {
		return
	}

	r.cancel()
	<-r.done
	r.running = false
	r.log.Info().Msg("Pin reconciler stopped")
}

// RunOnce orphans stale pending pins, then unpins orphans past the grace
// period. Each orphan is claimed atomically so concurrent passes never
// unpin the same CID twice.
func (r *reconciler) RunOnce(ctx context.Context) (*models.ReconcileReport, error) {
	report := &models.ReconcileReport{}
	now := time.Now()

	promoted, err := r.pinRepo.PromoteStalePending(ctx, now.Add(-r.cfg.PendingTTL))
	if err != nil {
		return report, err
	}
	report.Promoted = promoted

	orphans, err := r.pinRepo.ListOrphaned(ctx, now.Add(-r.cfg.GracePeriod), r.cfg.BatchSize)
	if err != nil {
		return report, err
	}

	var wg sync.WaitGroup
	var unpinned, failed atomic.Int64

	for _, pin := range orphans {
		// Acquire a slot; blocks while all workers are busy
		select {
		case r.sem <- struct{}{}:
		case <-ctx.Done():
			wg.Wait()
			return r.finish(report, unpinned.Load(), failed.Load()), ctx.Err()
		}

		claimed, err := r.pinRepo.ClaimForUnpin(ctx, pin.CID)
		if err != nil || !claimed {
			<-r.sem
			continue // Another pass already took it
		}
		report.Claimed++

		wg.Add(1)
		go func(p *models.PinnedContent) {
			defer wg.Done()
			defer func() { <-r.sem }()

			defer func() {
				if rec := recover(); rec != nil {
					r.log.Error().
						Interface("panic", rec).
						Str("cid", p.CID).
						Msg("Unpin panicked - recovered")
					if relErr := r.pinRepo.ReleaseClaim(ctx, p.CID); relErr != nil {
						r.log.Error().Err(relErr).Str("cid", p.CID).Msg("Failed to release unpin claim")
					}
					failed.Add(1)
				}
			}()

			if r.unpin(ctx, p) {
				unpinned.Add(1)
			} else {
				failed.Add(1)
			}
		}(pin)
	}

	wg.Wait()
	r.finish(report, unpinned.Load(), failed.Load())

	if report.Promoted > 0 || report.Claimed > 0 {
		r.log.Info().
			Int64("promoted", report.Promoted).
			Int("unpinned", report.Unpinned).
			Int("failed", report.Failed).
			Msg("Pin reconciliation pass completed")
	}
	return report, nil
}

func (r *reconciler) unpin(ctx context.Context, pin *models.PinnedContent) bool {
	if err := r.store.Unpin(ctx, pin.CID); err != nil {
		r.log.Warn().Err(err).Str("cid", pin.CID).Msg("Unpin failed, releasing claim")
		if relErr := r.pinRepo.ReleaseClaim(ctx, pin.CID); relErr != nil {
			r.log.Error().Err(relErr).Str("cid", pin.CID).Msg("Failed to release unpin claim")
		}
		return false
	}
	if err := r.pinRepo.MarkUnpinned(ctx, pin.CID); err != nil {
		r.log.Error().Err(err).Str("cid", pin.CID).Msg("Failed to mark pin unpinned")
		return false
	}
	return true
}

func (r *reconciler) finish(report *models.ReconcileReport, unpinned, failed int64) *models.ReconcileReport {
	report.Unpinned = int(unpinned)
	report.Failed = int(failed)
	return report
}
