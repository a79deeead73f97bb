package core

import (
	"context"
	"fmt"
	"time"
)

const defaultSweepInterval = time.Minute

// OfferSweeper reclaims PENDING offers whose expiresAt has passed. Listings
// already filter expired offers at read time; the sweeper only bounds table
// growth, so it runs at a relaxed cadence and its lifetime is tied to the
// context of whoever started it.
type OfferSweeper struct {
	store    OfferStore
	logger   Logger
	interval time.Duration
	now      func() time.Time
}

func NewOfferSweeper(store OfferStore, logger Logger, interval time.Duration) (*OfferSweeper, error) {
	if store == nil {
		return nil, fmt.Errorf("core: offer store is required")
	}
	if interval <= 0 {
		interval = defaultSweepInterval
	}
	return &OfferSweeper{
		store:    store,
		logger:   logger,
		interval: interval,
		now: func() time.Time {
			return time.Now().UTC()
		},
	}, nil
}

// SweepOnce expires stale PENDING offers and returns how many were
// reclaimed.
func (w *OfferSweeper) SweepOnce(ctx context.Context) (int, error) {
	if w == nil || w.store == nil {
		return 0, fmt.Errorf("core: offer sweeper is not configured")
	}
	return w.store.ExpireStale(ctx, w.now())
}

// Run sweeps on the configured interval until the context is cancelled.
func (w *OfferSweeper) Run(ctx context.Context) error {
	if w == nil || w.store == nil {
		return fmt.Errorf("core: offer sweeper is not configured")
	}
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			reclaimed, err := w.SweepOnce(ctx)
			if err != nil {
				if w.logger != nil {
					w.logger.Warn("stale offer sweep failed", "error", err)
				}
				continue
			}
			if reclaimed > 0 && w.logger != nil {
				w.logger.Debug("stale offers reclaimed", "count", reclaimed)
			}
		}
	}
}
