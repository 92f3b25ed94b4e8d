package service

import (
	"context"
	"fmt"
	"time"

	"github.com/reliefhub/reliefhub-backend/internal/inventory/repository"
	"github.com/reliefhub/reliefhub-backend/pkg/logger"
)

// LotExpirer is the part of LotService the sweeper drives
type LotExpirer interface {
	ListExpiring(ctx context.Context, withinDays int) ([]*repository.Lot, error)
	MarkAsExpired(ctx context.Context, id string) (*repository.Lot, error)
}

// OverdueLister is the part of AssetService the sweeper drives
type OverdueLister interface {
	Overdue(ctx context.Context) ([]*repository.Asset, error)
}

// SweepResult summarises one sweep cycle
type SweepResult struct {
	LotsExpired   int
	AssetsOverdue int
}

// ExpirySweeper periodically expires lots whose expiry date has passed and
// reports borrowed assets that are past their return date.
type ExpirySweeper struct {
	lots     LotExpirer
	assets   OverdueLister
	interval time.Duration
	logger   *logger.Logger
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewExpirySweeper creates a new sweeper
func NewExpirySweeper(lots LotExpirer, assets OverdueLister, interval time.Duration, log *logger.Logger) *ExpirySweeper {
	return &ExpirySweeper{
		lots:     lots,
		assets:   assets,
		interval: interval,
		logger:   log.WithComponent("expiry_sweeper"),
	}
}

// Start runs a sweep immediately and then on every tick until Stop is
// called or ctx is done.
func (s *ExpirySweeper) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)
		s.logger.Info().Dur("interval", s.interval).Msg("expiry sweeper started")

		s.runCycle(ctx)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				s.logger.Info().Msg("expiry sweeper stopped")
				return
			case <-ticker.C:
				s.runCycle(ctx)
			}
		}
	}()
}

// Stop stops the sweeper and waits for an in-flight cycle to finish
func (s *ExpirySweeper) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
}

func (s *ExpirySweeper) runCycle(ctx context.Context) {
	start := time.Now()
	res, err := s.Sweep(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("expiry sweep failed")
	}
	s.logger.Info().
		Dur("duration", time.Since(start)).
		Int("lots_expired", res.LotsExpired).
		Int("assets_overdue", res.AssetsOverdue).
		Msg("expiry sweep completed")
}

// Sweep runs one cycle. A lot that fails to update is logged and skipped;
// the last such error is returned.
func (s *ExpirySweeper) Sweep(ctx context.Context) (SweepResult, error) {
	var res SweepResult
	var lastErr error

	lots, err := s.lots.ListExpiring(ctx, 0)
	if err != nil {
		return res, fmt.Errorf("list expired lots: %w", err)
	}
	for _, lot := range lots {
		if _, err := s.lots.MarkAsExpired(ctx, lot.ID); err != nil {
			s.logger.Error().Err(err).Str("lot_id", lot.ID).Msg("failed to expire lot")
			lastErr = err
			continue
		}
		res.LotsExpired++
	}

	overdue, err := s.assets.Overdue(ctx)
	if err != nil {
		return res, fmt.Errorf("list overdue assets: %w", err)
	}
	for _, a := range overdue {
		s.logger.Warn().
			Str("asset_id", a.ID).
			Str("asset_no", a.AssetNo).
			Msg("asset overdue for return")
	}
	res.AssetsOverdue = len(overdue)

	return res, lastErr
}
