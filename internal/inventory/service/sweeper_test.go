package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/reliefhub/reliefhub-backend/internal/inventory/repository"
	"github.com/reliefhub/reliefhub-backend/internal/inventory/service"
	"github.com/reliefhub/reliefhub-backend/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpirySweeper_ExpiresPastLotsAndCountsOverdue(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	item := f.resource(t, "Tetanus vaccine", repository.ControlMedical, 0, 0)

	yesterday := time.Now().Add(-24 * time.Hour)
	nextMonth := time.Now().Add(30 * 24 * time.Hour)
	stale := f.lot(t, item.ID, "TT-OLD", 10, &yesterday)
	fresh := f.lot(t, item.ID, "TT-NEW", 10, &nextMonth)

	late := borrowInput()
	late.ExpectedReturnDate = yesterday
	gen := f.asset(t, "GEN-SWEEP", f.bin(t, "A-01", "A"), 0)
	_, err := f.assets.Borrow(ctx, gen.ID, late)
	require.NoError(t, err)

	sweeper := service.NewExpirySweeper(f.lots, f.assets, time.Hour, logger.Nop())
	res, err := sweeper.Sweep(ctx)

	require.NoError(t, err)
	assert.Equal(t, 1, res.LotsExpired)
	assert.Equal(t, 1, res.AssetsOverdue)

	got, err := f.lots.Get(ctx, stale.ID)
	require.NoError(t, err)
	assert.Equal(t, repository.LotExpired, got.Status)

	got, err = f.lots.Get(ctx, fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, repository.LotActive, got.Status)

	// a second pass finds nothing new
	res, err = sweeper.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, res.LotsExpired)
}

func TestExpirySweeper_StartStop(t *testing.T) {
	f := newFixture(t)
	item := f.resource(t, "Saline", repository.ControlMedical, 0, 0)
	lastWeek := time.Now().Add(-7 * 24 * time.Hour)
	lot := f.lot(t, item.ID, "SAL-1", 3, &lastWeek)

	sweeper := service.NewExpirySweeper(f.lots, f.assets, time.Hour, logger.Nop())
	sweeper.Start(context.Background())

	assert.Eventually(t, func() bool {
		got, err := f.lots.Get(context.Background(), lot.ID)
		return err == nil && got.Status == repository.LotExpired
	}, 2*time.Second, 10*time.Millisecond)

	sweeper.Stop()
}

func TestExpirySweeper_ExpiresDepletedLots(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	item := f.resource(t, "Rabies vaccine", repository.ControlMedical, 0, 0)

	lastWeek := time.Now().Add(-7 * 24 * time.Hour)
	lot := f.lot(t, item.ID, "RB-1", 4, &lastWeek)
	drained, err := f.lots.UpdateQuantity(ctx, lot.ID, -4)
	require.NoError(t, err)
	require.Equal(t, repository.LotDepleted, drained.Status)

	sweeper := service.NewExpirySweeper(f.lots, f.assets, time.Hour, logger.Nop())
	res, err := sweeper.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.LotsExpired)

	// replenishing afterwards does not revive it
	got, err := f.lots.UpdateQuantity(ctx, lot.ID, 6)
	require.NoError(t, err)
	assert.Equal(t, repository.LotExpired, got.Status)
	assert.Equal(t, 6, got.Quantity)
}
