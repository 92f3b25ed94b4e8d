package service_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/reliefhub/reliefhub-backend/internal/inventory/integrity"
	"github.com/reliefhub/reliefhub-backend/internal/inventory/repository"
	"github.com/reliefhub/reliefhub-backend/internal/inventory/service"
	"github.com/reliefhub/reliefhub-backend/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (f *fixture) lot(t *testing.T, itemID, number string, qty int, expiry *time.Time) *repository.Lot {
	t.Helper()
	lot, err := f.lots.Create(context.Background(), service.CreateLotInput{
		ItemID: itemID, LotNumber: number, Quantity: qty, ExpiryDate: expiry,
	})
	require.NoError(t, err)
	return lot
}

func TestLot_DepletesAndRejectsNegative(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	item := f.resource(t, "Amoxicillin", repository.ControlMedical, 0, 0)
	lot := f.lot(t, item.ID, "AMX-24-001", 5, nil)
	assert.Equal(t, repository.LotActive, lot.Status)

	lot, err := f.lots.UpdateQuantity(ctx, lot.ID, -5)
	require.NoError(t, err)
	assert.Equal(t, 0, lot.Quantity)
	assert.Equal(t, repository.LotDepleted, lot.Status)

	_, err = f.lots.UpdateQuantity(ctx, lot.ID, -1)
	assert.True(t, errors.Is(err, errors.ErrValidation))

	got, err := f.lots.Get(ctx, lot.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.Quantity)

	lot, err = f.lots.UpdateQuantity(ctx, lot.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, repository.LotActive, lot.Status)
}

func TestLot_CivilItemsHaveNoLots(t *testing.T) {
	f := newFixture(t)
	item := f.resource(t, "Bottled water", repository.ControlCivil, 0, 0)

	_, err := f.lots.Create(context.Background(), service.CreateLotInput{ItemID: item.ID, LotNumber: "W-1", Quantity: 1})
	assert.True(t, errors.Is(err, errors.ErrValidation))
}

func TestLot_ExpiredStaysExpired(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	item := f.resource(t, "Tetanus vaccine", repository.ControlMedical, 0, 0)
	lot := f.lot(t, item.ID, "TT-9", 10, nil)

	_, err := f.lots.MarkAsExpired(ctx, lot.ID)
	require.NoError(t, err)

	lot, err = f.lots.UpdateQuantity(ctx, lot.ID, -3)
	require.NoError(t, err)
	assert.Equal(t, repository.LotExpired, lot.Status)
}

func TestLot_FindByQRCode(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	item := f.resource(t, "Insulin", repository.ControlMedical, 0, 0)
	lot := f.lot(t, item.ID, "INS-1", 10, nil)
	assert.True(t, strings.HasPrefix(lot.QRValue, "RH|LOT|"))

	found, err := f.lots.FindByQRCode(ctx, lot.QRValue)
	require.NoError(t, err)
	assert.Equal(t, lot.ID, found.ID)

	tampered := lot.QRValue[:len(lot.QRValue)-1] + flip(lot.QRValue[len(lot.QRValue)-1])
	_, err = f.lots.FindByQRCode(ctx, tampered)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrIntegrity))
	assert.False(t, errors.Is(err, errors.ErrNotFound))

	assetCode := f.integrity.Generate(integrity.TypeAsset, lot.ID)
	_, err = f.lots.FindByQRCode(ctx, assetCode)
	var appErr *errors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, integrity.ReasonWrongType, appErr.Details["reason"])
}

func TestLot_ListExpiring(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	item := f.resource(t, "Saline", repository.ControlMedical, 0, 0)
	soon := time.Now().Add(48 * time.Hour)
	later := time.Now().Add(90 * 24 * time.Hour)
	f.lot(t, item.ID, "SAL-1", 10, &soon)
	f.lot(t, item.ID, "SAL-2", 10, &later)

	expiring, err := f.lots.ListExpiring(ctx, 7)
	require.NoError(t, err)
	require.Len(t, expiring, 1)
	assert.Equal(t, "SAL-1", expiring[0].LotNumber)

	all, err := f.lots.ListByItem(ctx, item.ID)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func flip(c byte) string {
	if c == '0' {
		return "1"
	}
	return "0"
}
