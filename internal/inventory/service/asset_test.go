package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/reliefhub/reliefhub-backend/internal/inventory/repository"
	"github.com/reliefhub/reliefhub-backend/internal/inventory/service"
	"github.com/reliefhub/reliefhub-backend/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (f *fixture) asset(t *testing.T, assetNo string, loc *repository.StorageLocation, price int64) *repository.Asset {
	t.Helper()
	item := f.assetizedResource(t, "Generator "+assetNo)
	in := service.CreateAssetInput{ItemID: item.ID, AssetNo: assetNo}
	if loc != nil {
		in.LocationID = &loc.ID
	}
	if price > 0 {
		in.UnitPrice = decimal.NewNullDecimal(decimal.NewFromInt(price))
	}
	a, err := f.assets.Create(context.Background(), in)
	require.NoError(t, err)
	return a
}

func borrowInput() service.BorrowInput {
	return service.BorrowInput{
		BorrowerName:       "Dana",
		BorrowerOrg:        strPtr("Red Valley Rescue"),
		BorrowerContact:    strPtr("+1 555 0100"),
		Purpose:            strPtr("field hospital power"),
		ExpectedReturnDate: inAWeek(),
		Operator:           alice,
	}
}

func TestAsset_CreateStampsQRAndBarcode(t *testing.T) {
	f := newFixture(t)
	a := f.asset(t, "GEN-001", nil, 0)

	assert.Equal(t, repository.AssetInStock, a.Status)
	assert.Equal(t, "AST:GEN-001", a.Barcode)

	res := f.integrity.Verify(a.QRValue)
	require.True(t, res.Valid)
	assert.Equal(t, a.ID, res.ID)

	found, err := f.assets.FindByQRCode(context.Background(), a.QRValue)
	require.NoError(t, err)
	assert.Equal(t, a.ID, found.ID)
}

func TestAsset_DuplicateAssetNoConflicts(t *testing.T) {
	f := newFixture(t)
	a := f.asset(t, "GEN-001", nil, 0)

	_, err := f.assets.Create(context.Background(), service.CreateAssetInput{ItemID: a.ItemID, AssetNo: "GEN-001"})
	assert.True(t, errors.Is(err, errors.ErrConflict))
}

func TestAsset_BorrowThenReturnRestoresStock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	home := f.bin(t, "MAIN", "A")
	back := f.bin(t, "EAST", "B")
	a := f.asset(t, "GEN-002", home, 0)

	borrowed, err := f.assets.Borrow(ctx, a.ID, borrowInput())
	require.NoError(t, err)
	assert.Equal(t, repository.AssetBorrowed, borrowed.Status)
	assert.Nil(t, borrowed.LocationID)
	assert.Equal(t, "Dana", *borrowed.BorrowerName)
	assert.NotNil(t, borrowed.BorrowDate)

	returned, err := f.assets.Return(ctx, a.ID, service.ReturnInput{
		Condition:    repository.ConditionNormal,
		ToLocationID: back.ID,
		Operator:     bob,
	})
	require.NoError(t, err)
	assert.Equal(t, repository.AssetInStock, returned.Status)
	require.NotNil(t, returned.LocationID)
	assert.Equal(t, back.ID, *returned.LocationID)
	assert.Nil(t, returned.BorrowerName)
	assert.Nil(t, returned.BorrowerOrg)
	assert.Nil(t, returned.BorrowerContact)
	assert.Nil(t, returned.BorrowDate)
	assert.Nil(t, returned.ExpectedReturnDate)
	assert.Nil(t, returned.BorrowPurpose)

	history, err := f.assets.ListTransactions(ctx, a.ID, 10)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, repository.AssetTxReturn, history[0].Type)
	assert.Equal(t, repository.AssetTxBorrow, history[1].Type)
	assert.Equal(t, home.ID, *history[1].FromLocationID)
}

func TestAsset_BorrowRequiresInStock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.asset(t, "GEN-003", nil, 0)

	_, err := f.assets.Borrow(ctx, a.ID, borrowInput())
	require.NoError(t, err)

	_, err = f.assets.Borrow(ctx, a.ID, borrowInput())
	assert.True(t, errors.Is(err, errors.ErrInvalidState))

	_, err = f.assets.MarkMaintenance(ctx, a.ID, nil, alice)
	assert.True(t, errors.Is(err, errors.ErrInvalidState))
}

func TestAsset_ReturnNeedingRepairGoesToMaintenance(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	bin := f.bin(t, "MAIN", "A")
	a := f.asset(t, "GEN-004", bin, 0)

	_, err := f.assets.Borrow(ctx, a.ID, borrowInput())
	require.NoError(t, err)

	returned, err := f.assets.Return(ctx, a.ID, service.ReturnInput{
		Condition:     repository.ConditionNeedsRepair,
		ConditionNote: strPtr("cracked housing"),
		ToLocationID:  bin.ID,
		Operator:      bob,
	})
	require.NoError(t, err)
	assert.Equal(t, repository.AssetMaintenance, returned.Status)
	assert.Equal(t, "cracked housing", *returned.DamageNote)

	repaired, err := f.assets.CompleteMaintenance(ctx, a.ID, bin.ID, strPtr("housing replaced"), bob)
	require.NoError(t, err)
	assert.Equal(t, repository.AssetInStock, repaired.Status)
	assert.Nil(t, repaired.DamageNote)
	assert.Nil(t, repaired.ReturnCondition)
}

func TestAsset_ReturnValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	bin := f.bin(t, "MAIN", "A")
	a := f.asset(t, "GEN-005", bin, 0)

	_, err := f.assets.Return(ctx, a.ID, service.ReturnInput{Condition: repository.ConditionNormal, ToLocationID: bin.ID, Operator: bob})
	assert.True(t, errors.Is(err, errors.ErrInvalidState))

	_, err = f.assets.Return(ctx, a.ID, service.ReturnInput{Condition: "wet", ToLocationID: bin.ID, Operator: bob})
	assert.True(t, errors.Is(err, errors.ErrValidation))
}

func TestAsset_TerminalStates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	bin := f.bin(t, "MAIN", "A")
	a := f.asset(t, "GEN-006", bin, 0)

	_, err := f.assets.Dispose(ctx, a.ID, "", alice)
	assert.True(t, errors.Is(err, errors.ErrValidation))

	disposed, err := f.assets.Dispose(ctx, a.ID, "burnt out", alice)
	require.NoError(t, err)
	assert.Equal(t, repository.AssetDisposed, disposed.Status)
	assert.Nil(t, disposed.LocationID)

	_, err = f.assets.Borrow(ctx, a.ID, borrowInput())
	assert.True(t, errors.Is(err, errors.ErrInvalidState))
	_, err = f.assets.Transfer(ctx, a.ID, bin.ID, alice, nil)
	assert.True(t, errors.Is(err, errors.ErrInvalidState))
	_, err = f.assets.ReportLost(ctx, a.ID, strPtr("cannot find it"), alice)
	assert.True(t, errors.Is(err, errors.ErrInvalidState))

	got, err := f.assets.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, repository.AssetDisposed, got.Status)

	b := f.asset(t, "GEN-006B", bin, 0)
	_, err = f.assets.ReportLost(ctx, b.ID, strPtr("gone"), alice)
	require.NoError(t, err)
	_, err = f.assets.ReportLost(ctx, b.ID, strPtr("gone again"), alice)
	assert.True(t, errors.Is(err, errors.ErrInvalidState))
	_, err = f.assets.Dispose(ctx, b.ID, "write off", alice)
	assert.True(t, errors.Is(err, errors.ErrInvalidState))

	history, err := f.assets.ListTransactions(ctx, b.ID, 10)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestAsset_ReportLostFromBorrowed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.asset(t, "GEN-007", nil, 0)

	_, err := f.assets.Borrow(ctx, a.ID, borrowInput())
	require.NoError(t, err)

	lost, err := f.assets.ReportLost(ctx, a.ID, strPtr("never came back"), alice)
	require.NoError(t, err)
	assert.Equal(t, repository.AssetLost, lost.Status)
	assert.Nil(t, lost.BorrowerName)

	history, err := f.assets.ListTransactions(ctx, a.ID, 1)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, repository.AssetTxReportLost, history[0].Type)
	assert.Equal(t, "Dana", *history[0].BorrowerName)
}

func TestAsset_TransferBetweenBins(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	from := f.bin(t, "MAIN", "A")
	to := f.bin(t, "EAST", "C")
	a := f.asset(t, "GEN-008", from, 0)

	moved, err := f.assets.Transfer(ctx, a.ID, to.ID, alice, nil)
	require.NoError(t, err)
	assert.Equal(t, to.ID, *moved.LocationID)

	_, err = f.assets.Transfer(ctx, a.ID, "nowhere", alice, nil)
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestAsset_StatsCountsOverdue(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.asset(t, "GEN-009", nil, 0)
	f.asset(t, "GEN-010", nil, 0)

	in := borrowInput()
	in.ExpectedReturnDate = time.Now().Add(-time.Hour)
	_, err := f.assets.Borrow(ctx, a.ID, in)
	require.NoError(t, err)

	stats, err := f.assets.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 1, stats.ByStatus[repository.AssetBorrowed])
	assert.Equal(t, 1, stats.ByStatus[repository.AssetInStock])
	assert.Equal(t, 1, stats.Overdue)
}

func TestSanitizeForPublic(t *testing.T) {
	a := &repository.Asset{
		ID:           "a1",
		AssetNo:      "GEN-1",
		BorrowerName: strPtr("Dana"),
		InternalNote: strPtr("keep away from rain"),
		UnitPrice:    decimal.NewNullDecimal(decimal.NewFromInt(90000)),
	}

	clean := service.SanitizeForPublic(a)
	assert.Nil(t, clean.BorrowerName)
	assert.Nil(t, clean.InternalNote)
	assert.False(t, clean.UnitPrice.Valid)
	assert.Equal(t, "Dana", *a.BorrowerName)
	assert.Nil(t, service.SanitizeForPublic(nil))
}
