package service_test

import (
	"context"
	"testing"

	"github.com/reliefhub/reliefhub-backend/internal/inventory/repository"
	"github.com/reliefhub/reliefhub-backend/internal/inventory/service"
	"github.com/reliefhub/reliefhub-backend/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLabel_PrintLot(t *testing.T) {
	f := newFixture(t)
	f.seedTemplates()
	ctx := context.Background()
	item := f.resource(t, "Insulin", repository.ControlMedical, 0, 0)
	lot := f.lot(t, item.ID, "INS-7", 20, nil)

	out, err := f.labels.PrintLotLabel(ctx, lot.ID, "tpl-lot", keeper)
	require.NoError(t, err)
	require.NotEmpty(t, out.PrintBatchID)
	require.Len(t, out.Labels, 1)
	assert.Equal(t, lot.QRValue, out.Labels[0].Data.QRValue)
	assert.Equal(t, "Insulin", out.Labels[0].Data.ItemName)
	assert.Equal(t, "INS-7", out.Labels[0].Data.LotNumber)
	assert.Equal(t, 50, out.Labels[0].Template.Width)
	assert.JSONEq(t, `{"fields":["item_name"]}`, string(out.Labels[0].Template.LayoutConfig))

	got, err := f.lots.Get(ctx, lot.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.LabelsPrinted)
	assert.Equal(t, out.PrintBatchID, *got.LastPrintBatchID)

	history, err := f.labels.PrintHistory(ctx, repository.LabelTargetLot, lot.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, out.PrintBatchID, history[0].ID)
	assert.Equal(t, repository.LabelPrint, history[0].Action)
	assert.Equal(t, repository.ControlMedical, history[0].ControlLevel)
	assert.Equal(t, "u-keeper", history[0].ActorUID)
}

func TestLabel_CivilLotIsRejected(t *testing.T) {
	f := newFixture(t)
	f.seedTemplates()
	ctx := context.Background()
	water := f.resource(t, "Bottled water", repository.ControlCivil, 0, 0)

	// a lot imported before control levels were enforced
	legacy := &repository.Lot{ItemID: water.ID, LotNumber: "W-OLD", Quantity: 3, Status: repository.LotActive, QRValue: "legacy"}
	require.NoError(t, f.store.Lots().Create(ctx, legacy))

	_, err := f.labels.PrintLotLabel(ctx, legacy.ID, "tpl-lot", keeper)
	assert.True(t, errors.Is(err, errors.ErrValidation))

	logs, err := f.audit.QueryLabelPrints(ctx, repository.AuditFilter{})
	require.NoError(t, err)
	assert.Empty(t, logs)
}

func TestLabel_TemplateMustMatch(t *testing.T) {
	f := newFixture(t)
	f.seedTemplates()
	ctx := context.Background()
	item := f.resource(t, "Insulin", repository.ControlMedical, 0, 0)
	lot := f.lot(t, item.ID, "INS-8", 20, nil)

	_, err := f.labels.PrintLotLabel(ctx, lot.ID, "tpl-asset", keeper)
	assert.True(t, errors.Is(err, errors.ErrBadRequest))

	_, err = f.labels.PrintLotLabel(ctx, lot.ID, "tpl-missing", keeper)
	assert.True(t, errors.Is(err, errors.ErrNotFound))

	got, err := f.lots.Get(ctx, lot.ID)
	require.NoError(t, err)
	assert.Zero(t, got.LabelsPrinted)
}

func TestLabel_PrintAssetBatch(t *testing.T) {
	f := newFixture(t)
	f.seedTemplates()
	ctx := context.Background()
	a1 := f.asset(t, "GEN-101", nil, 0)
	a2 := f.asset(t, "GEN-102", nil, 0)

	out, err := f.labels.PrintAssetLabels(ctx, []string{a2.ID, a1.ID, a2.ID}, "tpl-asset", keeper)
	require.NoError(t, err)
	assert.Len(t, out.Labels, 2)

	for _, a := range []*repository.Asset{a1, a2} {
		got, err := f.assets.Get(ctx, a.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, got.LabelsPrinted)
		assert.Equal(t, out.PrintBatchID, *got.LastPrintBatchID)
	}

	logs, err := f.audit.QueryLabelPrints(ctx, repository.AuditFilter{TargetType: repository.LabelTargetAsset})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, 2, logs[0].LabelCount)
	assert.Len(t, logs[0].TargetIDs, 2)
	assert.Equal(t, repository.ControlCivil, logs[0].ControlLevel)

	_, err = f.labels.PrintAssetLabels(ctx, nil, "tpl-asset", keeper)
	assert.True(t, errors.Is(err, errors.ErrValidation))
}

func TestLabel_MixedBatchLevel(t *testing.T) {
	f := newFixture(t)
	f.seedTemplates()
	ctx := context.Background()
	civil := f.asset(t, "GEN-201", nil, 0)

	ventilator, err := f.ledger.CreateResource(ctx, service.CreateResourceInput{
		Name: "Ventilator", Unit: "unit", ControlLevel: repository.ControlMedical, IsAssetized: true, Operator: alice,
	})
	require.NoError(t, err)
	vent, err := f.assets.Create(ctx, service.CreateAssetInput{ItemID: ventilator.ID, AssetNo: "VEN-1"})
	require.NoError(t, err)

	_, err = f.labels.PrintAssetLabels(ctx, []string{civil.ID, vent.ID}, "tpl-asset", keeper)
	require.NoError(t, err)

	logs, err := f.audit.QueryLabelPrints(ctx, repository.AuditFilter{TargetID: vent.ID})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "mixed", logs[0].ControlLevel)
}

func TestLabel_AssetOfPlainItemIsRejected(t *testing.T) {
	f := newFixture(t)
	f.seedTemplates()
	ctx := context.Background()
	tents := f.resource(t, "Tent", repository.ControlCivil, 0, 0)
	a, err := f.assets.Create(ctx, service.CreateAssetInput{ItemID: tents.ID, AssetNo: "TENT-1"})
	require.NoError(t, err)

	_, err = f.labels.PrintAssetLabels(ctx, []string{a.ID}, "tpl-asset", keeper)
	assert.True(t, errors.Is(err, errors.ErrValidation))
}

func TestLabel_ReprintAndRevoke(t *testing.T) {
	f := newFixture(t)
	f.seedTemplates()
	ctx := context.Background()
	item := f.resource(t, "Insulin", repository.ControlMedical, 0, 0)
	lot := f.lot(t, item.ID, "INS-9", 20, nil)

	_, err := f.labels.PrintLotLabel(ctx, lot.ID, "tpl-lot", keeper)
	require.NoError(t, err)
	again, err := f.labels.Reprint(ctx, repository.LabelTargetLot, lot.ID, "tpl-lot", keeper)
	require.NoError(t, err)

	got, err := f.lots.Get(ctx, lot.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.LabelsPrinted)
	assert.Equal(t, again.PrintBatchID, *got.LastPrintBatchID)

	_, err = f.labels.Revoke(ctx, repository.LabelTargetLot, lot.ID, "torn", keeper)
	assert.True(t, errors.Is(err, errors.ErrValidation))

	revokeID, err := f.labels.Revoke(ctx, repository.LabelTargetLot, lot.ID, "label smudged by rain", keeper)
	require.NoError(t, err)

	history, err := f.labels.PrintHistory(ctx, repository.LabelTargetLot, lot.ID)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, revokeID, history[0].ID)
	assert.Equal(t, repository.LabelRevoke, history[0].Action)
	assert.Zero(t, history[0].LabelCount)
	assert.Equal(t, "label smudged by rain", *history[0].RevokeReason)
	assert.Equal(t, repository.LabelReprint, history[1].Action)
	assert.Equal(t, repository.LabelPrint, history[2].Action)

	_, err = f.labels.Reprint(ctx, "bin", lot.ID, "tpl-lot", keeper)
	assert.True(t, errors.Is(err, errors.ErrValidation))
}
