package service_test

import (
	"context"
	"math/rand/v2"
	"testing"

	"github.com/reliefhub/reliefhub-backend/internal/inventory/repository"
	"github.com/reliefhub/reliefhub-backend/internal/inventory/service"
	"github.com/reliefhub/reliefhub-backend/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeStatus(t *testing.T) {
	tests := []struct {
		qty, min int
		want     string
	}{
		{0, 5, repository.ResourceDepleted},
		{0, 0, repository.ResourceDepleted},
		{3, 5, repository.ResourceLow},
		{5, 5, repository.ResourceAvailable},
		{6, 5, repository.ResourceAvailable},
		{1, 0, repository.ResourceAvailable},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, service.ComputeStatus(tt.qty, tt.min), "qty=%d min=%d", tt.qty, tt.min)
	}
}

func TestApplyQuantity(t *testing.T) {
	tests := []struct {
		name   string
		before int
		typ    string
		q      int
		want   int
	}{
		{"in adds", 10, repository.TxIn, 5, 15},
		{"donate adds", 10, repository.TxDonate, 2, 12},
		{"out subtracts", 10, repository.TxOut, 4, 6},
		{"out clamps at zero", 3, repository.TxOut, 5, 0},
		{"expired clamps at zero", 1, repository.TxExpired, 9, 0},
		{"adjust sets", 10, repository.TxAdjust, 7, 7},
		{"transfer keeps quantity", 10, repository.TxTransfer, 4, 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := service.ApplyQuantity(tt.before, tt.typ, tt.q)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := service.ApplyQuantity(1, "teleport", 1)
	assert.True(t, errors.Is(err, errors.ErrValidation))
}

func TestLedger_OutSequenceScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	res := f.resource(t, "Water 1L", repository.ControlCivil, 10, 5)

	steps := []struct {
		out        int
		wantQty    int
		wantStatus string
	}{
		{4, 6, repository.ResourceAvailable},
		{3, 3, repository.ResourceLow},
		{3, 0, repository.ResourceDepleted},
	}
	for _, step := range steps {
		_, err := f.ledger.DeductStock(ctx, service.TransactionInput{
			ResourceID: res.ID, Type: repository.TxOut, Quantity: step.out, Operator: alice,
		})
		require.NoError(t, err)

		got, err := f.ledger.GetResource(ctx, res.ID)
		require.NoError(t, err)
		assert.Equal(t, step.wantQty, got.Quantity)
		assert.Equal(t, step.wantStatus, got.Status)
	}
}

func TestLedger_OutClampsAndRecordsActualDelta(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	res := f.resource(t, "Blankets", repository.ControlCivil, 2, 1)

	tx, err := f.ledger.DeductStock(ctx, service.TransactionInput{
		ResourceID: res.ID, Type: repository.TxOut, Quantity: 5, Operator: alice,
	})
	require.NoError(t, err)
	assert.Equal(t, 5, tx.Quantity)
	assert.Equal(t, 2, tx.BeforeQuantity)
	assert.Equal(t, 0, tx.AfterQuantity)
}

func TestLedger_QuantityMatchesSumOfDeltas(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	res := f.resource(t, "Rice 5kg", repository.ControlCivil, 20, 8)

	rng := rand.New(rand.NewPCG(7, 11))
	for i := 0; i < 60; i++ {
		var err error
		switch rng.IntN(3) {
		case 0:
			_, err = f.ledger.AddStock(ctx, res.ID, 1+rng.IntN(10), alice, nil)
		case 1:
			_, err = f.ledger.DeductStock(ctx, service.TransactionInput{
				ResourceID: res.ID, Type: repository.TxOut, Quantity: 1 + rng.IntN(12), Operator: alice,
			})
		case 2:
			_, err = f.ledger.Adjust(ctx, res.ID, rng.IntN(30), alice, nil)
		}
		require.NoError(t, err)
	}

	got, err := f.ledger.GetResource(ctx, res.ID)
	require.NoError(t, err)

	txs, err := f.ledger.ListTransactions(ctx, repository.TransactionFilter{ResourceID: res.ID, Limit: 1000})
	require.NoError(t, err)
	require.Len(t, txs, 61)

	sum := 0
	for _, tx := range txs {
		sum += tx.AfterQuantity - tx.BeforeQuantity
	}
	assert.Equal(t, got.Quantity, sum)
	assert.Equal(t, service.ComputeStatus(got.Quantity, got.MinQuantity), got.Status)
	assert.GreaterOrEqual(t, got.Quantity, 0)
}

func TestLedger_TransferMovesLocationOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	res := f.resource(t, "Tents", repository.ControlCivil, 12, 2)

	tx, err := f.ledger.Transfer(ctx, res.ID, 12, "North depot", alice, nil)
	require.NoError(t, err)
	assert.Equal(t, 12, tx.AfterQuantity)

	got, err := f.ledger.GetResource(ctx, res.ID)
	require.NoError(t, err)
	assert.Equal(t, 12, got.Quantity)
	require.NotNil(t, got.Location)
	assert.Equal(t, "North depot", *got.Location)

	_, err = f.ledger.Transfer(ctx, res.ID, 1, "", alice, nil)
	assert.True(t, errors.Is(err, errors.ErrValidation))
}

func TestLedger_TraceableReductionNeedsApproval(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	res := f.resource(t, "Morphine 10mg", repository.ControlMedical, 10, 2)

	tests := []struct {
		name string
		in   service.TransactionInput
	}{
		{"out with recipient", service.TransactionInput{Type: repository.TxOut, Quantity: 10, RecipientName: strPtr("anyone")}},
		{"out without recipient", service.TransactionInput{Type: repository.TxOut, Quantity: 1}},
		{"expired", service.TransactionInput{Type: repository.TxExpired, Quantity: 3}},
		{"adjust down", service.TransactionInput{Type: repository.TxAdjust, Quantity: 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.in.ResourceID = res.ID
			tt.in.Operator = alice
			_, err := f.ledger.RecordTransaction(ctx, tt.in)
			require.Error(t, err)
			assert.True(t, errors.Is(err, errors.ErrApprovalRequired))

			var appErr *errors.AppError
			require.True(t, errors.As(err, &appErr))
			assert.Equal(t, "APPROVAL_REQUIRED", appErr.Code)
			assert.Equal(t, "/api/v1/resources/"+res.ID+"/approval-requests", appErr.Details["approval_path"])
		})
	}
	assert.Equal(t, 10, f.quantity(t, res.ID))

	_, err := f.ledger.AddStock(ctx, res.ID, 5, alice, nil)
	require.NoError(t, err)
	_, err = f.ledger.Adjust(ctx, res.ID, 20, alice, nil)
	require.NoError(t, err)
	_, err = f.ledger.Transfer(ctx, res.ID, 20, "Cold room", alice, nil)
	require.NoError(t, err)
	assert.Equal(t, 20, f.quantity(t, res.ID))

	txs, err := f.ledger.ListTransactions(ctx, repository.TransactionFilter{ResourceID: res.ID, Limit: 100})
	require.NoError(t, err)
	for _, tx := range txs {
		assert.GreaterOrEqual(t, tx.AfterQuantity, tx.BeforeQuantity)
	}
}

func TestLedger_RejectsBadInput(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	res := f.resource(t, "Soap", repository.ControlCivil, 5, 1)

	tests := []struct {
		name string
		in   service.TransactionInput
	}{
		{"zero quantity", service.TransactionInput{ResourceID: res.ID, Type: repository.TxIn, Quantity: 0, Operator: alice}},
		{"negative adjust", service.TransactionInput{ResourceID: res.ID, Type: repository.TxAdjust, Quantity: -1, Operator: alice}},
		{"unknown type", service.TransactionInput{ResourceID: res.ID, Type: "borrow", Quantity: 1, Operator: alice}},
		{"missing operator", service.TransactionInput{ResourceID: res.ID, Type: repository.TxIn, Quantity: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.ledger.RecordTransaction(ctx, tt.in)
			assert.True(t, errors.Is(err, errors.ErrValidation))
		})
	}
	assert.Equal(t, 5, f.quantity(t, res.ID))

	_, err := f.ledger.AddStock(ctx, "missing", 1, alice, nil)
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestLedger_RecordDonation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	res := f.resource(t, "Canned beans", repository.ControlCivil, 0, 10)

	donor := &repository.DonationSource{Name: "Harbor Foods", Type: repository.DonorCorporate}
	require.NoError(t, f.ledger.CreateDonationSource(ctx, donor))

	tx, err := f.ledger.RecordDonation(ctx, service.DonationInput{
		ResourceID: res.ID, Quantity: 40, DonationSourceID: donor.ID, Operator: alice,
	})
	require.NoError(t, err)
	assert.Equal(t, repository.TxDonate, tx.Type)
	require.NotNil(t, tx.DonationSourceID)
	assert.Equal(t, donor.ID, *tx.DonationSourceID)
	assert.Equal(t, 40, f.quantity(t, res.ID))

	_, err = f.ledger.RecordDonation(ctx, service.DonationInput{
		ResourceID: res.ID, Quantity: 1, DonationSourceID: "nobody", Operator: alice,
	})
	assert.True(t, errors.Is(err, errors.ErrNotFound))
	assert.Equal(t, 40, f.quantity(t, res.ID))
}
