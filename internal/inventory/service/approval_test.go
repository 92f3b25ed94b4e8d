package service_test

import (
	"context"
	"sync"
	"testing"

	"github.com/reliefhub/reliefhub-backend/internal/inventory/repository"
	"github.com/reliefhub/reliefhub-backend/internal/inventory/service"
	"github.com/reliefhub/reliefhub-backend/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func request(qty int, resourceID string) service.ApprovalRequest {
	return service.ApprovalRequest{
		ResourceID:    resourceID,
		Quantity:      qty,
		Requester:     alice,
		RecipientName: "Field clinic 3",
		Purpose:       strPtr("triage"),
	}
}

func TestApproval_RequestDoesNotTouchStock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	res := f.resource(t, "Insulin", repository.ControlMedical, 10, 2)

	tx, err := f.approvals.RequestApproval(ctx, request(4, res.ID))
	require.NoError(t, err)

	assert.True(t, tx.IsPending())
	assert.Equal(t, repository.TxOut, tx.Type)
	assert.Equal(t, 10, tx.BeforeQuantity)
	assert.Equal(t, 10, tx.AfterQuantity)
	assert.Equal(t, 10, f.quantity(t, res.ID))
	assert.Equal(t, []string{repository.ApprovalPending}, f.notes.approvals)

	pending, err := f.approvals.ListPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, tx.ID, pending[0].ID)
}

func TestApproval_CivilItemsSkipTheGate(t *testing.T) {
	f := newFixture(t)
	res := f.resource(t, "Water", repository.ControlCivil, 10, 2)

	_, err := f.approvals.RequestApproval(context.Background(), request(1, res.ID))
	assert.True(t, errors.Is(err, errors.ErrValidation))
}

func TestApproval_RequestValidation(t *testing.T) {
	f := newFixture(t)
	res := f.resource(t, "Codeine", repository.ControlControlled, 10, 2)

	in := request(0, res.ID)
	_, err := f.approvals.RequestApproval(context.Background(), in)
	assert.True(t, errors.Is(err, errors.ErrValidation))

	in = request(1, res.ID)
	in.RecipientName = " "
	_, err = f.approvals.RequestApproval(context.Background(), in)
	assert.True(t, errors.Is(err, errors.ErrValidation))
}

func TestApproval_ApproveDeductsExactlyOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	res := f.resource(t, "Insulin", repository.ControlMedical, 10, 2)

	tx, err := f.approvals.RequestApproval(ctx, request(4, res.ID))
	require.NoError(t, err)

	approved, err := f.approvals.Approve(ctx, tx.ID, bob)
	require.NoError(t, err)
	assert.Equal(t, repository.ApprovalApproved, *approved.ApprovalStatus)
	assert.Equal(t, 10, approved.BeforeQuantity)
	assert.Equal(t, 6, approved.AfterQuantity)
	assert.Equal(t, "Bob", *approved.ApproverName)
	assert.NotNil(t, approved.ApprovedAt)
	assert.Equal(t, 6, f.quantity(t, res.ID))

	_, err = f.approvals.Approve(ctx, tx.ID, bob)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvalidState))
	assert.Equal(t, 6, f.quantity(t, res.ID))
}

func TestApproval_ApproveChecksStockAtApprovalTime(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	res := f.resource(t, "Antivenom", repository.ControlMedical, 5, 1)

	tx, err := f.approvals.RequestApproval(ctx, request(4, res.ID))
	require.NoError(t, err)

	first, err := f.approvals.RequestApproval(ctx, request(2, res.ID))
	require.NoError(t, err)
	_, err = f.approvals.Approve(ctx, first.ID, bob)
	require.NoError(t, err)

	_, err = f.approvals.Approve(ctx, tx.ID, bob)
	assert.True(t, errors.Is(err, errors.ErrInsufficientStock))
	assert.Equal(t, 3, f.quantity(t, res.ID))

	still, err := f.store.Transactions().GetByID(ctx, tx.ID)
	require.NoError(t, err)
	assert.True(t, still.IsPending())
}

func TestApproval_RequesterCannotApprove(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	res := f.resource(t, "Ketamine", repository.ControlControlled, 10, 2)

	tx, err := f.approvals.RequestApproval(ctx, request(1, res.ID))
	require.NoError(t, err)

	_, err = f.approvals.Approve(ctx, tx.ID, alice)
	assert.True(t, errors.Is(err, errors.ErrForbidden))
	assert.Equal(t, 10, f.quantity(t, res.ID))
}

func TestApproval_RejectLeavesStock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	res := f.resource(t, "Insulin", repository.ControlMedical, 10, 2)

	tx, err := f.approvals.RequestApproval(ctx, request(4, res.ID))
	require.NoError(t, err)

	_, err = f.approvals.Reject(ctx, tx.ID, bob, "no")
	assert.True(t, errors.Is(err, errors.ErrValidation))

	rejected, err := f.approvals.Reject(ctx, tx.ID, bob, "duplicate request")
	require.NoError(t, err)
	assert.Equal(t, repository.ApprovalRejected, *rejected.ApprovalStatus)
	assert.Equal(t, "duplicate request", *rejected.RejectReason)
	assert.Equal(t, 10, f.quantity(t, res.ID))

	_, err = f.approvals.Approve(ctx, tx.ID, bob)
	assert.True(t, errors.Is(err, errors.ErrInvalidState))
	_, err = f.approvals.Reject(ctx, tx.ID, bob, "duplicate request")
	assert.True(t, errors.Is(err, errors.ErrInvalidState))
	assert.Equal(t, 10, f.quantity(t, res.ID))
}

func TestApproval_ConcurrentApprovesDeductOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	res := f.resource(t, "Insulin", repository.ControlMedical, 10, 2)

	tx, err := f.approvals.RequestApproval(ctx, request(3, res.ID))
	require.NoError(t, err)

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.approvals.Approve(ctx, tx.ID, bob); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 7, f.quantity(t, res.ID))
}
