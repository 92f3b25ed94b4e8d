package service

import (
	"context"
	"testing"
	"time"

	"github.com/reliefhub/reliefhub-backend/internal/inventory/repository"
	"github.com/reliefhub/reliefhub-backend/internal/inventory/repository/memory"
	"github.com/reliefhub/reliefhub-backend/pkg/errors"
	"github.com/reliefhub/reliefhub-backend/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDispatchWithNumbers(t *testing.T, numbers ...string) (*DispatchService, string) {
	t.Helper()
	store := memory.New()
	ledger := NewLedgerService(store, store.Resources(), store.Transactions(), store.Donations(), logger.Nop())
	res, err := ledger.CreateResource(context.Background(), CreateResourceInput{
		Name: "Water", Unit: "crate", InitialQuantity: 10, Operator: Operator{Name: "Alice"},
	})
	require.NoError(t, err)

	svc := NewDispatchService(store, store.Dispatches(), ledger, nil, logger.Nop())
	next := 0
	svc.orderNo = func(time.Time) string {
		n := numbers[next%len(numbers)]
		next++
		return n
	}
	return svc, res.ID
}

func TestDispatchCreate_RetriesOrderNumberCollision(t *testing.T) {
	svc, resourceID := newDispatchWithNumbers(t, "DSP-20260101-AAAA", "DSP-20260101-AAAA", "DSP-20260101-BBBB")
	in := CreateDispatchInput{
		Destination: "Shelter",
		Lines:       []DispatchLineInput{{ResourceID: resourceID, Quantity: 1}},
		Requester:   Operator{Name: "Alice"},
	}

	first, err := svc.Create(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, "DSP-20260101-AAAA", first.OrderNo)

	second, err := svc.Create(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, "DSP-20260101-BBBB", second.OrderNo)
}

func TestDispatchCreate_GivesUpAfterRepeatedCollisions(t *testing.T) {
	svc, resourceID := newDispatchWithNumbers(t, "DSP-20260101-AAAA")
	in := CreateDispatchInput{
		Destination: "Shelter",
		Lines:       []DispatchLineInput{{ResourceID: resourceID, Quantity: 1}},
		Requester:   Operator{Name: "Alice"},
	}

	_, err := svc.Create(context.Background(), in)
	require.NoError(t, err)

	_, err = svc.Create(context.Background(), in)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrConflict))

	orders, err := svc.List(context.Background(), repository.DispatchFilter{})
	require.NoError(t, err)
	assert.Len(t, orders, 1)
}
