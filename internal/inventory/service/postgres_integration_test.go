package service_test

import (
	"context"
	"log"
	"os"
	"sync"
	"testing"

	"github.com/reliefhub/reliefhub-backend/internal/inventory/integrity"
	"github.com/reliefhub/reliefhub-backend/internal/inventory/repository"
	"github.com/reliefhub/reliefhub-backend/internal/inventory/service"
	"github.com/reliefhub/reliefhub-backend/pkg/errors"
	"github.com/reliefhub/reliefhub-backend/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var suite *testutil.IntegrationSuite

func TestMain(m *testing.M) {
	if testutil.ShortMode() {
		os.Exit(m.Run())
	}

	ctx := context.Background()
	var err error
	suite, err = testutil.NewIntegrationSuite(ctx)
	if err != nil {
		log.Fatalf("failed to create integration suite: %v", err)
	}

	code := m.Run()
	suite.Close()
	testutil.TerminateContainer(ctx)
	os.Exit(code)
}

type pgServices struct {
	ledger *service.LedgerService
	lots   *service.LotService
}

func newPGServices(t *testing.T) pgServices {
	t.Helper()
	testutil.SkipIfShort(t)
	require.NotNil(t, suite)
	suite.Reset(t)

	db := suite.DB
	resources := repository.NewResourceRepository(db)
	ledger := service.NewLedgerService(db, resources, repository.NewTransactionRepository(db),
		repository.NewDonationRepository(db), suite.Logger)
	lots := service.NewLotService(db, repository.NewLotRepository(db), resources,
		integrity.NewService("RH"), suite.Logger)
	return pgServices{ledger: ledger, lots: lots}
}

func TestPostgres_ConcurrentOutboundKeepsLedgerConsistent(t *testing.T) {
	svc := newPGServices(t)
	ctx := context.Background()

	res, err := svc.ledger.CreateResource(ctx, service.CreateResourceInput{
		Name: "Rice 25kg", Category: "food", Unit: "sack", MinQuantity: 10,
		InitialQuantity: 100, Operator: alice,
	})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.ledger.DeductStock(ctx, service.TransactionInput{
				ResourceID: res.ID, Type: repository.TxOut, Quantity: 7, Operator: alice,
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err := svc.ledger.GetResource(ctx, res.ID)
	require.NoError(t, err)
	assert.Equal(t, 30, got.Quantity)
	assert.Equal(t, repository.ResourceAvailable, got.Status)

	txs, err := svc.ledger.ListTransactions(ctx, repository.TransactionFilter{ResourceID: res.ID})
	require.NoError(t, err)
	assert.Len(t, txs, 11)

	// every row chains from the one before it
	seen := map[int]bool{}
	for _, tx := range txs {
		assert.Equal(t, tx.BeforeQuantity-quantityDelta(tx), tx.AfterQuantity)
		assert.False(t, seen[tx.AfterQuantity], "after_quantity %d recorded twice", tx.AfterQuantity)
		seen[tx.AfterQuantity] = true
	}
}

func TestPostgres_DuplicateLotNumberIsConflict(t *testing.T) {
	svc := newPGServices(t)
	ctx := context.Background()

	item, err := svc.ledger.CreateResource(ctx, service.CreateResourceInput{
		Name: "Oral rehydration salts", Category: "medicine", Unit: "sachet",
		ControlLevel: repository.ControlMedical, Operator: alice,
	})
	require.NoError(t, err)

	lot, err := svc.lots.Create(ctx, service.CreateLotInput{ItemID: item.ID, LotNumber: "ORS-1", Quantity: 20})
	require.NoError(t, err)

	res := integrity.NewService("RH").Verify(lot.QRValue)
	assert.True(t, res.Valid)

	_, err = svc.lots.Create(ctx, service.CreateLotInput{ItemID: item.ID, LotNumber: "ORS-1", Quantity: 5})
	assert.True(t, errors.Is(err, errors.ErrConflict))
}

func quantityDelta(tx *repository.ResourceTransaction) int {
	if tx.Type == repository.TxIn {
		return -tx.Quantity
	}
	return tx.Quantity
}
