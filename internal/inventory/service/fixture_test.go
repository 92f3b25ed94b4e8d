package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/reliefhub/reliefhub-backend/internal/inventory/integrity"
	"github.com/reliefhub/reliefhub-backend/internal/inventory/repository"
	"github.com/reliefhub/reliefhub-backend/internal/inventory/repository/memory"
	"github.com/reliefhub/reliefhub-backend/internal/inventory/service"
	"github.com/reliefhub/reliefhub-backend/pkg/actor"
	"github.com/reliefhub/reliefhub-backend/pkg/logger"
	"github.com/reliefhub/reliefhub-backend/pkg/permissions"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	store     *memory.Store
	integrity *integrity.Service
	notes     *recordingNotifier

	ledger     *service.LedgerService
	lots       *service.LotService
	assets     *service.AssetService
	locations  *service.LocationService
	dispatch   *service.DispatchService
	approvals  *service.ApprovalService
	audit      *service.AuditLogService
	sensitive  *service.SensitiveService
	labels     *service.LabelService
	stocktakes *service.StocktakeService
}

func newFixture(t *testing.T) *fixture {
	return newFixtureWithPolicy(t, permissions.NewSensitivePolicy(decimal.NewFromInt(50000), false))
}

func newFixtureWithPolicy(t *testing.T, policy permissions.Policy) *fixture {
	t.Helper()

	store := memory.New()
	integ := integrity.NewService("RH")
	notes := &recordingNotifier{}
	log := logger.Nop()

	f := &fixture{store: store, integrity: integ, notes: notes}
	f.ledger = service.NewLedgerService(store, store.Resources(), store.Transactions(), store.Donations(), log)
	f.lots = service.NewLotService(store, store.Lots(), store.Resources(), integ, log)
	f.assets = service.NewAssetService(store, store.Assets(), store.Resources(), store.Locations(), integ, log)
	f.locations = service.NewLocationService(store.Locations(), integ, log)
	f.dispatch = service.NewDispatchService(store, store.Dispatches(), f.ledger, notes, log)
	f.approvals = service.NewApprovalService(store, store.Resources(), store.Transactions(), notes, 5, log)
	f.audit = service.NewAuditLogService(store.Audit(), log)
	f.sensitive = service.NewSensitiveService(store.Transactions(), store.Assets(), store.Donations(), f.audit, policy, log)
	f.labels = service.NewLabelService(store, store.Lots(), store.Assets(), store.Resources(), store.Templates(), f.audit, log)
	f.stocktakes = service.NewStocktakeService(store, store.Stocktakes(), store.Resources(), store.Assets(), f.ledger, f.assets, log)
	return f
}

var (
	alice = service.Operator{Name: "Alice", ID: strPtr("u-alice")}
	bob   = service.Operator{Name: "Bob", ID: strPtr("u-bob")}

	admin      = &actor.Actor{ID: "u-admin", Name: "Ada", Role: actor.RoleAdmin}
	keeper     = &actor.Actor{ID: "u-keeper", Name: "Kim", Role: actor.RoleWarehouse}
	dispatcher = &actor.Actor{ID: "u-disp", Name: "Dev", Role: actor.RoleDispatcher}
	viewer     = &actor.Actor{ID: "u-view", Name: "Val", Role: actor.RoleViewer}
)

func strPtr(s string) *string { return &s }

func (f *fixture) resource(t *testing.T, name, level string, qty, min int) *repository.Resource {
	t.Helper()
	res, err := f.ledger.CreateResource(context.Background(), service.CreateResourceInput{
		Name:            name,
		Category:        "supplies",
		Unit:            "box",
		MinQuantity:     min,
		ControlLevel:    level,
		InitialQuantity: qty,
		Operator:        alice,
	})
	require.NoError(t, err)
	return res
}

func (f *fixture) assetizedResource(t *testing.T, name string) *repository.Resource {
	t.Helper()
	res, err := f.ledger.CreateResource(context.Background(), service.CreateResourceInput{
		Name:        name,
		Category:    "equipment",
		Unit:        "unit",
		IsAssetized: true,
		Operator:    alice,
	})
	require.NoError(t, err)
	return res
}

func (f *fixture) bin(t *testing.T, code, zone string) *repository.StorageLocation {
	t.Helper()
	ctx := context.Background()
	w := &repository.Warehouse{Code: code, Name: "Warehouse " + code}
	require.NoError(t, f.locations.CreateWarehouse(ctx, w))
	loc, err := f.locations.CreateStorageLocation(ctx, service.CreateLocationInput{WarehouseID: w.ID, Zone: zone})
	require.NoError(t, err)
	return loc
}

func (f *fixture) quantity(t *testing.T, id string) int {
	t.Helper()
	res, err := f.ledger.GetResource(context.Background(), id)
	require.NoError(t, err)
	return res.Quantity
}

func (f *fixture) seedTemplates() {
	f.store.Templates().Seed(repository.LabelTemplate{
		ID: "tpl-lot", Name: "Lot 50x30", Width: 50, Height: 30,
		TargetTypes: []string{"lot"}, ControlLevels: []string{"controlled", "medical"},
		LayoutConfig: []byte(`{"fields":["item_name"]}`), IsActive: true,
	})
	f.store.Templates().Seed(repository.LabelTemplate{
		ID: "tpl-asset", Name: "Asset 40x20", Width: 40, Height: 20,
		TargetTypes: []string{"asset"}, ControlLevels: []string{"civil", "controlled", "medical"},
		LayoutConfig: []byte(`{}`), IsActive: true,
	})
}

func inAWeek() time.Time { return time.Now().Add(7 * 24 * time.Hour) }

type recordingNotifier struct {
	mu        sync.Mutex
	dispatch  []string
	approvals []string
}

func (n *recordingNotifier) DispatchStatusChanged(_ context.Context, o *repository.DispatchOrder, _ string, _ *string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.dispatch = append(n.dispatch, o.Status)
}

func (n *recordingNotifier) ApprovalStatusChanged(_ context.Context, tx *repository.ResourceTransaction, _ *repository.Resource) {
	n.mu.Lock()
	defer n.mu.Unlock()
	status := ""
	if tx.ApprovalStatus != nil {
		status = *tx.ApprovalStatus
	}
	n.approvals = append(n.approvals, status)
}
