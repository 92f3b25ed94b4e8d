package service

import (
	"context"
	"time"

	"github.com/reliefhub/reliefhub-backend/internal/inventory/repository"
)

// TxRunner opens a unit of work. Store calls made with the derived context
// join it; the work commits only if fn returns nil.
type TxRunner interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// ResourceStore persists consumable resources
type ResourceStore interface {
	Create(ctx context.Context, res *repository.Resource) error
	GetByID(ctx context.Context, id string) (*repository.Resource, error)
	GetForUpdate(ctx context.Context, id string) (*repository.Resource, error)
	UpdateStock(ctx context.Context, res *repository.Resource) error
	List(ctx context.Context, f repository.ResourceFilter) ([]*repository.Resource, error)
}

// TransactionStore persists ledger rows
type TransactionStore interface {
	Create(ctx context.Context, t *repository.ResourceTransaction) error
	GetByID(ctx context.Context, id string) (*repository.ResourceTransaction, error)
	GetForUpdate(ctx context.Context, id string) (*repository.ResourceTransaction, error)
	UpdateApproval(ctx context.Context, t *repository.ResourceTransaction) error
	List(ctx context.Context, f repository.TransactionFilter) ([]*repository.ResourceTransaction, error)
}

// DonationStore persists donation sources
type DonationStore interface {
	Create(ctx context.Context, d *repository.DonationSource) error
	GetByID(ctx context.Context, id string) (*repository.DonationSource, error)
	List(ctx context.Context) ([]*repository.DonationSource, error)
}

// LotStore persists lots
type LotStore interface {
	Create(ctx context.Context, lot *repository.Lot) error
	GetByID(ctx context.Context, id string) (*repository.Lot, error)
	GetForUpdate(ctx context.Context, id string) (*repository.Lot, error)
	Update(ctx context.Context, lot *repository.Lot) error
	ListByItem(ctx context.Context, itemID string) ([]*repository.Lot, error)
	ListExpiringBefore(ctx context.Context, cutoff time.Time) ([]*repository.Lot, error)
}

// AssetStore persists assets and their movement history
type AssetStore interface {
	Create(ctx context.Context, a *repository.Asset) error
	GetByID(ctx context.Context, id string) (*repository.Asset, error)
	GetForUpdate(ctx context.Context, id string) (*repository.Asset, error)
	Update(ctx context.Context, a *repository.Asset) error
	List(ctx context.Context, f repository.AssetFilter) ([]*repository.Asset, error)
	CountByStatus(ctx context.Context) ([]repository.AssetStatusCount, error)
	ListOverdue(ctx context.Context, now time.Time) ([]*repository.Asset, error)
	CreateTransaction(ctx context.Context, t *repository.AssetTransaction) error
	GetTransaction(ctx context.Context, id string) (*repository.AssetTransaction, error)
	ListTransactions(ctx context.Context, assetID string, limit uint) ([]*repository.AssetTransaction, error)
}

// LocationStore persists warehouses and bins
type LocationStore interface {
	CreateWarehouse(ctx context.Context, w *repository.Warehouse) error
	GetWarehouse(ctx context.Context, id string) (*repository.Warehouse, error)
	ListWarehouses(ctx context.Context) ([]*repository.Warehouse, error)
	CreateLocation(ctx context.Context, loc *repository.StorageLocation) error
	GetLocation(ctx context.Context, id string) (*repository.StorageLocation, error)
	ListLocations(ctx context.Context, warehouseID string) ([]*repository.StorageLocation, error)
}

// DispatchStore persists dispatch orders and their lines
type DispatchStore interface {
	Create(ctx context.Context, o *repository.DispatchOrder) error
	GetByID(ctx context.Context, id string) (*repository.DispatchOrder, error)
	GetForUpdate(ctx context.Context, id string) (*repository.DispatchOrder, error)
	Update(ctx context.Context, o *repository.DispatchOrder) error
	UpdateLinePicked(ctx context.Context, line *repository.DispatchLine) error
	List(ctx context.Context, f repository.DispatchFilter) ([]*repository.DispatchOrder, error)
}

// AuditStore is the insert-only audit log. Implementations must write
// outside any ambient transaction.
type AuditStore interface {
	InsertSensitiveRead(ctx context.Context, e *repository.SensitiveReadLog) error
	InsertLabelPrint(ctx context.Context, e *repository.LabelPrintLog) error
	QuerySensitiveReads(ctx context.Context, f repository.AuditFilter) ([]*repository.SensitiveReadLog, error)
	QueryLabelPrints(ctx context.Context, f repository.AuditFilter) ([]*repository.LabelPrintLog, error)
}

// LabelTemplateStore reads label templates
type LabelTemplateStore interface {
	GetByID(ctx context.Context, id string) (*repository.LabelTemplate, error)
	List(ctx context.Context) ([]*repository.LabelTemplate, error)
}

// StocktakeStore persists stocktakes and their count lines
type StocktakeStore interface {
	Create(ctx context.Context, st *repository.Stocktake) error
	GetByID(ctx context.Context, id string) (*repository.Stocktake, error)
	GetForUpdate(ctx context.Context, id string) (*repository.Stocktake, error)
	Update(ctx context.Context, st *repository.Stocktake) error
	UpdateLine(ctx context.Context, line *repository.StocktakeLine) error
}

// Notifier informs requesters and approvers after a committed transition.
// Implementations must not fail the caller.
type Notifier interface {
	DispatchStatusChanged(ctx context.Context, o *repository.DispatchOrder, actorName string, reason *string)
	ApprovalStatusChanged(ctx context.Context, tx *repository.ResourceTransaction, res *repository.Resource)
}

type nopNotifier struct{}

func (nopNotifier) DispatchStatusChanged(context.Context, *repository.DispatchOrder, string, *string) {
}

func (nopNotifier) ApprovalStatusChanged(context.Context, *repository.ResourceTransaction, *repository.Resource) {
}

func notifierOrNop(n Notifier) Notifier {
	if n == nil {
		return nopNotifier{}
	}
	return n
}
