package repository

import (
	"context"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/google/uuid"
	"github.com/reliefhub/reliefhub-backend/pkg/database"
	"github.com/reliefhub/reliefhub-backend/pkg/errors"
)

// Dispatch order status values
const (
	DispatchPending    = "pending"
	DispatchApproved   = "approved"
	DispatchRejected   = "rejected"
	DispatchPicking    = "picking"
	DispatchDelivering = "delivering"
	DispatchCompleted  = "completed"
	DispatchCancelled  = "cancelled"
)

// Dispatch priorities
const (
	PriorityLow    = "low"
	PriorityNormal = "normal"
	PriorityHigh   = "high"
	PriorityUrgent = "urgent"
)

// DispatchOrderNoConstraint is the unique constraint guarding order numbers.
const DispatchOrderNoConstraint = "dispatch_orders_order_no_key"

// DispatchOrder moves stock from a warehouse to a destination
type DispatchOrder struct {
	ID                string          `db:"id" json:"id"`
	OrderNo           string          `db:"order_no" json:"order_no"`
	Status            string          `db:"status" json:"status"`
	Priority          string          `db:"priority" json:"priority"`
	SourceWarehouseID *string         `db:"source_warehouse_id" json:"source_warehouse_id,omitempty"`
	Destination       string          `db:"destination" json:"destination"`
	RequesterName     string          `db:"requester_name" json:"requester_name"`
	RequesterID       *string         `db:"requester_id" json:"requester_id,omitempty"`
	ApproverName      *string         `db:"approver_name" json:"approver_name,omitempty"`
	ApproverID        *string         `db:"approver_id" json:"approver_id,omitempty"`
	PickerName        *string         `db:"picker_name" json:"picker_name,omitempty"`
	PickerID          *string         `db:"picker_id" json:"picker_id,omitempty"`
	RejectReason      *string         `db:"reject_reason" json:"reject_reason,omitempty"`
	CancelReason      *string         `db:"cancel_reason" json:"cancel_reason,omitempty"`
	Notes             *string         `db:"notes" json:"notes,omitempty"`
	ApprovedAt        *time.Time      `db:"approved_at" json:"approved_at,omitempty"`
	PickStartedAt     *time.Time      `db:"pick_started_at" json:"pick_started_at,omitempty"`
	PickedAt          *time.Time      `db:"picked_at" json:"picked_at,omitempty"`
	DispatchedAt      *time.Time      `db:"dispatched_at" json:"dispatched_at,omitempty"`
	DeliveredAt       *time.Time      `db:"delivered_at" json:"delivered_at,omitempty"`
	CancelledAt       *time.Time      `db:"cancelled_at" json:"cancelled_at,omitempty"`
	Version           int             `db:"version" json:"version"`
	CreatedAt         time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time       `db:"updated_at" json:"updated_at"`
	Lines             []*DispatchLine `db:"-" json:"lines"`
}

// DispatchLine is one requested resource of an order
type DispatchLine struct {
	ID                string `db:"id" json:"id"`
	OrderID           string `db:"order_id" json:"order_id"`
	ResourceID        string `db:"resource_id" json:"resource_id"`
	RequestedQuantity int    `db:"requested_quantity" json:"requested_quantity"`
	PickedQuantity    int    `db:"picked_quantity" json:"picked_quantity"`
}

// DispatchFilter narrows List. Zero values are ignored.
type DispatchFilter struct {
	Status   string
	Priority string
	From     *time.Time
	To       *time.Time
	Limit    uint
}

// DispatchRepository handles dispatch order persistence
type DispatchRepository struct {
	db *database.DB
}

// NewDispatchRepository creates a new dispatch repository
func NewDispatchRepository(db *database.DB) *DispatchRepository {
	return &DispatchRepository{db: db}
}

// Create inserts the order and its lines. Run it inside WithinTx so a
// failed line insert does not leave an empty order behind. A clash on
// order_no surfaces as the raw pq error so callers can retry.
func (r *DispatchRepository) Create(ctx context.Context, o *DispatchOrder) error {
	if o.ID == "" {
		o.ID = uuid.New().String()
	}
	if o.Version == 0 {
		o.Version = 1
	}

	query := `
		INSERT INTO dispatch_orders (
			id, order_no, status, priority, source_warehouse_id, destination,
			requester_name, requester_id, notes, version
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at, updated_at
	`

	q := r.db.Q(ctx)
	if err := q.QueryRowxContext(ctx, query,
		o.ID, o.OrderNo, o.Status, o.Priority, o.SourceWarehouseID, o.Destination,
		o.RequesterName, o.RequesterID, o.Notes, o.Version,
	).Scan(&o.CreatedAt, &o.UpdatedAt); err != nil {
		return err
	}

	lineQuery := `
		INSERT INTO dispatch_lines (id, order_id, resource_id, requested_quantity, picked_quantity)
		VALUES ($1, $2, $3, $4, $5)
	`
	for _, line := range o.Lines {
		if line.ID == "" {
			line.ID = uuid.New().String()
		}
		line.OrderID = o.ID
		if _, err := q.ExecContext(ctx, lineQuery,
			line.ID, line.OrderID, line.ResourceID, line.RequestedQuantity, line.PickedQuantity,
		); err != nil {
			return database.Map(err)
		}
	}
	return nil
}

// GetByID gets an order with its lines
func (r *DispatchRepository) GetByID(ctx context.Context, id string) (*DispatchOrder, error) {
	return r.get(ctx, `SELECT * FROM dispatch_orders WHERE id = $1`, id)
}

// GetForUpdate locks the order row for the ambient transaction and loads
// its lines
func (r *DispatchRepository) GetForUpdate(ctx context.Context, id string) (*DispatchOrder, error) {
	return r.get(ctx, `SELECT * FROM dispatch_orders WHERE id = $1 FOR UPDATE`, id)
}

func (r *DispatchRepository) get(ctx context.Context, query, id string) (*DispatchOrder, error) {
	var o DispatchOrder
	if err := r.db.Q(ctx).GetContext(ctx, &o, query, id); err != nil {
		if database.IsNoRows(err) {
			return nil, errors.NotFound("dispatch order")
		}
		return nil, err
	}

	lines, err := r.listLines(ctx, o.ID)
	if err != nil {
		return nil, err
	}
	o.Lines = lines
	return &o, nil
}

func (r *DispatchRepository) listLines(ctx context.Context, orderID string) ([]*DispatchLine, error) {
	var lines []*DispatchLine
	query := `SELECT * FROM dispatch_lines WHERE order_id = $1 ORDER BY resource_id, id`
	if err := r.db.Q(ctx).SelectContext(ctx, &lines, query, orderID); err != nil {
		return nil, err
	}
	return lines, nil
}

// Update writes status, actors and phase timestamps and bumps the version
func (r *DispatchRepository) Update(ctx context.Context, o *DispatchOrder) error {
	query := `
		UPDATE dispatch_orders SET
			status = $2, approver_name = $3, approver_id = $4, picker_name = $5,
			picker_id = $6, reject_reason = $7, cancel_reason = $8, approved_at = $9,
			pick_started_at = $10, picked_at = $11, dispatched_at = $12,
			delivered_at = $13, cancelled_at = $14,
			version = version + 1, updated_at = NOW()
		WHERE id = $1
		RETURNING version, updated_at
	`

	err := r.db.Q(ctx).QueryRowxContext(ctx, query,
		o.ID, o.Status, o.ApproverName, o.ApproverID, o.PickerName,
		o.PickerID, o.RejectReason, o.CancelReason, o.ApprovedAt,
		o.PickStartedAt, o.PickedAt, o.DispatchedAt,
		o.DeliveredAt, o.CancelledAt,
	).Scan(&o.Version, &o.UpdatedAt)
	if err != nil {
		if database.IsNoRows(err) {
			return errors.NotFound("dispatch order")
		}
		return database.Map(err)
	}
	return nil
}

// UpdateLinePicked records the picked quantity of a line
func (r *DispatchRepository) UpdateLinePicked(ctx context.Context, line *DispatchLine) error {
	result, err := r.db.Q(ctx).ExecContext(ctx,
		`UPDATE dispatch_lines SET picked_quantity = $2 WHERE id = $1`,
		line.ID, line.PickedQuantity,
	)
	if err != nil {
		return database.Map(err)
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.NotFound("dispatch line")
	}
	return nil
}

// List returns orders newest first, without lines
func (r *DispatchRepository) List(ctx context.Context, f DispatchFilter) ([]*DispatchOrder, error) {
	ds := database.Dialect.From("dispatch_orders").Order(goqu.C("created_at").Desc())
	if f.Status != "" {
		ds = ds.Where(goqu.C("status").Eq(f.Status))
	}
	if f.Priority != "" {
		ds = ds.Where(goqu.C("priority").Eq(f.Priority))
	}
	if f.From != nil {
		ds = ds.Where(goqu.C("created_at").Gte(*f.From))
	}
	if f.To != nil {
		ds = ds.Where(goqu.C("created_at").Lt(*f.To))
	}
	ds = ds.Limit(limitOrDefault(f.Limit))

	query, args, err := ds.Prepared(true).ToSQL()
	if err != nil {
		return nil, err
	}

	var orders []*DispatchOrder
	if err := r.db.Q(ctx).SelectContext(ctx, &orders, query, args...); err != nil {
		return nil, err
	}
	return orders, nil
}
