package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/reliefhub/reliefhub-backend/pkg/database"
	"github.com/reliefhub/reliefhub-backend/pkg/errors"
)

// Lot status values
const (
	LotActive   = "active"
	LotDepleted = "depleted"
	LotExpired  = "expired"
)

// Lot is a QR-labelled production batch of a controlled or medical item
type Lot struct {
	ID               string     `db:"id" json:"id"`
	ItemID           string     `db:"item_id" json:"item_id"`
	LotNumber        string     `db:"lot_number" json:"lot_number"`
	QRValue          string     `db:"qr_value" json:"qr_value"`
	ExpiryDate       *time.Time `db:"expiry_date" json:"expiry_date,omitempty"`
	Quantity         int        `db:"quantity" json:"quantity"`
	Status           string     `db:"status" json:"status"`
	LabelsPrinted    int        `db:"labels_printed" json:"labels_printed"`
	LastPrintBatchID *string    `db:"last_print_batch_id" json:"last_print_batch_id,omitempty"`
	WarehouseID      *string    `db:"warehouse_id" json:"warehouse_id,omitempty"`
	CreatedAt        time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time  `db:"updated_at" json:"updated_at"`
}

// LotRepository handles lot persistence
type LotRepository struct {
	db *database.DB
}

// NewLotRepository creates a new lot repository
func NewLotRepository(db *database.DB) *LotRepository {
	return &LotRepository{db: db}
}

// Create inserts a lot. The caller assigns ID and QRValue together since
// the code embeds the ID.
func (r *LotRepository) Create(ctx context.Context, lot *Lot) error {
	if lot.ID == "" {
		lot.ID = uuid.New().String()
	}

	query := `
		INSERT INTO lots (
			id, item_id, lot_number, qr_value, expiry_date, quantity, status,
			labels_printed, last_print_batch_id, warehouse_id
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at, updated_at
	`

	err := r.db.Q(ctx).QueryRowxContext(ctx, query,
		lot.ID, lot.ItemID, lot.LotNumber, lot.QRValue, lot.ExpiryDate, lot.Quantity,
		lot.Status, lot.LabelsPrinted, lot.LastPrintBatchID, lot.WarehouseID,
	).Scan(&lot.CreatedAt, &lot.UpdatedAt)
	return database.Map(err)
}

// GetByID gets a lot by ID
func (r *LotRepository) GetByID(ctx context.Context, id string) (*Lot, error) {
	return r.get(ctx, `SELECT * FROM lots WHERE id = $1`, id)
}

// GetForUpdate locks the lot row for the ambient transaction
func (r *LotRepository) GetForUpdate(ctx context.Context, id string) (*Lot, error) {
	return r.get(ctx, `SELECT * FROM lots WHERE id = $1 FOR UPDATE`, id)
}

func (r *LotRepository) get(ctx context.Context, query, id string) (*Lot, error) {
	var lot Lot
	if err := r.db.Q(ctx).GetContext(ctx, &lot, query, id); err != nil {
		if database.IsNoRows(err) {
			return nil, errors.NotFound("lot")
		}
		return nil, err
	}
	return &lot, nil
}

// Update writes the mutable lot fields
func (r *LotRepository) Update(ctx context.Context, lot *Lot) error {
	query := `
		UPDATE lots SET
			quantity = $2, status = $3, labels_printed = $4, last_print_batch_id = $5,
			updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`

	err := r.db.Q(ctx).QueryRowxContext(ctx, query,
		lot.ID, lot.Quantity, lot.Status, lot.LabelsPrinted, lot.LastPrintBatchID,
	).Scan(&lot.UpdatedAt)
	if err != nil {
		if database.IsNoRows(err) {
			return errors.NotFound("lot")
		}
		return database.Map(err)
	}
	return nil
}

// ListByItem lists lots of an item, earliest expiry first
func (r *LotRepository) ListByItem(ctx context.Context, itemID string) ([]*Lot, error) {
	var lots []*Lot
	query := `
		SELECT * FROM lots
		WHERE item_id = $1
		ORDER BY expiry_date NULLS LAST, lot_number
	`
	if err := r.db.Q(ctx).SelectContext(ctx, &lots, query, itemID); err != nil {
		return nil, err
	}
	return lots, nil
}

// ListExpiringBefore lists unexpired lots, active or depleted, whose expiry
// falls before the cutoff
func (r *LotRepository) ListExpiringBefore(ctx context.Context, cutoff time.Time) ([]*Lot, error) {
	var lots []*Lot
	query := `
		SELECT * FROM lots
		WHERE status IN ('active', 'depleted') AND expiry_date IS NOT NULL AND expiry_date < $1
		ORDER BY expiry_date
	`
	if err := r.db.Q(ctx).SelectContext(ctx, &lots, query, cutoff); err != nil {
		return nil, err
	}
	return lots, nil
}
