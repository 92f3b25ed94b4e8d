package repository

import (
	"context"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/google/uuid"
	"github.com/reliefhub/reliefhub-backend/pkg/database"
	"github.com/reliefhub/reliefhub-backend/pkg/errors"
	"github.com/shopspring/decimal"
)

// Asset status values. disposed and lost are terminal.
const (
	AssetInStock     = "in_stock"
	AssetBorrowed    = "borrowed"
	AssetMaintenance = "maintenance"
	AssetDisposed    = "disposed"
	AssetLost        = "lost"
)

// Asset transaction types
const (
	AssetTxBorrow         = "borrow"
	AssetTxReturn         = "return"
	AssetTxTransfer       = "transfer"
	AssetTxMaintenanceIn  = "maintenance_in"
	AssetTxMaintenanceOut = "maintenance_out"
	AssetTxDispose        = "dispose"
	AssetTxReportLost     = "report_lost"
)

// Return conditions
const (
	ConditionNormal       = "normal"
	ConditionDamaged      = "damaged"
	ConditionMissingParts = "missing_parts"
	ConditionNeedsRepair  = "needs_repair"
)

// Asset is an individually tracked piece of equipment
type Asset struct {
	ID                 string              `db:"id" json:"id"`
	ItemID             string              `db:"item_id" json:"item_id"`
	AssetNo            string              `db:"asset_no" json:"asset_no"`
	SerialNo           *string             `db:"serial_no" json:"serial_no,omitempty"`
	Barcode            string              `db:"barcode" json:"barcode"`
	QRValue            string              `db:"qr_value" json:"qr_value"`
	Status             string              `db:"status" json:"status"`
	LocationID         *string             `db:"location_id" json:"location_id,omitempty"`
	BorrowerName       *string             `db:"borrower_name" json:"borrower_name,omitempty"`
	BorrowerOrg        *string             `db:"borrower_org" json:"borrower_org,omitempty"`
	BorrowerContact    *string             `db:"borrower_contact" json:"borrower_contact,omitempty"`
	BorrowDate         *time.Time          `db:"borrow_date" json:"borrow_date,omitempty"`
	ExpectedReturnDate *time.Time          `db:"expected_return_date" json:"expected_return_date,omitempty"`
	BorrowPurpose      *string             `db:"borrow_purpose" json:"borrow_purpose,omitempty"`
	ReturnCondition    *string             `db:"return_condition" json:"return_condition,omitempty"`
	DamageNote         *string             `db:"damage_note" json:"damage_note,omitempty"`
	InternalNote       *string             `db:"internal_note" json:"internal_note,omitempty"`
	UnitPrice          decimal.NullDecimal `db:"unit_price" json:"unit_price"`
	LabelsPrinted      int                 `db:"labels_printed" json:"labels_printed"`
	LastPrintBatchID   *string             `db:"last_print_batch_id" json:"last_print_batch_id,omitempty"`
	Version            int                 `db:"version" json:"version"`
	CreatedAt          time.Time           `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time           `db:"updated_at" json:"updated_at"`
}

// ClearBorrower blanks every borrower field
func (a *Asset) ClearBorrower() {
	a.BorrowerName = nil
	a.BorrowerOrg = nil
	a.BorrowerContact = nil
	a.BorrowDate = nil
	a.ExpectedReturnDate = nil
	a.BorrowPurpose = nil
}

// IsOverdue reports whether a borrowed asset is past its expected return
func (a *Asset) IsOverdue(now time.Time) bool {
	return a.Status == AssetBorrowed && a.ExpectedReturnDate != nil && a.ExpectedReturnDate.Before(now)
}

// AssetTransaction is one entry of an asset's movement history
type AssetTransaction struct {
	ID                 string     `db:"id" json:"id"`
	AssetID            string     `db:"asset_id" json:"asset_id"`
	Type               string     `db:"type" json:"type"`
	FromLocationID     *string    `db:"from_location_id" json:"from_location_id,omitempty"`
	ToLocationID       *string    `db:"to_location_id" json:"to_location_id,omitempty"`
	BorrowerName       *string    `db:"borrower_name" json:"borrower_name,omitempty"`
	BorrowerOrg        *string    `db:"borrower_org" json:"borrower_org,omitempty"`
	BorrowerContact    *string    `db:"borrower_contact" json:"borrower_contact,omitempty"`
	Purpose            *string    `db:"purpose" json:"purpose,omitempty"`
	ExpectedReturnDate *time.Time `db:"expected_return_date" json:"expected_return_date,omitempty"`
	ReturnCondition    *string    `db:"return_condition" json:"return_condition,omitempty"`
	ConditionNote      *string    `db:"condition_note" json:"condition_note,omitempty"`
	Notes              *string    `db:"notes" json:"notes,omitempty"`
	OperatorName       string     `db:"operator_name" json:"operator_name"`
	OperatorID         *string    `db:"operator_id" json:"operator_id,omitempty"`
	CreatedAt          time.Time  `db:"created_at" json:"created_at"`
}

// AssetFilter narrows List. Zero values are ignored.
type AssetFilter struct {
	ItemID     string
	Status     string
	LocationID string
	Limit      uint
}

// AssetStatusCount is one row of the per-status breakdown
type AssetStatusCount struct {
	Status string `db:"status" json:"status"`
	Count  int    `db:"count" json:"count"`
}

// AssetRepository handles asset and asset transaction persistence
type AssetRepository struct {
	db *database.DB
}

// NewAssetRepository creates a new asset repository
func NewAssetRepository(db *database.DB) *AssetRepository {
	return &AssetRepository{db: db}
}

// Create inserts an asset
func (r *AssetRepository) Create(ctx context.Context, a *Asset) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	if a.Version == 0 {
		a.Version = 1
	}

	query := `
		INSERT INTO assets (
			id, item_id, asset_no, serial_no, barcode, qr_value, status, location_id,
			internal_note, unit_price, labels_printed, version
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING created_at, updated_at
	`

	err := r.db.Q(ctx).QueryRowxContext(ctx, query,
		a.ID, a.ItemID, a.AssetNo, a.SerialNo, a.Barcode, a.QRValue, a.Status,
		a.LocationID, a.InternalNote, a.UnitPrice, a.LabelsPrinted, a.Version,
	).Scan(&a.CreatedAt, &a.UpdatedAt)
	return database.Map(err)
}

// GetByID gets an asset by ID
func (r *AssetRepository) GetByID(ctx context.Context, id string) (*Asset, error) {
	return r.get(ctx, `SELECT * FROM assets WHERE id = $1`, id)
}

// GetForUpdate locks the asset row for the ambient transaction
func (r *AssetRepository) GetForUpdate(ctx context.Context, id string) (*Asset, error) {
	return r.get(ctx, `SELECT * FROM assets WHERE id = $1 FOR UPDATE`, id)
}

func (r *AssetRepository) get(ctx context.Context, query, id string) (*Asset, error) {
	var a Asset
	if err := r.db.Q(ctx).GetContext(ctx, &a, query, id); err != nil {
		if database.IsNoRows(err) {
			return nil, errors.NotFound("asset")
		}
		return nil, err
	}
	return &a, nil
}

// Update writes every mutable asset field and bumps the version
func (r *AssetRepository) Update(ctx context.Context, a *Asset) error {
	query := `
		UPDATE assets SET
			status = $2, location_id = $3, borrower_name = $4, borrower_org = $5,
			borrower_contact = $6, borrow_date = $7, expected_return_date = $8,
			borrow_purpose = $9, return_condition = $10, damage_note = $11,
			internal_note = $12, labels_printed = $13, last_print_batch_id = $14,
			version = version + 1, updated_at = NOW()
		WHERE id = $1
		RETURNING version, updated_at
	`

	err := r.db.Q(ctx).QueryRowxContext(ctx, query,
		a.ID, a.Status, a.LocationID, a.BorrowerName, a.BorrowerOrg,
		a.BorrowerContact, a.BorrowDate, a.ExpectedReturnDate,
		a.BorrowPurpose, a.ReturnCondition, a.DamageNote,
		a.InternalNote, a.LabelsPrinted, a.LastPrintBatchID,
	).Scan(&a.Version, &a.UpdatedAt)
	if err != nil {
		if database.IsNoRows(err) {
			return errors.NotFound("asset")
		}
		return database.Map(err)
	}
	return nil
}

// List returns assets matching the filter ordered by asset number
func (r *AssetRepository) List(ctx context.Context, f AssetFilter) ([]*Asset, error) {
	ds := database.Dialect.From("assets").Order(goqu.C("asset_no").Asc())
	if f.ItemID != "" {
		ds = ds.Where(goqu.C("item_id").Eq(f.ItemID))
	}
	if f.Status != "" {
		ds = ds.Where(goqu.C("status").Eq(f.Status))
	}
	if f.LocationID != "" {
		ds = ds.Where(goqu.C("location_id").Eq(f.LocationID))
	}
	if f.Limit > 0 {
		ds = ds.Limit(f.Limit)
	}

	query, args, err := ds.Prepared(true).ToSQL()
	if err != nil {
		return nil, err
	}

	var assets []*Asset
	if err := r.db.Q(ctx).SelectContext(ctx, &assets, query, args...); err != nil {
		return nil, err
	}
	return assets, nil
}

// CountByStatus returns how many assets sit in each status
func (r *AssetRepository) CountByStatus(ctx context.Context) ([]AssetStatusCount, error) {
	var counts []AssetStatusCount
	query := `SELECT status, COUNT(*) AS count FROM assets GROUP BY status ORDER BY status`
	if err := r.db.Q(ctx).SelectContext(ctx, &counts, query); err != nil {
		return nil, err
	}
	return counts, nil
}

// ListOverdue lists borrowed assets whose expected return is before now
func (r *AssetRepository) ListOverdue(ctx context.Context, now time.Time) ([]*Asset, error) {
	var assets []*Asset
	query := `
		SELECT * FROM assets
		WHERE status = 'borrowed' AND expected_return_date IS NOT NULL AND expected_return_date < $1
		ORDER BY expected_return_date
	`
	if err := r.db.Q(ctx).SelectContext(ctx, &assets, query, now); err != nil {
		return nil, err
	}
	return assets, nil
}

// CreateTransaction appends an asset history entry
func (r *AssetRepository) CreateTransaction(ctx context.Context, t *AssetTransaction) error {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}

	query := `
		INSERT INTO asset_transactions (
			id, asset_id, type, from_location_id, to_location_id, borrower_name,
			borrower_org, borrower_contact, purpose, expected_return_date,
			return_condition, condition_note, notes, operator_name, operator_id
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING created_at
	`

	err := r.db.Q(ctx).QueryRowxContext(ctx, query,
		t.ID, t.AssetID, t.Type, t.FromLocationID, t.ToLocationID, t.BorrowerName,
		t.BorrowerOrg, t.BorrowerContact, t.Purpose, t.ExpectedReturnDate,
		t.ReturnCondition, t.ConditionNote, t.Notes, t.OperatorName, t.OperatorID,
	).Scan(&t.CreatedAt)
	return database.Map(err)
}

// GetTransaction gets an asset history entry by ID
func (r *AssetRepository) GetTransaction(ctx context.Context, id string) (*AssetTransaction, error) {
	var t AssetTransaction
	if err := r.db.Q(ctx).GetContext(ctx, &t, `SELECT * FROM asset_transactions WHERE id = $1`, id); err != nil {
		if database.IsNoRows(err) {
			return nil, errors.NotFound("asset transaction")
		}
		return nil, err
	}
	return &t, nil
}

// ListTransactions lists history entries newest first. An empty assetID
// lists across all assets.
func (r *AssetRepository) ListTransactions(ctx context.Context, assetID string, limit uint) ([]*AssetTransaction, error) {
	ds := database.Dialect.From("asset_transactions").
		Order(goqu.C("created_at").Desc()).
		Limit(limitOrDefault(limit))
	if assetID != "" {
		ds = ds.Where(goqu.C("asset_id").Eq(assetID))
	}

	query, args, err := ds.Prepared(true).ToSQL()
	if err != nil {
		return nil, err
	}

	var txs []*AssetTransaction
	if err := r.db.Q(ctx).SelectContext(ctx, &txs, query, args...); err != nil {
		return nil, err
	}
	return txs, nil
}
