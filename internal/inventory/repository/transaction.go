package repository

import (
	"context"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/google/uuid"
	"github.com/reliefhub/reliefhub-backend/pkg/database"
	"github.com/reliefhub/reliefhub-backend/pkg/errors"
)

// Transaction types
const (
	TxIn       = "in"
	TxOut      = "out"
	TxTransfer = "transfer"
	TxAdjust   = "adjust"
	TxDonate   = "donate"
	TxExpired  = "expired"
)

// Approval status values
const (
	ApprovalPending  = "pending"
	ApprovalApproved = "approved"
	ApprovalRejected = "rejected"
)

// ResourceTransaction is one row of the stock ledger. Rows are never
// deleted; approval fields are the only ones written after insert.
type ResourceTransaction struct {
	ID               string     `db:"id" json:"id"`
	ResourceID       string     `db:"resource_id" json:"resource_id"`
	Type             string     `db:"type" json:"type"`
	Quantity         int        `db:"quantity" json:"quantity"`
	BeforeQuantity   int        `db:"before_quantity" json:"before_quantity"`
	AfterQuantity    int        `db:"after_quantity" json:"after_quantity"`
	OperatorName     string     `db:"operator_name" json:"operator_name"`
	OperatorID       *string    `db:"operator_id" json:"operator_id,omitempty"`
	FromLocation     *string    `db:"from_location" json:"from_location,omitempty"`
	ToLocation       *string    `db:"to_location" json:"to_location,omitempty"`
	Notes            *string    `db:"notes" json:"notes,omitempty"`
	ReferenceNo      *string    `db:"reference_no" json:"reference_no,omitempty"`
	DonationSourceID *string    `db:"donation_source_id" json:"donation_source_id,omitempty"`
	ApprovalStatus   *string    `db:"approval_status" json:"approval_status,omitempty"`
	ApproverName     *string    `db:"approver_name" json:"approver_name,omitempty"`
	ApproverID       *string    `db:"approver_id" json:"approver_id,omitempty"`
	ApprovedAt       *time.Time `db:"approved_at" json:"approved_at,omitempty"`
	RejectReason     *string    `db:"reject_reason" json:"reject_reason,omitempty"`
	RecipientName    *string    `db:"recipient_name" json:"recipient_name,omitempty"`
	RecipientPhone   *string    `db:"recipient_phone" json:"recipient_phone,omitempty"`
	RecipientIDNo    *string    `db:"recipient_id_no" json:"recipient_id_no,omitempty"`
	RecipientOrg     *string    `db:"recipient_org" json:"recipient_org,omitempty"`
	Purpose          *string    `db:"purpose" json:"purpose,omitempty"`
	CreatedAt        time.Time  `db:"created_at" json:"created_at"`
}

// IsPending reports whether the row is waiting at the approval gate.
func (t *ResourceTransaction) IsPending() bool {
	return t.ApprovalStatus != nil && *t.ApprovalStatus == ApprovalPending
}

// TransactionFilter narrows List. Zero values are ignored.
type TransactionFilter struct {
	ResourceID     string
	Type           string
	ApprovalStatus string
	From           *time.Time
	To             *time.Time
	Limit          uint
}

// TransactionRepository handles ledger row persistence
type TransactionRepository struct {
	db *database.DB
}

// NewTransactionRepository creates a new transaction repository
func NewTransactionRepository(db *database.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

// Create appends a ledger row
func (r *TransactionRepository) Create(ctx context.Context, t *ResourceTransaction) error {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}

	query := `
		INSERT INTO resource_transactions (
			id, resource_id, type, quantity, before_quantity, after_quantity,
			operator_name, operator_id, from_location, to_location, notes, reference_no,
			donation_source_id, approval_status, approver_name, approver_id, approved_at,
			reject_reason, recipient_name, recipient_phone, recipient_id_no, recipient_org, purpose
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23)
		RETURNING created_at
	`

	err := r.db.Q(ctx).QueryRowxContext(ctx, query,
		t.ID, t.ResourceID, t.Type, t.Quantity, t.BeforeQuantity, t.AfterQuantity,
		t.OperatorName, t.OperatorID, t.FromLocation, t.ToLocation, t.Notes, t.ReferenceNo,
		t.DonationSourceID, t.ApprovalStatus, t.ApproverName, t.ApproverID, t.ApprovedAt,
		t.RejectReason, t.RecipientName, t.RecipientPhone, t.RecipientIDNo, t.RecipientOrg, t.Purpose,
	).Scan(&t.CreatedAt)
	return database.Map(err)
}

// GetByID gets a ledger row by ID
func (r *TransactionRepository) GetByID(ctx context.Context, id string) (*ResourceTransaction, error) {
	return r.get(ctx, `SELECT * FROM resource_transactions WHERE id = $1`, id)
}

// GetForUpdate locks the ledger row for the ambient transaction
func (r *TransactionRepository) GetForUpdate(ctx context.Context, id string) (*ResourceTransaction, error) {
	return r.get(ctx, `SELECT * FROM resource_transactions WHERE id = $1 FOR UPDATE`, id)
}

func (r *TransactionRepository) get(ctx context.Context, query, id string) (*ResourceTransaction, error) {
	var t ResourceTransaction
	if err := r.db.Q(ctx).GetContext(ctx, &t, query, id); err != nil {
		if database.IsNoRows(err) {
			return nil, errors.NotFound("transaction")
		}
		return nil, err
	}
	return &t, nil
}

// UpdateApproval persists the outcome of the approval gate.
func (r *TransactionRepository) UpdateApproval(ctx context.Context, t *ResourceTransaction) error {
	query := `
		UPDATE resource_transactions SET
			approval_status = $2, approver_name = $3, approver_id = $4, approved_at = $5,
			reject_reason = $6, before_quantity = $7, after_quantity = $8
		WHERE id = $1
	`

	result, err := r.db.Q(ctx).ExecContext(ctx, query,
		t.ID, t.ApprovalStatus, t.ApproverName, t.ApproverID, t.ApprovedAt,
		t.RejectReason, t.BeforeQuantity, t.AfterQuantity,
	)
	if err != nil {
		return database.Map(err)
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.NotFound("transaction")
	}
	return nil
}

// List returns ledger rows newest first
func (r *TransactionRepository) List(ctx context.Context, f TransactionFilter) ([]*ResourceTransaction, error) {
	ds := database.Dialect.From("resource_transactions").Order(goqu.C("created_at").Desc())
	if f.ResourceID != "" {
		ds = ds.Where(goqu.C("resource_id").Eq(f.ResourceID))
	}
	if f.Type != "" {
		ds = ds.Where(goqu.C("type").Eq(f.Type))
	}
	if f.ApprovalStatus != "" {
		ds = ds.Where(goqu.C("approval_status").Eq(f.ApprovalStatus))
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

	var txs []*ResourceTransaction
	if err := r.db.Q(ctx).SelectContext(ctx, &txs, query, args...); err != nil {
		return nil, err
	}
	return txs, nil
}

const (
	defaultListLimit = 100
	maxListLimit     = 1000
)

func limitOrDefault(limit uint) uint {
	switch {
	case limit == 0:
		return defaultListLimit
	case limit > maxListLimit:
		return maxListLimit
	default:
		return limit
	}
}
