package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/reliefhub/reliefhub-backend/pkg/database"
	"github.com/reliefhub/reliefhub-backend/pkg/errors"
)

// Stocktake types and statuses
const (
	StocktakeConsumable = "consumable"
	StocktakeAsset      = "asset"

	StocktakeInProgress = "in_progress"
	StocktakeCompleted  = "completed"
	StocktakeCancelled  = "cancelled"
)

// Stocktake is a physical count compared against system quantities
type Stocktake struct {
	ID           string           `db:"id" json:"id"`
	Type         string           `db:"type" json:"type"`
	Status       string           `db:"status" json:"status"`
	WarehouseID  *string          `db:"warehouse_id" json:"warehouse_id,omitempty"`
	AuditorName  string           `db:"auditor_name" json:"auditor_name"`
	ReviewerName *string          `db:"reviewer_name" json:"reviewer_name,omitempty"`
	GainCount    int              `db:"gain_count" json:"gain_count"`
	LossCount    int              `db:"loss_count" json:"loss_count"`
	Notes        *string          `db:"notes" json:"notes,omitempty"`
	StartedAt    time.Time        `db:"started_at" json:"started_at"`
	CompletedAt  *time.Time       `db:"completed_at" json:"completed_at,omitempty"`
	Lines        []*StocktakeLine `db:"-" json:"lines"`
}

// StocktakeLine is the count of one resource or one asset. Exactly one of
// ResourceID and AssetID is set.
type StocktakeLine struct {
	ID          string  `db:"id" json:"id"`
	StocktakeID string  `db:"stocktake_id" json:"stocktake_id"`
	ResourceID  *string `db:"resource_id" json:"resource_id,omitempty"`
	AssetID     *string `db:"asset_id" json:"asset_id,omitempty"`
	SystemQty   int     `db:"system_qty" json:"system_qty"`
	ActualQty   *int    `db:"actual_qty" json:"actual_qty,omitempty"`
	Scanned     bool    `db:"scanned" json:"scanned"`
	MissingNote *string `db:"missing_note" json:"missing_note,omitempty"`
	Notes       *string `db:"notes" json:"notes,omitempty"`
}

// Difference is actual minus system, zero while uncounted
func (l *StocktakeLine) Difference() int {
	if l.ActualQty == nil {
		return 0
	}
	return *l.ActualQty - l.SystemQty
}

// StocktakeRepository handles stocktake persistence
type StocktakeRepository struct {
	db *database.DB
}

// NewStocktakeRepository creates a new stocktake repository
func NewStocktakeRepository(db *database.DB) *StocktakeRepository {
	return &StocktakeRepository{db: db}
}

// Create inserts the stocktake and its lines
func (r *StocktakeRepository) Create(ctx context.Context, st *Stocktake) error {
	if st.ID == "" {
		st.ID = uuid.New().String()
	}

	q := r.db.Q(ctx)
	query := `
		INSERT INTO stocktakes (id, type, status, warehouse_id, auditor_name, notes)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING started_at
	`
	if err := q.QueryRowxContext(ctx, query,
		st.ID, st.Type, st.Status, st.WarehouseID, st.AuditorName, st.Notes,
	).Scan(&st.StartedAt); err != nil {
		return database.Map(err)
	}

	lineQuery := `
		INSERT INTO stocktake_lines (id, stocktake_id, resource_id, asset_id, system_qty, actual_qty, scanned)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	for _, line := range st.Lines {
		if line.ID == "" {
			line.ID = uuid.New().String()
		}
		line.StocktakeID = st.ID
		if _, err := q.ExecContext(ctx, lineQuery,
			line.ID, line.StocktakeID, line.ResourceID, line.AssetID,
			line.SystemQty, line.ActualQty, line.Scanned,
		); err != nil {
			return database.Map(err)
		}
	}
	return nil
}

// GetByID gets a stocktake with its lines
func (r *StocktakeRepository) GetByID(ctx context.Context, id string) (*Stocktake, error) {
	return r.get(ctx, `SELECT * FROM stocktakes WHERE id = $1`, id)
}

// GetForUpdate locks the stocktake row for the ambient transaction
func (r *StocktakeRepository) GetForUpdate(ctx context.Context, id string) (*Stocktake, error) {
	return r.get(ctx, `SELECT * FROM stocktakes WHERE id = $1 FOR UPDATE`, id)
}

func (r *StocktakeRepository) get(ctx context.Context, query, id string) (*Stocktake, error) {
	var st Stocktake
	q := r.db.Q(ctx)
	if err := q.GetContext(ctx, &st, query, id); err != nil {
		if database.IsNoRows(err) {
			return nil, errors.NotFound("stocktake")
		}
		return nil, err
	}

	var lines []*StocktakeLine
	if err := q.SelectContext(ctx, &lines,
		`SELECT * FROM stocktake_lines WHERE stocktake_id = $1 ORDER BY id`, st.ID,
	); err != nil {
		return nil, err
	}
	st.Lines = lines
	return &st, nil
}

// Update writes the stocktake header
func (r *StocktakeRepository) Update(ctx context.Context, st *Stocktake) error {
	query := `
		UPDATE stocktakes SET
			status = $2, reviewer_name = $3, gain_count = $4, loss_count = $5,
			notes = $6, completed_at = $7
		WHERE id = $1
	`
	result, err := r.db.Q(ctx).ExecContext(ctx, query,
		st.ID, st.Status, st.ReviewerName, st.GainCount, st.LossCount, st.Notes, st.CompletedAt,
	)
	if err != nil {
		return database.Map(err)
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.NotFound("stocktake")
	}
	return nil
}

// UpdateLine writes the count fields of one line
func (r *StocktakeRepository) UpdateLine(ctx context.Context, line *StocktakeLine) error {
	query := `
		UPDATE stocktake_lines SET
			actual_qty = $2, scanned = $3, missing_note = $4, notes = $5
		WHERE id = $1
	`
	result, err := r.db.Q(ctx).ExecContext(ctx, query,
		line.ID, line.ActualQty, line.Scanned, line.MissingNote, line.Notes,
	)
	if err != nil {
		return database.Map(err)
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.NotFound("stocktake line")
	}
	return nil
}
