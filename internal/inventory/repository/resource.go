package repository

import (
	"context"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/google/uuid"
	"github.com/reliefhub/reliefhub-backend/pkg/database"
	"github.com/reliefhub/reliefhub-backend/pkg/errors"
)

// Resource status values. reserved is accepted on read and filter but never
// produced by the ledger.
const (
	ResourceAvailable = "available"
	ResourceLow       = "low"
	ResourceDepleted  = "depleted"
	ResourceReserved  = "reserved"
)

// Control levels
const (
	ControlCivil      = "civil"
	ControlControlled = "controlled"
	ControlMedical    = "medical"
)

// Resource is a consumable stock line item.
type Resource struct {
	ID                string     `db:"id" json:"id"`
	Name              string     `db:"name" json:"name"`
	Category          string     `db:"category" json:"category"`
	Quantity          int        `db:"quantity" json:"quantity"`
	Unit              string     `db:"unit" json:"unit"`
	MinQuantity       int        `db:"min_quantity" json:"min_quantity"`
	Status            string     `db:"status" json:"status"`
	ControlLevel      string     `db:"control_level" json:"control_level"`
	ExpiresAt         *time.Time `db:"expires_at" json:"expires_at,omitempty"`
	Location          *string    `db:"location" json:"location,omitempty"`
	Barcode           *string    `db:"barcode" json:"barcode,omitempty"`
	StorageLocationID *string    `db:"storage_location_id" json:"storage_location_id,omitempty"`
	IsAssetized       bool       `db:"is_assetized" json:"is_assetized"`
	Version           int        `db:"version" json:"version"`
	CreatedAt         time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time  `db:"updated_at" json:"updated_at"`
}

// IsTraceable reports whether the resource falls under lot/approval control.
func (r *Resource) IsTraceable() bool {
	return r.ControlLevel == ControlControlled || r.ControlLevel == ControlMedical
}

// ResourceFilter narrows List. Zero values are ignored.
type ResourceFilter struct {
	Category     string
	Status       string
	ControlLevel string
	Limit        uint
}

// ResourceRepository handles resource persistence
type ResourceRepository struct {
	db *database.DB
}

// NewResourceRepository creates a new resource repository
func NewResourceRepository(db *database.DB) *ResourceRepository {
	return &ResourceRepository{db: db}
}

// Create inserts a resource
func (r *ResourceRepository) Create(ctx context.Context, res *Resource) error {
	if res.ID == "" {
		res.ID = uuid.New().String()
	}
	if res.Version == 0 {
		res.Version = 1
	}

	query := `
		INSERT INTO resources (
			id, name, category, quantity, unit, min_quantity, status, control_level,
			expires_at, location, barcode, storage_location_id, is_assetized, version
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING created_at, updated_at
	`

	err := r.db.Q(ctx).QueryRowxContext(ctx, query,
		res.ID, res.Name, res.Category, res.Quantity, res.Unit, res.MinQuantity,
		res.Status, res.ControlLevel, res.ExpiresAt, res.Location, res.Barcode,
		res.StorageLocationID, res.IsAssetized, res.Version,
	).Scan(&res.CreatedAt, &res.UpdatedAt)
	return database.Map(err)
}

// GetByID gets a resource by ID
func (r *ResourceRepository) GetByID(ctx context.Context, id string) (*Resource, error) {
	return r.get(ctx, `SELECT * FROM resources WHERE id = $1`, id)
}

// GetForUpdate loads the resource and holds its row lock until the ambient
// transaction ends. Must be called inside database.DB.WithinTx.
func (r *ResourceRepository) GetForUpdate(ctx context.Context, id string) (*Resource, error) {
	return r.get(ctx, `SELECT * FROM resources WHERE id = $1 FOR UPDATE`, id)
}

func (r *ResourceRepository) get(ctx context.Context, query, id string) (*Resource, error) {
	var res Resource
	if err := r.db.Q(ctx).GetContext(ctx, &res, query, id); err != nil {
		if database.IsNoRows(err) {
			return nil, errors.NotFound("resource")
		}
		return nil, err
	}
	return &res, nil
}

// UpdateStock writes quantity, status and location and bumps the version.
func (r *ResourceRepository) UpdateStock(ctx context.Context, res *Resource) error {
	query := `
		UPDATE resources SET
			quantity = $2, status = $3, location = $4, storage_location_id = $5,
			version = version + 1, updated_at = NOW()
		WHERE id = $1
		RETURNING version, updated_at
	`

	err := r.db.Q(ctx).QueryRowxContext(ctx, query,
		res.ID, res.Quantity, res.Status, res.Location, res.StorageLocationID,
	).Scan(&res.Version, &res.UpdatedAt)
	if err != nil {
		if database.IsNoRows(err) {
			return errors.NotFound("resource")
		}
		return database.Map(err)
	}
	return nil
}

// List returns resources matching the filter ordered by name
func (r *ResourceRepository) List(ctx context.Context, f ResourceFilter) ([]*Resource, error) {
	ds := database.Dialect.From("resources").Order(goqu.C("name").Asc())
	if f.Category != "" {
		ds = ds.Where(goqu.C("category").Eq(f.Category))
	}
	if f.Status != "" {
		ds = ds.Where(goqu.C("status").Eq(f.Status))
	}
	if f.ControlLevel != "" {
		ds = ds.Where(goqu.C("control_level").Eq(f.ControlLevel))
	}
	if f.Limit > 0 {
		ds = ds.Limit(f.Limit)
	}

	query, args, err := ds.Prepared(true).ToSQL()
	if err != nil {
		return nil, err
	}

	var resources []*Resource
	if err := r.db.Q(ctx).SelectContext(ctx, &resources, query, args...); err != nil {
		return nil, err
	}
	return resources, nil
}
