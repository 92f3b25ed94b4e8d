package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/reliefhub/reliefhub-backend/pkg/database"
	"github.com/reliefhub/reliefhub-backend/pkg/errors"
)

// Warehouse is a physical site
type Warehouse struct {
	ID        string    `db:"id" json:"id"`
	Code      string    `db:"code" json:"code"`
	Name      string    `db:"name" json:"name"`
	Address   *string   `db:"address" json:"address,omitempty"`
	IsActive  bool      `db:"is_active" json:"is_active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// StorageLocation is a bin inside a warehouse. FullPath is derived from
// the warehouse code and the zone/rack/level/position chain.
type StorageLocation struct {
	ID          string    `db:"id" json:"id"`
	WarehouseID string    `db:"warehouse_id" json:"warehouse_id"`
	Zone        string    `db:"zone" json:"zone"`
	Rack        *string   `db:"rack" json:"rack,omitempty"`
	Level       *string   `db:"level" json:"level,omitempty"`
	Position    *string   `db:"position" json:"position,omitempty"`
	FullPath    string    `db:"full_path" json:"full_path"`
	IsActive    bool      `db:"is_active" json:"is_active"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// LocationRepository handles warehouse and bin persistence
type LocationRepository struct {
	db *database.DB
}

// NewLocationRepository creates a new location repository
func NewLocationRepository(db *database.DB) *LocationRepository {
	return &LocationRepository{db: db}
}

// CreateWarehouse inserts a warehouse
func (r *LocationRepository) CreateWarehouse(ctx context.Context, w *Warehouse) error {
	if w.ID == "" {
		w.ID = uuid.New().String()
	}

	query := `
		INSERT INTO warehouses (id, code, name, address, is_active)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at
	`

	err := r.db.Q(ctx).QueryRowxContext(ctx, query,
		w.ID, w.Code, w.Name, w.Address, w.IsActive,
	).Scan(&w.CreatedAt, &w.UpdatedAt)
	return database.Map(err)
}

// GetWarehouse gets a warehouse by ID
func (r *LocationRepository) GetWarehouse(ctx context.Context, id string) (*Warehouse, error) {
	var w Warehouse
	if err := r.db.Q(ctx).GetContext(ctx, &w, `SELECT * FROM warehouses WHERE id = $1`, id); err != nil {
		if database.IsNoRows(err) {
			return nil, errors.NotFound("warehouse")
		}
		return nil, err
	}
	return &w, nil
}

// ListWarehouses lists all warehouses by code
func (r *LocationRepository) ListWarehouses(ctx context.Context) ([]*Warehouse, error) {
	var warehouses []*Warehouse
	if err := r.db.Q(ctx).SelectContext(ctx, &warehouses, `SELECT * FROM warehouses ORDER BY code`); err != nil {
		return nil, err
	}
	return warehouses, nil
}

// CreateLocation inserts a storage location
func (r *LocationRepository) CreateLocation(ctx context.Context, loc *StorageLocation) error {
	if loc.ID == "" {
		loc.ID = uuid.New().String()
	}

	query := `
		INSERT INTO storage_locations (id, warehouse_id, zone, rack, level, position, full_path, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at
	`

	err := r.db.Q(ctx).QueryRowxContext(ctx, query,
		loc.ID, loc.WarehouseID, loc.Zone, loc.Rack, loc.Level, loc.Position,
		loc.FullPath, loc.IsActive,
	).Scan(&loc.CreatedAt, &loc.UpdatedAt)
	return database.Map(err)
}

// GetLocation gets a storage location by ID
func (r *LocationRepository) GetLocation(ctx context.Context, id string) (*StorageLocation, error) {
	var loc StorageLocation
	if err := r.db.Q(ctx).GetContext(ctx, &loc, `SELECT * FROM storage_locations WHERE id = $1`, id); err != nil {
		if database.IsNoRows(err) {
			return nil, errors.NotFound("storage location")
		}
		return nil, err
	}
	return &loc, nil
}

// ListLocations lists the bins of a warehouse by path
func (r *LocationRepository) ListLocations(ctx context.Context, warehouseID string) ([]*StorageLocation, error) {
	var locs []*StorageLocation
	query := `SELECT * FROM storage_locations WHERE warehouse_id = $1 ORDER BY full_path`
	if err := r.db.Q(ctx).SelectContext(ctx, &locs, query, warehouseID); err != nil {
		return nil, err
	}
	return locs, nil
}
