package memory

import (
	"context"
	"sort"

	"github.com/google/uuid"
	"github.com/reliefhub/reliefhub-backend/internal/inventory/repository"
	"github.com/reliefhub/reliefhub-backend/pkg/errors"
)

// Locations returns the warehouse and bin repository view
func (s *Store) Locations() *Locations { return &Locations{s} }

type Locations struct{ s *Store }

func (r *Locations) CreateWarehouse(ctx context.Context, w *repository.Warehouse) error {
	if w.ID == "" {
		w.ID = uuid.New().String()
	}
	now := r.s.tick()
	w.CreatedAt, w.UpdatedAt = now, now
	return r.s.write(ctx, func(st *state) error {
		for _, other := range st.warehouses {
			if other.Code == w.Code {
				return conflict("warehouses_code_key")
			}
		}
		st.warehouses[w.ID] = *w
		return nil
	})
}

func (r *Locations) GetWarehouse(ctx context.Context, id string) (*repository.Warehouse, error) {
	var out *repository.Warehouse
	err := r.s.read(ctx, func(st *state) error {
		w, ok := st.warehouses[id]
		if !ok {
			return errors.NotFound("warehouse")
		}
		out = &w
		return nil
	})
	return out, err
}

func (r *Locations) ListWarehouses(ctx context.Context) ([]*repository.Warehouse, error) {
	var out []*repository.Warehouse
	err := r.s.read(ctx, func(st *state) error {
		for _, w := range st.warehouses {
			w := w
			out = append(out, &w)
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, err
}

func (r *Locations) CreateLocation(ctx context.Context, loc *repository.StorageLocation) error {
	if loc.ID == "" {
		loc.ID = uuid.New().String()
	}
	now := r.s.tick()
	loc.CreatedAt, loc.UpdatedAt = now, now
	return r.s.write(ctx, func(st *state) error {
		if _, ok := st.warehouses[loc.WarehouseID]; !ok {
			return errors.BadRequest("referenced record does not exist")
		}
		for _, other := range st.locations {
			if other.FullPath == loc.FullPath {
				return conflict("storage_locations_full_path_key")
			}
		}
		st.locations[loc.ID] = *loc
		return nil
	})
}

func (r *Locations) GetLocation(ctx context.Context, id string) (*repository.StorageLocation, error) {
	var out *repository.StorageLocation
	err := r.s.read(ctx, func(st *state) error {
		loc, ok := st.locations[id]
		if !ok {
			return errors.NotFound("storage location")
		}
		out = &loc
		return nil
	})
	return out, err
}

func (r *Locations) ListLocations(ctx context.Context, warehouseID string) ([]*repository.StorageLocation, error) {
	var out []*repository.StorageLocation
	err := r.s.read(ctx, func(st *state) error {
		for _, loc := range st.locations {
			if loc.WarehouseID == warehouseID {
				loc := loc
				out = append(out, &loc)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].FullPath < out[j].FullPath })
	return out, err
}
