package service

import (
	"context"
	"strings"

	"github.com/reliefhub/reliefhub-backend/internal/inventory/integrity"
	"github.com/reliefhub/reliefhub-backend/internal/inventory/repository"
	"github.com/reliefhub/reliefhub-backend/pkg/errors"
	"github.com/reliefhub/reliefhub-backend/pkg/logger"
)

// CreateLocationInput describes a bin. FullPath is always derived.
type CreateLocationInput struct {
	WarehouseID string
	Zone        string
	Rack        *string
	Level       *string
	Position    *string
}

// LocationService manages warehouses and their bins
type LocationService struct {
	locations LocationStore
	integrity *integrity.Service
	logger    *logger.Logger
}

// NewLocationService creates a new location service
func NewLocationService(locations LocationStore, integ *integrity.Service, log *logger.Logger) *LocationService {
	return &LocationService{
		locations: locations,
		integrity: integ,
		logger:    log.WithComponent("locations"),
	}
}

// CreateWarehouse registers a site
func (s *LocationService) CreateWarehouse(ctx context.Context, w *repository.Warehouse) error {
	w.Code = strings.ToUpper(strings.TrimSpace(w.Code))
	details := map[string]string{}
	if w.Code == "" {
		details["code"] = "is required"
	} else if strings.ContainsAny(w.Code, "-| ") {
		details["code"] = "must not contain '-', '|' or spaces"
	}
	if strings.TrimSpace(w.Name) == "" {
		details["name"] = "is required"
	}
	if len(details) > 0 {
		return errors.Validation(details)
	}

	w.IsActive = true
	if err := s.locations.CreateWarehouse(ctx, w); err != nil {
		return err
	}
	s.logger.Info().Str("warehouse_id", w.ID).Str("code", w.Code).Msg("warehouse created")
	return nil
}

// ListWarehouses lists sites
func (s *LocationService) ListWarehouses(ctx context.Context) ([]*repository.Warehouse, error) {
	return s.locations.ListWarehouses(ctx)
}

// FullPath builds "{code}-{zone}[-{rack}[-{level}[-{position}]]]". A
// missing segment ends the chain.
func FullPath(warehouseCode, zone string, rack, level, position *string) string {
	parts := []string{warehouseCode, zone}
	for _, p := range []*string{rack, level, position} {
		if !nonEmpty(p) {
			break
		}
		parts = append(parts, strings.TrimSpace(*p))
	}
	return strings.Join(parts, "-")
}

// CreateStorageLocation registers a bin under a warehouse
func (s *LocationService) CreateStorageLocation(ctx context.Context, in CreateLocationInput) (*repository.StorageLocation, error) {
	zone := strings.TrimSpace(in.Zone)
	if zone == "" {
		return nil, errors.ValidationField("zone", "is required")
	}

	w, err := s.locations.GetWarehouse(ctx, in.WarehouseID)
	if err != nil {
		return nil, err
	}

	loc := &repository.StorageLocation{
		WarehouseID: w.ID,
		Zone:        zone,
		Rack:        in.Rack,
		Level:       in.Level,
		Position:    in.Position,
		FullPath:    FullPath(w.Code, zone, in.Rack, in.Level, in.Position),
		IsActive:    true,
	}
	if err := s.locations.CreateLocation(ctx, loc); err != nil {
		return nil, err
	}

	s.logger.Info().Str("location_id", loc.ID).Str("full_path", loc.FullPath).Msg("storage location created")
	return loc, nil
}

// GetLocation gets a bin by ID
func (s *LocationService) GetLocation(ctx context.Context, id string) (*repository.StorageLocation, error) {
	return s.locations.GetLocation(ctx, id)
}

// ListLocations lists the bins of a warehouse
func (s *LocationService) ListLocations(ctx context.Context, warehouseID string) ([]*repository.StorageLocation, error) {
	return s.locations.ListLocations(ctx, warehouseID)
}

// BinQRCode returns the QR code printed on a bin label
func (s *LocationService) BinQRCode(ctx context.Context, locationID string) (string, error) {
	loc, err := s.locations.GetLocation(ctx, locationID)
	if err != nil {
		return "", err
	}
	return s.integrity.Generate(integrity.TypeBin, loc.ID), nil
}
