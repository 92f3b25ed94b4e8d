package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/reliefhub/reliefhub-backend/internal/inventory/repository"
	"github.com/reliefhub/reliefhub-backend/internal/inventory/service"
	"github.com/reliefhub/reliefhub-backend/pkg/httputil"
	"github.com/reliefhub/reliefhub-backend/pkg/logger"
)

// LocationHandler handles warehouse and bin endpoints
type LocationHandler struct {
	service *service.LocationService
	logger  *logger.Logger
}

// NewLocationHandler creates a new location handler
func NewLocationHandler(svc *service.LocationService, log *logger.Logger) *LocationHandler {
	return &LocationHandler{service: svc, logger: log}
}

type warehouseRequest struct {
	Code    string  `json:"code" validate:"required,max=20"`
	Name    string  `json:"name" validate:"required"`
	Address *string `json:"address"`
}

// CreateWarehouse registers a warehouse
func (h *LocationHandler) CreateWarehouse(w http.ResponseWriter, r *http.Request) {
	var req warehouseRequest
	if err := httputil.DecodeAndValidate(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}

	wh := &repository.Warehouse{Code: req.Code, Name: req.Name, Address: req.Address}
	if err := h.service.CreateWarehouse(r.Context(), wh); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, wh)
}

// ListWarehouses lists warehouses
func (h *LocationHandler) ListWarehouses(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.ListWarehouses(r.Context())
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSONWithMeta(w, http.StatusOK, list, &httputil.Meta{Count: len(list)})
}

type locationRequest struct {
	Zone     string  `json:"zone" validate:"required"`
	Rack     *string `json:"rack"`
	Level    *string `json:"level"`
	Position *string `json:"position"`
}

// CreateLocation adds a bin to a warehouse
func (h *LocationHandler) CreateLocation(w http.ResponseWriter, r *http.Request) {
	var req locationRequest
	if err := httputil.DecodeAndValidate(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}

	loc, err := h.service.CreateStorageLocation(r.Context(), service.CreateLocationInput{
		WarehouseID: chi.URLParam(r, "id"),
		Zone:        req.Zone,
		Rack:        req.Rack,
		Level:       req.Level,
		Position:    req.Position,
	})
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, loc)
}

// ListLocations lists the bins of a warehouse
func (h *LocationHandler) ListLocations(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.ListLocations(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSONWithMeta(w, http.StatusOK, list, &httputil.Meta{Count: len(list)})
}

// GetLocation gets a bin by ID
func (h *LocationHandler) GetLocation(w http.ResponseWriter, r *http.Request) {
	loc, err := h.service.GetLocation(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, loc)
}

// BinQRCode returns the code to print on a bin label
func (h *LocationHandler) BinQRCode(w http.ResponseWriter, r *http.Request) {
	code, err := h.service.BinQRCode(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, map[string]string{"qr_value": code})
}
