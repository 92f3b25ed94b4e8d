package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/reliefhub/reliefhub-backend/internal/inventory/repository"
	"github.com/reliefhub/reliefhub-backend/internal/inventory/service"
	"github.com/reliefhub/reliefhub-backend/pkg/httputil"
	"github.com/reliefhub/reliefhub-backend/pkg/logger"
)

// StocktakeHandler handles physical count endpoints
type StocktakeHandler struct {
	service *service.StocktakeService
	logger  *logger.Logger
}

// NewStocktakeHandler creates a new stocktake handler
func NewStocktakeHandler(svc *service.StocktakeService, log *logger.Logger) *StocktakeHandler {
	return &StocktakeHandler{service: svc, logger: log}
}

type startStocktakeRequest struct {
	Type        string  `json:"type" validate:"required,oneof=consumable asset"`
	WarehouseID *string `json:"warehouse_id"`
	Notes       *string `json:"notes"`
}

// Start snapshots system quantities and opens a count
func (h *StocktakeHandler) Start(w http.ResponseWriter, r *http.Request) {
	var req startStocktakeRequest
	if err := httputil.DecodeAndValidate(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}

	in := service.StartStocktakeInput{Auditor: operator(r), WarehouseID: req.WarehouseID, Notes: req.Notes}

	var (
		st  *repository.Stocktake
		err error
	)
	if req.Type == repository.StocktakeAsset {
		st, err = h.service.StartAsset(r.Context(), in)
	} else {
		st, err = h.service.StartConsumable(r.Context(), in)
	}
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, st)
}

// Get gets a stocktake with its lines
func (h *StocktakeHandler) Get(w http.ResponseWriter, r *http.Request) {
	st, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, st)
}

type countRequest struct {
	ResourceID string  `json:"resource_id" validate:"required"`
	ActualQty  int     `json:"actual_qty" validate:"gte=0"`
	Notes      *string `json:"notes"`
}

// RecordCount records the counted quantity of one resource
func (h *StocktakeHandler) RecordCount(w http.ResponseWriter, r *http.Request) {
	var req countRequest
	if err := httputil.DecodeAndValidate(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}

	st, err := h.service.RecordCount(r.Context(), chi.URLParam(r, "id"), req.ResourceID, req.ActualQty, req.Notes)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, st)
}

type assetScanRequest struct {
	AssetID string `json:"asset_id" validate:"required"`
	Note    string `json:"note"`
}

// ScanAsset marks an asset as physically seen
func (h *StocktakeHandler) ScanAsset(w http.ResponseWriter, r *http.Request) {
	var req assetScanRequest
	if err := httputil.DecodeAndValidate(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}

	st, err := h.service.ScanAsset(r.Context(), chi.URLParam(r, "id"), req.AssetID)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, st)
}

// MarkMissing flags an asset that could not be found
func (h *StocktakeHandler) MarkMissing(w http.ResponseWriter, r *http.Request) {
	var req assetScanRequest
	if err := httputil.DecodeAndValidate(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}

	st, err := h.service.MarkAssetMissing(r.Context(), chi.URLParam(r, "id"), req.AssetID, req.Note)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, st)
}

type completeStocktakeRequest struct {
	ApplyDifference bool `json:"apply_difference"`
}

// Complete closes a count, optionally posting the differences
func (h *StocktakeHandler) Complete(w http.ResponseWriter, r *http.Request) {
	var req completeStocktakeRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}

	st, err := h.service.Complete(r.Context(), chi.URLParam(r, "id"), operator(r), req.ApplyDifference)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, st)
}

// Cancel abandons a count without touching stock
func (h *StocktakeHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	st, err := h.service.Cancel(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, st)
}
