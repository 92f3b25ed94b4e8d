package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/reliefhub/reliefhub-backend/internal/inventory/service"
	"github.com/reliefhub/reliefhub-backend/pkg/errors"
	"github.com/reliefhub/reliefhub-backend/pkg/httputil"
	"github.com/reliefhub/reliefhub-backend/pkg/logger"
)

// LotHandler handles lot endpoints
type LotHandler struct {
	service *service.LotService
	logger  *logger.Logger
}

// NewLotHandler creates a new lot handler
func NewLotHandler(svc *service.LotService, log *logger.Logger) *LotHandler {
	return &LotHandler{service: svc, logger: log}
}

type createLotRequest struct {
	ItemID      string     `json:"item_id" validate:"required"`
	LotNumber   string     `json:"lot_number" validate:"required"`
	Quantity    int        `json:"quantity" validate:"gte=0"`
	ExpiryDate  *time.Time `json:"expiry_date"`
	WarehouseID *string    `json:"warehouse_id"`
}

// Create registers a lot and stamps its QR code
func (h *LotHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createLotRequest
	if err := httputil.DecodeAndValidate(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}

	lot, err := h.service.Create(r.Context(), service.CreateLotInput{
		ItemID:      req.ItemID,
		LotNumber:   req.LotNumber,
		Quantity:    req.Quantity,
		ExpiryDate:  req.ExpiryDate,
		WarehouseID: req.WarehouseID,
	})
	if err != nil {
		httputil.Error(w, err)
		return
	}

	h.logger.Info().Str("lot_id", lot.ID).Str("item_id", lot.ItemID).Msg("lot created")
	httputil.Created(w, lot)
}

// Get gets a lot by ID
func (h *LotHandler) Get(w http.ResponseWriter, r *http.Request) {
	lot, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, lot)
}

// ListByItem lists the lots of one resource
func (h *LotHandler) ListByItem(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.ListByItem(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSONWithMeta(w, http.StatusOK, list, &httputil.Meta{Count: len(list)})
}

// ListExpiring lists unexpired lots expiring within ?days (default 30)
func (h *LotHandler) ListExpiring(w http.ResponseWriter, r *http.Request) {
	days := 30
	if v := r.URL.Query().Get("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			httputil.Error(w, errors.ValidationField("days", "must be a non-negative integer"))
			return
		}
		days = n
	}

	list, err := h.service.ListExpiring(r.Context(), days)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSONWithMeta(w, http.StatusOK, list, &httputil.Meta{Count: len(list)})
}

type lotQuantityRequest struct {
	Delta int `json:"delta"`
}

// UpdateQuantity applies a signed quantity change
func (h *LotHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	var req lotQuantityRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}

	lot, err := h.service.UpdateQuantity(r.Context(), chi.URLParam(r, "id"), req.Delta)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, lot)
}

// MarkExpired retires a lot
func (h *LotHandler) MarkExpired(w http.ResponseWriter, r *http.Request) {
	lot, err := h.service.MarkAsExpired(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, lot)
}
