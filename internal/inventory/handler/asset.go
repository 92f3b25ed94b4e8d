package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/reliefhub/reliefhub-backend/internal/inventory/repository"
	"github.com/reliefhub/reliefhub-backend/internal/inventory/service"
	"github.com/reliefhub/reliefhub-backend/pkg/httputil"
	"github.com/reliefhub/reliefhub-backend/pkg/logger"
	"github.com/reliefhub/reliefhub-backend/pkg/permissions"
	"github.com/shopspring/decimal"
)

// AssetHandler handles asset lifecycle endpoints
type AssetHandler struct {
	service *service.AssetService
	logger  *logger.Logger
}

// NewAssetHandler creates a new asset handler
func NewAssetHandler(svc *service.AssetService, log *logger.Logger) *AssetHandler {
	return &AssetHandler{service: svc, logger: log}
}

// present strips borrower, price and internal notes for callers that cannot
// manage assets
func present(r *http.Request, a *repository.Asset) *repository.Asset {
	if permissions.Allowed(caller(r), permissions.AssetsWrite) {
		return a
	}
	return service.SanitizeForPublic(a)
}

func presentAll(r *http.Request, list []*repository.Asset) []*repository.Asset {
	out := make([]*repository.Asset, len(list))
	for i, a := range list {
		out[i] = present(r, a)
	}
	return out
}

type createAssetRequest struct {
	ItemID       string           `json:"item_id" validate:"required"`
	AssetNo      string           `json:"asset_no" validate:"required"`
	SerialNo     *string          `json:"serial_no"`
	Barcode      string           `json:"barcode"`
	LocationID   *string          `json:"location_id"`
	UnitPrice    *decimal.Decimal `json:"unit_price"`
	InternalNote *string          `json:"internal_note"`
}

// Create registers a serialised asset
func (h *AssetHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createAssetRequest
	if err := httputil.DecodeAndValidate(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}

	in := service.CreateAssetInput{
		ItemID:       req.ItemID,
		AssetNo:      req.AssetNo,
		SerialNo:     req.SerialNo,
		Barcode:      req.Barcode,
		LocationID:   req.LocationID,
		InternalNote: req.InternalNote,
	}
	if req.UnitPrice != nil {
		in.UnitPrice = decimal.NewNullDecimal(*req.UnitPrice)
	}

	a, err := h.service.Create(r.Context(), in)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, a)
}

// Get gets an asset by ID
func (h *AssetHandler) Get(w http.ResponseWriter, r *http.Request) {
	a, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, present(r, a))
}

// List lists assets
func (h *AssetHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := repository.AssetFilter{
		ItemID:     q.Get("item_id"),
		Status:     q.Get("status"),
		LocationID: q.Get("location_id"),
		Limit:      httputil.QueryUint(r, "limit", 100),
	}

	list, err := h.service.List(r.Context(), f)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSONWithMeta(w, http.StatusOK, presentAll(r, list), &httputil.Meta{Count: len(list), Limit: f.Limit})
}

type borrowRequest struct {
	BorrowerName       string    `json:"borrower_name" validate:"required,notblank"`
	BorrowerOrg        *string   `json:"borrower_org"`
	BorrowerContact    *string   `json:"borrower_contact"`
	Purpose            *string   `json:"purpose"`
	ExpectedReturnDate time.Time `json:"expected_return_date" validate:"required"`
}

// Borrow lends an asset out
func (h *AssetHandler) Borrow(w http.ResponseWriter, r *http.Request) {
	var req borrowRequest
	if err := httputil.DecodeAndValidate(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}

	a, err := h.service.Borrow(r.Context(), chi.URLParam(r, "id"), service.BorrowInput{
		BorrowerName:       req.BorrowerName,
		BorrowerOrg:        req.BorrowerOrg,
		BorrowerContact:    req.BorrowerContact,
		Purpose:            req.Purpose,
		ExpectedReturnDate: req.ExpectedReturnDate,
		Operator:           operator(r),
	})
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, a)
}

type returnRequest struct {
	Condition     string  `json:"condition" validate:"required,oneof=normal damaged missing_parts needs_repair"`
	ConditionNote *string `json:"condition_note"`
	ToLocationID  string  `json:"to_location_id" validate:"required"`
}

// Return brings a borrowed asset back
func (h *AssetHandler) Return(w http.ResponseWriter, r *http.Request) {
	var req returnRequest
	if err := httputil.DecodeAndValidate(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}

	a, err := h.service.Return(r.Context(), chi.URLParam(r, "id"), service.ReturnInput{
		Condition:     req.Condition,
		ConditionNote: req.ConditionNote,
		ToLocationID:  req.ToLocationID,
		Operator:      operator(r),
	})
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, a)
}

type moveRequest struct {
	ToLocationID string  `json:"to_location_id" validate:"required"`
	Notes        *string `json:"notes"`
}

// Transfer moves an in-stock asset between bins
func (h *AssetHandler) Transfer(w http.ResponseWriter, r *http.Request) {
	var req moveRequest
	if err := httputil.DecodeAndValidate(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}

	a, err := h.service.Transfer(r.Context(), chi.URLParam(r, "id"), req.ToLocationID, operator(r), req.Notes)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, a)
}

type notesRequest struct {
	Notes *string `json:"notes"`
}

// StartMaintenance sends an asset to maintenance
func (h *AssetHandler) StartMaintenance(w http.ResponseWriter, r *http.Request) {
	var req notesRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}

	a, err := h.service.MarkMaintenance(r.Context(), chi.URLParam(r, "id"), req.Notes, operator(r))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, a)
}

// CompleteMaintenance puts a repaired asset back on a shelf
func (h *AssetHandler) CompleteMaintenance(w http.ResponseWriter, r *http.Request) {
	var req moveRequest
	if err := httputil.DecodeAndValidate(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}

	a, err := h.service.CompleteMaintenance(r.Context(), chi.URLParam(r, "id"), req.ToLocationID, req.Notes, operator(r))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, a)
}

// Dispose writes an asset off
func (h *AssetHandler) Dispose(w http.ResponseWriter, r *http.Request) {
	var req reasonRequest
	if err := httputil.DecodeAndValidate(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}

	a, err := h.service.Dispose(r.Context(), chi.URLParam(r, "id"), req.Reason, operator(r))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, a)
}

// ReportLost records an asset as lost
func (h *AssetHandler) ReportLost(w http.ResponseWriter, r *http.Request) {
	var req notesRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}

	a, err := h.service.ReportLost(r.Context(), chi.URLParam(r, "id"), req.Notes, operator(r))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, a)
}

// History lists an asset's movements, newest first. Borrower details on
// history rows are only released through the sensitive data endpoint.
func (h *AssetHandler) History(w http.ResponseWriter, r *http.Request) {
	limit := httputil.QueryUint(r, "limit", 100)
	list, err := h.service.ListTransactions(r.Context(), chi.URLParam(r, "id"), limit)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	out := make([]*repository.AssetTransaction, len(list))
	for i, t := range list {
		c := *t
		c.BorrowerName, c.BorrowerOrg, c.BorrowerContact = nil, nil, nil
		out[i] = &c
	}

	httputil.JSONWithMeta(w, http.StatusOK, out, &httputil.Meta{Count: len(list), Limit: limit})
}

// Stats summarises the fleet by status
func (h *AssetHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Stats(r.Context())
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, stats)
}

// Overdue lists borrowed assets past their return date
func (h *AssetHandler) Overdue(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.Overdue(r.Context())
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSONWithMeta(w, http.StatusOK, presentAll(r, list), &httputil.Meta{Count: len(list)})
}
