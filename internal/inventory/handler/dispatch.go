package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/reliefhub/reliefhub-backend/internal/inventory/repository"
	"github.com/reliefhub/reliefhub-backend/internal/inventory/service"
	"github.com/reliefhub/reliefhub-backend/pkg/errors"
	"github.com/reliefhub/reliefhub-backend/pkg/httputil"
	"github.com/reliefhub/reliefhub-backend/pkg/logger"
)

// DispatchHandler handles dispatch order endpoints
type DispatchHandler struct {
	service *service.DispatchService
	logger  *logger.Logger
}

// NewDispatchHandler creates a new dispatch handler
func NewDispatchHandler(svc *service.DispatchService, log *logger.Logger) *DispatchHandler {
	return &DispatchHandler{service: svc, logger: log}
}

type dispatchLineRequest struct {
	ResourceID string `json:"resource_id" validate:"required"`
	Quantity   int    `json:"quantity" validate:"gt=0"`
}

type createDispatchRequest struct {
	Priority          string                `json:"priority" validate:"omitempty,oneof=low normal high urgent"`
	SourceWarehouseID *string               `json:"source_warehouse_id"`
	Destination       string                `json:"destination" validate:"required"`
	Lines             []dispatchLineRequest `json:"lines" validate:"required,min=1,dive"`
	Notes             *string               `json:"notes"`
}

// Create opens a pending dispatch order
func (h *DispatchHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createDispatchRequest
	if err := httputil.DecodeAndValidate(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}

	lines := make([]service.DispatchLineInput, len(req.Lines))
	for i, l := range req.Lines {
		lines[i] = service.DispatchLineInput{ResourceID: l.ResourceID, Quantity: l.Quantity}
	}

	o, err := h.service.Create(r.Context(), service.CreateDispatchInput{
		Priority:          req.Priority,
		SourceWarehouseID: req.SourceWarehouseID,
		Destination:       req.Destination,
		Lines:             lines,
		Requester:         operator(r),
		Notes:             req.Notes,
	})
	if err != nil {
		httputil.Error(w, err)
		return
	}

	h.logger.Info().Str("order_no", o.OrderNo).Int("lines", len(o.Lines)).Msg("dispatch order created")
	httputil.Created(w, o)
}

// Get gets an order with its lines
func (h *DispatchHandler) Get(w http.ResponseWriter, r *http.Request) {
	o, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, o)
}

// List lists orders, newest first. from and to are RFC 3339 timestamps.
func (h *DispatchHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := repository.DispatchFilter{
		Status:   q.Get("status"),
		Priority: q.Get("priority"),
		Limit:    httputil.QueryUint(r, "limit", 100),
	}

	var err error
	if f.From, err = queryTime(r, "from"); err != nil {
		httputil.Error(w, err)
		return
	}
	if f.To, err = queryTime(r, "to"); err != nil {
		httputil.Error(w, err)
		return
	}

	list, err := h.service.List(r.Context(), f)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSONWithMeta(w, http.StatusOK, list, &httputil.Meta{Count: len(list), Limit: f.Limit})
}

func queryTime(r *http.Request, key string) (*time.Time, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return nil, errors.ValidationField(key, "must be an RFC 3339 timestamp")
	}
	return &t, nil
}

// Approve approves a pending order
func (h *DispatchHandler) Approve(w http.ResponseWriter, r *http.Request) {
	o, err := h.service.Approve(r.Context(), chi.URLParam(r, "id"), operator(r))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, o)
}

// Reject rejects a pending order
func (h *DispatchHandler) Reject(w http.ResponseWriter, r *http.Request) {
	var req reasonRequest
	if err := httputil.DecodeAndValidate(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}

	o, err := h.service.Reject(r.Context(), chi.URLParam(r, "id"), operator(r), req.Reason)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, o)
}

// StartPicking assigns the caller as picker
func (h *DispatchHandler) StartPicking(w http.ResponseWriter, r *http.Request) {
	o, err := h.service.StartPicking(r.Context(), chi.URLParam(r, "id"), operator(r))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, o)
}

type completePickingRequest struct {
	// Picked maps line id to the quantity taken off the shelf. Lines left
	// out ship nothing.
	Picked map[string]int `json:"picked"`
}

// CompletePicking deducts picked stock and hands the order to delivery
func (h *DispatchHandler) CompletePicking(w http.ResponseWriter, r *http.Request) {
	var req completePickingRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}

	o, err := h.service.CompletePicking(r.Context(), chi.URLParam(r, "id"), req.Picked, operator(r))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, o)
}

// Complete records delivery
func (h *DispatchHandler) Complete(w http.ResponseWriter, r *http.Request) {
	o, err := h.service.Complete(r.Context(), chi.URLParam(r, "id"), operator(r))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, o)
}

// Cancel abandons an order that has not left the warehouse
func (h *DispatchHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	var req reasonRequest
	if err := httputil.DecodeAndValidate(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}

	o, err := h.service.Cancel(r.Context(), chi.URLParam(r, "id"), operator(r), req.Reason)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, o)
}
