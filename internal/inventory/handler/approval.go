package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/reliefhub/reliefhub-backend/internal/inventory/service"
	"github.com/reliefhub/reliefhub-backend/pkg/httputil"
	"github.com/reliefhub/reliefhub-backend/pkg/logger"
)

// ApprovalHandler handles the controlled stock-out gate
type ApprovalHandler struct {
	service *service.ApprovalService
	logger  *logger.Logger
}

// NewApprovalHandler creates a new approval handler
func NewApprovalHandler(svc *service.ApprovalService, log *logger.Logger) *ApprovalHandler {
	return &ApprovalHandler{service: svc, logger: log}
}

type approvalRequest struct {
	Quantity       int     `json:"quantity" validate:"gt=0"`
	RecipientName  string  `json:"recipient_name" validate:"required,notblank"`
	RecipientPhone *string `json:"recipient_phone"`
	RecipientIDNo  *string `json:"recipient_id_no"`
	RecipientOrg   *string `json:"recipient_org"`
	Purpose        *string `json:"purpose"`
	Notes          *string `json:"notes"`
}

// Request queues a controlled or medical stock-out for a second signature
func (h *ApprovalHandler) Request(w http.ResponseWriter, r *http.Request) {
	var req approvalRequest
	if err := httputil.DecodeAndValidate(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}

	tx, err := h.service.RequestApproval(r.Context(), service.ApprovalRequest{
		ResourceID:     chi.URLParam(r, "id"),
		Quantity:       req.Quantity,
		Requester:      operator(r),
		RecipientName:  req.RecipientName,
		RecipientPhone: req.RecipientPhone,
		RecipientIDNo:  req.RecipientIDNo,
		RecipientOrg:   req.RecipientOrg,
		Purpose:        req.Purpose,
		Notes:          req.Notes,
	})
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, tx)
}

// ListPending lists requests waiting for a decision
func (h *ApprovalHandler) ListPending(w http.ResponseWriter, r *http.Request) {
	limit := httputil.QueryUint(r, "limit", 100)
	list, err := h.service.ListPending(r.Context(), limit)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSONWithMeta(w, http.StatusOK, withoutRecipient(list), &httputil.Meta{Count: len(list), Limit: limit})
}

// Approve releases the stock
func (h *ApprovalHandler) Approve(w http.ResponseWriter, r *http.Request) {
	tx, err := h.service.Approve(r.Context(), chi.URLParam(r, "id"), operator(r))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, tx)
}

type reasonRequest struct {
	Reason string `json:"reason" validate:"required,notblank"`
}

// Reject closes the request without touching stock
func (h *ApprovalHandler) Reject(w http.ResponseWriter, r *http.Request) {
	var req reasonRequest
	if err := httputil.DecodeAndValidate(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}

	tx, err := h.service.Reject(r.Context(), chi.URLParam(r, "id"), operator(r), req.Reason)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, tx)
}
