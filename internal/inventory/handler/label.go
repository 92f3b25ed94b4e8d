package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/reliefhub/reliefhub-backend/internal/inventory/service"
	"github.com/reliefhub/reliefhub-backend/pkg/httputil"
	"github.com/reliefhub/reliefhub-backend/pkg/logger"
)

// LabelHandler handles label printing endpoints
type LabelHandler struct {
	service *service.LabelService
	logger  *logger.Logger
}

// NewLabelHandler creates a new label handler
func NewLabelHandler(svc *service.LabelService, log *logger.Logger) *LabelHandler {
	return &LabelHandler{service: svc, logger: log}
}

// Templates lists the active label templates
func (h *LabelHandler) Templates(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.Templates(r.Context())
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSONWithMeta(w, http.StatusOK, list, &httputil.Meta{Count: len(list)})
}

type printLotRequest struct {
	LotID      string `json:"lot_id" validate:"required"`
	TemplateID string `json:"template_id" validate:"required"`
}

// PrintLot renders the label of one lot
func (h *LabelHandler) PrintLot(w http.ResponseWriter, r *http.Request) {
	var req printLotRequest
	if err := httputil.DecodeAndValidate(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}

	res, err := h.service.PrintLotLabel(r.Context(), req.LotID, req.TemplateID, caller(r))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, res)
}

type printAssetsRequest struct {
	AssetIDs   []string `json:"asset_ids" validate:"required,min=1"`
	TemplateID string   `json:"template_id" validate:"required"`
}

// PrintAssets renders one label per asset as a single batch
func (h *LabelHandler) PrintAssets(w http.ResponseWriter, r *http.Request) {
	var req printAssetsRequest
	if err := httputil.DecodeAndValidate(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}

	res, err := h.service.PrintAssetLabels(r.Context(), req.AssetIDs, req.TemplateID, caller(r))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, res)
}

type reprintRequest struct {
	TemplateID string `json:"template_id" validate:"required"`
}

// Reprint renders a label again for /{type}/{id}
func (h *LabelHandler) Reprint(w http.ResponseWriter, r *http.Request) {
	var req reprintRequest
	if err := httputil.DecodeAndValidate(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}

	res, err := h.service.Reprint(r.Context(), chi.URLParam(r, "type"), chi.URLParam(r, "id"), req.TemplateID, caller(r))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, res)
}

// Revoke records that printed labels for /{type}/{id} must not be used
func (h *LabelHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	var req reasonRequest
	if err := httputil.DecodeAndValidate(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}

	logID, err := h.service.Revoke(r.Context(), chi.URLParam(r, "type"), chi.URLParam(r, "id"), req.Reason, caller(r))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSONWithMeta(w, http.StatusOK, map[string]string{"status": "revoked"}, &httputil.Meta{AuditID: logID})
}

// History lists the print log of /{type}/{id}
func (h *LabelHandler) History(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.PrintHistory(r.Context(), chi.URLParam(r, "type"), chi.URLParam(r, "id"))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSONWithMeta(w, http.StatusOK, list, &httputil.Meta{Count: len(list)})
}
