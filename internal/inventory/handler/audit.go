package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/reliefhub/reliefhub-backend/internal/inventory/repository"
	"github.com/reliefhub/reliefhub-backend/internal/inventory/service"
	"github.com/reliefhub/reliefhub-backend/pkg/httputil"
	"github.com/reliefhub/reliefhub-backend/pkg/logger"
)

// AuditHandler serves the governance audit trail
type AuditHandler struct {
	service *service.AuditLogService
	logger  *logger.Logger
}

// NewAuditHandler creates a new audit handler
func NewAuditHandler(svc *service.AuditLogService, log *logger.Logger) *AuditHandler {
	return &AuditHandler{service: svc, logger: log}
}

func auditFilter(r *http.Request) (repository.AuditFilter, error) {
	q := r.URL.Query()
	f := repository.AuditFilter{
		ActorUID:   q.Get("actor_uid"),
		TargetType: q.Get("target_type"),
		TargetID:   q.Get("target_id"),
		Outcome:    q.Get("outcome"),
		Limit:      httputil.QueryUint(r, "limit", 100),
	}

	var err error
	if f.From, err = queryTime(r, "from"); err != nil {
		return f, err
	}
	if f.To, err = queryTime(r, "to"); err != nil {
		return f, err
	}
	return f, nil
}

// SensitiveReads queries the sensitive read log
func (h *AuditHandler) SensitiveReads(w http.ResponseWriter, r *http.Request) {
	f, err := auditFilter(r)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	list, err := h.service.QuerySensitiveReads(r.Context(), f)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSONWithMeta(w, http.StatusOK, list, &httputil.Meta{Count: len(list), Limit: f.Limit})
}

// LabelPrints queries the label print log
func (h *AuditHandler) LabelPrints(w http.ResponseWriter, r *http.Request) {
	f, err := auditFilter(r)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	list, err := h.service.QueryLabelPrints(r.Context(), f)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSONWithMeta(w, http.StatusOK, list, &httputil.Meta{Count: len(list), Limit: f.Limit})
}

// ReadsOfTarget lists every sensitive read of /{type}/{id}
func (h *AuditHandler) ReadsOfTarget(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.ReadLogsByTarget(r.Context(), chi.URLParam(r, "type"), chi.URLParam(r, "id"))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSONWithMeta(w, http.StatusOK, list, &httputil.Meta{Count: len(list)})
}
