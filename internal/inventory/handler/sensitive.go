package handler

import (
	"net/http"

	"github.com/reliefhub/reliefhub-backend/internal/inventory/service"
	"github.com/reliefhub/reliefhub-backend/pkg/actor"
	"github.com/reliefhub/reliefhub-backend/pkg/httputil"
	"github.com/reliefhub/reliefhub-backend/pkg/logger"
)

// SensitiveHandler releases personal data one audited read at a time
type SensitiveHandler struct {
	service *service.SensitiveService
	logger  *logger.Logger
}

// NewSensitiveHandler creates a new sensitive data handler
func NewSensitiveHandler(svc *service.SensitiveService, log *logger.Logger) *SensitiveHandler {
	return &SensitiveHandler{service: svc, logger: log}
}

type sensitiveReadRequest struct {
	TargetType string   `json:"target_type"`
	TargetID   string   `json:"target_id"`
	Fields     []string `json:"fields"`
	UIContext  string   `json:"ui_context"`
	ReasonCode *string  `json:"reason_code"`
	ReasonText *string  `json:"reason_text"`
}

// Read returns the requested fields. Shape checks happen in the service so
// that malformed requests are audited too; the audit id is returned in meta
// on success and failure alike.
func (h *SensitiveHandler) Read(w http.ResponseWriter, r *http.Request) {
	var req sensitiveReadRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}

	data, auditID, err := h.service.Read(r.Context(), actor.FromContext(r.Context()), service.SensitiveReadRequest{
		TargetType: req.TargetType,
		TargetID:   req.TargetID,
		Fields:     req.Fields,
		UIContext:  req.UIContext,
		ReasonCode: req.ReasonCode,
		ReasonText: req.ReasonText,
		IP:         httputil.ClientIP(r),
	})
	if err != nil {
		httputil.ErrorWithMeta(w, err, &httputil.Meta{AuditID: auditID})
		return
	}

	httputil.JSONWithMeta(w, http.StatusOK, data, &httputil.Meta{AuditID: auditID})
}
