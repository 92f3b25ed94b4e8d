package handler

import (
	"net/http"

	"github.com/reliefhub/reliefhub-backend/internal/inventory/integrity"
	"github.com/reliefhub/reliefhub-backend/internal/inventory/service"
	"github.com/reliefhub/reliefhub-backend/pkg/errors"
	"github.com/reliefhub/reliefhub-backend/pkg/httputil"
	"github.com/reliefhub/reliefhub-backend/pkg/logger"
)

// ScanHandler verifies scanned label codes and resolves them to their target
type ScanHandler struct {
	integrity *integrity.Service
	lots      *service.LotService
	assets    *service.AssetService
	locations *service.LocationService
	logger    *logger.Logger
}

// NewScanHandler creates a new scan handler
func NewScanHandler(
	integ *integrity.Service,
	lots *service.LotService,
	assets *service.AssetService,
	locations *service.LocationService,
	log *logger.Logger,
) *ScanHandler {
	return &ScanHandler{integrity: integ, lots: lots, assets: assets, locations: locations, logger: log}
}

type scanRequest struct {
	Code string `json:"code" validate:"required"`
}

// Verify checks a code without looking anything up. A rejected code is a
// successful call whose result carries the reason.
func (h *ScanHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var req scanRequest
	if err := httputil.DecodeAndValidate(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, h.integrity.Verify(req.Code))
}

type scanResult struct {
	Type   integrity.Type `json:"type"`
	Target any            `json:"target"`
}

// Resolve verifies a code and returns the lot, asset or bin it names
func (h *ScanHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	var req scanRequest
	if err := httputil.DecodeAndValidate(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}

	res := h.integrity.Verify(req.Code)
	if !res.Valid {
		h.logger.Warn().Str("reason", res.Reason).Msg("rejected scan")
		httputil.Error(w, errors.Integrity(res.Reason))
		return
	}

	var (
		target any
		err    error
	)
	switch res.Type {
	case integrity.TypeLot:
		target, err = h.lots.FindByQRCode(r.Context(), req.Code)
	case integrity.TypeAsset:
		a, findErr := h.assets.FindByQRCode(r.Context(), req.Code)
		target, err = present(r, a), findErr
	case integrity.TypeBin:
		target, err = h.locations.GetLocation(r.Context(), res.ID)
	}
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, scanResult{Type: res.Type, Target: target})
}
