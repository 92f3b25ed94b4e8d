package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/reliefhub/reliefhub-backend/internal/inventory/repository"
	"github.com/reliefhub/reliefhub-backend/internal/inventory/service"
	"github.com/reliefhub/reliefhub-backend/pkg/httputil"
	"github.com/reliefhub/reliefhub-backend/pkg/logger"
)

// LedgerHandler handles resource and stock movement endpoints
type LedgerHandler struct {
	service *service.LedgerService
	logger  *logger.Logger
}

// NewLedgerHandler creates a new ledger handler
func NewLedgerHandler(svc *service.LedgerService, log *logger.Logger) *LedgerHandler {
	return &LedgerHandler{service: svc, logger: log}
}

type createResourceRequest struct {
	Name              string     `json:"name" validate:"required"`
	Category          string     `json:"category"`
	Unit              string     `json:"unit" validate:"required"`
	MinQuantity       int        `json:"min_quantity" validate:"gte=0"`
	ControlLevel      string     `json:"control_level" validate:"omitempty,oneof=civil controlled medical"`
	InitialQuantity   int        `json:"initial_quantity" validate:"gte=0"`
	ExpiresAt         *time.Time `json:"expires_at"`
	Location          *string    `json:"location"`
	Barcode           *string    `json:"barcode"`
	StorageLocationID *string    `json:"storage_location_id"`
	IsAssetized       bool       `json:"is_assetized"`
}

// CreateResource registers a resource with its opening stock
func (h *LedgerHandler) CreateResource(w http.ResponseWriter, r *http.Request) {
	var req createResourceRequest
	if err := httputil.DecodeAndValidate(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}

	res, err := h.service.CreateResource(r.Context(), service.CreateResourceInput{
		Name:              req.Name,
		Category:          req.Category,
		Unit:              req.Unit,
		MinQuantity:       req.MinQuantity,
		ControlLevel:      req.ControlLevel,
		InitialQuantity:   req.InitialQuantity,
		ExpiresAt:         req.ExpiresAt,
		Location:          req.Location,
		Barcode:           req.Barcode,
		StorageLocationID: req.StorageLocationID,
		IsAssetized:       req.IsAssetized,
		Operator:          operator(r),
	})
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, res)
}

// ListResources lists resources
func (h *LedgerHandler) ListResources(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := repository.ResourceFilter{
		Category:     q.Get("category"),
		Status:       q.Get("status"),
		ControlLevel: q.Get("control_level"),
		Limit:        httputil.QueryUint(r, "limit", 100),
	}

	list, err := h.service.ListResources(r.Context(), f)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSONWithMeta(w, http.StatusOK, list, &httputil.Meta{Count: len(list), Limit: f.Limit})
}

// GetResource gets a resource by ID
func (h *LedgerHandler) GetResource(w http.ResponseWriter, r *http.Request) {
	res, err := h.service.GetResource(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, res)
}

type transactionRequest struct {
	Type             string  `json:"type" validate:"required,oneof=in out transfer adjust donate expired"`
	Quantity         int     `json:"quantity" validate:"gte=0"`
	FromLocation     *string `json:"from_location"`
	ToLocation       *string `json:"to_location"`
	Notes            *string `json:"notes"`
	ReferenceNo      *string `json:"reference_no"`
	DonationSourceID *string `json:"donation_source_id"`
	RecipientName    *string `json:"recipient_name"`
	RecipientPhone   *string `json:"recipient_phone"`
	RecipientIDNo    *string `json:"recipient_id_no"`
	RecipientOrg     *string `json:"recipient_org"`
	Purpose          *string `json:"purpose"`
}

// RecordTransaction books a stock movement against a resource
func (h *LedgerHandler) RecordTransaction(w http.ResponseWriter, r *http.Request) {
	var req transactionRequest
	if err := httputil.DecodeAndValidate(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}

	tx, err := h.service.RecordTransaction(r.Context(), service.TransactionInput{
		ResourceID:       chi.URLParam(r, "id"),
		Type:             req.Type,
		Quantity:         req.Quantity,
		Operator:         operator(r),
		FromLocation:     req.FromLocation,
		ToLocation:       req.ToLocation,
		Notes:            req.Notes,
		ReferenceNo:      req.ReferenceNo,
		DonationSourceID: req.DonationSourceID,
		RecipientName:    req.RecipientName,
		RecipientPhone:   req.RecipientPhone,
		RecipientIDNo:    req.RecipientIDNo,
		RecipientOrg:     req.RecipientOrg,
		Purpose:          req.Purpose,
	})
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, tx)
}

// withoutRecipient hides recipient identity on ledger rows. It is released
// only through the sensitive data endpoint, which audits every read.
func withoutRecipient(list []*repository.ResourceTransaction) []*repository.ResourceTransaction {
	out := make([]*repository.ResourceTransaction, len(list))
	for i, t := range list {
		c := *t
		c.RecipientName, c.RecipientPhone, c.RecipientIDNo, c.RecipientOrg = nil, nil, nil, nil
		out[i] = &c
	}
	return out
}

// ListTransactions lists ledger history, newest first
func (h *LedgerHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := repository.TransactionFilter{
		ResourceID:     q.Get("resource_id"),
		Type:           q.Get("type"),
		ApprovalStatus: q.Get("approval_status"),
		Limit:          httputil.QueryUint(r, "limit", 100),
	}
	if id := chi.URLParam(r, "id"); id != "" {
		f.ResourceID = id
	}

	list, err := h.service.ListTransactions(r.Context(), f)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSONWithMeta(w, http.StatusOK, withoutRecipient(list), &httputil.Meta{Count: len(list), Limit: f.Limit})
}

type donationSourceRequest struct {
	Name          string  `json:"name" validate:"required"`
	Type          string  `json:"type" validate:"required,oneof=individual corporate organization government"`
	ContactPerson *string `json:"contact_person"`
	Phone         *string `json:"phone"`
	Email         *string `json:"email" validate:"omitempty,email"`
	NeedsReceipt  bool    `json:"needs_receipt"`
}

// CreateDonationSource registers a donor
func (h *LedgerHandler) CreateDonationSource(w http.ResponseWriter, r *http.Request) {
	var req donationSourceRequest
	if err := httputil.DecodeAndValidate(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}

	d := &repository.DonationSource{
		Name:          req.Name,
		Type:          req.Type,
		ContactPerson: req.ContactPerson,
		Phone:         req.Phone,
		Email:         req.Email,
		NeedsReceipt:  req.NeedsReceipt,
	}
	if err := h.service.CreateDonationSource(r.Context(), d); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, d)
}

// ListDonationSources lists donors. Contact fields never leave this
// endpoint; they are read through the sensitive data endpoint.
func (h *LedgerHandler) ListDonationSources(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.ListDonationSources(r.Context())
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSONWithMeta(w, http.StatusOK, list, &httputil.Meta{Count: len(list)})
}

type donationRequest struct {
	Quantity         int     `json:"quantity" validate:"gt=0"`
	DonationSourceID string  `json:"donation_source_id" validate:"required"`
	ReferenceNo      *string `json:"reference_no"`
	Notes            *string `json:"notes"`
}

// RecordDonation books a gift against a known donor
func (h *LedgerHandler) RecordDonation(w http.ResponseWriter, r *http.Request) {
	var req donationRequest
	if err := httputil.DecodeAndValidate(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}

	tx, err := h.service.RecordDonation(r.Context(), service.DonationInput{
		ResourceID:       chi.URLParam(r, "id"),
		Quantity:         req.Quantity,
		DonationSourceID: req.DonationSourceID,
		Operator:         operator(r),
		ReferenceNo:      req.ReferenceNo,
		Notes:            req.Notes,
	})
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, tx)
}
