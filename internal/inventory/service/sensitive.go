package service

import (
	"context"
	"fmt"

	"github.com/reliefhub/reliefhub-backend/internal/inventory/repository"
	"github.com/reliefhub/reliefhub-backend/pkg/actor"
	"github.com/reliefhub/reliefhub-backend/pkg/errors"
	"github.com/reliefhub/reliefhub-backend/pkg/logger"
	"github.com/reliefhub/reliefhub-backend/pkg/permissions"
	"github.com/shopspring/decimal"
)

// Readable personal fields per target type
var sensitiveFields = map[string][]string{
	repository.TargetTransaction:      {"recipient_name", "recipient_phone", "recipient_id_no", "recipient_org"},
	repository.TargetAssetTransaction: {"borrower_name", "borrower_contact", "borrower_org"},
	repository.TargetDonor:            {"contact_person", "phone", "email"},
}

// SensitiveReadRequest asks for personal fields of one record
type SensitiveReadRequest struct {
	TargetType string
	TargetID   string
	Fields     []string
	UIContext  string
	ReasonCode *string
	ReasonText *string
	IP         *string
}

// SensitiveService releases personal data one audited read at a time
type SensitiveService struct {
	transactions TransactionStore
	assets       AssetStore
	donations    DonationStore
	audit        *AuditLogService
	policy       permissions.Policy
	logger       *logger.Logger
}

// NewSensitiveService creates a new sensitive data service
func NewSensitiveService(
	transactions TransactionStore,
	assets AssetStore,
	donations DonationStore,
	audit *AuditLogService,
	policy permissions.Policy,
	log *logger.Logger,
) *SensitiveService {
	return &SensitiveService{
		transactions: transactions,
		assets:       assets,
		donations:    donations,
		audit:        audit,
		policy:       policy,
		logger:       log.WithComponent("sensitive"),
	}
}

// Read checks the policy, fetches the requested fields and records the
// attempt. Every call leaves exactly one audit entry, success or denied;
// failures return the original error.
func (s *SensitiveService) Read(ctx context.Context, a *actor.Actor, req SensitiveReadRequest) (map[string]any, string, error) {
	data, err := s.read(ctx, a, req)

	result := repository.ReadSuccess
	if err != nil {
		result = repository.ReadDenied
	}
	auditID := s.record(ctx, a, req, result)
	if err != nil {
		return nil, auditID, err
	}
	return data, auditID, nil
}

func (s *SensitiveService) read(ctx context.Context, a *actor.Actor, req SensitiveReadRequest) (map[string]any, error) {
	allowed, ok := sensitiveFields[req.TargetType]
	if !ok {
		return nil, errors.ValidationField("target_type", fmt.Sprintf("unknown target type %q", req.TargetType))
	}
	if req.TargetID == "" {
		return nil, errors.ValidationField("target_id", "is required")
	}
	if len(req.Fields) == 0 {
		return nil, errors.ValidationField("fields", "at least one field is required")
	}
	for _, f := range req.Fields {
		if !containsString(allowed, f) {
			return nil, errors.ValidationField("fields", fmt.Sprintf("%q is not a readable field of %s", f, req.TargetType))
		}
	}

	target := permissions.Target{Kind: req.TargetType, ID: req.TargetID, Fields: req.Fields}
	if req.TargetType == repository.TargetAssetTransaction {
		target.UnitPrice = func(ctx context.Context) (decimal.NullDecimal, error) {
			return s.assetUnitPrice(ctx, req.TargetID)
		}
	}
	if err := s.policy.Evaluate(ctx, a, permissions.SensitiveRead, target); err != nil {
		return nil, err
	}

	switch req.TargetType {
	case repository.TargetTransaction:
		t, err := s.transactions.GetByID(ctx, req.TargetID)
		if err != nil {
			return nil, err
		}
		return pick(req.Fields, map[string]*string{
			"recipient_name":  t.RecipientName,
			"recipient_phone": t.RecipientPhone,
			"recipient_id_no": t.RecipientIDNo,
			"recipient_org":   t.RecipientOrg,
		}), nil

	case repository.TargetAssetTransaction:
		t, err := s.assets.GetTransaction(ctx, req.TargetID)
		if err != nil {
			return nil, err
		}
		return pick(req.Fields, map[string]*string{
			"borrower_name":    t.BorrowerName,
			"borrower_contact": t.BorrowerContact,
			"borrower_org":     t.BorrowerOrg,
		}), nil

	default:
		d, err := s.donations.GetByID(ctx, req.TargetID)
		if err != nil {
			return nil, err
		}
		return pick(req.Fields, map[string]*string{
			"contact_person": d.ContactPerson,
			"phone":          d.Phone,
			"email":          d.Email,
		}), nil
	}
}

func (s *SensitiveService) assetUnitPrice(ctx context.Context, assetTxID string) (decimal.NullDecimal, error) {
	t, err := s.assets.GetTransaction(ctx, assetTxID)
	if err != nil {
		return decimal.NullDecimal{}, err
	}
	asset, err := s.assets.GetByID(ctx, t.AssetID)
	if err != nil {
		return decimal.NullDecimal{}, err
	}
	return asset.UnitPrice, nil
}

// record writes the audit entry. A failed audit write is logged and never
// replaces the outcome of the read.
func (s *SensitiveService) record(ctx context.Context, a *actor.Actor, req SensitiveReadRequest, result string) string {
	a = auditActor(a)
	uiContext := req.UIContext
	if uiContext == "" {
		uiContext = "api"
	}
	targetType := req.TargetType
	if _, ok := sensitiveFields[targetType]; !ok {
		// the row must still be insertable when the request named a bogus type
		targetType = repository.TargetTransaction
	}
	targetID := req.TargetID
	if targetID == "" {
		targetID = "-"
	}

	id, err := s.audit.LogSensitiveRead(ctx, &repository.SensitiveReadLog{
		ActorUID:       a.ID,
		ActorRole:      a.Role,
		TargetType:     targetType,
		TargetID:       targetID,
		FieldsAccessed: req.Fields,
		UIContext:      uiContext,
		ReasonCode:     req.ReasonCode,
		ReasonText:     req.ReasonText,
		Result:         result,
		IP:             req.IP,
	})
	if err != nil {
		s.logger.Error().Err(err).
			Str("target_type", req.TargetType).
			Str("target_id", req.TargetID).
			Str("result", result).
			Msg("failed to record sensitive read")
		return ""
	}
	return id
}

func pick(fields []string, values map[string]*string) map[string]any {
	out := make(map[string]any, len(fields))
	for _, f := range fields {
		if v := values[f]; v != nil {
			out[f] = *v
		} else {
			out[f] = nil
		}
	}
	return out
}

func containsString(values []string, v string) bool {
	for _, s := range values {
		if s == v {
			return true
		}
	}
	return false
}

func auditActor(a *actor.Actor) *actor.Actor {
	if a == nil {
		return &actor.Actor{ID: "anonymous", Role: "none"}
	}
	return a
}
