package service

import (
	"context"
	"fmt"

	"github.com/reliefhub/reliefhub-backend/internal/inventory/repository"
	"github.com/reliefhub/reliefhub-backend/pkg/errors"
	"github.com/reliefhub/reliefhub-backend/pkg/logger"
)

// RevokeReasonMinLength is the shortest accepted label revoke reason
const RevokeReasonMinLength = 5

// AuditLogService writes and queries the governance audit trail. It never
// updates or deletes an entry.
type AuditLogService struct {
	store  AuditStore
	logger *logger.Logger
}

// NewAuditLogService creates a new audit log service
func NewAuditLogService(store AuditStore, log *logger.Logger) *AuditLogService {
	return &AuditLogService{store: store, logger: log.WithComponent("audit")}
}

// LogSensitiveRead appends a sensitive read entry and returns its id
func (s *AuditLogService) LogSensitiveRead(ctx context.Context, e *repository.SensitiveReadLog) (string, error) {
	details := map[string]string{}
	if e.ActorUID == "" {
		details["actor_uid"] = "is required"
	}
	if e.ActorRole == "" {
		details["actor_role"] = "is required"
	}
	switch e.TargetType {
	case repository.TargetTransaction, repository.TargetAssetTransaction, repository.TargetDonor:
	default:
		details["target_type"] = fmt.Sprintf("unknown target type %q", e.TargetType)
	}
	if e.TargetID == "" {
		details["target_id"] = "is required"
	}
	if e.Result != repository.ReadSuccess && e.Result != repository.ReadDenied {
		details["result"] = "must be success or denied"
	}
	if len(details) > 0 {
		return "", errors.Validation(details)
	}

	if err := s.store.InsertSensitiveRead(ctx, e); err != nil {
		return "", err
	}

	s.logger.Info().
		Str("audit_id", e.ID).
		Str("actor_uid", e.ActorUID).
		Str("target_type", e.TargetType).
		Str("target_id", e.TargetID).
		Str("result", e.Result).
		Msg("sensitive read recorded")
	return e.ID, nil
}

// LogLabelPrint appends a label print entry. The returned id doubles as
// the print batch id stamped on lots and assets.
func (s *AuditLogService) LogLabelPrint(ctx context.Context, e *repository.LabelPrintLog) (string, error) {
	details := map[string]string{}
	if e.ActorUID == "" {
		details["actor_uid"] = "is required"
	}
	switch e.Action {
	case repository.LabelPrint, repository.LabelReprint:
	case repository.LabelRevoke:
		if e.RevokeReason == nil || !minLength(*e.RevokeReason, RevokeReasonMinLength) {
			details["revoke_reason"] = fmt.Sprintf("must be at least %d characters", RevokeReasonMinLength)
		}
	default:
		details["action"] = fmt.Sprintf("unknown action %q", e.Action)
	}
	if len(e.TargetIDs) == 0 {
		details["target_ids"] = "is required"
	}
	if len(details) > 0 {
		return "", errors.Validation(details)
	}

	if err := s.store.InsertLabelPrint(ctx, e); err != nil {
		return "", err
	}

	s.logger.Info().
		Str("audit_id", e.ID).
		Str("action", e.Action).
		Str("target_type", e.TargetType).
		Int("label_count", e.LabelCount).
		Msg("label print recorded")
	return e.ID, nil
}

// QuerySensitiveReads lists sensitive read entries newest first
func (s *AuditLogService) QuerySensitiveReads(ctx context.Context, f repository.AuditFilter) ([]*repository.SensitiveReadLog, error) {
	return s.store.QuerySensitiveReads(ctx, f)
}

// QueryLabelPrints lists label print entries newest first
func (s *AuditLogService) QueryLabelPrints(ctx context.Context, f repository.AuditFilter) ([]*repository.LabelPrintLog, error) {
	return s.store.QueryLabelPrints(ctx, f)
}

// ReadLogsByTarget lists every sensitive read of one record
func (s *AuditLogService) ReadLogsByTarget(ctx context.Context, targetType, targetID string) ([]*repository.SensitiveReadLog, error) {
	if targetType == "" || targetID == "" {
		return nil, errors.BadRequest("target type and id are required")
	}
	return s.store.QuerySensitiveReads(ctx, repository.AuditFilter{TargetType: targetType, TargetID: targetID})
}
