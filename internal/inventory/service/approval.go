package service

import (
	"context"
	"fmt"
	"time"

	"github.com/reliefhub/reliefhub-backend/internal/inventory/repository"
	"github.com/reliefhub/reliefhub-backend/pkg/errors"
	"github.com/reliefhub/reliefhub-backend/pkg/logger"
)

// DefaultRejectReasonMinLength is the shortest accepted rejection reason
const DefaultRejectReasonMinLength = 5

// ApprovalRequest asks to release controlled or medical stock
type ApprovalRequest struct {
	ResourceID     string
	Quantity       int
	Requester      Operator
	RecipientName  string
	RecipientPhone *string
	RecipientIDNo  *string
	RecipientOrg   *string
	Purpose        *string
	Notes          *string
}

// ApprovalService is the two-person gate in front of controlled and
// medical stock-outs. Requests never touch stock; approval is the single
// authoritative decrement and re-checks availability at that moment.
type ApprovalService struct {
	tx           TxRunner
	resources    ResourceStore
	transactions TransactionStore
	notify       Notifier
	logger       *logger.Logger
	now          func() time.Time
	minReason    int
}

// NewApprovalService creates a new approval service
func NewApprovalService(
	tx TxRunner,
	resources ResourceStore,
	transactions TransactionStore,
	notify Notifier,
	rejectReasonMinLength int,
	log *logger.Logger,
) *ApprovalService {
	if rejectReasonMinLength <= 0 {
		rejectReasonMinLength = DefaultRejectReasonMinLength
	}
	return &ApprovalService{
		tx:           tx,
		resources:    resources,
		transactions: transactions,
		notify:       notifierOrNop(notify),
		logger:       log.WithComponent("approval"),
		now:          func() time.Time { return time.Now().UTC() },
		minReason:    rejectReasonMinLength,
	}
}

// RequestApproval queues a pending stock-out. The row records the current
// quantity as both before and after; stock is unchanged.
func (s *ApprovalService) RequestApproval(ctx context.Context, in ApprovalRequest) (*repository.ResourceTransaction, error) {
	if err := in.Requester.validate(); err != nil {
		return nil, err
	}
	details := map[string]string{}
	if in.ResourceID == "" {
		details["resource_id"] = "is required"
	}
	if in.Quantity <= 0 {
		details["quantity"] = "must be greater than zero"
	}
	if !nonEmpty(&in.RecipientName) {
		details["recipient_name"] = "is required"
	}
	if len(details) > 0 {
		return nil, errors.Validation(details)
	}

	var t *repository.ResourceTransaction
	var res *repository.Resource
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		r, err := s.resources.GetByID(ctx, in.ResourceID)
		if err != nil {
			return err
		}
		if !r.IsTraceable() {
			return errors.ValidationField("resource_id", "only controlled or medical items go through approval")
		}

		pending := repository.ApprovalPending
		t = &repository.ResourceTransaction{
			ResourceID:     r.ID,
			Type:           repository.TxOut,
			Quantity:       in.Quantity,
			BeforeQuantity: r.Quantity,
			AfterQuantity:  r.Quantity,
			OperatorName:   in.Requester.Name,
			OperatorID:     in.Requester.ID,
			Notes:          in.Notes,
			ApprovalStatus: &pending,
			RecipientName:  &in.RecipientName,
			RecipientPhone: in.RecipientPhone,
			RecipientIDNo:  in.RecipientIDNo,
			RecipientOrg:   in.RecipientOrg,
			Purpose:        in.Purpose,
		}
		res = r
		return s.transactions.Create(ctx, t)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().Str("transaction_id", t.ID).Str("resource_id", t.ResourceID).Int("quantity", t.Quantity).Msg("stock-out approval requested")
	s.notify.ApprovalStatusChanged(ctx, t, res)
	return t, nil
}

// Approve releases a pending request. The approver must be a different
// person from the requester, and the stock must still cover the request.
func (s *ApprovalService) Approve(ctx context.Context, txID string, approver Operator) (*repository.ResourceTransaction, error) {
	if err := approver.validate(); err != nil {
		return nil, err
	}

	var t *repository.ResourceTransaction
	var res *repository.Resource
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		t, err = s.transactions.GetForUpdate(ctx, txID)
		if err != nil {
			return err
		}
		if !t.IsPending() {
			return errors.InvalidState("stock-out request", approvalStatus(t), "approve")
		}
		if sameOperator(t.OperatorName, t.OperatorID, approver) {
			return errors.Forbidden("a request cannot be approved by the person who made it")
		}

		res, err = s.resources.GetForUpdate(ctx, t.ResourceID)
		if err != nil {
			return err
		}
		if res.Quantity < t.Quantity {
			return errors.InsufficientStock(res.ID, res.Quantity, t.Quantity)
		}

		t.BeforeQuantity = res.Quantity
		t.AfterQuantity = res.Quantity - t.Quantity
		res.Quantity = t.AfterQuantity
		res.Status = ComputeStatus(res.Quantity, res.MinQuantity)
		if err := s.resources.UpdateStock(ctx, res); err != nil {
			return err
		}

		approved := repository.ApprovalApproved
		t.ApprovalStatus = &approved
		t.ApproverName = &approver.Name
		t.ApproverID = approver.ID
		t.ApprovedAt = nowPtr(s.now())
		return s.transactions.UpdateApproval(ctx, t)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("transaction_id", t.ID).
		Str("resource_id", t.ResourceID).
		Int("before", t.BeforeQuantity).
		Int("after", t.AfterQuantity).
		Msg("stock-out approved")
	s.notify.ApprovalStatusChanged(ctx, t, res)
	return t, nil
}

// Reject closes a pending request without touching stock
func (s *ApprovalService) Reject(ctx context.Context, txID string, approver Operator, reason string) (*repository.ResourceTransaction, error) {
	if err := approver.validate(); err != nil {
		return nil, err
	}
	if !minLength(reason, s.minReason) {
		return nil, errors.ValidationField("reason", fmt.Sprintf("must be at least %d characters", s.minReason))
	}

	var t *repository.ResourceTransaction
	var res *repository.Resource
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		t, err = s.transactions.GetForUpdate(ctx, txID)
		if err != nil {
			return err
		}
		if !t.IsPending() {
			return errors.InvalidState("stock-out request", approvalStatus(t), "reject")
		}

		rejected := repository.ApprovalRejected
		t.ApprovalStatus = &rejected
		t.ApproverName = &approver.Name
		t.ApproverID = approver.ID
		t.ApprovedAt = nowPtr(s.now())
		t.RejectReason = &reason
		if err := s.transactions.UpdateApproval(ctx, t); err != nil {
			return err
		}
		res, err = s.resources.GetByID(ctx, t.ResourceID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().Str("transaction_id", t.ID).Str("resource_id", t.ResourceID).Msg("stock-out rejected")
	s.notify.ApprovalStatusChanged(ctx, t, res)
	return t, nil
}

// ListPending lists requests waiting at the gate, newest first
func (s *ApprovalService) ListPending(ctx context.Context, limit uint) ([]*repository.ResourceTransaction, error) {
	return s.transactions.List(ctx, repository.TransactionFilter{
		Type:           repository.TxOut,
		ApprovalStatus: repository.ApprovalPending,
		Limit:          limit,
	})
}

func approvalStatus(t *repository.ResourceTransaction) string {
	if t.ApprovalStatus == nil {
		return "none"
	}
	return *t.ApprovalStatus
}
