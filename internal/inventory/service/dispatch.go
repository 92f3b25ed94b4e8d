package service

import (
	"context"
	"math/rand/v2"
	"sort"
	"strings"
	"time"

	"github.com/reliefhub/reliefhub-backend/internal/inventory/repository"
	"github.com/reliefhub/reliefhub-backend/pkg/database"
	"github.com/reliefhub/reliefhub-backend/pkg/errors"
	"github.com/reliefhub/reliefhub-backend/pkg/logger"
)

const (
	orderNoAttempts = 3
	base36          = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
)

// OrderNumber returns DSP-{yyyymmdd}-{4 base36 chars}. Uniqueness is
// enforced by the dispatch_orders_order_no_key constraint.
func OrderNumber(now time.Time) string {
	var suffix [4]byte
	for i := range suffix {
		suffix[i] = base36[rand.IntN(len(base36))]
	}
	return "DSP-" + now.UTC().Format("20060102") + "-" + string(suffix[:])
}

// DispatchLineInput is one requested resource
type DispatchLineInput struct {
	ResourceID string
	Quantity   int
}

// CreateDispatchInput describes a new order
type CreateDispatchInput struct {
	Priority          string
	SourceWarehouseID *string
	Destination       string
	Lines             []DispatchLineInput
	Requester         Operator
	Notes             *string
}

// DispatchService runs the dispatch order workflow. Picking completion is
// the only place it touches stock.
type DispatchService struct {
	tx      TxRunner
	orders  DispatchStore
	ledger  *LedgerService
	notify  Notifier
	logger  *logger.Logger
	now     func() time.Time
	orderNo func(time.Time) string
}

// NewDispatchService creates a new dispatch service
func NewDispatchService(tx TxRunner, orders DispatchStore, ledger *LedgerService, notify Notifier, log *logger.Logger) *DispatchService {
	return &DispatchService{
		tx:      tx,
		orders:  orders,
		ledger:  ledger,
		notify:  notifierOrNop(notify),
		logger:  log.WithComponent("dispatch"),
		now:     func() time.Time { return time.Now().UTC() },
		orderNo: OrderNumber,
	}
}

// Create validates the lines and stores a pending order. A clashing order
// number is regenerated a few times before giving up.
func (s *DispatchService) Create(ctx context.Context, in CreateDispatchInput) (*repository.DispatchOrder, error) {
	if err := in.Requester.validate(); err != nil {
		return nil, err
	}
	details := map[string]string{}
	if strings.TrimSpace(in.Destination) == "" {
		details["destination"] = "is required"
	}
	switch in.Priority {
	case "":
		in.Priority = repository.PriorityNormal
	case repository.PriorityLow, repository.PriorityNormal, repository.PriorityHigh, repository.PriorityUrgent:
	default:
		details["priority"] = "must be low, normal, high or urgent"
	}
	if len(in.Lines) == 0 {
		details["lines"] = "at least one line is required"
	}
	seen := map[string]bool{}
	for _, l := range in.Lines {
		if l.ResourceID == "" {
			details["lines"] = "every line needs a resource_id"
			break
		}
		if l.Quantity <= 0 {
			details["lines"] = "every line quantity must be greater than zero"
			break
		}
		if seen[l.ResourceID] {
			details["lines"] = "a resource may appear only once per order"
			break
		}
		seen[l.ResourceID] = true
	}
	if len(details) > 0 {
		return nil, errors.Validation(details)
	}

	for _, l := range in.Lines {
		if _, err := s.ledger.GetResource(ctx, l.ResourceID); err != nil {
			return nil, err
		}
	}

	var order *repository.DispatchOrder
	var err error
	for attempt := 0; attempt < orderNoAttempts; attempt++ {
		order = &repository.DispatchOrder{
			OrderNo:           s.orderNo(s.now()),
			Status:            repository.DispatchPending,
			Priority:          in.Priority,
			SourceWarehouseID: in.SourceWarehouseID,
			Destination:       strings.TrimSpace(in.Destination),
			RequesterName:     in.Requester.Name,
			RequesterID:       in.Requester.ID,
			Notes:             in.Notes,
		}
		for _, l := range in.Lines {
			order.Lines = append(order.Lines, &repository.DispatchLine{
				ResourceID:        l.ResourceID,
				RequestedQuantity: l.Quantity,
			})
		}

		err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
			return s.orders.Create(ctx, order)
		})
		if err == nil || !database.IsUniqueViolation(err, repository.DispatchOrderNoConstraint) {
			break
		}
		s.logger.Warn().Str("order_no", order.OrderNo).Int("attempt", attempt+1).Msg("order number collision, regenerating")
	}
	if err != nil {
		return nil, database.Map(err)
	}

	s.logger.Info().Str("order_id", order.ID).Str("order_no", order.OrderNo).Int("lines", len(order.Lines)).Msg("dispatch order created")
	s.notify.DispatchStatusChanged(ctx, order, order.RequesterName, nil)
	return order, nil
}

// Get gets an order with its lines
func (s *DispatchService) Get(ctx context.Context, id string) (*repository.DispatchOrder, error) {
	return s.orders.GetByID(ctx, id)
}

// List lists orders, newest first
func (s *DispatchService) List(ctx context.Context, f repository.DispatchFilter) ([]*repository.DispatchOrder, error) {
	return s.orders.List(ctx, f)
}

// Approve moves a pending order to approved
func (s *DispatchService) Approve(ctx context.Context, id string, approver Operator) (*repository.DispatchOrder, error) {
	if err := approver.validate(); err != nil {
		return nil, err
	}
	return s.transition(ctx, id, "approve", approver.Name, nil, func(ctx context.Context, o *repository.DispatchOrder) error {
		if o.Status != repository.DispatchPending {
			return errors.InvalidState("dispatch order", o.Status, "approve")
		}
		o.Status = repository.DispatchApproved
		o.ApproverName = &approver.Name
		o.ApproverID = approver.ID
		o.ApprovedAt = nowPtr(s.now())
		return nil
	})
}

// Reject closes a pending order. A reason is required.
func (s *DispatchService) Reject(ctx context.Context, id string, approver Operator, reason string) (*repository.DispatchOrder, error) {
	if err := approver.validate(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(reason) == "" {
		return nil, errors.ValidationField("reason", "is required")
	}
	return s.transition(ctx, id, "reject", approver.Name, &reason, func(ctx context.Context, o *repository.DispatchOrder) error {
		if o.Status != repository.DispatchPending {
			return errors.InvalidState("dispatch order", o.Status, "reject")
		}
		o.Status = repository.DispatchRejected
		o.ApproverName = &approver.Name
		o.ApproverID = approver.ID
		o.RejectReason = &reason
		return nil
	})
}

// StartPicking assigns a picker to an approved order
func (s *DispatchService) StartPicking(ctx context.Context, id string, picker Operator) (*repository.DispatchOrder, error) {
	if err := picker.validate(); err != nil {
		return nil, err
	}
	return s.transition(ctx, id, "start picking", picker.Name, nil, func(ctx context.Context, o *repository.DispatchOrder) error {
		if o.Status != repository.DispatchApproved {
			return errors.InvalidState("dispatch order", o.Status, "start picking")
		}
		o.Status = repository.DispatchPicking
		o.PickerName = &picker.Name
		o.PickerID = picker.ID
		o.PickStartedAt = nowPtr(s.now())
		return nil
	})
}

// CompletePicking records the picked quantities and deducts stock once
// per picked line. Lines are processed in resource id order so
// concurrent pickers lock rows in the same sequence. Every line is
// attempted; if any fails, all failures are returned together and nothing
// is committed.
func (s *DispatchService) CompletePicking(ctx context.Context, id string, picked map[string]int, op Operator) (*repository.DispatchOrder, error) {
	if err := op.validate(); err != nil {
		return nil, err
	}
	for lineID, qty := range picked {
		if qty < 0 {
			return nil, errors.ValidationField("picked", "quantity for line "+lineID+" must not be negative")
		}
	}

	return s.transition(ctx, id, "complete picking", op.Name, nil, func(ctx context.Context, o *repository.DispatchOrder) error {
		if o.Status != repository.DispatchPicking {
			return errors.InvalidState("dispatch order", o.Status, "complete picking of")
		}

		known := map[string]bool{}
		for _, line := range o.Lines {
			known[line.ID] = true
		}
		for lineID := range picked {
			if !known[lineID] {
				return errors.NotFound("dispatch line " + lineID)
			}
		}

		lines := append([]*repository.DispatchLine(nil), o.Lines...)
		sort.SliceStable(lines, func(i, j int) bool {
			if lines[i].ResourceID != lines[j].ResourceID {
				return lines[i].ResourceID < lines[j].ResourceID
			}
			return lines[i].ID < lines[j].ID
		})

		var errs []error
		for _, line := range lines {
			if err := s.pickLine(ctx, o, line, picked[line.ID], op); err != nil {
				errs = append(errs, err)
			}
		}
		if err := errors.Join(errs...); err != nil {
			return err
		}

		o.Status = repository.DispatchDelivering
		o.PickedAt = nowPtr(s.now())
		o.DispatchedAt = o.PickedAt
		return nil
	})
}

func (s *DispatchService) pickLine(ctx context.Context, o *repository.DispatchOrder, line *repository.DispatchLine, qty int, op Operator) error {
	if qty == 0 {
		return nil
	}
	if qty > line.RequestedQuantity {
		return errors.ValidationField("picked", "line "+line.ID+" picked more than requested")
	}

	res, err := s.ledger.resources.GetForUpdate(ctx, line.ResourceID)
	if err != nil {
		return err
	}
	if res.Quantity < qty {
		return errors.InsufficientStock(res.ID, res.Quantity, qty)
	}

	ref := o.OrderNo
	recipient := o.Destination
	if _, err := s.ledger.RecordTransaction(ctx, TransactionInput{
		ResourceID:    line.ResourceID,
		Type:          repository.TxOut,
		Quantity:      qty,
		Operator:      op,
		FromLocation:  res.Location,
		ToLocation:    &recipient,
		ReferenceNo:   &ref,
		RecipientName: &recipient,
		Purpose:       strPtr("dispatch"),
		signedOff:     true,
	}); err != nil {
		return err
	}

	line.PickedQuantity = qty
	return s.orders.UpdateLinePicked(ctx, line)
}

// Complete confirms delivery
func (s *DispatchService) Complete(ctx context.Context, id string, op Operator) (*repository.DispatchOrder, error) {
	if err := op.validate(); err != nil {
		return nil, err
	}
	return s.transition(ctx, id, "complete", op.Name, nil, func(ctx context.Context, o *repository.DispatchOrder) error {
		if o.Status != repository.DispatchDelivering {
			return errors.InvalidState("dispatch order", o.Status, "complete")
		}
		o.Status = repository.DispatchCompleted
		o.DeliveredAt = nowPtr(s.now())
		return nil
	})
}

// Cancel stops an order that is not yet completed or cancelled. Stock
// already deducted by picking is not returned automatically.
func (s *DispatchService) Cancel(ctx context.Context, id string, op Operator, reason string) (*repository.DispatchOrder, error) {
	if err := op.validate(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(reason) == "" {
		return nil, errors.ValidationField("reason", "is required")
	}
	return s.transition(ctx, id, "cancel", op.Name, &reason, func(ctx context.Context, o *repository.DispatchOrder) error {
		if o.Status == repository.DispatchCompleted || o.Status == repository.DispatchCancelled {
			return errors.InvalidState("dispatch order", o.Status, "cancel")
		}
		o.Status = repository.DispatchCancelled
		o.CancelReason = &reason
		o.CancelledAt = nowPtr(s.now())
		return nil
	})
}

func (s *DispatchService) transition(
	ctx context.Context,
	id, action, actorName string,
	reason *string,
	apply func(ctx context.Context, o *repository.DispatchOrder) error,
) (*repository.DispatchOrder, error) {
	var out *repository.DispatchOrder
	var from string
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		o, err := s.orders.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		from = o.Status
		if err := apply(ctx, o); err != nil {
			return err
		}
		if err := s.orders.Update(ctx, o); err != nil {
			return err
		}
		out = o
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().Str("order_id", out.ID).Str("order_no", out.OrderNo).Str("from", from).Str("to", out.Status).Msg("dispatch order " + action)

	s.notify.DispatchStatusChanged(ctx, out, actorName, reason)
	return out, nil
}
