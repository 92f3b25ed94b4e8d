package events

import (
	"context"

	"github.com/reliefhub/reliefhub-backend/internal/inventory/repository"
	"github.com/reliefhub/reliefhub-backend/pkg/logger"
	"github.com/reliefhub/reliefhub-backend/pkg/messaging"
)

// Sink publishes a payload under a routing key. *messaging.Publisher
// satisfies it.
type Sink interface {
	Publish(ctx context.Context, routingKey string, data interface{}) error
}

// LogisticsEventPublisher informs requesters and approvers about dispatch
// and approval transitions. Publishing is fire-and-forget: failures are
// logged and never reach the caller. A nil publisher drops every event.
type LogisticsEventPublisher struct {
	sink   Sink
	logger *logger.Logger
}

// NewLogisticsEventPublisher declares the exchange and returns a publisher
func NewLogisticsEventPublisher(rmq *messaging.RabbitMQ, exchange string, log *logger.Logger) (*LogisticsEventPublisher, error) {
	if exchange == "" {
		exchange = messaging.DefaultExchange
	}
	publisher, err := messaging.NewPublisher(rmq, exchange, "reliefhub-inventory", log)
	if err != nil {
		return nil, err
	}
	return NewWithSink(publisher, log), nil
}

// NewWithSink builds a publisher on an arbitrary sink
func NewWithSink(sink Sink, log *logger.Logger) *LogisticsEventPublisher {
	if log == nil {
		log = logger.Nop()
	}
	return &LogisticsEventPublisher{sink: sink, logger: log.WithComponent("events")}
}

// DispatchStatusChanged publishes logistics.dispatch.<status>
func (p *LogisticsEventPublisher) DispatchStatusChanged(ctx context.Context, o *repository.DispatchOrder, actorName string, reason *string) {
	if p == nil || p.sink == nil {
		return
	}

	data := messaging.DispatchStatusEvent{
		OrderID:       o.ID,
		OrderNo:       o.OrderNo,
		Status:        o.Status,
		Priority:      o.Priority,
		Destination:   o.Destination,
		RequesterName: o.RequesterName,
		RequesterID:   o.RequesterID,
		ActorName:     actorName,
		Reason:        reason,
	}
	for _, line := range o.Lines {
		data.Lines = append(data.Lines, messaging.DispatchLineEvent{
			ResourceID:        line.ResourceID,
			RequestedQuantity: line.RequestedQuantity,
			PickedQuantity:    line.PickedQuantity,
		})
	}

	key := messaging.RoutingKey(messaging.RoutingDispatch, o.Status)
	if err := p.sink.Publish(ctx, key, data); err != nil {
		p.logger.Error().Err(err).Str("order_id", o.ID).Str("routing_key", key).Msg("failed to publish dispatch event")
	}
}

// ApprovalStatusChanged publishes logistics.approval.<status>
func (p *LogisticsEventPublisher) ApprovalStatusChanged(ctx context.Context, tx *repository.ResourceTransaction, res *repository.Resource) {
	if p == nil || p.sink == nil || tx.ApprovalStatus == nil {
		return
	}

	data := messaging.ApprovalStatusEvent{
		TransactionID: tx.ID,
		ResourceID:    tx.ResourceID,
		Quantity:      tx.Quantity,
		Status:        *tx.ApprovalStatus,
		RequesterName: tx.OperatorName,
		ApproverName:  tx.ApproverName,
		Reason:        tx.RejectReason,
	}
	if res != nil {
		data.ResourceName = res.Name
		data.ControlLevel = res.ControlLevel
	}

	key := messaging.RoutingKey(messaging.RoutingApproval, data.Status)
	if err := p.sink.Publish(ctx, key, data); err != nil {
		p.logger.Error().Err(err).Str("transaction_id", tx.ID).Str("routing_key", key).Msg("failed to publish approval event")
	}
}
