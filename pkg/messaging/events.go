package messaging

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Routing key prefixes. The full key appends the new status, e.g.
// "logistics.dispatch.approved".
const (
	RoutingDispatch = "logistics.dispatch"
	RoutingApproval = "logistics.approval"
)

// DefaultExchange is the topic exchange logistics events are published to
const DefaultExchange = "logistics.events"

// RoutingKey joins a prefix and a status
func RoutingKey(prefix, status string) string {
	return prefix + "." + status
}

// Event is the base event structure
type Event struct {
	ID            string          `json:"id"`
	Type          string          `json:"type"`
	Source        string          `json:"source"`
	Timestamp     time.Time       `json:"timestamp"`
	CorrelationID string          `json:"correlation_id"`
	Data          json.RawMessage `json:"data"`
}

// NewEvent creates a new event with the given type and data
func NewEvent(eventType, source, correlationID string, data interface{}) (*Event, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	return &Event{
		ID:            uuid.New().String(),
		Type:          eventType,
		Source:        source,
		Timestamp:     time.Now().UTC(),
		CorrelationID: correlationID,
		Data:          dataBytes,
	}, nil
}

// UnmarshalData unmarshals the event data into the provided struct
func (e *Event) UnmarshalData(v interface{}) error {
	return json.Unmarshal(e.Data, v)
}

// DispatchLineEvent is one line of a dispatch order notification
type DispatchLineEvent struct {
	ResourceID        string `json:"resource_id"`
	RequestedQuantity int    `json:"requested_quantity"`
	PickedQuantity    int    `json:"picked_quantity"`
}

// DispatchStatusEvent is published after every committed dispatch order
// transition
type DispatchStatusEvent struct {
	OrderID       string              `json:"order_id"`
	OrderNo       string              `json:"order_no"`
	Status        string              `json:"status"`
	Priority      string              `json:"priority"`
	Destination   string              `json:"destination"`
	RequesterName string              `json:"requester_name"`
	RequesterID   *string             `json:"requester_id,omitempty"`
	ActorName     string              `json:"actor_name"`
	Reason        *string             `json:"reason,omitempty"`
	Lines         []DispatchLineEvent `json:"lines,omitempty"`
}

// ApprovalStatusEvent is published when a controlled stock-out is
// requested, approved or rejected
type ApprovalStatusEvent struct {
	TransactionID string  `json:"transaction_id"`
	ResourceID    string  `json:"resource_id"`
	ResourceName  string  `json:"resource_name"`
	ControlLevel  string  `json:"control_level"`
	Quantity      int     `json:"quantity"`
	Status        string  `json:"status"`
	RequesterName string  `json:"requester_name"`
	ApproverName  *string `json:"approver_name,omitempty"`
	Reason        *string `json:"reason,omitempty"`
}
