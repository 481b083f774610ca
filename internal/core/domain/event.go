package domain

// Event is a live notification fanned out to connected observers.
// Delivery is best-effort and never on the billing critical path.
type Event interface {
	EventType() string
}

// BatchSentEvent summarizes one dispatched batch.
type BatchSentEvent struct {
	Event     string `json:"event"` // "sms_batch_sent"
	AccountID string `json:"account_id"`
	Summary   string `json:"summary"`
	TotalSent int    `json:"total_sent"`
	TotalCost string `json:"total_cost"`
	Timestamp string `json:"timestamp"`
}

func (e BatchSentEvent) EventType() string { return e.Event }

// DeliveryUpdateEvent reports a reconciled delivery status change.
type DeliveryUpdateEvent struct {
	Event         string  `json:"event"` // "delivery_update"
	Recipient     string  `json:"recipient"`
	Status        string  `json:"status"`
	CorrelationID string  `json:"correlation_id"`
	FailureReason *string `json:"failure_reason,omitempty"`
}

func (e DeliveryUpdateEvent) EventType() string { return e.Event }

// Event type names.
const (
	EventBatchSent      = "sms_batch_sent"
	EventDeliveryUpdate = "delivery_update"
)
