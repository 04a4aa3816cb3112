// Package vo implements the prescription (VO) domain model and events.
package vo

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// EventType identifies a domain event.
type EventType string

const (
	EventStatusChanged     EventType = "StatusChanged"
	EventDocumentGenerated EventType = "CopaymentDocumentGenerated"
	EventRefundGenerated   EventType = "RefundGenerated"
)

// Event is a domain event describing a change to a VO's settlement or
// status state. Events are written to the outbox alongside the change
// and relayed to the event stream by the settlement relay.
type Event struct {
	ID        string          `json:"id"`
	VONumber  string          `json:"vo_number"`
	EventType EventType       `json:"event_type"`
	EventData json.RawMessage `json:"event_data"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewEvent creates an event with a fresh ID and UTC timestamp.
func NewEvent(voNumber string, eventType EventType, data interface{}) (*Event, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return &Event{
		ID:        uuid.New().String(),
		VONumber:  voNumber,
		EventType: eventType,
		EventData: payload,
		Timestamp: time.Now().UTC(),
	}, nil
}

// StatusChangedData describes a single status-dimension write. Derived
// is true for writes mandated by a transition rule rather than requested
// directly.
type StatusChangedData struct {
	VONumber  string    `json:"vo_number"`
	Dimension Dimension `json:"dimension"`
	OldValue  string    `json:"old_value"`
	NewValue  string    `json:"new_value"`
	Derived   bool      `json:"derived"`
	ChangedAt time.Time `json:"changed_at"`
}

// DocumentGeneratedData describes a copayment invoice generation.
type DocumentGeneratedData struct {
	VONumber      string    `json:"vo_number"`
	InvoiceNumber string    `json:"invoice_number"`
	Amount        string    `json:"amount"`
	GeneratedAt   time.Time `json:"generated_at"`
}

// RefundGeneratedData describes a refund correction.
type RefundGeneratedData struct {
	VONumber            string    `json:"vo_number"`
	InvoiceNumber       string    `json:"invoice_number"`
	RefundInvoiceNumber string    `json:"refund_invoice_number"`
	RefundAmount        string    `json:"refund_amount"`
	RefundDate          time.Time `json:"refund_date"`
}
