// Package audit records an immutable trail of billing decisions: contract
// transitions, document issuance, plan changes and seat enforcement.
package audit

import (
	"encoding/json"
	"time"
)

// EventType represents the category of audit event
type EventType string

const (
	// Contract lifecycle events
	EventTypeContractCreate    EventType = "contract.create"
	EventTypeContractComplete  EventType = "contract.complete"
	EventTypeContractCancel    EventType = "contract.cancel"
	EventTypePlanChange        EventType = "contract.plan_change"
	EventTypePlanChangePreview EventType = "contract.plan_change_preview"

	// Document events
	EventTypeEstimateCreate   EventType = "document.estimate_create"
	EventTypeEstimateSend     EventType = "document.estimate_send"
	EventTypeEstimateReject   EventType = "document.estimate_reject"
	EventTypeInvoiceCreate    EventType = "document.invoice_create"
	EventTypeInvoicePaid      EventType = "document.invoice_paid"
	EventTypeRecurringInvoice EventType = "document.recurring_invoice"

	// Seat enforcement events
	EventTypeSeatEnforce          EventType = "seats.enforce"
	EventTypeSeatDeactivate       EventType = "seats.deactivate"
	EventTypeGraceDeadlineSet     EventType = "seats.grace_deadline_set"
	EventTypeGraceDeadlineCleared EventType = "seats.grace_deadline_cleared"
)

// EventStatus represents the outcome of an event
type EventStatus string

const (
	EventStatusSuccess EventStatus = "success"
	EventStatusFailure EventStatus = "failure"
)

// ResourceType represents the type of resource an event touches
type ResourceType string

const (
	ResourceTypeContract ResourceType = "contract"
	ResourceTypeDocument ResourceType = "document"
	ResourceTypeAccount  ResourceType = "account"
)

// Event is a single audit log entry
type Event struct {
	ID        int64       `json:"id"`
	Timestamp time.Time   `json:"timestamp"`
	EventType EventType   `json:"event_type"`
	Status    EventStatus `json:"status"`

	Actor      string `json:"actor,omitempty"`
	OrgID      *int64 `json:"org_id,omitempty"`
	ContractID *int64 `json:"contract_id,omitempty"`

	ResourceType ResourceType `json:"resource_type,omitempty"`
	ResourceID   string       `json:"resource_id,omitempty"`

	Message      string                 `json:"message,omitempty"`
	ErrorMessage string                 `json:"error_message,omitempty"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`

	// Before/after snapshots for mutations
	Changes *ChangeDetails `json:"changes,omitempty"`
}

// ChangeDetails tracks before/after values for updates
type ChangeDetails struct {
	Before map[string]interface{} `json:"before,omitempty"`
	After  map[string]interface{} `json:"after,omitempty"`
}

// ToJSON converts the audit event to JSON
func (e *Event) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// FromJSON parses an audit event from JSON
func FromJSON(data []byte) (*Event, error) {
	var event Event
	err := json.Unmarshal(data, &event)
	return &event, err
}
