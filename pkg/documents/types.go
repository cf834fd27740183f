// Package documents models billing documents (estimates and invoices) and
// their line items, including the legal status transitions.
package documents

import (
	"time"
)

// Type distinguishes estimates from invoices
type Type string

const (
	TypeEstimate Type = "estimate"
	TypeInvoice  Type = "invoice"
)

// Status represents the state of a billing document
type Status string

const (
	// Estimate statuses
	StatusEstimate     Status = "estimate"
	StatusEstimateSent Status = "estimate_sent"
	StatusAccepted     Status = "accepted"
	StatusRejected     Status = "rejected"

	// Invoice statuses
	StatusSent Status = "sent"
	StatusPaid Status = "paid"
)

// transitions is the set of legal status moves per document type.
// Accepted, Rejected and Paid are terminal; a rejected estimate is
// superseded by a brand-new record, never reused.
var transitions = map[Type]map[Status][]Status{
	TypeEstimate: {
		StatusEstimate:     {StatusEstimateSent},
		StatusEstimateSent: {StatusAccepted, StatusRejected},
	},
	TypeInvoice: {
		StatusSent: {StatusPaid},
	},
}

// CanTransition reports whether a document of the given type may move
// from one status to another.
func CanTransition(docType Type, from, to Status) bool {
	for _, allowed := range transitions[docType][from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// LineItem is a single charge on a document. Items are owned by their
// document and deleted with it.
type LineItem struct {
	ID          int64  `json:"id"`
	DocumentID  int64  `json:"document_id"`
	Description string `json:"description"`
	Amount      int64  `json:"amount"`
}

// Document represents a monetary artifact produced by the fee calculator
// and materialized via the ledger provider.
type Document struct {
	ID           int64  `json:"id"`
	ContractID   int64  `json:"contract_id"`
	OrgID        int64  `json:"org_id"`
	DocumentType Type   `json:"document_type"`
	Status       Status `json:"status"`
	Number       string `json:"number"`
	LedgerDocID  string `json:"ledger_doc_id,omitempty"`
	IsInitial    bool   `json:"is_initial"`

	LineItems []LineItem `json:"line_items,omitempty"`

	Subtotal    int64 `json:"subtotal"`
	TaxAmount   int64 `json:"tax_amount"`
	TotalAmount int64 `json:"total_amount"`

	IssueDate time.Time  `json:"issue_date"`
	DueDate   time.Time  `json:"due_date"`
	PaidAt    *time.Time `json:"paid_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
