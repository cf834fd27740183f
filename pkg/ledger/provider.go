package ledger

import (
	"context"
	"time"
)

// DocumentKind distinguishes draft estimates from finalized invoices on the
// ledger side.
type DocumentKind string

const (
	KindEstimate DocumentKind = "estimate"
	KindInvoice  DocumentKind = "invoice"
)

// DocumentStatus is the ledger's view of a document
type DocumentStatus string

const (
	DocStatusDraft DocumentStatus = "draft"
	DocStatusOpen  DocumentStatus = "open"
	DocStatusPaid  DocumentStatus = "paid"
	DocStatusVoid  DocumentStatus = "void"
)

// Customer is a billing counterparty on the external ledger
type Customer struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// LineItem is a single charge on a ledger document
type LineItem struct {
	Description string `json:"description"`
	Amount      int64  `json:"amount"`
}

// DocumentRequest describes a document to create on the ledger
type DocumentRequest struct {
	CustomerID string       `json:"customer_id"`
	Kind       DocumentKind `json:"kind"`
	Items      []LineItem   `json:"items"`
	TaxAmount  int64        `json:"tax_amount"`
	DueDate    time.Time    `json:"due_date"`
	Memo       string       `json:"memo,omitempty"`
}

// Document is the ledger's record of a created document
type Document struct {
	ID          string         `json:"id"`
	CustomerID  string         `json:"customer_id"`
	Kind        DocumentKind   `json:"kind"`
	Status      DocumentStatus `json:"status"`
	TotalAmount int64          `json:"total_amount"`
	HostedURL   string         `json:"hosted_url,omitempty"`
}

// Provider is the external ledger API surface the engine depends on.
// Mutating calls are never retried automatically; only the read-only
// status lookup carries a bounded retry.
type Provider interface {
	// CreateCustomer registers a billing counterparty
	CreateCustomer(ctx context.Context, name, email string) (*Customer, error)
	// CreateDocument creates a draft document with the given line items
	CreateDocument(ctx context.Context, req *DocumentRequest) (*Document, error)
	// FinalizeDocument promotes a draft to an open, collectible document
	FinalizeDocument(ctx context.Context, docID string) (*Document, error)
	// PayDocument marks an open document as settled out-of-band
	PayDocument(ctx context.Context, docID string) (*Document, error)
	// VoidDocument cancels a draft or open document
	VoidDocument(ctx context.Context, docID string) error
	// GetDocumentStatus fetches the ledger's current view of a document
	GetDocumentStatus(ctx context.Context, docID string) (DocumentStatus, error)
}
