package ledger

import (
	"context"
	"fmt"
	"sync"

	"github.com/genbaworks/tally/pkg/contracts"
)

// Fake is an in-memory Provider for tests. Individual operations can be
// scripted to fail by setting the FailXxx fields.
type Fake struct {
	mu sync.Mutex

	customers map[string]*Customer
	documents map[string]*Document
	nextID    int

	FailCreateCustomer   error
	FailCreateDocument   error
	FailFinalizeDocument error
	FailPayDocument      error
	FailVoidDocument     error

	// StatusFailures makes GetDocumentStatus fail this many times before
	// succeeding, to exercise the bounded retry path.
	StatusFailures int
	StatusCalls    int
}

// NewFake creates an empty fake ledger
func NewFake() *Fake {
	return &Fake{
		customers: make(map[string]*Customer),
		documents: make(map[string]*Document),
	}
}

func (f *Fake) newID(prefix string) string {
	f.nextID++
	return fmt.Sprintf("%s_%06d", prefix, f.nextID)
}

// CreateCustomer registers a billing counterparty
func (f *Fake) CreateCustomer(ctx context.Context, name, email string) (*Customer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailCreateCustomer != nil {
		return nil, &contracts.ExternalProviderError{Provider: "ledger", Op: "create_customer", Err: f.FailCreateCustomer}
	}
	c := &Customer{ID: f.newID("cus"), Name: name, Email: email}
	f.customers[c.ID] = c
	return c, nil
}

// CreateDocument creates a draft document
func (f *Fake) CreateDocument(ctx context.Context, req *DocumentRequest) (*Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailCreateDocument != nil {
		return nil, &contracts.ExternalProviderError{Provider: "ledger", Op: "create_document", Err: f.FailCreateDocument}
	}
	var total int64
	for _, item := range req.Items {
		total += item.Amount
	}
	total += req.TaxAmount
	doc := &Document{
		ID:          f.newID("doc"),
		CustomerID:  req.CustomerID,
		Kind:        req.Kind,
		Status:      DocStatusDraft,
		TotalAmount: total,
	}
	f.documents[doc.ID] = doc
	return doc, nil
}

// FinalizeDocument promotes a draft to open
func (f *Fake) FinalizeDocument(ctx context.Context, docID string) (*Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailFinalizeDocument != nil {
		return nil, &contracts.ExternalProviderError{Provider: "ledger", Op: "finalize_document", Err: f.FailFinalizeDocument}
	}
	doc, ok := f.documents[docID]
	if !ok {
		return nil, &contracts.ExternalProviderError{Provider: "ledger", Op: "finalize_document", Err: fmt.Errorf("document %s not found", docID)}
	}
	doc.Status = DocStatusOpen
	return doc, nil
}

// PayDocument marks an open document as settled
func (f *Fake) PayDocument(ctx context.Context, docID string) (*Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailPayDocument != nil {
		return nil, &contracts.ExternalProviderError{Provider: "ledger", Op: "pay_document", Err: f.FailPayDocument}
	}
	doc, ok := f.documents[docID]
	if !ok {
		return nil, &contracts.ExternalProviderError{Provider: "ledger", Op: "pay_document", Err: fmt.Errorf("document %s not found", docID)}
	}
	doc.Status = DocStatusPaid
	return doc, nil
}

// VoidDocument cancels a document
func (f *Fake) VoidDocument(ctx context.Context, docID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailVoidDocument != nil {
		return &contracts.ExternalProviderError{Provider: "ledger", Op: "void_document", Err: f.FailVoidDocument}
	}
	doc, ok := f.documents[docID]
	if !ok {
		return &contracts.ExternalProviderError{Provider: "ledger", Op: "void_document", Err: fmt.Errorf("document %s not found", docID)}
	}
	doc.Status = DocStatusVoid
	return nil
}

// GetDocumentStatus fetches the current status of a document
func (f *Fake) GetDocumentStatus(ctx context.Context, docID string) (DocumentStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.StatusCalls++
	if f.StatusCalls <= f.StatusFailures {
		return "", &contracts.ExternalProviderError{Provider: "ledger", Op: "get_document_status", Err: fmt.Errorf("transient failure")}
	}
	doc, ok := f.documents[docID]
	if !ok {
		return "", &contracts.ExternalProviderError{Provider: "ledger", Op: "get_document_status", Err: fmt.Errorf("document %s not found", docID)}
	}
	return doc.Status, nil
}

// Customers returns a snapshot of created customers
func (f *Fake) Customers() []*Customer {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*Customer, 0, len(f.customers))
	for _, c := range f.customers {
		out = append(out, c)
	}
	return out
}

// Document returns a created document by ID
func (f *Fake) Document(docID string) (*Document, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.documents[docID]
	return doc, ok
}
