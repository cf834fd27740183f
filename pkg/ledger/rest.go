package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/genbaworks/tally/pkg/contracts"
)

const (
	statusRetryAttempts = 3
	statusRetryDelay    = 500 * time.Millisecond
)

// RESTProvider talks to the hosted ledger over its JSON API
type RESTProvider struct {
	baseURL string
	apiKey  string
	client  *http.Client
	logger  *logrus.Logger
}

// NewRESTProvider creates a ledger client for the given API endpoint
func NewRESTProvider(baseURL, apiKey string, logger *logrus.Logger) *RESTProvider {
	if logger == nil {
		logger = logrus.New()
	}
	return &RESTProvider{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 15 * time.Second},
		logger:  logger,
	}
}

// CreateCustomer registers a billing counterparty
func (p *RESTProvider) CreateCustomer(ctx context.Context, name, email string) (*Customer, error) {
	body := map[string]string{"name": name, "email": email}
	var customer Customer
	if err := p.do(ctx, http.MethodPost, "/v1/customers", body, &customer); err != nil {
		return nil, &contracts.ExternalProviderError{Provider: "ledger", Op: "create_customer", Err: err}
	}
	return &customer, nil
}

// CreateDocument creates a draft document with the given line items
func (p *RESTProvider) CreateDocument(ctx context.Context, req *DocumentRequest) (*Document, error) {
	var doc Document
	if err := p.do(ctx, http.MethodPost, "/v1/documents", req, &doc); err != nil {
		return nil, &contracts.ExternalProviderError{Provider: "ledger", Op: "create_document", Err: err}
	}
	return &doc, nil
}

// FinalizeDocument promotes a draft to an open, collectible document
func (p *RESTProvider) FinalizeDocument(ctx context.Context, docID string) (*Document, error) {
	var doc Document
	path := fmt.Sprintf("/v1/documents/%s/finalize", docID)
	if err := p.do(ctx, http.MethodPost, path, nil, &doc); err != nil {
		return nil, &contracts.ExternalProviderError{Provider: "ledger", Op: "finalize_document", Err: err}
	}
	return &doc, nil
}

// PayDocument marks an open document as settled out-of-band
func (p *RESTProvider) PayDocument(ctx context.Context, docID string) (*Document, error) {
	var doc Document
	path := fmt.Sprintf("/v1/documents/%s/pay", docID)
	if err := p.do(ctx, http.MethodPost, path, nil, &doc); err != nil {
		return nil, &contracts.ExternalProviderError{Provider: "ledger", Op: "pay_document", Err: err}
	}
	return &doc, nil
}

// VoidDocument cancels a draft or open document
func (p *RESTProvider) VoidDocument(ctx context.Context, docID string) error {
	path := fmt.Sprintf("/v1/documents/%s/void", docID)
	if err := p.do(ctx, http.MethodPost, path, nil, nil); err != nil {
		return &contracts.ExternalProviderError{Provider: "ledger", Op: "void_document", Err: err}
	}
	return nil
}

// GetDocumentStatus fetches the ledger's current view of a document.
// The lookup is read-only, so transient failures are retried a bounded
// number of times before giving up.
func (p *RESTProvider) GetDocumentStatus(ctx context.Context, docID string) (DocumentStatus, error) {
	path := fmt.Sprintf("/v1/documents/%s", docID)

	var lastErr error
	for attempt := 1; attempt <= statusRetryAttempts; attempt++ {
		var doc Document
		err := p.do(ctx, http.MethodGet, path, nil, &doc)
		if err == nil {
			return doc.Status, nil
		}
		lastErr = err

		p.logger.WithFields(logrus.Fields{
			"doc_id":  docID,
			"attempt": attempt,
		}).WithError(err).Warn("ledger status lookup failed")

		if attempt < statusRetryAttempts {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(statusRetryDelay * time.Duration(attempt)):
			}
		}
	}
	return "", &contracts.ExternalProviderError{Provider: "ledger", Op: "get_document_status", Err: lastErr}
}

func (p *RESTProvider) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("ledger returned %d: %s", resp.StatusCode, string(data))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}
