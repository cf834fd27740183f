package documents

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Service manages persistence of billing documents
type Service interface {
	// CreateWithItems persists a document and its line items atomically
	CreateWithItems(ctx context.Context, doc *Document) error
	// GetDocument retrieves a document with its line items
	GetDocument(ctx context.Context, id int64) (*Document, error)
	// FindOpenEstimate returns the contract's estimate still awaiting a
	// decision (status estimate or estimate_sent), or ErrNotFound
	FindOpenEstimate(ctx context.Context, contractID int64) (*Document, error)
	// HasNonRejectedEstimate reports whether the contract has any estimate
	// that was not rejected, accepted ones included
	HasNonRejectedEstimate(ctx context.Context, contractID int64) (bool, error)
	// FindInitialInvoice returns the contract's first invoice, or ErrNotFound
	FindInitialInvoice(ctx context.Context, contractID int64) (*Document, error)
	// UpdateStatus moves a document to a new status, enforcing the
	// transition table at the database level
	UpdateStatus(ctx context.Context, id int64, from, to Status) error
	// SetLedgerDocID records the external ledger identifier
	SetLedgerDocID(ctx context.Context, id int64, ledgerDocID string) error
	// MarkPaid records payment on an invoice
	MarkPaid(ctx context.Context, id int64, paidAt time.Time) error
	// ListByContract returns all documents for a contract, newest first
	ListByContract(ctx context.Context, contractID int64) ([]*Document, error)
}

// PostgresService implements Service backed by PostgreSQL
type PostgresService struct {
	db *sql.DB
}

// NewPostgresService creates a new PostgreSQL document service
func NewPostgresService(db *sql.DB) *PostgresService {
	return &PostgresService{db: db}
}

const documentColumns = `id, contract_id, org_id, document_type, status, number,
	ledger_doc_id, is_initial, subtotal, tax_amount, total_amount,
	issue_date, due_date, paid_at, created_at, updated_at`

// NewNumber generates a document number with the type-specific prefix,
// EST- for estimates and INV- for invoices.
func NewNumber(docType Type) string {
	prefix := "INV"
	if docType == TypeEstimate {
		prefix = "EST"
	}
	id := strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", ""))
	return fmt.Sprintf("%s-%s", prefix, id[:12])
}

// CreateWithItems persists a document and its line items atomically
func (s *PostgresService) CreateWithItems(ctx context.Context, doc *Document) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if doc.Number == "" {
		doc.Number = NewNumber(doc.DocumentType)
	}

	query := `
		INSERT INTO billing_documents (contract_id, org_id, document_type, status,
			number, ledger_doc_id, is_initial, subtotal, tax_amount, total_amount,
			issue_date, due_date, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, NOW(), NOW())
		RETURNING id, created_at, updated_at`

	var ledgerDocID sql.NullString
	if doc.LedgerDocID != "" {
		ledgerDocID = sql.NullString{String: doc.LedgerDocID, Valid: true}
	}

	err = tx.QueryRowContext(ctx, query,
		doc.ContractID, doc.OrgID, doc.DocumentType, doc.Status, doc.Number,
		ledgerDocID, doc.IsInitial, doc.Subtotal, doc.TaxAmount, doc.TotalAmount,
		doc.IssueDate, doc.DueDate,
	).Scan(&doc.ID, &doc.CreatedAt, &doc.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create document: %w", err)
	}

	for i := range doc.LineItems {
		item := &doc.LineItems[i]
		item.DocumentID = doc.ID
		err = tx.QueryRowContext(ctx,
			`INSERT INTO billing_document_items (document_id, description, amount)
			 VALUES ($1, $2, $3) RETURNING id`,
			item.DocumentID, item.Description, item.Amount,
		).Scan(&item.ID)
		if err != nil {
			return fmt.Errorf("failed to create line item: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetDocument retrieves a document with its line items
func (s *PostgresService) GetDocument(ctx context.Context, id int64) (*Document, error) {
	query := `SELECT ` + documentColumns + ` FROM billing_documents WHERE id = $1`
	doc, err := scanDocument(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, err
	}
	if err := s.loadItems(ctx, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// FindOpenEstimate returns the contract's estimate still awaiting a decision
func (s *PostgresService) FindOpenEstimate(ctx context.Context, contractID int64) (*Document, error) {
	query := `SELECT ` + documentColumns + ` FROM billing_documents
		WHERE contract_id = $1 AND document_type = 'estimate'
		  AND status IN ('estimate', 'estimate_sent')
		ORDER BY created_at DESC LIMIT 1`
	doc, err := scanDocument(s.db.QueryRowContext(ctx, query, contractID))
	if err != nil {
		return nil, err
	}
	if err := s.loadItems(ctx, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// HasNonRejectedEstimate reports whether the contract has any estimate that
// was not rejected. Accepted estimates count: a contract gets exactly one
// standing estimate until someone rejects it.
func (s *PostgresService) HasNonRejectedEstimate(ctx context.Context, contractID int64) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM billing_documents
		 WHERE contract_id = $1 AND document_type = 'estimate' AND status != 'rejected'`,
		contractID).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to count estimates: %w", err)
	}
	return count > 0, nil
}

// FindInitialInvoice returns the contract's first invoice
func (s *PostgresService) FindInitialInvoice(ctx context.Context, contractID int64) (*Document, error) {
	query := `SELECT ` + documentColumns + ` FROM billing_documents
		WHERE contract_id = $1 AND document_type = 'invoice' AND is_initial = true
		ORDER BY created_at DESC LIMIT 1`
	doc, err := scanDocument(s.db.QueryRowContext(ctx, query, contractID))
	if err != nil {
		return nil, err
	}
	if err := s.loadItems(ctx, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// UpdateStatus moves a document to a new status. The WHERE clause carries
// the expected current status so concurrent callers cannot race past the
// transition table.
func (s *PostgresService) UpdateStatus(ctx context.Context, id int64, from, to Status) error {
	doc, err := s.GetDocument(ctx, id)
	if err != nil {
		return err
	}
	if !CanTransition(doc.DocumentType, from, to) {
		return &InvalidTransitionError{DocumentID: id, Type: doc.DocumentType, From: from, To: to}
	}

	result, err := s.db.ExecContext(ctx,
		`UPDATE billing_documents SET status = $1, updated_at = NOW()
		 WHERE id = $2 AND status = $3`,
		to, id, from)
	if err != nil {
		return fmt.Errorf("failed to update document status: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return &InvalidTransitionError{DocumentID: id, Type: doc.DocumentType, From: doc.Status, To: to}
	}
	return nil
}

// SetLedgerDocID records the external ledger identifier
func (s *PostgresService) SetLedgerDocID(ctx context.Context, id int64, ledgerDocID string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE billing_documents SET ledger_doc_id = $1, updated_at = NOW() WHERE id = $2`,
		ledgerDocID, id)
	if err != nil {
		return fmt.Errorf("failed to set ledger document id: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkPaid records payment on a sent invoice
func (s *PostgresService) MarkPaid(ctx context.Context, id int64, paidAt time.Time) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE billing_documents SET status = 'paid', paid_at = $1, updated_at = NOW()
		 WHERE id = $2 AND document_type = 'invoice' AND status = 'sent'`,
		paidAt, id)
	if err != nil {
		return fmt.Errorf("failed to mark document paid: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return &InvalidTransitionError{DocumentID: id, Type: TypeInvoice, From: StatusPaid, To: StatusPaid}
	}
	return nil
}

// ListByContract returns all documents for a contract, newest first
func (s *PostgresService) ListByContract(ctx context.Context, contractID int64) ([]*Document, error) {
	query := `SELECT ` + documentColumns + ` FROM billing_documents
		WHERE contract_id = $1 ORDER BY created_at DESC, id DESC`
	rows, err := s.db.QueryContext(ctx, query, contractID)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	var docs []*Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate documents: %w", err)
	}
	return docs, nil
}

func (s *PostgresService) loadItems(ctx context.Context, doc *Document) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, document_id, description, amount FROM billing_document_items
		 WHERE document_id = $1 ORDER BY id`,
		doc.ID)
	if err != nil {
		return fmt.Errorf("failed to load line items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var item LineItem
		if err := rows.Scan(&item.ID, &item.DocumentID, &item.Description, &item.Amount); err != nil {
			return fmt.Errorf("failed to scan line item: %w", err)
		}
		doc.LineItems = append(doc.LineItems, item)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to iterate line items: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanDocument(row rowScanner) (*Document, error) {
	var doc Document
	var ledgerDocID sql.NullString
	var paidAt sql.NullTime

	err := row.Scan(&doc.ID, &doc.ContractID, &doc.OrgID, &doc.DocumentType,
		&doc.Status, &doc.Number, &ledgerDocID, &doc.IsInitial,
		&doc.Subtotal, &doc.TaxAmount, &doc.TotalAmount,
		&doc.IssueDate, &doc.DueDate, &paidAt, &doc.CreatedAt, &doc.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan document: %w", err)
	}
	if ledgerDocID.Valid {
		doc.LedgerDocID = ledgerDocID.String
	}
	if paidAt.Valid {
		t := paidAt.Time
		doc.PaidAt = &t
	}
	return &doc, nil
}
