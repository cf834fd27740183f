package lifecycle

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/genbaworks/tally/pkg/audit"
	"github.com/genbaworks/tally/pkg/billing"
	"github.com/genbaworks/tally/pkg/contracts"
	"github.com/genbaworks/tally/pkg/documents"
	"github.com/genbaworks/tally/pkg/ledger"
	"github.com/genbaworks/tally/pkg/notify"
)

// GenerateEstimate produces the initial estimate for a draft contract.
// One non-rejected estimate per contract; a second call while one stands is
// a policy violation.
func (c *Controller) GenerateEstimate(ctx context.Context, contractID int64, actor string) (*documents.Document, error) {
	contract, err := c.contracts.GetContract(contractID)
	if err != nil {
		return nil, err
	}
	if contract.Status != contracts.StatusDraft {
		return nil, &contracts.PolicyViolationError{
			Policy: "estimate_generation",
			Reason: fmt.Sprintf("contract %d is %s, estimates are only issued for draft contracts", contractID, contract.Status),
		}
	}

	// Accepted estimates block too: the initial estimate stays the one
	// standing quote for the contract until it is rejected.
	standing, err := c.documents.HasNonRejectedEstimate(ctx, contractID)
	if err != nil {
		return nil, err
	}
	if standing {
		return nil, &contracts.PolicyViolationError{
			Policy: "estimate_generation",
			Reason: fmt.Sprintf("contract %d already has a non-rejected estimate", contractID),
		}
	}

	pkgs, err := c.contracts.GetPackagesForContract(contractID)
	if err != nil {
		return nil, err
	}

	calc := billing.CalculateMonthlyFee(billing.SnapshotOf(contract, pkgs), c.today())
	if calc.Total <= 0 {
		return nil, &contracts.PolicyViolationError{
			Policy: "estimate_generation",
			Reason: fmt.Sprintf("contract %d has nothing to bill", contractID),
		}
	}

	doc := c.buildDocument(contract, documents.TypeEstimate, documents.StatusEstimate, calc.Items, calc.Total)
	doc.IsInitial = !contract.Billed

	if err := c.documents.CreateWithItems(ctx, doc); err != nil {
		return nil, err
	}

	// A counterparty may not exist on the ledger yet; the draft is pushed
	// there only once it does.
	if contract.LedgerCustomerID != "" {
		if err := c.mirrorToLedger(ctx, contract, doc, ledger.KindEstimate, false); err != nil {
			c.logger.WithFields(logrus.Fields{
				"contract_id": contractID,
				"document":    doc.Number,
			}).WithError(err).Warn("failed to mirror estimate to ledger")
		}
	}

	c.auditDocument(ctx, audit.EventTypeEstimateCreate, contractID, doc.Number, actor,
		fmt.Sprintf("estimate issued for %d (tax included)", doc.TotalAmount))
	return doc, nil
}

// MarkEstimateSent records that the open estimate went out to the customer
// and notifies the billing contact.
func (c *Controller) MarkEstimateSent(ctx context.Context, contractID int64, actor string) (*documents.Document, error) {
	contract, err := c.contracts.GetContract(contractID)
	if err != nil {
		return nil, err
	}
	doc, err := c.documents.FindOpenEstimate(ctx, contractID)
	if err != nil {
		return nil, err
	}
	if err := c.documents.UpdateStatus(ctx, doc.ID, documents.StatusEstimate, documents.StatusEstimateSent); err != nil {
		return nil, err
	}
	doc.Status = documents.StatusEstimateSent

	c.sendNotification(ctx, notify.TemplateEstimateIssued, contract.BillingContactEmail, map[string]interface{}{
		"contract_number": contract.ContractNumber,
		"document_number": doc.Number,
		"total_amount":    doc.TotalAmount,
		"due_date":        doc.DueDate.Format("2006-01-02"),
	})
	c.auditDocument(ctx, audit.EventTypeEstimateSend, contractID, doc.Number, actor, "estimate sent to customer")
	return doc, nil
}

// RejectEstimate marks the open sent estimate rejected and voids its ledger
// counterpart if one exists.
func (c *Controller) RejectEstimate(ctx context.Context, contractID int64, actor string) error {
	doc, err := c.documents.FindOpenEstimate(ctx, contractID)
	if err != nil {
		return err
	}
	if err := c.documents.UpdateStatus(ctx, doc.ID, documents.StatusEstimateSent, documents.StatusRejected); err != nil {
		return err
	}

	if doc.LedgerDocID != "" {
		if err := c.ledger.VoidDocument(ctx, doc.LedgerDocID); err != nil {
			c.logger.WithFields(logrus.Fields{
				"contract_id": contractID,
				"document":    doc.Number,
			}).WithError(err).Warn("failed to void ledger document for rejected estimate")
		}
	}

	c.auditDocument(ctx, audit.EventTypeEstimateReject, contractID, doc.Number, actor, "estimate rejected")
	return nil
}

// RegenerateEstimate rejects the open sent estimate and issues a fresh one,
// picking up any contract changes made since.
func (c *Controller) RegenerateEstimate(ctx context.Context, contractID int64, actor string) (*documents.Document, error) {
	if err := c.RejectEstimate(ctx, contractID, actor); err != nil {
		return nil, err
	}
	return c.GenerateEstimate(ctx, contractID, actor)
}

// ConvertEstimateToInvoice accepts the open sent estimate and issues the
// matching invoice, finalized on the ledger when a counterparty exists.
func (c *Controller) ConvertEstimateToInvoice(ctx context.Context, contractID int64, actor string) (*documents.Document, error) {
	contract, err := c.contracts.GetContract(contractID)
	if err != nil {
		return nil, err
	}
	estimate, err := c.documents.FindOpenEstimate(ctx, contractID)
	if err != nil {
		return nil, err
	}
	if err := c.documents.UpdateStatus(ctx, estimate.ID, documents.StatusEstimateSent, documents.StatusAccepted); err != nil {
		return nil, err
	}

	items := make([]billing.LineItem, len(estimate.LineItems))
	for i, item := range estimate.LineItems {
		items[i] = billing.LineItem{Description: item.Description, Amount: item.Amount}
	}

	invoice := c.buildDocument(contract, documents.TypeInvoice, documents.StatusSent, items, estimate.Subtotal)
	invoice.IsInitial = estimate.IsInitial

	if err := c.documents.CreateWithItems(ctx, invoice); err != nil {
		return nil, err
	}

	if contract.LedgerCustomerID != "" {
		if err := c.mirrorToLedger(ctx, contract, invoice, ledger.KindInvoice, true); err != nil {
			return nil, err
		}
	}

	c.sendNotification(ctx, notify.TemplateInvoiceIssued, contract.BillingContactEmail, map[string]interface{}{
		"contract_number": contract.ContractNumber,
		"document_number": invoice.Number,
		"total_amount":    invoice.TotalAmount,
		"due_date":        invoice.DueDate.Format("2006-01-02"),
	})
	c.auditDocument(ctx, audit.EventTypeInvoiceCreate, contractID, invoice.Number, actor,
		fmt.Sprintf("invoice issued from estimate %s", estimate.Number))
	return invoice, nil
}

// RecordInvoicePaid settles an invoice, propagates payment to the ledger,
// and flips the contract to billed when the initial invoice clears.
func (c *Controller) RecordInvoicePaid(ctx context.Context, documentID int64, actor string) error {
	doc, err := c.documents.GetDocument(ctx, documentID)
	if err != nil {
		return err
	}
	if doc.DocumentType != documents.TypeInvoice {
		return &contracts.PolicyViolationError{
			Policy: "invoice_payment",
			Reason: fmt.Sprintf("document %s is not an invoice", doc.Number),
		}
	}

	paidAt := c.now()
	if err := c.documents.MarkPaid(ctx, documentID, paidAt); err != nil {
		return err
	}

	if doc.LedgerDocID != "" {
		if _, err := c.ledger.PayDocument(ctx, doc.LedgerDocID); err != nil {
			c.logger.WithFields(logrus.Fields{
				"document": doc.Number,
			}).WithError(err).Warn("failed to propagate payment to ledger")
		}
	}

	if doc.IsInitial {
		if err := c.contracts.MarkBilled(doc.ContractID); err != nil {
			return err
		}
	}

	c.auditDocument(ctx, audit.EventTypeInvoicePaid, doc.ContractID, doc.Number, actor, "invoice paid")
	return nil
}

// buildDocument assembles a local document from calculator line items,
// applying tax and the business-day adjusted due date.
func (c *Controller) buildDocument(contract *contracts.Contract, docType documents.Type, status documents.Status, items []billing.LineItem, subtotal int64) *documents.Document {
	tax := billing.RoundHalfUp(subtotal*c.cfg.TaxRatePercent, 100)
	today := c.today()

	doc := &documents.Document{
		ContractID:   contract.ID,
		OrgID:        contract.OrgID,
		DocumentType: docType,
		Status:       status,
		Subtotal:     subtotal,
		TaxAmount:    tax,
		TotalAmount:  subtotal + tax,
		IssueDate:    today,
		DueDate:      c.calendar.DueDate(contract.BillingDay, today),
	}
	for _, item := range items {
		doc.LineItems = append(doc.LineItems, documents.LineItem{
			Description: item.Description,
			Amount:      item.Amount,
		})
	}
	return doc
}

// mirrorToLedger creates the ledger counterpart of a local document and,
// when finalize is set, promotes it to collectible.
func (c *Controller) mirrorToLedger(ctx context.Context, contract *contracts.Contract, doc *documents.Document, kind ledger.DocumentKind, finalize bool) error {
	items := make([]ledger.LineItem, len(doc.LineItems))
	for i, item := range doc.LineItems {
		items[i] = ledger.LineItem{Description: item.Description, Amount: item.Amount}
	}

	ledgerDoc, err := c.ledger.CreateDocument(ctx, &ledger.DocumentRequest{
		CustomerID: contract.LedgerCustomerID,
		Kind:       kind,
		Items:      items,
		TaxAmount:  doc.TaxAmount,
		DueDate:    doc.DueDate,
		Memo:       doc.Number,
	})
	if err != nil {
		return err
	}
	if finalize {
		if _, err := c.ledger.FinalizeDocument(ctx, ledgerDoc.ID); err != nil {
			return err
		}
	}

	if err := c.documents.SetLedgerDocID(ctx, doc.ID, ledgerDoc.ID); err != nil {
		return err
	}
	doc.LedgerDocID = ledgerDoc.ID
	return nil
}

func (c *Controller) auditDocument(ctx context.Context, eventType audit.EventType, contractID int64, number, actor, message string) {
	if err := c.audit.LogDocumentEvent(ctx, eventType, contractID, number, actor, message); err != nil {
		c.logger.WithError(err).Warn("failed to write audit event")
	}
}
