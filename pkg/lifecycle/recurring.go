package lifecycle

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/genbaworks/tally/pkg/audit"
	"github.com/genbaworks/tally/pkg/billing"
	"github.com/genbaworks/tally/pkg/contracts"
	"github.com/genbaworks/tally/pkg/documents"
	"github.com/genbaworks/tally/pkg/ledger"
	"github.com/genbaworks/tally/pkg/notify"
)

// BillingRunResult summarizes one recurring billing sweep
type BillingRunResult struct {
	Due     int      `json:"due"`
	Issued  int      `json:"issued"`
	Skipped int      `json:"skipped"`
	Errors  []string `json:"errors,omitempty"`
}

// RunRecurringBilling issues recurring invoices for every active contract
// whose billing day matches asOf. Contracts that have not cleared their
// initial invoice are skipped; their first bill goes through the estimate
// flow.
func (c *Controller) RunRecurringBilling(ctx context.Context, asOf time.Time) (*BillingRunResult, error) {
	day := asOf.Day()
	monthEnd := asOf.AddDate(0, 0, 1).Day() == 1

	due, err := c.contracts.ListDueForBilling(day, monthEnd)
	if err != nil {
		return nil, err
	}

	result := &BillingRunResult{Due: len(due)}
	for _, contract := range due {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		if !contract.Billed {
			result.Skipped++
			continue
		}
		if contract.BillingCycle == contracts.CycleAnnual && !annualAnniversary(contract.StartDate, asOf) {
			result.Skipped++
			continue
		}
		if _, err := c.GenerateRecurringInvoice(ctx, contract.ID, asOf); err != nil {
			c.logger.WithFields(logrus.Fields{
				"contract_id": contract.ID,
			}).WithError(err).Error("recurring invoice failed")
			result.Errors = append(result.Errors, fmt.Sprintf("contract %d: %v", contract.ID, err))
			continue
		}
		result.Issued++
	}
	return result, nil
}

// GenerateRecurringInvoice issues one recurring invoice for a contract,
// folding in any pending prorated charge. The pending charge is consumed
// atomically before the invoice is assembled, so a charge lands on exactly
// one invoice.
func (c *Controller) GenerateRecurringInvoice(ctx context.Context, contractID int64, asOf time.Time) (*documents.Document, error) {
	contract, err := c.contracts.GetContract(contractID)
	if err != nil {
		return nil, err
	}
	if contract.Status != contracts.StatusActive {
		return nil, &contracts.PolicyViolationError{
			Policy: "recurring_billing",
			Reason: fmt.Sprintf("contract %d is %s", contractID, contract.Status),
		}
	}

	pkgs, err := c.contracts.GetPackagesForContract(contractID)
	if err != nil {
		return nil, err
	}

	pending, pendingDesc, err := c.contracts.ConsumePendingCharge(contractID)
	if err != nil {
		return nil, err
	}

	snapshot := billing.SnapshotOf(contract, pkgs)
	snapshot.Billed = true
	snapshot.PendingCharge = pending
	snapshot.PendingDesc = pendingDesc

	calc := billing.CalculateMonthlyFee(snapshot, asOf)
	if calc.Total <= 0 {
		return nil, &contracts.PolicyViolationError{
			Policy: "recurring_billing",
			Reason: fmt.Sprintf("contract %d has nothing to bill", contractID),
		}
	}

	invoice := c.buildDocument(contract, documents.TypeInvoice, documents.StatusSent, calc.Items, calc.Total)
	if err := c.documents.CreateWithItems(ctx, invoice); err != nil {
		// Put the consumed charge back so it lands on the next attempt.
		if pending != 0 {
			if restoreErr := c.contracts.RestorePendingCharge(contractID, pending, pendingDesc); restoreErr != nil {
				c.logger.WithFields(logrus.Fields{
					"contract_id": contractID,
					"amount":      pending,
				}).WithError(restoreErr).Error("failed to restore pending charge after invoice failure")
			}
		}
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
	c.auditDocument(ctx, audit.EventTypeRecurringInvoice, contractID, invoice.Number, "system",
		fmt.Sprintf("recurring invoice issued for %d", invoice.TotalAmount))
	return invoice, nil
}

// annualAnniversary reports whether asOf falls in the contract's annual
// billing month.
func annualAnniversary(startDate, asOf time.Time) bool {
	return startDate.Month() == asOf.Month()
}
