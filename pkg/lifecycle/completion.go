package lifecycle

import (
	"context"
	"fmt"
	"strconv"

	"github.com/sirupsen/logrus"

	"github.com/genbaworks/tally/pkg/accounts"
	"github.com/genbaworks/tally/pkg/audit"
	"github.com/genbaworks/tally/pkg/contracts"
	"github.com/genbaworks/tally/pkg/documents"
	"github.com/genbaworks/tally/pkg/notify"
)

// CompleteContract activates a draft contract once its initial invoice is
// paid: it provisions the admin identity, inserts the admin seat record,
// registers the ledger counterparty and flips the contract active, clearing
// the held admin secret. Earlier steps are compensated when a later
// required step fails.
// Ledger counterparty creation is the one non-fatal step: activation
// proceeds without it and the reference is backfilled on the next
// completion-sensitive operation.
func (c *Controller) CompleteContract(ctx context.Context, contractID int64, password, actor string) (*accounts.Account, error) {
	contract, err := c.contracts.GetContract(contractID)
	if err != nil {
		return nil, err
	}
	if contract.Status != contracts.StatusDraft {
		return nil, &contracts.PolicyViolationError{
			Policy: "contract_completion",
			Reason: fmt.Sprintf("contract %d is %s, only draft contracts can be completed", contractID, contract.Status),
		}
	}
	if password == "" {
		return nil, &contracts.ValidationError{Field: "password", Reason: "required"}
	}
	if contract.AdminName == "" {
		return nil, &contracts.ValidationError{Field: "admin_name", Reason: "required"}
	}
	if contract.AdminEmail == "" {
		return nil, &contracts.ValidationError{Field: "admin_email", Reason: "required"}
	}

	// Activation waits for the money: the initial invoice must exist and
	// be settled before any access is provisioned.
	invoice, err := c.documents.FindInitialInvoice(ctx, contractID)
	if err == documents.ErrNotFound {
		return nil, &contracts.PolicyViolationError{
			Policy: "contract_completion",
			Reason: fmt.Sprintf("contract %d has no initial invoice", contractID),
		}
	} else if err != nil {
		return nil, err
	}
	if invoice.Status != documents.StatusPaid {
		return nil, &contracts.PolicyViolationError{
			Policy: "contract_completion",
			Reason: fmt.Sprintf("initial invoice %s is %s, it must be paid before activation", invoice.Number, invoice.Status),
		}
	}

	authID, err := c.provisioner.CreateIdentity(ctx, contract.AdminEmail, password)
	if err != nil {
		return nil, err
	}

	account := &accounts.Account{
		OrgID:  contract.OrgID,
		AuthID: authID,
		Email:  contract.AdminEmail,
		Name:   contract.AdminName,
	}
	if err := c.accounts.CreateAdminRecord(ctx, account); err != nil {
		c.compensateIdentity(ctx, authID)
		return nil, &contracts.PersistenceError{Op: "create_admin_record", ExternalID: authID, Err: err}
	}

	if contract.LedgerCustomerID == "" {
		customer, err := c.ledger.CreateCustomer(ctx, contract.AdminName, contract.BillingContactEmail)
		if err != nil {
			c.logger.WithFields(logrus.Fields{
				"contract_id": contractID,
			}).WithError(err).Warn("ledger counterparty creation failed, continuing activation")
			c.auditFailure(ctx, audit.EventTypeContractComplete, contractID, "ledger counterparty creation failed", err)
		} else if err := c.contracts.SetLedgerCustomerID(contractID, customer.ID); err != nil {
			c.logger.WithFields(logrus.Fields{
				"contract_id": contractID,
				"customer_id": customer.ID,
			}).WithError(err).Warn("failed to persist ledger customer reference")
		}
	}

	accountID := strconv.FormatInt(account.ID, 10)
	if err := c.contracts.CompleteActivation(contractID, accountID); err != nil {
		if delErr := c.accounts.DeleteRecord(ctx, account.ID); delErr != nil {
			c.logger.WithError(delErr).Error("failed to compensate admin record after activation failure")
		}
		c.compensateIdentity(ctx, authID)
		return nil, err
	}

	c.invalidateFeatures(ctx, contract.OrgID)
	c.sendNotification(ctx, notify.TemplateWelcome, contract.AdminEmail, map[string]interface{}{
		"contract_number": contract.ContractNumber,
		"admin_name":      contract.AdminName,
	})
	c.auditContract(ctx, audit.EventTypeContractComplete, contractID, contract.OrgID, actor,
		"contract activated", nil)
	return account, nil
}

// CancelContract terminates an active contract and drops the
// organization's entitlements.
func (c *Controller) CancelContract(ctx context.Context, contractID int64, actor string) error {
	contract, err := c.contracts.GetContract(contractID)
	if err != nil {
		return err
	}
	if err := c.contracts.CancelContract(contractID); err != nil {
		return err
	}

	c.invalidateFeatures(ctx, contract.OrgID)
	c.auditContract(ctx, audit.EventTypeContractCancel, contractID, contract.OrgID, actor,
		"contract cancelled", nil)
	return nil
}

func (c *Controller) compensateIdentity(ctx context.Context, authID string) {
	if err := c.provisioner.DeleteIdentity(ctx, authID); err != nil {
		// Orphan identity; flagged for manual cleanup.
		c.logger.WithFields(logrus.Fields{
			"auth_id": authID,
		}).WithError(err).Error("failed to compensate provisioned identity")
	}
}

func (c *Controller) auditContract(ctx context.Context, eventType audit.EventType, contractID, orgID int64, actor, message string, changes *audit.ChangeDetails) {
	if err := c.audit.LogContractEvent(ctx, eventType, contractID, orgID, actor, message, changes); err != nil {
		c.logger.WithError(err).Warn("failed to write audit event")
	}
}

func (c *Controller) auditFailure(ctx context.Context, eventType audit.EventType, contractID int64, message string, cause error) {
	if err := c.audit.LogFailure(ctx, eventType, contractID, message, cause); err != nil {
		c.logger.WithError(err).Warn("failed to write audit event")
	}
}
