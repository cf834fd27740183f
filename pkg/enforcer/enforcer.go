// Package enforcer implements the daily seat grace-period sweep. When a
// plan change lowers a contract's seat limit below the organization's
// active seat count, the surplus seats survive until the grace deadline;
// this job deactivates them once the deadline arrives.
package enforcer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/genbaworks/tally/pkg/accounts"
	"github.com/genbaworks/tally/pkg/audit"
	"github.com/genbaworks/tally/pkg/contracts"
	"github.com/genbaworks/tally/pkg/notify"
)

const defaultConcurrency = 4

// ContractStore is the slice of the contract store the enforcer needs
type ContractStore interface {
	ListActiveWithGraceDeadline() ([]*contracts.Contract, error)
	ClearGraceDeadline(id int64, expected time.Time) (bool, error)
}

// AccountStore is the slice of the account store the enforcer needs
type AccountStore interface {
	CountActive(ctx context.Context, orgID int64) (int, error)
	ListNewestActive(ctx context.Context, orgID int64, limit int) ([]*accounts.Account, error)
	Deactivate(ctx context.Context, id int64) (bool, error)
}

// Result summarizes one enforcement sweep
type Result struct {
	Scanned     int      `json:"scanned"`
	Processed   int      `json:"processed"`
	Deactivated int      `json:"deactivated"`
	Errors      []string `json:"errors,omitempty"`
}

// Enforcer runs the daily seat limit sweep
type Enforcer struct {
	contracts ContractStore
	accounts  AccountStore
	notifier  notify.Notifier
	audit     audit.Logger
	logger    *logrus.Logger

	concurrency int
}

// New creates an enforcer
func New(contractSvc ContractStore, accountSvc AccountStore, notifier notify.Notifier, auditLogger audit.Logger, logger *logrus.Logger) *Enforcer {
	if logger == nil {
		logger = logrus.New()
	}
	if auditLogger == nil {
		auditLogger = &audit.NoOpLogger{}
	}
	return &Enforcer{
		contracts:   contractSvc,
		accounts:    accountSvc,
		notifier:    notifier,
		audit:       auditLogger,
		logger:      logger,
		concurrency: defaultConcurrency,
	}
}

// Run sweeps all active contracts whose grace deadline falls on today.
// Contracts are processed in parallel and independently: one contract's
// failure is collected and the sweep continues. Running twice on the same
// day is a no-op the second time because the deadline clear is
// compare-and-set.
func (e *Enforcer) Run(ctx context.Context, today time.Time) (*Result, error) {
	due, err := e.contracts.ListActiveWithGraceDeadline()
	if err != nil {
		return nil, fmt.Errorf("failed to list contracts with grace deadline: %w", err)
	}

	result := &Result{Scanned: len(due)}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)

	for _, contract := range due {
		contract := contract
		if contract.GraceDeadline == nil || !sameDate(*contract.GraceDeadline, today) {
			continue
		}
		g.Go(func() error {
			deactivated, err := e.processContract(gctx, contract)
			mu.Lock()
			defer mu.Unlock()
			result.Processed++
			result.Deactivated += deactivated
			if err != nil {
				e.logger.WithFields(logrus.Fields{
					"contract_id": contract.ID,
					"org_id":      contract.OrgID,
				}).WithError(err).Error("seat enforcement failed")
				result.Errors = append(result.Errors, fmt.Sprintf("contract %d: %v", contract.ID, err))
			}
			// Errors are collected, never propagated: one bad contract
			// must not abort the sweep.
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return result, err
	}
	return result, nil
}

// processContract enforces one contract's seat limit and clears its
// deadline. The clear happens in both branches; compare-and-set so a
// concurrent plan change that replaced the deadline wins.
func (e *Enforcer) processContract(ctx context.Context, contract *contracts.Contract) (int, error) {
	deadline := *contract.GraceDeadline

	activeCount, err := e.accounts.CountActive(ctx, contract.OrgID)
	if err != nil {
		return 0, fmt.Errorf("failed to count active accounts: %w", err)
	}

	excess := activeCount - contract.SeatLimit
	if excess <= 0 {
		if err := e.clearDeadline(ctx, contract, deadline); err != nil {
			return 0, err
		}
		return 0, nil
	}

	victims, err := e.accounts.ListNewestActive(ctx, contract.OrgID, excess)
	if err != nil {
		return 0, fmt.Errorf("failed to list accounts for deactivation: %w", err)
	}

	var deactivated []*accounts.Account
	for _, account := range victims {
		done, err := e.accounts.Deactivate(ctx, account.ID)
		if err != nil {
			return len(deactivated), fmt.Errorf("failed to deactivate account %d: %w", account.ID, err)
		}
		if done {
			deactivated = append(deactivated, account)
			if err := e.audit.LogSeatEvent(ctx, audit.EventTypeSeatDeactivate, contract.ID, contract.OrgID,
				fmt.Sprintf("seat %d deactivated", account.ID),
				map[string]interface{}{"account_id": account.ID, "email": account.Email}); err != nil {
				e.logger.WithError(err).Warn("failed to write audit event")
			}
		}
	}

	e.notifyDeactivations(ctx, contract, deactivated)

	if err := e.audit.LogSeatEvent(ctx, audit.EventTypeSeatEnforce, contract.ID, contract.OrgID,
		fmt.Sprintf("deactivated %d of %d active seats (limit %d)", len(deactivated), activeCount, contract.SeatLimit),
		map[string]interface{}{"deactivated": len(deactivated), "active": activeCount, "limit": contract.SeatLimit}); err != nil {
		e.logger.WithError(err).Warn("failed to write audit event")
	}

	if err := e.clearDeadline(ctx, contract, deadline); err != nil {
		return len(deactivated), err
	}
	return len(deactivated), nil
}

// notifyDeactivations sends one aggregate notice to the billing contact
// and one notice per removed seat. Failures are logged only.
func (e *Enforcer) notifyDeactivations(ctx context.Context, contract *contracts.Contract, deactivated []*accounts.Account) {
	if e.notifier == nil || len(deactivated) == 0 {
		return
	}

	emails := make([]string, len(deactivated))
	for i, account := range deactivated {
		emails[i] = account.Email
	}
	if contract.BillingContactEmail != "" {
		err := e.notifier.Send(ctx, notify.TemplateSeatEnforcementSummary, contract.BillingContactEmail, map[string]interface{}{
			"contract_number":   contract.ContractNumber,
			"seat_limit":        contract.SeatLimit,
			"deactivated_count": len(deactivated),
			"deactivated":       emails,
		})
		if err != nil {
			e.logger.WithFields(logrus.Fields{
				"contract_id": contract.ID,
			}).WithError(err).Warn("failed to send enforcement summary")
		}
	}

	for _, account := range deactivated {
		err := e.notifier.Send(ctx, notify.TemplateSeatDeactivated, account.Email, map[string]interface{}{
			"contract_number": contract.ContractNumber,
			"name":            account.Name,
		})
		if err != nil {
			e.logger.WithFields(logrus.Fields{
				"contract_id": contract.ID,
				"account_id":  account.ID,
			}).WithError(err).Warn("failed to send seat deactivation notice")
		}
	}
}

func (e *Enforcer) clearDeadline(ctx context.Context, contract *contracts.Contract, deadline time.Time) error {
	cleared, err := e.contracts.ClearGraceDeadline(contract.ID, deadline)
	if err != nil {
		return fmt.Errorf("failed to clear grace deadline: %w", err)
	}
	if !cleared {
		// A plan change replaced the deadline mid-sweep; the new one is
		// enforced on its own day.
		e.logger.WithFields(logrus.Fields{
			"contract_id": contract.ID,
		}).Info("grace deadline changed during enforcement, leaving it in place")
		return nil
	}
	if err := e.audit.LogSeatEvent(ctx, audit.EventTypeGraceDeadlineCleared, contract.ID, contract.OrgID,
		fmt.Sprintf("grace deadline %s cleared", deadline.Format("2006-01-02")), nil); err != nil {
		e.logger.WithError(err).Warn("failed to write audit event")
	}
	return nil
}

func sameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
