package lifecycle

import (
	"context"
	"fmt"
	"time"

	"github.com/genbaworks/tally/pkg/audit"
	"github.com/genbaworks/tally/pkg/billing"
	"github.com/genbaworks/tally/pkg/contracts"
)

// PlanChangeResult reports an applied plan change
type PlanChangeResult struct {
	Preview billing.ProrationPreview `json:"preview"`

	// GraceDeadline is set when the new seat limit is below the current
	// active seat count; excess seats survive until this date.
	GraceDeadline *time.Time `json:"grace_deadline,omitempty"`

	NewSeatLimit    int `json:"new_seat_limit"`
	ActiveSeatCount int `json:"active_seat_count"`
}

// PreviewPlanChange computes the proration for switching an active
// contract to a new package set without applying anything.
func (c *Controller) PreviewPlanChange(ctx context.Context, contractID int64, newPackageIDs []int64) (*billing.ProrationPreview, error) {
	contract, currentPkgs, newPkgs, err := c.loadPlanChangeInputs(contractID, newPackageIDs)
	if err != nil {
		return nil, err
	}
	preview := billing.PreviewPlanChange(billing.SnapshotOf(contract, currentPkgs), newPkgs, c.today())
	return &preview, nil
}

// ChangePlan switches an active contract to a new package set. The
// prorated difference is carried as a pending charge consumed by the next
// recurring invoice. When the new seat limit is below the current active
// seat count a grace deadline is set; otherwise any existing deadline is
// cleared.
func (c *Controller) ChangePlan(ctx context.Context, contractID int64, newPackageIDs []int64, newSeatLimit int, actor string) (*PlanChangeResult, error) {
	contract, currentPkgs, newPkgs, err := c.loadPlanChangeInputs(contractID, newPackageIDs)
	if err != nil {
		return nil, err
	}
	if newSeatLimit < 0 {
		return nil, &contracts.ValidationError{Field: "seat_limit", Reason: "must not be negative"}
	}

	preview := billing.PreviewPlanChange(billing.SnapshotOf(contract, currentPkgs), newPkgs, c.today())

	activeCount, err := c.accounts.CountActive(ctx, contract.OrgID)
	if err != nil {
		return nil, err
	}

	var deadline *time.Time
	if newSeatLimit < activeCount {
		d := c.today().AddDate(0, 0, c.cfg.GracePeriodDays)
		deadline = &d
	}

	change := &contracts.PlanChange{
		ContractID:    contractID,
		PackageIDs:    newPackageIDs,
		SeatLimit:     newSeatLimit,
		PendingCharge: preview.ProratedDifference,
		Description: fmt.Sprintf("Plan change adjustment (%s, %s)",
			preview.ChangeType, preview.ChangeDate.Format("2006-01-02")),
		ChangeType:    preview.ChangeType,
		GraceDeadline: deadline,
	}
	if err := c.contracts.ApplyPlanChange(change); err != nil {
		return nil, err
	}

	c.invalidateFeatures(ctx, contract.OrgID)

	changes := &audit.ChangeDetails{
		Before: map[string]interface{}{
			"monthly_fee": preview.OldMonthlyFee,
			"seat_limit":  contract.SeatLimit,
		},
		After: map[string]interface{}{
			"monthly_fee": preview.NewMonthlyFee,
			"seat_limit":  newSeatLimit,
		},
	}
	c.auditContract(ctx, audit.EventTypePlanChange, contractID, contract.OrgID, actor,
		fmt.Sprintf("plan change (%s), prorated difference %d", preview.ChangeType, preview.ProratedDifference), changes)
	if deadline != nil {
		c.auditContract(ctx, audit.EventTypeGraceDeadlineSet, contractID, contract.OrgID, actor,
			fmt.Sprintf("grace deadline set to %s (%d active seats over limit %d)",
				deadline.Format("2006-01-02"), activeCount, newSeatLimit), nil)
	}

	return &PlanChangeResult{
		Preview:         preview,
		GraceDeadline:   deadline,
		NewSeatLimit:    newSeatLimit,
		ActiveSeatCount: activeCount,
	}, nil
}

func (c *Controller) loadPlanChangeInputs(contractID int64, newPackageIDs []int64) (*contracts.Contract, []*contracts.Package, []*contracts.Package, error) {
	contract, err := c.contracts.GetContract(contractID)
	if err != nil {
		return nil, nil, nil, err
	}
	if contract.Status != contracts.StatusActive {
		return nil, nil, nil, &contracts.PolicyViolationError{
			Policy: "plan_change",
			Reason: fmt.Sprintf("contract %d is %s, plan changes apply to active contracts", contractID, contract.Status),
		}
	}
	if len(newPackageIDs) == 0 {
		return nil, nil, nil, &contracts.ValidationError{Field: "package_ids", Reason: "at least one package is required"}
	}

	currentPkgs, err := c.contracts.GetPackagesForContract(contractID)
	if err != nil {
		return nil, nil, nil, err
	}
	newPkgs, err := c.contracts.GetPackagesByIDs(newPackageIDs)
	if err != nil {
		return nil, nil, nil, err
	}
	return contract, currentPkgs, newPkgs, nil
}
