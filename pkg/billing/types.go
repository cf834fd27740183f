package billing

import (
	"time"

	"github.com/genbaworks/tally/pkg/contracts"
)

// LineItem is a single invoice-ready charge
type LineItem struct {
	Description string `json:"description"`
	Amount      int64  `json:"amount"`
}

// FeeCalculation is the itemized result of a fee computation
type FeeCalculation struct {
	Items          []LineItem `json:"items"`
	Subtotal       int64      `json:"subtotal"`
	Discount       int64      `json:"discount"`
	Total          int64      `json:"total"`
	IsFirstInvoice bool       `json:"is_first_invoice"`
}

// ProrationPreview describes the mid-cycle adjustment for a plan change
type ProrationPreview struct {
	OldMonthlyFee      int64                    `json:"old_monthly_fee"`
	NewMonthlyFee      int64                    `json:"new_monthly_fee"`
	ChangeDate         time.Time                `json:"change_date"`
	PeriodStart        time.Time                `json:"billing_period_start"`
	PeriodEnd          time.Time                `json:"billing_period_end"`
	PeriodDays         int                      `json:"period_days"`
	ProrationDays      int                      `json:"proration_days"`
	OldPlanProrated    int64                    `json:"old_plan_prorated"`
	NewPlanProrated    int64                    `json:"new_plan_prorated"`
	ProratedDifference int64                    `json:"prorated_difference"`
	NextInvoiceAmount  int64                    `json:"next_invoice_amount"`
	ChangeType         contracts.PlanChangeType `json:"change_type"`
}

// Snapshot is the read-only view of a contract the calculator operates on
type Snapshot struct {
	BillingCycle  contracts.BillingCycle
	BillingDay    int
	Billed        bool
	InitialFees   contracts.InitialFees
	Packages      []*contracts.Package
	PendingCharge int64
	PendingDesc   string
}

// SnapshotOf builds a calculator snapshot from a contract and its packages
func SnapshotOf(c *contracts.Contract, pkgs []*contracts.Package) Snapshot {
	s := Snapshot{
		BillingCycle: c.BillingCycle,
		BillingDay:   c.BillingDay,
		Billed:       c.Billed,
		InitialFees:  c.InitialFees,
		Packages:     pkgs,
	}
	if c.PendingProratedCharge != nil {
		s.PendingCharge = *c.PendingProratedCharge
	}
	if c.PendingProratedDescription != nil {
		s.PendingDesc = *c.PendingProratedDescription
	}
	return s
}

// RoundHalfUp divides num by den rounding half away from zero toward
// positive infinity for positive inputs, matching invoice rounding rules.
// den must be positive.
func RoundHalfUp(num, den int64) int64 {
	if num >= 0 {
		return (num + den/2) / den
	}
	return -((-num + den/2) / den)
}
