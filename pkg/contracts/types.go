package contracts

import (
	"time"
)

// Status represents the lifecycle state of a contract
type Status string

const (
	StatusDraft     Status = "draft"
	StatusActive    Status = "active"
	StatusCancelled Status = "cancelled"
)

// BillingCycle represents how often a contract is billed
type BillingCycle string

const (
	CycleMonthly BillingCycle = "monthly"
	CycleAnnual  BillingCycle = "annual"
)

// MonthEndBillingDay is the sentinel billing day meaning "last day of the month"
const MonthEndBillingDay = 99

// PlanChangeType classifies a plan change by its fee delta
type PlanChangeType string

const (
	PlanChangeUpgrade   PlanChangeType = "upgrade"
	PlanChangeDowngrade PlanChangeType = "downgrade"
	PlanChangeLateral   PlanChangeType = "change"
)

// Package represents a sellable feature bundle with a fixed monthly fee.
// Fees are integer yen.
type Package struct {
	ID          int64     `json:"id"`
	Key         string    `json:"key"`
	Name        string    `json:"name"`
	MonthlyFee  int64     `json:"monthly_fee"`
	SeatLimit   int       `json:"seat_limit"`
	FeatureKeys []string  `json:"feature_keys,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// InitialFees holds the one-time charges applied to a contract's first invoice
type InitialFees struct {
	Setup      int64 `json:"setup"`
	DataImport int64 `json:"data_import"`
	Onsite     int64 `json:"onsite"`
	Training   int64 `json:"training"`
	Other      int64 `json:"other"`
	Discount   int64 `json:"discount"`
}

// Total returns the sum of all initial charges before the discount
func (f InitialFees) Total() int64 {
	return f.Setup + f.DataImport + f.Onsite + f.Training + f.Other
}

// Contract represents a recurring commercial contract for an organization
type Contract struct {
	ID             int64        `json:"id"`
	ContractNumber string       `json:"contract_number"`
	OrgID          int64        `json:"org_id"`
	Status         Status       `json:"status"`
	BillingCycle   BillingCycle `json:"billing_cycle"`

	// BillingDay is the anchor day of the billing period (1..31, or
	// MonthEndBillingDay for end-of-month billing).
	BillingDay int `json:"billing_day"`

	StartDate time.Time `json:"start_date"`
	SeatLimit int       `json:"seat_limit"`

	InitialFees InitialFees `json:"initial_fees"`

	// PendingProratedCharge is a carried-over plan change adjustment consumed
	// by the next recurring invoice. Nil means nothing is carried.
	PendingProratedCharge      *int64          `json:"pending_prorated_charge,omitempty"`
	PendingProratedDescription *string         `json:"pending_prorated_description,omitempty"`
	PlanChangeType             *PlanChangeType `json:"plan_change_type,omitempty"`

	// GraceDeadline is non-nil only while the seat limit has been reduced
	// below the actual active seat count.
	GraceDeadline *time.Time `json:"grace_deadline,omitempty"`

	// Initial admin account data, held until the completion saga consumes it.
	AdminName   string `json:"admin_name,omitempty"`
	AdminEmail  string `json:"admin_email,omitempty"`
	AdminSecret string `json:"-"`

	BillingContactEmail string `json:"billing_contact_email,omitempty"`

	// LedgerCustomerID is the external ledger provider's customer reference.
	LedgerCustomerID string `json:"ledger_customer_id,omitempty"`

	// AdminAccountID is set once the completion saga has provisioned the
	// initial admin account.
	AdminAccountID string `json:"admin_account_id,omitempty"`

	Billed      bool       `json:"billed"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CancelledAt *time.Time `json:"cancelled_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// CreateContractRequest represents a request to create a draft contract
type CreateContractRequest struct {
	OrgID               int64        `json:"org_id"`
	BillingCycle        BillingCycle `json:"billing_cycle"`
	BillingDay          int          `json:"billing_day"`
	StartDate           time.Time    `json:"start_date"`
	SeatLimit           int          `json:"seat_limit"`
	PackageIDs          []int64      `json:"package_ids"`
	InitialFees         InitialFees  `json:"initial_fees"`
	AdminName           string       `json:"admin_name"`
	AdminEmail          string       `json:"admin_email"`
	AdminSecret         string       `json:"admin_secret"`
	BillingContactEmail string       `json:"billing_contact_email"`
}

// Validate checks structural validity of a create request
func (r *CreateContractRequest) Validate() error {
	if r.OrgID == 0 {
		return &ValidationError{Field: "org_id", Reason: "required"}
	}
	if r.BillingCycle != CycleMonthly && r.BillingCycle != CycleAnnual {
		return &ValidationError{Field: "billing_cycle", Reason: "must be monthly or annual"}
	}
	if (r.BillingDay < 1 || r.BillingDay > 31) && r.BillingDay != MonthEndBillingDay {
		return &ValidationError{Field: "billing_day", Reason: "must be 1..31 or 99 for month end"}
	}
	if r.SeatLimit < 0 {
		return &ValidationError{Field: "seat_limit", Reason: "must not be negative"}
	}
	if len(r.PackageIDs) == 0 {
		return &ValidationError{Field: "package_ids", Reason: "at least one package is required"}
	}
	if r.AdminEmail == "" {
		return &ValidationError{Field: "admin_email", Reason: "required"}
	}
	return nil
}
