package api

import (
	"context"
	"time"

	"github.com/genbaworks/tally/pkg/accounts"
	"github.com/genbaworks/tally/pkg/billing"
	"github.com/genbaworks/tally/pkg/documents"
	"github.com/genbaworks/tally/pkg/enforcer"
	"github.com/genbaworks/tally/pkg/entitlement"
	"github.com/genbaworks/tally/pkg/lifecycle"
	"github.com/genbaworks/tally/pkg/orgs"
)

// Lifecycle is the slice of the lifecycle controller the server calls
type Lifecycle interface {
	GenerateEstimate(ctx context.Context, contractID int64, actor string) (*documents.Document, error)
	MarkEstimateSent(ctx context.Context, contractID int64, actor string) (*documents.Document, error)
	RejectEstimate(ctx context.Context, contractID int64, actor string) error
	RegenerateEstimate(ctx context.Context, contractID int64, actor string) (*documents.Document, error)
	ConvertEstimateToInvoice(ctx context.Context, contractID int64, actor string) (*documents.Document, error)
	RecordInvoicePaid(ctx context.Context, documentID int64, actor string) error

	CompleteContract(ctx context.Context, contractID int64, password, actor string) (*accounts.Account, error)
	CancelContract(ctx context.Context, contractID int64, actor string) error

	PreviewPlanChange(ctx context.Context, contractID int64, newPackageIDs []int64) (*billing.ProrationPreview, error)
	ChangePlan(ctx context.Context, contractID int64, newPackageIDs []int64, newSeatLimit int, actor string) (*lifecycle.PlanChangeResult, error)

	RunRecurringBilling(ctx context.Context, asOf time.Time) (*lifecycle.BillingRunResult, error)
}

// EnforcerRunner triggers a seat enforcement sweep
type EnforcerRunner interface {
	Run(ctx context.Context, today time.Time) (*enforcer.Result, error)
}

// FeatureResolver resolves entitlement snapshots and evicts them after
// flag changes
type FeatureResolver interface {
	Resolve(ctx context.Context, orgID int64) (entitlement.FeatureState, error)
	Invalidate(ctx context.Context, orgID int64)
}

// FlagStore manages explicit per-organization feature flag grants
type FlagStore interface {
	ListFeatureFlags(orgID int64) ([]*orgs.FeatureFlag, error)
	GrantFeatureFlag(orgID int64, flag, grantedBy string) error
	RevokeFeatureFlag(orgID int64, flag string) (bool, error)
}

// grantFlagRequest is the payload for feature flag grants
type grantFlagRequest struct {
	Flag string `json:"flag"`
}

// completeContractRequest carries the initial admin password for the
// completion saga
type completeContractRequest struct {
	Password string `json:"password"`
}

// planChangeRequest is the payload for plan changes and previews
type planChangeRequest struct {
	PackageIDs []int64 `json:"package_ids"`
	SeatLimit  int     `json:"seat_limit"`
}

// runRequest carries an optional operating date for batch jobs
type runRequest struct {
	Date string `json:"date,omitempty"`
}
