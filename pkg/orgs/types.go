package orgs

import (
	"errors"
	"time"
)

// ErrNotFound is returned when an organization does not exist
var ErrNotFound = errors.New("organization not found")

// Status represents organization status
type Status string

const (
	StatusActive    Status = "active"
	StatusSuspended Status = "suspended"
)

// Organization is a billing tenant. Contracts, seat accounts and feature
// flags all hang off its ID.
type Organization struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Slug         string    `json:"slug"`
	Status       Status    `json:"status"`
	BillingEmail string    `json:"billing_email,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// FeatureFlag is an explicit per-organization feature grant. Flags are
// additive overrides on top of whatever the active contract's packages
// unlock.
type FeatureFlag struct {
	OrgID     int64     `json:"org_id"`
	Flag      string    `json:"flag"`
	GrantedBy string    `json:"granted_by,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
