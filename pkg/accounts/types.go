// Package accounts manages seat accounts within an organization: the
// database records that count against a contract's seat limit, and the
// external auth provisioner that backs them.
package accounts

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when an account does not exist
var ErrNotFound = errors.New("account not found")

// Role of an account within its organization
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

// Account is a seat within an organization
type Account struct {
	ID            int64      `json:"id"`
	OrgID         int64      `json:"org_id"`
	AuthID        string     `json:"auth_id"`
	Email         string     `json:"email"`
	Name          string     `json:"name"`
	Role          Role       `json:"role"`
	Active        bool       `json:"active"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	DeactivatedAt *time.Time `json:"deactivated_at,omitempty"`
}

// Provisioner creates and removes identities on the external auth system.
// Seat records in the database reference provisioned identities by AuthID.
type Provisioner interface {
	// CreateIdentity registers a login on the auth system and returns its ID
	CreateIdentity(ctx context.Context, email, password string) (string, error)
	// DeleteIdentity removes a login, used to compensate failed activations
	DeleteIdentity(ctx context.Context, authID string) error
}

// Service manages seat account records
type Service interface {
	// CreateAdminRecord inserts the organization's first admin account
	CreateAdminRecord(ctx context.Context, account *Account) error
	// GetAccount retrieves an account by ID
	GetAccount(ctx context.Context, id int64) (*Account, error)
	// CountActive returns the number of active accounts in an organization
	CountActive(ctx context.Context, orgID int64) (int, error)
	// ListNewestActive returns up to limit active accounts, newest first.
	// Ordering is by creation time with ID as tiebreaker so concurrent
	// runs pick the same victims.
	ListNewestActive(ctx context.Context, orgID int64, limit int) ([]*Account, error)
	// ListActiveAdmins returns the organization's active admin accounts
	ListActiveAdmins(ctx context.Context, orgID int64) ([]*Account, error)
	// Deactivate marks an account inactive; deactivating an already
	// inactive account is a no-op and reports false
	Deactivate(ctx context.Context, id int64) (bool, error)
	// DeleteRecord removes an account row, used to compensate failed
	// activations
	DeleteRecord(ctx context.Context, id int64) error
}
