package orgs

import (
	"database/sql"
	"fmt"
	"strings"
)

// Service manages organization records and their feature flags
type Service interface {
	CreateOrganization(org *Organization) error
	GetOrganization(id int64) (*Organization, error)
	GetOrganizationBySlug(slug string) (*Organization, error)
	ListOrganizations() ([]*Organization, error)
	SetStatus(id int64, status Status) error

	// FeatureFlags returns the explicit flags granted to an organization.
	// An organization with no grants gets an empty slice, not an error.
	FeatureFlags(orgID int64) ([]string, error)
	ListFeatureFlags(orgID int64) ([]*FeatureFlag, error)
	GrantFeatureFlag(orgID int64, flag, grantedBy string) error
	RevokeFeatureFlag(orgID int64, flag string) (bool, error)
}

// PostgresService implements the orgs Service interface using PostgreSQL
type PostgresService struct {
	db *sql.DB
}

// NewPostgresService creates a new PostgresService
func NewPostgresService(db *sql.DB) *PostgresService {
	return &PostgresService{db: db}
}

const orgColumns = `id, name, slug, status, billing_email, created_at, updated_at`

func scanOrganization(row interface{ Scan(...interface{}) error }) (*Organization, error) {
	org := &Organization{}
	var billingEmail sql.NullString
	err := row.Scan(&org.ID, &org.Name, &org.Slug, &org.Status, &billingEmail,
		&org.CreatedAt, &org.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if billingEmail.Valid {
		org.BillingEmail = billingEmail.String
	}
	return org, nil
}

// CreateOrganization inserts a new organization
func (s *PostgresService) CreateOrganization(org *Organization) error {
	if org.Name == "" {
		return fmt.Errorf("organization name is required")
	}
	if org.Slug == "" {
		org.Slug = generateSlug(org.Name)
	}
	if org.Status == "" {
		org.Status = StatusActive
	}

	query := `
		INSERT INTO organizations (name, slug, status, billing_email)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at`
	err := s.db.QueryRow(query, org.Name, org.Slug, org.Status, nullableString(org.BillingEmail)).
		Scan(&org.ID, &org.CreatedAt, &org.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create organization: %w", err)
	}
	return nil
}

// GetOrganization retrieves an organization by ID
func (s *PostgresService) GetOrganization(id int64) (*Organization, error) {
	query := `SELECT ` + orgColumns + ` FROM organizations WHERE id = $1`
	org, err := scanOrganization(s.db.QueryRow(query, id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get organization: %w", err)
	}
	return org, nil
}

// GetOrganizationBySlug retrieves an organization by its URL slug
func (s *PostgresService) GetOrganizationBySlug(slug string) (*Organization, error) {
	query := `SELECT ` + orgColumns + ` FROM organizations WHERE slug = $1`
	org, err := scanOrganization(s.db.QueryRow(query, slug))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get organization: %w", err)
	}
	return org, nil
}

// ListOrganizations returns all organizations ordered by name
func (s *PostgresService) ListOrganizations() ([]*Organization, error) {
	query := `SELECT ` + orgColumns + ` FROM organizations ORDER BY name`
	rows, err := s.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to list organizations: %w", err)
	}
	defer rows.Close()

	var result []*Organization
	for rows.Next() {
		org, err := scanOrganization(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan organization: %w", err)
		}
		result = append(result, org)
	}
	return result, rows.Err()
}

// SetStatus updates an organization's status
func (s *PostgresService) SetStatus(id int64, status Status) error {
	query := `UPDATE organizations SET status = $1, updated_at = NOW() WHERE id = $2`
	result, err := s.db.Exec(query, status, id)
	if err != nil {
		return fmt.Errorf("failed to update organization status: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func generateSlug(name string) string {
	slug := strings.ToLower(name)
	slug = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		case r == ' ', r == '-', r == '_':
			return '-'
		default:
			return -1
		}
	}, slug)
	return strings.Trim(slug, "-")
}

func nullableString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
