package accounts

import (
	"context"
	"database/sql"
	"fmt"
)

// PostgresService implements Service backed by PostgreSQL
type PostgresService struct {
	db *sql.DB
}

// NewPostgresService creates a new PostgreSQL account service
func NewPostgresService(db *sql.DB) *PostgresService {
	return &PostgresService{db: db}
}

const accountColumns = `id, org_id, auth_id, email, name, role, active,
	created_at, updated_at, deactivated_at`

// CreateAdminRecord inserts the organization's first admin account
func (s *PostgresService) CreateAdminRecord(ctx context.Context, account *Account) error {
	query := `
		INSERT INTO accounts (org_id, auth_id, email, name, role, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, 'admin', true, NOW(), NOW())
		RETURNING id, created_at, updated_at`

	err := s.db.QueryRowContext(ctx, query,
		account.OrgID, account.AuthID, account.Email, account.Name,
	).Scan(&account.ID, &account.CreatedAt, &account.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create admin account: %w", err)
	}
	account.Role = RoleAdmin
	account.Active = true
	return nil
}

// GetAccount retrieves an account by ID
func (s *PostgresService) GetAccount(ctx context.Context, id int64) (*Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`
	return scanAccount(s.db.QueryRowContext(ctx, query, id))
}

// CountActive returns the number of active accounts in an organization
func (s *PostgresService) CountActive(ctx context.Context, orgID int64) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM accounts WHERE org_id = $1 AND active = true`,
		orgID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count active accounts: %w", err)
	}
	return count, nil
}

// ListNewestActive returns up to limit active accounts, newest first
func (s *PostgresService) ListNewestActive(ctx context.Context, orgID int64, limit int) ([]*Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts
		WHERE org_id = $1 AND active = true
		ORDER BY created_at DESC, id DESC
		LIMIT $2`
	return s.queryAccounts(ctx, query, orgID, limit)
}

// ListActiveAdmins returns the organization's active admin accounts
func (s *PostgresService) ListActiveAdmins(ctx context.Context, orgID int64) ([]*Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts
		WHERE org_id = $1 AND active = true AND role = 'admin'
		ORDER BY created_at, id`
	return s.queryAccounts(ctx, query, orgID)
}

// Deactivate marks an account inactive
func (s *PostgresService) Deactivate(ctx context.Context, id int64) (bool, error) {
	result, err := s.db.ExecContext(ctx,
		`UPDATE accounts SET active = false, deactivated_at = NOW(), updated_at = NOW()
		 WHERE id = $1 AND active = true`,
		id)
	if err != nil {
		return false, fmt.Errorf("failed to deactivate account: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows > 0, nil
}

// DeleteRecord removes an account row
func (s *PostgresService) DeleteRecord(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM accounts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete account: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresService) queryAccounts(ctx context.Context, query string, args ...interface{}) ([]*Account, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []*Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, account)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate accounts: %w", err)
	}
	return accounts, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAccount(row rowScanner) (*Account, error) {
	var account Account
	var deactivatedAt sql.NullTime

	err := row.Scan(&account.ID, &account.OrgID, &account.AuthID, &account.Email,
		&account.Name, &account.Role, &account.Active,
		&account.CreatedAt, &account.UpdatedAt, &deactivatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan account: %w", err)
	}
	if deactivatedAt.Valid {
		t := deactivatedAt.Time
		account.DeactivatedAt = &t
	}
	return &account, nil
}
