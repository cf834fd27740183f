package contracts

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// Service defines the interface for contract persistence
type Service interface {
	// Contract lifecycle
	CreateContract(req *CreateContractRequest) (*Contract, error)
	GetContract(id int64) (*Contract, error)
	GetActiveContractByOrg(orgID int64) (*Contract, error)
	CancelContract(id int64) error

	// Completion
	SetLedgerCustomerID(id int64, customerID string) error
	CompleteActivation(id int64, adminAccountID string) error

	// Billing state
	MarkBilled(id int64) error
	ConsumePendingCharge(id int64) (int64, string, error)
	RestorePendingCharge(id int64, amount int64, description string) error

	// Plan changes
	GetPackagesForContract(contractID int64) ([]*Package, error)
	GetPackagesByIDs(ids []int64) ([]*Package, error)
	ListPackages() ([]*Package, error)
	ApplyPlanChange(change *PlanChange) error
	ClearGraceDeadline(id int64, expected time.Time) (bool, error)

	// Batch scans
	ListDueForBilling(day int, monthEnd bool) ([]*Contract, error)
	ListActiveWithGraceDeadline() ([]*Contract, error)
}

// PlanChange is the single-row mutation applied when a contract's package
// set changes mid-cycle.
type PlanChange struct {
	ContractID    int64
	PackageIDs    []int64
	SeatLimit     int
	PendingCharge int64
	Description   string
	ChangeType    PlanChangeType
	GraceDeadline *time.Time // nil clears any existing deadline
}

// PostgresService implements the contracts Service interface using PostgreSQL
type PostgresService struct {
	db *sql.DB
}

// NewPostgresService creates a new PostgresService
func NewPostgresService(db *sql.DB) *PostgresService {
	return &PostgresService{db: db}
}

const contractColumns = `
	id, contract_number, org_id, status, billing_cycle, billing_day,
	start_date, seat_limit,
	initial_setup_fee, initial_data_import_fee, initial_onsite_fee,
	initial_training_fee, initial_other_fee, initial_discount,
	pending_prorated_charge, pending_prorated_description, plan_change_type,
	grace_deadline, admin_name, admin_email, admin_secret,
	billing_contact_email, ledger_customer_id, admin_account_id,
	billed, completed_at, cancelled_at, created_at, updated_at`

func scanContract(row interface{ Scan(...interface{}) error }) (*Contract, error) {
	c := &Contract{}
	var (
		pendingCharge sql.NullInt64
		pendingDesc   sql.NullString
		changeType    sql.NullString
		graceDeadline sql.NullTime
		adminName     sql.NullString
		adminEmail    sql.NullString
		adminSecret   sql.NullString
		billingEmail  sql.NullString
		ledgerID      sql.NullString
		accountID     sql.NullString
		completedAt   sql.NullTime
		cancelledAt   sql.NullTime
	)

	err := row.Scan(
		&c.ID, &c.ContractNumber, &c.OrgID, &c.Status, &c.BillingCycle, &c.BillingDay,
		&c.StartDate, &c.SeatLimit,
		&c.InitialFees.Setup, &c.InitialFees.DataImport, &c.InitialFees.Onsite,
		&c.InitialFees.Training, &c.InitialFees.Other, &c.InitialFees.Discount,
		&pendingCharge, &pendingDesc, &changeType,
		&graceDeadline, &adminName, &adminEmail, &adminSecret,
		&billingEmail, &ledgerID, &accountID,
		&c.Billed, &completedAt, &cancelledAt, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if pendingCharge.Valid {
		v := pendingCharge.Int64
		c.PendingProratedCharge = &v
	}
	if pendingDesc.Valid {
		v := pendingDesc.String
		c.PendingProratedDescription = &v
	}
	if changeType.Valid {
		v := PlanChangeType(changeType.String)
		c.PlanChangeType = &v
	}
	if graceDeadline.Valid {
		v := graceDeadline.Time
		c.GraceDeadline = &v
	}
	if adminName.Valid {
		c.AdminName = adminName.String
	}
	if adminEmail.Valid {
		c.AdminEmail = adminEmail.String
	}
	if adminSecret.Valid {
		c.AdminSecret = adminSecret.String
	}
	if billingEmail.Valid {
		c.BillingContactEmail = billingEmail.String
	}
	if ledgerID.Valid {
		c.LedgerCustomerID = ledgerID.String
	}
	if accountID.Valid {
		c.AdminAccountID = accountID.String
	}
	if completedAt.Valid {
		v := completedAt.Time
		c.CompletedAt = &v
	}
	if cancelledAt.Valid {
		v := cancelledAt.Time
		c.CancelledAt = &v
	}

	return c, nil
}

// CreateContract creates a draft contract and its package associations
func (s *PostgresService) CreateContract(req *CreateContractRequest) (*Contract, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO contracts (
			contract_number, org_id, status, billing_cycle, billing_day,
			start_date, seat_limit,
			initial_setup_fee, initial_data_import_fee, initial_onsite_fee,
			initial_training_fee, initial_other_fee, initial_discount,
			admin_name, admin_email, admin_secret, billing_contact_email
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		RETURNING id, created_at, updated_at
	`
	c := &Contract{
		ContractNumber:      newContractNumber(),
		OrgID:               req.OrgID,
		Status:              StatusDraft,
		BillingCycle:        req.BillingCycle,
		BillingDay:          req.BillingDay,
		StartDate:           req.StartDate,
		SeatLimit:           req.SeatLimit,
		InitialFees:         req.InitialFees,
		AdminName:           req.AdminName,
		AdminEmail:          req.AdminEmail,
		AdminSecret:         req.AdminSecret,
		BillingContactEmail: req.BillingContactEmail,
	}

	err = tx.QueryRow(query,
		c.ContractNumber, c.OrgID, c.Status, c.BillingCycle, c.BillingDay,
		c.StartDate, c.SeatLimit,
		c.InitialFees.Setup, c.InitialFees.DataImport, c.InitialFees.Onsite,
		c.InitialFees.Training, c.InitialFees.Other, c.InitialFees.Discount,
		c.AdminName, c.AdminEmail, c.AdminSecret, c.BillingContactEmail,
	).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create contract: %w", err)
	}

	if err := insertContractPackages(tx, c.ID, req.PackageIDs); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit contract: %w", err)
	}

	return c, nil
}

// GetContract retrieves a contract by ID
func (s *PostgresService) GetContract(id int64) (*Contract, error) {
	query := `SELECT ` + contractColumns + ` FROM contracts WHERE id = $1`
	c, err := scanContract(s.db.QueryRow(query, id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get contract: %w", err)
	}
	return c, nil
}

// GetActiveContractByOrg retrieves the active contract for an organization
func (s *PostgresService) GetActiveContractByOrg(orgID int64) (*Contract, error) {
	query := `SELECT ` + contractColumns + ` FROM contracts WHERE org_id = $1 AND status = $2`
	c, err := scanContract(s.db.QueryRow(query, orgID, StatusActive))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get contract for org: %w", err)
	}
	return c, nil
}

// CancelContract marks an active contract as cancelled
func (s *PostgresService) CancelContract(id int64) error {
	query := `
		UPDATE contracts
		SET status = $1, cancelled_at = NOW(), updated_at = NOW()
		WHERE id = $2 AND status = $3
	`
	result, err := s.db.Exec(query, StatusCancelled, id, StatusActive)
	if err != nil {
		return fmt.Errorf("failed to cancel contract: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return &PolicyViolationError{Policy: "cancel", Reason: "only active contracts can be cancelled"}
	}
	return nil
}

// SetLedgerCustomerID records the external ledger customer reference
func (s *PostgresService) SetLedgerCustomerID(id int64, customerID string) error {
	query := `UPDATE contracts SET ledger_customer_id = $1, updated_at = NOW() WHERE id = $2`
	if _, err := s.db.Exec(query, customerID, id); err != nil {
		return fmt.Errorf("failed to set ledger customer: %w", err)
	}
	return nil
}

// CompleteActivation flips a draft contract to active and wipes the stored
// one-time admin secret in the same statement.
func (s *PostgresService) CompleteActivation(id int64, adminAccountID string) error {
	query := `
		UPDATE contracts
		SET status = $1, admin_account_id = $2, admin_secret = NULL,
		    completed_at = NOW(), updated_at = NOW()
		WHERE id = $3 AND status = $4
	`
	result, err := s.db.Exec(query, StatusActive, adminAccountID, id, StatusDraft)
	if err != nil {
		return fmt.Errorf("failed to activate contract: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return &PolicyViolationError{Policy: "complete", Reason: "contract is not in draft state"}
	}
	return nil
}

// MarkBilled records that the contract's first invoice has been issued
func (s *PostgresService) MarkBilled(id int64) error {
	query := `UPDATE contracts SET billed = true, updated_at = NOW() WHERE id = $1`
	if _, err := s.db.Exec(query, id); err != nil {
		return fmt.Errorf("failed to mark contract billed: %w", err)
	}
	return nil
}

// ConsumePendingCharge clears any carried prorated charge and returns it.
// The clear happens in the same statement so a charge is consumed at most
// once; a second call returns (0, "", nil).
func (s *PostgresService) ConsumePendingCharge(id int64) (int64, string, error) {
	query := `
		UPDATE contracts c
		SET pending_prorated_charge = NULL, pending_prorated_description = NULL,
		    plan_change_type = NULL, updated_at = NOW()
		FROM (
			SELECT id, pending_prorated_charge, pending_prorated_description
			FROM contracts WHERE id = $1 FOR UPDATE
		) old
		WHERE c.id = old.id AND old.pending_prorated_charge IS NOT NULL
		RETURNING old.pending_prorated_charge, old.pending_prorated_description
	`
	var amount sql.NullInt64
	var description sql.NullString
	err := s.db.QueryRow(query, id).Scan(&amount, &description)
	if err == sql.ErrNoRows {
		return 0, "", nil
	}
	if err != nil {
		return 0, "", fmt.Errorf("failed to consume pending charge: %w", err)
	}
	return amount.Int64, description.String, nil
}

// RestorePendingCharge puts a consumed prorated charge back on the
// contract. Used when invoice creation fails after the charge was already
// consumed, so the charge lands on the next attempt instead of vanishing.
func (s *PostgresService) RestorePendingCharge(id int64, amount int64, description string) error {
	result, err := s.db.Exec(
		`UPDATE contracts
		 SET pending_prorated_charge = $2, pending_prorated_description = $3, updated_at = NOW()
		 WHERE id = $1`,
		id, amount, description)
	if err != nil {
		return fmt.Errorf("failed to restore pending charge: %w", err)
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

// ApplyPlanChange replaces a contract's package set and records the pending
// prorated charge and grace deadline in a single transaction.
func (s *PostgresService) ApplyPlanChange(change *PlanChange) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM contract_packages WHERE contract_id = $1`, change.ContractID); err != nil {
		return fmt.Errorf("failed to clear contract packages: %w", err)
	}
	if err := insertContractPackages(tx, change.ContractID, change.PackageIDs); err != nil {
		return err
	}

	query := `
		UPDATE contracts
		SET seat_limit = $1, pending_prorated_charge = $2,
		    pending_prorated_description = $3, plan_change_type = $4,
		    grace_deadline = $5, updated_at = NOW()
		WHERE id = $6
	`
	result, err := tx.Exec(query,
		change.SeatLimit, change.PendingCharge, change.Description,
		change.ChangeType, change.GraceDeadline, change.ContractID,
	)
	if err != nil {
		return fmt.Errorf("failed to update contract for plan change: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	return tx.Commit()
}

// ClearGraceDeadline clears the grace deadline only if it still equals the
// value the caller read. Returns false when another writer won the race.
func (s *PostgresService) ClearGraceDeadline(id int64, expected time.Time) (bool, error) {
	query := `
		UPDATE contracts
		SET grace_deadline = NULL, updated_at = NOW()
		WHERE id = $1 AND grace_deadline = $2
	`
	result, err := s.db.Exec(query, id, expected)
	if err != nil {
		return false, fmt.Errorf("failed to clear grace deadline: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}

// ListDueForBilling lists active contracts whose billing day matches.
// With monthEnd set, contracts anchored to end-of-month (billing day 99)
// are included as well.
func (s *PostgresService) ListDueForBilling(day int, monthEnd bool) ([]*Contract, error) {
	query := `SELECT ` + contractColumns + ` FROM contracts WHERE status = $1 AND (billing_day = $2`
	args := []interface{}{StatusActive, day}
	if monthEnd {
		query += ` OR billing_day = $3`
		args = append(args, MonthEndBillingDay)
	}
	query += `) ORDER BY id`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list contracts due for billing: %w", err)
	}
	defer rows.Close()

	return collectContracts(rows)
}

// ListActiveWithGraceDeadline lists active contracts carrying a grace deadline
func (s *PostgresService) ListActiveWithGraceDeadline() ([]*Contract, error) {
	query := `SELECT ` + contractColumns + ` FROM contracts
		WHERE status = $1 AND grace_deadline IS NOT NULL
		ORDER BY id`
	rows, err := s.db.Query(query, StatusActive)
	if err != nil {
		return nil, fmt.Errorf("failed to list contracts with grace deadline: %w", err)
	}
	defer rows.Close()

	return collectContracts(rows)
}

func collectContracts(rows *sql.Rows) ([]*Contract, error) {
	var result []*Contract
	for rows.Next() {
		c, err := scanContract(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan contract: %w", err)
		}
		result = append(result, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate contracts: %w", err)
	}
	return result, nil
}

func insertContractPackages(tx *sql.Tx, contractID int64, packageIDs []int64) error {
	for _, pkgID := range packageIDs {
		if _, err := tx.Exec(
			`INSERT INTO contract_packages (contract_id, package_id) VALUES ($1, $2)`,
			contractID, pkgID,
		); err != nil {
			return fmt.Errorf("failed to associate package %d: %w", pkgID, err)
		}
	}
	return nil
}

// GetPackagesForContract lists the packages currently associated with a contract
func (s *PostgresService) GetPackagesForContract(contractID int64) ([]*Package, error) {
	query := `
		SELECT p.id, p.key, p.name, p.monthly_fee, p.seat_limit, p.feature_keys,
		       p.created_at, p.updated_at
		FROM packages p
		JOIN contract_packages cp ON cp.package_id = p.id
		WHERE cp.contract_id = $1
		ORDER BY p.id
	`
	rows, err := s.db.Query(query, contractID)
	if err != nil {
		return nil, fmt.Errorf("failed to get contract packages: %w", err)
	}
	defer rows.Close()

	return collectPackages(rows)
}

// GetPackagesByIDs resolves a package id set; every id must exist
func (s *PostgresService) GetPackagesByIDs(ids []int64) ([]*Package, error) {
	query := `
		SELECT id, key, name, monthly_fee, seat_limit, feature_keys, created_at, updated_at
		FROM packages
		WHERE id = ANY($1)
		ORDER BY id
	`
	rows, err := s.db.Query(query, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("failed to get packages: %w", err)
	}
	defer rows.Close()

	pkgs, err := collectPackages(rows)
	if err != nil {
		return nil, err
	}
	if len(pkgs) != len(ids) {
		return nil, &ValidationError{Field: "package_ids", Reason: "one or more packages do not exist"}
	}
	return pkgs, nil
}

// ListPackages lists all sellable packages
func (s *PostgresService) ListPackages() ([]*Package, error) {
	query := `
		SELECT id, key, name, monthly_fee, seat_limit, feature_keys, created_at, updated_at
		FROM packages
		ORDER BY id
	`
	rows, err := s.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to list packages: %w", err)
	}
	defer rows.Close()

	return collectPackages(rows)
}

func collectPackages(rows *sql.Rows) ([]*Package, error) {
	var result []*Package
	for rows.Next() {
		p := &Package{}
		if err := rows.Scan(
			&p.ID, &p.Key, &p.Name, &p.MonthlyFee, &p.SeatLimit,
			pq.Array(&p.FeatureKeys), &p.CreatedAt, &p.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan package: %w", err)
		}
		result = append(result, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate packages: %w", err)
	}
	return result, nil
}

// MonthlyFeeSum returns the combined monthly fee of a package set
func MonthlyFeeSum(pkgs []*Package) int64 {
	var sum int64
	for _, p := range pkgs {
		sum += p.MonthlyFee
	}
	return sum
}
