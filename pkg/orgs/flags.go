package orgs

import (
	"database/sql"
	"fmt"
)

// FeatureFlags returns the flag keys granted to an organization
func (s *PostgresService) FeatureFlags(orgID int64) ([]string, error) {
	query := `SELECT flag FROM org_feature_flags WHERE org_id = $1 ORDER BY flag`
	rows, err := s.db.Query(query, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to load feature flags: %w", err)
	}
	defer rows.Close()

	var flags []string
	for rows.Next() {
		var flag string
		if err := rows.Scan(&flag); err != nil {
			return nil, fmt.Errorf("failed to scan feature flag: %w", err)
		}
		flags = append(flags, flag)
	}
	return flags, rows.Err()
}

// ListFeatureFlags returns the full flag records for an organization
func (s *PostgresService) ListFeatureFlags(orgID int64) ([]*FeatureFlag, error) {
	query := `
		SELECT org_id, flag, granted_by, created_at
		FROM org_feature_flags WHERE org_id = $1 ORDER BY flag`
	rows, err := s.db.Query(query, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to list feature flags: %w", err)
	}
	defer rows.Close()

	var flags []*FeatureFlag
	for rows.Next() {
		f := &FeatureFlag{}
		var grantedBy sql.NullString
		if err := rows.Scan(&f.OrgID, &f.Flag, &grantedBy, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan feature flag: %w", err)
		}
		if grantedBy.Valid {
			f.GrantedBy = grantedBy.String
		}
		flags = append(flags, f)
	}
	return flags, rows.Err()
}

// GrantFeatureFlag grants a flag to an organization. Granting an already
// granted flag is a no-op.
func (s *PostgresService) GrantFeatureFlag(orgID int64, flag, grantedBy string) error {
	if flag == "" {
		return fmt.Errorf("flag key is required")
	}
	query := `
		INSERT INTO org_feature_flags (org_id, flag, granted_by)
		VALUES ($1, $2, $3)
		ON CONFLICT (org_id, flag) DO NOTHING`
	if _, err := s.db.Exec(query, orgID, flag, nullableString(grantedBy)); err != nil {
		return fmt.Errorf("failed to grant feature flag: %w", err)
	}
	return nil
}

// RevokeFeatureFlag removes a flag grant, reporting whether it existed
func (s *PostgresService) RevokeFeatureFlag(orgID int64, flag string) (bool, error) {
	query := `DELETE FROM org_feature_flags WHERE org_id = $1 AND flag = $2`
	result, err := s.db.Exec(query, orgID, flag)
	if err != nil {
		return false, fmt.Errorf("failed to revoke feature flag: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check revoke result: %w", err)
	}
	return affected > 0, nil
}
